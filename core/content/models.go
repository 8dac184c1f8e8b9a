package content

import (
	"strings"
	"time"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/docstore"
)

type Type string

// Content types
const (
	TypeVideo      Type = "video"
	TypeNote       Type = "note"
	TypeAssignment Type = "assignment"
	TypeQuiz       Type = "quiz"
)

// Item is the view of any piece of course content, whichever collection holds it.
type Item struct {
	ID          string    `json:"id"`
	Collection  string    `json:"collection"`
	CourseID    string    `json:"courseId"`
	CourseTitle string    `json:"courseTitle"`
	Title       string    `json:"title"`
	Type        Type      `json:"type"`
	Link        string    `json:"link"`
	Number      string    `json:"number,omitempty"`
	Description string    `json:"description,omitempty"`
	UploadedBy  string    `json:"uploadedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// libraryDoc is a `Content`, `Assignments` or `Quizzes` document.
type libraryDoc struct {
	ID          string    `doc:",id"`
	CourseTitle string    `doc:"CourseTitle"`
	Category    string    `doc:"Category,omitempty"`
	CourseID    string    `doc:"ID"`
	Number      string    `doc:"number,omitempty"`
	Type        string    `doc:"Type,omitempty"`
	VideoURL    string    `doc:"VideoURL,omitempty"`
	YouTubeURL  string    `doc:"YouTubeURL,omitempty"`
	URL         string    `doc:"url,omitempty"`
	Description string    `doc:"description,omitempty"`
	UploadedBy  string    `doc:"uploadedBy,omitempty"`
	CreatedAt   time.Time `doc:"createdAt,omitempty"`
}

// defaultTypes is the type of library documents written without one.
var defaultTypes = map[string]Type{
	docstore.Content:     TypeVideo,
	docstore.Assignments: TypeAssignment,
	docstore.Quizzes:     TypeQuiz,
}

func (d libraryDoc) item(collection string) Item {
	typ := Type(strings.ToLower(core.CleanString(d.Type)))
	if typ == "" {
		typ = defaultTypes[collection]
	}
	link := d.VideoURL
	if link == "" {
		link = d.YouTubeURL
	}
	if link == "" {
		link = d.URL
	}
	return Item{
		ID:          d.ID,
		Collection:  collection,
		CourseID:    d.CourseID,
		CourseTitle: d.CourseTitle,
		Title:       d.CourseTitle,
		Type:        typ,
		Link:        link,
		Number:      d.Number,
		Description: d.Description,
		UploadedBy:  d.UploadedBy,
		CreatedAt:   d.CreatedAt,
	}
}

// materialDoc is a `CourseContent` document, written by the teacher of the course.
type materialDoc struct {
	ID          string    `doc:",id"`
	CourseID    string    `doc:"courseId" validate:"required"`
	Title       string    `doc:"title"`
	Description string    `doc:"description"`
	Link        string    `doc:"link"`
	Type        string    `doc:"type"`
	TeacherID   string    `doc:"teacherId"`
	CreatedAt   time.Time `doc:"createdAt,omitempty"`
}

func (d materialDoc) item() Item {
	return Item{
		ID:          d.ID,
		Collection:  docstore.CourseContent,
		CourseID:    d.CourseID,
		Title:       d.Title,
		Type:        Type(strings.ToLower(d.Type)),
		Link:        d.Link,
		Description: d.Description,
		UploadedBy:  d.TeacherID,
		CreatedAt:   d.CreatedAt,
	}
}

// NewItem contains information needed to distribute content to a course.
// Assignments go to the `Assignments` collection, everything else to `Content`.
type NewItem struct {
	CourseID    string `json:"courseId" validate:"required,notblank"`
	Type        Type   `json:"type" validate:"required,content_type"`
	Link        string `json:"link" validate:"required,url"`
	Number      string `json:"number"`
	Description string `json:"description"`
}

func (ni *NewItem) clean() {
	ni.CourseID = core.CleanString(ni.CourseID)
	ni.Type = Type(core.CleanString(string(ni.Type), true))
	ni.Link = core.CleanString(ni.Link)
	ni.Number = core.CleanString(ni.Number)
	ni.Description = core.CleanString(ni.Description)
}

// NewMaterial contains information needed to add teacher material to a course.
type NewMaterial struct {
	CourseID    string `json:"courseId" validate:"required,notblank"`
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description"`
	Type        Type   `json:"type" validate:"required,content_type"`
	Link        string `json:"link" validate:"required,url"`
}

func (nm *NewMaterial) clean() {
	nm.CourseID = core.CleanString(nm.CourseID)
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	nm.Type = Type(core.CleanString(string(nm.Type), true))
	nm.Link = core.CleanString(nm.Link)
}
