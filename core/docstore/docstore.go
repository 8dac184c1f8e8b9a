// Package docstore is the data access facade over the school's document collections.
// Backends live under storage/docstore.
package docstore

import (
	"context"
	"time"
)

// Collections
const (
	Users            = "Users"
	Courses          = "Courses"
	RegisteredCourse = "Registered-Course"
	Content          = "Content"
	CourseContent    = "CourseContent"
	Assignments      = "Assignments"
	Quizzes          = "Quizzes"
	Attendance       = "Attendance"
	ExamResults      = "ExamResults"
)

// AllCollections lists every collection known to the platform.
var AllCollections = []string{
	Users, Courses, RegisteredCourse, Content, CourseContent, Assignments, Quizzes, Attendance, ExamResults,
}

type (
	// Fields is the untyped field map of a document.
	Fields map[string]interface{}

	Document struct {
		ID         string    `json:"id"`
		Fields     Fields    `json:"fields"`
		CreateTime time.Time `json:"createTime"`
		UpdateTime time.Time `json:"updateTime"`
	}

	// Listener receives the full query result each time it changes.
	// docs is nil when err is set.
	Listener func(docs []Document, err error)

	// Unsubscribe stops a subscription. Calling it more than once is a no-op.
	Unsubscribe func()

	// Store is implemented by every document store backend.
	Store interface {
		List(ctx context.Context, collection string, q Query) ([]Document, error)
		// Get returns ErrNotFound when no document has the id.
		Get(ctx context.Context, collection, id string) (Document, error)
		// Create stores a new document. An empty id asks the store to generate one;
		// an explicit id overwrites any document already stored under it.
		Create(ctx context.Context, collection, id string, fields Fields) (Document, error)
		// Update merges fields into an existing document (ErrNotFound if absent).
		Update(ctx context.Context, collection, id string, fields Fields) error
		// Delete removes a document. Deleting a missing document is not an error.
		Delete(ctx context.Context, collection, id string) error
		// Subscribe delivers the current result of q, then every later change, until unsubscribed.
		Subscribe(ctx context.Context, collection string, q Query, fn Listener) (Unsubscribe, error)
	}
)

// String returns the string value of field name, or "" if it is absent or not a string.
func (doc Document) String(name string) string {
	s, _ := doc.Fields[name].(string)
	return s
}
