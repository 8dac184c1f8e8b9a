package course

import (
	"sort"

	"github.com/trezcool/eduspace/core"
)

// Course is a `Courses` document. The document id is the course id.
// AvailableSeats is nil when the course has no seat limit.
type Course struct {
	ID                string `json:"id" doc:",id"`
	Title             string `json:"title" doc:"CourseTitle" validate:"required"`
	Category          string `json:"category" doc:"CourseCategory"`
	LegacyID          string `json:"-" doc:"CourseId,omitempty"`
	AssignedTeacherID string `json:"assignedTeacherId" doc:"assignedTeacherId,omitempty"`
	TeacherName       string `json:"teacherName" doc:"TeacherName"`
	AvailableSeats    *int   `json:"availableSeats" doc:"AvailableSeats,omitempty" validate:"omitempty,min=0"`
}

// HasSeats reports whether a student can still enroll.
func (c Course) HasSeats() bool {
	return c.AvailableSeats == nil || *c.AvailableSeats > 0
}

// TaughtBy reports whether the course is assigned to the teacher, by id or by display name
// for courses created before teacher ids were recorded.
func (c Course) TaughtBy(uid, displayName string) bool {
	if c.AssignedTeacherID != "" {
		return c.AssignedTeacherID == uid
	}
	return displayName != "" && c.TeacherName == displayName
}

// NewCourse contains information needed to create a Course.
type NewCourse struct {
	ID                string `json:"id" validate:"required,notblank"`
	Title             string `json:"title" validate:"required,notblank"`
	Category          string `json:"category" validate:"required,notblank"`
	AssignedTeacherID string `json:"assignedTeacherId"`
	TeacherName       string `json:"teacherName"`
	AvailableSeats    *int   `json:"availableSeats" validate:"omitempty,min=0"`
}

func (nc *NewCourse) clean() {
	nc.ID = core.CleanString(nc.ID)
	nc.Title = core.CleanString(nc.Title)
	nc.Category = core.CleanString(nc.Category)
	nc.AssignedTeacherID = core.CleanString(nc.AssignedTeacherID)
	nc.TeacherName = core.CleanString(nc.TeacherName)
}

// UpdateCourse contains the editable fields of a Course.
type UpdateCourse struct {
	Title             string `json:"title" validate:"required,notblank"`
	Category          string `json:"category" validate:"required,notblank"`
	AssignedTeacherID string `json:"assignedTeacherId"`
	TeacherName       string `json:"teacherName"`
	AvailableSeats    *int   `json:"availableSeats" validate:"omitempty,min=0"`
}

func (uc *UpdateCourse) clean() {
	uc.Title = core.CleanString(uc.Title)
	uc.Category = core.CleanString(uc.Category)
	uc.AssignedTeacherID = core.CleanString(uc.AssignedTeacherID)
	uc.TeacherName = core.CleanString(uc.TeacherName)
}

type QueryFilter struct {
	Category string `query:"category"`
}

func sortByTitle(courses []Course) {
	sort.SliceStable(courses, func(i, j int) bool {
		if courses[i].Title == courses[j].Title {
			return courses[i].ID < courses[j].ID
		}
		return courses[i].Title < courses[j].Title
	})
}
