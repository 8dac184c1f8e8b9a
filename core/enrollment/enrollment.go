// Package enrollment registers students to courses (`Registered-Course` documents).
package enrollment

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/course"
	"github.com/trezcool/eduspace/core/docstore"
	"github.com/trezcool/eduspace/core/user"
)

var NowFunc = time.Now // mockable

var (
	// errors
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
	ErrNotStudent      = errors.New("only students can enroll")
)

// Enrollment links a student to a course. Older documents only carry the course title.
type Enrollment struct {
	ID          string    `json:"id" doc:",id"`
	StudentUID  string    `json:"studentUid" doc:"uid" validate:"required"`
	CourseTitle string    `json:"courseTitle" doc:"courseTitle" validate:"required"`
	Category    string    `json:"category" doc:"CourseCategory"`
	CourseID    string    `json:"courseId" doc:"courseId,omitempty"`
	Email       string    `json:"email" doc:"email"`
	CreatedAt   time.Time `json:"createdAt" doc:"createdAt,omitempty"`
}

// Of reports whether the enrollment is for c.
func (e Enrollment) Of(c course.Course) bool {
	if e.CourseID != "" {
		return e.CourseID == c.ID
	}
	return e.CourseTitle == c.Title
}

// Courses is the part of the course service enrollment depends on.
type Courses interface {
	Get(ctx context.Context, id string) (course.Course, error)
	ReserveSeat(ctx context.Context, id string) (course.Course, error)
	ReleaseSeat(ctx context.Context, id string) error
}

var _ Courses = (*course.Service)(nil)

type Service struct {
	store   docstore.Store
	courses Courses
}

func NewService(store docstore.Store, courses Courses) *Service {
	return &Service{store: store, courses: courses}
}

func decodeAll(docs []docstore.Document) []Enrollment {
	res := make([]Enrollment, 0, len(docs))
	for _, doc := range docs {
		var e Enrollment
		if err := docstore.Decode(doc, &e); err != nil {
			continue
		}
		res = append(res, e)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CourseTitle < res[j].CourseTitle })
	return res
}

func studentQuery(uid string) docstore.Query {
	return docstore.Where("uid", docstore.OpEqual, uid)
}

// Enroll registers a student to a course, taking one of its seats.
func (svc *Service) Enroll(ctx context.Context, student user.Identity, courseID string) (Enrollment, error) {
	if !student.IsStudent() {
		return Enrollment{}, ErrNotStudent
	}
	c, err := svc.courses.Get(ctx, core.CleanString(courseID))
	if err != nil {
		return Enrollment{}, err
	}

	current, err := svc.ListForStudent(ctx, student.UID)
	if err != nil {
		return Enrollment{}, err
	}
	for _, e := range current {
		if e.Of(c) {
			return Enrollment{}, ErrAlreadyEnrolled
		}
	}

	if _, err := svc.courses.ReserveSeat(ctx, c.ID); err != nil {
		return Enrollment{}, err
	}
	e := Enrollment{
		StudentUID:  student.UID,
		CourseTitle: c.Title,
		Category:    c.Category,
		CourseID:    c.ID,
		Email:       student.Email,
		CreatedAt:   NowFunc().UTC(),
	}
	doc, err := svc.store.Create(ctx, docstore.RegisteredCourse, "", docstore.Encode(e))
	if err != nil {
		// the seat goes back so the student can retry
		if relErr := svc.courses.ReleaseSeat(ctx, c.ID); relErr != nil {
			return Enrollment{}, errors.Wrapf(err, "enrolling (seat not released: %v)", relErr)
		}
		return Enrollment{}, errors.Wrap(err, "enrolling")
	}
	e.ID = doc.ID
	return e, nil
}

// ListForStudent returns the enrollments of a student, sorted by course title.
func (svc *Service) ListForStudent(ctx context.Context, uid string) ([]Enrollment, error) {
	docs, err := svc.store.List(ctx, docstore.RegisteredCourse, studentQuery(uid))
	if err != nil {
		return nil, errors.Wrap(err, "listing enrollments")
	}
	return decodeAll(docs), nil
}

// EnrolledStudentIDs returns the uids of students enrolled in at least one course, sorted.
func (svc *Service) EnrolledStudentIDs(ctx context.Context) ([]string, error) {
	docs, err := svc.store.List(ctx, docstore.RegisteredCourse, docstore.Query{})
	if err != nil {
		return nil, errors.Wrap(err, "listing enrollments")
	}
	uids := make([]string, 0)
	for _, doc := range docs {
		uid := doc.String("uid")
		if uid != "" && !core.ContainsString(uids, uid) {
			uids = append(uids, uid)
		}
	}
	sort.Strings(uids)
	return uids, nil
}

// DeleteForStudent removes every enrollment of a student.
func (svc *Service) DeleteForStudent(ctx context.Context, uid string) error {
	docs, err := svc.store.List(ctx, docstore.RegisteredCourse, studentQuery(uid))
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	for _, doc := range docs {
		if err := svc.store.Delete(ctx, docstore.RegisteredCourse, doc.ID); err != nil {
			return errors.Wrapf(err, "deleting enrollment %s", doc.ID)
		}
	}
	return nil
}

// Subscribe delivers the enrollments of a student each time they change, until ctx ends.
func (svc *Service) Subscribe(ctx context.Context, uid string, fn func([]Enrollment, error)) error {
	return docstore.Watch(ctx, svc.store, docstore.RegisteredCourse, studentQuery(uid), func(docs []docstore.Document, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(decodeAll(docs), nil)
	})
}
