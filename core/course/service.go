package course

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/docstore"
)

var ErrNoSeats = errors.New("no seats left in this course")

// reference names the fields through which documents of a collection point at a course.
// An empty field is not matched.
type reference struct {
	collection string
	idField    string
	titleField string
}

// documents referencing a course, in cascade order
var references = []reference{
	{collection: docstore.Content, idField: "ID", titleField: "CourseTitle"},
	{collection: docstore.Assignments, idField: "ID", titleField: "CourseTitle"},
	{collection: docstore.Quizzes, idField: "ID", titleField: "CourseTitle"},
	{collection: docstore.CourseContent, idField: "courseId"},
	{collection: docstore.RegisteredCourse, idField: "courseId", titleField: "courseTitle"},
}

// CascadeCollections lists the collections cleaned up when a course is deleted, in order.
func CascadeCollections() []string {
	names := make([]string, 0, len(references))
	for _, ref := range references {
		names = append(names, ref.collection)
	}
	return names
}

type Service struct {
	store docstore.Store
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

func decodeCourse(doc docstore.Document) (Course, error) {
	var c Course
	if err := docstore.Decode(doc, &c); err != nil {
		return Course{}, err
	}
	return c, nil
}

// Create stores nc under its id, overwriting any course already stored there.
func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	nc.clean()
	if err := core.Validate.Struct(nc); err != nil {
		return Course{}, err
	}

	c := Course{
		ID:                nc.ID,
		Title:             nc.Title,
		Category:          nc.Category,
		LegacyID:          nc.ID,
		AssignedTeacherID: nc.AssignedTeacherID,
		TeacherName:       nc.TeacherName,
		AvailableSeats:    nc.AvailableSeats,
	}
	if _, err := svc.store.Create(ctx, docstore.Courses, c.ID, docstore.Encode(c)); err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	return c, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	doc, err := svc.store.Get(ctx, docstore.Courses, id)
	if err != nil {
		if docstore.IsNotFound(err) {
			return Course{}, ErrNotFound
		}
		return Course{}, errors.Wrap(err, "getting course")
	}
	return decodeCourse(doc)
}

func (svc *Service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.Get(ctx, id)
	if err != nil {
		return Course{}, err
	}
	uc.clean()
	if err := core.Validate.Struct(uc); err != nil {
		return Course{}, err
	}

	c.Title = uc.Title
	c.Category = uc.Category
	c.AssignedTeacherID = uc.AssignedTeacherID
	c.TeacherName = uc.TeacherName
	c.AvailableSeats = uc.AvailableSeats
	fields := docstore.Fields{
		"CourseTitle":       c.Title,
		"CourseCategory":    c.Category,
		"assignedTeacherId": c.AssignedTeacherID,
		"TeacherName":       c.TeacherName,
		"AvailableSeats":    docstore.Normalize(c.AvailableSeats),
	}
	if err := svc.store.Update(ctx, docstore.Courses, id, fields); err != nil {
		if docstore.IsNotFound(err) {
			return Course{}, ErrNotFound
		}
		return Course{}, errors.Wrap(err, "updating course")
	}
	return c, nil
}

func (svc *Service) list(ctx context.Context, q docstore.Query) ([]Course, error) {
	docs, err := svc.store.List(ctx, docstore.Courses, q)
	if err != nil {
		return nil, errors.Wrap(err, "listing courses")
	}
	courses := make([]Course, 0, len(docs))
	for _, doc := range docs {
		c, err := decodeCourse(doc)
		if err != nil {
			continue // skip malformed courses
		}
		courses = append(courses, c)
	}
	sortByTitle(courses)
	return courses, nil
}

// List returns courses sorted by title, optionally restricted to one category.
func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Course, error) {
	q := docstore.Query{}
	if category := core.CleanString(filter.Category); category != "" {
		q = q.Where("CourseCategory", docstore.OpEqual, category)
	}
	return svc.list(ctx, q)
}

// ListByTeacher returns the courses assigned to a teacher.
func (svc *Service) ListByTeacher(ctx context.Context, uid, displayName string) ([]Course, error) {
	all, err := svc.list(ctx, docstore.Query{})
	if err != nil {
		return nil, err
	}
	courses := make([]Course, 0)
	for _, c := range all {
		if c.TaughtBy(uid, displayName) {
			courses = append(courses, c)
		}
	}
	return courses, nil
}

// Categories returns the distinct course categories, sorted.
func (svc *Service) Categories(ctx context.Context) ([]string, error) {
	courses, err := svc.list(ctx, docstore.Query{})
	if err != nil {
		return nil, err
	}
	categories := make([]string, 0)
	for _, c := range courses {
		if c.Category != "" && !core.ContainsString(categories, c.Category) {
			categories = append(categories, c.Category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

// ReserveSeat takes one seat of a limited course. Unlimited courses are left untouched.
// The count is read then written, so concurrent reservations can both take the last seat.
func (svc *Service) ReserveSeat(ctx context.Context, id string) (Course, error) {
	c, err := svc.Get(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.HasSeats() {
		return Course{}, ErrNoSeats
	}
	if c.AvailableSeats == nil {
		return c, nil
	}

	seats := *c.AvailableSeats - 1
	if err := svc.store.Update(ctx, docstore.Courses, id, docstore.Fields{"AvailableSeats": int64(seats)}); err != nil {
		return Course{}, errors.Wrap(err, "reserving seat")
	}
	c.AvailableSeats = &seats
	return c, nil
}

// ReleaseSeat gives back a seat taken by ReserveSeat.
func (svc *Service) ReleaseSeat(ctx context.Context, id string) error {
	c, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.AvailableSeats == nil {
		return nil
	}
	seats := *c.AvailableSeats + 1
	if err := svc.store.Update(ctx, docstore.Courses, id, docstore.Fields{"AvailableSeats": int64(seats)}); err != nil {
		return errors.Wrap(err, "releasing seat")
	}
	return nil
}

// Delete removes a course, then every document referencing it.
// The stored document is not validated: a course that no longer decodes can still be deleted.
// The deletes are independent: when some related documents cannot be removed the course
// stays deleted and a *CascadeError lists the collections left behind.
func (svc *Service) Delete(ctx context.Context, id string) error {
	doc, err := svc.store.Get(ctx, docstore.Courses, id)
	if err != nil {
		if docstore.IsNotFound(err) {
			return ErrNotFound
		}
		return errors.Wrap(err, "getting course")
	}
	if err := svc.store.Delete(ctx, docstore.Courses, id); err != nil {
		return errors.Wrap(err, "deleting course")
	}

	title := doc.String("CourseTitle")
	var failed []CollectionFailure
	for _, ref := range references {
		if err := svc.deleteReferences(ctx, ref, id, title); err != nil {
			failed = append(failed, CollectionFailure{Collection: ref.collection, Err: err})
		}
	}
	if len(failed) > 0 {
		return &CascadeError{CourseID: id, Failed: failed}
	}
	return nil
}

func (svc *Service) deleteReferences(ctx context.Context, ref reference, id, title string) error {
	var queries []docstore.Query
	if ref.idField != "" {
		queries = append(queries, docstore.Where(ref.idField, docstore.OpEqual, id))
	}
	if ref.titleField != "" && title != "" {
		queries = append(queries, docstore.Where(ref.titleField, docstore.OpEqual, title))
	}

	ids := make([]string, 0)
	for _, q := range queries {
		docs, err := svc.store.List(ctx, ref.collection, q)
		if err != nil {
			return errors.Wrapf(err, "finding documents of course %s", id)
		}
		for _, doc := range docs {
			if !core.ContainsString(ids, doc.ID) {
				ids = append(ids, doc.ID)
			}
		}
	}

	var firstErr error
	for _, docID := range ids {
		if err := svc.store.Delete(ctx, ref.collection, docID); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "deleting %s", docID)
		}
	}
	return firstErr
}
