// Package content distributes videos, notes and assignments to courses.
package content

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/course"
	"github.com/trezcool/eduspace/core/docstore"
	"github.com/trezcool/eduspace/core/enrollment"
	"github.com/trezcool/eduspace/core/user"
)

var NowFunc = time.Now // mockable

var (
	// errors
	ErrNotCourseTeacher  = errors.New("only the teacher of a course can add material to it")
	ErrUnknownCollection = errors.New("not a content collection")
)

var (
	contentTypeTag  = "content_type"
	contentTypeText = "type must be one of video, note or assignment"
)

func init() {
	_ = core.Validate.RegisterValidation(contentTypeTag, func(fl validator.FieldLevel) bool {
		switch Type(fl.Field().String()) {
		case TypeVideo, TypeNote, TypeAssignment:
			return true
		}
		return false
	})
	core.RegisterCustomTranslation(core.Validate, core.Translator, contentTypeTag, contentTypeText)
}

// LibraryCollections are the collections listed in the admin content library.
var LibraryCollections = []string{docstore.Content, docstore.Assignments, docstore.Quizzes}

type (
	Courses interface {
		Get(ctx context.Context, id string) (course.Course, error)
		List(ctx context.Context, filter course.QueryFilter) ([]course.Course, error)
	}

	Enrollments interface {
		ListForStudent(ctx context.Context, uid string) ([]enrollment.Enrollment, error)
	}
)

var (
	_ Courses     = (*course.Service)(nil)
	_ Enrollments = (*enrollment.Service)(nil)
)

type Service struct {
	store       docstore.Store
	courses     Courses
	enrollments Enrollments
}

func NewService(store docstore.Store, courses Courses, enrollments Enrollments) *Service {
	return &Service{store: store, courses: courses, enrollments: enrollments}
}

// Add distributes an item to a course (admin).
func (svc *Service) Add(ctx context.Context, uploadedBy string, ni NewItem) (Item, error) {
	ni.clean()
	if err := core.Validate.Struct(ni); err != nil {
		return Item{}, err
	}
	c, err := svc.courses.Get(ctx, ni.CourseID)
	if err != nil {
		return Item{}, err
	}

	coll := docstore.Content
	d := libraryDoc{
		CourseTitle: c.Title,
		Category:    c.Category,
		CourseID:    c.ID,
		Number:      ni.Number,
		Type:        string(ni.Type),
		Description: ni.Description,
		UploadedBy:  uploadedBy,
		CreatedAt:   NowFunc().UTC(),
	}
	switch ni.Type {
	case TypeVideo:
		d.YouTubeURL = ni.Link
	case TypeAssignment:
		coll = docstore.Assignments
		d.URL = ni.Link
	default:
		d.URL = ni.Link
	}

	doc, err := svc.store.Create(ctx, coll, "", docstore.Encode(d))
	if err != nil {
		return Item{}, errors.Wrap(err, "adding content")
	}
	d.ID = doc.ID
	return d.item(coll), nil
}

// AddCourseMaterial adds material to a course taught by teacher.
func (svc *Service) AddCourseMaterial(ctx context.Context, teacher user.Identity, nm NewMaterial) (Item, error) {
	nm.clean()
	if err := core.Validate.Struct(nm); err != nil {
		return Item{}, err
	}
	c, err := svc.courses.Get(ctx, nm.CourseID)
	if err != nil {
		return Item{}, err
	}
	if !c.TaughtBy(teacher.UID, teacher.DisplayName) {
		return Item{}, ErrNotCourseTeacher
	}

	d := materialDoc{
		CourseID:    c.ID,
		Title:       nm.Title,
		Description: nm.Description,
		Link:        nm.Link,
		Type:        string(nm.Type),
		TeacherID:   teacher.UID,
		CreatedAt:   NowFunc().UTC(),
	}
	doc, err := svc.store.Create(ctx, docstore.CourseContent, "", docstore.Encode(d))
	if err != nil {
		return Item{}, errors.Wrap(err, "adding course material")
	}
	d.ID = doc.ID
	item := d.item()
	item.CourseTitle = c.Title
	return item, nil
}

func (svc *Service) listLibrary(ctx context.Context, coll string, q docstore.Query) ([]Item, error) {
	docs, err := svc.store.List(ctx, coll, q)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", coll)
	}
	items := make([]Item, 0, len(docs))
	for _, doc := range docs {
		var d libraryDoc
		if err := docstore.Decode(doc, &d); err != nil {
			continue
		}
		items = append(items, d.item(coll))
	}
	return items, nil
}

func (svc *Service) listMaterial(ctx context.Context, q docstore.Query) ([]Item, error) {
	docs, err := svc.store.List(ctx, docstore.CourseContent, q)
	if err != nil {
		return nil, errors.Wrap(err, "listing course material")
	}
	items := make([]Item, 0, len(docs))
	for _, doc := range docs {
		var d materialDoc
		if err := docstore.Decode(doc, &d); err != nil {
			continue
		}
		items = append(items, d.item())
	}
	return items, nil
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CourseTitle != items[j].CourseTitle {
			return items[i].CourseTitle < items[j].CourseTitle
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

// Library lists everything distributed by admins, across the library collections.
func (svc *Service) Library(ctx context.Context) ([]Item, error) {
	items := make([]Item, 0)
	for _, coll := range LibraryCollections {
		res, err := svc.listLibrary(ctx, coll, docstore.Query{})
		if err != nil {
			return nil, err
		}
		items = append(items, res...)
	}
	sortItems(items)
	return items, nil
}

// ListForCourse returns the content distributed to a course and the material its teacher added.
func (svc *Service) ListForCourse(ctx context.Context, c course.Course) ([]Item, error) {
	items := make([]Item, 0)
	for _, coll := range LibraryCollections {
		res, err := svc.listLibrary(ctx, coll, docstore.Where("ID", docstore.OpEqual, c.ID))
		if err != nil {
			return nil, err
		}
		items = append(items, res...)
	}

	material, err := svc.listMaterial(ctx, docstore.Where("courseId", docstore.OpEqual, c.ID))
	if err != nil {
		return nil, err
	}
	for i := range material {
		material[i].CourseTitle = c.Title
	}
	items = append(items, material...)

	sortItems(items)
	return items, nil
}

// ListForStudent returns the content of every course a student is enrolled in.
// Enrollments without a course id are resolved by course title.
func (svc *Service) ListForStudent(ctx context.Context, uid string) ([]Item, error) {
	enrolled, err := svc.enrollments.ListForStudent(ctx, uid)
	if err != nil {
		return nil, err
	}
	if len(enrolled) == 0 {
		return []Item{}, nil
	}
	all, err := svc.courses.List(ctx, course.QueryFilter{})
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0)
	for _, c := range all {
		for _, e := range enrolled {
			if !e.Of(c) {
				continue
			}
			res, err := svc.ListForCourse(ctx, c)
			if err != nil {
				return nil, err
			}
			items = append(items, res...)
			break
		}
	}
	sortItems(items)
	return items, nil
}

// Delete removes an item from one of the library collections or from course material.
func (svc *Service) Delete(ctx context.Context, collection, id string) error {
	if collection != docstore.CourseContent && !core.ContainsString(LibraryCollections, collection) {
		return ErrUnknownCollection
	}
	if err := svc.store.Delete(ctx, collection, id); err != nil {
		return errors.Wrap(err, "deleting content")
	}
	return nil
}
