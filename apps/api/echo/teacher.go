package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/attendance"
	"github.com/trezcool/eduspace/core/content"
	"github.com/trezcool/eduspace/core/course"
	"github.com/trezcool/eduspace/core/enrollment"
	"github.com/trezcool/eduspace/core/exam"
	"github.com/trezcool/eduspace/core/user"
)

type teacherApi struct {
	users       *user.Service
	courses     *course.Service
	enrollments *enrollment.Service
	attendance  *attendance.Service
	exams       *exam.Service
	content     *content.Service
	logger      core.Logger
}

func registerTeacherAPI(g *echo.Group, deps ServerDeps) {
	api := teacherApi{
		users:       deps.UserSvc,
		courses:     deps.CourseSvc,
		enrollments: deps.EnrollmentSvc,
		attendance:  deps.AttendanceSvc,
		exams:       deps.ExamSvc,
		content:     deps.ContentSvc,
		logger:      deps.Logger,
	}

	g.GET("/courses", api.queryCourses)
	g.GET("/students", api.queryStudents)
	g.GET("/attendance", api.queryAttendance)
	g.POST("/attendance", api.markAttendance)
	g.POST("/results", api.recordResults)
	g.GET("/materials", api.queryMaterials)
	g.POST("/materials", api.createMaterial)
}

// degrade logs a dashboard listing failure. The dashboard then shows an empty list.
func degrade(logger core.Logger, ident user.Identity, what string, err error) {
	msg := "listing " + what
	logger.Error(msg, errors.Wrap(err, msg), ident)
}

func (api *teacherApi) queryCourses(ctx echo.Context) error {
	ident := getContextIdentity(ctx)
	courses, err := api.courses.ListByTeacher(ctx.Request().Context(), ident.UID, ident.DisplayName)
	if err != nil {
		degrade(api.logger, ident, "courses", err)
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

// queryStudents lists the profiles of enrolled students.
// Profiles without a role are listed too: older student accounts were created without one.
func (api *teacherApi) queryStudents(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	profs := make([]user.Profile, 0)

	uids, err := api.enrollments.EnrolledStudentIDs(reqCtx)
	if err != nil {
		degrade(api.logger, getContextIdentity(ctx), "students", err)
		return ctx.JSON(http.StatusOK, profs)
	}
	for _, uid := range uids {
		prof, err := api.users.GetByUID(reqCtx, uid)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				continue
			}
			degrade(api.logger, getContextIdentity(ctx), "students", err)
			continue
		}
		if prof.Role == user.RoleStudent || prof.Role == "" {
			profs = append(profs, prof)
		}
	}
	return ctx.JSON(http.StatusOK, profs)
}

func (api *teacherApi) queryAttendance(ctx echo.Context) error {
	date := core.CleanString(ctx.QueryParam("date"))
	if err := core.Validate.Var(date, "required,isodate"); err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "date must be formatted as YYYY-MM-DD"})
	}
	recs, err := api.attendance.ListForDate(ctx.Request().Context(), date)
	if err != nil {
		degrade(api.logger, getContextIdentity(ctx), "attendance", err)
		recs = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *teacherApi) markAttendance(ctx echo.Context) error {
	var data attendance.NewRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	rec, err := api.attendance.Mark(ctx.Request().Context(), getContextIdentity(ctx).UID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *teacherApi) recordResults(ctx echo.Context) error {
	var data exam.NewResult
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResult")
	}
	res, err := api.exams.Record(ctx.Request().Context(), getContextIdentity(ctx).UID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, res)
}

// queryMaterials lists the content of one of the teacher's courses.
func (api *teacherApi) queryMaterials(ctx echo.Context) error {
	courseID := core.CleanString(ctx.QueryParam("courseId"))
	if courseID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "courseId", Error: "this field is required"})
	}

	reqCtx := ctx.Request().Context()
	c, err := api.courses.Get(reqCtx, courseID)
	if err != nil {
		return err
	}
	ident := getContextIdentity(ctx)
	if !c.TaughtBy(ident.UID, ident.DisplayName) {
		return errHttpForbidden
	}

	items, err := api.content.ListForCourse(reqCtx, c)
	if err != nil {
		degrade(api.logger, getContextIdentity(ctx), "materials", err)
		items = []content.Item{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *teacherApi) createMaterial(ctx echo.Context) error {
	var data content.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	item, err := api.content.AddCourseMaterial(ctx.Request().Context(), getContextIdentity(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, item)
}
