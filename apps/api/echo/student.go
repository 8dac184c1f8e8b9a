package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/attendance"
	"github.com/trezcool/eduspace/core/content"
	"github.com/trezcool/eduspace/core/course"
	"github.com/trezcool/eduspace/core/enrollment"
	"github.com/trezcool/eduspace/core/exam"
)

type (
	EnrollRequest struct {
		CourseID string `json:"courseId" validate:"required,notblank"`
	}

	AttendanceResponse struct {
		Entries []attendance.Entry `json:"entries"`
		Stats   attendance.Stats   `json:"stats"`
	}
)

// SSE event names
const (
	eventEnrollments = "enrollments"
	eventAttendance  = "attendance"
	eventResults     = "results"
)

type studentApi struct {
	courses     *course.Service
	enrollments *enrollment.Service
	attendance  *attendance.Service
	exams       *exam.Service
	content     *content.Service
	logger      core.Logger
}

func registerStudentAPI(g *echo.Group, deps ServerDeps) {
	api := studentApi{
		courses:     deps.CourseSvc,
		enrollments: deps.EnrollmentSvc,
		attendance:  deps.AttendanceSvc,
		exams:       deps.ExamSvc,
		content:     deps.ContentSvc,
		logger:      deps.Logger,
	}

	g.GET("/courses", api.queryCourses)
	g.GET("/courses/categories", api.queryCategories)
	g.GET("/enrollments", api.queryEnrollments)
	g.POST("/enrollments", api.enroll)
	g.GET("/enrollments/stream", api.streamEnrollments)
	g.GET("/attendance", api.queryAttendance)
	g.GET("/attendance/stream", api.streamAttendance)
	g.GET("/results", api.queryResults)
	g.GET("/results/stream", api.streamResults)
	g.GET("/materials", api.queryMaterials)
}

func (api *studentApi) queryCourses(ctx echo.Context) error {
	var filter course.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	courses, err := api.courses.List(ctx.Request().Context(), filter)
	if err != nil {
		degrade(api.logger, getContextIdentity(ctx), "courses", err)
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *studentApi) queryCategories(ctx echo.Context) error {
	cats, err := api.courses.Categories(ctx.Request().Context())
	if err != nil {
		degrade(api.logger, getContextIdentity(ctx), "categories", err)
		cats = []string{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *studentApi) queryEnrollments(ctx echo.Context) error {
	enrolled, err := api.enrollments.ListForStudent(ctx.Request().Context(), getContextIdentity(ctx).UID)
	if err != nil {
		degrade(api.logger, getContextIdentity(ctx), "enrollments", err)
		enrolled = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrolled)
}

func (api *studentApi) enroll(ctx echo.Context) error {
	var data EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollRequest")
	}
	data.CourseID = core.CleanString(data.CourseID)
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	e, err := api.enrollments.Enroll(ctx.Request().Context(), getContextIdentity(ctx), data.CourseID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *studentApi) streamEnrollments(ctx echo.Context) error {
	ident := getContextIdentity(ctx)
	return streamEvents(ctx, func(reqCtx context.Context, emit emitFunc) error {
		return api.enrollments.Subscribe(reqCtx, ident.UID, func(enrolled []enrollment.Enrollment, err error) {
			if err != nil {
				degrade(api.logger, ident, "enrollments", err)
				enrolled = []enrollment.Enrollment{}
			}
			emit(eventEnrollments, enrolled)
		})
	})
}

func (api *studentApi) queryAttendance(ctx echo.Context) error {
	entries, stats, err := api.attendance.StudentHistory(ctx.Request().Context(), getContextIdentity(ctx).UID)
	if err != nil {
		degrade(api.logger, getContextIdentity(ctx), "attendance", err)
		entries, stats = []attendance.Entry{}, attendance.Stats{}
	}
	return ctx.JSON(http.StatusOK, AttendanceResponse{Entries: entries, Stats: stats})
}

func (api *studentApi) streamAttendance(ctx echo.Context) error {
	ident := getContextIdentity(ctx)
	return streamEvents(ctx, func(reqCtx context.Context, emit emitFunc) error {
		return api.attendance.Subscribe(reqCtx, ident.UID, func(entries []attendance.Entry, stats attendance.Stats, err error) {
			if err != nil {
				degrade(api.logger, ident, "attendance", err)
				entries, stats = []attendance.Entry{}, attendance.Stats{}
			}
			emit(eventAttendance, AttendanceResponse{Entries: entries, Stats: stats})
		})
	})
}

func (api *studentApi) queryResults(ctx echo.Context) error {
	results, err := api.exams.ResultsForStudent(ctx.Request().Context(), getContextIdentity(ctx).UID)
	if err != nil {
		degrade(api.logger, getContextIdentity(ctx), "results", err)
		results = []exam.StudentResult{}
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *studentApi) streamResults(ctx echo.Context) error {
	ident := getContextIdentity(ctx)
	return streamEvents(ctx, func(reqCtx context.Context, emit emitFunc) error {
		return api.exams.Subscribe(reqCtx, ident.UID, func(results []exam.StudentResult, err error) {
			if err != nil {
				degrade(api.logger, ident, "results", err)
				results = []exam.StudentResult{}
			}
			emit(eventResults, results)
		})
	})
}

func (api *studentApi) queryMaterials(ctx echo.Context) error {
	items, err := api.content.ListForStudent(ctx.Request().Context(), getContextIdentity(ctx).UID)
	if err != nil {
		degrade(api.logger, getContextIdentity(ctx), "materials", err)
		items = []content.Item{}
	}
	return ctx.JSON(http.StatusOK, items)
}
