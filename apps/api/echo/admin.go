package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/content"
	"github.com/trezcool/eduspace/core/course"
)

type adminApi struct {
	courses *course.Service
	content *content.Service
}

func registerAdminAPI(g *echo.Group, deps ServerDeps) {
	api := adminApi{courses: deps.CourseSvc, content: deps.ContentSvc}

	cg := g.Group("/courses")
	cg.GET("", api.queryCourses)
	cg.POST("", api.createCourse)
	cg.GET("/categories", api.queryCategories)
	cg.GET("/:id", api.retrieveCourse)
	cg.PUT("/:id", api.updateCourse)
	cg.DELETE("/:id", api.destroyCourse)

	kg := g.Group("/content")
	kg.GET("", api.queryContent)
	kg.POST("", api.createContent)
	kg.DELETE("/:collection/:id", api.destroyContent)

	registerUserAPI(g, deps)
}

// Courses

func (api *adminApi) queryCourses(ctx echo.Context) error {
	var filter course.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	courses, err := api.courses.List(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *adminApi) queryCategories(ctx echo.Context) error {
	cats, err := api.courses.Categories(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *adminApi) createCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	c, err := api.courses.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *adminApi) retrieveCourse(ctx echo.Context) error {
	c, err := api.courses.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) updateCourse(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	c, err := api.courses.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) destroyCourse(ctx echo.Context) error {
	if err := api.courses.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Content library

func (api *adminApi) queryContent(ctx echo.Context) error {
	items, err := api.content.Library(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *adminApi) createContent(ctx echo.Context) error {
	var data content.NewItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewItem")
	}
	item, err := api.content.Add(ctx.Request().Context(), getContextIdentity(ctx).UID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *adminApi) destroyContent(ctx echo.Context) error {
	coll := ctx.Param("collection")
	if !core.ContainsString(content.LibraryCollections, coll) {
		return content.ErrUnknownCollection
	}
	if err := api.content.Delete(ctx.Request().Context(), coll, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
