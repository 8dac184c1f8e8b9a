package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/enrollment"
	"github.com/trezcool/eduspace/core/user"
)

var errCannotDeleteSelf = "you cannot delete your own account"

type userApi struct {
	svc         *user.Service
	enrollments *enrollment.Service
}

func registerUserAPI(g *echo.Group, deps ServerDeps) {
	api := userApi{svc: deps.UserSvc, enrollments: deps.EnrollmentSvc}

	ug := g.Group("/users")
	ug.GET("", api.query)
	ug.POST("", api.create)
	ug.GET("/roles", api.queryRoles)

	// detail endpoints
	dg := ug.Group("/:uid")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProfile")
	}

	prof, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, prof)
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	profs, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, profs)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.AllRoles)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	prof, err := api.svc.GetByUID(ctx.Request().Context(), ctx.Param("uid"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *userApi) update(ctx echo.Context) error {
	var data user.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}

	prof, err := api.svc.Update(ctx.Request().Context(), ctx.Param("uid"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prof)
}

// destroy deletes a profile. Students lose their enrollments too.
func (api *userApi) destroy(ctx echo.Context) error {
	uid := ctx.Param("uid")
	if uid == getContextIdentity(ctx).UID {
		return core.NewValidationError(nil, core.FieldError{Field: "uid", Error: errCannotDeleteSelf})
	}

	reqCtx := ctx.Request().Context()
	prof, err := api.svc.GetByUID(reqCtx, uid)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(reqCtx, prof.UID); err != nil {
		return err
	}
	if prof.Role == user.RoleStudent {
		if err = api.enrollments.DeleteForStudent(reqCtx, prof.UID); err != nil {
			return errors.Wrap(err, "deleting student enrollments")
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}
