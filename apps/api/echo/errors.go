package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/content"
	"github.com/trezcool/eduspace/core/course"
	"github.com/trezcool/eduspace/core/docstore"
	"github.com/trezcool/eduspace/core/enrollment"
	"github.com/trezcool/eduspace/core/user"
	"github.com/trezcool/eduspace/services/authprovider"
)

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "client context not authenticated")
	errRefreshExpired = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden  = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// classify maps domain errors to a status code.
func classify(err error) (int, bool) {
	switch {
	case errors.Is(err, user.ErrNotFound),
		errors.Is(err, course.ErrNotFound),
		docstore.IsNotFound(err):
		return http.StatusNotFound, true
	case errors.Is(err, enrollment.ErrAlreadyEnrolled),
		errors.Is(err, course.ErrNoSeats),
		errors.Is(err, content.ErrUnknownCollection),
		errors.Is(err, authprovider.ErrInvalidToken):
		return http.StatusBadRequest, true
	case errors.Is(err, enrollment.ErrNotStudent),
		errors.Is(err, content.ErrNotCourseTeacher):
		return http.StatusForbidden, true
	case docstore.IsUnavailable(err):
		return http.StatusServiceUnavailable, true
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.TranslateValidationErrors(origErr, core.Translator)
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *user.AuthError:
			code = http.StatusBadRequest
			if docstore.IsUnavailable(origErr) {
				code = http.StatusServiceUnavailable
				logger.Error(origErr.Error(), errors.Wrap(err, "logging in"))
			}
			message = origErr.Error()
		case *course.CascadeError:
			code = http.StatusInternalServerError
			message = echo.Map{"error": origErr.Error(), "failedCollections": origErr.Collections()}
			logger.Error(origErr.Error(), errors.Wrap(err, "cascading course delete"), getContextIdentity(ctx))
		default:
			if c, ok := classify(err); ok {
				code = c
				message = origErr.Error()
				if code == http.StatusServiceUnavailable {
					logger.Error(http.StatusText(code), err, getContextIdentity(ctx))
				}
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			logger.Error(msg, errors.Wrap(err, msg), getContextIdentity(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			if _, ok := message.(string); ok {
				message = err.Error()
			}
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
