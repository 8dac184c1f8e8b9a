package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core/router"
	"github.com/trezcool/eduspace/core/session"
	"github.com/trezcool/eduspace/core/user"
)

var contextStoreKey = "sessionStore"

// sessionMiddleware opens the session store of the client context named by the JWT.
func sessionMiddleware(sessions *session.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			store, err := sessions.Open(ctx.Request().Context(), claims.ContextID())
			if err != nil {
				return errors.Wrap(err, "opening session store")
			}
			ctx.Set(contextStoreKey, store)
			return next(ctx)
		}
	}
}

// roleMiddleware gates a group of dashboard routes.
// Refusals carry the route the client should go to instead.
func roleMiddleware(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			redirect, allowed := router.Guard(getContextSession(ctx), roles...)
			if allowed {
				return next(ctx)
			}
			if redirect == router.RouteLogin {
				return echo.NewHTTPError(http.StatusUnauthorized, echo.Map{"error": "not logged in", "redirect": redirect})
			}
			return echo.NewHTTPError(http.StatusForbidden, echo.Map{"error": "permission denied", "redirect": redirect})
		}
	}
}

func getContextStore(ctx echo.Context) (*session.Store, error) {
	if store, ok := ctx.Get(contextStoreKey).(*session.Store); ok {
		return store, nil
	}
	return nil, errUnauthorized
}

// getContextSession returns the active session of the request's client context, or nil.
func getContextSession(ctx echo.Context) *session.Session {
	store, err := getContextStore(ctx)
	if err != nil {
		return nil
	}
	if sess, ok := store.Current(); ok {
		return &sess
	}
	return nil
}

// getContextIdentity returns the identity of a gated request.
func getContextIdentity(ctx echo.Context) user.Identity {
	if sess := getContextSession(ctx); sess != nil {
		return sess.Identity
	}
	return user.Identity{}
}
