package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/router"
	"github.com/trezcool/eduspace/core/session"
	"github.com/trezcool/eduspace/core/user"
	"github.com/trezcool/eduspace/services/authprovider"
)

type (
	LoginRequest struct {
		Identifier string    `json:"identifier" validate:"required,notblank"`
		Secret     string    `json:"secret" validate:"required"`
		Role       user.Role `json:"role" validate:"omitempty,role"`
	}

	ProviderRequest struct {
		IDToken string `json:"idToken"`
	}

	// SessionResponse describes the session of a client context.
	// Token is only set when a (new) token was issued.
	SessionResponse struct {
		Token   string           `json:"token,omitempty"`
		Session *session.Session `json:"session"`
		Route   router.Route     `json:"route"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}
)

func newSessionResponse(token string, sess *session.Session) SessionResponse {
	return SessionResponse{Token: token, Session: sess, Route: router.ResolveLandingRoute(sess)}
}

type sessionApi struct {
	jwt      jwtConfig
	users    *user.Service
	sessions *session.Registry
	provider *authprovider.Firebase
	logger   core.Logger
}

func registerSessionAPI(g *echo.Group, authed []echo.MiddlewareFunc, jwt jwtConfig, deps ServerDeps) {
	api := sessionApi{
		jwt:      jwt,
		users:    deps.UserSvc,
		sessions: deps.Sessions,
		provider: deps.Provider,
		logger:   deps.Logger,
	}

	sg := g.Group("/session")

	// un-authed endpoints: they may start a new client context
	sg.POST("/login", api.login)
	if api.provider != nil {
		sg.POST("/provider", api.providerState)
	}

	// authed endpoints
	ag := sg.Group("", authed...)
	ag.GET("", api.retrieve)
	ag.GET("/route", api.route)
	ag.POST("/logout", api.logout)
	ag.POST("/token-refresh", api.refreshToken)
}

// openStore opens the store of the request's client context, or of a new one.
func (api *sessionApi) openStore(ctx echo.Context) (*session.Store, *Claims, error) {
	claims := api.jwt.requestClaims(ctx)
	if claims == nil {
		claims = api.jwt.NewClaims("")
	} else {
		claims = api.jwt.NewClaims(claims.ContextID(), claims.OrigIssuedAt)
	}
	store, err := api.sessions.Open(ctx.Request().Context(), claims.ContextID())
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening session store")
	}
	return store, claims, nil
}

// Handlers

func (api *sessionApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	data.Identifier = core.CleanString(data.Identifier)
	data.Role = user.Role(core.CleanString(string(data.Role), true /* lower */))
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	ident, err := api.users.Login(ctx.Request().Context(), data.Identifier, data.Secret, data.Role)
	if err != nil {
		return err
	}

	store, claims, err := api.openStore(ctx)
	if err != nil {
		return err
	}
	if err = store.Set(ctx.Request().Context(), session.Session{Identity: ident}); err != nil {
		return errors.Wrap(err, "setting session")
	}
	token, err := api.jwt.GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	sess, _ := store.Current()
	return ctx.JSON(http.StatusOK, newSessionResponse(token, &sess))
}

// providerState applies the auth provider's state: a verified ID token, or none (signed out).
func (api *sessionApi) providerState(ctx echo.Context) error {
	var data ProviderRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProviderRequest")
	}

	state, err := api.provider.State(ctx.Request().Context(), data.IDToken)
	if err != nil {
		return err
	}

	store, claims, err := api.openStore(ctx)
	if err != nil {
		return err
	}
	sess, ok, err := store.OnAuthStateChanged(ctx.Request().Context(), state.Principal)
	if err != nil {
		// the session is active in memory only; the client may still use it
		api.logger.Error("persisting provider session", errors.Wrap(err, "applying provider state"), sess.Identity)
	}
	token, err := api.jwt.GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	if !ok {
		return ctx.JSON(http.StatusOK, newSessionResponse(token, nil))
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(token, &sess))
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, newSessionResponse("", getContextSession(ctx)))
}

func (api *sessionApi) route(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"route": router.ResolveLandingRoute(getContextSession(ctx))})
}

func (api *sessionApi) logout(ctx echo.Context) error {
	store, err := getContextStore(ctx)
	if err != nil {
		return err
	}
	if err = store.Clear(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "clearing session")
	}
	return ctx.JSON(http.StatusOK, newSessionResponse("", nil))
}

func (api *sessionApi) refreshToken(ctx echo.Context) error {
	token, err := api.jwt.refresh(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}
