package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/eduspace/apps/api/echo"
	"github.com/trezcool/eduspace/core/router"
	"github.com/trezcool/eduspace/core/user"
	inmemkv "github.com/trezcool/eduspace/storage/kv/inmem"
	testutil "github.com/trezcool/eduspace/tests"
)

func Test_sessionApi_login(t *testing.T) {
	app := setup(t)
	testutil.CreateProfile(t, app.store, "t1", "T100", "Ada", "Lovelace", "ada@school.com", "s3cret", user.RoleTeacher)
	testutil.CreateProfile(t, app.store, "s1", "S100", "Alan", "Turing", "alan@school.com", "pass123", user.RoleStudent)

	loginErr := func(msg string) []byte { return marshalObj(t, httpErr{Error: "Failed to login: " + msg}) }

	tests := []httpTest{
		{
			name: "identifier required", method: http.MethodPost, path: "/v1/session/login",
			body: echoapi.LoginRequest{Secret: "x"}, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"identifier": "this field is required"}),
		},
		{
			name: "unknown role", method: http.MethodPost, path: "/v1/session/login",
			body: echoapi.LoginRequest{Identifier: "T100", Secret: "s3cret", Role: "janitor"}, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"role": "role must be one of admin, teacher or student"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/session/login",
			body: echoapi.LoginRequest{Identifier: "X999", Secret: "s3cret"}, wantCode: http.StatusBadRequest,
			wantData: loginErr("User not found with this ID."),
		},
		{
			name: "role mismatch", method: http.MethodPost, path: "/v1/session/login",
			body: echoapi.LoginRequest{Identifier: "S100", Secret: "pass123", Role: user.RoleTeacher}, wantCode: http.StatusBadRequest,
			wantData: loginErr("This account is not registered as a teacher."),
		},
		{
			name: "wrong secret", method: http.MethodPost, path: "/v1/session/login",
			body: echoapi.LoginRequest{Identifier: "T100", Secret: "nope", Role: user.RoleTeacher}, wantCode: http.StatusBadRequest,
			wantData: loginErr("Incorrect password."),
		},
	}
	runHTTPTests(t, app, tests)

	t.Run("success", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/session/login", "", echoapi.LoginRequest{Identifier: "T100", Secret: "s3cret", Role: user.RoleTeacher})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "s3cret")

		var res echoapi.SessionResponse
		decode(t, rec, &res)
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, router.RouteTeacher, res.Route)
		require.NotNil(t, res.Session)
		assert.Equal(t, user.Identity{UID: "t1", DisplayName: "Ada Lovelace", Email: "ada@school.com", Role: user.RoleTeacher}, res.Session.Identity)
		assert.False(t, res.Session.EstablishedAt.IsZero())
	})

	t.Run("super admin", func(t *testing.T) {
		token := app.loginAdmin(t)
		rec := app.do(t, http.MethodGet, "/v1/session/route", token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"route": "/admin"}`, rec.Body.String())
	})
}

func Test_sessionApi_lifecycle(t *testing.T) {
	slots := inmemkv.New(0)
	app := setup(t, withSlots(slots))
	testutil.CreateProfile(t, app.store, "s1", "S100", "Alan", "Turing", "alan@school.com", "pass123", user.RoleStudent)
	testutil.CreateProfile(t, app.store, "t1", "T100", "Ada", "Lovelace", "ada@school.com", "s3cret", user.RoleTeacher)

	runHTTPTests(t, app, []httpTest{
		{name: "token required", path: "/v1/session", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "bad token", path: "/v1/session", token: "garbage", wantCode: http.StatusUnauthorized},
	})

	token := app.login(t, "S100", "pass123", "")

	var res echoapi.SessionResponse
	rec := app.do(t, http.MethodGet, "/v1/session", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &res)
	require.NotNil(t, res.Session)
	assert.Equal(t, "s1", res.Session.Identity.UID)
	assert.Equal(t, router.RouteStudent, res.Route)

	// a restarted server restores the session from the slots
	restarted := setup(t, withSlots(slots))
	rec = restarted.do(t, http.MethodGet, "/v1/session/route", token, nil)
	assert.JSONEq(t, `{"route": "/student"}`, rec.Body.String())

	// logging in again from the same client context replaces its session
	rec = app.do(t, http.MethodPost, "/v1/session/login", token, echoapi.LoginRequest{Identifier: "T100", Secret: "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodGet, "/v1/session/route", token, nil)
	assert.JSONEq(t, `{"route": "/teacher"}`, rec.Body.String())

	// logout destroys the session, the token stays usable as a client context
	rec = app.do(t, http.MethodPost, "/v1/session/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session": null, "route": "/login"}`, rec.Body.String())

	runHTTPTests(t, app, []httpTest{
		{name: "no session", path: "/v1/session/route", token: token, wantCode: http.StatusOK, wantData: []byte(`{"route": "/login"}`)},
		{
			name: "dashboard redirects to login", path: "/v1/teacher/courses", token: token, wantCode: http.StatusUnauthorized,
			wantData: []byte(`{"error": "not logged in", "redirect": "/login"}`),
		},
	})
	rec = restarted.do(t, http.MethodGet, "/v1/session/route", token, nil)
	assert.JSONEq(t, `{"route": "/login"}`, rec.Body.String())
}

func Test_sessionApi_provider(t *testing.T) {
	app := setup(t)
	testutil.CreateProfile(t, app.store, "t1", "T100", "Ada", "Lovelace", "ada@school.com", "s3cret", user.RoleTeacher)

	provider := func(token, idToken string) (int, echoapi.SessionResponse) {
		rec := app.do(t, http.MethodPost, "/v1/session/provider", token, echoapi.ProviderRequest{IDToken: idToken})
		var res echoapi.SessionResponse
		if rec.Code == http.StatusOK {
			decode(t, rec, &res)
		}
		return rec.Code, res
	}

	t.Run("signed out without persisted session", func(t *testing.T) {
		code, res := provider("", "")
		require.Equal(t, http.StatusOK, code)
		assert.Nil(t, res.Session)
		assert.Equal(t, router.RouteLogin, res.Route)
		assert.NotEmpty(t, res.Token)
	})

	t.Run("rejected token", func(t *testing.T) {
		code, _ := provider("", "forged")
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("known principal", func(t *testing.T) {
		code, res := provider("", "token-t1")
		require.Equal(t, http.StatusOK, code)
		require.NotNil(t, res.Session)
		assert.Equal(t, user.RoleTeacher, res.Session.Identity.Role)
		assert.Equal(t, "ada@school.com", res.Session.Identity.Email)
		assert.Equal(t, router.RouteTeacher, res.Route)

		// signed out later: the persisted session of the context stays active
		code, res = provider(res.Token, "")
		require.Equal(t, http.StatusOK, code)
		require.NotNil(t, res.Session)
		assert.Equal(t, "t1", res.Session.Identity.UID)
	})

	t.Run("principal without profile", func(t *testing.T) {
		code, res := provider("", "token-ghost")
		require.Equal(t, http.StatusOK, code)
		require.NotNil(t, res.Session)
		assert.Equal(t, user.Identity{UID: "ghost", Email: "ghost@provider.test"}, res.Session.Identity)
		assert.Equal(t, router.RouteLogin, res.Route)
	})
}

func Test_sessionApi_refreshToken(t *testing.T) {
	app := setup(t)
	testutil.CreateProfile(t, app.store, "s1", "S100", "Alan", "Turing", "alan@school.com", "pass123", user.RoleStudent)
	token := app.login(t, "S100", "pass123", user.RoleStudent)

	rec := app.do(t, http.MethodPost, "/v1/session/token-refresh", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res echoapi.TokenResponse
	decode(t, rec, &res)
	require.NotEmpty(t, res.Token)

	// same client context, same session
	rec = app.do(t, http.MethodGet, "/v1/session/route", res.Token, nil)
	assert.JSONEq(t, `{"route": "/student"}`, rec.Body.String())
}
