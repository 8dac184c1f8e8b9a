package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/eduspace/apps/api/echo"
	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/attendance"
	"github.com/trezcool/eduspace/core/content"
	"github.com/trezcool/eduspace/core/course"
	"github.com/trezcool/eduspace/core/docstore"
	"github.com/trezcool/eduspace/core/enrollment"
	"github.com/trezcool/eduspace/core/exam"
	"github.com/trezcool/eduspace/core/session"
	"github.com/trezcool/eduspace/core/user"
	"github.com/trezcool/eduspace/services/authprovider"
	"github.com/trezcool/eduspace/services/email"
	inmemdocstore "github.com/trezcool/eduspace/storage/docstore/inmem"
	inmemkv "github.com/trezcool/eduspace/storage/kv/inmem"
	testutil "github.com/trezcool/eduspace/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantData []byte
}

// verifierFunc stands in for the Firebase Auth client: "token-<uid>" verifies as uid.
type verifierFunc func(ctx context.Context, idToken string) (*auth.Token, error)

func (f verifierFunc) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	return f(ctx, idToken)
}

var fakeVerifier = verifierFunc(func(_ context.Context, idToken string) (*auth.Token, error) {
	const prefix = "token-"
	if len(idToken) <= len(prefix) || idToken[:len(prefix)] != prefix {
		return nil, errors.New("ID token has invalid signature")
	}
	uid := idToken[len(prefix):]
	return &auth.Token{UID: uid, Claims: map[string]interface{}{"email": uid + "@provider.test"}}, nil
})

type testApp struct {
	server echoapi.Server
	store  docstore.Store
	mem    *inmemdocstore.Store
	slots  *inmemkv.Slots
	logger *testutil.Logger
}

type setupOption func(app *testApp)

// withStore puts store in front of the in-memory backend (e.g. a testutil.FailingStore).
func withStore(wrap func(docstore.Store) docstore.Store) setupOption {
	return func(app *testApp) { app.store = wrap(app.mem) }
}

// withSlots shares session slots between apps, as a restarted server would.
func withSlots(slots *inmemkv.Slots) setupOption {
	return func(app *testApp) { app.slots = slots }
}

func setup(t *testing.T, opts ...setupOption) *testApp {
	t.Helper()
	mem := inmemdocstore.New()
	app := &testApp{
		store:  mem,
		mem:    mem,
		slots:  inmemkv.New(0),
		logger: testutil.NewLogger(t),
	}
	for _, opt := range opts {
		opt(app)
	}

	conf := core.NewTestConfig()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, app.logger)
	usrSvc := user.NewService(app.store, mailSvc, conf)
	courseSvc := course.NewService(app.store)
	enrollmentSvc := enrollment.NewService(app.store, courseSvc)

	app.server = echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         app.logger,
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		CourseSvc:      courseSvc,
		EnrollmentSvc:  enrollmentSvc,
		AttendanceSvc:  attendance.NewService(app.store),
		ExamSvc:        exam.NewService(app.store),
		ContentSvc:     content.NewService(app.store, courseSvc, enrollmentSvc),
		Sessions:       session.NewRegistry(app.slots, usrSvc),
		Provider:       authprovider.NewFirebase(fakeVerifier),
	})
	return app
}

func newAuthRequest(t *testing.T, method, path, token string, data interface{}) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if data != nil {
		body.Write(marshalObj(t, data))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func (app *testApp) do(t *testing.T, method, path, token string, data interface{}) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(t, method, path, token, data)
	app.server.ServeHTTP(rec, req)
	return rec
}

// login logs a profile in through the API and returns the token of its new client context.
func (app *testApp) login(t *testing.T, identifier, secret string, role user.Role) string {
	rec := app.do(t, http.MethodPost, "/v1/session/login", "", echoapi.LoginRequest{Identifier: identifier, Secret: secret, Role: role})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res echoapi.SessionResponse
	decode(t, rec, &res)
	require.NotEmpty(t, res.Token)
	return res.Token
}

func (app *testApp) loginAdmin(t *testing.T) string {
	conf := core.NewTestConfig()
	return app.login(t, conf.SuperAdmin.Email, conf.SuperAdmin.Password, user.RoleAdmin)
}

func (app *testApp) createCourse(t *testing.T, nc course.NewCourse) course.Course {
	c, err := course.NewService(app.mem).Create(context.Background(), nc)
	require.NoError(t, err)
	return c
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.do(t, method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
