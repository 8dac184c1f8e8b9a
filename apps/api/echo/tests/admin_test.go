package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eduspace/core/content"
	"github.com/trezcool/eduspace/core/course"
	"github.com/trezcool/eduspace/core/docstore"
	"github.com/trezcool/eduspace/core/user"
	testutil "github.com/trezcool/eduspace/tests"
)

func intPtr(i int) *int { return &i }

func Test_adminApi_roleGate(t *testing.T) {
	app := setup(t)
	testutil.CreateProfile(t, app.store, "s1", "S100", "Alan", "Turing", "alan@school.com", "pass123", user.RoleStudent)
	testutil.CreateProfile(t, app.store, "r1", "R100", "Rolf", "Less", "", "pass123", "")
	student := app.login(t, "S100", "pass123", "")
	roleless := app.login(t, "R100", "pass123", "")

	forbidden := []byte(`{"error": "permission denied", "redirect": "/"}`)
	runHTTPTests(t, app, []httpTest{
		{name: "auth required", path: "/v1/admin/courses", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "student", path: "/v1/admin/courses", token: student, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "roleless", path: "/v1/admin/users", token: roleless, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "admin", path: "/v1/admin/courses", token: app.loginAdmin(t), wantCode: http.StatusOK, wantData: []byte(`[]`)},
	})
}

func Test_adminApi_courses(t *testing.T) {
	app := setup(t)
	admin := app.loginAdmin(t)

	rec := app.do(t, http.MethodPost, "/v1/admin/courses", admin, course.NewCourse{
		ID: "MATH1", Title: "Algebra", Category: "Math", AssignedTeacherID: "t1", AvailableSeats: intPtr(30),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var algebra course.Course
	decode(t, rec, &algebra)
	assert.Equal(t, "MATH1", algebra.ID)

	app.createCourse(t, course.NewCourse{ID: "LIT1", Title: "Poetry", Category: "Literature"})

	runHTTPTests(t, app, []httpTest{
		{
			name: "create invalid", method: http.MethodPost, path: "/v1/admin/courses", token: admin,
			body: course.NewCourse{Title: "Geometry", AvailableSeats: intPtr(-1)}, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"id":             "this field is required",
				"category":       "this field is required",
				"availableSeats": "availableSeats must be 0 or greater",
			}),
		},
		{name: "retrieve", path: "/v1/admin/courses/MATH1", token: admin, wantCode: http.StatusOK, wantData: marshalObj(t, algebra)},
		{name: "retrieve unknown", path: "/v1/admin/courses/NOPE", token: admin, wantCode: http.StatusNotFound, wantData: []byte(`{"error": "course not found"}`)},
		{name: "categories", path: "/v1/admin/courses/categories", token: admin, wantCode: http.StatusOK, wantData: []byte(`["Literature", "Math"]`)},
	})

	t.Run("filter by category", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/v1/admin/courses?category=Math", admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var courses []course.Course
		decode(t, rec, &courses)
		require.Len(t, courses, 1)
		assert.Equal(t, "Algebra", courses[0].Title)
	})

	t.Run("update", func(t *testing.T) {
		rec := app.do(t, http.MethodPut, "/v1/admin/courses/LIT1", admin, course.UpdateCourse{
			Title: "Modern Poetry", Category: "Literature", TeacherName: "Grace Hopper",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		c, err := course.NewService(app.mem).Get(context.Background(), "LIT1")
		require.NoError(t, err)
		assert.Equal(t, "Modern Poetry", c.Title)
		assert.Equal(t, "Grace Hopper", c.TeacherName)
	})

	t.Run("cascade delete", func(t *testing.T) {
		testutil.SeedDoc(t, app.store, docstore.Content, "", docstore.Fields{"ID": "MATH1", "CourseTitle": "Algebra"})
		testutil.SeedDoc(t, app.store, docstore.Quizzes, "", docstore.Fields{"CourseTitle": "Algebra"})
		testutil.SeedDoc(t, app.store, docstore.RegisteredCourse, "", docstore.Fields{"courseTitle": "Algebra", "uid": "s1"})
		testutil.SeedDoc(t, app.store, docstore.RegisteredCourse, "", docstore.Fields{"courseTitle": "Modern Poetry", "uid": "s1"})

		rec := app.do(t, http.MethodDelete, "/v1/admin/courses/MATH1", admin, nil)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		assert.Equal(t, 0, app.mem.Len(docstore.Content))
		assert.Equal(t, 0, app.mem.Len(docstore.Quizzes))
		assert.Equal(t, 1, app.mem.Len(docstore.RegisteredCourse))
		assert.Equal(t, 1, app.mem.Len(docstore.Courses))

		rec = app.do(t, http.MethodDelete, "/v1/admin/courses/MATH1", admin, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_adminApi_partialCascade(t *testing.T) {
	app := setup(t, withStore(func(store docstore.Store) docstore.Store {
		return testutil.NewFailingStore(store, "delete", docstore.Quizzes)
	}))
	admin := app.loginAdmin(t)
	app.createCourse(t, course.NewCourse{ID: "MATH1", Title: "Algebra", Category: "Math"})
	testutil.SeedDoc(t, app.mem, docstore.Quizzes, "q1", docstore.Fields{"ID": "MATH1", "CourseTitle": "Algebra"})
	testutil.SeedDoc(t, app.mem, docstore.Content, "c1", docstore.Fields{"ID": "MATH1", "CourseTitle": "Algebra"})

	rec := app.do(t, http.MethodDelete, "/v1/admin/courses/MATH1", admin, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var res struct {
		Error             string   `json:"error"`
		FailedCollections []string `json:"failedCollections"`
	}
	decode(t, rec, &res)
	assert.Equal(t, []string{docstore.Quizzes}, res.FailedCollections)
	assert.Equal(t, 0, app.mem.Len(docstore.Courses), "the course stays deleted")
	assert.Equal(t, 0, app.mem.Len(docstore.Content))
	assert.Equal(t, 1, app.mem.Len(docstore.Quizzes))
	assert.Equal(t, 1, app.logger.ErrorCount())
}

func Test_adminApi_unavailable(t *testing.T) {
	app := setup(t, withStore(func(store docstore.Store) docstore.Store {
		return testutil.NewFailingStore(store, "list", docstore.Courses)
	}))
	rec := app.do(t, http.MethodGet, "/v1/admin/courses", app.loginAdmin(t), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 1, app.logger.ErrorCount())
}

func Test_adminApi_users(t *testing.T) {
	app := setup(t)
	admin := app.loginAdmin(t)
	testutil.CreateProfile(t, app.store, "s1", "S100", "Alan", "Turing", "alan@school.com", "pass123", user.RoleStudent)
	app.createCourse(t, course.NewCourse{ID: "MATH1", Title: "Algebra", Category: "Math"})
	testutil.SeedDoc(t, app.store, docstore.RegisteredCourse, "", docstore.Fields{"courseTitle": "Algebra", "courseId": "MATH1", "uid": "s1"})
	testutil.SeedDoc(t, app.store, docstore.RegisteredCourse, "", docstore.Fields{"courseTitle": "Algebra", "courseId": "MATH1", "uid": "s2"})

	t.Run("create", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/admin/users", admin, user.NewProfile{
			LoginID: "T200", FirstName: "Grace", LastName: "Hopper", Email: "grace@school.com",
			Role: user.RoleTeacher, Password: "C0b0l!59", PasswordConfirm: "C0b0l!59",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "C0b0l!59")

		// the new account can log in right away
		app.login(t, "T200", "C0b0l!59", user.RoleTeacher)
	})

	runHTTPTests(t, app, []httpTest{
		{
			name: "create duplicate", method: http.MethodPost, path: "/v1/admin/users", token: admin,
			body: user.NewProfile{
				LoginID: "S100", FirstName: "Alan", Role: user.RoleStudent, Password: "Enigma#39", PasswordConfirm: "Enigma#39",
			},
			wantCode: http.StatusBadRequest, wantData: []byte(`{"id": "a user with this id already exists"}`),
		},
		{name: "retrieve unknown", path: "/v1/admin/users/nope", token: admin, wantCode: http.StatusNotFound},
		{name: "roles", path: "/v1/admin/users/roles", token: admin, wantCode: http.StatusOK, wantData: []byte(`["admin", "teacher", "student"]`)},
		{
			name: "delete self", method: http.MethodDelete, path: "/v1/admin/users/" + user.SuperAdminUID, token: admin,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"uid": "you cannot delete your own account"}`),
		},
	})

	t.Run("filter by role", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/v1/admin/users?role=student", admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var profs []user.Profile
		decode(t, rec, &profs)
		require.Len(t, profs, 1)
		assert.Equal(t, "S100", profs[0].LoginID)
	})

	t.Run("delete student", func(t *testing.T) {
		rec := app.do(t, http.MethodDelete, "/v1/admin/users/s1", admin, nil)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		_, err := app.mem.Get(context.Background(), docstore.Users, "s1")
		assert.True(t, docstore.IsNotFound(err))
		assert.Equal(t, 1, app.mem.Len(docstore.RegisteredCourse), "only the deleted student's enrollments go")
	})
}

func Test_adminApi_content(t *testing.T) {
	app := setup(t)
	admin := app.loginAdmin(t)
	app.createCourse(t, course.NewCourse{ID: "MATH1", Title: "Algebra", Category: "Math"})

	rec := app.do(t, http.MethodPost, "/v1/admin/content", admin, content.NewItem{
		CourseID: "MATH1", Type: content.TypeVideo, Link: "https://youtu.be/abc", Number: "1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item content.Item
	decode(t, rec, &item)
	assert.Equal(t, docstore.Content, item.Collection)
	assert.Equal(t, user.SuperAdminUID, item.UploadedBy)

	runHTTPTests(t, app, []httpTest{
		{
			name: "create invalid", method: http.MethodPost, path: "/v1/admin/content", token: admin,
			body: content.NewItem{CourseID: "MATH1", Type: "podcast", Link: "https://x.io"}, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"type": "type must be one of video, note or assignment"}`),
		},
		{
			name: "create for unknown course", method: http.MethodPost, path: "/v1/admin/content", token: admin,
			body: content.NewItem{CourseID: "NOPE", Type: content.TypeNote, Link: "https://x.io"}, wantCode: http.StatusNotFound,
		},
		{
			name: "delete outside the library", method: http.MethodDelete, path: "/v1/admin/content/Users/s1", token: admin,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"error": "not a content collection"}`),
		},
		{
			name: "delete", method: http.MethodDelete, path: "/v1/admin/content/Content/" + item.ID, token: admin,
			wantCode: http.StatusNoContent,
		},
		{name: "library", path: "/v1/admin/content", token: admin, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	})
}
