package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/eduspace/core/session"
	"github.com/trezcool/eduspace/core/user"
)

func sessionWithRole(role user.Role) *session.Session {
	return &session.Session{Identity: user.Identity{UID: "u1", Role: role}}
}

func TestResolveLandingRoute(t *testing.T) {
	tests := []struct {
		name string
		sess *session.Session
		want Route
	}{
		{name: "absent", sess: nil, want: RouteLogin},
		{name: "admin", sess: sessionWithRole(user.RoleAdmin), want: RouteAdmin},
		{name: "teacher", sess: sessionWithRole(user.RoleTeacher), want: RouteTeacher},
		{name: "student", sess: sessionWithRole(user.RoleStudent), want: RouteStudent},
		{name: "roleless", sess: sessionWithRole(""), want: RouteLogin},
		{name: "unknown role", sess: sessionWithRole("janitor"), want: RouteLogin},
		{name: "case sensitive", sess: sessionWithRole("Admin"), want: RouteLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveLandingRoute(tt.sess)
			assert.Equal(t, tt.want, got)
			// pure: repeated calls agree
			for i := 0; i < 3; i++ {
				assert.Equal(t, got, ResolveLandingRoute(tt.sess))
			}
		})
	}
}

func TestCanAccess(t *testing.T) {
	roleSets := [][]user.Role{
		nil,
		{user.RoleAdmin},
		{user.RoleTeacher, user.RoleStudent},
		user.AllRoles,
	}
	for _, roles := range roleSets {
		assert.False(t, CanAccess(nil, roles...), "absent session with %v", roles)
	}

	tests := []struct {
		name  string
		sess  *session.Session
		roles []user.Role
		want  bool
	}{
		{name: "role in set", sess: sessionWithRole(user.RoleTeacher), roles: []user.Role{user.RoleTeacher, user.RoleAdmin}, want: true},
		{name: "role not in set", sess: sessionWithRole(user.RoleStudent), roles: []user.Role{user.RoleAdmin}, want: false},
		{name: "empty set", sess: sessionWithRole(user.RoleAdmin), want: false},
		{name: "roleless", sess: sessionWithRole(""), roles: user.AllRoles, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccess(tt.sess, tt.roles...))
		})
	}
}

func TestGuard(t *testing.T) {
	tests := []struct {
		name         string
		sess         *session.Session
		roles        []user.Role
		wantRedirect Route
		wantAllowed  bool
	}{
		{name: "absent", sess: nil, roles: []user.Role{user.RoleAdmin}, wantRedirect: RouteLogin},
		{name: "absent on public route", sess: nil, wantRedirect: RouteLogin},
		{name: "wrong role", sess: sessionWithRole(user.RoleStudent), roles: []user.Role{user.RoleAdmin}, wantRedirect: RouteHome},
		{name: "roleless", sess: sessionWithRole(""), roles: []user.Role{user.RoleStudent}, wantRedirect: RouteHome},
		{name: "allowed", sess: sessionWithRole(user.RoleAdmin), roles: []user.Role{user.RoleAdmin}, wantAllowed: true},
		{name: "any session on ungated route", sess: sessionWithRole(""), wantAllowed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			redirect, allowed := Guard(tt.sess, tt.roles...)
			assert.Equal(t, tt.wantAllowed, allowed)
			assert.Equal(t, tt.wantRedirect, redirect)
		})
	}
}

func TestRequiredRoles(t *testing.T) {
	roles, ok := RequiredRoles(RouteTeacher)
	assert.True(t, ok)
	assert.Equal(t, []user.Role{user.RoleTeacher}, roles)

	roles, ok = RequiredRoles(RouteLogin)
	assert.True(t, ok)
	assert.Nil(t, roles)

	_, ok = RequiredRoles("/nope")
	assert.False(t, ok)
}
