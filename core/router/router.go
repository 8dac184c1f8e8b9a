// Package router maps sessions to dashboards and gates routes by role.
// Every function here is pure.
package router

import (
	"github.com/trezcool/eduspace/core/session"
	"github.com/trezcool/eduspace/core/user"
)

type Route string

// Routes
const (
	RouteLogin   Route = "/login"
	RouteHome    Route = "/"
	RouteAdmin   Route = "/admin"
	RouteTeacher Route = "/teacher"
	RouteStudent Route = "/student"
)

// RouteSpec is an entry of the route table. A nil Roles means public.
type RouteSpec struct {
	Route Route       `json:"route"`
	Roles []user.Role `json:"roles"`
}

// Table lists every route with the roles it requires.
var Table = []RouteSpec{
	{Route: RouteLogin},
	{Route: RouteHome},
	{Route: RouteAdmin, Roles: []user.Role{user.RoleAdmin}},
	{Route: RouteTeacher, Roles: []user.Role{user.RoleTeacher}},
	{Route: RouteStudent, Roles: []user.Role{user.RoleStudent}},
}

var dashboards = map[user.Role]Route{
	user.RoleAdmin:   RouteAdmin,
	user.RoleTeacher: RouteTeacher,
	user.RoleStudent: RouteStudent,
}

// ResolveLandingRoute returns the dashboard of the session's role, or the login route
// for an absent session and for any unrecognized role.
func ResolveLandingRoute(sess *session.Session) Route {
	if sess == nil {
		return RouteLogin
	}
	if route, ok := dashboards[sess.Identity.Role]; ok {
		return route
	}
	return RouteLogin
}

// CanAccess reports whether the session holds one of roles. An absent session never can.
func CanAccess(sess *session.Session, roles ...user.Role) bool {
	if sess == nil {
		return false
	}
	for _, role := range roles {
		if sess.Identity.Role == role {
			return true
		}
	}
	return false
}

// Guard decides whether a route requiring roles may be entered.
// When it may not, redirect is the login route for an absent session and home otherwise.
func Guard(sess *session.Session, roles ...user.Role) (redirect Route, allowed bool) {
	if sess == nil {
		return RouteLogin, false
	}
	if len(roles) > 0 && !CanAccess(sess, roles...) {
		return RouteHome, false
	}
	return "", true
}

// RequiredRoles returns the roles required by route, and false for unknown routes.
func RequiredRoles(route Route) ([]user.Role, bool) {
	for _, entry := range Table {
		if entry.Route == route {
			return entry.Roles, true
		}
	}
	return nil, false
}
