package user

import (
	"strings"
	"time"

	"github.com/trezcool/eduspace/core"
)

// Roles
const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// the super-admin exists only in configuration
const (
	SuperAdminUID       = "admin-hardcoded-id"
	superAdminFirstName = "Super"
	superAdminLastName  = "Admin"
)

var AllRoles = []Role{RoleAdmin, RoleTeacher, RoleStudent}

type Role string

func (r Role) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Identity is a resolved, authenticated principal.
// Secret holds the raw secret the identity logged in with; it is never serialized.
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	Secret      string `json:"-"`
}

func (i Identity) IsAdmin() bool   { return i.Role == RoleAdmin }
func (i Identity) IsTeacher() bool { return i.Role == RoleTeacher }
func (i Identity) IsStudent() bool { return i.Role == RoleStudent }

// Profile is a `Users` document. The document id is the uid; LoginID is what users type to log in.
type Profile struct {
	UID       string    `json:"uid" doc:",id"`
	LoginID   string    `json:"id" doc:"id" validate:"required"`
	FirstName string    `json:"firstname" doc:"firstname"`
	LastName  string    `json:"lastname" doc:"lastname"`
	Email     string    `json:"email" doc:"email"`
	Role      Role      `json:"role" doc:"role"`
	Password  string    `json:"-" doc:"password"`
	CreatedAt time.Time `json:"createdAt" doc:"createdAt,omitempty"`
}

func (p Profile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p Profile) Identity() Identity {
	return Identity{
		UID:         p.UID,
		DisplayName: p.DisplayName(),
		Email:       p.Email,
		Role:        p.Role,
	}
}

// NewProfile contains information needed to create a new Profile.
type NewProfile struct {
	LoginID         string `json:"id" validate:"required,notblank,alphanum_"`
	FirstName       string `json:"firstname" validate:"required,notblank"`
	LastName        string `json:"lastname"`
	Email           string `json:"email" validate:"omitempty,email"`
	Role            Role   `json:"role" validate:"required,role"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (np *NewProfile) clean() {
	np.LoginID = core.CleanString(np.LoginID)
	np.FirstName = core.CleanString(np.FirstName)
	np.LastName = core.CleanString(np.LastName)
	np.Email = core.CleanString(np.Email, true /* lower */)
	np.Role = Role(core.CleanString(string(np.Role), true /* lower */))
}

// UpdateProfile defines what information may be provided to modify an existing Profile.
type UpdateProfile struct {
	FirstName       string `json:"firstname"`
	LastName        string `json:"lastname"`
	Email           string `json:"email" validate:"omitempty,email"`
	Role            Role   `json:"role" validate:"omitempty,role"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (up *UpdateProfile) clean(orig Profile) {
	if name := core.CleanString(up.FirstName); name != "" {
		up.FirstName = name
	} else {
		up.FirstName = orig.FirstName
	}
	if name := core.CleanString(up.LastName); name != "" {
		up.LastName = name
	} else {
		up.LastName = orig.LastName
	}
	if email := core.CleanString(up.Email, true /* lower */); email != "" {
		up.Email = email
	} else {
		up.Email = orig.Email
	}
	if role := Role(core.CleanString(string(up.Role), true /* lower */)); role != "" {
		up.Role = role
	} else {
		up.Role = orig.Role
	}
}

type QueryFilter struct {
	Search string `query:"search"`
	Role   Role   `query:"role"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search, true /* lower */)
	qf.Role = Role(core.CleanString(string(qf.Role), true /* lower */))
}

func (qf QueryFilter) match(p Profile) bool {
	if qf.Search == "" {
		return true
	}
	for _, attr := range []string{p.LoginID, p.FirstName, p.LastName, p.Email} {
		if strings.Contains(strings.ToLower(attr), qf.Search) {
			return true
		}
	}
	return false
}
