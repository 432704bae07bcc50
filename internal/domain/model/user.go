package model

import (
	"strings"
	"time"
)

// Role is the coarse permission level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleDev   Role = "dev"
	RoleUser  Role = "user"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleDev, RoleUser}

func (r Role) Valid() bool {
	for _, v := range Roles {
		if v == r {
			return true
		}
	}
	return false
}

// SSHKey is a public key a user may push with.
type SSHKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PublicKey string    `json:"publicKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// DirName is the single path element the key is stored under in the
// hosting keydir. Names that sanitize to nothing use the key id.
func (k SSHKey) DirName() string {
	if name := keyDirName(k.Name); name != "" {
		return name
	}
	return k.ID
}

func keyDirName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.', r == '@':
			return r
		}
		return '-'
	}, strings.TrimSpace(name))
	return strings.Trim(name, ".")
}

// User is a person who can sign in and, depending on role, deploy.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashedPassword,omitempty"`
	Role           Role      `json:"role"`
	Apps           []string  `json:"apps"`
	SSHKeys        []SSHKey  `json:"sshKeys"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MayAccess is the access grant: admins reach every app, everybody else
// only the apps listed on them. Every enforcement point uses this method.
func (u *User) MayAccess(folderName string) bool {
	if u == nil {
		return false
	}
	if u.Role == RoleAdmin {
		return true
	}
	for _, app := range u.Apps {
		if app == folderName {
			return true
		}
	}
	return false
}

// CanPush reports whether the user's keys belong in the hosting keydir.
func (u *User) CanPush() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleDev)
}

// CanDeploy reports whether the user may create and redeploy apps.
func (u *User) CanDeploy() bool {
	return u.CanPush()
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// KeyByName returns the key named name, if any. Names that land in the
// same keydir directory count as the same name.
func (u *User) KeyByName(name string) (SSHKey, bool) {
	dir := keyDirName(name)
	for _, k := range u.SSHKeys {
		if strings.EqualFold(k.Name, name) {
			return k, true
		}
		if dir != "" && strings.EqualFold(keyDirName(k.Name), dir) {
			return k, true
		}
	}
	return SSHKey{}, false
}

// Public returns a copy without the password hash.
func (u User) Public() User {
	u.HashedPassword = ""
	return u
}

// GrantApp adds folderName to the user's apps and reports whether it changed.
func (u *User) GrantApp(folderName string) bool {
	for _, app := range u.Apps {
		if app == folderName {
			return false
		}
	}
	u.Apps = append(u.Apps, folderName)
	return true
}

// RevokeApp removes folderName from the user's apps and reports whether it changed.
func (u *User) RevokeApp(folderName string) bool {
	kept := u.Apps[:0]
	removed := false
	for _, app := range u.Apps {
		if app == folderName {
			removed = true
			continue
		}
		kept = append(kept, app)
	}
	u.Apps = kept
	return removed
}

// UserUpdate holds the fields to change on a user. Nil fields are left as is.
type UserUpdate struct {
	Username *string
	Email    *string
	Password *string
	Role     *Role
	Apps     *[]string
}
