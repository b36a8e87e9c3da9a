package server

import (
	"fmt"
	"net/http"
)

const (
	RolePublic    = "PUBLIC"
	RolePreAuth   = "PRE_AUTH"
	RoleUser      = "USER"
	RoleSuperUser = "SUPER_USER"
)

type AccessRule struct {
	Method string
	Path   string
	Roles  []string
}

// PRE_AUTH routes accept only the restricted token handed out while a
// two-factor challenge is pending. USER routes need a full access token.
var endpointAccess = []AccessRule{
	{Method: http.MethodGet, Path: "/health", Roles: []string{RolePublic}},
	{Method: http.MethodPost, Path: "/register", Roles: []string{RolePublic}},
	{Method: http.MethodPost, Path: "/login", Roles: []string{RolePublic}},
	{Method: http.MethodPost, Path: "/verify", Roles: []string{RolePublic}},
	{Method: http.MethodGet, Path: "/refresh-token", Roles: []string{RolePublic}},
	{Method: http.MethodPost, Path: "/forgot-password", Roles: []string{RolePublic}},
	{Method: http.MethodPost, Path: "/reset-password", Roles: []string{RolePublic}},
	{Method: http.MethodPost, Path: "/2fa/verify", Roles: []string{RolePublic}},
	{Method: http.MethodGet, Path: "/auth/google", Roles: []string{RolePublic}},
	{Method: http.MethodGet, Path: "/auth/google/callback", Roles: []string{RolePublic}},
	{Method: http.MethodGet, Path: "/auth/google/refresh-token", Roles: []string{RolePublic}},

	{Method: http.MethodPost, Path: "/2fa/validate", Roles: []string{RolePreAuth}},
	{Method: http.MethodPost, Path: "/2fa/validate-backup", Roles: []string{RolePreAuth}},

	{Method: http.MethodPost, Path: "/logout", Roles: []string{RoleUser, RoleSuperUser}},
	{Method: http.MethodGet, Path: "/profile", Roles: []string{RoleUser, RoleSuperUser}},
	{Method: http.MethodGet, Path: "/me", Roles: []string{RoleUser, RoleSuperUser}},
	{Method: http.MethodGet, Path: "/2fa/enable", Roles: []string{RoleUser, RoleSuperUser}},
	{Method: http.MethodPost, Path: "/2fa/disable", Roles: []string{RoleUser, RoleSuperUser}},
	{Method: http.MethodPost, Path: "/2fa/disable-2fa-send-otp", Roles: []string{RoleUser, RoleSuperUser}},
	{Method: http.MethodPost, Path: "/2fa/disable-2fa-verify-otp", Roles: []string{RoleUser, RoleSuperUser}},
	{Method: http.MethodPost, Path: "/2fa/regenerate-backup-codes-email", Roles: []string{RoleUser, RoleSuperUser}},
	{Method: http.MethodPost, Path: "/2fa/regenerate-backup-codes-google-send-otp", Roles: []string{RoleUser, RoleSuperUser}},
	{Method: http.MethodPost, Path: "/2fa/regenerate-backup-codes-google", Roles: []string{RoleUser, RoleSuperUser}},

	{Method: http.MethodGet, Path: "/admin/health", Roles: []string{RoleSuperUser}},
	{Method: http.MethodGet, Path: "/admin/users", Roles: []string{RoleSuperUser}},
	{Method: http.MethodGet, Path: "/admin/users/{id}", Roles: []string{RoleSuperUser}},
	{Method: http.MethodGet, Path: "/admin/users/{id}/audit", Roles: []string{RoleSuperUser}},
}

func accessRoles(method, path string) []string {
	for _, rule := range endpointAccess {
		if rule.Method == method && rule.Path == path {
			return rule.Roles
		}
	}
	panic(fmt.Sprintf("missing access roles for %s %s", method, path))
}

func roleAllowed(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func isPublicAccess(roles []string) bool {
	return roleAllowed(roles, RolePublic)
}
