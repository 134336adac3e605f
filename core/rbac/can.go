package rbac

import "admin-console/core/session"

// Requirement is a call-site gate. A nil *Requirement means "open".
type Requirement struct {
	AnyRole       []string    `json:"anyRole,omitempty"`
	AllRoles      []string    `json:"allRoles,omitempty"`
	AnyPermission [][2]string `json:"anyPerm,omitempty"`
}

// Can is the UI/route gate. It is not a security boundary: the GraphQL API
// enforces authorization on every call.
func Can(sess *session.Session, req *Requirement) bool {
	if req == nil {
		return true
	}
	role := roleOf(sess)
	if role == "" {
		return false
	}
	for _, r := range req.AnyRole {
		if r == role {
			return true
		}
	}
	// A present but empty AllRoles is vacuously satisfied; only nil skips it.
	if req.AllRoles != nil {
		all := true
		for _, r := range req.AllRoles {
			if r != role {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	if len(req.AnyPermission) > 0 {
		perms := Normalize(sess.User.Permissions)
		for _, pair := range req.AnyPermission {
			if perms.Has(pair[0], pair[1]) {
				return true
			}
		}
	}
	return false
}

func HasRole(sess *session.Session, roles ...string) bool {
	role := roleOf(sess)
	if role == "" {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func HasPermission(sess *session.Session, module string, actions ...string) bool {
	if sess == nil || sess.User == nil {
		return false
	}
	perms := Normalize(sess.User.Permissions)
	for _, a := range actions {
		if perms.Has(module, a) {
			return true
		}
	}
	return false
}

func roleOf(sess *session.Session) string {
	if sess == nil || sess.User == nil {
		return ""
	}
	return sess.User.Role
}

// AdminArea gates the /admin section of the console.
var AdminArea = &Requirement{
	AnyRole:       []string{string(RoleAdmin), string(RoleDeveloper)},
	AnyPermission: [][2]string{{"role", "read"}, {"user", "read"}},
}
