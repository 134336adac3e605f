package authflow

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"admin-console/core/rbac"
)

// RoleFromToken reads the roles claim without verifying the signature. The
// result is only a fallback for display gating; the server re-checks every call.
func RoleFromToken(token string) rbac.RoleName {
	roles, err := ClaimedRoles(token)
	if err != nil {
		return rbac.RoleUser
	}
	return rbac.PickRole(roles)
}

func ClaimedRoles(token string) ([]string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	raw, ok := claims["roles"]
	if !ok {
		return nil, nil
	}
	switch v := raw.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, nil
	case []string:
		return v, nil
	default:
		return nil, nil
	}
}
