package identity

import "strings"

// ParseRole validates a raw role string against the known roles.
func ParseRole(raw string) (AccountRole, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case RoleLearner:
		return RoleLearner, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// RoleIn reports membership of role in the allowed set.
func RoleIn(role AccountRole, allowed ...AccountRole) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}
