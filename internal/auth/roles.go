package auth

// Role represents a portal user role.
type Role string

const (
	RoleParent Role = "parent"
	RoleAdmin  Role = "admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleParent, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleParent:
		return 1
	case RoleAdmin:
		return 2
	default:
		return 0
	}
}
