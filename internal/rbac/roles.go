package rbac

// Role names as issued by the hosted auth provider. Keep these stable.
const (
	RoleAuthenticated = "authenticated"
	RoleService       = "service_role"
)

func IsServiceRole(role string) bool { return role == RoleService }
