package model

// Principal types carried in token claims and locals
const (
	PrincipalTypeTeacher = "teacher"
	PrincipalTypeStudent = "student"
	PrincipalTypeSystem  = "system"
)

// Common principal status values
const (
	PrincipalStatusActive   = "active"
	PrincipalStatusDisabled = "disabled"
)

// System user roles
const (
	RoleAdmin    = "admin"
	RoleSupport  = "support"
	RoleOperator = "operator"
	RoleTeacher  = "teacher"
	RoleStudent  = "student"
)

// Principal is an immutable snapshot of an authenticated identity, taken at
// login or token validation. Handlers work against this instead of the three
// concrete account tables.
type Principal struct {
	ID           uint     `json:"id"`
	Type         string   `json:"type"` // teacher, student, system
	TenantID     *uint    `json:"tenant_id,omitempty"`
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Permissions  []string `json:"permissions"`
	TokenVersion int      `json:"-"`
	Status       string   `json:"-"`
}

// IsGlobal reports whether the principal operates across all tenants
func (p Principal) IsGlobal() bool {
	return p.Type == PrincipalTypeSystem && p.TenantID == nil
}

// IsActive reports whether the account may authenticate
func (p Principal) IsActive() bool {
	return p.Status == PrincipalStatusActive
}

// HasPermission checks the permission list for an exact entry
func (p Principal) HasPermission(perm string) bool {
	for _, granted := range p.Permissions {
		if granted == perm {
			return true
		}
	}
	return false
}

// RolePermissions maps role labels to their implied permission sets.
// System users carry explicit permissions on top of these.
func RolePermissions(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{
			"tenants:read", "tenants:write",
			"institutes:read", "institutes:write",
			"teachers:read", "teachers:write",
			"students:read", "students:write",
			"system_users:read", "system_users:write",
			"courses:read", "courses:write",
			"videos:read", "videos:write",
			"audit_logs:read",
		}
	case RoleSupport:
		return []string{
			"tenants:read", "institutes:read", "teachers:read",
			"students:read", "courses:read", "videos:read",
		}
	case RoleOperator:
		return []string{
			"institutes:read", "institutes:write",
			"teachers:read", "teachers:write",
			"students:read", "students:write",
			"courses:read", "courses:write",
			"videos:read", "videos:write",
		}
	case RoleTeacher:
		return []string{
			"students:read",
			"courses:read", "courses:write",
			"videos:read", "videos:write",
		}
	case RoleStudent:
		return []string{"courses:read", "videos:read"}
	default:
		return nil
	}
}
