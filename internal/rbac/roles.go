package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner      = "owner"
	RoleOperator   = "operator"
	RoleAnalyst    = "analyst"
	RoleSuperAdmin = "super_admin"
)

// Role groups used by route registration.
var (
	// CampaignControl may start, pause, resume, and redial campaigns.
	CampaignControl = []string{RoleOwner, RoleOperator}
	// CampaignRead may view campaigns, analytics, and trigger call-log analysis.
	CampaignRead = []string{RoleOwner, RoleOperator, RoleAnalyst}
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// CanActFor reports whether a caller authenticated for tokenAccount may operate on requestAccount.
// Only super_admin crosses account boundaries.
func CanActFor(role, tokenAccount, requestAccount string) bool {
	if IsSuperAdmin(role) {
		return true
	}
	return tokenAccount != "" && tokenAccount == requestAccount
}
