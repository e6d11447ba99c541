package auth

import "github.com/tasave/tasave-go/internal/model"

// Action is a privileged operation gated by the permission table.
type Action string

const (
	ActionUploadMachine   Action = "UPLOAD_MACHINE"
	ActionDeleteMachine   Action = "DELETE_MACHINE"
	ActionModerateReviews Action = "MODERATE_REVIEWS"
	ActionManageUsers     Action = "MANAGE_USERS"
)

// permissions maps each privileged action to the roles allowed to perform
// it. This allow-list is authoritative: authorization is set membership,
// not a rank comparison. The role hierarchy (user < contributor < admin)
// holds for every entry below, but nothing forces a future action to keep
// it — an admin-only action that skips contributor stays expressible.
var permissions = map[Action][]model.Role{
	ActionUploadMachine:   {model.RoleContributor, model.RoleAdmin},
	ActionDeleteMachine:   {model.RoleAdmin},
	ActionModerateReviews: {model.RoleAdmin},
	ActionManageUsers:     {model.RoleAdmin},
}

// HasPermission reports whether role may perform action.
// Unknown actions grant nothing.
func HasPermission(role model.Role, action Action) bool {
	for _, allowed := range permissions[action] {
		if role == allowed {
			return true
		}
	}
	return false
}

// AllowedRoles returns the roles that satisfy action, as strings for error
// messages. The slice is a copy; callers may not mutate the table.
func AllowedRoles(action Action) []string {
	allowed := permissions[action]
	out := make([]string, len(allowed))
	for i, r := range allowed {
		out[i] = string(r)
	}
	return out
}
