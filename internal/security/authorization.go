package security

import (
	"fmt"
	"log/slog"
	"slices"
)

// Role represents an administrator role
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// Permission represents an action permission
type Permission string

const (
	PermListUsers    Permission = "list_users"
	PermViewLogs     Permission = "view_logs"
	PermExportLogs   Permission = "export_logs"
	PermListDoors    Permission = "list_doors"
	PermManageDoors  Permission = "manage_doors"
	PermListGroups   Permission = "list_groups"
	PermManageGroups Permission = "manage_groups"
	PermTriggerSync  Permission = "trigger_sync"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermListUsers,
		PermViewLogs,
		PermExportLogs,
		PermListDoors,
		PermManageDoors,
		PermListGroups,
		PermManageGroups,
		PermTriggerSync,
	},
	RoleViewer: {
		PermListUsers,
		PermViewLogs,
		PermExportLogs,
		PermListDoors,
		PermListGroups,
	},
}

// ValidRole reports whether r names a known role
func ValidRole(r string) bool {
	_, ok := RolePermissions[Role(r)]
	return ok
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role Role, permission Permission) bool {
	return slices.Contains(RolePermissions[role], permission)
}

// ValidatePermission validates that a role has a specific permission
func (as *AuthorizationService) ValidatePermission(role Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("permission denied: %s role cannot %s", role, permission)
	}
	return nil
}
