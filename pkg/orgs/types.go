package orgs

import (
	"time"

	"github.com/fleetgrid/fleetgrid/pkg/authz"
)

// OrgStatus represents organization status.
type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusSuspended OrgStatus = "suspended"
	OrgStatusDeleted   OrgStatus = "deleted"
)

// QuotaTier sizes an organization's resource limits.
type QuotaTier string

const (
	QuotaTierSmall     QuotaTier = "small"
	QuotaTierMedium    QuotaTier = "medium"
	QuotaTierLarge     QuotaTier = "large"
	QuotaTierUnlimited QuotaTier = "unlimited"
)

// Organization is one tenant of the fleet backend.
type Organization struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	OwnerID     *int64    `json:"owner_id,omitempty"`
	QuotaTier   QuotaTier `json:"quota_tier"`
	Status      OrgStatus `json:"status"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrgMembership is a user's role and permission set within one organization.
type OrgMembership struct {
	ID             int64        `json:"id"`
	OrganizationID int64        `json:"organization_id"`
	UserID         int64        `json:"user_id"`
	Role           authz.OrgRole `json:"role"`
	Permissions    []string     `json:"permissions"`
	GrantedAt      time.Time    `json:"granted_at"`
	GrantedBy      *int64       `json:"granted_by,omitempty"`
}

// Role is an org-scoped named permission set. System roles are seeded per
// organization and immutable; custom roles are owner-managed.
type Role struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	DisplayName    string    `json:"display_name"`
	Permissions    []string  `json:"permissions"`
	IsSystemRole   bool      `json:"is_system_role"`
	Priority       int       `json:"priority"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      *int64    `json:"created_by,omitempty"`
}

// AddMemberRequest is the request body for adding a member.
type AddMemberRequest struct {
	UserID      int64         `json:"user_id"`
	Role        authz.OrgRole `json:"role"`
	Permissions []string      `json:"permissions,omitempty"`
}

// UpdateMemberRequest is the request body for updating a member. Nil fields
// are left unchanged.
type UpdateMemberRequest struct {
	Role        *authz.OrgRole `json:"role,omitempty"`
	Permissions []string       `json:"permissions,omitempty"`
}

// CreateRoleRequest is the request body for creating a custom role.
type CreateRoleRequest struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Permissions []string `json:"permissions"`
	Priority    int      `json:"priority,omitempty"`
}

// CreateOrgRequest is the request body for creating an organization.
type CreateOrgRequest struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	QuotaTier   QuotaTier `json:"quota_tier,omitempty"`
}

// QuotaExceededError reports a tenant resource limit being hit.
type QuotaExceededError struct {
	Resource string
	Current  int64
	Limit    int64
}

func (e *QuotaExceededError) Error() string {
	return "quota exceeded for " + e.Resource
}

// IsQuotaExceeded checks if an error is a quota exceeded error.
func IsQuotaExceeded(err error) bool {
	_, ok := err.(*QuotaExceededError)
	return ok
}
