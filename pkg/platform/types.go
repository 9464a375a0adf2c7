package platform

import (
	"time"

	"github.com/fleetgrid/fleetgrid/pkg/authz"
)

// SystemRoleGrant records that a user holds a platform-wide system role.
// A user may hold any number of grants; the set is what matters.
type SystemRoleGrant struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Role      authz.SystemRole `json:"role"`
	GrantedAt time.Time        `json:"granted_at"`
	GrantedBy *int64           `json:"granted_by,omitempty"`
}

// OrgAssignment binds a scoped system role (OrgAdmin/OrgManager) to one
// specific organization. Globally-scoped roles never carry assignments.
type OrgAssignment struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	OrganizationID int64     `json:"organization_id"`
	AssignedAt     time.Time `json:"assigned_at"`
	AssignedBy     *int64    `json:"assigned_by,omitempty"`
}

// GrantRoleRequest is the request body for granting a system role.
type GrantRoleRequest struct {
	Role authz.SystemRole `json:"role"`
}

// AssignOrgRequest is the request body for assigning an organization.
type AssignOrgRequest struct {
	OrganizationID int64 `json:"organization_id"`
}
