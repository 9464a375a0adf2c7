package groups

import (
	"time"

	"github.com/google/uuid"

	"github.com/fleetgrid/fleetgrid/pkg/authz"
)

// Group is a collaborative location-sharing circle.
type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupMembership is a user's role within one group. MembershipID is the
// public identifier shared with other members; the numeric row ID never
// leaves the service.
type GroupMembership struct {
	ID           int64           `json:"-"`
	MembershipID uuid.UUID       `json:"membership_id"`
	GroupID      int64           `json:"group_id"`
	UserID       int64           `json:"user_id"`
	Role         authz.GroupRole `json:"role"`
	JoinedAt     time.Time       `json:"joined_at"`
}

// AddMemberRequest is the request body for adding a group member.
type AddMemberRequest struct {
	UserID int64           `json:"user_id"`
	Role   authz.GroupRole `json:"role"`
}
