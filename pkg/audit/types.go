package audit

import (
	"encoding/json"
	"time"
)

// EventType categorizes an audit event.
type EventType string

const (
	// Platform scope
	EventTypeRoleGrant   EventType = "authz.role_grant"
	EventTypeRoleRevoke  EventType = "authz.role_revoke"
	EventTypeOrgAssign   EventType = "authz.org_assign"
	EventTypeOrgUnassign EventType = "authz.org_unassign"

	// Organization scope
	EventTypeMemberAdd    EventType = "org.member_add"
	EventTypeMemberUpdate EventType = "org.member_update"
	EventTypeMemberRemove EventType = "org.member_remove"
	EventTypeRoleCreate   EventType = "org.role_create"
	EventTypeRoleDelete   EventType = "org.role_delete"

	// Group scope
	EventTypeGroupCreate       EventType = "group.create"
	EventTypeGroupDelete       EventType = "group.delete"
	EventTypeGroupMemberAdd    EventType = "group.member_add"
	EventTypeGroupMemberRemove EventType = "group.member_remove"

	// Access decisions
	EventTypeAccessDenied      EventType = "authz.access_denied"
	EventTypeTokenValidateFail EventType = "auth.token_validate_fail"
)

// EventStatus is the outcome of the audited operation.
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit trail entry.
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	ActorID        *int64 `json:"actor_id,omitempty"`
	TargetUserID   *int64 `json:"target_user_id,omitempty"`
	OrganizationID *int64 `json:"organization_id,omitempty"`
	GroupID        *int64 `json:"group_id,omitempty"`
	RoleName       string `json:"role_name,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON serializes the event.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// SearchFilter narrows an audit trail query.
type SearchFilter struct {
	StartTime      *time.Time
	EndTime        *time.Time
	ActorID        *int64
	TargetUserID   *int64
	OrganizationID *int64
	EventTypes     []EventType
	Status         *EventStatus

	Limit  int
	Offset int
}

// RetentionPolicy controls how long audit events are kept.
type RetentionPolicy struct {
	RetentionDays int
}

// DefaultRetentionPolicy keeps events for 90 days.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{RetentionDays: 90}
}
