package api

import (
	"net/http"

	"github.com/fleetgrid/fleetgrid/pkg/audit"
	"github.com/fleetgrid/fleetgrid/pkg/groups"
	"github.com/fleetgrid/fleetgrid/pkg/httputil"
	"github.com/fleetgrid/fleetgrid/pkg/middleware"
)

// CreateGroupRequest is the request body for creating a group.
type CreateGroupRequest struct {
	Name string `json:"name"`
}

// recordGroupEvent writes a group-scope audit event. Fire and forget, like
// every other audit call site.
func (s *Server) recordGroupEvent(r *http.Request, eventType audit.EventType, actorID, groupID int64, targetUserID *int64) {
	s.audit.Record(r.Context(), &audit.Event{
		EventType:    eventType,
		Status:       audit.EventStatusSuccess,
		ActorID:      &actorID,
		TargetUserID: targetUserID,
		GroupID:      &groupID,
	})
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req CreateGroupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	group, err := s.groups.CreateGroup(r.Context(), req.Name, user.ID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordGroupEvent(r, audit.EventTypeGroupCreate, user.ID, group.ID, nil)
	httputil.WriteCreated(w, group)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := middleware.GroupIDFromRequest(r)
	if err != nil {
		httputil.WriteValidationError(w, "invalid group ID")
		return
	}

	group, err := s.groups.GetGroup(r.Context(), groupID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, group)
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	groupID, err := middleware.GroupIDFromRequest(r)
	if err != nil {
		httputil.WriteValidationError(w, "invalid group ID")
		return
	}

	if err := s.groups.DeleteGroup(r.Context(), groupID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordGroupEvent(r, audit.EventTypeGroupDelete, user.ID, groupID, nil)
	httputil.WriteNoContent(w)
}

func (s *Server) listGroupMembers(w http.ResponseWriter, r *http.Request) {
	groupID, err := middleware.GroupIDFromRequest(r)
	if err != nil {
		httputil.WriteValidationError(w, "invalid group ID")
		return
	}

	members, err := s.groups.ListMembers(r.Context(), groupID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if members == nil {
		members = []*groups.GroupMembership{}
	}
	httputil.WriteSuccess(w, members)
}

func (s *Server) addGroupMember(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	groupID, err := middleware.GroupIDFromRequest(r)
	if err != nil {
		httputil.WriteValidationError(w, "invalid group ID")
		return
	}

	var req groups.AddMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	member, err := s.groups.AddMember(r.Context(), groupID, req.UserID, req.Role)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordGroupEvent(r, audit.EventTypeGroupMemberAdd, user.ID, groupID, &req.UserID)
	httputil.WriteCreated(w, member)
}

func (s *Server) removeGroupMember(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	groupID, err := middleware.GroupIDFromRequest(r)
	if err != nil {
		httputil.WriteValidationError(w, "invalid group ID")
		return
	}
	targetID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := s.groups.RemoveMember(r.Context(), groupID, targetID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordGroupEvent(r, audit.EventTypeGroupMemberRemove, user.ID, groupID, &targetID)
	httputil.WriteNoContent(w)
}

// leaveGroup removes the caller's own membership. Any member may leave,
// including the owner; the group itself survives.
func (s *Server) leaveGroup(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	groupID, err := middleware.GroupIDFromRequest(r)
	if err != nil {
		httputil.WriteValidationError(w, "invalid group ID")
		return
	}

	if err := s.groups.RemoveMember(r.Context(), groupID, user.ID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordGroupEvent(r, audit.EventTypeGroupMemberRemove, user.ID, groupID, &user.ID)
	httputil.WriteNoContent(w)
}
