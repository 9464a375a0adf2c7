package groups

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fleetgrid/fleetgrid/pkg/authz"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// Service implements the group-scope authority on PostgreSQL.
type Service struct {
	db    *sql.DB
	cache *authz.Cache
}

// NewService creates the group service. cache may be nil.
func NewService(db *sql.DB, cache *authz.Cache) *Service {
	return &Service{db: db, cache: cache}
}

func membershipCacheKey(groupID, userID int64) string {
	return fmt.Sprintf("group_membership:%d:%d", groupID, userID)
}

// CreateGroup creates a group and installs the creator as Owner. Both writes
// run in one transaction so a group can never exist without a member.
func (s *Service) CreateGroup(ctx context.Context, name string, ownerID int64) (*Group, error) {
	if name == "" {
		return nil, authz.Validation("group name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	group := &Group{Name: name, OwnerID: ownerID}
	query := `
		INSERT INTO groups (name, owner_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	err = tx.QueryRowContext(ctx, query, name, ownerID).Scan(&group.ID, &group.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO group_memberships (membership_id, group_id, user_id, role)
		VALUES ($1, $2, $3, $4)
	`, uuid.New(), group.ID, ownerID, authz.GroupRoleOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to add creator as owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return group, nil
}

// GetGroup retrieves a group by ID.
func (s *Service) GetGroup(ctx context.Context, groupID int64) (*Group, error) {
	query := `SELECT id, name, owner_id, created_at FROM groups WHERE id = $1`
	group := &Group{}
	err := s.db.QueryRowContext(ctx, query, groupID).Scan(
		&group.ID, &group.Name, &group.OwnerID, &group.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, authz.NotFound("group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// DeleteGroup deletes a group and its memberships.
func (s *Service) DeleteGroup(ctx context.Context, groupID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return authz.NotFound("group not found")
	}
	return nil
}

// GetMembership resolves a user's membership in a group. Missing group and
// missing membership return the same NotFound.
func (s *Service) GetMembership(ctx context.Context, groupID, userID int64) (*GroupMembership, error) {
	if s.cache != nil {
		var cached GroupMembership
		if s.cache.Get(ctx, membershipCacheKey(groupID, userID), &cached) {
			return &cached, nil
		}
	}

	query := `
		SELECT id, membership_id, group_id, user_id, role, joined_at
		FROM group_memberships
		WHERE group_id = $1 AND user_id = $2
	`
	m := &GroupMembership{}
	err := s.db.QueryRowContext(ctx, query, groupID, userID).Scan(
		&m.ID, &m.MembershipID, &m.GroupID, &m.UserID, &m.Role, &m.JoinedAt,
	)
	if err == sql.ErrNoRows {
		return nil, authz.NotFound("group not found or you are not a member")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, membershipCacheKey(groupID, userID), m)
	}
	return m, nil
}

// HasSufficientRole reports whether held meets the required group role.
func (s *Service) HasSufficientRole(held, required authz.GroupRole) bool {
	return authz.HasSufficientRole(held, required)
}

// AddMember adds a user to a group with a fresh membership ID.
func (s *Service) AddMember(ctx context.Context, groupID, userID int64, role authz.GroupRole) (*GroupMembership, error) {
	if !role.Valid() {
		return nil, authz.Validation("unknown group role: %s", role)
	}

	m := &GroupMembership{
		MembershipID: uuid.New(),
		GroupID:      groupID,
		UserID:       userID,
		Role:         role,
	}
	query := `
		INSERT INTO group_memberships (membership_id, group_id, user_id, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, joined_at
	`
	err := s.db.QueryRowContext(ctx, query, m.MembershipID, m.GroupID, m.UserID, m.Role).
		Scan(&m.ID, &m.JoinedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return nil, authz.Conflict("user is already a member")
		}
		return nil, fmt.Errorf("failed to add group member: %w", err)
	}
	s.invalidateMembership(ctx, groupID, userID)
	return m, nil
}

// RemoveMember removes a user from a group.
func (s *Service) RemoveMember(ctx context.Context, groupID, userID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM group_memberships WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return authz.NotFound("group not found or you are not a member")
	}
	s.invalidateMembership(ctx, groupID, userID)
	return nil
}

// ListMembers returns all members of a group, oldest first.
func (s *Service) ListMembers(ctx context.Context, groupID int64) ([]*GroupMembership, error) {
	query := `
		SELECT id, membership_id, group_id, user_id, role, joined_at
		FROM group_memberships
		WHERE group_id = $1
		ORDER BY joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	var members []*GroupMembership
	for rows.Next() {
		m := &GroupMembership{}
		if err := rows.Scan(&m.ID, &m.MembershipID, &m.GroupID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Service) invalidateMembership(ctx context.Context, groupID, userID int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, membershipCacheKey(groupID, userID))
	}
}
