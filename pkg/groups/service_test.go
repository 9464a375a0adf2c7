package groups

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetgrid/fleetgrid/pkg/authz"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db, nil), mock
}

func TestCreateGroup(t *testing.T) {
	t.Run("creates the group and the owner membership in one transaction", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO groups").
			WithArgs("field-team", int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), time.Now()))
		mock.ExpectExec("INSERT INTO group_memberships").
			WithArgs(sqlmock.AnyArg(), int64(5), int64(42), "owner").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		g, err := svc.CreateGroup(context.Background(), "field-team", 42)
		require.NoError(t, err)
		assert.Equal(t, int64(5), g.ID)
		assert.Equal(t, int64(42), g.OwnerID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the owner membership insert fails", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO groups").
			WithArgs("field-team", int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), time.Now()))
		mock.ExpectExec("INSERT INTO group_memberships").
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := svc.CreateGroup(context.Background(), "field-team", 42)
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty name", func(t *testing.T) {
		svc, mock := newTestService(t)

		_, err := svc.CreateGroup(context.Background(), "", 42)
		assert.True(t, authz.IsValidation(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetMembership(t *testing.T) {
	t.Run("member", func(t *testing.T) {
		svc, mock := newTestService(t)

		mid := uuid.New()
		rows := sqlmock.NewRows([]string{"id", "membership_id", "group_id", "user_id", "role", "joined_at"}).
			AddRow(int64(1), mid.String(), int64(5), int64(42), "admin", time.Now())
		mock.ExpectQuery("SELECT id, membership_id, group_id, user_id, role, joined_at").
			WithArgs(int64(5), int64(42)).
			WillReturnRows(rows)

		m, err := svc.GetMembership(context.Background(), 5, 42)
		require.NoError(t, err)
		assert.Equal(t, authz.GroupRoleAdmin, m.Role)
		assert.Equal(t, mid, m.MembershipID)
	})

	t.Run("absent membership and absent group look identical", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("SELECT id, membership_id, group_id, user_id, role, joined_at").
			WithArgs(int64(5), int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := svc.GetMembership(context.Background(), 5, 42)
		require.Error(t, err)
		assert.True(t, authz.IsNotFound(err))
		assert.Equal(t, "group not found or you are not a member", err.Error())
	})
}

func TestAddMember(t *testing.T) {
	t.Run("assigns a membership id", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("INSERT INTO group_memberships").
			WithArgs(sqlmock.AnyArg(), int64(5), int64(42), "member").
			WillReturnRows(sqlmock.NewRows([]string{"id", "joined_at"}).AddRow(int64(7), time.Now()))

		m, err := svc.AddMember(context.Background(), 5, 42, authz.GroupRoleMember)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, m.MembershipID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown role", func(t *testing.T) {
		svc, mock := newTestService(t)

		_, err := svc.AddMember(context.Background(), 5, 42, authz.GroupRole("president"))
		assert.True(t, authz.IsValidation(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRemoveMemberAbsent(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec("DELETE FROM group_memberships").
		WithArgs(int64(5), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.RemoveMember(context.Background(), 5, 42)
	assert.True(t, authz.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasSufficientRole(t *testing.T) {
	svc, _ := newTestService(t)

	assert.True(t, svc.HasSufficientRole(authz.GroupRoleOwner, authz.GroupRoleAdmin))
	assert.True(t, svc.HasSufficientRole(authz.GroupRoleViewer, authz.GroupRoleViewer))
	assert.False(t, svc.HasSufficientRole(authz.GroupRoleMember, authz.GroupRoleAdmin))
}
