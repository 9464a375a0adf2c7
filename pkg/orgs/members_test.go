package orgs

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetgrid/fleetgrid/pkg/authz"
)

func newTestService(t *testing.T) (*PostgresService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresService(db, authz.DefaultCatalog(), nil, nil, nil), mock
}

func membershipRow(orgID, userID int64, role string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "organization_id", "user_id", "role", "permissions", "granted_at", "granted_by"}).
		AddRow(userID, orgID, userID, role, []byte(`[]`), time.Now(), nil)
}

func expectGetMember(mock sqlmock.Sqlmock, orgID, userID int64, role string) {
	mock.ExpectQuery("SELECT id, organization_id, user_id, role, permissions, granted_at, granted_by").
		WithArgs(orgID, userID).
		WillReturnRows(membershipRow(orgID, userID, role))
}

func TestAddMember(t *testing.T) {
	t.Run("unknown permission token", func(t *testing.T) {
		svc, mock := newTestService(t)

		_, err := svc.AddMember(context.Background(), 1, 9, 42, authz.OrgRoleMember, []string{"devices.fly"})
		assert.True(t, authz.IsValidation(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("admin cannot add an owner", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		expectGetMember(mock, 9, 1, "admin")

		_, err := svc.AddMember(context.Background(), 1, 9, 42, authz.OrgRoleOwner, nil)
		assert.True(t, authz.IsForbidden(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("viewer caller is forbidden", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		expectGetMember(mock, 9, 1, "viewer")

		_, err := svc.AddMember(context.Background(), 1, 9, 42, authz.OrgRoleMember, nil)
		assert.True(t, authz.IsForbidden(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("owner adds a member", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		expectGetMember(mock, 9, 1, "owner")
		mock.ExpectQuery("SELECT o.quota_tier, COUNT").
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"quota_tier", "count"}).AddRow("small", int64(3)))
		mock.ExpectQuery("INSERT INTO org_memberships").
			WithArgs(int64(9), int64(42), "member", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "granted_at"}).AddRow(int64(7), time.Now()))

		m, err := svc.AddMember(context.Background(), 1, 9, 42, authz.OrgRoleMember, []string{"devices.read"})
		require.NoError(t, err)
		assert.Equal(t, authz.OrgRoleMember, m.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateMemberGuards(t *testing.T) {
	t.Run("admin cannot update another admin", func(t *testing.T) {
		svc, mock := newTestService(t)

		expectGetMember(mock, 9, 2, "admin") // target
		expectGetMember(mock, 9, 1, "admin") // caller

		role := authz.OrgRoleMember
		_, err := svc.UpdateMember(context.Background(), 1, 9, 2, &role, nil)
		assert.True(t, authz.IsForbidden(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("admin updates their own role", func(t *testing.T) {
		svc, mock := newTestService(t)

		expectGetMember(mock, 9, 1, "admin")
		expectGetMember(mock, 9, 1, "admin")
		mock.ExpectExec("UPDATE org_memberships SET role").
			WithArgs("member", int64(9), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		role := authz.OrgRoleMember
		m, err := svc.UpdateMember(context.Background(), 1, 9, 1, &role, nil)
		require.NoError(t, err)
		assert.Equal(t, authz.OrgRoleMember, m.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing target is not found", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("SELECT id, organization_id, user_id, role, permissions, granted_at, granted_by").
			WithArgs(int64(9), int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		role := authz.OrgRoleMember
		_, err := svc.UpdateMember(context.Background(), 1, 9, 2, &role, nil)
		assert.True(t, authz.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDemoteOwner(t *testing.T) {
	t.Run("sole owner demotion is a conflict", func(t *testing.T) {
		svc, mock := newTestService(t)

		expectGetMember(mock, 9, 1, "owner")
		expectGetMember(mock, 9, 1, "owner")
		mock.ExpectExec("UPDATE org_memberships SET role").
			WithArgs("admin", int64(9), int64(1), "owner").
			WillReturnResult(sqlmock.NewResult(0, 0))

		role := authz.OrgRoleAdmin
		_, err := svc.UpdateMember(context.Background(), 1, 9, 1, &role, nil)
		assert.True(t, authz.IsConflict(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("demotion succeeds with a second owner", func(t *testing.T) {
		svc, mock := newTestService(t)

		expectGetMember(mock, 9, 1, "owner")
		expectGetMember(mock, 9, 1, "owner")
		mock.ExpectExec("UPDATE org_memberships SET role").
			WithArgs("admin", int64(9), int64(1), "owner").
			WillReturnResult(sqlmock.NewResult(0, 1))

		role := authz.OrgRoleAdmin
		m, err := svc.UpdateMember(context.Background(), 1, 9, 1, &role, nil)
		require.NoError(t, err)
		assert.Equal(t, authz.OrgRoleAdmin, m.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRemoveMember(t *testing.T) {
	t.Run("caller cannot remove themself", func(t *testing.T) {
		svc, mock := newTestService(t)

		expectGetMember(mock, 9, 1, "owner")
		expectGetMember(mock, 9, 1, "owner")

		err := svc.RemoveMember(context.Background(), 1, 9, 1)
		assert.True(t, authz.IsForbidden(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("admin cannot remove an owner", func(t *testing.T) {
		svc, mock := newTestService(t)

		expectGetMember(mock, 9, 2, "owner")
		expectGetMember(mock, 9, 1, "admin")

		err := svc.RemoveMember(context.Background(), 1, 9, 2)
		assert.True(t, authz.IsForbidden(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("owner guard blocks removing the last owner", func(t *testing.T) {
		svc, mock := newTestService(t)

		expectGetMember(mock, 9, 2, "owner")
		expectGetMember(mock, 9, 1, "owner")
		mock.ExpectExec("DELETE FROM org_memberships").
			WithArgs(int64(9), int64(2), "owner").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := svc.RemoveMember(context.Background(), 1, 9, 2)
		assert.True(t, authz.IsConflict(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("owner removes a member", func(t *testing.T) {
		svc, mock := newTestService(t)

		expectGetMember(mock, 9, 2, "member")
		expectGetMember(mock, 9, 1, "owner")
		mock.ExpectExec("DELETE FROM org_memberships").
			WithArgs(int64(9), int64(2), "owner").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, svc.RemoveMember(context.Background(), 1, 9, 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCountOwners(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(9), "owner").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))

	count, err := svc.CountOwners(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckMemberQuota(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("SELECT o.quota_tier, COUNT").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"quota_tier", "count"}).AddRow("small", int64(25)))

	err := svc.CheckMemberQuota(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
