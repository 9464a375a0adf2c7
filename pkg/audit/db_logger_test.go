package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBLoggerRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, err := NewDBLogger(db, nil)
	require.NoError(t, err)

	actorID := int64(7)
	targetID := int64(42)

	mock.ExpectQuery("INSERT INTO audit_events").
		WithArgs(sqlmock.AnyArg(), "authz.role_grant", "success",
			actorID, targetID, nil, nil, "",
			"", "", "granted system role support", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	event := &Event{
		EventType:    EventTypeRoleGrant,
		Status:       EventStatusSuccess,
		ActorID:      &actorID,
		TargetUserID: &targetID,
		Message:      "granted system role support",
	}
	logger.Record(context.Background(), event)

	assert.Equal(t, int64(1), event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLoggerRecordSwallowsInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, err := NewDBLogger(db, nil)
	require.NoError(t, err)

	mock.ExpectQuery("INSERT INTO audit_events").
		WillReturnError(assert.AnError)

	// Must not panic or propagate the failure.
	logger.Record(context.Background(), &Event{
		EventType: EventTypeMemberAdd,
		Status:    EventStatusSuccess,
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLoggerSearch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, err := NewDBLogger(db, nil)
	require.NoError(t, err)

	actorID := int64(7)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "timestamp", "event_type", "status",
		"actor_id", "target_user_id", "organization_id", "group_id", "role_name",
		"ip_address", "request_id", "message", "metadata",
	}).AddRow(
		int64(3), now, "authz.org_assign", "success",
		actorID, int64(42), int64(9), nil, "",
		"", "", "assigned organization", []byte(`{"source":"api"}`),
	)

	mock.ExpectQuery("SELECT id, timestamp, event_type, status").
		WithArgs(actorID, 10).
		WillReturnRows(rows)

	events, err := logger.Search(context.Background(), SearchFilter{
		ActorID: &actorID,
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeOrgAssign, events[0].EventType)
	assert.Equal(t, int64(9), *events[0].OrganizationID)
	assert.Equal(t, "api", events[0].Metadata["source"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLoggerCleanup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, err := NewDBLogger(db, nil)
	require.NoError(t, err)

	mock.ExpectExec("DELETE FROM audit_events WHERE timestamp").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 17))

	removed, err := logger.Cleanup(context.Background(), DefaultRetentionPolicy())
	require.NoError(t, err)
	assert.Equal(t, int64(17), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMultiLoggerFansOut(t *testing.T) {
	var got []*Event
	rec := recorderLogger{events: &got}

	m := NewMultiLogger(rec, NopLogger())
	m.Record(context.Background(), &Event{EventType: EventTypeRoleRevoke})

	require.Len(t, got, 1)
	assert.Equal(t, EventTypeRoleRevoke, got[0].EventType)
	assert.NoError(t, m.Close())
}

type recorderLogger struct {
	events *[]*Event
}

func (r recorderLogger) Record(ctx context.Context, event *Event) {
	*r.events = append(*r.events, event)
}

func (r recorderLogger) Close() error { return nil }
