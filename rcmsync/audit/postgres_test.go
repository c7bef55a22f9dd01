package audit

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_events").
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewPostgresStore(db)
	err = store.Log(context.Background(), Event{
		Timestamp:    time.Now().UTC(),
		EventType:    EventSyncComplete,
		UserID:       "rcm-sync-service",
		Username:     "rcm-sync-service",
		ResourceType: "SyncRun",
		ResourceID:   "RUN-ABC123",
		Action:       "SYNC",
		Status:       OutcomeSuccess,
		Details:      map[string]interface{}{"imported": 4},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"ts", "event_type", "user_id", "username", "resource_type",
		"resource_id", "action", "status", "ip_address", "phi_accessed", "details", "changes",
	}).AddRow(ts, "LOGIN", "u1", "u1", "Session", nil, "LOGIN", "SUCCESS", nil, false, nil, nil).
		AddRow(ts.Add(time.Minute), "SYNC_COMPLETE", "svc", "svc", "SyncRun", "RUN-1",
			"SYNC", "SUCCESS", nil, false, []byte(`{"imported":2}`), nil)

	mock.ExpectQuery("SELECT (.+) FROM audit_events").WillReturnRows(rows)

	store := NewPostgresStore(db)
	events, err := store.Recent(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventLogin, events[0].EventType)
	assert.Equal(t, "RUN-1", events[1].ResourceID)
	assert.Equal(t, float64(2), events[1].Details["imported"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLogQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_events").
		WillReturnError(assert.AnError)

	store := NewPostgresStore(db)
	err = store.Log(context.Background(), Event{EventType: EventAccess})
	assert.Error(t, err)
}
