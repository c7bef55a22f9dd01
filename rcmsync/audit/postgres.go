package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// PostgresStore persists audit events to the audit_events table. It is not
// responsible for schema creation; see the DDL in EnsureSchema.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgresStore dials the database and verifies connectivity.
func OpenPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "could not open audit database")
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "could not reach audit database")
	}
	return &PostgresStore{db: db}, nil
}

// EnsureSchema creates the audit_events table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS audit_events (
		id BIGSERIAL PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		event_type TEXT NOT NULL,
		user_id TEXT NOT NULL,
		username TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT,
		action TEXT NOT NULL,
		status TEXT NOT NULL,
		ip_address TEXT,
		phi_accessed BOOLEAN NOT NULL DEFAULT FALSE,
		details JSONB,
		changes JSONB
	)`
	_, err := s.db.ExecContext(ctx, ddl)
	return errors.Wrap(err, "could not ensure audit schema")
}

func (s *PostgresStore) Log(ctx context.Context, event Event) error {
	details, err := marshalMap(event.Details, "details")
	if err != nil {
		return err
	}
	changes, err := marshalMap(event.Changes, "changes")
	if err != nil {
		return err
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("audit_events")
	ib.Cols("ts", "event_type", "user_id", "username", "resource_type",
		"resource_id", "action", "status", "ip_address", "phi_accessed", "details", "changes")
	ib.Values(event.Timestamp, string(event.EventType), event.UserID,
		event.Username, event.ResourceType, event.ResourceID, event.Action,
		event.Status, event.IPAddress, event.PHIAccessed, nullableJSON(details), nullableJSON(changes))

	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "could not insert audit event")
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("ts", "event_type", "user_id", "username", "resource_type",
		"resource_id", "action", "status", "ip_address", "phi_accessed", "details", "changes")
	sb.From("audit_events")
	sb.OrderBy("ts").Desc()
	sb.Limit(limit)

	query, args := sb.Build()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "could not query audit events")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e          Event
			ts         time.Time
			eventType  string
			resourceID sql.NullString
			ipAddress  sql.NullString
			details    []byte
			changes    []byte
		)
		if err := rows.Scan(&ts, &eventType, &e.UserID, &e.Username,
			&e.ResourceType, &resourceID, &e.Action, &e.Status, &ipAddress,
			&e.PHIAccessed, &details, &changes); err != nil {
			return nil, errors.Wrap(err, "could not scan audit event")
		}
		e.Timestamp = ts
		e.EventType = EventType(eventType)
		e.ResourceID = resourceID.String
		e.IPAddress = ipAddress.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, errors.Wrap(err, "could not decode audit details")
			}
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, errors.Wrap(err, "could not decode audit changes")
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

func marshalMap(m map[string]interface{}, what string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	return b, errors.Wrapf(err, "could not marshal audit %s", what)
}
