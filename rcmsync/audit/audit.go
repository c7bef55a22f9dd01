// Package audit provides the append-only, compliance-grade record of every
// access and action the sync service performs against patient data.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Fadil369/brainsait-rcm-sub002/log"
)

// EventType enumerates the recorded action classes.
type EventType string

const (
	EventLogin        EventType = "LOGIN"
	EventLogout       EventType = "LOGOUT"
	EventAccess       EventType = "ACCESS"
	EventCreate       EventType = "CREATE"
	EventUpdate       EventType = "UPDATE"
	EventDelete       EventType = "DELETE"
	EventExport       EventType = "EXPORT"
	EventSyncComplete EventType = "SYNC_COMPLETE"
	EventManualSync   EventType = "MANUAL_SYNC"
)

const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
)

// Event is one append-only audit entry.
type Event struct {
	Timestamp    time.Time              `json:"timestamp"`
	EventType    EventType              `json:"eventType"`
	UserID       string                 `json:"userId"`
	Username     string                 `json:"username"`
	ResourceType string                 `json:"resourceType"`
	ResourceID   string                 `json:"resourceId,omitempty"`
	Action       string                 `json:"action"`
	Status       string                 `json:"status"`
	IPAddress    string                 `json:"ipAddress,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	Changes      map[string]interface{} `json:"changes,omitempty"`
	PHIAccessed  bool                   `json:"phiAccessed"`
}

// Logger appends events to an audit sink. Implementations must treat the log
// as append-only; nothing ever rewrites a recorded event.
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// Reader is implemented by sinks that can serve recent entries back to the
// control plane.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// LogrusSink writes each event as a structured JSON log line. It is the
// always-on sink; database persistence composes on top of it via Tee.
type LogrusSink struct {
	logger logrus.FieldLogger
}

func NewLogrusSink() *LogrusSink {
	return &LogrusSink{logger: log.Audit}
}

func (s *LogrusSink) Log(ctx context.Context, event Event) error {
	entry := s.logger.WithFields(logrus.Fields{
		"event_type":    event.EventType,
		"user_id":       event.UserID,
		"username":      event.Username,
		"resource_type": event.ResourceType,
		"resource_id":   event.ResourceID,
		"action":        event.Action,
		"status":        event.Status,
		"phi_accessed":  event.PHIAccessed,
	})
	if len(event.Details) > 0 {
		entry = entry.WithField("details", event.Details)
	}
	if len(event.Changes) > 0 {
		entry = entry.WithField("changes", event.Changes)
	}
	if event.PHIAccessed {
		entry.Warn("PHI access")
		return nil
	}
	entry.Info("audit event")
	return nil
}

// MemorySink retains events in process memory. Used in tests and as the
// Recent source when no database is configured.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Log(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemorySink) Recent(ctx context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]Event, limit)
	copy(out, s.events[len(s.events)-limit:])
	return out, nil
}

// Events returns a copy of everything recorded so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Tee fans an event out to multiple sinks. A sink failure is logged and does
// not fail the caller's operation; audit persistence is best-effort by
// design so a database outage cannot take the sync pipeline down with it.
type Tee struct {
	sinks []Logger
}

func NewTee(sinks ...Logger) *Tee {
	return &Tee{sinks: sinks}
}

func (t *Tee) Log(ctx context.Context, event Event) error {
	for _, sink := range t.sinks {
		if err := sink.Log(ctx, event); err != nil {
			log.Audit.WithError(err).Error("audit sink write failed")
		}
	}
	return nil
}
