// Package sync coordinates full synchronization runs: window computation,
// extraction, per-record transformation, batch delivery, status bookkeeping,
// scheduling and audit.
package sync

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Fadil369/brainsait-rcm-sub002/log"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/audit"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/constants"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/models"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/notify"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/platform"
)

// SessionCloser is the slice of the session client the orchestrator needs
// directly; extraction owns the rest of the session surface.
type SessionCloser interface {
	Close(ctx context.Context) error
}

// Extractor is the remote-capability boundary (design: the automation engine
// behind it is substitutable).
type Extractor interface {
	ExtractRejections(ctx context.Context, criteria models.SearchCriteria) ([]models.RawRejection, []models.SkippedRecord, error)
	FetchMatchingClaim(ctx context.Context, claimNumber string) (*models.RawClaim, error)
}

// Transformer converts one raw pair into a canonical record.
type Transformer interface {
	Transform(rejection models.RawRejection, claim models.RawClaim) (*models.CanonicalRejectionRecord, error)
}

// Service owns the run lifecycle, the integration status aggregate and the
// timer handle. It is constructed with injected collaborators; there are no
// package-level singletons.
type Service struct {
	session     SessionCloser
	extractor   Extractor
	transformer Transformer
	sink        platform.Sink
	auditor     audit.Logger
	notifier    *notify.Notifier

	cfgMu sync.RWMutex
	cfg   models.SyncConfig

	statusMu sync.RWMutex
	status   models.IntegrationStatus

	// runMu and running guard against re-entry: a timer tick or manual
	// trigger arriving while a run executes is rejected, not queued.
	runMu   sync.Mutex
	running bool

	// schedMu guards the scheduler arm state: stopCh is recreated on every
	// Start so stop/start cycles re-arm the timer, and started keeps a
	// second Start from spawning another ticker goroutine.
	schedMu sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	now func() time.Time
}

func NewService(cfg models.SyncConfig, session SessionCloser, extractor Extractor,
	transformer Transformer, sink platform.Sink, auditor audit.Logger,
	notifier *notify.Notifier) *Service {

	if cfg.IntervalMinutes == 0 {
		cfg.IntervalMinutes = constants.DefaultIntervalMinutes
	}
	if cfg.LookbackDays == 0 {
		cfg.LookbackDays = constants.DefaultLookbackDays
	}

	return &Service{
		session:     session,
		extractor:   extractor,
		transformer: transformer,
		sink:        sink,
		auditor:     auditor,
		notifier:    notifier,
		cfg:         cfg,
		status:      models.IntegrationStatus{LastSyncStatus: models.RunNeverRan},
		now:         time.Now,
	}
}

// Start performs one immediate run, then arms the fixed-interval timer when
// the configured interval is greater than zero. Starting an already-started
// service is a no-op; a stopped service re-arms on the next Start.
func (s *Service) Start(ctx context.Context) {
	s.schedMu.Lock()
	if s.started {
		s.schedMu.Unlock()
		log.Sync.Info("sync service already started; ignoring start request")
		return
	}
	s.started = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.schedMu.Unlock()

	if _, err := s.RunSync(ctx); err != nil {
		log.Sync.WithError(err).Error("initial sync run failed")
	}

	interval := s.interval()
	if interval <= 0 {
		log.Sync.Info("periodic sync disabled; manual triggers only")
		return
	}

	s.scheduleNext(interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunSync(ctx); err != nil && !errors.Is(err, models.ErrSyncInProgress) {
					log.Sync.WithError(err).Error("scheduled sync run failed")
				}
				s.scheduleNext(interval)
			}
		}
	}()
}

// Stop disarms future scheduling and closes the session client. A run
// already executing is not interrupted.
func (s *Service) Stop(ctx context.Context) {
	s.schedMu.Lock()
	if s.started {
		close(s.stopCh)
		s.started = false
	}
	s.schedMu.Unlock()
	s.wg.Wait()
	if err := s.session.Close(ctx); err != nil {
		log.Sync.WithError(err).Warn("session close failed during stop")
	}
	s.statusMu.Lock()
	s.status.NextScheduledAt = nil
	s.statusMu.Unlock()
}

// TriggerManualSync invokes the identical run logic on demand. The trigger is
// audited with its acceptance outcome: one rejected because a run is already
// executing is a FAILURE entry. The run's own outcome is the SYNC_COMPLETE
// entry's concern.
func (s *Service) TriggerManualSync(ctx context.Context) (*models.SyncRunResult, error) {
	result, err := s.RunSync(ctx)

	event := audit.Event{
		EventType:    audit.EventManualSync,
		ResourceType: "SyncRun",
		Action:       "TRIGGER",
		Status:       audit.OutcomeSuccess,
	}
	if errors.Is(err, models.ErrSyncInProgress) {
		event.Status = audit.OutcomeFailure
		event.Details = map[string]interface{}{"reason": err.Error()}
	} else if result != nil {
		event.ResourceID = result.RunID
	}
	s.auditEvent(ctx, event)

	return result, err
}

// RunSync executes one complete extract-transform-deliver run and produces
// exactly one SyncRunResult. Only run-fatal errors escape; per-record
// failures are absorbed into the result's error and skipped lists.
func (s *Service) RunSync(ctx context.Context) (*models.SyncRunResult, error) {
	if err := s.beginRun(); err != nil {
		return nil, err
	}
	defer s.endRun()

	cfg := s.Config()
	now := s.now()
	result := &models.SyncRunResult{
		RunID:      "RUN-" + strings.ToUpper(strings.ReplaceAll(uuid.New(), "-", "")[:12]),
		StartedAt:  now,
		WindowFrom: now.AddDate(0, 0, -cfg.LookbackDays),
		WindowTo:   now,
		Status:     models.RunFailed,
	}

	log.Sync.WithFields(logrus.Fields{
		"run_id": result.RunID,
		"from":   result.WindowFrom.Format("2006-01-02"),
		"to":     result.WindowTo.Format("2006-01-02"),
	}).Info("sync run started")

	criteria := models.SearchCriteria{
		DateFrom: result.WindowFrom,
		DateTo:   result.WindowTo,
		Statuses: cfg.Statuses,
	}

	rejections, skipped, err := s.extractor.ExtractRejections(ctx, criteria)
	if err != nil {
		// Extraction failure (auth, network, unreachable search screen) is
		// fatal: nothing was delivered, the whole run is FAILED.
		s.finalize(ctx, result, err)
		return result, err
	}
	result.TotalFetched = len(rejections)
	result.Skipped = append(result.Skipped, skipped...)

	var batch []models.CanonicalRejectionRecord
	for _, rejection := range rejections {
		claim, err := s.extractor.FetchMatchingClaim(ctx, rejection.ClaimNumber)
		if err != nil {
			if errors.Is(err, models.ErrClaimNotFound) {
				result.Skipped = append(result.Skipped, models.SkippedRecord{
					ClaimNumber: rejection.ClaimNumber,
					Reason:      "claim not found",
				})
			} else {
				result.Errors = append(result.Errors, models.RunError{
					ClaimNumber: rejection.ClaimNumber,
					Message:     err.Error(),
				})
			}
			continue
		}

		record, err := s.transformer.Transform(rejection, *claim)
		if err != nil {
			result.Errors = append(result.Errors, models.RunError{
				ClaimNumber: rejection.ClaimNumber,
				Message:     err.Error(),
			})
			continue
		}
		result.TotalProcessed++
		batch = append(batch, *record)
	}

	if len(batch) > 0 {
		if err := s.sink.DeliverBatch(ctx, batch); err != nil {
			// Nothing was durably imported; the run is FAILED regardless of
			// how well extraction and transformation went.
			s.finalize(ctx, result, errors.Wrap(err, "batch delivery failed"))
			return result, err
		}
		result.TotalImported = len(batch)
		for _, record := range batch {
			result.ImportedIDs = append(result.ImportedIDs, record.ID)
		}
	}

	s.finalize(ctx, result, nil)

	if result.TotalImported > 0 && s.notifier.Enabled() {
		summary := notify.Summary{
			RejectionCount: result.TotalImported,
			TotalAmount:    totalRejected(batch),
			Currency:       "SAR",
			RunID:          result.RunID,
			DashboardURL:   s.Config().NotifyTarget,
		}
		// Fire and forget; notification failure never changes run status.
		go s.notifier.Send(context.WithoutCancel(ctx), summary)
	}

	return result, nil
}

// Status returns a copy of the integration status aggregate.
func (s *Service) Status() models.IntegrationStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Config returns a copy of the current sync configuration.
func (s *Service) Config() models.SyncConfig {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// UpdateConfig applies a validated configuration change from the control
// plane. The new interval takes effect from the next scheduling decision.
func (s *Service) UpdateConfig(cfg models.SyncConfig) error {
	if cfg.IntervalMinutes < 0 {
		return errors.New("intervalMinutes must not be negative")
	}
	if cfg.LookbackDays <= 0 {
		return errors.New("lookbackDays must be positive")
	}
	before := s.Config()
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()

	s.auditEvent(context.Background(), audit.Event{
		EventType:    audit.EventUpdate,
		ResourceType: "SyncConfig",
		Action:       "UPDATE_CONFIG",
		Status:       audit.OutcomeSuccess,
		Changes: map[string]interface{}{
			"before": before,
			"after":  cfg,
		},
	})
	return nil
}

func (s *Service) beginRun() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return models.ErrSyncInProgress
	}
	s.running = true
	return nil
}

func (s *Service) endRun() {
	s.runMu.Lock()
	s.running = false
	s.runMu.Unlock()
}

// finalize freezes the run result, updates the integration status aggregate
// and writes the SYNC_COMPLETE audit entry.
func (s *Service) finalize(ctx context.Context, result *models.SyncRunResult, fatal error) {
	result.CompletedAt = s.now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt).String()
	result.TotalSkipped = len(result.Skipped)
	result.TotalErrors = len(result.Errors)
	if fatal != nil {
		result.TotalErrors++
		result.Errors = append(result.Errors, models.RunError{Message: fatal.Error()})
		result.TotalImported = 0
		result.ImportedIDs = nil
		result.Status = models.RunFailed
	} else {
		switch {
		case result.TotalErrors == 0:
			// Zero fetched is a successful run over an empty window.
			result.Status = models.RunSuccess
		case result.TotalImported > 0:
			result.Status = models.RunPartial
		default:
			result.Status = models.RunFailed
		}
	}

	s.statusMu.Lock()
	completed := result.CompletedAt
	s.status.Connected = fatal == nil
	s.status.LastSyncAt = &completed
	s.status.LastSyncStatus = result.Status
	s.status.LastError = ""
	if fatal != nil {
		s.status.LastError = fatal.Error()
	}
	s.status.Stats.TotalRuns++
	s.status.Stats.TotalImported += result.TotalImported
	s.status.Stats.TotalSkipped += result.TotalSkipped
	s.status.Stats.TotalErrors += result.TotalErrors
	if result.Status == models.RunFailed {
		s.status.Stats.ConsecutiveFail++
	} else {
		s.status.Stats.ConsecutiveFail = 0
	}
	s.statusMu.Unlock()

	outcome := audit.OutcomeSuccess
	if result.Status == models.RunFailed {
		outcome = audit.OutcomeFailure
	}
	s.auditEvent(ctx, audit.Event{
		EventType:    audit.EventSyncComplete,
		ResourceType: "SyncRun",
		ResourceID:   result.RunID,
		Action:       "SYNC",
		Status:       outcome,
		Details: map[string]interface{}{
			"result": result,
		},
	})

	log.Sync.WithFields(logrus.Fields{
		"run_id":   result.RunID,
		"status":   result.Status,
		"fetched":  result.TotalFetched,
		"imported": result.TotalImported,
		"skipped":  result.TotalSkipped,
		"errors":   result.TotalErrors,
		"duration": result.Duration,
	}).Info("sync run finished")
}

func (s *Service) interval() time.Duration {
	cfg := s.Config()
	if !cfg.Enabled {
		return 0
	}
	return time.Duration(cfg.IntervalMinutes) * time.Minute
}

func (s *Service) scheduleNext(interval time.Duration) {
	next := s.now().Add(interval)
	s.statusMu.Lock()
	s.status.NextScheduledAt = &next
	s.statusMu.Unlock()
}

func (s *Service) auditEvent(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	event.UserID = constants.ImporterIdentity
	event.Username = constants.ImporterIdentity
	_ = s.auditor.Log(ctx, event)
}

func totalRejected(batch []models.CanonicalRejectionRecord) float64 {
	var total float64
	for _, record := range batch {
		total += record.FinancialImpact.TotalRejected.Total
	}
	return total
}
