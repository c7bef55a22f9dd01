package constants

import "time"

// Source system identity stamped on every canonical record.
const SourceSystem = "OASES"

// ImporterIdentity is recorded as metadata.importedBy on delivered records.
const ImporterIdentity = "rcm-sync-service"

// AppealGracePeriod is the fixed window for contesting a denial, counted from
// the rejection date.
const AppealGracePeriod = 30 * 24 * time.Hour

// VATRate is the Saudi value-added tax rate applied when the source reports
// only a total amount without a net/VAT split.
const VATRate = 0.15

// Risk thresholds in SAR for the rejected amount. Amount signals can only
// raise the category-derived floor, never lower it.
const (
	RiskAmountCritical = 50000.0
	RiskAmountHigh     = 10000.0
)

// SessionTTL is how long an authenticated session is trusted before the next
// operation forces re-authentication. The legacy system does not renew
// sessions on activity.
const SessionTTL = 20 * time.Minute

// InteractionTimeout bounds every single round trip against the source
// system so an unresponsive page cannot hang a run.
const InteractionTimeout = 30 * time.Second

// Scheduling defaults, overridable through configuration.
const (
	DefaultIntervalMinutes = 60
	DefaultLookbackDays    = 7
)

// MaxSearchPages caps pagination when the source's "next" link never
// exhausts, which has been observed after upstream UI releases.
const MaxSearchPages = 200
