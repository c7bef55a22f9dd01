// Package transform maps one raw (claim, rejection) pair into a canonical
// rejection record. It is pure: no network or session access, and identical
// input yields identical output apart from the timestamp component of the
// generated identifier.
package transform

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"

	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/constants"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/models"
)

// Transformer converts raw records. Now is injectable so deadline arithmetic
// is testable against a fixed instant.
type Transformer struct {
	Now func() time.Time
}

func New() *Transformer {
	return &Transformer{Now: time.Now}
}

// Transform builds the canonical record for one rejection and its matching
// claim. An error here is a per-record failure; the orchestrator absorbs it
// into the run's error list without aborting the batch.
func (t *Transformer) Transform(rejection models.RawRejection, claim models.RawClaim) (*models.CanonicalRejectionRecord, error) {
	if rejection.RejectionDate.IsZero() {
		return nil, errors.Errorf("rejection %s has no rejection date", rejection.ClaimNumber)
	}
	if claim.SubmissionDate.IsZero() {
		return nil, errors.Errorf("claim %s has no submission date", claim.ClaimNumber)
	}

	now := t.Now()
	category := categoryFor(rejection.RejectionCode)
	timeline := t.timeline(claim.SubmissionDate, rejection.RejectionDate, now)
	status := recordStatus(rejection.AppealStatus, timeline.DaysUntilDeadline)

	record := &models.CanonicalRejectionRecord{
		ID:          generateID(now),
		ClaimNumber: claim.ClaimNumber,
		RejectionID: rejection.RejectionID,

		Patient: models.PatientInfo{
			PatientID: claim.PatientID,
			Name:      claim.PatientName,
			MemberID:  claim.MemberID,
		},
		Provider: models.ProviderInfo{
			ProviderID:     claim.ProviderID,
			Name:           claim.ProviderName,
			DepartmentCode: claim.DepartmentCode,
			PhysicianID:    claim.PhysicianID,
		},
		Payer: models.PayerInfo{
			Code: rejection.PayerCode,
			Name: payerNameFor(rejection.PayerCode, rejection.PayerName),
		},
		Rejection: models.RejectionDetails{
			Code:     rejection.RejectionCode,
			Reason:   reasonFor(rejection.RejectionCode, rejection.RejectionReason),
			Category: category,
			Type:     rejectionType(rejection.RejectedAmount, claim.ClaimedAmount),
		},

		FinancialImpact: models.FinancialImpact{
			TotalClaimed:  breakdownFromTotal(claim.ClaimedAmount),
			TotalRejected: rejectedBreakdown(rejection),
			TotalApproved: breakdownFromTotal(claim.ApprovedAmount),
			Currency:      "SAR",
		},
		Timeline: timeline,
		Status:   status,
		Appeal: models.Appeal{
			Status: status,
		},
		Services: serviceItems(rejection.Items),
		Analysis: analyze(category, rejection.RejectedAmount),
		Metadata: models.RecordMetadata{
			SourceSystem: constants.SourceSystem,
			ImportedAt:   now.UTC(),
			ImportedBy:   constants.ImporterIdentity,
		},
	}

	return record, nil
}

// timeline computes the derived dates. Day arithmetic is date-based so a run
// at 23:59 and one at 00:01 agree on the remaining days.
func (t *Transformer) timeline(submitted, rejected, now time.Time) models.Timeline {
	deadline := rejected.Add(constants.AppealGracePeriod)
	return models.Timeline{
		SubmissionDate:    submitted,
		RejectionDate:     rejected,
		DaysToRejection:   daysBetween(submitted, rejected),
		AppealDeadline:    deadline,
		DaysUntilDeadline: daysBetween(now, deadline),
	}
}

func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	o := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(o.Sub(f).Hours() / 24)
}

// breakdownFromTotal decomposes a payer-reported total using the fixed VAT
// rate. VAT is derived as the remainder so Net + VAT always reproduces the
// total exactly.
func breakdownFromTotal(total float64) models.AmountBreakdown {
	net := round2(total * (1 - constants.VATRate))
	return models.AmountBreakdown{
		Net:   net,
		VAT:   round2(total - net),
		Total: round2(total),
	}
}

// rejectedBreakdown honors a payer-supplied split whenever the detail view
// reported an explicit net amount. A zero VAT alongside it means a VAT-exempt
// rejection, not a missing field. Without a net amount the split is derived
// from the total at the fixed rate.
func rejectedBreakdown(rejection models.RawRejection) models.AmountBreakdown {
	if rejection.NetAmount > 0 {
		return models.AmountBreakdown{
			Net:   round2(rejection.NetAmount),
			VAT:   round2(rejection.VATAmount),
			Total: round2(rejection.NetAmount + rejection.VATAmount),
		}
	}
	return breakdownFromTotal(rejection.RejectedAmount)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// analyze derives preventability and risk. BILLING, ADMINISTRATIVE and
// TECHNICAL rejections are process failures on our side, hence preventable
// and requiring corrective action. Risk is the maximum of the amount signal
// and the category floor: thresholds can only raise a floor, never lower it.
func analyze(category models.Category, rejectedAmount float64) models.Analysis {
	preventable := category == models.CategoryBilling ||
		category == models.CategoryAdministrative ||
		category == models.CategoryTechnical

	amountRisk := models.RiskLow
	switch {
	case rejectedAmount > constants.RiskAmountCritical:
		amountRisk = models.RiskCritical
	case rejectedAmount > constants.RiskAmountHigh:
		amountRisk = models.RiskHigh
	}

	floor := models.RiskLow
	switch category {
	case models.CategoryMedical:
		floor = models.RiskHigh
	case models.CategoryAuthorization:
		floor = models.RiskMedium
	}

	return models.Analysis{
		Preventable:              preventable,
		RiskLevel:                models.MaxRisk(amountRisk, floor),
		CorrectiveActionRequired: preventable,
	}
}

// recordStatus maps the source's appeal status onto the record state
// machine. A record with no explicit appeal status whose deadline has passed
// is forced to FINAL_REJECTION; an explicitly active appeal is kept even
// past the deadline.
func recordStatus(appealStatus string, daysUntilDeadline int) models.RecordStatus {
	switch strings.ToUpper(strings.TrimSpace(appealStatus)) {
	case "UNDER_APPEAL", "APPEALED", "IN_APPEAL":
		return models.StatusUnderAppeal
	case "RECOVERED", "OVERTURNED", "PAID":
		return models.StatusRecovered
	case "FINAL", "FINAL_REJECTION", "UPHELD":
		return models.StatusFinalRejection
	}
	if daysUntilDeadline < 0 {
		return models.StatusFinalRejection
	}
	return models.StatusPendingReview
}

func rejectionType(rejectedAmount, claimedAmount float64) string {
	if claimedAmount > 0 && rejectedAmount < claimedAmount {
		return "PARTIAL"
	}
	return "FULL"
}

func serviceItems(items []models.RawServiceItem) []models.ServiceItem {
	out := make([]models.ServiceItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.ServiceItem{
			Code:        item.Code,
			Description: models.BilingualText{En: item.Description, Ar: item.Description},
			Quantity:    item.Quantity,
			Amount:      item.Amount,
			Rejected:    item.Rejected,
		})
	}
	return out
}

// generateID carries a date component for operator readability; the suffix
// comes from a random UUID.
func generateID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New(), "-", "")[:8]
	return fmt.Sprintf("REJ-%s-%s", now.UTC().Format("20060102"), suffix)
}
