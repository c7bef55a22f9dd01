package models

import "time"

// RecordStatus is the per-record appeal state machine:
// PENDING_REVIEW -> UNDER_APPEAL -> {RECOVERED, FINAL_REJECTION}.
type RecordStatus string

const (
	StatusPendingReview  RecordStatus = "PENDING_REVIEW"
	StatusUnderAppeal    RecordStatus = "UNDER_APPEAL"
	StatusRecovered      RecordStatus = "RECOVERED"
	StatusFinalRejection RecordStatus = "FINAL_REJECTION"
)

// Category classifies the rejection cause.
type Category string

const (
	CategoryMedical        Category = "MEDICAL"
	CategoryBilling        Category = "BILLING"
	CategoryAdministrative Category = "ADMINISTRATIVE"
	CategoryTechnical      Category = "TECHNICAL"
	CategoryAuthorization  Category = "AUTHORIZATION"
)

// RiskLevel orders from LOW to CRITICAL; the numeric rank supports taking the
// maximum of the amount signal and the category floor.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// MaxRisk returns the higher of two risk levels.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if riskRank[a] >= riskRank[b] {
		return a
	}
	return b
}

// BilingualText carries equivalent content in English and Arabic. When no
// translation mapping exists, both fields hold the original string.
type BilingualText struct {
	En string `json:"en"`
	Ar string `json:"ar"`
}

// AmountBreakdown splits a monetary amount into net, VAT and total.
// Invariant: Net + VAT == Total within floating-point rounding.
type AmountBreakdown struct {
	Net   float64 `json:"net"`
	VAT   float64 `json:"vat"`
	Total float64 `json:"total"`
}

type FinancialImpact struct {
	TotalClaimed  AmountBreakdown `json:"totalClaimed"`
	TotalRejected AmountBreakdown `json:"totalRejected"`
	TotalApproved AmountBreakdown `json:"totalApproved"`
	Currency      string          `json:"currency"`
}

type Timeline struct {
	SubmissionDate    time.Time `json:"submissionDate"`
	RejectionDate     time.Time `json:"rejectionDate"`
	DaysToRejection   int       `json:"daysToRejection"`
	AppealDeadline    time.Time `json:"appealDeadline"`
	DaysUntilDeadline int       `json:"daysUntilDeadline"`
}

type Appeal struct {
	Status          RecordStatus `json:"status"`
	SubmittedAt     *time.Time   `json:"submittedAt,omitempty"`
	RecoveredAmount float64      `json:"recoveredAmount"`
	Notes           string       `json:"notes,omitempty"`
}

type ServiceItem struct {
	Code        string        `json:"code"`
	Description BilingualText `json:"description"`
	Quantity    int           `json:"quantity"`
	Amount      float64       `json:"amount"`
	Rejected    bool          `json:"rejected"`
}

type Analysis struct {
	Preventable              bool      `json:"preventable"`
	RiskLevel                RiskLevel `json:"riskLevel"`
	CorrectiveActionRequired bool      `json:"correctiveActionRequired"`
}

type PatientInfo struct {
	PatientID string `json:"patientId"`
	Name      string `json:"name"`
	MemberID  string `json:"memberId"`
}

type ProviderInfo struct {
	ProviderID     string `json:"providerId"`
	Name           string `json:"name"`
	DepartmentCode string `json:"departmentCode"`
	PhysicianID    string `json:"physicianId"`
}

type PayerInfo struct {
	Code string        `json:"code"`
	Name BilingualText `json:"name"`
}

type RejectionDetails struct {
	Code     string        `json:"code"`
	Reason   BilingualText `json:"reason"`
	Category Category      `json:"category"`
	Type     string        `json:"type"`
}

type RecordMetadata struct {
	SourceSystem string    `json:"sourceSystem"`
	ImportedAt   time.Time `json:"importedAt"`
	ImportedBy   string    `json:"importedBy"`
}

// CanonicalRejectionRecord is the target shape delivered to the RCM platform.
type CanonicalRejectionRecord struct {
	ID          string `json:"id"`
	ClaimNumber string `json:"claimNumber"`
	RejectionID string `json:"rejectionId"`

	Patient   PatientInfo      `json:"patient"`
	Provider  ProviderInfo     `json:"provider"`
	Payer     PayerInfo        `json:"payer"`
	Rejection RejectionDetails `json:"rejection"`

	FinancialImpact FinancialImpact `json:"financialImpact"`
	Timeline        Timeline        `json:"timeline"`
	Status          RecordStatus    `json:"status"`
	Appeal          Appeal          `json:"appeal"`
	Services        []ServiceItem   `json:"services"`
	Analysis        Analysis        `json:"analysis"`
	Metadata        RecordMetadata  `json:"metadata"`
}
