package models

import (
	"net/http"
	"time"
)

// Credentials for the source system. Supplied at startup and immutable for
// the process lifetime.
type Credentials struct {
	Username string
	Password string
	BaseURL  string
}

// Session represents one authenticated browsing session against the source
// system. Exactly one live session exists per session client; sessions are
// never shared across concurrent runs.
type Session struct {
	ID            string
	Cookies       []*http.Cookie
	ExpiresAt     time.Time
	Authenticated bool
}

// Valid reports whether the session can still be used at instant now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Authenticated && now.Before(s.ExpiresAt)
}

// SearchCriteria is the value object submitted to the source search screen.
// Constructed per extraction call.
type SearchCriteria struct {
	DateFrom    time.Time
	DateTo      time.Time
	Statuses    []string
	ClaimNumber string
}

// RawRejection is a source-shaped rejection as harvested from the listing and
// detail pages. Ephemeral: it exists only within one extraction call.
type RawRejection struct {
	ClaimNumber     string
	RejectionID     string
	PayerCode       string
	PayerName       string
	RejectionCode   string
	RejectionReason string
	RejectionDate   time.Time
	RejectedAmount  float64
	NetAmount       float64
	VATAmount       float64
	AppealStatus    string
	Items           []RawServiceItem

	// DetailURL points at the rejection's detail view on the source system.
	// Populated from the listing row; consumed only within the extraction
	// pass that produced it.
	DetailURL string
}

// RawClaim is the source-shaped claim matching a rejection.
type RawClaim struct {
	ClaimNumber    string
	PatientID      string
	PatientName    string
	MemberID       string
	ProviderID     string
	ProviderName   string
	DepartmentCode string
	PhysicianID    string
	SubmissionDate time.Time
	ClaimedAmount  float64
	ApprovedAmount float64
	Status         string
}

// RawServiceItem is one service line from a rejection detail view.
type RawServiceItem struct {
	Code        string
	Description string
	Quantity    int
	Amount      float64
	Rejected    bool
}
