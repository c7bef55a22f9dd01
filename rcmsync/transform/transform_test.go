package transform

import (
	"testing"
	"time"

	"github.com/Pallinder/go-randomdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/models"
)

type TransformTestSuite struct {
	suite.Suite
	transformer *Transformer
	now         time.Time
}

func (s *TransformTestSuite) SetupTest() {
	s.now = time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	s.transformer = &Transformer{Now: func() time.Time { return s.now }}
}

func TestTransformTestSuite(t *testing.T) {
	suite.Run(t, new(TransformTestSuite))
}

func (s *TransformTestSuite) rawPair(code string, amount float64) (models.RawRejection, models.RawClaim) {
	rejection := models.RawRejection{
		ClaimNumber:    "CLM-1001",
		RejectionID:    "REJ-9",
		PayerCode:      "TAWUNIYA",
		RejectionCode:  code,
		RejectionDate:  time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		RejectedAmount: amount,
	}
	claim := models.RawClaim{
		ClaimNumber:    "CLM-1001",
		PatientID:      "PAT-7",
		PatientName:    randomdata.FullName(randomdata.RandomGender),
		MemberID:       "MBR-4",
		ProviderID:     "PRV-2",
		ProviderName:   "King Fahd Clinic",
		SubmissionDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		ClaimedAmount:  amount + 500,
		ApprovedAmount: 500,
		Status:         "REJECTED",
	}
	return rejection, claim
}

func (s *TransformTestSuite) TestDeterministicExceptID() {
	rejection, claim := s.rawPair("B01", 1000)

	first, err := s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)
	second, err := s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)

	assert.NotEqual(s.T(), first.ID, second.ID)
	first.ID, second.ID = "", ""
	assert.Equal(s.T(), first, second)
}

func (s *TransformTestSuite) TestAppealDeadlineIsThirtyDays() {
	rejection, claim := s.rawPair("A01", 200)

	record, err := s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), rejection.RejectionDate.AddDate(0, 0, 30), record.Timeline.AppealDeadline)
	assert.Equal(s.T(), 9, record.Timeline.DaysToRejection)
	assert.Equal(s.T(), 20, record.Timeline.DaysUntilDeadline)
}

func (s *TransformTestSuite) TestExpiredDeadlineForcesFinalRejection() {
	rejection, claim := s.rawPair("A01", 200)
	rejection.RejectionDate = s.now.AddDate(0, 0, -45)
	claim.SubmissionDate = s.now.AddDate(0, 0, -50)

	record, err := s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)

	assert.Negative(s.T(), record.Timeline.DaysUntilDeadline)
	assert.Equal(s.T(), models.StatusFinalRejection, record.Status)
}

func (s *TransformTestSuite) TestActiveAppealSurvivesExpiredDeadline() {
	rejection, claim := s.rawPair("A01", 200)
	rejection.RejectionDate = s.now.AddDate(0, 0, -45)
	claim.SubmissionDate = s.now.AddDate(0, 0, -50)
	rejection.AppealStatus = "UNDER_APPEAL"

	record, err := s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), models.StatusUnderAppeal, record.Status)
}

func (s *TransformTestSuite) TestMedicalHighAmountIsCriticalNotPreventable() {
	rejection, claim := s.rawPair("M01", 60000)

	record, err := s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), models.CategoryMedical, record.Rejection.Category)
	assert.Equal(s.T(), models.RiskCritical, record.Analysis.RiskLevel)
	assert.False(s.T(), record.Analysis.Preventable)
	assert.False(s.T(), record.Analysis.CorrectiveActionRequired)
}

func (s *TransformTestSuite) TestBillingLowAmountIsLowRiskPreventable() {
	rejection, claim := s.rawPair("B01", 1000)

	record, err := s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), models.CategoryBilling, record.Rejection.Category)
	assert.Equal(s.T(), models.RiskLow, record.Analysis.RiskLevel)
	assert.True(s.T(), record.Analysis.Preventable)
	assert.True(s.T(), record.Analysis.CorrectiveActionRequired)
}

func (s *TransformTestSuite) TestCategoryFloorsOnlyRaise() {
	// MEDICAL floor holds at HIGH for a small amount.
	rejection, claim := s.rawPair("M02", 50)
	record, err := s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.RiskHigh, record.Analysis.RiskLevel)

	// AUTHORIZATION floor is MEDIUM, raised to HIGH by the amount signal.
	rejection, claim = s.rawPair("P01", 15000)
	record, err = s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.RiskHigh, record.Analysis.RiskLevel)
	assert.False(s.T(), record.Analysis.Preventable)
}

func (s *TransformTestSuite) TestVATDecompositionRoundTrips() {
	for _, amount := range []float64{0, 0.01, 99.99, 1000, 4321.37, 60000} {
		rejection, claim := s.rawPair("T01", amount)
		record, err := s.transformer.Transform(rejection, claim)
		require.NoError(s.T(), err)

		for _, b := range []models.AmountBreakdown{
			record.FinancialImpact.TotalClaimed,
			record.FinancialImpact.TotalRejected,
			record.FinancialImpact.TotalApproved,
		} {
			assert.InDelta(s.T(), b.Total, b.Net+b.VAT, 0.005,
				"net %v + vat %v should equal total %v", b.Net, b.VAT, b.Total)
		}
	}
}

func (s *TransformTestSuite) TestPayerSuppliedComponentsUsedAsIs() {
	rejection, claim := s.rawPair("B02", 1000)
	rejection.NetAmount = 850
	rejection.VATAmount = 150

	record, err := s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), 850.0, record.FinancialImpact.TotalRejected.Net)
	assert.Equal(s.T(), 150.0, record.FinancialImpact.TotalRejected.VAT)
	assert.Equal(s.T(), 1000.0, record.FinancialImpact.TotalRejected.Total)
}

func (s *TransformTestSuite) TestVATExemptSuppliedNetKept() {
	rejection, claim := s.rawPair("B02", 1000)
	rejection.NetAmount = 1000
	rejection.VATAmount = 0

	record, err := s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)

	// An explicit net with zero VAT is a VAT-exempt split, not a missing one;
	// it must not be recomputed at the standard rate.
	assert.Equal(s.T(), 1000.0, record.FinancialImpact.TotalRejected.Net)
	assert.Equal(s.T(), 0.0, record.FinancialImpact.TotalRejected.VAT)
	assert.Equal(s.T(), 1000.0, record.FinancialImpact.TotalRejected.Total)
}

func (s *TransformTestSuite) TestBilingualMappingAndFallback() {
	rejection, claim := s.rawPair("M01", 100)
	record, err := s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Service not medically necessary", record.Rejection.Reason.En)
	assert.Equal(s.T(), "الخدمة غير ضرورية طبياً", record.Rejection.Reason.Ar)
	assert.Equal(s.T(), "Tawuniya", record.Payer.Name.En)
	assert.Equal(s.T(), "التعاونية", record.Payer.Name.Ar)

	// Unknown code and payer pass the original strings through unchanged.
	rejection.RejectionCode = "ZZ99"
	rejection.RejectionReason = "Mystery denial"
	rejection.PayerCode = "UNKNOWN_PAYER"
	rejection.PayerName = "Some Local Fund"
	record, err = s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.BilingualText{En: "Mystery denial", Ar: "Mystery denial"}, record.Rejection.Reason)
	assert.Equal(s.T(), models.BilingualText{En: "Some Local Fund", Ar: "Some Local Fund"}, record.Payer.Name)
	assert.Equal(s.T(), models.CategoryAdministrative, record.Rejection.Category)
}

func (s *TransformTestSuite) TestRecoveredAppealStatus() {
	rejection, claim := s.rawPair("B01", 300)
	rejection.AppealStatus = "RECOVERED"

	record, err := s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusRecovered, record.Status)
	assert.Equal(s.T(), models.StatusRecovered, record.Appeal.Status)
}

func (s *TransformTestSuite) TestMissingDatesAreRecordErrors() {
	rejection, claim := s.rawPair("B01", 300)
	rejection.RejectionDate = time.Time{}
	_, err := s.transformer.Transform(rejection, claim)
	assert.Error(s.T(), err)

	rejection, claim = s.rawPair("B01", 300)
	claim.SubmissionDate = time.Time{}
	_, err = s.transformer.Transform(rejection, claim)
	assert.Error(s.T(), err)
}

func (s *TransformTestSuite) TestMetadataAndIDShape() {
	rejection, claim := s.rawPair("B01", 300)
	record, err := s.transformer.Transform(rejection, claim)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), "OASES", record.Metadata.SourceSystem)
	assert.Equal(s.T(), "rcm-sync-service", record.Metadata.ImportedBy)
	assert.Regexp(s.T(), `^REJ-20260820-[0-9a-f]{8}$`, record.ID)
	assert.Equal(s.T(), "PARTIAL", record.Rejection.Type)
}
