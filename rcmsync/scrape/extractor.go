// Package scrape drives an authenticated session against the OASES search
// screens and harvests raw claim and rejection data from the rendered
// listing and detail pages.
package scrape

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/Fadil369/brainsait-rcm-sub002/log"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/audit"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/constants"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/models"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/session"
)

const searchPath = "/claims/search"

// Statuses the source uses for rejection-bearing claims.
var rejectionStatuses = []string{"REJECTED", "PARTIALLY_REJECTED"}

// SearchResult is everything one search pass produced: parsed claims, the
// rejections matched among them, and rows that could not be parsed.
type SearchResult struct {
	Claims     []models.RawClaim
	Rejections []models.RawRejection
	Skipped    []models.SkippedRecord
}

// Extractor harvests raw records through the session client. It shares the
// client's single browsing session, so calls are strictly serial.
type Extractor struct {
	client  *session.Client
	auditor audit.Logger
}

func New(client *session.Client, auditor audit.Logger) *Extractor {
	return &Extractor{client: client, auditor: auditor}
}

// SearchClaims submits the criteria to the search screen and walks the
// paginated listing until exhausted. Zero results is an empty result, not an
// error; only failure to reach the search screen at all is fatal.
func (e *Extractor) SearchClaims(ctx context.Context, criteria models.SearchCriteria) (*SearchResult, error) {
	page, err := e.client.NavigateTo(ctx, e.client.BaseURL()+searchPath)
	if err != nil {
		return nil, err
	}

	page, err = e.submitSearch(ctx, page, criteria)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{}
	for pageNum := 0; page != nil && pageNum < constants.MaxSearchPages; pageNum++ {
		rows, err := parseListingTable(page.Doc)
		if err != nil {
			// An empty result set renders without a table.
			log.Extract.WithError(err).Debug("no listing table; treating as empty result")
			break
		}
		e.collectRows(page, rows, result)

		next := nextPageURL(page.Doc)
		if next == "" {
			break
		}
		target, err := page.Resolve(next)
		if err != nil {
			log.Extract.WithError(err).Warn("bad pagination link; stopping pagination")
			break
		}
		page, err = e.client.NavigateTo(ctx, target)
		if err != nil {
			return nil, err
		}
	}

	e.auditAccess(ctx, "Claim", "SEARCH", len(result.Claims))
	return result, nil
}

// ExtractRejections searches rejection-bearing statuses and opens each
// listed rejection's detail view for the fields the summary row lacks. A
// record whose detail view cannot be parsed becomes a skipped entry; the
// remainder of the batch continues.
func (e *Extractor) ExtractRejections(ctx context.Context, criteria models.SearchCriteria) ([]models.RawRejection, []models.SkippedRecord, error) {
	scoped := criteria
	if len(scoped.Statuses) == 0 {
		scoped.Statuses = rejectionStatuses
	}

	result, err := e.SearchClaims(ctx, scoped)
	if err != nil {
		return nil, nil, err
	}

	skipped := append([]models.SkippedRecord{}, result.Skipped...)
	rejections := make([]models.RawRejection, 0, len(result.Rejections))
	for _, rejection := range result.Rejections {
		if rejection.DetailURL == "" {
			rejections = append(rejections, rejection)
			continue
		}
		enriched, err := e.fetchDetail(ctx, rejection)
		if err != nil {
			if models.IsRunFatal(err) {
				return nil, nil, err
			}
			log.Extract.WithError(err).WithField("claim_number", rejection.ClaimNumber).
				Warn("could not parse rejection detail; skipping record")
			skipped = append(skipped, models.SkippedRecord{
				ClaimNumber: rejection.ClaimNumber,
				Reason:      "detail view unreadable: " + err.Error(),
			})
			continue
		}
		rejections = append(rejections, *enriched)
	}

	e.auditAccess(ctx, "Rejection", "EXTRACT", len(rejections))
	return rejections, skipped, nil
}

// FetchMatchingClaim resolves a rejection's claim number through a scoped
// claim search. Archived or renumbered claims surface as ErrClaimNotFound.
func (e *Extractor) FetchMatchingClaim(ctx context.Context, claimNumber string) (*models.RawClaim, error) {
	result, err := e.SearchClaims(ctx, models.SearchCriteria{ClaimNumber: claimNumber})
	if err != nil {
		return nil, err
	}
	for i := range result.Claims {
		if result.Claims[i].ClaimNumber == claimNumber {
			return &result.Claims[i], nil
		}
	}
	return nil, models.ErrClaimNotFound
}

// submitSearch fills the search form on the current page. When the page has
// no recognizable form the search screen itself is unreachable, which is
// fatal to the run.
func (e *Extractor) submitSearch(ctx context.Context, page *session.Page, criteria models.SearchCriteria) (*session.Page, error) {
	form := page.Doc.Find("form#searchForm, form[name=search], form").First()
	if form.Length() == 0 {
		return nil, &models.NetworkError{Op: "locate search form", Err: errors.New("no form on search page")}
	}

	values := url.Values{}
	if !criteria.DateFrom.IsZero() {
		values.Set("dateFrom", criteria.DateFrom.Format("2006-01-02"))
	}
	if !criteria.DateTo.IsZero() {
		values.Set("dateTo", criteria.DateTo.Format("2006-01-02"))
	}
	for _, status := range criteria.Statuses {
		values.Add("status", status)
	}
	if criteria.ClaimNumber != "" {
		values.Set("claimNo", criteria.ClaimNumber)
	}

	action, _ := form.Attr("action")
	if action == "" {
		action = page.URL.String()
	} else {
		var err error
		action, err = page.Resolve(action)
		if err != nil {
			return nil, &models.NetworkError{Op: "resolve search action", Err: err}
		}
	}

	return e.client.SubmitForm(ctx, action, values)
}

// collectRows converts listing rows into raw claims, peeling off rejections
// for rows that carry a rejection code. Malformed rows are skipped with a
// reason instead of failing the search.
func (e *Extractor) collectRows(page *session.Page, rows []tableRow, result *SearchResult) {
	for _, row := range rows {
		claim, err := rowToClaim(row)
		if err != nil {
			result.Skipped = append(result.Skipped, models.SkippedRecord{
				ClaimNumber: row.fields["claim_number"],
				Reason:      "unparseable listing row: " + err.Error(),
			})
			continue
		}
		result.Claims = append(result.Claims, *claim)

		if row.fields["rejection_code"] == "" && !isRejectedStatus(claim.Status) {
			continue
		}
		rejection, err := rowToRejection(row)
		if err != nil {
			result.Skipped = append(result.Skipped, models.SkippedRecord{
				ClaimNumber: claim.ClaimNumber,
				Reason:      "unparseable rejection row: " + err.Error(),
			})
			continue
		}
		if rejection.DetailURL != "" {
			if resolved, err := page.Resolve(rejection.DetailURL); err == nil {
				rejection.DetailURL = resolved
			}
		}
		result.Rejections = append(result.Rejections, *rejection)
	}
}

// fetchDetail opens a rejection's detail view and merges in the fields the
// listing row did not carry: the service lines, amount split and appeal
// status. The caller stays on the listing; pages are stateless documents so
// no explicit back-navigation is needed.
func (e *Extractor) fetchDetail(ctx context.Context, rejection models.RawRejection) (*models.RawRejection, error) {
	page, err := e.client.NavigateTo(ctx, rejection.DetailURL)
	if err != nil {
		return nil, err
	}

	fields := parseDetailFields(page.Doc)
	if len(fields) == 0 {
		return nil, errors.New("detail view has no recognizable fields")
	}

	if v := fields["rejection_reason"]; v != "" {
		rejection.RejectionReason = v
	}
	if v := fields["rejection_id"]; v != "" {
		rejection.RejectionID = v
	}
	if v := fields["payer_name"]; v != "" {
		rejection.PayerName = v
	}
	if v := fields["appeal_status"]; v != "" {
		rejection.AppealStatus = strings.ToUpper(strings.TrimSpace(v))
	}
	if v := fields["net_amount"]; v != "" {
		if amount, err := parseAmount(v); err == nil {
			rejection.NetAmount = amount
		}
	}
	if v := fields["vat_amount"]; v != "" {
		if amount, err := parseAmount(v); err == nil {
			rejection.VATAmount = amount
		}
	}
	if v := fields["rejection_date"]; v != "" && rejection.RejectionDate.IsZero() {
		if d, err := parseDate(v); err == nil {
			rejection.RejectionDate = d
		}
	}

	page.Doc.Find("table#servicesTable, table.services").First().Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 4 {
			return
		}
		amount, _ := parseAmount(cells.Eq(3).Text())
		item := models.RawServiceItem{
			Code:        strings.TrimSpace(cells.Eq(0).Text()),
			Description: strings.TrimSpace(cells.Eq(1).Text()),
			Quantity:    parseQuantity(cells.Eq(2).Text()),
			Amount:      amount,
			Rejected:    cells.Length() > 4 && strings.EqualFold(strings.TrimSpace(cells.Eq(4).Text()), "yes"),
		}
		rejection.Items = append(rejection.Items, item)
	})

	return &rejection, nil
}

func rowToClaim(row tableRow) (*models.RawClaim, error) {
	claimNumber := row.fields["claim_number"]
	if claimNumber == "" {
		return nil, errors.New("missing claim number")
	}
	claim := &models.RawClaim{
		ClaimNumber:    claimNumber,
		PatientID:      row.fields["patient_id"],
		PatientName:    row.fields["patient_name"],
		MemberID:       row.fields["member_id"],
		ProviderID:     row.fields["provider_id"],
		ProviderName:   row.fields["provider_name"],
		DepartmentCode: row.fields["department_code"],
		PhysicianID:    row.fields["physician_id"],
		Status:         strings.ToUpper(row.fields["status"]),
	}
	if v := row.fields["submission_date"]; v != "" {
		d, err := parseDate(v)
		if err != nil {
			return nil, err
		}
		claim.SubmissionDate = d
	}
	var err error
	if claim.ClaimedAmount, err = parseAmount(row.fields["claimed_amount"]); err != nil {
		return nil, err
	}
	if claim.ApprovedAmount, err = parseAmount(row.fields["approved_amount"]); err != nil {
		return nil, err
	}
	return claim, nil
}

func rowToRejection(row tableRow) (*models.RawRejection, error) {
	rejection := &models.RawRejection{
		ClaimNumber:     row.fields["claim_number"],
		RejectionID:     row.fields["rejection_id"],
		PayerCode:       row.fields["payer_code"],
		PayerName:       row.fields["payer_name"],
		RejectionCode:   row.fields["rejection_code"],
		RejectionReason: row.fields["rejection_reason"],
		AppealStatus:    strings.ToUpper(row.fields["appeal_status"]),
		DetailURL:       row.detailURL,
	}
	if v := row.fields["rejection_date"]; v != "" {
		d, err := parseDate(v)
		if err != nil {
			return nil, err
		}
		rejection.RejectionDate = d
	}
	var err error
	if rejection.RejectedAmount, err = parseAmount(row.fields["rejected_amount"]); err != nil {
		return nil, err
	}
	return rejection, nil
}

func isRejectedStatus(status string) bool {
	for _, s := range rejectionStatuses {
		if status == s {
			return true
		}
	}
	return false
}

func (e *Extractor) auditAccess(ctx context.Context, resourceType, action string, count int) {
	if e.auditor == nil {
		return
	}
	_ = e.auditor.Log(ctx, audit.Event{
		Timestamp:    time.Now().UTC(),
		EventType:    audit.EventAccess,
		UserID:       constants.ImporterIdentity,
		Username:     constants.ImporterIdentity,
		ResourceType: resourceType,
		Action:       action,
		Status:       audit.OutcomeSuccess,
		PHIAccessed:  count > 0,
		Details:      map[string]interface{}{"records": count},
	})
}
