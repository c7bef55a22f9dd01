package scrape

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// normalizeHeader collapses a column header to a comparable key:
// "Claim No." and "claim_number" both become claim-family keys via aliases.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return nonAlnum.ReplaceAllString(h, "")
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// headerAliases maps normalized source column headers to canonical field
// keys. The legacy UI has shipped several spellings over the years; new ones
// get added here when a release renames a column.
var headerAliases = map[string]string{
	"claimno":     "claim_number",
	"claimnumber": "claim_number",
	"claim":       "claim_number",

	"rejectionid":     "rejection_id",
	"rejectionno":     "rejection_id",
	"denialid":        "rejection_id",
	"rejectioncode":   "rejection_code",
	"denialcode":      "rejection_code",
	"rejectionreason": "rejection_reason",
	"denialreason":    "rejection_reason",
	"reason":          "rejection_reason",
	"rejectiondate":   "rejection_date",
	"denialdate":      "rejection_date",
	"rejectedamount":  "rejected_amount",
	"deniedamount":    "rejected_amount",
	"appealstatus":    "appeal_status",

	"payer":            "payer_code",
	"payercode":        "payer_code",
	"insurancecompany": "payer_name",
	"payername":        "payer_name",

	"patientid":   "patient_id",
	"patientname": "patient_name",
	"memberid":    "member_id",
	"policyno":    "member_id",

	"providerid":   "provider_id",
	"providername": "provider_name",
	"department":   "department_code",
	"physicianid":  "physician_id",

	"status":         "status",
	"submissiondate": "submission_date",
	"submitdate":     "submission_date",
	"claimedamount":  "claimed_amount",
	"grossamount":    "claimed_amount",
	"approvedamount": "approved_amount",
	"netamount":      "net_amount",
	"vatamount":      "vat_amount",
	"vat":            "vat_amount",
}

// tableRows parses the first listing table on the page into header-keyed
// row maps plus each row's first detail link, if any.
type tableRow struct {
	fields    map[string]string
	detailURL string
}

func parseListingTable(doc *goquery.Document) ([]tableRow, error) {
	table := doc.Find("table#resultsTable, table.results, table.listing").First()
	if table.Length() == 0 {
		table = doc.Find("table").FilterFunction(func(_ int, t *goquery.Selection) bool {
			return t.Find("th").Length() > 0
		}).First()
	}
	if table.Length() == 0 {
		return nil, errors.New("no results table on page")
	}

	var headers []string
	table.Find("tr").First().Find("th").Each(func(_ int, th *goquery.Selection) {
		key := normalizeHeader(th.Text())
		if canonical, ok := headerAliases[key]; ok {
			key = canonical
		}
		headers = append(headers, key)
	})
	if len(headers) == 0 {
		return nil, errors.New("results table has no header row")
	}

	var rows []tableRow
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return // header or separator row
		}
		row := tableRow{fields: make(map[string]string, len(headers))}
		cells.Each(func(j int, td *goquery.Selection) {
			if j >= len(headers) {
				return
			}
			row.fields[headers[j]] = strings.TrimSpace(td.Text())
			if row.detailURL == "" {
				if href, ok := td.Find("a").First().Attr("href"); ok {
					row.detailURL = href
				}
			}
		})
		rows = append(rows, row)
	})
	return rows, nil
}

// parseDetailFields reads label/value pairs from a detail view. The legacy
// system renders them as either dt/dd lists or two-column tables with th
// labels.
func parseDetailFields(doc *goquery.Document) map[string]string {
	fields := make(map[string]string)

	doc.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
		key := normalizeHeader(dt.Text())
		if canonical, ok := headerAliases[key]; ok {
			key = canonical
		}
		fields[key] = strings.TrimSpace(dt.Next().Text())
	})

	doc.Find("table.details tr, table.detail tr").Each(func(_ int, tr *goquery.Selection) {
		label := tr.Find("th").First()
		value := tr.Find("td").First()
		if label.Length() == 0 || value.Length() == 0 {
			return
		}
		key := normalizeHeader(label.Text())
		if canonical, ok := headerAliases[key]; ok {
			key = canonical
		}
		fields[key] = strings.TrimSpace(value.Text())
	})

	return fields
}

// nextPageURL finds the pagination link for the following page, empty when
// the listing is exhausted.
func nextPageURL(doc *goquery.Document) string {
	sel := doc.Find("a[rel=next], a.next, li.next a").First()
	if sel.Length() == 0 {
		sel = doc.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
			t := strings.ToLower(strings.TrimSpace(a.Text()))
			return t == "next" || t == ">" || t == "التالي"
		}).First()
	}
	if sel.Length() == 0 {
		return ""
	}
	href, _ := sel.Attr("href")
	if href == "#" {
		return ""
	}
	return href
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"02 Jan 2006",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized date %q", s)
}

var amountJunk = strings.NewReplacer(",", "", "SAR", "", "ر.س", "", " ", "", " ", "")

func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(amountJunk.Replace(s))
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Errorf("unrecognized amount %q", s)
	}
	return f, nil
}

func parseQuantity(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 1
	}
	return n
}
