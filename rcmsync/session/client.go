// Package session owns the single authenticated browsing session against the
// legacy OASES claims system. The source exposes no machine API; every
// interaction goes through rendered pages, so this package carries the login
// heuristics that survive that system's habit of renaming its form fields.
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Fadil369/brainsait-rcm-sub002/log"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/audit"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/constants"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/models"
)

// Ordered candidate attribute values for locating the login fields. Each
// candidate is tried against both the element's name and id; the first match
// wins. Keep ordered from most to least common — upstream UI releases have
// renamed these more than once.
var (
	usernameCandidates = []string{"username", "user", "login", "userid", "user_name", "txtUsername"}
	passwordCandidates = []string{"password", "pass", "pwd", "passwd", "txtPassword"}
)

// Cookie names the source system has been observed to issue sessions under.
var sessionCookieNames = []string{
	"JSESSIONID", "ASP.NET_SessionId", "PHPSESSID", "SESSIONID", "session_id", "sid",
}

// Selectors that indicate the login attempt was rejected on-page.
var errorBannerSelectors = []string{
	"#loginError", "#lblError", ".login-error", ".error-message", ".alert-danger", ".validation-summary-errors",
}

// Client maintains one authenticated session. Not safe for concurrent runs;
// the orchestrator serializes access by design.
type Client struct {
	creds   models.Credentials
	auditor audit.Logger

	mu      sync.Mutex
	fetcher Fetcher
	session *models.Session
	now     func() time.Time

	// newFetcher is swapped in tests to inject a fixture engine.
	newFetcher func() (Fetcher, error)
}

func NewClient(creds models.Credentials, auditor audit.Logger) *Client {
	return &Client{
		creds:      creds,
		auditor:    auditor,
		now:        time.Now,
		newFetcher: NewHTTPFetcher,
	}
}

// Initialize acquires an isolated browsing context. Fails with NetworkError
// when the engine cannot start.
func (c *Client) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetcher != nil {
		return nil
	}
	f, err := c.newFetcher()
	if err != nil {
		return err
	}
	c.fetcher = f
	return nil
}

// IsAuthenticated reports whether a live session exists. Expiry is a fixed
// duration from authentication time; activity does not renew it.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Valid(c.now())
}

// Authenticate navigates to the base address, clears any interstitial, fills
// and submits the login form, and verifies a session cookie resulted. Every
// attempt is audit-logged with the actor identity and outcome.
func (c *Client) Authenticate(ctx context.Context) error {
	if err := c.Initialize(); err != nil {
		c.auditLogin(ctx, audit.OutcomeFailure, err.Error())
		return err
	}

	page, err := c.fetcher.Get(ctx, c.creds.BaseURL)
	if err != nil {
		c.auditLogin(ctx, audit.OutcomeFailure, err.Error())
		return err
	}

	page, err = c.clearInterstitials(ctx, page)
	if err != nil {
		c.auditLogin(ctx, audit.OutcomeFailure, err.Error())
		return err
	}

	page, err = c.submitLogin(ctx, page)
	if err != nil {
		c.auditLogin(ctx, audit.OutcomeFailure, err.Error())
		return err
	}

	if msg, found := findErrorBanner(page.Doc); found {
		err := &models.AuthenticationError{Reason: fmt.Sprintf("login rejected: %s", msg)}
		c.auditLogin(ctx, audit.OutcomeFailure, err.Error())
		return err
	}

	cookie := c.sessionCookie(page.URL)
	if cookie == nil {
		err := &models.AuthenticationError{Reason: "no session cookie issued"}
		c.auditLogin(ctx, audit.OutcomeFailure, err.Error())
		return err
	}

	c.mu.Lock()
	c.session = &models.Session{
		ID:            cookie.Value,
		Cookies:       c.fetcher.Cookies(page.URL),
		ExpiresAt:     c.now().Add(constants.SessionTTL),
		Authenticated: true,
	}
	c.mu.Unlock()

	c.auditLogin(ctx, audit.OutcomeSuccess, "")
	log.Session.WithField("username", c.creds.Username).Info("authenticated against source system")
	return nil
}

// NavigateTo fetches a page, transparently authenticating first when the
// session is missing or expired.
func (c *Client) NavigateTo(ctx context.Context, rawurl string) (*Page, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}
	return c.fetcher.Get(ctx, rawurl)
}

// SubmitForm posts form values to an absolute action URL under the live
// session, authenticating first when needed.
func (c *Client) SubmitForm(ctx context.Context, action string, values url.Values) (*Page, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}
	return c.fetcher.PostForm(ctx, action, values)
}

// ExtractData runs fn under an authenticated session. The callback receives
// the client itself for page navigation.
func (c *Client) ExtractData(ctx context.Context, fn func(ctx context.Context, c *Client) error) error {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return err
	}
	return fn(ctx, c)
}

// BaseURL exposes the configured source address for building search URLs.
func (c *Client) BaseURL() string { return c.creds.BaseURL }

// Close logs a logout audit entry when a session existed and releases the
// browsing context. It does not attempt a remote logout; the legacy system
// expires the cookie server-side.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	hadSession := c.session != nil
	c.session = nil
	f := c.fetcher
	c.fetcher = nil
	c.mu.Unlock()

	if hadSession {
		c.audit(ctx, audit.Event{
			EventType:    audit.EventLogout,
			ResourceType: "Session",
			Action:       "LOGOUT",
			Status:       audit.OutcomeSuccess,
		})
	}
	if f != nil {
		return f.Close()
	}
	return nil
}

func (c *Client) ensureAuthenticated(ctx context.Context) error {
	if c.IsAuthenticated() {
		return nil
	}
	return c.Authenticate(ctx)
}

// clearInterstitials recognizes the two interstitial variants that sit in
// front of the login page and clicks through each at most once: a third-party
// security-suite check page, and the browser-style certificate warning the
// system serves for stale intranet certificates.
func (c *Client) clearInterstitials(ctx context.Context, page *Page) (*Page, error) {
	// Variant 1: security-suite check page with a continue form.
	if form := page.Doc.Find("form#securityCheckForm, form[name='security_check']").First(); form.Length() > 0 {
		log.Session.Info("clearing security-suite interstitial")
		next, err := c.submitFormSelection(ctx, page, form, nil)
		if err != nil {
			return nil, err
		}
		page = next
	}

	// Variant 2: certificate warning with a proceed link.
	if link := page.Doc.Find("a#proceed-link, a#overrideLink").First(); link.Length() > 0 {
		href, ok := link.Attr("href")
		if ok && href != "" && href != "#" {
			log.Session.Info("clearing certificate-warning interstitial")
			target, err := page.Resolve(href)
			if err != nil {
				return nil, &models.NetworkError{Op: "interstitial", Err: err}
			}
			next, err := c.fetcher.Get(ctx, target)
			if err != nil {
				return nil, err
			}
			page = next
		}
	}

	return page, nil
}

// submitLogin locates the username/password fields by the ordered candidate
// lists, fills them, and submits the enclosing form with all of its hidden
// inputs intact (the legacy pages carry viewstate fields the server insists
// on getting back).
func (c *Client) submitLogin(ctx context.Context, page *Page) (*Page, error) {
	userField, userSel := findField(page.Doc, usernameCandidates)
	passField, passSel := findField(page.Doc, passwordCandidates)
	if userSel == nil || passSel == nil {
		return nil, &models.AuthenticationError{Reason: "could not locate login fields"}
	}

	form := userSel.Closest("form")
	if form.Length() == 0 {
		return nil, &models.AuthenticationError{Reason: "login fields are not inside a form"}
	}

	overrides := url.Values{}
	overrides.Set(userField, c.creds.Username)
	overrides.Set(passField, c.creds.Password)

	return c.submitFormSelection(ctx, page, form, overrides)
}

// submitFormSelection serializes a form's inputs, applies overrides, and
// posts it to the resolved action URL.
func (c *Client) submitFormSelection(ctx context.Context, page *Page, form *goquery.Selection, overrides url.Values) (*Page, error) {
	values := url.Values{}
	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		if t, _ := input.Attr("type"); t == "submit" || t == "button" {
			return
		}
		val, _ := input.Attr("value")
		values.Set(name, val)
	})
	for key, vals := range overrides {
		values[key] = vals
	}

	action, _ := form.Attr("action")
	if action == "" {
		action = page.URL.String()
	} else {
		var err error
		action, err = page.Resolve(action)
		if err != nil {
			return nil, &models.NetworkError{Op: "resolve form action", Err: err}
		}
	}

	return c.fetcher.PostForm(ctx, action, values)
}

// findField tries the candidate list against input name then id attributes.
// Returns the effective form field name and the matched selection.
func findField(doc *goquery.Document, candidates []string) (string, *goquery.Selection) {
	for _, candidate := range candidates {
		if sel := doc.Find(fmt.Sprintf("input[name=%q]", candidate)).First(); sel.Length() > 0 {
			return candidate, sel
		}
		if sel := doc.Find(fmt.Sprintf("input#%s", candidate)).First(); sel.Length() > 0 {
			// Matched by id; the posted field name may differ.
			if name, ok := sel.Attr("name"); ok && name != "" {
				return name, sel
			}
			return candidate, sel
		}
	}
	return "", nil
}

func findErrorBanner(doc *goquery.Document) (string, bool) {
	for _, selector := range errorBannerSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				return text, true
			}
		}
	}
	return "", false
}

func (c *Client) sessionCookie(u *url.URL) *http.Cookie {
	for _, cookie := range c.fetcher.Cookies(u) {
		for _, name := range sessionCookieNames {
			if strings.EqualFold(cookie.Name, name) && cookie.Value != "" {
				return cookie
			}
		}
	}
	return nil
}

func (c *Client) auditLogin(ctx context.Context, outcome, detail string) {
	event := audit.Event{
		EventType:    audit.EventLogin,
		ResourceType: "Session",
		Action:       "LOGIN",
		Status:       outcome,
	}
	if detail != "" {
		event.Details = map[string]interface{}{"reason": detail}
	}
	c.audit(ctx, event)
}

func (c *Client) audit(ctx context.Context, event audit.Event) {
	event.Timestamp = time.Now().UTC()
	event.UserID = c.creds.Username
	event.Username = c.creds.Username
	if c.auditor != nil {
		_ = c.auditor.Log(ctx, event)
	}
}
