package session

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dimchansky/utfbom"
	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"

	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/constants"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/models"
)

// Page is one rendered source-system page: the parsed document plus the URL
// it was served from, for resolving relative links and form actions.
type Page struct {
	URL *url.URL
	Doc *goquery.Document
}

// Resolve turns a possibly-relative href into an absolute URL against the
// page it appeared on.
func (p *Page) Resolve(href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", errors.Wrapf(err, "could not parse href %q", href)
	}
	return p.URL.ResolveReference(ref).String(), nil
}

// Fetcher abstracts the browsing engine. The production implementation is an
// HTTP client with a cookie jar; a headless-browser engine, or a direct
// machine API if the source ever grows one, can substitute without touching
// the extractor or orchestrator.
type Fetcher interface {
	Get(ctx context.Context, rawurl string) (*Page, error)
	PostForm(ctx context.Context, action string, values url.Values) (*Page, error)
	Cookies(u *url.URL) []*http.Cookie
	Close() error
}

type httpFetcher struct {
	client *http.Client
}

// NewHTTPFetcher builds the default engine. Returns a NetworkError when the
// underlying client cannot be constructed.
func NewHTTPFetcher() (Fetcher, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, &models.NetworkError{Op: "engine start", Err: err}
	}
	return &httpFetcher{
		client: &http.Client{
			Jar:     jar,
			Timeout: constants.InteractionTimeout,
		},
	}, nil
}

func (f *httpFetcher) Get(ctx context.Context, rawurl string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, &models.NetworkError{Op: "navigate", Err: err}
	}
	return f.do(req)
}

func (f *httpFetcher) PostForm(ctx context.Context, action string, values url.Values) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action,
		strings.NewReader(values.Encode()))
	if err != nil {
		return nil, &models.NetworkError{Op: "submit", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(req)
}

func (f *httpFetcher) do(req *http.Request) (*Page, error) {
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &models.NetworkError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	// Legacy OASES pages are served windows-1256 with the occasional UTF-8
	// BOM on exported views; normalize before parsing.
	body, err := charset.NewReader(utfbom.SkipOnly(resp.Body), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &models.NetworkError{Op: "decode page", Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, &models.NetworkError{Op: "parse page", Err: err}
	}

	// The final URL after redirects, not the one requested.
	return &Page{URL: resp.Request.URL, Doc: doc}, nil
}

func (f *httpFetcher) Cookies(u *url.URL) []*http.Cookie {
	if f.client.Jar == nil {
		return nil
	}
	return f.client.Jar.Cookies(u)
}

func (f *httpFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
