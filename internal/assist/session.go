// Package assist talks to the articulation service's JSON API the same way
// its own web frontend does: a session cookie and an anti-forgery token are
// picked up from the landing page and echoed back on every call.
package assist

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"autoclass-backend/internal/components/assert"
	"autoclass-backend/internal/components/telemetry"
	"autoclass-backend/internal/transfer"
	"autoclass-backend/pkg/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

const (
	report_session_init = "session.init"
)

const (
	DefaultBaseUrl = "https://assist.org/"

	xsrfCookie = "XSRF-TOKEN"
	xsrfHeader = "X-XSRF-TOKEN"

	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type Options struct {
	BaseUrl           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	// Exchanges receives every request and response made, if set.
	Exchanges restyutil.Output
}

func (o Options) withDefaults() Options {
	if o.BaseUrl == "" {
		o.BaseUrl = DefaultBaseUrl
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 2
	}
	return o
}

// Session is the per-resolution connection state. It is never shared between
// resolutions. A session that failed to pick up its token is degraded, every
// call made through it fails with the same SessionInitError.
type Session struct {
	BaseUrl *url.URL
	Http    *resty.Client

	token string
	err   error
	tel   telemetry.API
}

func newHttpClient(baseUrl *url.URL, opts Options, tel telemetry.API) (*resty.Client, error) {
	httpClient := resty.New()
	httpClient.SetBaseURL(baseUrl.String())
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeader("user-agent", browserUserAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	httpClient.SetTimeout(opts.RequestTimeout)

	// a single retry on transport failures and upstream 5xx
	httpClient.SetRetryCount(1)
	httpClient.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return res != nil && res.StatusCode() >= http.StatusInternalServerError
	})

	// burst matches the rate so that no requests are dropped
	burst := max(int(opts.RequestsPerSecond), 1)
	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, "autoclass-backend/internal/assist", tel)
	if opts.Exchanges != nil {
		restyutil.Dump(httpClient, opts.Exchanges)
	}

	return httpClient, nil
}

// NewSession makes the one unauthenticated request to the landing page that
// hands out the session cookie and the anti-forgery token. It always returns a
// session, check Err to see if it is usable.
func NewSession(ctx context.Context, opts Options, tel telemetry.API) *Session {
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("assist", tel)
	opts = opts.withDefaults()

	s := &Session{tel: tel}
	degrade := func(err error) *Session {
		s.err = &transfer.SessionInitError{Err: err}
		tel.ReportBroken(report_session_init, err)
		failureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("step", string(transfer.StepSession))))
		return s
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return degrade(fmt.Errorf("parse base url: %w", err))
	}
	s.BaseUrl = baseUrl

	httpClient, err := newHttpClient(baseUrl, opts, tel)
	if err != nil {
		return degrade(fmt.Errorf("create http client: %w", err))
	}
	s.Http = httpClient

	res, err := httpClient.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		}).
		Get("/")
	if err != nil {
		return degrade(fmt.Errorf("fetch landing page: %w", err))
	}
	if res.IsError() {
		return degrade(fmt.Errorf("fetch landing page: %s", res.Status()))
	}

	for _, cookie := range httpClient.GetClient().Jar.Cookies(baseUrl) {
		if cookie.Name == xsrfCookie && cookie.Value != "" {
			s.token = cookie.Value
			break
		}
	}
	if s.token == "" {
		return degrade(fmt.Errorf("%s cookie was not set by landing page", xsrfCookie))
	}

	tel.ReportDebug("session initialized")
	return s
}

// Err returns the SessionInitError of a degraded session, or nil.
func (s *Session) Err() error {
	return s.err
}

// AuthHeaders returns the headers the frontend sends with API calls, `referer`
// defaults to the base url.
func (s *Session) AuthHeaders(referer string) map[string]string {
	if referer == "" && s.BaseUrl != nil {
		referer = s.BaseUrl.String()
	}
	headers := map[string]string{
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"Content-Type":    "application/json",
		"Referer":         referer,
	}
	if s.token != "" {
		headers[xsrfHeader] = s.token
	}
	return headers
}

type queryParam struct {
	key   string
	value string
}

// pageUrl resolves a frontend page against the base url, the query keeps the
// order the frontend itself uses.
func (s *Session) pageUrl(path string, params ...queryParam) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = url.QueryEscape(p.key) + "=" + url.QueryEscape(p.value)
	}
	ref := s.BaseUrl.JoinPath(path)
	ref.RawQuery = strings.Join(parts, "&")
	return ref.String()
}
