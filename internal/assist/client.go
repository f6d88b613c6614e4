package assist

import (
	"context"
	"encoding/json"
	"fmt"

	"autoclass-backend/internal/components/assert"
	"autoclass-backend/internal/components/telemetry"
	"autoclass-backend/internal/transfer"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("autoclass-backend/internal/assist")
var failureCounter, _ = meter.Int64Counter(
	"upstream_failures_total",
	metric.WithDescription("Upstream lookups that failed, by step."),
)

const (
	report_client_years        = "client.years"
	report_client_institutions = "client.institutions"
	report_client_categories   = "client.categories"
	report_client_majors       = "client.majors"
	report_client_agreement    = "client.agreement"
	report_client_lookup       = "client.lookup"
)

// Client wraps the chained API lookups. Every call fails fast with the
// session's error if the session is degraded.
type Client struct {
	session *Session
	tel     telemetry.API

	// academic years only change once a year, they are fetched once per session
	years []AcademicYear
}

func NewClient(session *Session) *Client {
	assert.NotNil(session)
	return &Client{
		session: session,
		tel:     session.tel,
	}
}

func (c *Client) Session() *Session {
	return c.session
}

type apiRequest struct {
	step     transfer.Step
	reportId string
	endpoint string
	query    map[string]string
	referer  string
	headers  map[string]string
}

const maxErrorBody = 200

func (c *Client) getJSON(ctx context.Context, req apiRequest, out any) error {
	err := c.session.Err()
	if err != nil {
		return err
	}

	c.tel.ReportDebug(req.reportId, req.endpoint, req.query)

	r := c.session.Http.R().
		SetContext(ctx).
		SetHeaders(c.session.AuthHeaders(req.referer))
	if len(req.headers) > 0 {
		r.SetHeaders(req.headers)
	}
	if len(req.query) > 0 {
		r.SetQueryParams(req.query)
	}

	res, err := r.Get(req.endpoint)
	if err != nil {
		fail := &transfer.UpstreamLookupError{
			Step:    req.step,
			Message: "request failed",
			Err:     err,
		}
		return c.fail(ctx, req.reportId, fail)
	}
	if res.IsError() {
		body := res.String()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		fail := &transfer.UpstreamLookupError{
			Step:    req.step,
			Message: fmt.Sprintf("%s: %s", res.Status(), body),
		}
		return c.fail(ctx, req.reportId, fail)
	}

	err = json.Unmarshal(res.Body(), out)
	if err != nil {
		fail := &transfer.UpstreamLookupError{
			Step:    req.step,
			Message: "decode response",
			Err:     err,
		}
		return c.fail(ctx, req.reportId, fail)
	}
	return nil
}

// shapeError reports and returns an UpstreamLookupError for a response that
// decoded but does not look like what the endpoint should return.
func (c *Client) shapeError(ctx context.Context, step transfer.Step, reportId, message string) error {
	return c.fail(ctx, reportId, &transfer.UpstreamLookupError{
		Step:    step,
		Message: message,
	})
}

func (c *Client) fail(ctx context.Context, reportId string, fail *transfer.UpstreamLookupError) error {
	c.tel.ReportBroken(reportId, fail)
	failureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("step", string(fail.Step))))
	return fail
}
