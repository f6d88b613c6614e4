// Package resolver turns a (source, target, major) question into a single
// resolution result, picking one of the acquisition strategies per request.
package resolver

import (
	"context"
	"slices"

	"autoclass-backend/internal/agreement"
	"autoclass-backend/internal/assist"
	"autoclass-backend/internal/automation"
	"autoclass-backend/internal/components/assert"
	"autoclass-backend/internal/components/chrono"
	"autoclass-backend/internal/components/telemetry"
	"autoclass-backend/internal/transfer"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_resolver_resolve = "resolver.resolve"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

var meter = otel.Meter("autoclass-backend/internal/resolver")

var resolutionCounter, _ = meter.Int64Counter(
	"resolutions_total",
	metric.WithDescription("Resolutions served, by acquisition method and outcome."),
)
var requirementCounter, _ = meter.Int64Counter(
	"requirements_resolved_total",
	metric.WithDescription("Course requirements returned by successful resolutions, by acquisition method."),
)

type Flags struct {
	// AutomationOnly forces the browser walk.
	AutomationOnly bool
	// GuaranteedLiveData asks for data read off the rendered frontend, it
	// also forces the browser walk.
	GuaranteedLiveData bool
}

type Request struct {
	SourceInstitution  string
	TargetInstitution  string
	Major              string
	CompletedCourses   []string
	TargetTerm         string
	TargetAcademicYear string
	Flags              Flags

	// StaticLookupDisabled sends requests the static table could answer to
	// the API instead.
	StaticLookupDisabled bool
}

type Strategy int

const (
	StrategyStatic Strategy = iota
	StrategyAPI
	StrategyAutomation
)

func (s Strategy) Method() transfer.Method {
	switch s {
	case StrategyStatic:
		return transfer.MethodStatic
	case StrategyAPI:
		return transfer.MethodAPI
	case StrategyAutomation:
		return transfer.MethodAutomation
	}
	panic("unknown strategy")
}

func (s Strategy) String() string {
	return string(s.Method())
}

// Plan picks the strategy for a request, it is decided once and never
// revisited: a failed strategy is never followed by another one.
func Plan(req Request) Strategy {
	if req.Flags.AutomationOnly || req.Flags.GuaranteedLiveData {
		return StrategyAutomation
	}
	if !req.StaticLookupDisabled {
		_, ok := lookupStatic(req.SourceInstitution, req.TargetInstitution, req.Major)
		if ok {
			return StrategyStatic
		}
	}
	return StrategyAPI
}

type Resolver struct {
	assistOpts assist.Options
	walker     *automation.Walker
	time       chrono.API
	tel        telemetry.API
}

func NewResolver(assistOpts assist.Options, walker *automation.Walker, time chrono.API, tel telemetry.API) *Resolver {
	assert.NotNil(walker)
	assert.NotNil(time)
	assert.NotNil(tel)

	return &Resolver{
		assistOpts: assistOpts,
		walker:     walker,
		time:       time,
		tel:        telemetry.NewScopedAPI("resolver", tel),
	}
}

// Resolve never fails, errors of the chosen strategy come back as a result
// with Error set and no requirements.
func (r *Resolver) Resolve(ctx context.Context, req Request) transfer.ResolutionResult {
	strategy := Plan(req)
	r.tel.ReportDebug("resolving", strategy.String(), req.SourceInstitution, req.TargetInstitution, req.Major)

	result := transfer.ResolutionResult{
		Origin:       req.SourceInstitution,
		Target:       req.TargetInstitution,
		Major:        req.Major,
		Term:         req.TargetTerm,
		Method:       strategy.Method(),
		Requirements: []transfer.CourseRequirement{},
	}
	if result.Term == "" {
		result.Term = transfer.TermUnspecified
	}

	var reqs []transfer.CourseRequirement
	var err error
	switch strategy {
	case StrategyStatic:
		reqs = r.resolveStatic(req, &result)
	case StrategyAPI:
		reqs, err = r.resolveAPI(ctx, req, &result)
	case StrategyAutomation:
		reqs, err = r.resolveAutomation(ctx, req, &result)
	}
	if err != nil {
		r.tel.ReportWarning(report_resolver_resolve, strategy.String(), err)
		resolutionCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", strategy.String()),
			attribute.String("outcome", outcomeFailure),
		))
		result.Error = err.Error()
		result.Agreement = ""
		result.AcademicYear = ""
		return result
	}

	reqs = transfer.Dedupe(reqs)
	result.Requirements = transfer.MarkCompletion(reqs, req.CompletedCourses)

	method := metric.WithAttributes(attribute.String("method", strategy.String()))
	resolutionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", strategy.String()),
		attribute.String("outcome", outcomeSuccess),
	))
	requirementCounter.Add(ctx, int64(len(result.Requirements)), method)
	return result
}

func (r *Resolver) resolveStatic(req Request, result *transfer.ResolutionResult) []transfer.CourseRequirement {
	static, _ := lookupStatic(req.SourceInstitution, req.TargetInstitution, req.Major)
	result.Agreement = static.name
	result.AcademicYear = static.year
	return slices.Clone(static.courses)
}

func (r *Resolver) resolveAPI(ctx context.Context, req Request, result *transfer.ResolutionResult) ([]transfer.CourseRequirement, error) {
	session := assist.NewSession(ctx, r.assistOpts, r.tel)
	err := session.Err()
	if err != nil {
		return nil, err
	}

	lookup, err := assist.NewClient(session).Lookup(ctx, assist.LookupRequest{
		Source: req.SourceInstitution,
		Target: req.TargetInstitution,
		Major:  req.Major,
		Year:   req.TargetAcademicYear,
		Now:    r.time.Now(),
	})
	if err != nil {
		return nil, err
	}

	parsed, err := agreement.Parse(lookup.Agreement.TemplateAssets)
	if err != nil {
		return nil, &transfer.UpstreamLookupError{
			Step:    transfer.StepAgreement,
			Message: "parse template assets",
			Err:     err,
		}
	}

	result.Agreement = lookup.Agreement.Name
	result.AcademicYear = lookup.Agreement.AcademicYearCode
	return parsed.Requirements(), nil
}

func (r *Resolver) resolveAutomation(ctx context.Context, req Request, result *transfer.ResolutionResult) ([]transfer.CourseRequirement, error) {
	extraction, err := r.walker.Walk(ctx, automation.Request{
		Source: req.SourceInstitution,
		Target: req.TargetInstitution,
		Major:  req.Major,
		Year:   req.TargetAcademicYear,
	})
	if err != nil {
		return nil, err
	}

	result.Agreement = extraction.AgreementTitle
	result.AcademicYear = extraction.Year
	return extraction.Courses, nil
}
