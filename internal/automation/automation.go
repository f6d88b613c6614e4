// Package automation drives the articulation service's web frontend like a
// user would, it is the fallback for when the JSON API cannot be trusted.
package automation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"autoclass-backend/internal/components/assert"
	"autoclass-backend/internal/components/telemetry"
	"autoclass-backend/internal/transfer"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_walker_step   = "walker.step"
	report_walker_close  = "walker.close"
	report_walker_launch = "walker.launch"
	report_walker_walk   = "walker.walk"
)

const (
	StepLaunch         = "launch"
	StepNavigate       = "navigate"
	StepSelectYear     = "select-year"
	StepSelectSource   = "select-source"
	StepSelectTarget   = "select-target"
	StepViewAgreements = "view-agreements"
	StepFindMajor      = "find-major"
	StepOpenMajor      = "open-major"
	StepExtract        = "extract"
)

const (
	yearSelect       = "#academicYear"
	sourceInput      = "#institution-select"
	sourceSuggestion = "#institution-select-suggestions .list-group-item"
	targetInput      = "#agreement-select"
	targetSuggestion = "#agreement-select-suggestions .list-group-item"
)

var meter = otel.Meter("autoclass-backend/internal/automation")

var stepFailureCounter, _ = meter.Int64Counter(
	"walker_step_failures_total",
	metric.WithDescription("Walk steps that failed after their retry, by step."),
)
var coursesExtractedCounter, _ = meter.Int64Counter(
	"walker_courses_extracted_total",
	metric.WithDescription("Courses read off rendered agreement pages."),
)

var viewAgreementsButton = Target{Selector: "button", Text: "View Agreements"}

// Target points at an element on the current page.
type Target struct {
	Selector string
	// Text narrows Selector down to the first element whose visible text is
	// Text, ignoring surrounding and repeated whitespace.
	Text string
}

func (t Target) String() string {
	if t.Text == "" {
		return t.Selector
	}
	return fmt.Sprintf("%s[text=%q]", t.Selector, t.Text)
}

// Driver is a single browser tab. Every method that looks for an element
// waits for it to appear until ctx is done.
//
// note: fault injection point
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// WaitLoad waits for the page to finish loading and rendering after a
	// navigation or a click that navigates.
	WaitLoad(ctx context.Context) error
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context, target Target) error
	// Reveal scrolls the target into view and waits until it can receive
	// input.
	Reveal(ctx context.Context, target Target) error
	// Type focuses the target, clears it and types text one character at a
	// time.
	Type(ctx context.Context, target Target, text string) error
	// SelectOption picks the <option> with the given text in a <select>.
	SelectOption(ctx context.Context, selector, option string) error
	// Close tears down the tab, the browser and the browser process.
	Close() error
}

// DriverFactory starts a fresh browser for one walk.
type DriverFactory func(ctx context.Context) (Driver, error)

type Options struct {
	BaseUrl     string
	StepTimeout time.Duration
	Headless    bool
	BrowserBin  string
	NoSandbox   bool
	// NoPacing skips the random pauses between steps.
	NoPacing bool
}

func (o Options) withDefaults() Options {
	if o.BaseUrl == "" {
		o.BaseUrl = "https://assist.org/"
	}
	if o.StepTimeout <= 0 {
		o.StepTimeout = 15 * time.Second
	}
	return o
}

type Request struct {
	Source string
	Target string
	Major  string
	// Year is the label of the academic year to select, the first listed
	// year is used when it is empty or not listed.
	Year string
}

type Extraction struct {
	AgreementTitle string
	Year           string
	Courses        []transfer.CourseRequirement
}

type Walker struct {
	newDriver DriverFactory
	opts      Options
	tel       telemetry.API

	// pause waits a random duration in [min, max), it keeps the walk from
	// looking scripted.
	pause func(ctx context.Context, min, max time.Duration)
}

func NewWalker(newDriver DriverFactory, opts Options, tel telemetry.API) *Walker {
	assert.NotNil(newDriver)
	assert.NotNil(tel)

	w := &Walker{
		newDriver: newDriver,
		opts:      opts.withDefaults(),
		tel:       telemetry.NewScopedAPI("automation", tel),
		pause:     jitteredSleep,
	}
	if opts.NoPacing {
		w.pause = func(context.Context, time.Duration, time.Duration) {}
	}
	return w
}

func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

func jitteredSleep(ctx context.Context, min, max time.Duration) {
	timer := time.NewTimer(jitter(min, max))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// step runs fn with its own deadline and retries it once.
func (w *Walker) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		stepCtx, cancel := context.WithTimeout(ctx, w.opts.StepTimeout)
		err = fn(stepCtx)
		cancel()
		if err == nil {
			return nil
		}
		w.tel.ReportWarning(report_walker_step, name, attempt, err)
		if ctx.Err() != nil {
			break
		}
	}
	stepFailureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("step", name)))
	return &transfer.AutomationStepError{Step: name, Err: err}
}

// click retries a failed click once after bringing the element into view.
func (w *Walker) click(ctx context.Context, driver Driver, target Target) error {
	err := driver.Click(ctx, target)
	if err == nil {
		return nil
	}
	w.tel.ReportDebug("click failed, revealing target", target.String(), err)

	revealErr := driver.Reveal(ctx, target)
	if revealErr != nil {
		return fmt.Errorf("click %s: %w", target, errors.Join(err, revealErr))
	}
	err = driver.Click(ctx, target)
	if err != nil {
		return fmt.Errorf("click %s: %w", target, err)
	}
	return nil
}

func (w *Walker) chooseSuggestion(ctx context.Context, driver Driver, input, suggestion, text string) error {
	err := w.click(ctx, driver, Target{Selector: input})
	if err != nil {
		return err
	}
	err = driver.Type(ctx, Target{Selector: input}, text)
	if err != nil {
		return fmt.Errorf("type %q: %w", text, err)
	}
	w.pause(ctx, 500*time.Millisecond, time.Second)

	// the suggestions are filtered by the typed text, the first one is the
	// closest
	return w.click(ctx, driver, Target{Selector: suggestion})
}

// Walk opens a browser, walks the frontend from the landing page to the
// agreement page and extracts its courses. The browser is always closed
// before Walk returns.
func (w *Walker) Walk(ctx context.Context, req Request) (Extraction, error) {
	var driver Driver
	err := w.step(ctx, StepLaunch, func(ctx context.Context) error {
		var err error
		driver, err = w.newDriver(ctx)
		return err
	})
	if err != nil {
		w.tel.ReportBroken(report_walker_launch, err)
		return Extraction{}, err
	}
	defer func() {
		closeErr := driver.Close()
		if closeErr != nil {
			w.tel.ReportWarning(report_walker_close, closeErr)
		}
	}()

	result, err := w.walk(ctx, driver, req)
	if err != nil {
		w.tel.ReportWarning(report_walker_walk, req.Source, req.Target, req.Major, err)
		return Extraction{}, err
	}
	return result, nil
}

func (w *Walker) walk(ctx context.Context, driver Driver, req Request) (Extraction, error) {
	err := w.step(ctx, StepNavigate, func(ctx context.Context) error {
		err := driver.Navigate(ctx, w.opts.BaseUrl)
		if err != nil {
			return err
		}
		return driver.WaitLoad(ctx)
	})
	if err != nil {
		return Extraction{}, err
	}
	w.pause(ctx, time.Second, 1500*time.Millisecond)

	var year string
	err = w.step(ctx, StepSelectYear, func(ctx context.Context) error {
		page, err := driver.HTML(ctx)
		if err != nil {
			return err
		}
		year, err = chooseYear(page, req.Year)
		if err != nil {
			return err
		}
		return driver.SelectOption(ctx, yearSelect, year)
	})
	if err != nil {
		return Extraction{}, err
	}
	w.pause(ctx, 300*time.Millisecond, 600*time.Millisecond)

	err = w.step(ctx, StepSelectSource, func(ctx context.Context) error {
		return w.chooseSuggestion(ctx, driver, sourceInput, sourceSuggestion, req.Source)
	})
	if err != nil {
		return Extraction{}, err
	}
	w.pause(ctx, 400*time.Millisecond, 800*time.Millisecond)

	err = w.step(ctx, StepSelectTarget, func(ctx context.Context) error {
		return w.chooseSuggestion(ctx, driver, targetInput, targetSuggestion, req.Target)
	})
	if err != nil {
		return Extraction{}, err
	}
	w.pause(ctx, 400*time.Millisecond, 800*time.Millisecond)

	err = w.step(ctx, StepViewAgreements, func(ctx context.Context) error {
		err := w.click(ctx, driver, viewAgreementsButton)
		if err != nil {
			return err
		}
		return driver.WaitLoad(ctx)
	})
	if err != nil {
		return Extraction{}, err
	}
	w.pause(ctx, 1500*time.Millisecond, 2500*time.Millisecond)

	var link Target
	err = w.step(ctx, StepFindMajor, func(ctx context.Context) error {
		page, err := driver.HTML(ctx)
		if err != nil {
			return err
		}
		link, err = findMajorLink(page, req.Major)
		return err
	})
	if err != nil {
		return Extraction{}, err
	}
	w.tel.ReportDebug("found major link", link.Text)

	err = w.step(ctx, StepOpenMajor, func(ctx context.Context) error {
		err := w.click(ctx, driver, link)
		if err != nil {
			return err
		}
		return driver.WaitLoad(ctx)
	})
	if err != nil {
		return Extraction{}, err
	}
	w.pause(ctx, 2*time.Second, 3500*time.Millisecond)

	var page string
	err = w.step(ctx, StepExtract, func(ctx context.Context) error {
		var err error
		page, err = driver.HTML(ctx)
		return err
	})
	if err != nil {
		return Extraction{}, err
	}

	extracted, err := extractAgreement(page)
	if err != nil {
		stepFailureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("step", StepExtract)))
		return Extraction{}, &transfer.AutomationStepError{Step: StepExtract, Err: err}
	}
	if len(extracted.Courses) == 0 {
		return Extraction{}, &transfer.ExtractionEmptyError{Major: req.Major}
	}
	w.tel.ReportCount(report_walker_walk, int64(len(extracted.Courses)))
	coursesExtractedCounter.Add(ctx, int64(len(extracted.Courses)))

	extracted.Year = year
	return extracted, nil
}
