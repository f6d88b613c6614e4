package automation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"autoclass-backend/internal/components/telemetry"
	"autoclass-backend/internal/transfer"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

const landingPage = `<html><body>
<label>Academic Year</label>
<select id="academicYear"><option>2024-2025</option><option>2023-2024</option></select>
<input id="institution-select">
<div id="institution-select-suggestions"><div class="list-group-item">De Anza College</div></div>
<input id="agreement-select">
<div id="agreement-select-suggestions"><div class="list-group-item">University of California, Berkeley</div></div>
<button>View Agreements</button>
</body></html>`

const listingPage = `<html><body>
<a href="/home">Home</a>
<div class="card"><div class="card-body">
	<a class="stretched-link" href="/agreement/1"><h5>Mathematics, B.A.</h5></a>
</div></div>
<div class="card"><div class="card-body">
	<a class="stretched-link" href="/agreement/2"><h5>Mathematics,
		Applied</h5></a>
</div></div>
</body></html>`

const structuredAgreementPage = `<html><head><title>Agreement</title></head><body>
<h1>Mathematics, Applied</h1>
<div class="required-section">
	<div class="course-list-row">
		<span class="courseId">MATH 1A</span><span class="courseTitle">Calculus</span><span class="courseUnits">5.00 units</span>
	</div>
	<div class="course-list-row">
		<span class="courseId">MATH 1B</span><span class="courseTitle">Calculus</span>
	</div>
	<div class="course-list-row"><span class="courseId">NO TITLE</span></div>
</div>
<div class="recommended-section">
	<div class="course-list-row">
		<span class="courseId">CIS 22A</span><span class="courseTitle">Programming</span><span class="courseUnits">4.5</span>
	</div>
</div>
</body></html>`

const textAgreementPage = `<html><head><title>Agreement</title><script>var hidden = "PHYS 4A";</script></head><body>
<h2>Mathematics, Applied</h2>
<p>MATH 1A - Calculus I (5 Units)</p>
</body></html>`

const emptyAgreementPage = `<html><body><h1>Mathematics, Applied</h1><p>No articulation</p></body></html>`

// fakeDriver walks through landing, listing and agreement pages as the
// walker clicks through them.
type fakeDriver struct {
	mu sync.Mutex

	agreementPage string
	current       string
	calls         []string
	typed         map[string]string
	selected      string
	closed        int

	// failures holds the number of times an operation fails before it works
	failures map[string]int
	// blocked operations hang until their context is done
	blocked map[string]bool
}

func newFakeDriver(agreementPage string) *fakeDriver {
	return &fakeDriver{
		agreementPage: agreementPage,
		typed:         map[string]string{},
		failures:      map[string]int{},
		blocked:       map[string]bool{},
	}
}

func (d *fakeDriver) op(ctx context.Context, name string) error {
	d.mu.Lock()
	d.calls = append(d.calls, name)
	blocked := d.blocked[name]
	failing := d.failures[name] > 0
	if failing {
		d.failures[name]--
	}
	d.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}
	if failing {
		return fmt.Errorf("%s: element not interactable", name)
	}
	return nil
}

func (d *fakeDriver) count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	err := d.op(ctx, "navigate")
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = landingPage
	return nil
}

func (d *fakeDriver) WaitLoad(ctx context.Context) error {
	return d.op(ctx, "wait-load")
}

func (d *fakeDriver) HTML(ctx context.Context) (string, error) {
	err := d.op(ctx, "html")
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, nil
}

func (d *fakeDriver) Click(ctx context.Context, target Target) error {
	err := d.op(ctx, "click:"+target.String())
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case target == viewAgreementsButton:
		d.current = listingPage
	case d.current == listingPage && target.Text != "" && slices.Contains(majorLinkSelectors, target.Selector):
		d.current = d.agreementPage
	}
	return nil
}

func (d *fakeDriver) Reveal(ctx context.Context, target Target) error {
	return d.op(ctx, "reveal:"+target.String())
}

func (d *fakeDriver) Type(ctx context.Context, target Target, text string) error {
	err := d.op(ctx, "type:"+target.String())
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.typed[target.Selector] = text
	return nil
}

func (d *fakeDriver) SelectOption(ctx context.Context, selector, option string) error {
	err := d.op(ctx, "select:"+selector)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected = option
	return nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

func newTestWalker(driver *fakeDriver) *Walker {
	w := NewWalker(
		func(context.Context) (Driver, error) { return driver, nil },
		Options{StepTimeout: time.Second},
		telemetry.NewRecordingAPI(),
	)
	w.pause = func(context.Context, time.Duration, time.Duration) {}
	return w
}

var testRequest = Request{
	Source: "De Anza College",
	Target: "UC Berkeley",
	Major:  "Applied Math",
}

func TestWalkStructured(t *testing.T) {
	metrics := telemetry.SetupMetricsForTesting()
	extractedBefore := metrics.Count(t, "walker_courses_extracted_total")
	driver := newFakeDriver(structuredAgreementPage)

	result, err := newTestWalker(driver).Walk(context.Background(), testRequest)
	require.NoError(t, err)

	require.Equal(t, "Mathematics, Applied", result.AgreementTitle)
	require.Equal(t, "2024-2025", result.Year)
	require.Equal(t, []transfer.CourseRequirement{
		{Code: "MATH 1A", Title: "Calculus", Units: 5, Classification: transfer.Required, Status: transfer.Remaining},
		{Code: "MATH 1B", Title: "Calculus", Units: 0, Classification: transfer.Required, Status: transfer.Remaining},
		{Code: "CIS 22A", Title: "Programming", Units: 4.5, Classification: transfer.Recommended, Status: transfer.Remaining},
	}, result.Courses)

	require.Equal(t, "De Anza College", driver.typed[sourceInput])
	require.Equal(t, "UC Berkeley", driver.typed[targetInput])
	require.Equal(t, "2024-2025", driver.selected)
	require.Equal(t, 1, driver.count(`click:a[text="Mathematics, Applied"]`))
	require.Equal(t, 1, driver.closed)
	require.Equal(t, extractedBefore+3, metrics.Count(t, "walker_courses_extracted_total"))
}

func TestWalkTextFallback(t *testing.T) {
	driver := newFakeDriver(textAgreementPage)

	result, err := newTestWalker(driver).Walk(context.Background(), testRequest)
	require.NoError(t, err)
	require.Len(t, result.Courses, 1)
	require.Equal(t, "MATH 1A", result.Courses[0].Code)
	require.Equal(t, "Calculus I", result.Courses[0].Title)
	require.Equal(t, 5.0, result.Courses[0].Units)
	require.Equal(t, transfer.Unclassified, result.Courses[0].Classification)
}

func TestWalkRequestedYear(t *testing.T) {
	driver := newFakeDriver(structuredAgreementPage)
	req := testRequest
	req.Year = "2023"

	result, err := newTestWalker(driver).Walk(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "2023-2024", driver.selected)
	require.Equal(t, "2023-2024", result.Year)
}

func TestWalkClickRevealsOnce(t *testing.T) {
	driver := newFakeDriver(structuredAgreementPage)
	suggestion := "click:" + sourceSuggestion
	driver.failures[suggestion] = 1

	_, err := newTestWalker(driver).Walk(context.Background(), testRequest)
	require.NoError(t, err)
	require.Equal(t, 1, driver.count("reveal:"+sourceSuggestion))
	require.Equal(t, 2, driver.count(suggestion))
}

func TestWalkStepRetry(t *testing.T) {
	driver := newFakeDriver(structuredAgreementPage)
	driver.failures["navigate"] = 1

	_, err := newTestWalker(driver).Walk(context.Background(), testRequest)
	require.NoError(t, err)
	require.Equal(t, 2, driver.count("navigate"))
}

func TestWalkStepExhausted(t *testing.T) {
	metrics := telemetry.SetupMetricsForTesting()
	failed := attribute.String("step", StepViewAgreements)
	failedBefore := metrics.Count(t, "walker_step_failures_total", failed)
	driver := newFakeDriver(structuredAgreementPage)
	// two failures per click, two attempts per step
	driver.failures["click:"+viewAgreementsButton.String()] = 4

	_, err := newTestWalker(driver).Walk(context.Background(), testRequest)
	var stepErr *transfer.AutomationStepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, StepViewAgreements, stepErr.Step)
	require.Equal(t, 1, driver.closed)
	require.Equal(t, failedBefore+1, metrics.Count(t, "walker_step_failures_total", failed))
}

func TestWalkStepRetryNotCounted(t *testing.T) {
	metrics := telemetry.SetupMetricsForTesting()
	navigate := attribute.String("step", StepNavigate)
	before := metrics.Count(t, "walker_step_failures_total", navigate)

	driver := newFakeDriver(structuredAgreementPage)
	driver.failures["navigate"] = 1
	_, err := newTestWalker(driver).Walk(context.Background(), testRequest)
	require.NoError(t, err)
	require.Equal(t, before, metrics.Count(t, "walker_step_failures_total", navigate))
}

func TestWalkStepTimeout(t *testing.T) {
	driver := newFakeDriver(structuredAgreementPage)
	driver.blocked["wait-load"] = true

	w := newTestWalker(driver)
	w.opts.StepTimeout = 20 * time.Millisecond

	_, err := w.Walk(context.Background(), testRequest)
	var stepErr *transfer.AutomationStepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, StepNavigate, stepErr.Step)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 2, driver.count("navigate"))
	require.Equal(t, 1, driver.closed)
}

func TestWalkMajorNotFound(t *testing.T) {
	driver := newFakeDriver(structuredAgreementPage)
	req := testRequest
	req.Major = "Basket Weaving"

	_, err := newTestWalker(driver).Walk(context.Background(), req)
	var stepErr *transfer.AutomationStepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, StepFindMajor, stepErr.Step)

	var notFound *transfer.MajorNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, []string{"Mathematics, B.A.", "Mathematics, Applied", "Home"}, notFound.Candidates)
	require.Equal(t, 1, driver.closed)
}

func TestWalkExtractionEmpty(t *testing.T) {
	driver := newFakeDriver(emptyAgreementPage)

	_, err := newTestWalker(driver).Walk(context.Background(), testRequest)
	var empty *transfer.ExtractionEmptyError
	require.ErrorAs(t, err, &empty)
	require.Equal(t, "Applied Math", empty.Major)
	require.Equal(t, 1, driver.closed)
}

func TestWalkLaunchFailure(t *testing.T) {
	launches := 0
	w := NewWalker(
		func(context.Context) (Driver, error) {
			launches++
			return nil, errors.New("no browser installed")
		},
		Options{StepTimeout: time.Second},
		telemetry.NewRecordingAPI(),
	)

	_, err := w.Walk(context.Background(), testRequest)
	var stepErr *transfer.AutomationStepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, StepLaunch, stepErr.Step)
	require.Equal(t, 2, launches)
}
