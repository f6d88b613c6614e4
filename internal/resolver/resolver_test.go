package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"autoclass-backend/internal/assist"
	"autoclass-backend/internal/automation"
	"autoclass-backend/internal/components/chrono"
	"autoclass-backend/internal/components/telemetry"
	"autoclass-backend/internal/transfer"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

var fixedNow = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)

const testAssets = `[
	{"type": "RequirementTitle", "content": "Required Courses"},
	{"type": "RequirementGroup", "sections": [{"rows": [
		{"cells": [{"type": "Course", "course": {"prefix": "MATH", "courseNumber": "1A", "courseTitle": "Calculus", "minUnits": 5}}]},
		{"cells": [{"type": "Course", "course": {"prefix": "MATH", "courseNumber": "1A", "courseTitle": "Calculus", "minUnits": 5}}]},
		{"cells": [{"type": "Course", "course": {"prefix": "PHYS", "courseNumber": "4A", "courseTitle": "Mechanics", "minUnits": 6}}]}
	]}]},
	{"type": "RequirementTitle", "content": "Recommended Courses"},
	{"type": "RequirementGroup", "sections": [{"rows": [
		{"cells": [{"type": "Course", "course": {"prefix": "CIS", "courseNumber": "22A", "courseTitle": "Programming", "minUnits": 4.5}}]}
	]}]}
]`

// newUpstream serves just enough of the articulation API for one lookup
// between De Anza and Berkeley.
func newUpstream(t testing.TB) (*httptest.Server, *atomic.Int32) {
	var hits atomic.Int32
	reply := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Header().Set("content-type", "application/json")
			fmt.Fprint(w, body)
		}
	}

	templateAssets, err := json.Marshal(testAssets)
	require.NoError(t, err)
	academicYear, err := json.Marshal(`{"code": "2024-2025"}`)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "token", Path: "/"})
		fmt.Fprint(w, "<html></html>")
	})
	mux.HandleFunc("/api/AcademicYears", reply(`[{"Id": 75, "FallYear": 2024}]`))
	mux.HandleFunc("/api/institutions", reply(`[
		{"id": 113, "code": "DEANZA", "names": [{"name": "De Anza College"}]},
		{"id": 79, "code": "UCB", "names": [{"name": "University of California, Berkeley"}]}
	]`))
	mux.HandleFunc("/api/agreements", reply(`[{"name": "Physics, B.A.", "key": "Major/phys"}]`))
	mux.HandleFunc("/api/articulation/Agreements", reply(fmt.Sprintf(
		`{"isSuccessful": true, "result": {"name": "Physics, B.A.", "templateAssets": %s, "academicYear": %s}}`,
		templateAssets, academicYear,
	)))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &hits
}

// scriptedDriver moves to the next page on every click at an element
// picked by its text.
type scriptedDriver struct {
	pages  []string
	page   int
	closed int
}

func (d *scriptedDriver) Navigate(context.Context, string) error { return nil }
func (d *scriptedDriver) WaitLoad(context.Context) error         { return nil }
func (d *scriptedDriver) HTML(context.Context) (string, error)   { return d.pages[d.page], nil }

func (d *scriptedDriver) Click(_ context.Context, target automation.Target) error {
	if target.Text != "" && d.page < len(d.pages)-1 {
		d.page++
	}
	return nil
}

func (d *scriptedDriver) Reveal(context.Context, automation.Target) error       { return nil }
func (d *scriptedDriver) Type(context.Context, automation.Target, string) error { return nil }
func (d *scriptedDriver) SelectOption(context.Context, string, string) error    { return nil }

func (d *scriptedDriver) Close() error {
	d.closed++
	return nil
}

var scriptedPages = []string{
	`<select id="academicYear"><option>2024-2025</option></select><button>View Agreements</button>`,
	`<div class="card"><a class="stretched-link" href="/a"><h5>Physics, B.A.</h5></a></div>`,
	`<h1>Physics, B.A.</h1><p>PHYS 4A - Mechanics (6 units)</p><p>MATH 1A - Calculus (5 units)</p>`,
}

type fixture struct {
	resolver *Resolver
	tel      *telemetry.RecordingAPI
	launches *atomic.Int32
	driver   *scriptedDriver
}

func newFixture(t testing.TB, baseUrl string, launchErr error) fixture {
	tel := telemetry.NewRecordingAPI()
	driver := &scriptedDriver{pages: scriptedPages}
	var launches atomic.Int32

	walker := automation.NewWalker(
		func(context.Context) (automation.Driver, error) {
			launches.Add(1)
			if launchErr != nil {
				return nil, launchErr
			}
			return driver, nil
		},
		automation.Options{StepTimeout: time.Second, NoPacing: true},
		tel,
	)
	resolver := NewResolver(
		assist.Options{BaseUrl: baseUrl, RequestTimeout: 5 * time.Second, RequestsPerSecond: 100},
		walker,
		chrono.FixedImpl{At: fixedNow},
		tel,
	)
	return fixture{resolver: resolver, tel: tel, launches: &launches, driver: driver}
}

func TestPlan(t *testing.T) {
	staticReq := Request{
		SourceInstitution: "De Anza",
		TargetInstitution: "UC Berkeley",
		Major:             "Applied Math",
	}

	cases := []struct {
		name   string
		modify func(r *Request)
		expect Strategy
	}{
		{name: "static", modify: func(*Request) {}, expect: StrategyStatic},
		{name: "cs static", modify: func(r *Request) { r.Major = "CS" }, expect: StrategyStatic},
		{name: "unknown major", modify: func(r *Request) { r.Major = "Physics" }, expect: StrategyAPI},
		{name: "unknown source", modify: func(r *Request) { r.SourceInstitution = "Foothill College" }, expect: StrategyAPI},
		{name: "static disabled", modify: func(r *Request) { r.StaticLookupDisabled = true }, expect: StrategyAPI},
		{name: "automation only", modify: func(r *Request) { r.Flags.AutomationOnly = true }, expect: StrategyAutomation},
		{name: "live data", modify: func(r *Request) { r.Flags.GuaranteedLiveData = true }, expect: StrategyAutomation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := staticReq
			tc.modify(&req)
			require.Equal(t, tc.expect, Plan(req))
		})
	}
}

func TestResolveStatic(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1", nil)

	result := f.resolver.Resolve(context.Background(), Request{
		SourceInstitution: "De Anza College",
		TargetInstitution: "UC Berkeley",
		Major:             "Applied Math",
		CompletedCourses:  []string{"MATH 1A", "math 1b"},
		TargetTerm:        "Fall 2025",
	})

	require.Empty(t, result.Error)
	require.Equal(t, transfer.MethodStatic, result.Method)
	require.Equal(t, "Fall 2025", result.Term)
	require.Equal(t, "Mathematics, Applied", result.Agreement)
	require.Equal(t, "2024-2025", result.AcademicYear)
	require.Len(t, result.Requirements, 11)
	require.Equal(t, "MATH 1A", result.Requirements[0].Code)
	require.Equal(t, transfer.Completed, result.Requirements[0].Status)
	require.Equal(t, transfer.Completed, result.Requirements[1].Status)
	for _, req := range result.Requirements[2:] {
		require.Equal(t, transfer.Remaining, req.Status, req.Code)
	}
	require.Zero(t, f.launches.Load())

	// the table itself is never marked
	again := f.resolver.Resolve(context.Background(), Request{
		SourceInstitution: "De Anza College",
		TargetInstitution: "UC Berkeley",
		Major:             "Applied Math",
	})
	require.Equal(t, transfer.Remaining, again.Requirements[0].Status)
	require.Equal(t, transfer.TermUnspecified, again.Term)
}

func TestResolveStaticComputerScience(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1", nil)

	result := f.resolver.Resolve(context.Background(), Request{
		SourceInstitution: "de anza",
		TargetInstitution: "Berkeley",
		Major:             "Computer Science",
	})
	require.Empty(t, result.Error)
	require.Equal(t, "Computer Science", result.Agreement)
	require.Len(t, result.Requirements, 10)
	require.Equal(t, "CIS 22C", result.Requirements[9].Code)
}

func TestResolveAPI(t *testing.T) {
	server, _ := newUpstream(t)
	f := newFixture(t, server.URL, nil)

	result := f.resolver.Resolve(context.Background(), Request{
		SourceInstitution: "De Anza College",
		TargetInstitution: "UC Berkeley",
		Major:             "Physics",
		CompletedCourses:  []string{"PHYS 4A"},
	})

	require.Empty(t, result.Error)
	require.Equal(t, transfer.MethodAPI, result.Method)
	require.Equal(t, "Physics, B.A.", result.Agreement)
	require.Equal(t, "2024-2025", result.AcademicYear)

	diff := cmp.Diff([]transfer.CourseRequirement{
		{Code: "MATH 1A", Title: "Calculus", Units: 5, Classification: transfer.Required, Status: transfer.Remaining},
		{Code: "PHYS 4A", Title: "Mechanics", Units: 6, Classification: transfer.Required, Status: transfer.Completed},
		{Code: "CIS 22A", Title: "Programming", Units: 4.5, Classification: transfer.Recommended, Status: transfer.Remaining},
	}, result.Requirements)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestResolveAPIInstitutionNotFound(t *testing.T) {
	server, _ := newUpstream(t)
	f := newFixture(t, server.URL, nil)

	result := f.resolver.Resolve(context.Background(), Request{
		SourceInstitution: "Nonexistent College",
		TargetInstitution: "UC Berkeley",
		Major:             "Physics",
	})

	require.Equal(t, transfer.MethodAPI, result.Method)
	require.Contains(t, result.Error, "Nonexistent College")
	require.Empty(t, result.Requirements)
	require.Empty(t, result.Agreement)

	encoded, err := json.Marshal(result)
	require.NoError(t, err)
	require.Contains(t, string(encoded), `"requirements":[]`)
	require.Zero(t, f.launches.Load())
}

func TestResolveAPIDegradedSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>no token</html>")
	}))
	t.Cleanup(server.Close)
	f := newFixture(t, server.URL, nil)

	result := f.resolver.Resolve(context.Background(), Request{
		SourceInstitution: "De Anza College",
		TargetInstitution: "UC Berkeley",
		Major:             "Physics",
	})
	require.NotEmpty(t, result.Error)
	require.Equal(t, transfer.MethodAPI, result.Method)
	require.Empty(t, result.Requirements)
	require.Zero(t, f.launches.Load())
}

func TestResolveAutomation(t *testing.T) {
	server, hits := newUpstream(t)
	f := newFixture(t, server.URL, nil)

	result := f.resolver.Resolve(context.Background(), Request{
		SourceInstitution: "De Anza College",
		TargetInstitution: "UC Berkeley",
		Major:             "Physics",
		CompletedCourses:  []string{"math 1a"},
		Flags:             Flags{AutomationOnly: true},
	})

	require.Empty(t, result.Error)
	require.Equal(t, transfer.MethodAutomation, result.Method)
	require.Equal(t, "Physics, B.A.", result.Agreement)
	require.Equal(t, "2024-2025", result.AcademicYear)
	require.Len(t, result.Requirements, 2)
	require.Equal(t, "PHYS 4A", result.Requirements[0].Code)
	require.Equal(t, transfer.Unclassified, result.Requirements[0].Classification)
	require.Equal(t, transfer.Remaining, result.Requirements[0].Status)
	require.Equal(t, transfer.Completed, result.Requirements[1].Status)

	require.Equal(t, 1, f.driver.closed)
	require.Zero(t, hits.Load())
}

func TestResolveAutomationFailure(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1", errors.New("no browser"))

	result := f.resolver.Resolve(context.Background(), Request{
		SourceInstitution: "De Anza College",
		TargetInstitution: "UC Berkeley",
		Major:             "Applied Math",
		Flags:             Flags{GuaranteedLiveData: true},
	})

	require.Equal(t, transfer.MethodAutomation, result.Method)
	require.Contains(t, result.Error, "no browser")
	require.Empty(t, result.Requirements)
	require.NotNil(t, result.Requirements)
	require.Equal(t, int32(2), f.launches.Load())
}

func TestResolveCountsOutcomes(t *testing.T) {
	metrics := telemetry.SetupMetricsForTesting()
	success := []attribute.KeyValue{attribute.String("method", "api"), attribute.String("outcome", "success")}
	failure := []attribute.KeyValue{attribute.String("method", "api"), attribute.String("outcome", "failure")}
	sessionFailure := attribute.String("step", "session")

	successBefore := metrics.Count(t, "resolutions_total", success...)
	failureBefore := metrics.Count(t, "resolutions_total", failure...)
	requirementsBefore := metrics.Count(t, "requirements_resolved_total", attribute.String("method", "api"))
	sessionBefore := metrics.Count(t, "upstream_failures_total", sessionFailure)

	server, _ := newUpstream(t)
	f := newFixture(t, server.URL, nil)
	result := f.resolver.Resolve(context.Background(), Request{
		SourceInstitution: "De Anza College",
		TargetInstitution: "UC Berkeley",
		Major:             "Physics",
	})
	require.Empty(t, result.Error)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>no token</html>")
	}))
	t.Cleanup(broken.Close)
	result = newFixture(t, broken.URL, nil).resolver.Resolve(context.Background(), Request{
		SourceInstitution: "De Anza College",
		TargetInstitution: "UC Berkeley",
		Major:             "Physics",
	})
	require.NotEmpty(t, result.Error)

	require.Equal(t, successBefore+1, metrics.Count(t, "resolutions_total", success...))
	require.Equal(t, failureBefore+1, metrics.Count(t, "resolutions_total", failure...))
	require.Equal(t, requirementsBefore+3, metrics.Count(t, "requirements_resolved_total", attribute.String("method", "api")))
	require.Equal(t, sessionBefore+1, metrics.Count(t, "upstream_failures_total", sessionFailure))
}
