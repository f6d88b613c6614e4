package telemetry

import (
	"strings"
	"sync"
)

type Report struct {
	ID     string
	Params []any
}

// RecordingAPI keeps every report in memory so tests can assert on what
// a component reported.
type RecordingAPI struct {
	mu       sync.Mutex
	Broken   []Report
	Warnings []Report
	Debug    []Report
	Counts   map[string]int64
}

func NewRecordingAPI() *RecordingAPI {
	return &RecordingAPI{Counts: map[string]int64{}}
}

func (r *RecordingAPI) ReportBroken(id string, params ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Broken = append(r.Broken, Report{ID: id, Params: params})
}

func (r *RecordingAPI) ReportWarning(id string, params ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, Report{ID: id, Params: params})
}

func (r *RecordingAPI) ReportDebug(msg string, params ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Debug = append(r.Debug, Report{ID: msg, Params: params})
}

func (r *RecordingAPI) ReportCount(id string, count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counts[id] = count
}

// HasBroken returns true if any broken report id ends with `suffix`.
func (r *RecordingAPI) HasBroken(suffix string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, report := range r.Broken {
		if strings.HasSuffix(report.ID, suffix) {
			return true
		}
	}
	return false
}
