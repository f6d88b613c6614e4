// Package transfer holds the shapes shared by every resolution strategy: the
// course requirement rows, the result contract handed back to callers and the
// error taxonomy the strategies fail with.
package transfer

import (
	"strings"
	"unicode"
)

type Classification string

const (
	Required    Classification = "required"
	Recommended Classification = "recommended"
	// Unclassified marks courses the automation text scan picked up without
	// any section context.
	Unclassified Classification = "unknown"
)

type Status string

const (
	Completed Status = "completed"
	Remaining Status = "remaining"
)

type Method string

const (
	MethodStatic     Method = "static"
	MethodAPI        Method = "api"
	MethodAutomation Method = "automation"
)

const TermUnspecified = "N/A"

type CourseRequirement struct {
	Code           string         `json:"code"`
	Title          string         `json:"title"`
	Units          float64        `json:"units"`
	Classification Classification `json:"classification"`
	Status         Status         `json:"status"`
}

// ResolutionResult is the only thing a resolution ever hands back, failed
// resolutions carry Error and an empty Requirements list.
type ResolutionResult struct {
	Origin       string              `json:"origin"`
	Target       string              `json:"target"`
	Major        string              `json:"major"`
	Term         string              `json:"term"`
	Requirements []CourseRequirement `json:"requirements"`
	Method       Method              `json:"method"`
	Error        string              `json:"error,omitempty"`

	Agreement    string `json:"agreement,omitempty"`
	AcademicYear string `json:"academic_year,omitempty"`
}

func (r ResolutionResult) Failed() bool {
	return r.Error != ""
}

// NormalizeCode removes all whitespace and upper-cases a course code, so
// "math 1a", "MATH1A" and "MATH 1A" all compare equal.
func NormalizeCode(code string) string {
	var out strings.Builder
	out.Grow(len(code))
	for _, r := range code {
		if unicode.IsSpace(r) {
			continue
		}
		out.WriteRune(unicode.ToUpper(r))
	}
	return out.String()
}

// Dedupe drops every requirement whose normalized code already appeared in
// the same classification bucket, the first occurrence wins and the order of
// the survivors is kept.
func Dedupe(reqs []CourseRequirement) []CourseRequirement {
	type key struct {
		class Classification
		code  string
	}
	seen := make(map[key]struct{}, len(reqs))
	out := make([]CourseRequirement, 0, len(reqs))
	for _, r := range reqs {
		k := key{class: r.Classification, code: NormalizeCode(r.Code)}
		if _, exists := seen[k]; exists {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// MarkCompletion sets the status of every requirement according to whether
// its normalized code is among the normalized completed codes.
func MarkCompletion(reqs []CourseRequirement, completed []string) []CourseRequirement {
	done := make(map[string]struct{}, len(completed))
	for _, c := range completed {
		norm := NormalizeCode(c)
		if norm == "" {
			continue
		}
		done[norm] = struct{}{}
	}

	out := make([]CourseRequirement, len(reqs))
	for i, r := range reqs {
		r.Status = Remaining
		if _, ok := done[NormalizeCode(r.Code)]; ok && r.Code != "" {
			r.Status = Completed
		}
		out[i] = r
	}
	return out
}
