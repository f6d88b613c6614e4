package transfer

import (
	"fmt"
	"strings"
)

// Step names one of the chained upstream lookups.
type Step string

const (
	StepSession      Step = "session"
	StepYears        Step = "years"
	StepInstitutions Step = "institutions"
	StepCategories   Step = "categories"
	StepMajors       Step = "majors"
	StepAgreement    Step = "agreement"
)

// SessionInitError means the anti-forgery token or session cookie could not
// be acquired, every API call made on such a session fails with it.
type SessionInitError struct {
	Err error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("articulation session unavailable: %v", e.Err)
}

func (e *SessionInitError) Unwrap() error {
	return e.Err
}

// UpstreamLookupError means one of the chained API calls failed or returned
// something shaped unlike what it should have.
type UpstreamLookupError struct {
	Step    Step
	Message string
	Err     error
}

func (e *UpstreamLookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s lookup failed: %s: %v", e.Step, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s lookup failed: %s", e.Step, e.Message)
}

func (e *UpstreamLookupError) Unwrap() error {
	return e.Err
}

type InstitutionNotFoundError struct {
	// Side is either "source" or "target".
	Side string
	Name string
}

func (e *InstitutionNotFoundError) Error() string {
	return fmt.Sprintf("%s institution '%s' not found", e.Side, e.Name)
}

type MajorNotFoundError struct {
	Major      string
	Normalized string
	// Candidates is empty when no agreements exist at all between the two
	// institutions for the year.
	Candidates []string
	// Suggestions are the candidates closest to Major, for diagnostics only.
	Suggestions []string
}

func (e *MajorNotFoundError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("major agreement '%s' not found: no major agreements exist", e.Major)
	}
	msg := fmt.Sprintf("major agreement '%s' (normalized: %s) not found", e.Major, e.Normalized)
	if len(e.Suggestions) > 0 {
		return msg + fmt.Sprintf(", closest: %s", strings.Join(e.Suggestions, "; "))
	}
	return msg + fmt.Sprintf(", listed: %s", strings.Join(e.Candidates, "; "))
}

// AutomationStepError means a browser step exhausted its retry.
type AutomationStepError struct {
	Step string
	Err  error
}

func (e *AutomationStepError) Error() string {
	return fmt.Sprintf("automation step '%s' failed: %v", e.Step, e.Err)
}

func (e *AutomationStepError) Unwrap() error {
	return e.Err
}

// ExtractionEmptyError means automation reached the agreement page but no
// extraction strategy found a single course.
type ExtractionEmptyError struct {
	Major string
}

func (e *ExtractionEmptyError) Error() string {
	return fmt.Sprintf("no courses extracted for '%s' agreement", e.Major)
}
