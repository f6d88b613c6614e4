package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"autoclass-backend/internal/names"
	"autoclass-backend/internal/transfer"

	"github.com/antzucaro/matchr"
)

// ReportTypeComprehensive is the report type the frontend uses when listing
// agreements by major.
const ReportTypeComprehensive = 3

type MajorAgreement struct {
	Key         string
	DisplayName string
}

type majorEntry struct {
	Name *string `json:"name"`
	Key  *string `json:"key"`
}

func (c *Client) Majors(ctx context.Context, year AcademicYear, sending, receiving Institution, reportType int) ([]MajorAgreement, error) {
	if reportType <= 0 {
		reportType = ReportTypeComprehensive
	}

	var raw json.RawMessage
	err := c.getJSON(ctx, apiRequest{
		step:     transfer.StepMajors,
		reportId: report_client_majors,
		endpoint: "/api/agreements",
		query: map[string]string{
			"academicYearId":         strconv.Itoa(year.ID),
			"sendingInstitutionId":   strconv.Itoa(sending.ID),
			"receivingInstitutionId": strconv.Itoa(receiving.ID),
			"reportType":             strconv.Itoa(reportType),
		},
		referer: c.session.pageUrl(
			"transfer/results",
			queryParam{"year", strconv.Itoa(year.ID)},
			queryParam{"institution", strconv.Itoa(sending.ID)},
			queryParam{"agreement", strconv.Itoa(receiving.ID)},
			queryParam{"agreementType", "to"},
			queryParam{"view", "agreement"},
			queryParam{"viewBy", "major"},
		),
		headers: map[string]string{
			"Origin": strings.TrimSuffix(c.session.BaseUrl.String(), "/"),
		},
	}, &raw)
	if err != nil {
		return nil, err
	}

	entries, ok := decodeMajorEntries(raw)
	if !ok {
		return nil, c.shapeError(ctx, transfer.StepMajors, report_client_majors, "unexpected major agreements shape")
	}

	out := make([]MajorAgreement, 0, len(entries))
	for _, e := range entries {
		if e.Name == nil || e.Key == nil {
			return nil, c.shapeError(ctx, transfer.StepMajors, report_client_majors, "major agreement without name or key")
		}
		out = append(out, MajorAgreement{Key: *e.Key, DisplayName: *e.Name})
	}
	c.tel.ReportCount(report_client_majors, int64(len(out)))
	return out, nil
}

// decodeMajorEntries accepts both a bare list and an object wrapping the list
// under "reports".
func decodeMajorEntries(raw json.RawMessage) ([]majorEntry, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false
	}

	switch trimmed[0] {
	case '[':
		var list []majorEntry
		if json.Unmarshal(trimmed, &list) != nil {
			return nil, false
		}
		return list, true
	case '{':
		var wrapped struct {
			Reports *[]majorEntry `json:"reports"`
		}
		if json.Unmarshal(trimmed, &wrapped) != nil || wrapped.Reports == nil {
			return nil, false
		}
		return *wrapped.Reports, true
	}
	return nil, false
}

const maxSuggestions = 3

// MatchMajor picks the agreement for `major`. The first pass looks for an
// agreement whose normalized name equals the normalized major, the second for
// the first one whose normalized name contains it. The second pass depends on
// list order: "physics" matches whichever of "Physics, B.S." and "Biophysics"
// comes first.
func MatchMajor(agreements []MajorAgreement, major string) (MajorAgreement, error) {
	target := names.NormalizeMajor(major)

	if len(agreements) == 0 {
		return MajorAgreement{}, &transfer.MajorNotFoundError{Major: major, Normalized: target}
	}

	if target != "" {
		for _, a := range agreements {
			if names.NormalizeMajor(a.DisplayName) == target {
				return a, nil
			}
		}
		for _, a := range agreements {
			if strings.Contains(names.NormalizeMajor(a.DisplayName), target) {
				return a, nil
			}
		}
	}

	candidates := make([]string, len(agreements))
	for i, a := range agreements {
		candidates[i] = a.DisplayName
	}
	return MajorAgreement{}, &transfer.MajorNotFoundError{
		Major:       major,
		Normalized:  target,
		Candidates:  candidates,
		Suggestions: suggest(candidates, target),
	}
}

// suggest ranks candidates by Jaro-Winkler similarity to `target`.
func suggest(candidates []string, target string) []string {
	type scored struct {
		name  string
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, candidate := range candidates {
		ranked[i] = scored{
			name:  candidate,
			score: matchr.JaroWinkler(names.NormalizeMajor(candidate), target, false),
		}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	out := make([]string, 0, maxSuggestions)
	for _, r := range ranked {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, r.name)
	}
	return out
}
