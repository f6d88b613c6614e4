package assist

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"autoclass-backend/internal/names"
	"autoclass-backend/internal/transfer"
)

// Institution is a directory entry. Institutions get renamed over the years,
// Names keeps every name the entry has ever had.
type Institution struct {
	ID    int
	Name  string
	Names []string
	Code  string
}

// InstitutionRef is an institution as the caller named it, ID stays nil
// until it has been resolved against the directory.
type InstitutionRef struct {
	ID      *int
	Name    string
	Aliases []string
}

const unknownInstitution = "Unknown Institution"

type institutionName struct {
	Name     string `json:"name"`
	FromYear int    `json:"fromYear"`
}

func (c *Client) Institutions(ctx context.Context) ([]Institution, error) {
	var entries []struct {
		Id    *int              `json:"id"`
		Names []json.RawMessage `json:"names"`
		Code  string            `json:"code"`
	}
	err := c.getJSON(ctx, apiRequest{
		step:     transfer.StepInstitutions,
		reportId: report_client_institutions,
		endpoint: "/api/institutions",
	}, &entries)
	if err != nil {
		return nil, err
	}

	out := make([]Institution, 0, len(entries))
	for _, e := range entries {
		if e.Id == nil {
			continue
		}
		var historical []institutionName
		for _, raw := range e.Names {
			var n institutionName
			// entries that are not objects or have no name are skipped
			if json.Unmarshal(raw, &n) != nil || n.Name == "" {
				continue
			}
			historical = append(historical, n)
		}
		out = append(out, newInstitution(*e.Id, historical, e.Code))
	}
	if len(out) == 0 {
		return nil, c.shapeError(ctx, transfer.StepInstitutions, report_client_institutions, "no institutions returned")
	}

	c.tel.ReportCount(report_client_institutions, int64(len(out)))
	return out, nil
}

func newInstitution(id int, historical []institutionName, code string) Institution {
	inst := Institution{
		ID:   id,
		Name: unknownInstitution,
		Code: strings.TrimSpace(code),
	}
	for _, n := range historical {
		inst.Names = append(inst.Names, n.Name)
	}

	// the current name is the one that took effect most recently
	sorted := slices.Clone(historical)
	slices.SortStableFunc(sorted, func(a, b institutionName) int {
		return b.FromYear - a.FromYear
	})
	if len(sorted) > 0 {
		inst.Name = sorted[0].Name
	}
	return inst
}

// Matches reports whether any historical name of the institution normalizes
// to the same name as `name`.
func (i Institution) Matches(name string) bool {
	target := names.NormalizeInstitution(name)
	if target == "" {
		return false
	}
	for _, n := range i.Names {
		if names.NormalizeInstitution(n) == target {
			return true
		}
	}
	return false
}

func (i Institution) Ref() InstitutionRef {
	id := i.ID
	return InstitutionRef{
		ID:      &id,
		Name:    i.Name,
		Aliases: slices.Clone(i.Names),
	}
}

// ResolveInstitutions finds both institutions in one directory listing, the
// first entry matching a side wins.
func ResolveInstitutions(directory []Institution, source, target string) (InstitutionRef, InstitutionRef, error) {
	var sourceRef, targetRef *InstitutionRef
	for _, inst := range directory {
		if sourceRef == nil && inst.Matches(source) {
			ref := inst.Ref()
			sourceRef = &ref
		}
		if targetRef == nil && inst.Matches(target) {
			ref := inst.Ref()
			targetRef = &ref
		}
		if sourceRef != nil && targetRef != nil {
			break
		}
	}

	if sourceRef == nil {
		return InstitutionRef{}, InstitutionRef{}, &transfer.InstitutionNotFoundError{Side: "source", Name: source}
	}
	if targetRef == nil {
		return InstitutionRef{}, InstitutionRef{}, &transfer.InstitutionNotFoundError{Side: "target", Name: target}
	}
	return *sourceRef, *targetRef, nil
}

// SearchInstitutions returns the entries where any historical name contains
// `query`, case-insensitively.
func SearchInstitutions(directory []Institution, query string) []Institution {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return directory
	}
	var out []Institution
	for _, inst := range directory {
		for _, n := range inst.Names {
			if strings.Contains(strings.ToLower(n), query) {
				out = append(out, inst)
				break
			}
		}
	}
	return out
}
