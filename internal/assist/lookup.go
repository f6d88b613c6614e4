package assist

import (
	"context"
	"time"

	"autoclass-backend/internal/transfer"
)

type LookupRequest struct {
	Source string
	Target string
	Major  string
	// Year is a label like "2024-2025" or a fall year like "2024", empty picks
	// the current academic year.
	Year string
	Now  time.Time
}

type LookupResult struct {
	Year      AcademicYear
	Source    InstitutionRef
	Target    InstitutionRef
	Major     MajorAgreement
	Key       AgreementKey
	Agreement AgreementDocument
}

// Lookup chains years, institutions, majors and agreement into one
// agreement document.
func (c *Client) Lookup(ctx context.Context, req LookupRequest) (LookupResult, error) {
	years, err := c.Years(ctx)
	if err != nil {
		return LookupResult{}, err
	}
	year, ok := PickYear(years, req.Year, req.Now)
	if !ok {
		return LookupResult{}, c.shapeError(ctx, transfer.StepYears, report_client_lookup, "could not determine academic year")
	}
	if req.Year != "" && !year.Is(req.Year) {
		c.tel.ReportWarning(report_client_lookup, "requested academic year not listed", req.Year, year.Label)
	}

	directory, err := c.Institutions(ctx)
	if err != nil {
		return LookupResult{}, err
	}
	source, target, err := ResolveInstitutions(directory, req.Source, req.Target)
	if err != nil {
		c.tel.ReportWarning(report_client_lookup, err)
		return LookupResult{}, err
	}

	sending := Institution{ID: *source.ID, Name: source.Name}
	receiving := Institution{ID: *target.ID, Name: target.Name}
	majors, err := c.Majors(ctx, year, sending, receiving, ReportTypeComprehensive)
	if err != nil {
		return LookupResult{}, err
	}
	major, err := MatchMajor(majors, req.Major)
	if err != nil {
		c.tel.ReportWarning(report_client_lookup, err)
		return LookupResult{}, err
	}

	key := AgreementKey{
		YearID:   year.ID,
		SourceID: sending.ID,
		TargetID: receiving.ID,
		MajorKey: major.Key,
	}
	c.tel.ReportDebug(report_client_lookup, "agreement key", key.String())

	doc, err := c.Agreement(ctx, key)
	if err != nil {
		return LookupResult{}, err
	}

	return LookupResult{
		Year:      year,
		Source:    source,
		Target:    target,
		Major:     major,
		Key:       key,
		Agreement: doc,
	}, nil
}
