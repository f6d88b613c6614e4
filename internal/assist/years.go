package assist

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"autoclass-backend/internal/components/chrono"
	"autoclass-backend/internal/transfer"
)

type AcademicYear struct {
	ID        int
	Label     string
	StartYear int
}

func newAcademicYear(id, fallYear int) AcademicYear {
	return AcademicYear{
		ID:        id,
		Label:     fmt.Sprintf("%d-%d", fallYear, fallYear+1),
		StartYear: fallYear,
	}
}

// Is reports whether `name` names the year, either by label or by fall year.
func (y AcademicYear) Is(name string) bool {
	name = strings.TrimSpace(name)
	return name == y.Label || name == strconv.Itoa(y.StartYear)
}

// Years lists the academic years in the order the service returns them,
// newest first.
func (c *Client) Years(ctx context.Context) ([]AcademicYear, error) {
	if c.years != nil {
		return c.years, nil
	}

	var entries []struct {
		Id       *int `json:"Id"`
		FallYear *int `json:"FallYear"`
	}
	err := c.getJSON(ctx, apiRequest{
		step:     transfer.StepYears,
		reportId: report_client_years,
		endpoint: "/api/AcademicYears",
	}, &entries)
	if err != nil {
		return nil, err
	}

	years := make([]AcademicYear, 0, len(entries))
	for _, e := range entries {
		if e.Id == nil || e.FallYear == nil {
			continue
		}
		years = append(years, newAcademicYear(*e.Id, *e.FallYear))
	}
	if len(years) == 0 {
		return nil, c.shapeError(ctx, transfer.StepYears, report_client_years, "no academic years returned")
	}

	c.years = years
	return years, nil
}

// PickYear chooses the year a lookup should run against: the requested one
// (by label like "2024-2025" or by fall year like "2024"), otherwise the year
// containing `now`, otherwise the first year in the list.
func PickYear(years []AcademicYear, requested string, now time.Time) (AcademicYear, bool) {
	if len(years) == 0 {
		return AcademicYear{}, false
	}

	if requested != "" {
		for _, y := range years {
			if y.Is(requested) {
				return y, true
			}
		}
	}

	current := chrono.AcademicYearStart(now)
	for _, y := range years {
		if y.StartYear == current {
			return y, true
		}
	}

	return years[0], true
}
