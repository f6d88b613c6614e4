package assist

import (
	"context"
	"strconv"

	"autoclass-backend/internal/transfer"
)

// Category is a kind of agreement published between two institutions, such
// as by major or by department.
type Category struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

func (c *Client) Categories(ctx context.Context, year AcademicYear, sending, receiving Institution) ([]Category, error) {
	var entries []struct {
		Code  *string `json:"code"`
		Label *string `json:"label"`
	}
	err := c.getJSON(ctx, apiRequest{
		step:     transfer.StepCategories,
		reportId: report_client_categories,
		endpoint: "/api/agreements/categories",
		query: map[string]string{
			"academicYearId":         strconv.Itoa(year.ID),
			"sendingInstitutionId":   strconv.Itoa(sending.ID),
			"receivingInstitutionId": strconv.Itoa(receiving.ID),
		},
		referer: c.session.pageUrl(
			"transfer/results",
			queryParam{"year", strconv.Itoa(year.ID)},
			queryParam{"institution", strconv.Itoa(sending.ID)},
			queryParam{"agreement", strconv.Itoa(receiving.ID)},
			queryParam{"agreementType", "to"},
		),
	}, &entries)
	if err != nil {
		return nil, err
	}

	out := make([]Category, 0, len(entries))
	for _, e := range entries {
		if e.Code == nil || e.Label == nil {
			return nil, c.shapeError(ctx, transfer.StepCategories, report_client_categories, "category without code or label")
		}
		out = append(out, Category{Code: *e.Code, Label: *e.Label})
	}
	return out, nil
}
