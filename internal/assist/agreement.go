package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"autoclass-backend/internal/transfer"
)

// AgreementKey identifies one major agreement between two institutions in
// one academic year.
type AgreementKey struct {
	YearID   int
	SourceID int
	TargetID int
	MajorKey string
}

func (k AgreementKey) String() string {
	return fmt.Sprintf("%d/%d/to/%d/%s", k.YearID, k.SourceID, k.TargetID, k.MajorKey)
}

// AgreementDocument is a successful agreement response, TemplateAssets still
// needs to be run through the agreement parser.
type AgreementDocument struct {
	Name             string
	AcademicYearCode string
	TemplateAssets   []byte
}

func (c *Client) agreementReferer(key AgreementKey) string {
	return c.session.pageUrl(
		"transfer/results",
		queryParam{"year", strconv.Itoa(key.YearID)},
		queryParam{"institution", strconv.Itoa(key.SourceID)},
		queryParam{"agreement", strconv.Itoa(key.TargetID)},
		queryParam{"agreementType", "to"},
		queryParam{"viewBy", "major"},
		queryParam{"viewByKey", key.String()},
	)
}

func (c *Client) Agreement(ctx context.Context, key AgreementKey) (AgreementDocument, error) {
	var payload struct {
		IsSuccessful bool `json:"isSuccessful"`
		Result       *struct {
			Name           *string `json:"name"`
			TemplateAssets *string `json:"templateAssets"`
			AcademicYear   *string `json:"academicYear"`
		} `json:"result"`
		ValidationFailure json.RawMessage `json:"validationFailure"`
	}
	err := c.getJSON(ctx, apiRequest{
		step:     transfer.StepAgreement,
		reportId: report_client_agreement,
		endpoint: "/api/articulation/Agreements",
		query:    map[string]string{"Key": key.String()},
		referer:  c.agreementReferer(key),
	}, &payload)
	if err != nil {
		return AgreementDocument{}, err
	}

	if !payload.IsSuccessful || payload.Result == nil {
		msg := "unsuccessful operation or missing result"
		failure := strings.TrimSpace(string(payload.ValidationFailure))
		if failure != "" && failure != "null" {
			msg += ": validation failure: " + failure
		}
		return AgreementDocument{}, c.shapeError(ctx, transfer.StepAgreement, report_client_agreement, msg)
	}

	result := payload.Result
	if result.TemplateAssets == nil || *result.TemplateAssets == "" ||
		result.AcademicYear == nil || *result.AcademicYear == "" {
		return AgreementDocument{}, c.shapeError(ctx, transfer.StepAgreement, report_client_agreement, "missing templateAssets or academicYear")
	}

	// both fields are JSON documents encoded as strings
	var year struct {
		Code string `json:"code"`
	}
	err = json.Unmarshal([]byte(*result.AcademicYear), &year)
	if err != nil {
		return AgreementDocument{}, c.fail(ctx, report_client_agreement, &transfer.UpstreamLookupError{
			Step:    transfer.StepAgreement,
			Message: "decode academicYear",
			Err:     err,
		})
	}
	if !json.Valid([]byte(*result.TemplateAssets)) {
		return AgreementDocument{}, c.shapeError(ctx, transfer.StepAgreement, report_client_agreement, "templateAssets is not valid JSON")
	}

	doc := AgreementDocument{
		Name:             "N/A",
		AcademicYearCode: year.Code,
		TemplateAssets:   []byte(*result.TemplateAssets),
	}
	if result.Name != nil && *result.Name != "" {
		doc.Name = *result.Name
	}
	if doc.AcademicYearCode == "" {
		doc.AcademicYearCode = "N/A"
	}
	return doc, nil
}
