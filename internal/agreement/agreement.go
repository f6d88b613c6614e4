// Package agreement extracts course rows out of the template asset tree the
// articulation service publishes for a major agreement.
package agreement

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"autoclass-backend/internal/transfer"
)

const (
	assetRequirementTitle = "RequirementTitle"
	assetRequirementGroup = "RequirementGroup"
	cellCourse            = "Course"

	unknownTitle = "Unknown Title"
)

type Course struct {
	Code  string
	Title string
	Units float64
}

// Parsed holds the two classification buckets in document order, each free of
// structurally identical entries.
type Parsed struct {
	Required    []Course
	Recommended []Course
}

// Requirements flattens the buckets into requirement rows, required courses
// first. Every row starts out remaining.
func (p Parsed) Requirements() []transfer.CourseRequirement {
	out := make([]transfer.CourseRequirement, 0, len(p.Required)+len(p.Recommended))
	for _, c := range p.Required {
		out = append(out, c.requirement(transfer.Required))
	}
	for _, c := range p.Recommended {
		out = append(out, c.requirement(transfer.Recommended))
	}
	return out
}

func (c Course) requirement(class transfer.Classification) transfer.CourseRequirement {
	return transfer.CourseRequirement{
		Code:           c.Code,
		Title:          c.Title,
		Units:          c.Units,
		Classification: class,
		Status:         transfer.Remaining,
	}
}

// Every level of the tree is kept raw until it is visited, a malformed node
// only drops itself and never its siblings.
type asset struct {
	Type     string          `json:"type"`
	Content  json.RawMessage `json:"content"`
	Sections json.RawMessage `json:"sections"`
}

type section struct {
	Rows json.RawMessage `json:"rows"`
}

type row struct {
	Cells json.RawMessage `json:"cells"`
}

type cell struct {
	Type   string          `json:"type"`
	Course json.RawMessage `json:"course"`
}

type rawCourse struct {
	Prefix       json.RawMessage `json:"prefix"`
	CourseNumber json.RawMessage `json:"courseNumber"`
	CourseTitle  json.RawMessage `json:"courseTitle"`
	MinUnits     json.RawMessage `json:"minUnits"`
	Attributes   json.RawMessage `json:"courseAttributes"`
}

// Parse decodes the template assets and classifies every course cell. It only
// fails when the input is not a JSON array, assets, sections, rows and cells
// that do not have the expected shape are skipped one by one.
func Parse(templateAssets []byte) (Parsed, error) {
	var rawAssets []json.RawMessage
	err := json.Unmarshal(templateAssets, &rawAssets)
	if err != nil {
		return Parsed{}, fmt.Errorf("decode template assets: %w", err)
	}

	acc := accumulator{}
	for _, raw := range rawAssets {
		var a asset
		if json.Unmarshal(raw, &a) != nil {
			continue
		}
		acc = visit(acc, a)
	}
	return acc.parsed, nil
}

// eachElement calls fn with every element of the array raw that decodes into
// T. A raw value that is not an array has no elements.
func eachElement[T any](raw json.RawMessage, fn func(T)) {
	var elements []json.RawMessage
	if json.Unmarshal(raw, &elements) != nil {
		return
	}
	for _, e := range elements {
		var value T
		if json.Unmarshal(e, &value) != nil {
			continue
		}
		fn(value)
	}
}

// accumulator is threaded through the traversal, title assets and group assets
// are siblings so the section flag has to survive from one to the next.
type accumulator struct {
	sectionRequired bool
	parsed          Parsed
}

func visit(acc accumulator, a asset) accumulator {
	switch a.Type {
	case assetRequirementTitle:
		acc.sectionRequired = isRequiredTitle(lenientString(a.Content))
	case assetRequirementGroup:
		eachElement(a.Sections, func(s section) {
			eachElement(s.Rows, func(r row) {
				eachElement(r.Cells, func(c cell) {
					if c.Type != cellCourse {
						return
					}
					var course rawCourse
					if json.Unmarshal(c.Course, &course) != nil {
						return
					}
					acc = addCourse(acc, course)
				})
			})
		})
	}
	return acc
}

func addCourse(acc accumulator, raw rawCourse) accumulator {
	course := Course{
		Code:  strings.TrimSpace(lenientString(raw.Prefix) + " " + lenientString(raw.CourseNumber)),
		Title: unknownTitle,
		Units: lenientFloat(raw.MinUnits),
	}
	title, ok := lenientText(raw.CourseTitle)
	if ok {
		course.Title = title
	}

	switch {
	case taggedRecommended(raw.Attributes):
		acc.parsed.Recommended = appendUnique(acc.parsed.Recommended, course)
	case acc.sectionRequired:
		acc.parsed.Required = appendUnique(acc.parsed.Required, course)
	default:
		acc.parsed.Recommended = appendUnique(acc.parsed.Recommended, course)
	}
	return acc
}

func isRequiredTitle(content string) bool {
	upper := strings.ToUpper(content)
	if strings.Contains(upper, "RECOMMENDED") {
		return false
	}
	return strings.Contains(upper, "REQUIREMENT") || strings.Contains(upper, "REQUIRED")
}

type attribute struct {
	Content json.RawMessage `json:"content"`
}

func taggedRecommended(attributes json.RawMessage) bool {
	tagged := false
	eachElement(attributes, func(attr attribute) {
		if strings.Contains(strings.ToUpper(lenientString(attr.Content)), "RECOMMENDED") {
			tagged = true
		}
	})
	return tagged
}

func appendUnique(list []Course, c Course) []Course {
	for _, existing := range list {
		if existing == c {
			return list
		}
	}
	return append(list, c)
}

// lenientFloat accepts numbers and numeric strings, anything else is 0.
func lenientFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var number float64
	if json.Unmarshal(raw, &number) == nil {
		return validUnits(number)
	}
	var text string
	if json.Unmarshal(raw, &text) == nil {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err == nil {
			return validUnits(parsed)
		}
	}
	return 0
}

func validUnits(units float64) float64 {
	if math.IsNaN(units) || math.IsInf(units, 0) || units < 0 {
		return 0
	}
	return units
}

func lenientString(raw json.RawMessage) string {
	text, _ := lenientText(raw)
	return text
}

// lenientText reads a string or a number as text, ok is false for anything
// else, including a missing value.
func lenientText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var text string
	if json.Unmarshal(raw, &text) == nil {
		return strings.TrimSpace(text), true
	}
	var number json.Number
	if json.Unmarshal(raw, &number) == nil {
		return number.String(), true
	}
	return "", false
}
