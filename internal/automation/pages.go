package automation

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"autoclass-backend/internal/names"
	"autoclass-backend/internal/transfer"
	"autoclass-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

func parsePage(page string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}

// chooseYear returns the text of the year option to select: the requested
// one if it is listed, otherwise the first option.
func chooseYear(page, requested string) (string, error) {
	doc, err := parsePage(page)
	if err != nil {
		return "", err
	}

	var options []string
	doc.Find(yearSelect + " option").Each(func(_ int, s *goquery.Selection) {
		text := htmlutil.CleanText(s.Text())
		if text != "" {
			options = append(options, text)
		}
	})
	if len(options) == 0 {
		return "", fmt.Errorf("no academic year options")
	}

	requested = strings.TrimSpace(requested)
	if requested != "" {
		for _, o := range options {
			if o == requested || strings.HasPrefix(o, requested+"-") {
				return o, nil
			}
		}
	}
	return options[0], nil
}

// majorLinkSelectors are tried from the most specific to the least, the
// listing page has been rendered as cards with a stretched link, as links
// wrapping a heading and as plain links.
var majorLinkSelectors = []string{
	"div.card-body a.stretched-link",
	"a:has(h5)",
	"a",
}

const maxListedCandidates = 10

// findMajorLink looks for the link to the major's agreement on the listing
// page. An exact normalized match in any pass wins over a containment match,
// containment matches from earlier passes win over later ones. When nothing
// matches, the error lists the link texts the passes looked at.
func findMajorLink(page, major string) (Target, error) {
	doc, err := parsePage(page)
	if err != nil {
		return Target{}, err
	}

	target := names.NormalizeMajor(major)
	var candidates []string
	var contained *Target
	for _, selector := range majorLinkSelectors {
		var exact *Target
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := htmlutil.CleanText(s.Text())
			if text == "" {
				return true
			}
			if len(candidates) < maxListedCandidates && !slices.Contains(candidates, text) {
				candidates = append(candidates, text)
			}
			if target == "" {
				return true
			}

			normalized := names.NormalizeMajor(text)
			if normalized == target {
				exact = &Target{Selector: selector, Text: text}
				return false
			}
			if contained == nil && strings.Contains(normalized, target) {
				contained = &Target{Selector: selector, Text: text}
			}
			return true
		})
		if exact != nil {
			return *exact, nil
		}
	}
	if contained != nil {
		return *contained, nil
	}

	return Target{}, &transfer.MajorNotFoundError{
		Major:      major,
		Normalized: target,
		Candidates: candidates,
	}
}

var (
	courseContainerSelectors = []string{
		"div.course-list-row, tr.articulated-course",
		`div[class*="course"]:has(span[class*="courseId"])`,
	}
	courseCodeSelector  = `.courseId, .course-code, [data-testid="courseCode"]`
	courseTitleSelector = `.courseTitle, .course-name, [data-testid="courseTitle"]`
	courseUnitsSelector = `.courseUnits, .course-credits, [data-testid="courseUnits"]`

	agreementTitleSelector = "h1, h2, h3.agreement-view-title"
)

var unitsPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// textCoursePattern finds course codes in free text, optionally followed by
// " - <title>" and "(<n> Units)".
var textCoursePattern = regexp.MustCompile(
	`\b([A-Z]{2,4})\s*(\d{1,3}[A-Z]?)\b` +
		`(?:\s*-\s*([^\n(]*))?` +
		`(?:\((\d+(?:\.\d+)?)\s*(?i:units?)\))?`,
)

const textFallbackTitle = "Title N/A"

func extractAgreement(page string) (Extraction, error) {
	doc, err := parsePage(page)
	if err != nil {
		return Extraction{}, err
	}

	out := Extraction{
		AgreementTitle: htmlutil.CleanText(doc.Find(agreementTitleSelector).First().Text()),
	}
	if out.AgreementTitle == "" {
		out.AgreementTitle = htmlutil.CleanText(doc.Find("title").First().Text())
	}

	out.Courses = structuredCourses(doc)
	if len(out.Courses) == 0 {
		out.Courses = textCourses(htmlutil.VisibleText(doc.Find("body").Get(0)))
	}
	return out, nil
}

func structuredCourses(doc *goquery.Document) []transfer.CourseRequirement {
	for _, selector := range courseContainerSelectors {
		containers := doc.Find(selector)
		if containers.Length() == 0 {
			continue
		}

		var courses []transfer.CourseRequirement
		containers.Each(func(_ int, container *goquery.Selection) {
			code := container.Find(courseCodeSelector).First()
			title := container.Find(courseTitleSelector).First()
			if code.Length() == 0 || title.Length() == 0 {
				return
			}
			course := transfer.CourseRequirement{
				Code:           htmlutil.CleanText(code.Text()),
				Title:          htmlutil.CleanText(title.Text()),
				Classification: sectionClassification(container),
				Status:         transfer.Remaining,
			}
			if course.Code == "" {
				return
			}
			units := unitsPattern.FindString(container.Find(courseUnitsSelector).First().Text())
			if units != "" {
				course.Units, _ = strconv.ParseFloat(units, 64)
			}
			courses = append(courses, course)
		})
		if len(courses) > 0 {
			return courses
		}
	}
	return nil
}

// sectionClassification marks rows that sit inside anything styled as a
// recommended section, every other row is required.
func sectionClassification(container *goquery.Selection) transfer.Classification {
	recommended := false
	container.Parents().AddBack().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class := strings.ToLower(s.AttrOr("class", ""))
		if strings.Contains(class, "recommended") {
			recommended = true
			return false
		}
		return true
	})
	if recommended {
		return transfer.Recommended
	}
	return transfer.Required
}

// textCourses scans rendered text line by line, it is the last resort when
// the page layout matches none of the known structures.
func textCourses(text string) []transfer.CourseRequirement {
	var courses []transfer.CourseRequirement
	for _, line := range strings.Split(text, "\n") {
		for _, m := range textCoursePattern.FindAllStringSubmatch(line, -1) {
			course := transfer.CourseRequirement{
				Code:           m[1] + " " + m[2],
				Title:          strings.TrimSpace(m[3]),
				Classification: transfer.Unclassified,
				Status:         transfer.Remaining,
			}
			if course.Title == "" {
				course.Title = textFallbackTitle
			}
			if m[4] != "" {
				course.Units, _ = strconv.ParseFloat(m[4], 64)
			}
			courses = append(courses, course)
		}
	}
	return courses
}
