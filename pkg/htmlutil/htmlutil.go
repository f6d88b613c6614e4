package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var blockElements = map[atom.Atom]struct{}{
	atom.Address: {}, atom.Article: {}, atom.Aside: {}, atom.Blockquote: {},
	atom.Br: {}, atom.Dd: {}, atom.Div: {}, atom.Dl: {}, atom.Dt: {},
	atom.Footer: {}, atom.Form: {}, atom.H1: {}, atom.H2: {}, atom.H3: {},
	atom.H4: {}, atom.H5: {}, atom.H6: {}, atom.Header: {}, atom.Hr: {},
	atom.Li: {}, atom.Main: {}, atom.Nav: {}, atom.Ol: {}, atom.P: {},
	atom.Section: {}, atom.Table: {}, atom.Td: {}, atom.Th: {}, atom.Tr: {},
	atom.Ul: {},
}

var hiddenElements = map[atom.Atom]struct{}{
	atom.Script: {}, atom.Style: {}, atom.Noscript: {}, atom.Template: {}, atom.Head: {},
}

// VisibleText approximates what a browser renders as text: script and style
// contents are dropped and block elements end on their own line.
func VisibleText(node *html.Node) string {
	var buffer bytes.Buffer
	visibleTextRecursive(node, &buffer)

	lines := strings.Split(buffer.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = CleanText(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func visibleTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.CommentNode:
		return
	}
	if _, hidden := hiddenElements[node.DataAtom]; hidden {
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		visibleTextRecursive(child, buffer)
	}
	if _, block := blockElements[node.DataAtom]; block {
		buffer.WriteByte('\n')
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText removes non-printable characters and collapses whitespace.
func CleanText(s string) string {
	s = innerWhitespace.ReplaceAllString(s, " ")
	s = removeNonPrintable(s)
	return strings.TrimSpace(s)
}

type Anchor struct {
	Name string
	Url  *url.URL
}

// GetAnchors returns the text and resolved href of every node in `sel`,
// nodes without a parseable href keep a nil Url.
func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	anchors := make([]Anchor, 0, len(sel.Nodes))
	for _, n := range sel.Nodes {
		var link *url.URL
		for _, a := range n.Attr {
			if a.Key != "href" {
				continue
			}
			parsed, err := url.Parse(a.Val)
			if err != nil {
				break
			}
			link = parsed
			if base != nil {
				link = base.ResolveReference(parsed)
			}
			break
		}

		anchors = append(anchors, Anchor{
			Name: CleanText(GetText(n)),
			Url:  link,
		})
	}
	return anchors
}
