// Package names canonicalizes free-form institution and major names typed by
// users into the forms the articulation service lists them under.
package names

import "strings"

type alias struct {
	alias     string
	canonical string
}

// entries are matched in order, the first hit wins, so longer or more
// specific aliases must come before the short ones they contain.
var institutionAliases = []alias{
	{"uc berkeley", "university of california, berkeley"},
	{"berkeley", "university of california, berkeley"},
	{"ucla", "university of california, los angeles"},
	{"uc davis", "university of california, davis"},
	{"uc irvine", "university of california, irvine"},
	{"uci", "university of california, irvine"},
	{"uc san diego", "university of california, san diego"},
	{"ucsd", "university of california, san diego"},
	{"uc santa barbara", "university of california, santa barbara"},
	{"ucsb", "university of california, santa barbara"},
	{"uc santa cruz", "university of california, santa cruz"},
	{"ucsc", "university of california, santa cruz"},
	{"uc riverside", "university of california, riverside"},
	{"ucr", "university of california, riverside"},
	{"uc merced", "university of california, merced"},
	{"de anza", "de anza college"},
	{"foothill", "foothill college"},
	{"san jose city", "san jose city college"},
	{"sjcc", "san jose city college"},
	{"sjsu", "san jose state university"},
	{"san jose state", "san jose state university"},
}

var majorAliases = []alias{
	{"cs", "computer science"},
	{"compsci", "computer science"},
	{"psych", "psychology"},
	{"bio", "biology"},
	{"econ", "economics"},
	{"business", "business administration"},
	{"poli sci", "political science"},
	{"applied math", "mathematics, applied"},
	{"math", "mathematics"},
	{"math, applied", "mathematics, applied"},
}

func clean(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// NormalizeInstitution lower-cases and trims the name, then maps it to the
// canonical name of the first alias that equals it, is contained in it or
// contains it. Names without an alias are returned cleaned.
func NormalizeInstitution(raw string) string {
	name := clean(raw)
	if name == "" {
		return ""
	}
	for _, a := range institutionAliases {
		if name == a.alias ||
			strings.Contains(name, a.alias) ||
			strings.Contains(a.alias, name) {
			return a.canonical
		}
	}
	return name
}

// NormalizeMajor maps exact aliases only, "applied mathematics" stays as is
// while "applied math" becomes "mathematics, applied".
func NormalizeMajor(raw string) string {
	name := clean(raw)
	if name == "" {
		return ""
	}
	for _, a := range majorAliases {
		if name == a.alias {
			return a.canonical
		}
	}
	return name
}

// SameInstitution reports whether two names refer to the same institution
// once normalized.
func SameInstitution(a, b string) bool {
	na := NormalizeInstitution(a)
	return na != "" && na == NormalizeInstitution(b)
}
