package names

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeInstitution(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "UC Berkeley", expected: "university of california, berkeley"},
		{input: "  berkeley ", expected: "university of california, berkeley"},
		{input: "UCLA", expected: "university of california, los angeles"},
		{input: "University of California, Berkeley", expected: "university of california, berkeley"},
		{input: "De Anza", expected: "de anza college"},
		{input: "De   Anza College", expected: "de anza college"},
		{input: "SJSU", expected: "san jose state university"},
		{input: "ucsd", expected: "university of california, san diego"},
		{input: "Mission College", expected: "mission college"},
		{input: "", expected: ""},
		{input: "   ", expected: ""},
	}

	for _, row := range table {
		t.Run(row.input, func(t *testing.T) {
			require.Equal(t, row.expected, NormalizeInstitution(row.input))
		})
	}
}

func TestNormalizeMajor(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "Applied Math", expected: "mathematics, applied"},
		{input: "CS", expected: "computer science"},
		{input: "compsci", expected: "computer science"},
		{input: "Math", expected: "mathematics"},
		{input: "business", expected: "business administration"},
		// exact aliases only, no containment
		{input: "Applied Mathematics", expected: "applied mathematics"},
		{input: "Computer Science", expected: "computer science"},
		{input: "", expected: ""},
	}

	for _, row := range table {
		t.Run(row.input, func(t *testing.T) {
			require.Equal(t, row.expected, NormalizeMajor(row.input))
		})
	}
}

func TestIdempotence(t *testing.T) {
	inputs := []string{
		"UC Berkeley", "de anza", "Foothill", "Mission College",
		"Applied Math", "CS", "Applied Mathematics", "poli sci",
	}
	for _, in := range inputs {
		once := NormalizeInstitution(in)
		require.Equal(t, once, NormalizeInstitution(once), in)

		once = NormalizeMajor(in)
		require.Equal(t, once, NormalizeMajor(once), in)
	}
}

func TestSameInstitution(t *testing.T) {
	require.True(t, SameInstitution("UC Berkeley", "University of California, Berkeley"))
	require.False(t, SameInstitution("UC Berkeley", "UCLA"))
	require.False(t, SameInstitution("", ""))
}
