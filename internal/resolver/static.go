package resolver

import (
	"autoclass-backend/internal/names"
	"autoclass-backend/internal/transfer"
)

type staticKey struct {
	source string
	target string
	major  string
}

type staticAgreement struct {
	name    string
	year    string
	courses []transfer.CourseRequirement
}

func required(code, title string, units float64) transfer.CourseRequirement {
	return transfer.CourseRequirement{
		Code:           code,
		Title:          title,
		Units:          units,
		Classification: transfer.Required,
		Status:         transfer.Remaining,
	}
}

var (
	mathCalculusA = required("MATH 1A", "Calculus", 5)
	mathCalculusB = required("MATH 1B", "Calculus", 5)
	mathCalculusC = required("MATH 1C", "Calculus", 5)
	mathCalculusD = required("MATH 1D", "Calculus", 5)
	mathDiffEq    = required("MATH 2A", "Differential Equations", 5)
	mathLinAlg    = required("MATH 2B", "Linear Algebra", 5)
	physMechanics = required("PHYS 4A", "Physics for Scientists and Engineers: Mechanics", 6)
	physElectric  = required("PHYS 4B", "Physics for Scientists and Engineers: Electricity and Magnetism", 6)
	physWaves     = required("PHYS 4C", "Physics for Scientists and Engineers: Fluids, Waves, Optics & Thermodynamics", 6)
	cisBeginning  = required("CIS 22A", "Beginning Programming Methodologies in C++", 4.5)
	cisIntermed   = required("CIS 22B", "Intermediate Programming Methodologies in C++", 4.5)
	cisDataStruct = required("CIS 22C", "Data Structures and Algorithms in C++", 4.5)
)

// staticAgreements are known-good agreements that resolve without touching
// the network. Keys are normalized names.
var staticAgreements = map[staticKey]staticAgreement{
	{
		source: "de anza college",
		target: "university of california, berkeley",
		major:  "mathematics, applied",
	}: {
		name: "Mathematics, Applied",
		year: "2024-2025",
		courses: []transfer.CourseRequirement{
			mathCalculusA, mathCalculusB, mathCalculusC, mathCalculusD,
			mathDiffEq, mathLinAlg,
			physMechanics, physElectric, physWaves,
			cisBeginning, cisIntermed,
		},
	},
	{
		source: "de anza college",
		target: "university of california, berkeley",
		major:  "computer science",
	}: {
		name: "Computer Science",
		year: "2024-2025",
		courses: []transfer.CourseRequirement{
			mathCalculusA, mathCalculusB, mathCalculusC, mathCalculusD,
			mathLinAlg,
			physMechanics, physElectric,
			cisBeginning, cisIntermed, cisDataStruct,
		},
	},
}

func lookupStatic(source, target, major string) (staticAgreement, bool) {
	agreement, ok := staticAgreements[staticKey{
		source: names.NormalizeInstitution(source),
		target: names.NormalizeInstitution(target),
		major:  names.NormalizeMajor(major),
	}]
	return agreement, ok
}
