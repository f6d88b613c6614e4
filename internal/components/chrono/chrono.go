package chrono

import "time"

// API is the source of the current time, swap it out in tests.
type API interface {
	Now() time.Time
}

// the upstream articulation service and its member institutions all run
// on california time
var la *time.Location

func init() {
	var err error
	la, err = time.LoadLocation("America/Los_Angeles")
	if err != nil {
		la = time.FixedZone("PST", -8*60*60)
	}
}

type StandardImpl struct{}

func NewStandardImpl() StandardImpl {
	return StandardImpl{}
}

func (StandardImpl) Now() time.Time {
	return time.Now().In(la)
}

// FixedImpl always reports the same instant.
type FixedImpl struct {
	At time.Time
}

func (f FixedImpl) Now() time.Time {
	return f.At.In(la)
}

// AcademicYearStart returns the fall year of the academic year containing
// `now`, academic years roll over on August 1st california time.
func AcademicYearStart(now time.Time) int {
	now = now.In(la)
	year := now.Year()
	if now.Month() >= time.August {
		return year
	}
	return year - 1
}
