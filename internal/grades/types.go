// Package grades is the policy engine: it turns roster and submission data
// into one final grade per student, honoring the configured rounding,
// capping, and drop rules. Everything in this package is pure; network and
// file concerns live elsewhere.
package grades

import (
	"strings"
	"time"
)

// UnknownName is substituted when the platform reports no display name.
const UnknownName = "Unknown"

// Student is one roster entry. IDs are opaque strings to tolerate
// non-numeric platform identifiers.
type Student struct {
	ID        string
	SISID     string
	Surname   string
	Preferred string
	// Sections holds every section the platform reports for the student.
	// More than one entry means combined sections; that is surfaced, never
	// silently merged.
	Sections []string
	Status   string
	Platform PlatformGrade
}

// Name returns the display name, or a placeholder when the platform
// reported none.
func (s Student) Name() string {
	name := strings.TrimSpace(strings.TrimSpace(s.Preferred) + " " + strings.TrimSpace(s.Surname))
	if name == "" {
		return UnknownName
	}
	return name
}

// Section returns the student's resolved section: the first reported one.
// Callers that care about combined sections use DetectMultiSection.
func (s Student) Section() string {
	if len(s.Sections) == 0 {
		return ""
	}
	return s.Sections[0]
}

// PlatformGrade carries the course-level percentages the platform already
// computed with its own weighting scheme. The engine passes these through
// rather than recomputing grading-scheme weights.
type PlatformGrade struct {
	Posted        *float64
	Current       *float64
	Unposted      *float64
	UnpostedFinal *float64
	Override      *float64
}

// Assignment is one gradable item in platform order.
type Assignment struct {
	ID             string
	Name           string
	PointsPossible float64
	Published      bool
	Position       int
	DueAt          *time.Time
}

// Submission is one (student, assignment) score pair. Scores are raw points;
// nil means no data, which is distinct from an explicit zero.
type Submission struct {
	StudentID    string
	AssignmentID string
	GraderID     string
	Posted       *float64
	Unposted     *float64
}

// FinalGrade is the per-student result of the policy engine.
type FinalGrade struct {
	StudentID string
	SISID     string
	Surname   string
	Preferred string
	Section   string

	// Raw is the exact posted percentage after override resolution and
	// capping; nil when no grade data was resolvable at all.
	Raw     *float64
	Rounded *int

	RawUnposted     *float64
	RoundedUnposted *int

	// Overridden is true when the platform carries a manual final-grade
	// override; PreOverride then holds the computed grade it replaced.
	Overridden  bool
	PreOverride *float64

	// UnpostedDrift is true when releasing the unposted scores would change
	// the rounded final grade across the configured threshold.
	UnpostedDrift bool
	// CurrentDrift is true when the platform "Total" differs from the
	// exported final score, which happens with ungraded assignments.
	CurrentDrift bool

	Sections []string
}

// Name returns the display name, or a placeholder when absent.
func (g FinalGrade) Name() string {
	name := strings.TrimSpace(strings.TrimSpace(g.Preferred) + " " + strings.TrimSpace(g.Surname))
	if name == "" {
		return UnknownName
	}
	return name
}

// Resolvable reports whether the grade carries a usable rounded value.
func (g FinalGrade) Resolvable() bool {
	return g.Rounded != nil
}

// Result bundles the kept grades, the dropped ones, and every notice
// collected along the way for the end-of-run summary.
type Result struct {
	Grades  []FinalGrade
	Dropped []FinalGrade
	Notices []Notice
}
