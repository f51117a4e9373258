package grades

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// RoundingMode selects the convention used to round exact percentages to the
// whole-number grades the registrar requires.
type RoundingMode int

const (
	// RoundHalfUp rounds .5 away from zero. This is the default because
	// rounding half to even could seem unfair to individual students.
	RoundHalfUp RoundingMode = iota
	// RoundHalfEven rounds .5 to the nearest even integer.
	RoundHalfEven
)

// ParseRoundingMode maps a config/flag value to a RoundingMode.
func ParseRoundingMode(value string) (RoundingMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "half-up":
		return RoundHalfUp, nil
	case "half-even":
		return RoundHalfEven, nil
	default:
		return RoundHalfUp, fmt.Errorf("grades: unknown rounding mode %q (want half-up or half-even)", value)
	}
}

// GroupBy selects the variable used to branch the comparison charts.
type GroupBy int

const (
	GroupNone GroupBy = iota
	GroupSection
	GroupGrader
)

// ParseGroupBy maps a config/flag value to a GroupBy.
func ParseGroupBy(value string) (GroupBy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return GroupNone, nil
	case "section":
		return GroupSection, nil
	case "grader":
		return GroupGrader, nil
	default:
		return GroupNone, fmt.Errorf("grades: unknown group-by %q (want Section or Grader)", value)
	}
}

// DateFilter restricts which assignments contribute to derived averages.
// A nil bound is open; assignments without a due date always pass.
type DateFilter struct {
	Start *time.Time
	End   *time.Time
}

func (f DateFilter) includes(due *time.Time) bool {
	if due == nil {
		return true
	}
	if f.Start != nil && due.Before(*f.Start) {
		return false
	}
	if f.End != nil && due.After(*f.End) {
		return false
	}
	return true
}

// Config is the policy bundle for one ComputeFinalGrades call. Build it from
// DefaultConfig and override fields explicitly; there is no inheritance.
type Config struct {
	// DropUngraded excludes students with no grade data at all. When false
	// such students stay in the sequence with whatever partial average is
	// computable; callers who want zero-filling must pre-populate zero
	// scores upstream.
	DropUngraded bool
	// MaxGrade caps the final grade; computed values above it clip down.
	MaxGrade int
	Rounding RoundingMode
	Dates    DateFilter
	GroupBy  GroupBy
	// DriftThreshold controls the unposted-drift flag. At zero, any
	// difference between the rounded posted and rounded unposted grade
	// flags the student; a positive value flags only when the two rounded
	// grades land on opposite sides of the threshold.
	DriftThreshold float64
	// DropThreshold drops students whose grade is at or below this value.
	// Test accounts and students who left the course usually sit at zero.
	DropThreshold float64
	// DropStudents lists student numbers to drop explicitly.
	DropStudents []string
	// DropMissingInfo drops students lacking a student number, name, or
	// section, so empty fields are never uploaded by accident.
	DropMissingInfo bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxGrade:        100,
		Rounding:        RoundHalfUp,
		DropThreshold:   0,
		DropMissingInfo: true,
	}
}

func (c Config) validate() error {
	if c.MaxGrade <= 0 {
		return fmt.Errorf("grades: max grade must be positive, got %d", c.MaxGrade)
	}
	if c.Rounding != RoundHalfUp && c.Rounding != RoundHalfEven {
		return fmt.Errorf("grades: invalid rounding mode %d", c.Rounding)
	}
	return nil
}

// Round converts an exact percentage to a whole grade under the given mode.
// Source percentages are never negative, so half-up floors x+0.5.
func Round(x float64, mode RoundingMode) int {
	if mode == RoundHalfEven {
		return int(math.RoundToEven(x))
	}
	return int(math.Floor(x + 0.5))
}

// ComputeFinalGrades resolves one FinalGrade per student. Grade precedence
// per student: a manual platform override wins, then the platform-reported
// aggregate, then a points-weighted average of whatever submission scores
// exist. Missing data contributes nothing; it is never coerced to zero.
// The result is stable-sorted by student identifier. Recoverable conditions
// are collected as notices, not errors.
func ComputeFinalGrades(students []Student, assignments []Assignment, submissions []Submission, cfg Config) (Result, error) {
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}

	byStudent := make(map[string][]Submission, len(students))
	for _, sub := range submissions {
		byStudent[sub.StudentID] = append(byStudent[sub.StudentID], sub)
	}
	byAssignment := make(map[string]Assignment, len(assignments))
	for _, a := range assignments {
		byAssignment[a.ID] = a
	}
	dropSet := make(map[string]bool, len(cfg.DropStudents))
	for _, id := range cfg.DropStudents {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			dropSet[trimmed] = true
		}
	}

	var (
		kept    []FinalGrade
		dropped []FinalGrade
	)
	for _, student := range students {
		grade := resolve(student, byStudent[student.ID], byAssignment, cfg)
		if reason := dropReason(student, grade, dropSet, cfg); reason != "" {
			dropped = append(dropped, grade)
			continue
		}
		kept = append(kept, grade)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].StudentID < kept[j].StudentID })

	notices := collectNotices(kept, dropped, students, cfg)
	return Result{Grades: kept, Dropped: dropped, Notices: notices}, nil
}

// resolve computes one student's FinalGrade without applying drop rules.
func resolve(student Student, subs []Submission, assignments map[string]Assignment, cfg Config) FinalGrade {
	grade := FinalGrade{
		StudentID: student.ID,
		SISID:     student.SISID,
		Surname:   student.Surname,
		Preferred: student.Preferred,
		Section:   student.Section(),
		Sections:  student.Sections,
	}

	raw := student.Platform.Posted
	if student.Platform.Override != nil {
		grade.Overridden = true
		grade.PreOverride = student.Platform.Posted
		raw = student.Platform.Override
	}
	if raw == nil {
		raw = weightedAverage(subs, assignments, cfg.Dates, func(s Submission) *float64 { return s.Posted })
	}

	rawUnposted := student.Platform.Unposted
	if rawUnposted == nil {
		rawUnposted = weightedAverage(subs, assignments, cfg.Dates, func(s Submission) *float64 { return s.Unposted })
	}

	if raw != nil {
		capped := math.Min(*raw, float64(cfg.MaxGrade))
		rounded := Round(capped, cfg.Rounding)
		grade.Raw = &capped
		grade.Rounded = &rounded
	}
	if rawUnposted != nil {
		capped := math.Min(*rawUnposted, float64(cfg.MaxGrade))
		rounded := Round(capped, cfg.Rounding)
		grade.RawUnposted = &capped
		grade.RoundedUnposted = &rounded
	}

	// Drift against the unposted *final* score when the platform reports
	// one: it treats ungraded work as zero, which is what release would do.
	driftBasis := student.Platform.UnpostedFinal
	if driftBasis == nil {
		driftBasis = rawUnposted
	}
	if grade.Rounded != nil && driftBasis != nil {
		roundedDrift := Round(math.Min(*driftBasis, float64(cfg.MaxGrade)), cfg.Rounding)
		grade.UnpostedDrift = crossesThreshold(*grade.Rounded, roundedDrift, cfg.DriftThreshold)
	}
	if student.Platform.Current != nil && student.Platform.Posted != nil {
		grade.CurrentDrift = *student.Platform.Current != *student.Platform.Posted
	}
	return grade
}

// crossesThreshold implements the drift-flag semantics: equal rounded grades
// never flag; otherwise a zero threshold flags any difference and a positive
// threshold flags only a difference that straddles it.
func crossesThreshold(posted, unposted int, threshold float64) bool {
	if posted == unposted {
		return false
	}
	if threshold <= 0 {
		return true
	}
	return (float64(posted) < threshold) != (float64(unposted) < threshold)
}

// weightedAverage derives a percentage from the available submission scores,
// weighted by assignment points. Submissions with no score and assignments
// outside the date filter contribute nothing. Returns nil when no data.
func weightedAverage(subs []Submission, assignments map[string]Assignment, dates DateFilter, score func(Submission) *float64) *float64 {
	var earned, possible float64
	for _, sub := range subs {
		a, ok := assignments[sub.AssignmentID]
		if !ok || a.PointsPossible <= 0 || !dates.includes(a.DueAt) {
			continue
		}
		v := score(sub)
		if v == nil {
			continue
		}
		earned += *v
		possible += a.PointsPossible
	}
	if possible == 0 {
		return nil
	}
	pct := 100 * earned / possible
	return &pct
}

// dropReason returns a non-empty reason when the student must be excluded.
func dropReason(student Student, grade FinalGrade, dropSet map[string]bool, cfg Config) string {
	if basis := thresholdBasis(grade); basis != nil && *basis <= cfg.DropThreshold {
		return fmt.Sprintf("grade <= %g", cfg.DropThreshold)
	}
	if cfg.DropMissingInfo {
		if student.SISID == "" || student.Name() == UnknownName || student.Section() == "" {
			return "missing information"
		}
	}
	if dropSet[student.SISID] {
		return "explicitly dropped"
	}
	if cfg.DropUngraded && grade.Raw == nil && grade.RawUnposted == nil {
		return "no grade data"
	}
	return ""
}

// thresholdBasis picks the grade compared against DropThreshold: the
// unposted score reflects current progress, so it wins when available.
func thresholdBasis(grade FinalGrade) *float64 {
	if grade.RawUnposted != nil {
		return grade.RawUnposted
	}
	return grade.Raw
}

// DetectMultiSection returns the students enrolled in more than one section.
// Pure function; students with a single section are excluded entirely.
func DetectMultiSection(students []Student) map[string][]string {
	multi := make(map[string][]string)
	for _, s := range students {
		unique := uniqueSections(s.Sections)
		if len(unique) > 1 {
			multi[s.ID] = unique
		}
	}
	return multi
}

func uniqueSections(sections []string) []string {
	seen := make(map[string]bool, len(sections))
	var out []string
	for _, sec := range sections {
		if sec == "" || seen[sec] {
			continue
		}
		seen[sec] = true
		out = append(out, sec)
	}
	return out
}
