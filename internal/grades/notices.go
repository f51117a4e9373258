package grades

import (
	"fmt"
	"strconv"
	"strings"
)

// NoticeLevel distinguishes informational notes from warnings that need the
// user's attention before uploading to the registrar.
type NoticeLevel int

const (
	LevelNote NoticeLevel = iota
	LevelWarning
)

// Notice codes. These identify recoverable conditions that are collected
// during the run and surfaced together at the end instead of interrupting
// the pipeline.
const (
	CodeMissingStudentNumber = "missing-student-number"
	CodeOverride             = "override"
	CodeUnpostedDrift        = "unposted-drift"
	CodeCurrentDrift         = "current-drift"
	CodeDroppedStudents      = "dropped-students"
	CodeAmbiguousSection     = "ambiguous-section"
	CodeMissingMetadata      = "missing-metadata"
)

// Notice is one recoverable condition. Header/Rows carry an optional table
// for the terminal renderer; the policy engine itself never formats output.
type Notice struct {
	Level   NoticeLevel
	Code    string
	Message string
	Header  []string
	Rows    [][]string
}

// Warnings returns only the warning-level notices.
func Warnings(notices []Notice) []Notice {
	var out []Notice
	for _, n := range notices {
		if n.Level == LevelWarning {
			out = append(out, n)
		}
	}
	return out
}

// driftTableLimit caps how many students the drift warnings list; the
// message always carries the full count.
const driftTableLimit = 5

// collectNotices builds the end-of-run notices for a compute pass.
func collectNotices(kept, dropped []FinalGrade, students []Student, cfg Config) []Notice {
	var notices []Notice

	missingNumber := false
	for _, g := range kept {
		if g.SISID == "" {
			missingNumber = true
			break
		}
	}
	if missingNumber {
		notices = append(notices, Notice{
			Level: LevelWarning,
			Code:  CodeMissingStudentNumber,
			Message: "Could not find student numbers for at least one student.\n" +
				"This does not impact the visualizations, but you must add\n" +
				"student numbers manually before uploading the CSV file.\n" +
				"This can happen when a course has concluded or when it\n" +
				"includes a test student account.",
		})
	}

	var overrideRows [][]string
	for _, g := range kept {
		if g.Overridden {
			overrideRows = append(overrideRows, []string{
				g.SISID, g.Name(), fmtGrade(g.Rounded), fmtScore(g.PreOverride),
			})
		}
	}
	if len(overrideRows) > 0 {
		notices = append(notices, Notice{
			Level:   LevelNote,
			Code:    CodeOverride,
			Message: "The \"Override\" column on Canvas changed the final score for these students:",
			Header:  []string{"Student ID", "Name", "Percent Grade", "Before Override"},
			Rows:    overrideRows,
		})
	}

	var driftRows [][]string
	driftCount := 0
	for _, g := range kept {
		if !g.UnpostedDrift {
			continue
		}
		driftCount++
		if len(driftRows) < driftTableLimit {
			driftRows = append(driftRows, []string{
				g.SISID, g.Name(), fmtGrade(g.Rounded), fmtGrade(g.RoundedUnposted),
			})
		}
	}
	if driftCount > 0 {
		notices = append(notices, Notice{
			Level: LevelWarning,
			Code:  CodeUnpostedDrift,
			Message: fmt.Sprintf("Remember to post all assignments before uploading to the registrar.\n"+
				"Unposted scores would change the final grade of %d %s.",
				driftCount, plural(driftCount, "student", "students")),
			Header: []string{"Student ID", "Name", "Posted Grade", "Unposted Grade"},
			Rows:   driftRows,
		})
	} else {
		// Only shown when the unposted warning did not fire, so the output
		// does not get too noisy; posting all grades is a precondition of
		// this check as well.
		var currentRows [][]string
		currentCount := 0
		for _, g := range kept {
			if !g.CurrentDrift {
				continue
			}
			currentCount++
			if len(currentRows) < driftTableLimit {
				currentRows = append(currentRows, []string{
					g.SISID, g.Name(), fmtGrade(g.Rounded), fmtScore(currentOf(students, g.StudentID)),
				})
			}
		}
		if currentCount > 0 {
			notices = append(notices, Notice{
				Level: LevelWarning,
				Code:  CodeCurrentDrift,
				Message: fmt.Sprintf("Remember to grade all assignments before uploading to the registrar.\n"+
					"The \"Total\" shown on Canvas ignores ungraded assignments (\"-\"),\n"+
					"while the exported final grade counts them as 0.\n"+
					"Ungraded assignments would change the final grade of %d %s.",
					currentCount, plural(currentCount, "student", "students")),
				Header: []string{"Student ID", "Name", "Final Grade", `Canvas "Total"`},
				Rows:   currentRows,
			})
		}
	}

	if len(dropped) > 0 {
		rows := make([][]string, 0, len(dropped))
		for _, g := range dropped {
			rows = append(rows, []string{g.SISID, g.Name(), fmtGrade(g.Rounded), fmtGrade(g.RoundedUnposted)})
		}
		notices = append(notices, Notice{
			Level: LevelNote,
			Code:  CodeDroppedStudents,
			Message: fmt.Sprintf("Dropping %d %s with missing information, a grade <= %g,\n"+
				"or that was explicitly dropped by student number:",
				len(dropped), plural(len(dropped), "student", "students"), cfg.DropThreshold),
			Header: []string{"Student ID", "Name", "Posted Grade", "Unposted Grade"},
			Rows:   rows,
		})
	}

	if multi := DetectMultiSection(students); len(multi) > 0 {
		var rows [][]string
		for _, s := range students {
			if sections, ok := multi[s.ID]; ok {
				rows = append(rows, []string{s.SISID, s.Name(), strings.Join(sections, ", ")})
			}
		}
		notices = append(notices, Notice{
			Level: LevelWarning,
			Code:  CodeAmbiguousSection,
			Message: "These students are enrolled in multiple sections.\n" +
				"Only the first section is used in the output.",
			Header: []string{"Student ID", "Name", "Sections"},
			Rows:   rows,
		})
	}

	return notices
}

func currentOf(students []Student, id string) *float64 {
	for _, s := range students {
		if s.ID == id {
			return s.Platform.Current
		}
	}
	return nil
}

func fmtGrade(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func fmtScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
