// Package fsc is the formatter for the registrar's Faculty Service Centre:
// it projects final grades into the fixed CSV contract and extracts course
// metadata for filenames and chart titles.
package fsc

import (
	"strings"

	"github.com/campusops/gradeport/internal/grades"
)

// DefaultCampus is used when no campus override is given.
const DefaultCampus = "UBC"

// UnknownField is substituted for course metadata that could not be
// extracted from the platform course code.
const UnknownField = "UNKNOWN"

// Metadata describes the course for filenames and chart titles. The campus,
// subject, course, and session are extracted from the platform course code,
// e.g. "DSCI 541 101 2023W1".
type Metadata struct {
	Campus  string
	Subject string
	Course  string
	Session string
	Section string
}

// Overrides replaces individual auto-detected metadata fields. Overridden
// sessions keep their exact value; auto-detected ones lose the trailing
// session-number suffix, which exists on the platform but not at the
// registrar.
type Overrides struct {
	Campus  string
	Subject string
	Course  string
	Session string
	Section string
}

// ExtractMetadata parses the course code and applies overrides. Missing or
// unparseable fields substitute documented defaults and are reported as a
// notice rather than failing the run.
func ExtractMetadata(courseCode string, o Overrides) (Metadata, []grades.Notice) {
	var notices []grades.Notice

	meta := Metadata{
		Campus:  DefaultCampus,
		Subject: UnknownField,
		Course:  UnknownField,
	}
	tokens := strings.Fields(courseCode)
	switch {
	case len(tokens) >= 3:
		meta.Subject = tokens[0]
		meta.Course = tokens[1]
		// Some course codes include multiple sessions; the last token is
		// the current one. The trailing digit is a platform-only suffix.
		session := tokens[len(tokens)-1]
		if len(session) > 1 {
			session = session[:len(session)-1]
		}
		meta.Session = session
	case len(tokens) == 2:
		meta.Subject = tokens[0]
		meta.Course = tokens[1]
		notices = append(notices, missingMetadataNotice(courseCode, "session"))
	default:
		notices = append(notices, missingMetadataNotice(courseCode, "subject, course, and session"))
	}

	if o.Campus != "" {
		meta.Campus = o.Campus
	}
	if o.Subject != "" {
		meta.Subject = o.Subject
	}
	if o.Course != "" {
		meta.Course = o.Course
	}
	if o.Session != "" {
		meta.Session = o.Session
	}
	if o.Section != "" {
		meta.Section = o.Section
	}
	return meta, notices
}

func missingMetadataNotice(courseCode, fields string) grades.Notice {
	return grades.Notice{
		Level: grades.LevelNote,
		Code:  grades.CodeMissingMetadata,
		Message: "Could not extract " + fields + " from course code \"" + courseCode + "\".\n" +
			"Using \"" + UnknownField + "\" as a placeholder; the --override flags replace it.",
	}
}

// DefaultFilename derives the output basename from the course code, with
// spaces and slashes replaced so the name is filesystem-safe.
func DefaultFilename(courseCode string) string {
	cleaned := strings.ReplaceAll(courseCode, " ", "-")
	cleaned = strings.ReplaceAll(cleaned, "/", "-")
	return "fsc-grades_" + cleaned
}
