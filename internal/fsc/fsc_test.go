package fsc

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/campusops/gradeport/internal/grades"
)

func grade(id, sis, preferred, surname string, rounded *int) grades.FinalGrade {
	return grades.FinalGrade{
		StudentID: id,
		SISID:     sis,
		Preferred: preferred,
		Surname:   surname,
		Rounded:   rounded,
	}
}

func ip(v int) *int { return &v }

func fp(v float64) *float64 { return &v }

func TestFinalGradePipelineWritesContractRow(t *testing.T) {
	// End to end through the policy engine: 84.6% rounds half-up to 85 and
	// lands in the CSV as a whole number.
	students := []grades.Student{{
		ID:        "10",
		SISID:     "1",
		Preferred: "Sam",
		Sections:  []string{"101"},
		Platform:  grades.PlatformGrade{Posted: fp(84.6)},
	}}
	res, err := grades.ComputeFinalGrades(students, nil, nil, grades.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, ToSubmissionTable(res.Grades), 100); err != nil {
		t.Fatal(err)
	}
	want := "Student Number,Name,Percent Grade\n1,Sam,85\n"
	if buf.String() != want {
		t.Fatalf("pipeline output:\n got %q\nwant %q", buf.String(), want)
	}
}

func TestToSubmissionTableOmitsUnresolvableGrades(t *testing.T) {
	rows := ToSubmissionTable([]grades.FinalGrade{
		grade("1", "111", "Sam", "Smith", ip(85)),
		grade("2", "222", "Nodata", "Nilsson", nil),
	})
	if len(rows) != 1 {
		t.Fatalf("expected unresolvable grade to be omitted, got %d rows", len(rows))
	}
	if rows[0].StudentNumber != "111" || rows[0].Grade != 85 {
		t.Fatalf("wrong row: %+v", rows[0])
	}
}

func TestToSubmissionTableFallsBackToPlatformID(t *testing.T) {
	rows := ToSubmissionTable([]grades.FinalGrade{grade("1", "", "Sam", "", ip(85))})
	if rows[0].StudentNumber != "1" {
		t.Fatalf("expected platform id fallback, got %q", rows[0].StudentNumber)
	}
	if rows[0].Name != "Sam" {
		t.Fatalf("single-part name mangled: %q", rows[0].Name)
	}
}

func TestWriteCSVContract(t *testing.T) {
	rows := ToSubmissionTable([]grades.FinalGrade{grade("1", "", "Sam", "", ip(85))})
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows, 100); err != nil {
		t.Fatal(err)
	}
	want := "Student Number,Name,Percent Grade\n1,Sam,85\n"
	if buf.String() != want {
		t.Fatalf("csv contract violated:\n got %q\nwant %q", buf.String(), want)
	}
	if strings.HasSuffix(buf.String(), "\n\n") {
		t.Fatal("trailing blank row")
	}
}

func TestWriteCSVIdempotent(t *testing.T) {
	rows := ToSubmissionTable([]grades.FinalGrade{
		grade("1", "111", "Sam", "Smith", ip(85)),
		grade("2", "222", "Ada", "Lovelace", ip(99)),
	})
	var first, second bytes.Buffer
	if err := WriteCSV(&first, rows, 100); err != nil {
		t.Fatal(err)
	}
	if err := WriteCSV(&second, rows, 100); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatal("repeated writes are not byte-identical")
	}
}

func TestValidateRejectsOutOfRangeGrade(t *testing.T) {
	err := Validate([]Row{{StudentNumber: "1", Name: "Sam", Grade: 105}}, 100)
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestSaveCSVAbortsBeforePartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grades.csv")
	err := SaveCSV(path, []Row{{StudentNumber: "", Name: "Sam", Grade: 85}}, 100)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("partial file written despite contract violation")
	}
}

func TestExtractMetadata(t *testing.T) {
	meta, notices := ExtractMetadata("DSCI 541 101 2023W1", Overrides{})
	if len(notices) != 0 {
		t.Fatalf("unexpected notices: %v", notices)
	}
	if meta.Subject != "DSCI" || meta.Course != "541" {
		t.Fatalf("wrong subject/course: %+v", meta)
	}
	// The platform-only session-number suffix is trimmed.
	if meta.Session != "2023W" {
		t.Fatalf("session suffix not trimmed: %q", meta.Session)
	}
	if meta.Campus != DefaultCampus {
		t.Fatalf("wrong campus default: %q", meta.Campus)
	}
}

func TestExtractMetadataOverrides(t *testing.T) {
	meta, _ := ExtractMetadata("DSCI 541 101 2023W1", Overrides{
		Campus:  "UBCO",
		Session: "2023W1",
	})
	if meta.Campus != "UBCO" {
		t.Fatalf("campus override ignored: %q", meta.Campus)
	}
	// Manually provided sessions keep their exact value.
	if meta.Session != "2023W1" {
		t.Fatalf("session override trimmed: %q", meta.Session)
	}
}

func TestExtractMetadataMissingFieldsUseDefaults(t *testing.T) {
	meta, notices := ExtractMetadata("", Overrides{})
	if meta.Subject != UnknownField || meta.Course != UnknownField {
		t.Fatalf("defaults not substituted: %+v", meta)
	}
	if len(notices) != 1 || notices[0].Code != grades.CodeMissingMetadata {
		t.Fatalf("missing-metadata notice not collected: %v", notices)
	}
}

func TestDefaultFilename(t *testing.T) {
	if got := DefaultFilename("DSCI 541/542 101 2023W1"); got != "fsc-grades_DSCI-541-542-101-2023W1" {
		t.Fatalf("wrong filename: %q", got)
	}
}
