package main

import (
	"testing"

	"github.com/campusops/gradeport/internal/fsc"
	"github.com/campusops/gradeport/internal/grades"
	"github.com/campusops/gradeport/internal/ingest"
)

func fp(v float64) *float64 { return &v }

func ip(v int) *int { return &v }

func TestParseAssignmentFilter(t *testing.T) {
	re, skip, err := parseAssignmentFilter("^Lab")
	if err != nil || skip || re == nil || !re.MatchString("Lab 3") {
		t.Fatalf("regex filter broken: re=%v skip=%v err=%v", re, skip, err)
	}
	re, skip, err = parseAssignmentFilter("False")
	if err != nil || !skip || re != nil {
		t.Fatalf(`"False" should skip the download: re=%v skip=%v err=%v`, re, skip, err)
	}
	if _, _, err := parseAssignmentFilter("("); err == nil {
		t.Fatal("invalid regex accepted")
	}
}

func TestParseDateFilter(t *testing.T) {
	dates, err := parseDateFilter("2023-09-01", "2023-12-31")
	if err != nil || dates.Start == nil || dates.End == nil {
		t.Fatalf("dates not parsed: %+v err=%v", dates, err)
	}
	if _, err := parseDateFilter("09/01/2023", ""); err == nil {
		t.Fatal("invalid date accepted")
	}
}

func TestBuildChartDataAutoDetectsSections(t *testing.T) {
	result := grades.Result{Grades: []grades.FinalGrade{
		{StudentID: "1", Surname: "Smith", Section: "101", Raw: fp(85), Rounded: ip(85)},
		{StudentID: "2", Surname: "Lovelace", Section: "102", Raw: fp(99), Rounded: ip(99)},
	}}
	set := ingest.ScoreSet{
		Assignments: []grades.Assignment{{ID: "10", Name: "Lab 1", PointsPossible: 10, Position: 1}},
		Submissions: []grades.Submission{
			{StudentID: "1", AssignmentID: "10", GraderID: "500", Posted: fp(8)},
			{StudentID: "2", AssignmentID: "10", GraderID: "500", Posted: fp(10)},
		},
		Graders: map[string]string{"500": "TA One"},
	}
	meta := fsc.Metadata{Subject: "DSCI", Course: "541"}

	data := buildChartData(result, set, meta, grades.GroupNone)
	if data.GroupLabel != "Section" {
		t.Fatalf("expected section grouping with two sections, got %q", data.GroupLabel)
	}
	if data.Title != "DSCI 541" {
		t.Fatalf("wrong title: %q", data.Title)
	}
	if len(data.GradeComparison) != 2 || len(data.ScoreComparison) != 2 {
		t.Fatalf("comparison groups missing: %d grade, %d score",
			len(data.GradeComparison), len(data.ScoreComparison))
	}
	if len(data.StudentScoreRows) != 2 || len(data.AssignmentOrder) != 1 {
		t.Fatalf("trajectory inputs missing: %+v", data)
	}
	if len(data.Percentiles) != 2 || data.Percentiles["2"] != 100 {
		t.Fatalf("percentile ranks missing from chart data: %v", data.Percentiles)
	}
}

func TestAssignmentDownloadConsent(t *testing.T) {
	// Only an explicit filter skips the download prompt; every other flag,
	// --open-chart included, leaves the question to the user.
	if downloadConsented(nil) {
		t.Fatal("download must be confirmed when no filter is given")
	}
	re, _, err := parseAssignmentFilter("^Lab")
	if err != nil {
		t.Fatal(err)
	}
	if !downloadConsented(re) {
		t.Fatal("an explicit filter should consent to the download")
	}
}

func TestBuildChartDataFallsBackToGraders(t *testing.T) {
	result := grades.Result{Grades: []grades.FinalGrade{
		{StudentID: "1", Surname: "Smith", Section: "101", Raw: fp(85), Rounded: ip(85)},
		{StudentID: "2", Surname: "Lovelace", Section: "101", Raw: fp(99), Rounded: ip(99)},
	}}
	set := ingest.ScoreSet{
		Assignments: []grades.Assignment{{ID: "10", Name: "Lab 1", PointsPossible: 10, Position: 1}},
		Submissions: []grades.Submission{
			{StudentID: "1", AssignmentID: "10", GraderID: "500", Posted: fp(8)},
			{StudentID: "2", AssignmentID: "10", GraderID: "501", Posted: fp(10)},
		},
		Graders: map[string]string{"500": "TA One", "501": "TA Two"},
	}

	data := buildChartData(result, set, fsc.Metadata{}, grades.GroupNone)
	if data.GroupLabel != "Grader" {
		t.Fatalf("expected grader grouping with one section, got %q", data.GroupLabel)
	}
	// Final grades cannot be grouped by grader.
	if len(data.GradeComparison) != 0 {
		t.Fatalf("unexpected grade comparison: %+v", data.GradeComparison)
	}
	if len(data.ScoreComparison) != 2 {
		t.Fatalf("expected one score group per grader: %+v", data.ScoreComparison)
	}
}
