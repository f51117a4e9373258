package ingest

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/campusops/gradeport/internal/canvas"
	"github.com/campusops/gradeport/internal/grades"
)

type fakeAPI struct {
	course      canvas.Course
	enrollments []canvas.Enrollment
	sections    []canvas.Section
	assignments []canvas.Assignment
	submissions map[string][]canvas.Submission
	users       []canvas.User
}

func (f *fakeAPI) ListCourses(context.Context) ([]canvas.Course, error) { return nil, nil }
func (f *fakeAPI) GetCourse(context.Context, string) (canvas.Course, error) {
	return f.course, nil
}
func (f *fakeAPI) Enrollments(context.Context, string, string) ([]canvas.Enrollment, error) {
	return f.enrollments, nil
}
func (f *fakeAPI) Sections(context.Context, string) ([]canvas.Section, error) {
	return f.sections, nil
}
func (f *fakeAPI) Assignments(context.Context, string) ([]canvas.Assignment, error) {
	return f.assignments, nil
}
func (f *fakeAPI) Submissions(_ context.Context, _ string, assignmentID string) ([]canvas.Submission, error) {
	return f.submissions[assignmentID], nil
}
func (f *fakeAPI) Users(context.Context, string) ([]canvas.User, error) { return f.users, nil }

func quiet() *log.Logger { return log.New(io.Discard) }

func fp(v float64) *float64 { return &v }

func score(v float64) canvas.Score { return canvas.Score{Valid: true, Value: v} }

func TestFetchRosterMergesDuplicateEnrollments(t *testing.T) {
	api := &fakeAPI{
		course: canvas.Course{ID: "53665", CourseCode: "DSCI 541 101 2023W1"},
		sections: []canvas.Section{
			{ID: "9001", Name: "DSCI 541 101"},
			{ID: "9002", Name: "DSCI 541 102"},
		},
		enrollments: []canvas.Enrollment{
			{UserID: "1", SISUserID: "111", Surname: "Smith", Preferred: "Sam", SectionID: "9001",
				Grades: canvas.GradeSummary{Posted: fp(85)}},
			{UserID: "2", SISUserID: "222", Surname: "Lovelace", Preferred: "Ada", SectionID: "9001",
				Grades: canvas.GradeSummary{Posted: fp(99)}},
			{UserID: "2", SISUserID: "222", Surname: "Lovelace", Preferred: "Ada", SectionID: "9002",
				Grades: canvas.GradeSummary{Posted: fp(99)}},
		},
	}
	roster, err := FetchRoster(context.Background(), api, "53665", "active", quiet())
	if err != nil {
		t.Fatal(err)
	}
	if len(roster.Students) != 2 {
		t.Fatalf("duplicates not merged: %d students", len(roster.Students))
	}
	ada := roster.Students[1]
	if len(ada.Sections) != 2 || ada.Sections[0] != "101" || ada.Sections[1] != "102" {
		t.Fatalf("sections not merged: %v", ada.Sections)
	}
	multi := grades.DetectMultiSection(roster.Students)
	if _, ok := multi["2"]; !ok || len(multi) != 1 {
		t.Fatalf("multi-section detection failed: %v", multi)
	}
}

func TestFetchRosterFallsBackToRawSectionID(t *testing.T) {
	api := &fakeAPI{
		course: canvas.Course{ID: "1"},
		enrollments: []canvas.Enrollment{
			{UserID: "1", SectionID: "77", Grades: canvas.GradeSummary{Posted: fp(85)}},
		},
	}
	roster, err := FetchRoster(context.Background(), api, "1", "active", quiet())
	if err != nil {
		t.Fatal(err)
	}
	if got := roster.Students[0].Section(); got != "77" {
		t.Fatalf("expected raw section id fallback, got %q", got)
	}
}

func TestFetchAssignmentScoresFiltersAndNormalizes(t *testing.T) {
	api := &fakeAPI{
		assignments: []canvas.Assignment{
			{ID: "10", Name: "Lab 1", PointsPossible: score(10), Published: true, Position: 1, GradedSubmissionsExist: true},
			{ID: "11", Name: "Quiz 1", PointsPossible: score(10), Published: true, Position: 2, GradedSubmissionsExist: true},
			{ID: "12", Name: "Draft", PointsPossible: score(10), Published: false, Position: 3, GradedSubmissionsExist: true},
			{ID: "13", Name: "Survey", PointsPossible: canvas.Score{}, Published: true, Position: 4, GradedSubmissionsExist: true},
		},
		submissions: map[string][]canvas.Submission{
			"10": {
				{UserID: "1", GraderID: "500", Score: score(8)},
				{UserID: "2", GraderID: "-99", Score: canvas.Score{}},
			},
		},
		users: []canvas.User{{ID: "500", Name: "TA One"}},
	}
	set, err := FetchAssignmentScores(context.Background(), api, "1", regexp.MustCompile(`^Lab`), grades.DateFilter{}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Assignments) != 1 || set.Assignments[0].Name != "Lab 1" {
		t.Fatalf("filter failed: %+v", set.Assignments)
	}
	if len(set.Submissions) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(set.Submissions))
	}
	// Negative grader ids identify nobody.
	if set.Submissions[1].GraderID != "" {
		t.Fatalf("negative grader id kept: %q", set.Submissions[1].GraderID)
	}
	if set.Submissions[1].Posted != nil {
		t.Fatal("missing score coerced to a value")
	}
	if set.Graders["500"] != "TA One" {
		t.Fatalf("grader name lost: %v", set.Graders)
	}
}

func TestFetchAssignmentScoresNoMatchIsError(t *testing.T) {
	api := &fakeAPI{
		assignments: []canvas.Assignment{
			{ID: "10", Name: "Lab 1", PointsPossible: score(10), Published: true, GradedSubmissionsExist: true},
		},
	}
	_, err := FetchAssignmentScores(context.Background(), api, "1", regexp.MustCompile(`Exam`), grades.DateFilter{}, quiet())
	var fe *FilterError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FilterError, got %v", err)
	}
}

func TestFetchAssignmentScoresDateFilter(t *testing.T) {
	early := time.Date(2023, 9, 10, 0, 0, 0, 0, time.UTC)
	late := time.Date(2023, 12, 10, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeAPI{
		assignments: []canvas.Assignment{
			{ID: "10", Name: "Lab 1", PointsPossible: score(10), Published: true, GradedSubmissionsExist: true, DueAt: &early},
			{ID: "11", Name: "Lab 2", PointsPossible: score(10), Published: true, GradedSubmissionsExist: true, DueAt: &late},
		},
	}
	set, err := FetchAssignmentScores(context.Background(), api, "1", nil, grades.DateFilter{End: &cutoff}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Assignments) != 1 || set.Assignments[0].Name != "Lab 1" {
		t.Fatalf("date filter failed: %+v", set.Assignments)
	}
}

func TestFilterCourses(t *testing.T) {
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)
	courses := []canvas.Course{
		{ID: "1", Name: "DSCI 541", CreatedAt: &newer},
		{ID: "2", Name: "DSCI 100", CreatedAt: &old},
		{ID: "3", Name: "STAT 541", CreatedAt: &recent},
		{ID: "4", Name: "DSCI 542"}, // undated courses are always shown
	}
	since := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	got := FilterCourses(courses, "541", since)
	if len(got) != 2 {
		t.Fatalf("expected 2 courses, got %d", len(got))
	}
	// Sorted by creation date.
	if got[0].ID != "3" || got[1].ID != "1" {
		t.Fatalf("wrong order: %v, %v", got[0].ID, got[1].ID)
	}

	got = FilterCourses(courses, "", since)
	if len(got) != 3 {
		t.Fatalf("expected 3 courses within window, got %d", len(got))
	}
	if got[2].ID != "4" {
		t.Fatalf("undated course should sort last: %v", got[2].ID)
	}
}
