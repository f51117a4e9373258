// Package ingest pulls roster, assignment, and submission data from the
// grading platform and maps it into the policy engine's entities. It is
// decoupled from the concrete client so the pipeline can be exercised
// against a fake API in tests.
package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/campusops/gradeport/internal/canvas"
	"github.com/campusops/gradeport/internal/grades"
)

// API is the slice of the platform client the ingest layer needs.
type API interface {
	ListCourses(ctx context.Context) ([]canvas.Course, error)
	GetCourse(ctx context.Context, courseID string) (canvas.Course, error)
	Enrollments(ctx context.Context, courseID, state string) ([]canvas.Enrollment, error)
	Sections(ctx context.Context, courseID string) ([]canvas.Section, error)
	Assignments(ctx context.Context, courseID string) ([]canvas.Assignment, error)
	Submissions(ctx context.Context, courseID, assignmentID string) ([]canvas.Submission, error)
	Users(ctx context.Context, courseID string) ([]canvas.User, error)
}

// Roster is the downloaded course state the policy engine consumes.
type Roster struct {
	Course   canvas.Course
	Students []grades.Student
}

// FetchRoster downloads the course, its sections, and the student
// enrollments, merging duplicate enrollments (one per section) into a
// single student with every section attached.
func FetchRoster(ctx context.Context, api API, courseID, status string, logger *log.Logger) (Roster, error) {
	course, err := api.GetCourse(ctx, courseID)
	if err != nil {
		return Roster{}, err
	}

	sections, err := api.Sections(ctx, courseID)
	if err != nil {
		return Roster{}, err
	}
	sectionNames := make(map[canvas.ID]string, len(sections))
	for _, s := range sections {
		sectionNames[s.ID] = shortSectionName(s.Name)
	}

	logger.Info("downloading student grades", "course", course.CourseCode)
	enrollments, err := api.Enrollments(ctx, courseID, status)
	if err != nil {
		return Roster{}, err
	}

	index := make(map[string]int)
	var students []grades.Student
	for _, e := range enrollments {
		section := sectionNames[e.SectionID]
		if section == "" {
			section = e.SectionID.String()
		}
		if pos, ok := index[e.UserID.String()]; ok {
			// Same student enrolled in another section.
			students[pos].Sections = append(students[pos].Sections, section)
			continue
		}
		index[e.UserID.String()] = len(students)
		students = append(students, grades.Student{
			ID:        e.UserID.String(),
			SISID:     e.SISUserID,
			Surname:   e.Surname,
			Preferred: e.Preferred,
			Sections:  []string{section},
			Status:    status,
			Platform: grades.PlatformGrade{
				Posted:        e.Grades.Posted,
				Current:       e.Grades.Current,
				Unposted:      e.Grades.Unposted,
				UnpostedFinal: e.Grades.UnpostedFinal,
				Override:      e.Grades.Override,
			},
		})
	}
	logger.Info("downloaded student grades", "students", len(students))
	return Roster{Course: course, Students: students}, nil
}

// shortSectionName extracts the section identifier from a section name like
// "DSCI 541 101". Sections are not always numeric, so whatever sits in the
// identifier position is taken verbatim.
func shortSectionName(name string) string {
	fields := strings.Fields(name)
	if len(fields) >= 3 {
		return fields[2]
	}
	return strings.TrimSpace(name)
}

// FilterError is returned when an assignment filter excludes every
// assignment, so the caller can fail loudly instead of silently rendering
// empty charts.
type FilterError struct {
	Pattern string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("ingest: no assignment names matched the regular expression %q", e.Pattern)
}

// ScoreSet is the per-assignment score data behind the assignment charts.
type ScoreSet struct {
	Assignments []grades.Assignment
	Submissions []grades.Submission
	// Graders maps grader ids to display names; unknown graders map to "".
	Graders map[string]string
}

// FetchAssignmentScores downloads the published, gradable assignments
// (optionally filtered by name) and every submission for them. The date
// filter drops assignments due outside the window.
func FetchAssignmentScores(ctx context.Context, api API, courseID string, filter *regexp.Regexp, dates grades.DateFilter, logger *log.Logger) (ScoreSet, error) {
	raw, err := api.Assignments(ctx, courseID)
	if err != nil {
		return ScoreSet{}, err
	}

	var selected []canvas.Assignment
	for _, a := range raw {
		if !a.Published || !a.GradedSubmissionsExist {
			continue
		}
		if !a.PointsPossible.Valid || a.PointsPossible.Value <= 0 {
			continue
		}
		if filter != nil && !filter.MatchString(a.Name) {
			continue
		}
		if !dateIncluded(dates, a) {
			continue
		}
		selected = append(selected, a)
	}
	if len(selected) == 0 && filter != nil {
		return ScoreSet{}, &FilterError{Pattern: filter.String()}
	}

	set := ScoreSet{Graders: map[string]string{}}
	for _, a := range selected {
		set.Assignments = append(set.Assignments, grades.Assignment{
			ID:             a.ID.String(),
			Name:           a.Name,
			PointsPossible: a.PointsPossible.Value,
			Published:      a.Published,
			Position:       a.Position,
			DueAt:          a.DueAt,
		})
		logger.Info("downloading assignment scores", "assignment", a.Name)
		subs, err := api.Submissions(ctx, courseID, a.ID.String())
		if err != nil {
			return ScoreSet{}, err
		}
		for _, s := range subs {
			set.Submissions = append(set.Submissions, grades.Submission{
				StudentID:    s.UserID.String(),
				AssignmentID: a.ID.String(),
				GraderID:     normalizeGraderID(s.GraderID),
				Posted:       s.Score.Ptr(),
			})
		}
	}

	users, err := api.Users(ctx, courseID)
	if err != nil {
		return ScoreSet{}, err
	}
	for _, u := range users {
		set.Graders[u.ID.String()] = u.Name
	}
	return set, nil
}

func dateIncluded(dates grades.DateFilter, a canvas.Assignment) bool {
	if a.DueAt == nil {
		return true
	}
	if dates.Start != nil && a.DueAt.Before(*dates.Start) {
		return false
	}
	if dates.End != nil && a.DueAt.After(*dates.End) {
		return false
	}
	return true
}

// normalizeGraderID drops the negative grader ids the platform sometimes
// reports (seemingly from external tools); they identify nobody.
func normalizeGraderID(id canvas.ID) string {
	s := id.String()
	if strings.HasPrefix(s, "-") {
		return ""
	}
	return s
}
