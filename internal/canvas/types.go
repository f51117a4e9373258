package canvas

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is a platform-assigned identifier. Canvas usually reports numeric ids
// but some installations return strings, so ids stay opaque end to end.
type ID string

// UnmarshalJSON accepts a JSON number, string, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*id = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return &DataShapeError{Field: "id", Raw: raw}
		}
		*id = ID(n.String())
	}
	return nil
}

func (id ID) String() string { return string(id) }

// Score is a nullable numeric grade field. The platform emits numbers, null,
// and occasionally string sentinels such as "None" or "N/A"; the sentinels
// normalize to a missing value, never to zero. Anything else is schema drift
// and fails parsing with a DataShapeError.
type Score struct {
	Valid bool
	Value float64
}

var missingSentinels = map[string]bool{
	"":     true,
	"-":    true,
	"none": true,
	"n/a":  true,
	"null": true,
	"nan":  true,
}

// UnmarshalJSON implements the tolerant numeric parsing described above.
func (s *Score) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*s = Score{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return &DataShapeError{Field: "score", Raw: raw}
		}
		if missingSentinels[strings.ToLower(strings.TrimSpace(str))] {
			*s = Score{}
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return &DataShapeError{Field: "score", Raw: raw}
		}
		*s = Score{Valid: true, Value: v}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return &DataShapeError{Field: "score", Raw: raw}
	}
	*s = Score{Valid: true, Value: v}
	return nil
}

// Ptr returns the score as a nullable float.
func (s Score) Ptr() *float64 {
	if !s.Valid {
		return nil
	}
	v := s.Value
	return &v
}

// Course is one course visible to the API token.
type Course struct {
	ID         ID         `json:"id"`
	Name       string     `json:"name"`
	CourseCode string     `json:"course_code"`
	CreatedAt  *time.Time `json:"created_at"`
	StartAt    *time.Time `json:"start_at"`
	EndAt      *time.Time `json:"end_at"`
}

// Section is a sub-group of a course roster, e.g. a lab section.
type Section struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// GradeSummary is the per-enrollment grade aggregate the platform computes
// with its own weighting scheme. We pass these through; nothing here
// recomputes grading-scheme weights.
type GradeSummary struct {
	Posted        *float64 // final_score, released to the student
	Current       *float64 // current_score, what the student sees as "Total"
	Unposted      *float64 // unposted_current_score, grader's latest view
	UnpostedFinal *float64 // unposted_final_score, ungraded treated as zero
	Override      *float64 // override_score, manual final-grade override
}

// Enrollment is one student's membership in a course.
type Enrollment struct {
	UserID    ID
	SISUserID string
	Surname   string
	Preferred string
	SectionID ID
	Grades    GradeSummary
}

type enrollmentUser struct {
	ID           ID     `json:"id"`
	SISUserID    string `json:"sis_user_id"`
	SortableName string `json:"sortable_name"`
}

type rawEnrollment struct {
	User            enrollmentUser             `json:"user"`
	CourseSectionID ID                         `json:"course_section_id"`
	Grades          map[string]json.RawMessage `json:"grades"`
}

// requiredGradeFields must be present in every enrollment's grades object.
// Their absence means the token's role cannot read student grades at all.
var requiredGradeFields = []string{"final_score", "unposted_current_score"}

func (e *Enrollment) UnmarshalJSON(data []byte) error {
	var raw rawEnrollment
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, field := range requiredGradeFields {
		if _, ok := raw.Grades[field]; !ok {
			return &AuthError{
				Reason: fmt.Sprintf("grading field %q is missing from the enrollment response; "+
					"your role likely lacks permission to read student grades", field),
			}
		}
	}
	summary := GradeSummary{}
	for field, dst := range map[string]**float64{
		"final_score":            &summary.Posted,
		"current_score":          &summary.Current,
		"unposted_current_score": &summary.Unposted,
		"unposted_final_score":   &summary.UnpostedFinal,
		"override_score":         &summary.Override,
	} {
		msg, ok := raw.Grades[field]
		if !ok {
			continue
		}
		var s Score
		if err := json.Unmarshal(msg, &s); err != nil {
			return fmt.Errorf("canvas: enrollment %s field %s: %w", raw.User.ID, field, err)
		}
		*dst = s.Ptr()
	}
	surname, preferred := splitSortableName(raw.User.SortableName)
	*e = Enrollment{
		UserID:    raw.User.ID,
		SISUserID: raw.User.SISUserID,
		Surname:   surname,
		Preferred: preferred,
		SectionID: raw.CourseSectionID,
		Grades:    summary,
	}
	return nil
}

// splitSortableName splits "Surname, Preferred Name" into its two halves.
func splitSortableName(sortable string) (surname, preferred string) {
	parts := strings.SplitN(sortable, ",", 2)
	surname = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		preferred = strings.TrimSpace(parts[1])
	}
	return surname, preferred
}

// Assignment is one gradable item, in the order the platform reports it.
type Assignment struct {
	ID                     ID         `json:"id"`
	Name                   string     `json:"name"`
	PointsPossible         Score      `json:"points_possible"`
	Published              bool       `json:"published"`
	Position               int        `json:"position"`
	DueAt                  *time.Time `json:"due_at"`
	GradedSubmissionsExist bool       `json:"graded_submissions_exist"`
}

// Submission is one student's score on one assignment.
type Submission struct {
	UserID   ID    `json:"user_id"`
	GraderID ID    `json:"grader_id"`
	Score    Score `json:"score"`
}

// User is a course user looked up for naming graders and students in charts.
type User struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	SISUserID string `json:"sis_user_id"`
}
