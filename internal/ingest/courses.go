package ingest

import (
	"sort"
	"strings"
	"time"

	"github.com/campusops/gradeport/internal/canvas"
)

// DefaultCourseWindow is how far back show-courses looks when no start
// date is given.
const DefaultCourseWindow = 12 * 30 * 24 * time.Hour

// FilterCourses narrows a course list to names containing filter
// (case-insensitive) and creation dates at or after since. Courses without
// a creation date are always shown. The result is sorted by creation date,
// undated courses last.
func FilterCourses(courses []canvas.Course, filter string, since time.Time) []canvas.Course {
	needle := strings.ToLower(strings.TrimSpace(filter))
	var out []canvas.Course
	for _, c := range courses {
		if needle != "" && !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}
		if c.CreatedAt != nil && c.CreatedAt.Before(since) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CreatedAt, out[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return out
}
