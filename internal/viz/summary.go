// Package viz prepares the tabular summaries behind each chart and renders
// them to an HTML page. The summary builders are pure; the policy engine
// hands them fully prepared grade data.
package viz

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/campusops/gradeport/internal/grades"
)

// Stats is the five-number summary plus mean and spread shown in the
// boxplot tooltips.
type Stats struct {
	Min    float64
	Q1     float64
	Median float64
	Mean   float64
	Q3     float64
	Max    float64
	Stdev  float64
	Count  int
}

// Describe computes descriptive statistics for a set of scores.
func Describe(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return Stats{
		Min:    sorted[0],
		Q1:     stat.Quantile(0.25, stat.LinInterp, sorted, nil),
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		Mean:   stat.Mean(sorted, nil),
		Q3:     stat.Quantile(0.75, stat.LinInterp, sorted, nil),
		Max:    sorted[len(sorted)-1],
		Stdev:  stat.StdDev(sorted, nil),
		Count:  len(sorted),
	}
}

// Bin is one histogram bucket: [Low, High).
type Bin struct {
	Low   float64
	High  float64
	Count int
}

// binStep matches the 2.5-point buckets of the original distribution chart.
const binStep = 2.5

// DistributionSummary is the final-grade distribution chart input.
type DistributionSummary struct {
	Bins  []Bin
	Stats Stats
}

// Distribution bins scores between min(50, lowest score floored to a
// multiple of five) and 100, so the histogram and boxplot share an axis.
func Distribution(values []float64) DistributionSummary {
	if len(values) == 0 {
		return DistributionSummary{}
	}
	stats := Describe(values)
	low := math.Min(50, math.Floor(stats.Min/5)*5)
	var bins []Bin
	for lo := low; lo < 100; lo += binStep {
		bins = append(bins, Bin{Low: lo, High: lo + binStep})
	}
	for _, v := range values {
		idx := int((v - low) / binStep)
		if idx < 0 {
			idx = 0
		}
		if idx >= len(bins) {
			idx = len(bins) - 1
		}
		bins[idx].Count++
	}
	return DistributionSummary{Bins: bins, Stats: stats}
}

// PercentileRanks maps each student to the percentage of students scoring
// at or below them, computed on the rounded grades so ties share the most
// lenient value.
func PercentileRanks(finalGrades []grades.FinalGrade) map[string]float64 {
	ranks := make(map[string]float64, len(finalGrades))
	var resolvable []grades.FinalGrade
	for _, g := range finalGrades {
		if g.Resolvable() {
			resolvable = append(resolvable, g)
		}
	}
	n := len(resolvable)
	if n == 0 {
		return ranks
	}
	for _, g := range resolvable {
		atOrBelow := 0
		for _, other := range resolvable {
			if *other.Rounded <= *g.Rounded {
				atOrBelow++
			}
		}
		ranks[g.StudentID] = math.Round(10000*float64(atOrBelow)/float64(n)) / 100
	}
	return ranks
}

// AssignmentSummary is one assignment's score distribution, in platform
// order. Scores are percentages of the points possible.
type AssignmentSummary struct {
	Assignment string
	Position   int
	Scores     []float64
	Stats      Stats
}

// AssignmentDistributions builds one summary per assignment from the raw
// submissions, preserving the platform-reported assignment order.
// Submissions without a score contribute nothing.
func AssignmentDistributions(assignments []grades.Assignment, submissions []grades.Submission) []AssignmentSummary {
	byAssignment := make(map[string][]float64, len(assignments))
	for _, sub := range submissions {
		v := submissionScore(sub)
		if v == nil {
			continue
		}
		byAssignment[sub.AssignmentID] = append(byAssignment[sub.AssignmentID], *v)
	}

	ordered := append([]grades.Assignment(nil), assignments...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	var out []AssignmentSummary
	for _, a := range ordered {
		if a.PointsPossible <= 0 {
			continue
		}
		scores := byAssignment[a.ID]
		pcts := make([]float64, 0, len(scores))
		for _, s := range scores {
			// Two decimals is plenty for display; final FSC grades round
			// elsewhere with the registrar's convention.
			pcts = append(pcts, math.Round(10000*s/a.PointsPossible)/100)
		}
		out = append(out, AssignmentSummary{
			Assignment: a.Name,
			Position:   a.Position,
			Scores:     pcts,
			Stats:      Describe(pcts),
		})
	}
	return out
}

func submissionScore(sub grades.Submission) *float64 {
	if sub.Posted != nil {
		return sub.Posted
	}
	return sub.Unposted
}

// StudentSeries is one student's trajectory across assignments. Scores
// align with the assignment order returned by StudentScoreSeries; nil
// means no data for that assignment.
type StudentSeries struct {
	StudentID string
	Name      string
	Number    string
	Scores    []*float64
	Stdev     float64
}

// StudentScoreSeries builds the per-student time series for every student
// present in the final grade sequence. It returns the assignment names in
// platform order and one series per student, sorted by name.
func StudentScoreSeries(assignments []grades.Assignment, submissions []grades.Submission, finalGrades []grades.FinalGrade) ([]string, []StudentSeries) {
	ordered := append([]grades.Assignment(nil), assignments...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	index := make(map[string]int, len(ordered))
	names := make([]string, 0, len(ordered))
	points := make([]float64, 0, len(ordered))
	for _, a := range ordered {
		if a.PointsPossible <= 0 {
			continue
		}
		index[a.ID] = len(names)
		names = append(names, a.Name)
		points = append(points, a.PointsPossible)
	}

	byStudent := make(map[string][]*float64, len(finalGrades))
	for _, g := range finalGrades {
		byStudent[g.StudentID] = make([]*float64, len(names))
	}
	for _, sub := range submissions {
		slots, ok := byStudent[sub.StudentID]
		if !ok {
			continue
		}
		pos, ok := index[sub.AssignmentID]
		if !ok {
			continue
		}
		if v := submissionScore(sub); v != nil {
			pct := math.Round(10000**v/points[pos]) / 100
			slots[pos] = &pct
		}
	}

	series := make([]StudentSeries, 0, len(finalGrades))
	for _, g := range finalGrades {
		slots := byStudent[g.StudentID]
		var present []float64
		for _, v := range slots {
			if v != nil {
				present = append(present, *v)
			}
		}
		series = append(series, StudentSeries{
			StudentID: g.StudentID,
			Name:      g.Name(),
			Number:    g.SISID,
			Scores:    slots,
			Stdev:     Describe(present).Stdev,
		})
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].Name < series[j].Name })
	return names, series
}

// GroupSummary is one section's or grader's score distribution for the
// comparison boxplots.
type GroupSummary struct {
	Group  string
	Scores []float64
	Stats  Stats
}

// GroupComparison summarizes grouped scores, ordered by median so the
// comparison chart reads bottom-up. Empty groups are skipped.
func GroupComparison(groups map[string][]float64) []GroupSummary {
	out := make([]GroupSummary, 0, len(groups))
	for name, scores := range groups {
		if len(scores) == 0 {
			continue
		}
		out = append(out, GroupSummary{Group: name, Scores: scores, Stats: Describe(scores)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stats.Median != out[j].Stats.Median {
			return out[i].Stats.Median < out[j].Stats.Median
		}
		return out[i].Group < out[j].Group
	})
	return out
}
