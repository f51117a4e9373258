package viz

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartData bundles every prepared summary for one rendered page. Empty
// slices skip the corresponding chart.
type ChartData struct {
	// Title is "Subject Course", e.g. "DSCI 541".
	Title string
	// GroupLabel names the comparison variable, "Section" or "Grader".
	GroupLabel string

	Distribution     DistributionSummary
	GradeComparison  []GroupSummary
	Assignments      []AssignmentSummary
	ScoreComparison  []GroupSummary
	AssignmentOrder  []string
	StudentScoreRows []StudentSeries
	// Percentiles maps student ids to their final-grade percentile rank,
	// shown next to each student in the trajectory chart.
	Percentiles map[string]float64
}

// RenderHTML writes the chart page. Rendering failures after the file is
// created are reported but the pipeline has already emitted the CSV, so
// nothing upstream is lost.
func RenderHTML(path string, data ChartData) error {
	page := components.NewPage()
	page.PageTitle = "Grade Distribution " + data.Title

	if len(data.Distribution.Bins) > 0 {
		page.AddCharts(distributionChart(data))
	}
	if len(data.GradeComparison) > 1 {
		page.AddCharts(comparisonChart(
			fmt.Sprintf("Final Grade Comparison Between %ss", data.GroupLabel),
			data.GradeComparison,
		))
	}
	if len(data.Assignments) > 0 {
		page.AddCharts(assignmentChart(data.Assignments))
	}
	if len(data.ScoreComparison) > 1 {
		page.AddCharts(comparisonChart(
			fmt.Sprintf("Assignment Score Comparison Between %ss", data.GroupLabel),
			data.ScoreComparison,
		))
	}
	if len(data.StudentScoreRows) > 0 && len(data.AssignmentOrder) > 0 {
		page.AddCharts(trajectoryChart(data.AssignmentOrder, data.StudentScoreRows, data.Percentiles))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("viz: create %s: %w", path, err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("viz: render charts: %w", err)
	}
	return nil
}

func distributionChart(data ChartData) components.Charter {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Grade Distribution " + data.Title,
			Subtitle: fmt.Sprintf("n=%d  mean=%.1f  median=%.1f  stdev=%.1f",
				data.Distribution.Stats.Count,
				data.Distribution.Stats.Mean,
				data.Distribution.Stats.Median,
				data.Distribution.Stats.Stdev),
		}),
	)
	labels := make([]string, 0, len(data.Distribution.Bins))
	counts := make([]opts.BarData, 0, len(data.Distribution.Bins))
	for _, bin := range data.Distribution.Bins {
		labels = append(labels, fmt.Sprintf("%g", bin.Low))
		counts = append(counts, opts.BarData{Value: bin.Count})
	}
	bar.SetXAxis(labels).AddSeries("Students", counts)
	return bar
}

func comparisonChart(title string, groups []GroupSummary) components.Charter {
	box := charts.NewBoxPlot()
	box.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "Boxes show min, q1, median, q3, max; groups are ordered by median.",
		}),
	)
	names := make([]string, 0, len(groups))
	values := make([]opts.BoxPlotData, 0, len(groups))
	for _, g := range groups {
		names = append(names, g.Group)
		values = append(values, opts.BoxPlotData{Value: fiveNumber(g.Stats)})
	}
	box.SetXAxis(names).AddSeries("Scores", values)
	return box
}

func assignmentChart(summaries []AssignmentSummary) components.Charter {
	box := charts.NewBoxPlot()
	box.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Assignment Score Distributions",
			Subtitle: "The --filter-assignments option controls what is shown here.",
		}),
	)
	names := make([]string, 0, len(summaries))
	values := make([]opts.BoxPlotData, 0, len(summaries))
	for _, s := range summaries {
		names = append(names, s.Assignment)
		values = append(values, opts.BoxPlotData{Value: fiveNumber(s.Stats)})
	}
	box.SetXAxis(names).AddSeries("Scores", values)
	return box
}

func trajectoryChart(assignmentOrder []string, series []StudentSeries, percentiles map[string]float64) components.Charter {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Student Assignment Scores",
			Subtitle: "One line per student, assignments in course order.",
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)
	line.SetXAxis(assignmentOrder)
	for _, s := range series {
		points := make([]opts.LineData, 0, len(s.Scores))
		for _, v := range s.Scores {
			if v == nil {
				// echarts renders "-" as a gap instead of zero.
				points = append(points, opts.LineData{Value: "-"})
				continue
			}
			points = append(points, opts.LineData{Value: *v})
		}
		line.AddSeries(seriesLabel(s, percentiles), points)
	}
	return line
}

// seriesLabel names a student's trajectory series, tagging the final-grade
// percentile rank so it shows in the tooltip.
func seriesLabel(s StudentSeries, percentiles map[string]float64) string {
	pct, ok := percentiles[s.StudentID]
	if !ok {
		return s.Name
	}
	return fmt.Sprintf("%s (percentile %g)", s.Name, pct)
}

func fiveNumber(s Stats) []float64 {
	return []float64{s.Min, s.Q1, s.Median, s.Q3, s.Max}
}
