package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/campusops/gradeport/internal/canvas"
	"github.com/campusops/gradeport/internal/config"
	"github.com/campusops/gradeport/internal/fsc"
	"github.com/campusops/gradeport/internal/grades"
	"github.com/campusops/gradeport/internal/ingest"
	"github.com/campusops/gradeport/internal/logging"
	"github.com/campusops/gradeport/internal/tui"
	"github.com/campusops/gradeport/internal/ui"
	"github.com/campusops/gradeport/internal/viz"
)

const dateLayout = "2006-01-02"

type prepareOptions struct {
	courseID      string
	filename      string
	apiURL        string
	studentStatus string

	maxGrade       int
	rounding       string
	driftThreshold float64

	dropThreshold   float64
	dropStudents    []string
	dropMissingInfo bool
	dropUngraded    bool

	filterAssignments string
	groupBy           string
	startDate         string
	endDate           string
	openChart         bool

	overrideCampus  string
	overrideSubject string
	overrideCourse  string
	overrideSession string
	overrideSection string
}

func newPrepareCommand() *cobra.Command {
	var opts prepareOptions

	cmd := &cobra.Command{
		Use:   "prepare-fsc-grades",
		Short: "Download final grades for one course and save the FSC CSV file",
		Long: `Download final grades for one course, apply the grading policy
(rounding, capping, drop rules), and save them as a CSV file accepted by
the Faculty Service Centre. Optionally also downloads the individual
assignment scores and renders a page of grade charts.

The course id is in the course URL, e.g. 53665 for
https://canvas.ubc.ca/courses/53665. Run "gradeport show-courses" to list
the courses your token can access.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrepare(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.courseID, "course-id", "", "Canvas course id (required)")
	f.StringVar(&opts.filename, "filename", "", "output basename; defaults to fsc-grades_<course code>")
	f.StringVar(&opts.apiURL, "api-url", "", "Canvas base URL; defaults to the configured instance")
	f.StringVar(&opts.studentStatus, "student-status", "", "enrollment state to download (active, completed, ...)")

	f.IntVar(&opts.maxGrade, "max-grade", 0, "cap final grades at this value")
	f.StringVar(&opts.rounding, "rounding", "", "rounding convention: half-up or half-even")
	f.Float64Var(&opts.driftThreshold, "drift-threshold", 0, "flag unposted scores only when they move a grade across this value; 0 flags any change")

	f.Float64Var(&opts.dropThreshold, "drop-threshold", 0, "drop students with a grade at or below this value")
	f.StringSliceVar(&opts.dropStudents, "drop-students", nil, "student numbers to drop from the output")
	f.BoolVar(&opts.dropMissingInfo, "drop-missing-info", true, "drop students missing a student number, name, or section")
	f.BoolVar(&opts.dropUngraded, "drop-ungraded", false, "drop students with no grade data at all")

	f.StringVar(&opts.filterAssignments, "filter-assignments", "", `regex selecting assignments for the charts; "false" skips the assignment download`)
	f.StringVar(&opts.groupBy, "group-by", "", "comparison chart grouping: Section or Grader (default: auto)")
	f.StringVar(&opts.startDate, "start-date", "", "ignore assignments due before this date (YYYY-MM-DD)")
	f.StringVar(&opts.endDate, "end-date", "", "ignore assignments due after this date (YYYY-MM-DD)")
	f.BoolVar(&opts.openChart, "open-chart", false, "open the chart page in the browser without asking")

	f.StringVar(&opts.overrideCampus, "override-campus", "", "replace the auto-detected campus")
	f.StringVar(&opts.overrideSubject, "override-subject", "", "replace the auto-detected subject")
	f.StringVar(&opts.overrideCourse, "override-course", "", "replace the auto-detected course number")
	f.StringVar(&opts.overrideSession, "override-session", "", "replace the auto-detected session")
	f.StringVar(&opts.overrideSection, "override-section", "", "set the section for the chart titles")

	_ = cmd.MarkFlagRequired("course-id")
	return cmd
}

func runPrepare(cmd *cobra.Command, opts prepareOptions) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(cfg.LogPath(), verbose)
	if err != nil {
		return err
	}
	defer closer.Close()

	policy, err := preparePolicy(cmd, cfg, opts)
	if err != nil {
		return err
	}

	filter, skipAssignments, err := parseAssignmentFilter(opts.filterAssignments)
	if err != nil {
		return err
	}

	apiURL := cfg.APIURL()
	if opts.apiURL != "" {
		apiURL = opts.apiURL
	}
	status := cfg.StudentStatus()
	if opts.studentStatus != "" {
		status = strings.ToLower(opts.studentStatus)
	}

	token, err := apiToken()
	if err != nil {
		return err
	}
	client, err := canvas.NewClient(apiURL, token, canvas.WithLogger(logger))
	if err != nil {
		return err
	}

	roster, err := ingest.FetchRoster(ctx, client, opts.courseID, status, logger)
	if err != nil {
		return err
	}

	result, err := grades.ComputeFinalGrades(roster.Students, nil, nil, policy)
	if err != nil {
		return err
	}

	meta, metaNotices := fsc.ExtractMetadata(roster.Course.CourseCode, fsc.Overrides{
		Campus:  opts.overrideCampus,
		Subject: opts.overrideSubject,
		Course:  opts.overrideCourse,
		Session: opts.overrideSession,
		Section: opts.overrideSection,
	})

	basename := opts.filename
	if basename == "" {
		basename = fsc.DefaultFilename(roster.Course.CourseCode)
	}
	csvPath := basename + ".csv"

	rows := fsc.ToSubmissionTable(result.Grades)
	if err := fsc.SaveCSV(csvPath, rows, policy.MaxGrade); err != nil {
		return err
	}
	fmt.Println(ui.Success(fmt.Sprintf("Saved %d grades to %s.", len(rows), csvPath)))

	notices := append(result.Notices, metaNotices...)
	fmt.Print(ui.RenderNotices(notices))
	if warnings := grades.Warnings(notices); len(warnings) > 0 {
		fmt.Println(ui.Warning(fmt.Sprintf("%d of the notices above %s attention before uploading.",
			len(warnings), pluralNeed(len(warnings)))))
	}

	if !skipAssignments {
		if err := renderCharts(ctx, client, result, meta, basename, filter, policy, opts, logger); err != nil {
			return err
		}
	}

	fmt.Print(ui.Note("Before the grades can be submitted for approval,\n" +
		"someone with FSC access must upload " + csvPath + "\n" +
		"and enter any grades flagged above manually."))
	return nil
}

// preparePolicy merges the config-file policy defaults with the flags that
// were set explicitly on the command line.
func preparePolicy(cmd *cobra.Command, cfg *config.Config, opts prepareOptions) (grades.Config, error) {
	policy, err := cfg.PolicyConfig()
	if err != nil {
		return grades.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("max-grade") {
		policy.MaxGrade = opts.maxGrade
	}
	if flags.Changed("rounding") {
		mode, err := grades.ParseRoundingMode(opts.rounding)
		if err != nil {
			return grades.Config{}, err
		}
		policy.Rounding = mode
	}
	if flags.Changed("drift-threshold") {
		policy.DriftThreshold = opts.driftThreshold
	}
	if flags.Changed("drop-threshold") {
		policy.DropThreshold = opts.dropThreshold
	}
	if flags.Changed("drop-missing-info") {
		policy.DropMissingInfo = opts.dropMissingInfo
	}
	policy.DropUngraded = opts.dropUngraded
	policy.DropStudents = append(policy.DropStudents, opts.dropStudents...)

	dates, err := parseDateFilter(opts.startDate, opts.endDate)
	if err != nil {
		return grades.Config{}, err
	}
	policy.Dates = dates

	if flags.Changed("group-by") {
		group, err := grades.ParseGroupBy(opts.groupBy)
		if err != nil {
			return grades.Config{}, err
		}
		policy.GroupBy = group
	}
	return policy, nil
}

func parseDateFilter(start, end string) (grades.DateFilter, error) {
	var dates grades.DateFilter
	if start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			return dates, fmt.Errorf("invalid --start-date %q; expected YYYY-MM-DD", start)
		}
		dates.Start = &t
	}
	if end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			return dates, fmt.Errorf("invalid --end-date %q; expected YYYY-MM-DD", end)
		}
		dates.End = &t
	}
	return dates, nil
}

// downloadConsented reports whether the assignment download may proceed
// without asking: passing an explicit name filter already answers that.
func downloadConsented(filter *regexp.Regexp) bool {
	return filter != nil
}

func pluralNeed(n int) string {
	if n == 1 {
		return "needs"
	}
	return "need"
}

// parseAssignmentFilter compiles the assignment name filter. The literal
// "false" skips the assignment download entirely.
func parseAssignmentFilter(value string) (*regexp.Regexp, bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, false, nil
	}
	if strings.EqualFold(trimmed, "false") {
		return nil, true, nil
	}
	re, err := regexp.Compile(trimmed)
	if err != nil {
		return nil, false, fmt.Errorf("invalid --filter-assignments regex %q: %w", value, err)
	}
	return re, false, nil
}

// renderCharts downloads the per-assignment scores and writes the chart
// page. The CSV is already on disk, so a failure here loses nothing.
func renderCharts(ctx context.Context, client *canvas.Client, result grades.Result, meta fsc.Metadata, basename string, filter *regexp.Regexp, policy grades.Config, opts prepareOptions, logger *log.Logger) error {
	// An explicit filter is already consent; --open-chart only controls
	// opening the rendered page, never the download itself.
	if !downloadConsented(filter) {
		ok, err := tui.Confirm("Download individual assignment scores and render grade charts?", true)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	set, err := ingest.FetchAssignmentScores(ctx, client, opts.courseID, filter, policy.Dates, logger)
	if err != nil {
		return err
	}

	data := buildChartData(result, set, meta, policy.GroupBy)
	htmlPath := basename + ".html"
	if err := viz.RenderHTML(htmlPath, data); err != nil {
		return err
	}
	fmt.Println(ui.Success("Saved grade charts to " + htmlPath + "."))

	open := opts.openChart
	if !open {
		open, err = tui.Confirm("Open the chart page in your browser?", true)
		if err != nil {
			return err
		}
	}
	if open {
		if err := openInBrowser(htmlPath); err != nil {
			logger.Warn("could not open the browser", "err", err)
		}
	}
	return nil
}

// buildChartData assembles every chart input. The comparison grouping
// auto-detects: sections when the course has more than one, otherwise
// graders when more than one graded.
func buildChartData(result grades.Result, set ingest.ScoreSet, meta fsc.Metadata, groupBy grades.GroupBy) viz.ChartData {
	var finals []float64
	sectionOf := make(map[string]string, len(result.Grades))
	sectionGrades := make(map[string][]float64)
	for _, g := range result.Grades {
		sectionOf[g.StudentID] = g.Section
		if g.Raw == nil {
			continue
		}
		finals = append(finals, *g.Raw)
		sectionGrades[g.Section] = append(sectionGrades[g.Section], *g.Raw)
	}

	graders := make(map[string]bool)
	for _, sub := range set.Submissions {
		if sub.GraderID != "" {
			graders[sub.GraderID] = true
		}
	}
	if groupBy == grades.GroupNone {
		switch {
		case len(sectionGrades) > 1:
			groupBy = grades.GroupSection
		case len(graders) > 1:
			groupBy = grades.GroupGrader
		}
	}

	points := make(map[string]float64, len(set.Assignments))
	for _, a := range set.Assignments {
		points[a.ID] = a.PointsPossible
	}
	scoreGroups := make(map[string][]float64)
	for _, sub := range set.Submissions {
		if sub.Posted == nil || points[sub.AssignmentID] <= 0 {
			continue
		}
		var group string
		switch groupBy {
		case grades.GroupSection:
			group = sectionOf[sub.StudentID]
		case grades.GroupGrader:
			group = graderName(set.Graders, sub.GraderID)
		}
		if group == "" {
			continue
		}
		pct := 100 * *sub.Posted / points[sub.AssignmentID]
		scoreGroups[group] = append(scoreGroups[group], pct)
	}

	order, series := viz.StudentScoreSeries(set.Assignments, set.Submissions, result.Grades)

	groupLabel := "Section"
	if groupBy == grades.GroupGrader {
		groupLabel = "Grader"
	}
	data := viz.ChartData{
		Title:            strings.TrimSpace(meta.Subject + " " + meta.Course),
		GroupLabel:       groupLabel,
		Distribution:     viz.Distribution(finals),
		Assignments:      viz.AssignmentDistributions(set.Assignments, set.Submissions),
		AssignmentOrder:  order,
		StudentScoreRows: series,
		Percentiles:      viz.PercentileRanks(result.Grades),
	}
	if groupBy == grades.GroupSection {
		data.GradeComparison = viz.GroupComparison(sectionGrades)
	}
	if groupBy != grades.GroupNone {
		data.ScoreComparison = viz.GroupComparison(scoreGroups)
	}
	return data
}

func graderName(names map[string]string, graderID string) string {
	if graderID == "" {
		return ""
	}
	if name := names[graderID]; name != "" {
		return name
	}
	return graderID
}

func openInBrowser(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Start()
}
