package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusops/gradeport/internal/canvas"
	"github.com/campusops/gradeport/internal/config"
	"github.com/campusops/gradeport/internal/ingest"
	"github.com/campusops/gradeport/internal/logging"
	"github.com/campusops/gradeport/internal/ui"
)

func newShowCoursesCommand() *cobra.Command {
	var (
		filter    string
		startDate string
		apiURL    string
	)

	cmd := &cobra.Command{
		Use:   "show-courses",
		Short: "List the courses your API token can access",
		Long: `List the Canvas courses your API token can access, with the course
ids that prepare-fsc-grades expects. By default only courses created in
the last twelve months are shown.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runShowCourses(filter, startDate, apiURL)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "only show courses whose name contains this text")
	cmd.Flags().StringVar(&startDate, "start-date", "", "only show courses created at or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Canvas base URL; defaults to the configured instance")
	return cmd
}

func runShowCourses(filter, startDate, apiURL string) error {
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

	since := time.Now().Add(-ingest.DefaultCourseWindow)
	if startDate != "" {
		parsed, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return fmt.Errorf("invalid --start-date %q; expected YYYY-MM-DD", startDate)
		}
		since = parsed
	}

	if apiURL == "" {
		apiURL = cfg.APIURL()
	}
	token, err := apiToken()
	if err != nil {
		return err
	}
	client, err := canvas.NewClient(apiURL, token, canvas.WithLogger(logger))
	if err != nil {
		return err
	}

	courses, err := client.ListCourses(ctx)
	if err != nil {
		return err
	}
	shown := ingest.FilterCourses(courses, filter, since)
	if len(shown) == 0 {
		fmt.Println("No courses matched. Try an earlier --start-date or a different --filter.")
		return nil
	}

	rows := make([][]string, 0, len(shown))
	for _, c := range shown {
		created := "-"
		if c.CreatedAt != nil {
			created = c.CreatedAt.Format(dateLayout)
		}
		rows = append(rows, []string{c.ID.String(), c.Name, created})
	}
	fmt.Println(ui.Table([]string{"ID", "Name", "Creation Date"}, rows))
	return nil
}
