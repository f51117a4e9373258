// gradeport downloads final grades from a Canvas instance, applies the
// grading policy, and writes the CSV the registrar's Faculty Service Centre
// accepts, plus an HTML page of grade charts.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/campusops/gradeport/internal/tui"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var verbose bool

func main() {
	// A .env in the working directory is a convenient place for CANVAS_PAT.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "gradeport",
		Short:         "Download Canvas grades and prepare them for FSC submission",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newPrepareCommand())
	root.AddCommand(newShowCoursesCommand())

	if err := root.Execute(); err != nil {
		if errors.Is(err, tui.ErrAborted) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// apiToken returns the Canvas token from the environment, prompting for it
// when unset.
func apiToken() (string, error) {
	if token := os.Getenv("CANVAS_PAT"); token != "" {
		return token, nil
	}
	return tui.PromptToken()
}
