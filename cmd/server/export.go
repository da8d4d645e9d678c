package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/lesson-engine/calendar"
	"github.com/warp/lesson-engine/factory"
)

var (
	exportFilter factory.FilterArgs
	exportOutput string
	exportName   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export lessons as iCalendar",
	Long:  `Writes the lessons matching the filter flags as an .ics file, or to stdout.`,
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFilter.TitlePattern, "title", "", "title substring")
	f.StringVar(&exportFilter.PersonName, "person", "", "person name")
	f.StringVar(&exportFilter.DateRange, "date-range", "", "inclusive dates, start,end")
	f.StringVar(&exportFilter.Weekday, "weekday", "", "weekday token (0-6, 周一, monday)")
	f.StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
	f.StringVar(&exportName, "name", "Lessons", "calendar name")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	spec, err := factory.Filter(exportFilter)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := a.sched.Query(cmd.Context(), spec)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOutput, err)
		}
		defer f.Close()
		out = f
	}
	if _, err := io.WriteString(out, calendar.Export(sessions, exportName, time.Now())); err != nil {
		return err
	}
	a.logger.Info("calendar exported", "sessions", len(sessions), "output", exportOutput)
	return nil
}
