package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warp/lesson-engine/factory"
)

var recurringCmd = &cobra.Command{
	Use:   "recurring <plan.json|->",
	Short: "Create recurring lessons from a JSON plan",
	Long: `Reads a recurring plan (same shape as POST /api/sessions/recurring) and
creates one lesson per matching date. Dates that conflict are skipped and listed.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecurring,
}

func init() {
	rootCmd.AddCommand(recurringCmd)
}

func runRecurring(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read plan: %w", err)
	}

	plan, err := factory.ParseRecurringJSON(data)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.sched.CreateRecurring(cmd.Context(), plan)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Person: %s (id %d)", res.PersonName, res.PersonID)
	if res.PersonCreated {
		fmt.Fprint(out, " [new]")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Created: %d\n", res.CreatedCount)
	for _, month := range res.Months() {
		fmt.Fprintf(out, "  %s: %d\n", month, res.CreatedByMonth[month])
	}
	fmt.Fprintf(out, "Expected income: %s\n", res.ExpectedIncome.StringFixed(2))
	if len(res.SkippedDates) > 0 {
		fmt.Fprintf(out, "Skipped (conflicts): %s\n", strings.Join(res.SkippedDates, ", "))
	}
	return nil
}
