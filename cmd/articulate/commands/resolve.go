package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"autoclass-backend/internal/automation"
	"autoclass-backend/internal/components/chrono"
	"autoclass-backend/internal/resolver"
	"autoclass-backend/internal/transfer"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	resolveReq  resolver.Request
	resolveJson bool
)

func init() {
	flags := resolveCmd.Flags()
	flags.StringVar(&resolveReq.SourceInstitution, "from", "", "The institution the student transfers from.")
	flags.StringVar(&resolveReq.TargetInstitution, "to", "", "The institution the student transfers to.")
	flags.StringVar(&resolveReq.Major, "major", "", "The major at the target institution.")
	flags.StringSliceVar(&resolveReq.CompletedCourses, "completed", nil, "Course codes the student has completed.")
	flags.StringVar(&resolveReq.TargetTerm, "term", "", "The term the student plans to transfer in.")
	flags.StringVar(&resolveReq.TargetAcademicYear, "year", "", "The academic year of the agreement, ex. 2024-2025.")
	flags.BoolVar(&resolveReq.Flags.AutomationOnly, "automation", false, "Read the agreement through the web frontend.")
	flags.BoolVar(&resolveReq.Flags.GuaranteedLiveData, "live", false, "Only return data read live from the web frontend.")
	flags.BoolVar(&resolveReq.StaticLookupDisabled, "no-static", false, "Never answer from the built-in agreements.")
	flags.BoolVar(&resolveJson, "json", false, "Print the result as JSON.")
	resolveCmd.MarkFlagRequired("from")
	resolveCmd.MarkFlagRequired("to")
	resolveCmd.MarkFlagRequired("major")

	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve --from <institution> --to <institution> --major <major>",
	Short: "Resolves the courses required to transfer into a major.",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := config.AutomationOptions()
		walker := automation.NewWalker(automation.RodFactory(opts), opts, tel)
		r := resolver.NewResolver(config.AssistOptions(), walker, chrono.NewStandardImpl(), tel)

		result := r.Resolve(cmd.Context(), resolveReq)

		if resolveJson {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		}

		if result.Failed() {
			return fmt.Errorf("%s: %s", result.Method, result.Error)
		}
		printResult(result)
		return nil
	},
}

func printResult(result transfer.ResolutionResult) {
	fmt.Printf("%s -> %s: %s (%s)\n", result.Origin, result.Target, result.Agreement, result.AcademicYear)
	fmt.Printf("term: %s, method: %s\n", result.Term, result.Method)

	t := newTable()
	t.AppendHeader(table.Row{"Code", "Title", "Units", "Classification", "Status"})
	var remaining float64
	for _, req := range result.Requirements {
		t.AppendRow(table.Row{req.Code, req.Title, req.Units, req.Classification, req.Status})
		if req.Status == transfer.Remaining {
			remaining += req.Units
		}
	}
	t.AppendFooter(table.Row{"", "Remaining units", remaining, "", ""})
	t.Render()
}
