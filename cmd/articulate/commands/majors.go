package commands

import (
	"autoclass-backend/internal/assist"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	majorsFrom, majorsTo, majorsYear string
	majorsReportType                 int
)

func init() {
	flags := majorsCmd.Flags()
	flags.StringVar(&majorsFrom, "from", "", "The sending institution.")
	flags.StringVar(&majorsTo, "to", "", "The receiving institution.")
	flags.StringVar(&majorsYear, "year", "", "The academic year, defaults to the current one.")
	flags.IntVar(&majorsReportType, "report-type", assist.ReportTypeComprehensive, "The agreement report type.")
	majorsCmd.MarkFlagRequired("from")
	majorsCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(majorsCmd)
}

var majorsCmd = &cobra.Command{
	Use:   "majors --from <institution> --to <institution>",
	Short: "Lists the major agreements published between two institutions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		p, err := resolvePair(cmd.Context(), client, majorsFrom, majorsTo, majorsYear)
		if err != nil {
			return err
		}
		majors, err := client.Majors(cmd.Context(), p.year, p.sending, p.receiving, majorsReportType)
		if err != nil {
			return err
		}

		t := newTable()
		t.SetTitle("%s -> %s (%s)", p.sending.Name, p.receiving.Name, p.year.Label)
		t.AppendHeader(table.Row{"Major", "Key"})
		for _, m := range majors {
			t.AppendRow(table.Row{m.DisplayName, m.Key})
		}
		t.Render()
		return nil
	},
}
