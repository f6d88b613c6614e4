package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var categoriesFrom, categoriesTo, categoriesYear string

func init() {
	flags := categoriesCmd.Flags()
	flags.StringVar(&categoriesFrom, "from", "", "The sending institution.")
	flags.StringVar(&categoriesTo, "to", "", "The receiving institution.")
	flags.StringVar(&categoriesYear, "year", "", "The academic year, defaults to the current one.")
	categoriesCmd.MarkFlagRequired("from")
	categoriesCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(categoriesCmd)
}

var categoriesCmd = &cobra.Command{
	Use:   "categories --from <institution> --to <institution>",
	Short: "Lists the kinds of agreements published between two institutions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		p, err := resolvePair(cmd.Context(), client, categoriesFrom, categoriesTo, categoriesYear)
		if err != nil {
			return err
		}
		categories, err := client.Categories(cmd.Context(), p.year, p.sending, p.receiving)
		if err != nil {
			return err
		}

		t := newTable()
		t.SetTitle("%s -> %s (%s)", p.sending.Name, p.receiving.Name, p.year.Label)
		t.AppendHeader(table.Row{"Code", "Label"})
		for _, c := range categories {
			t.AppendRow(table.Row{c.Code, c.Label})
		}
		t.Render()
		return nil
	},
}
