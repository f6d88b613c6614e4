package commands

import (
	"strings"

	"autoclass-backend/internal/assist"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var institutionSearch string

func init() {
	institutionsCmd.Flags().StringVar(&institutionSearch, "search", "", "Only list institutions matching this name.")
	rootCmd.AddCommand(institutionsCmd)
}

var institutionsCmd = &cobra.Command{
	Use:   "institutions [--search <name>]",
	Short: "Lists the institutions in the directory with all of their names.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		directory, err := client.Institutions(cmd.Context())
		if err != nil {
			return err
		}
		if institutionSearch != "" {
			directory = assist.SearchInstitutions(directory, institutionSearch)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Id", "Code", "Name", "Former names"})
		for _, inst := range directory {
			var former []string
			for _, name := range inst.Names {
				if name != inst.Name {
					former = append(former, name)
				}
			}
			t.AppendRow(table.Row{inst.ID, inst.Code, inst.Name, strings.Join(former, "; ")})
		}
		t.Render()
		return nil
	},
}
