package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list <archive.har>",
	Short: "Summarize every captured request in the archive.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		archive := loadArchive(args[0])

		t := newTable()
		t.AppendHeader(table.Row{"#", "Time", "Method", "Status", "Size", "URL"})
		for i, entry := range archive.Entries {
			t.AppendRow(table.Row{
				i + 1,
				entryClock(entry.Started),
				entry.Method,
				entry.Status,
				formatSize(len(entry.Body)),
				truncate(entry.URL, 75),
			})
		}
		t.Render()
	},
}
