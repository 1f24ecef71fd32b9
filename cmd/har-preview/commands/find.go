package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"harbridge-backend/lib/har"
)

const findSuggestionCount = 3

func init() {
	rootCmd.AddCommand(findCmd)
}

var findCmd = &cobra.Command{
	Use:   "find <archive.har> <substring>",
	Short: "Find captured entries whose URL contains a substring.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		archive := loadArchive(args[0])
		needle := strings.ToLower(args[1])

		t := newTable()
		t.AppendHeader(table.Row{"#", "Method", "Status", "URL"})
		matches := 0
		for i, entry := range archive.Entries {
			if !strings.Contains(strings.ToLower(entry.URL), needle) {
				continue
			}
			matches++
			t.AppendRow(table.Row{i + 1, entry.Method, entry.Status, truncate(entry.URL, 90)})
		}

		if matches > 0 {
			t.Render()
			return
		}

		fmt.Printf("No entries match %q. Closest URLs:\n", args[1])
		for _, suggestion := range closestURLs(archive.Entries, needle, findSuggestionCount) {
			fmt.Printf("  %s\n", suggestion)
		}
	},
}

// closestURLs ranks the distinct captured URLs by JaroWinkler similarity to
// the query and returns the top n.
func closestURLs(entries []har.Entry, query string, n int) []string {
	type urlScore struct {
		url   string
		score float64
	}

	seen := map[string]bool{}
	scores := []urlScore{}
	for _, entry := range entries {
		if seen[entry.URL] {
			continue
		}
		seen[entry.URL] = true
		scores = append(scores, urlScore{
			url:   entry.URL,
			score: matchr.JaroWinkler(query, strings.ToLower(entry.URL), false),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	urls := []string{}
	for _, s := range scores {
		if len(urls) >= n {
			break
		}
		urls = append(urls, s.url)
	}
	return urls
}
