package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"harbridge-backend/lib/har"
)

const bodyPreviewLimit = 2000

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show <archive.har> <n>",
	Short: "Show full request and response details for one captured entry.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		archive := loadArchive(args[0])
		entry := entryAt(archive, args[1])

		rule := strings.Repeat("=", 80)
		fmt.Println(rule)
		fmt.Printf("Request #%s/%d\n", args[1], len(archive.Entries))
		fmt.Println(rule)
		fmt.Printf("Time:   %s\n", entryClock(entry.Started))
		fmt.Printf("Method: %s\n", entry.Method)
		fmt.Printf("Domain: %s\n", entryDomain(entry.URL))
		fmt.Printf("URL:    %s\n", entry.URL)

		printHeaders("Request Headers", entry.RequestHeaders)
		if entry.PostData != "" {
			fmt.Println("\nRequest Body:")
			fmt.Println(previewBody(entry.PostData))
		}

		fmt.Println()
		fmt.Println(rule)
		fmt.Printf("Response: %d (%s)\n", entry.Status, entry.ContentType)
		fmt.Println(rule)
		printHeaders("Response Headers", entry.ResponseHeaders)
		if entry.Body != "" {
			fmt.Println("\nResponse Body:")
			fmt.Println(previewBody(entry.Body))
		}
	},
}

func printHeaders(title string, headers []har.Header) {
	if len(headers) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for _, h := range headers {
		fmt.Printf("  %s: %s\n", h.Name, truncate(h.Value, 100))
	}
}

// previewBody pretty-prints JSON bodies and caps the output length so giant
// captured payloads stay readable.
func previewBody(body string) string {
	trimmed := strings.TrimSpace(body)
	if json.Valid([]byte(trimmed)) {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, []byte(trimmed), "", "  "); err == nil {
			trimmed = pretty.String()
		}
	}
	return truncate(trimmed, bodyPreviewLimit)
}
