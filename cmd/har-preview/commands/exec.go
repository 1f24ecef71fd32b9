package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"harbridge-backend/lib/har"
	"harbridge-backend/lib/serviceutil"
	"harbridge-backend/lib/telemetry"
)

var execTimeout *int

func init() {
	execTimeout = execCmd.Flags().Int("timeout", 30, "Request timeout in seconds.")
	rootCmd.AddCommand(execCmd)
}

var execCmd = &cobra.Command{
	Use:   "exec <archive.har> <n> [--timeout <seconds>]",
	Short: "Replay a captured request against the live upstream.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		archive := loadArchive(args[0])
		entry := entryAt(archive, args[1])

		fmt.Printf("Method: %s\n", entry.Method)
		fmt.Printf("URL: %s\n", entry.URL)
		headers := replayHeaders(entry.RequestHeaders)
		fmt.Printf("Headers: %d headers\n", len(headers))
		if entry.PostData != "" {
			fmt.Printf("Body: %d characters\n", len(entry.PostData))
		}
		fmt.Println("\nMaking request...")

		client := resty.New()
		client.SetTimeout(time.Duration(*execTimeout) * time.Second)
		telemetry.InstrumentResty(client, "har-preview/exec")

		req := client.R().
			SetContext(cmd.Context()).
			SetHeaders(headers)
		if entry.PostData != "" {
			req.SetBody(entry.PostData)
		}

		resp, err := req.Execute(entry.Method, entry.URL)
		if err != nil {
			serviceutil.Fatal("replay request", err)
		}

		fmt.Printf("\nRequest completed in %.2fms\n", float64(resp.Time().Microseconds())/1000)
		fmt.Printf("Status: %s\n", resp.Status())
		fmt.Printf("Response size: %s\n", formatSize(len(resp.Body())))
		if len(resp.Body()) > 0 {
			fmt.Println("\nResponse Body:")
			fmt.Println(previewBody(string(resp.Body())))
		}
	},
}

// replayHeaders filters the captured header set down to what can be resent:
// HTTP/2 pseudo-headers and transport-managed headers are dropped.
func replayHeaders(captured []har.Header) map[string]string {
	skip := map[string]bool{
		"host":            true,
		"content-length":  true,
		"connection":      true,
		"accept-encoding": true,
	}

	headers := map[string]string{}
	for _, h := range captured {
		if strings.HasPrefix(h.Name, ":") || skip[strings.ToLower(h.Name)] {
			continue
		}
		headers[h.Name] = h.Value
	}
	return headers
}
