package commands

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"harbridge-backend/lib/har"
	"harbridge-backend/lib/serviceutil"
)

var rootCmd = &cobra.Command{
	Use:   "har-preview",
	Short: "har-preview navigates and replays requests from a HAR capture.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func loadArchive(path string) *har.Archive {
	archive, err := har.Load(path)
	if err != nil {
		serviceutil.Fatal("load har archive", err)
	}
	return archive
}

// entryAt resolves a 1-based entry number the way the capture summary
// displays them.
func entryAt(archive *har.Archive, arg string) har.Entry {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(archive.Entries) {
		serviceutil.Fatal("resolve entry",
			fmt.Errorf("entry number must be between 1 and %d, got %q", len(archive.Entries), arg))
	}
	return archive.Entries[n-1]
}

func entryDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return parsed.Host
}

func entryClock(started string) string {
	parsed, err := time.Parse(time.RFC3339, started)
	if err != nil {
		if len(started) > 19 {
			return started[:19]
		}
		return started
	}
	return parsed.Format("15:04:05")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func formatSize(n int) string {
	switch {
	case n == 0:
		return "N/A"
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1fMB", float64(n)/(1024*1024))
	}
}
