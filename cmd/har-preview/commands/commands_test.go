package commands

import (
	"testing"

	"github.com/stretchr/testify/require"

	"harbridge-backend/lib/har"
)

func TestReplayHeadersDropsTransportHeaders(t *testing.T) {
	headers := replayHeaders([]har.Header{
		{Name: ":method", Value: "GET"},
		{Name: "Host", Value: "api.sephora.com"},
		{Name: "Content-Length", Value: "12"},
		{Name: "Accept-Encoding", Value: "gzip"},
		{Name: "Authorization", Value: "Bearer abc"},
		{Name: "x-api-key", Value: "key"},
	})

	require.Equal(t, map[string]string{
		"Authorization": "Bearer abc",
		"x-api-key":     "key",
	}, headers)
}

func TestClosestURLsRanksAndDeduplicates(t *testing.T) {
	entries := []har.Entry{
		{URL: "https://api.sephora.com/v1/checkout/order/init"},
		{URL: "https://api.sephora.com/v1/checkout/order/init"},
		{URL: "https://api.sephora.com/v2/catalog/search"},
		{URL: "https://sportscenter.fan.api.espn.com/apis/v2/homefeed"},
	}

	urls := closestURLs(entries, "https://api.sephora.com/v1/checkout", 2)
	require.Len(t, urls, 2)
	require.Equal(t, "https://api.sephora.com/v1/checkout/order/init", urls[0])
}

func TestFormatSize(t *testing.T) {
	require.Equal(t, "N/A", formatSize(0))
	require.Equal(t, "512B", formatSize(512))
	require.Equal(t, "1.5KB", formatSize(1536))
	require.Equal(t, "2.0MB", formatSize(2*1024*1024))
}

func TestPreviewBodyPrettyPrintsJSON(t *testing.T) {
	require.Equal(t, "{\n  \"a\": 1\n}", previewBody(`{"a":1}`))
	require.Equal(t, "not json", previewBody("not json"))
}

func TestEntryClock(t *testing.T) {
	require.Equal(t, "15:04:05", entryClock("2025-08-02T15:04:05Z"))
	require.Equal(t, "garbled", entryClock("garbled"))
}
