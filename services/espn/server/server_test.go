package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"harbridge-backend/services/espn/extractor"
)

func writeCapture(t *testing.T, url, payload string) string {
	t.Helper()

	envelope := map[string]any{
		"log": map[string]any{"entries": []any{map[string]any{
			"request":  map[string]any{"method": "GET", "url": url},
			"response": map[string]any{"status": 200, "content": map[string]any{"text": payload}},
		}}},
	}
	buf, err := json.Marshal(envelope)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "capture.har")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	archives := extractor.Archives{
		Home: writeCapture(t,
			"https://sportscenter.fan.api.espn.com/apis/v2/homefeed",
			`{"content": [{"header": {"label": "Top"}, "items": [
				{"id": "a1", "article": {"headline": "Season preview"}}
			]}]}`),
		Events: writeCapture(t,
			"https://sportscenter.fan.api.espn.com/apis/v2/events/top",
			`{"content": {"content": [{"header": {"label": "MLB"}, "items": [
				{"gameId": "401", "sportName": "Baseball", "statusTextOne": "Final",
				 "teamOneName": "Cubs", "teamOneScore": "4",
				 "teamTwoName": "Mets", "teamTwoScore": "2"},
				{"gameId": "402", "sportName": "Basketball", "gameState": "in",
				 "teamOneName": "Bulls", "teamOneScore": "55",
				 "teamTwoName": "Heat", "teamTwoScore": "51"}
			]}]}}`),
		Sports: writeCapture(t,
			"https://sportscenter.api.espn.com/apis/espnapp/v1/sportsList",
			`{"sections": [{"items": [{"label": "Baseball", "uid": "s:1"}]}]}`),
	}

	r := chi.NewRouter()
	New(extractor.New(archives, extractor.Options{}), archives).RegisterHTTP(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestRootListsEndpoints(t *testing.T) {
	srv := testServer(t)

	var body map[string]any
	status := getJSON(t, srv.URL+"/", &body)
	require.Equal(t, http.StatusOK, status)
	endpoints := body["endpoints"].(map[string]any)
	require.Equal(t, "/scores", endpoints["scores"])
}

func TestHomeFeedEndpoint(t *testing.T) {
	srv := testServer(t)

	var feed extractor.HomeFeedResult
	status := getJSON(t, srv.URL+"/home", &feed)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "success", feed.Status)
	require.Len(t, feed.Data.Items, 1)
}

func TestSearchRequiresQuery(t *testing.T) {
	srv := testServer(t)

	var body map[string]any
	status := getJSON(t, srv.URL+"/search", &body)
	require.Equal(t, http.StatusBadRequest, status)

	var result extractor.SearchResult
	status = getJSON(t, srv.URL+"/search?query=baseball", &result)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "baseball", result.Query)
}

func TestScoresSportFilter(t *testing.T) {
	srv := testServer(t)

	var all extractor.ScoresResult
	getJSON(t, srv.URL+"/scores", &all)
	require.Equal(t, 2, all.Data.TotalGames)

	var filtered extractor.ScoresResult
	getJSON(t, srv.URL+"/scores?sport=baseball", &filtered)
	require.Equal(t, 1, filtered.Data.TotalGames)
	require.Equal(t, "401", filtered.Data.Games[0].ID)

	var live extractor.ScoresResult
	getJSON(t, srv.URL+"/scores?live_only=true", &live)
	require.Equal(t, 1, live.Data.TotalGames)
	require.Equal(t, "402", live.Data.Games[0].ID)
}

func TestEventDetails(t *testing.T) {
	srv := testServer(t)

	var body map[string]any
	status := getJSON(t, srv.URL+"/event/401", &body)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "success", body["status"])

	status = getJSON(t, srv.URL+"/event/999", &body)
	require.Equal(t, http.StatusNotFound, status)
}

func TestHealthReportsPerArchive(t *testing.T) {
	srv := testServer(t)

	var body map[string]any
	status := getJSON(t, srv.URL+"/health", &body)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])

	files := body["har_files"].(map[string]any)
	home := files["home"].(map[string]any)
	require.Equal(t, "ok", home["status"])
	require.EqualValues(t, 1, home["requests_count"])
}

func TestHealthDegradedOnMissingArchive(t *testing.T) {
	archives := extractor.Archives{
		Home:   filepath.Join(t.TempDir(), "missing.har"),
		Events: filepath.Join(t.TempDir(), "missing.har"),
		Sports: filepath.Join(t.TempDir(), "missing.har"),
	}
	r := chi.NewRouter()
	New(extractor.New(archives, extractor.Options{}), archives).RegisterHTTP(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	var body map[string]any
	getJSON(t, srv.URL+"/health", &body)
	require.Equal(t, "degraded", body["status"])
}
