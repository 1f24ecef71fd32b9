package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"harbridge-backend/lib/har"
	"harbridge-backend/services/espn/extractor"
)

const apiVersion = "1.0.0"

// Service exposes the extraction pipeline over HTTP. Handlers are thin:
// every decision that matters lives in the extractor.
type Service struct {
	extractor *extractor.Extractor
	archives  extractor.Archives
}

func New(x *extractor.Extractor, archives extractor.Archives) *Service {
	return &Service{extractor: x, archives: archives}
}

func (s *Service) RegisterHTTP(r chi.Router) {
	r.Get("/", s.handleRoot)
	r.Get("/home", s.handleHomeFeed)
	r.Get("/events", s.handleTopEvents)
	r.Get("/sports", s.handleSports)
	r.Get("/search", s.handleSearch)
	r.Get("/scores", s.handleScores)
	r.Get("/event/{eventID}", s.handleEventDetails)
	r.Get("/health", s.handleHealth)
}

func (s *Service) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "ESPN Dynamic HAR API",
		"description": "Reverse engineered ESPN mobile app using HAR files",
		"version":     apiVersion,
		"endpoints": map[string]string{
			"home":   "/home",
			"events": "/events",
			"sports": "/sports",
			"search": "/search",
			"scores": "/scores",
			"health": "/health",
		},
		"data_source": "ESPN Mobile App HAR Files",
	})
}

func (s *Service) handleHomeFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := s.extractor.HomeFeed(r.Context())
	if err != nil {
		writeError(w, r, "Failed to extract home feed", err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (s *Service) handleTopEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.extractor.TopEvents(r.Context())
	if err != nil {
		writeError(w, r, "Failed to extract events", err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleSports(w http.ResponseWriter, r *http.Request) {
	sports, err := s.extractor.SportsCategories(r.Context())
	if err != nil {
		writeError(w, r, "Failed to extract sports categories", err)
		return
	}
	writeJSON(w, http.StatusOK, sports)
}

func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		query = r.URL.Query().Get("q")
	}
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"detail": "query parameter is required",
		})
		return
	}
	contentType := r.URL.Query().Get("type")
	if contentType == "" {
		contentType = "all"
	}

	writeJSON(w, http.StatusOK, s.extractor.Search(r.Context(), query, contentType))
}

// handleScores serves the events payload narrowed to scored games, with
// optional sport and live_only filters applied after extraction.
func (s *Service) handleScores(w http.ResponseWriter, r *http.Request) {
	scores := s.extractor.Scores(r.Context())

	if sport := r.URL.Query().Get("sport"); sport != "" {
		scores.Data.Games = filterGames(scores.Data.Games, func(game extractor.EventRecord) bool {
			return strings.Contains(strings.ToLower(game.Sport), strings.ToLower(sport))
		})
	}
	if r.URL.Query().Get("live_only") == "true" {
		scores.Data.Games = filterGames(scores.Data.Games, isLive)
	}
	scores.Data.TotalGames = len(scores.Data.Games)

	writeJSON(w, http.StatusOK, scores)
}

func (s *Service) handleEventDetails(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	events, err := s.extractor.TopEvents(r.Context())
	if err != nil {
		writeError(w, r, "Failed to get event details", err)
		return
	}
	if events.Data != nil {
		for _, event := range events.Data.Events {
			if event.ID == eventID {
				writeJSON(w, http.StatusOK, map[string]any{
					"status": "success",
					"event":  event,
					"details": map[string]any{
						"source": "ESPN Mobile App HAR",
					},
				})
				return
			}
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"detail": "Event " + eventID + " not found",
	})
}

// handleHealth probes each archive for readability and reports a per-file
// breakdown plus an overall ok/degraded verdict.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	files := map[string]string{
		"home":   s.archives.Home,
		"events": s.archives.Events,
		"sports": s.archives.Sports,
	}

	overall := "ok"
	statuses := make(map[string]any, len(files))
	for name, path := range files {
		archive, err := har.Load(path)
		if err != nil {
			overall = "degraded"
			statuses[name] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
			continue
		}
		statuses[name] = map[string]any{
			"status":         "ok",
			"requests_count": len(archive.Entries),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    overall,
		"har_files": statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// isLive recognizes the vendor's in-progress markers. Plain substring
// matching on "in" would also catch "final".
func isLive(game extractor.EventRecord) bool {
	status := strings.ToLower(game.Status)
	return status == "in" ||
		strings.Contains(status, "live") ||
		strings.Contains(status, "in progress")
}

func filterGames(games []extractor.EventRecord, keep func(extractor.EventRecord) bool) []extractor.EventRecord {
	filtered := games[:0:0]
	for _, game := range games {
		if keep(game) {
			filtered = append(filtered, game)
		}
	}
	if filtered == nil {
		filtered = []extractor.EventRecord{}
	}
	return filtered
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, message string, err error) {
	slog.ErrorContext(r.Context(), message, "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"detail": message + ": " + err.Error(),
	})
}
