package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"harbridge-backend/services/sephora/live"
	"harbridge-backend/services/sephora/orders"
	"harbridge-backend/services/sephora/session"
)

const serviceVersion = "2.0.0"

type Profile struct {
	ProfileID string `json:"profile_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Service is the HTTP boundary over the live executor. Upstream failures
// never surface as 5xx on the data endpoints: every handler degrades to a
// shape carrying isLiveData=false and the error string.
type Service struct {
	sessions *session.Manager
	live     *live.Executor
	store    *orders.Store
	cart     *cart
	profile  Profile
	limiter  *rateLimiter
	baseURL  string
}

func New(sessions *session.Manager, executor *live.Executor, store *orders.Store, profile Profile, baseURL string) *Service {
	return &Service{
		sessions: sessions,
		live:     executor,
		store:    store,
		cart:     newCart(),
		profile:  profile,
		limiter:  newRateLimiter(rateLimitMax, rateLimitWindow),
		baseURL:  baseURL,
	}
}

func (s *Service) RegisterHTTP(r chi.Router) {
	r.Use(s.limiter.middleware)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/test-session", s.handleTestSession)

	r.Get("/home", s.handleHome)
	r.Get("/search", s.handleSearch)
	r.Get("/products/{productID}", s.handleProduct)

	r.Get("/cart", s.handleGetCart)
	r.Post("/cart/add", s.handleAddToCart)

	r.Post("/checkout/init", s.handleCheckoutInit)
	r.Post("/checkout/shipping", s.handleCheckoutShipping)
	r.Post("/checkout/payment", s.handleCheckoutPayment)
	r.Post("/checkout/submit", s.handleCheckoutSubmit)
	r.Get("/checkout/orders/{orderID}", s.handleGetOrder)
	r.Get("/orders", s.handleListOrders)
}

func (s *Service) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Sephora LIVE API is running",
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"service":      "sephora-beauty-api-live",
		"version":      serviceVersion,
		"mode":         "LIVE_API",
		"api_endpoint": s.baseURL,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleTestSession forces a session check and reports its state; unlike
// the data endpoints this one exists to expose auth failures, not hide them.
func (s *Service) handleTestSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.EnsureFresh(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	state := s.sessions.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "success",
		"cookies_length":      state.CookieHeaderLen,
		"bearer_token_length": state.BearerTokenLen,
		"session_expiry":      state.SessionExpiry.Format(time.RFC3339),
		"token_expiry":        state.TokenExpiry.Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
