package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harbridge-backend/lib/telemetry"
)

// upstream fakes both vendor hosts on one listener and records every path
// it serves.
type upstream struct {
	mu    sync.Mutex
	paths []string

	failWarmup  bool
	failRefresh bool
	refreshSAT  string

	srv *httptest.Server
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(u.handle))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) handle(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.paths = append(u.paths, r.URL.Path)
	u.mu.Unlock()

	switch r.URL.Path {
	case "/v1/content/globalElements/headerFooter":
		if u.failWarmup {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "ak_bmsc", Value: "site-cookie"})
		http.SetCookie(w, &http.Cookie{Name: "shared", Value: "from-site"})
		w.Write([]byte(`{}`))
	case "/v1/dotcom/util/configuration":
		http.SetCookie(w, &http.Cookie{Name: "_abck", Value: "dev-cookie"})
		http.SetCookie(w, &http.Cookie{Name: "shared", Value: "from-dev"})
		w.Write([]byte(`{}`))
	case "/v1/content/checkout/pageCheckout":
		http.SetCookie(w, &http.Cookie{Name: "bm_sz", Value: "checkout-cookie"})
		w.Write([]byte(`{}`))
	case "/v1/oauth2/token":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "bearer-token-1",
			"expires_in":   3600,
		})
	case "/v1/dotcom/auth/v2/refreshToken":
		if u.failRefresh {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if u.refreshSAT != "" {
			w.Header().Set("Seph-Access-Token", u.refreshSAT)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  "refreshed-access",
			"refreshToken": "refresh-2",
			"atExp":        time.Now().Add(time.Hour).Unix(),
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (u *upstream) served(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, p := range u.paths {
		if p == path {
			n++
		}
	}
	return n
}

func testManager(t *testing.T, u *upstream) *Manager {
	t.Helper()
	t.Cleanup(telemetry.SetupForTesting(t, "test:services/sephora/session"))

	m, err := NewManager(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		ApiKey:       "api-key",
		DeviceID:     "DEVICE-1",
		Email:        "user@example.com",
		BaseURL:      u.srv.URL,
		AuthBaseURL:  u.srv.URL,
	})
	require.NoError(t, err)
	m.sleep = func(time.Duration) {}
	return m
}

func TestBootstrapWarmsUpAndExchangesToken(t *testing.T) {
	u := newUpstream(t)
	m := testManager(t, u)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }

	require.NoError(t, m.Bootstrap(context.Background()))

	require.Equal(t, 1, u.served("/v1/content/globalElements/headerFooter"))
	require.Equal(t, 1, u.served("/v1/dotcom/util/configuration"))
	require.Equal(t, 1, u.served("/v1/content/checkout/pageCheckout"))
	require.Equal(t, 1, u.served("/v1/oauth2/token"))

	headers := m.AuthHeaders()
	require.Equal(t, "Bearer bearer-token-1", headers["Authorization"])
	// no dedicated access token seeded, so the bearer token doubles as one
	require.Equal(t, "bearer-token-1", headers["Seph-Access-Token"])

	cookie := headers["Cookie"]
	require.Contains(t, cookie, "ak_bmsc=site-cookie")
	require.Contains(t, cookie, "_abck=dev-cookie")
	require.Contains(t, cookie, "bm_sz=checkout-cookie")
	require.Contains(t, cookie, "ADID=DEVICE-1")
	require.Contains(t, cookie, "rcps_ss=true")
	// last write wins for a cookie set by two warm-up responses
	require.Contains(t, cookie, "shared=from-dev")
	require.NotContains(t, cookie, "shared=from-site")

	state := m.Snapshot()
	require.Equal(t, start.Add(sessionLifetime), state.SessionExpiry)
	require.Equal(t, start.Add(time.Hour), state.TokenExpiry)
}

func TestTokenExchangeSendsBasicAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"access_token": "bt", "expires_in": "1200"})
			return
		}
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	m, err := NewManager(Config{
		ClientID: "id", ClientSecret: "secret",
		BaseURL: srv.URL, AuthBaseURL: srv.URL,
	})
	require.NoError(t, err)
	require.NoError(t, m.Bootstrap(context.Background()))

	expect := "Basic " + base64.StdEncoding.EncodeToString([]byte("id:secret"))
	require.Equal(t, expect, gotAuth)
}

func TestEnsureFreshPrefersSessionOverToken(t *testing.T) {
	u := newUpstream(t)
	m := testManager(t, u)
	m.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	// both lapsed: the bootstrap must run, not the token refresh
	m.refreshToken = "refresh-1"
	require.NoError(t, m.EnsureFresh(context.Background()))

	require.Equal(t, 1, u.served("/v1/oauth2/token"))
	require.Equal(t, 0, u.served("/v1/dotcom/auth/v2/refreshToken"))
}

func TestEnsureFreshRefreshesTokenOnly(t *testing.T) {
	u := newUpstream(t)
	m := testManager(t, u)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.sessionExpiry = now.Add(10 * time.Minute)
	m.tokenExpiry = now.Add(3 * time.Minute)
	m.refreshToken = "refresh-1"
	m.bearerToken = "bearer-token-1"

	require.NoError(t, m.EnsureFresh(context.Background()))

	require.Equal(t, 0, u.served("/v1/oauth2/token"))
	require.Equal(t, 1, u.served("/v1/dotcom/auth/v2/refreshToken"))
	require.Equal(t, "refreshed-access", m.accessToken)
	require.Equal(t, "refresh-2", m.refreshToken)
}

func TestEnsureFreshNoopWhenFresh(t *testing.T) {
	u := newUpstream(t)
	m := testManager(t, u)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.sessionExpiry = now.Add(10 * time.Minute)
	m.tokenExpiry = now.Add(10 * time.Minute)

	require.NoError(t, m.EnsureFresh(context.Background()))
	require.Empty(t, u.paths)
}

func TestEnsureFreshPacesRequests(t *testing.T) {
	u := newUpstream(t)
	m := testManager(t, u)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	m.sessionExpiry = now.Add(10 * time.Minute)
	m.tokenExpiry = now.Add(10 * time.Minute)

	var slept []time.Duration
	m.sleep = func(d time.Duration) { slept = append(slept, d) }

	// first call sets the baseline without sleeping
	require.NoError(t, m.EnsureFresh(context.Background()))
	require.Empty(t, slept)

	// an immediate second call waits out the full spacing
	require.NoError(t, m.EnsureFresh(context.Background()))
	require.Equal(t, []time.Duration{requestSpacing}, slept)

	// a call half a spacing later waits only the remainder
	now = now.Add(requestSpacing / 2)
	require.NoError(t, m.EnsureFresh(context.Background()))
	require.Equal(t, []time.Duration{requestSpacing, requestSpacing / 2}, slept)

	// a call after the spacing has fully elapsed does not wait
	now = now.Add(2 * requestSpacing)
	require.NoError(t, m.EnsureFresh(context.Background()))
	require.Len(t, slept, 2)
}

func TestRefreshFailureExtendsExpiryWithoutError(t *testing.T) {
	u := newUpstream(t)
	u.failRefresh = true
	m := testManager(t, u)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.sessionExpiry = now.Add(10 * time.Minute)
	m.tokenExpiry = now.Add(3 * time.Minute)
	m.refreshToken = "refresh-1"
	m.accessToken = "stale-access"

	// the failure is swallowed and the stale token stays in place
	require.NoError(t, m.EnsureFresh(context.Background()))
	require.Equal(t, "stale-access", m.accessToken)
	require.Equal(t, now.Add(failureBackoff), m.tokenExpiry)

	// the pushed-out expiry stops an immediate second refresh attempt
	require.NoError(t, m.EnsureFresh(context.Background()))
	require.Equal(t, 1, u.served("/v1/dotcom/auth/v2/refreshToken"))
}

func TestBootstrapFailureExtendsExpiryAndErrors(t *testing.T) {
	u := newUpstream(t)
	u.failWarmup = true
	m := testManager(t, u)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	err := m.EnsureFresh(context.Background())
	require.Error(t, err)
	require.Equal(t, now.Add(failureBackoff), m.sessionExpiry)
}

func TestRefreshPrefersResponseHeaderToken(t *testing.T) {
	u := newUpstream(t)
	u.refreshSAT = "header-access-token"
	m := testManager(t, u)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.sessionExpiry = now.Add(10 * time.Minute)
	m.tokenExpiry = now.Add(3 * time.Minute)
	m.refreshToken = "refresh-1"

	require.NoError(t, m.EnsureFresh(context.Background()))
	require.Equal(t, "header-access-token", m.accessToken)
}

func TestRefreshWithoutRefreshTokenBootstraps(t *testing.T) {
	u := newUpstream(t)
	m := testManager(t, u)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.sessionExpiry = now.Add(10 * time.Minute)
	m.tokenExpiry = now.Add(3 * time.Minute)

	require.NoError(t, m.EnsureFresh(context.Background()))
	require.Equal(t, 1, u.served("/v1/oauth2/token"))
	require.Equal(t, 0, u.served("/v1/dotcom/auth/v2/refreshToken"))
}

func TestCheckoutHeadersOmitAuthorization(t *testing.T) {
	u := newUpstream(t)
	m := testManager(t, u)
	require.NoError(t, m.Bootstrap(context.Background()))

	checkout := m.CheckoutHeaders()
	_, hasAuthorization := checkout["Authorization"]
	require.False(t, hasAuthorization)
	require.Equal(t, "25.17.1", checkout["IAV"])
	require.NotEmpty(t, checkout["Seph-Access-Token"])

	auth := m.AuthHeaders()
	require.Equal(t, "25.17", auth["IAV"])
}

func TestMergeResponseCookies(t *testing.T) {
	u := newUpstream(t)
	m := testManager(t, u)

	m.MergeResponseCookies([]*http.Cookie{
		{Name: "a", Value: "1"},
		{Name: "b", Value: "2"},
	})
	m.MergeResponseCookies([]*http.Cookie{
		{Name: "a", Value: "3"},
	})

	cookie := m.AuthHeaders()["Cookie"]
	require.Equal(t, "a=3; b=2", cookie)
}

func writeAuthCapture(t *testing.T, entries []map[string]any) string {
	t.Helper()
	buf, err := json.Marshal(map[string]any{"log": map[string]any{"entries": entries}})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "auth.har")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func authEntry(url, body string) map[string]any {
	return map[string]any{
		"request":  map[string]any{"method": "POST", "url": url},
		"response": map[string]any{"status": 200, "content": map[string]any{"text": body}},
	}
}

func TestSeedsTokensFromCapture(t *testing.T) {
	u := newUpstream(t)
	exp := time.Now().Add(2 * time.Hour).Unix()
	path := writeAuthCapture(t, []map[string]any{
		authEntry("https://api-developer.sephora.com/v1/dotcom/auth/v2/refreshToken",
			`{"accessToken": "older-token", "refreshToken": "older-refresh", "atExp": 1000}`),
		authEntry("https://api-developer.sephora.com/v1/dotcom/auth/v2/session",
			`{"accessToken": "captured-token", "refreshToken": "captured-refresh", "atExp": `+jsonInt(exp)+`}`),
	})

	m, err := NewManager(Config{
		BaseURL: u.srv.URL, AuthBaseURL: u.srv.URL,
		AuthArchive: path,
	})
	require.NoError(t, err)

	// the session entry wins over the refreshToken entry
	require.Equal(t, "captured-token", m.accessToken)
	require.Equal(t, "captured-refresh", m.refreshToken)
	require.Equal(t, time.Unix(exp, 0), m.tokenExpiry)
}

func TestSeedFallsBackToRefreshEntry(t *testing.T) {
	u := newUpstream(t)
	path := writeAuthCapture(t, []map[string]any{
		authEntry("https://api-developer.sephora.com/v1/dotcom/auth/v2/refreshToken",
			`{"accessToken": "fallback-token", "refreshToken": "fallback-refresh", "atExp": 2000}`),
	})

	m, err := NewManager(Config{
		BaseURL: u.srv.URL, AuthBaseURL: u.srv.URL,
		AuthArchive: path,
	})
	require.NoError(t, err)
	require.Equal(t, "fallback-token", m.accessToken)
	require.Equal(t, time.Unix(2000, 0), m.tokenExpiry)
}

func TestMissingSeedArchiveIsNotFatal(t *testing.T) {
	u := newUpstream(t)
	m, err := NewManager(Config{
		BaseURL: u.srv.URL, AuthBaseURL: u.srv.URL,
		AuthArchive: filepath.Join(t.TempDir(), "missing.har"),
	})
	require.NoError(t, err)
	require.Empty(t, m.accessToken)
}

func jsonInt(n int64) string {
	buf, _ := json.Marshal(n)
	return string(buf)
}
