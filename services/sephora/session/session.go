package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/net/publicsuffix"

	"harbridge-backend/lib/telemetry"
)

var tracer = otel.Tracer("services/sephora/session")
var meter = otel.Meter("services/sephora/session")

const (
	userAgent = "Sephora 25.17.1, iOS 18.6.2, iPhone17,2"

	sessionLifetime = 20 * time.Minute
	sessionMargin   = 2 * time.Minute
	tokenMargin     = 5 * time.Minute
	requestSpacing  = 2 * time.Second
	// applied after a failed bootstrap or refresh so the next call does not
	// immediately retry the same failing exchange
	failureBackoff = time.Hour
)

type Config struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	ApiKey       string `json:"api_key"`
	DeviceID     string `json:"device_id"`
	Email        string `json:"email"`
	// BaseURL hosts content and checkout endpoints, AuthBaseURL the OAuth
	// endpoints (they live on separate hosts upstream).
	BaseURL     string `json:"base_url"`
	AuthBaseURL string `json:"auth_base_url"`
	// AuthArchive optionally points at a capture holding a usable
	// Seph-Access-Token/refresh token pair.
	AuthArchive string `json:"auth_archive"`
}

// Manager owns the cookie + token lifecycle needed to talk to the vendor
// API without tripping its bot defenses. All state transitions happen under
// a single mutex; callers only ever see a consistent session.
type Manager struct {
	mu  sync.Mutex
	cfg Config

	cookies *cookieString

	bearerToken  string
	accessToken  string
	refreshToken string

	tokenExpiry   time.Time
	sessionExpiry time.Time
	lastRequest   time.Time

	authClient *resty.Client
	siteClient *resty.Client

	now   func() time.Time
	sleep func(time.Duration)

	bootstrapCounter metric.Int64Counter
	refreshCounter   metric.Int64Counter
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sephora.com"
	}
	if cfg.AuthBaseURL == "" {
		cfg.AuthBaseURL = "https://api-developer.sephora.com"
	}

	authClient := resty.New()
	authClient.SetBaseURL(cfg.AuthBaseURL)
	authClient.SetTimeout(time.Second * 30)
	authClient.SetHeader("User-Agent", userAgent)
	authClient.SetHeader("Accept", "application/json")
	telemetry.InstrumentResty(authClient, "sephora/session/auth")

	siteClient := resty.New()
	siteClient.SetBaseURL(cfg.BaseURL)
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	siteClient.SetCookieJar(jar)
	siteClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(siteClient.GetClient().Transport)
	siteClient.SetTimeout(time.Second * 30)
	siteClient.SetHeader("User-Agent", userAgent)
	siteClient.SetHeader("Accept", "application/json")
	siteClient.SetHeader("x-api-key", cfg.ApiKey)
	telemetry.InstrumentResty(siteClient, "sephora/session/site")

	bootstrapCounter, err := meter.Int64Counter("sephora_session.bootstrap")
	if err != nil {
		return nil, err
	}
	refreshCounter, err := meter.Int64Counter("sephora_session.token_refresh")
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:              cfg,
		cookies:          newCookieString(),
		authClient:       authClient,
		siteClient:       siteClient,
		now:              time.Now,
		sleep:            time.Sleep,
		bootstrapCounter: bootstrapCounter,
		refreshCounter:   refreshCounter,
	}

	if cfg.AuthArchive != "" {
		seed, err := loadAuthSeed(cfg.AuthArchive)
		if err != nil {
			slog.Warn("could not seed auth from capture", "path", cfg.AuthArchive, "err", err)
		} else if seed.AccessToken != "" {
			m.accessToken = seed.AccessToken
			m.refreshToken = seed.RefreshToken
			if !seed.Expiry.IsZero() {
				m.tokenExpiry = seed.Expiry
			}
			slog.Info("seeded access token from capture", "expiry", m.tokenExpiry)
		}
	}

	return m, nil
}

// EnsureFresh paces outbound calls and renews whatever is about to lapse.
// A session nearing expiry always wins over a token nearing expiry: the
// bootstrap renews both.
func (m *Manager) EnsureFresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.lastRequest.IsZero() {
		if elapsed := now.Sub(m.lastRequest); elapsed < requestSpacing {
			m.sleep(requestSpacing - elapsed)
		}
	}
	m.lastRequest = now

	if !now.Before(m.sessionExpiry.Add(-sessionMargin)) {
		return m.bootstrap(ctx)
	}
	if !now.Before(m.tokenExpiry.Add(-tokenMargin)) {
		return m.refreshAccessToken(ctx)
	}
	return nil
}

// Bootstrap forces a full session renewal regardless of expiry state.
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bootstrap(ctx)
}

// bootstrap warms up the bot-defense cookies over three content endpoints,
// then exchanges client credentials for a bearer token. Callers hold mu.
func (m *Manager) bootstrap(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "bootstrap")
	defer span.End()
	m.bootstrapCounter.Add(ctx, 1)

	err := m.warmUpCookies(ctx)
	if err == nil {
		err = m.exchangeClientCredentials(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session bootstrap failed")
		// push the expiry out so callers do not hammer a failing exchange
		m.sessionExpiry = m.now().Add(failureBackoff)
		return fmt.Errorf("session bootstrap: %w", err)
	}

	if m.accessToken == "" {
		m.accessToken = m.bearerToken
	}
	m.sessionExpiry = m.now().Add(sessionLifetime)
	slog.InfoContext(ctx, "session bootstrap completed",
		"cookies", m.cookies.Len(), "session_expiry", m.sessionExpiry)
	return nil
}

func (m *Manager) warmUpCookies(ctx context.Context) error {
	warmups := []struct {
		client *resty.Client
		path   string
		params map[string]string
	}{
		{m.siteClient, "/v1/content/globalElements/headerFooter",
			map[string]string{"ch": "iPhoneApp", "loc": "en-US", "zipcode": "20147"}},
		{m.authClient, "/v1/dotcom/util/configuration",
			map[string]string{"ch": "iPhoneApp"}},
		{m.siteClient, "/v1/content/checkout/pageCheckout",
			map[string]string{"ch": "iPhoneApp", "loc": "en-US", "zipcode": "20147"}},
	}
	for _, warmup := range warmups {
		resp, err := warmup.client.R().
			SetContext(ctx).
			SetQueryParams(warmup.params).
			Get(warmup.path)
		if err != nil {
			return fmt.Errorf("GET %s: %w", warmup.path, err)
		}
		if resp.IsError() {
			return fmt.Errorf("GET %s: status %d", warmup.path, resp.StatusCode())
		}
		m.cookies.MergeCookies(resp.Cookies())
	}

	m.cookies.Set("ADID", m.cfg.DeviceID)
	m.cookies.Set("site_language", "en")
	m.cookies.Set("site_locale", "us")
	m.cookies.Set("ship_country", "us")
	m.cookies.Set("rcps_cc", "true")
	m.cookies.Set("rcps_po", "true")
	m.cookies.Set("rcps_ss", "true")
	return nil
}

func (m *Manager) exchangeClientCredentials(ctx context.Context) error {
	var token struct {
		AccessToken string      `json:"access_token"`
		ExpiresIn   json.Number `json:"expires_in"`
	}
	resp, err := m.authClient.R().
		SetContext(ctx).
		SetBasicAuth(m.cfg.ClientID, m.cfg.ClientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetHeader("Cookie", m.cookies.String()).
		SetBody("grant_type=client_credentials").
		SetResult(&token).
		Post("/v1/oauth2/token")
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("token exchange: status %d", resp.StatusCode())
	}
	if token.AccessToken == "" {
		return fmt.Errorf("token exchange: empty access_token")
	}

	m.bearerToken = token.AccessToken
	expiresIn, err := token.ExpiresIn.Int64()
	if err != nil {
		return fmt.Errorf("token exchange: bad expires_in %q", token.ExpiresIn)
	}
	m.tokenExpiry = m.now().Add(time.Duration(expiresIn) * time.Second)
	return nil
}

// refreshAccessToken renews the Seph-Access-Token using the refresh token.
// A failure is swallowed: the token expiry is pushed out and the stale token
// stays in use rather than looping through bootstraps. Callers hold mu.
func (m *Manager) refreshAccessToken(ctx context.Context) error {
	if m.refreshToken == "" {
		return m.bootstrap(ctx)
	}

	ctx, span := tracer.Start(ctx, "refreshAccessToken")
	defer span.End()
	m.refreshCounter.Add(ctx, 1)

	var data struct {
		AccessToken  string      `json:"accessToken"`
		RefreshToken string      `json:"refreshToken"`
		AtExp        json.Number `json:"atExp"`
	}
	resp, err := m.authClient.R().
		SetContext(ctx).
		SetAuthToken(m.bearerToken).
		SetHeader("Cookie", m.cookies.String()).
		SetBody(map[string]string{
			"refreshToken": m.refreshToken,
			"ssiToken":     "",
			"accessToken":  m.accessToken,
			"email":        m.cfg.Email,
		}).
		SetResult(&data).
		Post("/v1/dotcom/auth/v2/refreshToken")
	if err == nil && resp.IsError() {
		err = fmt.Errorf("status %d", resp.StatusCode())
	}
	if err == nil && data.RefreshToken == "" {
		err = fmt.Errorf("empty refreshToken in response")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token refresh failed")
		slog.WarnContext(ctx, "token refresh failed, extending expiry", "err", err)
		m.tokenExpiry = m.now().Add(failureBackoff)
		return nil
	}

	// the response header carries the freshest token when present
	if sat := resp.Header().Get("Seph-Access-Token"); sat != "" {
		m.accessToken = sat
	} else if data.AccessToken != "" {
		m.accessToken = data.AccessToken
	}
	m.refreshToken = data.RefreshToken
	if atExp, err := data.AtExp.Int64(); err == nil {
		m.tokenExpiry = time.Unix(atExp, 0)
	}
	slog.InfoContext(ctx, "access token refreshed", "token_expiry", m.tokenExpiry)
	return nil
}

// AuthHeaders returns the header set for content and catalog calls.
func (m *Manager) AuthHeaders() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]string{
		"Cookie":             m.cookies.String(),
		"Authorization":      "Bearer " + m.bearerToken,
		"Seph-Access-Token":  m.accessToken,
		"x-api-key":          m.cfg.ApiKey,
		"ADID":               m.cfg.DeviceID,
		"IAV":                "25.17",
		"Mobile_Efm_Id":      m.cfg.DeviceID,
		"x-sephora-channel":  "iPhone17,2",
		"User-Agent":         userAgent,
		"Accept-Encoding":    "br;q=1.0, gzip;q=0.9, deflate;q=0.8",
		"Accept":             "application/json",
		"Accept-Language":    "en-US;q=1.0",
		"x-requested-source": userAgent,
	}
}

// CheckoutHeaders mirrors the captured checkout requests: no Authorization
// header, and the IAV value differs from the content calls.
func (m *Manager) CheckoutHeaders() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]string{
		"Cookie":             m.cookies.String(),
		"User-Agent":         userAgent,
		"x-requested-source": userAgent,
		"IAV":                "25.17.1",
		"Accept-Language":    "en-US;q=1.0, zh-Hant-US;q=0.9",
		"Mobile_Efm_Id":      m.cfg.DeviceID,
		"Seph-Access-Token":  m.accessToken,
		"Accept":             "application/json",
		"Content-Type":       "application/json",
		"x-api-key":          m.cfg.ApiKey,
		"x-sephora-channel":  "iPhone17,2",
		"Accept-Encoding":    "br;q=1.0, gzip;q=0.9, deflate;q=0.8",
		"ADID":               m.cfg.DeviceID,
	}
}

// MergeResponseCookies folds Set-Cookie values from an upstream response
// into the session cookie header, last write winning per name.
func (m *Manager) MergeResponseCookies(cookies []*http.Cookie) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cookies.MergeCookies(cookies)
}

// Snapshot reports current session state for diagnostics.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		CookieCount:     m.cookies.Len(),
		CookieHeaderLen: len(m.cookies.String()),
		BearerTokenLen:  len(m.bearerToken),
		HasRefreshToken: m.refreshToken != "",
		SessionExpiry:   m.sessionExpiry,
		TokenExpiry:     m.tokenExpiry,
	}
}

type State struct {
	CookieCount     int       `json:"cookie_count"`
	CookieHeaderLen int       `json:"cookie_header_len"`
	BearerTokenLen  int       `json:"bearer_token_len"`
	HasRefreshToken bool      `json:"has_refresh_token"`
	SessionExpiry   time.Time `json:"session_expiry"`
	TokenExpiry     time.Time `json:"token_expiry"`
}

// cookieString assembles a Cookie header value by name, preserving first
// insertion order while later writes replace values.
type cookieString struct {
	order  []string
	values map[string]string
}

func newCookieString() *cookieString {
	return &cookieString{values: map[string]string{}}
}

func (c *cookieString) Set(name, value string) {
	if _, ok := c.values[name]; !ok {
		c.order = append(c.order, name)
	}
	c.values[name] = value
}

func (c *cookieString) MergeCookies(cookies []*http.Cookie) {
	for _, cookie := range cookies {
		c.Set(cookie.Name, cookie.Value)
	}
}

func (c *cookieString) Len() int {
	return len(c.order)
}

func (c *cookieString) String() string {
	pairs := make([]string, 0, len(c.order))
	for _, name := range c.order {
		pairs = append(pairs, name+"="+c.values[name])
	}
	return strings.Join(pairs, "; ")
}

func parseUnix(v any) time.Time {
	switch n := v.(type) {
	case float64:
		return time.Unix(int64(n), 0)
	case string:
		sec, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return time.Time{}
		}
		return time.Unix(sec, 0)
	}
	return time.Time{}
}
