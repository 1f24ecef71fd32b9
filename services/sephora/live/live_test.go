package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"harbridge-backend/lib/telemetry"
	"harbridge-backend/services/sephora/session"
)

type capturedRequest struct {
	path   string
	query  map[string]string
	header http.Header
	body   map[string]any
}

func setup(t *testing.T) (*Executor, *[]capturedRequest) {
	t.Helper()
	t.Cleanup(telemetry.SetupForTesting(t, "test:services/sephora/live"))

	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record := capturedRequest{
			path:   r.URL.Path,
			query:  map[string]string{},
			header: r.Header.Clone(),
		}
		for key, values := range r.URL.Query() {
			record.query[key] = values[0]
		}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&record.body)
		}
		captured = append(captured, record)

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/oauth2/token":
			json.NewEncoder(w).Encode(map[string]any{"access_token": "bt", "expires_in": 3600})
		case "/v2/catalog/search":
			json.NewEncoder(w).Encode(map[string]any{"products": []any{map[string]any{"productId": "P1"}}})
		case "/v1/upstream/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "path": r.URL.Path})
		}
	}))
	t.Cleanup(srv.Close)

	sessions, err := session.NewManager(session.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		ApiKey:       "api-key",
		DeviceID:     "DEVICE-1",
		BaseURL:      srv.URL,
		AuthBaseURL:  srv.URL,
	})
	require.NoError(t, err)

	return New(sessions, srv.URL), &captured
}

func find(t *testing.T, captured *[]capturedRequest, path string) capturedRequest {
	t.Helper()
	for _, record := range *captured {
		if record.path == path {
			return record
		}
	}
	t.Fatalf("no request captured for %s", path)
	return capturedRequest{}
}

func TestHomeContentCarriesSessionHeaders(t *testing.T) {
	executor, captured := setup(t)

	payload, err := executor.HomeContent(context.Background())
	require.NoError(t, err)
	require.Equal(t, true, payload["ok"])

	record := find(t, captured, "/v1/content/home")
	require.Equal(t, "iPhoneApp", record.query["ch"])
	require.Equal(t, "en-US", record.query["loc"])
	require.Equal(t, "Bearer bt", record.header.Get("Authorization"))
	require.Equal(t, "bt", record.header.Get("Seph-Access-Token"))
	require.Equal(t, "api-key", record.header.Get("x-api-key"))
	require.Equal(t, "25.17", record.header.Get("IAV"))
}

func TestSearchProductsReplaysCapturedParams(t *testing.T) {
	executor, captured := setup(t)

	payload, err := executor.SearchProducts(context.Background(), "mascara", 2)
	require.NoError(t, err)
	require.NotEmpty(t, payload["products"])

	record := find(t, captured, "/v2/catalog/search")
	require.Equal(t, "mascara", record.query["q"])
	require.Equal(t, "2", record.query["currentPage"])
	require.Equal(t, "nlp", record.query["targetSearchEngine"])
	require.Equal(t, "keyword", record.query["type"])
	require.Equal(t, "10000000", record.query["ph"])
	require.Equal(t, "0", record.query["pl"])
}

func TestSearchProductsOmitsEmptyQuery(t *testing.T) {
	executor, captured := setup(t)

	_, err := executor.SearchProducts(context.Background(), "", 0)
	require.NoError(t, err)

	record := find(t, captured, "/v2/catalog/search")
	_, hasQ := record.query["q"]
	require.False(t, hasQ)
	require.Equal(t, "1", record.query["currentPage"])
}

func TestProductIncludesPreferredSku(t *testing.T) {
	executor, captured := setup(t)

	_, err := executor.Product(context.Background(), "P12345", "sku-9")
	require.NoError(t, err)

	record := find(t, captured, "/v3/catalog/products/P12345")
	require.Equal(t, "sku-9", record.query["preferedSku"])
}

func TestCheckoutCallsOmitAuthorization(t *testing.T) {
	executor, captured := setup(t)

	_, err := executor.InitCheckout(context.Background(), "4321676833524480")
	require.NoError(t, err)

	record := find(t, captured, "/v1/checkout/order/init")
	require.Empty(t, record.header.Get("Authorization"))
	require.Equal(t, "25.17.1", record.header.Get("IAV"))
	require.Equal(t, "4321676833524480", record.body["profileId"])
	require.Equal(t, "current", record.body["orderId"])
}

func TestSubmitOrderUsesAuthHeaders(t *testing.T) {
	executor, captured := setup(t)

	_, err := executor.SubmitOrder(context.Background(), "7357001", "4321676833524480")
	require.NoError(t, err)

	record := find(t, captured, "/v1/checkout/submitOrder")
	require.Equal(t, "Bearer bt", record.header.Get("Authorization"))
	require.Equal(t, "iphoneAppV2.0", record.body["originOfOrder"])
	require.Equal(t, "7357001", record.body["orderId"])
}

func TestShippingAddressPayloadShape(t *testing.T) {
	executor, captured := setup(t)

	_, err := executor.SetShippingAddress(context.Background(), ShippingAddress{
		FirstName:  "Will",
		LastName:   "Roberts",
		Address1:   "1 Main St",
		City:       "Ashburn",
		State:      "VA",
		PostalCode: "20147",
		Phone:      "9167995790",
	})
	require.NoError(t, err)

	record := find(t, captured, "/v1/checkout/orders/shippingGroups/shippingAddress")
	address := record.body["address"].(map[string]any)
	require.Equal(t, "US", address["country"])
	require.Equal(t, "Ashburn", address["city"])
	require.Equal(t, "0", record.body["shippingGroupId"])
}

func TestOrderFetchPassesFlags(t *testing.T) {
	executor, captured := setup(t)

	_, err := executor.Order(context.Background(), "7357001")
	require.NoError(t, err)

	record := find(t, captured, "/v1/checkout/orders/7357001")
	require.Equal(t, "Y", record.query["includeProfileFlags"])
	require.Equal(t, "Y", record.query["includePaymentFlags"])
}

func TestUpstreamErrorPropagates(t *testing.T) {
	executor, _ := setup(t)

	_, err := executor.get(context.Background(), "/v1/upstream/broken", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 502")
}

func TestFirstCallCarriesBootstrappedToken(t *testing.T) {
	executor, captured := setup(t)

	_, err := executor.HomeContent(context.Background())
	require.NoError(t, err)

	// The very first live call must already hold the token minted during
	// its own session bootstrap, so the exchange has to land first.
	paths := []string{}
	for _, record := range *captured {
		paths = append(paths, record.path)
	}
	tokenIdx, homeIdx := -1, -1
	for i, path := range paths {
		if path == "/v1/oauth2/token" && tokenIdx == -1 {
			tokenIdx = i
		}
		if path == "/v1/content/home" {
			homeIdx = i
		}
	}
	require.NotEqual(t, -1, tokenIdx)
	require.NotEqual(t, -1, homeIdx)
	require.Less(t, tokenIdx, homeIdx)

	record := find(t, captured, "/v1/content/home")
	require.Equal(t, "Bearer bt", record.header.Get("Authorization"))
}

func TestConsecutiveCallsReuseSession(t *testing.T) {
	executor, captured := setup(t)

	_, err := executor.HomeContent(context.Background())
	require.NoError(t, err)
	_, err = executor.HomeContent(context.Background())
	require.NoError(t, err)

	tokenCalls := 0
	for _, record := range *captured {
		if record.path == "/v1/oauth2/token" {
			tokenCalls++
		}
	}
	require.Equal(t, 1, tokenCalls)
}
