package live

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"harbridge-backend/lib/telemetry"
	"harbridge-backend/services/sephora/session"
)

var tracer = otel.Tracer("services/sephora/live")

// Executor performs live vendor calls under a managed session. Every method
// returns the decoded upstream payload or an error; degradation shapes are
// the HTTP layer's job.
type Executor struct {
	sessions *session.Manager
	client   *resty.Client
}

func New(sessions *session.Manager, baseURL string) *Executor {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "sephora/live")

	return &Executor{
		sessions: sessions,
		client:   client,
	}
}

// request freshens the session and returns a request carrying the given
// header set. The headers getter runs after EnsureFresh so the request
// carries whatever token a bootstrap or refresh just installed.
func (e *Executor) request(ctx context.Context, headers func() map[string]string) (*resty.Request, error) {
	if err := e.sessions.EnsureFresh(ctx); err != nil {
		return nil, err
	}
	return e.client.R().SetContext(ctx).SetHeaders(headers()), nil
}

func (e *Executor) get(ctx context.Context, path string, params map[string]string) (map[string]any, error) {
	req, err := e.request(ctx, e.sessions.AuthHeaders)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	resp, err := req.SetQueryParams(params).SetResult(&payload).Get(path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("GET %s: status %d", path, resp.StatusCode())
	}
	e.sessions.MergeResponseCookies(resp.Cookies())
	return payload, nil
}

// postCheckout sends a checkout-flavored POST: the captured checkout calls
// use the reduced header set without an Authorization header.
func (e *Executor) postCheckout(ctx context.Context, path string, body any) (map[string]any, error) {
	req, err := e.request(ctx, e.sessions.CheckoutHeaders)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	resp, err := req.SetBody(body).SetResult(&payload).Post(path)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("POST %s: status %d", path, resp.StatusCode())
	}
	e.sessions.MergeResponseCookies(resp.Cookies())
	return payload, nil
}

func (e *Executor) HomeContent(ctx context.Context) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "HomeContent")
	defer span.End()

	payload, err := e.get(ctx, "/v1/content/home", map[string]string{
		"ch":  "iPhoneApp",
		"loc": "en-US",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "home content fetch failed")
		return nil, err
	}
	return payload, nil
}

// SearchProducts replays the captured catalog search with its exact
// parameter set; only the query and page vary.
func (e *Executor) SearchProducts(ctx context.Context, query string, page int) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "SearchProducts")
	defer span.End()

	if page < 1 {
		page = 1
	}
	params := map[string]string{
		"callAdSvc":            "true",
		"ch":                   "iPhoneApp",
		"constructorClientID":  "BD4DD90A-BCE8-411F-8C24-25292242E2F7",
		"constructorSessionID": "1",
		"currentPage":          strconv.Itoa(page),
		"forcePriceRangeRwd":   "true",
		"includeEDD":           "true",
		"loc":                  "en-US",
		"ph":                   "10000000",
		"pl":                   "0",
		"sortBy":               "",
		"targetSearchEngine":   "nlp",
		"type":                 "keyword",
	}
	if query != "" {
		params["q"] = query
	}

	payload, err := e.get(ctx, "/v2/catalog/search", params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "product search failed")
		return nil, err
	}
	return payload, nil
}

func (e *Executor) Product(ctx context.Context, productID, skuID string) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "Product")
	defer span.End()

	params := map[string]string{"ch": "iPhoneApp", "loc": "en-US"}
	if skuID != "" {
		params["preferedSku"] = skuID
	}

	payload, err := e.get(ctx, "/v3/catalog/products/"+productID, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "product fetch failed")
		return nil, err
	}
	return payload, nil
}

func (e *Executor) InitCheckout(ctx context.Context, profileID string) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "InitCheckout")
	defer span.End()

	payload, err := e.postCheckout(ctx, "/v1/checkout/order/init", map[string]any{
		"isPaypalFlow":   false,
		"profileId":      profileID,
		"isVenmoFlow":    false,
		"isApplePayFlow": false,
		"RopisCheckout":  false,
		"orderId":        "current",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout init failed")
		return nil, err
	}
	return payload, nil
}

type ShippingAddress struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone"`
}

func (e *Executor) SetShippingAddress(ctx context.Context, addr ShippingAddress) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "SetShippingAddress")
	defer span.End()

	payload, err := e.postCheckout(ctx, "/v1/checkout/orders/shippingGroups/shippingAddress", map[string]any{
		"saveToProfile":    true,
		"addressType":      "Residential",
		"addressValidated": true,
		"address": map[string]string{
			"phone":      addr.Phone,
			"city":       addr.City,
			"address1":   addr.Address1,
			"postalCode": addr.PostalCode,
			"country":    "US",
			"firstName":  addr.FirstName,
			"address2":   addr.Address2,
			"state":      addr.State,
			"lastName":   addr.LastName,
		},
		"isDefaultAddress":   true,
		"shippingGroupId":    "0",
		"isPOBoxAddress":     false,
		"byPassProfileCount": true,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "shipping address failed")
		return nil, err
	}
	return payload, nil
}

type CreditCard struct {
	Number          string
	ExpiryMonth     string
	ExpiryYear      string
	CVV             string
	FirstName       string
	LastName        string
	BillingAddress  map[string]any
	UseShippingAddr bool
}

func (e *Executor) AddCreditCard(ctx context.Context, card CreditCard) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "AddCreditCard")
	defer span.End()

	payload, err := e.postCheckout(ctx, "/v1/checkout/orders/creditCard", map[string]any{
		"isSaveCreditCardForFutureUse": false,
		"isUseShippingAddressAsBilling": card.UseShippingAddr,
		"isMarkAsDefault":               false,
		"creditCard": map[string]any{
			"address": card.BillingAddress,
			"paymentRefData": map[string]string{
				"keyID":          "a161c355",
				"phase":          "0",
				"integrityCheck": "0c32be60f586c7b2",
			},
			"firstName":         card.FirstName,
			"encryptedCCNumber": card.Number,
			"encryptedCVV":      card.CVV,
			"expirationMonth":   card.ExpiryMonth,
			"expirationYear":    card.ExpiryYear,
			"lastName":          card.LastName,
			"securityCode":      card.CVV,
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "credit card failed")
		return nil, err
	}
	return payload, nil
}

// SubmitOrder is the one checkout call that uses the full auth header set
// in captured traffic.
func (e *Executor) SubmitOrder(ctx context.Context, orderID, profileID string) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "SubmitOrder")
	defer span.End()

	req, err := e.request(ctx, e.sessions.AuthHeaders)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	resp, err := req.
		SetBody(map[string]string{
			"orderId":       orderID,
			"profileId":     profileID,
			"originOfOrder": "iphoneAppV2.0",
		}).
		SetResult(&payload).
		Post("/v1/checkout/submitOrder")
	if err == nil && resp.IsError() {
		err = fmt.Errorf("status %d", resp.StatusCode())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order submit failed")
		return nil, fmt.Errorf("POST /v1/checkout/submitOrder: %w", err)
	}
	return payload, nil
}

func (e *Executor) Order(ctx context.Context, orderID string) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "Order")
	defer span.End()

	payload, err := e.get(ctx, "/v1/checkout/orders/"+orderID, map[string]string{
		"includeProfileFlags":         "Y",
		"includePaymentFlags":         "Y",
		"includeShippingAddressFlags": "Y",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order fetch failed")
		return nil, err
	}
	return payload, nil
}
