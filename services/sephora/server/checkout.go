package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"harbridge-backend/services/sephora/live"
	"harbridge-backend/services/sephora/orders"
)

// The checkout flow mirrors the captured mobile purchase: init, shipping,
// payment, submit. Every live call that fails falls back to the stored
// order state so the flow keeps moving, flagged with isLiveData=false.

func (s *Service) handleCheckoutInit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := s.live.InitCheckout(ctx, s.profile.ProfileID)
	if err == nil {
		if orderID := asString(payload["orderId"]); orderID != "" {
			if _, storeErr := s.store.Create(ctx, orderID, s.profile.ProfileID); storeErr != nil {
				slog.ErrorContext(ctx, "failed to store order", "order", orderID, "err", storeErr)
			}
		}
		payload["isLiveData"] = true
		writeJSON(w, http.StatusOK, payload)
		return
	}

	slog.WarnContext(ctx, "checkout init degraded to local order", "err", err)
	orderID, idErr := s.store.NextLocalID(ctx)
	if idErr != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": idErr.Error()})
		return
	}
	if _, storeErr := s.store.Create(ctx, orderID, s.profile.ProfileID); storeErr != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": storeErr.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"profileLocale": "US",
		"profileStatus": 4,
		"isBIMember":    true,
		"isInitialized": true,
		"orderId":       orderID,
		"isLiveData":    false,
		"error":         err.Error(),
	})
}

func (s *Service) handleCheckoutShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var addr live.ShippingAddress
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid shipping address"})
		return
	}

	order, found, err := s.store.Latest(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{"error": "No active order", "isLiveData": false})
		return
	}

	stored := orders.ShippingAddress(addr)
	payload, liveErr := s.live.SetShippingAddress(ctx, addr)

	if err := s.store.SetShipping(ctx, order.OrderID, stored); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}

	if liveErr != nil {
		slog.WarnContext(ctx, "shipping call degraded", "order", order.OrderID, "err", liveErr)
		writeJSON(w, http.StatusOK, map[string]any{
			"profileLocale": "US",
			"profileStatus": 4,
			"addressId":     fmt.Sprintf("addr_%d", time.Now().Unix()),
			"message":       "Shipping address updated",
			"isLiveData":    false,
			"error":         liveErr.Error(),
		})
		return
	}

	payload["isLiveData"] = true
	writeJSON(w, http.StatusOK, payload)
}

type paymentRequest struct {
	CardNumber         string `json:"cardNumber"`
	ExpiryMonth        string `json:"expiryMonth"`
	ExpiryYear         string `json:"expiryYear"`
	CVV                string `json:"cvv"`
	CardholderName     string `json:"cardholderName"`
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	UseShippingAddress *bool  `json:"useShippingAddress"`
}

func (s *Service) handleCheckoutPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CardNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid payment request"})
		return
	}
	useShipping := req.UseShippingAddress == nil || *req.UseShippingAddress

	order, found, err := s.store.Latest(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "No active order"})
		return
	}

	firstName, lastName := cardholderNames(req)
	var billing map[string]any
	if useShipping && order.Shipping != nil {
		billing = map[string]any{
			"firstName":  order.Shipping.FirstName,
			"lastName":   order.Shipping.LastName,
			"address1":   order.Shipping.Address1,
			"address2":   order.Shipping.Address2,
			"city":       order.Shipping.City,
			"state":      order.Shipping.State,
			"postalCode": order.Shipping.PostalCode,
			"country":    "US",
			"phone":      order.Shipping.Phone,
			"addressId":  fmt.Sprintf("addr_%d", time.Now().Unix()),
		}
	}

	payload, liveErr := s.live.AddCreditCard(ctx, live.CreditCard{
		Number:          req.CardNumber,
		ExpiryMonth:     req.ExpiryMonth,
		ExpiryYear:      req.ExpiryYear,
		CVV:             req.CVV,
		FirstName:       firstName,
		LastName:        lastName,
		BillingAddress:  billing,
		UseShippingAddr: useShipping,
	})

	payment := orders.Payment{
		PaymentGroupID: "0",
		Last4:          last4(req.CardNumber),
		CardholderName: req.CardholderName,
	}
	if liveErr == nil {
		payment.CreditCardID = asString(payload["creditCardId"])
		payment.PaymentGroupID = stringOr(payload["paymentGroupId"], "0")
	} else {
		payment.CreditCardID = fmt.Sprintf("cc_%d", time.Now().Unix())
	}

	if err := s.store.SetPayment(ctx, order.OrderID, payment); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}

	if liveErr != nil {
		slog.WarnContext(ctx, "payment call degraded", "order", order.OrderID, "err", liveErr)
		writeJSON(w, http.StatusOK, map[string]any{
			"profileLocale":  "US",
			"profileStatus":  4,
			"creditCardId":   payment.CreditCardID,
			"paymentGroupId": payment.PaymentGroupID,
			"isLiveData":     false,
			"error":          liveErr.Error(),
		})
		return
	}

	payload["isLiveData"] = true
	writeJSON(w, http.StatusOK, payload)
}

func (s *Service) handleCheckoutSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	order, found, err := s.store.Latest(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{"error": "No active order", "isLiveData": false})
		return
	}
	if order.Shipping == nil {
		writeJSON(w, http.StatusOK, map[string]any{"error": "Shipping address required", "isLiveData": false})
		return
	}
	if order.Payment == nil {
		writeJSON(w, http.StatusOK, map[string]any{"error": "Payment method required", "isLiveData": false})
		return
	}

	payload, liveErr := s.live.SubmitOrder(ctx, order.OrderID, s.profile.ProfileID)

	if err := s.store.MarkSubmitted(ctx, order.OrderID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}

	if liveErr != nil {
		slog.WarnContext(ctx, "order submit degraded", "order", order.OrderID, "err", liveErr)
		writeJSON(w, http.StatusOK, map[string]any{
			"profileLocale": "US",
			"profileStatus": 4,
			"orderId":       order.OrderID,
			"url":           fmt.Sprintf("https://www.sephora.com/order/%s", order.OrderID),
			"isLiveData":    false,
			"error":         liveErr.Error(),
		})
		return
	}

	payload["isLiveData"] = true
	writeJSON(w, http.StatusOK, payload)
}

func (s *Service) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	payload, liveErr := s.live.Order(ctx, orderID)
	if liveErr == nil {
		payload["isLiveData"] = true
		writeJSON(w, http.StatusOK, payload)
		return
	}

	order, found, err := s.store.Get(ctx, orderID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"detail": fmt.Sprintf("Order %s not found", orderID),
		})
		return
	}

	slog.WarnContext(ctx, "order fetch degraded to store", "order", orderID, "err", liveErr)
	degraded := map[string]any{
		"orderId":    order.OrderID,
		"profileId":  order.ProfileID,
		"status":     order.Status,
		"createdAt":  order.CreatedAt,
		"isLiveData": false,
		"error":      liveErr.Error(),
	}
	if order.SubmittedAt != "" {
		degraded["submittedAt"] = order.SubmittedAt
	}
	if order.Shipping != nil {
		degraded["shippingAddress"] = order.Shipping
	}
	if order.Payment != nil {
		degraded["payment"] = order.Payment
	}
	writeJSON(w, http.StatusOK, degraded)
}

func (s *Service) handleListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": list,
		"total":  len(list),
	})
}

// cardholderNames fills missing first/last names by splitting the
// cardholder name.
func cardholderNames(req paymentRequest) (string, string) {
	first, last := req.FirstName, req.LastName
	if first != "" && last != "" {
		return first, last
	}
	parts := strings.SplitN(req.CardholderName, " ", 2)
	if first == "" {
		first = parts[0]
	}
	if last == "" {
		if len(parts) > 1 {
			last = parts[1]
		} else {
			last = parts[0]
		}
	}
	return first, last
}

func last4(cardNumber string) string {
	if len(cardNumber) <= 4 {
		return cardNumber
	}
	return cardNumber[len(cardNumber)-4:]
}
