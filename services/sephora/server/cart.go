package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

const (
	freeShippingThreshold = 75.0
	standardShipping      = 5.95
)

type cartItem struct {
	ItemID     string `json:"itemId"`
	ProductID  string `json:"productId"`
	SkuID      string `json:"skuId"`
	Name       string `json:"name"`
	BrandName  string `json:"brandName"`
	Price      string `json:"price"`
	Quantity   int    `json:"quantity"`
	ImageURL   string `json:"imageUrl"`
	IsLiveData bool   `json:"isLiveData"`
	Error      string `json:"error,omitempty"`
}

type cart struct {
	mu    sync.Mutex
	items []cartItem
}

func newCart() *cart {
	return &cart{}
}

// add merges by SKU: an existing line just grows its quantity.
func (c *cart) add(item cartItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].SkuID == item.SkuID {
			c.items[i].Quantity += item.Quantity
			return
		}
	}
	item.ItemID = fmt.Sprintf("item_%d", len(c.items)+1)
	c.items = append(c.items, item)
}

func (c *cart) snapshot() []cartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]cartItem, len(c.items))
	copy(out, c.items)
	return out
}

// taxRate resolves a sales tax rate from the state/city table captured in
// real order traffic.
func taxRate(state, city string) float64 {
	type stateRates struct {
		base   float64
		cities map[string]float64
	}
	rates := map[string]stateRates{
		"CA": {base: 0.08625, cities: map[string]float64{"San Francisco": 0.08625, "Los Angeles": 0.095}},
		"NY": {base: 0.08, cities: map[string]float64{"New York": 0.08875}},
		"TX": {base: 0.0825},
		"OR": {base: 0},
		"FL": {base: 0.06},
	}

	entry, ok := rates[state]
	if !ok {
		return 0.0875
	}
	if rate, ok := entry.cities[city]; ok {
		return rate
	}
	return entry.base
}

// cartTotals computes subtotal/tax/shipping over the cart lines. Orders at
// or above the free-shipping threshold ship free; empty carts ship nothing.
func cartTotals(items []cartItem) map[string]string {
	subtotal := 0.0
	for _, item := range items {
		if price, ok := parsePrice(item.Price); ok {
			subtotal += price * float64(item.Quantity)
		}
	}
	tax := subtotal * taxRate("CA", "San Francisco")

	shipping := 0.0
	if len(items) > 0 && subtotal < freeShippingThreshold {
		shipping = standardShipping
	}

	return map[string]string{
		"subtotal": fmt.Sprintf("$%.2f", subtotal),
		"tax":      fmt.Sprintf("$%.2f", tax),
		"shipping": fmt.Sprintf("$%.2f", shipping),
		"total":    fmt.Sprintf("$%.2f", subtotal+tax+shipping),
	}
}

func (s *Service) cartResponse() map[string]any {
	items := s.cart.snapshot()
	response := map[string]any{
		"items":      items,
		"isLiveData": true,
		"timestamp":  nowStamp(),
	}
	for key, value := range cartTotals(items) {
		response[key] = value
	}
	return response
}

func (s *Service) handleGetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cartResponse())
}

type addToCartRequest struct {
	SkuID    string `json:"skuId"`
	Quantity int    `json:"quantity"`
}

// handleAddToCart enriches the new line with live product data found by
// searching for the SKU; a miss or upstream failure still adds a degraded
// placeholder line so the flow can continue.
func (s *Service) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SkuID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "skuId is required"})
		return
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	item := s.lookupCartItem(r, req)
	s.cart.add(item)
	writeJSON(w, http.StatusOK, s.cartResponse())
}

func (s *Service) lookupCartItem(r *http.Request, req addToCartRequest) cartItem {
	placeholder := cartItem{
		ProductID: "P" + truncate(req.SkuID, 6),
		SkuID:     req.SkuID,
		Name:      fmt.Sprintf("Product SKU %s", req.SkuID),
		BrandName: "Unknown",
		Price:     "$0.00",
		Quantity:  req.Quantity,
		ImageURL:  skuImageURL(req.SkuID),
	}

	results, err := s.live.SearchProducts(r.Context(), req.SkuID, 1)
	if err != nil {
		slog.WarnContext(r.Context(), "live product lookup failed", "sku", req.SkuID, "err", err)
		placeholder.BrandName = "Error Loading"
		placeholder.Error = err.Error()
		return placeholder
	}

	rawProducts, _ := results["products"].([]any)
	for _, raw := range rawProducts {
		product, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		sku, _ := product["currentSku"].(map[string]any)
		if asString(skuField(sku, "skuId")) != req.SkuID {
			continue
		}
		return cartItem{
			ProductID:  asString(product["productId"]),
			SkuID:      req.SkuID,
			Name:       stringOr(product["displayName"], "Unknown Product"),
			BrandName:  stringOr(product["brandName"], "Unknown Brand"),
			Price:      stringOr(skuField(sku, "listPrice"), "$0.00"),
			Quantity:   req.Quantity,
			ImageURL:   stringOr(product["heroImage"], skuImageURL(req.SkuID)),
			IsLiveData: true,
		}
	}

	placeholder.Error = "Product not found in live search"
	return placeholder
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
