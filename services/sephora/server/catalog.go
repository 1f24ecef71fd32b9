package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	carouselProductCap = 20
	recapProductCap    = 8
)

// handleHome fetches live homepage content and flattens the vendor's item
// mix into product carousels.
func (s *Service) handleHome(w http.ResponseWriter, r *http.Request) {
	payload, err := s.live.HomeContent(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "home content failed", "err", err)
		writeJSON(w, http.StatusOK, map[string]any{
			"content":    []any{},
			"isLiveData": false,
			"error":      err.Error(),
		})
		return
	}

	blocks := []map[string]any{}
	for _, raw := range pathList(payload, "data", "items") {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch item["type"] {
		case "ProductList":
			if block, ok := carouselBlock(item, carouselProductCap); ok {
				blocks = append(blocks, block)
			}
		case "Recap":
			nested, _ := item["items"].([]any)
			for _, rawRecap := range nested {
				recapItem, ok := rawRecap.(map[string]any)
				if !ok {
					continue
				}
				if block, ok := carouselBlock(recapItem, recapProductCap); ok {
					blocks = append(blocks, block)
				}
			}
		}
	}

	if len(blocks) > 0 {
		notice := map[string]any{
			"type":      "LiveDataNotice",
			"message":   fmt.Sprintf("LIVE DATA from Sephora API at %s", nowStamp()),
			"itemCount": len(blocks),
		}
		blocks = append([]map[string]any{notice}, blocks...)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"content":    blocks,
		"isLiveData": true,
	})
}

// carouselBlock renders an item's skuList into a ProductCarousel block.
func carouselBlock(item map[string]any, limit int) (map[string]any, bool) {
	skuList, _ := item["skuList"].([]any)
	if len(skuList) == 0 {
		return nil, false
	}

	products := []map[string]any{}
	for _, raw := range skuList {
		if len(products) >= limit {
			break
		}
		sku, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		skuID := asString(sku["skuId"])
		products = append(products, map[string]any{
			"productId":   asString(sku["productId"]),
			"skuId":       skuID,
			"name":        asString(sku["productName"]),
			"brandName":   asString(sku["brandName"]),
			"listPrice":   stringOr(sku["listPrice"], "$0.00"),
			"salePrice":   sku["salePrice"],
			"imageUrl":    skuImageURL(skuID),
			"rating":      numberOr(sku["starRatings"], 0),
			"reviewCount": numberOr(sku["reviewsCount"], 0),
			"inStock":     true,
		})
	}
	if len(products) == 0 {
		return nil, false
	}

	return map[string]any{
		"type":     "ProductCarousel",
		"title":    stringOr(item["title"], "Products"),
		"products": products,
	}, true
}

func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	page := intParam(r, "page", 1)
	pageSize := intParam(r, "pageSize", 30)

	results, err := s.live.SearchProducts(r.Context(), query, page)
	if err != nil {
		slog.ErrorContext(r.Context(), "search failed", "err", err)
		writeJSON(w, http.StatusOK, map[string]any{
			"products":      []any{},
			"totalProducts": 0,
			"page":          page,
			"pageSize":      pageSize,
			"isLiveData":    false,
			"error":         fmt.Sprintf("Authentication failed: %s", err),
			"timestamp":     nowStamp(),
		})
		return
	}

	minPrice := floatParam(r, "minPrice")
	maxPrice := floatParam(r, "maxPrice")
	brand := r.URL.Query().Get("brand")

	products := []map[string]any{}
	rawProducts, _ := results["products"].([]any)
	for _, raw := range rawProducts {
		product, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		sku, _ := product["currentSku"].(map[string]any)

		if price, ok := parsePrice(stringOr(skuField(sku, "listPrice"), "")); ok {
			if minPrice > 0 && price < minPrice {
				continue
			}
			if maxPrice > 0 && price > maxPrice {
				continue
			}
		}
		if brand != "" && !strings.Contains(
			strings.ToLower(asString(product["brandName"])), strings.ToLower(brand)) {
			continue
		}

		outOfStock, _ := skuField(sku, "isOutOfStock").(bool)
		products = append(products, map[string]any{
			"productId":   asString(product["productId"]),
			"skuId":       asString(skuField(sku, "skuId")),
			"name":        asString(product["displayName"]),
			"brandName":   asString(product["brandName"]),
			"price":       stringOr(skuField(sku, "listPrice"), "$0.00"),
			"salePrice":   skuField(sku, "salePrice"),
			"imageUrl":    asString(product["heroImage"]),
			"rating":      numberOr(product["rating"], 0),
			"reviewCount": numberOr(product["reviews"], 0),
			"inStock":     !outOfStock,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"products":      products,
		"totalProducts": len(products),
		"page":          page,
		"pageSize":      pageSize,
		"isLiveData":    true,
		"timestamp":     nowStamp(),
	})
}

func (s *Service) handleProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	skuID := r.URL.Query().Get("sku_id")

	payload, err := s.live.Product(r.Context(), productID, skuID)
	if err != nil {
		slog.ErrorContext(r.Context(), "product fetch failed", "product", productID, "err", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"detail": fmt.Sprintf("Product %s not found", productID),
		})
		return
	}

	product, _ := payload["product"].(map[string]any)
	if product == nil {
		product = map[string]any{}
	}
	sku, _ := product["currentSku"].(map[string]any)
	outOfStock, _ := skuField(sku, "isOutOfStock").(bool)

	writeJSON(w, http.StatusOK, map[string]any{
		"productId":   stringOr(product["productId"], productID),
		"name":        asString(product["displayName"]),
		"brandName":   asString(product["brandName"]),
		"description": asString(product["longDescription"]),
		"price":       stringOr(skuField(sku, "listPrice"), "$0.00"),
		"salePrice":   skuField(sku, "salePrice"),
		"imageUrl":    asString(product["heroImage"]),
		"rating":      numberOr(product["rating"], 0),
		"reviewCount": numberOr(product["reviews"], 0),
		"inStock":     !outOfStock,
		"ingredients": asString(product["ingredientDesc"]),
		"howToUse":    asString(product["suggestedUsage"]),
		"isLiveData":  true,
		"timestamp":   nowStamp(),
	})
}

func skuImageURL(skuID string) string {
	return fmt.Sprintf("https://www.sephora.com/productimages/sku/s%s-main-zoom.jpg?imwidth=270", skuID)
}

func skuField(sku map[string]any, key string) any {
	if sku == nil {
		return nil
	}
	return sku[key]
}

func pathList(m map[string]any, path ...string) []any {
	current := any(m)
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = obj[key]
	}
	list, _ := current.([]any)
	return list
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func numberOr(v any, fallback float64) float64 {
	if n, ok := v.(float64); ok {
		return n
	}
	return fallback
}

// parsePrice reads "$24.00" style vendor price strings.
func parsePrice(price string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimPrefix(price, "$"), ",", "")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func floatParam(r *http.Request, name string) float64 {
	value, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
	if err != nil {
		return 0
	}
	return value
}
