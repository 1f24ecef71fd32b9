package extractor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// homeFeedItemCap is a global limit across all sections, not per-section.
const homeFeedItemCap = 10

// HomeFeed extracts the captured home feed into a normalized item list.
// A missing or empty capture yields a typed not-found result, not an error;
// errors are reserved for unreadable archives.
func (x *Extractor) HomeFeed(ctx context.Context) (HomeFeedResult, error) {
	ctx, span := tracer.Start(ctx, "HomeFeed")
	defer span.End()

	payload, found, err := x.findPayload(x.archives.Home, homeFeedPattern)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load home archive")
		return HomeFeedResult{}, err
	}
	if !found {
		return HomeFeedResult{Error: "Home feed data not found in HAR"}, nil
	}

	sections := resolveSections(payload)

	var processed []ContentItem
	for sectionIdx, section := range sections {
		label := sectionLabel(section, sectionIdx)

		for _, raw := range itemList(section) {
			if len(processed) >= homeFeedItemCap {
				break
			}
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}

			timestamp := stringValue(item, "formattedTimestamp")
			if timestamp == "" {
				timestamp = "N/A"
			}

			processed = append(processed, ContentItem{
				ID:           optString(item["id"]),
				Type:         optString(item["type"]),
				CellType:     optString(item["cellType"]),
				Timestamp:    timestamp,
				PublishDate:  optString(item["publishedDate"]),
				SectionIndex: sectionIdx,
				SectionLabel: label,
				Content:      classifyItem(item),
			})
		}
		if len(processed) >= homeFeedItemCap {
			break
		}
	}

	// the true item count is reported uncapped, independently of the limit
	// applied to the processed list
	totalItems := 0
	for _, section := range sections {
		totalItems += len(itemList(section))
	}

	return HomeFeedResult{
		Status: "success",
		Type:   "home_feed",
		Data: &HomeFeedData{
			Sections:   len(sections),
			Items:      processed,
			TotalItems: totalItems,
			Source:     sourceLabel,
		},
		Metadata: &HomeFeedMetadata{
			Timestamp:    payload["timestamp"],
			ResultsLimit: payload["resultsLimit"],
			ResultsCount: payload["resultsCount"],
		},
	}, nil
}

// classifyItem maps an item to its content category by key presence:
// video, article, nested collection, or unknown with raw keys preserved
// for diagnostics.
func classifyItem(item map[string]any) map[string]any {
	if video, ok := item["video"].(map[string]any); ok {
		return map[string]any{
			"headline":    stringValue(video, "headline"),
			"description": stringValue(video, "description"),
			"duration":    valueOr(video["duration"], float64(0)),
			"thumbnail":   stringValue(video, "thumbnail"),
			"type":        "video",
		}
	}
	if article, ok := item["article"].(map[string]any); ok {
		images, _ := article["images"].(map[string]any)
		if images == nil {
			images = map[string]any{}
		}
		return map[string]any{
			"headline":    stringValue(article, "headline"),
			"description": stringValue(article, "description"),
			"category":    stringValue(article, "category"),
			"images":      images,
			"type":        "article",
		}
	}
	if nested, ok := item["items"].([]any); ok {
		return map[string]any{
			"headline":    fmt.Sprintf("Collection with %d items", len(nested)),
			"items_count": len(nested),
			"type":        "collection",
		}
	}

	keys := make([]string, 0, len(item))
	for key := range item {
		keys = append(keys, key)
	}
	return map[string]any{
		"type":     "unknown",
		"raw_keys": keys,
	}
}

func valueOr(v any, fallback any) any {
	if v == nil {
		return fallback
	}
	return v
}
