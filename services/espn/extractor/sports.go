package extractor

import (
	"context"

	"go.opentelemetry.io/otel/codes"
)

// Slice limits over the hierarchical sports list: only the first top-level
// section is examined, up to 15 sports, and up to 5 leagues from the first
// child section of each sport.
const (
	sportsSectionCap = 1
	sportsItemCap    = 15
	leagueSectionCap = 1
	leagueItemCap    = 5
)

// SportsCategories extracts the sports navigation hierarchy.
func (x *Extractor) SportsCategories(ctx context.Context) (SportsResult, error) {
	ctx, span := tracer.Start(ctx, "SportsCategories")
	defer span.End()

	payload, found, err := x.findPayload(x.archives.Sports, sportsListPattern)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load sports archive")
		return SportsResult{}, err
	}
	if !found {
		return SportsResult{Error: "Sports data not found in HAR"}, nil
	}

	rawSections, _ := payload["sections"].([]any)
	sections := objectList(rawSections)

	var sports []SportCategory
	for _, section := range sections[:min(len(sections), sportsSectionCap)] {
		items := itemList(section)

		// Caps here slice raw positions, so a non-object item consumes one
		// of the slots.
		for _, raw := range items[:min(len(items), sportsItemCap)] {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}

			sport := SportCategory{
				Name:    firstString(item, "Unknown Sport", "label"),
				UID:     optString(item["uid"]),
				Image:   stringValue(item, "image"),
				Type:    "sport",
				Leagues: []League{},
			}
			if _, ok := item["children"]; ok {
				sport.Leagues = childLeagues(item)
			}
			sport.LeaguesCount = len(sport.Leagues)

			sports = append(sports, sport)
		}
	}

	return SportsResult{
		Status: "success",
		Type:   "sports_categories",
		Data: &SportsData{
			Sports:      sports,
			TotalSports: len(sports),
			Source:      sourceLabel,
		},
	}, nil
}

// childLeagues recurses one level into a sport's children.data.sections
// structure. No cap propagates below the league item cap.
func childLeagues(item map[string]any) []League {
	leagues := []League{}

	data := pathObject(item, "children", "data")
	if data == nil {
		return leagues
	}
	rawSections, _ := data["sections"].([]any)
	sections := objectList(rawSections)

	for _, section := range sections[:min(len(sections), leagueSectionCap)] {
		items := itemList(section)
		for _, raw := range items[:min(len(items), leagueItemCap)] {
			child, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			leagues = append(leagues, League{
				Name:         firstString(child, "Unknown League", "label"),
				UID:          optString(child["uid"]),
				Image:        stringValue(child, "image"),
				Abbreviation: stringValue(child, "leagueAbbreviation"),
			})
		}
	}
	return leagues
}
