package extractor

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/codes"
)

const searchResultCap = 10

// Search runs a fresh extraction of every selected source and ranks items by
// weighted substring relevance. A failing source contributes zero results;
// it never fails the search as a whole.
func (x *Extractor) Search(ctx context.Context, query, contentType string) SearchResult {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()

	queryLower := strings.ToLower(query)

	type source struct {
		types   []string
		collect func(context.Context, string) ([]SearchHit, error)
	}
	sources := []source{
		{[]string{"all", "articles", "videos"}, x.searchHomeFeed},
		{[]string{"all", "events", "scores"}, x.searchEvents},
		{[]string{"all", "sports"}, x.searchSports},
	}

	var results []SearchHit
	for _, src := range sources {
		if !contains(src.types, contentType) {
			continue
		}
		hits, err := src.collect(ctx, queryLower)
		if err != nil {
			// a broken source degrades to an empty contribution
			span.RecordError(err)
			span.SetStatus(codes.Error, "search source failed")
			continue
		}
		results = append(results, hits...)
	}

	// stable: ties keep source order (home, events, sports)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	if len(results) > searchResultCap {
		results = results[:searchResultCap]
	}
	if results == nil {
		results = []SearchHit{}
	}

	return SearchResult{
		Status:  "success",
		Query:   query,
		Results: results,
	}
}

func (x *Extractor) searchHomeFeed(ctx context.Context, queryLower string) ([]SearchHit, error) {
	feed, err := x.HomeFeed(ctx)
	if err != nil {
		return nil, err
	}
	if feed.Data == nil {
		return nil, nil
	}

	var hits []SearchHit
	for _, item := range feed.Data.Items {
		headline := stringify(item.Content["headline"])
		description := stringify(item.Content["description"])

		relevance := 0
		if queryLower != "" && strings.Contains(strings.ToLower(headline), queryLower) {
			relevance += 3
		}
		if queryLower != "" && strings.Contains(strings.ToLower(description), queryLower) {
			relevance += 2
		}
		if queryLower != "" && strings.Contains(strings.ToLower(item.SectionLabel), queryLower) {
			relevance += 1
		}
		if relevance == 0 {
			continue
		}

		hits = append(hits, SearchHit{
			Type:        "home_content",
			Source:      "home_feed",
			Headline:    headline,
			Description: description,
			Section:     item.SectionLabel,
			ContentType: stringify(item.Content["type"]),
			Timestamp:   item.Timestamp,
			Relevance:   relevance,
		})
	}
	return hits, nil
}

func (x *Extractor) searchEvents(ctx context.Context, queryLower string) ([]SearchHit, error) {
	events, err := x.TopEvents(ctx)
	if err != nil {
		return nil, err
	}
	if events.Data == nil {
		return nil, nil
	}

	var hits []SearchHit
	for _, event := range events.Data.Events {
		relevance := 0
		if queryLower != "" && strings.Contains(strings.ToLower(event.Headline), queryLower) {
			relevance += 3
		}
		if queryLower != "" && strings.Contains(strings.ToLower(event.Sport), queryLower) {
			relevance += 2
		}
		if queryLower != "" && strings.Contains(strings.ToLower(event.League), queryLower) {
			relevance += 1
		}
		if relevance == 0 {
			continue
		}

		hits = append(hits, SearchHit{
			Type:      "event",
			Source:    "events",
			Headline:  event.Headline,
			Sport:     event.Sport,
			League:    event.League,
			Status:    event.Status,
			Teams:     event.Teams,
			Relevance: relevance,
		})
	}
	return hits, nil
}

func (x *Extractor) searchSports(ctx context.Context, queryLower string) ([]SearchHit, error) {
	sports, err := x.SportsCategories(ctx)
	if err != nil {
		return nil, err
	}
	if sports.Data == nil {
		return nil, nil
	}

	var hits []SearchHit
	for _, sport := range sports.Data.Sports {
		if queryLower != "" && strings.Contains(strings.ToLower(sport.Name), queryLower) {
			count := sport.LeaguesCount
			hits = append(hits, SearchHit{
				Type:         "sport",
				Source:       "sports",
				Name:         sport.Name,
				UID:          derefString(sport.UID),
				LeaguesCount: &count,
				Relevance:    2,
			})
		}

		for _, league := range sport.Leagues {
			if queryLower != "" && strings.Contains(strings.ToLower(league.Name), queryLower) {
				hits = append(hits, SearchHit{
					Type:      "league",
					Source:    "sports",
					Name:      league.Name,
					Sport:     sport.Name,
					UID:       derefString(league.UID),
					Relevance: 1,
				})
			}
		}
	}
	return hits, nil
}

func contains(list []string, s string) bool {
	for _, el := range list {
		if el == s {
			return true
		}
	}
	return false
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
