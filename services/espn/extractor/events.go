package extractor

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"
)

// Hard slice limits over the events payload; these are positional, not a
// relevance filter.
const (
	topEventsSectionCap = 3
	topEventsItemCap    = 2
)

// TopEvents extracts the captured top-events payload into EventRecords.
func (x *Extractor) TopEvents(ctx context.Context) (TopEventsResult, error) {
	ctx, span := tracer.Start(ctx, "TopEvents")
	defer span.End()

	payload, found, err := x.findPayload(x.archives.Events, topEventsPattern)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load events archive")
		return TopEventsResult{}, err
	}
	if !found {
		return TopEventsResult{Error: "Events data not found in HAR"}, nil
	}

	sections := resolveSections(payload)

	var events []EventRecord
	for _, section := range sections[:min(len(sections), topEventsSectionCap)] {
		items := itemList(section)

		// The cap slices raw positions; non-object items inside the window
		// are skipped, not replaced by later ones.
		for _, raw := range items[:min(len(items), topEventsItemCap)] {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}

			record := EventRecord{
				ID:          firstString(item, "unknown", "gameId", "id"),
				Sport:       firstString(item, "Unknown", "sportName"),
				League:      resolveLeague(section, item),
				Headline:    stringValue(item, "headline"),
				Status:      firstString(item, "unknown", "statusTextOne", "gameState"),
				Date:        optString(item["gameDate"]),
				Venue:       pathString(item, "Unknown", "venue", "name"),
				SectionType: firstString(section, "Unknown", "type"),
			}

			_, hasOne := item["teamOneName"]
			_, hasTwo := item["teamTwoName"]
			if hasOne && hasTwo {
				record.Teams = &TeamPair{
					TeamOne: Team{
						Name:         optString(item["teamOneName"]),
						Abbreviation: optString(item["teamOneAbbreviation"]),
						Score:        stringValue(item, "teamOneScore"),
						Winner:       boolValue(item, "teamOneWinner"),
					},
					TeamTwo: Team{
						Name:         optString(item["teamTwoName"]),
						Abbreviation: optString(item["teamTwoAbbreviation"]),
						Score:        stringValue(item, "teamTwoScore"),
						Winner:       boolValue(item, "teamTwoWinner"),
					},
				}
			}

			if x.simulateScores {
				x.maybeSimulateScore(&record, item)
			}

			events = append(events, record)
		}
	}

	return TopEventsResult{
		Status: "success",
		Type:   "top_events",
		Data: &TopEventsData{
			Events:        events,
			TotalEvents:   len(events),
			SectionsCount: len(sections),
			Source:        sourceLabel,
		},
	}, nil
}

// League falls back through the section header label, then the item's own
// league name.
func resolveLeague(section, item map[string]any) string {
	label := pathString(section, "", "header", "label")
	if label != "" {
		return label
	}
	return firstString(item, "Unknown", "leagueName")
}

// maybeSimulateScore rewrites a pre-game MLB event in place into a finished
// game from "yesterday" with drawn scores. Redundant status fields are all
// consulted since the capture stores game state inconsistently.
func (x *Extractor) maybeSimulateScore(record *EventRecord, item map[string]any) {
	if record.Teams == nil {
		return
	}

	isMLB := record.Sport == "Baseball" ||
		record.League == "MLB" ||
		strings.Contains(record.League, "MLB")
	if !isMLB {
		return
	}

	gameState := stringValue(item, "gameState")
	isPreGame := record.Status == "pre" ||
		gameState == "pre" ||
		containsFold(record.Status, "pre") ||
		containsFold(gameState, "pre")
	if !isPreGame {
		return
	}

	scoreOne, scoreTwo := drawBaseballScores()

	record.Status = "final"
	record.Teams.TeamOne.Score = strconv.Itoa(scoreOne)
	record.Teams.TeamTwo.Score = strconv.Itoa(scoreTwo)
	record.Teams.TeamOne.Winner = scoreOne > scoreTwo
	record.Teams.TeamTwo.Winner = scoreTwo > scoreOne

	yesterday := x.now().Add(-24 * time.Hour).UTC().Format("2006-01-02T15:04:05Z")
	record.Date = &yesterday
}

// drawBaseballScores draws a uniformly random pair in [0,12], redrawing the
// second score while tied since baseball games cannot end even.
func drawBaseballScores() (int, int) {
	one, err := random.IntRange(0, 13)
	if err != nil {
		one = 0
	}
	two := one
	for two == one {
		next, err := random.IntRange(0, 13)
		if err != nil {
			next = (two + 1) % 13
		}
		two = next
	}
	return one, two
}
