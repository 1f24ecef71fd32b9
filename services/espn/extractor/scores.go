package extractor

import (
	"context"
	"fmt"
)

// Scores re-runs the top-events extraction and keeps only events carrying a
// team pair with two non-empty score strings. An unreadable archive degrades
// to an empty game list with a nested error, never a failure.
func (x *Extractor) Scores(ctx context.Context) ScoresResult {
	ctx, span := tracer.Start(ctx, "Scores")
	defer span.End()

	result := ScoresResult{
		Status: "success",
		Type:   "scores",
		Data:   ScoresData{Games: []EventRecord{}},
	}

	events, err := x.TopEvents(ctx)
	if err != nil {
		span.RecordError(err)
		result.Data.Error = fmt.Sprintf("Could not extract scores: %s", err)
		return result
	}
	if events.Data == nil {
		return result
	}

	for _, event := range events.Data.Events {
		if event.Teams == nil {
			continue
		}
		if event.Teams.TeamOne.Score == "" || event.Teams.TeamTwo.Score == "" {
			continue
		}
		result.Data.Games = append(result.Data.Games, event)
	}
	result.Data.TotalGames = len(result.Data.Games)

	return result
}
