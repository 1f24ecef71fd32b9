package extractor

import (
	"encoding/json"
	"time"

	"harbridge-backend/lib/har"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("services/espn/extractor")

// URL patterns of the captured vendor calls each extraction reads.
const (
	homeFeedPattern   = "sportscenter.fan.api.espn.com/apis/v2/homefeed"
	topEventsPattern  = "sportscenter.fan.api.espn.com/apis/v2/events/top"
	sportsListPattern = "sportscenter.api.espn.com/apis/espnapp/v1/sportsList"
)

// Archives holds the HAR capture backing each extraction.
type Archives struct {
	Home   string `json:"home"`
	Events string `json:"events"`
	Sports string `json:"sports"`
}

type Options struct {
	// SimulateScores rewrites pre-game MLB events into finished games with
	// randomly drawn scores. This reproduces demo behavior observed in the
	// captured deployments and is off by default.
	SimulateScores bool
	// Now is overridable for tests.
	Now func() time.Time
}

// Extractor converts captured vendor payloads into normalized provider
// responses. Results are recomputed from disk on every call; entries are
// immutable after load so concurrent readers are safe.
type Extractor struct {
	archives       Archives
	simulateScores bool
	now            func() time.Time
}

func New(archives Archives, opts Options) *Extractor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Extractor{
		archives:       archives,
		simulateScores: opts.SimulateScores,
		now:            now,
	}
}

// findPayload loads an archive and locates the first captured GET response
// for the given URL pattern. A nil map with found=false means the archive
// held no usable payload, which callers surface as a typed not-found result.
func (x *Extractor) findPayload(path, pattern string) (map[string]any, bool, error) {
	archive, err := har.Load(path)
	if err != nil {
		return nil, false, err
	}

	body, ok := har.Find(archive.Entries, pattern, "GET")
	if !ok {
		return nil, false, nil
	}

	var payload map[string]any
	err = json.Unmarshal(body, &payload)
	if err != nil {
		// valid JSON but not an object; same policy as no match at all
		return nil, false, nil
	}
	return payload, true, nil
}
