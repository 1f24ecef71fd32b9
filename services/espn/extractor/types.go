package extractor

// Shapes in this package mirror the JSON the provider endpoints serve.
// "Not found" and "malformed payload" conditions are values (the Error
// field), never Go errors: only failures to read an archive itself
// propagate as errors.

const sourceLabel = "ESPN Mobile App HAR"

// ContentItem is one normalized unit of home feed content.
type ContentItem struct {
	ID           *string        `json:"id"`
	Type         *string        `json:"type"`
	CellType     *string        `json:"cell_type"`
	Timestamp    string         `json:"timestamp"`
	PublishDate  *string        `json:"publish_date"`
	SectionIndex int            `json:"section_index"`
	SectionLabel string         `json:"section_label"`
	Content      map[string]any `json:"content"`
}

type HomeFeedData struct {
	Sections   int           `json:"sections"`
	Items      []ContentItem `json:"items"`
	TotalItems int           `json:"total_items"`
	Source     string        `json:"source"`
}

type HomeFeedMetadata struct {
	Timestamp    any `json:"timestamp"`
	ResultsLimit any `json:"results_limit"`
	ResultsCount any `json:"results_count"`
}

type HomeFeedResult struct {
	Status   string            `json:"status,omitempty"`
	Type     string            `json:"type,omitempty"`
	Data     *HomeFeedData     `json:"data,omitempty"`
	Metadata *HomeFeedMetadata `json:"metadata,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Team is one side of an event's score pair.
type Team struct {
	Name         *string `json:"name"`
	Abbreviation *string `json:"abbreviation"`
	Score        string  `json:"score"`
	Winner       bool    `json:"winner"`
}

type TeamPair struct {
	TeamOne Team `json:"team_one"`
	TeamTwo Team `json:"team_two"`
}

// EventRecord is the normalized shape of one sports event. Status carries
// vendor strings (pre/in/post/final and friends), not a closed enum.
type EventRecord struct {
	ID          string    `json:"id"`
	Sport       string    `json:"sport"`
	League      string    `json:"league"`
	Headline    string    `json:"headline"`
	Status      string    `json:"status"`
	Date        *string   `json:"date"`
	Venue       string    `json:"venue"`
	SectionType string    `json:"section_type"`
	Teams       *TeamPair `json:"teams,omitempty"`
}

type TopEventsData struct {
	Events        []EventRecord `json:"events"`
	TotalEvents   int           `json:"total_events"`
	SectionsCount int           `json:"sections_count"`
	Source        string        `json:"source"`
}

type TopEventsResult struct {
	Status string         `json:"status,omitempty"`
	Type   string         `json:"type,omitempty"`
	Data   *TopEventsData `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type League struct {
	Name         string  `json:"name"`
	UID          *string `json:"uid"`
	Image        string  `json:"image"`
	Abbreviation string  `json:"abbreviation"`
}

type SportCategory struct {
	Name         string   `json:"name"`
	UID          *string  `json:"uid"`
	Image        string   `json:"image"`
	Type         string   `json:"type"`
	Leagues      []League `json:"leagues"`
	LeaguesCount int      `json:"leagues_count"`
}

type SportsData struct {
	Sports      []SportCategory `json:"sports"`
	TotalSports int             `json:"total_sports"`
	Source      string          `json:"source"`
}

type SportsResult struct {
	Status string      `json:"status,omitempty"`
	Type   string      `json:"type,omitempty"`
	Data   *SportsData `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// SearchHit is one ranked search result; the populated fields depend on
// which pipeline contributed it.
type SearchHit struct {
	Type         string    `json:"type"`
	Source       string    `json:"source"`
	Headline     string    `json:"headline,omitempty"`
	Description  string    `json:"description,omitempty"`
	Section      string    `json:"section,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	Timestamp    string    `json:"timestamp,omitempty"`
	Sport        string    `json:"sport,omitempty"`
	League       string    `json:"league,omitempty"`
	Status       string    `json:"status,omitempty"`
	Teams        *TeamPair `json:"teams,omitempty"`
	Name         string    `json:"name,omitempty"`
	UID          string    `json:"uid,omitempty"`
	LeaguesCount *int      `json:"leagues_count,omitempty"`
	Relevance    int       `json:"relevance"`
}

type SearchResult struct {
	Status  string      `json:"status"`
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

type ScoresData struct {
	Games      []EventRecord `json:"games"`
	TotalGames int           `json:"total_games"`
	Error      string        `json:"error,omitempty"`
}

type ScoresResult struct {
	Status string     `json:"status"`
	Type   string     `json:"type"`
	Data   ScoresData `json:"data"`
}
