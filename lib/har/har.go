package har

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ErrMalformedArchive is returned when a file parses as JSON but does not
// contain a log.entries array.
var ErrMalformedArchive = fmt.Errorf("malformed HAR archive: missing log.entries")

type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Entry is one captured request/response exchange. Entries are immutable
// once loaded.
type Entry struct {
	Started         string
	Method          string
	URL             string
	RequestHeaders  []Header
	PostData        string
	Status          int
	ContentType     string
	ResponseHeaders []Header
	Body            string
}

// Archive is an ordered sequence of captured exchanges.
type Archive struct {
	Entries []Entry
}

type rawPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type rawRequest struct {
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Headers  []Header    `json:"headers"`
	PostData rawPostData `json:"postData"`
}

type rawContent struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type rawResponse struct {
	Status  int        `json:"status"`
	Headers []Header   `json:"headers"`
	Content rawContent `json:"content"`
}

type rawEntry struct {
	Started  string      `json:"startedDateTime"`
	Request  rawRequest  `json:"request"`
	Response rawResponse `json:"response"`
}

type rawLog struct {
	Log struct {
		Entries json.RawMessage `json:"entries"`
	} `json:"log"`
}

// Load reads and parses a HAR 1.2 file. Unknown fields are ignored, missing
// optional fields produce zero values. The only structural requirement is a
// log.entries array.
func Load(path string) (*Archive, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read har file: %w", err)
	}
	return Parse(buf)
}

// Parse decodes HAR bytes into an Archive.
func Parse(buf []byte) (*Archive, error) {
	var root rawLog
	err := json.Unmarshal(buf, &root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedArchive, err)
	}
	if len(root.Log.Entries) == 0 {
		return nil, ErrMalformedArchive
	}

	var raw []rawEntry
	err = json.Unmarshal(root.Log.Entries, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedArchive, err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, Entry{
			Started:         e.Started,
			Method:          e.Request.Method,
			URL:             e.Request.URL,
			RequestHeaders:  e.Request.Headers,
			PostData:        e.Request.PostData.Text,
			Status:          e.Response.Status,
			ContentType:     e.Response.Content.MimeType,
			ResponseHeaders: e.Response.Headers,
			Body:            e.Response.Content.Text,
		})
	}
	return &Archive{Entries: entries}, nil
}

// Find scans entries in capture order and returns the decoded JSON body of
// the first one whose method matches exactly and whose URL contains
// urlSubstring. Entries that match but carry an empty or non-JSON body are
// skipped and scanning continues. The second return is false when nothing
// matched; callers treat that as a normal not-found outcome.
func Find(entries []Entry, urlSubstring, method string) (json.RawMessage, bool) {
	for _, e := range entries {
		if e.Method != method {
			continue
		}
		if !strings.Contains(e.URL, urlSubstring) {
			continue
		}
		body := strings.TrimSpace(e.Body)
		if body == "" || !json.Valid([]byte(body)) {
			continue
		}
		return json.RawMessage(body), true
	}
	return nil, false
}
