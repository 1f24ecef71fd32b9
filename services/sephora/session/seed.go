package session

import (
	"encoding/json"
	"fmt"
	"time"

	"harbridge-backend/lib/har"
)

// authSeed is a token triple recovered from a captured auth exchange.
type authSeed struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// loadAuthSeed digs a usable token pair out of a reauth capture. The
// session endpoint response is preferred since it carries the newest
// tokens; the refreshToken endpoint is the fallback.
func loadAuthSeed(path string) (authSeed, error) {
	archive, err := har.Load(path)
	if err != nil {
		return authSeed{}, err
	}

	for _, pattern := range []string{
		"/v1/dotcom/auth/v2/session",
		"/v1/dotcom/auth/v2/refreshToken",
	} {
		for _, method := range []string{"POST", "GET"} {
			body, found := har.Find(archive.Entries, pattern, method)
			if !found {
				continue
			}
			seed, ok := parseAuthSeed(body)
			if ok {
				return seed, nil
			}
		}
	}
	return authSeed{}, fmt.Errorf("no auth entry in %s", path)
}

func parseAuthSeed(body json.RawMessage) (authSeed, bool) {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return authSeed{}, false
	}
	accessToken, _ := data["accessToken"].(string)
	if accessToken == "" {
		return authSeed{}, false
	}
	refreshToken, _ := data["refreshToken"].(string)
	return authSeed{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       parseUnix(data["atExp"]),
	}, true
}
