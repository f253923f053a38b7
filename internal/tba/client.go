// ABOUTME: HTTP client for The Blue Alliance event/team/match feed
// ABOUTME: Read-only JSON API access with auth-key header and context timeouts

// Package tba consumes the remote competition feed. The store mirrors
// what this package retrieves; transport and parse failures surface as
// errors and never touch local data.
package tba

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DefaultBaseURL is the public feed endpoint.
const DefaultBaseURL = "https://www.thebluealliance.com/api/v3"

// ErrUnexpectedStatus is returned when the feed answers with a non-200
// status code.
var ErrUnexpectedStatus = errors.New("unexpected feed status")

// Event is an event record as delivered by the feed.
type Event struct {
	Key           string  `json:"key"`
	Name          string  `json:"name"`
	ShortName     *string `json:"short_name"`
	Official      bool    `json:"official"`
	EventCode     string  `json:"event_code"`
	EventType     int     `json:"event_type"`
	EventDistrict int     `json:"event_district"`
	Year          int     `json:"year"`
	Week          *int    `json:"week"`
	StartDate     *string `json:"start_date"`
	EndDate       *string `json:"end_date"`
	Location      string  `json:"location"`
	VenueAddress  *string `json:"venue_address"`
	Timezone      *string `json:"timezone"`
	Website       *string `json:"website"`
}

// Team is a team record as delivered by the feed.
type Team struct {
	Key        string  `json:"key"`
	TeamNumber int     `json:"team_number"`
	Name       string  `json:"name"`
	Nickname   string  `json:"nickname"`
	Website    *string `json:"website"`
	Locality   string  `json:"locality"`
	Region     *string `json:"region"`
	Country    *string `json:"country_name"`
	Location   string  `json:"location"`
	RookieYear int     `json:"rookie_year"`
	Motto      *string `json:"motto"`
}

// Alliance is one side of a match.
type Alliance struct {
	Score int      `json:"score"`
	Teams []string `json:"teams"`
}

// Alliances pairs the red and blue sides.
type Alliances struct {
	Red  Alliance `json:"red"`
	Blue Alliance `json:"blue"`
}

// Video is a recorded match video reference.
type Video struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// Match is a match record as delivered by the feed.
type Match struct {
	Key            string          `json:"key"`
	EventKey       string          `json:"event_key"`
	CompLevel      string          `json:"comp_level"` // "qm", "ef", "qf", "sf", "f"
	SetNumber      *int            `json:"set_number"`
	MatchNumber    *int            `json:"match_number"`
	Alliances      *Alliances      `json:"alliances"`
	ScoreBreakdown json.RawMessage `json:"score_breakdown"`
	Videos         []Video         `json:"videos"`
	Time           *int64          `json:"time"`
}

// Client is a read-only client for the feed API.
type Client struct {
	baseURL string
	authKey string
	httpc   *http.Client
	logger  *slog.Logger
}

// NewClient creates a feed client. An empty baseURL selects the public
// endpoint; timeout bounds each request in addition to the caller's
// context.
func NewClient(baseURL, authKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		authKey: authKey,
		httpc:   &http.Client{Timeout: timeout},
		logger:  slog.Default().With("component", "tba"),
	}
}

// get performs a GET request against the feed and decodes the JSON body
// into result.
func (c *Client) get(ctx context.Context, path string, result any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building feed request: %w", err)
	}
	req.Header.Set("X-TBA-Auth-Key", c.authKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: status %d: %w", path, resp.StatusCode, ErrUnexpectedStatus)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}

	c.logger.Debug("feed request complete", "path", path)
	return nil
}

// Event retrieves one event record by key.
func (c *Client) Event(ctx context.Context, eventKey string) (*Event, error) {
	var ev Event
	if err := c.get(ctx, "/event/"+eventKey, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Events retrieves the event list for a season year.
func (c *Client) Events(ctx context.Context, year int) ([]Event, error) {
	var events []Event
	if err := c.get(ctx, fmt.Sprintf("/events/%d", year), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// EventTeams retrieves the team roster registered at an event.
func (c *Client) EventTeams(ctx context.Context, eventKey string) ([]Team, error) {
	var teams []Team
	if err := c.get(ctx, "/event/"+eventKey+"/teams", &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// EventMatches retrieves the match list for an event.
func (c *Client) EventMatches(ctx context.Context, eventKey string) ([]Match, error) {
	var matches []Match
	if err := c.get(ctx, "/event/"+eventKey+"/matches", &matches); err != nil {
		return nil, err
	}
	return matches, nil
}
