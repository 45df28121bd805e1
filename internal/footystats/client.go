// Package footystats provides the HTTP client for the FootyStats
// football-data API.
//
// The API uses key-based auth (query parameter) and page-based pagination
// on list endpoints. The hourly quota is 1800 requests, enforced locally
// with a token bucket limiter so a long cascade never trips the ceiling.
package footystats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/premwatch/footydata/internal/store"
)

// DefaultBaseURL is the production FootyStats endpoint.
const DefaultBaseURL = "https://api.football-data-api.com"

// DefaultRequestsPerHour matches the documented FootyStats quota.
const DefaultRequestsPerHour = 1800

// Client is the HTTP client for all FootyStats endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a FootyStats HTTP client with rate limiting.
func NewClient(baseURL, apiKey string, requestsPerHour int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if requestsPerHour <= 0 {
		requestsPerHour = DefaultRequestsPerHour
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Every(time.Hour / time.Duration(requestsPerHour)), 1),
		logger:     logger,
	}
}

// envelope is the common FootyStats response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Pager *pager          `json:"pager"`
}

type pager struct {
	CurrentPage int `json:"current_page"`
	MaxPage     int `json:"max_page"`
}

// get performs a rate-limited GET request to a FootyStats endpoint.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("key", c.apiKey)

	u := c.baseURL + "/" + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("footystats %s returned %d: %s", endpoint, resp.StatusCode, truncate(body, 200))
	}

	var result envelope
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}

// fetch retrieves a single page and decodes its data into records.
// A missing or null data key yields no records and no error.
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) ([]store.Record, error) {
	resp, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	return decodeRecords(resp.Data)
}

// fetchPaginated retrieves all pages of a list endpoint and concatenates
// their data in page order.
func (c *Client) fetchPaginated(ctx context.Context, endpoint string, params url.Values) ([]store.Record, error) {
	if params == nil {
		params = url.Values{}
	}

	resp, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(resp.Data)
	if err != nil {
		return nil, err
	}

	if resp.Pager == nil {
		return records, nil
	}
	for page := resp.Pager.CurrentPage + 1; page <= resp.Pager.MaxPage; page++ {
		params.Set("page", strconv.Itoa(page))
		next, err := c.get(ctx, endpoint, params)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		more, err := decodeRecords(next.Data)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		records = append(records, more...)
	}
	return records, nil
}

// decodeRecords turns a raw data payload into records. Lists decode to one
// record per element; a bare object becomes a single record. Numbers are
// kept as json.Number so integer and real values stay distinguishable.
func decodeRecords(raw json.RawMessage) ([]store.Record, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var list []store.Record
	if err := dec.Decode(&list); err == nil {
		return list, nil
	}

	dec = json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var single store.Record
	if err := dec.Decode(&single); err != nil {
		// Scalar or otherwise unusable payload: treat as no data.
		return nil, nil
	}
	return []store.Record{single}, nil
}

// truncate returns a bounded string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}

// Countries fetches the list of countries with their ISO numbers.
func (c *Client) Countries(ctx context.Context) ([]store.Record, error) {
	return c.fetch(ctx, "country-list", nil)
}

// Leagues fetches the league list, optionally filtered by country and
// restricted to leagues chosen on the API account.
func (c *Client) Leagues(ctx context.Context, countryID int64, chosenOnly bool) ([]store.Record, error) {
	params := url.Values{}
	if chosenOnly {
		params.Set("chosen_leagues_only", "true")
	}
	if countryID != 0 {
		params.Set("country", strconv.FormatInt(countryID, 10))
	}
	return c.fetch(ctx, "league-list", params)
}

// Matches fetches up to 200 matches for the given day (today when date is
// empty). Only works for chosen leagues.
func (c *Client) Matches(ctx context.Context, date string) ([]store.Record, error) {
	params := url.Values{}
	params.Set("timezone", "Europe/London")
	if date != "" {
		params.Set("date", date)
	}
	return c.fetch(ctx, "todays-matches", params)
}

// LeagueStats fetches league statistics for a season, optionally capped at
// maxTime (unix seconds).
func (c *Client) LeagueStats(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error) {
	return c.fetch(ctx, "league-statistics", seasonParams(seasonID, maxTime))
}

// Schedule fetches the full schedule/results for a season.
func (c *Client) Schedule(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error) {
	params := seasonParams(seasonID, maxTime)
	params.Set("max_per_page", "1000")
	return c.fetchPaginated(ctx, "league-matches", params)
}

// LeagueTeams fetches the teams of a season, with detailed stats included
// when requested.
func (c *Client) LeagueTeams(ctx context.Context, seasonID int64, includeStats bool, maxTime int64) ([]store.Record, error) {
	params := seasonParams(seasonID, maxTime)
	if includeStats {
		params.Set("include", "stats")
	}
	return c.fetch(ctx, "league-teams", params)
}

// LeaguePlayers fetches the players of a season across all pages.
func (c *Client) LeaguePlayers(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error) {
	return c.fetchPaginated(ctx, "league-players", seasonParams(seasonID, maxTime))
}

// LeagueReferees fetches the referees of a season.
func (c *Client) LeagueReferees(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error) {
	return c.fetch(ctx, "league-referees", seasonParams(seasonID, maxTime))
}

// TeamData fetches detailed data for a single team.
func (c *Client) TeamData(ctx context.Context, teamID int64) ([]store.Record, error) {
	return c.fetch(ctx, "team", idParams("team_id", teamID))
}

// TeamForm fetches the last 5, 6, and 10 match stats for a team in one call.
func (c *Client) TeamForm(ctx context.Context, teamID int64) ([]store.Record, error) {
	return c.fetch(ctx, "lastx", idParams("team_id", teamID))
}

// MatchDetails fetches detailed data and trends for a single match,
// including H2H and odds.
func (c *Client) MatchDetails(ctx context.Context, matchID int64) ([]store.Record, error) {
	return c.fetch(ctx, "match", idParams("match_id", matchID))
}

// LeagueTable fetches the league table for a season.
func (c *Client) LeagueTable(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error) {
	return c.fetch(ctx, "league-tables", seasonParams(seasonID, maxTime))
}

// PlayerStats fetches detailed stats for a player across all seasons.
func (c *Client) PlayerStats(ctx context.Context, playerID int64) ([]store.Record, error) {
	return c.fetch(ctx, "player-stats", idParams("player_id", playerID))
}

// RefereeStats fetches detailed stats for a referee across all seasons.
func (c *Client) RefereeStats(ctx context.Context, refereeID int64) ([]store.Record, error) {
	return c.fetch(ctx, "referee", idParams("referee_id", refereeID))
}

// BTTSStats fetches the best both-teams-to-score leagues, teams, and fixtures.
func (c *Client) BTTSStats(ctx context.Context) ([]store.Record, error) {
	return c.fetch(ctx, "stats-data-btts", nil)
}

// Over25Stats fetches the best over-2.5-goals leagues, teams, and fixtures.
func (c *Client) Over25Stats(ctx context.Context) ([]store.Record, error) {
	return c.fetch(ctx, "stats-data-over25", nil)
}

func seasonParams(seasonID, maxTime int64) url.Values {
	params := url.Values{}
	params.Set("season_id", strconv.FormatInt(seasonID, 10))
	if maxTime > 0 {
		params.Set("max_time", strconv.FormatInt(maxTime, 10))
	}
	return params
}

func idParams(name string, id int64) url.Values {
	params := url.Values{}
	params.Set(name, strconv.FormatInt(id, 10))
	return params
}
