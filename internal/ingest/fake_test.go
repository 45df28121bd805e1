package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/premwatch/footydata/internal/store"
)

// fakeSource is a scripted Source. Each endpoint serves canned records and
// every call is appended to calls, so tests can assert both what was
// fetched and in what order.
type fakeSource struct {
	calls []string

	countries    []store.Record
	leagues      map[int64][]store.Record // by country id
	matches      []store.Record
	leagueStats  map[int64][]store.Record // by season id
	schedule     map[int64][]store.Record
	teams        map[int64][]store.Record
	players      map[int64][]store.Record
	referees     map[int64][]store.Record
	teamData     map[int64][]store.Record // by team id
	teamForm     map[int64][]store.Record
	matchDetails map[int64][]store.Record // by match id
	leagueTable  map[int64][]store.Record
	playerStats  map[int64][]store.Record // by player id
	refereeStats map[int64][]store.Record // by referee id
	btts         []store.Record
	over25       []store.Record

	err error // when set, every fetch fails with it
}

func (f *fakeSource) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeSource) Countries(ctx context.Context) ([]store.Record, error) {
	f.record("countries")
	return f.countries, f.err
}

func (f *fakeSource) Leagues(ctx context.Context, countryID int64, chosenOnly bool) ([]store.Record, error) {
	f.record(fmt.Sprintf("leagues(%d)", countryID))
	return f.leagues[countryID], f.err
}

func (f *fakeSource) Matches(ctx context.Context, date string) ([]store.Record, error) {
	f.record("matches(" + date + ")")
	return f.matches, f.err
}

func (f *fakeSource) LeagueStats(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error) {
	f.record(fmt.Sprintf("league_stats(%d)", seasonID))
	return f.leagueStats[seasonID], f.err
}

func (f *fakeSource) Schedule(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error) {
	f.record(fmt.Sprintf("schedules(%d)", seasonID))
	return f.schedule[seasonID], f.err
}

func (f *fakeSource) LeagueTeams(ctx context.Context, seasonID int64, includeStats bool, maxTime int64) ([]store.Record, error) {
	f.record(fmt.Sprintf("teams(%d,stats=%t)", seasonID, includeStats))
	return f.teams[seasonID], f.err
}

func (f *fakeSource) LeaguePlayers(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error) {
	f.record(fmt.Sprintf("players(%d)", seasonID))
	return f.players[seasonID], f.err
}

func (f *fakeSource) LeagueReferees(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error) {
	f.record(fmt.Sprintf("referees(%d)", seasonID))
	return f.referees[seasonID], f.err
}

func (f *fakeSource) TeamData(ctx context.Context, teamID int64) ([]store.Record, error) {
	f.record(fmt.Sprintf("team_data(%d)", teamID))
	return f.teamData[teamID], f.err
}

func (f *fakeSource) TeamForm(ctx context.Context, teamID int64) ([]store.Record, error) {
	f.record(fmt.Sprintf("team_form(%d)", teamID))
	return f.teamForm[teamID], f.err
}

func (f *fakeSource) MatchDetails(ctx context.Context, matchID int64) ([]store.Record, error) {
	f.record(fmt.Sprintf("match_details(%d)", matchID))
	return f.matchDetails[matchID], f.err
}

func (f *fakeSource) LeagueTable(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error) {
	f.record(fmt.Sprintf("league_table(%d)", seasonID))
	return f.leagueTable[seasonID], f.err
}

func (f *fakeSource) PlayerStats(ctx context.Context, playerID int64) ([]store.Record, error) {
	f.record(fmt.Sprintf("player_stats(%d)", playerID))
	return f.playerStats[playerID], f.err
}

func (f *fakeSource) RefereeStats(ctx context.Context, refereeID int64) ([]store.Record, error) {
	f.record(fmt.Sprintf("referee_stats(%d)", refereeID))
	return f.refereeStats[refereeID], f.err
}

func (f *fakeSource) BTTSStats(ctx context.Context) ([]store.Record, error) {
	f.record("btts_stats")
	return f.btts, f.err
}

func (f *fakeSource) Over25Stats(ctx context.Context) ([]store.Record, error) {
	f.record("over_25_stats")
	return f.over25, f.err
}

func openTestStore(t *testing.T) *store.Store {
	st, _ := openTestStoreAt(t)
	return st
}

func openTestStoreAt(t *testing.T) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ingest.db")
	st, err := store.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, path
}
