package ingest

import (
	"context"
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/premwatch/footydata/internal/store"
)

// worldSource scripts a minimal world: one country, one league with two
// seasons, one team, one match, one player, one referee per season.
func worldSource() *fakeSource {
	return &fakeSource{
		countries: []store.Record{{"id": json.Number("1"), "country": "England"}},
		leagues: map[int64][]store.Record{
			1: {{
				"name":        "England Premier League",
				"country":     "England",
				"league_name": "Premier League",
				"image":       "epl.png",
				"season": []any{
					map[string]any{"id": json.Number("10"), "year": json.Number("2025")},
					map[string]any{"id": json.Number("11"), "year": json.Number("2026")},
				},
			}},
		},
		leagueStats: map[int64][]store.Record{
			10: {{"id": json.Number("10"), "avg_goals": json.Number("2.7")}},
			11: {{"id": json.Number("11"), "avg_goals": json.Number("2.9")}},
		},
		schedule: map[int64][]store.Record{
			10: {{"id": json.Number("500"), "homeID": json.Number("100")}},
		},
		teams: map[int64][]store.Record{
			10: {{"id": json.Number("100"), "name": "Liverpool"}},
		},
		players: map[int64][]store.Record{
			10: {{"id": json.Number("900"), "full_name": "M. Salah"}},
		},
		referees: map[int64][]store.Record{
			10: {{"id": json.Number("700"), "full_name": "M. Oliver"}},
		},
		teamData:     map[int64][]store.Record{100: {{"id": json.Number("100"), "name": "Liverpool", "founded": json.Number("1892")}}},
		teamForm:     map[int64][]store.Record{100: {{"id": json.Number("100"), "last5_ppg": json.Number("2.4")}}},
		matchDetails: map[int64][]store.Record{500: {{"id": json.Number("500"), "attendance": json.Number("60000")}}},
		leagueTable:  map[int64][]store.Record{},
		playerStats:  map[int64][]store.Record{900: {{"id": json.Number("900"), "goals_overall": json.Number("30")}}},
		refereeStats: map[int64][]store.Record{700: {{"id": json.Number("700"), "cards_per_match": json.Number("4.2")}}},
	}
}

func runCascade(t *testing.T, src *fakeSource, st *store.Store) Result {
	t.Helper()
	registry := NewRegistry(src, st, nil)
	return NewCascade(registry, st, nil).Run(context.Background())
}

func TestCascadeLevelOrdering(t *testing.T) {
	src := worldSource()
	st := openTestStore(t)
	runCascade(t, src, st)

	// Level 1 ran exactly once per persisted country id, after level 0.
	assert.Equal(t, 1, count(src.calls, "countries"))
	assert.Equal(t, 1, count(src.calls, "leagues(1)"))
	assert.Less(t, slices.Index(src.calls, "countries"), slices.Index(src.calls, "leagues(1)"))

	// Level 2 ran exactly once per persisted season id, after level 1.
	for _, call := range []string{"teams(10,stats=true)", "teams(11,stats=true)", "players(10)", "players(11)", "league_stats(10)", "league_stats(11)"} {
		assert.Equal(t, 1, count(src.calls, call), call)
		assert.Less(t, slices.Index(src.calls, "leagues(1)"), slices.Index(src.calls, call), call)
	}

	// Level 3 keyed by persisted team and match ids.
	assert.Equal(t, 1, count(src.calls, "team_data(100)"))
	assert.Equal(t, 1, count(src.calls, "team_form(100)"))
	assert.Equal(t, 1, count(src.calls, "match_details(500)"))
	assert.Less(t, slices.Index(src.calls, "teams(10,stats=true)"), slices.Index(src.calls, "team_data(100)"))

	// Level 4 keyed by persisted player and referee ids.
	assert.Equal(t, 1, count(src.calls, "player_stats(900)"))
	assert.Equal(t, 1, count(src.calls, "referee_stats(700)"))
	assert.Less(t, slices.Index(src.calls, "players(10)"), slices.Index(src.calls, "player_stats(900)"))
}

func TestCascadeEndToEnd(t *testing.T) {
	src := worldSource()
	st := openTestStore(t)
	result := runCascade(t, src, st)

	ctx := context.Background()

	countryIDs, err := st.DistinctIdentities(ctx, "countries", "id")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, countryIDs)

	seasonIDs, err := st.DistinctIdentities(ctx, "leagues", "id")
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{int64(10), int64(11)}, seasonIDs)

	teamIDs, err := st.DistinctIdentities(ctx, "teams", "id")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(100)}, teamIDs)

	playerIDs, err := st.DistinctIdentities(ctx, "players", "id")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(900)}, playerIDs)

	assert.Empty(t, result.Errors)
	assert.Greater(t, result.RecordsLoaded, 0)
}

func TestCascadeFromEmptyStoreWithEmptySource(t *testing.T) {
	st := openTestStore(t)
	result := runCascade(t, &fakeSource{}, st)

	// Only level 0 tasks could run; nothing seeded any identity sets.
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.TasksRun)
	assert.Equal(t, 1, result.NoData)
}

func TestCascadeContinuesPastMissingSiblings(t *testing.T) {
	src := worldSource()
	// A second country whose league fetch returns nothing must not stop
	// the first country's cascade.
	src.countries = append(src.countries, store.Record{"id": json.Number("2"), "country": "Atlantis"})

	st := openTestStore(t)
	result := runCascade(t, src, st)

	assert.Equal(t, 1, count(src.calls, "leagues(1)"))
	assert.Equal(t, 1, count(src.calls, "leagues(2)"))
	assert.Equal(t, 1, count(src.calls, "teams(10,stats=true)"))
	assert.Empty(t, result.Errors)
}

func TestCascadeRerunIsIdempotentForKeyedTables(t *testing.T) {
	src := worldSource()
	st, path := openTestStoreAt(t)

	runCascade(t, src, st)
	runCascade(t, src, st)

	// Upsert-by-id: reruns do not duplicate keyed rows.
	seasonIDs, err := st.DistinctIdentities(context.Background(), "leagues", "id")
	require.NoError(t, err)
	assert.Len(t, seasonIDs, 2)

	rec := queryRow(t, path, "countries", 1)
	assert.Equal(t, "England", rec["country"])
}

func count(calls []string, want string) int {
	n := 0
	for _, c := range calls {
		if c == want {
			n++
		}
	}
	return n
}
