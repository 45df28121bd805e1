package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/premwatch/footydata/internal/store"
)

// Shared parameter declarations. Tasks reference these instead of spelling
// their own copies so the CLI help and the cascade agree on names.
var (
	paramSeasonID  = Param{Name: "season_id", Usage: "ID of the league season", Required: true}
	paramMaxTime   = Param{Name: "max_time", Usage: "unix timestamp capping fetched data"}
	paramCountryID = Param{Name: "country_id", Usage: "filter leagues by country ISO number"}
	paramChosen    = Param{Name: "chosen_only", Usage: "fetch only leagues chosen on the account"}
	paramDate      = Param{Name: "date", Usage: "date in YYYY-MM-DD format"}
	paramStats     = Param{Name: "stats", Usage: "include detailed team stats"}
	paramTeamID    = Param{Name: "team_id", Usage: "ID of the team", Required: true}
	paramMatchID   = Param{Name: "match_id", Usage: "ID of the match", Required: true}
	paramPlayerID  = Param{Name: "player_id", Usage: "ID of the player", Required: true}
	paramRefereeID = Param{Name: "referee_id", Usage: "ID of the referee", Required: true}
)

// base carries the collaborators every task needs.
type base struct {
	src    Source
	store  *store.Store
	logger *slog.Logger
}

// load persists records into table and summarizes the invocation. A fetch
// error or an empty payload is a no-data outcome; a store failure surfaces
// in Outcome.Err so the caller can decide whether to retry the record set.
func (b base) load(ctx context.Context, table string, records []store.Record, fetchErr error) Outcome {
	if fetchErr != nil {
		b.logger.Warn("fetch failed", "table", table, "error", fetchErr)
		return Outcome{Status: StatusNoData, Table: table, Err: fetchErr}
	}
	if len(records) == 0 {
		return Outcome{Status: StatusNoData, Table: table}
	}

	out := Outcome{Status: StatusLoaded, Table: table}
	for _, rec := range records {
		if err := b.store.Upsert(ctx, table, rec); err != nil {
			out.Err = fmt.Errorf("upsert into %s: %w", table, err)
			return out
		}
		out.Records++
	}
	return out
}

// skipped reports a missing required parameter without failing the batch.
func skipped(table, param string) Outcome {
	return Outcome{
		Status: StatusSkipped,
		Table:  table,
		Err:    fmt.Errorf("%s is required", param),
	}
}

// ---------------------------------------------------------------------------
// Level 0: no dependencies
// ---------------------------------------------------------------------------

type countriesTask struct{ base }

func (countriesTask) Params() []Param { return nil }

func (t countriesTask) Run(ctx context.Context, _ Params) Outcome {
	records, err := t.src.Countries(ctx)
	return t.load(ctx, "countries", records, err)
}

type matchesTask struct{ base }

func (matchesTask) Params() []Param { return []Param{paramDate} }

func (t matchesTask) Run(ctx context.Context, args Params) Outcome {
	records, err := t.src.Matches(ctx, args.String("date"))
	return t.load(ctx, "matches", records, err)
}

type bttsStatsTask struct{ base }

func (bttsStatsTask) Params() []Param { return nil }

func (t bttsStatsTask) Run(ctx context.Context, _ Params) Outcome {
	records, err := t.src.BTTSStats(ctx)
	return t.load(ctx, "btts_stats", records, err)
}

type over25StatsTask struct{ base }

func (over25StatsTask) Params() []Param { return nil }

func (t over25StatsTask) Run(ctx context.Context, _ Params) Outcome {
	records, err := t.src.Over25Stats(ctx)
	return t.load(ctx, "over_25_stats", records, err)
}

// ---------------------------------------------------------------------------
// Level 1: keyed by country id
// ---------------------------------------------------------------------------

type leaguesTask struct{ base }

func (leaguesTask) Params() []Param { return []Param{paramCountryID, paramChosen} }

func (t leaguesTask) Run(ctx context.Context, args Params) Outcome {
	countryID, _ := args.Int64("country_id")
	records, err := t.src.Leagues(ctx, countryID, args.Bool("chosen_only"))
	if err != nil {
		return t.load(ctx, "leagues", nil, err)
	}
	return t.load(ctx, "leagues", flattenLeagueSeasons(records), nil)
}

// flattenLeagueSeasons expands each league's nested season list into flat
// records: one row per season, carrying the parent league's descriptive
// fields and keyed by the season's own id.
func flattenLeagueSeasons(leagues []store.Record) []store.Record {
	var flat []store.Record
	for _, league := range leagues {
		seasons, ok := league["season"].([]any)
		if !ok {
			continue
		}
		for _, raw := range seasons {
			season, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			flat = append(flat, store.Record{
				"id":          season["id"],
				"season":      season["year"],
				"name":        league["name"],
				"country":     league["country"],
				"league_name": league["league_name"],
				"image":       league["image"],
			})
		}
	}
	return flat
}

// ---------------------------------------------------------------------------
// Level 2: keyed by season id
// ---------------------------------------------------------------------------

type leagueStatsTask struct{ base }

func (leagueStatsTask) Params() []Param { return []Param{paramSeasonID, paramMaxTime} }

func (t leagueStatsTask) Run(ctx context.Context, args Params) Outcome {
	seasonID, ok := args.Int64("season_id")
	if !ok {
		return skipped("league_stats", "season_id")
	}
	maxTime, _ := args.Int64("max_time")
	records, err := t.src.LeagueStats(ctx, seasonID, maxTime)
	return t.load(ctx, "league_stats", records, err)
}

type schedulesTask struct{ base }

func (schedulesTask) Params() []Param { return []Param{paramSeasonID, paramMaxTime} }

// schedulesTask writes into the matches table: a schedule entry and a
// today's-match entry for the same fixture share an id and must dedupe.
func (t schedulesTask) Run(ctx context.Context, args Params) Outcome {
	seasonID, ok := args.Int64("season_id")
	if !ok {
		return skipped("matches", "season_id")
	}
	maxTime, _ := args.Int64("max_time")
	records, err := t.src.Schedule(ctx, seasonID, maxTime)
	return t.load(ctx, "matches", records, err)
}

type teamsTask struct{ base }

func (teamsTask) Params() []Param { return []Param{paramSeasonID, paramStats, paramMaxTime} }

func (t teamsTask) Run(ctx context.Context, args Params) Outcome {
	seasonID, ok := args.Int64("season_id")
	if !ok {
		return skipped("teams", "season_id")
	}
	maxTime, _ := args.Int64("max_time")
	records, err := t.src.LeagueTeams(ctx, seasonID, args.Bool("stats"), maxTime)
	if err != nil {
		return t.load(ctx, "teams", nil, err)
	}
	return t.load(ctx, "teams", hoistTeamStats(records), nil)
}

// hoistTeamStats lifts each team's nested stats object into the parent
// record under stats_-prefixed keys, keeping the table flat.
func hoistTeamStats(teams []store.Record) []store.Record {
	out := make([]store.Record, 0, len(teams))
	for _, team := range teams {
		rec := make(store.Record, len(team))
		for k, v := range team {
			rec[k] = v
		}
		if stats, ok := rec["stats"].(map[string]any); ok {
			delete(rec, "stats")
			for k, v := range stats {
				rec["stats_"+k] = v
			}
		}
		out = append(out, rec)
	}
	return out
}

type playersTask struct{ base }

func (playersTask) Params() []Param { return []Param{paramSeasonID, paramMaxTime} }

func (t playersTask) Run(ctx context.Context, args Params) Outcome {
	seasonID, ok := args.Int64("season_id")
	if !ok {
		return skipped("players", "season_id")
	}
	maxTime, _ := args.Int64("max_time")
	records, err := t.src.LeaguePlayers(ctx, seasonID, maxTime)
	return t.load(ctx, "players", records, err)
}

type refereesTask struct{ base }

func (refereesTask) Params() []Param { return []Param{paramSeasonID, paramMaxTime} }

func (t refereesTask) Run(ctx context.Context, args Params) Outcome {
	seasonID, ok := args.Int64("season_id")
	if !ok {
		return skipped("referees", "season_id")
	}
	maxTime, _ := args.Int64("max_time")
	records, err := t.src.LeagueReferees(ctx, seasonID, maxTime)
	return t.load(ctx, "referees", records, err)
}

type leagueTableTask struct{ base }

func (leagueTableTask) Params() []Param { return []Param{paramSeasonID, paramMaxTime} }

func (t leagueTableTask) Run(ctx context.Context, args Params) Outcome {
	seasonID, ok := args.Int64("season_id")
	if !ok {
		return skipped("league_table", "season_id")
	}
	maxTime, _ := args.Int64("max_time")
	records, err := t.src.LeagueTable(ctx, seasonID, maxTime)
	return t.load(ctx, "league_table", records, err)
}

// ---------------------------------------------------------------------------
// Level 3: keyed by team id / match id
// ---------------------------------------------------------------------------

type teamDataTask struct{ base }

func (teamDataTask) Params() []Param { return []Param{paramTeamID} }

func (t teamDataTask) Run(ctx context.Context, args Params) Outcome {
	teamID, ok := args.Int64("team_id")
	if !ok {
		return skipped("teams", "team_id")
	}
	records, err := t.src.TeamData(ctx, teamID)
	if err != nil {
		return t.load(ctx, "teams", nil, err)
	}
	return t.load(ctx, "teams", hoistTeamStats(records), nil)
}

type teamFormTask struct{ base }

func (teamFormTask) Params() []Param { return []Param{paramTeamID} }

// teamFormTask upserts the lastx form records into the teams table by team
// id, the same table mapping player_stats and referee_stats use for their
// parent resources.
func (t teamFormTask) Run(ctx context.Context, args Params) Outcome {
	teamID, ok := args.Int64("team_id")
	if !ok {
		return skipped("teams", "team_id")
	}
	records, err := t.src.TeamForm(ctx, teamID)
	if err != nil {
		return t.load(ctx, "teams", nil, err)
	}
	return t.load(ctx, "teams", hoistTeamStats(records), nil)
}

type matchDetailsTask struct{ base }

func (matchDetailsTask) Params() []Param { return []Param{paramMatchID} }

func (t matchDetailsTask) Run(ctx context.Context, args Params) Outcome {
	matchID, ok := args.Int64("match_id")
	if !ok {
		return skipped("match_details", "match_id")
	}
	records, err := t.src.MatchDetails(ctx, matchID)
	return t.load(ctx, "match_details", records, err)
}

// ---------------------------------------------------------------------------
// Level 4: keyed by player id / referee id
// ---------------------------------------------------------------------------

type playerStatsTask struct{ base }

func (playerStatsTask) Params() []Param { return []Param{paramPlayerID} }

func (t playerStatsTask) Run(ctx context.Context, args Params) Outcome {
	playerID, ok := args.Int64("player_id")
	if !ok {
		return skipped("players", "player_id")
	}
	records, err := t.src.PlayerStats(ctx, playerID)
	return t.load(ctx, "players", records, err)
}

type refereeStatsTask struct{ base }

func (refereeStatsTask) Params() []Param { return []Param{paramRefereeID} }

func (t refereeStatsTask) Run(ctx context.Context, args Params) Outcome {
	refereeID, ok := args.Int64("referee_id")
	if !ok {
		return skipped("referees", "referee_id")
	}
	records, err := t.src.RefereeStats(ctx, refereeID)
	return t.load(ctx, "referees", records, err)
}
