package ingest

import (
	"context"
	"log/slog"

	"github.com/premwatch/footydata/internal/store"
)

// Cascade runs the full dependency graph with no manual ID input. Each
// level's task parameters are the distinct identities already persisted by
// the previous level, so the store itself is the work queue: interrupting
// and restarting re-derives the pending set and re-runs idempotently
// (upsert-by-id), with the documented exception of the identity-less
// aggregate stats tables.
type Cascade struct {
	registry *Registry
	store    *store.Store
	logger   *slog.Logger
}

// NewCascade wires a cascade over an existing task registry. The cascade
// only reads the registry; the task definitions are shared verbatim with
// ad-hoc invocation so both modes normalize records identically.
func NewCascade(registry *Registry, st *store.Store, logger *slog.Logger) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascade{registry: registry, store: st, logger: logger}
}

// seasonTasks are the level-2 tasks keyed by season id. Order matters only
// for readability of the logs; the tasks are independent.
var seasonTasks = []string{"league_stats", "schedules", "teams", "players", "referees", "league_table"}

// Run executes all five levels in order, strictly sequentially. Failure of
// one identity's task is recorded and never aborts the cascade for sibling
// identities. The only errors that stop a level early are store failures
// while deriving the next identity set.
func (c *Cascade) Run(ctx context.Context) Result {
	var result Result

	// Level 0: no dependencies.
	c.logger.Info("cascade level 0: countries")
	result.Observe("countries", c.registry.Run(ctx, "countries", nil))

	// Level 1: leagues per persisted country.
	c.logger.Info("cascade level 1: leagues per country")
	for _, countryID := range c.identities(ctx, &result, "countries", "id") {
		out := c.registry.Run(ctx, "leagues", Params{
			"country_id":  countryID,
			"chosen_only": false,
		})
		result.Observe("leagues", out)
	}

	// Level 2: season-keyed resources per persisted league season.
	c.logger.Info("cascade level 2: season resources per league")
	for _, seasonID := range c.identities(ctx, &result, "leagues", "id") {
		for _, name := range seasonTasks {
			out := c.registry.Run(ctx, name, Params{
				"season_id": seasonID,
				"stats":     true,
			})
			result.Observe(name, out)
		}
	}

	// Level 3: team and match detail per persisted team/match.
	c.logger.Info("cascade level 3: team and match details")
	for _, teamID := range c.identities(ctx, &result, "teams", "id") {
		result.Observe("team_data", c.registry.Run(ctx, "team_data", Params{"team_id": teamID}))
		result.Observe("team_form", c.registry.Run(ctx, "team_form", Params{"team_id": teamID}))
	}
	for _, matchID := range c.identities(ctx, &result, "matches", "id") {
		result.Observe("match_details", c.registry.Run(ctx, "match_details", Params{"match_id": matchID}))
	}

	// Level 4: player and referee stats per persisted player/referee.
	c.logger.Info("cascade level 4: player and referee stats")
	for _, playerID := range c.identities(ctx, &result, "players", "id") {
		result.Observe("player_stats", c.registry.Run(ctx, "player_stats", Params{"player_id": playerID}))
	}
	for _, refereeID := range c.identities(ctx, &result, "referees", "id") {
		result.Observe("referee_stats", c.registry.Run(ctx, "referee_stats", Params{"referee_id": refereeID}))
	}

	c.logger.Info("cascade complete", "summary", result.Summary())
	return result
}

// identities reads the distinct identity values feeding the next level. A
// table that does not exist yet contributes nothing; a store failure is
// recorded and likewise yields nothing, skipping the dependent tasks.
func (c *Cascade) identities(ctx context.Context, result *Result, table, column string) []any {
	ids, err := c.store.DistinctIdentities(ctx, table, column)
	if err != nil {
		result.AddErrorf("identities of %s.%s: %v", table, column, err)
		return nil
	}
	return ids
}
