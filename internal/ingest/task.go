// Package ingest defines the ingestion tasks that move FootyStats resources
// into the record store, and the cascade that runs them in dependency order.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/premwatch/footydata/internal/store"
)

// Source is the capability interface the tasks consume: one fetch method
// per resource type. The production implementation is footystats.Client;
// tests substitute fakes.
type Source interface {
	Countries(ctx context.Context) ([]store.Record, error)
	Leagues(ctx context.Context, countryID int64, chosenOnly bool) ([]store.Record, error)
	Matches(ctx context.Context, date string) ([]store.Record, error)
	LeagueStats(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error)
	Schedule(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error)
	LeagueTeams(ctx context.Context, seasonID int64, includeStats bool, maxTime int64) ([]store.Record, error)
	LeaguePlayers(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error)
	LeagueReferees(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error)
	TeamData(ctx context.Context, teamID int64) ([]store.Record, error)
	TeamForm(ctx context.Context, teamID int64) ([]store.Record, error)
	MatchDetails(ctx context.Context, matchID int64) ([]store.Record, error)
	LeagueTable(ctx context.Context, seasonID, maxTime int64) ([]store.Record, error)
	PlayerStats(ctx context.Context, playerID int64) ([]store.Record, error)
	RefereeStats(ctx context.Context, refereeID int64) ([]store.Record, error)
	BTTSStats(ctx context.Context) ([]store.Record, error)
	Over25Stats(ctx context.Context) ([]store.Record, error)
}

// Param declares one named parameter a task understands.
type Param struct {
	Name     string
	Usage    string
	Required bool
}

// Params carries the arguments for a single task invocation.
type Params map[string]any

// Int64 reads a numeric parameter, tolerating the integer representations
// that arrive from CLI flags, JSON payloads, and database scans.
func (p Params) Int64(name string) (int64, bool) {
	switch v := p[name].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// Bool reads a boolean parameter; absent or mistyped values read false.
func (p Params) Bool(name string) bool {
	v, _ := p[name].(bool)
	return v
}

// String reads a string parameter; absent values read empty.
func (p Params) String(name string) string {
	v, _ := p[name].(string)
	return v
}

// Status is the terminal state of one task invocation.
type Status int

const (
	// StatusLoaded means records were fetched and persisted.
	StatusLoaded Status = iota
	// StatusNoData means the source returned nothing usable; this is a
	// normal outcome, not a defect.
	StatusNoData
	// StatusSkipped means a required parameter was missing and the task
	// did not run.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusNoData:
		return "no_data"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome reports what one task invocation did.
type Outcome struct {
	Status  Status
	Table   string
	Records int
	Err     error
}

// Task is the contract every resource-type task implements: declare the
// parameters it understands, and run against a set of arguments.
type Task interface {
	Params() []Param
	Run(ctx context.Context, args Params) Outcome
}

// Registry is the closed name-to-task mapping built once at start-up. The
// cascade holds a read-only view of it; nothing mutates it after creation.
type Registry struct {
	tasks  map[string]Task
	logger *slog.Logger
}

// NewRegistry builds the full task set against a source and a store.
func NewRegistry(src Source, st *store.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	base := base{src: src, store: st, logger: logger}
	return &Registry{
		logger: logger,
		tasks: map[string]Task{
			"countries":     countriesTask{base},
			"leagues":       leaguesTask{base},
			"matches":       matchesTask{base},
			"league_stats":  leagueStatsTask{base},
			"schedules":     schedulesTask{base},
			"teams":         teamsTask{base},
			"players":       playersTask{base},
			"referees":      refereesTask{base},
			"team_data":     teamDataTask{base},
			"team_form":     teamFormTask{base},
			"match_details": matchDetailsTask{base},
			"league_table":  leagueTableTask{base},
			"player_stats":  playerStatsTask{base},
			"referee_stats": refereeStatsTask{base},
			"btts_stats":    bttsStatsTask{base},
			"over_25_stats": over25StatsTask{base},
		},
	}
}

// Get returns the named task.
func (r *Registry) Get(name string) (Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Names returns all registered task names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes one named task. Unknown names yield a skipped outcome so a
// batch of tasks can continue past a typo.
func (r *Registry) Run(ctx context.Context, name string, args Params) Outcome {
	task, ok := r.tasks[name]
	if !ok {
		return Outcome{Status: StatusSkipped, Err: fmt.Errorf("unknown task %q", name)}
	}
	out := task.Run(ctx, args)
	switch {
	case out.Err != nil:
		r.logger.Warn("task finished with error", "task", name, "status", out.Status.String(), "error", out.Err)
	default:
		r.logger.Info("task finished", "task", name, "status", out.Status.String(), "table", out.Table, "records", out.Records)
	}
	return out
}
