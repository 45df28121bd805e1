// Command footydata ingests FootyStats football data into a relational
// store whose schema evolves with the API.
//
// Usage:
//
//	footydata --db footystats.db run countries leagues --country-id 1
//	footydata --db footystats.db run teams --season-id 1625 --stats
//	footydata --db footystats.db cascade
//	footydata tasks
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/premwatch/footydata/internal/config"
	"github.com/premwatch/footydata/internal/footystats"
	"github.com/premwatch/footydata/internal/ingest"
	"github.com/premwatch/footydata/internal/store"
)

var (
	logLevel = new(slog.LevelVar)
	logger   = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	var dbDSN string

	root := &cobra.Command{
		Use:           "footydata",
		Short:         "FootyStats ingestion CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbDSN, "db", "", "SQLite path or Postgres DSN (default $FOOTYDATA_DB or footystats.db)")

	root.AddCommand(runCmd(&dbDSN))
	root.AddCommand(cascadeCmd(&dbDSN))
	root.AddCommand(tasksCmd())

	if err := root.Execute(); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// taskFlags are the resource-specific parameters shared by every task.
// Only flags the user actually set are forwarded, so each task sees just
// the arguments it was given.
type taskFlags struct {
	countryID  int64
	chosenOnly bool
	date       string
	seasonID   int64
	maxTime    int64
	stats      bool
	teamID     int64
	matchID    int64
	playerID   int64
	refereeID  int64
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.countryID, "country-id", 0, "filter leagues by country ISO number")
	cmd.Flags().BoolVar(&f.chosenOnly, "chosen-only", false, "fetch only leagues chosen on the account")
	cmd.Flags().StringVar(&f.date, "date", "", "date in YYYY-MM-DD format")
	cmd.Flags().Int64Var(&f.seasonID, "season-id", 0, "ID of the league season")
	cmd.Flags().Int64Var(&f.maxTime, "max-time", 0, "unix timestamp capping fetched data")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "include detailed team stats")
	cmd.Flags().Int64Var(&f.teamID, "team-id", 0, "ID of the team")
	cmd.Flags().Int64Var(&f.matchID, "match-id", 0, "ID of the match")
	cmd.Flags().Int64Var(&f.playerID, "player-id", 0, "ID of the player")
	cmd.Flags().Int64Var(&f.refereeID, "referee-id", 0, "ID of the referee")
}

func (f *taskFlags) params(cmd *cobra.Command) ingest.Params {
	args := ingest.Params{}
	set := map[string]any{
		"country-id":  f.countryID,
		"chosen-only": f.chosenOnly,
		"date":        f.date,
		"season-id":   f.seasonID,
		"max-time":    f.maxTime,
		"stats":       f.stats,
		"team-id":     f.teamID,
		"match-id":    f.matchID,
		"player-id":   f.playerID,
		"referee-id":  f.refereeID,
	}
	names := map[string]string{
		"country-id":  "country_id",
		"chosen-only": "chosen_only",
		"date":        "date",
		"season-id":   "season_id",
		"max-time":    "max_time",
		"stats":       "stats",
		"team-id":     "team_id",
		"match-id":    "match_id",
		"player-id":   "player_id",
		"referee-id":  "referee_id",
	}
	for flag, value := range set {
		if cmd.Flags().Changed(flag) {
			args[names[flag]] = value
		}
	}
	return args
}

func runCmd(dbDSN *string) *cobra.Command {
	flags := &taskFlags{}
	cmd := &cobra.Command{
		Use:   "run TASK...",
		Short: "Run one or more named ingestion tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, taskNames []string) error {
			return withRegistry(*dbDSN, func(ctx context.Context, registry *ingest.Registry) error {
				args := flags.params(cmd)
				var result ingest.Result
				start := time.Now()
				for _, name := range taskNames {
					result.Observe(name, registry.Run(ctx, name, args))
				}
				logger.Info("run finished", "duration", time.Since(start).Round(time.Second), "summary", result.Summary())
				for _, e := range result.Errors {
					logger.Error("task error", "error", e)
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func cascadeCmd(dbDSN *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cascade",
		Short: "Run the full cascading update of the entire database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(*dbDSN, func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				client := footystats.NewClient(cfg.APIBaseURL, cfg.APIKey, cfg.RequestsPerHour, logger)
				registry := ingest.NewRegistry(client, st, logger)
				cascade := ingest.NewCascade(registry, st, logger)

				start := time.Now()
				result := cascade.Run(ctx)
				logger.Info("cascade finished", "duration", time.Since(start).Round(time.Second), "summary", result.Summary())
				for _, e := range result.Errors {
					logger.Error("cascade error", "error", e)
				}
				return nil
			})
		},
	}
}

func tasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List registered ingestion tasks and their parameters",
		Run: func(cmd *cobra.Command, args []string) {
			registry := ingest.NewRegistry(nil, nil, logger)
			for _, name := range registry.Names() {
				task, _ := registry.Get(name)
				fmt.Println(name)
				for _, p := range task.Params() {
					marker := " "
					if p.Required {
						marker = "*"
					}
					fmt.Printf("  %s %-12s %s\n", marker, p.Name, p.Usage)
				}
			}
		},
	}
}

// withRegistry is withStore plus the client and task registry most
// commands need.
func withRegistry(dbDSN string, fn func(ctx context.Context, registry *ingest.Registry) error) error {
	return withStore(dbDSN, func(ctx context.Context, cfg *config.Config, st *store.Store) error {
		client := footystats.NewClient(cfg.APIBaseURL, cfg.APIKey, cfg.RequestsPerHour, logger)
		return fn(ctx, ingest.NewRegistry(client, st, logger))
	})
}

// withStore handles config loading, store opening, context cancellation,
// and closing the store before exit.
func withStore(dbDSN string, fn func(ctx context.Context, cfg *config.Config, st *store.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Debug {
		logLevel.Set(slog.LevelDebug)
	}
	if dbDSN == "" {
		dbDSN = cfg.DatabaseDSN
	}

	st, err := store.Open(dbDSN, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	logger.Info("store opened", "dsn", dbDSN)
	return fn(ctx, cfg, st)
}
