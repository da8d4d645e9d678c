/*
main.go - Application entry point

PURPOSE:
  Command-line front end for the lesson scheduling engine. The root command
  loads configuration and opens the store; subcommands do the work.

COMMANDS:
  serve      Run the HTTP API (and the reminder job when enabled)
  export     Write matching lessons as an iCalendar file
  recurring  Apply a recurring plan from a JSON file

GLOBAL FLAGS:
  --config     YAML config path (default: lesson-engine.yaml, created on first run)
  --db         SQLite database path, overrides config. ":memory:" for in-memory
  --log-level  DEBUG, INFO, WARN or ERROR, overrides config

EXAMPLES:
  # Run the API on the configured address
  ./server serve

  # Run on a different address with an in-memory database
  ./server serve --listen=:3000 --db=":memory:"

  # Export Ann's February lessons
  ./server export --person=Ann --date-range=2026-02-01,2026-02-28 -o ann.ics

  # Create a term of Monday/Wednesday lessons
  ./server recurring plan.json

SEE ALSO:
  - config/config.go: Configuration file
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/lesson-engine/config"
	"github.com/warp/lesson-engine/lessons"
	"github.com/warp/lesson-engine/store/sqlite"
)

var (
	configPath string
	dbPath     string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Lesson scheduling engine",
	Long: `Books tutoring lessons on a single timeline, expands weekly plans,
finds free slots and reports income. Runs as an HTTP API or one-shot commands.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "lesson-engine.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is everything a subcommand needs, opened from config and flags.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *sqlite.Store
	sched  *lessons.Scheduler
}

func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	store, err := sqlite.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	cached, err := lessons.NewCachedStore(store, cfg.RosterCacheSize)
	if err != nil {
		store.Close()
		return nil, err
	}

	sched := lessons.NewScheduler(cached, logger)
	sched.DefaultColor = cfg.DefaultColor

	logger.Debug("store opened", "database", cfg.Database, "roster_cache", cfg.RosterCacheSize)
	return &app{cfg: cfg, logger: logger, store: store, sched: sched}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing database", "error", err)
	}
}
