// Package cli implements the classmate command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/classmate/internal/config"
	"github.com/ashureev/classmate/internal/store"
)

// app carries what every subcommand needs after the root pre-run.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "classmate",
		Short:         "Conversational learning bot",
		Long:          "Classmate serves bite-sized lessons and quizzes over chat.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().String("db", "", "Path to SQLite database file (overrides DB_PATH)")
	root.PersistentFlags().String("env-file", ".env", "Dotenv file to load before reading the environment")

	root.AddCommand(newServeCommand(a))
	root.AddCommand(newSeedCommand(a))
	root.AddCommand(newChatCommand(a))
	return root
}

// Execute runs the command tree and reports a failure on stderr.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *app) init(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	envErr := godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DBPath = p
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	if envErr != nil {
		slog.Debug("No .env file found, using environment variables", "path", envFile)
	}
	return nil
}

// openStore opens and checks the database.
func (a *app) openStore(cmd *cobra.Command) (*store.SQLiteStore, error) {
	repo, err := store.NewSQLite(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := repo.Ping(cmd.Context()); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("database health check failed: %w", err)
	}
	return repo, nil
}

func closeStore(repo *store.SQLiteStore) {
	if err := repo.Close(); err != nil {
		slog.Error("Failed to close repository", "error", err)
	}
}
