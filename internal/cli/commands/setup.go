package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/gridview/internal/cli/config"
	"github.com/leapstack-labs/gridview/internal/grid"
	"github.com/leapstack-labs/gridview/internal/state"
	"github.com/leapstack-labs/gridview/pkg/adapter"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	Adapter adapter.Adapter
	Store   *state.SQLiteStore
}

// NewCommandContext connects to the target database and opens the state
// store. Returns the context and a cleanup function that must be called
// (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutAdapter(cmd)

	db, err := adapter.Open(cmd.Context(), cc.Cfg.Target.AdapterConfig(), cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Adapter = db

	store, err := state.Open(cc.Cfg.StatePath)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to open state store: %w", err)
	}
	cc.Store = store

	cleanup := func() {
		_ = store.Close()
		_ = db.Close()
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutAdapter creates a CommandContext without a
// database connection. Useful for commands that only touch the state store.
func NewCommandContextWithoutAdapter(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:    getConfig(),
		Logger: config.GetLogger(cmd.Context()),
	}
}

// OpenStore opens the state store for a context created without one.
func (cc *CommandContext) OpenStore() (func(), error) {
	store, err := state.Open(cc.Cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	cc.Store = store
	return func() { _ = store.Close() }, nil
}

// OpenSession starts a grid session over table.
func (cc *CommandContext) OpenSession(ctx context.Context, table string) (*grid.Session, error) {
	return grid.Open(ctx, cc.Adapter, table, grid.Options{
		Viewport: cc.Cfg.Viewport,
		Store:    cc.Store,
		Logger:   cc.Logger,
	})
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to
// environment variables with defaults.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	cfg := &config.Config{
		StatePath: getEnvOrDefault("GRIDVIEW_STATE_PATH", config.DefaultStateFile),
		Verbose:   os.Getenv("GRIDVIEW_VERBOSE") == "true",
		Target: &config.TargetConfig{
			Type:     getEnvOrDefault("GRIDVIEW_TARGET__TYPE", "duckdb"),
			Database: os.Getenv("GRIDVIEW_TARGET__DATABASE"),
		},
	}
	cfg.Viewport.ApplyDefaults()
	return cfg
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
