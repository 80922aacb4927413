// Package commands implements the limitctl subcommands. Every command reads
// the same configuration as the server, so it talks to the same store.
package commands

import (
	"context"
	"fmt"

	"gatekeeper/internal/config"
	"gatekeeper/internal/models"
	"gatekeeper/internal/storage"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	configFile string
	envFile    string
}

// NewRootCmd creates the limitctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "limitctl",
		Short:         "Administration tool for gatekeeper rate limit windows",
		Long:          "Inspect, reset and purge the rate limit windows gatekeeper keeps per client and path.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file with GATEKEEPER_* overrides")

	cmd.AddCommand(newInspectCmd(opts))
	cmd.AddCommand(newResetCmd(opts))
	cmd.AddCommand(newPurgeCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

func (o *globalOptions) loadConfig() (*models.Config, error) {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore loads the configuration and connects to its store. The caller
// closes the store.
func (o *globalOptions) openStore(ctx context.Context) (*models.Config, storage.Store, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.Type == models.StorageTypeMemory {
		return nil, nil, fmt.Errorf("storage type %q lives inside the server process; limitctl needs a shared store", cfg.Storage.Type)
	}

	// No background cleanup for a short-lived CLI process.
	factory := storage.NewFactory(cfg.RateLimit)
	factory.CleanupInterval = 0

	store, err := factory.Create(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to storage: %w", err)
	}
	return cfg, store, nil
}
