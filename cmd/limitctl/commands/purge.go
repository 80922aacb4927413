package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPurgeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove expired windows",
		Long:  "Remove every window whose period has ended. Redis and DynamoDB expire windows on their own, so purge is a no-op there.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			removed, err := store.PurgeExpired(ctx, time.Now(), cfg.RateLimit.Window)
			if err != nil {
				return fmt.Errorf("purge windows: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired windows.\n", removed)
			return nil
		},
	}
}
