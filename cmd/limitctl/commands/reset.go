package commands

import (
	"fmt"

	"gatekeeper/internal/ratelimit"

	"github.com/spf13/cobra"
)

func newResetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <client> <path>",
		Short: "Delete the window for a client and path",
		Long:  "Delete the window so the client's next request to path starts a fresh window.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			key := ratelimit.Key{Client: args[0], Path: args[1]}
			if err := store.Reset(ctx, key.String()); err != nil {
				return fmt.Errorf("reset window: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Window for %s reset.\n", key)
			return nil
		},
	}
}
