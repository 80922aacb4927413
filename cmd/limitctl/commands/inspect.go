package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/storage"

	"github.com/spf13/cobra"
)

type windowReport struct {
	Key       string    `json:"key"`
	Count     int64     `json:"count"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Start     time.Time `json:"window_start"`
	ResetAt   time.Time `json:"reset_at"`
	Expired   bool      `json:"expired"`
	Limited   bool      `json:"limited"`
}

func newInspectCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <client> <path>",
		Short: "Show the current window for a client and path",
		Long:  "Show the request count and reset time of the window for a client address and request path, e.g. 'inspect 203.0.113.9 /hello/Alice'.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			key := ratelimit.Key{Client: args[0], Path: args[1]}
			w, err := store.Get(ctx, key.String())
			if errors.Is(err, storage.ErrNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "No window for %s\n", key)
				return nil
			}
			if err != nil {
				return fmt.Errorf("get window: %w", err)
			}

			window := cfg.RateLimit.Window
			report := windowReport{
				Key:       key.String(),
				Count:     w.Count,
				Limit:     cfg.RateLimit.Limit,
				Remaining: max(0, cfg.RateLimit.Limit-int(w.Count)),
				Start:     w.Start,
				ResetAt:   w.ResetAt(window),
				Expired:   w.Expired(time.Now(), window),
			}
			report.Limited = !report.Expired && w.Count > int64(cfg.RateLimit.Limit)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Window for %s:\n", report.Key)
			fmt.Fprintf(out, "  Count:     %d / %d\n", report.Count, report.Limit)
			fmt.Fprintf(out, "  Remaining: %d\n", report.Remaining)
			fmt.Fprintf(out, "  Started:   %s\n", report.Start.Format(time.RFC3339))
			fmt.Fprintf(out, "  Resets:    %s\n", report.ResetAt.Format(time.RFC3339))
			fmt.Fprintf(out, "  Expired:   %t\n", report.Expired)
			fmt.Fprintf(out, "  Limited:   %t\n", report.Limited)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the window as JSON")
	return cmd
}
