package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"panelctl/internal/cli"
)

func newStatusCmd() *cobra.Command {
	var (
		output  string
		retries int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe a running backend",
		Long: `Sends a GET request to the backend's local address and reports whether
it answers. Any 2xx, 3xx or 4xx answer counts as up. Connection errors and
5xx answers are retried before giving up.

Exits non-zero when the backend is down.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			status := cli.NewStatusClient(cfg.ProbeURL(), retries, timeout).Check(ctx)
			if err := cli.RenderStatus(cmd.OutOrStdout(), status, format); err != nil {
				return err
			}
			if !status.Alive {
				return fmt.Errorf("backend at %s is not reachable", status.URL)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(cli.OutputFormatTable), "Output format (table, json, yaml)")
	cmd.Flags().IntVar(&retries, "retries", 3, "Number of retries on connection errors and 5xx answers")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "Timeout of each request")
	return cmd
}
