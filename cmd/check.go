package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"panelctl/internal/cli"
	"panelctl/internal/config"
	"panelctl/internal/deps"
	"panelctl/internal/interpreter"
	"panelctl/internal/runner"
)

func newCheckCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the backend can be started",
		Long: `Looks for a usable Python 3 interpreter the same way serve does and
reports which one would be used, together with the dependency manifest and
the addresses the backend would bind and be probed on.

Exits non-zero when no interpreter is found.`,
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

			report, checkErr := buildCheckReport(ctx, cfg, runner.New())
			if err := cli.RenderCheck(cmd.OutOrStdout(), report, format); err != nil {
				return err
			}
			return checkErr
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(cli.OutputFormatTable), "Output format (table, json, yaml)")
	return cmd
}

func buildCheckReport(ctx context.Context, cfg config.SupervisorConfig, r runner.Runner) (cli.CheckReport, error) {
	installer := deps.NewInstaller(cfg, r)
	report := cli.CheckReport{
		Manifest:            installer.ManifestPath(),
		InstallDependencies: cfg.Worker.ShouldInstallDependencies(),
		Autostart:           cfg.ShouldAutostart(),
		BindHost:            cfg.BindHost(),
		ProbeURL:            cfg.ProbeURL(),
	}
	if _, err := os.Stat(report.Manifest); err == nil {
		report.ManifestFound = true
	}

	locator, err := interpreter.NewLocator(cfg, r)
	if err != nil {
		report.Error = err.Error()
		return report, err
	}

	interp, err := locator.Locate(ctx)
	if err != nil {
		var nf *interpreter.NotFoundError
		if errors.As(err, &nf) {
			report.Tried = nf.Tried
		}
		report.Error = err.Error()
		return report, err
	}

	report.Interpreter = interp.Path
	report.Version = interp.Version.String()
	report.Kind = string(interp.Kind)
	return report, nil
}
