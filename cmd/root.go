package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"panelctl/internal/config"
	"panelctl/pkg/logging"
)

var (
	configPath string
	debug      bool
	logLevel   string
	logFormat  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "panelctl",
	Short: "Run and supervise the panel's Python backend",
	Long: `panelctl locates a Python 3 interpreter, installs the backend's
dependencies, starts the backend web service and keeps track of it until
it is stopped. It can also check the local setup and probe a running backend.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. a backend that fails to start)
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging(cmd)
	},
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "panelctl version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	// --debug wins over --log-level
	if debug {
		level = logging.LevelDebug
	}

	switch logging.Format(logFormat) {
	case logging.FormatText:
		logging.InitForCLI(level, cmd.ErrOrStderr())
	case logging.FormatJSON:
		logging.Init(level, cmd.ErrOrStderr(), logging.FormatJSON)
	default:
		return fmt.Errorf("unsupported log format %q (use text or json)", logFormat)
	}
	return nil
}

// loadConfig reads --config when given, the layered default files otherwise.
func loadConfig() (config.SupervisorConfig, error) {
	if configPath != "" {
		return config.LoadConfigFromPath(configPath)
	}
	return config.LoadConfig()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is ~/.config/panelctl/config.yaml layered with ./.panelctl/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", string(logging.FormatText), "Log output format (text or json)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
