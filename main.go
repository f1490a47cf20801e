package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "shortcut-panel",
	Short: "Serve the feedback shortcuts widget",
	Long: `shortcut-panel fetches prompt shortcuts from the feedback API and serves
them as a tabbed widget. Clicking a shortcut inserts its prompt into the
feedback text field; the last used tab and prompt are remembered.

Run without a subcommand to start the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the widget server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the shortcuts once and print them grouped",
	Args:  cobra.NoArgs,
	RunE:  runFetch,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the saved tab selection and last used prompt",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

var fetchJSON bool

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $SHORTCUT_PANEL_HOME/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "print the load result as JSON")

	rootCmd.AddCommand(serveCmd, fetchCmd, resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
