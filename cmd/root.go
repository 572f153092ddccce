package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
	configPath string
	serverAddr string
)

var rootCmd = &cobra.Command{
	Use:   "forage-preview",
	Short: "Firefly Forage live preview sandboxes",
	Long: `forage-preview boots a disposable sandbox running a Vite + React dev
server and hands back its public preview URL.

Only one preview session exists at a time; creating a new one tears the
previous one down. Each bootstrap:
  - Creates a fresh sandbox environment (e2b or a local container)
  - Writes the project scaffold
  - Installs dependencies (retried, failures are tolerated)
  - Starts the dev server detached and waits for it to settle`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose, jsonOutput, os.Stderr)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.toml (default /etc/forage-preview/config.toml)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "Address of a running forage-preview server (default from config)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
	logError   = logging.UserError
)
