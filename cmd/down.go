package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Destroy the server's active preview sandbox",
	Args:  cobra.NoArgs,
	RunE:  runDown,
}

func init() {
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c := newClient(cfg)
	logging.Debug("destroying session", "server", c.BaseURL)

	resp, err := c.Destroy(cmd.Context())
	if err != nil {
		return err
	}

	logSuccess("Sandbox %s destroyed", resp.SessionID)
	return nil
}
