package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var manifestCmd = &cobra.Command{
	Use:     "manifest",
	Aliases: []string{"files"},
	Short:   "List the files written into the active sandbox",
	Args:    cobra.NoArgs,
	RunE:    runManifest,
}

func init() {
	rootCmd.AddCommand(manifestCmd)
}

func runManifest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resp, err := newClient(cfg).Files(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, f := range resp.Files {
		fmt.Fprintln(out, f)
	}
	return nil
}
