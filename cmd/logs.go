package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View the dev server output of the active sandbox",
	Args:  cobra.NoArgs,
	RunE:  runLogs,
}

var (
	logsLines  int
	logsStderr bool
)

func init() {
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "Number of lines to show")
	logsCmd.Flags().BoolVar(&logsStderr, "stderr", false, "Also show the dev server's stderr")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resp, err := newClient(cfg).Logs(cmd.Context(), logsLines)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resp.Stdout == "" {
		logInfo("No dev server output yet for sandbox %s", resp.SessionID)
	} else {
		fmt.Fprint(out, withNewline(resp.Stdout))
	}

	if logsStderr && resp.Stderr != "" {
		fmt.Fprintln(out, "--- stderr ---")
		fmt.Fprint(out, withNewline(resp.Stderr))
	}
	return nil
}

func withNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
