package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/audit"
)

var auditLogCmd = &cobra.Command{
	Use:   "audit-log [session]",
	Short: "Display the bootstrap audit trail",
	Long: `Display the recorded bootstrap events from the local state directory.

With a session id only that session's events are shown; otherwise the most
recent events across all sessions.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditLog,
}

var (
	auditLogJSON  bool
	auditLogLimit int
)

func init() {
	auditLogCmd.Flags().BoolVar(&auditLogJSON, "json", false, "Output events as JSON lines")
	auditLogCmd.Flags().IntVarP(&auditLogLimit, "limit", "n", 50, "Maximum number of events when no session is given (0 for all)")
	rootCmd.AddCommand(auditLogCmd)
}

func runAuditLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	auditLogger := audit.NewLogger(cfg.State.Dir)

	var events []audit.Event
	if len(args) == 1 {
		events, err = auditLogger.Events(args[0])
	} else {
		events, err = auditLogger.Recent(auditLogLimit)
	}
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(events) == 0 {
		if len(args) == 1 {
			logInfo("No events found for session %s", args[0])
		} else {
			logInfo("No events recorded in %s", auditLogger.Path())
		}
		return nil
	}

	out := cmd.OutOrStdout()
	for _, e := range events {
		if auditLogJSON {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			fmt.Fprintln(out, string(data))
			continue
		}

		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		line := fmt.Sprintf("[%s] %-9s %s", ts, e.Type, e.Session)
		if e.Level != "" {
			line += " " + e.Level
		}
		if e.Attempt > 0 {
			line += fmt.Sprintf(" #%d", e.Attempt)
		}
		if e.Details != "" {
			line += fmt.Sprintf(" (%s)", e.Details)
		}
		fmt.Fprintln(out, line)
	}

	return nil
}
