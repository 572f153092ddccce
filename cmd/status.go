package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/api"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/health"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the server's active preview sandbox",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var statusOutput string

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "Output format (text or json)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusOutput != "text" && statusOutput != "json" {
		return errors.ValidationError(fmt.Sprintf("invalid output format %q (must be text or json)", statusOutput))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resp, err := newClient(cfg).Status(cmd.Context())
	if err != nil {
		if errors.GetExitCode(err) == errors.ExitNoSession && statusOutput == "text" {
			logInfo("No active sandbox. Create one with: forage-preview up --remote")
			return nil
		}
		return err
	}

	out := cmd.OutOrStdout()
	if statusOutput == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printStatus(out, resp)
	return nil
}

func printStatus(out io.Writer, resp *api.StatusResponse) {
	s := resp.Session
	fmt.Fprintf(out, "Session: %s\n", s.ID)
	fmt.Fprintf(out, "Provider: %s\n", s.Provider)
	fmt.Fprintf(out, "Environment: %s\n", s.EnvironmentID)
	fmt.Fprintf(out, "URL: %s\n", s.URL)
	fmt.Fprintf(out, "Status: %s\n", s.Status)
	fmt.Fprintf(out, "Files: %d\n", resp.Files)
	fmt.Fprintf(out, "Created: %s\n", s.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(out)

	h := resp.Health
	if h == nil {
		return
	}
	fmt.Fprintln(out, "Health:")
	fmt.Fprintf(out, "  Summary: %s\n", formatStatus(h.Status))
	fmt.Fprintf(out, "  Uptime: %s\n", h.Uptime)
	fmt.Fprintf(out, "  Expires in: %s\n", h.ExpiresIn)
	fmt.Fprintf(out, "  Install: %s\n", outcomeOrPending(string(s.Install)))
	fmt.Fprintf(out, "  Dev server: %s\n", outcomeOrPending(string(s.Server)))
	if h.Probed {
		fmt.Fprintf(out, "  Process: %s\n", boolStatus(h.ServerAlive))
	}
}

func formatStatus(s health.Status) string {
	switch s {
	case health.StatusReady:
		return "✓ ready"
	case health.StatusDegraded:
		return "⚠ degraded"
	case health.StatusNotServing:
		return "✗ not serving"
	case health.StatusExpired:
		return "✗ expired"
	default:
		return string(s)
	}
}

func outcomeOrPending(s string) string {
	if s == "" {
		return "pending"
	}
	return s
}

func boolStatus(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}
