package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"linkcheck/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.apiClient().Status(cmd.Context())
			if err != nil && !errors.Is(err, api.ErrDaemonUnavailable) {
				return err
			}
			return printResult(cmd, jsonOut, status, func(out io.Writer) {
				colorize := shouldColorize(out)
				if err != nil {
					fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "Not running at "+ctx.daemonAddress(), colorize))
					return
				}
				for _, line := range statusLines(status, colorize) {
					fmt.Fprintln(out, line)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print status as JSON")
	return cmd
}

func statusLines(status api.StatusResponse, colorize bool) []string {
	lines := []string{
		renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize),
		renderValueLine("Address", status.Bind),
		renderValueLine("Sessions", strconv.Itoa(status.Sessions)),
	}
	if len(status.ActiveRuns) == 0 {
		lines = append(lines, renderStatusLine("Runs", statusInfo, "idle", colorize))
	} else {
		lines = append(lines, renderStatusLine("Runs", statusWarn, fmt.Sprintf("%d in progress", len(status.ActiveRuns)), colorize))
		for _, run := range status.ActiveRuns {
			lines = append(lines, fmt.Sprintf("%s  %s session %s since %s", statusIndent, run.RunID, run.SessionID, run.StartedAt))
		}
	}
	if status.StorePath != "" {
		lines = append(lines, renderValueLine("History", status.StorePath))
	} else {
		lines = append(lines, renderStatusLine("History", statusInfo, "disabled", colorize))
	}
	if status.ResultsFile != "" {
		lines = append(lines, renderValueLine("Results", status.ResultsFile))
	}
	lines = append(lines, renderValueLine("Lock", status.LockFilePath))
	return lines
}
