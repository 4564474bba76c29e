package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"linkcheck/internal/resultstore"
)

func newReplayCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Print the most recently saved results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Results.Enabled {
				return fmt.Errorf("saved results are disabled in configuration")
			}
			records, err := resultstore.ReadResultsFile(cfg.Results.ResultsFile)
			if errors.Is(err, resultstore.ErrNoResults) {
				return fmt.Errorf("no saved results at %s", cfg.Results.ResultsFile)
			}
			if err != nil {
				return err
			}
			return printResult(cmd, jsonOut, records, func(out io.Writer) {
				printRecords(out, records)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print records as JSON")
	return cmd
}
