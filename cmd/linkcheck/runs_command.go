package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"linkcheck/internal/api"
	"linkcheck/internal/resultstore"
	"linkcheck/internal/textutil"
)

// runHistory is satisfied by the daemon API client and by the local store.
type runHistory interface {
	Runs(ctx context.Context, limit int) ([]api.RunSummary, error)
	Run(ctx context.Context, id string) (api.RunDetailResponse, error)
}

type storeHistory struct {
	store *resultstore.Store
}

func (h storeHistory) Runs(ctx context.Context, limit int) ([]api.RunSummary, error) {
	runs, err := h.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	return api.FromRunSummaries(runs), nil
}

func (h storeHistory) Run(ctx context.Context, id string) (api.RunDetailResponse, error) {
	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		return api.RunDetailResponse{}, err
	}
	records, err := h.store.Records(ctx, id)
	if err != nil {
		return api.RunDetailResponse{}, err
	}
	return api.RunDetailResponse{Run: api.FromRunSummary(run), Records: records}, nil
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var remote bool
	var jsonOut bool

	withHistory := func(fn func(runHistory) error) error {
		if remote {
			return fn(ctx.apiClient())
		}
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return err
		}
		if !cfg.Results.Enabled {
			return fmt.Errorf("run history is disabled in configuration; use --remote to query the daemon")
		}
		store, err := resultstore.Open(cfg.StorePath())
		if err != nil {
			return fmt.Errorf("open result store: %w", err)
		}
		defer store.Close()
		return fn(storeHistory{store: store})
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(func(history runHistory) error {
				runs, err := history.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printResult(cmd, jsonOut, api.RunsResponse{Runs: runs}, func(out io.Writer) {
					if len(runs) == 0 {
						fmt.Fprintln(out, "No saved runs")
						return
					}
					fmt.Fprintln(out, renderRuns(runs))
				})
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one saved run and its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(func(history runHistory) error {
				detail, err := history.Run(cmd.Context(), args[0])
				if errors.Is(err, resultstore.ErrRunNotFound) {
					return fmt.Errorf("run %s not found", args[0])
				}
				if err != nil {
					return err
				}
				return printResult(cmd, jsonOut, detail, func(out io.Writer) {
					fmt.Fprintln(out, renderValueLine("Run", detail.Run.ID))
					fmt.Fprintln(out, renderValueLine("Article", detail.Run.ArticleURL))
					fmt.Fprintln(out, renderValueLine("Started", detail.Run.StartedAt))
					fmt.Fprintln(out, renderValueLine("Status", runState(detail.Run)))
					printRecords(out, detail.Records)
				})
			})
		},
	}

	runsCmd.PersistentFlags().BoolVar(&remote, "remote", false, "Query the running daemon instead of the local store")
	runsCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	runsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	runsCmd.AddCommand(showCmd)
	return runsCmd
}

var runColumns = []column{
	{Header: "Run"},
	{Header: "Started"},
	{Header: "Article", MaxWidth: 48},
	{Header: "Links", Align: alignRight},
	{Header: "Emitted", Align: alignRight},
	{Header: "Dropped", Align: alignRight},
	{Header: "Missing", Align: alignRight},
	{Header: "Status"},
}

func renderRuns(runs []api.RunSummary) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.StartedAt,
			textutil.Truncate(run.ArticleURL, 96),
			strconv.Itoa(run.URLCount),
			strconv.Itoa(run.Emitted),
			strconv.Itoa(run.Dropped),
			strconv.Itoa(run.Missing),
			runState(run),
		})
	}
	return renderTable(runColumns, rows, nil)
}

func runState(run api.RunSummary) string {
	return textutil.Ternary(run.Cancelled, "cancelled", "complete")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
