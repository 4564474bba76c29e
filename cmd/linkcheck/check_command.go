package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"linkcheck/internal/article"
	"linkcheck/internal/catalog"
	"linkcheck/internal/config"
	"linkcheck/internal/extract"
	"linkcheck/internal/pipeline"
	"linkcheck/internal/resultstore"
	"linkcheck/internal/services"
	"linkcheck/internal/unshort"
)

type credentialFlags struct {
	accessKey   string
	secretKey   string
	partnerTag  string
	marketplace string
}

// resolve layers flags over the configured credentials.
func (f credentialFlags) resolve(cfg *config.Config) catalog.Credentials {
	creds := catalog.Credentials{
		AccessKey:   cfg.Catalog.AccessKey,
		SecretKey:   cfg.Catalog.SecretKey,
		PartnerTag:  cfg.Catalog.PartnerTag,
		Marketplace: cfg.Catalog.Marketplace,
	}
	if v := strings.TrimSpace(f.accessKey); v != "" {
		creds.AccessKey = v
	}
	if v := strings.TrimSpace(f.secretKey); v != "" {
		creds.SecretKey = v
	}
	if v := strings.TrimSpace(f.partnerTag); v != "" {
		creds.PartnerTag = v
	}
	if v := strings.TrimSpace(f.marketplace); v != "" {
		creds.Marketplace = v
	}
	if creds.Marketplace == "" {
		creds.Marketplace = "www.amazon.com"
	}
	return creds
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var creds credentialFlags
	var jsonOut bool
	var save bool

	cmd := &cobra.Command{
		Use:   "check <article-url>",
		Short: "Check every affiliate link in an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger()
			runner := newRunner(cfg, logger)
			progress := newProgressReporter(cmd.ErrOrStderr(), !jsonOut && shouldColorize(cmd.ErrOrStderr()))

			outcome, err := runner.Process(cmd.Context(), uuid.NewString(), pipeline.Request{
				ArticleURL:  strings.TrimSpace(args[0]),
				Credentials: creds.resolve(cfg),
			}, progress)
			progress.finish()
			if err != nil {
				return fmt.Errorf("check failed at %s stage: %w", services.FailureStage(err), err)
			}

			if save {
				if err := archiveOutcome(cmd.Context(), cfg, logger, outcome); err != nil {
					return err
				}
			}

			return printResult(cmd, jsonOut, outcome, func(out io.Writer) {
				printRecords(out, outcome.Records)
				printOutcomeSummary(out, outcome, shouldColorize(out))
			})
		},
	}

	cmd.Flags().StringVar(&creds.accessKey, "access-key", "", "Product Advertising API access key")
	cmd.Flags().StringVar(&creds.secretKey, "secret-key", "", "Product Advertising API secret key")
	cmd.Flags().StringVar(&creds.partnerTag, "partner-tag", "", "Associate partner tag")
	cmd.Flags().StringVar(&creds.marketplace, "marketplace", "", "Marketplace domain, e.g. www.amazon.de")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run outcome as JSON")
	cmd.Flags().BoolVar(&save, "save", false, "Record the run in history and the saved results file")
	return cmd
}

func printOutcomeSummary(out io.Writer, outcome *pipeline.Outcome, colorize bool) {
	valid := 0
	for _, rec := range outcome.Records {
		if rec.ValidOnAmazon {
			valid++
		}
	}
	stats := outcome.Stats
	kind := outcomeKind(valid, len(outcome.Records), stats.Dropped, stats.Missing)
	fmt.Fprintln(out, renderStatusLine("Result", kind, fmt.Sprintf("%d of %d links valid", valid, len(outcome.Records)), colorize))
	if stats.Dropped > 0 || stats.Missing > 0 {
		fmt.Fprintln(out, renderValueLine("Catalog", fmt.Sprintf("%d errors named no item, %d items missing from the response", stats.Dropped, stats.Missing)))
	}
	if outcome.Cancelled {
		fmt.Fprintln(out, renderStatusLine("Run", statusWarn, "cancelled; results are partial", colorize))
	}
}

func newRunner(cfg *config.Config, logger *slog.Logger) *pipeline.Runner {
	return pipeline.NewRunner(
		article.NewFromConfig(cfg.Scraper, logger),
		extract.New(unshort.NewFromConfig(cfg.Resolver, logger), logger),
		catalog.NewFromConfig(cfg.Catalog, logger),
		pipeline.WithLogger(logger),
		pipeline.WithRunnerBatchSize(cfg.Catalog.BatchSize),
	)
}

func archiveOutcome(ctx context.Context, cfg *config.Config, logger *slog.Logger, outcome *pipeline.Outcome) error {
	if !cfg.Results.Enabled {
		return fmt.Errorf("saved results are disabled in configuration")
	}
	store, err := resultstore.Open(cfg.StorePath())
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer store.Close()
	return resultstore.NewArchive(store, cfg.Results.ResultsFile, cfg.Results.MaxRuns, logger).Record(ctx, "", outcome)
}

// progressReporter keeps a single status line updated on a terminal.
type progressReporter struct {
	out     io.Writer
	enabled bool
	total   int
	sent    int
}

func newProgressReporter(out io.Writer, enabled bool) *progressReporter {
	return &progressReporter{out: out, enabled: enabled}
}

func (p *progressReporter) URLsScraped(_ context.Context, count int) error {
	p.total = count
	if p.enabled {
		fmt.Fprintf(p.out, "Found %d affiliate links, checking...", count)
	}
	return nil
}

func (p *progressReporter) Send(_ context.Context, _ pipeline.DisplayRecord) error {
	p.sent++
	if p.enabled {
		fmt.Fprintf(p.out, "\r\x1b[KChecked %d/%d", p.sent, p.total)
	}
	return nil
}

func (p *progressReporter) finish() {
	if p.enabled && (p.total > 0 || p.sent > 0) {
		fmt.Fprint(p.out, "\r\x1b[K")
	}
}
