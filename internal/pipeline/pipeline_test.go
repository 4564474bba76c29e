package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"linkcheck/internal/article"
	"linkcheck/internal/catalog"
	"linkcheck/internal/extract"
	"linkcheck/internal/logging"
	"linkcheck/internal/pipeline"
	"linkcheck/internal/services"
)

var testCreds = catalog.Credentials{
	AccessKey:   "AKIDEXAMPLE",
	SecretKey:   "secret",
	PartnerTag:  "myid-20",
	Marketplace: "www.amazon.com",
}

type countingExtractor struct {
	results map[string]extract.Result
	calls   map[string]int
}

func newCountingExtractor(results map[string]extract.Result) *countingExtractor {
	return &countingExtractor{results: results, calls: map[string]int{}}
}

func (e *countingExtractor) Extract(_ context.Context, rawURL string) extract.Result {
	e.calls[rawURL]++
	if res, ok := e.results[rawURL]; ok {
		return res
	}
	return extract.Result{Tag: extract.NoTag}
}

type fakeCatalog struct {
	mu       sync.Mutex
	titles   map[string]string
	invalid  map[string]string
	extra    []catalog.ErrorData
	err      error
	requests [][]string
}

func (c *fakeCatalog) GetItems(_ context.Context, _ catalog.Credentials, req catalog.GetItemsRequest) (*catalog.GetItemsResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, append([]string(nil), req.ItemIDs...))
	if c.err != nil {
		return nil, c.err
	}
	resp := &catalog.GetItemsResponse{ItemsResult: &catalog.ItemsResult{}}
	for _, id := range req.ItemIDs {
		if title, ok := c.titles[id]; ok {
			resp.ItemsResult.Items = append(resp.ItemsResult.Items, catalog.Item{
				ASIN:     id,
				ItemInfo: &catalog.ItemInfo{Title: &catalog.DisplayValue{DisplayValue: title}},
			})
			continue
		}
		if code, ok := c.invalid[id]; ok {
			resp.Errors = append(resp.Errors, catalog.ErrorData{
				Code:    code,
				Message: fmt.Sprintf("The ItemId %s provided in the request is invalid.", id),
			})
		}
	}
	resp.Errors = append(resp.Errors, c.extra...)
	return resp, nil
}

func (c *fakeCatalog) sentIDs() []string {
	var all []string
	for _, r := range c.requests {
		all = append(all, r...)
	}
	return all
}

type recordingReporter struct {
	scraped []int
	records []pipeline.DisplayRecord
	onSend  func(n int)
}

func (r *recordingReporter) URLsScraped(_ context.Context, count int) error {
	r.scraped = append(r.scraped, count)
	return nil
}

func (r *recordingReporter) Send(_ context.Context, record pipeline.DisplayRecord) error {
	r.records = append(r.records, record)
	if r.onSend != nil {
		r.onSend(len(r.records))
	}
	return nil
}

type staticScraper struct {
	urls []article.CandidateURL
	err  error
}

func (s staticScraper) Scrape(context.Context, string) ([]article.CandidateURL, error) {
	return s.urls, s.err
}

func candidates(urls ...string) []article.CandidateURL {
	out := make([]article.CandidateURL, len(urls))
	for i, u := range urls {
		out[i] = article.CandidateURL{URL: u, Text: fmt.Sprintf("link %d", i)}
	}
	return out
}

func TestCollectASINsExtractsEachURLOnce(t *testing.T) {
	ex := newCountingExtractor(map[string]extract.Result{
		"u1": {ASIN: "B000000001", Tag: "a-20"},
		"u2": {ASIN: "B000000002", Tag: "b-20"},
	})
	run := pipeline.NewRun("run", ex)

	asins, err := run.CollectASINs(context.Background(), candidates("u1", "u2", "u1", "u3"))
	if err != nil {
		t.Fatalf("CollectASINs: %v", err)
	}
	if diff := cmp.Diff([]string{"B000000001", "B000000002", "B000000001", ""}, asins); diff != "" {
		t.Fatalf("asins mismatch (-want +got):\n%s", diff)
	}
	if ex.calls["u1"] != 1 {
		t.Fatalf("u1 extracted %d times", ex.calls["u1"])
	}
	entry, ok := run.URLEntry("u3")
	want := pipeline.URLEntry{Tag: extract.NoTag, ItemName: pipeline.ItemNameUnprocessed}
	if !ok || entry != want {
		t.Fatalf("unexpected entry for u3: %+v ok=%v", entry, ok)
	}
}

func TestCollectASINsStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := newCountingExtractor(nil)
	run := pipeline.NewRun("run", ex)

	if _, err := run.CollectASINs(ctx, candidates("u1", "u2")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(ex.calls) != 0 {
		t.Fatalf("extractor called after cancellation: %v", ex.calls)
	}
}

func TestDedupe(t *testing.T) {
	got := pipeline.Dedupe([]string{"B2", "", "B1", "B2", "B3", "", "B1"})
	if diff := cmp.Diff([]string{"B2", "B1", "B3"}, got); diff != "" {
		t.Fatalf("dedupe mismatch (-want +got):\n%s", diff)
	}
	if got := pipeline.Dedupe(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestReconcileSendsEveryUniqueASINInBatches(t *testing.T) {
	unique := make([]string, 23)
	titles := map[string]string{}
	for i := range unique {
		unique[i] = fmt.Sprintf("B%09d", i)
		titles[unique[i]] = "item " + unique[i]
	}
	client := &fakeCatalog{titles: titles}
	run := pipeline.NewRun("run", newCountingExtractor(nil))

	stats, err := run.Reconcile(context.Background(), client, testCreds, unique)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(client.requests) != 3 || len(client.requests[0]) != 10 || len(client.requests[2]) != 3 {
		t.Fatalf("unexpected batches: %v", client.requests)
	}
	if diff := cmp.Diff(unique, client.sentIDs()); diff != "" {
		t.Fatalf("item ids mismatch (-want +got):\n%s", diff)
	}
	if stats.Resolved != 23 || stats.Batches != 3 || stats.Requested != 23 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestReconcileSingleCallForSmallSets(t *testing.T) {
	client := &fakeCatalog{titles: map[string]string{"B0077QSLXI": "Kettle", "B01N5IB20Q": "Toaster"}}
	run := pipeline.NewRun("run", newCountingExtractor(nil))

	if _, err := run.Reconcile(context.Background(), client, testCreds, []string{"B0077QSLXI", "B01N5IB20Q"}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(client.requests) != 1 {
		t.Fatalf("expected one call, got %d", len(client.requests))
	}
}

func TestReconcileCompleteness(t *testing.T) {
	client := &fakeCatalog{
		titles:  map[string]string{"B000000001": "Kettle"},
		invalid: map[string]string{"B000000002": catalog.CodeItemNotAccessible},
		extra:   []catalog.ErrorData{{Code: "InternalFailure", Message: "Something broke."}},
	}
	run := pipeline.NewRun("run", newCountingExtractor(nil))
	unique := []string{"B000000001", "B000000002", "B000000003"}

	stats, err := run.Reconcile(context.Background(), client, testCreds, unique)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if got, _ := run.ASINEntry("B000000001"); got != (pipeline.ASINEntry{Valid: true, ItemName: "Kettle"}) {
		t.Fatalf("unexpected success entry %+v", got)
	}
	want := pipeline.ASINEntry{Valid: false, ItemName: pipeline.ItemNameNotFound, ErrorCode: catalog.CodeItemNotAccessible}
	if got, _ := run.ASINEntry("B000000002"); got != want {
		t.Fatalf("unexpected error entry %+v", got)
	}
	if _, ok := run.ASINEntry("B000000003"); ok {
		t.Fatal("omitted asin should have no entry")
	}
	wantStats := pipeline.ReconcileStats{
		Requested: 3, Batches: 1, Resolved: 1, Invalid: 1, Dropped: 1, Missing: 1,
		Errors: map[string]int{"DOG PAGE - fix this link!": 1},
	}
	if diff := cmp.Diff(wantStats, stats); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileInvalidParameterScenario(t *testing.T) {
	client := &fakeCatalog{invalid: map[string]string{"B0077QSLXI": catalog.CodeInvalidParameterValue}}
	run := pipeline.NewRun("run", newCountingExtractor(nil))

	stats, err := run.Reconcile(context.Background(), client, testCreds, []string{"B0077QSLXI"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	got, ok := run.ASINEntry("B0077QSLXI")
	if !ok || got.Valid || got.ItemName != "Item not found - check link manually" {
		t.Fatalf("unexpected entry %+v ok=%v", got, ok)
	}
	if stats.Errors["ITEM NOT IN API BUT MAY EXIST - check manually!"] != 1 {
		t.Fatalf("expected labelled error breakdown, got %v", stats.Errors)
	}
}

func TestReconcileEmptySetMakesNoCall(t *testing.T) {
	client := &fakeCatalog{}
	run := pipeline.NewRun("run", newCountingExtractor(nil))
	if _, err := run.Reconcile(context.Background(), client, testCreds, nil); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(client.requests) != 0 {
		t.Fatalf("expected no calls, got %v", client.requests)
	}
}

type emptyResponseCatalog struct{}

func (emptyResponseCatalog) GetItems(context.Context, catalog.Credentials, catalog.GetItemsRequest) (*catalog.GetItemsResponse, error) {
	return nil, nil
}

func TestReconcileNilResponseCountsMissing(t *testing.T) {
	run := pipeline.NewRun("run", newCountingExtractor(nil))
	stats, err := run.Reconcile(context.Background(), emptyResponseCatalog{}, testCreds, []string{"B0077QSLXI", "B01N5IB20Q"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if stats.Resolved != 0 || stats.Invalid != 0 || stats.Missing != 2 {
		t.Fatalf("expected both asins missing, got %+v", stats)
	}
}

func TestReconcileCallFailure(t *testing.T) {
	client := &fakeCatalog{err: errors.New("throttled")}
	run := pipeline.NewRun("run", newCountingExtractor(nil))
	_, err := run.Reconcile(context.Background(), client, testCreds, []string{"B0077QSLXI"})
	if !errors.Is(err, services.ErrCatalog) {
		t.Fatalf("expected catalog error, got %v", err)
	}
}

func TestEmitPreservesInputOrder(t *testing.T) {
	ex := newCountingExtractor(map[string]extract.Result{
		"u1": {ASIN: "B000000001", Tag: "a-20"},
		"u2": {ASIN: "B000000002", Tag: "b-20"},
		"u4": {ASIN: "B000000004", Tag: "d-20"},
	})
	client := &fakeCatalog{
		titles:  map[string]string{"B000000001": "Kettle"},
		invalid: map[string]string{"B000000002": catalog.CodeInvalidParameterValue},
	}
	run := pipeline.NewRun("run", ex)
	urls := candidates("u2", "u1", "u3", "u2", "u4")

	asins, _ := run.CollectASINs(context.Background(), urls)
	if _, err := run.Reconcile(context.Background(), client, testCreds, pipeline.Dedupe(asins)); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	reporter := &recordingReporter{}
	records, err := run.Emit(context.Background(), urls, reporter)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	want := []pipeline.DisplayRecord{
		{URLText: "link 0", URL: "u2", Tag: "b-20", ASIN: "B000000002", ItemName: pipeline.ItemNameNotFound},
		{URLText: "link 1", URL: "u1", Tag: "a-20", ASIN: "B000000001", ItemName: "Kettle", ValidOnAmazon: true},
		{URLText: "link 2", URL: "u3", Tag: extract.NoTag, ItemName: pipeline.ItemNameNoIdentifier},
		{URLText: "link 3", URL: "u2", Tag: "b-20", ASIN: "B000000002", ItemName: pipeline.ItemNameNotFound},
		{URLText: "link 4", URL: "u4", Tag: "d-20", ASIN: "B000000004", ItemName: pipeline.ItemNameNoCatalogResult},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, reporter.records); diff != "" {
		t.Fatalf("sent records mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, run.Results()); diff != "" {
		t.Fatalf("run results mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitStopsAtNextCheckpointAfterCancel(t *testing.T) {
	ex := newCountingExtractor(nil)
	run := pipeline.NewRun("run", ex)
	urls := candidates("u1", "u2", "u3", "u4")
	_, _ = run.CollectASINs(context.Background(), urls)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reporter := &recordingReporter{onSend: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	records, err := run.Emit(ctx, urls, reporter)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(records) != 2 || len(reporter.records) != 2 {
		t.Fatalf("expected 2 records before stop, got %d/%d", len(records), len(reporter.records))
	}
}

func TestEmitSinkFailure(t *testing.T) {
	run := pipeline.NewRun("run", newCountingExtractor(nil))
	urls := candidates("u1", "u2")
	_, _ = run.CollectASINs(context.Background(), urls)

	sendErr := errors.New("socket closed")
	calls := 0
	_, err := run.Emit(context.Background(), urls, pipeline.SinkFunc(func(context.Context, pipeline.DisplayRecord) error {
		calls++
		return sendErr
	}))
	if !errors.Is(err, sendErr) || calls != 1 {
		t.Fatalf("expected first send error to stop emission, err=%v calls=%d", err, calls)
	}
}

func TestRunnerProcessShortLinkScenario(t *testing.T) {
	resolver := extract.ResolverFunc(func(_ context.Context, short string) (string, error) {
		if short == "http://amzn.to/ABC123" {
			return "https://amazon.com/dp/B0077QSLXI?tag=myid-20", nil
		}
		return "", nil
	})
	client := &fakeCatalog{titles: map[string]string{"B0077QSLXI": "Steel Kettle"}}
	scraper := staticScraper{urls: []article.CandidateURL{{URL: "http://amzn.to/ABC123", Text: "kettle"}}}
	runner := pipeline.NewRunner(scraper, extract.New(resolver, logging.NewNop()), client)
	reporter := &recordingReporter{}

	outcome, err := runner.Process(context.Background(), "run-1", pipeline.Request{ArticleURL: "https://blog.example/post", Credentials: testCreds}, reporter)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if diff := cmp.Diff([][]string{{"B0077QSLXI"}}, client.requests); diff != "" {
		t.Fatalf("catalog requests mismatch (-want +got):\n%s", diff)
	}
	want := []pipeline.DisplayRecord{{
		URLText: "kettle", URL: "http://amzn.to/ABC123", Tag: "myid-20", ASIN: "B0077QSLXI",
		ItemName: "Steel Kettle", ValidOnAmazon: true,
	}}
	if diff := cmp.Diff(want, reporter.records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1}, reporter.scraped); diff != "" {
		t.Fatalf("scraped count mismatch (-want +got):\n%s", diff)
	}
	if outcome.Cancelled || outcome.URLCount != 1 || len(outcome.Records) != 1 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestRunnerScrapeFailure(t *testing.T) {
	runner := pipeline.NewRunner(staticScraper{err: errors.New("dns failure")}, newCountingExtractor(nil), &fakeCatalog{})
	reporter := &recordingReporter{}

	_, err := runner.Process(context.Background(), "run", pipeline.Request{ArticleURL: "https://blog.example/post", Credentials: testCreds}, reporter)
	if services.FailureStage(err) != services.StageScrape {
		t.Fatalf("expected scrape stage, got %q (%v)", services.FailureStage(err), err)
	}
	if len(reporter.scraped) != 0 {
		t.Fatal("urlsScraped should not be reported after a scrape failure")
	}
}

func TestRunnerCatalogFailureEmitsNothing(t *testing.T) {
	ex := newCountingExtractor(map[string]extract.Result{"u1": {ASIN: "B000000001", Tag: "a-20"}})
	runner := pipeline.NewRunner(staticScraper{urls: candidates("u1")}, ex, &fakeCatalog{err: errors.New("denied")})
	reporter := &recordingReporter{}

	_, err := runner.Process(context.Background(), "run", pipeline.Request{ArticleURL: "https://blog.example/post", Credentials: testCreds}, reporter)
	if services.FailureStage(err) != services.StageCatalog {
		t.Fatalf("expected catalog stage, got %q (%v)", services.FailureStage(err), err)
	}
	if len(reporter.records) != 0 {
		t.Fatalf("expected no records, got %v", reporter.records)
	}
}

func TestRunnerRejectsIncompleteCredentials(t *testing.T) {
	runner := pipeline.NewRunner(staticScraper{}, newCountingExtractor(nil), &fakeCatalog{})
	creds := testCreds
	creds.PartnerTag = ""
	_, err := runner.Process(context.Background(), "run", pipeline.Request{ArticleURL: "https://blog.example/post", Credentials: creds}, &recordingReporter{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunnerCancelledRunReportsOutcome(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ex := &cancellingExtractor{cancelAfter: 1, cancel: cancel}
	client := &fakeCatalog{}
	runner := pipeline.NewRunner(staticScraper{urls: candidates("u1", "u2", "u3")}, ex, client)
	reporter := &recordingReporter{}

	outcome, err := runner.Process(ctx, "run", pipeline.Request{ArticleURL: "https://blog.example/post", Credentials: testCreds}, reporter)
	if err != nil {
		t.Fatalf("cancellation should not be an error: %v", err)
	}
	if !outcome.Cancelled {
		t.Fatal("expected cancelled outcome")
	}
	if ex.calls != 1 || len(client.requests) != 0 || len(reporter.records) != 0 {
		t.Fatalf("work continued after stop: extract=%d catalog=%d records=%d", ex.calls, len(client.requests), len(reporter.records))
	}
}

type cancellingExtractor struct {
	calls       int
	cancelAfter int
	cancel      context.CancelFunc
}

func (e *cancellingExtractor) Extract(context.Context, string) extract.Result {
	e.calls++
	if e.calls == e.cancelAfter {
		e.cancel()
	}
	return extract.Result{ASIN: fmt.Sprintf("B%09d", e.calls), Tag: "x-20"}
}

func TestMetricsCountDroppedAttributions(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics := pipeline.NewMetrics(provider.Meter("test"))

	client := &fakeCatalog{extra: []catalog.ErrorData{{Code: "InternalFailure", Message: "oops"}, {Code: "X", Message: "short"}}}
	run := pipeline.NewRun("run", newCountingExtractor(nil), pipeline.WithRunMetrics(metrics))
	if _, err := run.Reconcile(context.Background(), client, testCreds, []string{"B000000001"}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got := sumCounter(rm, "linkcheck.pipeline.dropped_attributions"); got != 2 {
		t.Fatalf("expected 2 dropped attributions, got %d", got)
	}
	if got := sumCounter(rm, "linkcheck.pipeline.missing_asins"); got != 1 {
		t.Fatalf("expected 1 missing asin, got %d", got)
	}
}

func sumCounter(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}
