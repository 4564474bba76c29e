package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"linkcheck/internal/api"
	"linkcheck/internal/config"
	"linkcheck/internal/logging"
	"linkcheck/internal/pipeline"
	"linkcheck/internal/resultstore"
	"linkcheck/internal/session"
	"linkcheck/internal/testsupport"
)

type recordingConn struct {
	mu     sync.Mutex
	events []session.Event
}

func (c *recordingConn) Send(_ context.Context, event session.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *recordingConn) snapshot() []session.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]session.Event(nil), c.events...)
}

type noopProcessor struct{}

func (noopProcessor) Process(_ context.Context, runID string, req pipeline.Request, _ pipeline.Reporter) (*pipeline.Outcome, error) {
	return &pipeline.Outcome{RunID: runID, ArticleURL: req.ArticleURL}, nil
}

func newHandlerDaemon(t *testing.T, cfg *config.Config, archive *resultstore.Archive) *Daemon {
	t.Helper()
	d, err := New(cfg, Dependencies{
		Registry:  session.NewRegistry(logging.NewNop()),
		Runner:    noopProcessor{},
		Archive:   archive,
		Telemetry: NewTelemetry("linkcheckd-test", "test"),
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func sampleOutcome() *pipeline.Outcome {
	started := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	return &pipeline.Outcome{
		RunID:      "run-1",
		ArticleURL: "https://blog.example/post",
		URLCount:   2,
		Records: []pipeline.DisplayRecord{
			{URLText: "Kettle", ItemName: "Electric Kettle", Tag: "myid-20", URL: "https://www.amazon.com/dp/B0077QSLXI?tag=myid-20", ValidOnAmazon: true, ASIN: "B0077QSLXI"},
			{URLText: "Gone", ItemName: "ITEM NOT IN API BUT MAY EXIST - check manually!", Tag: "myid-20", URL: "https://www.amazon.com/dp/B000000000?tag=myid-20", ASIN: "B000000000"},
		},
		Stats:      pipeline.ReconcileStats{Requested: 2, Batches: 1, Resolved: 1, Invalid: 1},
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
	}
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAPIServerHandleStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newHandlerDaemon(t, cfg, testsupport.NewArchive(t, cfg))
	d.registry.Add(session.NewSession("sess-a", &recordingConn{}))
	_, _, done := d.registry.BeginRun(context.Background(), "sess-a")
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	d.api.handleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	resp := decodeBody[api.StatusResponse](t, w)
	if resp.Running {
		t.Fatal("expected daemon not running before Start")
	}
	if resp.Sessions != 1 || resp.SessionIDs[0] != "sess-a" {
		t.Fatalf("unexpected sessions: %+v", resp)
	}
	if len(resp.ActiveRuns) != 1 || resp.ActiveRuns[0].SessionID != "sess-a" {
		t.Fatalf("unexpected active runs: %+v", resp.ActiveRuns)
	}
	if resp.LockFilePath != cfg.LockPath() || resp.StorePath != cfg.StorePath() {
		t.Fatalf("unexpected paths: %+v", resp)
	}
}

func TestAPIServerHandleStatusRejectsPost(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newHandlerDaemon(t, cfg, nil)

	w := httptest.NewRecorder()
	d.api.handleStatus(w, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIServerHandleRunsAndRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	archive := testsupport.NewArchive(t, cfg)
	d := newHandlerDaemon(t, cfg, archive)
	outcome := sampleOutcome()
	if err := archive.Record(context.Background(), "sess-a", outcome); err != nil {
		t.Fatalf("Record: %v", err)
	}

	w := httptest.NewRecorder()
	d.api.handleRuns(w, httptest.NewRequest(http.MethodGet, "/api/runs?limit=5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	runs := decodeBody[api.RunsResponse](t, w)
	if len(runs.Runs) != 1 || runs.Runs[0].ID != "run-1" || runs.Runs[0].Emitted != 2 {
		t.Fatalf("unexpected runs: %+v", runs.Runs)
	}

	w = httptest.NewRecorder()
	d.api.handleRun(w, httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	detail := decodeBody[api.RunDetailResponse](t, w)
	if diff := cmp.Diff(outcome.Records, detail.Records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	if detail.Run.SessionID != "sess-a" {
		t.Fatalf("unexpected session id %q", detail.Run.SessionID)
	}

	w = httptest.NewRecorder()
	d.api.handleRun(w, httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown run, got %d", w.Code)
	}
}

func TestAPIServerHandleRunsValidatesLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newHandlerDaemon(t, cfg, testsupport.NewArchive(t, cfg))

	w := httptest.NewRecorder()
	d.api.handleRuns(w, httptest.NewRequest(http.MethodGet, "/api/runs?limit=zero", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAPIServerRunHistoryDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithResultsDisabled())
	d := newHandlerDaemon(t, cfg, nil)

	w := httptest.NewRecorder()
	d.api.handleRuns(w, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestAPIServerFetchStaticDataBroadcasts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	archive := testsupport.NewArchive(t, cfg)
	d := newHandlerDaemon(t, cfg, archive)
	outcome := sampleOutcome()
	if err := resultstore.WriteResultsFile(cfg.Results.ResultsFile, outcome.Records); err != nil {
		t.Fatalf("WriteResultsFile: %v", err)
	}
	first, second := &recordingConn{}, &recordingConn{}
	d.registry.Add(session.NewSession("a", first))
	d.registry.Add(session.NewSession("b", second))

	w := httptest.NewRecorder()
	d.api.handleFetchStaticData(w, httptest.NewRequest(http.MethodGet, "/fetch-static-data", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody[api.StaticDataResponse](t, w)
	if resp.Delivered != 2 || resp.Records != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	for _, conn := range []*recordingConn{first, second} {
		events := conn.snapshot()
		if len(events) != 1 || events[0].Name != session.EventStaticData {
			t.Fatalf("expected one staticDataReceived event, got %+v", events)
		}
		raw, ok := events[0].Data.(json.RawMessage)
		if !ok {
			t.Fatalf("expected raw JSON payload, got %T", events[0].Data)
		}
		var records []pipeline.DisplayRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if diff := cmp.Diff(outcome.Records, records); diff != "" {
			t.Fatalf("payload mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestAPIServerFetchStaticDataMissingFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newHandlerDaemon(t, cfg, testsupport.NewArchive(t, cfg))

	w := httptest.NewRecorder()
	d.api.handleFetchStaticData(w, httptest.NewRequest(http.MethodGet, "/fetch-static-data", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAPIServerFetchStaticDataRejectsNonList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newHandlerDaemon(t, cfg, testsupport.NewArchive(t, cfg))
	testsupport.WriteFile(t, cfg.Results.ResultsFile, `{"urlText":"not a list"}`)
	conn := &recordingConn{}
	d.registry.Add(session.NewSession("a", conn))

	w := httptest.NewRecorder()
	d.api.handleFetchStaticData(w, httptest.NewRequest(http.MethodGet, "/fetch-static-data", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}
	if events := conn.snapshot(); len(events) != 0 {
		t.Fatalf("expected nothing broadcast, got %+v", events)
	}
}

func TestAPIServerHandleMetrics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newHandlerDaemon(t, cfg, nil)
	counter, err := d.telemetry.Meter("test").Int64Counter("linkcheck.test.hits")
	if err != nil {
		t.Fatalf("Int64Counter: %v", err)
	}
	counter.Add(context.Background(), 3)

	w := httptest.NewRecorder()
	d.api.handleMetrics(w, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	resp := decodeBody[api.MetricsResponse](t, w)
	if resp.Metrics["linkcheck.test.hits"] != 3 {
		t.Fatalf("unexpected metrics: %v", resp.Metrics)
	}
}

func TestRoutesApplyCORSAndServeStaticFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.PublicDir, "index.html"), "<html>checker</html>")
	d := newHandlerDaemon(t, cfg, nil)
	handler := d.api.routes()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected index to be served, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Origin, X-Requested-With, Content-Type, Accept" {
		t.Fatalf("unexpected allow-headers %q", got)
	}

	preflight := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	preflight.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, preflight)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", w.Code)
	}
}

func TestRoutesRequireTokenWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("s3cret"))
	d := newHandlerDaemon(t, cfg, nil)
	handler := d.api.routes()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}

func TestParseBeginPayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    beginPayload
		wantErr bool
	}{
		{
			name: "object",
			raw:  `{"url":" https://blog.example/post ","sessionId":"s1","apiKey":"k","apiSecret":"x","partnerTag":"t-20","marketplace":"www.amazon.de"}`,
			want: beginPayload{URL: "https://blog.example/post", SessionID: "s1", APIKey: "k", APISecret: "x", PartnerTag: "t-20", Marketplace: "www.amazon.de"},
		},
		{
			name: "positional",
			raw:  `["https://blog.example/post","s1","k","x","t-20","www.amazon.de"]`,
			want: beginPayload{URL: "https://blog.example/post", SessionID: "s1", APIKey: "k", APISecret: "x", PartnerTag: "t-20", Marketplace: "www.amazon.de"},
		},
		{
			name: "positional with nulls",
			raw:  `["https://blog.example/post",null,"k"]`,
			want: beginPayload{URL: "https://blog.example/post", APIKey: "k"},
		},
		{
			name: "bare url",
			raw:  `"https://blog.example/post"`,
			want: beginPayload{URL: "https://blog.example/post"},
		},
		{name: "missing", raw: ``, wantErr: true},
		{name: "null", raw: `null`, wantErr: true},
		{name: "no url", raw: `{"sessionId":"s1"}`, wantErr: true},
		{name: "wrong type", raw: `[1]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBeginPayload(json.RawMessage(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("payload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCredentialsFallBackToConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCatalogCredentials("AKIDCONFIG", "cfgsecret", "cfg-20", "www.amazon.co.uk"))
	d := newHandlerDaemon(t, cfg, nil)

	got := d.credentials(beginPayload{URL: "https://blog.example/post"})
	if got.AccessKey != "AKIDCONFIG" || got.SecretKey != "cfgsecret" || got.PartnerTag != "cfg-20" || got.Marketplace != "www.amazon.co.uk" {
		t.Fatalf("expected config credentials, got %+v", got)
	}

	got = d.credentials(beginPayload{APIKey: "AKIDCLIENT", APISecret: "clientsecret", Marketplace: "www.amazon.de"})
	if got.AccessKey != "AKIDCLIENT" || got.SecretKey != "clientsecret" || got.PartnerTag != "cfg-20" || got.Marketplace != "www.amazon.de" {
		t.Fatalf("expected client credentials with config tag, got %+v", got)
	}

	bare := newHandlerDaemon(t, testsupport.NewConfig(t), nil)
	if got := bare.credentials(beginPayload{}); got.Marketplace != defaultMarketplace {
		t.Fatalf("expected default marketplace, got %q", got.Marketplace)
	}
}
