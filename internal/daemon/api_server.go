package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"linkcheck/internal/api"
	"linkcheck/internal/config"
	"linkcheck/internal/logging"
	"linkcheck/internal/resultstore"
	"linkcheck/internal/session"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

type apiServer struct {
	bind      string
	publicDir string
	token     string
	logger    *slog.Logger
	daemon    *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:      strings.TrimSpace(cfg.Server.Bind),
		publicDir: cfg.Paths.PublicDir,
		token:     cfg.Server.APIToken,
		logger:    logger,
		daemon:    d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// routes builds the handler tree. Read and write timeouts are left to the
// individual handlers because live connections are long-lived.
func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.daemon.handleLive)
	mux.HandleFunc("/fetch-static-data", s.handleFetchStaticData)
	mux.HandleFunc("/api/status", authMiddleware(s.token, s.handleStatus))
	mux.HandleFunc("/api/runs", authMiddleware(s.token, s.handleRuns))
	mux.HandleFunc("/api/runs/", authMiddleware(s.token, s.handleRun))
	mux.HandleFunc("/api/metrics", authMiddleware(s.token, s.handleMetrics))
	if strings.TrimSpace(s.publicDir) != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.publicDir)))
	}
	return corsMiddleware(mux)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("http server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("http server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	runs := make([]api.ActiveRun, 0, len(status.ActiveRuns))
	for _, run := range status.ActiveRuns {
		runs = append(runs, api.FromRunInfo(run))
	}
	payload := api.StatusResponse{
		Running:      status.Running,
		PID:          status.PID,
		Bind:         status.Bind,
		Sessions:     len(status.SessionIDs),
		SessionIDs:   status.SessionIDs,
		ActiveRuns:   runs,
		LockFilePath: status.LockFilePath,
		StorePath:    status.StorePath,
		ResultsFile:  status.ResultsFile,
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	store := s.store()
	if store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run history disabled")
		return
	}
	limit := defaultRunsLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, maxRunsLimit)
	}
	runs, err := store.ListRuns(r.Context(), limit)
	if err != nil {
		s.log().Error("list runs failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunsResponse{Runs: api.FromRunSummaries(runs)})
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	store := s.store()
	if store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run history disabled")
		return
	}
	run, err := store.GetRun(r.Context(), id)
	if errors.Is(err, resultstore.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.log().Error("load run failed", logging.String(logging.FieldRunID, id), logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	records, err := store.Records(r.Context(), id)
	if err != nil {
		s.log().Error("load run records failed", logging.String(logging.FieldRunID, id), logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunDetailResponse{Run: api.FromRunSummary(run), Records: records})
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	telemetry := s.daemon.telemetry
	if telemetry == nil {
		s.writeError(w, http.StatusServiceUnavailable, "metrics disabled")
		return
	}
	snapshot, err := telemetry.Snapshot(r.Context())
	if err != nil {
		s.log().Error("collect metrics failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to collect metrics")
		return
	}
	s.writeJSON(w, http.StatusOK, api.MetricsResponse{Metrics: snapshot})
}

// handleFetchStaticData replays the saved results to every live session.
func (s *apiServer) handleFetchStaticData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	archive := s.daemon.archive
	if archive == nil || archive.ResultsFile() == "" {
		s.writeError(w, http.StatusServiceUnavailable, "saved results disabled")
		return
	}
	raw, err := resultstore.ReadResultsRaw(archive.ResultsFile())
	if errors.Is(err, resultstore.ErrNoResults) {
		s.writeError(w, http.StatusNotFound, "no saved results")
		return
	}
	if err != nil {
		s.log().Error("read saved results failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to read saved results")
		return
	}
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		s.log().Error("saved results are not a record list",
			logging.String("path", archive.ResultsFile()),
			logging.Error(err),
		)
		s.writeError(w, http.StatusInternalServerError, "saved results are not a record list")
		return
	}
	delivered := s.daemon.registry.Broadcast(r.Context(), session.Event{Name: session.EventStaticData, Data: raw})
	s.log().Info("saved results broadcast",
		logging.Int("sessions", delivered),
		logging.Int("records", len(records)),
	)
	s.writeJSON(w, http.StatusOK, api.StaticDataResponse{Delivered: delivered, Records: len(records)})
}

func (s *apiServer) store() *resultstore.Store {
	if s.daemon.archive == nil {
		return nil
	}
	return s.daemon.archive.Store()
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		s.log().Warn("failed to encode api response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api")
}
