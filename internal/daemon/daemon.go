package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"linkcheck/internal/config"
	"linkcheck/internal/logging"
	"linkcheck/internal/pipeline"
	"linkcheck/internal/resultstore"
	"linkcheck/internal/session"
)

// errShutdown is the cancellation cause for runs interrupted by daemon stop.
var errShutdown = errors.New("daemon shutting down")

// runDrainTimeout bounds how long Stop waits for cancelled runs to report.
const runDrainTimeout = 5 * time.Second

// Processor executes one check. *pipeline.Runner satisfies it.
type Processor interface {
	Process(ctx context.Context, runID string, req pipeline.Request, reporter pipeline.Reporter) (*pipeline.Outcome, error)
}

// Dependencies are the collaborators a daemon routes between.
type Dependencies struct {
	Registry  *session.Registry
	Runner    Processor
	Archive   *resultstore.Archive
	Telemetry *Telemetry
}

// Daemon serves live sessions and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *session.Registry
	runner    Processor
	archive   *resultstore.Archive
	telemetry *Telemetry
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	runs    sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Bind         string
	SessionIDs   []string
	ActiveRuns   []session.RunInfo
	LockFilePath string
	StorePath    string
	ResultsFile  string
}

// New constructs a daemon with initialized dependencies. Archive and
// Telemetry are optional.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Registry == nil || deps.Runner == nil {
		return nil, errors.New("daemon requires config, session registry, and runner")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		registry:  deps.Registry,
		runner:    deps.Runner,
		archive:   deps.Archive,
		telemetry: deps.Telemetry,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and begins serving.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(d.cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another linkcheck daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start server: %w", err)
	}
	d.mu.Lock()
	d.ctx, d.cancel = runCtx, cancel
	d.mu.Unlock()

	d.running.Store(true)
	d.logger.Info("linkcheck daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.Addr()),
	)
	return nil
}

// Stop cancels in-flight runs, closes live sessions, stops serving and
// releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.registry.StopAll(errShutdown)
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx, d.cancel = nil, nil
	d.mu.Unlock()
	d.waitForRuns(runDrainTimeout)
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("linkcheck daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, d.telemetry.Shutdown(shutdownCtx))
	}
	if d.archive != nil && d.archive.Store() != nil {
		errs = append(errs, d.archive.Store().Close())
	}
	return errors.Join(errs...)
}

// Addr returns the listening address, or "" when not serving.
func (d *Daemon) Addr() string {
	if d.api == nil || d.api.listener == nil {
		return ""
	}
	return d.api.listener.Addr().String()
}

// Status returns a snapshot of runtime state.
func (d *Daemon) Status(context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Bind:         d.cfg.Server.Bind,
		SessionIDs:   d.registry.IDs(),
		ActiveRuns:   d.registry.ActiveRuns(),
		LockFilePath: d.lockPath,
	}
	if addr := d.Addr(); addr != "" {
		status.Bind = addr
	}
	if d.archive != nil {
		status.ResultsFile = d.archive.ResultsFile()
		if store := d.archive.Store(); store != nil {
			status.StorePath = store.Path()
		}
	}
	return status
}

// baseContext is the parent of every run and live read.
func (d *Daemon) baseContext() context.Context {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ctx != nil {
		return d.ctx
	}
	return context.Background()
}

func (d *Daemon) waitForRuns(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		d.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		d.logger.Warn("runs still active after shutdown timeout", logging.Duration("timeout", timeout))
	}
}
