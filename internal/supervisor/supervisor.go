// Package supervisor manages the dashboard UI server as a child process
// with an explicit lifecycle: start, readiness via health polling, and
// graceful shutdown. It replaces ambient launch-a-thread-and-hope glue
// with a component the launcher can observe.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"aegis/internal/config"
)

// Supervisor launches and tracks one child process.
type Supervisor struct {
	cfg    config.SupervisorConfig
	logger *slog.Logger
	client *http.Client

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
	ready  atomic.Bool
}

// New creates a supervisor for the configured command.
func New(logger *slog.Logger, cfg config.SupervisorConfig) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "supervisor")),
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Start launches the child and blocks until it reports healthy, the
// startup timeout elapses, or the context is cancelled. On failure the
// child is terminated before returning.
func (s *Supervisor) Start(ctx context.Context) error {
	if s.cfg.Command == "" {
		return fmt.Errorf("supervisor: no command configured")
	}

	s.mu.Lock()
	if s.cmd != nil {
		s.mu.Unlock()
		return fmt.Errorf("supervisor: already started")
	}
	cmd := exec.Command(s.cfg.Command, s.cfg.Args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("supervisor: start %q: %w", s.cfg.Command, err)
	}
	s.cmd = cmd
	s.exited = make(chan struct{})
	exited := s.exited
	s.mu.Unlock()

	s.logger.Info("child process started",
		slog.String("command", s.cfg.Command),
		slog.Int("pid", cmd.Process.Pid))

	go func() {
		err := cmd.Wait()
		s.ready.Store(false)
		close(exited)
		if err != nil {
			s.logger.Warn("child process exited", slog.String("error", err.Error()))
		} else {
			s.logger.Info("child process exited")
		}
	}()

	pollCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(pollCtx)
	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		for {
			if err := s.Health(gctx); err == nil {
				return nil
			}
			select {
			case <-gctx.Done():
				return fmt.Errorf("supervisor: child never became healthy: %w", gctx.Err())
			case <-exited:
				return fmt.Errorf("supervisor: child exited before becoming healthy")
			case <-ticker.C:
			}
		}
	})

	if err := g.Wait(); err != nil {
		shutdownCtx, sc := context.WithTimeout(context.Background(), s.cfg.GracePeriod)
		defer sc()
		s.Shutdown(shutdownCtx)
		return err
	}

	s.ready.Store(true)
	s.logger.Info("child process healthy", slog.String("health_url", s.cfg.HealthURL))
	return nil
}

// Health probes the child's health endpoint once.
func (s *Supervisor) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.HealthURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Ready reports whether the child has passed its readiness poll and has
// not exited since.
func (s *Supervisor) Ready() bool {
	return s.ready.Load()
}

// Shutdown asks the child to stop, escalating to a kill when the grace
// period or the context expires first.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cmd := s.cmd
	exited := s.exited
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	s.ready.Store(false)

	select {
	case <-exited:
		return nil
	default:
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		// Interrupt can be unsupported on some platforms; fall through to
		// the escalation path.
		s.logger.Warn("interrupt failed, killing child", slog.String("error", err.Error()))
		return cmd.Process.Kill()
	}

	grace := time.NewTimer(s.cfg.GracePeriod)
	defer grace.Stop()

	select {
	case <-exited:
		return nil
	case <-ctx.Done():
	case <-grace.C:
	}

	s.logger.Warn("grace period elapsed, killing child")
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("supervisor: kill child: %w", err)
	}
	<-exited
	return nil
}
