// Package service owns the discovery run lifecycle: one active run at
// a time, started asynchronously, persisted on completion, observable
// through progress snapshots and lifecycle events.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"guestmap/internal/discovery"
	"guestmap/internal/domain"
	"guestmap/internal/repository/sqlite"
)

// ErrRunActive is returned when a run is requested while one is in flight
var ErrRunActive = errors.New("a discovery run is already active")

// Runner executes one discovery run; satisfied by discovery.Scanner
type Runner interface {
	Run(ctx context.Context, req discovery.Request) (*domain.WorkloadDiscoveryResult, error)
}

// RunStore persists completed runs; satisfied by the SQLite repository
type RunStore interface {
	SaveRun(ctx context.Context, result *domain.WorkloadDiscoveryResult) (int64, error)
	LatestResult(ctx context.Context) (*domain.WorkloadDiscoveryResult, error)
	ListRuns(ctx context.Context, limit int) ([]sqlite.RunSummary, error)
}

// DiscoveryService coordinates runs, persistence, and observers
type DiscoveryService struct {
	runner   Runner
	progress *discovery.Progress
	store    RunStore
	prober   discovery.DeepProber
	events   *EventBus

	mu         sync.Mutex
	running    bool
	lastResult *domain.WorkloadDiscoveryResult
}

// NewDiscoveryService wires a service around a runner. store, prober,
// and events may each be nil to disable persistence, standalone DB
// probing, or event publication.
func NewDiscoveryService(runner Runner, progress *discovery.Progress, store RunStore, prober discovery.DeepProber, events *EventBus) *DiscoveryService {
	return &DiscoveryService{
		runner:   runner,
		progress: progress,
		store:    store,
		prober:   prober,
		events:   events,
	}
}

// StartRun launches a discovery run in the background. Only one run
// may be active at a time.
func (s *DiscoveryService) StartRun(req discovery.Request) error {
	if len(req.Targets) == 0 {
		return errors.New("no VM targets to scan")
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunActive
	}
	s.running = true
	s.mu.Unlock()

	s.publish(EventRunStarted, map[string]interface{}{"targets": len(req.Targets)})
	go s.run(req)
	return nil
}

func (s *DiscoveryService) run(req discovery.Request) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	result, err := s.runner.Run(context.Background(), req)
	if err != nil {
		log.Printf("Discovery run failed: %v", err)
		s.publish(EventRunFailed, map[string]interface{}{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()

	if s.store != nil {
		if id, err := s.store.SaveRun(context.Background(), result); err != nil {
			log.Printf("Failed to persist discovery run: %v", err)
		} else {
			log.Printf("Persisted discovery run %d", id)
		}
	}

	s.publish(EventRunFinished, map[string]interface{}{
		"scanned": result.ScannedCount,
		"errors":  result.ErrorCount,
		"skipped": result.SkippedCount,
	})
}

// RunOnce executes a discovery run synchronously. Used by the one-shot
// CLI; subject to the same single-run constraint as StartRun.
func (s *DiscoveryService) RunOnce(ctx context.Context, req discovery.Request) (*domain.WorkloadDiscoveryResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunActive
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	result, err := s.runner.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()

	if s.store != nil {
		if _, err := s.store.SaveRun(ctx, result); err != nil {
			log.Printf("Failed to persist discovery run: %v", err)
		}
	}
	return result, nil
}

// Progress returns a snapshot of the current (or last) run's progress
func (s *DiscoveryService) Progress() discovery.Snapshot {
	if s.progress == nil {
		return discovery.Snapshot{Status: discovery.RunStatusIdle}
	}
	return s.progress.Snapshot()
}

// LatestResult returns the most recent completed result: the in-memory
// one if this process ran it, otherwise the newest persisted run
func (s *DiscoveryService) LatestResult(ctx context.Context) (*domain.WorkloadDiscoveryResult, error) {
	s.mu.Lock()
	result := s.lastResult
	s.mu.Unlock()
	if result != nil {
		return result, nil
	}
	if s.store == nil {
		return nil, nil
	}
	return s.store.LatestResult(ctx)
}

// Runs returns persisted run history, newest first
func (s *DiscoveryService) Runs(ctx context.Context, limit int) ([]sqlite.RunSummary, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListRuns(ctx, limit)
}

// ProbeDatabases deep-probes explicit database targets without any
// guest login, discovering whatever the credentials can reach
func (s *DiscoveryService) ProbeDatabases(ctx context.Context, host string, creds []domain.DatabaseCredential) ([]domain.DiscoveredDatabase, error) {
	if s.prober == nil {
		return nil, errors.New("database probing is not configured")
	}
	if host == "" {
		return nil, errors.New("host is required")
	}
	if len(creds) == 0 {
		return nil, errors.New("at least one database credential is required")
	}
	return s.prober.Probe(ctx, host, creds, nil), nil
}

func (s *DiscoveryService) publish(eventType EventType, payload interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(Event{Type: eventType, Payload: payload})
}

// String describes the service state for logs
func (s *DiscoveryService) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("DiscoveryService{running: %t, hasResult: %t}", s.running, s.lastResult != nil)
}
