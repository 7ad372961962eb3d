// Package supervisor tracks externally launched command-line processes: it
// starts, stops and restarts them, captures their stdout/stderr into
// bounded per-process buffers for resumable polling, and fans live output
// out to streaming subscribers. It is the in-process core consumed by the
// HTTP transport.
package supervisor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
	"github.com/nourselim0/http-process-wrapper/pkg/config"
)

// entry pairs a handle with its per-id command mutex and broadcast hub.
// cmdMu serializes lifecycle commands (start/stop/restart/remove) for one
// id; commands for different ids run fully in parallel.
type entry struct {
	cmdMu  sync.Mutex
	handle *processHandle
	hub    *hub
}

type Supervisor struct {
	cfg    *config.Config
	events EventSink
	log    zerolog.Logger

	mu    sync.RWMutex
	procs map[string]*entry
}

// New creates a supervisor. events may be nil when no audit trail is
// wanted.
func New(cfg *config.Config, events EventSink, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		events: events,
		log:    log,
		procs:  make(map[string]*entry),
	}
}

func (s *Supervisor) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.procs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// acquire takes the command mutex of the entry registered under id. The
// registration is re-checked after the mutex is held: a Remove may have
// evicted the id while this caller was queued, and running a lifecycle
// command on an evicted entry would produce a process the registry no
// longer knows about. The caller must unlock e.cmdMu.
func (s *Supervisor) acquire(id string) (*entry, error) {
	for {
		e, err := s.lookup(id)
		if err != nil {
			return nil, err
		}

		e.cmdMu.Lock()

		s.mu.RLock()
		current := s.procs[id]
		s.mu.RUnlock()
		if current == e {
			return e, nil
		}
		e.cmdMu.Unlock()
	}
}

// Create registers a process under spec.ID and optionally starts it. The
// registration survives process exit; it is evicted only by Remove.
func (s *Supervisor) Create(spec domain.ProcessSpec, start bool) error {
	if !domain.ValidProcessID(spec.ID) {
		return ErrInvalidID
	}
	if len(spec.Command) == 0 {
		return ErrInvalidID
	}

	e := &entry{
		hub: newHub(s.cfg.SubscriberQueueDepth, s.cfg.OverflowPolicy),
	}
	e.handle = newProcessHandle(
		spec,
		e.hub,
		s.events,
		s.cfg.MaxBufferBytes,
		time.Duration(s.cfg.KillWaitMillis)*time.Millisecond,
		s.log,
	)

	s.mu.Lock()
	if _, exists := s.procs[spec.ID]; exists {
		s.mu.Unlock()
		return ErrAlreadyExists
	}
	s.procs[spec.ID] = e
	s.mu.Unlock()

	if !start {
		return nil
	}

	// The entry became visible the moment it was registered, so the start
	// races any concurrent Remove the same way later commands do.
	e, err := s.acquire(spec.ID)
	if err != nil {
		return err
	}
	defer e.cmdMu.Unlock()
	return e.handle.start()
}

// Start starts (or re-starts after exit) a registered process.
func (s *Supervisor) Start(id string) error {
	e, err := s.acquire(id)
	if err != nil {
		return err
	}
	defer e.cmdMu.Unlock()
	return e.handle.start()
}

// Stop terminates the process gracefully within grace, force-killing after.
// Stopping a process that is not running is not an error.
func (s *Supervisor) Stop(id string, grace time.Duration) error {
	e, err := s.acquire(id)
	if err != nil {
		return err
	}
	defer e.cmdMu.Unlock()
	return e.handle.stop(grace)
}

// Restart stops the process if running and starts a new generation with
// the same spec. Old output buffers are discarded.
func (s *Supervisor) Restart(id string, grace time.Duration) error {
	e, err := s.acquire(id)
	if err != nil {
		return err
	}
	defer e.cmdMu.Unlock()

	if err := e.handle.stop(grace); err != nil {
		return err
	}
	return e.handle.start()
}

// Remove evicts a process registration. Fails with ErrStillRunning while
// the process is alive.
func (s *Supervisor) Remove(id string) error {
	e, err := s.acquire(id)
	if err != nil {
		return err
	}
	defer e.cmdMu.Unlock()

	if state := e.handle.currentState(); state == domain.ProcessStateRunning {
		return ErrStillRunning
	}

	s.mu.Lock()
	delete(s.procs, id)
	s.mu.Unlock()
	return nil
}

// List returns a point-in-time snapshot of every known process, sorted by
// id. It never blocks on any individual process.
func (s *Supervisor) List() []domain.ProcessStatus {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.procs))
	for _, e := range s.procs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	statuses := make([]domain.ProcessStatus, 0, len(entries))
	for _, e := range entries {
		statuses = append(statuses, e.handle.status())
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}

// Get returns the status snapshot of one process.
func (s *Supervisor) Get(id string) (domain.ProcessStatus, error) {
	e, err := s.lookup(id)
	if err != nil {
		return domain.ProcessStatus{}, err
	}
	return e.handle.status(), nil
}

// ReadOutput returns the chunks of one stream with sequence greater than
// since, plus the buffer's floor. ErrTruncated signals that since precedes
// evicted history.
func (s *Supervisor) ReadOutput(id string, stream domain.Stream, since uint64) ([]domain.Chunk, uint64, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, 0, err
	}
	return e.handle.readOutput(stream, since)
}

// Tail returns the last n output lines of the current generation, both
// streams merged in production order when includeStderr is set.
func (s *Supervisor) Tail(id string, n int, includeStderr bool) ([]domain.Chunk, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.handle.tail(n, includeStderr), nil
}

// SendInput forwards bytes to the process stdin.
func (s *Supervisor) SendInput(id string, data []byte) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	return e.handle.sendInput(data)
}

// Subscribe registers a live output subscriber. stream restricts delivery
// to one stream; the empty value delivers both. Delivery starts from "now";
// history is only available through ReadOutput.
func (s *Supervisor) Subscribe(id string, stream domain.Stream) (*Subscription, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.hub.subscribe(stream), nil
}

// DefaultGrace is the stop grace period used when a caller does not supply
// one.
func (s *Supervisor) DefaultGrace() time.Duration {
	return time.Duration(s.cfg.DefaultGraceMillis) * time.Millisecond
}

// Shutdown stops every running process in parallel, using the default
// grace period, and returns when all are down or ctx expires.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	statuses := s.List()

	var wg sync.WaitGroup
	for _, st := range statuses {
		if st.State != domain.ProcessStateRunning {
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.Stop(id, s.DefaultGrace()); err != nil {
				s.log.Error().Err(err).Str("proc", id).Msg("failed to stop process during shutdown")
			}
		}(st.ID)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
