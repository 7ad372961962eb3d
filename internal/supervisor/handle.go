package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
)

// EventSink receives lifecycle transitions for persistence. Implementations
// must not block for long; they are called from supervisor goroutines.
type EventSink interface {
	Record(event *domain.ProcessEvent)
}

// processHandle owns one supervised process: its OS process, stdin pipe,
// per-stream output buffers and state machine. Lifecycle methods (start,
// stop) are serialized per id by the registry; pure reads are safe at any
// time.
//
// Each successful start opens a new generation: fresh pid, fresh buffers,
// sequence numbering restarting at 1. Output from a prior generation is
// discarded, never merged.
type processHandle struct {
	spec     domain.ProcessSpec
	hub      *hub
	events   EventSink
	log      zerolog.Logger
	bufBytes int
	killWait time.Duration

	mu         sync.Mutex
	state      domain.ProcessState
	reason     string
	pid        *int
	exitCode   *int
	generation int
	startedAt  *time.Time
	endedAt    *time.Time
	stopping   bool

	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   *outputBuffer
	stderr   *outputBuffer
	waitDone chan struct{}
}

func newProcessHandle(spec domain.ProcessSpec, hub *hub, events EventSink, bufBytes int, killWait time.Duration, log zerolog.Logger) *processHandle {
	return &processHandle{
		spec:     spec,
		hub:      hub,
		events:   events,
		log:      log.With().Str("proc", spec.ID).Logger(),
		bufBytes: bufBytes,
		killWait: killWait,
		state:    domain.ProcessStatePending,
	}
}

func (p *processHandle) record(event *domain.ProcessEvent) {
	if p.events != nil {
		p.events.Record(event)
	}
}

// start spawns a new generation. It fails with ErrAlreadyRunning if the
// current generation is still alive. Every spawn attempt, failed or not,
// consumes a generation number so the audit trail can tell attempts apart.
// Events are recorded only after the mutex is released; status reads must
// never wait on the sink.
func (p *processHandle) start() error {
	p.mu.Lock()

	if p.state == domain.ProcessStateRunning {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}

	cmd := exec.Command(p.spec.Command[0], p.spec.Command[1:]...)
	cmd.Dir = p.spec.Dir
	if len(p.spec.Env) > 0 {
		cmd.Env = append(os.Environ(), p.spec.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		p.generation++
		generation := p.generation
		p.state = domain.ProcessStateFailed
		p.reason = err.Error()
		p.mu.Unlock()

		p.record(domain.NewProcessEvent(p.spec.ID, generation, domain.EventFailed).WithDetail(err.Error()))
		return fmt.Errorf("failed to start process: %w", err)
	}

	p.generation++
	generation := p.generation
	pid := cmd.Process.Pid
	now := time.Now()

	p.cmd = cmd
	p.stdin = stdin
	p.stdout = newOutputBuffer(domain.StreamStdout, p.bufBytes)
	p.stderr = newOutputBuffer(domain.StreamStderr, p.bufBytes)
	p.state = domain.ProcessStateRunning
	p.reason = ""
	p.pid = &pid
	p.exitCode = nil
	p.startedAt = &now
	p.endedAt = nil
	p.stopping = false
	p.waitDone = make(chan struct{})

	var pumps sync.WaitGroup
	pumps.Add(2)
	go p.pump(stdoutPipe, p.stdout, &pumps)
	go p.pump(stderrPipe, p.stderr, &pumps)
	go p.reap(cmd, &pumps, p.waitDone, generation)
	p.mu.Unlock()

	p.log.Info().Int("pid", pid).Int("generation", generation).Msg("process started")
	p.record(domain.NewProcessEvent(p.spec.ID, generation, domain.EventStarted).WithPID(pid))

	return nil
}

// pump drains one output stream line by line into the buffer and the
// broadcast hub until the stream closes. Pipes must always be drained
// promptly or the child stalls on a full pipe buffer, so pumping never
// depends on any consumer being present.
func (p *processHandle) pump(r io.Reader, buf *outputBuffer, pumps *sync.WaitGroup) {
	defer pumps.Done()

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			p.hub.publish(buf.Append(line))
		}
		if err != nil {
			if err != io.EOF {
				p.log.Debug().Err(err).Str("stream", string(buf.stream)).Msg("output pump ended with error")
			}
			return
		}
	}
}

// reap waits for both pumps to finish, then reaps the process and settles
// the final state. Pump completion (stream closure) is the canonical exit
// signal; there is no separate exit-polling mechanism.
func (p *processHandle) reap(cmd *exec.Cmd, pumps *sync.WaitGroup, done chan struct{}, generation int) {
	pumps.Wait()
	waitErr := cmd.Wait()

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	unexpected := waitErr != nil && !errors.As(waitErr, &exitErr)

	p.mu.Lock()
	now := time.Now()
	p.endedAt = &now
	p.exitCode = &code

	var kind domain.EventKind
	switch {
	case p.stopping:
		p.state = domain.ProcessStateStopped
		kind = domain.EventStopped
	case p.state == domain.ProcessStateFailed:
		// A stdin write failure already moved the state to Failed.
		kind = domain.EventFailed
	case unexpected:
		p.state = domain.ProcessStateFailed
		p.reason = waitErr.Error()
		kind = domain.EventFailed
	default:
		p.state = domain.ProcessStateExited
		kind = domain.EventExited
	}
	p.stopping = false
	detail := p.reason
	p.mu.Unlock()

	p.log.Info().Int("exit_code", code).Str("state", string(kind)).Int("generation", generation).Msg("process reaped")
	p.record(domain.NewProcessEvent(p.spec.ID, generation, kind).WithExitCode(code).WithDetail(detail))

	close(done)
}

// stop terminates the current generation: SIGTERM, then SIGKILL once the
// grace period expires. It is a no-op when the process is not running. The
// caller is blocked at most grace plus the bounded kill wait.
func (p *processHandle) stop(grace time.Duration) error {
	p.mu.Lock()
	if p.state != domain.ProcessStateRunning {
		p.mu.Unlock()
		return nil
	}
	p.stopping = true
	proc := p.cmd.Process
	done := p.waitDone
	p.mu.Unlock()

	if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.mu.Lock()
		p.stopping = false
		p.mu.Unlock()
		return &KillError{Signal: "SIGTERM", Err: err}
	}

	select {
	case <-done:
		return nil
	case <-time.After(grace):
	}

	p.log.Warn().Dur("grace", grace).Msg("grace period expired, killing process")
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return &KillError{Signal: "SIGKILL", Err: err}
	}

	select {
	case <-done:
		return nil
	case <-time.After(p.killWait):
		return fmt.Errorf("process did not exit within %s of SIGKILL", p.killWait)
	}
}

// sendInput forwards bytes to the process stdin. A failed write means the
// input channel is broken, which the state machine treats as a failure of
// the generation.
func (p *processHandle) sendInput(data []byte) error {
	p.mu.Lock()
	if p.state != domain.ProcessStateRunning {
		p.mu.Unlock()
		return ErrNotRunning
	}
	stdin := p.stdin
	p.mu.Unlock()

	if _, err := stdin.Write(data); err != nil {
		p.mu.Lock()
		if p.state == domain.ProcessStateRunning {
			p.state = domain.ProcessStateFailed
			p.reason = fmt.Sprintf("stdin write failed: %v", err)
		}
		p.mu.Unlock()
		return fmt.Errorf("failed to write to stdin: %w", err)
	}
	return nil
}

// readOutput serves the resumable polling path for one stream.
func (p *processHandle) readOutput(stream domain.Stream, since uint64) ([]domain.Chunk, uint64, error) {
	p.mu.Lock()
	buf := p.stdout
	if stream == domain.StreamStderr {
		buf = p.stderr
	}
	p.mu.Unlock()

	if buf == nil {
		// Never started: nothing produced, nothing evicted.
		return nil, 0, nil
	}
	return buf.ReadSince(since)
}

// tail returns the last n output lines of the current generation, stdout
// and stderr merged in production order.
func (p *processHandle) tail(n int, includeStderr bool) []domain.Chunk {
	p.mu.Lock()
	stdout, stderr := p.stdout, p.stderr
	p.mu.Unlock()

	var merged []domain.Chunk
	if stdout != nil {
		merged = stdout.Snapshot()
	}
	if includeStderr && stderr != nil {
		merged = append(merged, stderr.Snapshot()...)
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].Time.Before(merged[j].Time)
		})
	}

	if n >= 0 && len(merged) > n {
		merged = merged[len(merged)-n:]
	}
	return merged
}

// status returns a point-in-time snapshot. Never blocks on the process.
func (p *processHandle) status() domain.ProcessStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := domain.ProcessStatus{
		ID:         p.spec.ID,
		Command:    p.spec.Command,
		State:      p.state,
		Reason:     p.reason,
		Generation: p.generation,
		StartedAt:  p.startedAt,
		EndedAt:    p.endedAt,
	}
	if p.pid != nil {
		pid := *p.pid
		st.PID = &pid
	}
	if p.exitCode != nil {
		code := *p.exitCode
		st.ExitCode = &code
	}
	return st
}

func (p *processHandle) currentState() domain.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
