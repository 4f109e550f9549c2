// Package supervisor owns the lifecycle of the single supervised game
// server process: spawning, graceful stop with escalation, forced kill,
// exit detection and output capture.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/gamewarden/gamewarden/internal/journal"
	"github.com/gamewarden/gamewarden/internal/logbuf"
	"github.com/gamewarden/gamewarden/internal/metrics"
)

const (
	logTimeFormat = "2006-01-02 15:04:05"

	// shutdownGrace is how long Shutdown waits for a graceful exit
	// before killing the child.
	shutdownGrace = 3 * time.Second

	// restartPollInterval is the poll period Restart uses while waiting
	// for the previous run to finish.
	restartPollInterval = 100 * time.Millisecond

	journalSendTimeout = 5 * time.Second
)

type commandAction int

const (
	actionStart commandAction = iota
	actionStop
	actionKill
	actionShutdown
)

// command serializes one control operation through the state machine
// goroutine.
type command struct {
	action commandAction
	reply  chan error
}

type exitResult struct {
	code int
	err  error
}

// childRun holds everything tied to one spawned server process.
type childRun struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	pump   *pump
	exitCh chan exitResult
	forced bool // a kill or escalation was issued for this run
}

// Supervisor drives the lifecycle state machine for one game server.
// All state transitions happen on a single goroutine fed by a command
// channel, so control operations are linearized; Status reads a
// mutex-guarded mirror and never goes through the channel.
type Supervisor struct {
	spec    Spec
	logs    *logbuf.Buffer
	journal journal.Sink // may be nil
	log     *slog.Logger

	fileMu  sync.Mutex
	logFile io.WriteCloser // may be nil

	cmdCh chan command
	done  chan struct{}

	mu        sync.RWMutex
	state     State
	pid       int
	startedAt time.Time
	lastExit  *ExitStatus
}

// New constructs a supervisor and starts its state machine goroutine.
// sink may be nil to disable the lifecycle journal. The ring buffer
// persists across child restarts; only the supervisor's own restart
// clears it.
func New(spec Spec, log *slog.Logger, sink journal.Sink) *Supervisor {
	spec.normalize()
	if log == nil {
		log = slog.Default()
	}
	s := &Supervisor{
		spec:    spec,
		logs:    logbuf.New(spec.TailMax),
		journal: sink,
		log:     log,
		logFile: spec.Log.Writer(),
		cmdCh:   make(chan command),
		done:    make(chan struct{}),
		state:   StateStopped,
	}
	go s.run()
	return s
}

// Start spawns the configured server. Allowed only from the Stopped and
// Crashed states; returns ErrAlreadyRunning otherwise, or a *SpawnError
// when the OS refuses to create the process (state reverts to Stopped).
func (s *Supervisor) Start() error { return s.send(actionStart) }

// Stop initiates a graceful stop. It returns once the stop signal has
// been sent; the outcome is observed via Status. If the server does not
// exit within the configured stop timeout the supervisor escalates to a
// forced kill on its own.
func (s *Supervisor) Stop() error { return s.send(actionStop) }

// Kill forcibly terminates the server immediately. Allowed from Running
// and Stopping.
func (s *Supervisor) Kill() error { return s.send(actionKill) }

func (s *Supervisor) send(a commandAction) error {
	reply := make(chan error, 1)
	select {
	case s.cmdCh <- command{action: a, reply: reply}:
		return <-reply
	case <-s.done:
		return ErrShuttingDown
	}
}

// Status returns a point-in-time snapshot. It never blocks on the state
// machine and never fails.
func (s *Supervisor) Status() Snapshot {
	s.mu.RLock()
	st := s.state
	pid := s.pid
	startedAt := s.startedAt
	lastExit := s.lastExit
	s.mu.RUnlock()

	snap := Snapshot{State: st}
	switch st {
	case StateStarting, StateRunning, StateStopping, StateKilling:
		snap.PID = pid
		snap.StartedAt = startedAt
		snap.Uptime = time.Since(startedAt)
	default:
		if lastExit != nil {
			le := *lastExit
			snap.LastExit = &le
		}
	}
	snap.LogTail = s.logs.Tail(s.spec.SummaryLines)
	return snap
}

// Tail returns the most recent min(n, buffered) output lines in
// chronological order. n is clamped to the configured maximum.
func (s *Supervisor) Tail(n int) []logbuf.Line {
	if n <= 0 || n > s.spec.TailMax {
		n = s.spec.TailMax
	}
	return s.logs.Tail(n)
}

// StopTimeout returns the grace period before a stop escalates.
func (s *Supervisor) StopTimeout() time.Duration { return s.spec.StopTimeout }

// Subscribe registers a live feed of captured output lines.
func (s *Supervisor) Subscribe() chan logbuf.Line { return s.logs.Subscribe() }

// Unsubscribe releases a channel obtained from Subscribe.
func (s *Supervisor) Unsubscribe(ch chan logbuf.Line) { s.logs.Unsubscribe(ch) }

// Restart performs a graceful stop (when running) and starts the server
// again once the previous run has fully finished.
func (s *Supervisor) Restart(ctx context.Context) error {
	if err := s.Stop(); err != nil {
		if !errors.Is(err, ErrNotRunning) {
			return err
		}
	}
	t := time.NewTicker(restartPollInterval)
	defer t.Stop()
	for {
		switch s.Status().State {
		case StateStopped, StateCrashed:
			return s.Start()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return ErrShuttingDown
		case <-t.C:
		}
	}
}

// Shutdown stops the state machine, gracefully terminating a live child
// first (escalating after a short grace period). The supervisor cannot
// be reused afterwards.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case s.cmdCh <- command{action: actionShutdown, reply: reply}:
	case <-s.done:
		return nil // already shut down
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the state machine. It is the only goroutine that mutates
// lifecycle state; the exit watcher and the escalation timer feed it
// through channels that are nil while no child is live.
func (s *Supervisor) run() {
	var (
		run      *childRun
		exitCh   chan exitResult
		escalate <-chan time.Time
	)
	for {
		select {
		case cmd := <-s.cmdCh:
			switch cmd.action {
			case actionStart:
				if st := s.currentState(); st != StateStopped && st != StateCrashed {
					cmd.reply <- ErrAlreadyRunning
					continue
				}
				r, err := s.spawn()
				if err != nil {
					cmd.reply <- err
					continue
				}
				run, exitCh = r, r.exitCh
				cmd.reply <- nil

			case actionStop:
				if s.currentState() != StateRunning {
					cmd.reply <- ErrNotRunning
					continue
				}
				s.sendStopSignal(run)
				s.setState(StateStopping)
				escalate = time.After(s.spec.StopTimeout)
				e := journal.NewEvent(journal.EventStopSent)
				e.PID = run.cmd.Process.Pid
				s.record(e, "graceful stop requested")
				cmd.reply <- nil

			case actionKill:
				if st := s.currentState(); st != StateRunning && st != StateStopping {
					cmd.reply <- ErrNotRunning
					continue
				}
				escalate = nil
				s.forceKill(run, journal.EventKilled, "forced kill requested")
				cmd.reply <- nil

			case actionShutdown:
				if run != nil {
					s.sendStopSignal(run)
					s.setState(StateStopping)
					select {
					case res := <-exitCh:
						s.finishRun(run, res)
					case <-time.After(shutdownGrace):
						s.forceKill(run, journal.EventKilled, "shutdown escalated to kill")
						s.finishRun(run, <-exitCh)
					}
				}
				s.closeLogFile()
				cmd.reply <- nil
				close(s.done)
				return
			}

		case res := <-exitCh:
			s.finishRun(run, res)
			run, exitCh, escalate = nil, nil, nil

		case <-escalate:
			escalate = nil
			if run == nil || s.currentState() != StateStopping {
				continue
			}
			s.log.Warn("graceful stop timed out, escalating to kill", "timeout", s.spec.StopTimeout)
			metrics.IncEscalation()
			s.forceKill(run, journal.EventEscalated, "graceful stop timed out")
		}
	}
}

// spawn creates and starts the child, wires the output pump and the exit
// watcher, and moves the machine to Running. On failure the state
// returns to Stopped.
func (s *Supervisor) spawn() (*childRun, error) {
	s.setState(StateStarting)

	c := s.spec.buildCommand()
	if s.spec.Directory != "" {
		c.Dir = s.spec.Directory
	}
	if len(s.spec.Env) > 0 {
		c.Env = append(os.Environ(), s.spec.Env...)
	}
	configureSysProcAttr(c)

	stdin, err := c.StdinPipe()
	if err != nil {
		s.setState(StateStopped)
		return nil, &SpawnError{Err: err}
	}
	// One pipe for both streams keeps stdout/stderr interleaving intact.
	pr, pw, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		s.setState(StateStopped)
		return nil, &SpawnError{Err: err}
	}
	c.Stdout = pw
	c.Stderr = pw

	if err := c.Start(); err != nil {
		_ = stdin.Close()
		_ = pr.Close()
		_ = pw.Close()
		s.setState(StateStopped)
		return nil, &SpawnError{Err: err}
	}
	_ = pw.Close() // the child owns the write end now

	pid := c.Process.Pid
	s.mu.Lock()
	s.pid = pid
	s.startedAt = time.Now()
	s.mu.Unlock()

	p := newPump(pr, s.logs, s.appendLine, s.log)
	go p.run()

	r := &childRun{cmd: c, stdin: stdin, pump: p, exitCh: make(chan exitResult, 1)}
	go watchExit(r)

	s.setState(StateRunning)
	metrics.IncStart()
	e := journal.NewEvent(journal.EventSpawn)
	e.PID = pid
	s.record(e, fmt.Sprintf("spawned server pid=%d", pid))
	return r, nil
}

// watchExit reaps the child and waits for the pump to finish draining
// before reporting the result, so no output line is lost to a race with
// state finalization.
func watchExit(r *childRun) {
	err := r.cmd.Wait()
	<-r.pump.done
	code := -1
	if ps := r.cmd.ProcessState; ps != nil {
		code = ps.ExitCode()
	}
	r.exitCh <- exitResult{code: code, err: err}
}

// sendStopSignal delivers the graceful termination request: the
// configured stop command on the server's stdin, or SIGTERM to the
// process group when no stop command is configured or the write fails.
func (s *Supervisor) sendStopSignal(run *childRun) {
	if s.spec.StopCommand != "" {
		_, err := io.WriteString(run.stdin, s.spec.StopCommand+"\n")
		if err == nil {
			return
		}
		s.log.Warn("failed to write stop command to server stdin, falling back to signal", "error", err)
	}
	if err := terminateGroup(run.cmd.Process.Pid); err != nil {
		s.log.Warn("failed to signal server process group", "error", err, "pid", run.cmd.Process.Pid)
	}
}

func (s *Supervisor) forceKill(run *childRun, ev journal.EventType, detail string) {
	run.forced = true
	if err := killGroup(run.cmd.Process.Pid); err != nil {
		s.log.Warn("failed to kill server process group", "error", err, "pid", run.cmd.Process.Pid)
	}
	s.setState(StateKilling)
	metrics.IncKill()
	e := journal.NewEvent(ev)
	e.PID = run.cmd.Process.Pid
	e.Forced = true
	e.Detail = detail
	s.record(e, detail)
}

// finishRun applies the exit of the current child: Stopping/Killing end
// in Stopped; an unsolicited exit while Running ends in Crashed.
func (s *Supervisor) finishRun(run *childRun, res exitResult) {
	_ = run.stdin.Close()

	prior := s.currentState()
	exit := &ExitStatus{Code: res.code, Forced: run.forced, At: time.Now()}

	s.mu.Lock()
	s.pid = 0
	s.startedAt = time.Time{}
	s.lastExit = exit
	s.mu.Unlock()

	code := res.code
	e := journal.NewEvent(journal.EventExited)
	e.ExitCode = &code
	e.Forced = run.forced

	switch prior {
	case StateStopping:
		s.setState(StateStopped)
		metrics.IncStop()
		s.record(e, fmt.Sprintf("server exited code=%d", code))
	case StateKilling:
		s.setState(StateStopped)
		s.record(e, fmt.Sprintf("server terminated forcibly code=%d", code))
	default:
		// Unsolicited exit while Running (or any other live state).
		s.setState(StateCrashed)
		metrics.IncCrash()
		e.Type = journal.EventCrashed
		s.record(e, fmt.Sprintf("server exited unexpectedly code=%d", code))
		s.log.Error("server process exited unexpectedly", "code", code, "error", res.err)
	}
}

func (s *Supervisor) currentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Supervisor) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	metrics.RecordStateTransition(prev.String(), next.String())
	metrics.SetCurrentState(prev.String(), false)
	metrics.SetCurrentState(next.String(), true)
	s.log.Debug("state transition", "from", prev.String(), "to", next.String())
}

// appendLine writes one timestamped line to the persisted log file. It
// is used by the pump for server output and by record for lifecycle
// events; the mutex keeps the two writers from interleaving.
func (s *Supervisor) appendLine(ts time.Time, text string) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if s.logFile == nil {
		return nil
	}
	_, err := fmt.Fprintf(s.logFile, "[%s] %s\n", ts.Format(logTimeFormat), text)
	return err
}

// record persists a lifecycle event to the log file and the journal.
// Journal failures are logged, never propagated: background bookkeeping
// must not break control operations.
func (s *Supervisor) record(e journal.Event, msg string) {
	if err := s.appendLine(e.OccurredAt, "[warden] "+msg); err != nil {
		s.log.Warn("failed to append lifecycle event to log file", "error", err)
	}
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalSendTimeout)
	defer cancel()
	if err := s.journal.Send(ctx, e); err != nil {
		s.log.Warn("failed to journal lifecycle event", "type", string(e.Type), "error", err)
	}
}

func (s *Supervisor) closeLogFile() {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if s.logFile != nil {
		_ = s.logFile.Close()
		s.logFile = nil
	}
}
