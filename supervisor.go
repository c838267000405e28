package main

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"sonodict/config"
	"sonodict/ipc"
	"sonodict/log"
)

// stopGrace is how long a worker gets between the STOP command and a
// forced kill.
const stopGrace = 3 * time.Second

// ExitEvent is delivered exactly once when the worker process ends.
// Requested distinguishes a commanded stop from a crash.
type ExitEvent struct {
	Pid       int
	Code      int
	Requested bool
}

// Supervisor owns one worker process: it spawns the current executable
// with the "worker" argument, streams its messages, and reports its exit.
// A dead worker is never restarted automatically; the user decides.
type Supervisor struct {
	exe  string
	args []string
	env  []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   *os.File
	msgs    chan ipc.Message
	exited  chan ExitEvent
	waited  chan struct{}
	stopReq atomic.Bool
	dropped atomic.Int64
}

func NewSupervisor(cfg *config.Config) (*Supervisor, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return &Supervisor{
		exe:  exe,
		args: []string{"worker"},
		env:  append(os.Environ(), cfg.Env()...),
	}, nil
}

func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return fmt.Errorf("worker already running")
	}

	cmd := exec.Command(s.exe, s.args...)
	cmd.Env = s.env

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return err
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return err
	}
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	// Worker diagnostics go to the shared log files, not the terminal.

	if err := cmd.Start(); err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return fmt.Errorf("spawn worker: %w", err)
	}
	// Parent's copies of the child's ends.
	stdinR.Close()
	stdoutW.Close()

	s.cmd = cmd
	s.stdin = stdinW
	s.msgs = make(chan ipc.Message, 256)
	s.exited = make(chan ExitEvent, 1)
	s.waited = make(chan struct{})
	s.stopReq.Store(false)
	s.dropped.Store(0)

	log.WorkerSpawn(cmd.Process.Pid)

	msgs := s.msgs
	go func() {
		r := ipc.NewReader(stdoutR)
		for {
			m, err := r.Next()
			if err != nil {
				stdoutR.Close()
				close(msgs)
				return
			}
			select {
			case msgs <- m:
			default:
				// UI is not draining; a stale level reading is worthless.
				s.dropped.Add(1)
			}
		}
	}()

	waited := s.waited
	exited := s.exited
	pid := cmd.Process.Pid
	go func() {
		err := cmd.Wait()
		close(waited)
		code := 0
		if err != nil {
			code = cmd.ProcessState.ExitCode()
			if code < 0 {
				code = -1 // killed by signal
			}
		}
		requested := s.stopReq.Load()
		log.WorkerExit(pid, code, requested)
		exited <- ExitEvent{Pid: pid, Code: code, Requested: requested}
	}()

	return nil
}

// Messages is the worker's output stream. Closed when the worker's stdout
// closes. Nil when no worker has been started.
func (s *Supervisor) Messages() <-chan ipc.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgs
}

// Exited delivers the worker's exit event. Nil before the first Start.
func (s *Supervisor) Exited() <-chan ExitEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}

func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return false
	}
	select {
	case <-s.waited:
		return false
	default:
		return true
	}
}

// Dropped reports how many messages were discarded because the UI fell
// behind.
func (s *Supervisor) Dropped() int64 { return s.dropped.Load() }

// Stop sends the STOP command and arms a kill timer. It returns
// immediately; the exit lands on Exited either way.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cmd := s.cmd
	stdin := s.stdin
	waited := s.waited
	s.mu.Unlock()
	if cmd == nil {
		return
	}

	s.stopReq.Store(true)
	if stdin != nil {
		fmt.Fprintln(stdin, ipc.CmdStop)
		stdin.Close()
	}

	go func() {
		select {
		case <-waited:
		case <-time.After(stopGrace):
			log.Warnf("worker %d ignored stop, killing", cmd.Process.Pid)
			cmd.Process.Kill()
		}
	}()
}

// Kill terminates the worker without grace. Used on controller shutdown.
func (s *Supervisor) Kill() {
	s.mu.Lock()
	cmd := s.cmd
	waited := s.waited
	s.mu.Unlock()
	if cmd == nil {
		return
	}
	s.stopReq.Store(true)
	cmd.Process.Kill()
	<-waited
}

// Reset forgets the finished worker so Start can be called again.
func (s *Supervisor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return
	}
	select {
	case <-s.waited:
	default:
		return // still running
	}
	if s.stdin != nil {
		s.stdin.Close()
	}
	s.cmd = nil
	s.stdin = nil
}
