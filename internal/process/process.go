// Package process manages the lifecycle of one spawned streaming subprocess:
// spawn with derived arguments, stdout/stderr streaming into the logging
// layer, a one-way stdin control channel, and signal-based termination with a
// bounded wait.
package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"camfleet/internal/logging"
)

// DefaultKillTimeout bounds how long Kill waits for the terminal event.
const DefaultKillTimeout = 3 * time.Second

var (
	// ErrNotWritable reports that the stdin control channel is absent or
	// already closed.
	ErrNotWritable = errors.New("process stdin is not writable")

	// ErrKillTimeout reports that a signaled process produced no terminal
	// event within the bounded wait.
	ErrKillTimeout = errors.New("timeout waiting for process to terminate")
)

// BuildArgv assembles the streaming binary invocation for one camera.
// The flag names are the external binary's contract.
func BuildArgv(binary, devicePath string, fps float64, width, height, port int) []string {
	return []string{
		binary,
		"--device", devicePath,
		"--framerate", strconv.FormatFloat(fps, 'f', -1, 64),
		"--resolution", fmt.Sprintf("%dx%d", width, height),
		"--port", strconv.Itoa(port),
	}
}

// Config describes a subprocess to spawn.
type Config struct {
	Argv       []string
	DevicePath string
	Port       int

	// Logger receives lifecycle events; Output receives the subprocess's
	// stdout/stderr lines (nil falls back to Logger).
	Logger logging.Logger
	Output logging.Logger

	// OnExit runs once, after the terminal state is recorded. It is called
	// from the wait goroutine.
	OnExit func(p *Process)
}

// Process is one spawned subprocess. All methods are safe for concurrent use.
type Process struct {
	cmd    *exec.Cmd
	cfg    Config
	logger logging.Logger

	stdinMu sync.Mutex
	stdin   io.WriteCloser

	done         chan struct{}
	terminalOnce sync.Once

	mu       sync.Mutex
	state    State
	exitCode int
	signal   string
}

// Spawn starts the subprocess described by cfg. The returned process is live;
// its stdout and stderr are streamed line by line into the output logger and
// a wait goroutine records the terminal state when the process ends.
func Spawn(cfg Config) (*Process, error) {
	if len(cfg.Argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetLogger("process")
	}

	p := &Process{
		cfg:    cfg,
		logger: logger,
		state:  StateLive,
		done:   make(chan struct{}),
	}

	p.cmd = exec.Command(cfg.Argv[0], cfg.Argv[1:]...)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Argv[0], err)
	}
	p.stdin = stdin

	logger.Info("Process started", "pid", p.cmd.Process.Pid, "device", cfg.DevicePath, "port", cfg.Port)

	output := cfg.Output
	if output == nil {
		output = logger
	}
	go p.streamOutput(stdout, "stdout", output)
	go p.streamOutput(stderr, "stderr", output)

	go func() {
		err := p.cmd.Wait()
		p.finish(err)
	}()

	return p, nil
}

// PID returns the OS process identifier.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Terminal reports whether the process has reached a terminal state.
func (p *Process) Terminal() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the process reaches a terminal state.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Info returns a snapshot of the process.
func (p *Process) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Info{
		PID:        p.cmd.Process.Pid,
		Port:       p.cfg.Port,
		DevicePath: p.cfg.DevicePath,
		Argv:       p.cfg.Argv,
		State:      p.state,
		ExitCode:   p.exitCode,
		Signal:     p.signal,
	}
}

// Send writes command plus a trailing newline to the process's stdin. The
// control channel is one-way; no response is awaited or parsed. Fails with
// ErrNotWritable if the pipe is absent or already closed.
func (p *Process) Send(command string) error {
	p.stdinMu.Lock()
	defer p.stdinMu.Unlock()

	if p.stdin == nil {
		return ErrNotWritable
	}
	if _, err := io.WriteString(p.stdin, command+"\n"); err != nil {
		p.stdin = nil
		return fmt.Errorf("write control command: %w", err)
	}
	return nil
}

// Signal forwards sig to the process without waiting.
func (p *Process) Signal(sig syscall.Signal) error {
	return p.cmd.Process.Signal(sig)
}

// Kill sends sig and waits up to timeout for the terminal event. A process
// that is already terminal returns nil without being signaled. A zero timeout
// uses DefaultKillTimeout.
func (p *Process) Kill(sig syscall.Signal, timeout time.Duration) error {
	if p.Terminal() {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultKillTimeout
	}

	if err := p.cmd.Process.Signal(sig); err != nil {
		// The process may have exited between the check and the signal.
		if errors.Is(err, os.ErrProcessDone) {
			select {
			case <-p.done:
				return nil
			case <-time.After(timeout):
				return ErrKillTimeout
			}
		}
		return fmt.Errorf("signal %s: %w", sig, err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return ErrKillTimeout
	}
}

// finish records the terminal state exactly once and fires the exit callback.
func (p *Process) finish(waitErr error) {
	p.terminalOnce.Do(func() {
		p.stdinMu.Lock()
		p.stdin = nil
		p.stdinMu.Unlock()

		state, exitCode, sig := terminalStatus(waitErr)

		p.mu.Lock()
		p.state = state
		p.exitCode = exitCode
		p.signal = sig
		p.mu.Unlock()

		close(p.done)

		p.logger.Info("Process terminated",
			"pid", p.cmd.Process.Pid, "state", state, "exit_code", exitCode, "signal", sig)

		if p.cfg.OnExit != nil {
			p.cfg.OnExit(p)
		}
	})
}

// terminalStatus classifies how the process ended.
func terminalStatus(waitErr error) (State, int, string) {
	if waitErr == nil {
		return StateExited, 0, ""
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return StateKilled, exitErr.ExitCode(), ws.Signal().String()
		}
		return StateErrored, exitErr.ExitCode(), ""
	}

	return StateErrored, 1, ""
}

// streamOutput streams one output pipe line by line into the output logger.
func (p *Process) streamOutput(reader io.Reader, source string, output logging.Logger) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		output.Info(scanner.Text(), "source", source, "pid", p.cmd.Process.Pid)
	}
	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
}
