// Package cameras supervises the fleet of streaming subprocesses attached to
// physical camera devices and exposes the recording-session facade built on
// their stdin control protocol.
package cameras

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"syscall"
	"time"

	"camfleet/internal/caps"
	"camfleet/internal/events"
	"camfleet/internal/logging"
	"camfleet/internal/process"
)

// DeviceSource enumerates attached camera devices.
type DeviceSource interface {
	Discover(ctx context.Context) []caps.Device
}

// SupervisorConfig holds the spawn parameters shared by the whole fleet.
type SupervisorConfig struct {
	Binary      string
	PixelFormat string
	Width       int
	Height      int
	BasePort    int
	KillTimeout time.Duration
}

// Supervisor owns the live process map, keyed by OS process id. Entries are
// removed exactly once, by the exit callback or by kill completion; no other
// component mutates the map.
type Supervisor struct {
	cfg     SupervisorConfig
	source  DeviceSource
	bus     *events.Bus
	logger  logging.Logger
	output  logging.Logger

	// buildArgv is swappable for tests.
	buildArgv func(devicePath string, format caps.CaptureFormat, port int) []string

	mu   sync.Mutex
	live map[int]*process.Process
}

// NewSupervisor creates a supervisor over the given device source. A nil bus
// disables event publishing.
func NewSupervisor(cfg SupervisorConfig, source DeviceSource, bus *events.Bus) *Supervisor {
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = process.DefaultKillTimeout
	}
	s := &Supervisor{
		cfg:    cfg,
		source: source,
		bus:    bus,
		logger: logging.GetLogger("cameras"),
		output: logging.GetLogger("camera"),
		live:   make(map[int]*process.Process),
	}
	s.buildArgv = func(devicePath string, format caps.CaptureFormat, port int) []string {
		return process.BuildArgv(cfg.Binary, devicePath, format.FPS, format.Width, format.Height, port)
	}
	return s
}

// StartAll discovers devices and spawns one streaming process per usable
// device, assigning ports upward from the base port in discovery order. A
// device with no matching format or a failed spawn is skipped; the others
// proceed. Returns the number of processes started.
func (s *Supervisor) StartAll(ctx context.Context) int {
	found := s.source.Discover(ctx)

	started := 0
	for i, dev := range found {
		port := s.cfg.BasePort + i

		format, err := caps.Select(dev.Formats, s.cfg.PixelFormat, s.cfg.Width, s.cfg.Height)
		if err != nil {
			s.logger.Warn("No matching capture format, skipping device",
				"device", dev.Path, "name", dev.Name, "error", err)
			continue
		}

		p, err := process.Spawn(process.Config{
			Argv:       s.buildArgv(dev.Path, format, port),
			DevicePath: dev.Path,
			Port:       port,
			Logger:     s.logger,
			Output:     s.output,
			OnExit:     s.handleExit,
		})
		if err != nil {
			s.logger.Error("Failed to spawn camera process", "device", dev.Path, "error", err)
			continue
		}

		s.mu.Lock()
		s.live[p.PID()] = p
		s.mu.Unlock()

		s.publish(events.ProcessStartedEvent{
			PID:        p.PID(),
			Port:       port,
			DevicePath: dev.Path,
			Timestamp:  time.Now().Format(time.RFC3339),
		})
		started++

		// The exit callback may have fired before the map insert; settle it.
		if p.Terminal() {
			s.handleExit(p)
		}
	}

	s.logger.Info("Fleet start completed", "devices", len(found), "started", started)
	return started
}

// KillAll signals every live process and waits for each to settle
// independently; a stuck process never blocks the others. Already-terminal
// entries are removed without signaling. Successful kills leave the map;
// failed ones stay in it and come back joined in the returned error.
func (s *Supervisor) KillAll(sig syscall.Signal) error {
	s.mu.Lock()
	procs := make([]*process.Process, 0, len(s.live))
	for _, p := range s.live {
		procs = append(procs, p)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	var failMu sync.Mutex
	var failures []error

	for _, p := range procs {
		wg.Add(1)
		go func(p *process.Process) {
			defer wg.Done()
			if err := p.Kill(sig, s.cfg.KillTimeout); err != nil {
				s.logger.Error("Failed to kill camera process", "pid", p.PID(), "error", err)
				failMu.Lock()
				failures = append(failures, fmt.Errorf("pid %d: %w", p.PID(), err))
				failMu.Unlock()
				s.publish(events.KillFailedEvent{
					PID:       p.PID(),
					Error:     err.Error(),
					Timestamp: time.Now().Format(time.RFC3339),
				})
				return
			}
			s.handleExit(p)
		}(p)
	}
	wg.Wait()

	return errors.Join(failures...)
}

// Restart kills the fleet and starts it again. If any kill fails the respawn
// is aborted and the partial failure surfaces to the caller.
func (s *Supervisor) Restart(ctx context.Context) error {
	if err := s.KillAll(syscall.SIGTERM); err != nil {
		return fmt.Errorf("restart aborted, processes failed to terminate: %w", err)
	}
	s.StartAll(ctx)
	return nil
}

// Shutdown kills the fleet with sig, escalating to SIGKILL if anything
// survives. An error means processes outlived even the escalation.
func (s *Supervisor) Shutdown(sig syscall.Signal) error {
	if err := s.KillAll(sig); err != nil {
		s.logger.Warn("Graceful shutdown incomplete, escalating to SIGKILL", "error", err)
		if err := s.KillAll(syscall.SIGKILL); err != nil {
			return fmt.Errorf("processes survived SIGKILL escalation: %w", err)
		}
	}
	return nil
}

// Processes returns the live processes in ascending pid order.
func (s *Supervisor) Processes() []*process.Process {
	s.mu.Lock()
	procs := make([]*process.Process, 0, len(s.live))
	for _, p := range s.live {
		procs = append(procs, p)
	}
	s.mu.Unlock()

	sort.Slice(procs, func(i, j int) bool { return procs[i].PID() < procs[j].PID() })
	return procs
}

// Count returns the number of live entries.
func (s *Supervisor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// handleExit removes a process from the live map exactly once; the remover is
// the publisher, so each exit produces one event.
func (s *Supervisor) handleExit(p *process.Process) {
	s.mu.Lock()
	_, present := s.live[p.PID()]
	if present {
		delete(s.live, p.PID())
	}
	s.mu.Unlock()
	if !present {
		return
	}

	info := p.Info()
	s.logger.Info("Camera process left the fleet",
		"pid", info.PID, "state", info.State, "exit_code", info.ExitCode, "signal", info.Signal)
	s.publish(events.ProcessExitedEvent{
		PID:       info.PID,
		Reason:    string(info.State),
		ExitCode:  info.ExitCode,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *Supervisor) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}
