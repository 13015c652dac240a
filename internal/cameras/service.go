package cameras

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"camfleet/internal/events"
	"camfleet/internal/logging"
	"camfleet/internal/process"
	"camfleet/internal/storage"
)

// Control protocol vocabulary. The commands are opaque text to this side;
// their meaning is the streaming binary's contract.
const (
	CmdAddClient  = "add_client"
	CmdRecord     = "record"
	CmdStopRecord = "stop_record"
	CmdPlay       = "play"
	CmdPause      = "pause"
	CmdStop       = "stop"
)

// stemTimeLayout renders zero-padded YYYY-MM-DD-HH-MM-SS.
const stemTimeLayout = "2006-01-02-15-04-05"

// Camera labels become file-name stems, so they carry the same character
// restriction as session labels. Anything else would let a label escape the
// recording directory.
var labelRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Status is the externally visible fleet summary. Storage is best-effort and
// absent when the disk stats are unreachable.
type Status struct {
	Processes []process.Info `json:"processes"`
	Storage   *storage.Usage `json:"storage,omitempty"`
}

// Service composes the supervisor with the control protocol to implement the
// recording-session operations.
type Service struct {
	sup       *Supervisor
	bus       *events.Bus
	logger    logging.Logger
	recordDir string

	mu    sync.Mutex
	names map[int]string
	stems []string

	now func() time.Time
}

// NewService creates the facade. recordDir is where recording stems resolve
// to files. A nil bus disables event publishing.
func NewService(sup *Supervisor, bus *events.Bus, recordDir string) *Service {
	return &Service{
		sup:       sup,
		bus:       bus,
		logger:    logging.GetLogger("cameras"),
		recordDir: recordDir,
		names:     make(map[int]string),
		now:       time.Now,
	}
}

// Broadcast sends command to every live process in ascending pid order. Each
// write's outcome is independent; per-process failures come back joined.
func (s *Service) Broadcast(command string) error {
	var errs []error
	for _, p := range s.sup.Processes() {
		if err := p.Send(command); err != nil {
			s.logger.Warn("Control write failed", "pid", p.PID(), "command", command, "error", err)
			errs = append(errs, fmt.Errorf("pid %d: %w", p.PID(), err))
		}
	}
	return errors.Join(errs...)
}

// Record starts a recording session: the previous stem set is cleared, and
// every live process gets a stem of the form
// <session>_<name>_<YYYY-MM-DD-HH-MM-SS>, where name is the assigned camera
// label for that pid, falling back to the ordinal index. Returns the stems;
// failed control writes come back joined without aborting the others.
func (s *Service) Record(session string) ([]string, error) {
	procs := s.sup.Processes()
	timestamp := s.now().Format(stemTimeLayout)

	s.mu.Lock()
	stems := make([]string, 0, len(procs))
	for i, p := range procs {
		name := s.names[p.PID()]
		if name == "" {
			name = strconv.Itoa(i)
		}
		stems = append(stems, fmt.Sprintf("%s_%s_%s", session, name, timestamp))
	}
	s.stems = stems
	s.mu.Unlock()

	// Control writes happen outside the lock: a subprocess with a stalled
	// stdin must not block name or stop operations behind it.
	var errs []error
	for i, p := range procs {
		if err := p.Send(CmdRecord + " " + filepath.Join(s.recordDir, stems[i])); err != nil {
			s.logger.Warn("Record command failed", "pid", p.PID(), "stem", stems[i], "error", err)
			errs = append(errs, fmt.Errorf("pid %d: %w", p.PID(), err))
		}
	}

	s.publish(events.RecordingStartedEvent{
		Session:   session,
		Stems:     stems,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return stems, errors.Join(errs...)
}

// StopRecord broadcasts the stop-record command and clears the stem set. With
// deleteFiles, files matching each remembered stem prefix are removed;
// deletion problems are logged, not returned.
func (s *Service) StopRecord(deleteFiles bool) error {
	err := s.Broadcast(CmdStopRecord)

	s.mu.Lock()
	stems := s.stems
	s.stems = nil
	s.mu.Unlock()

	if deleteFiles {
		for _, stem := range stems {
			if deleted, derr := storage.DeleteByPrefix(s.recordDir, stem); derr != nil {
				s.logger.Warn("Failed to delete partial recording", "stem", stem, "error", derr)
			} else if len(deleted) > 0 {
				s.logger.Info("Deleted partial recording files", "stem", stem, "files", deleted)
			}
		}
	}

	s.publish(events.RecordingStoppedEvent{
		FilesDeleted: deleteFiles,
		Timestamp:    time.Now().Format(time.RFC3339),
	})
	return err
}

// Play broadcasts the play command.
func (s *Service) Play() error { return s.Broadcast(CmdPlay) }

// Pause broadcasts the pause command.
func (s *Service) Pause() error { return s.Broadcast(CmdPause) }

// Stop broadcasts the stop command.
func (s *Service) Stop() error { return s.Broadcast(CmdStop) }

// AddClient broadcasts the add-client command with the viewer's address.
func (s *Service) AddClient(ip string) error {
	return s.Broadcast(CmdAddClient + " " + ip)
}

// SetNames replaces the camera label mapping, keyed by process id. Labels
// that fail the character restriction are dropped, leaving those cameras on
// the ordinal fallback. Labels have a lifecycle independent of the processes:
// a label for a dead pid stays until the next call.
func (s *Service) SetNames(names map[int]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = make(map[int]string, len(names))
	for pid, name := range names {
		if !labelRe.MatchString(name) {
			s.logger.Warn("Rejecting camera label", "pid", pid, "name", name)
			continue
		}
		s.names[pid] = name
	}
}

// Status reports per-process summaries plus best-effort storage data. It
// never fails; unreachable disk stats leave the storage field absent.
func (s *Service) Status() Status {
	procs := s.sup.Processes()
	status := Status{Processes: make([]process.Info, 0, len(procs))}
	for _, p := range procs {
		status.Processes = append(status.Processes, p.Info())
	}

	if usage, err := storage.DiskUsage(s.recordDir); err != nil {
		s.logger.Warn("Disk usage unavailable", "path", s.recordDir, "error", err)
	} else {
		status.Storage = &usage
	}
	return status
}

// RecordDir returns the recording directory.
func (s *Service) RecordDir() string { return s.recordDir }

func (s *Service) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}
