package events

// Event type constants for kelindar/event.
const (
	TypeProcessStarted uint32 = iota + 1
	TypeProcessExited
	TypeKillFailed
	TypeDiscoveryCompleted
	TypeRecordingStarted
	TypeRecordingStopped
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ProcessStartedEvent is published when a camera subprocess is spawned and
// registered in the live map.
type ProcessStartedEvent struct {
	PID        int    `json:"pid"`
	Port       int    `json:"port"`
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Spawn timestamp"`
}

// Type returns the event type identifier for ProcessStartedEvent.
func (e ProcessStartedEvent) Type() uint32 { return TypeProcessStarted }

// ProcessExitedEvent is published when a camera subprocess leaves the live
// map for any terminal reason (exit, error, kill).
type ProcessExitedEvent struct {
	PID       int    `json:"pid"`
	Reason    string `json:"reason" example:"exited" doc:"Terminal reason: exited, errored, killed"`
	ExitCode  int    `json:"exit_code"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for ProcessExitedEvent.
func (e ProcessExitedEvent) Type() uint32 { return TypeProcessExited }

// KillFailedEvent is published when a per-process kill times out or errors.
type KillFailedEvent struct {
	PID       int    `json:"pid"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for KillFailedEvent.
func (e KillFailedEvent) Type() uint32 { return TypeKillFailed }

// DiscoveryCompletedEvent is published after each device enumeration run.
type DiscoveryCompletedEvent struct {
	DeviceCount int    `json:"device_count"`
	Timestamp   string `json:"timestamp"`
}

// Type returns the event type identifier for DiscoveryCompletedEvent.
func (e DiscoveryCompletedEvent) Type() uint32 { return TypeDiscoveryCompleted }

// RecordingStartedEvent is published when a record operation generates stems
// and broadcasts the record command.
type RecordingStartedEvent struct {
	Session   string   `json:"session"`
	Stems     []string `json:"stems"`
	Timestamp string   `json:"timestamp"`
}

// Type returns the event type identifier for RecordingStartedEvent.
func (e RecordingStartedEvent) Type() uint32 { return TypeRecordingStarted }

// RecordingStoppedEvent is published when a record operation is stopped.
type RecordingStoppedEvent struct {
	FilesDeleted bool   `json:"files_deleted"`
	Timestamp    string `json:"timestamp"`
}

// Type returns the event type identifier for RecordingStoppedEvent.
func (e RecordingStoppedEvent) Type() uint32 { return TypeRecordingStopped }
