package process

// State represents the lifecycle state of a spawned subprocess.
type State string

// Process states. A process is live from spawn until its wait goroutine
// observes termination; the terminal transition happens exactly once.
const (
	StateLive    State = "live"    // Spawned and not yet terminal
	StateExited  State = "exited"  // Terminated with exit code 0
	StateErrored State = "errored" // Terminated with a non-zero exit code
	StateKilled  State = "killed"  // Terminated by a signal
)

// Info is a point-in-time snapshot of a subprocess.
type Info struct {
	PID        int      `json:"pid"`
	Port       int      `json:"port"`
	DevicePath string   `json:"device_path"`
	Argv       []string `json:"argv"`
	State      State    `json:"state"`
	ExitCode   int      `json:"exit_code"`
	Signal     string   `json:"signal,omitempty"`
}
