// Package devices enumerates attached camera devices by running the
// device-enumeration tool and parsing its output into typed devices.
package devices

import (
	"context"
	"os/exec"
	"time"

	"camfleet/internal/caps"
	"camfleet/internal/events"
	"camfleet/internal/logging"
)

// DefaultTimeout bounds one enumeration run.
const DefaultTimeout = 10 * time.Second

// Discoverer runs the enumeration tool and parses its output. A failing or
// unparseable run yields zero devices, never an error.
type Discoverer struct {
	command []string
	timeout time.Duration
	bus     *events.Bus
	logger  logging.Logger

	// run is swappable for tests.
	run func(ctx context.Context) ([]byte, error)
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithCommand overrides the enumeration command line.
func WithCommand(argv ...string) Option {
	return func(d *Discoverer) { d.command = argv }
}

// WithTimeout overrides the per-run timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Discoverer) { d.timeout = timeout }
}

// NewDiscoverer creates a discoverer publishing completion events on bus.
// A nil bus disables event publishing.
func NewDiscoverer(bus *events.Bus, opts ...Option) *Discoverer {
	d := &Discoverer{
		command: []string{"gst-device-monitor-1.0", "Video/Source"},
		timeout: DefaultTimeout,
		bus:     bus,
		logger:  logging.GetLogger("devices"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.run == nil {
		d.run = func(ctx context.Context) ([]byte, error) {
			return exec.CommandContext(ctx, d.command[0], d.command[1:]...).Output()
		}
	}
	return d
}

// Discover enumerates devices. Enumeration failure is treated as zero
// devices: logged, never fatal. Devices come back in the tool's emission
// order, which downstream port assignment depends on.
func (d *Discoverer) Discover(ctx context.Context) []caps.Device {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var found []caps.Device
	out, err := d.run(ctx)
	if err != nil {
		d.logger.Warn("Device enumeration failed", "command", d.command[0], "error", err)
	} else {
		found = caps.ParseMonitorOutput(string(out))
	}

	d.logger.Info("Device discovery completed", "count", len(found))
	if d.bus != nil {
		d.bus.Publish(events.DiscoveryCompletedEvent{
			DeviceCount: len(found),
			Timestamp:   time.Now().Format(time.RFC3339),
		})
	}
	return found
}
