package cameras

import (
	"context"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"camfleet/internal/caps"
	"camfleet/internal/events"
)

const (
	scriptCooperative = `trap 'exit 0' TERM; while :; do sleep 0.1; done`
	scriptStubborn    = `trap '' TERM; sleep 10`
)

type fakeSource struct {
	devices []caps.Device
	calls   atomic.Int32
}

func (f *fakeSource) Discover(_ context.Context) []caps.Device {
	f.calls.Add(1)
	return f.devices
}

func testDevices(n int) []caps.Device {
	devices := make([]caps.Device, n)
	for i := range devices {
		devices[i] = caps.Device{
			Name: "Test Cam",
			Path: "/dev/video" + string(rune('0'+i)),
			Formats: []caps.CaptureFormat{
				{PixelFormat: "YUY2", Width: 640, Height: 480, FPS: 30},
			},
		}
	}
	return devices
}

// newTestSupervisor runs shell scripts instead of the streaming binary,
// picked per device by port offset from the base port.
func newTestSupervisor(source DeviceSource, bus *events.Bus, scripts map[int]string) *Supervisor {
	sup := NewSupervisor(SupervisorConfig{
		Binary:      "sh",
		PixelFormat: "YUY2",
		Width:       640,
		Height:      480,
		BasePort:    9000,
		KillTimeout: 500 * time.Millisecond,
	}, source, bus)
	sup.buildArgv = func(_ string, _ caps.CaptureFormat, port int) []string {
		return []string{"sh", "-c", scripts[port-9000]}
	}
	return sup
}

func waitCount(t *testing.T, sup *Supervisor, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if sup.Count() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Count() = %d, want %d", sup.Count(), want)
}

func TestStartAllSpawnsPerDevice(t *testing.T) {
	src := &fakeSource{devices: testDevices(2)}
	sup := newTestSupervisor(src, nil, map[int]string{0: scriptCooperative, 1: scriptCooperative})
	defer func() { _ = sup.KillAll(syscall.SIGKILL) }()

	if started := sup.StartAll(context.Background()); started != 2 {
		t.Fatalf("started = %d, want 2", started)
	}
	if sup.Count() != 2 {
		t.Errorf("Count = %d, want 2", sup.Count())
	}

	ports := map[int]bool{}
	for _, p := range sup.Processes() {
		ports[p.Info().Port] = true
	}
	if !ports[9000] || !ports[9001] {
		t.Errorf("expected ports 9000 and 9001, got %v", ports)
	}
}

func TestStartAllSkipsFormatMiss(t *testing.T) {
	devices := testDevices(2)
	devices[0].Formats = []caps.CaptureFormat{
		{PixelFormat: "NV12", Width: 1920, Height: 1080, FPS: 30},
	}
	src := &fakeSource{devices: devices}
	sup := newTestSupervisor(src, nil, map[int]string{0: scriptCooperative, 1: scriptCooperative})
	defer func() { _ = sup.KillAll(syscall.SIGKILL) }()

	if started := sup.StartAll(context.Background()); started != 1 {
		t.Fatalf("started = %d, want 1", started)
	}
	// Port assignment follows discovery order, not start count.
	if port := sup.Processes()[0].Info().Port; port != 9001 {
		t.Errorf("port = %d, want 9001", port)
	}
}

func TestStartAllSpawnFailureSkips(t *testing.T) {
	src := &fakeSource{devices: testDevices(2)}
	sup := newTestSupervisor(src, nil, map[int]string{0: scriptCooperative, 1: scriptCooperative})
	sup.buildArgv = func(_ string, _ caps.CaptureFormat, port int) []string {
		if port == 9000 {
			return []string{"/nonexistent/streaming/binary"}
		}
		return []string{"sh", "-c", scriptCooperative}
	}
	defer func() { _ = sup.KillAll(syscall.SIGKILL) }()

	if started := sup.StartAll(context.Background()); started != 1 {
		t.Fatalf("started = %d, want 1", started)
	}
}

func TestExitRemovesEntryExactlyOnce(t *testing.T) {
	bus := events.New()
	var exits atomic.Int32
	unsub := bus.Subscribe(func(_ events.ProcessExitedEvent) {
		exits.Add(1)
	})
	defer unsub()

	src := &fakeSource{devices: testDevices(1)}
	sup := newTestSupervisor(src, bus, map[int]string{0: "exit 0"})

	sup.StartAll(context.Background())
	waitCount(t, sup, 0, 2*time.Second)

	time.Sleep(100 * time.Millisecond)
	if got := exits.Load(); got != 1 {
		t.Errorf("exit events = %d, want 1", got)
	}
}

func TestKillAllSettleAll(t *testing.T) {
	src := &fakeSource{devices: testDevices(3)}
	sup := newTestSupervisor(src, nil, map[int]string{
		0: scriptCooperative,
		1: scriptStubborn,
		2: scriptCooperative,
	})
	defer func() { _ = sup.KillAll(syscall.SIGKILL) }()

	if started := sup.StartAll(context.Background()); started != 3 {
		t.Fatalf("started = %d, want 3", started)
	}
	time.Sleep(100 * time.Millisecond)

	err := sup.KillAll(syscall.SIGTERM)
	if err == nil {
		t.Fatal("expected a kill failure for the stubborn process")
	}

	// The cooperative processes died and were removed; the failure stays.
	if sup.Count() != 1 {
		t.Fatalf("Count = %d, want 1", sup.Count())
	}
	if port := sup.Processes()[0].Info().Port; port != 9001 {
		t.Errorf("surviving port = %d, want 9001", port)
	}
}

func TestRestartAbortsOnKillFailure(t *testing.T) {
	src := &fakeSource{devices: testDevices(1)}
	sup := newTestSupervisor(src, nil, map[int]string{0: scriptStubborn})
	defer func() { _ = sup.KillAll(syscall.SIGKILL) }()

	sup.StartAll(context.Background())
	time.Sleep(100 * time.Millisecond)

	if err := sup.Restart(context.Background()); err == nil {
		t.Fatal("expected restart to fail")
	}

	// No respawn happened: discovery ran only for the initial start.
	if calls := src.calls.Load(); calls != 1 {
		t.Errorf("discovery calls = %d, want 1", calls)
	}
	if sup.Count() != 1 {
		t.Errorf("Count = %d, want 1", sup.Count())
	}
}

func TestRestartRespawns(t *testing.T) {
	src := &fakeSource{devices: testDevices(1)}
	sup := newTestSupervisor(src, nil, map[int]string{0: scriptCooperative})
	defer func() { _ = sup.KillAll(syscall.SIGKILL) }()

	sup.StartAll(context.Background())
	time.Sleep(100 * time.Millisecond)
	oldPID := sup.Processes()[0].PID()

	if err := sup.Restart(context.Background()); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if sup.Count() != 1 {
		t.Fatalf("Count = %d, want 1", sup.Count())
	}
	if newPID := sup.Processes()[0].PID(); newPID == oldPID {
		t.Error("expected a fresh process after restart")
	}
}

func TestShutdownEscalatesToSIGKILL(t *testing.T) {
	src := &fakeSource{devices: testDevices(1)}
	sup := newTestSupervisor(src, nil, map[int]string{0: scriptStubborn})

	sup.StartAll(context.Background())
	time.Sleep(100 * time.Millisecond)

	if err := sup.Shutdown(syscall.SIGTERM); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if sup.Count() != 0 {
		t.Errorf("Count = %d, want 0 after escalation", sup.Count())
	}
}

func TestKillAllEmptyFleet(t *testing.T) {
	sup := newTestSupervisor(&fakeSource{}, nil, nil)
	if err := sup.KillAll(syscall.SIGTERM); err != nil {
		t.Errorf("KillAll on empty fleet = %v, want nil", err)
	}
}
