package cameras

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"camfleet/internal/caps"
)

// newEchoService spawns n subprocesses that append every control line they
// read to a per-process file, so tests can observe protocol delivery.
func newEchoService(t *testing.T, n int) (*Service, *Supervisor, string) {
	t.Helper()
	dir := t.TempDir()

	src := &fakeSource{devices: testDevices(n)}
	sup := NewSupervisor(SupervisorConfig{
		Binary:      "sh",
		PixelFormat: "YUY2",
		Width:       640,
		Height:      480,
		BasePort:    9000,
		KillTimeout: 500 * time.Millisecond,
	}, src, nil)
	sup.buildArgv = func(_ string, _ caps.CaptureFormat, port int) []string {
		out := controlLog(dir, port)
		return []string{"sh", "-c", fmt.Sprintf(`while read line; do echo "$line" >> %s; done`, out)}
	}

	if started := sup.StartAll(context.Background()); started != n {
		t.Fatalf("started = %d, want %d", started, n)
	}
	t.Cleanup(func() { _ = sup.KillAll(syscall.SIGKILL) })

	svc := NewService(sup, nil, dir)
	return svc, sup, dir
}

func controlLog(dir string, port int) string {
	return filepath.Join(dir, fmt.Sprintf("control-%d.log", port))
}

// waitForLine polls until the control log for port contains the line.
func waitForLine(t *testing.T, dir string, port int, line string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(controlLog(dir, port))
		if err == nil && strings.Contains(string(data), line) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("port %d never received %q", port, line)
}

func TestBroadcastReachesEveryProcess(t *testing.T) {
	svc, _, dir := newEchoService(t, 2)

	if err := svc.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitForLine(t, dir, 9000, CmdPlay)
	waitForLine(t, dir, 9001, CmdPlay)
}

func TestAddClientCarriesAddress(t *testing.T) {
	svc, _, dir := newEchoService(t, 1)

	if err := svc.AddClient("10.0.0.5"); err != nil {
		t.Fatalf("AddClient: %v", err)
	}
	waitForLine(t, dir, 9000, CmdAddClient+" 10.0.0.5")
}

func TestRecordStemsUseNamesWithOrdinalFallback(t *testing.T) {
	svc, sup, dir := newEchoService(t, 2)
	svc.now = func() time.Time {
		return time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC)
	}

	procs := sup.Processes()
	svc.SetNames(map[int]string{procs[0].PID(): "left"})

	stems, err := svc.Record("trial")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(stems) != 2 {
		t.Fatalf("got %d stems, want 2", len(stems))
	}
	if stems[0] != "trial_left_2025-01-27-10-30-00" {
		t.Errorf("stems[0] = %q", stems[0])
	}
	if stems[1] != "trial_1_2025-01-27-10-30-00" {
		t.Errorf("stems[1] = %q (ordinal fallback expected)", stems[1])
	}

	waitForLine(t, dir, procs[0].Info().Port, CmdRecord+" "+filepath.Join(dir, stems[0]))
	waitForLine(t, dir, procs[1].Info().Port, CmdRecord+" "+filepath.Join(dir, stems[1]))
}

func TestSetNamesRejectsPathEscapingLabels(t *testing.T) {
	svc, sup, dir := newEchoService(t, 1)
	svc.now = func() time.Time {
		return time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC)
	}

	pid := sup.Processes()[0].PID()
	svc.SetNames(map[int]string{pid: "../../../../tmp/evil"})

	stems, err := svc.Record("trial")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if stems[0] != "trial_0_2025-01-27-10-30-00" {
		t.Errorf("stems[0] = %q, want ordinal fallback for rejected label", stems[0])
	}
	if target := filepath.Join(dir, stems[0]); !strings.HasPrefix(filepath.Clean(target), dir) {
		t.Errorf("record target %q escapes %q", target, dir)
	}
}

func TestRecordStalledStdinDoesNotBlockSetNames(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{devices: testDevices(1)}
	sup := NewSupervisor(SupervisorConfig{
		Binary:      "sh",
		PixelFormat: "YUY2",
		Width:       640,
		Height:      480,
		BasePort:    9000,
		KillTimeout: 500 * time.Millisecond,
	}, src, nil)
	// The subprocess never reads stdin, so writes block once the pipe fills.
	sup.buildArgv = func(_ string, _ caps.CaptureFormat, _ int) []string {
		return []string{"sh", "-c", "sleep 10"}
	}
	if started := sup.StartAll(context.Background()); started != 1 {
		t.Fatalf("started = %d, want 1", started)
	}
	t.Cleanup(func() { _ = sup.KillAll(syscall.SIGKILL) })

	svc := NewService(sup, nil, dir)
	p := sup.Processes()[0]

	// Saturate the stdin pipe so the next control write parks.
	go func() { _ = p.Send(strings.Repeat("x", 1<<20)) }()
	time.Sleep(50 * time.Millisecond)
	go func() { _, _ = svc.Record("trial") }()
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		svc.SetNames(map[int]string{p.PID(): "left"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SetNames blocked behind a stalled record broadcast")
	}
}

func TestRecordRepeatedCallsDifferOnlyInTimestamp(t *testing.T) {
	svc, _, _ := newEchoService(t, 1)

	times := []time.Time{
		time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC),
		time.Date(2025, 1, 27, 10, 31, 0, 0, time.UTC),
	}
	call := 0
	svc.now = func() time.Time {
		now := times[call]
		call++
		return now
	}

	first, err := svc.Record("trial")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Record("trial")
	if err != nil {
		t.Fatal(err)
	}

	if first[0] == second[0] {
		t.Error("expected distinct stems across calls")
	}
	prefix := "trial_0_"
	if !strings.HasPrefix(first[0], prefix) || !strings.HasPrefix(second[0], prefix) {
		t.Errorf("stems %q, %q should share prefix %q", first[0], second[0], prefix)
	}
}

func TestStopRecordDeletesMatchingFiles(t *testing.T) {
	svc, _, dir := newEchoService(t, 1)
	svc.now = func() time.Time {
		return time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC)
	}

	stems, err := svc.Record("trial")
	if err != nil {
		t.Fatal(err)
	}

	recorded := filepath.Join(dir, stems[0]+".mkv")
	unrelated := filepath.Join(dir, "keep.mkv")
	for _, path := range []string{recorded, unrelated} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := svc.StopRecord(true); err != nil {
		t.Fatalf("StopRecord: %v", err)
	}

	if _, err := os.Stat(recorded); !os.IsNotExist(err) {
		t.Error("recorded file should have been deleted")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("unrelated file should survive")
	}
}

func TestStopRecordKeepsFilesByDefault(t *testing.T) {
	svc, _, dir := newEchoService(t, 1)
	svc.now = func() time.Time {
		return time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC)
	}

	stems, err := svc.Record("trial")
	if err != nil {
		t.Fatal(err)
	}
	recorded := filepath.Join(dir, stems[0]+".mkv")
	if err := os.WriteFile(recorded, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := svc.StopRecord(false); err != nil {
		t.Fatalf("StopRecord: %v", err)
	}
	if _, err := os.Stat(recorded); err != nil {
		t.Error("file should survive stop-record without the delete flag")
	}
	waitForLine(t, dir, 9000, CmdStopRecord)
}

func TestBroadcastEmptyFleet(t *testing.T) {
	sup := newTestSupervisor(&fakeSource{}, nil, nil)
	svc := NewService(sup, nil, t.TempDir())

	if err := svc.Broadcast(CmdPause); err != nil {
		t.Errorf("Broadcast on empty fleet = %v, want nil", err)
	}
}

func TestStatusReportsProcessesAndStorage(t *testing.T) {
	svc, sup, _ := newEchoService(t, 1)

	status := svc.Status()
	if len(status.Processes) != 1 {
		t.Fatalf("got %d processes, want 1", len(status.Processes))
	}
	if status.Processes[0].PID != sup.Processes()[0].PID() {
		t.Error("status pid mismatch")
	}
	if status.Storage == nil {
		t.Error("expected storage data for an existing directory")
	}
}

func TestStatusStorageBestEffort(t *testing.T) {
	sup := newTestSupervisor(&fakeSource{}, nil, nil)
	svc := NewService(sup, nil, "/nonexistent/recordings")

	status := svc.Status()
	if status.Storage != nil {
		t.Error("storage should be absent when disk stats are unreachable")
	}
}

func TestSetNamesSurvivesProcessDeath(t *testing.T) {
	svc, sup, _ := newEchoService(t, 1)
	svc.now = func() time.Time {
		return time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC)
	}

	pid := sup.Processes()[0].PID()
	svc.SetNames(map[int]string{pid: "left", 99999: "stale"})

	if err := sup.KillAll(syscall.SIGKILL); err != nil {
		t.Fatalf("KillAll: %v", err)
	}

	// The mapping is untouched by process death; only SetNames replaces it.
	svc.mu.Lock()
	name := svc.names[99999]
	svc.mu.Unlock()
	if name != "stale" {
		t.Errorf("stale name = %q, want preserved", name)
	}
}
