package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"guestmap/internal/domain"
	"guestmap/internal/transport"
)

// stubSession answers every probe command with empty output, so the
// suite sees a guest with no workloads
type stubSession struct{ ports string }

func (s *stubSession) Run(ctx context.Context, command string) (string, error) {
	if strings.Contains(command, "ss -tnlp") || strings.Contains(command, "Get-NetTCPConnection") {
		return s.ports, nil
	}
	return "", nil
}

func (s *stubSession) Close() error { return nil }

// stubDialer accepts one username and tracks per-host dial counts
type stubDialer struct {
	mu     sync.Mutex
	accept string
	ports  string
	dials  map[string]int
}

func newStubDialer(accept string) *stubDialer {
	return &stubDialer{accept: accept, dials: make(map[string]int)}
}

func (d *stubDialer) Dial(ctx context.Context, host string, cred domain.Credential) (transport.Session, error) {
	d.mu.Lock()
	d.dials[host]++
	d.mu.Unlock()
	if cred.Username != d.accept {
		return nil, fmt.Errorf("auth for %s: %w", cred.Username, transport.ErrAuthFailed)
	}
	return &stubSession{ports: d.ports}, nil
}

type stubProber struct {
	mu    sync.Mutex
	hosts []string
}

func (p *stubProber) Probe(ctx context.Context, host string, creds []domain.DatabaseCredential, existing []domain.DiscoveredDatabase) []domain.DiscoveredDatabase {
	p.mu.Lock()
	p.hosts = append(p.hosts, host)
	p.mu.Unlock()
	return append(existing, domain.DiscoveredDatabase{
		Engine: domain.DatabaseEngineRedis,
		Host:   host,
		Port:   6379,
		Method: domain.DiscoveryMethodDirectConnect,
	})
}

type stubChecker struct{ reachable bool }

func (c stubChecker) Reachable(ctx context.Context, host string, port int) bool {
	return c.reachable
}

func testScanner(dialer transport.Dialer) *Scanner {
	return &Scanner{
		Dialers: map[domain.OSFamily]transport.Dialer{
			domain.OSFamilyLinux:   dialer,
			domain.OSFamilyWindows: dialer,
		},
		Progress:    NewProgress(),
		Concurrency: 3,
	}
}

func linuxTargets(n int) []domain.VMTarget {
	targets := make([]domain.VMTarget, n)
	for i := range targets {
		targets[i] = domain.VMTarget{
			Name:     fmt.Sprintf("vm-%d", i),
			IP:       fmt.Sprintf("10.0.0.%d", i+10),
			OSFamily: domain.OSFamilyLinux,
		}
	}
	return targets
}

func TestRunEveryTargetAppearsOnce(t *testing.T) {
	scanner := testScanner(newStubDialer("root"))

	result, err := scanner.Run(context.Background(), Request{
		Targets:          linuxTargets(10),
		LinuxCredentials: []domain.Credential{{Username: "root"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.VMWorkloads) != 10 {
		t.Fatalf("got %d VM records, want 10", len(result.VMWorkloads))
	}

	seen := make(map[string]bool)
	for _, vm := range result.VMWorkloads {
		if seen[vm.VMName] {
			t.Errorf("VM %s appears more than once", vm.VMName)
		}
		seen[vm.VMName] = true
		if vm.ScanStatus != domain.ScanStatusComplete {
			t.Errorf("%s status = %q, want complete", vm.VMName, vm.ScanStatus)
		}
	}
	if result.ScannedCount != 10 || result.ErrorCount != 0 {
		t.Errorf("counters = %d scanned / %d errors, want 10/0", result.ScannedCount, result.ErrorCount)
	}

	snap := scanner.Progress.Snapshot()
	if snap.Status != RunStatusComplete || snap.Percent != 100 {
		t.Errorf("progress = %+v, want complete at 100%%", snap)
	}
	if snap.ScannedVMs != 10 {
		t.Errorf("progress scanned = %d, want 10", snap.ScannedVMs)
	}
}

func TestRunCredentialFallback(t *testing.T) {
	dialer := newStubDialer("svcaccount")
	scanner := testScanner(dialer)

	result, err := scanner.Run(context.Background(), Request{
		Targets: linuxTargets(1),
		LinuxCredentials: []domain.Credential{
			{Username: "root", Password: "wrong"},
			{Username: "svcaccount", Password: "right"},
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	vm := result.VMWorkloads[0]
	if vm.ScanStatus != domain.ScanStatusComplete {
		t.Errorf("status = %q (%s), want complete", vm.ScanStatus, vm.ScanError)
	}
	if dialer.dials["10.0.0.10"] != 2 {
		t.Errorf("dialed %d times, want 2", dialer.dials["10.0.0.10"])
	}
}

func TestRunAllCredentialsFail(t *testing.T) {
	scanner := testScanner(newStubDialer("nobody"))

	result, err := scanner.Run(context.Background(), Request{
		Targets:          linuxTargets(1),
		LinuxCredentials: []domain.Credential{{Username: "root"}, {Username: "admin"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	vm := result.VMWorkloads[0]
	if vm.ScanStatus != domain.ScanStatusError {
		t.Errorf("status = %q, want error", vm.ScanStatus)
	}
	if !strings.Contains(vm.ScanError, "all 2 credentials failed") {
		t.Errorf("scan error = %q", vm.ScanError)
	}
	if result.ErrorCount != 1 {
		t.Errorf("error count = %d, want 1", result.ErrorCount)
	}
}

func TestRunSkipsWithoutCredentials(t *testing.T) {
	scanner := testScanner(newStubDialer("root"))

	targets := []domain.VMTarget{
		{Name: "lnx", IP: "10.0.0.10", OSFamily: domain.OSFamilyLinux},
		{Name: "win", IP: "10.0.0.11", OSFamily: domain.OSFamilyWindows},
	}
	result, err := scanner.Run(context.Background(), Request{
		Targets:          targets,
		LinuxCredentials: []domain.Credential{{Username: "root"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.VMWorkloads[0].ScanStatus != domain.ScanStatusComplete {
		t.Errorf("lnx status = %q, want complete", result.VMWorkloads[0].ScanStatus)
	}
	win := result.VMWorkloads[1]
	if win.ScanStatus != domain.ScanStatusSkipped {
		t.Errorf("win status = %q, want skipped", win.ScanStatus)
	}
	if !strings.Contains(win.ScanError, "no credentials") {
		t.Errorf("win scan error = %q", win.ScanError)
	}
	if result.SkippedCount != 1 {
		t.Errorf("skipped count = %d, want 1", result.SkippedCount)
	}
}

func TestRunSkipsUnsupportedOSFamily(t *testing.T) {
	scanner := testScanner(newStubDialer("root"))

	result, err := scanner.Run(context.Background(), Request{
		Targets:          []domain.VMTarget{{Name: "old", IP: "10.0.0.10", OSFamily: domain.OSFamily("solaris")}},
		LinuxCredentials: []domain.Credential{{Username: "root"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	vm := result.VMWorkloads[0]
	if vm.ScanStatus != domain.ScanStatusSkipped {
		t.Errorf("status = %q, want skipped", vm.ScanStatus)
	}
	if !strings.Contains(vm.ScanError, "unsupported OS family") {
		t.Errorf("scan error = %q", vm.ScanError)
	}
}

func TestRunEmptyTargetList(t *testing.T) {
	scanner := testScanner(newStubDialer("root"))
	if _, err := scanner.Run(context.Background(), Request{}); err == nil {
		t.Error("expected error for empty target list")
	}
}

func TestRunDeepProbeWiredIn(t *testing.T) {
	dialer := newStubDialer("root")
	dialer.ports = `LISTEN  0  128  0.0.0.0:22  0.0.0.0:*  users:(("sshd",pid=700,fd=3))`
	scanner := testScanner(dialer)
	prober := &stubProber{}
	scanner.Prober = prober

	result, err := scanner.Run(context.Background(), Request{
		Targets:             linuxTargets(1),
		LinuxCredentials:    []domain.Credential{{Username: "root"}},
		DatabaseCredentials: []domain.DatabaseCredential{{Engine: domain.DatabaseEngineAuto}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(prober.hosts) != 1 || prober.hosts[0] != "10.0.0.10" {
		t.Fatalf("deep prober ran against %v, want [10.0.0.10]", prober.hosts)
	}

	vm := result.VMWorkloads[0]
	if len(vm.Databases) != 1 {
		t.Fatalf("got %d databases, want 1 from deep probe", len(vm.Databases))
	}
	if vm.Databases[0].Method != domain.DiscoveryMethodDirectConnect {
		t.Errorf("method = %q, want direct-connect", vm.Databases[0].Method)
	}
	if vm.Databases[0].VMName != "vm-0" {
		t.Errorf("deep-probed record not claimed by VM: %+v", vm.Databases[0])
	}
}

func TestRunPreflightUnreachable(t *testing.T) {
	dialer := newStubDialer("root")
	scanner := testScanner(dialer)
	scanner.Preflight = stubChecker{reachable: false}

	result, err := scanner.Run(context.Background(), Request{
		Targets:          linuxTargets(1),
		LinuxCredentials: []domain.Credential{{Username: "root"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	vm := result.VMWorkloads[0]
	if vm.ScanStatus != domain.ScanStatusError {
		t.Errorf("status = %q, want error", vm.ScanStatus)
	}
	if !strings.Contains(vm.ScanError, "unreachable") {
		t.Errorf("scan error = %q", vm.ScanError)
	}
	if len(dialer.dials) != 0 {
		t.Errorf("dialer used despite failed preflight: %v", dialer.dials)
	}
}

func TestProgressSnapshotIsolation(t *testing.T) {
	progress := NewProgress()
	progress.Begin(4)
	progress.StartVM("vm-1")
	progress.FinishVM(true, false, false)

	snap := progress.Snapshot()
	snap.ScannedVMs = 99

	if progress.Snapshot().ScannedVMs != 1 {
		t.Error("mutating a snapshot leaked into the tracker")
	}
	if progress.Snapshot().Percent != 25 {
		t.Errorf("percent = %d, want 25", progress.Snapshot().Percent)
	}
}
