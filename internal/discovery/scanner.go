// Package discovery schedules guest scans across a bounded worker pool
// and assembles the aggregate result. One VM's failure never aborts or
// delays its siblings; the run itself fails only on an empty target
// list.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"guestmap/internal/deepprobe"
	"guestmap/internal/domain"
	"guestmap/internal/probe"
	"guestmap/internal/topology"
	"guestmap/internal/transport"
)

// DefaultConcurrency bounds the worker pool when the caller does not
const DefaultConcurrency = 5

// DeepProber enriches and discovers databases over native protocols
type DeepProber interface {
	Probe(ctx context.Context, host string, creds []domain.DatabaseCredential, existing []domain.DiscoveredDatabase) []domain.DiscoveredDatabase
}

// ReachabilityChecker answers whether a transport port accepts
// connections, letting the scanner fail fast instead of walking the
// whole credential list against a dead host
type ReachabilityChecker interface {
	Reachable(ctx context.Context, host string, port int) bool
}

// Request is everything one discovery run needs
type Request struct {
	Targets             []domain.VMTarget
	LinuxCredentials    []domain.Credential
	WindowsCredentials  []domain.Credential
	DatabaseCredentials []domain.DatabaseCredential
}

// Scanner runs discovery across VM targets
type Scanner struct {
	Dialers     map[domain.OSFamily]transport.Dialer
	Prober      DeepProber
	Preflight   ReachabilityChecker
	Progress    *Progress
	Concurrency int

	// VMTimeout caps one VM's whole scan. Zero means unlimited: only
	// the per-command timeouts apply.
	VMTimeout time.Duration
}

// NewScanner wires the production transports and deep prober
func NewScanner(progress *Progress) *Scanner {
	return &Scanner{
		Dialers: map[domain.OSFamily]transport.Dialer{
			domain.OSFamilyLinux:   transport.NewSSHDialer(0, 0),
			domain.OSFamilyWindows: transport.NewWinRMDialer(0, 0),
		},
		Prober:      deepprobe.NewProber(),
		Progress:    progress,
		Concurrency: DefaultConcurrency,
	}
}

// Run scans every target and returns the assembled result. It blocks
// until all workers have joined; the topology build and total counters
// run after that barrier on read-only records.
func (s *Scanner) Run(ctx context.Context, req Request) (*domain.WorkloadDiscoveryResult, error) {
	if len(req.Targets) == 0 {
		return nil, errors.New("no VM targets to scan")
	}

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	result := &domain.WorkloadDiscoveryResult{
		VMWorkloads: make([]*domain.VMWorkloads, len(req.Targets)),
	}
	for i, target := range req.Targets {
		result.VMWorkloads[i] = domain.NewVMWorkloads(target)
	}

	if s.Progress != nil {
		s.Progress.Begin(len(req.Targets))
	}
	log.Printf("Starting discovery of %d VMs (concurrency %d)", len(req.Targets), concurrency)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := range req.Targets {
		wg.Add(1)
		go func(target domain.VMTarget, record *domain.VMWorkloads) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			s.scanVM(ctx, target, record, req)

			if s.Progress != nil {
				s.Progress.FinishVM(
					record.ScanStatus == domain.ScanStatusComplete,
					record.ScanStatus == domain.ScanStatusError,
					record.ScanStatus == domain.ScanStatusSkipped,
				)
			}
		}(req.Targets[i], result.VMWorkloads[i])
	}
	wg.Wait()

	result.Dependencies = topology.Build(result.VMWorkloads)
	result.ComputeTotals()

	if s.Progress != nil {
		s.Progress.Complete(fmt.Sprintf("discovery complete: %d scanned, %d errors, %d skipped",
			result.ScannedCount, result.ErrorCount, result.SkippedCount))
	}
	log.Printf("Discovery complete: %d scanned, %d errors, %d skipped, %d dependencies",
		result.ScannedCount, result.ErrorCount, result.SkippedCount, len(result.Dependencies))

	return result, nil
}

// scanVM scans one target. Every failure mode lands in the record's
// status and error fields; nothing escapes to the pool.
func (s *Scanner) scanVM(ctx context.Context, target domain.VMTarget, record *domain.VMWorkloads, req Request) {
	defer func() {
		if r := recover(); r != nil {
			record.ScanStatus = domain.ScanStatusError
			record.ScanError = fmt.Sprintf("scan panicked: %v", r)
			log.Printf("Scan of %s panicked: %v", target.Name, r)
		}
	}()

	suite := probe.SuiteFor(target.OSFamily)
	dialer := s.Dialers[target.OSFamily]
	if suite == nil || dialer == nil {
		record.ScanStatus = domain.ScanStatusSkipped
		record.ScanError = fmt.Sprintf("unsupported OS family %q", target.OSFamily)
		return
	}

	creds := s.credentialsFor(target.OSFamily, req)
	if len(creds) == 0 {
		record.ScanStatus = domain.ScanStatusSkipped
		record.ScanError = fmt.Sprintf("no credentials for OS family %q", target.OSFamily)
		return
	}

	record.ScanStatus = domain.ScanStatusScanning
	if s.Progress != nil {
		s.Progress.StartVM(target.Name)
	}

	if s.VMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.VMTimeout)
		defer cancel()
	}

	if s.Preflight != nil {
		port := creds[0].TransportPort(defaultTransportPort(target.OSFamily))
		if !s.Preflight.Reachable(ctx, target.IP, port) {
			record.ScanStatus = domain.ScanStatusError
			record.ScanError = fmt.Sprintf("transport port %d unreachable on %s", port, target.IP)
			return
		}
	}

	inv, err := probe.TryCredentials(ctx, dialer, target.IP, creds, suite)
	if err != nil {
		record.ScanStatus = domain.ScanStatusError
		record.ScanError = err.Error()
		return
	}

	record.ListeningPorts = inv.ListeningPorts
	record.EstablishedConnections = inv.EstablishedConnections
	record.Databases = inv.Databases
	record.WebApps = inv.WebApps
	record.ContainerRuntimes = inv.ContainerRuntimes
	record.Orchestrators = inv.Orchestrators

	if s.Prober != nil && len(req.DatabaseCredentials) > 0 {
		record.Databases = s.Prober.Probe(ctx, target.IP, req.DatabaseCredentials, record.Databases)
	}

	record.ClaimWorkloads()
	record.ScanStatus = domain.ScanStatusComplete
	record.ScanError = ""
}

func (s *Scanner) credentialsFor(family domain.OSFamily, req Request) []domain.Credential {
	switch family {
	case domain.OSFamilyLinux:
		return req.LinuxCredentials
	case domain.OSFamilyWindows:
		return req.WindowsCredentials
	}
	return nil
}

func defaultTransportPort(family domain.OSFamily) int {
	if family == domain.OSFamilyWindows {
		return transport.DefaultWinRMPort
	}
	return transport.DefaultSSHPort
}
