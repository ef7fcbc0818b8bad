// Package probe implements the per-OS guest probe suites: fixed
// sequences of read-only remote commands that enumerate listening
// ports, established connections, databases, web applications,
// container runtimes, and orchestrators on one VM.
//
// A suite is fully sequential; later probes classify against the port
// table collected first. A command that runs but finds nothing is
// "feature absent" and never fails the suite. A transport-level error
// aborts the attempt so the credential trial can move on; no partial
// output from a failed attempt survives.
package probe

import (
	"context"

	"guestmap/internal/domain"
)

// Runner executes one probe command on an authenticated session.
// transport.Session satisfies it; tests substitute canned output.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// Inventory is everything one suite discovered on one VM. Records do
// not yet carry a VM name; the scan worker stamps ownership when it
// publishes the result.
type Inventory struct {
	ListeningPorts         []domain.ListeningPort
	EstablishedConnections []domain.EstablishedConnection
	Databases              []domain.DiscoveredDatabase
	WebApps                []domain.DiscoveredWebApp
	ContainerRuntimes      []domain.DiscoveredContainerRuntime
	Orchestrators          []domain.DiscoveredOrchestrator
}

// Suite probes one OS family end to end
type Suite interface {
	OSFamily() domain.OSFamily
	Discover(ctx context.Context, run Runner) (*Inventory, error)
}

// SuiteFor returns the probe suite for an OS family, or nil when the
// family is unsupported (the scan worker skips such targets)
func SuiteFor(family domain.OSFamily) Suite {
	switch family {
	case domain.OSFamilyLinux:
		return NewLinuxSuite()
	case domain.OSFamilyWindows:
		return NewWindowsSuite()
	default:
		return nil
	}
}
