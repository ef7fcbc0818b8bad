package probe

import (
	"strings"

	"guestmap/internal/domain"
)

// portIndex indexes one VM's listening-port table for the two-tier
// classification pass: a fast port/process match first, then a
// confirming detail query by the caller.
type portIndex struct {
	byPort    map[int]domain.ListeningPort
	byProcess map[string]domain.ListeningPort
	all       []domain.ListeningPort
}

func newPortIndex(ports []domain.ListeningPort) *portIndex {
	ix := &portIndex{
		byPort:    make(map[int]domain.ListeningPort, len(ports)),
		byProcess: make(map[string]domain.ListeningPort, len(ports)),
		all:       ports,
	}
	for _, p := range ports {
		if _, seen := ix.byPort[p.Port]; !seen {
			ix.byPort[p.Port] = p
		}
		name := strings.ToLower(p.Process)
		if name != "" {
			if _, seen := ix.byProcess[name]; !seen {
				ix.byProcess[name] = p
			}
		}
	}
	return ix
}

// hasPort reports whether the VM listens on the given port
func (ix *portIndex) hasPort(port int) bool {
	_, ok := ix.byPort[port]
	return ok
}

// hasProcess reports whether any listening socket is owned by one of
// the named processes (case-insensitive exact match)
func (ix *portIndex) hasProcess(names ...string) bool {
	for _, name := range names {
		if _, ok := ix.byProcess[strings.ToLower(name)]; ok {
			return true
		}
	}
	return false
}

// hasProcessContaining reports whether any listening socket's owner
// name contains the given substring
func (ix *portIndex) hasProcessContaining(sub string) bool {
	sub = strings.ToLower(sub)
	for _, p := range ix.all {
		if strings.Contains(strings.ToLower(p.Process), sub) {
			return true
		}
	}
	return false
}

// portOwnedBy returns the first listening port owned by one of the
// named processes, or fallback when none matches
func (ix *portIndex) portOwnedBy(fallback int, names ...string) int {
	for _, name := range names {
		if p, ok := ix.byProcess[strings.ToLower(name)]; ok {
			return p.Port
		}
	}
	return fallback
}

// entryOwnedBy returns the full listening entry for the first match
func (ix *portIndex) entryOwnedBy(names ...string) (domain.ListeningPort, bool) {
	for _, name := range names {
		if p, ok := ix.byProcess[strings.ToLower(name)]; ok {
			return p, true
		}
	}
	return domain.ListeningPort{}, false
}

// claimedPorts collects the ports already assigned to specific web
// apps, so a generic web-server process is only recorded when no
// classifier claimed its port (a reverse proxy fronting an app must
// not double-count).
func claimedPorts(apps []domain.DiscoveredWebApp) map[int]bool {
	claimed := make(map[int]bool, len(apps))
	for _, a := range apps {
		if a.Port > 0 {
			claimed[a.Port] = true
		}
	}
	return claimed
}

// processLines filters a full process listing to lines containing any
// of the given markers, skipping the grep artifact itself
func processLines(psOutput string, markers ...string) []string {
	var matched []string
	for _, line := range strings.Split(psOutput, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "grep") {
			continue
		}
		for _, marker := range markers {
			if strings.Contains(lower, strings.ToLower(marker)) {
				matched = append(matched, line)
				break
			}
		}
	}
	return matched
}

// frameworkFromProcesses maps process-listing signatures to a friendly
// framework label, first match in table order wins per line
func frameworkFromProcesses(lines []string, fallback string, signatures map[string]string, order []string) string {
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, key := range order {
			if strings.Contains(lower, key) {
				return signatures[key]
			}
		}
	}
	return fallback
}
