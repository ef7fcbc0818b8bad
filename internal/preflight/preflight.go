// Package preflight checks transport-port reachability before the
// scanner burns credential attempts on a dead host. It prefers an nmap
// probe (fast parallel SYN/connect scan, distinguishes filtered from
// closed) and falls back to a plain TCP dial when the nmap binary is
// not installed.
package preflight

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/Ullaakut/nmap/v3"
)

// DefaultTimeout bounds one reachability check
const DefaultTimeout = 5 * time.Second

// Checker answers whether a host's transport port accepts connections
type Checker struct {
	Timeout time.Duration

	once    sync.Once
	hasNmap bool
}

// NewChecker creates a checker with the default timeout
func NewChecker() *Checker {
	return &Checker{Timeout: DefaultTimeout}
}

// Reachable reports whether host:port accepts TCP connections. Any
// failure to determine reachability counts as reachable: preflight is
// an optimization, never a reason to skip a scannable host.
func (c *Checker) Reachable(ctx context.Context, host string, port int) bool {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c.once.Do(func() {
		c.hasNmap = nmapAvailable(ctx)
		if !c.hasNmap {
			log.Printf("Preflight: nmap not available, falling back to TCP dial checks")
		}
	})

	if c.hasNmap {
		if open, err := nmapPortOpen(ctx, host, port, timeout); err == nil {
			return open
		}
	}
	return dialPortOpen(ctx, host, port, timeout)
}

// nmapAvailable checks for a usable nmap binary with a trivial list scan
func nmapAvailable(ctx context.Context) bool {
	scanner, err := nmap.NewScanner(ctx, nmap.WithTargets("localhost"), nmap.WithListScan())
	if err != nil {
		return false
	}
	_, _, err = scanner.Run()
	return err == nil
}

// nmapPortOpen scans the single transport port on the target
func nmapPortOpen(ctx context.Context, host string, port int, timeout time.Duration) (bool, error) {
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	scanner, err := nmap.NewScanner(
		scanCtx,
		nmap.WithTargets(host),
		nmap.WithPorts(strconv.Itoa(port)),
		nmap.WithSkipHostDiscovery(),
	)
	if err != nil {
		return false, fmt.Errorf("create scanner for %s: %w", host, err)
	}

	result, _, err := scanner.Run()
	if err != nil {
		return false, fmt.Errorf("scan %s:%d: %w", host, port, err)
	}

	for _, h := range result.Hosts {
		for _, p := range h.Ports {
			if int(p.ID) == port && p.State.State == "open" {
				return true, nil
			}
		}
	}
	return false, nil
}

// dialPortOpen is the nmap-less fallback: one TCP connect attempt
func dialPortOpen(ctx context.Context, host string, port int, timeout time.Duration) bool {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
