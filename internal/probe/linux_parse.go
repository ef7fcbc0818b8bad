package probe

import (
	"regexp"
	"strconv"
	"strings"

	"guestmap/internal/domain"
)

// Socket-table parsing for Linux. The listening probe prefers ss and
// falls back to netstat, so both output formats must parse.

var (
	// ss: LISTEN 0 128 0.0.0.0:3306 0.0.0.0:* users:(("mysqld",pid=1234,fd=3))
	ssListenRe = regexp.MustCompile(`LISTEN\s+\d+\s+\d+\s+(\S+):(\d+)\s+\S+\s*(.*)`)
	// netstat: tcp 0 0 0.0.0.0:3306 0.0.0.0:* LISTEN 1234/mysqld
	netstatListenRe = regexp.MustCompile(`tcp\S*\s+\d+\s+\d+\s+(\S+):(\d+)\s+\S+\s+LISTEN\s+(\d+)/(\S+)`)
	// ss: ESTAB 0 0 10.0.0.6:54321 10.0.0.5:5432 users:(("java",pid=999,fd=5))
	ssEstabRe = regexp.MustCompile(`ESTAB\s+\d+\s+\d+\s+\S+:(\d+)\s+(\S+):(\d+)\s*(.*)`)
	// netstat: tcp 0 0 10.0.0.6:54321 10.0.0.5:5432 ESTABLISHED 999/java
	netstatEstabRe = regexp.MustCompile(`tcp\S*\s+\d+\s+\d+\s+\S+:(\d+)\s+(\S+):(\d+)\s+ESTABLISHED\s+(\d+)/(\S+)`)
	// users:(("mysqld",pid=1234,fd=3))
	ssProcessRe = regexp.MustCompile(`users:\(\("([^"]+)",pid=(\d+)`)

	versionRe = regexp.MustCompile(`(\d+\.\d+[\.\d]*)`)
)

// ParseLinuxListening parses ss -tnlp or netstat -tlnp output into a
// listening-port table
func ParseLinuxListening(output string) []domain.ListeningPort {
	var ports []domain.ListeningPort

	for _, line := range strings.Split(output, "\n") {
		if m := ssListenRe.FindStringSubmatch(line); m != nil {
			port, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			entry := domain.ListeningPort{
				Port:     port,
				Protocol: "tcp",
				Address:  m[1],
			}
			if pm := ssProcessRe.FindStringSubmatch(m[3]); pm != nil {
				entry.Process = pm[1]
				entry.PID, _ = strconv.Atoi(pm[2])
			}
			ports = append(ports, entry)
			continue
		}

		if m := netstatListenRe.FindStringSubmatch(line); m != nil {
			port, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			pid, _ := strconv.Atoi(m[3])
			ports = append(ports, domain.ListeningPort{
				Port:     port,
				Protocol: "tcp",
				Address:  m[1],
				Process:  m[4],
				PID:      pid,
			})
		}
	}

	return ports
}

// ParseLinuxEstablished parses ss or netstat established-connection
// output into outbound connection records
func ParseLinuxEstablished(output string) []domain.EstablishedConnection {
	var conns []domain.EstablishedConnection

	for _, line := range strings.Split(output, "\n") {
		if m := ssEstabRe.FindStringSubmatch(line); m != nil {
			local, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			remote, _ := strconv.Atoi(m[3])
			conn := domain.EstablishedConnection{
				LocalPort:  local,
				RemoteIP:   m[2],
				RemotePort: remote,
			}
			if pm := ssProcessRe.FindStringSubmatch(m[4]); pm != nil {
				conn.Process = pm[1]
				conn.PID, _ = strconv.Atoi(pm[2])
			}
			conns = append(conns, conn)
			continue
		}

		if m := netstatEstabRe.FindStringSubmatch(line); m != nil {
			local, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			remote, _ := strconv.Atoi(m[3])
			pid, _ := strconv.Atoi(m[4])
			conns = append(conns, domain.EstablishedConnection{
				LocalPort:  local,
				RemoteIP:   m[2],
				RemotePort: remote,
				Process:    m[5],
				PID:        pid,
			})
		}
	}

	return conns
}

// ExtractVersion pulls the first dotted version number out of noisy
// command output. Returns "" when no version is present so callers can
// keep an unconfirmed record as "detected, version unknown".
func ExtractVersion(output string) string {
	if m := versionRe.FindStringSubmatch(output); m != nil {
		return m[1]
	}
	return ""
}

// ClassifyMySQLVersion decides between MySQL and MariaDB from version
// banner output and extracts the version number
func ClassifyMySQLVersion(output string) (domain.DatabaseEngine, string) {
	engine := domain.DatabaseEngineMySQL
	if strings.Contains(strings.ToLower(output), "mariadb") {
		engine = domain.DatabaseEngineMariaDB
	}
	return engine, ExtractVersion(output)
}

// ExtractOracleSID pulls the instance SID from a pmon process listing
// (ora_pmon_ORCL -> ORCL)
func ExtractOracleSID(output string) string {
	if m := regexp.MustCompile(`ora_pmon_(\S+)`).FindStringSubmatch(output); m != nil {
		return m[1]
	}
	return ""
}

// ParseContainerList parses `docker ps`/`podman ps` output in the
// ID|Name|Image|Status|Ports format
func ParseContainerList(output string) []domain.ContainerInfo {
	var containers []domain.ContainerInfo

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		parts := strings.Split(line, "|")
		if len(parts) < 4 {
			continue
		}
		info := domain.ContainerInfo{
			ID:     truncateID(parts[0]),
			Name:   parts[1],
			Image:  parts[2],
			Status: parts[3],
		}
		if len(parts) > 4 && parts[4] != "" {
			for _, p := range strings.Split(parts[4], ",") {
				if p = strings.TrimSpace(p); p != "" {
					info.Ports = append(info.Ports, p)
				}
			}
		}
		containers = append(containers, info)
	}

	return containers
}

// truncateID shortens a container ID to the usual 12 characters
func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// nonEmptyLines splits output into trimmed, non-empty lines
func nonEmptyLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// parseCount parses a `wc -l` style numeric output
func parseCount(output string) int {
	n, err := strconv.Atoi(strings.TrimSpace(output))
	if err != nil {
		return 0
	}
	return n
}

// commandMissing reports whether output indicates the probed binary is
// not installed rather than producing a real answer
func commandMissing(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "command not found") ||
		strings.Contains(lower, "not recognized") ||
		strings.Contains(lower, "no such file")
}

// versionOrUnknown keeps unconfirmed detections instead of dropping them
func versionOrUnknown(version string) string {
	if version == "" {
		return "unknown"
	}
	return version
}
