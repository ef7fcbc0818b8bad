package probe

import (
	"encoding/csv"
	"strconv"
	"strings"

	"guestmap/internal/domain"
)

// Windows probes lean on PowerShell's ConvertTo-Csv: every structured
// query comes back as a quoted CSV table with one header row.

// ParseCSVTable parses ConvertTo-Csv output into rows, dropping the
// header. Malformed lines are skipped rather than failing the probe.
func ParseCSVTable(output string) [][]string {
	reader := csv.NewReader(strings.NewReader(strings.TrimSpace(output)))
	reader.FieldsPerRecord = -1

	var rows [][]string
	first := true
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if first {
			first = false
			continue
		}
		rows = append(rows, record)
	}
	return rows
}

// ParseWindowsListening parses Get-NetTCPConnection listen-state CSV
// (LocalPort, OwningProcess). Process names are resolved separately.
func ParseWindowsListening(output string) []domain.ListeningPort {
	var ports []domain.ListeningPort
	for _, row := range ParseCSVTable(output) {
		if len(row) < 2 {
			continue
		}
		port, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			continue
		}
		ports = append(ports, domain.ListeningPort{
			Port:     port,
			Protocol: "tcp",
			PID:      pid,
		})
	}
	return ports
}

// ParseWindowsEstablished parses Get-NetTCPConnection established-state
// CSV (LocalPort, RemoteAddress, RemotePort, OwningProcess)
func ParseWindowsEstablished(output string) []domain.EstablishedConnection {
	var conns []domain.EstablishedConnection
	for _, row := range ParseCSVTable(output) {
		if len(row) < 4 {
			continue
		}
		local, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			continue
		}
		remote, err := strconv.Atoi(strings.TrimSpace(row[2]))
		if err != nil {
			continue
		}
		pid, _ := strconv.Atoi(strings.TrimSpace(row[3]))
		conns = append(conns, domain.EstablishedConnection{
			LocalPort:  local,
			RemoteIP:   strings.TrimSpace(row[1]),
			RemotePort: remote,
			PID:        pid,
		})
	}
	return conns
}

// ParseProcessNames parses Get-Process CSV (Id, ProcessName) into a
// pid -> name map
func ParseProcessNames(output string) map[int]string {
	names := make(map[int]string)
	for _, row := range ParseCSVTable(output) {
		if len(row) < 2 {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			continue
		}
		names[pid] = strings.TrimSpace(row[1])
	}
	return names
}

// ResolveProcessNames fills in process names on a port table from a
// pid -> name map
func ResolveProcessNames(ports []domain.ListeningPort, names map[int]string) {
	for i := range ports {
		if name, ok := names[ports[i].PID]; ok {
			ports[i].Process = name
		}
	}
}

// parseAspNetCoreVersion extracts the hosted ASP.NET Core version from
// `dotnet --list-runtimes` output
func parseAspNetCoreVersion(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "Microsoft.AspNetCore.App ") {
			fields := strings.Fields(strings.TrimPrefix(line, "Microsoft.AspNetCore.App "))
			if len(fields) > 0 {
				return fields[0]
			}
		}
	}
	return ""
}
