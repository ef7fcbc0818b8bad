// Package topology reconstructs a directed dependency graph from the
// established connections observed across a completed scan. An edge
// means "a live connection existed at scan time", not a proven
// application dependency.
package topology

import (
	"fmt"

	"guestmap/internal/domain"
)

type portKey struct {
	vm   string
	port int
}

type edgeKey struct {
	source string
	target string
	port   int
}

// Build computes dependency edges from the complete per-VM result set.
// It runs after the scan barrier, so the records are read-only and no
// locking is needed.
func Build(vms []*domain.VMWorkloads) []domain.WorkloadDependency {
	ipToVM := indexAddresses(vms)
	labels := indexWorkloads(vms)

	var edges []domain.WorkloadDependency
	seen := make(map[edgeKey]int)

	for _, vm := range vms {
		for _, conn := range vm.EstablishedConnections {
			targetVM, ok := ipToVM[conn.RemoteIP]
			if !ok || targetVM == vm.VMName {
				continue
			}

			key := edgeKey{source: vm.VMName, target: targetVM, port: conn.RemotePort}
			if i, dup := seen[key]; dup {
				edges[i].Connections++
				continue
			}

			edge := domain.WorkloadDependency{
				SourceVM:       vm.VMName,
				SourceWorkload: sourceLabel(conn),
				TargetVM:       targetVM,
				TargetPort:     conn.RemotePort,
				Protocol:       "tcp",
				Connections:    1,
			}
			if label, ok := labels[portKey{vm: targetVM, port: conn.RemotePort}]; ok {
				edge.TargetWorkload = label
			} else {
				edge.TargetWorkload = fmt.Sprintf("port-%d", conn.RemotePort)
			}

			seen[key] = len(edges)
			edges = append(edges, edge)
		}
	}

	return edges
}

// indexAddresses maps every scanned address back to its VM name
func indexAddresses(vms []*domain.VMWorkloads) map[string]string {
	index := make(map[string]string)
	for _, vm := range vms {
		for _, ip := range vm.IPAddresses {
			if ip != "" {
				index[ip] = vm.VMName
			}
		}
	}
	return index
}

// indexWorkloads maps (VM, port) to the most specific workload label.
// Databases win over web apps, which win over raw listening ports.
func indexWorkloads(vms []*domain.VMWorkloads) map[portKey]string {
	labels := make(map[portKey]string)

	claim := func(vm string, port int, label string) {
		if port == 0 || label == "" {
			return
		}
		key := portKey{vm: vm, port: port}
		if _, taken := labels[key]; !taken {
			labels[key] = label
		}
	}

	for _, vm := range vms {
		for _, db := range vm.Databases {
			claim(vm.VMName, db.Port, databaseLabel(db))
		}
	}
	for _, vm := range vms {
		for _, app := range vm.WebApps {
			claim(vm.VMName, app.Port, webAppLabel(app))
		}
	}
	for _, vm := range vms {
		for _, p := range vm.ListeningPorts {
			claim(vm.VMName, p.Port, p.Process)
		}
	}

	return labels
}

func databaseLabel(db domain.DiscoveredDatabase) string {
	if db.InstanceName != "" && db.InstanceName != "default" {
		return fmt.Sprintf("%s (%s)", db.Engine, db.InstanceName)
	}
	return string(db.Engine)
}

func webAppLabel(app domain.DiscoveredWebApp) string {
	if app.AppName != "" {
		return app.AppName
	}
	if app.Framework != "" {
		return app.Framework
	}
	return string(app.Runtime)
}

func sourceLabel(conn domain.EstablishedConnection) string {
	if conn.Process != "" {
		return conn.Process
	}
	if conn.PID > 0 {
		return fmt.Sprintf("pid-%d", conn.PID)
	}
	return "unknown"
}
