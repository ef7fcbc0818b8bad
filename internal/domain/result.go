package domain

// ScanStatus is the lifecycle state of one VM's scan
type ScanStatus string

const (
	ScanStatusPending  ScanStatus = "pending"
	ScanStatusScanning ScanStatus = "scanning"
	ScanStatusComplete ScanStatus = "complete"
	ScanStatusError    ScanStatus = "error"
	ScanStatusSkipped  ScanStatus = "skipped"
)

// VMWorkloads is everything discovered on a single VM
type VMWorkloads struct {
	VMName      string     `json:"vm_name" yaml:"vm_name"`
	IPAddresses []string   `json:"ip_addresses" yaml:"ip_addresses"`
	OSFamily    OSFamily   `json:"os_family" yaml:"os_family"`
	ScanStatus  ScanStatus `json:"scan_status" yaml:"scan_status"`
	ScanError   string     `json:"scan_error,omitempty" yaml:"scan_error,omitempty"`

	ListeningPorts         []ListeningPort              `json:"listening_ports,omitempty" yaml:"listening_ports,omitempty"`
	EstablishedConnections []EstablishedConnection      `json:"established_connections,omitempty" yaml:"established_connections,omitempty"`
	Databases              []DiscoveredDatabase         `json:"databases,omitempty" yaml:"databases,omitempty"`
	WebApps                []DiscoveredWebApp           `json:"web_apps,omitempty" yaml:"web_apps,omitempty"`
	ContainerRuntimes      []DiscoveredContainerRuntime `json:"container_runtimes,omitempty" yaml:"container_runtimes,omitempty"`
	Orchestrators          []DiscoveredOrchestrator     `json:"orchestrators,omitempty" yaml:"orchestrators,omitempty"`
}

// NewVMWorkloads creates an empty pending record for a target
func NewVMWorkloads(target VMTarget) *VMWorkloads {
	return &VMWorkloads{
		VMName:      target.Name,
		IPAddresses: []string{target.IP},
		OSFamily:    target.OSFamily,
		ScanStatus:  ScanStatusPending,
	}
}

// ClaimWorkloads stamps the VM name onto every child record. Probe
// suites build records without knowing which VM they ran against.
func (w *VMWorkloads) ClaimWorkloads() {
	for i := range w.Databases {
		w.Databases[i].VMName = w.VMName
	}
	for i := range w.WebApps {
		w.WebApps[i].VMName = w.VMName
	}
	for i := range w.ContainerRuntimes {
		w.ContainerRuntimes[i].VMName = w.VMName
	}
	for i := range w.Orchestrators {
		w.Orchestrators[i].VMName = w.VMName
	}
}

// WorkloadDependency is a directed edge in the dependency topology:
// a workload on SourceVM held an established connection to a workload
// on TargetVM at scan time. It proves an observed connection, not a
// true application dependency.
type WorkloadDependency struct {
	SourceVM       string `json:"source_vm" yaml:"source_vm"`
	SourceWorkload string `json:"source_workload" yaml:"source_workload"`
	TargetVM       string `json:"target_vm" yaml:"target_vm"`
	TargetWorkload string `json:"target_workload" yaml:"target_workload"`
	TargetPort     int    `json:"target_port" yaml:"target_port"`
	Protocol       string `json:"protocol" yaml:"protocol"`
	Connections    int    `json:"connection_count" yaml:"connection_count"`
}

// WorkloadDiscoveryResult is the complete output of one discovery run
type WorkloadDiscoveryResult struct {
	VMWorkloads  []*VMWorkloads       `json:"vm_workloads" yaml:"vm_workloads"`
	Dependencies []WorkloadDependency `json:"dependencies" yaml:"dependencies"`

	TotalDatabases     int `json:"total_databases" yaml:"total_databases"`
	TotalWebApps       int `json:"total_webapps" yaml:"total_webapps"`
	TotalContainers    int `json:"total_containers" yaml:"total_containers"`
	TotalOrchestrators int `json:"total_orchestrators" yaml:"total_orchestrators"`
	ScannedCount       int `json:"scanned_count" yaml:"scanned_count"`
	ErrorCount         int `json:"error_count" yaml:"error_count"`
	SkippedCount       int `json:"skipped_count" yaml:"skipped_count"`
}

// ComputeTotals recalculates the aggregate counters from the per-VM
// records. Called once after all workers have joined.
func (r *WorkloadDiscoveryResult) ComputeTotals() {
	r.TotalDatabases = 0
	r.TotalWebApps = 0
	r.TotalContainers = 0
	r.TotalOrchestrators = 0
	r.ScannedCount = 0
	r.ErrorCount = 0
	r.SkippedCount = 0

	for _, vm := range r.VMWorkloads {
		r.TotalDatabases += len(vm.Databases)
		r.TotalWebApps += len(vm.WebApps)
		r.TotalContainers += len(vm.ContainerRuntimes)
		r.TotalOrchestrators += len(vm.Orchestrators)

		switch vm.ScanStatus {
		case ScanStatusComplete:
			r.ScannedCount++
		case ScanStatusError:
			r.ErrorCount++
		case ScanStatusSkipped:
			r.SkippedCount++
		}
	}
}
