package domain

import "testing"

// TestComputeTotals verifies aggregate counters across scan statuses
func TestComputeTotals(t *testing.T) {
	result := &WorkloadDiscoveryResult{
		VMWorkloads: []*VMWorkloads{
			{
				VMName:     "db1",
				ScanStatus: ScanStatusComplete,
				Databases: []DiscoveredDatabase{
					{Engine: DatabaseEnginePostgreSQL, Port: 5432},
				},
			},
			{
				VMName:     "app1",
				ScanStatus: ScanStatusComplete,
				WebApps: []DiscoveredWebApp{
					{Runtime: WebAppRuntimeJava, Port: 8080},
					{Runtime: WebAppRuntimeNodeJS, Port: 3000},
				},
				ContainerRuntimes: []DiscoveredContainerRuntime{
					{Runtime: ContainerRuntimeDocker},
				},
			},
			{VMName: "win1", ScanStatus: ScanStatusError, ScanError: "auth failed"},
			{VMName: "legacy1", ScanStatus: ScanStatusSkipped},
		},
	}

	result.ComputeTotals()

	if result.TotalDatabases != 1 {
		t.Errorf("TotalDatabases = %d, want 1", result.TotalDatabases)
	}
	if result.TotalWebApps != 2 {
		t.Errorf("TotalWebApps = %d, want 2", result.TotalWebApps)
	}
	if result.TotalContainers != 1 {
		t.Errorf("TotalContainers = %d, want 1", result.TotalContainers)
	}
	if result.ScannedCount != 2 {
		t.Errorf("ScannedCount = %d, want 2", result.ScannedCount)
	}
	if result.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", result.ErrorCount)
	}
	if result.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, want 1", result.SkippedCount)
	}
}

// TestComputeTotalsIdempotent verifies recomputation does not double count
func TestComputeTotalsIdempotent(t *testing.T) {
	result := &WorkloadDiscoveryResult{
		VMWorkloads: []*VMWorkloads{
			{
				VMName:     "db1",
				ScanStatus: ScanStatusComplete,
				Databases:  []DiscoveredDatabase{{Engine: DatabaseEngineMySQL, Port: 3306}},
			},
		},
	}

	result.ComputeTotals()
	result.ComputeTotals()

	if result.TotalDatabases != 1 {
		t.Errorf("TotalDatabases = %d after recompute, want 1", result.TotalDatabases)
	}
	if result.ScannedCount != 1 {
		t.Errorf("ScannedCount = %d after recompute, want 1", result.ScannedCount)
	}
}

// TestClaimWorkloads verifies VM name propagation onto child records
func TestClaimWorkloads(t *testing.T) {
	vm := &VMWorkloads{
		VMName:    "db1",
		Databases: []DiscoveredDatabase{{Engine: DatabaseEnginePostgreSQL}},
		WebApps:   []DiscoveredWebApp{{Runtime: WebAppRuntimePython}},
		ContainerRuntimes: []DiscoveredContainerRuntime{
			{Runtime: ContainerRuntimePodman},
		},
		Orchestrators: []DiscoveredOrchestrator{{Type: OrchestratorKubernetes}},
	}

	vm.ClaimWorkloads()

	if vm.Databases[0].VMName != "db1" {
		t.Errorf("database VMName = %q, want db1", vm.Databases[0].VMName)
	}
	if vm.WebApps[0].VMName != "db1" {
		t.Errorf("web app VMName = %q, want db1", vm.WebApps[0].VMName)
	}
	if vm.ContainerRuntimes[0].VMName != "db1" {
		t.Errorf("container runtime VMName = %q, want db1", vm.ContainerRuntimes[0].VMName)
	}
	if vm.Orchestrators[0].VMName != "db1" {
		t.Errorf("orchestrator VMName = %q, want db1", vm.Orchestrators[0].VMName)
	}
}

// TestCredentialTransportPort verifies port override fallback
func TestCredentialTransportPort(t *testing.T) {
	tests := []struct {
		name string
		cred Credential
		def  int
		want int
	}{
		{name: "default ssh", cred: Credential{}, def: 22, want: 22},
		{name: "override", cred: Credential{Port: 2222}, def: 22, want: 2222},
		{name: "default winrm", cred: Credential{}, def: 5985, want: 5985},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.TransportPort(tt.def); got != tt.want {
				t.Errorf("TransportPort(%d) = %d, want %d", tt.def, got, tt.want)
			}
		})
	}
}

// TestEffectiveEngine verifies empty engine tags normalize to auto
func TestEffectiveEngine(t *testing.T) {
	if got := (DatabaseCredential{}).EffectiveEngine(); got != DatabaseEngineAuto {
		t.Errorf("EffectiveEngine() = %q, want auto", got)
	}
	if got := (DatabaseCredential{Engine: DatabaseEngineMySQL}).EffectiveEngine(); got != DatabaseEngineMySQL {
		t.Errorf("EffectiveEngine() = %q, want mysql", got)
	}
}
