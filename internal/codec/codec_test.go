package codec

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"guestmap/internal/domain"
)

func sampleResult() *domain.WorkloadDiscoveryResult {
	result := &domain.WorkloadDiscoveryResult{
		VMWorkloads: []*domain.VMWorkloads{
			{
				VMName:      "db1",
				IPAddresses: []string{"10.0.0.5"},
				OSFamily:    domain.OSFamilyLinux,
				ScanStatus:  domain.ScanStatusComplete,
				Databases: []domain.DiscoveredDatabase{
					{VMName: "db1", Engine: domain.DatabaseEnginePostgreSQL, Port: 5432},
				},
			},
		},
		Dependencies: []domain.WorkloadDependency{
			{SourceVM: "app1", TargetVM: "db1", TargetPort: 5432, Protocol: "tcp", Connections: 1},
		},
	}
	result.ComputeTotals()
	return result
}

func TestJSONExportRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONCodec().Export(sampleResult(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var decoded domain.WorkloadDiscoveryResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("exported JSON does not parse: %v", err)
	}
	if len(decoded.VMWorkloads) != 1 || decoded.VMWorkloads[0].VMName != "db1" {
		t.Errorf("decoded = %+v", decoded.VMWorkloads)
	}
	if decoded.TotalDatabases != 1 {
		t.Errorf("total databases = %d, want 1", decoded.TotalDatabases)
	}
}

func TestYAMLExport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewYAMLCodec().Export(sampleResult(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "vm_name: db1") {
		t.Errorf("YAML output missing vm record:\n%s", out)
	}
	if !strings.Contains(out, "target_port: 5432") {
		t.Errorf("YAML output missing dependency edge:\n%s", out)
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{format: "json", want: "json"},
		{format: "", want: "json"},
		{format: "yaml", want: "yaml"},
		{format: "yml", want: "yaml"},
		{format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exporter, err := ForFormat(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ForFormat(%q) succeeded, want error", tt.format)
				}
				return
			}
			if err != nil {
				t.Fatalf("ForFormat(%q) error = %v", tt.format, err)
			}
			if exporter.Format() != tt.want {
				t.Errorf("Format() = %q, want %q", exporter.Format(), tt.want)
			}
		})
	}
}
