package probe

import (
	"testing"

	"guestmap/internal/domain"
)

// TestParseLinuxListening tests ss and netstat listening-table parsing
func TestParseLinuxListening(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []domain.ListeningPort
	}{
		{
			name: "ss with process info",
			input: `State   Recv-Q  Send-Q  Local Address:Port  Peer Address:Port  Process
LISTEN  0       128     0.0.0.0:3306        0.0.0.0:*          users:(("mysqld",pid=1234,fd=3))
LISTEN  0       511     0.0.0.0:80          0.0.0.0:*          users:(("nginx",pid=801,fd=6))`,
			want: []domain.ListeningPort{
				{Port: 3306, Protocol: "tcp", Address: "0.0.0.0", Process: "mysqld", PID: 1234},
				{Port: 80, Protocol: "tcp", Address: "0.0.0.0", Process: "nginx", PID: 801},
			},
		},
		{
			name: "ss without process info",
			input: `LISTEN  0  128  127.0.0.1:6379  0.0.0.0:*`,
			want: []domain.ListeningPort{
				{Port: 6379, Protocol: "tcp", Address: "127.0.0.1"},
			},
		},
		{
			name: "netstat fallback",
			input: `Active Internet connections (only servers)
Proto Recv-Q Send-Q Local Address           Foreign Address         State       PID/Program name
tcp        0      0 0.0.0.0:5432            0.0.0.0:*               LISTEN      987/postgres`,
			want: []domain.ListeningPort{
				{Port: 5432, Protocol: "tcp", Address: "0.0.0.0", Process: "postgres", PID: 987},
			},
		},
		{
			name:  "empty output",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLinuxListening(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseLinuxListening() returned %d ports, want %d", len(got), len(tt.want))
			}
			for i, want := range tt.want {
				if got[i] != want {
					t.Errorf("port[%d] = %+v, want %+v", i, got[i], want)
				}
			}
		})
	}
}

// TestParseLinuxEstablished tests outbound connection parsing
func TestParseLinuxEstablished(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []domain.EstablishedConnection
	}{
		{
			name: "ss established",
			input: `State  Recv-Q  Send-Q  Local Address:Port  Peer Address:Port   Process
ESTAB  0       0       10.0.0.6:54321      10.0.0.5:5432       users:(("java",pid=999,fd=5))`,
			want: []domain.EstablishedConnection{
				{LocalPort: 54321, RemoteIP: "10.0.0.5", RemotePort: 5432, Process: "java", PID: 999},
			},
		},
		{
			name:  "netstat established",
			input: `tcp        0      0 10.0.0.6:44210          10.0.0.9:6379           ESTABLISHED 1200/python3`,
			want: []domain.EstablishedConnection{
				{LocalPort: 44210, RemoteIP: "10.0.0.9", RemotePort: 6379, Process: "python3", PID: 1200},
			},
		},
		{
			name:  "no connections",
			input: "State  Recv-Q  Send-Q  Local Address:Port  Peer Address:Port\n",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLinuxEstablished(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseLinuxEstablished() returned %d conns, want %d", len(got), len(tt.want))
			}
			for i, want := range tt.want {
				if got[i] != want {
					t.Errorf("conn[%d] = %+v, want %+v", i, got[i], want)
				}
			}
		})
	}
}

// TestExtractVersion tests version extraction from noisy banners
func TestExtractVersion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "psql", input: "psql (PostgreSQL) 15.4 (Debian 15.4-1)", want: "15.4"},
		{name: "mysql", input: "mysql  Ver 8.0.34 for Linux on x86_64", want: "8.0.34"},
		{name: "java", input: `openjdk version "17.0.8" 2023-07-18`, want: "17.0.8"},
		{name: "nothing", input: "command not found", want: ""},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractVersion(tt.input); got != tt.want {
				t.Errorf("ExtractVersion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestClassifyMySQLVersion tests MariaDB vs MySQL detection
func TestClassifyMySQLVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantEngine  domain.DatabaseEngine
		wantVersion string
	}{
		{
			name:        "mariadb banner",
			input:       "mysql  Ver 15.1 Distrib 10.11.4-MariaDB, for debian-linux-gnu",
			wantEngine:  domain.DatabaseEngineMariaDB,
			wantVersion: "15.1",
		},
		{
			name:        "mysql banner",
			input:       "mysql  Ver 8.0.34 for Linux on x86_64 (MySQL Community Server - GPL)",
			wantEngine:  domain.DatabaseEngineMySQL,
			wantVersion: "8.0.34",
		},
		{
			name:       "unconfirmed version",
			input:      "",
			wantEngine: domain.DatabaseEngineMySQL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, version := ClassifyMySQLVersion(tt.input)
			if engine != tt.wantEngine {
				t.Errorf("engine = %q, want %q", engine, tt.wantEngine)
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
		})
	}
}

// TestExtractOracleSID tests SID extraction from pmon process lines
func TestExtractOracleSID(t *testing.T) {
	input := "oracle    2233  0.0  1.2 2314840 48512 ?       Ss   10:01   0:00 ora_pmon_PRODDB"
	if got := ExtractOracleSID(input); got != "PRODDB" {
		t.Errorf("ExtractOracleSID() = %q, want PRODDB", got)
	}
	if got := ExtractOracleSID("no pmon here"); got != "" {
		t.Errorf("ExtractOracleSID() = %q, want empty", got)
	}
}

// TestParseContainerList tests docker/podman ps format parsing
func TestParseContainerList(t *testing.T) {
	input := `a1b2c3d4e5f6a7b8|web|nginx:1.25|Up 3 days|0.0.0.0:80->80/tcp
f6e5d4c3b2a1|worker|redis:7|Up 5 hours|`

	containers := ParseContainerList(input)
	if len(containers) != 2 {
		t.Fatalf("ParseContainerList() returned %d containers, want 2", len(containers))
	}

	if containers[0].ID != "a1b2c3d4e5f6" {
		t.Errorf("ID = %q, want truncated 12-char ID", containers[0].ID)
	}
	if containers[0].Name != "web" || containers[0].Image != "nginx:1.25" {
		t.Errorf("container[0] = %+v", containers[0])
	}
	if len(containers[0].Ports) != 1 || containers[0].Ports[0] != "0.0.0.0:80->80/tcp" {
		t.Errorf("ports = %v", containers[0].Ports)
	}
	if len(containers[1].Ports) != 0 {
		t.Errorf("container without ports got %v", containers[1].Ports)
	}
}

// TestParseDotNetRuntimeVersion prefers the ASP.NET runtime line
func TestParseDotNetRuntimeVersion(t *testing.T) {
	input := `Microsoft.AspNetCore.App 8.0.4 [/usr/share/dotnet/shared/Microsoft.AspNetCore.App]
Microsoft.NETCore.App 8.0.4 [/usr/share/dotnet/shared/Microsoft.NETCore.App]`
	if got := parseDotNetRuntimeVersion(input); got != "8.0.4" {
		t.Errorf("parseDotNetRuntimeVersion() = %q, want 8.0.4", got)
	}

	baseOnly := "Microsoft.NETCore.App 6.0.25 [/usr/share/dotnet/shared/Microsoft.NETCore.App]"
	if got := parseDotNetRuntimeVersion(baseOnly); got != "6.0.25" {
		t.Errorf("parseDotNetRuntimeVersion() = %q, want 6.0.25", got)
	}

	if got := parseDotNetRuntimeVersion(""); got != "" {
		t.Errorf("parseDotNetRuntimeVersion() = %q, want empty", got)
	}
}
