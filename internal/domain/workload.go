package domain

// DatabaseEngine identifies a database engine family
type DatabaseEngine string

const (
	DatabaseEngineMSSQL      DatabaseEngine = "mssql"
	DatabaseEngineMySQL      DatabaseEngine = "mysql"
	DatabaseEngineMariaDB    DatabaseEngine = "mariadb"
	DatabaseEnginePostgreSQL DatabaseEngine = "postgresql"
	DatabaseEngineOracle     DatabaseEngine = "oracle"
	DatabaseEngineMongoDB    DatabaseEngine = "mongodb"
	DatabaseEngineRedis      DatabaseEngine = "redis"
	DatabaseEngineUnknown    DatabaseEngine = "unknown"

	// DatabaseEngineAuto is only valid on a DatabaseCredential: try
	// every known engine default port
	DatabaseEngineAuto DatabaseEngine = "auto"
)

// DiscoveryMethod distinguishes OS-inferred workload records from those
// confirmed over a native database protocol
type DiscoveryMethod string

const (
	DiscoveryMethodInferred      DiscoveryMethod = "inferred"
	DiscoveryMethodDirectConnect DiscoveryMethod = "direct-connect"
)

// WebAppRuntime identifies a web application runtime
type WebAppRuntime string

const (
	WebAppRuntimeDotNetFramework WebAppRuntime = "dotnet_framework"
	WebAppRuntimeDotNetCore      WebAppRuntime = "dotnet_core"
	WebAppRuntimeJava            WebAppRuntime = "java"
	WebAppRuntimePHP             WebAppRuntime = "php"
	WebAppRuntimePython          WebAppRuntime = "python"
	WebAppRuntimeNodeJS          WebAppRuntime = "nodejs"
	WebAppRuntimeUnknown         WebAppRuntime = "unknown"
)

// ContainerRuntimeType identifies a container runtime
type ContainerRuntimeType string

const (
	ContainerRuntimeDocker     ContainerRuntimeType = "docker"
	ContainerRuntimeContainerd ContainerRuntimeType = "containerd"
	ContainerRuntimePodman     ContainerRuntimeType = "podman"
)

// OrchestratorType identifies a container orchestrator
type OrchestratorType string

const (
	OrchestratorKubernetes  OrchestratorType = "kubernetes"
	OrchestratorDockerSwarm OrchestratorType = "docker_swarm"
)

// Orchestrator roles as observed on the scanned node
const (
	OrchestratorRoleControlPlane = "control-plane"
	OrchestratorRoleWorker       = "worker"
	OrchestratorRoleManager      = "manager"
	OrchestratorRoleClient       = "client"
)

// ListeningPort is one entry from a VM's listening-socket table
type ListeningPort struct {
	Port     int    `json:"port" yaml:"port"`
	Protocol string `json:"protocol" yaml:"protocol"`
	Address  string `json:"address,omitempty" yaml:"address,omitempty"`
	Process  string `json:"process,omitempty" yaml:"process,omitempty"`
	PID      int    `json:"pid,omitempty" yaml:"pid,omitempty"`
}

// EstablishedConnection is one outbound connection observed on the
// scanned VM at scan time
type EstablishedConnection struct {
	LocalPort  int    `json:"local_port" yaml:"local_port"`
	RemoteIP   string `json:"remote_ip" yaml:"remote_ip"`
	RemotePort int    `json:"remote_port" yaml:"remote_port"`
	Process    string `json:"process,omitempty" yaml:"process,omitempty"`
	PID        int    `json:"pid,omitempty" yaml:"pid,omitempty"`
}

// DiscoveredDatabase is a database engine found on a scanned VM.
// OS-level probes produce DiscoveryMethodInferred records; the deep
// prober enriches them or adds DiscoveryMethodDirectConnect records.
type DiscoveredDatabase struct {
	VMName       string          `json:"vm_name,omitempty" yaml:"vm_name,omitempty"`
	Engine       DatabaseEngine  `json:"engine" yaml:"engine"`
	Version      string          `json:"version,omitempty" yaml:"version,omitempty"`
	InstanceName string          `json:"instance_name,omitempty" yaml:"instance_name,omitempty"`
	Port         int             `json:"port" yaml:"port"`
	Host         string          `json:"host,omitempty" yaml:"host,omitempty"`
	Databases    []string        `json:"databases,omitempty" yaml:"databases,omitempty"`
	SizeMB       float64         `json:"size_mb,omitempty" yaml:"size_mb,omitempty"`
	TableCount   int             `json:"table_count,omitempty" yaml:"table_count,omitempty"`
	Connections  int             `json:"connections,omitempty" yaml:"connections,omitempty"`
	UserCount    int             `json:"user_count,omitempty" yaml:"user_count,omitempty"`
	Edition      string          `json:"edition,omitempty" yaml:"edition,omitempty"`
	Method       DiscoveryMethod `json:"discovery_method" yaml:"discovery_method"`
	// ConnectError records a failed enrichment attempt (for example a
	// missing client library) without dropping the record
	ConnectError string `json:"connect_error,omitempty" yaml:"connect_error,omitempty"`
}

// DiscoveredWebApp is a web application runtime found on a scanned VM
type DiscoveredWebApp struct {
	VMName         string        `json:"vm_name,omitempty" yaml:"vm_name,omitempty"`
	Runtime        WebAppRuntime `json:"runtime" yaml:"runtime"`
	RuntimeVersion string        `json:"runtime_version,omitempty" yaml:"runtime_version,omitempty"`
	Framework      string        `json:"framework,omitempty" yaml:"framework,omitempty"`
	AppName        string        `json:"app_name,omitempty" yaml:"app_name,omitempty"`
	Port           int           `json:"port,omitempty" yaml:"port,omitempty"`
	Binding        string        `json:"binding,omitempty" yaml:"binding,omitempty"`
	Status         string        `json:"status,omitempty" yaml:"status,omitempty"`
	ProcessName    string        `json:"process_name,omitempty" yaml:"process_name,omitempty"`
	PID            int           `json:"pid,omitempty" yaml:"pid,omitempty"`
}

// ContainerInfo describes one running container
type ContainerInfo struct {
	ID     string   `json:"id" yaml:"id"`
	Name   string   `json:"name" yaml:"name"`
	Image  string   `json:"image" yaml:"image"`
	Status string   `json:"status,omitempty" yaml:"status,omitempty"`
	Ports  []string `json:"ports,omitempty" yaml:"ports,omitempty"`
}

// DiscoveredContainerRuntime is a container runtime found on a scanned VM
type DiscoveredContainerRuntime struct {
	VMName    string               `json:"vm_name,omitempty" yaml:"vm_name,omitempty"`
	Runtime   ContainerRuntimeType `json:"runtime" yaml:"runtime"`
	Version   string               `json:"version,omitempty" yaml:"version,omitempty"`
	Container []ContainerInfo      `json:"containers,omitempty" yaml:"containers,omitempty"`
	Running   int                  `json:"running_containers" yaml:"running_containers"`
	Total     int                  `json:"total_containers" yaml:"total_containers"`
}

// DiscoveredOrchestrator is an orchestrator role found on a scanned VM
type DiscoveredOrchestrator struct {
	VMName      string           `json:"vm_name,omitempty" yaml:"vm_name,omitempty"`
	Type        OrchestratorType `json:"type" yaml:"type"`
	Version     string           `json:"version,omitempty" yaml:"version,omitempty"`
	Role        string           `json:"role,omitempty" yaml:"role,omitempty"`
	ClusterName string           `json:"cluster_name,omitempty" yaml:"cluster_name,omitempty"`
	Nodes       int              `json:"node_count,omitempty" yaml:"node_count,omitempty"`
	Pods        int              `json:"pod_count,omitempty" yaml:"pod_count,omitempty"`
	Namespaces  int              `json:"namespace_count,omitempty" yaml:"namespace_count,omitempty"`
}
