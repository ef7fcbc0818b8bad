package probe

import (
	"context"
	"strings"

	"guestmap/internal/domain"
)

// LinuxSuite probes a Linux guest over an SSH session
type LinuxSuite struct{}

// NewLinuxSuite creates the Linux probe suite
func NewLinuxSuite() *LinuxSuite {
	return &LinuxSuite{}
}

// OSFamily identifies the suite
func (s *LinuxSuite) OSFamily() domain.OSFamily {
	return domain.OSFamilyLinux
}

// Discover runs the full Linux probe sequence. The socket table comes
// first; every classifier reads it.
func (s *LinuxSuite) Discover(ctx context.Context, run Runner) (*Inventory, error) {
	inv := &Inventory{}

	out, err := run.Run(ctx, "ss -tnlp 2>/dev/null || netstat -tlnp 2>/dev/null")
	if err != nil {
		return nil, err
	}
	inv.ListeningPorts = ParseLinuxListening(out)

	out, err = run.Run(ctx, "ss -tnp state established 2>/dev/null || netstat -tnp 2>/dev/null | grep ESTABLISHED")
	if err != nil {
		return nil, err
	}
	inv.EstablishedConnections = ParseLinuxEstablished(out)

	ix := newPortIndex(inv.ListeningPorts)

	if inv.Databases, err = s.discoverDatabases(ctx, run, ix); err != nil {
		return nil, err
	}
	if inv.WebApps, err = s.discoverWebApps(ctx, run, ix); err != nil {
		return nil, err
	}
	if inv.ContainerRuntimes, err = s.discoverContainers(ctx, run); err != nil {
		return nil, err
	}
	if inv.Orchestrators, err = s.discoverOrchestrators(ctx, run); err != nil {
		return nil, err
	}

	return inv, nil
}

// linuxDBProbe classifies one database engine. A nil record means the
// engine is absent; an error means the transport failed and the whole
// attempt must be discarded.
type linuxDBProbe func(ctx context.Context, run Runner, ix *portIndex) (*domain.DiscoveredDatabase, error)

func (s *LinuxSuite) discoverDatabases(ctx context.Context, run Runner, ix *portIndex) ([]domain.DiscoveredDatabase, error) {
	probes := []linuxDBProbe{
		s.probeMySQL,
		s.probePostgreSQL,
		s.probeMSSQL,
		s.probeOracle,
		s.probeMongoDB,
		s.probeRedis,
	}

	var dbs []domain.DiscoveredDatabase
	for _, probe := range probes {
		db, err := probe(ctx, run, ix)
		if err != nil {
			return nil, err
		}
		if db != nil {
			db.Method = domain.DiscoveryMethodInferred
			dbs = append(dbs, *db)
		}
	}
	return dbs, nil
}

func (s *LinuxSuite) probeMySQL(ctx context.Context, run Runner, ix *portIndex) (*domain.DiscoveredDatabase, error) {
	if !ix.hasPort(3306) && !ix.hasProcess("mysqld", "mariadbd") {
		return nil, nil
	}

	out, err := run.Run(ctx, "mysql --version 2>/dev/null || mysqld --version 2>/dev/null")
	if err != nil {
		return nil, err
	}
	engine, version := ClassifyMySQLVersion(out)

	list, err := run.Run(ctx, "mysql -N -e 'SELECT schema_name FROM information_schema.schemata' 2>/dev/null")
	if err != nil {
		return nil, err
	}

	return &domain.DiscoveredDatabase{
		Engine:       engine,
		Port:         ix.portOwnedBy(3306, "mysqld", "mariadbd"),
		Version:      versionOrUnknown(version),
		InstanceName: "default",
		Databases:    nonEmptyLines(list),
	}, nil
}

func (s *LinuxSuite) probePostgreSQL(ctx context.Context, run Runner, ix *portIndex) (*domain.DiscoveredDatabase, error) {
	if !ix.hasPort(5432) && !ix.hasProcess("postgres") {
		return nil, nil
	}

	out, err := run.Run(ctx, "psql --version 2>/dev/null || postgres --version 2>/dev/null")
	if err != nil {
		return nil, err
	}

	list, err := run.Run(ctx, "sudo -u postgres psql -t -c 'SELECT datname FROM pg_database WHERE datistemplate=false' 2>/dev/null")
	if err != nil {
		return nil, err
	}

	return &domain.DiscoveredDatabase{
		Engine:       domain.DatabaseEnginePostgreSQL,
		Port:         ix.portOwnedBy(5432, "postgres"),
		Version:      versionOrUnknown(ExtractVersion(out)),
		InstanceName: "default",
		Databases:    nonEmptyLines(list),
	}, nil
}

func (s *LinuxSuite) probeMSSQL(ctx context.Context, run Runner, ix *portIndex) (*domain.DiscoveredDatabase, error) {
	if !ix.hasPort(1433) && !ix.hasProcess("sqlservr") {
		return nil, nil
	}

	out, err := run.Run(ctx, "/opt/mssql/bin/sqlservr --version 2>/dev/null || sqlcmd -Q 'SELECT @@VERSION' -h -1 2>/dev/null | head -1")
	if err != nil {
		return nil, err
	}

	return &domain.DiscoveredDatabase{
		Engine:       domain.DatabaseEngineMSSQL,
		Port:         1433,
		Version:      versionOrUnknown(ExtractVersion(out)),
		InstanceName: "MSSQLSERVER",
	}, nil
}

func (s *LinuxSuite) probeOracle(ctx context.Context, run Runner, ix *portIndex) (*domain.DiscoveredDatabase, error) {
	if !ix.hasPort(1521) && !ix.hasProcessContaining("ora_pmon") {
		return nil, nil
	}

	out, err := run.Run(ctx, "cat $ORACLE_HOME/bin/oraversion 2>/dev/null || su - oracle -c 'sqlplus -V' 2>/dev/null")
	if err != nil {
		return nil, err
	}

	pmon, err := run.Run(ctx, "ps aux 2>/dev/null | grep ora_pmon | grep -v grep")
	if err != nil {
		return nil, err
	}

	sid := ExtractOracleSID(pmon)
	if sid == "" {
		sid = "ORCL"
	}

	return &domain.DiscoveredDatabase{
		Engine:       domain.DatabaseEngineOracle,
		Port:         1521,
		Version:      versionOrUnknown(ExtractVersion(out)),
		InstanceName: sid,
	}, nil
}

func (s *LinuxSuite) probeMongoDB(ctx context.Context, run Runner, ix *portIndex) (*domain.DiscoveredDatabase, error) {
	if !ix.hasPort(27017) && !ix.hasProcess("mongod") {
		return nil, nil
	}

	out, err := run.Run(ctx, "mongod --version 2>/dev/null")
	if err != nil {
		return nil, err
	}

	return &domain.DiscoveredDatabase{
		Engine:       domain.DatabaseEngineMongoDB,
		Port:         ix.portOwnedBy(27017, "mongod"),
		Version:      versionOrUnknown(ExtractVersion(out)),
		InstanceName: "default",
	}, nil
}

func (s *LinuxSuite) probeRedis(ctx context.Context, run Runner, ix *portIndex) (*domain.DiscoveredDatabase, error) {
	if !ix.hasPort(6379) && !ix.hasProcess("redis-server") {
		return nil, nil
	}

	out, err := run.Run(ctx, "redis-server --version 2>/dev/null")
	if err != nil {
		return nil, err
	}

	return &domain.DiscoveredDatabase{
		Engine:       domain.DatabaseEngineRedis,
		Port:         ix.portOwnedBy(6379, "redis-server"),
		Version:      versionOrUnknown(ExtractVersion(out)),
		InstanceName: "default",
	}, nil
}

// Web application detection scans the full process listing in addition
// to the port table: several runtimes bind no predictable port.
func (s *LinuxSuite) discoverWebApps(ctx context.Context, run Runner, ix *portIndex) ([]domain.DiscoveredWebApp, error) {
	psOut, err := run.Run(ctx, "ps aux 2>/dev/null")
	if err != nil {
		return nil, err
	}

	var apps []domain.DiscoveredWebApp

	// .NET (Kestrel)
	if lines := processLines(psOut, "dotnet"); len(lines) > 0 || ix.hasProcess("dotnet") {
		out, err := run.Run(ctx, "dotnet --list-runtimes 2>/dev/null")
		if err != nil {
			return nil, err
		}
		app := domain.DiscoveredWebApp{
			Runtime:        domain.WebAppRuntimeDotNetCore,
			RuntimeVersion: versionOrUnknown(parseDotNetRuntimeVersion(out)),
			Framework:      "ASP.NET Core",
		}
		if entry, ok := ix.entryOwnedBy("dotnet"); ok {
			app.Port = entry.Port
			app.ProcessName = entry.Process
			app.PID = entry.PID
		}
		apps = append(apps, app)
	}

	// Java application servers
	if lines := processLines(psOut, " java "); len(lines) > 0 || ix.hasProcess("java") {
		javaLines := processLines(psOut, "java")
		out, err := run.Run(ctx, "java -version 2>&1 | head -1")
		if err != nil {
			return nil, err
		}
		framework := frameworkFromProcesses(javaLines, "Java",
			map[string]string{
				"tomcat":   "Apache Tomcat",
				"catalina": "Apache Tomcat",
				"jboss":    "JBoss / WildFly",
				"wildfly":  "JBoss / WildFly",
				"spring":   "Spring Boot",
				"jetty":    "Jetty",
			},
			[]string{"tomcat", "catalina", "jboss", "wildfly", "spring", "jetty"})
		apps = append(apps, domain.DiscoveredWebApp{
			Runtime:        domain.WebAppRuntimeJava,
			RuntimeVersion: versionOrUnknown(ExtractVersion(out)),
			Framework:      framework,
			Port:           ix.portOwnedBy(8080, "java"),
		})
	}

	// Node.js
	if lines := processLines(psOut, "node "); len(lines) > 0 || ix.hasProcess("node") {
		nodeLines := processLines(psOut, "node")
		out, err := run.Run(ctx, "node --version 2>/dev/null")
		if err != nil {
			return nil, err
		}
		framework := frameworkFromProcesses(nodeLines, "Node.js",
			map[string]string{"express": "Express.js", "next": "Next.js"},
			[]string{"express", "next"})
		apps = append(apps, domain.DiscoveredWebApp{
			Runtime:        domain.WebAppRuntimeNodeJS,
			RuntimeVersion: versionOrUnknown(strings.TrimPrefix(strings.TrimSpace(out), "v")),
			Framework:      framework,
			Port:           ix.portOwnedBy(3000, "node"),
		})
	}

	// Python WSGI/ASGI servers
	if pyLines := processLines(psOut, "gunicorn", "uvicorn", "uwsgi", "django", "flask"); len(pyLines) > 0 {
		out, err := run.Run(ctx, "python3 --version 2>/dev/null || python --version 2>/dev/null")
		if err != nil {
			return nil, err
		}
		framework := frameworkFromProcesses(pyLines, "Python",
			map[string]string{
				"django":  "Django",
				"flask":   "Flask",
				"fastapi": "FastAPI",
				"uvicorn": "FastAPI",
			},
			[]string{"django", "flask", "fastapi", "uvicorn"})
		apps = append(apps, domain.DiscoveredWebApp{
			Runtime:        domain.WebAppRuntimePython,
			RuntimeVersion: versionOrUnknown(ExtractVersion(out)),
			Framework:      framework,
			Port:           ix.portOwnedBy(8000, "gunicorn", "uvicorn", "uwsgi", "python", "python3"),
		})
	}

	// PHP
	if phpLines := processLines(psOut, "php"); len(phpLines) > 0 || ix.hasProcessContaining("php") {
		out, err := run.Run(ctx, "php --version 2>/dev/null | head -1")
		if err != nil {
			return nil, err
		}
		framework := frameworkFromProcesses(phpLines, "PHP",
			map[string]string{"laravel": "Laravel", "wordpress": "WordPress"},
			[]string{"laravel", "wordpress"})
		apps = append(apps, domain.DiscoveredWebApp{
			Runtime:        domain.WebAppRuntimePHP,
			RuntimeVersion: versionOrUnknown(ExtractVersion(out)),
			Framework:      framework,
			Port:           80,
		})
	}

	// Generic web servers are only a fallback: if a specific classifier
	// already claimed the port, the server is fronting that app.
	claimed := claimedPorts(apps)
	for _, p := range ix.all {
		name := strings.ToLower(p.Process)
		if name != "nginx" && name != "apache2" && name != "httpd" {
			continue
		}
		if p.Port != 80 && p.Port != 443 && p.Port != 8080 {
			continue
		}
		if claimed[p.Port] {
			continue
		}
		apps = append(apps, domain.DiscoveredWebApp{
			Runtime:     domain.WebAppRuntimeUnknown,
			Framework:   capitalize(name) + " web server",
			Port:        p.Port,
			ProcessName: p.Process,
			PID:         p.PID,
		})
		claimed[p.Port] = true
	}

	return apps, nil
}

func (s *LinuxSuite) discoverContainers(ctx context.Context, run Runner) ([]domain.DiscoveredContainerRuntime, error) {
	var runtimes []domain.DiscoveredContainerRuntime

	dockerVer, err := run.Run(ctx, "docker version --format '{{.Server.Version}}' 2>/dev/null")
	if err != nil {
		return nil, err
	}
	dockerVer = strings.TrimSpace(dockerVer)
	if dockerVer != "" && !commandMissing(dockerVer) && !strings.Contains(strings.ToLower(dockerVer), "error") {
		psOut, err := run.Run(ctx, "docker ps --format '{{.ID}}|{{.Names}}|{{.Image}}|{{.Status}}|{{.Ports}}' 2>/dev/null")
		if err != nil {
			return nil, err
		}
		containers := ParseContainerList(psOut)

		allOut, err := run.Run(ctx, "docker ps -aq 2>/dev/null | wc -l")
		if err != nil {
			return nil, err
		}
		total := parseCount(allOut)
		if total < len(containers) {
			total = len(containers)
		}

		runtimes = append(runtimes, domain.DiscoveredContainerRuntime{
			Runtime:   domain.ContainerRuntimeDocker,
			Version:   dockerVer,
			Container: containers,
			Running:   len(containers),
			Total:     total,
		})
	}

	podmanVer, err := run.Run(ctx, "podman version --format '{{.Version}}' 2>/dev/null")
	if err != nil {
		return nil, err
	}
	podmanVer = strings.TrimSpace(podmanVer)
	if podmanVer != "" && !commandMissing(podmanVer) && !strings.Contains(strings.ToLower(podmanVer), "error") {
		psOut, err := run.Run(ctx, "podman ps --format '{{.ID}}|{{.Names}}|{{.Image}}|{{.Status}}|{{.Ports}}' 2>/dev/null")
		if err != nil {
			return nil, err
		}
		containers := ParseContainerList(psOut)
		runtimes = append(runtimes, domain.DiscoveredContainerRuntime{
			Runtime:   domain.ContainerRuntimePodman,
			Version:   podmanVer,
			Container: containers,
			Running:   len(containers),
			Total:     len(containers),
		})
	}

	ctrVer, err := run.Run(ctx, "ctr version 2>/dev/null | grep 'Version' | head -1")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ctrVer) != "" && !commandMissing(ctrVer) {
		runtimes = append(runtimes, domain.DiscoveredContainerRuntime{
			Runtime: domain.ContainerRuntimeContainerd,
			Version: versionOrUnknown(ExtractVersion(ctrVer)),
		})
	}

	return runtimes, nil
}

func (s *LinuxSuite) discoverOrchestrators(ctx context.Context, run Runner) ([]domain.DiscoveredOrchestrator, error) {
	var orchs []domain.DiscoveredOrchestrator

	kubeletVer, err := run.Run(ctx, "kubelet --version 2>/dev/null")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(kubeletVer) != "" && !commandMissing(kubeletVer) {
		orch := domain.DiscoveredOrchestrator{
			Type:    domain.OrchestratorKubernetes,
			Version: versionOrUnknown(ExtractVersion(kubeletVer)),
			Role:    domain.OrchestratorRoleWorker,
		}

		apiCheck, err := run.Run(ctx, "ps aux 2>/dev/null | grep kube-apiserver | grep -v grep")
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(apiCheck) != "" {
			orch.Role = domain.OrchestratorRoleControlPlane

			// Cluster-wide counts only answer on the control plane
			ctxOut, err := run.Run(ctx, "kubectl config current-context 2>/dev/null")
			if err != nil {
				return nil, err
			}
			orch.ClusterName = strings.TrimSpace(ctxOut)

			nodes, err := run.Run(ctx, "kubectl get nodes --no-headers 2>/dev/null | wc -l")
			if err != nil {
				return nil, err
			}
			orch.Nodes = parseCount(nodes)

			pods, err := run.Run(ctx, "kubectl get pods --all-namespaces --no-headers 2>/dev/null | wc -l")
			if err != nil {
				return nil, err
			}
			orch.Pods = parseCount(pods)

			namespaces, err := run.Run(ctx, "kubectl get namespaces --no-headers 2>/dev/null | wc -l")
			if err != nil {
				return nil, err
			}
			orch.Namespaces = parseCount(namespaces)
		}

		orchs = append(orchs, orch)
	}

	swarmState, err := run.Run(ctx, "docker info --format '{{.Swarm.LocalNodeState}}' 2>/dev/null")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(swarmState) == "active" {
		orch := domain.DiscoveredOrchestrator{
			Type: domain.OrchestratorDockerSwarm,
			Role: domain.OrchestratorRoleWorker,
		}

		manager, err := run.Run(ctx, "docker info --format '{{.Swarm.ControlAvailable}}' 2>/dev/null")
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(strings.TrimSpace(manager), "true") {
			orch.Role = domain.OrchestratorRoleManager

			nodes, err := run.Run(ctx, "docker node ls --format '{{.ID}}' 2>/dev/null | wc -l")
			if err != nil {
				return nil, err
			}
			orch.Nodes = parseCount(nodes)
		}

		orchs = append(orchs, orch)
	}

	return orchs, nil
}

// capitalize upper-cases the first ASCII letter of a process name
func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

// parseDotNetRuntimeVersion extracts the ASP.NET Core runtime version
// from `dotnet --list-runtimes` output, falling back to the base
// runtime when the web framework is not installed
func parseDotNetRuntimeVersion(output string) string {
	for _, prefix := range []string{"Microsoft.AspNetCore.App ", "Microsoft.NETCore.App "} {
		for _, line := range strings.Split(output, "\n") {
			if strings.HasPrefix(line, prefix) {
				fields := strings.Fields(strings.TrimPrefix(line, prefix))
				if len(fields) > 0 {
					return fields[0]
				}
			}
		}
	}
	return ""
}
