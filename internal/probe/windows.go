package probe

import (
	"context"
	"fmt"
	"strings"

	"guestmap/internal/domain"
)

// WindowsSuite probes a Windows guest over a WinRM session
type WindowsSuite struct{}

// NewWindowsSuite creates the Windows probe suite
func NewWindowsSuite() *WindowsSuite {
	return &WindowsSuite{}
}

// OSFamily identifies the suite
func (s *WindowsSuite) OSFamily() domain.OSFamily {
	return domain.OSFamilyWindows
}

// Discover runs the full Windows probe sequence
func (s *WindowsSuite) Discover(ctx context.Context, run Runner) (*Inventory, error) {
	inv := &Inventory{}

	out, err := run.Run(ctx, "Get-NetTCPConnection -State Listen | Select-Object LocalPort,OwningProcess | Sort-Object LocalPort -Unique | ConvertTo-Csv -NoTypeInformation")
	if err != nil {
		return nil, err
	}
	inv.ListeningPorts = ParseWindowsListening(out)

	if err := s.resolveProcessNames(ctx, run, inv.ListeningPorts); err != nil {
		return nil, err
	}

	out, err = run.Run(ctx, "Get-NetTCPConnection -State Established | Select-Object LocalPort,RemoteAddress,RemotePort,OwningProcess | ConvertTo-Csv -NoTypeInformation")
	if err != nil {
		return nil, err
	}
	inv.EstablishedConnections = ParseWindowsEstablished(out)

	ix := newPortIndex(inv.ListeningPorts)

	if inv.Databases, err = s.discoverDatabases(ctx, run, ix); err != nil {
		return nil, err
	}
	if inv.WebApps, err = s.discoverWebApps(ctx, run); err != nil {
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

// resolveProcessNames maps listening-socket PIDs to process names in a
// single Get-Process round trip
func (s *WindowsSuite) resolveProcessNames(ctx context.Context, run Runner, ports []domain.ListeningPort) error {
	var pids []string
	for _, p := range ports {
		if p.PID > 0 {
			pids = append(pids, fmt.Sprintf("%d", p.PID))
		}
	}
	if len(pids) == 0 {
		return nil
	}

	out, err := run.Run(ctx, fmt.Sprintf(
		"Get-Process -Id %s -ErrorAction SilentlyContinue | Select-Object Id,ProcessName | ConvertTo-Csv -NoTypeInformation",
		strings.Join(pids, ",")))
	if err != nil {
		return err
	}

	ResolveProcessNames(ports, ParseProcessNames(out))
	return nil
}

func (s *WindowsSuite) discoverDatabases(ctx context.Context, run Runner, ix *portIndex) ([]domain.DiscoveredDatabase, error) {
	var dbs []domain.DiscoveredDatabase

	// SQL Server: service names carry the instance name
	svcOut, err := run.Run(ctx, "Get-Service -Name 'MSSQL*' -ErrorAction SilentlyContinue | Where-Object {$_.Status -eq 'Running'} | Select-Object Name,DisplayName | ConvertTo-Csv -NoTypeInformation")
	if err != nil {
		return nil, err
	}
	if services := ParseCSVTable(svcOut); len(services) > 0 {
		verOut, err := run.Run(ctx, "try { Invoke-Sqlcmd -Query 'SELECT @@VERSION' -ErrorAction Stop | Select-Object -ExpandProperty Column1 } catch { 'unknown' }")
		if err != nil {
			return nil, err
		}
		version := versionOrUnknown(ExtractVersion(verOut))

		dbOut, err := run.Run(ctx, "try { Invoke-Sqlcmd -Query 'SELECT name FROM sys.databases' -ErrorAction Stop | Select-Object -ExpandProperty name } catch {}")
		if err != nil {
			return nil, err
		}
		databases := nonEmptyLines(dbOut)

		editionOut, err := run.Run(ctx, "try { Invoke-Sqlcmd -Query \"SELECT SERVERPROPERTY('Edition')\" -ErrorAction Stop | Select-Object -ExpandProperty Column1 } catch { '' }")
		if err != nil {
			return nil, err
		}
		edition := strings.TrimSpace(editionOut)

		for _, row := range services {
			instance := "MSSQLSERVER"
			if len(row) > 0 && row[0] != "" {
				instance = row[0]
			}
			dbs = append(dbs, domain.DiscoveredDatabase{
				Engine:       domain.DatabaseEngineMSSQL,
				Port:         1433,
				Version:      version,
				InstanceName: instance,
				Databases:    databases,
				Edition:      edition,
				Method:       domain.DiscoveryMethodInferred,
			})
		}
	}

	if ix.hasPort(3306) || ix.hasProcess("mysqld") {
		out, err := run.Run(ctx, "mysql --version 2>&1")
		if err != nil {
			return nil, err
		}
		engine, version := ClassifyMySQLVersion(out)
		dbs = append(dbs, domain.DiscoveredDatabase{
			Engine:       engine,
			Port:         3306,
			Version:      versionOrUnknown(version),
			InstanceName: "default",
			Method:       domain.DiscoveryMethodInferred,
		})
	}

	if ix.hasPort(5432) || ix.hasProcess("postgres") {
		out, err := run.Run(ctx, "psql --version 2>&1")
		if err != nil {
			return nil, err
		}
		dbs = append(dbs, domain.DiscoveredDatabase{
			Engine:       domain.DatabaseEnginePostgreSQL,
			Port:         5432,
			Version:      versionOrUnknown(ExtractVersion(out)),
			InstanceName: "default",
			Method:       domain.DiscoveryMethodInferred,
		})
	}

	oracleOut, err := run.Run(ctx, "Get-Service -Name 'OracleService*' -ErrorAction SilentlyContinue | Where-Object {$_.Status -eq 'Running'} | Select-Object Name | ConvertTo-Csv -NoTypeInformation")
	if err != nil {
		return nil, err
	}
	if len(ParseCSVTable(oracleOut)) > 0 {
		dbs = append(dbs, domain.DiscoveredDatabase{
			Engine:       domain.DatabaseEngineOracle,
			Port:         1521,
			Version:      "unknown",
			InstanceName: "ORCL",
			Method:       domain.DiscoveryMethodInferred,
		})
	}

	return dbs, nil
}

func (s *WindowsSuite) discoverWebApps(ctx context.Context, run Runner) ([]domain.DiscoveredWebApp, error) {
	var apps []domain.DiscoveredWebApp

	// IIS sites
	iisOut, err := run.Run(ctx, "try { Import-Module WebAdministration -ErrorAction Stop; Get-Website | Select-Object Name,State,PhysicalPath,@{N='Bindings';E={$_.bindings.Collection.bindingInformation -join ';'}} | ConvertTo-Csv -NoTypeInformation } catch { '' }")
	if err != nil {
		return nil, err
	}
	for _, row := range ParseCSVTable(iisOut) {
		if len(row) < 3 {
			continue
		}
		site, state, physPath := row[0], row[1], row[2]
		binding := ""
		if len(row) > 3 {
			binding = row[3]
		}

		// A web.config with the aspNetCore module marks a Core app
		// hosted in-process; plain sites are .NET Framework.
		runtime := domain.WebAppRuntimeDotNetFramework
		framework := "ASP.NET (IIS)"
		if physPath != "" {
			check, err := run.Run(ctx, fmt.Sprintf(
				"if (Test-Path '%s\\web.config') { Select-String -Path '%s\\web.config' -Pattern 'aspNetCore' -Quiet }",
				physPath, physPath))
			if err != nil {
				return nil, err
			}
			if strings.Contains(check, "True") {
				runtime = domain.WebAppRuntimeDotNetCore
				framework = "ASP.NET Core (IIS)"
			}
		}

		apps = append(apps, domain.DiscoveredWebApp{
			Runtime:   runtime,
			Framework: framework,
			AppName:   site,
			Port:      80,
			Binding:   binding,
			Status:    strings.ToLower(state),
		})
	}

	// Standalone Kestrel apps
	dotnetOut, err := run.Run(ctx, "Get-Process -Name dotnet -ErrorAction SilentlyContinue | Select-Object Id,ProcessName | ConvertTo-Csv -NoTypeInformation")
	if err != nil {
		return nil, err
	}
	if len(ParseCSVTable(dotnetOut)) > 0 && !hasRuntime(apps, domain.WebAppRuntimeDotNetCore) {
		verOut, err := run.Run(ctx, "dotnet --list-runtimes 2>&1")
		if err != nil {
			return nil, err
		}
		apps = append(apps, domain.DiscoveredWebApp{
			Runtime:        domain.WebAppRuntimeDotNetCore,
			RuntimeVersion: versionOrUnknown(parseAspNetCoreVersion(verOut)),
			Framework:      "ASP.NET Core (Kestrel)",
			Port:           5000,
			ProcessName:    "dotnet",
		})
	}

	javaOut, err := run.Run(ctx, "Get-Process -Name java -ErrorAction SilentlyContinue | Select-Object Id | ConvertTo-Csv -NoTypeInformation")
	if err != nil {
		return nil, err
	}
	if len(ParseCSVTable(javaOut)) > 0 {
		verOut, err := run.Run(ctx, "java -version 2>&1 | Select-Object -First 1")
		if err != nil {
			return nil, err
		}
		apps = append(apps, domain.DiscoveredWebApp{
			Runtime:        domain.WebAppRuntimeJava,
			RuntimeVersion: versionOrUnknown(ExtractVersion(verOut)),
			Framework:      "Java",
			Port:           8080,
		})
	}

	nodeOut, err := run.Run(ctx, "Get-Process -Name node -ErrorAction SilentlyContinue | Select-Object Id | ConvertTo-Csv -NoTypeInformation")
	if err != nil {
		return nil, err
	}
	if len(ParseCSVTable(nodeOut)) > 0 {
		verOut, err := run.Run(ctx, "node --version 2>&1")
		if err != nil {
			return nil, err
		}
		apps = append(apps, domain.DiscoveredWebApp{
			Runtime:        domain.WebAppRuntimeNodeJS,
			RuntimeVersion: versionOrUnknown(strings.TrimPrefix(strings.TrimSpace(verOut), "v")),
			Framework:      "Node.js",
			Port:           3000,
		})
	}

	return apps, nil
}

func (s *WindowsSuite) discoverContainers(ctx context.Context, run Runner) ([]domain.DiscoveredContainerRuntime, error) {
	var runtimes []domain.DiscoveredContainerRuntime

	verOut, err := run.Run(ctx, "docker version --format '{{.Server.Version}}' 2>&1")
	if err != nil {
		return nil, err
	}
	version := strings.TrimSpace(verOut)
	if version == "" || commandMissing(version) || strings.Contains(strings.ToLower(version), "error") {
		return runtimes, nil
	}

	psOut, err := run.Run(ctx, "docker ps --format '{{.ID}}|{{.Names}}|{{.Image}}|{{.Status}}|{{.Ports}}' 2>&1")
	if err != nil {
		return nil, err
	}
	containers := ParseContainerList(psOut)

	runtimes = append(runtimes, domain.DiscoveredContainerRuntime{
		Runtime:   domain.ContainerRuntimeDocker,
		Version:   version,
		Container: containers,
		Running:   len(containers),
		Total:     len(containers),
	})

	return runtimes, nil
}

func (s *WindowsSuite) discoverOrchestrators(ctx context.Context, run Runner) ([]domain.DiscoveredOrchestrator, error) {
	var orchs []domain.DiscoveredOrchestrator

	out, err := run.Run(ctx, "kubectl version --client --short 2>&1")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) != "" && !commandMissing(out) {
		orchs = append(orchs, domain.DiscoveredOrchestrator{
			Type:    domain.OrchestratorKubernetes,
			Version: versionOrUnknown(ExtractVersion(out)),
			Role:    domain.OrchestratorRoleClient,
		})
	}

	return orchs, nil
}

// hasRuntime reports whether a runtime is already represented in the
// app list
func hasRuntime(apps []domain.DiscoveredWebApp, runtime domain.WebAppRuntime) bool {
	for _, a := range apps {
		if a.Runtime == runtime {
			return true
		}
	}
	return false
}
