// Package deepprobe connects to discovered database engines over their
// native client protocols to extract metadata that OS-level inspection
// cannot see: sizes, schema counts, sessions, users, edition.
//
// Probing runs in two passes. Pass 1 enriches databases the OS probe
// already found, consuming at most one credential per record. Pass 2
// takes the leftover credentials and knocks on engine ports directly,
// so a database invisible to the OS probe (or on a VM whose login
// failed) can still be discovered. Pass-2 failures are discarded
// silently; only successful connections become records.
package deepprobe

import (
	"context"
	"fmt"
	"log"
	"time"

	"guestmap/internal/domain"
)

// DefaultTimeout bounds a single connection attempt
const DefaultTimeout = 8 * time.Second

// defaultPorts maps each engine to its conventional port
var defaultPorts = map[domain.DatabaseEngine]int{
	domain.DatabaseEngineMSSQL:      1433,
	domain.DatabaseEngineMySQL:      3306,
	domain.DatabaseEngineMariaDB:    3306,
	domain.DatabaseEnginePostgreSQL: 5432,
	domain.DatabaseEngineOracle:     1521,
	domain.DatabaseEngineMongoDB:    27017,
	domain.DatabaseEngineRedis:      6379,
}

// autoOrder is the engine sequence an "auto" credential walks in pass 2
var autoOrder = []domain.DatabaseEngine{
	domain.DatabaseEngineMSSQL,
	domain.DatabaseEngineMySQL,
	domain.DatabaseEnginePostgreSQL,
	domain.DatabaseEngineMongoDB,
	domain.DatabaseEngineRedis,
}

// DefaultPort returns the conventional port for an engine, 0 if unknown
func DefaultPort(engine domain.DatabaseEngine) int {
	return defaultPorts[engine]
}

// Target is one direct connection attempt
type Target struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// engineProbe opens a native connection and returns a populated record.
// An error means the attempt failed; the caller decides whether that is
// recorded (pass 1) or discarded (pass 2).
type engineProbe func(ctx context.Context, target Target) (*domain.DiscoveredDatabase, error)

// Prober runs deep database probes against one host
type Prober struct {
	Timeout time.Duration
	engines map[domain.DatabaseEngine]engineProbe
}

// NewProber creates a prober with every engine that has a client
// library wired in. Oracle has none, so Oracle records can only report
// the missing capability on their error field.
func NewProber() *Prober {
	return &Prober{
		Timeout: DefaultTimeout,
		engines: map[domain.DatabaseEngine]engineProbe{
			domain.DatabaseEngineMSSQL:      probeMSSQL,
			domain.DatabaseEngineMySQL:      probeMySQL,
			domain.DatabaseEngineMariaDB:    probeMySQL,
			domain.DatabaseEnginePostgreSQL: probePostgreSQL,
			domain.DatabaseEngineMongoDB:    probeMongoDB,
			domain.DatabaseEngineRedis:      probeRedis,
		},
	}
}

// Probe enriches existing records (pass 1) and discovers new databases
// from leftover credentials (pass 2). The input slice is not mutated;
// the returned slice holds the enriched copies plus any new records.
// Re-running against already-enriched records updates fields in place
// without duplicating entries.
func (p *Prober) Probe(ctx context.Context, host string, creds []domain.DatabaseCredential, existing []domain.DiscoveredDatabase) []domain.DiscoveredDatabase {
	result := make([]domain.DiscoveredDatabase, len(existing))
	copy(result, existing)

	used := make([]bool, len(creds))

	// Pass 1: enrich what the OS probe found
	for i := range result {
		db := &result[i]

		ci := matchCredential(db, creds, used)
		if ci < 0 {
			continue
		}
		used[ci] = true
		cred := creds[ci]

		probe, ok := p.engines[db.Engine]
		if !ok {
			db.ConnectError = fmt.Sprintf("no %s client library available", db.Engine)
			continue
		}

		enriched, err := probe(ctx, p.target(host, db.Port, db.Engine, cred))
		if err != nil {
			db.ConnectError = err.Error()
			continue
		}
		mergeEnrichment(db, enriched)
	}

	covered := make(map[int]bool)
	for _, db := range result {
		if db.Port > 0 {
			covered[db.Port] = true
		}
	}

	// Pass 2: leftover credentials knock on engine ports directly
	for i, cred := range creds {
		if used[i] {
			continue
		}

		engine := cred.EffectiveEngine()
		if engine != domain.DatabaseEngineAuto {
			if db := p.tryDiscover(ctx, host, engine, cred, covered); db != nil {
				result = append(result, *db)
			}
			continue
		}

		for _, candidate := range autoOrder {
			if db := p.tryDiscover(ctx, host, candidate, cred, covered); db != nil {
				result = append(result, *db)
			}
		}
	}

	return result
}

// tryDiscover attempts one pass-2 connection. Failures are silent: a
// closed port or rejected login is the expected common case.
func (p *Prober) tryDiscover(ctx context.Context, host string, engine domain.DatabaseEngine, cred domain.DatabaseCredential, covered map[int]bool) *domain.DiscoveredDatabase {
	probe, ok := p.engines[engine]
	if !ok {
		log.Printf("Skipping %s discovery on %s: no client library", engine, host)
		return nil
	}

	target := p.target(host, cred.Port, engine, cred)
	if target.Port == 0 || covered[target.Port] {
		return nil
	}

	db, err := probe(ctx, target)
	if err != nil {
		return nil
	}

	db.Host = target.Host
	db.Port = target.Port
	db.Method = domain.DiscoveryMethodDirectConnect
	if db.InstanceName == "" {
		db.InstanceName = "default"
	}
	covered[target.Port] = true
	return db
}

// target resolves the connection endpoint for one attempt. Credential
// host/port overrides win over discovered values, which win over the
// engine default.
func (p *Prober) target(host string, port int, engine domain.DatabaseEngine, cred domain.DatabaseCredential) Target {
	t := Target{
		Host:     host,
		Port:     port,
		Username: cred.Username,
		Password: cred.Password,
		Timeout:  p.Timeout,
	}
	if t.Timeout <= 0 {
		t.Timeout = DefaultTimeout
	}
	if cred.Host != "" {
		t.Host = cred.Host
	}
	if t.Port == 0 {
		t.Port = cred.Port
	}
	if t.Port == 0 {
		t.Port = DefaultPort(engine)
	}
	return t
}

// matchCredential finds the first unused credential whose engine tag
// matches the record (or is "auto"), or whose port matches
func matchCredential(db *domain.DiscoveredDatabase, creds []domain.DatabaseCredential, used []bool) int {
	for i, cred := range creds {
		if used[i] {
			continue
		}
		engine := cred.EffectiveEngine()
		if engine == domain.DatabaseEngineAuto || engine == db.Engine {
			return i
		}
		if cred.Port != 0 && cred.Port == db.Port {
			return i
		}
	}
	return -1
}

// mergeEnrichment folds direct-connection metadata into an existing
// record. The record keeps its inferred discovery method: enrichment
// adds detail to something the OS probe found, it does not rediscover.
func mergeEnrichment(db *domain.DiscoveredDatabase, enriched *domain.DiscoveredDatabase) {
	if enriched.Version != "" && enriched.Version != "unknown" {
		db.Version = enriched.Version
	}
	if enriched.Engine != "" && enriched.Engine != domain.DatabaseEngineUnknown {
		db.Engine = enriched.Engine
	}
	if len(enriched.Databases) > 0 {
		db.Databases = enriched.Databases
	}
	if enriched.SizeMB > 0 {
		db.SizeMB = enriched.SizeMB
	}
	if enriched.TableCount > 0 {
		db.TableCount = enriched.TableCount
	}
	if enriched.Connections > 0 {
		db.Connections = enriched.Connections
	}
	if enriched.UserCount > 0 {
		db.UserCount = enriched.UserCount
	}
	if enriched.Edition != "" {
		db.Edition = enriched.Edition
	}
	db.ConnectError = ""
}
