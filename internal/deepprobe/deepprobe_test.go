package deepprobe

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"guestmap/internal/domain"
)

// fakeEngine records attempts and answers from a canned record
type fakeEngine struct {
	record   *domain.DiscoveredDatabase
	err      error
	attempts []Target
}

func (f *fakeEngine) probe(ctx context.Context, target Target) (*domain.DiscoveredDatabase, error) {
	f.attempts = append(f.attempts, target)
	if f.err != nil {
		return nil, f.err
	}
	record := *f.record
	return &record, nil
}

func newTestProber(engines map[domain.DatabaseEngine]engineProbe) *Prober {
	return &Prober{Timeout: time.Second, engines: engines}
}

func TestProbeEnrichExisting(t *testing.T) {
	engine := &fakeEngine{record: &domain.DiscoveredDatabase{
		Engine:      domain.DatabaseEnginePostgreSQL,
		Version:     "15.4",
		Databases:   []string{"appdb", "orders"},
		SizeMB:      2048,
		TableCount:  44,
		Connections: 12,
		UserCount:   5,
	}}
	prober := newTestProber(map[domain.DatabaseEngine]engineProbe{
		domain.DatabaseEnginePostgreSQL: engine.probe,
	})

	existing := []domain.DiscoveredDatabase{{
		Engine:       domain.DatabaseEnginePostgreSQL,
		Port:         5432,
		Version:      "unknown",
		InstanceName: "default",
		Method:       domain.DiscoveryMethodInferred,
	}}
	creds := []domain.DatabaseCredential{
		{Engine: domain.DatabaseEnginePostgreSQL, Username: "scanner", Password: "s"},
	}

	result := prober.Probe(context.Background(), "10.0.0.5", creds, existing)
	if len(result) != 1 {
		t.Fatalf("got %d records, want 1", len(result))
	}

	db := result[0]
	if db.Version != "15.4" || db.SizeMB != 2048 || db.TableCount != 44 {
		t.Errorf("enrichment missing: %+v", db)
	}
	if db.Method != domain.DiscoveryMethodInferred {
		t.Errorf("method = %q, enrichment must not rewrite discovery method", db.Method)
	}
	if db.ConnectError != "" {
		t.Errorf("connect error = %q, want empty", db.ConnectError)
	}

	if len(engine.attempts) != 1 {
		t.Fatalf("engine dialed %d times, want 1", len(engine.attempts))
	}
	if engine.attempts[0].Port != 5432 || engine.attempts[0].Username != "scanner" {
		t.Errorf("attempt = %+v", engine.attempts[0])
	}

	// Input slice must stay untouched
	if existing[0].Version != "unknown" {
		t.Errorf("input record mutated: %+v", existing[0])
	}
}

func TestProbeEnrichIdempotent(t *testing.T) {
	engine := &fakeEngine{record: &domain.DiscoveredDatabase{
		Engine:  domain.DatabaseEngineMySQL,
		Version: "8.0.34",
		SizeMB:  512,
	}}
	prober := newTestProber(map[domain.DatabaseEngine]engineProbe{
		domain.DatabaseEngineMySQL: engine.probe,
	})

	existing := []domain.DiscoveredDatabase{{Engine: domain.DatabaseEngineMySQL, Port: 3306}}
	creds := []domain.DatabaseCredential{{Engine: domain.DatabaseEngineAuto, Username: "root"}}

	first := prober.Probe(context.Background(), "10.0.0.5", creds, existing)
	second := prober.Probe(context.Background(), "10.0.0.5", creds, first)

	if len(second) != 1 {
		t.Fatalf("re-run produced %d records, want 1", len(second))
	}
	if second[0].SizeMB != 512 {
		t.Errorf("re-run lost enrichment: %+v", second[0])
	}
}

func TestProbeMissingClientLibrary(t *testing.T) {
	prober := newTestProber(map[domain.DatabaseEngine]engineProbe{})

	existing := []domain.DiscoveredDatabase{{
		Engine:       domain.DatabaseEngineOracle,
		Port:         1521,
		InstanceName: "PRODDB",
	}}
	creds := []domain.DatabaseCredential{{Engine: domain.DatabaseEngineOracle, Username: "system"}}

	result := prober.Probe(context.Background(), "10.0.0.5", creds, existing)
	if len(result) != 1 {
		t.Fatalf("got %d records, want 1", len(result))
	}
	if !strings.Contains(result[0].ConnectError, "client library") {
		t.Errorf("connect error = %q, want missing-client-library message", result[0].ConnectError)
	}
	if result[0].InstanceName != "PRODDB" {
		t.Errorf("record lost its OS-probe detail: %+v", result[0])
	}
}

func TestProbeEnrichFailureRecorded(t *testing.T) {
	engine := &fakeEngine{err: errors.New("pq: password authentication failed")}
	prober := newTestProber(map[domain.DatabaseEngine]engineProbe{
		domain.DatabaseEnginePostgreSQL: engine.probe,
	})

	existing := []domain.DiscoveredDatabase{{Engine: domain.DatabaseEnginePostgreSQL, Port: 5432}}
	creds := []domain.DatabaseCredential{{Engine: domain.DatabaseEnginePostgreSQL, Username: "bad"}}

	result := prober.Probe(context.Background(), "10.0.0.5", creds, existing)
	if len(result) != 1 {
		t.Fatalf("got %d records, want 1: enrichment failure must not drop the record", len(result))
	}
	if !strings.Contains(result[0].ConnectError, "authentication failed") {
		t.Errorf("connect error = %q", result[0].ConnectError)
	}
}

func TestProbeDiscoverNew(t *testing.T) {
	redisEngine := &fakeEngine{record: &domain.DiscoveredDatabase{
		Engine:  domain.DatabaseEngineRedis,
		Version: "7.2.3",
	}}
	mysqlEngine := &fakeEngine{err: errors.New("connection refused")}
	prober := newTestProber(map[domain.DatabaseEngine]engineProbe{
		domain.DatabaseEngineRedis: redisEngine.probe,
		domain.DatabaseEngineMySQL: mysqlEngine.probe,
	})

	creds := []domain.DatabaseCredential{{Engine: domain.DatabaseEngineAuto, Password: "s"}}

	result := prober.Probe(context.Background(), "10.0.0.9", creds, nil)
	if len(result) != 1 {
		t.Fatalf("got %d records, want 1 (mysql refused, redis answered): %+v", len(result), result)
	}

	db := result[0]
	if db.Engine != domain.DatabaseEngineRedis {
		t.Errorf("engine = %q, want redis", db.Engine)
	}
	if db.Method != domain.DiscoveryMethodDirectConnect {
		t.Errorf("method = %q, want direct-connect", db.Method)
	}
	if db.Host != "10.0.0.9" || db.Port != 6379 {
		t.Errorf("endpoint = %s:%d, want 10.0.0.9:6379", db.Host, db.Port)
	}

	// The failed mysql attempt left no trace
	if len(mysqlEngine.attempts) != 1 {
		t.Errorf("mysql dialed %d times, want 1", len(mysqlEngine.attempts))
	}
}

func TestProbeDiscoverSkipsCoveredPorts(t *testing.T) {
	engine := &fakeEngine{record: &domain.DiscoveredDatabase{Engine: domain.DatabaseEngineMySQL}}
	prober := newTestProber(map[domain.DatabaseEngine]engineProbe{
		domain.DatabaseEngineMySQL: engine.probe,
	})

	existing := []domain.DiscoveredDatabase{{Engine: domain.DatabaseEngineMySQL, Port: 3306}}
	creds := []domain.DatabaseCredential{
		{Engine: domain.DatabaseEngineMySQL, Username: "a"}, // consumed by pass 1
		{Engine: domain.DatabaseEngineMySQL, Username: "b"}, // pass 2, port already covered
	}

	result := prober.Probe(context.Background(), "10.0.0.5", creds, existing)
	if len(result) != 1 {
		t.Fatalf("got %d records, want 1 (covered port must not duplicate)", len(result))
	}
	if len(engine.attempts) != 1 {
		t.Errorf("engine dialed %d times, want 1", len(engine.attempts))
	}
}

func TestDefaultPort(t *testing.T) {
	tests := []struct {
		engine domain.DatabaseEngine
		want   int
	}{
		{domain.DatabaseEngineMSSQL, 1433},
		{domain.DatabaseEngineMySQL, 3306},
		{domain.DatabaseEngineMariaDB, 3306},
		{domain.DatabaseEnginePostgreSQL, 5432},
		{domain.DatabaseEngineOracle, 1521},
		{domain.DatabaseEngineMongoDB, 27017},
		{domain.DatabaseEngineRedis, 6379},
		{domain.DatabaseEngineUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.engine), func(t *testing.T) {
			if got := DefaultPort(tt.engine); got != tt.want {
				t.Errorf("DefaultPort(%q) = %d, want %d", tt.engine, got, tt.want)
			}
		})
	}
}
