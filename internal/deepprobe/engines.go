package deepprobe

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"guestmap/internal/domain"
)

// Metadata queries run best-effort: a permission error on one query
// loses that field, not the whole record. Only connect/ping failures
// fail the probe.

func probeMySQL(ctx context.Context, target Target) (*domain.DiscoveredDatabase, error) {
	cfg := mysql.NewConfig()
	cfg.User = target.Username
	cfg.Passwd = target.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", target.Host, target.Port)
	cfg.Timeout = target.Timeout
	cfg.ReadTimeout = target.Timeout
	cfg.WriteTimeout = target.Timeout

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connect to mysql at %s: %w", cfg.Addr, err)
	}

	version := queryString(ctx, db, "SELECT VERSION()")
	engine := domain.DatabaseEngineMySQL
	if strings.Contains(strings.ToLower(version), "mariadb") {
		engine = domain.DatabaseEngineMariaDB
	}

	return &domain.DiscoveredDatabase{
		Engine:      engine,
		Version:     version,
		Databases:   queryList(ctx, db, "SELECT schema_name FROM information_schema.schemata WHERE schema_name NOT IN ('mysql','information_schema','performance_schema','sys')"),
		SizeMB:      queryFloat(ctx, db, "SELECT COALESCE(SUM(data_length + index_length) / 1024 / 1024, 0) FROM information_schema.tables"),
		TableCount:  queryInt(ctx, db, "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema NOT IN ('mysql','information_schema','performance_schema','sys')"),
		Connections: queryInt(ctx, db, "SELECT COUNT(*) FROM information_schema.processlist"),
		UserCount:   queryInt(ctx, db, "SELECT COUNT(DISTINCT user) FROM mysql.user"),
	}, nil
}

func probePostgreSQL(ctx context.Context, target Target) (*domain.DiscoveredDatabase, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=postgres sslmode=disable connect_timeout=%d",
		target.Host, target.Port, target.Username, target.Password, int(target.Timeout.Seconds()))

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connect to postgres at %s:%d: %w", target.Host, target.Port, err)
	}

	return &domain.DiscoveredDatabase{
		Engine:      domain.DatabaseEnginePostgreSQL,
		Version:     queryString(ctx, db, "SHOW server_version"),
		Databases:   queryList(ctx, db, "SELECT datname FROM pg_database WHERE datistemplate = false"),
		SizeMB:      queryFloat(ctx, db, "SELECT COALESCE(SUM(pg_database_size(datname)) / 1024.0 / 1024.0, 0) FROM pg_database WHERE datistemplate = false"),
		TableCount:  queryInt(ctx, db, "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema NOT IN ('pg_catalog','information_schema')"),
		Connections: queryInt(ctx, db, "SELECT COUNT(*) FROM pg_stat_activity"),
		UserCount:   queryInt(ctx, db, "SELECT COUNT(*) FROM pg_roles WHERE rolcanlogin"),
	}, nil
}

func probeMSSQL(ctx context.Context, target Target) (*domain.DiscoveredDatabase, error) {
	dsn := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(target.Username, target.Password),
		Host:   fmt.Sprintf("%s:%d", target.Host, target.Port),
		RawQuery: url.Values{
			"dial timeout": []string{strconv.Itoa(int(target.Timeout.Seconds()))},
			"encrypt":      []string{"optional"},
		}.Encode(),
	}

	db, err := sql.Open("sqlserver", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connect to sqlserver at %s:%d: %w", target.Host, target.Port, err)
	}

	return &domain.DiscoveredDatabase{
		Engine:       domain.DatabaseEngineMSSQL,
		Version:      queryString(ctx, db, "SELECT CAST(SERVERPROPERTY('ProductVersion') AS nvarchar(64))"),
		Edition:      queryString(ctx, db, "SELECT CAST(SERVERPROPERTY('Edition') AS nvarchar(128))"),
		InstanceName: queryString(ctx, db, "SELECT COALESCE(CAST(SERVERPROPERTY('InstanceName') AS nvarchar(128)), 'MSSQLSERVER')"),
		Databases:    queryList(ctx, db, "SELECT name FROM sys.databases WHERE database_id > 4"),
		SizeMB:       queryFloat(ctx, db, "SELECT COALESCE(SUM(CAST(size AS bigint)) * 8.0 / 1024, 0) FROM sys.master_files"),
		Connections:  queryInt(ctx, db, "SELECT COUNT(*) FROM sys.dm_exec_connections"),
		UserCount:    queryInt(ctx, db, "SELECT COUNT(*) FROM sys.sql_logins"),
	}, nil
}

func probeRedis(ctx context.Context, target Target) (*domain.DiscoveredDatabase, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", target.Host, target.Port),
		Password:     target.Password,
		DialTimeout:  target.Timeout,
		ReadTimeout:  target.Timeout,
		WriteTimeout: target.Timeout,
	})
	defer client.Close()

	info, err := client.Info(ctx, "server", "clients", "keyspace").Result()
	if err != nil {
		return nil, fmt.Errorf("connect to redis at %s:%d: %w", target.Host, target.Port, err)
	}

	db := &domain.DiscoveredDatabase{Engine: domain.DatabaseEngineRedis}
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "redis_version:"):
			db.Version = strings.TrimPrefix(line, "redis_version:")
		case strings.HasPrefix(line, "connected_clients:"):
			db.Connections, _ = strconv.Atoi(strings.TrimPrefix(line, "connected_clients:"))
		case strings.HasPrefix(line, "db") && strings.Contains(line, ":keys="):
			if name, _, ok := strings.Cut(line, ":"); ok {
				db.Databases = append(db.Databases, name)
			}
		}
	}
	return db, nil
}

func probeMongoDB(ctx context.Context, target Target) (*domain.DiscoveredDatabase, error) {
	uri := fmt.Sprintf("mongodb://%s:%d", target.Host, target.Port)
	if target.Username != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%d",
			url.QueryEscape(target.Username), url.QueryEscape(target.Password), target.Host, target.Port)
	}

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(target.Timeout).
		SetServerSelectionTimeout(target.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open mongodb connection: %w", err)
	}
	defer client.Disconnect(context.Background())

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("connect to mongodb at %s:%d: %w", target.Host, target.Port, err)
	}

	db := &domain.DiscoveredDatabase{Engine: domain.DatabaseEngineMongoDB}

	var build struct {
		Version string `bson:"version"`
	}
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&build); err == nil {
		db.Version = build.Version
	}

	if names, err := client.ListDatabaseNames(ctx, bson.D{}); err == nil {
		for _, name := range names {
			if name == "admin" || name == "local" || name == "config" {
				continue
			}
			db.Databases = append(db.Databases, name)
		}
	}

	var status struct {
		Connections struct {
			Current int `bson:"current"`
		} `bson:"connections"`
	}
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "serverStatus", Value: 1}}).Decode(&status); err == nil {
		db.Connections = status.Connections.Current
	}

	return db, nil
}

func queryString(ctx context.Context, db *sql.DB, query string) string {
	var value sql.NullString
	if err := db.QueryRowContext(ctx, query).Scan(&value); err != nil {
		return ""
	}
	return strings.TrimSpace(value.String)
}

func queryInt(ctx context.Context, db *sql.DB, query string) int {
	var value sql.NullInt64
	if err := db.QueryRowContext(ctx, query).Scan(&value); err != nil {
		return 0
	}
	return int(value.Int64)
}

func queryFloat(ctx context.Context, db *sql.DB, query string) float64 {
	var value sql.NullFloat64
	if err := db.QueryRowContext(ctx, query).Scan(&value); err != nil {
		return 0
	}
	return value.Float64
}

func queryList(ctx context.Context, db *sql.DB, query string) []string {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		names = append(names, name)
	}
	return names
}
