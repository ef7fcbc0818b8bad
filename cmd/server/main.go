package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guestmap/internal/config"
	"guestmap/internal/deepprobe"
	"guestmap/internal/discovery"
	"guestmap/internal/domain"
	"guestmap/internal/handler"
	"guestmap/internal/preflight"
	"guestmap/internal/repository/sqlite"
	"guestmap/internal/service"
	"guestmap/internal/transport"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "config file path (default: search standard locations)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting guestmap server...")

	// Load configuration
	var (
		cfg     *config.Config
		cfgFile string
		err     error
	)
	if *configPath != "" {
		cfg, cfgFile, err = config.LoadFromPath(*configPath)
	} else {
		cfg, cfgFile, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfgFile != "" {
		log.Printf("Config loaded: %s", cfgFile)
	} else {
		log.Println("No config file found, using defaults")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Initialize SQLite repository
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()
	log.Printf("Database opened: %s", cfg.Database.Path)

	// Initialize event bus with a logging consumer
	eventBus := service.NewEventBus()
	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	go func() {
		for event := range eventChan {
			log.Printf("Event %s: %v", event.Type, event.Payload)
		}
	}()

	// Initialize the scanner
	progress := discovery.NewProgress()
	prober := deepprobe.NewProber()
	scanner := &discovery.Scanner{
		Dialers: map[domain.OSFamily]transport.Dialer{
			domain.OSFamilyLinux:   transport.NewSSHDialer(cfg.Discovery.ConnectTimeout(), cfg.Discovery.CommandTimeout()),
			domain.OSFamilyWindows: transport.NewWinRMDialer(cfg.Discovery.ConnectTimeout(), cfg.Discovery.CommandTimeout()),
		},
		Prober:      prober,
		Progress:    progress,
		Concurrency: cfg.Discovery.Concurrency,
		VMTimeout:   cfg.Discovery.VMTimeout(),
	}
	if cfg.Discovery.Preflight {
		scanner.Preflight = preflight.NewChecker()
	}

	svc := service.NewDiscoveryService(scanner, progress, repo, prober, eventBus)

	defaults := discovery.Request{
		Targets:             cfg.Targets,
		LinuxCredentials:    cfg.Credentials.Linux,
		WindowsCredentials:  cfg.Credentials.Windows,
		DatabaseCredentials: cfg.DatabaseCredentials,
	}
	discoveryHandler := handler.NewDiscoveryHandler(svc, defaults)

	// Setup routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/discovery/run", discoveryHandler.StartRun)
	mux.HandleFunc("GET /api/discovery/progress", discoveryHandler.GetProgress)
	mux.HandleFunc("GET /api/discovery/result", discoveryHandler.GetResult)
	mux.HandleFunc("GET /api/discovery/runs", discoveryHandler.ListRuns)
	mux.HandleFunc("POST /api/databases/probe", discoveryHandler.ProbeDatabases)

	// Apply middleware
	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORS,
		handler.Logger,
	)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      finalHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
