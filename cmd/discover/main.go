// Command discover runs one discovery pass and writes the result to
// stdout or a file, for scripted use without the HTTP server.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"guestmap/internal/codec"
	"guestmap/internal/config"
	"guestmap/internal/deepprobe"
	"guestmap/internal/discovery"
	"guestmap/internal/domain"
	"guestmap/internal/preflight"
	"guestmap/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: search standard locations)")
	format := flag.String("format", "json", "output format: json or yaml")
	output := flag.String("output", "", "output file (default: stdout)")
	concurrency := flag.Int("concurrency", 0, "worker pool size (overrides config)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

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
	if cfgFile == "" {
		log.Fatal("No config file found; targets and credentials are required")
	}
	if *concurrency > 0 {
		cfg.Discovery.Concurrency = *concurrency
	}

	exporter, err := codec.ForFormat(*format)
	if err != nil {
		log.Fatalf("Invalid format: %v", err)
	}

	scanner := &discovery.Scanner{
		Dialers: map[domain.OSFamily]transport.Dialer{
			domain.OSFamilyLinux:   transport.NewSSHDialer(cfg.Discovery.ConnectTimeout(), cfg.Discovery.CommandTimeout()),
			domain.OSFamilyWindows: transport.NewWinRMDialer(cfg.Discovery.ConnectTimeout(), cfg.Discovery.CommandTimeout()),
		},
		Prober:      deepprobe.NewProber(),
		Progress:    discovery.NewProgress(),
		Concurrency: cfg.Discovery.Concurrency,
		VMTimeout:   cfg.Discovery.VMTimeout(),
	}
	if cfg.Discovery.Preflight {
		scanner.Preflight = preflight.NewChecker()
	}

	result, err := scanner.Run(context.Background(), discovery.Request{
		Targets:             cfg.Targets,
		LinuxCredentials:    cfg.Credentials.Linux,
		WindowsCredentials:  cfg.Credentials.Windows,
		DatabaseCredentials: cfg.DatabaseCredentials,
	})
	if err != nil {
		log.Fatalf("Discovery failed: %v", err)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}

	if err := exporter.Export(result, out); err != nil {
		log.Fatalf("Failed to write result: %v", err)
	}
}
