package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"

	pharos "github.com/pharos-research/pharos"
)

// serverConfig is the TOML configuration for the curation API server.
type serverConfig struct {
	Server struct {
		Addr                string `toml:"addr"`
		ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
		WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
		IdleTimeoutSeconds  int    `toml:"idle_timeout_seconds"`
	} `toml:"server"`

	Database struct {
		Path string `toml:"path"`
	} `toml:"database"`

	Auth struct {
		// HS256 secret for curator bearer tokens. Empty disables auth;
		// only do that behind a trusted proxy.
		Secret string `toml:"secret"`
	} `toml:"auth"`

	Ollama struct {
		BaseURL        string `toml:"base_url"`
		SummaryModel   string `toml:"summary_model"`
		ExecutiveModel string `toml:"executive_model"`
	} `toml:"ollama"`
}

func defaultServerConfig() serverConfig {
	var cfg serverConfig
	cfg.Server.Addr = ":8080"
	cfg.Server.ReadTimeoutSeconds = 15
	cfg.Server.WriteTimeoutSeconds = 30
	cfg.Server.IdleTimeoutSeconds = 60
	cfg.Database.Path = "./pharos.db"
	cfg.Ollama.BaseURL = "http://localhost:11434"
	return cfg
}

func loadServerConfig(path string) (serverConfig, error) {
	cfg := defaultServerConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "./config/server.toml", "path to TOML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "path to SQLite database (overrides config)")
	flag.Parse()

	cfg, err := loadServerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pharos-web: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	engine, err := pharos.NewEngine(pharos.EngineConfig{
		DBPath:         cfg.Database.Path,
		OllamaBaseURL:  cfg.Ollama.BaseURL,
		SummaryModel:   cfg.Ollama.SummaryModel,
		ExecutiveModel: cfg.Ollama.ExecutiveModel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pharos-web: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	mux := newRouter(engine, cfg.Auth.Secret)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      logging(recovery(mux)),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("pharos-web: listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("pharos-web: %v", err)
		}
	}()

	<-done
	log.Println("pharos-web: shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("pharos-web: shutdown error: %v", err)
	}
	log.Println("pharos-web: stopped")
}
