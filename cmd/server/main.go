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

	"github.com/robfig/cron/v3"

	"github.com/pep299/smartnotes/internal/config"
	"github.com/pep299/smartnotes/internal/handlers"
)

var (
	Version   string = "dev"
	Commit    string = "unknown"
	BuildTime string = "unknown"
)

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		fmt.Printf("SmartNotes Server\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nEnvironment Variables:\n")
		fmt.Printf("  SECRET_KEY            Session signing key (required)\n")
		fmt.Printf("  LLM_PROVIDER          gemini or openai (default: gemini)\n")
		fmt.Printf("  GEMINI_API_KEY        Gemini API key (required for gemini)\n")
		fmt.Printf("  OPENAI_API_KEY        OpenAI API key (required for openai)\n")
		fmt.Printf("  PORT                  Server port (default: 8080)\n")
		fmt.Printf("  HOST                  Server host (default: 0.0.0.0)\n")
		fmt.Printf("  SQLITE_PATH           Database file (default: smartnotes.db)\n")
		fmt.Printf("  MAX_UPLOAD_MB         Upload limit in megabytes (default: 16)\n")
		fmt.Printf("  ADMIN_USERNAME        Account with admin access (default: admin)\n")
		fmt.Printf("  CACHE_TYPE            memory, cloud-storage or none (default: memory)\n")
		fmt.Printf("  MAINTENANCE_SCHEDULE  Cron spec for cache cleanup (default: @hourly)\n")
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("SmartNotes Server\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	handlers.Version = Version

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := handlers.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.SetupRoutes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.MaintenanceSchedule, func() {
		if err := server.RunMaintenance(ctx); err != nil {
			log.Printf("maintenance_failed error=%v", err)
		}
	}); err != nil {
		log.Fatalf("Invalid maintenance schedule %q: %v", cfg.MaintenanceSchedule, err)
	}
	c.Start()
	log.Printf("Scheduled maintenance with cron: %s", cfg.MaintenanceSchedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s (llm=%s)", cfg.Addr(), server.Summarizer().Backend())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down server...")

	if err := shutdown(httpServer, c, cancel, 30*time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown drains in-flight requests, waits for a running maintenance job,
// and only then cancels the context shared by the cache and the job.
func shutdown(srv shutdowner, c *cron.Cron, cancel context.CancelFunc, timeout time.Duration) error {
	defer cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	err := srv.Shutdown(shutdownCtx)
	<-c.Stop().Done()
	return err
}
