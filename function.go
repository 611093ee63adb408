// Package smartnotes exposes the web application as Cloud Functions.
package smartnotes

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/pep299/smartnotes/internal/config"
	"github.com/pep299/smartnotes/internal/handlers"
)

func init() {
	target := os.Getenv("FUNCTION_TARGET")
	if target == "" || target == "SmartNotesMaintenance" {
		target = "SmartNotes"
	}
	functions.HTTP(target, Handle)
	functions.HTTP("SmartNotesMaintenance", Maintenance)
}

var (
	mu     sync.Mutex
	app    *handlers.Server
	router http.Handler
	appCfg *config.Config
)

// setup builds the server on first use. A failed build is retried on the
// next request.
func setup() (*handlers.Server, http.Handler, *config.Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if app != nil {
		return app, router, appCfg, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	server, err := handlers.NewServer(context.Background(), cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	app, router, appCfg = server, server.SetupRoutes(), cfg
	return app, router, appCfg, nil
}

// Handle serves the full web application
func Handle(w http.ResponseWriter, r *http.Request) {
	_, h, _, err := setup()
	if err != nil {
		log.New(funcframework.LogWriter(r.Context()), "", 0).Printf("function_init_failed error=%v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.ServeHTTP(w, r)
}

// Maintenance purges expired cache entries. It is meant for Cloud Scheduler
// and requires "Authorization: Bearer <SECRET_KEY>".
func Maintenance(w http.ResponseWriter, r *http.Request) {
	logger := log.New(funcframework.LogWriter(r.Context()), "", 0)

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	server, _, cfg, err := setup()
	if err != nil {
		logger.Printf("function_init_failed error=%v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		http.Error(w, "Missing or invalid Authorization header", http.StatusUnauthorized)
		return
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.SecretKey)) != 1 {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	if err := server.RunMaintenance(r.Context()); err != nil {
		logger.Printf("maintenance_failed error=%v", err)
		http.Error(w, "Maintenance failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
