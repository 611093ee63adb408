package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pep299/smartnotes/internal/auth"
	"github.com/pep299/smartnotes/internal/cache"
	"github.com/pep299/smartnotes/internal/config"
	"github.com/pep299/smartnotes/internal/gemini"
	"github.com/pep299/smartnotes/internal/openai"
	"github.com/pep299/smartnotes/internal/store"
	"github.com/pep299/smartnotes/internal/summarizer"
	"github.com/pep299/smartnotes/internal/web"
	"github.com/pep299/smartnotes/internal/webpage"
)

// Version is reported by /health
var Version = "dev"

// Server holds the HTTP server and its dependencies
type Server struct {
	config       *config.Config
	store        *store.Store
	auth         *auth.Service
	summarizer   *summarizer.Summarizer
	webpage      *webpage.Processor
	cacheManager *cache.Manager
	pages        *web.Renderer
	now          func() time.Time
}

// NewServer opens the database and cache and creates the configured LLM client
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	storeCfg := store.LoadConfig()
	storeCfg.Path = cfg.DatabasePath
	st, err := store.OpenWithConfig(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	cacheManager, err := cache.NewManager(ctx, cfg.CacheType, time.Duration(cfg.CacheDuration)*time.Hour, cfg.CacheBucket)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating cache manager: %w", err)
	}

	generator, err := NewGenerator(cfg)
	if err != nil {
		st.Close()
		cacheManager.Close()
		return nil, err
	}

	server, err := NewServerWithDeps(cfg, st, generator, cacheManager, nil)
	if err != nil {
		st.Close()
		cacheManager.Close()
		return nil, err
	}
	return server, nil
}

// NewServerWithDeps creates a server from existing dependencies. client is used for
// fetching web pages and may be nil.
func NewServerWithDeps(cfg *config.Config, st *store.Store, generator summarizer.Generator, cacheManager *cache.Manager, client *http.Client) (*Server, error) {
	pages, err := web.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	return &Server{
		config:       cfg,
		store:        st,
		auth:         auth.NewService(st, cfg.SecretKey, cfg.AdminUsername),
		summarizer:   summarizer.New(generator, cacheManager, cfg.MaxConcurrentRequests),
		webpage:      webpage.NewProcessor(client),
		cacheManager: cacheManager,
		pages:        pages,
		now:          time.Now,
	}, nil
}

// NewGenerator returns the text generation client for cfg.LLMProvider
func NewGenerator(cfg *config.Config) (summarizer.Generator, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL), nil
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}

// Store returns the server's database
func (s *Server) Store() *store.Store {
	return s.store
}

// Summarizer returns the server's summarizer
func (s *Server) Summarizer() *summarizer.Summarizer {
	return s.summarizer
}

// Close releases the database and cache
func (s *Server) Close() error {
	cacheErr := s.cacheManager.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return cacheErr
}

// SetupRoutes configures HTTP routes. CORS wraps the router so preflight
// requests are answered for every path.
func (s *Server) SetupRoutes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	r.PathPrefix("/static/").Handler(web.Static())
	r.HandleFunc("/health", s.healthHandler).Methods("GET")

	// Accounts
	r.HandleFunc("/register", s.registerPageHandler).Methods("GET")
	r.HandleFunc("/register", s.registerHandler).Methods("POST")
	r.HandleFunc("/login", s.loginPageHandler).Methods("GET")
	r.HandleFunc("/login", s.loginHandler).Methods("POST")
	r.Handle("/logout", s.requireLogin(s.logoutHandler)).Methods("GET")

	// Pages
	r.Handle("/", s.requireLogin(s.indexPageHandler)).Methods("GET")
	r.Handle("/history", s.requireLogin(s.historyPageHandler)).Methods("GET")
	r.Handle("/admin", s.requireAdmin(s.adminPageHandler)).Methods("GET")

	// Content and summarization
	r.Handle("/languages", s.requireLogin(s.languagesHandler)).Methods("GET")
	r.Handle("/detect-language", s.requireLogin(s.detectLanguageHandler)).Methods("POST")
	r.Handle("/process-url", s.requireLogin(s.processURLHandler)).Methods("POST")
	r.Handle("/upload", s.requireLogin(s.uploadHandler)).Methods("POST")
	r.Handle("/summarize", s.requireLogin(s.summarizeHandler)).Methods("POST")
	r.Handle("/key-points", s.requireLogin(s.keyPointsHandler)).Methods("POST")
	r.Handle("/download-pdf", s.requireLogin(s.downloadPDFHandler)).Methods("POST")
	r.Handle("/download-text", s.requireLogin(s.downloadTextHandler)).Methods("POST")

	// History
	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/history", s.requireLogin(s.listHistoryHandler)).Methods("GET")
	api.Handle("/history/{id:[0-9]+}", s.requireLogin(s.getHistoryHandler)).Methods("GET")
	api.Handle("/history/{id:[0-9]+}", s.requireLogin(s.deleteHistoryHandler)).Methods("DELETE")
	api.Handle("/history/{id:[0-9]+}/favorite", s.requireLogin(s.favoriteHandler)).Methods("POST")

	// Administration
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Handle("/statistics", s.requireAdmin(s.adminStatisticsHandler)).Methods("GET")
	admin.Handle("/users", s.requireAdmin(s.adminUsersHandler)).Methods("GET")
	admin.Handle("/users/{id:[0-9]+}", s.requireAdmin(s.adminUserHandler)).Methods("GET")
	admin.Handle("/summaries", s.requireAdmin(s.adminSummariesHandler)).Methods("GET")
	admin.Handle("/summaries/{id:[0-9]+}", s.requireAdmin(s.adminSummaryHandler)).Methods("GET")
	admin.Handle("/activity", s.requireAdmin(s.adminActivityHandler)).Methods("GET")
	admin.Handle("/export/users", s.requireAdmin(s.exportUsersHandler)).Methods("GET")
	admin.Handle("/export/summaries", s.requireAdmin(s.exportSummariesHandler)).Methods("GET")
	admin.Handle("/export/user/{id:[0-9]+}", s.requireAdmin(s.exportUserHandler)).Methods("GET")
	admin.Handle("/cache", s.requireAdmin(s.cacheStatsHandler)).Methods("GET")
	admin.Handle("/cache", s.requireAdmin(s.cacheClearHandler)).Methods("DELETE")

	return s.corsMiddleware(r)
}

func (s *Server) requireLogin(h http.HandlerFunc) http.Handler {
	return s.auth.RequireLogin(h)
}

func (s *Server) requireAdmin(h http.HandlerFunc) http.Handler {
	return s.auth.RequireAdmin(h)
}

// RunMaintenance purges expired cache entries and logs a usage snapshot
func (s *Server) RunMaintenance(ctx context.Context) error {
	logger := log.New(funcframework.LogWriter(ctx), "", 0)

	purged, err := s.cacheManager.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purging cache: %w", err)
	}

	stats, err := s.store.Statistics(ctx, s.now())
	if err != nil {
		return fmt.Errorf("loading statistics: %w", err)
	}

	logger.Printf("maintenance_done purged=%d users=%d summaries=%d today=%d",
		purged, stats.TotalUsers, stats.TotalSummaries, stats.TodayActivity)
	return nil
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware tags each request with an ID and logs its outcome
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		// Wrap the ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		logger := log.New(funcframework.LogWriter(r.Context()), "", 0)
		logger.Printf("http_request id=%s method=%s path=%s status=%d duration=%v",
			requestID, r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
