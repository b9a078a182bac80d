package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Hoangnph/stock-tracking-data/internal/cache"
	"github.com/Hoangnph/stock-tracking-data/internal/database"
	"github.com/Hoangnph/stock-tracking-data/internal/messaging"
	"github.com/Hoangnph/stock-tracking-data/internal/services"
	"github.com/Hoangnph/stock-tracking-data/pkg/config"
	"github.com/Hoangnph/stock-tracking-data/pkg/logger"
	"github.com/Hoangnph/stock-tracking-data/pkg/models"
)

// Server is the operational status API. It exposes sync progress, the last
// run summary, and a manual trigger for an immediate sync pass.
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server

	mysqlDB    *database.MySQLClient
	redisCache *cache.RedisClient
	natsClient *messaging.NATSClient
	updater    *services.Updater
}

// NewServer creates a new status API server. Redis, NATS and the updater
// may be nil; the affected endpoints degrade instead of failing.
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	mysqlDB *database.MySQLClient,
	redisCache *cache.RedisClient,
	natsClient *messaging.NATSClient,
	updater *services.Updater,
) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		mysqlDB:    mysqlDB,
		redisCache: redisCache,
		natsClient: natsClient,
		updater:    updater,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Use(logger.Middleware(s.logger))
	s.router.Use(s.recoveryMiddleware)

	if s.cfg.Server.CORSEnabled {
		s.router.Use(s.corsMiddleware)
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	apiV1 := s.router.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/symbols", s.handleGetSymbols).Methods("GET")
	apiV1.HandleFunc("/sync/status", s.handleSyncStatus).Methods("GET")
	apiV1.HandleFunc("/sync/summary", s.handleSyncSummary).Methods("GET")
	apiV1.HandleFunc("/sync/run", s.handleSyncRun).Methods("POST")
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.cfg.GetServerAddr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Middleware functions

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(next)
}

// Handler functions

// handleHealth reports the health of each backing service.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]bool{
		"mysql": s.mysqlDB != nil && s.mysqlDB.Health(ctx) == nil,
		"redis": s.redisCache != nil && s.redisCache.Health(ctx) == nil,
		"nats":  s.natsClient != nil && s.natsClient.IsConnected(),
	}

	status := "healthy"
	code := http.StatusOK
	if !checks["mysql"] {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	s.respondJSON(w, code, map[string]interface{}{
		"status":    status,
		"services":  checks,
		"timestamp": time.Now().Unix(),
	})
}

// handleGetSymbols returns the active symbol universe.
func (s *Server) handleGetSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.mysqlDB.GetActiveSymbols(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to load symbols")
		s.respondError(w, http.StatusInternalServerError, "failed to load symbols")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(symbols),
		"symbols": symbols,
	})
}

// handleSyncStatus returns the persisted per-symbol sync states.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.mysqlDB.GetSyncStatuses(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to load sync statuses")
		s.respondError(w, http.StatusInternalServerError, "failed to load sync statuses")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(statuses),
		"statuses": statuses,
	})
}

// handleSyncSummary returns the most recent run summary, preferring the
// in-process updater and falling back to the cached copy.
func (s *Server) handleSyncSummary(w http.ResponseWriter, r *http.Request) {
	var stats *models.RunStats
	if s.updater != nil {
		stats = s.updater.LastStats()
	}
	if stats == nil && s.redisCache != nil {
		cached, err := s.redisCache.GetLastSummary(r.Context())
		if err != nil {
			s.logger.WithError(err).Warn("Failed to read cached run summary")
		} else {
			stats = cached
		}
	}

	if stats == nil {
		s.respondError(w, http.StatusNotFound, "no sync pass has completed yet")
		return
	}

	s.respondJSON(w, http.StatusOK, stats)
}

// handleSyncRun runs a sync pass immediately, outside the regular schedule,
// and returns its summary. The pass runs synchronously so the response
// reflects the completed run.
func (s *Server) handleSyncRun(w http.ResponseWriter, r *http.Request) {
	if s.updater == nil {
		s.respondError(w, http.StatusServiceUnavailable, "background updater is not running")
		return
	}

	stats := s.updater.ForcePass(r.Context())
	if stats == nil {
		s.respondError(w, http.StatusInternalServerError, "sync pass produced no summary")
		return
	}

	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, code int, msg string) {
	s.respondJSON(w, code, map[string]string{"error": msg})
}
