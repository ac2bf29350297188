// Package api exposes the ledger over HTTP.
// It is started by the serve command or can be mounted programmatically.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aqlanhadi/kisht/ledger"
	"github.com/aqlanhadi/kisht/store"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Config holds the API server configuration
type Config struct {
	Port           string
	MaxUploadBytes int64
}

// DefaultConfig returns the default API configuration
func DefaultConfig() Config {
	return Config{
		Port:           ":8080",
		MaxUploadBytes: 32 << 20,
	}
}

// Server serves one ledger
type Server struct {
	config  Config
	ledger  *ledger.Ledger
	router  *mux.Router
	imports *importTracker
}

// New creates a server for l
func New(cfg Config, l *ledger.Ledger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	s := &Server{
		config:  cfg,
		ledger:  l,
		router:  mux.NewRouter(),
		imports: &importTracker{},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Use(logRequests)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)
	s.router.HandleFunc("/import/status", s.handleImportStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/import/status", s.handleImportReset).Methods(http.MethodDelete)

	s.router.HandleFunc("/pending", s.handlePending).Methods(http.MethodGet)

	s.router.HandleFunc("/customers", s.handleListCustomers).Methods(http.MethodGet)
	s.router.HandleFunc("/customers", s.handleAddCustomer).Methods(http.MethodPost)
	s.router.HandleFunc("/customers/{acc}", s.handleGetCustomer).Methods(http.MethodGet)
	s.router.HandleFunc("/customers/{acc}", s.handleUpdateCustomer).Methods(http.MethodPatch)
	s.router.HandleFunc("/customers/{acc}", s.handleDeleteCustomer).Methods(http.MethodDelete)

	s.router.HandleFunc("/customers/{acc}/transactions", s.handleListTransactions).Methods(http.MethodGet)
	s.router.HandleFunc("/customers/{acc}/transactions", s.handleAddTransaction).Methods(http.MethodPost)
	s.router.HandleFunc("/customers/{acc}/transactions/{id}", s.handleSetFine).Methods(http.MethodPatch)
	s.router.HandleFunc("/customers/{acc}/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)

	s.router.HandleFunc("/customers/{acc}/upi", s.handleListUpiIDs).Methods(http.MethodGet)
	s.router.HandleFunc("/customers/{acc}/upi", s.handleAddUpiID).Methods(http.MethodPost)
}

// Handler returns the http.Handler for the server
// This allows the server to be used with custom http.Server configurations
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.config.Port).Info("starting API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("request served")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeError maps ledger and store errors onto HTTP status codes
func writeError(w http.ResponseWriter, err error, action string) {
	status := http.StatusInternalServerError
	var statusErr *store.StatusError

	switch {
	case store.IsAuthError(err) && errors.As(err, &statusErr):
		status = statusErr.StatusCode
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrPreconditionFailed),
		errors.Is(err, ledger.ErrCustomerExists),
		errors.Is(err, ledger.ErrUpiExists):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidCustomer),
		errors.Is(err, ledger.ErrInvalidTransaction),
		errors.Is(err, ledger.ErrInvalidUpiHandle):
		status = http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("action", action).Error("request failed")
	}
	writeMessage(w, status, store.UserMessage(err, action))
}
