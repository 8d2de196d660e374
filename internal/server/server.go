// Package server exposes the bank service over a JSON HTTP API. Portals never
// touch the database directly; every balance change goes through a handler
// here and lands in a single database transaction in package bank.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tellerline/teller/internal/bank"
	"github.com/tellerline/teller/internal/config"
	"github.com/tellerline/teller/internal/metrics"
)

const healthTimeout = 2 * time.Second

// Server routes API requests to the bank service.
type Server struct {
	svc     *bank.Service
	log     *zap.Logger
	metrics *metrics.Metrics
	limiter *rateLimiter
	cors    *cors
	handler http.Handler
}

// New wires the router and middleware chain. m may be nil, in which case
// /metrics is not served and requests are not instrumented.
func New(svc *bank.Service, m *metrics.Metrics, log *zap.Logger, cfg *config.Config) *Server {
	s := &Server{
		svc:     svc,
		log:     log.Named("http"),
		metrics: m,
		cors:    newCORS(cfg.CORS.AllowedOrigins),
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	s.handler = s.accessLog(s.cors.Handler(s.rateLimit(s.routes())))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, bank.ErrNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{Code: "method_not_allowed", Message: r.Method + " not allowed"}})
	})

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/register", s.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.login).Methods(http.MethodPost)

	user := api.NewRoute().Subrouter()
	user.Use(s.authenticate)
	user.HandleFunc("/me", s.me).Methods(http.MethodGet)
	user.HandleFunc("/accounts", s.listAccounts).Methods(http.MethodGet)
	user.HandleFunc("/accounts", s.openAccount).Methods(http.MethodPost)
	user.HandleFunc("/accounts/{id}", s.getAccount).Methods(http.MethodGet)
	user.HandleFunc("/accounts/{id}/transactions", s.statement).Methods(http.MethodGet)
	user.HandleFunc("/transfers", s.transfer).Methods(http.MethodPost)
	user.HandleFunc("/loans", s.listLoans).Methods(http.MethodGet)
	user.HandleFunc("/loans", s.applyLoan).Methods(http.MethodPost)
	user.HandleFunc("/cards", s.listCards).Methods(http.MethodGet)
	user.HandleFunc("/cards", s.applyCard).Methods(http.MethodPost)

	admin := user.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/customers", s.listCustomers).Methods(http.MethodGet)
	admin.HandleFunc("/customers/{id}", s.getCustomer).Methods(http.MethodGet)
	admin.HandleFunc("/accounts", s.listAccounts).Methods(http.MethodGet)
	admin.HandleFunc("/accounts/{id}/{action:approve|reject|freeze|unfreeze|close}", s.decideAccount).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/{id}/{kind:deposit|withdraw}", s.cashMovement).Methods(http.MethodPost)
	admin.HandleFunc("/transactions", s.searchTransactions).Methods(http.MethodGet)
	admin.HandleFunc("/loans", s.listLoans).Methods(http.MethodGet)
	admin.HandleFunc("/loans/{id}/{action:approve|reject}", s.decideLoan).Methods(http.MethodPost)
	admin.HandleFunc("/cards", s.listCards).Methods(http.MethodGet)
	admin.HandleFunc("/cards/{id}/{action:approve|reject}", s.decideCard).Methods(http.MethodPost)
	admin.HandleFunc("/ledger/verify", s.verifyLedger).Methods(http.MethodGet)
	admin.HandleFunc("/audit", s.listAudit).Methods(http.MethodGet)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
