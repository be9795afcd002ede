// Package v1 wires the HTTP surface of the balance ledger service. It
// keeps handlers thin, delegating cascade semantics to the balance
// services.
package v1

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/openhms/ledger/internal/ledger"
)

// Server wires handlers and middleware using chi: one resource per ledger
// kind, all backed by the same generic engine.
type Server struct {
	cash  *resource[ledger.CashKey]
	bank  *resource[string]
	drug  *resource[string]
	ready []ReadyChecker
	log   *slog.Logger
	rt    *chi.Mux
}

// New constructs the HTTP server with routes and middleware. currency is
// the ISO-4217 code used to render cash and bank balances; ready checkers
// (typically the Postgres pool) back /readyz.
func New(cash BalanceService[ledger.CashKey], bank, drug BalanceService[string], currency string, ready []ReadyChecker, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		cash:  cashResource(cash, currency, logger),
		bank:  codedResource(ledger.KindBank, bank, "account_code", moneyDisplay(currency), logger),
		drug:  codedResource(ledger.KindDrug, drug, "drug_code", nil, logger),
		ready: ready,
		log:   logger,
		rt:    r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints.
func (s *Server) routes() {
	s.rt.Route("/v1/ledgers", func(r chi.Router) {
		mount(r, "/cash/balances", s.cash)
		mount(r, "/bank/balances", s.bank)
		mount(r, "/drug/balances", s.drug)
	})
	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", metricsHandler())
}

// mount attaches the five balance operations of one ledger kind.
func mount[K ledger.Key](r chi.Router, prefix string, res *resource[K]) {
	r.Post(prefix, res.create)
	r.Put(prefix, res.update)
	r.Get(prefix, res.list)
	r.Get(prefix+"/{date}", res.get)
	r.Delete(prefix+"/{date}", res.remove)
}
