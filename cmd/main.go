package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openhms/ledger/internal/config"
	httpapi "github.com/openhms/ledger/internal/httpapi/v1"
	"github.com/openhms/ledger/internal/ledger"
	"github.com/openhms/ledger/internal/service/balance"
	"github.com/openhms/ledger/internal/storage/memory"
	pgstore "github.com/openhms/ledger/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	var srv *httpapi.Server
	var closeFn func()

	if cfg.DatabaseURL != "" {
		db, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = db.Close
		cash := balance.New[ledger.CashKey](pgstore.NewCashStore(db), db, nil)
		bank := balance.New[string](pgstore.NewBankStore(db), db, balance.RequireCode)
		drug := balance.New[string](pgstore.NewDrugStore(db), db, balance.RequireCode)
		srv = httpapi.New(cash, bank, drug, cfg.Currency, []httpapi.ReadyChecker{db}, logger)
		logger.Info("storage backend: postgres")
	} else {
		cashStore := memory.New[ledger.CashKey](nil)
		bankStore := memory.New[string](memory.CodeLess)
		drugStore := memory.New[string](memory.CodeLess)
		cash := balance.New[ledger.CashKey](cashStore, cashStore, nil)
		bank := balance.New[string](bankStore, bankStore, balance.RequireCode)
		drug := balance.New[string](drugStore, drugStore, balance.RequireCode)
		srv = httpapi.New(cash, bank, drug, cfg.Currency, nil, logger)
		logger.Info("storage backend: memory")
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ledger service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
