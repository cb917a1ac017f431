package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pixpot/internal/chain"
	"pixpot/internal/config"
	"pixpot/internal/db"
	"pixpot/internal/logger"
	"pixpot/internal/server"
	"pixpot/internal/store"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg)
	if err != nil {
		logger.Log.Fatalw("database connection failed", "error", err)
	}
	if err := db.Migrate(conn); err != nil {
		logger.Log.Fatalw("database migration failed", "error", err)
	}
	repo := store.NewGorm(conn)

	var contract server.Chain
	gateway, err := chain.Dial(ctx, cfg, "", nil)
	switch {
	case errors.Is(err, chain.ErrNotConfigured):
		logger.Log.Warn("RPC_URL or CONTRACT_ADDRESS missing; transaction verification disabled")
	case err != nil:
		logger.Log.Fatalw("chain connection failed", "error", err)
	default:
		defer gateway.Close()
		contract = gateway
		logger.Log.Infow("chain connected", "contract", gateway.Address().Hex(), "chain_id", cfg.ChainID)
	}

	srv := server.New(cfg, repo, contract)
	if contract != nil {
		go func() {
			if err := srv.Sync(ctx); err != nil {
				logger.Log.Errorw("activation sync stopped", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warnw("shutdown incomplete", "error", err)
		}
	}()

	logger.Log.Infow("pixpot server listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatalw("server failed", "error", err)
	}
}
