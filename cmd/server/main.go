package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/config"
	"warungpos/backend/internal/httpapi"
	pgremote "warungpos/backend/internal/remote/postgres"
	"warungpos/backend/internal/service"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/store/memory"
	"warungpos/backend/internal/store/sqlite"
	"warungpos/backend/internal/syncworker"
)

// validateSecurityConfig rejects startup configurations that would expose the
// admin surface with weak credentials. With no ADMIN_PIN the admin endpoints
// stay locked, so nothing needs checking.
func validateSecurityConfig(cfg config.Config) error {
	if cfg.AdminPIN == "" {
		return nil
	}
	if len(cfg.AdminPIN) < 6 {
		return errors.New("ADMIN_PIN must be at least 6 characters")
	}
	if len(cfg.AuthSecret) < 16 {
		return errors.New("AUTH_SECRET must be at least 16 characters when ADMIN_PIN is set")
	}
	return nil
}

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 3)

	if cfg.LocalDBPath != "" {
		local, err := sqlite.New(ctx, cfg.LocalDBPath)
		if err != nil {
			log.Fatalf("local store unavailable (%v) and LOCAL_DB_PATH is set; refusing to start without durable storage", err)
		}
		repo = local
		closers = append(closers, local.Close)
		log.Printf("local store: sqlite (%s)", cfg.LocalDBPath)
	} else {
		repo = memory.NewSeeded()
		log.Println("local store: in-memory (demo catalog)")
	}

	stockCache := cache.StockCache(cache.NoopStockCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisStockCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop stock cache", err)
		} else {
			stockCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("stock cache: redis")
		}
	} else {
		log.Println("stock cache: noop")
	}

	var engine *syncworker.Engine
	var notifier service.SyncNotifier
	remoteEnabled := false
	if cfg.RemoteDatabaseURL != "" {
		remote, err := pgremote.New(ctx, cfg.RemoteDatabaseURL, cfg.StoreID)
		if err != nil {
			log.Printf("remote authority unavailable (%v), running offline until restart", err)
		} else {
			if err := remote.EnsureSchema(ctx); err != nil {
				log.Printf("remote schema check: %v", err)
			}
			engine = syncworker.New(repo, remote, cfg.SyncInterval())
			notifier = engine
			remoteEnabled = true
			closers = append(closers, remote.Close)
			log.Println("remote authority: postgres")
		}
	} else {
		log.Println("remote authority: disabled (offline mode)")
	}

	svc := service.New(repo, stockCache, notifier, cfg.StoreID, cfg.TaxRatePercent, remoteEnabled)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.AdminPIN)
	if !auth.Enabled() {
		log.Println("ADMIN_PIN not set: admin endpoints are locked")
	}
	api := httpapi.New(svc, auth, notifier, cfg.AllowedOrigin)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if engine != nil {
		go engine.Run(runCtx)
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS terminal backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-runCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}
