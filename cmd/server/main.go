package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/audience-pilot/internal/api"
	"github.com/ignite/audience-pilot/internal/archive"
	"github.com/ignite/audience-pilot/internal/config"
	"github.com/ignite/audience-pilot/internal/ingest"
	"github.com/ignite/audience-pilot/internal/meta"
	"github.com/ignite/audience-pilot/internal/pkg/cache"
	"github.com/ignite/audience-pilot/internal/pkg/distlock"
	"github.com/ignite/audience-pilot/internal/pkg/logger"
	"github.com/ignite/audience-pilot/internal/recommend"
	"github.com/ignite/audience-pilot/internal/rules"
	"github.com/ignite/audience-pilot/internal/scheduler"
	"github.com/ignite/audience-pilot/internal/store"
	"github.com/ignite/audience-pilot/internal/store/memory"
	"github.com/ignite/audience-pilot/internal/store/postgres"
)

// checkPortAvailable verifies that the target port is not already in use,
// so a stale process on the port fails fast instead of surfacing as a
// confusing bind error mid-startup.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logger.DEBUG)
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres when configured, in-memory otherwise. The in-memory store is
	// for local development only; everything in it is lost on restart.
	var st store.Store
	if cfg.Storage.DatabaseURL != "" {
		pg, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		st = pg
		logger.Info("storage: postgres connected")
	} else {
		st = memory.New()
		logger.Warn("storage: DATABASE_URL not set, using in-memory store")
	}

	// Redis backs both the response cache and the per-account sync locks.
	// Without it the service still runs, single-instance only.
	var redisClient *redis.Client
	var locker distlock.Locker = distlock.NewLocalLocker()
	if cfg.Storage.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis: connection failed, falling back to local locks",
				"addr", cfg.Storage.RedisAddr, "error", err.Error())
			redisClient.Close()
			redisClient = nil
		} else {
			locker = distlock.NewRedisLocker(redisClient, 10*time.Minute)
			logger.Info("redis: connected", "addr", cfg.Storage.RedisAddr)
		}
		pingCancel()
	}
	c := cache.New(redisClient)

	archiver, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		log.Fatalf("Failed to initialize archive: %v", err)
	}

	graph := meta.NewClient(cfg.Meta, nil, nil)

	coord := ingest.NewSyncCoordinator(st, graph, locker, c)
	coord.SetArchiver(archiver)

	var upgrade recommend.Strategy
	if cfg.OpenAI.Enabled && cfg.OpenAI.APIKey != "" {
		upgrade = recommend.NewReasoning(cfg.OpenAI, nil)
		logger.Info("recommendations: LLM narrative upgrade enabled", "model", cfg.OpenAI.Model)
	}
	gen := recommend.NewGenerator(st, rules.NewEngine(cfg.Thresholds), upgrade, c, cfg.Thresholds)
	gen.SetArchiver(archiver)

	sched := scheduler.New(st, coord, cfg.Polling)
	go sched.Start(ctx)

	handlers := api.NewHandlers(st, coord, gen, c, cfg.Thresholds)
	server := api.NewServer(cfg.Server, handlers)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		logger.Info("server: listening", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("server: shutting down", "signal", sig.String())

	// Stop the scheduler, refuse new requests, then wait for in-flight syncs
	// to observe cancellation and release their locks.
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server: shutdown error", "error", err.Error())
	}
	coord.Wait()
	logger.Info("server: stopped")
}
