package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lockerloot/auction-engine/internal/archive"
	"github.com/lockerloot/auction-engine/internal/balance"
	"github.com/lockerloot/auction-engine/internal/engine"
	"github.com/lockerloot/auction-engine/internal/lot"
	"github.com/lockerloot/auction-engine/internal/metrics"
	"github.com/lockerloot/auction-engine/internal/rng"
	"github.com/lockerloot/auction-engine/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize archive ---
	var st archive.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = archive.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = archive.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory archive (data will not persist)")
		st = archive.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Randomness ---
	// RNG_SEED pins the stream for reproducible runs; unset means clock-seeded.
	var src rng.Source
	if seedStr := os.Getenv("RNG_SEED"); seedStr != "" {
		seed, err := strconv.ParseInt(seedStr, 10, 64)
		if err != nil {
			slog.Error("invalid RNG_SEED", "err", err)
			os.Exit(1)
		}
		src = rng.New(seed)
		slog.Info("rng seeded", "seed", seed)
	} else {
		src = rng.NewFromClock()
	}

	// --- Engine wiring ---
	globals := balance.DefaultGlobals()
	gen := lot.NewGenerator(nil, globals, nil)
	eng := engine.New(globals, nil, src)

	// --- WebSocket hub ---
	wsHub := service.NewWSHub()
	go wsHub.Run()

	// --- Auction service ---
	svc := service.NewService(gen, eng, st, src, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"auction-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time auction updates.
		r.Get("/ws", wsHub.HandleWS)

		// Venue catalog.
		r.Get("/venues", svc.ListVenues)

		// Auction lifecycle.
		r.Get("/auctions", svc.ListAuctions)
		r.Post("/auctions", svc.CreateAuction)
		r.Get("/auctions/{auctionID}", svc.GetAuction)
		r.Post("/auctions/{auctionID}/enter", svc.EnterAuction)
		r.Post("/auctions/{auctionID}/advance", svc.AdvanceRound)
		r.Post("/auctions/{auctionID}/bid", svc.PlaceBid)
		r.Post("/auctions/{auctionID}/tactics", svc.ApplyTactic)

		// Post-win and read-only queries.
		r.Get("/auctions/{auctionID}/lot", svc.GetLot)
		r.Get("/auctions/{auctionID}/bidders/{bidderID}/tell", svc.GetTell)

		// Archive.
		r.Get("/history", svc.GetHistory)
		r.Get("/stats", svc.GetStats)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("auction-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down auction-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("auction-engine stopped")
}
