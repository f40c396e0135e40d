package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"acadia/school/internal/auth"
	"acadia/school/internal/config"
	internalhttp "acadia/school/internal/http"
	"acadia/school/internal/store"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	credentials, err := cfg.Credentials()
	if err != nil {
		log.Fatalf("credentials decode failed: %v", err)
	}

	var (
		st       store.Store
		provider auth.Provider
		verifier auth.Verifier
	)
	switch {
	case credentials != nil:
		fs, err := store.NewFirestore(ctx, cfg.ProjectID, credentials)
		if err != nil {
			log.Fatalf("firestore init failed: %v", err)
		}
		defer fs.Close()

		fbProvider, fbVerifier, err := auth.NewFirebase(ctx, credentials)
		if err != nil {
			log.Fatalf("firebase init failed: %v", err)
		}
		st, provider, verifier = fs, fbProvider, fbVerifier
	case cfg.DevJWTSecret != "":
		log.Printf("GOOGLE_CREDENTIALS_B64 not set, running with in-memory store and dev tokens")
		st = store.NewMem()
		provider = auth.NewDevProvider()
		verifier = auth.DevVerifier{Secret: cfg.DevJWTSecret, Issuer: cfg.JWTIssuer}
	default:
		log.Fatalf("GOOGLE_CREDENTIALS_B64 not set")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
	}

	gateway := auth.NewGateway(provider, st)
	server := internalhttp.NewServer(cfg, st, gateway, verifier, redisClient)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("school backend listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
