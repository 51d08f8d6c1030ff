// Command authcored is the reference authentication server: it wires the
// engine to PostgreSQL persistence, an optional Redis challenge guard, and
// the HTTP transport.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/quintal-io/authcore"
	"github.com/quintal-io/authcore/challenge"
	"github.com/quintal-io/authcore/httpapi"
	"github.com/quintal-io/authcore/pgstore"
)

type serverConfig struct {
	listenAddr  string
	databaseURL string
	redisAddr   string
	hs256Secret string
	totpIssuer  string
}

func loadConfig() (serverConfig, error) {
	// Missing .env is fine; the environment may be set by the supervisor.
	_ = godotenv.Load()

	cfg := serverConfig{
		listenAddr:  os.Getenv("LISTEN_ADDR"),
		databaseURL: os.Getenv("DATABASE_URL"),
		redisAddr:   os.Getenv("REDIS_ADDR"),
		hs256Secret: os.Getenv("TOKEN_SECRET"),
		totpIssuer:  os.Getenv("TOTP_ISSUER"),
	}
	if cfg.listenAddr == "" {
		cfg.listenAddr = ":8080"
	}
	if cfg.totpIssuer == "" {
		cfg.totpIssuer = "authcore"
	}
	if cfg.databaseURL == "" {
		return serverConfig{}, errors.New("DATABASE_URL is required")
	}
	if len(cfg.hs256Secret) < 32 {
		return serverConfig{}, errors.New("TOKEN_SECRET must be at least 32 bytes")
	}

	return cfg, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := pgstore.Open(ctx, cfg.databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := pgstore.Migrate(ctx, db); err != nil {
		return err
	}

	store, err := pgstore.New(db)
	if err != nil {
		return err
	}

	engineConfig := authcore.Config{
		Token: authcore.TokenConfig{
			AccessTTL:     15 * time.Minute,
			TempTTL:       5 * time.Minute,
			SigningMethod: "hs256",
			PrivateKey:    []byte(cfg.hs256Secret),
			Issuer:        "authcore",
		},
		Refresh: authcore.RefreshConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Password: authcore.PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		TOTP: authcore.TOTPConfig{
			Issuer:           cfg.totpIssuer,
			Digits:           6,
			Period:           30,
			Algorithm:        "SHA1",
			Skew:             1,
			BackupCodeCount:  8,
			BackupCodeLength: 10,
		},
		Audit: authcore.AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: authcore.MetricsConfig{
			Enabled: true,
		},
	}

	builder := authcore.New().
		WithConfig(engineConfig).
		WithStore(store).
		WithAuditSink(authcore.NewJSONWriterSink(os.Stdout))

	if cfg.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		defer client.Close()

		guard, err := challenge.NewGuard(client, "")
		if err != nil {
			return err
		}
		builder = builder.WithChallengeGuard(guard)
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	server := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           httpapi.NewServer(engine).Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.listenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
