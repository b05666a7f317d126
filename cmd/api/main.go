package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/baharkarakas/tokenledger/internal/api"
	"github.com/baharkarakas/tokenledger/internal/auth"
	"github.com/baharkarakas/tokenledger/internal/chain"
	"github.com/baharkarakas/tokenledger/internal/config"
	"github.com/baharkarakas/tokenledger/internal/db"
	"github.com/baharkarakas/tokenledger/internal/logger"
	"github.com/baharkarakas/tokenledger/internal/metrics"
	"github.com/baharkarakas/tokenledger/internal/repository/memory"
	"github.com/baharkarakas/tokenledger/internal/repository/postgres"
	"github.com/baharkarakas/tokenledger/internal/services"
	"github.com/baharkarakas/tokenledger/internal/settlement"
	"github.com/baharkarakas/tokenledger/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file (default ./config.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("exit", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	repos, closeStore, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	chains, closeChains, err := chain.Dial(ctx, cfg.Chains)
	if err != nil {
		return err
	}
	defer closeChains()

	scanner := chain.NewScanner(chains, chain.WithLogger(log), chain.WithMode(chain.Mode(cfg.Chain.ScanMode)))
	var resolver chain.Resolver = scanner
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// cache yoksa da çalışır
			log.Warn("redis unavailable, transfer cache disabled", zap.Error(err))
		} else {
			resolver = chain.NewCachedResolver(scanner, rdb, cfg.Redis.TTL, log)
		}
	}

	wp := worker.NewPool(cfg.Workers, log)
	defer wp.Stop()

	tm := auth.NewTokenManager(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.Issuer, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	audit := services.NewAuditor(repos.AuditLogs, wp, log)
	userSvc := services.NewUserService(repos.Users, tm)
	ledgerSvc := services.NewLedgerService(repos.Ledger, log)
	verifier := settlement.NewVerifier(userSvc, resolver, scanner,
		settlement.PolicyFor(cfg.Ledger.Decimals, chains, cfg.Settlement.RequireMint), log)

	metrics.Init()
	r := api.NewRouter(api.RouterDeps{
		Cfg:        cfg,
		Log:        log,
		TM:         tm,
		UserSvc:    userSvc,
		LedgerSvc:  ledgerSvc,
		MintSvc:    services.NewMintService(ledgerSvc, verifier, audit, log),
		SessionSvc: services.NewSessionService(ledgerSvc, repos.Sessions, cfg.Session.Cost, audit, log),
		PaymentSvc: services.NewPaymentService(ledgerSvc, repos.Users, cfg.Webhook.Secret, audit, log),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("port", cfg.HTTPPort),
			zap.String("env", cfg.Env),
			zap.String("storage", cfg.Storage),
			zap.Int("chains", len(chains)),
			zap.String("scan_mode", cfg.Chain.ScanMode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type repositories = postgres.Repositories

// openStorage picks the backing store. memory is for local runs only.
func openStorage(ctx context.Context, cfg config.Config, log *zap.Logger) (repositories, func(), error) {
	if cfg.Storage == "memory" {
		if cfg.IsProd() {
			return repositories{}, nil, errors.New("memory storage is not allowed in prod")
		}
		log.Warn("using in-memory storage, data is lost on restart")
		m := memory.New().Repositories()
		return repositories{Users: m.Users, Ledger: m.Ledger, Sessions: m.Sessions, AuditLogs: m.AuditLogs}, func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return repositories{}, nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.Migrate {
		if err := db.RunMigrations(ctx, pool, log); err != nil {
			pool.Close()
			return repositories{}, nil, fmt.Errorf("migrations: %w", err)
		}
	}
	return postgres.NewRepositories(pool), pool.Close, nil
}
