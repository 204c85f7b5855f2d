package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/metrics"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/service"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/session"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store/memory"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store/sqlite"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/validation"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/config"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/db"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/grpcapi"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/httpapi"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/logging"
)

func main() {
	var (
		envFile   string
		operators string
		backend   string
	)
	fs := pflag.NewFlagSet("checkpoint-server", pflag.ContinueOnError)
	fs.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading CHECKPOINT_* variables")
	fs.StringVar(&operators, "operators", "", "operators YAML file (overrides CHECKPOINT_OPERATORS_FILE)")
	fs.StringVar(&backend, "store", "", "memory or sqlite (overrides CHECKPOINT_STORE)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	// best-effort: a missing .env falls back to the real environment
	_ = godotenv.Load(envFile)

	cfg := config.FromEnv()
	if operators != "" {
		cfg.OperatorsFile = operators
	}
	if b := strings.ToLower(backend); b == "memory" || b == "sqlite" {
		cfg.Store = b
	}

	logger, err := logging.Init(logging.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("checkpoint-server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	dir, err := session.LoadOperatorsFile(cfg.OperatorsFile)
	if err != nil {
		return err
	}
	logger.Info("operators loaded", zap.Int("count", dir.Len()), zap.String("file", cfg.OperatorsFile))
	auth := session.NewAuthority(dir, logger.Named("session"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	dispatcher := service.NewDispatcher(logger.Named("alerts"), 0, service.LogNotifier{Logger: logger.Named("notify")})
	defer dispatcher.Close()

	engine := service.NewEngine(st, service.EngineOptions{
		Policy:        validation.Policy{VisitorStayWarning: cfg.VisitorStayWarning},
		LookupTimeout: cfg.LookupTimeout,
		Logger:        logger.Named("engine"),
	})
	cp := service.New(service.Config{
		Store:     st,
		Engine:    engine,
		Authority: auth,
		Alerts:    dispatcher,
		Metrics:   m,
		Logger:    logger.Named("checkpoint"),
	})

	monitor := service.NewOverstayMonitor(st, service.OverstayConfig{Interval: cfg.OverstayInterval}, logger.Named("overstay"))
	monitor.Start(ctx)
	defer monitor.Stop()

	httpSrv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger.Named("http"),
		Addr:       cfg.HTTPAddr,
		Checkpoint: cp,
		Session:    auth,
		Gatherer:   reg,
	})
	grpcSrv := grpcapi.NewServer(grpcapi.Dependencies{
		Logger:     logger.Named("grpc"),
		Addr:       cfg.GRPCAddr,
		Checkpoint: cp,
		Session:    auth,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := grpcSrv.Start(); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		grpcSrv.Stop(shutdownCtx)
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

// openStore selects the backend. In dev the badge pool and a starter
// company are seeded so the terminal is usable immediately.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, func(), error) {
	switch cfg.Store {
	case "sqlite":
		conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
		if err != nil {
			return nil, nil, err
		}
		if cfg.Env == "dev" {
			if err := db.SeedDev(ctx, conn, db.SeedDevOptions{BadgeCodes: cfg.DevBadges}); err != nil {
				_ = conn.Close()
				return nil, nil, err
			}
		}
		writer := db.NewWorker(conn)
		logger.Info("store ready", zap.String("backend", "sqlite"), zap.String("path", cfg.DBPath))
		return sqlite.New(conn, writer), func() {
			writer.Close()
			_ = conn.Close()
		}, nil

	default:
		st := memory.New()
		if cfg.Env == "dev" {
			if err := seedMemory(ctx, st, cfg.DevBadges); err != nil {
				return nil, nil, err
			}
		}
		logger.Info("store ready", zap.String("backend", "memory"))
		return st, func() {}, nil
	}
}

func seedMemory(ctx context.Context, st *memory.Store, codes []string) error {
	if err := st.SaveCompany(ctx, types.Company{
		ID:      "ACME",
		Name:    "ACME Maintenance",
		Active:  true,
		MaxStay: 10 * time.Hour,
	}); err != nil {
		return err
	}
	if len(codes) == 0 {
		codes = []string{"B1", "B2", "B3", "B4", "B5", "B6", "B7", "B8"}
	}
	now := time.Now().UTC()
	return st.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, code := range codes {
			code = service.NormalizeBadgeCode(code)
			if code == "" {
				continue
			}
			if err := tx.SaveBadge(ctx, types.Badge{Code: code, State: types.BadgeAvailable, UpdatedAt: now}); err != nil {
				return err
			}
		}
		return nil
	})
}
