package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"stonklytics/internal/config"
	"stonklytics/internal/health"
	"stonklytics/internal/httpapi"
	"stonklytics/internal/market"
	"stonklytics/internal/store"
	"stonklytics/internal/util"
)

const shutdownTimeout = 5 * time.Second

func main() {
	_ = godotenv.Load(".env")

	cfgPath := "config/stonklytics.yaml"
	if p := os.Getenv("STONK_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ws, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening watchlist store: %w", err)
	}
	defer ws.Close()

	provider, err := newProvider(cfg, logger)
	if err != nil {
		return err
	}

	cache, closeCache, err := newCache(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	opts := market.ServiceOptions{
		Cache:       cache,
		SnapshotTTL: cfg.Cache.SnapshotTTL,
		SummaryTTL:  cfg.Cache.SummaryTTL,
		Logger:      logger,
	}
	if cfg.Storage.DataDir != "" {
		opts.Archive = store.NewArchive(cfg.Storage.DataDir)
	}
	ms := market.NewService(provider, opts)

	auth := httpapi.NewAuthenticator(cfg.Auth.Tokens)
	if auth.Open() {
		logger.Warn("no auth tokens configured; bearer tokens are accepted as user ids")
	}
	api := httpapi.NewServer(ws, ms, auth, logger)

	monitor := health.NewMonitor(health.DefaultInterval, logger)
	monitor.Add("watchlists", ws.Ping)
	monitor.Add("market", func(ctx context.Context) error {
		_, err := ms.Search(ctx, "A")
		return err
	})

	gs := grpc.NewServer()
	monitor.Register(gs)

	httpSrv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port)),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcAddr := net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.GRPCPort))
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", grpcAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", httpSrv.Addr, "provider", ms.ProviderName(), "storage", cfg.Storage.Driver)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc health listening", "addr", grpcAddr)
		return gs.Serve(lis)
	})
	g.Go(func() error {
		monitor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(sctx)
		gs.GracefulStop()
		return err
	})
	return g.Wait()
}

// newProvider uses Alpaca when credentials are configured and the bundled
// fixtures otherwise.
func newProvider(cfg *config.Config, logger *slog.Logger) (market.Provider, error) {
	if cfg.Alpaca.APIKey != "" && cfg.Alpaca.APISecret != "" {
		// The free data plan allows 200 requests per minute.
		return market.NewAlpacaProvider(cfg.Alpaca, util.NewBurstRateLimiter(200, 10), logger), nil
	}
	logger.Info("alpaca credentials not set, serving fixture data", "fixtures", cfg.Storage.FixturesPath)
	p, err := market.NewFixtureProvider(cfg.Storage.FixturesPath)
	if err != nil {
		return nil, fmt.Errorf("loading fixtures: %w", err)
	}
	return p, nil
}

func newCache(ctx context.Context, cfg config.Cache, logger *slog.Logger) (market.Cache, func(), error) {
	if cfg.RedisAddr == "" {
		return market.NewMemoryCache(), func() {}, nil
	}
	rc, err := market.NewRedisCache(ctx, cfg.RedisAddr, "stonklytics:")
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	logger.Info("using redis cache", "addr", cfg.RedisAddr)
	return rc, func() { rc.Close() }, nil
}
