package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/milpatel11/sk-ui-sub001/internal/app"
	"github.com/milpatel11/sk-ui-sub001/internal/auth"
	"github.com/milpatel11/sk-ui-sub001/internal/config"
	"github.com/milpatel11/sk-ui-sub001/internal/httpapi"
	"github.com/milpatel11/sk-ui-sub001/internal/obs"
	"github.com/milpatel11/sk-ui-sub001/internal/stream"
	"github.com/milpatel11/sk-ui-sub001/internal/tenancy"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := run(); err != nil {
		obs.Logger().Fatal("portal-api stopped", zap.Error(err))
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := obs.NewLogger(cfg.Env, cfg.LogLevel, "portal-api")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	obs.SetLogger(logger)
	for _, w := range cfg.Warnings() {
		logger.Warn("config", zap.String("warning", w))
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	tokens, err := auth.NewTokenizer(cfg.Auth.Secret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return err
	}

	probe := httpapi.ReadyProbe{DB: deps.DB, Checks: []httpapi.Pinger{deps.Locks}}
	if deps.DB == nil {
		probe.Checks = append(probe.Checks, deps.Source)
	}

	hub := stream.New()
	api := httpapi.New(probe, version, tokens, deps.Source, deps.Locks,
		httpapi.WithGuard(tenancy.NewGuard(tenancy.WithLobby(cfg.LobbyRoutes))),
		httpapi.WithStream(hub),
		httpapi.WithRateLimit(cfg.RateLimitBurst, cfg.RateLimitRPS),
		httpapi.WithMaxBodyBytes(cfg.MaxBodyBytes))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := httpapi.NewGRPCServer(probe, version)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		grpcSrv.Watch(gctx, cfg.PollInterval)
		return nil
	})
	g.Go(func() error {
		return hub.Run(gctx, deps.Source, cfg.PollInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcSrv.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("stopped")
	return nil
}
