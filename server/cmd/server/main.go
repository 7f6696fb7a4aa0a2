package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/jiraquery/jiraquery/server/internal/api"
	"github.com/jiraquery/jiraquery/server/internal/auth"
	"github.com/jiraquery/jiraquery/server/internal/config"
	"github.com/jiraquery/jiraquery/server/internal/health"
	"github.com/jiraquery/jiraquery/server/internal/jira"
	"github.com/jiraquery/jiraquery/server/internal/metrics"
	"github.com/jiraquery/jiraquery/server/internal/query"
	"github.com/jiraquery/jiraquery/server/internal/refdata"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env-file", ".env", "dotenv file with secrets; ignored when missing")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	level := new(slog.LevelVar)
	level.Set(cfg.Log.SlogLevel())
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("jiraquery-server starting",
		"config", *configPath,
		"jira", cfg.Jira.BaseURL,
		"jira_auth", cfg.Jira.Auth.Mode,
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	client := jira.New(cfg.Jira, jira.WithMetrics(m))
	cache := refdata.New(client, cfg.Refdata.TTL, refdata.WithMetrics(m))
	svc := query.New(client, cache, cfg.Mapping, query.WithMetrics(m))

	// Reference data refreshes in the background on the configured schedule.
	go func() {
		if err := cache.Run(ctx, cfg.Refdata.Refresh); err != nil {
			slog.Error("refdata scheduler stopped", "err", err)
		}
	}()

	// Mapping and log level are hot-reloadable; listeners and Jira settings
	// need a restart.
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			svc.SetMapping(next.Mapping)
			level.Set(next.Log.SlogLevel())
			slog.Info("mapping reloaded",
				"cycle_time_statuses", next.Mapping.CycleTimeStatuses,
				"skip_malformed", next.Mapping.SkipMalformed,
			)
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// gRPC health service with optional API key authentication.
	hs := health.New(cache)
	go hs.Run(ctx, 5*time.Second)

	grpcSrv := grpc.NewServer(
		grpc.UnaryInterceptor(auth.APIKeyInterceptor(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key())),
		grpc.StreamInterceptor(auth.APIKeyStreamInterceptor(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key())),
	)
	hs.Register(grpcSrv)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", cfg.Server.GRPCPort, "err", err)
		os.Exit(1)
	}
	go func() {
		slog.Info("gRPC health listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	// REST API and /metrics on HTTPPort.
	var handler http.Handler = api.New(api.Deps{
		Query:   svc,
		Refdata: cache,
		Metrics: m,
		CertCheck: func(ctx context.Context) *jira.CertStatus {
			return jira.CheckCert(ctx, client.BaseURL(), cfg.Jira.TLS.InsecureSkipVerify)
		},
		CacheMaxAge: cfg.Server.CacheMaxAge,
	})
	if cfg.Jira.Auth.Mode == "propagate" {
		handler = auth.PropagateCredentials(handler)
	}
	handler = auth.RequireAPIKey(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key(), handler)
	handler = api.AccessLog(m, handler)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("jiraquery-server shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	grpcSrv.GracefulStop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
