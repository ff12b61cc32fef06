package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AndreyBrytkov/cowdfunding/config"
	"github.com/AndreyBrytkov/cowdfunding/core"
	"github.com/AndreyBrytkov/cowdfunding/core/events"
	"github.com/AndreyBrytkov/cowdfunding/core/genesis"
	"github.com/AndreyBrytkov/cowdfunding/observability/logging"
	telemetry "github.com/AndreyBrytkov/cowdfunding/observability/otel"
	"github.com/AndreyBrytkov/cowdfunding/rpc"
	"github.com/AndreyBrytkov/cowdfunding/storage"
)

const (
	genesisPathEnv = "COWDFUND_GENESIS"
	shutdownGrace  = 10 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides COWDFUND_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.SetupWithOptions("cowdfundd", cfg.Log.Env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	os.Exit(finish(run(cfg, *genesisFlag, logger), logger, logCloser))
}

// finish reports the outcome of run and closes the log sink. os.Exit skips
// deferred calls, so the sink is closed here before the exit code is returned.
func finish(err error, logger *slog.Logger, sink io.Closer) int {
	code := 0
	if err != nil {
		logger.Error("cowdfundd exited with error", slog.Any("error", err))
		code = 1
	}
	if sink != nil {
		if cerr := sink.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "close log sink: %v\n", cerr)
		}
	}
	return code
}

func run(cfg *config.Config, genesisFlag string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Log.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	ledger, err := core.New(db, core.Config{ChainID: cfg.ChainID, Rent: cfg.Rent.Schedule()}, logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	ledger.SetCommitEvery(cfg.CommitEvery)
	ledger.SetEmitter(events.NewLogEmitter(logger))

	genesisPath, err := resolveGenesisPath(genesisFlag, cfg.GenesisFile, ledger.Height() == 0, os.LookupEnv)
	if err != nil {
		return err
	}
	if genesisPath != "" {
		spec, err := genesis.LoadGenesisSpec(genesisPath)
		if err != nil {
			return err
		}
		applied, err := ledger.InitGenesis(spec)
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		if !applied {
			logger.Info("existing state found, genesis file ignored", slog.String("path", genesisPath))
		}
	}

	handler, err := rpc.New(rpc.Config{
		Ledger: ledger,
		Logger: logger,
		RateLimit: rpc.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,

			TrustForwardedHeaders: cfg.RateLimit.TrustForwardedHeaders,
		},
		Metrics: true,
	})
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           otelhttp.NewHandler(handler, "cowdfundd"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("serving RPC",
			slog.String("addr", cfg.RPCAddress),
			slog.String("network", cfg.NetworkName),
			slog.Uint64("chain_id", cfg.ChainID),
			slog.Uint64("height", ledger.Height()),
			slog.String("root", ledger.Root().Hex()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown incomplete", slog.Any("error", err))
	}
	root, err := ledger.Commit()
	if err != nil {
		return fmt.Errorf("final commit: %w", err)
	}
	logger.Info("state committed", slog.String("root", root.Hex()), slog.Uint64("height", ledger.Height()))
	return nil
}

type envLookupFunc func(string) (string, bool)

// resolveGenesisPath picks the genesis file from the flag, the environment or
// the config, in that order. A path is required only when the ledger holds no
// state yet.
func resolveGenesisPath(cliPath, cfgPath string, required bool, lookup envLookupFunc) (string, error) {
	if trimmed := strings.TrimSpace(cliPath); trimmed != "" {
		return trimmed, nil
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, nil
			}
		}
	}
	if trimmed := strings.TrimSpace(cfgPath); trimmed != "" {
		return trimmed, nil
	}
	if required {
		return "", fmt.Errorf("ledger is empty and no genesis file was provided; supply one via -genesis, %s, or config GenesisFile", genesisPathEnv)
	}
	return "", nil
}
