// Command marketsim runs synthetic market simulations. In the default
// mode it reads a configuration document from a file, runs the
// configured batch, and prints per-run results as JSON. With -serve it
// exposes the same functionality over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jialuechen/genmarket/internal/config"
	"github.com/jialuechen/genmarket/internal/domain"
	"github.com/jialuechen/genmarket/internal/handler"
	"github.com/jialuechen/genmarket/internal/service"
	"github.com/jialuechen/genmarket/internal/sim"
	"github.com/jialuechen/genmarket/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to simulation configuration document (YAML or JSON)")
		serveAddr  = flag.String("serve", "", "Serve HTTP on this address instead of running a single batch")
		outPath    = flag.String("out", "", "Path to sqlite result archive (optional)")
		runs       = flag.Int("runs", 0, "Override the number of runs in the document")
		workers    = flag.Int("workers", 0, "Override the worker count in the document")
		verbose    = flag.Bool("v", false, "Enable debug logging")
	)
	flag.Parse()

	zcfg := zap.NewProductionConfig()
	if *verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var archive *store.ResultStore
	if *outPath != "" {
		archive, err = store.Open(*outPath)
		if err != nil {
			logger.Error("failed to open result archive", zap.String("path", *outPath), zap.Error(err))
			os.Exit(1)
		}
		defer archive.Close()
	}

	if *serveAddr != "" {
		serve(*serveAddr, logger, archive)
		return
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: marketsim -config sim.yaml [-runs N] [-workers N] [-out results.db]")
		fmt.Fprintln(os.Stderr, "       marketsim -serve :8080 [-out results.db]")
		os.Exit(2)
	}

	if err := runBatch(*configPath, *runs, *workers, logger, archive); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			logger.Error("invalid configuration", zap.Error(ve))
		} else {
			logger.Error("batch failed", zap.Error(err))
		}
		os.Exit(1)
	}
}

// runBatch executes one batch from a config file and prints the results
// as JSON on stdout.
func runBatch(path string, runsOverride, workersOverride int, logger *zap.Logger, archive *store.ResultStore) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	doc, err := config.Parse(raw)
	if err != nil {
		return err
	}
	if runsOverride > 0 {
		doc.Runs = runsOverride
		doc.Seeds = nil
	}
	if workersOverride > 0 {
		doc.Workers = workersOverride
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	batch := &sim.Batch{Logger: logger, Workers: doc.Workers}
	results := batch.Run(ctx, doc)

	if archive != nil {
		batchID := fmt.Sprintf("cli-%d", time.Now().UnixNano())
		if err := archive.SaveBatch(ctx, batchID, raw, results); err != nil {
			logger.Warn("failed to archive batch", zap.Error(err))
		} else {
			logger.Info("batch archived", zap.String("batch_id", batchID))
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// serve runs the HTTP surface until SIGINT/SIGTERM, then shuts down
// gracefully.
func serve(addr string, logger *zap.Logger, archive *store.ResultStore) {
	svc := service.NewSimulationService(logger, archive)
	router := handler.NewRouter(svc, logger)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // batches run synchronously
		IdleTimeout:  time.Minute,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}
