package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/Brownie44l1/braintumor-api/internal/config"
	"github.com/Brownie44l1/braintumor-api/internal/handlers"
	"github.com/Brownie44l1/braintumor-api/internal/logger"
	"github.com/Brownie44l1/braintumor-api/internal/metrics"
	"github.com/Brownie44l1/braintumor-api/internal/model"
	"github.com/Brownie44l1/braintumor-api/internal/routes"
)

func main() {
	app := newApp(serve, classify)
	if err := app.Run(os.Args); err != nil {
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

// newApp declares the flags once on the app; subcommands read them
// through the context lineage.
func newApp(serveFn, classifyFn cli.ActionFunc) *cli.App {
	return &cli.App{
		Name:   "braintumor-api",
		Usage:  "classify brain MRI scans through a model server",
		Flags:  commonFlags(),
		Before: loadEnv,
		Action: serveFn,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serveFn,
			},
			{
				Name:      "classify",
				Usage:     "classify a local image file and print the result",
				ArgsUsage: "<image>",
				Action:    classifyFn,
			},
		},
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file to load"},
		&cli.StringFlag{Name: "addr", Usage: "listen address (ADDR)"},
		&cli.StringFlag{Name: "inference-url", Usage: "model server predict URL (INFERENCE_URL)"},
		&cli.StringFlag{Name: "backend", Usage: "inference backend: remote or onnx (INFERENCE_BACKEND)"},
		&cli.DurationFlag{Name: "timeout", Usage: "upstream timeout, 0 for none (INFERENCE_TIMEOUT)"},
		&cli.StringFlag{Name: "metadata", Usage: "model metadata JSON (METADATA_PATH)"},
		&cli.StringFlag{Name: "model", Usage: "ONNX model file (MODEL_PATH)"},
		&cli.StringFlag{Name: "onnx-lib", Usage: "onnxruntime shared library (ONNX_LIB_PATH)"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (LOG_LEVEL)"},
		&cli.StringFlag{Name: "log-format", Usage: "text or json (LOG_FORMAT)"},
	}
}

func loadEnv(c *cli.Context) error {
	return config.LoadDotEnv(c.String("env-file"))
}

// loadConfig reads the environment and lets explicit flags win.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Load()

	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("inference-url") {
		cfg.InferenceURL = c.String("inference-url")
	}
	if c.IsSet("backend") {
		cfg.InferenceBackend = c.String("backend")
	}
	if c.IsSet("timeout") {
		cfg.InferenceTimeout = c.Duration("timeout")
	}
	if c.IsSet("metadata") {
		cfg.MetadataPath = c.String("metadata")
	}
	if c.IsSet("model") {
		cfg.ModelPath = c.String("model")
	}
	if c.IsSet("onnx-lib") {
		cfg.ONNXLibPath = c.String("onnx-lib")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}

	return cfg, cfg.Validate()
}

// newPredictor builds the configured backend. The returned func releases it.
func newPredictor(cfg *config.Config, metadata model.Metadata) (model.Predictor, func(), error) {
	switch cfg.InferenceBackend {
	case config.BackendONNX:
		slog.Info("Loading model", "path", cfg.ModelPath)
		server, err := model.NewServer(cfg.ModelPath, cfg.ONNXLibPath, metadata)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize model server: %w", err)
		}
		return server, server.Close, nil
	default:
		client := model.NewRemoteClient(cfg.InferenceURL, model.WithTimeout(cfg.InferenceTimeout))
		return client, func() {}, nil
	}
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	metadata, err := model.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return err
	}

	predictor, closePredictor, err := newPredictor(cfg, metadata)
	if err != nil {
		return err
	}
	defer closePredictor()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if remote, ok := predictor.(*model.RemoteClient); ok {
		healthCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := remote.CheckHealth(healthCtx); err != nil {
			log.Warn("Model server not available", "error", err)
		}
		cancel()
	}

	// GIN_MODE may come from the .env file, which is read after gin's init.
	if mode := os.Getenv(gin.EnvGinMode); mode != "" {
		gin.SetMode(mode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	classifier := model.NewClassifier(predictor, metadata)
	handler := handlers.NewHandler(classifier, m, log, int64(cfg.MaxUploadMB)<<20)
	router := routes.SetupRoutes(handler, cfg.CORSOrigins, m, reg, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Server starting",
		"addr", cfg.Addr,
		"backend", cfg.InferenceBackend,
		"inference_url", cfg.InferenceURL,
		"classes", metadata.Classes,
	)
	log.Info("Endpoints",
		"ping", "GET /ping",
		"predict", "POST /braintumor/predict",
		"metrics", "GET /metrics",
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func classify(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: braintumor-api classify <image>", 2)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	metadata, err := model.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return err
	}

	predictor, closePredictor, err := newPredictor(cfg, metadata)
	if err != nil {
		return err
	}
	defer closePredictor()

	result, err := model.NewClassifier(predictor, metadata).Classify(c.Context, data)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
