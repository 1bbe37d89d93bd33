// Package app wires configuration, logging, telemetry, key material, the
// license service, and the HTTP server into one runnable application.
package app

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"licenser/internal/config"
	"licenser/internal/infrastructure"
	"licenser/internal/security"
	"licenser/internal/services"
	transport "licenser/internal/transport/http"
)

// Application is the assembled service container.
type Application struct {
	Config        *config.Config
	Router        chi.Router
	Server        *http.Server
	Service       services.LicenseService
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
}

// NewApplication loads configuration from path (optional) and builds the
// full dependency graph.
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("service", infrastructure.ServiceName),
		slog.String("version", infrastructure.ServiceVersion),
	)

	otelProviders, err := infrastructure.InitializeOTel(context.Background(), infrastructure.DefaultOTelConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	priv, pub, err := loadKeys(cfg.Signing, logger)
	if err != nil {
		return nil, err
	}

	var metrics *services.ServiceMetrics
	if otelProviders.Meter != nil {
		metrics, err = services.NewServiceMetrics(otelProviders.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create service metrics: %w", err)
		}
	}

	service := services.NewLicenseService(security.NewECDSASigner(), priv, pub, logger, metrics)
	router := transport.NewRouter(cfg, service, logger, otelProviders)

	return &Application{
		Config:  cfg,
		Router:  router,
		Service: service,
		Logger:  logger,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		OTelProviders: otelProviders,
	}, nil
}

// loadKeys reads the configured key files. The public key is required. A
// missing private key file downgrades the deployment to verify-only.
func loadKeys(cfg config.SigningConfig, logger *slog.Logger) (crypto.PrivateKey, crypto.PublicKey, error) {
	pubPEM, err := os.ReadFile(cfg.PublicKeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read public key %s: %w", cfg.PublicKeyFile, err)
	}
	pub, err := security.DecodePublicKey(pubPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode public key %s: %w", cfg.PublicKeyFile, err)
	}

	privPEM, err := os.ReadFile(cfg.PrivateKeyFile)
	if os.IsNotExist(err) {
		logger.Warn("private key file not found, issuing disabled",
			slog.String("path", cfg.PrivateKeyFile),
		)
		return nil, pub, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read private key %s: %w", cfg.PrivateKeyFile, err)
	}
	priv, err := security.DecodePrivateKey(privPEM, cfg.Passphrase)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode private key %s: %w", cfg.PrivateKeyFile, err)
	}
	return priv, pub, nil
}

// Run starts the HTTP server and blocks until a shutdown signal arrives or
// the server fails.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()

		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		if a.OTelProviders != nil {
			if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
				a.Logger.Warn("otel shutdown", slog.String("error", err.Error()))
			}
		}
		infrastructure.CloseLogFile()
		return nil
	})

	return g.Wait()
}
