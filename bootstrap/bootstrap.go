// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/arvend/tokengate/adapters/auth"
	"github.com/arvend/tokengate/adapters/clock"
	"github.com/arvend/tokengate/adapters/currencyapi"
	tghttp "github.com/arvend/tokengate/adapters/http"
	"github.com/arvend/tokengate/adapters/memory"
	"github.com/arvend/tokengate/adapters/metrics"
	"github.com/arvend/tokengate/adapters/payment"
	"github.com/arvend/tokengate/adapters/pricing"
	"github.com/arvend/tokengate/adapters/sqlite"
	"github.com/arvend/tokengate/app"
	"github.com/arvend/tokengate/config"
	"github.com/arvend/tokengate/ports"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	// Services
	Access  *app.AccessService
	Guard   *app.Guard
	Costs   *app.CostService
	Display *app.DisplayService

	provider ports.BillingProvider
}

// Options configures application startup.
type Options struct {
	// ConfigPath is the YAML config file. When the file is missing and
	// environment config is present, env wins.
	ConfigPath string
	// WatchConfig enables hot reload via fsnotify and SIGHUP.
	WatchConfig bool
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	logger := setupLogger()

	holder, err := config.NewHolder(opts.ConfigPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := holder.Get()
	logger = applyLogConfig(logger, cfg.Logging)

	logger.Info().
		Str("billing_mode", cfg.Billing.Mode).
		Str("database", cfg.Database.Driver).
		Msg("initializing tokengate")

	a := &App{
		Logger: logger,
		Config: holder,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	store, err := a.initStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	a.provider, err = payment.NewProvider(cfg.Billing)
	if err != nil {
		return nil, fmt.Errorf("init billing provider: %w", err)
	}

	clk := clock.Real{}

	a.Access = app.NewAccessService(a.provider, clk, logger, a.Metrics, app.AccessServiceConfig{
		Timeout:          cfg.Billing.Timeout,
		WhitelistEmails:  cfg.Billing.WhitelistEmails,
		WhitelistUserIDs: cfg.Billing.WhitelistUserIDs,
	})
	a.Guard = app.NewGuard(a.Access, clk, logger, app.GuardConfig{
		MinVisibleDuration: cfg.Display.MinLoadingDuration,
	})

	prices := pricing.NewClient(pricing.Config{
		BaseURL: cfg.Pricing.BaseURL,
		APIKey:  cfg.Pricing.APIKey,
		Timeout: cfg.Pricing.Timeout,
	})
	a.Costs = app.NewCostService(prices, store, clk, logger, a.Metrics, app.CostServiceConfig{
		CacheTTL: cfg.Pricing.CacheTTL,
	})

	fx := currencyapi.NewClient(currencyapi.Config{
		BaseURL: cfg.Currency.BaseURL,
		Timeout: cfg.Currency.Timeout,
	})
	a.Display = app.NewDisplayService(a.Costs, fx, clk, logger, a.Metrics, app.DisplayServiceConfig{
		MarginMultiplier: cfg.Display.MarginMultiplier,
		CompareModel:     cfg.Display.CompareModel,
		Secondary:        cfg.Currency.Secondary,
		CacheTTL:         cfg.Currency.CacheTTL,
		FailureTTL:       cfg.Currency.FailureTTL,
	})

	a.initHTTPServer(cfg)
	a.registerReload()

	if opts.WatchConfig {
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch unavailable")
		}
		holder.WatchSignals()
	}

	return a, nil
}

func (a *App) initStore(cfg *config.Config) (ports.SnapshotStore, error) {
	if cfg.Database.Driver == "memory" {
		a.Logger.Info().Msg("using in-memory snapshot store")
		return memory.NewSnapshotStore(), nil
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.DB = db
	return sqlite.NewSnapshotStore(db), nil
}

func (a *App) initHTTPServer(cfg *config.Config) {
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, 24*time.Hour)
	handler := tghttp.NewHandler(a.Guard, a.Costs, a.Display, a.Logger)

	checks := map[string]tghttp.HealthChecker{
		// Served from the rate cache most of the time, so readiness
		// polling does not hammer the pricing upstream.
		"pricing": tghttp.HealthCheckerFunc(func(ctx context.Context) error {
			_, err := a.Costs.Rates(ctx)
			return err
		}),
	}
	if cfg.Billing.Mode != "none" {
		// Probe with an address that cannot exist; ErrNoCustomer means
		// the billing API answered.
		checks["billing"] = tghttp.HealthCheckerFunc(func(ctx context.Context) error {
			_, err := a.provider.FindCustomerByEmail(ctx, "probe@tokengate.invalid")
			if errors.Is(err, ports.ErrNoCustomer) {
				return nil
			}
			return err
		})
	}
	if a.DB != nil {
		checks["database"] = tghttp.HealthCheckerFunc(func(ctx context.Context) error {
			return a.DB.PingContext(ctx)
		})
	}

	routerCfg := tghttp.RouterConfig{
		Metrics:       a.Metrics,
		Authenticator: tokens,
		Health:        tghttp.NewHealthHandler(checks),
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = promhttp.Handler()
	}

	router := tghttp.NewRouter(handler, a.Logger, routerCfg)

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// registerReload pushes hot-reloadable config into the running
// services when the file changes or SIGHUP arrives.
func (a *App) registerReload() {
	a.Config.OnChange(func(cfg *config.Config) {
		a.Access.SetWhitelist(cfg.Billing.WhitelistEmails, cfg.Billing.WhitelistUserIDs)
		a.Display.SetDisplay(cfg.Display.MarginMultiplier, cfg.Display.CompareModel, cfg.Currency.Secondary)

		if a.Metrics != nil {
			a.Metrics.ConfigReloads.Inc()
			a.Metrics.ConfigLastReload.SetToCurrentTime()
		}
		a.Logger.Info().Msg("runtime config applied")
	})
	a.Config.OnReloadError(func(err error) {
		if a.Metrics != nil {
			a.Metrics.ConfigReloadErrors.Inc()
		}
	})
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.Config != nil {
		a.Config.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger() zerolog.Logger {
	levelStr := os.Getenv("TOKENGATE_LOG_LEVEL")
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("TOKENGATE_LOG_FORMAT") == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func applyLogConfig(logger zerolog.Logger, cfg config.LoggingConfig) zerolog.Logger {
	if cfg.Level != "" {
		if level, err := zerolog.ParseLevel(cfg.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}
	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return logger
}
