package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/Amund211/askbox/internal/adapters/askprovider"
	"github.com/Amund211/askbox/internal/adapters/cache"
	"github.com/Amund211/askbox/internal/adapters/clientpool"
	"github.com/Amund211/askbox/internal/adapters/statsstore"
	"github.com/Amund211/askbox/internal/app"
	"github.com/Amund211/askbox/internal/config"
	"github.com/Amund211/askbox/internal/domain"
	"github.com/Amund211/askbox/internal/logging"
	"github.com/Amund211/askbox/internal/ports"
	"github.com/Amund211/askbox/internal/ratelimiting"
	"github.com/Amund211/askbox/internal/reporting"
	"github.com/Amund211/askbox/internal/telemetry"
)

const serviceName = "askbox"

// Time allowed for in-flight requests and background asks on shutdown
const shutdownTimeout = 20 * time.Second

func main() {
	instanceID := uuid.New().String()
	baseLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		baseLogger.Error(msg, args...)
		os.Exit(1)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}

	logger := slog.New(
		logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil), config.GoogleCloudProject()),
	).With("instanceID", instanceID)
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.AddToContext(ctx, logger)

	if config.OTelEnabled() {
		shutdownTelemetry, err := telemetry.SetupOTelSDK(ctx, serviceName, config.EnvironmentName())
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	answers, err := cache.NewResultCache[domain.Answer](
		config.CacheLimit(),
		cache.WithEvictionHook(app.BuildEvictionHook(logger.With("component", "resultcache"))),
	)
	if err != nil {
		fail("Failed to initialize result cache", "error", err.Error())
	}

	upstreamLimiter := ratelimiting.NewWindowLimiter(
		config.UpstreamRequestsPerMinute(),
		time.Minute,
		time.Now,
		time.After,
	)

	pool, err := clientpool.New(
		config.MaxClients(),
		askprovider.NewFactory(config, askprovider.NewHTTPClient, upstreamLimiter),
	)
	if err != nil {
		fail("Failed to initialize client pool", "error", err.Error())
	}
	logger.Info("Initialized client pool", "maxClients", config.MaxClients())

	var stats app.StatsRecorder = statsstore.NoopStatsStore{}
	if config.RedisAddr() != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr(),
			Password: config.RedisPassword(),
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			fail("Failed to connect to redis", "error", err.Error())
		}

		stats = statsstore.NewRedisStatsStore(rdb, statsstore.WithPrefix(fmt.Sprintf("askbox:%s:stats", config.EnvironmentName())))
		logger.Info("Initialized redis stats store")
	}

	allowedSuffixes := slices.Clone(config.AllowedOrigins())
	if config.IsDevelopment() {
		allowedSuffixes = append(allowedSuffixes, "localhost")
	}
	allowedOrigins, err := ports.NewDomainSuffixes(allowedSuffixes...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	runner := app.NewRunner()

	askConfig := domain.AskConfig{
		Model:        config.Model(),
		Instructions: domain.DefaultInstructions,
		Verbosity:    domain.VerbosityLow,
	}

	submitQuestion := app.BuildSubmitQuestion(pool, answers, runner, stats, askConfig, config.AskTimeout(), time.Now)
	pollAnswer := app.BuildPollAnswer(answers, time.After)

	mux := http.NewServeMux()

	mux.HandleFunc(
		"OPTIONS /v1/ask",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"POST /v1/ask",
		ports.MakeSubmitHandler(
			submitQuestion,
			allowedOrigins,
			logger.With("port", "submit"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/ask/{token}",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/ask/{token}",
		ports.MakePollHandler(
			pollAnswer,
			config.MaxPollWait(),
			allowedOrigins,
			logger.With("port", "poll"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"GET /healthz",
		ports.MakeHealthHandler(pool.Stats, answers.Len),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port()),
		Handler:           otelhttp.NewHandler(mux, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
		// Long polls hold the response for up to the max wait
		WriteTimeout: config.MaxPollWait() + 10*time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()
	logger.Info("Init complete", "port", config.Port())

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			fail("Server error", "error", err.Error())
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down server", "error", err.Error())
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Error("Background asks did not finish", "error", err.Error())
	}
	logger.Info("Server shutdown")
}
