package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/newscardbot/fb-kpi-tracker/activity"
	"github.com/newscardbot/fb-kpi-tracker/api"
	"github.com/newscardbot/fb-kpi-tracker/cache"
	"github.com/newscardbot/fb-kpi-tracker/classify"
	"github.com/newscardbot/fb-kpi-tracker/kpi"
	"github.com/newscardbot/fb-kpi-tracker/notify"
	"github.com/newscardbot/fb-kpi-tracker/scheduler"
	"github.com/newscardbot/fb-kpi-tracker/utils"
)

func main() {
	envPath := flag.String("env", ".env", "Path to .env file")
	logLevel := flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	flag.Parse()

	log := setupLogger(*logLevel)
	log.Info("Starting FB KPI Tracker")

	config, err := utils.LoadConfig(*envPath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"page_id":     config.Facebook.PageID,
		"server_port": config.Server.Port,
		"timezone":    config.App.Timezone,
	}).Info("Configuration loaded")

	store, err := cache.NewStore(config.Database.CachePath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open metrics store")
	}
	defer store.Close()

	ledger, err := activity.NewLedger(config.Database.ActivityPath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open activity ledger")
	}
	defer ledger.Close()

	fetcher := api.NewFacebookAPI(
		config.Facebook.PageID,
		config.Facebook.PageToken,
		config.Facebook.MinIntervalMs,
		store,
		log,
	)

	builder := kpi.NewBuilder(
		classify.LoadTopics(config.Classify.TopicsPath, log),
		classify.LoadWords(config.Classify.SentimentPath, log),
		log,
	)

	notifier := notify.NewTelegram(config.Telegram.BotToken, config.Telegram.ChatID, log)

	sched := scheduler.New(fetcher, ledger, store, notifier, builder, config.Location(log), log)
	if err := sched.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start report scheduler")
	}
	defer sched.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go startEchoServer(ctx, config.Server.Port, config.Server.RateLimit, sched, log)

	waitForShutdown(cancel, log)
}

// setupLogger sets up the logger with the specified log level
func setupLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// startEchoServer starts the Echo HTTP API server
func startEchoServer(ctx context.Context, port int, rateLimit float64, sched *scheduler.Scheduler, log *logrus.Logger) {
	e := echo.New()
	e.HideBanner = true

	// middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	rateLimiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(rateLimit),
				Burst:     int(rateLimit) + 1,
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded, please try again later",
			})
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded, please try again later",
			})
		},
	}
	e.Use(middleware.RateLimiterWithConfig(rateLimiterConfig))

	// latest completed reports for the dashboard
	e.GET("/api/analytics/weekly", func(c echo.Context) error {
		detail, ok := sched.LatestWeekly()
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "No weekly report generated yet",
			})
		}
		return c.JSON(http.StatusOK, detail)
	})

	e.GET("/api/analytics/monthly", func(c echo.Context) error {
		detail, ok := sched.LatestMonthly()
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "No monthly report generated yet",
			})
		}
		return c.JSON(http.StatusOK, detail)
	})

	// manual triggers; these run the full pipeline including delivery
	e.GET("/api/analytics/test-weekly", func(c echo.Context) error {
		detail, err := sched.RunWeekly(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, detail)
	})

	e.GET("/api/analytics/test-monthly", func(c echo.Context) error {
		detail, err := sched.RunMonthly(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, detail)
	})

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	// start the server!
	go func() {
		serverAddr := fmt.Sprintf(":%d", port)
		log.WithField("port", port).Info("Starting API server")
		if err := e.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("API server failed")
		}
	}()

	// wait for context cancellation to shut down server
	<-ctx.Done()
	log.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("API server shutdown failed")
	}
}

// waitForShutdown waits for a shutdown signal
func waitForShutdown(cancel context.CancelFunc, log *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("Shutdown signal received")

	cancel()

	time.Sleep(1 * time.Second)
	log.Info("FB KPI Tracker stopped")
}
