package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/authflow/internal/config"
	"github.com/iliyamo/authflow/internal/database"
	"github.com/iliyamo/authflow/internal/handler"
	"github.com/iliyamo/authflow/internal/logging"
	"github.com/iliyamo/authflow/internal/mail"
	"github.com/iliyamo/authflow/internal/middleware"
	"github.com/iliyamo/authflow/internal/model"
	"github.com/iliyamo/authflow/internal/queue"
	"github.com/iliyamo/authflow/internal/repository"
	"github.com/iliyamo/authflow/internal/router"
	"github.com/iliyamo/authflow/internal/service"
)

func main() {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db     *sql.DB
		users  service.UserStore
		tokens service.TokenStore
	)
	switch cfg.StoreDriver {
	case "memory":
		users, tokens = repository.NewMemoryUserRepo(), repository.NewMemoryTokenRepo()
	case "mysql":
		db, err = database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		users, tokens = repository.NewUserRepo(db), repository.NewTokenRepo(db)
	default:
		log.Fatalf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	mailer := mail.NewMailer(cfg.Mail)
	var publisher service.VerificationPublisher
	switch cfg.QueueDriver {
	case "direct":
		publisher = queue.NewDirect(mailer, logger)
	case "rabbitmq":
		publisher = queue.NewPublisher(cfg.AMQPURL)
		consumer := queue.NewConsumer(cfg.AMQPURL, mailer, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(ctx, "verification worker stopped", "error", err)
			}
		}()
	default:
		log.Fatalf("unknown QUEUE_DRIVER %q", cfg.QueueDriver)
	}

	issuer := service.NewTokenIssuer(tokens, users)
	verifier := service.NewVerificationService(users, publisher, logger, cfg.AppKey, cfg.AppURL, cfg.VerifyLinkTTL)
	auth := service.NewAuthService(users, issuer, verifier, logger, cfg.BcryptCost, cfg.TokenTTL)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}
	throttle := middleware.NewThrottle(config.LoadRateLimitConfig(), rdb, logger).Middleware()
	bearer := middleware.Bearer(issuer,
		middleware.RequireToken,
		middleware.NotExpired(issuer.Now),
		middleware.RequireAbility(model.AbilityAll),
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency_ms", v.Latency.Milliseconds(), "request_id", v.RequestID}
			if v.Error != nil {
				logger.Error(c.Request().Context(), "request", append(args, "error", v.Error)...)
				return nil
			}
			logger.Info(c.Request().Context(), "request", args...)
			return nil
		},
	}))
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, handler.Health(db))
	router.RegisterAuth(e,
		handler.NewAuthHandler(auth, logger),
		handler.NewVerificationHandler(verifier, logger),
		bearer, throttle,
	)

	addr := ":" + cfg.Port
	go func() {
		logger.Info(ctx, "listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver, "queue", cfg.QueueDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "shutdown", "error", err)
	}
}
