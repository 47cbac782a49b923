package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/partsdesk/internal/datastore"
	"github.com/Skotchmaster/partsdesk/internal/drafts"
	"github.com/Skotchmaster/partsdesk/internal/events"
	"github.com/Skotchmaster/partsdesk/internal/httpserver"
	"github.com/Skotchmaster/partsdesk/internal/logging"
	"github.com/Skotchmaster/partsdesk/internal/repo"
	"github.com/Skotchmaster/partsdesk/internal/search"
	"github.com/Skotchmaster/partsdesk/internal/service"
	"github.com/Skotchmaster/partsdesk/pkg/config"
	pkgdb "github.com/Skotchmaster/partsdesk/pkg/db"
	"github.com/Skotchmaster/partsdesk/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/partsdesk/pkg/middleware/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustOneOf(cfg.DBDriver, "DB_DRIVER", pkgdb.DriverPostgres, pkgdb.DriverSQLite)

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.Fatalf("db open: %v", err)
	}
	if err := datastore.Migrate(ctx, db); err != nil {
		cancel()
		log.Fatalf("db migrate: %v", err)
	}

	rdb, err := drafts.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		cancel()
		log.Fatalf("redis: %v", err)
	}

	var index *search.StockIndex
	if cfg.ESURL != "" {
		es, err := search.NewClient(ctx, search.Config{URL: cfg.ESURL, Username: cfg.ESUser, Password: cfg.ESPassword})
		if err != nil {
			logger.Warn("search_disabled", "reason", "elasticsearch unavailable", "error", err)
		} else {
			index = search.NewStockIndex(es, cfg.ESIndex)
		}
	} else {
		logger.Info("search_disabled", "reason", "ES_URL not set")
	}
	cancel()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewProducer(cfg.KafkaBrokers)
	} else {
		logger.Info("events_disabled", "reason", "KAFKA_BROKERS not set")
	}

	store, err := datastore.New(db)
	if err != nil {
		log.Fatalf("datastore: %v", err)
	}
	r := repo.New(db)

	users := &service.UserService{Repo: r, JWTSecret: cfg.JWTAccessSecret, Events: publisher}
	seedCtx, seedCancel := context.WithTimeout(logging.IntoContext(context.Background(), logger), 10*time.Second)
	err = users.SeedAdmin(seedCtx, cfg.AdminUsername, cfg.AdminPassword)
	seedCancel()
	if err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())
	e.Use(csrf.Middleware(csrf.Config{
		Secure:    cfg.CookieSecure,
		SkipPaths: []string{"/api/v1/auth/login", "/health/live", "/health/ready"},
	}))

	lookup := &service.LookupService{Repo: r, Backend: store, Index: index}
	httpserver.Register(e, &httpserver.Deps{
		Auth:   &httpserver.AuthHTTP{Svc: users},
		Users:  &httpserver.UsersHTTP{Svc: users},
		Tables: &httpserver.TablesHTTP{Backend: store, Events: publisher, Stock: lookup},
		VAT:    &httpserver.VATHTTP{Svc: &service.VATService{Backend: store}},
		Lookup: &httpserver.LookupHTTP{Svc: lookup},
		Orders: &httpserver.OrdersHTTP{Svc: &service.OrderService{
			Repo:    r,
			Backend: store,
			Drafts:  drafts.New(rdb, cfg.DraftTTL),
			Events:  publisher,
		}},
		JWTSecret: cfg.JWTAccessSecret,
		Ready: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)

	if err := publisher.Close(); err != nil {
		logger.Warn("events_close_failed", "error", err)
	}
	_ = rdb.Close()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("stopped")
}
