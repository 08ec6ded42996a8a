package main // Entry point of the seat server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-server/internal/config"
	"github.com/iliyamo/cinema-seat-server/internal/database"
	"github.com/iliyamo/cinema-seat-server/internal/handler"
	"github.com/iliyamo/cinema-seat-server/internal/lock"
	"github.com/iliyamo/cinema-seat-server/internal/logging"
	"github.com/iliyamo/cinema-seat-server/internal/ratelimit"
	"github.com/iliyamo/cinema-seat-server/internal/repository"
	"github.com/iliyamo/cinema-seat-server/internal/router"
	"github.com/iliyamo/cinema-seat-server/internal/server"
	"github.com/iliyamo/cinema-seat-server/internal/service"
)

var portFlag = flag.Int("p", 0, fmt.Sprintf("TCP port to listen on (%d-%d, default %d)", config.MinPort, config.MaxPort, config.DefaultPort))

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *portFlag != 0 {
		if err := config.ValidatePort(*portFlag); err != nil {
			return err
		}
		cfg.Port = *portFlag
	}

	srvLog := logging.New("server", cfg.LogLevel)
	storeLog := logging.New("store", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	var store repository.Store = repository.NewFileStore(cfg.DataDir)
	if cfg.MirrorMySQL {
		user, pass, host, port, name := cfg.DSN()
		db, err := database.Open(ctx, user, pass, host, port, name)
		if err != nil {
			return fmt.Errorf("open mysql mirror: %w", err)
		}
		defer db.Close()
		mirror := repository.NewSQLStore(db)
		if err := mirror.EnsureSchema(ctx); err != nil {
			return err
		}
		store = repository.Mirrored{
			Primary:     store,
			Mirrors:     []repository.Store{mirror},
			OnMirrorErr: func(err error) { storeLog.Warnf("mysql mirror: %v", err) },
		}
		storeLog.Infof("mirroring state into mysql %s:%s/%s", host, port, name)
	}

	hall, accounts, err := server.Load(ctx, store, server.GridSize(cfg), storeLog)
	if err != nil {
		return err
	}

	var events service.Publisher = service.NoopPublisher{}
	if cfg.RabbitURL != "" {
		events = service.NewAMQPPublisher(cfg.RabbitURL, logging.New("events", cfg.LogLevel))
	}

	rdb := config.NewRedisClient(ctx)
	if rdb != nil {
		defer rdb.Close()
		srvLog.Infof("redis rate limiting at %s", config.RedisAddr())
	}

	svc := service.NewBooking(hall, accounts, lock.NewManager(cfg.LockPollInterval), service.Options{
		PasswordHashing: cfg.PasswordHashing,
		BcryptCost:      cfg.BcryptCost,
		Events:          events,
		Log:             logging.New("booking", cfg.LogLevel),
	})
	srv := server.New(svc, store, server.Options{
		RecvTimeout:   cfg.RecvTimeout,
		SendTimeout:   cfg.SendTimeout,
		ShutdownGrace: cfg.ShutdownGrace,
		Limiter:       ratelimit.New(config.LoadConnRateLimitConfig(), rdb),
		Log:           srvLog,
		SessionLog:    logging.New("session", cfg.LogLevel),
	})

	var e *echo.Echo
	if cfg.AdminAddr != "" {
		e = echo.New()
		e.HideBanner = true
		e.Logger = logging.New("admin", cfg.LogLevel)
		router.RegisterRoutes(e)
		router.RegisterAdmin(e, handler.NewAdminHandler(svc, srv), cfg.JWTSecret, ratelimit.New(config.LoadRateLimitConfig(), rdb))
		go func() {
			if err := e.Start(cfg.AdminAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.Logger.Errorf("admin api: %v", err)
			}
		}()
	}

	srvLog.Infof("seat server starting (env=%s, grid=%dx%d)", cfg.Env, hall.Rows(), hall.Cols())
	err = srv.ListenAndServe(ctx, cfg.Addr())

	if e != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			e.Logger.Warnf("admin shutdown: %v", err)
		}
	}
	if err == nil {
		srvLog.Infof("bye")
	}
	return err
}
