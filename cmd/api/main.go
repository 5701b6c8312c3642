package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "orderdesk/docs"
	"orderdesk/pkg/config"
	"orderdesk/pkg/httpapi"
	"orderdesk/pkg/logger"
	"orderdesk/pkg/metrics"
	"orderdesk/pkg/order"
	ordermem "orderdesk/pkg/order/memory"
	orderpg "orderdesk/pkg/order/postgres"
	"orderdesk/pkg/otel"
	"orderdesk/pkg/postgres"
	"orderdesk/pkg/product"
	productmem "orderdesk/pkg/product/memory"
	productpg "orderdesk/pkg/product/postgres"
	"orderdesk/pkg/session"
)

// @title OrderDesk API
// @version 1.0
// @description Orders and products for the order desk client
// @host localhost:8443
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name session_id
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadServer()
	if err != nil {
		logger.New(os.Stderr, logger.LevelError, "orderdesk-api", nil).Error(ctx, "config", "error", err)
		os.Exit(1)
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logger.LevelInfo
	}
	log := logger.New(os.Stdout, level, "orderdesk-api", otel.GetTraceID)
	defer log.Sync()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *logger.Logger) error {
	tp, shutdown, err := otel.InitTracing(log, otel.Config{
		ServiceName: "orderdesk-api",
		Host:        cfg.OTelHost,
		Probability: cfg.TraceProbability,
	})
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	orders, products, closeDB, err := repositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	var sessions httpapi.Sessions
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		sessions = session.New(rdb, cfg.SessionTTL)
	} else {
		log.Warn(ctx, "REDIS_ADDR not set, authentication disabled")
	}

	api := httpapi.New(httpapi.Config{
		Orders:   orders,
		Products: products,
		Sessions: sessions,
		Users:    cfg.Users,
		Images:   httpapi.DirImages{Dir: cfg.ImageDir, BaseURL: cfg.ImageBaseURL},
		Metrics:  metrics.NewServerMetrics("api"),
		Tracer:   tp.Tracer("orderdesk-api"),
		Log:      log,
	})
	r := api.Router()
	r.PathPrefix("/images/").Handler(http.StripPrefix("/images/", http.FileServer(http.Dir(cfg.ImageDir))))

	srv := &http.Server{Addr: cfg.Addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", cfg.Addr, "tls", cfg.TLSCert != "")
		if cfg.TLSCert != "" {
			errc <- srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
			return
		}
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info(context.Background(), "shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func repositories(ctx context.Context, cfg config.Server, log *logger.Logger) (order.Repository, product.Repository, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn(ctx, "DATABASE_URL not set, using in-memory storage")
		return ordermem.New(), productmem.New(), func() {}, nil
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return orderpg.New(db), productpg.New(db), func() { db.Close() }, nil
}
