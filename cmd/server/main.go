package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/comanda-pos/floor/internal/config"
	"github.com/comanda-pos/floor/internal/events"
	"github.com/comanda-pos/floor/internal/logger"
	"github.com/comanda-pos/floor/internal/router"
	"github.com/comanda-pos/floor/internal/storage"
	"github.com/comanda-pos/floor/internal/ws"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	runMigrations := flag.Bool("migrate", false, "apply database migrations before serving")
	migrationsDir := flag.String("migrations", "file://migrations", "migrations source URL")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	if *runMigrations {
		if err := migrateUp(cfg.DatabaseURL, *migrationsDir); err != nil {
			log.Fatal("migrations failed", zap.Error(err))
		}
		log.Info("migrations applied")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal("database ping failed", zap.Error(err))
	}

	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	publishers := events.Fanout{events.NewHubPublisher(hub)}

	if cfg.RabbitMQURL != "" {
		qc, err := events.NewClient(cfg.RabbitMQURL)
		if err == nil {
			if err = qc.EnsureExchange(cfg.EventsExchange); err != nil {
				_ = qc.Close()
			}
		}
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq connection failed", zap.Error(err))
			}
			log.Warn("rabbitmq connection failed; continuing without broker events", zap.Error(err))
		} else {
			defer qc.Close()
			publishers = append(publishers, events.NewAMQPPublisher(qc, cfg.EventsExchange))
			log.Info("rabbitmq enabled", zap.String("exchange", cfg.EventsExchange))
		}
	} else {
		log.Info("rabbitmq disabled (RABBITMQ_URL is empty)")
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer writer.Close()
		publishers = append(publishers, events.NewKafkaPublisher(writer))
		log.Info("kafka enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	deps := router.Deps{
		Config: cfg,
		Logger: log,
		Pool:   pool,
		Hub:    hub,
		Events: publishers,
	}

	if cfg.RedisURL != "" {
		rdb, err := newRedis(ctx, cfg.RedisURL)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("redis connection failed", zap.Error(err))
			}
			log.Warn("redis connection failed; idempotency keys disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			deps.Redis = rdb
		}
	}

	objCfg := storage.Config{
		Endpoint:        cfg.ObjectStoreEndpoint,
		Region:          cfg.ObjectStoreRegion,
		AccessKeyID:     cfg.ObjectStoreAccessKeyID,
		SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
		Bucket:          cfg.ObjectStoreBucket,
		PublicBaseURL:   cfg.ObjectStorePublicBaseURL,
	}
	if objCfg.Enabled() {
		objects, err := storage.NewObjectStore(ctx, objCfg)
		if err != nil {
			log.Fatal("object store init failed", zap.Error(err))
		}
		deps.Objects = objects
	} else {
		log.Info("object store disabled; return photos are refused")
	}

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router.New(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("floor api listening", zap.String("addr", cfg.HTTPAddr), zap.String("base", "/api"))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}

func newRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func migrateUp(databaseURL, source string) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
