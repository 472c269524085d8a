package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-booking/internal/analytics"
	analytics_api "ms-booking/internal/analytics/api"
	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/booking_api"
	bookingdb "ms-booking/internal/booking/db"
	rediswrap "ms-booking/internal/booking/redis"
	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/pass"
	"ms-booking/internal/registry"
	"ms-booking/internal/sse"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	if cfg.Driver == "sqlite" {
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file:booking.db?cache=shared"
		}
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to open SQLite: %v", err))
		}
		sqldb.SetMaxOpenConns(1)
		bunDB := bun.NewDB(sqldb, sqlitedialect.New())
		if err := bookingdb.CreateSchema(ctx, bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to create SQLite schema: %v", err))
		}
		log.Warn("DATABASE", "Running on SQLite: overlap is enforced by the admission transaction only, not by an exclusion constraint")
		return bunDB
	}

	if cfg.DSN == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	var sqldb *sql.DB
	var err error
	for i := 0; i < cfg.ConnectRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, cfg.ConnectRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.PingContext(ctx)
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < cfg.ConnectRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil || sqldb == nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", cfg.ConnectRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	log.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	if cfg.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.MigrationsDir,
			AutoMigrate:   cfg.AutoMigrate,
			SeedData:      cfg.SeedData,
		}, log)
		// the runner shares sqldb, so it is not closed here
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
	}
	return bunDB
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Warn("REDIS", "Redis disabled: no admission lock and no registry cache")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) auth.Verifier {
	if cfg.Insecure {
		log.Warn("AUTH", "AUTH_INSECURE set: token signatures are NOT verified")
		return auth.UnverifiedVerifier{}
	}
	v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}
	return v
}

func main() {
	// .env has to be in the environment before config and the logger read it
	envErr := godotenv.Load()
	cfg := config.Load()

	log := logger.New(cfg.Log.Options(os.Stdout))
	defer log.Close()

	log.Info("APP", "Starting Booking Service initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB := connectDatabase(ctx, cfg.Database, log)
	defer bunDB.Close()

	// timezone lookups: registry tables, fronted by Redis when available
	regDB := &registry.DB{Bun: bunDB}
	var reg booking.Registry = regDB
	var lock booking.AdmissionLock
	var cache *registry.Cache

	redisClient := connectRedis(ctx, cfg.Redis, log)
	if redisClient != nil {
		defer redisClient.Close()
		cache = registry.NewCache(regDB, redisClient, cfg.Redis.RegistryCacheTTL, log)
		reg = cache
		lock = rediswrap.NewRedis(redisClient, cfg.Redis.LockTTL, cfg.Redis.LockWait, log)
	}

	emitter := sse.NewBookingEventEmitter()
	publishers := booking.Publishers{emitter}

	if cfg.Kafka.Enabled {
		log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, cfg.Kafka.AllTopics(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		if missing, err := kafka.MissingTopics(ctx, cfg.Kafka.Brokers, cfg.Kafka.AllTopics()); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Could not list topics: %v", err))
		} else if len(missing) > 0 {
			log.Warn("KAFKA", fmt.Sprintf("Topics still missing after creation: %v", missing))
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		publishers = append(publishers, producer)
		log.Info("KAFKA", "Kafka producer initialized successfully")

		if cache != nil {
			consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.TimezoneChanged, cfg.Kafka.GroupID, log)
			defer consumer.Close()
			go func() {
				if err := consumer.Start(ctx, kafka.InvalidationHandler(cache, log)); err != nil {
					log.Error("KAFKA", fmt.Sprintf("timezone consumer stopped: %v", err))
				}
			}()
		}
	}

	ledger := booking.NewLedger(&bookingdb.DB{Bun: bunDB}, reg, lock, publishers, log)

	passSecret := cfg.Booking.PassSecret
	if passSecret == "" {
		passSecret = uuid.NewString()
		log.Warn("CONFIG", "BOOKING_PASS_SECRET not set, passes will not survive a restart")
	}

	bookingHandler := booking_api.NewHandler(ledger, pass.NewGenerator(passSecret), emitter, log)
	analyticsHandler := analytics_api.NewHandler(analytics.NewService(bunDB), log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := bunDB.PingContext(r.Context()); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("unhealthy", err.Error()))
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	})

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(newVerifier(ctx, cfg.Auth, log), log))
		log.Info("AUTH", "JWT middleware applied to protected API routes")

		bookingHandler.RegisterRoutes(r)
		log.Info("ROUTER", "Booking routes registered under /api/bookings and /api/resources")

		analyticsHandler.RegisterRoutes(r)
		log.Info("ROUTER", "Analytics routes registered under /api/analytics")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Booking Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Booking Service shutdown complete")
	}
}
