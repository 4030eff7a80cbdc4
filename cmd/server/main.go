// Command server runs the deposit ledger HTTP service.
//
// Backends are selected by configuration: postgres stores when POSTGRES_DSN
// is set (in-memory otherwise), a redis receipt-metadata cache when
// REDIS_URL is set, and a kafka event relay when KAFKA_BROKERS is set.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"garant/internal/custody"
	"garant/internal/escrow"
	"garant/internal/events"
	"garant/internal/files"
	"garant/internal/jwtauth"
	"garant/internal/platform/config"
	"garant/internal/platform/httpserver"
	"garant/internal/platform/logger"
	"garant/internal/platform/metrics"
	"garant/internal/platform/redis"
	"garant/internal/property"
	"garant/internal/receipt"
	transporthttp "garant/internal/transport/http"
	"garant/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New()
	slog.SetDefault(log)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage backends. The single tx runner is shared by every service so
	// property and deposit mutations serialize against each other.
	var (
		runner     tx.Runner
		propStore  property.Store
		depStore   escrow.DepositStore
		fileStore  files.Store
		tokenStore receipt.TokenStore
		ledger     custody.Ledger
		db         *sql.DB
	)
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		for _, schema := range []string{property.Schema, escrow.Schema, files.Schema, receipt.Schema, custody.Schema} {
			if _, err := db.ExecContext(ctx, schema); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		runner = tx.NewSQLRunner(db)
		propStore = property.NewPostgres(db)
		depStore = escrow.NewPostgres(db)
		fileStore = files.NewPostgres(db)
		tokenStore = receipt.NewPostgresTokenStore(db)
		ledger = custody.NewPostgresLedger(db)
		log.Info("using postgres stores")
	} else {
		runner = tx.NewMutexRunner()
		propStore = property.NewInMemoryStore()
		depStore = escrow.NewInMemoryDepositStore()
		fileStore = files.NewInMemoryStore()
		tokenStore = receipt.NewInMemoryTokenStore()
		ledger = custody.NewInMemoryLedger()
		log.Info("using in-memory stores")
	}

	// Event sinks: the in-process log always, kafka when configured.
	eventLog := events.NewMemoryLog()
	recorders := events.Multi{eventLog}
	var relay *events.KafkaRelay
	if len(cfg.KafkaBrokers) > 0 {
		var err error
		relay, err = events.NewKafkaRelay(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return fmt.Errorf("kafka relay: %w", err)
		}
		defer relay.Close()
		recorders = append(recorders, relay)
		log.Info("kafka event relay enabled", "topic", cfg.KafkaTopic)
	}

	// Receipt metadata cache: redis when configured, in-process otherwise.
	rds, err := redis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	var cache receipt.MetadataCache
	if rds != nil {
		defer rds.Close()
		cache = receipt.NewRedisMetadataCache(rds.Client, cfg.MetadataCacheTTL)
		log.Info("redis metadata cache enabled")
	} else {
		cache = receipt.NewInMemoryMetadataCache(cfg.MetadataCacheTTL)
	}

	issuer := receipt.NewIssuer(tokenStore, cache, escrow.NewSnapshotAdapter(depStore, propStore),
		receipt.IssuerWithEvents(recorders),
		receipt.IssuerWithMetrics(m),
		receipt.IssuerWithLogger(log),
	)
	escrowSvc := escrow.NewService(depStore, propStore, ledger, issuer,
		escrow.WithEvents(recorders),
		escrow.WithMetrics(m),
		escrow.WithLogger(log),
		escrow.WithTxRunner(runner),
	)
	propertySvc := property.NewService(propStore, depStore,
		property.WithEvents(recorders),
		property.WithMetrics(m),
		property.WithLogger(log),
		property.WithTxRunner(runner),
	)
	filesSvc := files.NewService(fileStore, escrowSvc,
		files.WithEvents(recorders),
		files.WithMetrics(m),
		files.WithLogger(log),
	)

	auth := jwtauth.NewService(cfg.JWTSigningKey, "garant", "garant")

	router := transporthttp.NewRouter(transporthttp.Deps{
		Properties: propertySvc,
		Escrow:     escrowSvc,
		Files:      filesSvc,
		Receipts:   issuer,
		Auth:       auth,
		Logger:     log,
		Health: func(ctx context.Context) error {
			if db != nil {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
			}
			if rds != nil {
				if err := rds.Health(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	server := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
