package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	catalogApp "github.com/alkimyk/cmr/internal/catalog/application"
	catalogDomain "github.com/alkimyk/cmr/internal/catalog/domain"
	catalogHttp "github.com/alkimyk/cmr/internal/catalog/infra/inbound/http"
	catalogMongo "github.com/alkimyk/cmr/internal/catalog/infra/outbound/mongodb"
	"github.com/alkimyk/cmr/internal/catalog/infra/outbound/sqldb"
	config "github.com/alkimyk/cmr/internal/config"
	consoleApp "github.com/alkimyk/cmr/internal/console/application"
	consoleEvents "github.com/alkimyk/cmr/internal/console/infra/inbound/events"
	consoleHttp "github.com/alkimyk/cmr/internal/console/infra/inbound/http"
	infraCache "github.com/alkimyk/cmr/internal/infra/cache"
	"github.com/alkimyk/cmr/internal/infra/db/mongodb"
	"github.com/alkimyk/cmr/internal/infra/db/postgres"
	"github.com/alkimyk/cmr/internal/infra/db/sqlite"
	infraEvents "github.com/alkimyk/cmr/internal/infra/events"
	"github.com/alkimyk/cmr/internal/infra/middleware"
	infraRelayer "github.com/alkimyk/cmr/internal/infra/relayer"
	"github.com/alkimyk/cmr/internal/infra/telemetry"
	reportApp "github.com/alkimyk/cmr/internal/report/application"
	reportDomain "github.com/alkimyk/cmr/internal/report/domain"
	reportEvents "github.com/alkimyk/cmr/internal/report/infra/inbound/events"
	reportHttp "github.com/alkimyk/cmr/internal/report/infra/inbound/http"
	"github.com/alkimyk/cmr/internal/report/infra/outbound/clickhouse"
	"github.com/alkimyk/cmr/internal/report/infra/outbound/memory"
	sharedDomain "github.com/alkimyk/cmr/shared/domain"
	sharedBus "github.com/alkimyk/cmr/shared/platform/bus"
	sharedCache "github.com/alkimyk/cmr/shared/platform/cache"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el catálogo, la consola JSON, los reportes y el relayer del outbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(root)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

// catalogStore agrupa el repositorio de registros y su outbox, que comparten conexión.
type catalogStore struct {
	records catalogDomain.RecordRepository
	outbox  sharedDomain.OutboxRepository
	close   func()
}

func openCatalogStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*catalogStore, error) {
	if cfg.DBDriver == config.DriverMongo {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, err
		}
		store, err := catalogMongo.NewRecordStoreMongoDB(ctx, client, cfg.MongoDB)
		if err != nil {
			client.Disconnect(context.Background())
			return nil, err
		}
		if err := store.InitSchema(ctx); err != nil {
			client.Disconnect(context.Background())
			return nil, err
		}
		log.Info("✅ MongoDB conectado", zap.String("db", cfg.MongoDB))
		return &catalogStore{
			records: store,
			outbox:  mongodb.NewOutboxRepoMongoDB(client, cfg.MongoDB),
			close:   func() { client.Disconnect(context.Background()) },
		}, nil
	}

	dialect, err := sqldb.DialectFor(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	dsn := cfg.SQLitePath
	if cfg.DBDriver == config.DriverPostgres {
		dsn = cfg.PostgresDSN
	}
	db, err := sqldb.Open(dialect, dsn)
	if err != nil {
		return nil, err
	}
	store := sqldb.NewStore(db, dialect)
	if err := store.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("✅ Base de datos lista", zap.String("driver", dialect.Name))
	return &catalogStore{
		records: store,
		outbox:  sqlOutbox(cfg.DBDriver, db),
		close:   func() { db.Close() },
	}, nil
}

func sqlOutbox(driver string, db *sql.DB) sharedDomain.OutboxRepository {
	if driver == config.DriverPostgres {
		return postgres.NewOutboxRepoPostgres(db)
	}
	return sqlite.NewOutboxRepoSQLite(db)
}

func newCache(ctx context.Context, cfg *config.Config, log *zap.Logger) sharedCache.Cache {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️ Redis no disponible, cache en memoria", zap.Error(err))
		rdb.Close()
		return infraCache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
	}
	log.Info("✅ Redis conectado, cache habilitado")
	return infraCache.NewRedisCache(rdb, cfg.CacheTTL)
}

func newActivityRepo(ctx context.Context, cfg *config.Config, log *zap.Logger) reportDomain.ActivityRepository {
	if cfg.ClickHouseAddr == "" {
		log.Info("Reportes en memoria (CLICKHOUSE_ADDR vacío)")
		return memory.NewActivityRepo()
	}
	repo, err := clickhouse.NewActivityRepo(cfg.ClickHouseAddr, cfg.ClickHouseDB)
	if err == nil {
		err = repo.InitSchema(ctx)
	}
	if err != nil {
		log.Warn("⚠️ ClickHouse no disponible, reportes en memoria", zap.Error(err))
		return memory.NewActivityRepo()
	}
	log.Info("✅ ClickHouse conectado", zap.String("addr", cfg.ClickHouseAddr))
	return repo
}

// startBus conecta los consumidores al bus configurado y devuelve el publicador del relayer.
func startBus(ctx context.Context, cfg *config.Config, log *zap.Logger, consumers map[string]sharedBus.MessageHandler) (sharedBus.EventPublisher, func()) {
	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como bus de eventos", zap.String("topic", cfg.KafkaTopic))
		writer := &kafka.Writer{
			Addr:     kafka.TCP(cfg.KafkaBrokers...),
			Topic:    cfg.KafkaTopic,
			Balancer: &kafka.Hash{},
		}
		closers := []func() error{writer.Close}

		// Un grupo por consumidor: cada uno ve todos los eventos
		for name, handler := range consumers {
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers:  cfg.KafkaBrokers,
				Topic:    cfg.KafkaTopic,
				GroupID:  "alkimyk-" + name,
				MinBytes: 10e3, // 10KB
				MaxBytes: 10e6, // 10MB
			})
			closers = append(closers, reader.Close)
			infraEvents.NewConsumerAdapter(reader, handler, log).Start(ctx)
		}
		return infraEvents.NewKafkaPublisher(writer, log), func() {
			for _, c := range closers {
				c()
			}
		}
	}

	log.Info("⚡️Usando bus de eventos en memoria (canales de Go)")
	bus := infraEvents.NewInMemoryEventBus(cfg.KafkaTopic, log)
	for name, handler := range consumers {
		log.Info("🎧 Iniciando listener en memoria", zap.String("consumer", name))
		infraEvents.BackgroundConsumerChan(ctx, bus.Subscribe(100), handler, log)
	}
	return bus, func() {}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// ---------------- Tracing ----------------
	shutdownTracing, err := telemetry.Init(ctx, cfg.OTelEnabled, cfg.OTelProtocol, cfg.ServiceName, log)
	if err != nil {
		log.Warn("⚠️ Tracing no disponible", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	// ---------------- DB ----------------
	store, err := openCatalogStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	// ---------------- Cache ----------------
	cache := newCache(ctx, cfg, log)

	// ---------------- Métricas ----------------
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics, err := middleware.NewPrometheus(reg)
	if err != nil {
		return err
	}
	resolverMetrics, err := consoleApp.NewMetrics(reg)
	if err != nil {
		return err
	}

	// --------------- Servicios --------------
	recordService := catalogApp.NewRecordService(store.records, cache, log)
	reportService := reportApp.NewReportService(newActivityRepo(ctx, cfg, log), log)
	resolver, err := newResolver(cfg, log,
		consoleApp.WithCache(cache, 0),
		consoleApp.WithMetrics(resolverMetrics),
	)
	if err != nil {
		return err
	}

	// ---------------- Events ---------------
	publisher, closeBus := startBus(ctx, cfg, log, map[string]sharedBus.MessageHandler{
		"console": consoleEvents.NewInvalidationConsumer(resolver, log),
		"report":  reportEvents.NewActivityConsumer(reportService, log),
	})
	defer closeBus()

	// ------------ Outbox Worker ------------
	worker := infraRelayer.NewOutboxWorker(store.outbox, publisher, catalogDomain.NewEventRegistry(), cfg.OutboxPeriod, cfg.OutboxLimit, log)
	go worker.Start(ctx)

	// ---------------- HTTP ----------------
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(log), httpMetrics.Handler())

	catalogHttp.RegisterRecordRoutes(router, catalogHttp.NewRecordHandler(recordService, log))
	consoleHttp.RegisterConsoleRoutes(router, consoleHttp.NewConsoleHandler(resolver, log))
	reportHttp.RegisterReportRoutes(router, reportHttp.NewReportHandler(reportService, log))
	router.NoRoute(catalogHttp.NoRoute)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("🚀 Server running", zap.String("url", "http://localhost:"+cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("🛑 Apagando servidor...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
