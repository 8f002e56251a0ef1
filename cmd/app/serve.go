package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asquebay/print-queue-service/internal/config"
	"github.com/asquebay/print-queue-service/internal/dispatcher"
	"github.com/asquebay/print-queue-service/internal/lib/logger"
	"github.com/asquebay/print-queue-service/internal/lib/pagecount"
	"github.com/asquebay/print-queue-service/internal/model"
	"github.com/asquebay/print-queue-service/internal/repository/cache"
	"github.com/asquebay/print-queue-service/internal/repository/memory"
	"github.com/asquebay/print-queue-service/internal/repository/postgres"
	"github.com/asquebay/print-queue-service/internal/repository/redis"
	"github.com/asquebay/print-queue-service/internal/service"
	httptransport "github.com/asquebay/print-queue-service/internal/transport/http"
	"github.com/asquebay/print-queue-service/internal/transport/kafka"
)

const shutdownTimeout = 10 * time.Second

// registry объединяет то, что от реестра принтеров нужно сервисам и диспетчеру
type registry interface {
	service.PrinterRepository
	dispatcher.Registry
}

// jobStore объединяет то, что от хранилища заданий нужно сервисам и диспетчеру
type jobStore interface {
	service.PrintJobRepository
	dispatcher.JobStore
}

// storage собирает репозитории выбранного драйвера
type storage struct {
	printers      registry
	jobs          jobStore
	users         service.UserProvider
	files         service.FileProvider
	notifications service.NotificationRepository
	close         func()
}

func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("using in-memory storage, state is lost on restart")
		store := memory.New()
		seedMemory(store, cfg.Storage.Seed)
		log.Info("in-memory storage seeded",
			slog.Int("users", len(cfg.Storage.Seed.Users)),
			slog.Int("files", len(cfg.Storage.Seed.Files)),
		)
		return &storage{
			printers:      store,
			jobs:          store,
			users:         store,
			files:         store,
			notifications: store,
			close:         func() {},
		}, nil
	default:
		dbpool, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		log.Info("successfully connected to postgres")

		applied, err := postgres.Migrate(ctx, dbpool)
		if err != nil {
			dbpool.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		log.Info("migrations applied", slog.Int("count", applied))

		accounts := postgres.NewAccountRepository(dbpool)
		return &storage{
			printers:      postgres.NewPrinterRepository(dbpool),
			jobs:          postgres.NewPrintJobRepository(dbpool),
			users:         accounts,
			files:         accounts,
			notifications: postgres.NewNotificationRepository(dbpool),
			close:         dbpool.Close,
		}, nil
	}
}

// seedMemory заполняет хранилище учётками и файлами из конфига
func seedMemory(store *memory.Store, seed config.Seed) {
	for _, u := range seed.Users {
		store.PutUser(model.User{ID: u.ID, Name: u.Name, AvailablePages: u.AvailablePages})
	}
	for _, f := range seed.Files {
		store.PutFile(model.File{ID: f.ID, Name: f.Name, TotalPages: f.TotalPages, MimeType: f.MimeType, Path: f.Path})
	}
}

func serve(ctx context.Context, configPath string) error {
	// 1. Инициализация конфигурации
	cfg := config.MustLoad(configPath)

	// 2. Инициализация логгера
	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	log.Info("starting print-queue-service",
		slog.String("log_level", cfg.Logger.Level),
		slog.String("storage", cfg.Storage.Driver),
	)

	// 3. Инициализация хранилища
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open storage", slog.String("error", err.Error()))
		return err
	}
	defer store.close()

	// 4. Уведомления: кэш, сервис и приёмник событий
	notifyCache := cache.NewNotifyCache()
	notifySvc := service.NewNotificationService(store.notifications, notifyCache, log)
	if err := notifySvc.RestoreCache(ctx); err != nil {
		// не фатальная ошибка, сервис может работать и с пустым кэшем
		log.Error("failed to restore cache", slog.String("error", err.Error()))
	}

	var notifier dispatcher.Notifier = notifySvc
	var producer *kafka.Producer
	if cfg.Kafka.Enabled() {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("failed to create kafka producer", slog.String("error", err.Error()))
			return err
		}
		notifier = producer
		log.Info("notifications go through kafka", slog.String("topic", cfg.Kafka.Topic))
	}

	// 5. Аренда очередей между процессами
	var lease dispatcher.Lease = dispatcher.NopLease{}
	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Error("failed to connect to redis", slog.String("error", err.Error()))
			return err
		}
		defer client.Close()
		lease = redis.NewLease(client)
		log.Info("dispatch lease enabled", slog.Duration("ttl", cfg.Redis.LeaseTTL))
	}

	// 6. Диспетчер
	device := dispatcher.NewSimulatedDevice(cfg.Printing.TimePerPage)
	supervisor := dispatcher.New(store.printers, store.jobs, device, notifier, lease, dispatcher.Options{
		MaxRetries: cfg.Dispatch.MaxRetries,
		RetryDelay: cfg.Dispatch.RetryDelay,
		MaxBackoff: cfg.Dispatch.MaxBackoff,
		LeaseRetry: cfg.Dispatch.LeaseRetry,
		LeaseTTL:   cfg.Redis.LeaseTTL,
	}, log)

	// 7. Сервисный слой
	standard := pagecount.Size(cfg.Printing.StandardPageSize)
	jobSvc := service.NewPrintJobService(store.jobs, store.printers, store.users, store.files, supervisor, standard, log)
	printerSvc := service.NewPrinterService(store.printers, supervisor, log)

	// 8. Подхватываем очереди, оставшиеся с прошлого запуска
	if err := supervisor.Resume(ctx); err != nil {
		log.Error("failed to resume dispatch loops", slog.String("error", err.Error()))
		return err
	}

	// 9. Kafka-консьюмер доставляет события в хранилище уведомлений
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled() {
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, notifySvc, log)
		go consumer.Run(consumerCtx)
	}

	// 10. HTTP-сервер
	handler := httptransport.NewHandler(jobSvc, printerSvc, notifySvc, log)
	httpServer := httptransport.NewServer(cfg.HTTPServer, handler)
	log.Info("starting http server", slog.String("port", cfg.HTTPServer.Port))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Run()
	}()

	// 11. Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case <-stop:
	case err := <-serverErr:
		if err != nil {
			log.Error("http server failed", slog.String("error", err.Error()))
			runErr = err
		}
	}

	log.Info("shutting down application")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// сначала перестаём принимать задания, потом останавливаем циклы
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", slog.String("error", err.Error()))
	}

	if err := supervisor.Shutdown(shutdownCtx); err != nil {
		log.Error("dispatcher shutdown failed", slog.String("error", err.Error()))
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("error closing kafka producer", slog.String("error", err.Error()))
		}
	}

	stopConsumer()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Error("error closing kafka consumer", slog.String("error", err.Error()))
		}
	}

	log.Info("application stopped")
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func migrate(ctx context.Context, configPath string) error {
	cfg := config.MustLoad(configPath)
	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)

	if cfg.Storage.Driver != "postgres" {
		log.Info("nothing to migrate", slog.String("storage", cfg.Storage.Driver))
		return nil
	}

	dbpool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		log.Error("failed to connect to postgres", slog.String("error", err.Error()))
		return err
	}
	defer dbpool.Close()

	applied, err := postgres.Migrate(ctx, dbpool)
	if err != nil {
		log.Error("failed to apply migrations", slog.String("error", err.Error()))
		return err
	}

	log.Info("migrations applied", slog.Int("count", applied))
	return nil
}
