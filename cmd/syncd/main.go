// Демон синхронизации игровых сохранений. Следит за локальными папками
// сохранений, загружает изменения в облако версионированными снимками и
// предоставляет локальный управляющий API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq" // Драйвер PostgreSQL

	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/catalog"
	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/device"
	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/handlers"
	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/identity"
	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/repository"
	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/storage"
	syncsvc "github.com/Felipecabreramarcon/sync-saves-sub000/internal/sync"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Структура для хранения инициализированных зависимостей.
type dependencies struct {
	localCatalog *catalog.Catalog
	orchestrator *syncsvc.Service
	scheduler    *syncsvc.Scheduler
	watcher      *syncsvc.Watcher
	syncHandler  *handlers.SyncHandler
	gameHandler  *handlers.GameHandler
	devHandler   *handlers.DeviceHandler
	closeDB      func() error
}

// main - точка входа. Вызывает run и обрабатывает ошибку.
func main() {
	if err := run(); err != nil {
		log.Printf("Ошибка выполнения демона: %v", err)
		os.Exit(1)
	}
}

// run содержит основную логику запуска демона и возвращает ошибку.
func run() error {
	log.Println("Запуск демона синхронизации сохранений...")

	cfg, err := parseFlags(os.Args[1:], os.LookupEnv)
	if err != nil {
		return err
	}

	deps, err := setupDependencies(cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации зависимостей: %w", err)
	}
	defer func() {
		if closeErr := deps.closeDB(); closeErr != nil {
			log.Printf("Ошибка закрытия соединения с БД: %v", closeErr)
		}
		if closeErr := deps.localCatalog.Close(); closeErr != nil {
			log.Printf("Ошибка закрытия локального каталога: %v", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Файловый наблюдатель работает в фоне до остановки демона.
	go func() {
		if watchErr := deps.watcher.Run(ctx); watchErr != nil && !errors.Is(watchErr, context.Canceled) {
			log.Printf("Файловый наблюдатель завершился с ошибкой: %v", watchErr)
		}
	}()
	defer func() {
		deps.scheduler.Stop()
		if closeErr := deps.watcher.Close(); closeErr != nil {
			log.Printf("Ошибка остановки файлового наблюдателя: %v", closeErr)
		}
	}()

	router := setupRouter(deps.syncHandler, deps.gameHandler, deps.devHandler)
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Управляющий API слушает на %s...", cfg.ListenAddr)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ошибка запуска управляющего API: %w", err)
		}
	case <-ctx.Done():
		log.Println("Получен сигнал остановки, завершение работы...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err = server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ошибка остановки управляющего API: %w", err)
		}
	}

	log.Println("Демон остановлен.")
	return nil
}

// setupDependencies инициализирует и возвращает все зависимости демона.
func setupDependencies(cfg *Config) (*dependencies, error) {
	deps := &dependencies{}

	// 1. Подключение к облачной БД метаданных
	db, err := repository.NewPostgresDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации БД: %w", err)
	}
	deps.closeDB = db.Close
	log.Println("Соединение с БД успешно установлено.")

	// 2. Инициализация клиента объектного хранилища
	blobStorage, err := storage.NewMinioClient(storage.MinioConfig{
		Endpoint:        cfg.MinioEndpoint,
		AccessKeyID:     cfg.MinioUser,
		SecretAccessKey: cfg.MinioPassword,
		UseSSL:          cfg.MinioUseSSL,
		BucketName:      cfg.MinioBucket,
	})
	if err != nil {
		if dbCloseErr := db.Close(); dbCloseErr != nil {
			log.Printf("Ошибка закрытия соединения с БД при ошибке MinIO: %v", dbCloseErr)
		}
		return nil, fmt.Errorf("ошибка инициализации клиента хранилища: %w", err)
	}

	// 3. Локальный каталог игр
	deps.localCatalog, err = catalog.NewCatalog(cfg.CatalogPath)
	if err != nil {
		if dbCloseErr := db.Close(); dbCloseErr != nil {
			log.Printf("Ошибка закрытия соединения с БД при ошибке каталога: %v", dbCloseErr)
		}
		return nil, fmt.Errorf("ошибка открытия локального каталога: %w", err)
	}

	// 4. Репозитории облачных метаданных
	gameRepo := repository.NewPostgresGameRepository(db)
	versionRepo := repository.NewPostgresVersionRepository(db)
	deviceRepo := repository.NewPostgresDeviceRepository(db)
	activityRepo := repository.NewPostgresActivityRepository(db)

	// 5. Сессия пользователя и реестр устройств
	session := identity.NewSession()
	if cfg.SessionToken != "" {
		session.SetToken(cfg.SessionToken)
	}
	registry := device.NewRegistry(deviceRepo, deps.localCatalog)

	// 6. Ядро синхронизации
	deps.orchestrator = syncsvc.NewService(syncsvc.Deps{
		Identity:   session,
		Registry:   registry,
		Catalog:    deps.localCatalog,
		Games:      gameRepo,
		Versions:   versionRepo,
		Activities: activityRepo,
		Blobs:      blobStorage,
	})
	deps.scheduler = syncsvc.NewScheduler(cfg.Debounce, cfg.Cooldown, func(gameID string, force bool) {
		if _, syncErr := deps.orchestrator.SyncGame(context.Background(), gameID,
			syncsvc.SyncOptions{Force: force}); syncErr != nil {
			log.Printf("Фоновая синхронизация игры %s не удалась: %v", gameID, syncErr)
		}
	})
	deps.watcher, err = syncsvc.NewWatcher(deps.localCatalog, deps.scheduler.Trigger, cfg.WatchRefresh)
	if err != nil {
		if dbCloseErr := db.Close(); dbCloseErr != nil {
			log.Printf("Ошибка закрытия соединения с БД при ошибке наблюдателя: %v", dbCloseErr)
		}
		if catCloseErr := deps.localCatalog.Close(); catCloseErr != nil {
			log.Printf("Ошибка закрытия каталога при ошибке наблюдателя: %v", catCloseErr)
		}
		return nil, fmt.Errorf("ошибка создания файлового наблюдателя: %w", err)
	}

	// 7. Обработчики управляющего API
	deps.syncHandler = handlers.NewSyncHandler(deps.orchestrator, deps.scheduler)
	deps.gameHandler = handlers.NewGameHandler(deps.localCatalog, gameRepo, versionRepo)
	deps.devHandler = handlers.NewDeviceHandler(registry, session)

	return deps, nil
}

// setupRouter настраивает и возвращает роутер chi.
func setupRouter(
	syncHandler *handlers.SyncHandler,
	gameHandler *handlers.GameHandler,
	devHandler *handlers.DeviceHandler,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", syncHandler.Status)
		r.Get("/activities", syncHandler.Activities)
		r.Post("/sync/{gameID}", syncHandler.Sync)
		r.Post("/restore/{gameID}", syncHandler.Restore)

		r.Route("/games", func(r chi.Router) {
			r.Get("/", gameHandler.List)
			r.Post("/", gameHandler.Add)
			r.Get("/{gameID}", gameHandler.Get)
			r.Patch("/{gameID}", gameHandler.Update)
			r.Delete("/{gameID}", gameHandler.Delete)
			r.Get("/{gameID}/versions", gameHandler.Versions)
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", devHandler.List)
			r.Delete("/{deviceID}", devHandler.Remove)
		})
	})
	return r
}
