package main

import (
	"flag"
	"fmt"
	"time"
)

// Значения конфигурации по умолчанию (для локальной разработки с Docker).
const (
	defaultListenAddr  = "127.0.0.1:8787"
	defaultCatalogPath = "syncsaves.db"

	defaultDBUser = "syncsaves"
	defaultDBPass = "secret"
	defaultDBName = "syncsaves"
	defaultDBHost = "localhost"
	defaultDBPort = "5432"

	defaultMinioEndpoint = "localhost:9000"
	defaultMinioUser     = "minioadmin"
	defaultMinioPassword = "minioadmin"
	defaultMinioBucket   = "syncsaves-archives"

	// Переменные окружения (флаги имеют приоритет над ними).
	envListenAddr    = "SYNCD_LISTEN_ADDR"
	envCatalogPath   = "SYNCD_CATALOG_PATH"
	envSessionToken  = "SYNCD_SESSION_TOKEN" //nolint:gosec // Имя переменной окружения, не секрет
	envDBUser        = "POSTGRES_USER"
	envDBPass        = "POSTGRES_PASSWORD" //nolint:gosec // Имя переменной окружения, не секрет
	envDBName        = "POSTGRES_DB"
	envDBHost        = "POSTGRES_HOST"
	envDBPort        = "POSTGRES_PORT"
	envMinioEndpoint = "MINIO_ENDPOINT"
	envMinioUser     = "MINIO_USER"
	envMinioPassword = "MINIO_PASSWORD"
	envMinioBucket   = "MINIO_BUCKET"
)

// Интервалы сглаживания демона.
const (
	defaultDebounceFlag = 3 * time.Second
	defaultCooldownFlag = 30 * time.Second
	defaultWatchRefresh = 30 * time.Second
)

// Config содержит всю конфигурацию демона.
type Config struct {
	ListenAddr   string
	CatalogPath  string
	SessionToken string

	DatabaseDSN string

	MinioEndpoint string
	MinioUser     string
	MinioPassword string
	MinioBucket   string
	MinioUseSSL   bool

	Debounce     time.Duration
	Cooldown     time.Duration
	WatchRefresh time.Duration
}

// parseFlags собирает конфигурацию из флагов и переменных окружения.
// lookupEnv инжектируется для тестируемости (обычно os.LookupEnv).
func parseFlags(args []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	getEnv := func(key, fallback string) string {
		if value, ok := lookupEnv(key); ok && value != "" {
			return value
		}
		return fallback
	}

	fs := flag.NewFlagSet("syncd", flag.ContinueOnError)

	listenAddr := fs.String("listen", getEnv(envListenAddr, defaultListenAddr),
		"Адрес локального управляющего API")
	catalogPath := fs.String("catalog", getEnv(envCatalogPath, defaultCatalogPath),
		"Путь к файлу локального каталога игр (SQLite)")
	sessionToken := fs.String("token", getEnv(envSessionToken, ""),
		"Токен сессии пользователя (JWT)")

	dbUser := fs.String("db-user", getEnv(envDBUser, defaultDBUser), "Пользователь PostgreSQL")
	dbPass := fs.String("db-pass", getEnv(envDBPass, defaultDBPass), "Пароль PostgreSQL")
	dbName := fs.String("db-name", getEnv(envDBName, defaultDBName), "Имя базы PostgreSQL")
	dbHost := fs.String("db-host", getEnv(envDBHost, defaultDBHost), "Хост PostgreSQL")
	dbPort := fs.String("db-port", getEnv(envDBPort, defaultDBPort), "Порт PostgreSQL")

	minioEndpoint := fs.String("minio-endpoint", getEnv(envMinioEndpoint, defaultMinioEndpoint),
		"Адрес объектного хранилища")
	minioUser := fs.String("minio-user", getEnv(envMinioUser, defaultMinioUser),
		"Логин объектного хранилища")
	minioPassword := fs.String("minio-pass", getEnv(envMinioPassword, defaultMinioPassword),
		"Пароль объектного хранилища")
	minioBucket := fs.String("minio-bucket", getEnv(envMinioBucket, defaultMinioBucket),
		"Бакет с архивами сохранений")
	minioUseSSL := fs.Bool("minio-ssl", false, "Использовать SSL для объектного хранилища")

	debounce := fs.Duration("debounce", defaultDebounceFlag,
		"Окно сглаживания файловых событий")
	cooldown := fs.Duration("cooldown", defaultCooldownFlag,
		"Минимальный интервал между циклами одной игры")
	watchRefresh := fs.Duration("watch-refresh", defaultWatchRefresh,
		"Интервал перечитывания списка отслеживаемых игр")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("ошибка разбора флагов: %w", err)
	}

	// sslmode=disable - небезопасно для продакшена, но удобно для локальной разработки
	//nolint:nosprintfhostport // DSN - это URL, а не просто host:port
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		*dbUser, *dbPass, *dbHost, *dbPort, *dbName)

	return &Config{
		ListenAddr:    *listenAddr,
		CatalogPath:   *catalogPath,
		SessionToken:  *sessionToken,
		DatabaseDSN:   dsn,
		MinioEndpoint: *minioEndpoint,
		MinioUser:     *minioUser,
		MinioPassword: *minioPassword,
		MinioBucket:   *minioBucket,
		MinioUseSSL:   *minioUseSSL,
		Debounce:      *debounce,
		Cooldown:      *cooldown,
		WatchRefresh:  *watchRefresh,
	}, nil
}
