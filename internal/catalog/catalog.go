// Package catalog реализует локальный каталог игр: какие папки сохранений
// отслеживаются на этом устройстве, где они лежат и когда синхронизировались.
// Каталог хранится в локальной базе SQLite рядом с приложением; облачные
// записи связываются через slug и поле cloud_game_id.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Драйвер SQLite, импортируем для регистрации
)

// Ключи таблицы device_config.
const (
	keyMachineID  = "machine_id"
	keyDeviceName = "device_name"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	slug                TEXT NOT NULL UNIQUE,
	cover_url           TEXT,
	platform            TEXT NOT NULL DEFAULT 'other',
	local_path          TEXT NOT NULL,
	sync_enabled        INTEGER NOT NULL DEFAULT 1,
	last_synced_at      TIMESTAMP,
	last_synced_version INTEGER NOT NULL DEFAULT 0,
	status              TEXT NOT NULL DEFAULT 'idle',
	cloud_game_id       TEXT,
	created_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS device_config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Catalog предоставляет доступ к локальному каталогу игр.
type Catalog struct {
	db *sqlx.DB
}

// NewCatalog открывает (или создает) локальный каталог по указанному пути.
func NewCatalog(path string) (*Catalog, error) {
	log.Printf("[Catalog] Открытие локального каталога '%s'...", path)

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия локального каталога: %w", err)
	}

	// SQLite поддерживает только одного писателя.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(schema); err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			log.Printf("[Catalog] Ошибка закрытия каталога после неудачной миграции: %v", closeErr)
		}
		return nil, fmt.Errorf("ошибка миграции локального каталога: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Close закрывает соединение с каталогом.
func (c *Catalog) Close() error {
	return c.db.Close()
}

const gameColumns = `id, name, slug, cover_url, platform, local_path, sync_enabled,
	last_synced_at, last_synced_version, status, cloud_game_id, created_at, updated_at`

// AddGame добавляет игру в каталог. ID и slug выводятся из названия,
// если не заданы заранее.
func (c *Catalog) AddGame(ctx context.Context, game *models.Game) error {
	if game.ID == "" {
		game.ID = uuid.NewString()
	}
	if game.Slug == "" {
		game.Slug = models.Slugify(game.Name)
	}
	if game.Status == "" {
		game.Status = models.StatusIdle
	}
	if game.Platform == "" {
		game.Platform = models.PlatformOther
	}
	now := time.Now().UTC()
	game.CreatedAt = now
	game.UpdatedAt = now

	query := `INSERT INTO games
	          (id, name, slug, cover_url, platform, local_path, sync_enabled, status, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := c.db.ExecContext(ctx, query,
		game.ID, game.Name, game.Slug, game.CoverURL, game.Platform,
		game.LocalPath, game.SyncEnabled, game.Status, game.CreatedAt, game.UpdatedAt)
	if err != nil {
		log.Printf("[Catalog] Ошибка добавления игры '%s': %v", game.Name, err)
		return fmt.Errorf("ошибка добавления игры в каталог: %w", err)
	}

	log.Printf("[Catalog] Игра '%s' добавлена (ID: %s, slug: %s)", game.Name, game.ID, game.Slug)
	return nil
}

// GetGame находит игру по ID.
func (c *Catalog) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id=?`
	var game models.Game

	err := c.db.GetContext(ctx, &game, query, gameID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[Catalog] Игра с ID %s не найдена", gameID)
			return nil, ErrGameNotFound
		}
		log.Printf("[Catalog] Ошибка при поиске игры %s: %v", gameID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение игры: %w", err)
	}

	return &game, nil
}

// ListGames возвращает все игры каталога в порядке добавления.
func (c *Catalog) ListGames(ctx context.Context) ([]models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games ORDER BY created_at`

	games := make([]models.Game, 0)
	if err := c.db.SelectContext(ctx, &games, query); err != nil {
		log.Printf("[Catalog] Ошибка при получении списка игр: %v", err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение списка игр: %w", err)
	}
	return games, nil
}

// ListSyncEnabled возвращает игры с включенной синхронизацией —
// их папки отслеживает файловый наблюдатель.
func (c *Catalog) ListSyncEnabled(ctx context.Context) ([]models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE sync_enabled=1 ORDER BY created_at`

	games := make([]models.Game, 0)
	if err := c.db.SelectContext(ctx, &games, query); err != nil {
		log.Printf("[Catalog] Ошибка при получении списка отслеживаемых игр: %v", err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение отслеживаемых игр: %w", err)
	}
	return games, nil
}

// UpdateGame сохраняет изменяемые настройки игры.
func (c *Catalog) UpdateGame(ctx context.Context, game *models.Game) error {
	query := `UPDATE games
	          SET name=?, cover_url=?, platform=?, local_path=?, sync_enabled=?, updated_at=?
	          WHERE id=?`
	result, err := c.db.ExecContext(ctx, query,
		game.Name, game.CoverURL, game.Platform, game.LocalPath,
		game.SyncEnabled, time.Now().UTC(), game.ID)
	if err != nil {
		log.Printf("[Catalog] Ошибка обновления игры %s: %v", game.ID, err)
		return fmt.Errorf("ошибка выполнения запроса на обновление игры: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrGameNotFound
	}
	return nil
}

// UpdateSyncResult фиксирует исход цикла синхронизации в каталоге.
func (c *Catalog) UpdateSyncResult(
	ctx context.Context,
	gameID string,
	status models.SyncStatus,
	version int64,
	syncedAt time.Time,
	cloudGameID *string,
) error {
	query := `UPDATE games
	          SET status=?, last_synced_version=?, last_synced_at=?, cloud_game_id=COALESCE(?, cloud_game_id), updated_at=?
	          WHERE id=?`
	result, err := c.db.ExecContext(ctx, query,
		status, version, syncedAt.UTC(), cloudGameID, time.Now().UTC(), gameID)
	if err != nil {
		log.Printf("[Catalog] Ошибка записи результата синхронизации для игры %s: %v", gameID, err)
		return fmt.Errorf("ошибка выполнения запроса на запись результата синхронизации: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrGameNotFound
	}
	return nil
}

// SetStatus обновляет только текущий статус игры (например, на время цикла).
func (c *Catalog) SetStatus(ctx context.Context, gameID string, status models.SyncStatus) error {
	query := `UPDATE games SET status=?, updated_at=? WHERE id=?`
	if _, err := c.db.ExecContext(ctx, query, status, time.Now().UTC(), gameID); err != nil {
		log.Printf("[Catalog] Ошибка обновления статуса игры %s: %v", gameID, err)
		return fmt.Errorf("ошибка выполнения запроса на обновление статуса: %w", err)
	}
	return nil
}

// DeleteGame удаляет игру из локального каталога.
// Облачные данные должны быть удалены до этого вызова.
func (c *Catalog) DeleteGame(ctx context.Context, gameID string) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM games WHERE id=?`, gameID)
	if err != nil {
		log.Printf("[Catalog] Ошибка удаления игры %s: %v", gameID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление игры: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrGameNotFound
	}

	log.Printf("[Catalog] Игра %s удалена из каталога", gameID)
	return nil
}

// GetOrCreateMachineID возвращает постоянный идентификатор этой машины.
// Идентификатор генерируется один раз и переживает перезапуски приложения:
// именно он связывает устройство с его облачной записью.
func (c *Catalog) GetOrCreateMachineID(ctx context.Context) (string, error) {
	var machineID string
	err := c.db.GetContext(ctx, &machineID,
		`SELECT value FROM device_config WHERE key=?`, keyMachineID)
	if err == nil {
		return machineID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Printf("[Catalog] Ошибка чтения идентификатора машины: %v", err)
		return "", fmt.Errorf("ошибка чтения идентификатора машины: %w", err)
	}

	machineID = uuid.NewString()
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO device_config (key, value) VALUES (?, ?)`, keyMachineID, machineID)
	if err != nil {
		log.Printf("[Catalog] Ошибка сохранения идентификатора машины: %v", err)
		return "", fmt.Errorf("ошибка сохранения идентификатора машины: %w", err)
	}

	log.Printf("[Catalog] Сгенерирован новый идентификатор машины: %s", machineID)
	return machineID, nil
}

// DeviceName возвращает переопределенное пользователем имя устройства
// или пустую строку, если переопределения нет.
func (c *Catalog) DeviceName(ctx context.Context) (string, error) {
	var name string
	err := c.db.GetContext(ctx, &name,
		`SELECT value FROM device_config WHERE key=?`, keyDeviceName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("ошибка чтения имени устройства: %w", err)
	}
	return name, nil
}

// SetDeviceName сохраняет пользовательское имя устройства.
func (c *Catalog) SetDeviceName(ctx context.Context, name string) error {
	query := `INSERT INTO device_config (key, value) VALUES (?, ?)
	          ON CONFLICT (key) DO UPDATE SET value=excluded.value`
	if _, err := c.db.ExecContext(ctx, query, keyDeviceName, name); err != nil {
		return fmt.Errorf("ошибка сохранения имени устройства: %w", err)
	}
	return nil
}

// Кастомные ошибки каталога.
var (
	ErrGameNotFound = errors.New("игра не найдена в каталоге")
)
