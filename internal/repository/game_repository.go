package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// GameRepository определяет методы для работы с облачными записями игр.
type GameRepository interface {
	// GetOrCreateGame находит облачную запись игры по (user_id, slug)
	// или создает ее, если записи еще нет. Возвращает облачный ID игры.
	GetOrCreateGame(ctx context.Context, userID, name, slug string, coverURL *string) (string, error)
	// UpsertGamePath записывает привязку игры к локальному пути на устройстве.
	// Конфликт по (game_id, device_id) заменяет привязку, а не дублирует.
	UpsertGamePath(ctx context.Context, gameID, deviceID, localPath string, syncEnabled bool) (string, error)
	// DeleteGame удаляет облачную запись игры вместе со всеми ссылающимися
	// на нее данными (журнал, версии, привязки) — каскад выполняется первым.
	DeleteGame(ctx context.Context, gameID string) error
}

// postgresGameRepository реализует GameRepository для PostgreSQL.
type postgresGameRepository struct {
	db *sqlx.DB
}

// NewPostgresGameRepository создает новый экземпляр репозитория игр.
func NewPostgresGameRepository(db *sqlx.DB) GameRepository {
	return &postgresGameRepository{db: db}
}

// GetOrCreateGame находит игру по (user_id, slug) или создает новую запись.
// Отсутствие строки — ожидаемый исход, а не ошибка запроса.
func (r *postgresGameRepository) GetOrCreateGame(
	ctx context.Context,
	userID, name, slug string,
	coverURL *string,
) (string, error) {
	selectQuery := `SELECT id FROM games WHERE user_id=$1 AND slug=$2`
	var gameID string

	err := r.db.GetContext(ctx, &gameID, selectQuery, userID, slug)
	if err == nil {
		log.Printf("[GameRepo] Найдена облачная игра '%s' (ID: %s)", slug, gameID)
		return gameID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Printf("[GameRepo] Ошибка при поиске игры '%s': %v", slug, err)
		return "", fmt.Errorf("ошибка выполнения запроса на поиск игры: %w", err)
	}

	insertQuery := `INSERT INTO games (user_id, name, slug, cover_url) VALUES ($1, $2, $3, $4) RETURNING id`
	err = r.db.QueryRowxContext(ctx, insertQuery, userID, name, slug, coverURL).Scan(&gameID)
	if err != nil {
		// Параллельная регистрация той же игры с другого устройства: запись
		// уже появилась между SELECT и INSERT, перечитываем ее.
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Printf("[GameRepo] Игра '%s' уже создана параллельно, повторный поиск", slug)
			if retryErr := r.db.GetContext(ctx, &gameID, selectQuery, userID, slug); retryErr != nil {
				return "", fmt.Errorf("ошибка повторного поиска игры после конфликта: %w", retryErr)
			}
			return gameID, nil
		}
		log.Printf("[GameRepo] Ошибка при создании игры '%s': %v", slug, err)
		return "", fmt.Errorf("ошибка выполнения запроса на создание игры: %w", err)
	}

	log.Printf("[GameRepo] Создана облачная игра '%s' (ID: %s)", slug, gameID)
	return gameID, nil
}

// UpsertGamePath записывает, где на данном устройстве лежит сохранение игры.
func (r *postgresGameRepository) UpsertGamePath(
	ctx context.Context,
	gameID, deviceID, localPath string,
	syncEnabled bool,
) (string, error) {
	query := `INSERT INTO game_paths (game_id, device_id, local_path, sync_enabled)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (game_id, device_id)
	          DO UPDATE SET local_path=EXCLUDED.local_path, sync_enabled=EXCLUDED.sync_enabled, updated_at=now()
	          RETURNING id`
	var pathID string

	err := r.db.QueryRowxContext(ctx, query, gameID, deviceID, localPath, syncEnabled).Scan(&pathID)
	if err != nil {
		log.Printf("[GameRepo] Ошибка при записи привязки пути для игры %s: %v", gameID, err)
		return "", fmt.Errorf("ошибка выполнения запроса на запись привязки пути: %w", err)
	}

	log.Printf("[GameRepo] Привязка пути обновлена (ID: %s, игра: %s, устройство: %s)", pathID, gameID, deviceID)
	return pathID, nil
}

// DeleteGame удаляет облачные данные игры. Сначала каскадом удаляются
// журнал, версии и привязки, затем сама запись игры: игра не должна
// исчезнуть, пока на нее ссылаются другие таблицы.
func (r *postgresGameRepository) DeleteGame(ctx context.Context, gameID string) error {
	cascade := []struct {
		name  string
		query string
	}{
		{"журнала синхронизаций", `DELETE FROM sync_logs WHERE game_id=$1`},
		{"версий сохранений", `DELETE FROM save_versions WHERE game_id=$1`},
		{"привязок путей", `DELETE FROM game_paths WHERE game_id=$1`},
		{"записи игры", `DELETE FROM games WHERE id=$1`},
	}

	for _, step := range cascade {
		if _, err := r.db.ExecContext(ctx, step.query, gameID); err != nil {
			log.Printf("[GameRepo] Ошибка удаления %s для игры %s: %v", step.name, gameID, err)
			return fmt.Errorf("ошибка удаления %s: %w", step.name, err)
		}
	}

	log.Printf("[GameRepo] Облачные данные игры %s полностью удалены", gameID)
	return nil
}
