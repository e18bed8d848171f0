package repository

import (
	"context"
	"fmt"
	"log"

	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
	"github.com/jmoiron/sqlx"
)

// ActivityRepository определяет методы для работы с журналом синхронизаций.
type ActivityRepository interface {
	// CreateActivity вставляет запись журнала. ID и отметка времени
	// назначаются сервером и возвращаются вызывающему, чтобы тот мог
	// согласовать свою оптимистичную локальную копию.
	CreateActivity(ctx context.Context, activity *models.SyncActivity) (*models.SyncActivity, error)
	// ListActivities возвращает записи журнала пользователя, новые первыми,
	// с именами игр и устройств для отображения. gameID опционален.
	ListActivities(ctx context.Context, userID string, gameID *string, limit, offset int) ([]models.SyncActivity, error)
}

// postgresActivityRepository реализует ActivityRepository для PostgreSQL.
type postgresActivityRepository struct {
	db *sqlx.DB
}

// NewPostgresActivityRepository создает новый экземпляр репозитория журнала.
func NewPostgresActivityRepository(db *sqlx.DB) ActivityRepository {
	return &postgresActivityRepository{db: db}
}

// CreateActivity записывает попытку операции в облачный журнал.
func (r *postgresActivityRepository) CreateActivity(
	ctx context.Context,
	activity *models.SyncActivity,
) (*models.SyncActivity, error) {
	query := `INSERT INTO sync_logs
	          (game_id, device_id, action, status, save_version_id, message, file_size, duration_ms)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id, created_at`

	confirmed := *activity
	err := r.db.QueryRowxContext(ctx, query,
		activity.GameID, activity.DeviceID, activity.Action, activity.Status,
		activity.SaveVersionID, activity.Message, activity.FileSize, activity.DurationMs,
	).Scan(&confirmed.ID, &confirmed.CreatedAt)
	if err != nil {
		log.Printf("[ActivityRepo] Ошибка записи в журнал для игры %s: %v", activity.GameID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на запись в журнал: %w", err)
	}

	log.Printf("[ActivityRepo] Запись журнала %s создана (игра: %s, действие: %s, статус: %s)",
		confirmed.ID, confirmed.GameID, confirmed.Action, confirmed.Status)
	return &confirmed, nil
}

// ListActivities возвращает журнал пользователя с данными для отображения.
func (r *postgresActivityRepository) ListActivities(
	ctx context.Context,
	userID string,
	gameID *string,
	limit, offset int,
) ([]models.SyncActivity, error) {
	baseQuery := `SELECT l.id, l.game_id, g.name AS game_name, g.cover_url AS game_cover,
	                     l.device_id, d.name AS device_name, l.action, l.status,
	                     l.save_version_id, l.message, l.file_size, l.duration_ms, l.created_at
	              FROM sync_logs l
	              JOIN games g ON g.id = l.game_id
	              LEFT JOIN devices d ON d.id = l.device_id
	              WHERE g.user_id=$1`

	activities := make([]models.SyncActivity, 0, limit)
	var err error
	if gameID != nil {
		query := baseQuery + ` AND l.game_id=$2 ORDER BY l.created_at DESC LIMIT $3 OFFSET $4`
		err = r.db.SelectContext(ctx, &activities, query, userID, *gameID, limit, offset)
	} else {
		query := baseQuery + ` ORDER BY l.created_at DESC LIMIT $2 OFFSET $3`
		err = r.db.SelectContext(ctx, &activities, query, userID, limit, offset)
	}
	if err != nil {
		log.Printf("[ActivityRepo] Ошибка при получении журнала пользователя %s: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение журнала: %w", err)
	}

	log.Printf("[ActivityRepo] Получено %d записей журнала пользователя %s", len(activities), userID)
	return activities, nil
}
