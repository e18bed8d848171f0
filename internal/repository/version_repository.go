package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// VersionRepository определяет методы для работы с версиями сохранений.
type VersionRepository interface {
	// NextVersion возвращает следующий номер версии для игры (max+1, для
	// первой версии — 1). Должен вызываться в рамках той же логической
	// операции, что и CreateVersion.
	NextVersion(ctx context.Context, gameID string) (int64, error)
	// CreateVersion снимает флаг is_latest с предыдущей версии и вставляет
	// новую строку с is_latest=true. Два отдельных запроса, не транзакция:
	// между ними читатель может увидеть игру без последней версии, это
	// самовосстанавливающееся окно (см. FindLatestVersion).
	CreateVersion(ctx context.Context, version *models.SaveVersion) error
	// GetLatestChecksum возвращает контрольную сумму версии с is_latest=true.
	// Отсутствие такой версии — ожидаемый исход (ErrLatestNotFound).
	GetLatestChecksum(ctx context.Context, gameID string) (string, error)
	// FindLatestVersion возвращает самую свежую версию по времени создания.
	// Используется как fallback, когда флаг is_latest временно отсутствует.
	FindLatestVersion(ctx context.Context, gameID string) (*models.SaveVersion, error)
	// GetVersionByID находит версию по ее ID.
	GetVersionByID(ctx context.Context, versionID string) (*models.SaveVersion, error)
	// ListVersions возвращает версии игры с пагинацией, новые первыми.
	ListVersions(ctx context.Context, gameID string, limit, offset int) ([]models.SaveVersion, error)
	// AttachAnalysis прикрепляет к версии результаты анализа.
	// Единственное допустимое изменение версии после создания.
	AttachAnalysis(ctx context.Context, versionID string, analysis map[string]any) error
}

// postgresVersionRepository реализует VersionRepository для PostgreSQL.
type postgresVersionRepository struct {
	db *sqlx.DB
}

// NewPostgresVersionRepository создает новый экземпляр репозитория версий.
func NewPostgresVersionRepository(db *sqlx.DB) VersionRepository {
	return &postgresVersionRepository{db: db}
}

// NextVersion вычисляет следующий номер версии для игры.
func (r *postgresVersionRepository) NextVersion(ctx context.Context, gameID string) (int64, error) {
	query := `SELECT COALESCE(MAX(version), 0) + 1 FROM save_versions WHERE game_id=$1`
	var next int64

	err := r.db.GetContext(ctx, &next, query, gameID)
	if err != nil {
		log.Printf("[VersionRepo] Ошибка вычисления номера версии для игры %s: %v", gameID, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на вычисление номера версии: %w", err)
	}

	log.Printf("[VersionRepo] Следующий номер версии для игры %s: %d", gameID, next)
	return next, nil
}

// CreateVersion создает новую версию сохранения и делает ее последней.
func (r *postgresVersionRepository) CreateVersion(ctx context.Context, version *models.SaveVersion) error {
	// Шаг 1: снимаем флаг is_latest с текущей последней версии.
	clearQuery := `UPDATE save_versions SET is_latest=false WHERE game_id=$1 AND is_latest=true`
	if _, err := r.db.ExecContext(ctx, clearQuery, version.GameID); err != nil {
		log.Printf("[VersionRepo] Ошибка снятия флага is_latest для игры %s: %v", version.GameID, err)
		return fmt.Errorf("ошибка снятия флага последней версии: %w", err)
	}

	// Шаг 2: вставляем новую версию с is_latest=true.
	insertQuery := `INSERT INTO save_versions
	          (id, game_id, device_id, version, file_path, file_size, checksum, is_latest, file_modified_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8)
	          RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, insertQuery,
		version.ID, version.GameID, version.DeviceID, version.Version,
		version.FilePath, version.FileSize, version.Checksum, version.FileModifiedAt,
	).Scan(&version.CreatedAt)
	if err != nil {
		// Идентификаторы версий генерируются заново для каждой загрузки,
		// поэтому конфликт уникальности означает логическую ошибку вызова.
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Printf("[VersionRepo] Версия с путем '%s' уже существует", version.FilePath)
			return fmt.Errorf("версия с путем '%s' уже существует: %w", version.FilePath, ErrVersionExists)
		}
		log.Printf("[VersionRepo] Ошибка создания версии %d для игры %s: %v",
			version.Version, version.GameID, err)
		return fmt.Errorf("ошибка выполнения запроса на создание версии: %w", err)
	}

	version.IsLatest = true
	log.Printf("[VersionRepo] Версия %d (ID: %s) создана для игры %s",
		version.Version, version.ID, version.GameID)
	return nil
}

// GetLatestChecksum возвращает контрольную сумму последней версии игры.
func (r *postgresVersionRepository) GetLatestChecksum(ctx context.Context, gameID string) (string, error) {
	query := `SELECT checksum FROM save_versions WHERE game_id=$1 AND is_latest=true`
	var cs string

	err := r.db.GetContext(ctx, &cs, query, gameID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[VersionRepo] Последняя версия для игры %s не найдена", gameID)
			return "", ErrLatestNotFound
		}
		log.Printf("[VersionRepo] Ошибка получения контрольной суммы для игры %s: %v", gameID, err)
		return "", fmt.Errorf("ошибка выполнения запроса на получение контрольной суммы: %w", err)
	}

	return cs, nil
}

// FindLatestVersion находит самую свежую версию игры по времени создания.
// Работает и в окне, когда флаг is_latest временно снят.
func (r *postgresVersionRepository) FindLatestVersion(
	ctx context.Context,
	gameID string,
) (*models.SaveVersion, error) {
	query := `SELECT id, game_id, device_id, version, file_path, file_size, checksum,
	                 is_latest, file_modified_at, created_at
	          FROM save_versions
	          WHERE game_id=$1
	          ORDER BY created_at DESC
	          LIMIT 1`
	var version models.SaveVersion

	err := r.db.GetContext(ctx, &version, query, gameID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[VersionRepo] Версии для игры %s отсутствуют", gameID)
			return nil, ErrVersionNotFound
		}
		log.Printf("[VersionRepo] Ошибка поиска свежей версии для игры %s: %v", gameID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на поиск свежей версии: %w", err)
	}

	log.Printf("[VersionRepo] Найдена свежая версия %d (ID: %s) для игры %s",
		version.Version, version.ID, gameID)
	return &version, nil
}

// GetVersionByID находит конкретную версию по ее ID.
func (r *postgresVersionRepository) GetVersionByID(
	ctx context.Context,
	versionID string,
) (*models.SaveVersion, error) {
	query := `SELECT id, game_id, device_id, version, file_path, file_size, checksum,
	                 is_latest, file_modified_at, created_at
	          FROM save_versions WHERE id=$1`
	var version models.SaveVersion

	err := r.db.GetContext(ctx, &version, query, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[VersionRepo] Версия с ID %s не найдена", versionID)
			return nil, ErrVersionNotFound
		}
		log.Printf("[VersionRepo] Ошибка при поиске версии %s: %v", versionID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение версии: %w", err)
	}

	return &version, nil
}

// ListVersions возвращает список версий игры с именами устройств для отображения.
func (r *postgresVersionRepository) ListVersions(
	ctx context.Context,
	gameID string,
	limit, offset int,
) ([]models.SaveVersion, error) {
	query := `SELECT v.id, v.game_id, v.device_id, v.version, v.file_path, v.file_size,
	                 v.checksum, v.is_latest, v.file_modified_at, v.created_at,
	                 d.name AS device_name
	          FROM save_versions v
	          LEFT JOIN devices d ON d.id = v.device_id
	          WHERE v.game_id=$1
	          ORDER BY v.created_at DESC
	          LIMIT $2 OFFSET $3`

	versions := make([]models.SaveVersion, 0, limit)
	err := r.db.SelectContext(ctx, &versions, query, gameID, limit, offset)
	if err != nil {
		log.Printf("[VersionRepo] Ошибка при получении списка версий для игры %s: %v", gameID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение списка версий: %w", err)
	}

	log.Printf("[VersionRepo] Получено %d версий для игры %s (limit=%d, offset=%d)",
		len(versions), gameID, limit, offset)
	return versions, nil
}

// AttachAnalysis сохраняет извлеченные из сохранения метрики в формате JSON.
// Значения ограничены замкнутым набором примитивов: произвольная структура
// валидируется только на этой границе.
func (r *postgresVersionRepository) AttachAnalysis(
	ctx context.Context,
	versionID string,
	analysis map[string]any,
) error {
	for key, value := range analysis {
		switch value.(type) {
		case string, bool, int, int64, float64:
		default:
			return fmt.Errorf("недопустимый тип значения анализа для ключа '%s': %T", key, value)
		}
	}

	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("ошибка кодирования результатов анализа: %w", err)
	}

	query := `UPDATE save_versions SET analysis=$2 WHERE id=$1`
	result, err := r.db.ExecContext(ctx, query, versionID, payload)
	if err != nil {
		log.Printf("[VersionRepo] Ошибка сохранения анализа для версии %s: %v", versionID, err)
		return fmt.Errorf("ошибка выполнения запроса на сохранение анализа: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		log.Printf("[VersionRepo] Версия %s не найдена при сохранении анализа", versionID)
		return ErrVersionNotFound
	}

	log.Printf("[VersionRepo] Результаты анализа прикреплены к версии %s", versionID)
	return nil
}

// Кастомные ошибки репозитория версий.
var (
	ErrVersionNotFound = errors.New("версия сохранения не найдена")
	ErrLatestNotFound  = errors.New("последняя версия не отмечена")
	ErrVersionExists   = errors.New("версия с таким путем уже существует")
)
