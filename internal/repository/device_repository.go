package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
	"github.com/jmoiron/sqlx"
)

// DeviceRepository определяет методы для работы с записями устройств.
type DeviceRepository interface {
	// UpsertDevice создает или обновляет запись устройства по ключу
	// (user_id, machine_id), обновляя имя и отметку last_seen_at.
	UpsertDevice(ctx context.Context, device *models.Device) (*models.Device, error)
	// ListDevices возвращает все устройства пользователя, новые первыми.
	ListDevices(ctx context.Context, userID string) ([]models.Device, error)
	// DeleteDevice удаляет запись устройства по ID.
	DeleteDevice(ctx context.Context, deviceID string) error
}

// postgresDeviceRepository реализует DeviceRepository для PostgreSQL.
type postgresDeviceRepository struct {
	db *sqlx.DB
}

// NewPostgresDeviceRepository создает новый экземпляр репозитория устройств.
func NewPostgresDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &postgresDeviceRepository{db: db}
}

// UpsertDevice регистрирует устройство. Повторная регистрация с той же машины
// обновляет существующую запись, поэтому дубликаты не возникают.
func (r *postgresDeviceRepository) UpsertDevice(
	ctx context.Context,
	device *models.Device,
) (*models.Device, error) {
	query := `INSERT INTO devices (user_id, name, os, machine_id, last_seen_at)
	          VALUES ($1, $2, $3, $4, now())
	          ON CONFLICT (user_id, machine_id)
	          DO UPDATE SET name=EXCLUDED.name, last_seen_at=now()
	          RETURNING id, user_id, name, os, machine_id, last_seen_at, created_at`
	var registered models.Device

	err := r.db.GetContext(ctx, &registered, query,
		device.UserID, device.Name, device.OS, device.MachineID)
	if err != nil {
		log.Printf("[DeviceRepo] Ошибка регистрации устройства '%s': %v", device.MachineID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на регистрацию устройства: %w", err)
	}

	log.Printf("[DeviceRepo] Устройство '%s' зарегистрировано (ID: %s)", registered.Name, registered.ID)
	return &registered, nil
}

// ListDevices возвращает устройства пользователя, отсортированные по last_seen_at.
func (r *postgresDeviceRepository) ListDevices(ctx context.Context, userID string) ([]models.Device, error) {
	query := `SELECT id, user_id, name, os, machine_id, last_seen_at, created_at
	          FROM devices WHERE user_id=$1
	          ORDER BY last_seen_at DESC`

	devices := make([]models.Device, 0)
	err := r.db.SelectContext(ctx, &devices, query, userID)
	if err != nil {
		log.Printf("[DeviceRepo] Ошибка при получении списка устройств пользователя %s: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение списка устройств: %w", err)
	}

	log.Printf("[DeviceRepo] Получено %d устройств пользователя %s", len(devices), userID)
	return devices, nil
}

// DeleteDevice удаляет запись устройства.
// Запрет на удаление текущего устройства обеспечивает вызывающая сторона.
func (r *postgresDeviceRepository) DeleteDevice(ctx context.Context, deviceID string) error {
	query := `DELETE FROM devices WHERE id=$1`

	result, err := r.db.ExecContext(ctx, query, deviceID)
	if err != nil {
		log.Printf("[DeviceRepo] Ошибка удаления устройства %s: %v", deviceID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление устройства: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		log.Printf("[DeviceRepo] Устройство %s не найдено при удалении", deviceID)
		return ErrDeviceNotFound
	}

	log.Printf("[DeviceRepo] Устройство %s удалено", deviceID)
	return nil
}

// Кастомные ошибки репозитория устройств.
var (
	ErrDeviceNotFound = errors.New("устройство не найдено")
)
