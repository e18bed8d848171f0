package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/repository"
	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Вспомогательная функция для создания мока БД и репозитория устройств.
func setupDeviceRepoMock(t *testing.T) (repository.DeviceRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := repository.NewPostgresDeviceRepository(sqlxDB)
	return repo, mock
}

func TestUpsertDevice(t *testing.T) {
	now := time.Now()
	query := regexp.QuoteMeta(
		`INSERT INTO devices (user_id, name, os, machine_id, last_seen_at)
	          VALUES ($1, $2, $3, $4, now())
	          ON CONFLICT (user_id, machine_id)
	          DO UPDATE SET name=EXCLUDED.name, last_seen_at=now()
	          RETURNING id, user_id, name, os, machine_id, last_seen_at, created_at`)

	device := &models.Device{
		UserID:    "user-1",
		Name:      "Gaming PC",
		OS:        models.OSLinux,
		MachineID: "machine-abc",
	}

	t.Run("Повторная регистрация возвращает ту же запись", func(t *testing.T) {
		repo, mock := setupDeviceRepoMock(t)
		rows := sqlmock.NewRows([]string{
			"id", "user_id", "name", "os", "machine_id", "last_seen_at", "created_at",
		}).AddRow("device-1", "user-1", "Gaming PC", "linux", "machine-abc", now, now.Add(-time.Hour))
		mock.ExpectQuery(query).
			WithArgs("user-1", "Gaming PC", models.OSLinux, "machine-abc").
			WillReturnRows(rows)

		registered, err := repo.UpsertDevice(context.Background(), device)

		require.NoError(t, err)
		assert.Equal(t, "device-1", registered.ID)
		assert.Equal(t, "machine-abc", registered.MachineID)
		assert.Equal(t, now, registered.LastSeenAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Ошибка базы данных", func(t *testing.T) {
		repo, mock := setupDeviceRepoMock(t)
		mock.ExpectQuery(query).
			WithArgs("user-1", "Gaming PC", models.OSLinux, "machine-abc").
			WillReturnError(errors.New("connection error"))

		registered, err := repo.UpsertDevice(context.Background(), device)

		require.Error(t, err)
		assert.Nil(t, registered)
		assert.Contains(t, err.Error(), "ошибка выполнения запроса на регистрацию устройства")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListDevices(t *testing.T) {
	now := time.Now()
	query := regexp.QuoteMeta(
		`SELECT id, user_id, name, os, machine_id, last_seen_at, created_at
	          FROM devices WHERE user_id=$1
	          ORDER BY last_seen_at DESC`)

	t.Run("Успешное получение списка", func(t *testing.T) {
		repo, mock := setupDeviceRepoMock(t)
		rows := sqlmock.NewRows([]string{
			"id", "user_id", "name", "os", "machine_id", "last_seen_at", "created_at",
		}).
			AddRow("device-1", "user-1", "Gaming PC", "linux", "machine-abc", now, now).
			AddRow("device-2", "user-1", "Laptop", "windows", "machine-def", now.Add(-time.Hour), now)
		mock.ExpectQuery(query).WithArgs("user-1").WillReturnRows(rows)

		devices, err := repo.ListDevices(context.Background(), "user-1")

		require.NoError(t, err)
		require.Len(t, devices, 2)
		assert.Equal(t, "Gaming PC", devices[0].Name, "свежее устройство первым")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Ошибка базы данных", func(t *testing.T) {
		repo, mock := setupDeviceRepoMock(t)
		mock.ExpectQuery(query).WithArgs("user-1").
			WillReturnError(errors.New("connection error"))

		_, err := repo.ListDevices(context.Background(), "user-1")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "ошибка выполнения запроса на получение списка устройств")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteDevice(t *testing.T) {
	query := regexp.QuoteMeta(`DELETE FROM devices WHERE id=$1`)

	t.Run("Успешное удаление", func(t *testing.T) {
		repo, mock := setupDeviceRepoMock(t)
		mock.ExpectExec(query).WithArgs("device-1").WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.DeleteDevice(context.Background(), "device-1")

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Устройство не найдено", func(t *testing.T) {
		repo, mock := setupDeviceRepoMock(t)
		mock.ExpectExec(query).WithArgs("device-404").WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.DeleteDevice(context.Background(), "device-404")

		require.ErrorIs(t, err, repository.ErrDeviceNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
