// Package device реализует реестр устройств: разрешение идентичности
// текущей машины и ее регистрацию в облачном каталоге.
package device

import (
	"context"
	"log"
	"os"
	"runtime"

	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/repository"
	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
)

// Имя устройства по умолчанию, если hostname недоступен.
const fallbackDeviceName = "Unknown PC"

// ConfigStore определяет доступ к локальной конфигурации устройства.
type ConfigStore interface {
	// GetOrCreateMachineID возвращает постоянный идентификатор машины.
	GetOrCreateMachineID(ctx context.Context) (string, error)
	// DeviceName возвращает переопределенное имя устройства или пустую строку.
	DeviceName(ctx context.Context) (string, error)
}

// Registry отвечает за регистрацию и перечисление устройств пользователя.
type Registry struct {
	devices repository.DeviceRepository
	config  ConfigStore
}

// NewRegistry создает новый реестр устройств.
func NewRegistry(devices repository.DeviceRepository, config ConfigStore) *Registry {
	return &Registry{devices: devices, config: config}
}

// Register регистрирует текущую машину для пользователя и возвращает ее
// облачную запись. Повторные вызовы с той же машины сходятся к одной записи
// благодаря upsert по (user_id, machine_id).
//
// Ошибки не пробрасываются: неудачная регистрация не должна мешать запуску
// приложения, поэтому возвращается nil. Синхронизация при этом обязана
// завершиться быстрым отказом — ей нужен идентификатор устройства.
func (r *Registry) Register(ctx context.Context, userID string) *models.Device {
	machineID, err := r.config.GetOrCreateMachineID(ctx)
	if err != nil {
		log.Printf("[DeviceRegistry] Не удалось получить идентификатор машины: %v", err)
		return nil
	}

	name, err := r.config.DeviceName(ctx)
	if err != nil {
		log.Printf("[DeviceRegistry] Не удалось прочитать имя устройства: %v", err)
		name = ""
	}
	if name == "" {
		hostname, hostErr := os.Hostname()
		if hostErr != nil || hostname == "" {
			hostname = fallbackDeviceName
		}
		name = hostname
	}

	registered, err := r.devices.UpsertDevice(ctx, &models.Device{
		UserID:    userID,
		Name:      name,
		OS:        currentOS(),
		MachineID: machineID,
	})
	if err != nil {
		log.Printf("[DeviceRegistry] Регистрация устройства не удалась: %v", err)
		return nil
	}

	registered.IsCurrent = true
	return registered
}

// List возвращает устройства пользователя, помечая текущее по machine_id.
func (r *Registry) List(ctx context.Context, userID string) ([]models.Device, error) {
	machineID, err := r.config.GetOrCreateMachineID(ctx)
	if err != nil {
		log.Printf("[DeviceRegistry] Не удалось получить идентификатор машины: %v", err)
		machineID = ""
	}

	devices, err := r.devices.ListDevices(ctx, userID)
	if err != nil {
		return nil, err
	}

	for i := range devices {
		devices[i].IsCurrent = machineID != "" && devices[i].MachineID == machineID
	}
	return devices, nil
}

// Remove удаляет запись устройства. Запрет на удаление текущего устройства —
// ответственность вызывающей стороны.
func (r *Registry) Remove(ctx context.Context, deviceID string) error {
	return r.devices.DeleteDevice(ctx, deviceID)
}

// IsCurrentDevice сообщает, принадлежит ли запись текущей машине.
func (r *Registry) IsCurrentDevice(ctx context.Context, device *models.Device) bool {
	machineID, err := r.config.GetOrCreateMachineID(ctx)
	if err != nil {
		return false
	}
	return device.MachineID == machineID
}

// currentOS отображает runtime.GOOS на класс операционной системы устройства.
func currentOS() models.DeviceOS {
	switch runtime.GOOS {
	case "linux":
		return models.OSLinux
	case "darwin":
		return models.OSMacOS
	default:
		return models.OSWindows
	}
}
