package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/identity"
	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/repository"
	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
	"github.com/go-chi/chi/v5"
)

// Devices определяет операции реестра устройств для обработчиков.
type Devices interface {
	List(ctx context.Context, userID string) ([]models.Device, error)
	Remove(ctx context.Context, deviceID string) error
}

// DeviceHandler обрабатывает HTTP-запросы, связанные с устройствами.
type DeviceHandler struct {
	registry Devices
	identity identity.Provider
}

// NewDeviceHandler создает новый экземпляр DeviceHandler.
func NewDeviceHandler(registry Devices, provider identity.Provider) *DeviceHandler {
	return &DeviceHandler{registry: registry, identity: provider}
}

// List обрабатывает GET запрос списка устройств пользователя.
// Текущее устройство помечено флагом is_current.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	user := h.identity.CurrentUser()
	if user == nil {
		http.Error(w, "Требуется вход в аккаунт", http.StatusUnauthorized)
		return
	}

	devices, err := h.registry.List(r.Context(), user.ID)
	if err != nil {
		log.Printf("[DeviceHandler:List] Ошибка получения списка устройств: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// Remove обрабатывает DELETE запрос на удаление устройства.
// Текущее устройство удалить нельзя: для этого его сначала надо
// деавторизовать с другого устройства.
func (h *DeviceHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user := h.identity.CurrentUser()
	if user == nil {
		http.Error(w, "Требуется вход в аккаунт", http.StatusUnauthorized)
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	if deviceID == "" {
		http.Error(w, "Не указан ID устройства", http.StatusBadRequest)
		return
	}

	devices, err := h.registry.List(r.Context(), user.ID)
	if err != nil {
		log.Printf("[DeviceHandler:Remove] Ошибка получения списка устройств: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	for _, device := range devices {
		if device.ID == deviceID && device.IsCurrent {
			log.Printf("[DeviceHandler:Remove] Попытка удалить текущее устройство %s", deviceID)
			http.Error(w, "Нельзя удалить текущее устройство", http.StatusForbidden)
			return
		}
	}

	if err = h.registry.Remove(r.Context(), deviceID); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			http.Error(w, "Устройство не найдено", http.StatusNotFound)
			return
		}
		log.Printf("[DeviceHandler:Remove] Ошибка удаления устройства %s: %v", deviceID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	log.Printf("[DeviceHandler:Remove] Устройство %s удалено", deviceID)
	w.WriteHeader(http.StatusNoContent)
}
