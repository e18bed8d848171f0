// Package handlers реализует HTTP-обработчики локального управляющего API.
// API слушает только локальный интерфейс и служит панелью управления
// демоном синхронизации.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/catalog"
	syncsvc "github.com/Felipecabreramarcon/sync-saves-sub000/internal/sync"
	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
	"github.com/go-chi/chi/v5"
)

// Orchestrator определяет операции ядра синхронизации, нужные обработчикам.
type Orchestrator interface {
	SyncGame(ctx context.Context, gameID string, opts syncsvc.SyncOptions) (*syncsvc.SyncResult, error)
	RestoreGame(ctx context.Context, gameID string, opts syncsvc.RestoreOptions) (*syncsvc.RestoreResult, error)
	State() syncsvc.State
	Activities() []models.SyncActivity
	RefreshActivities(ctx context.Context, gameID *string) error
}

// Trigger передает запрос на синхронизацию планировщику.
type Trigger interface {
	Trigger(gameID string, force bool)
}

// SyncHandler обрабатывает HTTP-запросы, связанные с синхронизацией.
type SyncHandler struct {
	orchestrator Orchestrator
	scheduler    Trigger
}

// NewSyncHandler создает новый экземпляр SyncHandler.
func NewSyncHandler(orchestrator Orchestrator, scheduler Trigger) *SyncHandler {
	return &SyncHandler{orchestrator: orchestrator, scheduler: scheduler}
}

// Status обрабатывает GET запрос на получение состояния демона.
func (h *SyncHandler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.orchestrator.State())
}

// Sync обрабатывает POST запрос на синхронизацию игры.
// Параметр force=true выполняет цикл немедленно и возвращает его результат;
// без него запрос уходит в планировщик и сглаживается как файловое событие.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		http.Error(w, "Не указан ID игры", http.StatusBadRequest)
		return
	}

	force := r.URL.Query().Get("force") == "true"
	log.Printf("[SyncHandler:Sync] Запрос синхронизации игры %s (force=%v)", gameID, force)

	if !force {
		h.scheduler.Trigger(gameID, false)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("Синхронизация запланирована\n"))
		return
	}

	result, err := h.orchestrator.SyncGame(r.Context(), gameID, syncsvc.SyncOptions{Force: true})
	if err != nil {
		writeSyncError(w, gameID, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RestoreRequest представляет тело запроса на восстановление.
type RestoreRequest struct {
	// FilePath — ключ конкретной версии. Пустой означает последнюю версию.
	FilePath string `json:"file_path"`
}

// Restore обрабатывает POST запрос на восстановление сохранений из облака.
func (h *SyncHandler) Restore(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		http.Error(w, "Не указан ID игры", http.StatusBadRequest)
		return
	}

	// Тело опционально: без него восстанавливается последняя версия.
	var req RestoreRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("[SyncHandler:Restore] Ошибка декодирования запроса: %v", err)
			http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
			return
		}
	}

	log.Printf("[SyncHandler:Restore] Запрос восстановления игры %s", gameID)

	result, err := h.orchestrator.RestoreGame(r.Context(), gameID, syncsvc.RestoreOptions{
		FilePath: req.FilePath,
	})
	if err != nil {
		writeSyncError(w, gameID, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Activities обрабатывает GET запрос журнала операций. Перед ответом журнал
// по возможности освежается из облака; недоступное облако не ломает ответ.
// Параметры: game_id, show_skipped=true, errors_first=true, collapse=false.
func (h *SyncHandler) Activities(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var gameID *string
	if id := query.Get("game_id"); id != "" {
		gameID = &id
	}

	if err := h.orchestrator.RefreshActivities(r.Context(), gameID); err != nil {
		log.Printf("[SyncHandler:Activities] Облачный журнал недоступен, отдаем локальный: %v", err)
	}

	items := h.orchestrator.Activities()
	if gameID != nil {
		filtered := make([]models.SyncActivity, 0, len(items))
		for _, item := range items {
			if item.GameID == *gameID {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	if query.Get("show_skipped") != "true" {
		items = syncsvc.VisibleActivities(items)
	}
	if query.Get("collapse") != "false" {
		items = syncsvc.CollapseConsecutive(items, 0)
	}
	if query.Get("errors_first") == "true" {
		items = syncsvc.SortErrorsFirst(items)
	}

	writeJSON(w, http.StatusOK, items)
}

// writeSyncError отображает ошибки ядра синхронизации на HTTP-статусы.
func writeSyncError(w http.ResponseWriter, gameID string, err error) {
	switch {
	case errors.Is(err, syncsvc.ErrSyncInFlight):
		http.Error(w, "Синхронизация этой игры уже выполняется", http.StatusConflict)
	case errors.Is(err, catalog.ErrGameNotFound):
		http.Error(w, "Игра не найдена", http.StatusNotFound)
	case errors.Is(err, syncsvc.ErrNoVersions):
		http.Error(w, "Облачные версии сохранений отсутствуют", http.StatusNotFound)
	case errors.Is(err, syncsvc.ErrNotAuthenticated):
		http.Error(w, "Требуется вход в аккаунт", http.StatusUnauthorized)
	case errors.Is(err, syncsvc.ErrSyncDisabled):
		http.Error(w, "Синхронизация для этой игры отключена", http.StatusConflict)
	default:
		log.Printf("[SyncHandler] Внутренняя ошибка для игры %s: %v", gameID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
	}
}

// writeJSON кодирует ответ в JSON с нужным статусом.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[Handlers] Ошибка кодирования ответа: %v", err)
	}
}
