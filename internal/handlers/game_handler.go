package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/catalog"
	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
	"github.com/go-chi/chi/v5"
)

// LocalCatalog определяет операции локального каталога игр для обработчиков.
type LocalCatalog interface {
	AddGame(ctx context.Context, game *models.Game) error
	GetGame(ctx context.Context, gameID string) (*models.Game, error)
	ListGames(ctx context.Context) ([]models.Game, error)
	UpdateGame(ctx context.Context, game *models.Game) error
	DeleteGame(ctx context.Context, gameID string) error
}

// CloudGames определяет операции над облачными записями игр.
type CloudGames interface {
	DeleteGame(ctx context.Context, gameID string) error
}

// CloudVersions определяет операции чтения облачных версий.
type CloudVersions interface {
	ListVersions(ctx context.Context, gameID string, limit, offset int) ([]models.SaveVersion, error)
}

// GameHandler обрабатывает HTTP-запросы, связанные с каталогом игр.
type GameHandler struct {
	catalog  LocalCatalog
	cloud    CloudGames
	versions CloudVersions
}

// NewGameHandler создает новый экземпляр GameHandler.
func NewGameHandler(localCatalog LocalCatalog, cloud CloudGames, versions CloudVersions) *GameHandler {
	return &GameHandler{catalog: localCatalog, cloud: cloud, versions: versions}
}

// List обрабатывает GET запрос списка игр каталога.
func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	games, err := h.catalog.ListGames(r.Context())
	if err != nil {
		log.Printf("[GameHandler:List] Ошибка чтения каталога: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// Get обрабатывает GET запрос одной игры.
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	game, err := h.catalog.GetGame(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, catalog.ErrGameNotFound) {
			http.Error(w, "Игра не найдена", http.StatusNotFound)
			return
		}
		log.Printf("[GameHandler:Get] Ошибка чтения игры %s: %v", gameID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// AddGameRequest представляет тело запроса на добавление игры.
type AddGameRequest struct {
	Name        string  `json:"name"`
	LocalPath   string  `json:"local_path"`
	CoverURL    *string `json:"cover_url,omitempty"`
	Platform    string  `json:"platform,omitempty"`
	SyncEnabled *bool   `json:"sync_enabled,omitempty"`
}

// Add обрабатывает POST запрос на добавление игры в каталог.
func (h *GameHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[GameHandler:Add] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.LocalPath == "" {
		http.Error(w, "Название и путь к папке сохранений обязательны", http.StatusBadRequest)
		return
	}

	// Синхронизация новых игр включена, пока не выключат явно.
	syncEnabled := true
	if req.SyncEnabled != nil {
		syncEnabled = *req.SyncEnabled
	}

	game := &models.Game{
		Name:        req.Name,
		LocalPath:   req.LocalPath,
		CoverURL:    req.CoverURL,
		Platform:    models.GamePlatform(req.Platform),
		SyncEnabled: syncEnabled,
	}
	if err := h.catalog.AddGame(r.Context(), game); err != nil {
		log.Printf("[GameHandler:Add] Ошибка добавления игры '%s': %v", req.Name, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	log.Printf("[GameHandler:Add] Игра '%s' добавлена в каталог (ID: %s)", game.Name, game.ID)
	writeJSON(w, http.StatusCreated, game)
}

// UpdateGameRequest представляет тело запроса на изменение игры.
type UpdateGameRequest struct {
	Name        *string `json:"name,omitempty"`
	LocalPath   *string `json:"local_path,omitempty"`
	CoverURL    *string `json:"cover_url,omitempty"`
	Platform    *string `json:"platform,omitempty"`
	SyncEnabled *bool   `json:"sync_enabled,omitempty"`
}

// Update обрабатывает PATCH запрос на изменение настроек игры.
func (h *GameHandler) Update(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	game, err := h.catalog.GetGame(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, catalog.ErrGameNotFound) {
			http.Error(w, "Игра не найдена", http.StatusNotFound)
			return
		}
		log.Printf("[GameHandler:Update] Ошибка чтения игры %s: %v", gameID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var req UpdateGameRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[GameHandler:Update] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	if req.Name != nil {
		game.Name = *req.Name
	}
	if req.LocalPath != nil {
		game.LocalPath = *req.LocalPath
	}
	if req.CoverURL != nil {
		game.CoverURL = req.CoverURL
	}
	if req.Platform != nil {
		game.Platform = models.GamePlatform(*req.Platform)
	}
	if req.SyncEnabled != nil {
		game.SyncEnabled = *req.SyncEnabled
	}

	if err = h.catalog.UpdateGame(r.Context(), game); err != nil {
		log.Printf("[GameHandler:Update] Ошибка обновления игры %s: %v", gameID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// Ограничения пагинации списка версий.
const (
	defaultVersionsLimit = 20
	maxVersionsLimit     = 100
)

// Versions обрабатывает GET запрос истории облачных версий игры.
func (h *GameHandler) Versions(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	game, err := h.catalog.GetGame(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, catalog.ErrGameNotFound) {
			http.Error(w, "Игра не найдена", http.StatusNotFound)
			return
		}
		log.Printf("[GameHandler:Versions] Ошибка чтения игры %s: %v", gameID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	if game.CloudGameID == nil {
		// Игра еще ни разу не синхронизировалась.
		writeJSON(w, http.StatusOK, []models.SaveVersion{})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > maxVersionsLimit {
		limit = defaultVersionsLimit
	}
	if offset < 0 {
		offset = 0
	}

	versions, err := h.versions.ListVersions(r.Context(), *game.CloudGameID, limit, offset)
	if err != nil {
		log.Printf("[GameHandler:Versions] Ошибка чтения версий игры %s: %v", gameID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// Delete обрабатывает DELETE запрос на удаление игры. Сначала удаляются
// облачные данные, затем локальная запись: каталог не должен потерять игру,
// чьи облачные данные не удалось удалить.
func (h *GameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	game, err := h.catalog.GetGame(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, catalog.ErrGameNotFound) {
			http.Error(w, "Игра не найдена", http.StatusNotFound)
			return
		}
		log.Printf("[GameHandler:Delete] Ошибка чтения игры %s: %v", gameID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	if game.CloudGameID != nil {
		if err = h.cloud.DeleteGame(r.Context(), *game.CloudGameID); err != nil {
			log.Printf("[GameHandler:Delete] Ошибка удаления облачных данных игры %s: %v", gameID, err)
			http.Error(w, "Не удалось удалить облачные данные игры", http.StatusBadGateway)
			return
		}
	}

	if err = h.catalog.DeleteGame(r.Context(), gameID); err != nil {
		log.Printf("[GameHandler:Delete] Ошибка удаления игры %s из каталога: %v", gameID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	log.Printf("[GameHandler:Delete] Игра %s удалена", gameID)
	w.WriteHeader(http.StatusNoContent)
}
