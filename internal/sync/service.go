// Package sync реализует ядро синхронизации сохранений: циклы загрузки и
// восстановления, сглаживание запросов и журнал операций.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	stdsync "sync"
	"time"

	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/archive"
	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/checksum"
	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/identity"
	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/repository"
	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/storage"
	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
	"github.com/google/uuid"
)

// Archiver упаковывает и распаковывает папки сохранений.
type Archiver interface {
	Pack(srcDir string) (*archive.Payload, error)
	Unpack(data []byte, targetDir string) error
}

// zipArchiver делегирует пакету archive.
type zipArchiver struct{}

func (zipArchiver) Pack(srcDir string) (*archive.Payload, error) { return archive.Pack(srcDir) }
func (zipArchiver) Unpack(data []byte, targetDir string) error   { return archive.Unpack(data, targetDir) }

// NewZipArchiver возвращает архиватор на основе zip.
func NewZipArchiver() Archiver { return zipArchiver{} }

// GameCatalog определяет нужную сервису часть локального каталога игр.
type GameCatalog interface {
	GetGame(ctx context.Context, gameID string) (*models.Game, error)
	SetStatus(ctx context.Context, gameID string, status models.SyncStatus) error
	UpdateSyncResult(ctx context.Context, gameID string, status models.SyncStatus,
		version int64, syncedAt time.Time, cloudGameID *string) error
}

// DeviceRegistry регистрирует текущую машину в облаке.
type DeviceRegistry interface {
	Register(ctx context.Context, userID string) *models.Device
}

// ProgressFunc получает ход выполнения цикла (0-100) и сообщение этапа.
type ProgressFunc func(progress int, message string)

// SyncOptions настраивает цикл загрузки.
type SyncOptions struct {
	// Force указывает, что запрос инициирован пользователем вручную.
	Force bool
	// OnProgress опционально получает ход выполнения.
	OnProgress ProgressFunc
}

// RestoreOptions настраивает цикл восстановления.
type RestoreOptions struct {
	// FilePath — ключ конкретной версии в хранилище. Пустая строка означает
	// восстановление последней версии.
	FilePath   string
	OnProgress ProgressFunc
}

// SyncResult описывает исход цикла загрузки.
type SyncResult struct {
	Skipped    bool   `json:"skipped"`
	Message    string `json:"message"`
	VersionID  string `json:"version_id,omitempty"`
	Version    int64  `json:"version,omitempty"`
	FileSize   int64  `json:"file_size"`
	Checksum   string `json:"checksum"`
	DurationMs int64  `json:"duration_ms"`
}

// RestoreResult описывает исход цикла восстановления.
type RestoreResult struct {
	Message    string `json:"message"`
	FileSize   int64  `json:"file_size"`
	DurationMs int64  `json:"duration_ms"`
}

// State — наблюдаемое состояние сервиса для внешних интерфейсов.
type State struct {
	Status   models.SyncStatus `json:"status"`
	Progress int               `json:"progress"`
	Message  string            `json:"message"`
}

// Service координирует полный цикл синхронизации: упаковку, дедупликацию
// по контрольной сумме, загрузку в хранилище, версионирование и журнал.
type Service struct {
	identity   identity.Provider
	registry   DeviceRegistry
	catalog    GameCatalog
	games      repository.GameRepository
	versions   repository.VersionRepository
	activities repository.ActivityRepository
	blobs      storage.BlobStorage
	archiver   Archiver
	logStore   *ActivityLog

	mu       stdsync.Mutex
	state    State
	inFlight map[string]bool
}

// Deps перечисляет зависимости сервиса синхронизации.
type Deps struct {
	Identity   identity.Provider
	Registry   DeviceRegistry
	Catalog    GameCatalog
	Games      repository.GameRepository
	Versions   repository.VersionRepository
	Activities repository.ActivityRepository
	Blobs      storage.BlobStorage
	Archiver   Archiver
	LogStore   *ActivityLog
}

// NewService создает сервис синхронизации.
func NewService(deps Deps) *Service {
	if deps.Archiver == nil {
		deps.Archiver = NewZipArchiver()
	}
	if deps.LogStore == nil {
		deps.LogStore = NewActivityLog(0)
	}
	return &Service{
		identity:   deps.Identity,
		registry:   deps.Registry,
		catalog:    deps.Catalog,
		games:      deps.Games,
		versions:   deps.Versions,
		activities: deps.Activities,
		blobs:      deps.Blobs,
		archiver:   deps.Archiver,
		logStore:   deps.LogStore,
		state:      State{Status: models.StatusIdle},
		inFlight:   make(map[string]bool),
	}
}

// State возвращает текущее наблюдаемое состояние сервиса.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activities возвращает локальный журнал операций, новые первыми.
func (s *Service) Activities() []models.SyncActivity {
	return s.logStore.List()
}

// RefreshActivities подтягивает облачную историю операций и сливает ее с
// локальным журналом. gameID опционально ограничивает выборку одной игрой.
func (s *Service) RefreshActivities(ctx context.Context, gameID *string) error {
	user := s.identity.CurrentUser()
	if user == nil {
		return ErrNotAuthenticated
	}

	cloud, err := s.activities.ListActivities(ctx, user.ID, gameID, defaultLogCapacity, 0)
	if err != nil {
		return fmt.Errorf("ошибка чтения облачного журнала: %w", err)
	}
	s.logStore.Merge(cloud)
	return nil
}

// SyncGame выполняет цикл загрузки сохранения игры в облако.
//
// Если содержимое не изменилось с последней версии (совпала контрольная
// сумма), новая версия не создается — цикл завершается пропуском.
// Параллельный цикл по той же игре отклоняется с ErrSyncInFlight.
func (s *Service) SyncGame(ctx context.Context, gameID string, opts SyncOptions) (*SyncResult, error) {
	if !s.acquire(gameID) {
		log.Printf("[Sync] Игра %s уже синхронизируется, запрос отклонен", gameID)
		return nil, ErrSyncInFlight
	}
	defer s.release(gameID)

	started := time.Now()
	s.setState(models.StatusSyncing, 0, "Подготовка...", opts.OnProgress)

	game, err := s.catalog.GetGame(ctx, gameID)
	if err != nil {
		return nil, s.failSync(ctx, gameID, "", nil, fmt.Errorf("игра не найдена в каталоге: %w", err), opts.OnProgress)
	}
	if !game.SyncEnabled {
		return nil, s.failSync(ctx, gameID, "", nil, ErrSyncDisabled, opts.OnProgress)
	}

	// Идентичность и устройство обязательны: без них загрузка невозможна,
	// отказ должен быть быстрым и до каких-либо записей в облако.
	user := s.identity.CurrentUser()
	if user == nil {
		return nil, s.failSync(ctx, gameID, "", nil, ErrNotAuthenticated, opts.OnProgress)
	}
	device := s.registry.Register(ctx, user.ID)
	if device == nil {
		return nil, s.failSync(ctx, gameID, "", nil, ErrDeviceUnresolved, opts.OnProgress)
	}

	s.setState(models.StatusSyncing, 15, "Упаковка сохранений...", opts.OnProgress)
	payload, err := s.archiver.Pack(game.LocalPath)
	if err != nil {
		return nil, s.failSync(ctx, gameID, "", device, fmt.Errorf("ошибка упаковки сохранений: %w", err), opts.OnProgress)
	}

	cloudGameID, err := s.games.GetOrCreateGame(ctx, user.ID, game.Name, game.Slug, game.CoverURL)
	if err != nil {
		return nil, s.failSync(ctx, gameID, "", device, err, opts.OnProgress)
	}
	if _, err = s.games.UpsertGamePath(ctx, cloudGameID, device.ID, game.LocalPath, game.SyncEnabled); err != nil {
		return nil, s.failSync(ctx, gameID, cloudGameID, device, err, opts.OnProgress)
	}

	s.setState(models.StatusSyncing, 40, "Проверка изменений...", opts.OnProgress)
	digest := checksum.Sum(payload.Data)

	latest, err := s.versions.GetLatestChecksum(ctx, cloudGameID)
	if err != nil && !errors.Is(err, repository.ErrLatestNotFound) {
		return nil, s.failSync(ctx, gameID, cloudGameID, device, err, opts.OnProgress)
	}
	if err == nil && latest == digest {
		log.Printf("[Sync] Содержимое игры '%s' не изменилось, загрузка пропущена", game.Name)

		s.logActivity(ctx, &models.SyncActivity{
			GameID:   cloudGameID,
			GameName: game.Name,
			DeviceID: &device.ID,
			Action:   models.ActionSkip,
			Status:   models.ActivitySuccess,
			Message:  ptr("Содержимое не изменилось"),
		})

		// Пропуск — благополучный исход: каталог фиксирует успех, номер
		// последней версии не меняется.
		if err = s.catalog.UpdateSyncResult(ctx, gameID,
			models.StatusSuccess, game.LastSyncedVersion, time.Now(), &cloudGameID); err != nil {
			log.Printf("[Sync] Ошибка записи результата в каталог: %v", err)
		}

		s.setState(models.StatusSuccess, 100, "Без изменений", opts.OnProgress)
		return &SyncResult{
			Skipped:    true,
			Message:    "Содержимое не изменилось",
			Checksum:   digest,
			FileSize:   int64(len(payload.Data)),
			DurationMs: time.Since(started).Milliseconds(),
		}, nil
	}

	versionID := uuid.NewString()
	objectKey := fmt.Sprintf("%s/%s/%s.zip", user.ID, game.Slug, versionID)
	size := int64(len(payload.Data))

	s.setState(models.StatusSyncing, 60, "Загрузка в облако...", opts.OnProgress)
	if err = s.blobs.Upload(ctx, objectKey, bytes.NewReader(payload.Data), size); err != nil {
		return nil, s.failSync(ctx, gameID, cloudGameID, device, err, opts.OnProgress)
	}

	// Строка версии создается только после подтвержденной загрузки архива:
	// метаданные не должны ссылаться на отсутствующий объект.
	next, err := s.versions.NextVersion(ctx, cloudGameID)
	if err != nil {
		return nil, s.failSync(ctx, gameID, cloudGameID, device, err, opts.OnProgress)
	}

	version := &models.SaveVersion{
		ID:             versionID,
		GameID:         cloudGameID,
		DeviceID:       &device.ID,
		Version:        next,
		FilePath:       objectKey,
		FileSize:       size,
		Checksum:       digest,
		FileModifiedAt: &payload.FileModifiedAt,
	}
	if err = s.versions.CreateVersion(ctx, version); err != nil {
		return nil, s.failSync(ctx, gameID, cloudGameID, device, err, opts.OnProgress)
	}

	duration := time.Since(started).Milliseconds()
	if err = s.catalog.UpdateSyncResult(ctx, gameID,
		models.StatusSuccess, next, time.Now(), &cloudGameID); err != nil {
		log.Printf("[Sync] Ошибка записи результата в каталог: %v", err)
	}

	s.logActivity(ctx, &models.SyncActivity{
		GameID:        cloudGameID,
		GameName:      game.Name,
		DeviceID:      &device.ID,
		Action:        models.ActionUpload,
		Status:        models.ActivitySuccess,
		SaveVersionID: &versionID,
		FileSize:      &size,
		DurationMs:    &duration,
	})

	log.Printf("[Sync] Игра '%s' синхронизирована: версия %d (%d байт)", game.Name, next, size)
	s.setState(models.StatusSuccess, 100, "Синхронизация завершена", opts.OnProgress)

	return &SyncResult{
		Message:    fmt.Sprintf("Загружена версия %d", next),
		VersionID:  versionID,
		Version:    next,
		FileSize:   size,
		Checksum:   digest,
		DurationMs: duration,
	}, nil
}

// RestoreGame скачивает версию сохранения из облака и распаковывает ее в
// локальную папку игры, перезаписывая текущее содержимое. Подтверждение
// пользователя — ответственность вызывающей стороны.
func (s *Service) RestoreGame(ctx context.Context, gameID string, opts RestoreOptions) (*RestoreResult, error) {
	if !s.acquire(gameID) {
		log.Printf("[Sync] Игра %s уже синхронизируется, восстановление отклонено", gameID)
		return nil, ErrSyncInFlight
	}
	defer s.release(gameID)

	started := time.Now()
	s.setState(models.StatusSyncing, 0, "Подготовка восстановления...", opts.OnProgress)

	game, err := s.catalog.GetGame(ctx, gameID)
	if err != nil {
		return nil, s.failRestore(ctx, gameID, "", nil, fmt.Errorf("игра не найдена в каталоге: %w", err), opts.OnProgress)
	}

	user := s.identity.CurrentUser()
	if user == nil {
		return nil, s.failRestore(ctx, gameID, "", nil, ErrNotAuthenticated, opts.OnProgress)
	}
	device := s.registry.Register(ctx, user.ID)
	if device == nil {
		return nil, s.failRestore(ctx, gameID, "", nil, ErrDeviceUnresolved, opts.OnProgress)
	}

	cloudGameID, err := s.games.GetOrCreateGame(ctx, user.ID, game.Name, game.Slug, game.CoverURL)
	if err != nil {
		return nil, s.failRestore(ctx, gameID, "", device, err, opts.OnProgress)
	}

	objectKey := opts.FilePath
	var versionID *string
	if objectKey == "" {
		// Поиск по времени создания, а не по флагу is_latest: флаг может
		// быть временно снят между двумя шагами создания версии.
		latest, findErr := s.versions.FindLatestVersion(ctx, cloudGameID)
		if findErr != nil {
			if errors.Is(findErr, repository.ErrVersionNotFound) {
				return nil, s.failRestore(ctx, gameID, cloudGameID, device, ErrNoVersions, opts.OnProgress)
			}
			return nil, s.failRestore(ctx, gameID, cloudGameID, device, findErr, opts.OnProgress)
		}
		objectKey = latest.FilePath
		versionID = &latest.ID
	}

	s.setState(models.StatusSyncing, 30, "Скачивание из облака...", opts.OnProgress)
	reader, err := s.blobs.Download(ctx, objectKey)
	if err != nil {
		return nil, s.failRestore(ctx, gameID, cloudGameID, device, err, opts.OnProgress)
	}
	data, err := io.ReadAll(reader)
	closeErr := reader.Close()
	if err != nil {
		return nil, s.failRestore(ctx, gameID, cloudGameID, device,
			fmt.Errorf("ошибка чтения архива из хранилища: %w", err), opts.OnProgress)
	}
	if closeErr != nil {
		log.Printf("[Sync] Ошибка закрытия потока скачивания: %v", closeErr)
	}

	s.setState(models.StatusSyncing, 70, "Распаковка сохранений...", opts.OnProgress)
	if err = s.archiver.Unpack(data, game.LocalPath); err != nil {
		return nil, s.failRestore(ctx, gameID, cloudGameID, device, err, opts.OnProgress)
	}

	duration := time.Since(started).Milliseconds()
	size := int64(len(data))

	if err = s.catalog.SetStatus(ctx, gameID, models.StatusSuccess); err != nil {
		log.Printf("[Sync] Ошибка обновления статуса в каталоге: %v", err)
	}

	s.logActivity(ctx, &models.SyncActivity{
		GameID:        cloudGameID,
		GameName:      game.Name,
		DeviceID:      &device.ID,
		Action:        models.ActionDownload,
		Status:        models.ActivitySuccess,
		SaveVersionID: versionID,
		FileSize:      &size,
		DurationMs:    &duration,
	})

	log.Printf("[Sync] Игра '%s' восстановлена из облака (%d байт)", game.Name, size)
	s.setState(models.StatusSuccess, 100, "Восстановление завершено", opts.OnProgress)

	return &RestoreResult{
		Message:    "Сохранения восстановлены",
		FileSize:   size,
		DurationMs: duration,
	}, nil
}

// acquire помечает игру как синхронизируемую. Возвращает false, если цикл
// по этой игре уже идет.
func (s *Service) acquire(gameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[gameID] {
		return false
	}
	s.inFlight[gameID] = true
	return true
}

func (s *Service) release(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, gameID)
}

// setState обновляет наблюдаемое состояние и уведомляет подписчика.
func (s *Service) setState(status models.SyncStatus, progress int, message string, onProgress ProgressFunc) {
	s.mu.Lock()
	s.state = State{Status: status, Progress: progress, Message: message}
	s.mu.Unlock()

	if onProgress != nil {
		onProgress(progress, message)
	}
}

// failSync фиксирует неудачный цикл загрузки: статус ошибки в каталоге,
// запись в журнале и наблюдаемое состояние.
func (s *Service) failSync(
	ctx context.Context,
	gameID, cloudGameID string,
	device *models.Device,
	err error,
	onProgress ProgressFunc,
) error {
	return s.fail(ctx, gameID, cloudGameID, device, models.ActionUpload, err, onProgress)
}

// failRestore — то же для цикла восстановления.
func (s *Service) failRestore(
	ctx context.Context,
	gameID, cloudGameID string,
	device *models.Device,
	err error,
	onProgress ProgressFunc,
) error {
	return s.fail(ctx, gameID, cloudGameID, device, models.ActionDownload, err, onProgress)
}

func (s *Service) fail(
	ctx context.Context,
	gameID, cloudGameID string,
	device *models.Device,
	action models.SyncAction,
	err error,
	onProgress ProgressFunc,
) error {
	log.Printf("[Sync] Цикл для игры %s завершился ошибкой: %v", gameID, err)

	if statusErr := s.catalog.SetStatus(ctx, gameID, models.StatusError); statusErr != nil {
		log.Printf("[Sync] Ошибка записи статуса ошибки в каталог: %v", statusErr)
	}

	// Облачный журнал требует облачного ID игры; до его разрешения ошибка
	// остается только в локальном журнале.
	logGameID := cloudGameID
	if logGameID == "" {
		logGameID = gameID
	}
	var deviceID *string
	if device != nil {
		deviceID = &device.ID
	}
	s.logActivity(ctx, &models.SyncActivity{
		GameID:   logGameID,
		DeviceID: deviceID,
		Action:   action,
		Status:   models.ActivityError,
		Message:  ptr(err.Error()),
	})

	s.setState(models.StatusError, 100, err.Error(), onProgress)
	return err
}

// logActivity добавляет запись в локальный журнал и отправляет ее в облако
// по возможности. Отказ облака не прерывает цикл: оптимистичная локальная
// запись остается до следующего слияния.
func (s *Service) logActivity(ctx context.Context, activity *models.SyncActivity) {
	activity.ID = uuid.NewString()
	activity.CreatedAt = time.Now()
	s.logStore.Append(*activity)

	if s.activities == nil {
		return
	}
	confirmed, err := s.activities.CreateActivity(ctx, activity)
	if err != nil {
		log.Printf("[Sync] Облачный журнал недоступен, запись сохранена локально: %v", err)
		return
	}
	s.logStore.Confirm(activity.ID, *confirmed)
}

// ptr возвращает указатель на строку.
func ptr(s string) *string { return &s }

// Кастомные ошибки сервиса синхронизации.
var (
	ErrSyncInFlight     = errors.New("синхронизация этой игры уже выполняется")
	ErrSyncDisabled     = errors.New("синхронизация для этой игры отключена")
	ErrNotAuthenticated = errors.New("пользователь не аутентифицирован")
	ErrDeviceUnresolved = errors.New("не удалось зарегистрировать устройство")
	ErrNoVersions       = errors.New("облачные версии сохранений отсутствуют")
)
