package sync_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/archive"
	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/checksum"
	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/identity"
	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/repository"
	syncsvc "github.com/Felipecabreramarcon/sync-saves-sub000/internal/sync"
	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

// MockGameRepository is a mock for GameRepository.
type MockGameRepository struct {
	mock.Mock
}

func (m *MockGameRepository) GetOrCreateGame(
	ctx context.Context,
	userID, name, slug string,
	coverURL *string,
) (string, error) {
	args := m.Called(ctx, userID, name, slug, coverURL)
	return args.String(0), args.Error(1)
}

func (m *MockGameRepository) UpsertGamePath(
	ctx context.Context,
	gameID, deviceID, localPath string,
	syncEnabled bool,
) (string, error) {
	args := m.Called(ctx, gameID, deviceID, localPath, syncEnabled)
	return args.String(0), args.Error(1)
}

func (m *MockGameRepository) DeleteGame(ctx context.Context, gameID string) error {
	args := m.Called(ctx, gameID)
	return args.Error(0)
}

// MockVersionRepository is a mock for VersionRepository.
type MockVersionRepository struct {
	mock.Mock
}

func (m *MockVersionRepository) NextVersion(ctx context.Context, gameID string) (int64, error) {
	args := m.Called(ctx, gameID)
	return args.Get(0).(int64), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockVersionRepository) CreateVersion(ctx context.Context, version *models.SaveVersion) error {
	args := m.Called(ctx, version)
	return args.Error(0)
}

func (m *MockVersionRepository) GetLatestChecksum(ctx context.Context, gameID string) (string, error) {
	args := m.Called(ctx, gameID)
	return args.String(0), args.Error(1)
}

func (m *MockVersionRepository) FindLatestVersion(
	ctx context.Context,
	gameID string,
) (*models.SaveVersion, error) {
	args := m.Called(ctx, gameID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.SaveVersion), args.Error(1)
}

func (m *MockVersionRepository) GetVersionByID(
	ctx context.Context,
	versionID string,
) (*models.SaveVersion, error) {
	args := m.Called(ctx, versionID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.SaveVersion), args.Error(1)
}

func (m *MockVersionRepository) ListVersions(
	ctx context.Context,
	gameID string,
	limit, offset int,
) ([]models.SaveVersion, error) {
	args := m.Called(ctx, gameID, limit, offset)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.SaveVersion), args.Error(1)
}

func (m *MockVersionRepository) AttachAnalysis(
	ctx context.Context,
	versionID string,
	analysis map[string]any,
) error {
	args := m.Called(ctx, versionID, analysis)
	return args.Error(0)
}

// MockActivityRepository is a mock for ActivityRepository.
type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) CreateActivity(
	ctx context.Context,
	activity *models.SyncActivity,
) (*models.SyncActivity, error) {
	args := m.Called(ctx, activity)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.SyncActivity), args.Error(1)
}

func (m *MockActivityRepository) ListActivities(
	ctx context.Context,
	userID string,
	gameID *string,
	limit, offset int,
) ([]models.SyncActivity, error) {
	args := m.Called(ctx, userID, gameID, limit, offset)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.SyncActivity), args.Error(1)
}

// MockBlobStorage is a mock for BlobStorage.
type MockBlobStorage struct {
	mock.Mock
}

func (m *MockBlobStorage) Upload(ctx context.Context, objectKey string, reader io.Reader, size int64) error {
	args := m.Called(ctx, objectKey, reader, size)
	return args.Error(0)
}

func (m *MockBlobStorage) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	args := m.Called(ctx, objectKey)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(io.ReadCloser), args.Error(1)
}

// MockCatalog is a mock for GameCatalog.
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	args := m.Called(ctx, gameID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.Game), args.Error(1)
}

func (m *MockCatalog) SetStatus(ctx context.Context, gameID string, status models.SyncStatus) error {
	args := m.Called(ctx, gameID, status)
	return args.Error(0)
}

func (m *MockCatalog) UpdateSyncResult(
	ctx context.Context,
	gameID string,
	status models.SyncStatus,
	version int64,
	syncedAt time.Time,
	cloudGameID *string,
) error {
	args := m.Called(ctx, gameID, status, version, syncedAt, cloudGameID)
	return args.Error(0)
}

// stubIdentity возвращает фиксированного пользователя (или nil).
type stubIdentity struct {
	user *identity.User
}

func (s *stubIdentity) CurrentUser() *identity.User { return s.user }

// stubRegistry возвращает фиксированное устройство (или nil).
type stubRegistry struct {
	device *models.Device
}

func (s *stubRegistry) Register(_ context.Context, _ string) *models.Device { return s.device }

// stubArchiver отдает заранее подготовленный архив и запоминает распаковки.
type stubArchiver struct {
	payload *archive.Payload
	packErr error

	unpackedData []byte
	unpackedTo   string
	unpackErr    error

	// Каналы для блокировки Pack в тестах конкурентности.
	packStarted chan struct{}
	packRelease chan struct{}
}

func (a *stubArchiver) Pack(_ string) (*archive.Payload, error) {
	if a.packStarted != nil {
		a.packStarted <- struct{}{}
		<-a.packRelease
	}
	if a.packErr != nil {
		return nil, a.packErr
	}
	return a.payload, nil
}

func (a *stubArchiver) Unpack(data []byte, targetDir string) error {
	a.unpackedData = data
	a.unpackedTo = targetDir
	return a.unpackErr
}

// --- Test harness ---

type harness struct {
	games      *MockGameRepository
	versions   *MockVersionRepository
	activities *MockActivityRepository
	blobs      *MockBlobStorage
	catalog    *MockCatalog
	archiver   *stubArchiver
	svc        *syncsvc.Service
}

func newHarness(user *identity.User, device *models.Device, payload []byte) *harness {
	h := &harness{
		games:      new(MockGameRepository),
		versions:   new(MockVersionRepository),
		activities: new(MockActivityRepository),
		blobs:      new(MockBlobStorage),
		catalog:    new(MockCatalog),
		archiver: &stubArchiver{
			payload: &archive.Payload{Data: payload, FileModifiedAt: time.Now()},
		},
	}
	h.svc = syncsvc.NewService(syncsvc.Deps{
		Identity:   &stubIdentity{user: user},
		Registry:   &stubRegistry{device: device},
		Catalog:    h.catalog,
		Games:      h.games,
		Versions:   h.versions,
		Activities: h.activities,
		Blobs:      h.blobs,
		Archiver:   h.archiver,
	})
	return h
}

func testGame() *models.Game {
	return &models.Game{
		ID:                "game-1",
		Name:              "Elden Ring",
		Slug:              "elden-ring",
		LocalPath:         "/saves/elden-ring",
		SyncEnabled:       true,
		LastSyncedVersion: 3,
	}
}

func testUser() *identity.User {
	return &identity.User{ID: "user-1"}
}

func testDevice() *models.Device {
	return &models.Device{ID: "device-1", UserID: "user-1", MachineID: "machine-abc"}
}

// --- Tests ---

func TestSyncGame_UploadsNewVersion(t *testing.T) {
	saveData := []byte("elden ring save data")
	h := newHarness(testUser(), testDevice(), saveData)
	digest := checksum.Sum(saveData)

	h.catalog.On("GetGame", mock.Anything, "game-1").Return(testGame(), nil)
	h.games.On("GetOrCreateGame", mock.Anything, "user-1", "Elden Ring", "elden-ring", (*string)(nil)).
		Return("cloud-1", nil)
	h.games.On("UpsertGamePath", mock.Anything, "cloud-1", "device-1", "/saves/elden-ring", true).
		Return("path-1", nil)
	h.versions.On("GetLatestChecksum", mock.Anything, "cloud-1").
		Return("", repository.ErrLatestNotFound)
	h.blobs.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "user-1/elden-ring/") && strings.HasSuffix(key, ".zip")
	}), mock.Anything, int64(len(saveData))).Return(nil)
	h.versions.On("NextVersion", mock.Anything, "cloud-1").Return(int64(1), nil)
	h.versions.On("CreateVersion", mock.Anything, mock.MatchedBy(func(v *models.SaveVersion) bool {
		return v.GameID == "cloud-1" && v.Version == 1 && v.Checksum == digest &&
			v.DeviceID != nil && *v.DeviceID == "device-1"
	})).Return(nil)
	h.catalog.On("UpdateSyncResult", mock.Anything, "game-1", models.StatusSuccess,
		int64(1), mock.Anything, mock.Anything).Return(nil)
	h.activities.On("CreateActivity", mock.Anything, mock.Anything).
		Return(&models.SyncActivity{ID: "log-1", CreatedAt: time.Now()}, nil)

	result, err := h.svc.SyncGame(context.Background(), "game-1", syncsvc.SyncOptions{})

	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, int64(1), result.Version)
	assert.Equal(t, digest, result.Checksum)
	assert.Equal(t, int64(len(saveData)), result.FileSize)
	assert.Equal(t, models.StatusSuccess, h.svc.State().Status)
	h.games.AssertExpectations(t)
	h.versions.AssertExpectations(t)
	h.blobs.AssertExpectations(t)
}

func TestSyncGame_SkipsUnchangedContent(t *testing.T) {
	saveData := []byte("unchanged save data")
	h := newHarness(testUser(), testDevice(), saveData)

	h.catalog.On("GetGame", mock.Anything, "game-1").Return(testGame(), nil)
	h.games.On("GetOrCreateGame", mock.Anything, "user-1", "Elden Ring", "elden-ring", (*string)(nil)).
		Return("cloud-1", nil)
	h.games.On("UpsertGamePath", mock.Anything, "cloud-1", "device-1", "/saves/elden-ring", true).
		Return("path-1", nil)
	h.versions.On("GetLatestChecksum", mock.Anything, "cloud-1").
		Return(checksum.Sum(saveData), nil)
	// Номер последней версии сохраняется при пропуске.
	h.catalog.On("UpdateSyncResult", mock.Anything, "game-1", models.StatusSuccess,
		int64(3), mock.Anything, mock.Anything).Return(nil)
	h.activities.On("CreateActivity", mock.Anything, mock.MatchedBy(func(a *models.SyncActivity) bool {
		return a.Action == models.ActionSkip && a.Status == models.ActivitySuccess
	})).Return(&models.SyncActivity{ID: "log-1", Action: models.ActionSkip, CreatedAt: time.Now()}, nil)

	result, err := h.svc.SyncGame(context.Background(), "game-1", syncsvc.SyncOptions{})

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	h.blobs.AssertNotCalled(t, "Upload")
	h.versions.AssertNotCalled(t, "CreateVersion")
	h.catalog.AssertExpectations(t)
}

func TestSyncGame_SecondForcedSyncSkips(t *testing.T) {
	saveData := []byte("same save data twice")
	h := newHarness(testUser(), testDevice(), saveData)
	digest := checksum.Sum(saveData)

	h.catalog.On("GetGame", mock.Anything, "game-1").Return(testGame(), nil)
	h.games.On("GetOrCreateGame", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("cloud-1", nil)
	h.games.On("UpsertGamePath", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("path-1", nil)
	// Первый цикл: версий еще нет. Второй: сумма совпадает.
	h.versions.On("GetLatestChecksum", mock.Anything, "cloud-1").
		Return("", repository.ErrLatestNotFound).Once()
	h.versions.On("GetLatestChecksum", mock.Anything, "cloud-1").
		Return(digest, nil).Once()
	h.blobs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	h.versions.On("NextVersion", mock.Anything, "cloud-1").Return(int64(1), nil).Once()
	h.versions.On("CreateVersion", mock.Anything, mock.Anything).Return(nil).Once()
	h.catalog.On("UpdateSyncResult", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.activities.On("CreateActivity", mock.Anything, mock.Anything).
		Return(&models.SyncActivity{ID: "log-1", CreatedAt: time.Now()}, nil)

	first, err := h.svc.SyncGame(context.Background(), "game-1", syncsvc.SyncOptions{Force: true})
	require.NoError(t, err)
	second, err := h.svc.SyncGame(context.Background(), "game-1", syncsvc.SyncOptions{Force: true})
	require.NoError(t, err)

	assert.False(t, first.Skipped)
	assert.True(t, second.Skipped, "повторная синхронизация без изменений пропускается")
	h.versions.AssertNumberOfCalls(t, "CreateVersion", 1)
	h.blobs.AssertNumberOfCalls(t, "Upload", 1)
}

func TestSyncGame_NotAuthenticated(t *testing.T) {
	h := newHarness(nil, testDevice(), []byte("data"))

	h.catalog.On("GetGame", mock.Anything, "game-1").Return(testGame(), nil)
	h.catalog.On("SetStatus", mock.Anything, "game-1", models.StatusError).Return(nil)
	h.activities.On("CreateActivity", mock.Anything, mock.Anything).
		Return(nil, errors.New("unauthorized"))

	_, err := h.svc.SyncGame(context.Background(), "game-1", syncsvc.SyncOptions{})

	require.ErrorIs(t, err, syncsvc.ErrNotAuthenticated)
	assert.Equal(t, models.StatusError, h.svc.State().Status)
	h.games.AssertNotCalled(t, "GetOrCreateGame")

	// Ошибка остается в локальном журнале.
	activities := h.svc.Activities()
	require.Len(t, activities, 1)
	assert.Equal(t, models.ActivityError, activities[0].Status)
}

func TestSyncGame_DeviceUnresolved(t *testing.T) {
	h := newHarness(testUser(), nil, []byte("data"))

	h.catalog.On("GetGame", mock.Anything, "game-1").Return(testGame(), nil)
	h.catalog.On("SetStatus", mock.Anything, "game-1", models.StatusError).Return(nil)
	h.activities.On("CreateActivity", mock.Anything, mock.Anything).
		Return(nil, errors.New("unauthorized"))

	_, err := h.svc.SyncGame(context.Background(), "game-1", syncsvc.SyncOptions{})

	require.ErrorIs(t, err, syncsvc.ErrDeviceUnresolved)
	h.games.AssertNotCalled(t, "GetOrCreateGame")
}

func TestSyncGame_SyncDisabled(t *testing.T) {
	h := newHarness(testUser(), testDevice(), []byte("data"))

	disabled := testGame()
	disabled.SyncEnabled = false
	h.catalog.On("GetGame", mock.Anything, "game-1").Return(disabled, nil)
	h.catalog.On("SetStatus", mock.Anything, "game-1", models.StatusError).Return(nil)
	h.activities.On("CreateActivity", mock.Anything, mock.Anything).
		Return(nil, errors.New("unavailable"))

	_, err := h.svc.SyncGame(context.Background(), "game-1", syncsvc.SyncOptions{})

	require.ErrorIs(t, err, syncsvc.ErrSyncDisabled)
}

func TestSyncGame_RejectsParallelCycle(t *testing.T) {
	h := newHarness(testUser(), testDevice(), []byte("data"))
	h.archiver.packStarted = make(chan struct{})
	h.archiver.packRelease = make(chan struct{})
	h.archiver.packErr = errors.New("прервано тестом")

	h.catalog.On("GetGame", mock.Anything, "game-1").Return(testGame(), nil)
	h.catalog.On("SetStatus", mock.Anything, "game-1", models.StatusError).Return(nil)
	h.activities.On("CreateActivity", mock.Anything, mock.Anything).
		Return(nil, errors.New("unavailable"))

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.SyncGame(context.Background(), "game-1", syncsvc.SyncOptions{})
		done <- err
	}()
	<-h.archiver.packStarted

	// Первый цикл завис в упаковке, второй должен быть отклонен сразу.
	_, err := h.svc.SyncGame(context.Background(), "game-1", syncsvc.SyncOptions{})
	assert.ErrorIs(t, err, syncsvc.ErrSyncInFlight)

	close(h.archiver.packRelease)
	<-done

	// После завершения первого цикла игра снова доступна.
	h.archiver.packStarted = nil
	_, err = h.svc.SyncGame(context.Background(), "game-1", syncsvc.SyncOptions{})
	assert.NotErrorIs(t, err, syncsvc.ErrSyncInFlight)
}

func TestSyncGame_CloudLogUnavailable(t *testing.T) {
	saveData := []byte("save data")
	h := newHarness(testUser(), testDevice(), saveData)

	h.catalog.On("GetGame", mock.Anything, "game-1").Return(testGame(), nil)
	h.games.On("GetOrCreateGame", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("cloud-1", nil)
	h.games.On("UpsertGamePath", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("path-1", nil)
	h.versions.On("GetLatestChecksum", mock.Anything, "cloud-1").
		Return("", repository.ErrLatestNotFound)
	h.blobs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.versions.On("NextVersion", mock.Anything, "cloud-1").Return(int64(1), nil)
	h.versions.On("CreateVersion", mock.Anything, mock.Anything).Return(nil)
	h.catalog.On("UpdateSyncResult", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.activities.On("CreateActivity", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	result, err := h.svc.SyncGame(context.Background(), "game-1", syncsvc.SyncOptions{})

	// Недоступность облачного журнала не срывает синхронизацию.
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	activities := h.svc.Activities()
	require.Len(t, activities, 1)
	assert.Equal(t, models.ActionUpload, activities[0].Action)
	assert.NotEmpty(t, activities[0].ID, "оптимистичная запись получает локальный ID")
}

func TestRestoreGame_FallsBackToNewestByCreation(t *testing.T) {
	h := newHarness(testUser(), testDevice(), nil)
	archiveData := []byte("zip archive bytes")

	h.catalog.On("GetGame", mock.Anything, "game-1").Return(testGame(), nil)
	h.games.On("GetOrCreateGame", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("cloud-1", nil)
	// Флаг is_latest потерян: выбирается самая свежая версия по времени.
	h.versions.On("FindLatestVersion", mock.Anything, "cloud-1").Return(&models.SaveVersion{
		ID:       "version-2",
		GameID:   "cloud-1",
		Version:  2,
		FilePath: "user-1/elden-ring/version-2.zip",
		IsLatest: false,
	}, nil)
	h.blobs.On("Download", mock.Anything, "user-1/elden-ring/version-2.zip").
		Return(io.NopCloser(strings.NewReader(string(archiveData))), nil)
	h.catalog.On("SetStatus", mock.Anything, "game-1", models.StatusSuccess).Return(nil)
	h.activities.On("CreateActivity", mock.Anything, mock.MatchedBy(func(a *models.SyncActivity) bool {
		return a.Action == models.ActionDownload && a.Status == models.ActivitySuccess &&
			a.SaveVersionID != nil && *a.SaveVersionID == "version-2"
	})).Return(&models.SyncActivity{ID: "log-1", CreatedAt: time.Now()}, nil)

	result, err := h.svc.RestoreGame(context.Background(), "game-1", syncsvc.RestoreOptions{})

	require.NoError(t, err)
	assert.Equal(t, int64(len(archiveData)), result.FileSize)
	assert.Equal(t, archiveData, h.archiver.unpackedData)
	assert.Equal(t, "/saves/elden-ring", h.archiver.unpackedTo)
	h.versions.AssertExpectations(t)
	h.activities.AssertExpectations(t)
}

func TestRestoreGame_SpecificVersion(t *testing.T) {
	h := newHarness(testUser(), testDevice(), nil)

	h.catalog.On("GetGame", mock.Anything, "game-1").Return(testGame(), nil)
	h.games.On("GetOrCreateGame", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("cloud-1", nil)
	h.blobs.On("Download", mock.Anything, "user-1/elden-ring/version-1.zip").
		Return(io.NopCloser(strings.NewReader("old version")), nil)
	h.catalog.On("SetStatus", mock.Anything, "game-1", models.StatusSuccess).Return(nil)
	h.activities.On("CreateActivity", mock.Anything, mock.Anything).
		Return(&models.SyncActivity{ID: "log-1", CreatedAt: time.Now()}, nil)

	_, err := h.svc.RestoreGame(context.Background(), "game-1", syncsvc.RestoreOptions{
		FilePath: "user-1/elden-ring/version-1.zip",
	})

	require.NoError(t, err)
	h.versions.AssertNotCalled(t, "FindLatestVersion")
}

func TestRestoreGame_NoVersions(t *testing.T) {
	h := newHarness(testUser(), testDevice(), nil)

	h.catalog.On("GetGame", mock.Anything, "game-1").Return(testGame(), nil)
	h.games.On("GetOrCreateGame", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("cloud-1", nil)
	h.versions.On("FindLatestVersion", mock.Anything, "cloud-1").
		Return(nil, repository.ErrVersionNotFound)
	h.catalog.On("SetStatus", mock.Anything, "game-1", models.StatusError).Return(nil)
	h.activities.On("CreateActivity", mock.Anything, mock.Anything).
		Return(nil, errors.New("unavailable"))

	_, err := h.svc.RestoreGame(context.Background(), "game-1", syncsvc.RestoreOptions{})

	require.ErrorIs(t, err, syncsvc.ErrNoVersions)
	h.blobs.AssertNotCalled(t, "Download")
}

func TestSyncGame_ReportsProgress(t *testing.T) {
	saveData := []byte("save data")
	h := newHarness(testUser(), testDevice(), saveData)

	h.catalog.On("GetGame", mock.Anything, "game-1").Return(testGame(), nil)
	h.games.On("GetOrCreateGame", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("cloud-1", nil)
	h.games.On("UpsertGamePath", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("path-1", nil)
	h.versions.On("GetLatestChecksum", mock.Anything, "cloud-1").
		Return("", repository.ErrLatestNotFound)
	h.blobs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.versions.On("NextVersion", mock.Anything, "cloud-1").Return(int64(1), nil)
	h.versions.On("CreateVersion", mock.Anything, mock.Anything).Return(nil)
	h.catalog.On("UpdateSyncResult", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.activities.On("CreateActivity", mock.Anything, mock.Anything).
		Return(&models.SyncActivity{ID: "log-1", CreatedAt: time.Now()}, nil)

	var progress []int
	_, err := h.svc.SyncGame(context.Background(), "game-1", syncsvc.SyncOptions{
		OnProgress: func(p int, _ string) { progress = append(progress, p) },
	})

	require.NoError(t, err)
	require.NotEmpty(t, progress)
	assert.Equal(t, 0, progress[0])
	assert.Equal(t, 100, progress[len(progress)-1])
	assert.True(t, sortedAscending(progress), "прогресс монотонно растет: %v", progress)
}

func sortedAscending(values []int) bool {
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			return false
		}
	}
	return true
}
