package sync_test

import (
	"context"
	"os"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	syncsvc "github.com/Felipecabreramarcon/sync-saves-sub000/internal/sync"
	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubWatchSource отдает изменяемый список отслеживаемых игр.
type stubWatchSource struct {
	mu    stdsync.Mutex
	games []models.Game
}

func (s *stubWatchSource) ListSyncEnabled(_ context.Context) ([]models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Game, len(s.games))
	copy(out, s.games)
	return out, nil
}

func (s *stubWatchSource) set(games []models.Game) {
	s.mu.Lock()
	s.games = games
	s.mu.Unlock()
}

// collectTriggers собирает запросы синхронизации в канал.
func collectTriggers() (syncsvc.TriggerFunc, chan string) {
	triggers := make(chan string, 16)
	return func(gameID string, _ bool) {
		triggers <- gameID
	}, triggers
}

func waitTrigger(t *testing.T, triggers chan string) string {
	t.Helper()
	select {
	case gameID := <-triggers:
		return gameID
	case <-time.After(3 * time.Second):
		t.Fatal("файловое событие не дошло до планировщика")
		return ""
	}
}

func TestWatcher_TriggersOnFileChange(t *testing.T) {
	saveDir := t.TempDir()
	source := &stubWatchSource{games: []models.Game{
		{ID: "game-1", LocalPath: saveDir, SyncEnabled: true},
	}}
	trigger, triggers := collectTriggers()

	watcher, err := syncsvc.NewWatcher(source, trigger, time.Hour)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx) //nolint:errcheck // Завершение по отмене контекста

	// Даем наблюдателю подписаться на папку.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(saveDir, "slot1.sav"), []byte("save"), 0o644))

	assert.Equal(t, "game-1", waitTrigger(t, triggers))
}

func TestWatcher_TriggersOnNestedChange(t *testing.T) {
	saveDir := t.TempDir()
	nested := filepath.Join(saveDir, "profiles")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	source := &stubWatchSource{games: []models.Game{
		{ID: "game-1", LocalPath: saveDir, SyncEnabled: true},
	}}
	trigger, triggers := collectTriggers()

	watcher, err := syncsvc.NewWatcher(source, trigger, time.Hour)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx) //nolint:errcheck // Завершение по отмене контекста

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(nested, "main.cfg"), []byte("cfg"), 0o644))

	assert.Equal(t, "game-1", waitTrigger(t, triggers))
}

func TestWatcher_WatchesFoldersCreatedAtRuntime(t *testing.T) {
	saveDir := t.TempDir()
	source := &stubWatchSource{games: []models.Game{
		{ID: "game-1", LocalPath: saveDir, SyncEnabled: true},
	}}
	trigger, triggers := collectTriggers()

	watcher, err := syncsvc.NewWatcher(source, trigger, time.Hour)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx) //nolint:errcheck // Завершение по отмене контекста

	time.Sleep(200 * time.Millisecond)

	// Игра создает новый слот сохранений уже после запуска наблюдателя.
	newSlot := filepath.Join(saveDir, "slot-2")
	require.NoError(t, os.MkdirAll(newSlot, 0o755))

	// Создание самой папки дает первый запрос синхронизации.
	assert.Equal(t, "game-1", waitTrigger(t, triggers))

	// Даем наблюдателю подписаться на новую папку, затем пишем в нее.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(newSlot, "save.dat"), []byte("save"), 0o644))

	assert.Equal(t, "game-1", waitTrigger(t, triggers))
}

func TestWatcher_PicksUpNewGames(t *testing.T) {
	firstDir := t.TempDir()
	secondDir := t.TempDir()

	source := &stubWatchSource{games: []models.Game{
		{ID: "game-1", LocalPath: firstDir, SyncEnabled: true},
	}}
	trigger, triggers := collectTriggers()

	watcher, err := syncsvc.NewWatcher(source, trigger, 100*time.Millisecond)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx) //nolint:errcheck // Завершение по отмене контекста

	// Игра добавляется в каталог после запуска наблюдателя.
	source.set([]models.Game{
		{ID: "game-1", LocalPath: firstDir, SyncEnabled: true},
		{ID: "game-2", LocalPath: secondDir, SyncEnabled: true},
	})
	time.Sleep(400 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(secondDir, "slot1.sav"), []byte("save"), 0o644))

	assert.Equal(t, "game-2", waitTrigger(t, triggers))
}
