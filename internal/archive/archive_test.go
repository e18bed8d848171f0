package archive_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Вспомогательная функция: создает папку сохранений с вложенными файлами.
func makeSaveDir(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "profiles"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "save1.sav"), []byte("slot one"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "profiles", "main.cfg"), []byte("profile data"), 0o644))
	return dir
}

func TestPackUnpack_RoundTrip(t *testing.T) {
	srcDir := makeSaveDir(t)

	payload, err := archive.Pack(srcDir)
	require.NoError(t, err)
	require.NotEmpty(t, payload.Data)
	assert.False(t, payload.FileModifiedAt.IsZero())

	targetDir := t.TempDir()
	require.NoError(t, archive.Unpack(payload.Data, targetDir))

	restored, err := os.ReadFile(filepath.Join(targetDir, "save1.sav"))
	require.NoError(t, err)
	assert.Equal(t, []byte("slot one"), restored)

	restored, err = os.ReadFile(filepath.Join(targetDir, "profiles", "main.cfg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("profile data"), restored)
}

func TestPack_Deterministic(t *testing.T) {
	srcDir := makeSaveDir(t)

	first, err := archive.Pack(srcDir)
	require.NoError(t, err)
	second, err := archive.Pack(srcDir)
	require.NoError(t, err)

	// Неизменная папка должна давать байт-в-байт одинаковый архив:
	// на этом держится обнаружение no-op синхронизаций по контрольной сумме.
	assert.Equal(t, first.Data, second.Data)
}

func TestPack_MissingDir(t *testing.T) {
	_, err := archive.Pack(filepath.Join(t.TempDir(), "missing"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "папка сохранений недоступна")
}

func TestPack_NotADir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.sav")
	require.NoError(t, os.WriteFile(file, []byte("data"), 0o644))

	_, err := archive.Pack(file)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "не является папкой")
}

func TestPack_FileModifiedAt(t *testing.T) {
	srcDir := t.TempDir()
	older := filepath.Join(srcDir, "old.sav")
	newer := filepath.Join(srcDir, "new.sav")
	require.NoError(t, os.WriteFile(older, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("new"), 0o644))

	oldTime := time.Now().Add(-24 * time.Hour)
	newTime := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, oldTime, oldTime))
	require.NoError(t, os.Chtimes(newer, newTime, newTime))

	payload, err := archive.Pack(srcDir)
	require.NoError(t, err)

	assert.WithinDuration(t, newTime, payload.FileModifiedAt, time.Second,
		"берется самое позднее время изменения")
}

func TestUnpack_Overwrites(t *testing.T) {
	srcDir := makeSaveDir(t)
	payload, err := archive.Pack(srcDir)
	require.NoError(t, err)

	targetDir := t.TempDir()
	stale := filepath.Join(targetDir, "save1.sav")
	require.NoError(t, os.WriteFile(stale, []byte("stale local data"), 0o644))

	require.NoError(t, archive.Unpack(payload.Data, targetDir))

	restored, err := os.ReadFile(stale)
	require.NoError(t, err)
	assert.Equal(t, []byte("slot one"), restored, "локальный файл перезаписывается")
}

func TestUnpack_InvalidArchive(t *testing.T) {
	err := archive.Unpack([]byte("not a zip"), t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ошибка чтения архива")
}
