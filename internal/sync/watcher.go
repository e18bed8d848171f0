package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	stdsync "sync"
	"time"

	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
	"github.com/fsnotify/fsnotify"
)

// Интервал перечитывания списка отслеживаемых игр из каталога.
const defaultWatchRefresh = 30 * time.Second

// WatchSource перечисляет игры, папки которых нужно отслеживать.
type WatchSource interface {
	ListSyncEnabled(ctx context.Context) ([]models.Game, error)
}

// TriggerFunc запрашивает синхронизацию игры у планировщика.
type TriggerFunc func(gameID string, force bool)

// Watcher следит за папками сохранений и передает изменения планировщику.
// Список папок периодически перечитывается из каталога: добавленные игры
// подхватываются без перезапуска.
type Watcher struct {
	source  WatchSource
	trigger TriggerFunc
	refresh time.Duration
	fsw     *fsnotify.Watcher

	mu      stdsync.Mutex
	watched map[string]string // корневая папка игры -> ID игры
}

// NewWatcher создает наблюдатель за папками сохранений.
// Неположительный refresh заменяется значением по умолчанию.
func NewWatcher(source WatchSource, trigger TriggerFunc, refresh time.Duration) (*Watcher, error) {
	if refresh <= 0 {
		refresh = defaultWatchRefresh
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файлового наблюдателя: %w", err)
	}

	return &Watcher{
		source:  source,
		trigger: trigger,
		refresh: refresh,
		fsw:     fsw,
		watched: make(map[string]string),
	}, nil
}

// Run обрабатывает файловые события до отмены контекста.
func (w *Watcher) Run(ctx context.Context) error {
	w.refreshWatchList(ctx)

	ticker := time.NewTicker(w.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			w.refreshWatchList(ctx)

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			gameID := w.gameForPath(event.Name)
			if gameID == "" {
				continue
			}
			// Подпапка, созданная внутри отслеживаемой игры во время работы,
			// сама должна попасть под наблюдение: подписка не рекурсивна,
			// иначе записи в нее станут невидимыми до перезапуска.
			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					w.addTree(event.Name)
				}
			}
			log.Printf("[Watcher] Изменение в '%s', запрошена синхронизация игры %s", event.Name, gameID)
			w.trigger(gameID, false)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("[Watcher] Ошибка файлового наблюдателя: %v", err)
		}
	}
}

// Close останавливает наблюдение за всеми папками.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// refreshWatchList приводит набор отслеживаемых папок в соответствие
// с каталогом: новые игры добавляются, удаленные снимаются с наблюдения.
func (w *Watcher) refreshWatchList(ctx context.Context) {
	games, err := w.source.ListSyncEnabled(ctx)
	if err != nil {
		log.Printf("[Watcher] Ошибка чтения списка отслеживаемых игр: %v", err)
		return
	}

	current := make(map[string]string, len(games))
	for _, game := range games {
		root := filepath.Clean(game.LocalPath)
		current[root] = game.ID
	}

	w.mu.Lock()
	previous := w.watched
	w.watched = current
	w.mu.Unlock()

	for root := range previous {
		if _, ok := current[root]; !ok {
			w.removeTree(root)
		}
	}
	for root := range current {
		if _, ok := previous[root]; !ok {
			w.addTree(root)
		}
	}
}

// addTree подписывается на папку игры и все ее подпапки:
// наблюдатель не рекурсивен сам по себе.
func (w *Watcher) addTree(root string) {
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() {
			return nil
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			log.Printf("[Watcher] Не удалось подписаться на '%s': %v", path, addErr)
		}
		return nil
	})
	if err != nil {
		log.Printf("[Watcher] Ошибка обхода папки '%s': %v", root, err)
		return
	}
	log.Printf("[Watcher] Папка '%s' под наблюдением", root)
}

// removeTree снимает подписку с папки игры и ее подпапок.
func (w *Watcher) removeTree(root string) {
	for _, watched := range w.fsw.WatchList() {
		if watched == root || strings.HasPrefix(watched, root+string(os.PathSeparator)) {
			if err := w.fsw.Remove(watched); err != nil {
				log.Printf("[Watcher] Не удалось снять подписку с '%s': %v", watched, err)
			}
		}
	}
	log.Printf("[Watcher] Наблюдение за '%s' прекращено", root)
}

// gameForPath находит игру, которой принадлежит путь события.
func (w *Watcher) gameForPath(path string) string {
	path = filepath.Clean(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	for root, gameID := range w.watched {
		if path == root || strings.HasPrefix(path, root+string(os.PathSeparator)) {
			return gameID
		}
	}
	return ""
}
