package sync

import (
	"log"
	"sync"
	"time"
)

// Интервалы сглаживания по умолчанию: debounce гасит шквалы файловых
// событий, cooldown защищает облако от слишком частых циклов одной игры.
const (
	defaultDebounce = 3 * time.Second
	defaultCooldown = 30 * time.Second
)

// RunFunc выполняет один цикл синхронизации игры.
type RunFunc func(gameID string, force bool)

// Scheduler сглаживает поток запросов на синхронизацию. Все состояние
// инкапсулировано в экземпляре: несколько планировщиков сосуществуют
// независимо друг от друга.
type Scheduler struct {
	mu        sync.Mutex
	debounce  time.Duration
	cooldown  time.Duration
	run       RunFunc
	timers    map[string]*time.Timer
	completed map[string]time.Time
	stopped   bool
}

// NewScheduler создает планировщик. Неположительные интервалы заменяются
// значениями по умолчанию.
func NewScheduler(debounce, cooldown time.Duration, run RunFunc) *Scheduler {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Scheduler{
		debounce:  debounce,
		cooldown:  cooldown,
		run:       run,
		timers:    make(map[string]*time.Timer),
		completed: make(map[string]time.Time),
	}
}

// Trigger запрашивает синхронизацию игры. Обычный запрос откладывается
// на debounce-окно, повторные запросы в окне перезапускают таймер:
// шквал событий схлопывается в один цикл. Принудительный запрос (force)
// обходит и debounce, и cooldown.
func (s *Scheduler) Trigger(gameID string, force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if force {
		if timer, ok := s.timers[gameID]; ok {
			timer.Stop()
			delete(s.timers, gameID)
		}
		go s.execute(gameID, true)
		return
	}

	if timer, ok := s.timers[gameID]; ok {
		timer.Stop()
	}
	s.timers[gameID] = time.AfterFunc(s.debounce, func() {
		s.fire(gameID)
	})
}

// fire срабатывает по истечении debounce-окна.
func (s *Scheduler) fire(gameID string) {
	s.mu.Lock()
	delete(s.timers, gameID)
	if s.stopped {
		s.mu.Unlock()
		return
	}
	last, ok := s.completed[gameID]
	s.mu.Unlock()

	if ok && time.Since(last) < s.cooldown {
		log.Printf("[Scheduler] Игра %s в периоде охлаждения, запрос отброшен", gameID)
		return
	}
	s.execute(gameID, false)
}

// execute выполняет цикл и фиксирует момент завершения. Отметка ставится
// независимо от исхода: неудачный цикл тоже откладывает следующую попытку.
func (s *Scheduler) execute(gameID string, force bool) {
	s.run(gameID, force)

	s.mu.Lock()
	s.completed[gameID] = time.Now()
	s.mu.Unlock()
}

// Stop отменяет все отложенные запросы. Уже запущенные циклы продолжаются.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for gameID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, gameID)
	}
}
