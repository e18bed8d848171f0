package sync

import (
	"sort"
	"time"

	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
)

// Емкость журнала по умолчанию: старые записи вытесняются.
const defaultLogCapacity = 50

// Окно, в котором подряд идущие записи об одной и той же операции
// считаются шумом от повторных срабатываний.
const collapseWindow = 2 * time.Minute

// ActivityLog — клиентский кэш последних операций синхронизации.
// Хранит оптимистичные локальные записи до подтверждения облаком и
// результаты слияния с облачной историей. Только чистые преобразования
// данных, без ввода-вывода.
type ActivityLog struct {
	capacity int
	entries  []models.SyncActivity // новые первыми
}

// NewActivityLog создает журнал с ограниченной емкостью.
// capacity <= 0 означает емкость по умолчанию.
func NewActivityLog(capacity int) *ActivityLog {
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	return &ActivityLog{capacity: capacity}
}

// Append добавляет запись в начало журнала (оптимистично, до подтверждения
// облаком). Самые старые записи вытесняются за пределами емкости.
func (l *ActivityLog) Append(activity models.SyncActivity) {
	l.entries = append([]models.SyncActivity{activity}, l.entries...)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
}

// Confirm заменяет оптимистичную запись подтвержденной облаком копией
// с авторитетным ID и отметкой времени. Если запись уже вытеснена,
// подтвержденная копия просто добавляется.
func (l *ActivityLog) Confirm(localID string, confirmed models.SyncActivity) {
	for i := range l.entries {
		if l.entries[i].ID == localID {
			l.entries[i] = confirmed
			return
		}
	}
	l.Append(confirmed)
}

// Merge сливает облачную историю с локальными записями. Дедупликация по ID:
// облачная запись с тем же ID заменяет локальную оптимистичную копию.
// Результат упорядочен по убыванию времени и ограничен емкостью.
func (l *ActivityLog) Merge(cloud []models.SyncActivity) {
	byID := make(map[string]models.SyncActivity, len(l.entries)+len(cloud))
	for _, entry := range l.entries {
		byID[entry.ID] = entry
	}
	for _, entry := range cloud {
		byID[entry.ID] = entry // облачная запись авторитетна
	}

	merged := make([]models.SyncActivity, 0, len(byID))
	for _, entry := range byID {
		merged = append(merged, entry)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	if len(merged) > l.capacity {
		merged = merged[:l.capacity]
	}
	l.entries = merged
}

// List возвращает копию записей журнала, новые первыми.
func (l *ActivityLog) List() []models.SyncActivity {
	out := make([]models.SyncActivity, len(l.entries))
	copy(out, l.entries)
	return out
}

// VisibleActivities отфильтровывает малоинформативные записи (пропуски)
// для отображения по умолчанию.
func VisibleActivities(items []models.SyncActivity) []models.SyncActivity {
	out := make([]models.SyncActivity, 0, len(items))
	for _, item := range items {
		if item.Action != models.ActionSkip {
			out = append(out, item)
		}
	}
	return out
}

// CollapseConsecutive схлопывает подряд идущие записи об одной операции
// (игра, действие, статус, устройство), попавшие в короткое окно времени:
// остается только самая свежая. Вход ожидается отсортированным по убыванию
// времени создания.
func CollapseConsecutive(items []models.SyncActivity, window time.Duration) []models.SyncActivity {
	if window <= 0 {
		window = collapseWindow
	}

	out := make([]models.SyncActivity, 0, len(items))
	for _, item := range items {
		if len(out) == 0 {
			out = append(out, item)
			continue
		}

		prev := out[len(out)-1]
		sameKind := prev.GameID == item.GameID &&
			prev.Action == item.Action &&
			prev.Status == item.Status &&
			equalDeviceNames(prev.DeviceName, item.DeviceName)
		if !sameKind {
			out = append(out, item)
			continue
		}

		// prev свежее item (сортировка по убыванию): отбрасываем старый дубликат.
		if prev.CreatedAt.Sub(item.CreatedAt).Abs() <= window {
			continue
		}
		out = append(out, item)
	}
	return out
}

// SortErrorsFirst возвращает копию списка, где ошибки идут первыми,
// внутри групп — сортировка по убыванию времени.
func SortErrorsFirst(items []models.SyncActivity) []models.SyncActivity {
	out := make([]models.SyncActivity, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		iErr := out[i].Status == models.ActivityError
		jErr := out[j].Status == models.ActivityError
		if iErr != jErr {
			return iErr
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// equalDeviceNames сравнивает опциональные имена устройств.
func equalDeviceNames(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
