package models

import "time"

// DeviceOS описывает класс операционной системы устройства.
type DeviceOS string

// Поддерживаемые классы ОС.
const (
	OSWindows DeviceOS = "windows"
	OSLinux   DeviceOS = "linux"
	OSMacOS   DeviceOS = "macos"
)

// Device представляет зарегистрированное устройство пользователя.
// Истинный ключ уникальности — пара (user_id, machine_id): повторная
// регистрация с той же машины обновляет запись, а не создает дубликат.
type Device struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Name       string    `db:"name" json:"name"`
	OS         DeviceOS  `db:"os" json:"os"`
	MachineID  string    `db:"machine_id" json:"machine_id"`
	LastSeenAt time.Time `db:"last_seen_at" json:"last_seen_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`

	// IsCurrent выставляется на клиенте при сравнении machine_id,
	// в базе не хранится.
	IsCurrent bool `db:"-" json:"is_current,omitempty"`
}
