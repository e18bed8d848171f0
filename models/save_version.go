package models

import "time"

// SaveVersion представляет неизменяемый снимок сохранения в облаке.
// Номера версий строго возрастают в рамках игры; флаг is_latest установлен
// не более чем у одной версии игры одновременно.
type SaveVersion struct {
	ID             string     `db:"id" json:"id"`
	GameID         string     `db:"game_id" json:"game_id"`
	DeviceID       *string    `db:"device_id" json:"device_id,omitempty"`
	Version        int64      `db:"version" json:"version"`
	FilePath       string     `db:"file_path" json:"file_path"`
	FileSize       int64      `db:"file_size" json:"file_size"`
	Checksum       string     `db:"checksum" json:"checksum"`
	IsLatest       bool       `db:"is_latest" json:"is_latest"`
	FileModifiedAt *time.Time `db:"file_modified_at" json:"file_modified_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`

	// DeviceName подтягивается JOIN-ом для отображения, в таблице версий не хранится.
	DeviceName *string `db:"device_name" json:"device_name,omitempty"`

	// Analysis — произвольные метрики, извлеченные из сохранения внешним
	// анализатором. Единственное допустимое изменение версии после создания.
	Analysis map[string]any `db:"-" json:"analysis,omitempty"`
}
