package models

import "time"

// SyncAction описывает тип операции синхронизации.
type SyncAction string

// Возможные действия.
const (
	ActionUpload   SyncAction = "upload"
	ActionDownload SyncAction = "download"
	ActionSkip     SyncAction = "skip"
	ActionConflict SyncAction = "conflict"
)

// ActivityStatus описывает исход операции.
type ActivityStatus string

// Возможные статусы записи журнала.
const (
	ActivitySuccess ActivityStatus = "success"
	ActivityError   ActivityStatus = "error"
	ActivityPending ActivityStatus = "pending"
)

// SyncActivity представляет запись журнала операций синхронизации.
// Журнал append-only: записи создаются для каждой попытки операции,
// включая пропуски (skip) и ошибки, и никогда не изменяются.
type SyncActivity struct {
	ID            string         `db:"id" json:"id"`
	GameID        string         `db:"game_id" json:"game_id"`
	GameName      string         `db:"game_name" json:"game_name,omitempty"`
	GameCover     *string        `db:"game_cover" json:"game_cover,omitempty"`
	DeviceID      *string        `db:"device_id" json:"device_id,omitempty"`
	DeviceName    *string        `db:"device_name" json:"device_name,omitempty"`
	Action        SyncAction     `db:"action" json:"action"`
	Status        ActivityStatus `db:"status" json:"status"`
	SaveVersionID *string        `db:"save_version_id" json:"save_version_id,omitempty"`
	Message       *string        `db:"message" json:"message,omitempty"`
	FileSize      *int64         `db:"file_size" json:"file_size,omitempty"`
	DurationMs    *int64         `db:"duration_ms" json:"duration_ms,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}
