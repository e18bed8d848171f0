package models

import (
	"regexp"
	"strings"
	"time"
)

// SyncStatus описывает текущее состояние синхронизации игры.
type SyncStatus string

// Возможные статусы синхронизации.
const (
	StatusIdle    SyncStatus = "idle"
	StatusSyncing SyncStatus = "syncing"
	StatusError   SyncStatus = "error"
	StatusSuccess SyncStatus = "success"
)

// GamePlatform описывает платформу, к которой привязана игра.
type GamePlatform string

// Поддерживаемые платформы.
const (
	PlatformSteam GamePlatform = "steam"
	PlatformEpic  GamePlatform = "epic"
	PlatformGOG   GamePlatform = "gog"
	PlatformOther GamePlatform = "other"
)

// Game представляет отслеживаемую папку сохранений.
// Локальные поля (LocalPath, SyncEnabled и т.д.) живут в локальном каталоге,
// облачная запись связывается через slug (уникальный в рамках пользователя).
type Game struct {
	ID                string       `db:"id" json:"id"`
	UserID            string       `db:"user_id" json:"user_id,omitempty"`
	Name              string       `db:"name" json:"name"`
	Slug              string       `db:"slug" json:"slug"`
	CoverURL          *string      `db:"cover_url" json:"cover_url,omitempty"`
	Platform          GamePlatform `db:"platform" json:"platform"`
	LocalPath         string       `db:"local_path" json:"local_path"`
	SyncEnabled       bool         `db:"sync_enabled" json:"sync_enabled"`
	LastSyncedAt      *time.Time   `db:"last_synced_at" json:"last_synced_at,omitempty"`
	LastSyncedVersion int64        `db:"last_synced_version" json:"last_synced_version"`
	Status            SyncStatus   `db:"status" json:"status"`
	CloudGameID       *string      `db:"cloud_game_id" json:"cloud_game_id,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`
}

// GamePath представляет привязку игры к локальному пути на конкретном устройстве.
type GamePath struct {
	ID          string     `db:"id" json:"id"`
	GameID      string     `db:"game_id" json:"game_id"`
	DeviceID    string     `db:"device_id" json:"device_id"`
	LocalPath   string     `db:"local_path" json:"local_path"`
	SyncEnabled bool       `db:"sync_enabled" json:"sync_enabled"`
	LastSynced  *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
}

// Символы, недопустимые в slug (всё, кроме латиницы, цифр и дефиса).
var slugInvalidChars = regexp.MustCompile(`[^a-z0-9-]+`)

// Slugify формирует url-безопасный slug из названия игры.
// Slug стабилен между устройствами: два устройства с одинаковым названием
// игры получают один и тот же slug и, как следствие, одну облачную запись.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = strings.Trim(slug, "-")
	return slug
}
