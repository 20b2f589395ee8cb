package domain

import (
	"time"
)

// AssetRecord is the persisted view of an asset the user has touched.
type AssetRecord struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	IsWatched bool      `json:"is_watched" gorm:"index"` // watchlist membership
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Preference is one persisted user setting (Key-Value).
type Preference struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Preference keys.
const (
	PrefTheme    = "theme"
	PrefPageSize = "page_size"
)
