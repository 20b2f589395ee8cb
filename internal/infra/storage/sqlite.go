package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"crypto_dash/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists the watchlist and user preferences in SQLite.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the database at path. An empty path uses the user config directory.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		p, err := getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Pure Go SQLite driver
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.AssetRecord{}, &domain.Preference{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "CryptoDash", "data", "crypto_dash.db"), nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Watchlist
// ======================================================================================

// UpsertAsset creates or updates asset metadata, keeping watch membership.
func (s *Storage) UpsertAsset(e domain.MarketEntry) error {
	rec, err := s.GetAsset(e.ID)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &domain.AssetRecord{ID: e.ID}
	}
	rec.Symbol = e.Symbol
	rec.Name = e.Name
	return s.db.Save(rec).Error
}

// GetAsset returns the record for id, or nil if none exists.
func (s *Storage) GetAsset(id string) (*domain.AssetRecord, error) {
	var rec domain.AssetRecord
	err := s.db.First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SetWatched records watchlist membership for id.
func (s *Storage) SetWatched(id string, watched bool) error {
	rec, err := s.GetAsset(id)
	if err != nil {
		return err
	}
	if rec == nil {
		if !watched {
			return nil
		}
		rec = &domain.AssetRecord{ID: id}
	}
	rec.IsWatched = watched
	return s.db.Save(rec).Error
}

// Watched returns the watched ids in the order they were first recorded.
func (s *Storage) Watched() ([]string, error) {
	var recs []domain.AssetRecord
	if err := s.db.Where("is_watched = ?", true).Order("created_at, id").Find(&recs).Error; err != nil {
		return nil, err
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids, nil
}

// ======================================================================================
// Preferences
// ======================================================================================

// SetPreference saves a user setting.
func (s *Storage) SetPreference(key, value string) error {
	return s.db.Save(&domain.Preference{Key: key, Value: value}).Error
}

// Preference loads one setting. ok is false when it was never saved.
func (s *Storage) Preference(key string) (string, bool, error) {
	var p domain.Preference
	err := s.db.Where(&domain.Preference{Key: key}).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return p.Value, true, nil
}

// Preferences loads every setting as a map.
func (s *Storage) Preferences() (map[string]string, error) {
	var prefs []domain.Preference
	if err := s.db.Find(&prefs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string, len(prefs))
	for _, p := range prefs {
		result[p.Key] = p.Value
	}
	return result, nil
}
