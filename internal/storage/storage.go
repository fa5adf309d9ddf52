package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"spot_trader/internal/models"
)

// DefaultSettingsFile is used when no path is configured.
const DefaultSettingsFile = "trader_settings.json"

// ErrSettingsMissing is returned when the settings file does not exist.
var ErrSettingsMissing = errors.New("settings file missing")

// SettingsStore persists the trading settings as JSON.
type SettingsStore struct {
	mu   sync.Mutex
	path string
}

// NewSettingsStore returns a store for path.
func NewSettingsStore(path string) *SettingsStore {
	if path == "" {
		path = DefaultSettingsFile
	}
	return &SettingsStore{path: path}
}

// Path returns the file the store reads and writes.
func (s *SettingsStore) Path() string {
	return s.path
}

// Load reads the settings file, migrating older schema versions in place.
func (s *SettingsStore) Load() (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st models.Settings
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, fmt.Errorf("%w: %s", ErrSettingsMissing, s.path)
		}
		return st, err
	}

	if err := json.Unmarshal(b, &st); err != nil {
		return st, fmt.Errorf("parse %s: %w", s.path, err)
	}

	if migrateSettings(&st) {
		log.Printf("INFO: Settings migrated to version %s. Saving...", st.Version)
		if err := s.write(st); err != nil {
			return st, err
		}
	}

	return st, nil
}

// Save writes the settings atomically.
func (s *SettingsStore) Save(st models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Version == "" {
		st.Version = models.SettingsVersion
	}
	return s.write(st)
}

// Init writes the default settings if no file exists yet.
// It reports whether a file was created.
func (s *SettingsStore) Init() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	log.Printf("Settings file %s missing, writing template...", s.path)
	return true, s.write(models.DefaultSettings())
}

// migrateSettings handles schema evolution.
// Returns true if changes were made and the file needs to be saved.
func migrateSettings(st *models.Settings) bool {
	updated := false
	def := models.DefaultSettings()

	if st.Version == "" {
		st.Version = "1.0"
	}

	// 1.0 -> 1.1: reload checkpoints and order book cadence
	if st.Version < "1.1" {
		log.Println("INFO: Migrating Settings Schema from 1.0 to 1.1")
		if st.ResetInterval == 0 {
			st.ResetInterval = def.ResetInterval
		}
		if st.CeilingFloorInterval == 0 {
			st.CeilingFloorInterval = def.CeilingFloorInterval
		}
		st.Version = "1.1"
		updated = true
	}

	// 1.1 -> 1.2: precisions and policy switches
	if st.Version < "1.2" {
		log.Println("INFO: Migrating Settings Schema from 1.1 to 1.2")
		if st.QuantityPrecision == 0 {
			st.QuantityPrecision = def.QuantityPrecision
		}
		if st.PricePrecision == 0 {
			st.PricePrecision = def.PricePrecision
		}
		if st.StopLossFirst == nil {
			st.StopLossFirst = models.Bool(true)
		}
		if st.ConfirmTrend == nil {
			st.ConfirmTrend = models.Bool(true)
		}
		st.Version = "1.2"
		updated = true
	}

	return updated
}

// write saves st with the tmp file + fsync + rename pattern. Caller holds s.mu.
func (s *SettingsStore) write(st models.Settings) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}

	tmpFile := s.path + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("write temp settings file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp settings file: %w", err)
	}
	// Close before renaming (required on Windows)
	f.Close()

	if err := os.Rename(tmpFile, s.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
