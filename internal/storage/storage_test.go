package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"spot_trader/internal/models"
)

func TestLoad_Missing(t *testing.T) {
	store := NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))
	if _, err := store.Load(); !errors.Is(err, ErrSettingsMissing) {
		t.Errorf("Expected ErrSettingsMissing, got %v", err)
	}
}

func TestMigrateSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	legacyJSON := `{
		"version": "1.0",
		"exchange": "binance",
		"symbol": "ETHUSDT",
		"asset": "ETH",
		"quote": "USDT",
		"strategy": "volume",
		"mode": "paper",
		"buy_percent": 2,
		"starting_amount": 500
	}`
	if err := os.WriteFile(path, []byte(legacyJSON), 0644); err != nil {
		t.Fatalf("Failed to write legacy settings: %v", err)
	}

	store := NewSettingsStore(path)
	s, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.Version != models.SettingsVersion {
		t.Errorf("Expected version %s, got %s", models.SettingsVersion, s.Version)
	}
	if s.ResetInterval != 10 || s.CeilingFloorInterval != 5 {
		t.Errorf("Expected interval backfill, got reset=%d ceiling=%d", s.ResetInterval, s.CeilingFloorInterval)
	}
	if s.QuantityPrecision != 6 || s.PricePrecision != 8 {
		t.Errorf("Expected precision backfill, got %d/%d", s.QuantityPrecision, s.PricePrecision)
	}
	if s.StopLossFirst == nil || !*s.StopLossFirst {
		t.Error("Expected StopLossFirst backfilled to true")
	}
	if s.BuyPercent != 2 || s.Symbol != "ETHUSDT" {
		t.Errorf("Existing fields changed: %+v", s)
	}

	// Verify persistence (Load again)
	s2, err := store.Load()
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if s2.Version != models.SettingsVersion {
		t.Errorf("Persisted version mismatch: got %s", s2.Version)
	}
}

func TestSaveLoad(t *testing.T) {
	store := NewSettingsStore(filepath.Join(t.TempDir(), "nested", "settings.json"))
	in := models.DefaultSettings()
	in.Symbol = "SOLUSDT"
	in.ConfirmTrend = models.Bool(false)

	if err := store.Save(in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(store.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out.Symbol != "SOLUSDT" {
		t.Errorf("Expected SOLUSDT, got %s", out.Symbol)
	}
	if out.Policy().ConfirmTrend {
		t.Error("Expected ConfirmTrend false to survive a round trip")
	}
}

func TestInit(t *testing.T) {
	store := NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))

	created, err := store.Init()
	if err != nil || !created {
		t.Fatalf("Expected template written, created=%v err=%v", created, err)
	}
	created, err = store.Init()
	if err != nil || created {
		t.Errorf("Expected existing file kept, created=%v err=%v", created, err)
	}

	s, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("template does not validate: %v", err)
	}
}
