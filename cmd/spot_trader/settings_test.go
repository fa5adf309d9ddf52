package main

import (
	"path/filepath"
	"testing"

	"spot_trader/internal/config"
	"spot_trader/internal/storage"
)

func TestInitSettings_Alpaca(t *testing.T) {
	store := storage.NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))

	created, err := initSettings(store, config.ExchangeAlpaca)
	if err != nil || !created {
		t.Fatalf("Expected a new file, got created=%v err=%v", created, err)
	}
	st, _ := store.Load()
	if st.Exchange != "alpaca" || st.Symbol != "BTC/USD" || st.Quote != "USD" {
		t.Errorf("Expected Alpaca pair naming, got %s %s %s", st.Exchange, st.Symbol, st.Quote)
	}

	created, err = initSettings(store, config.ExchangeBinance)
	if err != nil || created {
		t.Errorf("Existing file must be left alone, got created=%v err=%v", created, err)
	}
}

func TestSetSetting(t *testing.T) {
	store := storage.NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))
	if _, err := initSettings(store, config.ExchangeBinance); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if err := setSetting(store, "strategy", "bollinger"); err != nil {
		t.Fatalf("setSetting failed: %v", err)
	}
	st, _ := store.Load()
	if st.Strategy != "bollinger" {
		t.Errorf("Expected bollinger, got %s", st.Strategy)
	}

	if err := setSetting(store, "strategy", "bollinger"); err == nil {
		t.Error("Expected an error for a no-op change")
	}
	if err := setSetting(store, "mode", "sideways"); err == nil {
		t.Error("Expected validation to reject an unknown mode")
	}
}
