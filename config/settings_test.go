package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"traktsweep/config"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	manager := config.NewManager(path)

	settings, err := manager.Load()
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if settings.TokenFile != "trakt_auth.json" {
		t.Fatalf("unexpected default token file %q", settings.TokenFile)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected settings file created: %v", err)
	}
	// defaults must not validate, forcing the user to fill in credentials
	if err := settings.Validate(); !errors.Is(err, config.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	manager := config.NewManager(path)

	want := config.Settings{
		Trakt: config.TraktSettings{
			ClientID:     "id",
			ClientSecret: "secret",
			Username:     "watcher",
			KeepPerDay:   true,
		},
		TokenFile: "token.json",
	}
	if err := manager.Save(want); err != nil {
		t.Fatalf("save returned error: %v", err)
	}

	got, err := manager.Load()
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if got.Trakt != want.Trakt || got.TokenFile != want.TokenFile {
		t.Fatalf("round trip mismatch: %+v != %+v", got, want)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("expected valid settings, got %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CLIENT_ID", "env-id")
	t.Setenv("CLIENT_SECRET", "env-secret")
	t.Setenv("TRAKT_USERNAME", "env-user")
	t.Setenv("KEEP_PER_DAY", "true")

	settings := config.DefaultSettings()
	config.ApplyEnvOverrides(&settings)

	if settings.Trakt.ClientID != "env-id" || settings.Trakt.ClientSecret != "env-secret" {
		t.Fatalf("expected env credentials applied, got %+v", settings.Trakt)
	}
	if settings.Trakt.Username != "env-user" {
		t.Fatalf("expected env username, got %q", settings.Trakt.Username)
	}
	if !settings.Trakt.KeepPerDay {
		t.Fatal("expected keep-per-day enabled from env")
	}
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	settings := config.Settings{
		Trakt: config.TraktSettings{ClientID: "id", ClientSecret: "", Username: "user"},
	}
	if err := settings.Validate(); !errors.Is(err, config.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
