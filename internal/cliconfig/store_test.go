package cliconfig

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := Load(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load() on empty home = %v, want ErrNotExist", err)
	}

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := &CLIConfig{}
	if err := cfg.SetCredential("https://gw.example:8443/", "tok-1", now); err != nil {
		t.Fatal(err)
	}
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	path, _ := GetConfigPath()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("config file mode = %o, want 600", perm)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cred, err := loaded.GetCredential("https://gw.example:8443/v1")
	if err != nil {
		t.Fatalf("GetCredential() error = %v", err)
	}
	if cred.Token != "tok-1" || !cred.SavedAt.Equal(now) {
		t.Fatalf("unexpected credential %+v", cred)
	}
}

func TestCredentials(t *testing.T) {
	cfg := &CLIConfig{}
	tests := []struct {
		name    string
		server  string
		wantErr error
	}{
		{name: "Unknown Host", server: "https://other.example", wantErr: ErrCredentialNotFound},
		{name: "No Host", server: "gw.example", wantErr: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cfg.GetCredential(tt.server)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := cfg.SetCredential("https://gw.example", "tok", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := cfg.DeleteCredential("https://gw.example"); err != nil {
		t.Fatalf("DeleteCredential() error = %v", err)
	}
	if err := cfg.DeleteCredential("https://gw.example"); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("second delete = %v, want ErrCredentialNotFound", err)
	}
}
