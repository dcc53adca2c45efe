package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "/etc/cargocheck")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Storage.Driver != def.Storage.Driver || cfg.Export.Prefix != def.Export.Prefix {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.Export.EmailAttachmentLimit != 10 {
		t.Errorf("expected attachment limit 10, got %d", cfg.Export.EmailAttachmentLimit)
	}
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	yaml := `
storage:
  driver: badger
  badger_dir: /data/badger
export:
  prefix: dock7
  timestamp: full
  spreadsheet: false
share:
  ttl: 2h
server:
  allowed_origins:
    - https://dock.example
`
	if err := afero.WriteFile(fs, "/cfg/config.yaml", []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(fs, "/cfg")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != DriverBadger || cfg.Storage.BadgerDir != "/data/badger" {
		t.Errorf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Export.Prefix != "dock7" || cfg.Export.Timestamp != TimestampFull || cfg.Export.Spreadsheet {
		t.Errorf("unexpected export %+v", cfg.Export)
	}
	if cfg.Share.TTL != 2*time.Hour {
		t.Errorf("expected ttl 2h, got %v", cfg.Share.TTL)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://dock.example" {
		t.Errorf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr to survive, got %q", cfg.Server.Addr)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/cfg/config.yaml", []byte("export:\n  prefix: file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CARGOCHECK_EXPORT_PREFIX", "env")
	t.Setenv("CARGOCHECK_LOG_LEVEL", "debug")

	cfg, err := Load(fs, "/cfg")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Export.Prefix != "env" {
		t.Errorf("expected env prefix, got %q", cfg.Export.Prefix)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Log.Level)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"driver":    "storage:\n  driver: postgres\n",
		"timestamp": "export:\n  timestamp: weekly\n",
		"level":     "log:\n  level: loud\n",
		"yaml":      "export: [unclosed\n",
	}
	for name, yaml := range tests {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if err := afero.WriteFile(fs, "/cfg/config.yaml", []byte(yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(fs, "/cfg"); err == nil {
				t.Error("expected error")
			}
		})
	}
}
