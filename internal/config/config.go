// Package config loads cargocheck settings from an optional config.yaml and
// CARGOCHECK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. CARGOCHECK_STORAGE_PATH.
const EnvPrefix = "CARGOCHECK"

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Output root timestamp styles.
const (
	TimestampDate = "date"
	TimestampFull = "full"
)

// Config holds all runtime settings.
type Config struct {
	Storage Storage
	Export  Export
	Share   Share
	Server  Server
	Links   Links
	Log     Log
}

// Storage selects the document backend.
type Storage struct {
	Driver string
	// Path is the SQLite file. SQLite also keeps settings and export history
	// when the Badger driver is used.
	Path string
	// BadgerDir is the Badger data directory.
	BadgerDir string
}

// Export configures the export orchestrator.
type Export struct {
	Dir                  string
	Prefix               string
	Timestamp            string
	Spreadsheet          bool
	EmailAttachmentLimit int
	OutboxDir            string
}

// Share configures signed download links.
type Share struct {
	BaseURL string
	TTL     time.Duration
}

// Server configures the HTTP listener.
type Server struct {
	Addr           string
	AllowedOrigins []string
}

// Links configures which URL schemes the messaging sink may open.
type Links struct {
	AllowedSchemes []string
}

// Log configures logging.
type Log struct {
	Level string
	File  string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Storage: Storage{
			Driver:    DriverSQLite,
			Path:      "cargocheck.db",
			BadgerDir: "cargocheck.badger",
		},
		Export: Export{
			Dir:                  "exports",
			Prefix:               "cargo",
			Timestamp:            TimestampDate,
			Spreadsheet:          true,
			EmailAttachmentLimit: 10,
			OutboxDir:            "outbox",
		},
		Share: Share{
			BaseURL: "http://localhost:8080",
			TTL:     24 * time.Hour,
		},
		Server: Server{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Links: Links{
			AllowedSchemes: []string{"whatsapp", "https"},
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads config.yaml from dir on fs, if present, and applies
// environment overrides on top of Default. A missing file is not an error.
func Load(fs afero.Fs, dir string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetFs(fs)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"storage.driver", "storage.path", "storage.badger_dir",
		"export.dir", "export.prefix", "export.timestamp", "export.spreadsheet",
		"export.email_attachment_limit", "export.outbox_dir",
		"share.base_url", "share.ttl",
		"server.addr", "server.allowed_origins",
		"links.allowed_schemes",
		"log.level", "log.file",
	} {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if dir != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return cfg, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	if v.IsSet("storage.driver") {
		cfg.Storage.Driver = v.GetString("storage.driver")
	}
	if v.IsSet("storage.path") {
		cfg.Storage.Path = v.GetString("storage.path")
	}
	if v.IsSet("storage.badger_dir") {
		cfg.Storage.BadgerDir = v.GetString("storage.badger_dir")
	}
	if v.IsSet("export.dir") {
		cfg.Export.Dir = v.GetString("export.dir")
	}
	if v.IsSet("export.prefix") {
		cfg.Export.Prefix = v.GetString("export.prefix")
	}
	if v.IsSet("export.timestamp") {
		cfg.Export.Timestamp = v.GetString("export.timestamp")
	}
	if v.IsSet("export.spreadsheet") {
		cfg.Export.Spreadsheet = v.GetBool("export.spreadsheet")
	}
	if v.IsSet("export.email_attachment_limit") {
		cfg.Export.EmailAttachmentLimit = v.GetInt("export.email_attachment_limit")
	}
	if v.IsSet("export.outbox_dir") {
		cfg.Export.OutboxDir = v.GetString("export.outbox_dir")
	}
	if v.IsSet("share.base_url") {
		cfg.Share.BaseURL = v.GetString("share.base_url")
	}
	if v.IsSet("share.ttl") {
		cfg.Share.TTL = v.GetDuration("share.ttl")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("links.allowed_schemes") {
		cfg.Links.AllowedSchemes = v.GetStringSlice("links.allowed_schemes")
	}
	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.file") {
		cfg.Log.File = v.GetString("log.file")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks enumerated and bounded settings.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverBadger:
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	switch c.Export.Timestamp {
	case TimestampDate, TimestampFull:
	default:
		return fmt.Errorf("export.timestamp: must be %q or %q", TimestampDate, TimestampFull)
	}
	if strings.TrimSpace(c.Export.Prefix) == "" {
		return errors.New("export.prefix: must not be empty")
	}
	if c.Export.EmailAttachmentLimit < 0 {
		return errors.New("export.email_attachment_limit: must not be negative")
	}
	if c.Share.TTL <= 0 {
		return errors.New("share.ttl: must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	return nil
}
