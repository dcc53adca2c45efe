package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/erazemk/cargocheck/internal/apperr"
)

// DefaultLanguage is used when no app_language has been stored.
const DefaultLanguage = "en"

// LastQualityInspector returns the inspector of the most recently created
// record, used to pre-fill the next entry form. Empty if none.
func LastQualityInspector(ctx context.Context, docs Documents) (string, error) {
	value, err := docs.Get(ctx, KeyLastQualityInspector)
	if err != nil {
		return "", fmt.Errorf("getting last quality inspector: %w", err)
	}
	return string(value), nil
}

// Language returns the stored language tag, or DefaultLanguage.
func Language(ctx context.Context, docs Documents) (string, error) {
	value, err := docs.Get(ctx, KeyAppLanguage)
	if err != nil {
		return "", fmt.Errorf("getting app language: %w", err)
	}
	if len(value) == 0 {
		return DefaultLanguage, nil
	}
	return string(value), nil
}

// SetLanguage stores the language tag consumed by the presentation layer.
func SetLanguage(ctx context.Context, docs Documents, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return apperr.Validation(map[string]string{"language": "required"})
	}
	if err := docs.Put(ctx, Document{Key: KeyAppLanguage, Value: []byte(tag)}); err != nil {
		return fmt.Errorf("setting app language: %w", err)
	}
	return nil
}

// GetShareSecret retrieves the share-link signing key from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Uses INSERT OR IGNORE + re-SELECT to avoid TOCTOU race on concurrent startup.
func GetShareSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating share secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('share_secret', ?)`,
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing share_secret: %w", err)
	}

	var secret string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'share_secret'`,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying share_secret: %w", err)
	}

	return secret, nil
}
