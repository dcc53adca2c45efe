package store

import (
	"context"
	"testing"

	"github.com/erazemk/cargocheck/internal/db"
)

func TestGetShareSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetShareSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	secret2, err := GetShareSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestLanguage(t *testing.T) {
	docs := &SQLiteDocuments{DB: db.NewTestDB(t)}
	ctx := context.Background()

	lang, err := Language(ctx, docs)
	if err != nil {
		t.Fatal(err)
	}
	if lang != DefaultLanguage {
		t.Errorf("expected default %q, got %q", DefaultLanguage, lang)
	}

	if err := SetLanguage(ctx, docs, "pt"); err != nil {
		t.Fatal(err)
	}
	lang, _ = Language(ctx, docs)
	if lang != "pt" {
		t.Errorf("expected pt, got %q", lang)
	}

	if err := SetLanguage(ctx, docs, " "); err == nil {
		t.Error("expected error for empty tag")
	}
}

func TestLastQualityInspectorEmpty(t *testing.T) {
	docs := &SQLiteDocuments{DB: db.NewTestDB(t)}
	got, err := LastQualityInspector(context.Background(), docs)
	if err != nil || got != "" {
		t.Errorf("expected empty inspector, got %q, %v", got, err)
	}
}
