package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erazemk/cargocheck/internal/model"
)

func loadPending(ctx context.Context, docs Documents) ([]model.PendingSyncEntry, error) {
	data, err := docs.Get(ctx, KeyPendingSync)
	if err != nil {
		return nil, fmt.Errorf("loading pending sync: %w", err)
	}
	entries := []model.PendingSyncEntry{}
	if len(bytes.TrimSpace(data)) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding pending sync: %w", err)
	}
	return entries, nil
}

func encodePending(entries []model.PendingSyncEntry) ([]byte, error) {
	if entries == nil {
		entries = []model.PendingSyncEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encoding pending sync: %w", err)
	}
	return data, nil
}

// upsertPending records rec as pending. A record that was created and has not
// left the device yet stays a create.
func upsertPending(entries []model.PendingSyncEntry, rec model.InspectionRecord, action model.SyncAction, now time.Time) []model.PendingSyncEntry {
	for i := range entries {
		if entries[i].ID != rec.ID {
			continue
		}
		if entries[i].SyncAction != model.SyncActionCreate {
			entries[i].SyncAction = action
		}
		entries[i].InvoiceNumber = rec.InvoiceNumber
		entries[i].SyncTimestamp = now
		return entries
	}
	return append(entries, model.PendingSyncEntry{
		ID:            rec.ID,
		InvoiceNumber: rec.InvoiceNumber,
		SyncAction:    action,
		SyncTimestamp: now,
	})
}

func removePending(entries []model.PendingSyncEntry, ids map[string]bool) []model.PendingSyncEntry {
	kept := entries[:0]
	for _, e := range entries {
		if !ids[e.ID] {
			kept = append(kept, e)
		}
	}
	return kept
}
