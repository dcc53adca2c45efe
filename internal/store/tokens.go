package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ShareRevocations is the deny-list for share links. Links are signed and
// carry their own expiry, so an entry is only kept until the link would have
// expired anyway.
type ShareRevocations struct {
	DB  *sql.DB
	Now func() time.Time
}

func (s ShareRevocations) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Revoke denies the link with the given token ID until it expires. Revoking
// the same link again extends the entry to the later expiry.
func (s ShareRevocations) Revoke(ctx context.Context, jti string, until time.Time) error {
	if jti == "" {
		return fmt.Errorf("revoking share link: empty token id")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("revoking share link: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO revoked_share_tokens (jti, expires_at) VALUES (?, ?)
		ON CONFLICT (jti) DO UPDATE SET expires_at = max(expires_at, excluded.expires_at)`,
		jti, until.UTC(),
	); err != nil {
		return fmt.Errorf("revoking share link %s: %w", jti, err)
	}
	if _, err := pruneRevocations(ctx, tx, s.now()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("revoking share link %s: %w", jti, err)
	}
	return nil
}

// Revoked reports whether the link with the given token ID is denied.
func (s ShareRevocations) Revoked(ctx context.Context, jti string) (bool, error) {
	var denied bool
	if err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_share_tokens WHERE jti = ?)`, jti,
	).Scan(&denied); err != nil {
		return false, fmt.Errorf("looking up share link %s: %w", jti, err)
	}
	return denied, nil
}

// Prune drops entries for links that have expired and returns how many went.
func (s ShareRevocations) Prune(ctx context.Context) (int64, error) {
	return pruneRevocations(ctx, s.DB, s.now())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func pruneRevocations(ctx context.Context, db execer, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM revoked_share_tokens WHERE expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("pruning share revocations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning share revocations: %w", err)
	}
	return n, nil
}
