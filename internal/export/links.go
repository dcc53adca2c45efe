package export

import (
	"context"
	"log/slog"
	"net/url"
	"slices"
	"strings"
)

// SchemeOpener accepts links whose scheme is allowed and leaves opening them
// to the client that requested the export.
type SchemeOpener struct {
	Allowed []string
}

// CanOpen reports whether the link's scheme is allowed.
func (s SchemeOpener) CanOpen(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return false
	}
	return slices.ContainsFunc(s.Allowed, func(a string) bool {
		return strings.EqualFold(a, u.Scheme)
	})
}

// Open records the handoff.
func (s SchemeOpener) Open(_ context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	slog.Info("messaging link ready", "scheme", u.Scheme, "length", len(rawURL))
	return nil
}
