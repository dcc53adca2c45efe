// Package share issues signed, expiring download links for export output
// folders and streams those folders as zip archives.
package share

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// DefaultTTL is the default link lifetime.
const DefaultTTL = 24 * time.Hour

// ErrInvalidLink is returned for malformed, forged or expired links.
var ErrInvalidLink = errors.New("invalid share link")

// Claims are the JWT claims of a share link.
type Claims struct {
	// Root is the export output root, relative to the export directory.
	Root  string `json:"root"`
	RunID string `json:"run,omitempty"`
	jwt.RegisteredClaims
}

// Link is an issued share link.
type Link struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issuer signs and validates share links.
type Issuer struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

// NewIssuer returns an Issuer producing links under baseURL.
func NewIssuer(secret, baseURL string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock sets the time source and returns the issuer.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue creates a link to the output root (relative to the export directory).
func (i *Issuer) Issue(root, runID string) (*Link, error) {
	now := i.now()
	claims := Claims{
		Root:  filepath.ToSlash(root),
		RunID: runID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("signing share link: %w", err)
	}

	return &Link{
		URL:       i.baseURL + "/api/share/" + url.PathEscape(signed),
		Token:     signed,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Validate parses a link token and returns its claims.
func (i *Issuer) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLink, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidLink
	}
	if !LocalRoot(claims.Root) {
		return nil, fmt.Errorf("%w: root escapes export directory", ErrInvalidLink)
	}
	return claims, nil
}

// LocalRoot reports whether root is a plain relative path that stays inside
// the export directory.
func LocalRoot(root string) bool {
	if root == "" || path.IsAbs(root) {
		return false
	}
	return filepath.IsLocal(filepath.FromSlash(root))
}

// LinkSharer shares an export by issuing a download link for its output root.
type LinkSharer struct {
	Issuer *Issuer
	// Dir is the export directory output roots live in.
	Dir string
}

// Available reports whether links can be issued.
func (s *LinkSharer) Available() bool {
	return s != nil && s.Issuer != nil && len(s.Issuer.secret) > 0
}

// Share returns a download link for root.
func (s *LinkSharer) Share(_ context.Context, root, runID string) (string, error) {
	rel, err := filepath.Rel(s.Dir, root)
	if err != nil || !LocalRoot(filepath.ToSlash(rel)) {
		return "", fmt.Errorf("export folder %s is outside %s", root, s.Dir)
	}
	link, err := s.Issuer.Issue(rel, runID)
	if err != nil {
		return "", err
	}
	return link.URL, nil
}

// WriteZip streams every regular file below dir on fsys to w as a zip
// archive. Entry names are relative to dir's parent, so the archive unpacks
// into a folder named like dir.
func WriteZip(ctx context.Context, w io.Writer, fsys afero.Fs, dir string) error {
	info, err := fsys.Stat(dir)
	if err != nil {
		return fmt.Errorf("opening export folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("export folder %s is not a directory", dir)
	}

	zw := zip.NewWriter(w)
	base := filepath.Dir(dir)

	err = afero.Walk(fsys, dir, func(p string, fi fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}

		hdr, err := zip.FileInfoHeader(fi)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate

		dst, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		src, err := fsys.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(dst, src)
		src.Close()
		return err
	})
	if err != nil {
		return fmt.Errorf("archiving export folder: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	return nil
}
