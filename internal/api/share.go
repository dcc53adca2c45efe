package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/erazemk/cargocheck/internal/export"
	"github.com/erazemk/cargocheck/internal/share"
	"github.com/erazemk/cargocheck/internal/store"
)

// ShareHandler serves and revokes export share links.
type ShareHandler struct {
	Issuer   *share.Issuer
	DB       *sql.DB
	Exporter *export.Orchestrator
}

// claims validates the {token} path value and checks it is not revoked.
// It writes the error response and returns nil when the link is unusable.
func (h *ShareHandler) claims(w http.ResponseWriter, r *http.Request) *share.Claims {
	if h.Issuer == nil {
		jsonError(w, http.StatusNotFound, "sharing is not enabled")
		return nil
	}
	claims, err := h.Issuer.Validate(r.PathValue("token"))
	if err != nil {
		jsonError(w, http.StatusNotFound, "share link not found or expired")
		return nil
	}

	revoked, err := store.ShareRevocations{DB: h.DB}.Revoked(r.Context(), claims.ID)
	if err != nil {
		slog.Error("checking share link", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to check share link")
		return nil
	}
	if revoked {
		jsonError(w, http.StatusGone, "share link revoked")
		return nil
	}
	return claims
}

// Download handles GET /api/share/{token}: the export folder as a zip.
func (h *ShareHandler) Download(w http.ResponseWriter, r *http.Request) {
	claims := h.claims(w, r)
	if claims == nil {
		return
	}

	fsys := h.Exporter.Filesystem()
	dir := filepath.Join(h.Exporter.Directory(), filepath.FromSlash(claims.Root))
	if ok, _ := afero.DirExists(fsys, dir); !ok {
		jsonError(w, http.StatusNotFound, "export folder no longer exists")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(claims.Root)+".zip"))
	if err := share.WriteZip(r.Context(), w, fsys, dir); err != nil {
		// Headers are already sent; the client sees a truncated archive.
		slog.Error("streaming export archive", "root", claims.Root, "error", err)
	}
}

// Revoke handles DELETE /api/share/{token}.
func (h *ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims := h.claims(w, r)
	if claims == nil {
		return
	}

	revs := store.ShareRevocations{DB: h.DB}
	if err := revs.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		appError(w, err, "failed to revoke share link")
		return
	}
	slog.Info("share link revoked", "jti", claims.ID, "root", claims.Root)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "share link revoked"})
}
