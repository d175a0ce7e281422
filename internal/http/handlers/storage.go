package handlers

import (
	"net/http"
	"strings"
)

// SignedRedirect issues a fresh signed URL for an object key and redirects
// to it.
func (a *App) SignedRedirect(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "key is required")
		return
	}
	if !a.Assets.OwnsKey(key) {
		a.error(w, http.StatusNotFound, "not_found", "object not found")
		return
	}
	ctx, cancel := detached(r, a.UpstreamTimeout)
	defer cancel()

	signed, err := a.Signer.Resolve(ctx, key)
	if err != nil {
		a.Logger.Error().Err(err).Str("object_key", key).Msg("sign object failed")
		a.error(w, http.StatusInternalServerError, "sign_failed", "failed to sign object url")
		return
	}
	http.Redirect(w, r, signed, http.StatusTemporaryRedirect)
}
