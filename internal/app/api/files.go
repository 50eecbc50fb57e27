package api

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// audioFile serves files referenced by player markup (src="file/<audio dir>/<name>").
// Anything outside the audio dir is reported as missing.
func (api *API) audioFile(w http.ResponseWriter, r *http.Request) {
	requested := path.Clean(chi.URLParam(r, "*"))
	dir := path.Clean(filepath.ToSlash(api.audioDir))

	if !strings.HasPrefix(requested, dir+"/") {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filepath.FromSlash(requested))
}
