// Package web embeds the chat panel frontend (dist/) and serves it.
package web

import (
	"embed"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

const indexFile = "index.html"

// PanelHandler serves the embedded panel. Paths that name no asset get
// index.html so deep links such as /?app=guestbook open the panel. The
// page itself is never cached; it carries no fingerprint.
func PanelHandler() http.Handler {
	assets, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: embedded dist missing: " + err.Error())
	}
	files := http.FileServer(http.FS(assets))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name != "" && name != indexFile {
			if info, err := fs.Stat(assets, name); err == nil && !info.IsDir() {
				files.ServeHTTP(w, r)
				return
			}
		}

		serveIndex(w, r, assets)
	})
}

func serveIndex(w http.ResponseWriter, r *http.Request, assets fs.FS) {
	f, err := assets.Open(indexFile)
	if err != nil {
		http.Error(w, "panel not built", http.StatusNotFound)
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Debug("web: failed to close index", "error", closeErr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "panel not built", http.StatusNotFound)
		return
	}
	content, ok := f.(io.ReadSeeker)
	if !ok {
		http.Error(w, "panel not servable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, indexFile, info.ModTime(), content)
}
