package handlers

import (
	"embed"
	"net/http"
)

//go:embed static/index.html static/index.js
var static embed.FS

func serveAsset(w http.ResponseWriter, name, contentType string) {
	b, err := static.ReadFile(name)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(b)
}

// IndexHTML serves the demo page.
func IndexHTML(w http.ResponseWriter, r *http.Request) {
	serveAsset(w, "static/index.html", "text/html; charset=utf-8")
}

// IndexJS serves the demo page's script.
func IndexJS(w http.ResponseWriter, r *http.Request) {
	serveAsset(w, "static/index.js", "text/javascript; charset=utf-8")
}
