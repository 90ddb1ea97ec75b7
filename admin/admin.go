// Package admin provides HTML/JSON monitoring endpoints for a livelog Server.
//
// The handler is meant to be mounted on a separate, private listener, since
// the status report includes client addresses and user agents:
//
//	mux := http.NewServeMux()
//	mux.Handle("/admin/", admin.AdminHandler(s))
package admin

import (
	_ "embed"
	"encoding/json"
	"net/http"

	"github.com/mroth/livelog"
	"github.com/mroth/livelog/internal/debug"
)

//go:embed index.html
var html []byte

// Handles serving the static HTML page
func adminStatusHTMLHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}

// Handles serving the JSON status data, effectively the admin API endpoint
func adminStatusDataHandler(w http.ResponseWriter, r *http.Request, s *livelog.Server) {
	b, err := json.MarshalIndent(s.Status(), "", "  ")
	if err != nil {
		debug.Debug("error encoding status:", err)
		http.Error(w, "500 could not encode status", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(b)
}

// AdminHandler serves the monitoring page at /admin/ and the status report for
// s at /admin/status.json.
func AdminHandler(s *livelog.Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/" {
			http.NotFound(w, r)
			return
		}
		adminStatusHTMLHandler(w, r)
	})
	mux.HandleFunc("/admin/status.json", func(w http.ResponseWriter, r *http.Request) {
		adminStatusDataHandler(w, r, s)
	})
	return mux
}
