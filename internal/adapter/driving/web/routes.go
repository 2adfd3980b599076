package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes registers all web GUI routes on the provided mux.
// Web routes serve HTML at / and /app/* paths.
// Static assets are served from the embedded filesystem at /static/*.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	staticFS, _ := fs.Sub(StaticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// Tabs.
	mux.HandleFunc("GET /{$}", h.Pending)
	mux.HandleFunc("GET /app/escalations", h.Escalations)
	mux.HandleFunc("GET /app/history/{status}", h.History)

	// Form posts, all CSRF-checked.
	mux.HandleFunc("POST /app/pending/{id}/approve", h.ApprovePending)
	mux.HandleFunc("POST /app/pending/{id}/reject", h.RejectPending)
	mux.HandleFunc("POST /app/pending/{id}/edit", h.EditPending)
	mux.HandleFunc("POST /app/pending/{id}/reset", h.ResetPending)
	mux.HandleFunc("POST /app/pending/{id}/annotations/{index}/delete", h.DeleteAnnotation)
	mux.HandleFunc("POST /app/escalations/{owner}/{repo}/{number}/clear", h.ClearEscalation)
}
