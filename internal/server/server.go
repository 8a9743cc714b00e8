package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/chatsweep/chatsweep/internal/history"
	"github.com/chatsweep/chatsweep/internal/messaging"
	"github.com/chatsweep/chatsweep/internal/session"
	"github.com/chatsweep/chatsweep/web"
)

type Server struct {
	Ledger   *history.Store
	Registry *session.Registry
	factory  messaging.Factory
	mux      *http.ServeMux
}

func New(ledger *history.Store, registry *session.Registry, factory messaging.Factory) *Server {
	s := &Server{
		Ledger:   ledger,
		Registry: registry,
		factory:  factory,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /history/{sessionID}", s.handleHistoryExport)
	s.mux.HandleFunc("GET /history-view/{sessionID}", s.handleHistoryView)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.registerStaticRoutes()
	return s
}

func (s *Server) registerStaticRoutes() {
	sub, _ := fs.Sub(web.FS, "static")
	s.mux.Handle("GET /", http.FileServer(http.FS(sub)))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHistoryExport serves a session's full ledger as a file download.
// Sessions without history get a 404; the view endpoint is the lenient one.
func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sessionID")
	data, err := s.Ledger.ExportRaw(id)
	if errors.Is(err, history.ErrNoHistory) {
		writeError(w, http.StatusNotFound, "no history for session")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="history-`+id+`.json"`)
	w.Write(data)
}

// handleHistoryView returns the ledger as a JSON list. Unknown session ids
// yield an empty list, not an error.
func (s *Server) handleHistoryView(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sessionID")
	records, err := s.Ledger.ReadAll(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Helpers

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
