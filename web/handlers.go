package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user := s.config.FindUser(req.Username)
	if user == nil || !checkPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := s.sessions.setUser(w, r, user.Username, user.Role); err != nil {
		writeError(w, http.StatusInternalServerError, "session error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"username": user.Username,
		"role":     user.Role,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.clear(w, r)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gw.Status())
}

func (s *Server) handleRegisters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gw.Snapshot())
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "group")
	gv := s.gw.Group(name)
	if gv == nil {
		writeError(w, http.StatusNotFound, "unknown group or no data yet")
		return
	}
	writeJSON(w, http.StatusOK, gv)
}

type writeRequest struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "group")

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := s.gw.Write(name, req.Index, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
