package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps machine errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrDisabled), errors.Is(err, domain.ErrNotSupported):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUnknownPeer), errors.Is(err, domain.ErrInvalidConfig):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.Machine.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	status, err := s.Machine.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status.Peers)
}

func (s *Server) handleDiscoveryStart(w http.ResponseWriter, r *http.Request) {
	scan := ports.ScanFull
	freq := 0
	switch r.URL.Query().Get("scan") {
	case "social":
		scan = ports.ScanSocial
	case "freq":
		scan = ports.ScanSingleFreq
		f, err := strconv.Atoi(r.URL.Query().Get("freq"))
		if err != nil || f <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "freq required for single-frequency scan"})
			return
		}
		freq = f
	}
	if err := s.Machine.StartDiscovery(scan, freq); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "discovering"})
}

func (s *Server) handleDiscoveryStop(w http.ResponseWriter, r *http.Request) {
	if err := s.Machine.StopDiscovery(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var cfg domain.ConnectConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := s.Machine.Connect(s.clientID, cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "connecting", "peer": cfg.PeerAddress})
}

func (s *Server) handleCancelConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.Machine.CancelConnect(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var cfg domain.ConnectConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := s.Machine.CreateGroup(s.clientID, cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "creating"})
}

func (s *Server) handleRemoveGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.Machine.RemoveGroup(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handlePersistentGroups(w http.ResponseWriter, r *http.Request) {
	status, err := s.Machine.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status.PersistentGroups)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		writeJSON(w, http.StatusOK, []ports.ConnectionSession{})
		return
	}
	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	sessions, err := s.Journal.RecentSessions(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []ports.ConnectionSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleSetDeviceName(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name required"})
		return
	}
	if err := s.Machine.SetDeviceName(body.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": body.Name})
}

func (s *Server) handleFactoryReset(w http.ResponseWriter, r *http.Request) {
	if err := s.Machine.FactoryReset(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
