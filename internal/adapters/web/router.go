package web

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcalzada-xor/wfdirect/internal/telemetry"
)

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(telemetry.InstrumentHandler)

	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/peers", s.handlePeers).Methods(http.MethodGet)

	r.HandleFunc("/api/discovery/start", s.handleDiscoveryStart).Methods(http.MethodPost)
	r.HandleFunc("/api/discovery/stop", s.handleDiscoveryStop).Methods(http.MethodPost)

	r.HandleFunc("/api/connect", s.handleConnect).Methods(http.MethodPost)
	r.HandleFunc("/api/connect/cancel", s.handleCancelConnect).Methods(http.MethodPost)

	r.HandleFunc("/api/group", s.handleCreateGroup).Methods(http.MethodPost)
	r.HandleFunc("/api/group", s.handleRemoveGroup).Methods(http.MethodDelete)
	r.HandleFunc("/api/groups/persistent", s.handlePersistentGroups).Methods(http.MethodGet)

	r.HandleFunc("/api/sessions", s.handleSessions).Methods(http.MethodGet)

	r.HandleFunc("/api/device/name", s.handleSetDeviceName).Methods(http.MethodPut)
	r.HandleFunc("/api/reset", s.handleFactoryReset).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}
