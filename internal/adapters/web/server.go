// Package web exposes the daemon's debug and control surface over HTTP.
// It attaches to the state machine as an active client so the control
// endpoints are usable for the daemon's whole lifetime.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
	"github.com/lcalzada-xor/wfdirect/internal/core/services/p2p"
)

// Server handles HTTP connections for status, control and metrics.
type Server struct {
	Addr    string
	Machine *p2p.Machine
	Journal ports.SessionJournal

	clientID string
	srv      *http.Server
}

// NewServer creates a new web server bound to the machine.
func NewServer(addr string, machine *p2p.Machine, journal ports.SessionJournal) *Server {
	return &Server{
		Addr:    addr,
		Machine: machine,
		Journal: journal,
	}
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	id, err := s.Machine.AttachClient("http-debug", true)
	if err != nil {
		return err
	}
	s.clientID = id

	s.srv = &http.Server{
		Addr:         s.Addr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logrus.Info("web server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("web server shutdown error")
		}
		if err := s.Machine.DetachClient(s.clientID); err != nil {
			logrus.WithError(err).Debug("detach debug client")
		}
	}()

	logrus.WithField("addr", s.Addr).Info("web server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
