// server/server.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package server exposes read-only engine telemetry: a JSON status
// endpoint and a websocket stream of snapshots. The engine never
// blocks on it; the host publishes a snapshot after each tick and slow
// consumers just miss frames.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/avsoar/soarnav/log"
	"github.com/avsoar/soarnav/soar"
)

const writeTimeout = 5 * time.Second

type Server struct {
	lg       *log.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	latest soar.Status
	have   bool
	subs   map[chan soar.Status]struct{}
}

func New(lg *log.Logger) *Server {
	return &Server{
		lg: lg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: make(map[chan soar.Status]struct{}),
	}
}

// Publish records the newest snapshot and fans it out to websocket
// subscribers. Never blocks; a subscriber with a full queue skips this
// frame.
func (s *Server) Publish(st soar.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = st
	s.have = true
	for ch := range s.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/ws", s.handleWS)
	return mux
}

// ListenAndServe blocks until ctx is canceled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	s.lg.Infof("telemetry listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st, have := s.latest, s.have
	s.mu.Unlock()

	if !have {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.lg.Warnf("writing status: %v", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.lg.Warnf("websocket upgrade: %v", err)
		return
	}

	ch := make(chan soar.Status, 8)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	if s.have {
		ch <- s.latest
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
		conn.Close()
	}()

	// Reader only watches for the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case st := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(st); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
