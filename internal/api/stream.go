package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// handleStream upgrades to a WebSocket and pushes the region's flights on
// every stream interval until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		s.log.Warn("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	m := s.feed.Metrics()
	m.StreamOpened()
	defer m.StreamClosed()

	s.log.Info("Stream %s opened for %s", session, s.feed.Key(q))
	defer s.log.Info("Stream %s closed", session)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: handles pongs and notices the client closing.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("Stream %s read error: %v", session, err)
				}
				return
			}
		}
	}()

	push := time.NewTicker(s.streamInterval)
	defer push.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	send := func() bool {
		result := s.feed.Flights(ctx, q)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(result); err != nil {
			s.log.Debug("Stream %s write failed: %v", session, err)
			return false
		}
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case <-push.C:
			if !send() {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
