package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"likoin.network/lkn/internal/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Title: Get Events
// @Route: GET /api/events?limit=100
// @Description: Recent node events: applied and rejected transactions and committed blocks
// @Response: Array of Message objects
func (s *Service) HandleEvents(w http.ResponseWriter, r *http.Request) {
	n := -1
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		n = v
	}
	msgs := s.logger.GetRecent(n)
	if msgs == nil {
		msgs = []logger.Message{}
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

// @Title: Stream Events
// @Route: GET /api/events/stream
// @Description: WebSocket stream of node events as they happen, one JSON Message per frame
// @Response: WebSocket upgrade
func (s *Service) HandleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	msgs, cancel := s.logger.Subscribe(64)
	defer cancel()

	// The read loop only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case msg := <-msgs:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
