package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPingPeriod = 30 * time.Second
)

func (s *Server) feedUpgrader() *websocket.Upgrader {
	allowed := s.cfg.CORSAllowedOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range allowed {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

// handleFeed streams accepted submissions to a websocket client until the
// client goes away. Messages from the client are read and discarded.
func (s *Server) handleFeed(c *gin.Context) {
	if s.feed == nil {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "feed disabled")
		return
	}
	conn, err := s.feedUpgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug("feed upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	_, events, cancel := s.feed.Subscribe()
	defer cancel()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(feedPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait)); err != nil {
				return
			}
		}
	}
}
