package daemon

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"reelsmith/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local daemon API; clients connect from arbitrary tooling.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 4096
)

// wsCommand is the client-to-server message shape. Clients follow and
// unfollow subjects; everything else arrives server-to-client as hub events.
type wsCommand struct {
	Action  string `json:"action"`
	Subject string `json:"subject"`
}

// handleEvents upgrades the request to a websocket and bridges it to the
// progress hub. Initial subjects may be passed as repeated ?subject= query
// parameters; afterwards the client manages its follow set with
// subscribe/unsubscribe commands.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}

	events := s.daemon.events
	connID, stream := events.Connect()
	for _, subject := range r.URL.Query()["subject"] {
		events.Subscribe(connID, subject)
	}
	s.logger.Debug("websocket connected", logging.Int64("conn_id", connID))

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for event := range stream {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				events.Disconnect(connID)
				return
			}
		}
		// Hub disconnected us; tell the client before dropping the socket.
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
	}()

	conn.SetReadLimit(wsReadLimit)
	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		switch cmd.Action {
		case "subscribe":
			events.Subscribe(connID, cmd.Subject)
		case "unsubscribe":
			events.Unsubscribe(connID, cmd.Subject)
		default:
			s.logger.Debug("ignoring unknown websocket command",
				logging.Int64("conn_id", connID),
				logging.String("action", cmd.Action))
		}
	}

	events.Disconnect(connID)
	<-writeDone
	_ = conn.Close()
	s.logger.Debug("websocket disconnected", logging.Int64("conn_id", connID))
}
