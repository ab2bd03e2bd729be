package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultPingInterval is how often the server pings each subscriber.
	DefaultPingInterval = 5 * time.Second

	// DefaultClientTimeout reaps a subscriber whose last ping or pong is
	// older than this.
	DefaultClientTimeout = 10 * time.Second

	// writeWait bounds a single write, pings and close frames included.
	writeWait = 10 * time.Second

	// maxMessageSize caps inbound frames. Subscribers have nothing to say.
	maxMessageSize = 1024

	// sendBuffer is the per-session frame queue. A session that falls this
	// far behind starts losing frames.
	sendBuffer = 256
)

// Session is one WebSocket subscriber. writePump is the only goroutine
// writing data frames to the connection; readPump is the only reader.
type Session struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// close tears the session down exactly once, whichever pump dies first.
func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
		s.hub.unsubscribe(s.id)
		s.conn.Close()
	})
}

func (s *Session) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// readPump drains the connection. Inbound text and binary frames are
// discarded and do not count as liveness; only pings and pongs push the
// read deadline forward.
func (s *Session) readPump(clientTimeout time.Duration) {
	defer s.close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(clientTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(clientTimeout))
	})
	s.conn.SetPingHandler(func(appData string) error {
		s.conn.SetReadDeadline(time.Now().Add(clientTimeout))
		err := s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
