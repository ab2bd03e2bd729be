// Package hub fans enriched records out to live WebSocket subscribers.
//
// The bus is unidirectional: subscribers receive frames and answer pings,
// nothing they send is interpreted. Liveness is tracked per session with a
// ping/pong heartbeat; a slow or dead subscriber is dropped without ever
// blocking a broadcast.
package hub

import (
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/brute-sh/brute/internal/metrics"
)

var log = logrus.WithField("prefix", "hub")

// Frame tags. The tag tells a client which schema the inner message holds
// before it parses it.
const (
	ParseTypeIndividual          = "Individual"
	ParseTypeProcessedIndividual = "ProcessedIndividual"
)

// The decoy service is meant to be watched from anywhere.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type envelope struct {
	ParseType string `json:"parse_type"`
	Message   string `json:"message"`
}

// Envelope serializes payload once and wraps it in the broadcast frame. The
// inner JSON is carried as a string so clients can dispatch on parse_type
// without parsing the message body.
func Envelope(parseType string, payload interface{}) ([]byte, error) {
	inner, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal broadcast payload")
	}
	frame, err := json.Marshal(envelope{ParseType: parseType, Message: string(inner)})
	if err != nil {
		return nil, errors.Wrap(err, "marshal broadcast envelope")
	}
	return frame, nil
}

// Hub holds the live subscriber set. The map is mutated on connect and
// disconnect only; broadcasts take the read lock.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	pingInterval  time.Duration
	clientTimeout time.Duration
}

// New builds a hub with the standard heartbeat cadence.
func New() *Hub {
	return NewWithHeartbeat(DefaultPingInterval, DefaultClientTimeout)
}

// NewWithHeartbeat builds a hub with a custom cadence. Tests shrink the
// intervals to keep runs fast.
func NewWithHeartbeat(pingInterval, clientTimeout time.Duration) *Hub {
	return &Hub{
		sessions:      make(map[string]*Session),
		pingInterval:  pingInterval,
		clientTimeout: clientTimeout,
	}
}

// ServeWS upgrades the request and runs a subscriber session until the
// client closes or times out.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	s := &Session{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.subscribe(s)

	go s.writePump(h.pingInterval)
	go s.readPump(h.clientTimeout)
}

// Broadcast serializes payload once, enqueues the frame on every session,
// and returns the frame so callers can forward it elsewhere. Sessions whose
// buffers are full are skipped; the heartbeat reaps them if they are dead.
func (h *Hub) Broadcast(parseType string, payload interface{}) ([]byte, error) {
	frame, err := Envelope(parseType, payload)
	if err != nil {
		return nil, err
	}
	h.BroadcastFrame(frame)
	return frame, nil
}

// BroadcastFrame enqueues an already-serialized frame on every session.
func (h *Hub) BroadcastFrame(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		select {
		case s.send <- frame:
		default:
		}
	}
	metrics.Broadcasts.Inc()
}

// Count reports the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) subscribe(s *Session) {
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
	metrics.WSSubscribers.Inc()
	log.WithField("session", s.id).Debug("subscriber connected")
}

// unsubscribe is idempotent; sessions race their own reaping paths.
func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	_, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	h.mu.Unlock()
	if ok {
		metrics.WSSubscribers.Dec()
		log.WithField("session", id).Debug("subscriber removed")
	}
}
