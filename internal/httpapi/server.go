// Package httpapi serves the ingestion, read, and live-feed surface of the
// service.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/brute-sh/brute/internal/config"
	"github.com/brute-sh/brute/internal/hub"
	"github.com/brute-sh/brute/internal/middleware"
	"github.com/brute-sh/brute/internal/model"
	"github.com/brute-sh/brute/internal/store"
)

var log = logrus.WithField("prefix", "httpapi")

// Decoy login protocols, one per listener.
const (
	ProtocolHTTP  = "HTTP"
	ProtocolHTTPS = "HTTPS"
)

// Body caps. Credentials are short; nothing legitimate needs more.
const (
	ingestBodyLimit = 60 * 1024
	decoyBodyLimit  = 4 * 1024
)

// defaultEnqueueWait bounds how long an ingest request may wait for mailbox
// room before it is turned away.
const defaultEnqueueWait = time.Second

// Submitter admits raw credential submissions. Satisfied by intake.Sink.
type Submitter interface {
	Submit(ctx context.Context, username, password, ip, protocol string) error
}

// Server wires the HTTP surface to the store, the intake sink, and the
// WebSocket hub.
type Server struct {
	cfg         *config.Service
	store       *store.Store
	sink        Submitter
	hub         *hub.Hub
	enqueueWait time.Duration
}

func NewServer(cfg *config.Service, st *store.Store, sink Submitter, h *hub.Hub) *Server {
	return &Server{
		cfg:         cfg,
		store:       st,
		sink:        sink,
		hub:         h,
		enqueueWait: defaultEnqueueWait,
	}
}

// Router assembles the public surface. loginProtocol is what the decoy login
// on this listener reports: HTTP on the plain listener, HTTPS on the TLS one.
func (s *Server) Router(loginProtocol string) http.Handler {
	r := mux.NewRouter()

	auth := middleware.Bearer(s.cfg.BearerToken)
	ingestBody := middleware.MaxBody(ingestBodyLimit)
	decoyBody := middleware.MaxBody(decoyBodyLimit)

	r.Handle("/brute/attack/add",
		ingestBody(auth(http.HandlerFunc(s.handleAttackAdd)))).Methods("POST")
	r.Handle("/brute/protocol/increment",
		ingestBody(auth(http.HandlerFunc(s.handleProtocolIncrement)))).Methods("POST")
	r.Handle("/auth/login",
		decoyBody(s.decoyLogin(loginProtocol))).Methods("POST")
	r.HandleFunc("/brute/stats/{kind}", s.handleStats).Methods("GET")
	r.HandleFunc("/ws", s.hub.ServeWS).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	var handler http.Handler = r
	if s.cfg.RateLimit > 0 {
		rl := middleware.NewRateLimiter(s.cfg.RateLimit, s.cfg.RateLimitDuration)
		handler = rl.Middleware(handler)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept"},
		MaxAge:         3600,
	})
	return c.Handler(handler)
}

// --- Handlers ---

type addAttackRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	IPAddress string `json:"ip_address"`
	Protocol  string `json:"protocol"`
}

// handleAttackAdd admits a reported credential attempt. Ingestion is
// fire-and-forget: 200 acknowledges admission to the queue, not completed
// aggregation.
func (s *Server) handleAttackAdd(w http.ResponseWriter, r *http.Request) {
	var req addAttackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.enqueueWait)
	defer cancel()
	if err := s.sink.Submit(ctx, req.Username, req.Password, req.IPAddress, req.Protocol); err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			s.writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.writeError(w, http.StatusServiceUnavailable, "ingestion backlog full")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

type protocolIncrementRequest struct {
	Protocol string `json:"protocol"`
	Amount   int64  `json:"amount"`
}

// handleProtocolIncrement bumps the protocol leaderboard directly, without
// creating an event. Used to fold in counts from deployments that only keep
// totals.
func (s *Server) handleProtocolIncrement(w http.ResponseWriter, r *http.Request) {
	var req protocolIncrementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if req.Protocol == "" {
		s.writeError(w, http.StatusBadRequest, "protocol is empty")
		return
	}
	if req.Amount < 1 {
		s.writeError(w, http.StatusBadRequest, "amount must be at least 1")
		return
	}

	row, err := s.store.BumpProtocol(r.Context(), model.CanonicalProtocol(req.Protocol), req.Amount)
	if err != nil {
		log.WithError(err).Error("protocol increment failed")
		s.writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	s.writeJSON(w, http.StatusOK, row)
}

type decoyLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// decoyLogin poses as a login endpoint. Whatever arrives, the answer is 200:
// a scanner must not learn anything from the response, and the submission is
// recorded against the peer address, not a body field.
func (s *Server) decoyLogin(protocol string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req decoyLoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			ctx, cancel := context.WithTimeout(r.Context(), s.enqueueWait)
			defer cancel()
			if err := s.sink.Submit(ctx, req.Username, req.Password, middleware.RealIP(r), protocol); err != nil {
				log.WithError(err).Debug("decoy login not ingested")
			}
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := s.limit(r)

	var (
		rows interface{}
		err  error
	)
	switch kind := mux.Vars(r)["kind"]; kind {
	case "attack":
		rows, err = s.store.RecentProcessed(ctx, limit)
	case "loc":
		rows, err = s.store.RecentLocations(ctx, limit)
	case "username":
		rows, err = s.store.TopUsernames(ctx, limit)
	case "password":
		rows, err = s.store.TopPasswords(ctx, limit)
	case "ip":
		rows, err = s.store.TopIPs(ctx, limit)
	case "protocol":
		rows, err = s.store.TopProtocols(ctx, limit)
	case "city":
		rows, err = s.store.TopCities(ctx, limit)
	case "region":
		rows, err = s.store.TopRegions(ctx, limit)
	case "country":
		rows, err = s.store.TopCountries(ctx, limit)
	case "timezone":
		rows, err = s.store.TopTimezones(ctx, limit)
	case "org":
		rows, err = s.store.TopOrgs(ctx, limit)
	case "postal":
		rows, err = s.store.TopPostals(ctx, limit)
	case "combo":
		rows, err = s.store.TopCombos(ctx, limit)
	case "hourly":
		rows, err = s.store.HourlyBuckets(ctx, limit)
	case "daily":
		rows, err = s.store.DailyBuckets(ctx, limit)
	case "weekly":
		rows, err = s.store.WeeklyBuckets(ctx, limit)
	case "yearly":
		rows, err = s.store.YearlyBuckets(ctx, limit)
	default:
		s.writeError(w, http.StatusNotFound, "unknown statistic")
		return
	}
	if err != nil {
		log.WithError(err).Error("stats query failed")
		s.writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helpers ---

// limit reads ?limit and clamps it to [1, MAX_LIMIT]. Omitted or unreadable
// values fall back to the maximum.
func (s *Server) limit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return s.cfg.MaxLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return s.cfg.MaxLimit
	}
	if n < 1 {
		return 1
	}
	if n > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return n
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("response encoding failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
