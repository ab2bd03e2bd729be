package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brute-sh/brute/internal/config"
	"github.com/brute-sh/brute/internal/hub"
	"github.com/brute-sh/brute/internal/model"
	"github.com/brute-sh/brute/internal/store"
)

// fakeSink validates like the real sink but only records what it accepts.
type fakeSink struct {
	mu       sync.Mutex
	accepted []model.Individual
	busyErr  error
}

func (f *fakeSink) Submit(ctx context.Context, username, password, ip, protocol string) error {
	ev, err := model.NewIndividual(username, password, ip, protocol)
	if err != nil {
		return err
	}
	if f.busyErr != nil {
		return f.busyErr
	}
	f.mu.Lock()
	f.accepted = append(f.accepted, ev)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) records() []model.Individual {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Individual(nil), f.accepted...)
}

func newTestServer(t *testing.T, opts ...func(*config.Service)) (*Server, *fakeSink, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	cfg := &config.Service{BearerToken: "s3cret", MaxLimit: 100}
	for _, opt := range opts {
		opt(cfg)
	}

	sink := &fakeSink{}
	srv := NewServer(cfg, store.New(sqlx.NewDb(mockDB, "postgres")), sink, hub.New())
	srv.enqueueWait = 50 * time.Millisecond
	return srv, sink, mock
}

func doJSON(handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAttackAddAccepted(t *testing.T) {
	srv, sink, _ := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	rec := doJSON(h, http.MethodPost, "/brute/attack/add", "s3cret",
		`{"username":"root","password":"toor","ip_address":"8.8.8.8","protocol":"SSH"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	recs := sink.records()
	require.Len(t, recs, 1)
	assert.Equal(t, "root", recs[0].Username)
	assert.Equal(t, "toor", recs[0].Password)
	assert.Equal(t, "8.8.8.8", recs[0].IP)
	assert.Equal(t, "SSH", recs[0].Protocol)
}

func TestAttackAddRejectsPrivateIP(t *testing.T) {
	srv, sink, _ := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	rec := doJSON(h, http.MethodPost, "/brute/attack/add", "s3cret",
		`{"username":"root","password":"toor","ip_address":"192.168.1.1","protocol":"SSH"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "private")
	assert.Empty(t, sink.records())
}

func TestAttackAddRejectsBadToken(t *testing.T) {
	srv, sink, _ := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	for _, token := range []string{"wrong", ""} {
		rec := doJSON(h, http.MethodPost, "/brute/attack/add", token,
			`{"username":"root","password":"toor","ip_address":"8.8.8.8","protocol":"SSH"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	assert.Empty(t, sink.records())
}

func TestAttackAddCanonicalizesProtocol(t *testing.T) {
	srv, sink, _ := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	rec := doJSON(h, http.MethodPost, "/brute/attack/add", "s3cret",
		`{"username":"root","password":"toor","ip_address":"8.8.8.8","protocol":"sshd"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	recs := sink.records()
	require.Len(t, recs, 1)
	assert.Equal(t, "SSH", recs[0].Protocol)
}

func TestAttackAddMalformedBody(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	rec := doJSON(h, http.MethodPost, "/brute/attack/add", "s3cret", `{`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"malformed JSON body"}`, rec.Body.String())
}

func TestAttackAddBusyBacklog(t *testing.T) {
	srv, sink, _ := newTestServer(t)
	sink.busyErr = errors.New("pipeline backlog full: context deadline exceeded")
	h := srv.Router(ProtocolHTTP)

	rec := doJSON(h, http.MethodPost, "/brute/attack/add", "s3cret",
		`{"username":"root","password":"toor","ip_address":"8.8.8.8","protocol":"SSH"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"ingestion backlog full"}`, rec.Body.String())
}

func TestProtocolIncrement(t *testing.T) {
	srv, _, mock := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	rows := sqlmock.NewRows([]string{"protocol", "amount"}).AddRow("SSH", 125)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO top_protocol (protocol, amount)")).
		WithArgs("SSH", int64(25)).
		WillReturnRows(rows)

	rec := doJSON(h, http.MethodPost, "/brute/protocol/increment", "s3cret",
		`{"protocol":"sshd","amount":25}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"protocol":"SSH","amount":125}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProtocolIncrementRejects(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	tests := []struct {
		name   string
		token  string
		body   string
		status int
	}{
		{"zero amount", "s3cret", `{"protocol":"SSH","amount":0}`, http.StatusBadRequest},
		{"negative amount", "s3cret", `{"protocol":"SSH","amount":-2}`, http.StatusBadRequest},
		{"empty protocol", "s3cret", `{"protocol":"","amount":3}`, http.StatusBadRequest},
		{"bad token", "nope", `{"protocol":"SSH","amount":3}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(h, http.MethodPost, "/brute/protocol/increment", tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestDecoyLoginIngestsPeerAddress(t *testing.T) {
	srv, sink, _ := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"admin","password":"letmein"}`))
	req.Header.Set("X-Real-IP", "203.0.113.9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	recs := sink.records()
	require.Len(t, recs, 1)
	assert.Equal(t, "admin", recs[0].Username)
	assert.Equal(t, "203.0.113.9", recs[0].IP)
	assert.Equal(t, "HTTP", recs[0].Protocol)
}

func TestDecoyLoginReportsListenerProtocol(t *testing.T) {
	srv, sink, _ := newTestServer(t)
	h := srv.Router(ProtocolHTTPS)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"admin","password":"letmein"}`))
	req.Header.Set("X-Real-IP", "203.0.113.9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	recs := sink.records()
	require.Len(t, recs, 1)
	assert.Equal(t, "HTTPS", recs[0].Protocol)
}

func TestDecoyLoginNeverFails(t *testing.T) {
	srv, sink, _ := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	// Garbage body: still 200, nothing recorded.
	rec := doJSON(h, http.MethodPost, "/auth/login", "", `not json`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sink.records())

	// Unroutable peer address: still 200, rejected quietly.
	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"a","password":"b"}`))
	req.Header.Set("X-Real-IP", "192.168.0.50")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sink.records())
}

func TestStatsLimitClamp(t *testing.T) {
	srv, _, mock := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	tests := []struct {
		query string
		want  int
	}{
		{"", 100},
		{"?limit=17", 17},
		{"?limit=500", 100},
		{"?limit=0", 1},
		{"?limit=-3", 1},
		{"?limit=abc", 100},
	}
	for _, tt := range tests {
		t.Run("limit"+tt.query, func(t *testing.T) {
			mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM top_username ORDER BY amount DESC, username ASC LIMIT $1")).
				WithArgs(tt.want).
				WillReturnRows(sqlmock.NewRows([]string{"username", "amount"}))

			rec := doJSON(h, http.MethodGet, "/brute/stats/username"+tt.query, "", "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `[]`, rec.Body.String())
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsAttackSlice(t *testing.T) {
	srv, _, mock := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	cols := []string{"id", "username", "password", "ip", "protocol", "city", "timestamp"}
	rows := sqlmock.NewRows(cols).AddRow(
		"0f8fad5bd9cb469fa16570867728950e", "root", "toor", "8.8.8.8", "SSH", "Mountain View", int64(1700000000000))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM processed_individual ORDER BY timestamp DESC LIMIT $1")).
		WithArgs(1).
		WillReturnRows(rows)

	rec := doJSON(h, http.MethodGet, "/brute/stats/attack?limit=1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "root", got[0]["username"])
	assert.Equal(t, "8.8.8.8", got[0]["ip"])
	assert.Equal(t, "SSH", got[0]["protocol"])
	assert.Len(t, got[0]["id"], 32)
}

func TestStatsBucketSlices(t *testing.T) {
	srv, _, mock := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	for _, kind := range []string{"hourly", "daily", "weekly", "yearly"} {
		t.Run(kind, func(t *testing.T) {
			rows := sqlmock.NewRows([]string{"timestamp", "amount"}).AddRow(int64(1700000000000), int64(42))
			mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM top_"+kind+" ORDER BY timestamp DESC LIMIT $1")).
				WithArgs(100).
				WillReturnRows(rows)

			rec := doJSON(h, http.MethodGet, "/brute/stats/"+kind, "", "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `[{"timestamp":1700000000000,"amount":42}]`, rec.Body.String())
		})
	}
}

func TestStatsCombo(t *testing.T) {
	srv, _, mock := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	rows := sqlmock.NewRows([]string{"id", "username", "password", "amount"}).
		AddRow("11112222333344445555666677778888", "root", "toor", int64(9))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM top_usr_pass_combo ORDER BY amount DESC, username ASC, password ASC LIMIT $1")).
		WithArgs(100).
		WillReturnRows(rows)

	rec := doJSON(h, http.MethodGet, "/brute/stats/combo", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`[{"id":"11112222333344445555666677778888","username":"root","password":"toor","amount":9}]`,
		rec.Body.String())
}

func TestStatsUnknownKind(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	rec := doJSON(h, http.MethodGet, "/brute/stats/frequency", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"unknown statistic"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv, _, mock := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	mock.ExpectPing()
	rec := doJSON(h, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	rec = doJSON(h, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"database unreachable"}`, rec.Body.String())
}

func TestWebSocketRoute(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router(ProtocolHTTP))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return srv.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	frame, err := srv.hub.Broadcast(hub.ParseTypeProcessedIndividual, map[string]string{"id": "abc"})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, frame, msg)
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Router(ProtocolHTTP)

	req := httptest.NewRequest(http.MethodOptions, "/brute/attack/add", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestRateLimitThroughRouter(t *testing.T) {
	srv, _, mock := newTestServer(t, func(c *config.Service) {
		c.RateLimit = 1
		c.RateLimitDuration = time.Hour
	})
	h := srv.Router(ProtocolHTTP)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM top_username")).
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"username", "amount"}))

	req := httptest.NewRequest(http.MethodGet, "/brute/stats/username", nil)
	req.Header.Set("X-Real-IP", "198.51.100.7")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
}
