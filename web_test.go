package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig() *Config {
	return &Config{
		bind:      "127.0.0.1",
		hostURL:   "http://example.test",
		jwtSecret: testSecret,
		port:      8080,
		rateBurst: 1000,
		rateLimit: 1000,
		tokenTTL:  time.Hour,
	}
}

func newTestRouter(t *testing.T) (http.Handler, *Dispatcher) {
	t.Helper()

	cfg := newTestConfig()

	registry := NewRegistry(NewTokenIssuer(cfg.jwtSecret, cfg.tokenTTL), cfg.hostURL)
	d := NewDispatcher(registry, NewBinder())
	t.Cleanup(d.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return newRouter(ctx, cfg, d, make(chan error, 16)), d
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))

	return v
}

func TestCreateRoomHandler(t *testing.T) {
	h, d := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/rooms", `{"hostName":"Host"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	res := decodeJSON[CreateRoomResult](t, rec)
	assert.Regexp(t, joinCodePattern, res.JoinCode)
	assert.Equal(t, "http://example.test/join?code="+res.JoinCode, res.JoinURL)

	claims, err := d.registry.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, RoleHost, claims.Role)
	assert.Equal(t, res.HostPlayerID, claims.PlayerID)
}

func TestCreateRoomHandler_Errors(t *testing.T) {
	h, d := newTestRouter(t)

	cases := []struct {
		name   string
		body   string
		reason string
	}{
		{"missing name", `{}`, "hostName required"},
		{"blank name", `{"hostName":"   "}`, "hostName required"},
		{"not json", `hello`, "invalid request body"},
		{"empty body", ``, "invalid request body"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/rooms", tc.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, ErrorPayload{Error: tc.reason}, decodeJSON[ErrorPayload](t, rec))
		})
	}

	assert.Equal(t, 0, d.registry.Len())
}

func TestJoinRoomHandler(t *testing.T) {
	h, d := newTestRouter(t)

	created, err := d.registry.CreateRoom("Host")
	require.NoError(t, err)

	host := newTestClient()
	d.binder.Bind(created.RoomID, created.HostPlayerID, host)

	body := fmt.Sprintf(`{"joinCode":%q,"name":"Alice"}`, strings.ToLower(created.JoinCode))
	rec := do(t, h, http.MethodPost, "/join", body)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeJSON[JoinRoomResult](t, rec)
	assert.Equal(t, created.RoomID, res.RoomID)
	assert.Equal(t, created.JoinCode, res.JoinCode)
	assert.NotEmpty(t, res.PlayerID)
	assert.NotEmpty(t, res.Token)

	got := drain(host)
	require.Equal(t, []string{msgRoomState}, typesOf(got))
	assert.Equal(t, []PlayerView{
		{ID: created.HostPlayerID, Name: "Host", IsHost: true},
		{ID: res.PlayerID, Name: "Alice"},
	}, got[0].Payload.(RoomState).Players)
}

func TestJoinRoomHandler_Errors(t *testing.T) {
	h, d := newTestRouter(t)

	created, err := d.registry.CreateRoom("Host")
	require.NoError(t, err)

	cases := []struct {
		name   string
		body   string
		status int
		reason string
	}{
		{"unknown code", `{"joinCode":"PPZZZZZZ","name":"Alice"}`, http.StatusNotFound, "room not found"},
		{"missing name", fmt.Sprintf(`{"joinCode":%q}`, created.JoinCode), http.StatusBadRequest, "joinCode and name required"},
		{"missing code", `{"name":"Alice"}`, http.StatusBadRequest, "joinCode and name required"},
		{"not json", `[`, http.StatusBadRequest, "invalid request body"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/join", tc.body)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, ErrorPayload{Error: tc.reason}, decodeJSON[ErrorPayload](t, rec))
		})
	}
}

func TestQRHandler(t *testing.T) {
	h, _ := newTestRouter(t)

	for _, target := range []string{"/qr?room=PPABCDEF", "/qr?url=" + url.QueryEscape("https://example.test/x")} {
		rec := do(t, h, http.MethodGet, target, "")

		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG\r\n\x1a\n"))
	}

	rec := do(t, h, http.MethodGet, "/qr", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorPayload{Error: "room or url required"}, decodeJSON[ErrorPayload](t, rec))
}

func TestQRTarget(t *testing.T) {
	cfg := newTestConfig()

	assert.Equal(t, "http://example.test/player.html?code=PPABCDEF",
		qrTarget(cfg, url.Values{"room": {"PPABCDEF"}}))
	assert.Equal(t, "http://example.test/player.html?code=a+b%26c",
		qrTarget(cfg, url.Values{"room": {"a b&c"}, "url": {"ignored"}}))
	assert.Equal(t, "https://elsewhere.test",
		qrTarget(cfg, url.Values{"url": {"https://elsewhere.test"}}))
	assert.Empty(t, qrTarget(cfg, url.Values{}))
}

func TestStaticHandlers(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ok\n", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/version", "")
	assert.Equal(t, "promptparty v"+releaseVersion+"\n", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/robots.txt", "")
	assert.Contains(t, rec.Body.String(), "Disallow: /ws")

	rec = do(t, h, http.MethodGet, "/rooms", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{validationError("x"), http.StatusBadRequest},
		{notFoundError("x"), http.StatusNotFound},
		{authError("x"), http.StatusUnauthorized},
		{unauthorizedError("x"), http.StatusForbidden},
		{invalidStateError("x"), http.StatusConflict},
		{fmt.Errorf("wrapped: %w", notFoundError("x")), http.StatusNotFound},
		{assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestWriteError_MasksInternal(t *testing.T) {
	rec := httptest.NewRecorder()

	require.NoError(t, writeError(newTestConfig(), rec, assert.AnError))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", realIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.7")
	assert.Equal(t, "192.0.2.7:1234", realIP(req))

	req.Header.Set("CF-Connecting-IP", "2001:db8::1")
	assert.Equal(t, "[2001:db8::1]:1234", realIP(req))
}

func TestConfigValidate(t *testing.T) {
	cfg := newTestConfig()
	cfg.hostURL = "https://party.example/"
	require.NoError(t, cfg.validate())
	assert.Equal(t, "https://party.example", cfg.hostURL)

	cfg.roomTimeout = minRoomTimeout
	require.NoError(t, cfg.validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"lone cert", func(c *Config) { c.tlsCert = "cert.pem" }},
		{"bad port", func(c *Config) { c.port = 70000 }},
		{"empty secret", func(c *Config) { c.jwtSecret = "" }},
		{"zero ttl", func(c *Config) { c.tokenTTL = 0 }},
		{"negative timeout", func(c *Config) { c.roomTimeout = -time.Second }},
		{"sub-second timeout", func(c *Config) { c.roomTimeout = time.Nanosecond }},
		{"zero rate", func(c *Config) { c.rateLimit = 0 }},
		{"zero burst", func(c *Config) { c.rateBurst = 0 }},
		{"relative host url", func(c *Config) { c.hostURL = "/party" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newTestConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestByteCount(t *testing.T) {
	assert.Equal(t, "999 B", byteCount(999))
	assert.Equal(t, "1.5 kB", byteCount(1500))
	assert.Equal(t, "2.0 MB", byteCount(2_000_000))
}
