package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/config"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/handlers"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/middleware"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/services"
)

const (
	alice = "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
	bob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubBot struct {
	running bool
}

func (b *stubBot) Start(context.Context) bool {
	if b.running {
		return false
	}
	b.running = true
	return true
}

func (b *stubBot) Stop() bool {
	was := b.running
	b.running = false
	return was
}

func (b *stubBot) Status() services.BotStatus {
	return services.BotStatus{Name: "rounds", Running: b.running}
}

func (b *stubBot) Tick(context.Context) error { return nil }

func newTestRouter(t *testing.T, secret string) (*gin.Engine, *stubBot) {
	t.Helper()
	dir := t.TempDir()
	bot := &stubBot{}
	cfg := &config.Config{AdminJWTSecret: secret}
	router := handlers.NewRouter(context.Background(), cfg, handlers.Deps{
		Streaks:   services.NewStreakService(services.NewFileDocumentStore(filepath.Join(dir, "streaks.json"))),
		Referrals: services.NewReferralService(services.NewFileDocumentStore(filepath.Join(dir, "referrals.json"))),
		Bots:      map[string]services.BotController{"rounds": bot},
	})
	return router, bot
}

func do(t *testing.T, r http.Handler, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestReferralEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, "")

	w, out := do(t, r, http.MethodPost, "/api/referrals", gin.H{"referrer": alice, "referee": bob})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["success"])

	_, out = do(t, r, http.MethodPost, "/api/referrals", gin.H{"referrer": bob, "referee": bob})
	assert.Equal(t, false, out["success"])

	_, out = do(t, r, http.MethodGet, "/api/referrals?address="+alice, nil)
	assert.Equal(t, float64(1), out["referralCount"])
	assert.Equal(t, []any{bob}, out["refereeList"])

	_, out = do(t, r, http.MethodGet, "/api/referrals?address="+bob, nil)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", out["referredBy"])

	_, out = do(t, r, http.MethodGet, "/api/referrals?all=true", nil)
	assert.Equal(t, map[string]any{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa": float64(5)}, out["points"])

	w, out = do(t, r, http.MethodGet, "/api/referrals?address=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, out["error"])

	w, _ = do(t, r, http.MethodPost, "/api/referrals", gin.H{"referrer": alice})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreakEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, "")

	for round := 1; round <= 3; round++ {
		w, out := do(t, r, http.MethodPost, "/api/streaks", gin.H{"action": "record", "address": bob, "roundId": round, "isWin": true})
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, true, out["success"])
	}
	_, out := do(t, r, http.MethodPost, "/api/streaks", gin.H{"action": "record", "address": bob, "roundId": 4, "isWin": false})
	streak := out["streak"].(map[string]any)
	assert.Equal(t, float64(3), streak["streakAtLoss"])
	assert.Equal(t, "loss", streak["lastResult"])

	_, out = do(t, r, http.MethodPost, "/api/streaks", gin.H{"action": "protect", "address": bob, "roundId": 4})
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(3), out["streak"].(map[string]any)["currentStreak"])

	_, out = do(t, r, http.MethodPost, "/api/streaks", gin.H{"action": "protect", "address": bob, "roundId": 4})
	assert.Equal(t, false, out["success"])
	assert.NotContains(t, out, "streak")

	_, out = do(t, r, http.MethodGet, "/api/streaks?address="+bob, nil)
	assert.Equal(t, float64(3), out["currentStreak"])
	assert.Equal(t, float64(3), out["totalBonusPoints"])

	w, _ := do(t, r, http.MethodPost, "/api/streaks", gin.H{"action": "record", "address": bob, "roundId": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code, "isWin missing")
	w, _ = do(t, r, http.MethodPost, "/api/streaks", gin.H{"action": "reset", "address": bob, "roundId": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, r, http.MethodGet, "/api/streaks", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeaderboardNotConfigured(t *testing.T) {
	r, _ := newTestRouter(t, "")

	w, out := do(t, r, http.MethodGet, "/api/leaderboard", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotEmpty(t, out["error"])

	w, _ = do(t, r, http.MethodGet, "/api/claims?address="+bob, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBotControl(t *testing.T) {
	const secret = "admin-secret"
	r, bot := newTestRouter(t, secret)

	w, _ := do(t, r, http.MethodPost, "/api/bots/rounds", gin.H{"action": "start"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, bot.running)

	token, err := middleware.IssueAdminToken(secret, "ops", time.Hour)
	require.NoError(t, err)
	auth := []string{"Authorization", "Bearer " + token}

	w, out := do(t, r, http.MethodPost, "/api/bots/rounds", gin.H{"action": "start"}, auth...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, true, out["status"].(map[string]any)["running"])

	_, out = do(t, r, http.MethodPost, "/api/bots/rounds", gin.H{"action": "start"}, auth...)
	assert.Equal(t, false, out["success"])

	_, out = do(t, r, http.MethodPost, "/api/bots/rounds", gin.H{"action": "status"}, auth...)
	assert.Equal(t, true, out["status"].(map[string]any)["running"])

	_, out = do(t, r, http.MethodPost, "/api/bots/rounds", gin.H{"action": "stop"}, auth...)
	assert.Equal(t, true, out["success"])
	assert.False(t, bot.running)

	w, _ = do(t, r, http.MethodPost, "/api/bots/nope", gin.H{"action": "start"}, auth...)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/bots/rounds", gin.H{"action": "explode"}, auth...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out = do(t, r, http.MethodGet, "/api/bots", nil, auth...)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["bots"], 1)
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, "")
	w, out := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", out["status"])
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}
