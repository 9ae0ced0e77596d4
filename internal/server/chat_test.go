package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylebot/server/internal/agent/model"
	"github.com/stylebot/server/internal/cache"
	"github.com/stylebot/server/internal/session"
)

// stubRunner answers every turn with a fixed reply or error.
type stubRunner struct {
	reply string
	err   error
}

func (r stubRunner) Invoke(ctx context.Context, in model.TurnInput) (string, error) {
	return r.reply, r.err
}

func testHandler(runner stubRunner) (*Handler, *session.Manager) {
	sessions := session.NewManager(cache.NewMemoryStore())
	conv := model.ConversationConfig{}
	conv.RateLimit.MaxRequests = 30
	conv.RateLimit.WindowSeconds = 60
	return NewHandler(sessions, runner, nil, conv), sessions
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestChatReturnsReply(t *testing.T) {
	h, _ := testHandler(stubRunner{reply: "hello from the stylist"})
	router := NewRouter(h)

	rec := postJSON(t, router, "/chat", chatRequest{UserID: 1, Text: "hi"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "hello from the stylist", resp.Messages[0])
}

func TestChatRejectsBadInput(t *testing.T) {
	h, _ := testHandler(stubRunner{reply: "unused"})
	router := NewRouter(h)

	rec := postJSON(t, router, "/chat", chatRequest{UserID: 0, Text: "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/chat", chatRequest{UserID: 1, Text: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatTurnErrorBecomesCatalogMessage(t *testing.T) {
	h, _ := testHandler(stubRunner{err: fmt.Errorf("model exploded")})
	router := NewRouter(h)

	rec := postJSON(t, router, "/chat", chatRequest{UserID: 2, Text: "hi"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	// A friendly message, not the raw error.
	assert.NotContains(t, resp.Messages[0], "model exploded")
	assert.NotEmpty(t, resp.Messages[0])
}

func TestChatRateLimited(t *testing.T) {
	h, _ := testHandler(stubRunner{reply: "ok"})
	h.rateCfg.RateLimit.MaxRequests = 2
	router := NewRouter(h)

	for i := 0; i < 2; i++ {
		rec := postJSON(t, router, "/chat", chatRequest{UserID: 3, Text: "hi"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := postJSON(t, router, "/chat", chatRequest{UserID: 3, Text: "hi"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["messages"])
	assert.EqualValues(t, 60, resp["retry_after_seconds"])
}

func TestChatRecordsUserInfo(t *testing.T) {
	h, sessions := testHandler(stubRunner{reply: "ok"})
	router := NewRouter(h)

	rec := postJSON(t, router, "/chat", chatRequest{UserID: 4, Text: "hi", FirstName: "Ada", Username: "ada_l"})
	require.Equal(t, http.StatusOK, rec.Code)

	s := sessions.GetSession(context.Background(), 4)
	assert.Equal(t, "Ada", s.FirstName)
	assert.Equal(t, "ada_l", s.Username)
}

func TestChatPhotoWithoutVisionDegrades(t *testing.T) {
	h, _ := testHandler(stubRunner{})
	router := NewRouter(h)

	photo := base64.StdEncoding.EncodeToString([]byte("fake image bytes"))
	rec := postJSON(t, router, "/chat/photo", photoRequest{
		UserID: 5, PhotoBase64: photo, MimeType: "image/jpeg",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp photoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.NotEmpty(t, resp.Messages[0])
	assert.Nil(t, resp.Analysis)
}

func TestChatPhotoRejectsBadFormat(t *testing.T) {
	h, _ := testHandler(stubRunner{})
	router := NewRouter(h)

	photo := base64.StdEncoding.EncodeToString([]byte("plain text"))
	rec := postJSON(t, router, "/chat/photo", photoRequest{
		UserID: 6, PhotoBase64: photo, MimeType: "text/plain",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearSessionPreservesPreferences(t *testing.T) {
	h, sessions := testHandler(stubRunner{})
	router := NewRouter(h)
	ctx := context.Background()

	s := sessions.GetSession(ctx, 7)
	s.AddMessage(session.RoleUser, "hello")
	s.Location = "Lisbon"
	require.True(t, sessions.SaveSession(ctx, s))

	req := httptest.NewRequest(http.MethodPost, "/sessions/7/clear", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	reloaded := sessions.GetSession(ctx, 7)
	assert.Empty(t, reloaded.Messages)
	assert.Equal(t, "Lisbon", reloaded.Location)
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := testHandler(stubRunner{})
	router := NewRouter(h)

	for _, path := range []string{"/healthz", "/health/services", "/health/circuits"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestResetUnknownCircuit(t *testing.T) {
	h, _ := testHandler(stubRunner{})
	router := NewRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/admin/circuits/no-such-service/reset", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChunkMessageShortTextUntouched(t *testing.T) {
	chunks := ChunkMessage("short", 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short", chunks[0])
}

func TestChunkMessageSplitsLongText(t *testing.T) {
	text := strings.Repeat("word ", 2000) // ~10000 chars
	chunks := ChunkMessage(text, MaxMessageLength)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), MaxMessageLength)
	}
	// No content lost beyond trimmed break whitespace.
	joined := strings.Join(chunks, " ")
	assert.Equal(t, strings.Fields(text), strings.Fields(joined))
}

func TestChunkMessagePrefersNewlineBreaks(t *testing.T) {
	text := strings.Repeat("a", 50) + "\n" + strings.Repeat("b", 50)
	chunks := ChunkMessage(text, 60)

	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 50), chunks[0])
	assert.Equal(t, strings.Repeat("b", 50), chunks[1])
}
