package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newHandler() *ChatHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewChatHandler(nil, nil, nil, nil, nil, nil, logger, 0)
}

func TestChatRejectsWrongMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat/turn", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChatRejectsInvalidJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/turn", strings.NewReader("{non json"))
	newHandler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRejectsMissingFields(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"chatId":"c1","userId":"u1"}`,
		`{"chatId":"c1","text":"ciao"}`,
		`{"userId":"u1","text":"ciao"}`,
		`{"chatId":"  ","userId":"u1","text":"ciao"}`,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/turn", strings.NewReader(body))
		newHandler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
