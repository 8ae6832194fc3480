// Package handlers exposes the HTTP surface: the chat turn endpoint
// used by the messaging front-end plus health checking. Callers are
// trusted infrastructure; the payload is the already-extracted chat
// message.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pescheria-bot/internal/cache"
	"pescheria-bot/internal/flow"
	"pescheria-bot/internal/llm"
	"pescheria-bot/internal/metrics"
	"pescheria-bot/internal/repo"

	"log/slog"
)

const (
	busyReply        = "Il servizio è momentaneamente occupato. Riprova tra qualche istante."
	rateLimitedReply = "Ho ricevuto troppi messaggi di fila. Aspetta un attimo e riprova."

	turnLimitWindow = time.Minute
	turnLimit       = 20
)

// ChatHandler processes one conversation turn end to end.
type ChatHandler struct {
	repo         *repo.Repository
	llm          *llm.Client
	prompts      *llm.PromptLoader
	flow         *flow.Engine
	cache        *cache.Redis
	metrics      *metrics.Metrics
	logger       *slog.Logger
	historyLimit int
}

func NewChatHandler(repository *repo.Repository, llmClient *llm.Client, prompts *llm.PromptLoader, engine *flow.Engine, redis *cache.Redis, m *metrics.Metrics, logger *slog.Logger, historyLimit int) *ChatHandler {
	if historyLimit <= 0 {
		historyLimit = 12
	}
	return &ChatHandler{
		repo:         repository,
		llm:          llmClient,
		prompts:      prompts,
		flow:         engine,
		cache:        redis,
		metrics:      m,
		logger:       logger.With("component", "handlers"),
		historyLimit: historyLimit,
	}
}

type turnRequest struct {
	ChatID      string `json:"chatId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Text        string `json:"text"`
}

type turnResponse struct {
	Reply string `json:"reply"`
}

// ServeHTTP handles POST /v1/chat/turn.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ChatID = strings.TrimSpace(req.ChatID)
	req.UserID = strings.TrimSpace(req.UserID)
	req.Text = strings.TrimSpace(req.Text)
	if req.ChatID == "" || req.UserID == "" || req.Text == "" {
		http.Error(w, "chatId, userId and text are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if !h.allowTurn(ctx, req.UserID) {
		writeReply(w, rateLimitedReply)
		return
	}

	reply := h.processTurn(ctx, req)
	writeReply(w, reply)
}

func (h *ChatHandler) processTurn(ctx context.Context, req turnRequest) string {
	userID, err := h.repo.UpsertUserByChat(ctx, req.UserID, req.DisplayName)
	if err != nil {
		h.logger.Error("upsert user failed", "error", err)
		h.countError()
		return busyReply
	}
	conversationID, err := h.repo.EnsureConversation(ctx, userID, req.ChatID)
	if err != nil {
		h.logger.Error("ensure conversation failed", "error", err)
		h.countError()
		return busyReply
	}

	history := h.loadHistory(ctx, conversationID)

	if err := h.repo.InsertMessage(ctx, conversationID, "user", req.Text); err != nil {
		h.logger.Warn("failed logging user message", "error", err)
	}

	prompt, err := h.prompts.For(req.UserID)
	if err != nil {
		h.logger.Error("load system prompt failed", "error", err)
		h.countError()
		return busyReply
	}

	modelReply, err := h.llm.Complete(ctx, prompt, history, req.Text)
	if err != nil {
		h.logger.Error("model completion failed", "error", err)
		return busyReply
	}

	reply := h.flow.Process(ctx, req.ChatID, req.UserID, req.Text, modelReply)

	if err := h.repo.InsertMessage(ctx, conversationID, "assistant", reply); err != nil {
		h.logger.Warn("failed logging assistant message", "error", err)
	}
	return reply
}

func (h *ChatHandler) loadHistory(ctx context.Context, conversationID int64) []llm.Message {
	stored, err := h.repo.LastMessages(ctx, conversationID, h.historyLimit)
	if err != nil {
		h.logger.Warn("failed loading history", "error", err)
		return nil
	}
	history := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	return history
}

func (h *ChatHandler) allowTurn(ctx context.Context, userID string) bool {
	if h.cache == nil {
		return true
	}
	key := fmt.Sprintf("rl:turns:%s", userID)
	client := h.cache.Client()
	res := client.Incr(ctx, key)
	if res.Err() != nil {
		h.logger.Warn("rate limit incr failed", "error", res.Err())
		return true
	}
	if res.Val() == 1 {
		client.Expire(ctx, key, turnLimitWindow)
	}
	return res.Val() <= turnLimit
}

func (h *ChatHandler) countError() {
	if h.metrics != nil {
		h.metrics.Errors.WithLabelValues("handlers").Inc()
	}
}

func writeReply(w http.ResponseWriter, reply string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(turnResponse{Reply: reply})
}

// Healthz reports process liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
