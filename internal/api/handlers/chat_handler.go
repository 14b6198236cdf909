package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/syezain/ragserve/internal/core/engine"
)

type ChatHandler struct {
	cache *engine.Cache
	topK  int
}

func NewChatHandler(cache *engine.Cache, topK int) *ChatHandler {
	return &ChatHandler{cache: cache, topK: topK}
}

type ChatRequest struct {
	Question string `json:"question"`
}

func (h *ChatHandler) decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return "", false
	}
	q := strings.TrimSpace(req.Question)
	if q == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return "", false
	}
	return q, true
}

// engineFor fetches the cached engine, mapping an empty knowledge base to a
// 409 so clients can tell "ingest first" apart from real failures.
func (h *ChatHandler) engineFor(w http.ResponseWriter, r *http.Request, mode engine.Mode) (*engine.QueryEngine, bool) {
	qe, err := h.cache.Engine(r.Context(), mode, h.topK)
	if err != nil {
		if errors.Is(err, engine.ErrKnowledgeBaseEmpty) {
			http.Error(w, err.Error(), http.StatusConflict)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return nil, false
	}
	return qe, true
}

// Chat answers synchronously with a single JSON body.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	question, ok := h.decodeQuestion(w, r)
	if !ok {
		return
	}
	qe, ok := h.engineFor(w, r, engine.ModeJSON)
	if !ok {
		return
	}

	resp, err := qe.Query(r.Context(), question)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// ChatStream answers over SSE: start, then one token event per produced
// token, then exactly one done or error event.
func (h *ChatHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	question, ok := h.decodeQuestion(w, r)
	if !ok {
		return
	}
	qe, ok := h.engineFor(w, r, engine.ModeStream)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Intermediary buffering would hold tokens back from the client.
	w.Header().Set("X-Accel-Buffering", "no")

	engine.StreamQuery(r.Context(), engine.NewEventWriter(w), qe, question)
}
