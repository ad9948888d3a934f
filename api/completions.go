package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ragserve/ragserve/internal/llm"
	"github.com/ragserve/ragserve/internal/log"
	"github.com/ragserve/ragserve/internal/registry"
)

// defaultModel is used when a request omits the model field.
const defaultModel = "default"

// tokenPattern splits an answer into streamable tokens: alternating runs
// of non-whitespace and whitespace, so concatenating all chunks
// reconstructs the answer byte for byte.
var tokenPattern = regexp.MustCompile(`\S+|\s+`)

// sentinelUsage reports -1 token counts: the gateway does not do
// token-accurate accounting, and -1 marks the fields as unpopulated
// without breaking clients that require the usage object.
var sentinelUsage = usage{PromptTokens: -1, CompletionTokens: -1, TotalTokens: -1}

// chatRequest is the OpenAI-compatible request body.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// chatCompletion is the non-streaming response body.
type chatCompletion struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   usage        `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      llm.Message `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// chatChunk is one streaming SSE payload.
type chatChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Index        int     `json:"index"`
	Delta        delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type delta struct {
	Content string `json:"content,omitempty"`
}

// CompletionsHandler handles the chat completions endpoint.
//
// Each request occupies one slot of a bounded worker pool for the full
// retrieval + pipeline duration, so load beyond the pool size queues at the
// semaphore instead of fanning out unbounded provider calls.
type CompletionsHandler struct {
	registry *registry.Registry
	workers  *semaphore.Weighted
	logger   log.Logger
}

// NewCompletionsHandler creates a completions handler with a worker pool of
// the given size.
func NewCompletionsHandler(reg *registry.Registry, workers int64, logger log.Logger) *CompletionsHandler {
	return &CompletionsHandler{
		registry: reg,
		workers:  semaphore.NewWeighted(workers),
		logger:   logger,
	}
}

// RegisterRoutes registers the completions route on the given mux.
func (h *CompletionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/chat/completions", h.handleCompletions)
}

func (h *CompletionsHandler) handleCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest,
			"request body is not valid JSON", errTypeInvalidRequest, "invalid_body")
		return
	}

	if req.Model == "" {
		req.Model = defaultModel
	}

	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest,
			"messages array is required", errTypeInvalidRequest, "invalid_request")
		return
	}
	entry, err := h.registry.Entry(req.Model)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("model %q not found. Available models: %s",
				req.Model, strings.Join(h.registry.Names(), ", ")),
			errTypeInvalidRequest, "model_not_found")
		return
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != llm.RoleUser {
		writeError(w, http.StatusBadRequest,
			"last message must be from user", errTypeInvalidRequest, "invalid_request")
		return
	}

	// One worker slot covers both retrieval and the pipeline run.
	if err := h.workers.Acquire(r.Context(), 1); err != nil {
		writeError(w, http.StatusServiceUnavailable,
			"request cancelled while waiting for a worker", errTypeServer, "unavailable")
		return
	}
	defer h.workers.Release(1)

	contextText, err := entry.Retrieval.GetContext(r.Context(), last.Content)
	if err != nil {
		h.logger.Error("retrieval failed", "model", req.Model, "error", err)
		writeError(w, http.StatusInternalServerError,
			"failed to retrieve context", errTypeServer, "retrieval_error")
		return
	}

	answer, err := entry.Pipeline.Run(r.Context(), req.Messages, contextText)
	if err != nil {
		h.logger.Error("pipeline run failed", "model", req.Model, "error", err)
		writeError(w, http.StatusInternalServerError,
			"failed to generate completion", errTypeServer, "pipeline_error")
		return
	}

	if req.Stream {
		h.streamCompletion(w, req.Model, answer)
		return
	}

	writeJSON(w, http.StatusOK, chatCompletion{
		ID:      completionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      llm.Message{Role: llm.RoleAssistant, Content: answer},
			FinishReason: "stop",
		}},
		Usage: sentinelUsage,
	})
}

// streamCompletion frames the finished answer as an OpenAI SSE stream: one
// content delta per token, a stop chunk, then [DONE].
func (h *CompletionsHandler) streamCompletion(w http.ResponseWriter, model, answer string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError,
			"streaming is not supported by this connection", errTypeServer, "streaming_unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	id := completionID()
	created := time.Now().Unix()

	send := func(choice chunkChoice) {
		data, err := json.Marshal(chatChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []chunkChoice{choice},
		})
		if err != nil {
			h.logger.Error("failed to encode SSE chunk", "error", err)
			return
		}
		_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	for _, token := range tokenPattern.FindAllString(answer, -1) {
		send(chunkChoice{Delta: delta{Content: token}})
	}

	stop := "stop"
	send(chunkChoice{FinishReason: &stop})
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// completionID generates an OpenAI-style completion id.
func completionID() string {
	return "chatcmpl-" + uuid.NewString()[:8]
}
