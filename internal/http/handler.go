package http

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidbz/ember/internal/cache"
	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/observability"
	"github.com/davidbz/ember/internal/routing"
	"github.com/davidbz/ember/internal/stream"
)

// Handler handles HTTP requests.
type Handler struct {
	router    *routing.Router
	cache     *cache.Tiered
	emitter   *stream.Emitter
	ai        *config.AIConfig
	cacheCfg  *config.CacheConfig
	startTime time.Time

	// sample draws the cache-probability gate; replaced in tests.
	sample func() float64
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(
	router *routing.Router,
	tiered *cache.Tiered,
	emitter *stream.Emitter,
	ai *config.AIConfig,
	cacheCfg *config.CacheConfig,
) *Handler {
	return &Handler{
		router:    router,
		cache:     tiered,
		emitter:   emitter,
		ai:        ai,
		cacheCfg:  cacheCfg,
		startTime: time.Now(),
		sample:    rand.Float64,
	}
}

// HandleChat processes chat requests: layered cache lookup, complexity
// routing on a miss, then JSON, plain-text or event-stream delivery.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "Validation error: "+err.Error())
		return
	}

	ctx := r.Context()
	conversationID := resolveConversationID(&req)
	model := h.resolveModel(&req)
	ctx = observability.WithConversationID(ctx, conversationID.String())
	ctx = observability.WithModel(ctx, model)
	logger := observability.FromContext(ctx)

	resp, err := h.process(ctx, &req, conversationID, model)
	if err != nil {
		logger.Error("chat request failed", observability.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process chat request", err.Error())
		return
	}

	accept := r.Header.Get("Accept")
	wantsStream := req.Stream || strings.Contains(accept, "text/event-stream")
	switch {
	case wantsStream:
		h.writeEventStream(ctx, w, resp)
	case strings.Contains(accept, "text/plain"):
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(resp.Response))
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleGenerate runs the same pipeline but always delivers the result
// as a line-delimited JSON token stream.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "Validation error: "+err.Error())
		return
	}

	ctx := r.Context()
	conversationID := resolveConversationID(&req)
	model := h.resolveModel(&req)
	ctx = observability.WithConversationID(ctx, conversationID.String())
	ctx = observability.WithModel(ctx, model)

	resp, err := h.process(ctx, &req, conversationID, model)
	if err != nil {
		observability.FromContext(ctx).Error("generate request failed", observability.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process chat request", err.Error())
		return
	}

	h.writeLineStream(ctx, w, model, resp)
}

// process runs the cache-then-generate pipeline and returns a normalized
// response. The cache annotations and conversation id on the result are
// always assigned here, never inherited from a cached payload or a
// generation collaborator.
func (h *Handler) process(
	ctx context.Context,
	req *domain.ChatRequest,
	conversationID uuid.UUID,
	model string,
) (*domain.ChatResponse, error) {
	logger := observability.FromContext(ctx)

	key := cache.Key(
		req.Message,
		model,
		strconv.FormatFloat(h.resolveTemperature(req), 'g', -1, 64),
		strconv.Itoa(h.resolveMaxTokens(req)),
	)

	useCache := !req.CacheBypass && h.sample() < h.cacheCfg.CacheProbability

	if useCache {
		if raw, source, ok := h.cache.Get(ctx, key); ok {
			var cached domain.ChatResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				cached.CacheHit = true
				cached.CacheSource = string(source)
				cached.ConversationID = conversationID
				cached.Timestamp = time.Now().UTC()
				logger.Info("cache hit",
					observability.String("cache_source", string(source)))
				return &cached, nil
			}
			logger.Warn("discarding undecodable cached payload",
				observability.String("cache_key", key))
		}
	}

	resp, err := h.router.Route(ctx, req)
	if err != nil {
		return nil, err
	}

	resp.ConversationID = conversationID
	resp.CacheHit = false
	resp.CacheSource = ""

	if useCache {
		if payload, marshalErr := json.Marshal(resp); marshalErr == nil {
			h.cache.Set(ctx, key, payload)
		} else {
			// Degrade to not caching rather than failing the request.
			logger.Warn("response not cacheable", observability.Error(marshalErr))
		}
	}

	return resp, nil
}

// writeEventStream delivers the response over the event-stream protocol:
// token events, one meta event, one done event.
func (h *Handler) writeEventStream(ctx context.Context, w http.ResponseWriter, resp *domain.ChatResponse) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for event := range h.emitter.Events(ctx, resp) {
		if _, err := w.Write([]byte("event: " + event.Name + "\ndata: " + event.Data + "\n\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}

// writeLineStream delivers the response over the line-delimited protocol.
func (h *Handler) writeLineStream(ctx context.Context, w http.ResponseWriter, model string, resp *domain.ChatResponse) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", "")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")

	encoder := json.NewEncoder(w)
	for chunk := range h.emitter.Lines(ctx, model, resp) {
		if err := encoder.Encode(chunk); err != nil {
			return
		}
		flusher.Flush()
	}
}

// HandleHealth handles liveness checks.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// HandleReady handles readiness checks.
func (h *Handler) HandleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"model":  h.ai.ModelName,
	})
}

// HandleCacheStats reports the process-wide cache counters.
func (h *Handler) HandleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

// HandleNotFound is the fallback for unmatched routes.
func (h *Handler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not found", r.URL.Path)
}

func (h *Handler) resolveModel(req *domain.ChatRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return h.ai.ModelName
}

func (h *Handler) resolveTemperature(req *domain.ChatRequest) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return h.ai.Temperature
}

func (h *Handler) resolveMaxTokens(req *domain.ChatRequest) int {
	if req.MaxTokens != nil {
		return *req.MaxTokens
	}
	return h.ai.MaxTokens
}

func resolveConversationID(req *domain.ChatRequest) uuid.UUID {
	if req.ConversationID != nil {
		return *req.ConversationID
	}
	return uuid.New()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, domain.WithDetails(message, details))
}
