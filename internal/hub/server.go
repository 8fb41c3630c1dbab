package hub

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kayz/promptgate/internal/backend"
	"github.com/kayz/promptgate/internal/janitor"
	"github.com/kayz/promptgate/internal/logger"
	"github.com/kayz/promptgate/internal/persist"
	"github.com/kayz/promptgate/internal/preset"
	"github.com/kayz/promptgate/internal/regexscript"
)

// presetHeader selects the preset for one request; absent means the
// configured default.
const presetHeader = "X-Promptgate-Preset"

// Server exposes the pipeline over HTTP: the chat completion proxy plus
// preset and script management.
type Server struct {
	pipeline      *Pipeline
	provider      backend.Provider
	auditor       *Auditor
	storage       Storage
	cache         *preset.Cache
	defaultPreset string
	startedAt     time.Time
}

func NewServer(pipeline *Pipeline, provider backend.Provider, auditor *Auditor, storage Storage, cache *preset.Cache, defaultPreset string) *Server {
	return &Server{
		pipeline:      pipeline,
		provider:      provider,
		auditor:       auditor,
		storage:       storage,
		cache:         cache,
		defaultPreset: defaultPreset,
		startedAt:     time.Now().UTC(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/api/presets/", s.handlePreset)
	mux.HandleFunc("/api/scripts/import", s.handleScriptsImport)
	mux.HandleFunc("/api/scripts/export", s.handleScriptsExport)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"provider":   s.provider.Name(),
		"started_at": s.startedAt.Format(time.RFC3339),
		"uptime_sec": int(time.Since(s.startedAt).Seconds()),
	})
}

type chatChoice struct {
	Index        int             `json:"index"`
	Message      responseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type responseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req janitor.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}

	presetName := strings.TrimSpace(r.Header.Get(presetHeader))
	if presetName == "" {
		presetName = s.defaultPreset
	}

	ps, err := s.pipeline.LoadPreset(presetName)
	if err != nil {
		if errors.Is(err, ErrPresetNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	result := s.pipeline.Transform(req, ps)

	reply, err := s.provider.Generate(r.Context(), result.Messages, result.Sampler)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	text := s.pipeline.ApplyResponse(reply.Text, ps, result.Context)

	if err := s.auditor.Record(presetName, result.Parsed, result.Messages); err != nil {
		logger.Warn("audit record failed: %v", err)
	}

	model := reply.Model
	if model == "" {
		model = result.Parsed.Model
	}

	writeJSON(w, http.StatusOK, chatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []chatChoice{{
			Index:        0,
			Message:      responseMessage{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     reply.Usage.PromptTokens,
			CompletionTokens: reply.Usage.CompletionTokens,
			TotalTokens:      reply.Usage.PromptTokens + reply.Usage.CompletionTokens,
		},
	})
}

func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/presets/")
	if name == "" || strings.Contains(name, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "preset name is required"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		raw, ok, err := s.storage.Get(persist.PresetKey(name))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "preset not found: " + name})
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(raw))

	case http.MethodPut:
		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
			return
		}
		// Validate before storing; a broken preset must never replace a
		// working one.
		if _, err := preset.Load(body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err := s.storage.Set(persist.PresetKey(name), string(body)); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		s.cache.Invalidate(name)
		writeJSON(w, http.StatusOK, map[string]string{"status": "stored", "name": name})

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) handleScriptsImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}

	scripts, err := regexscript.Import(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.storage.Set(persist.ScriptsKey, string(body)); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "imported", "count": len(scripts)})
}

func (s *Server) handleScriptsExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	raw, ok, err := s.storage.Get(persist.ScriptsKey)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		// An empty collection still exports the document envelope so
		// clients can parse every export the same way.
		raw = `{"scripts": []}`
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte(raw))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
