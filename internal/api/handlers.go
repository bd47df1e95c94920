package api

import (
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"murmur/arbiter/internal/arbiter"
	"murmur/arbiter/internal/audiofeat"
	"murmur/arbiter/internal/auth"
	"murmur/arbiter/internal/config"
	"murmur/arbiter/internal/hostws"
	"murmur/arbiter/internal/profile"
	"murmur/arbiter/internal/trace"
	"murmur/arbiter/internal/types"
)

const hostTokenTTL = time.Hour

type Handlers struct {
	cfg      config.Config
	traces   *trace.Store
	profiles *profile.Store
	reg      *hostws.Registry

	// one-shot classification endpoint shares a single pipeline
	decideMu sync.Mutex
	decide   *arbiter.Controller
}

func NewHandlers(cfg config.Config, tr *trace.Store, pf *profile.Store, reg *hostws.Registry) *Handlers {
	return &Handlers{
		cfg:      cfg,
		traces:   tr,
		profiles: pf,
		reg:      reg,
		decide:   arbiter.New(cfg, pf, arbiter.Hooks{}),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(v)
}

func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if r.Body != nil {
		_ = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	}

	id := uuid.New().String()
	sess := &trace.Session{
		ID:        id,
		UserID:    req.UserID,
		CreatedAt: time.Now().UTC(),
		Status:    "created",
	}
	if err := h.traces.CreateSession(sess); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	var token string
	if h.cfg.Host.TokenSecret != "" {
		exp := time.Now().Add(hostTokenTTL).Unix()
		t, err := auth.GenerateHostToken(h.cfg.Host.TokenSecret, id, exp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		token = t
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"host_token": token,
		"ws_url":     "/ws/host?session_id=" + id,
	})
}

func (h *Handlers) HandleGetTrace(w http.ResponseWriter, r *http.Request, id string) {
	if h.traces.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"decisions":  h.traces.List(id),
	})
}

func (h *Handlers) HandleGetStats(w http.ResponseWriter, r *http.Request, id string) {
	if h.traces.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	ctrl := h.reg.Controller(id)
	if ctrl == nil {
		http.Error(w, "session not connected", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"stats":      ctrl.Scorer().Stats(),
		"threshold":  ctrl.Scorer().Threshold(),
	})
}

// HandleDecide classifies a single utterance without an event channel. Useful
// for offline evaluation and host-side smoke tests.
func (h *Handlers) HandleDecide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text          string  `json:"text"`
		AgentSpeaking bool    `json:"agent_speaking"`
		UserID        string  `json:"user_id,omitempty"`
		Final         bool    `json:"final"`
		Confidence    float64 `json:"confidence,omitempty"`
		AudioULaw     string  `json:"audio_ulaw,omitempty"`
		SampleRate    int     `json:"sample_rate,omitempty"`
	}
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "missing text", http.StatusBadRequest)
		return
	}

	ev := types.SpeechEvent{
		Text:       req.Text,
		Final:      req.Final,
		Confidence: req.Confidence,
		UserID:     req.UserID,
		At:         time.Now(),
	}
	if req.AudioULaw != "" {
		raw, err := base64.StdEncoding.DecodeString(req.AudioULaw)
		if err != nil {
			http.Error(w, "invalid audio_ulaw: "+err.Error(), http.StatusBadRequest)
			return
		}
		ev.Audio = audiofeat.DecodeULaw(raw, req.SampleRate)
	}

	// Each request is its own conversation; leftover tracker state from
	// earlier requests must not tilt the context score.
	h.decideMu.Lock()
	h.decide.ResetConversation()
	h.decide.AgentSpeakingChanged(req.AgentSpeaking, "")
	d, reasoning := h.decide.Decide(ev)
	h.decideMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"decision":  d.String(),
		"reasoning": reasoning,
	})
}

// HandleSetThreshold swaps the fusion threshold at runtime for every live
// session and for sessions created afterwards.
func (h *Handlers) HandleSetThreshold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Threshold float64 `json:"threshold"`
	}
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Threshold <= 0 || req.Threshold >= 1 {
		http.Error(w, "threshold must be in (0,1)", http.StatusBadRequest)
		return
	}
	h.reg.SetThreshold(req.Threshold)
	h.decideMu.Lock()
	h.decide.Scorer().SetThreshold(req.Threshold)
	h.decideMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "threshold": req.Threshold})
}
