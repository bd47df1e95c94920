package hostws

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"strings"
	"time"

	ws "nhooyr.io/websocket"

	"murmur/arbiter/internal/arbiter"
	"murmur/arbiter/internal/audiofeat"
	"murmur/arbiter/internal/auth"
	"murmur/arbiter/internal/config"
	"murmur/arbiter/internal/profile"
	"murmur/arbiter/internal/protocol"
	"murmur/arbiter/internal/trace"
	"murmur/arbiter/internal/types"
)

const defaultSampleRate = 8000

// Server terminates the host event channel. Each accepted connection gets its
// own arbitration pipeline; decisions flow back on the same socket.
type Server struct {
	Cfg      config.Config
	Traces   *trace.Store
	Profiles *profile.Store
	Reg      *Registry
}

func NewServer(cfg config.Config, tr *trace.Store, pf *profile.Store, reg *Registry) *Server {
	return &Server{Cfg: cfg, Traces: tr, Profiles: pf, Reg: reg}
}

func (s *Server) HandleHostWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}
	sess := s.Traces.GetSession(sessionID)
	if sess == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	// Auth header
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	token := strings.TrimPrefix(authz, "Bearer ")
	if s.Cfg.Host.TokenSecret == "" {
		http.Error(w, "host auth not configured", http.StatusUnauthorized)
		return
	}
	if _, _, err := auth.ValidateHostToken(s.Cfg.Host.TokenSecret, token, sessionID, time.Now(), s.Cfg.Host.TokenSkewSecs); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := ws.Accept(w, r, nil)
	if err != nil {
		log.Printf("[hostws] accept: %v", err)
		return
	}

	ctrl := arbiter.New(s.Cfg, s.Profiles, arbiter.Hooks{
		OnDecision: func(d types.Decision, reasoning types.Reasoning) {
			s.Traces.Append(sessionID, reasoning)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err := s.Reg.Send(ctx, sessionID, protocol.MsgDecision, protocol.DecisionPayload{
				Decision:  d.String(),
				Reasoning: reasoning,
			})
			if err != nil {
				log.Printf("[hostws] send decision session=%s: %v", sessionID, err)
			}
		},
		RequestInterrupt: func(reason string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err := s.Reg.Send(ctx, sessionID, protocol.MsgStopPlayback, protocol.StopPlaybackPayload{Reason: reason})
			if err != nil {
				log.Printf("[hostws] send stop_playback session=%s: %v", sessionID, err)
			}
		},
	})

	if s.Reg.Replace(sessionID, c, ctrl) {
		log.Printf("[hostws] session=%s previous connection replaced", sessionID)
	}
	s.Traces.SetStatus(sessionID, "connected")
	log.Printf("[hostws] session=%s host connected", sessionID)

	ctx := r.Context()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		if typ != ws.MessageText && typ != ws.MessageBinary {
			continue
		}
		env, err := protocol.Unmarshal(data)
		if err != nil {
			log.Printf("[hostws] session=%s bad message: %v", sessionID, err)
			continue
		}
		s.dispatch(ctrl, sess, env)
	}
	_ = c.Close(ws.StatusNormalClosure, "done")
	s.Reg.Remove(sessionID)
	s.Traces.SetStatus(sessionID, "disconnected")
	log.Printf("[hostws] session=%s host disconnected", sessionID)
}

func (s *Server) dispatch(ctrl *arbiter.Controller, sess *trace.Session, env protocol.Envelope) {
	switch env.Type {
	case protocol.MsgAgentSpeaking:
		p, err := protocol.UnmarshalPayload[protocol.AgentSpeakingPayload](env)
		if err != nil {
			log.Printf("[hostws] session=%s agent_speaking payload: %v", sess.ID, err)
			return
		}
		ctrl.AgentSpeakingChanged(p.Speaking, p.Utterance)

	case protocol.MsgVoiceActivity:
		ctrl.VoiceActivity()

	case protocol.MsgTranscript:
		p, err := protocol.UnmarshalPayload[protocol.TranscriptPayload](env)
		if err != nil {
			log.Printf("[hostws] session=%s transcript payload: %v", sess.ID, err)
			return
		}
		ev := types.SpeechEvent{
			Text:       p.Text,
			Final:      p.Final,
			Confidence: p.Confidence,
			UserID:     sess.UserID,
		}
		if env.TsMs > 0 {
			ev.At = time.UnixMilli(env.TsMs)
		}
		if p.AudioULaw != "" {
			if raw, err := base64.StdEncoding.DecodeString(p.AudioULaw); err == nil {
				rate := p.SampleRate
				if rate <= 0 {
					rate = defaultSampleRate
				}
				ev.Audio = audiofeat.DecodeULaw(raw, rate)
			} else {
				log.Printf("[hostws] session=%s audio decode: %v", sess.ID, err)
			}
		}
		ctrl.Transcript(ev)

	default:
		log.Printf("[hostws] session=%s unknown message type %q", sess.ID, env.Type)
	}
}
