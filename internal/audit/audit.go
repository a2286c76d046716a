package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types emitted by the engine.
const (
	TypeRegister        = "register"
	TypeLogin           = "login"
	TypeMFAChallenge    = "mfa_challenge"
	TypeMFAVerify       = "mfa_verify"
	TypeRefresh         = "refresh"
	TypeRefreshReuse    = "refresh_reuse"
	TypePasswordChange  = "password_change"
	TypeLogout          = "logout"
	TypeLogoutAll       = "logout_all"
	TypeMFAEnroll       = "mfa_enroll"
	TypeMFADisable      = "mfa_disable"
	TypeAuthenticate    = "authenticate"
	TypeRateLimited     = "rate_limited"
	TypeRevocationPurge = "revocation_purge"
)

// Event is a single security-relevant outcome.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	TokenID   string            `json:"token_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
}

// LogSink writes events through a zerolog logger at info level, or warn
// level for failures.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	e := s.logger.Info()
	if !event.Success {
		e = s.logger.Warn()
	}
	e = e.Time("at", event.Timestamp).
		Str("event_type", event.Type).
		Bool("success", event.Success)
	if event.UserID != "" {
		e = e.Str("user_id", event.UserID)
	}
	if event.TokenID != "" {
		e = e.Str("token_id", event.TokenID)
	}
	if event.RequestID != "" {
		e = e.Str("request_id", event.RequestID)
	}
	if event.IP != "" {
		e = e.Str("ip", event.IP)
	}
	if event.Reason != "" {
		e = e.Str("reason", event.Reason)
	}
	if len(event.Metadata) > 0 {
		e = e.Interface("metadata", event.Metadata)
	}
	e.Msg("audit")
}
