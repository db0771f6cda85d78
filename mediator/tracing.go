package mediator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/c360/uimediator/eventbus"
)

// Trace emission ceiling. Tracing is a development aid; the limiter keeps a
// hot message path from flooding the bus with trace records.
const (
	traceRate  = rate.Limit(20)
	traceBurst = 40
)

// TraceRecord describes one observed hop of a message through the mediator.
// Records are logged at Debug and emitted on the trace event while tracing
// is enabled.
type TraceRecord struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id,omitempty"`
	Hop       string    `json:"hop"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Rules     int       `json:"rules"`
	At        time.Time `json:"at"`
}

// EnableTracing turns on message tracing and returns a disposer that
// restores silence. The disposer is safe to call more than once. Tracing
// state is a flag checked on the message path, so enabling and disabling
// never swaps method implementations or takes locks.
func (m *Mediator) EnableTracing() func() {
	m.traceEnabled.Store(true)
	m.logger.Info("message tracing enabled")

	var once sync.Once
	return func() {
		once.Do(func() {
			m.traceEnabled.Store(false)
			m.logger.Info("message tracing disabled")
		})
	}
}

// TracingEnabled reports whether trace records are currently being emitted.
func (m *Mediator) TracingEnabled() bool {
	return m.traceEnabled.Load()
}

func (m *Mediator) trace(ctx context.Context, hop string, qm *queuedMessage, rules int) {
	m.traceHop(ctx, hop, qm.id, qm.from, qm.to, rules)
}

// traceHop records one hop, best effort. Rules carries the matched rule
// count for processed hops and the fan-out size for broadcast hops.
func (m *Mediator) traceHop(ctx context.Context, hop, messageID, from, to string, rules int) {
	if !m.traceEnabled.Load() {
		return
	}
	if !m.traceLimiter.Allow() {
		return
	}

	rec := TraceRecord{
		ID:        uuid.NewString(),
		MessageID: messageID,
		Hop:       hop,
		From:      from,
		To:        to,
		Rules:     rules,
		At:        time.Now(),
	}

	m.logger.Debug("trace",
		"hop", rec.Hop,
		"message", rec.MessageID,
		"from", rec.From,
		"to", rec.To,
		"rules", rec.Rules)

	if err := m.bus.Emit(ctx, eventbus.EventTrace, rec); err != nil {
		m.logger.Debug("trace emit failed", "error", err)
	}
}
