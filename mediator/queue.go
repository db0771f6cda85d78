package mediator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/c360/uimediator/errors"
	"github.com/c360/uimediator/metric"
)

// queuedMessage is one entry in the mediator's FIFO processing queue. done is
// closed when the entry has been fully processed, releasing the Send call
// that is waiting on it.
type queuedMessage struct {
	id         string
	from       string
	to         string
	message    Message
	enqueuedAt time.Time
	done       chan struct{}
}

func newQueuedMessage(from, to string, msg Message) *queuedMessage {
	return &queuedMessage{
		id:         uuid.NewString(),
		from:       from,
		to:         to,
		message:    msg,
		enqueuedAt: time.Now(),
		done:       make(chan struct{}),
	}
}

// drainKey marks contexts owned by the processing loop. A Send arriving on a
// marked context came from a rule action, so it must enqueue and return
// instead of waiting for a drain it would itself be blocking.
type drainKey struct{}

func isDrainCtx(ctx context.Context) bool {
	return ctx.Value(drainKey{}) != nil
}

// drain processes queued messages until the queue is empty, then releases
// drain ownership. Exactly one goroutine runs drain at a time. The processing
// context is detached from any caller so that cancelling one Send cannot
// starve messages enqueued by others.
func (m *Mediator) drain() {
	dctx := context.WithValue(context.Background(), drainKey{}, struct{}{})

	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		qm := m.queue[0]
		m.queue = m.queue[1:]
		if len(m.queue) == 0 {
			m.queue = nil
		}
		depth := len(m.queue)
		m.mu.Unlock()

		if m.core != nil {
			m.core.SetQueueDepth(depth)
		}

		m.processMessage(dctx, qm)
		close(qm.done)
	}
}

// processMessage evaluates the rule set against one queued message and runs
// every matched action in order. Messages that match no rule fall back to
// direct event forwarding.
func (m *Mediator) processMessage(ctx context.Context, qm *queuedMessage) {
	start := time.Now()
	matched := m.matchingRules(qm.from, qm.to, qm.message)

	status := metric.StatusDelivered
	if len(matched) == 0 {
		status = m.forwardDefault(ctx, qm)
	} else {
		failures := 0
		for _, rule := range matched {
			if !m.runAction(ctx, rule, qm) {
				failures++
			}
		}
		if failures == len(matched) {
			status = metric.StatusError
		}
	}

	m.messagesProcessed.Add(1)
	if m.core != nil {
		m.core.RecordMessageProcessed(status)
		m.core.RecordDispatchDuration("process", time.Since(start))
	}
	if m.metrics != nil {
		m.metrics.processDuration.Observe(time.Since(start).Seconds())
	}
	m.trace(ctx, "processed", qm, len(matched))

	m.logger.Debug("message processed",
		"message", qm.id,
		"from", qm.from,
		"to", qm.to,
		"type", qm.message.Type(),
		"rules", len(matched),
		"status", status,
		"wait", time.Since(qm.enqueuedAt))
}

// runAction executes one rule action with panic containment and the optional
// per-action timeout. Returns true when the action completed without error.
func (m *Mediator) runAction(ctx context.Context, rule Rule, qm *queuedMessage) (ok bool) {
	actx := ctx
	if m.actionTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, m.actionTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			ok = false
			m.ruleActionFailures.Add(1)
			m.logger.Error("rule action panicked",
				"rule", rule.ID,
				"message", qm.id,
				"from", qm.from,
				"to", qm.to,
				"panic", r)
			if m.metrics != nil {
				m.metrics.ruleActionsTotal.WithLabelValues(rule.ID, "panic").Inc()
			}
			if m.core != nil {
				m.core.RecordError("mediator", "fatal")
			}
		}
	}()

	if err := rule.Action(actx, qm.from, qm.to, qm.message); err != nil {
		m.ruleActionFailures.Add(1)
		m.logger.Error("rule action failed",
			"rule", rule.ID,
			"message", qm.id,
			"from", qm.from,
			"to", qm.to,
			"error", err)
		if m.metrics != nil {
			m.metrics.ruleActionsTotal.WithLabelValues(rule.ID, "error").Inc()
		}
		return false
	}

	if m.metrics != nil {
		m.metrics.ruleActionsTotal.WithLabelValues(rule.ID, "ok").Inc()
	}
	return true
}

// forwardDefault delivers a message that matched no rule. Messages shaped as
// events (an eventName with eventData) are handed straight to the target
// component; anything else is dropped quietly. A target that disappeared
// between validation and processing degrades to a drop rather than an error.
func (m *Mediator) forwardDefault(ctx context.Context, qm *queuedMessage) string {
	eventName := qm.message.GetString("eventName", "")
	if eventName == "" || !qm.message.Has("eventData") {
		m.logger.Debug("no rule matched, message dropped",
			"message", qm.id,
			"from", qm.from,
			"to", qm.to,
			"type", qm.message.Type())
		if m.metrics != nil {
			m.metrics.forwardedTotal.WithLabelValues("skipped").Inc()
		}
		return metric.StatusDropped
	}

	m.mu.RLock()
	reg, exists := m.components[qm.to]
	m.mu.RUnlock()
	if !exists {
		m.logger.Debug("forward target no longer registered",
			"message", qm.id,
			"to", qm.to)
		if m.metrics != nil {
			m.metrics.forwardedTotal.WithLabelValues("skipped").Inc()
		}
		return metric.StatusDropped
	}

	if err := m.notifyComponent(ctx, reg, eventName, qm.message["eventData"]); err != nil {
		m.logger.Error("default forward failed",
			"message", qm.id,
			"to", qm.to,
			"event", eventName,
			"error", err)
		if m.metrics != nil {
			m.metrics.forwardedTotal.WithLabelValues("error").Inc()
		}
		if m.core != nil {
			m.core.RecordError(qm.to, errors.Classify(err).String())
		}
		return metric.StatusError
	}

	if m.metrics != nil {
		m.metrics.forwardedTotal.WithLabelValues("ok").Inc()
	}
	return metric.StatusDelivered
}

// notifyComponent calls Notify with panic containment so a faulty component
// cannot take down the processing loop.
func (m *Mediator) notifyComponent(ctx context.Context, reg *registration, event string, data any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WrapFatal(fmt.Errorf("panic: %v", r), reg.id, "Notify", "handle event")
			m.logger.Error("component notify panicked",
				"id", reg.id,
				"event", event,
				"panic", r)
		}
	}()
	return reg.component.Notify(ctx, event, data)
}
