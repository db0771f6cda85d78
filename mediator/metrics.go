package mediator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/uimediator/metric"
)

// mediatorMetrics holds the mediator's own instrument set, registered under
// the shared registry alongside the core metrics.
type mediatorMetrics struct {
	messagesSent     prometheus.Counter
	broadcastsTotal  prometheus.Counter
	ruleActionsTotal *prometheus.CounterVec
	forwardedTotal   *prometheus.CounterVec
	processDuration  prometheus.Histogram
}

func newMediatorMetrics(registry *metric.MetricsRegistry) (*mediatorMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	mm := &mediatorMetrics{
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uimediator",
			Subsystem: "mediator",
			Name:      "messages_sent_total",
			Help:      "Messages accepted by Send",
		}),
		broadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uimediator",
			Subsystem: "mediator",
			Name:      "broadcasts_total",
			Help:      "Broadcast calls accepted",
		}),
		ruleActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uimediator",
			Subsystem: "mediator",
			Name:      "rule_actions_total",
			Help:      "Rule action executions by rule and outcome",
		}, []string{"rule", "outcome"}),
		forwardedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uimediator",
			Subsystem: "mediator",
			Name:      "forwarded_total",
			Help:      "Default forwarding attempts by outcome",
		}, []string{"outcome"}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uimediator",
			Subsystem: "mediator",
			Name:      "process_duration_seconds",
			Help:      "Time spent processing one queued message",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if err := registry.RegisterCounter("mediator", "messages_sent_total", mm.messagesSent); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("mediator", "broadcasts_total", mm.broadcastsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("mediator", "rule_actions_total", mm.ruleActionsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("mediator", "forwarded_total", mm.forwardedTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("mediator", "process_duration_seconds", mm.processDuration); err != nil {
		return nil, err
	}

	return mm, nil
}
