// Package metrics provides Prometheus metrics for the rating workflow.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics counts workflow transitions and notification deliveries.
type WorkflowMetrics struct {
	Transitions   *prometheus.CounterVec // by event
	Notifications *prometheus.CounterVec // by kind, outcome
}

// NewWorkflowMetrics creates the metrics and registers them on registry.
func NewWorkflowMetrics(registry prometheus.Registerer) (*WorkflowMetrics, error) {
	m := &WorkflowMetrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rating_workflow_transitions_total",
				Help: "Rating workflow transitions by event",
			},
			[]string{"event"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rating_notifications_total",
				Help: "Notification delivery attempts by kind and outcome",
			},
			[]string{"kind", "outcome"}, // outcome: sent, failed
		),
	}

	for _, c := range []prometheus.Collector{m.Transitions, m.Notifications} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register workflow metrics: %w", err)
		}
	}
	return m, nil
}

// Transition records one workflow event. Safe on a nil receiver.
func (m *WorkflowMetrics) Transition(event string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(event).Inc()
}

// Notification records one delivery attempt. Safe on a nil receiver.
func (m *WorkflowMetrics) Notification(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.Notifications.WithLabelValues(kind, outcome).Inc()
}
