package event

import (
	"context"

	"github.com/erp/customerdir/internal/domain/shared"
	"github.com/prometheus/client_golang/prometheus"
)

// CounterHandler counts published events by type
type CounterHandler struct {
	counter *prometheus.CounterVec
}

// NewCounterHandler creates a CounterHandler. counter must have a single
// "event_type" label.
func NewCounterHandler(counter *prometheus.CounterVec) *CounterHandler {
	return &CounterHandler{counter: counter}
}

// Handle implements shared.EventHandler
func (h *CounterHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	h.counter.WithLabelValues(evt.EventType()).Inc()
	return nil
}

// EventTypes implements shared.EventHandler
func (h *CounterHandler) EventTypes() []string {
	return nil
}
