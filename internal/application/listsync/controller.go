// Package listsync keeps a local view of the customer list in step with the
// remote store. Every mutation is followed by a full refetch, and only the
// most recently issued refresh may change the list state.
package listsync

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/erp/customerdir/internal/domain/customer"
	"github.com/erp/customerdir/internal/infrastructure/notify"
	"github.com/erp/customerdir/internal/infrastructure/telemetry"
)

// Store is the remote customer store. Each call completes exactly once.
type Store interface {
	ListCustomers(ctx context.Context) ([]customer.Record, error)
	CreateCustomer(ctx context.Context, candidate customer.Candidate) error
	UpdateCustomer(ctx context.Context, id customer.ID, candidate customer.Candidate) error
	DeleteCustomer(ctx context.Context, id customer.ID) error
}

type operation struct {
	name  string
	title string
	verb  string
}

var (
	opCreate = operation{name: "create", title: "Customer saved", verb: "saved"}
	opUpdate = operation{name: "update", title: "Customer updated", verb: "updated"}
	opDelete = operation{name: "delete", title: "Customer deleted", verb: "deleted"}
)

type subscriber struct {
	id uint64
	fn func(State)
}

// Controller owns the list state of one session
type Controller struct {
	store   Store
	emitter notify.Emitter
	logger  *zap.Logger
	metrics *Metrics

	mu          sync.Mutex
	state       State
	issued      uint64
	closed      bool
	subscribers []subscriber
	nextSubID   uint64
	pending     []State
	delivering  bool
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the controller logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger.Named("listsync")
		}
	}
}

// WithMetrics sets the collectors that count controller outcomes
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// NewController creates a controller in the Idle state
func NewController(store Store, emitter notify.Emitter, opts ...Option) *Controller {
	if emitter == nil {
		emitter = notify.Discard
	}
	c := &Controller{
		store:   store,
		emitter: emitter,
		logger:  zap.NewNop(),
		state:   Idle{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current list state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to observe every state transition in order.
// fn is called outside the controller lock; a transition caused from within fn
// is delivered after fn returns. The returned function removes the subscription.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.subscribers = slices.DeleteFunc(c.subscribers, func(s subscriber) bool { return s.id == id })
		})
	}
}

// Close stops delivering transitions. Later completions are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.subscribers = nil
	c.pending = nil
}

// Refresh fetches the full list and returns the state after the completion was handled.
// A completion is applied only if no later refresh was issued meanwhile.
func (c *Controller) Refresh(ctx context.Context) State {
	ctx, span := telemetry.StartSpan(ctx, "listsync.refresh")
	defer span.End()

	c.mu.Lock()
	if c.closed {
		defer c.mu.Unlock()
		return c.state
	}
	c.issued++
	seq := c.issued
	c.transition(Loading{})
	c.mu.Unlock()
	c.flush()

	span.SetAttributes(attribute.Int64("listsync.sequence", int64(seq)))

	records, err := c.store.ListCustomers(ctx)

	var (
		next          State
		code, message string
	)
	if err != nil {
		code, message = Classify(err)
		next = Error{Message: message}
	} else {
		next = stateFor(records)
	}

	c.mu.Lock()
	if seq != c.issued || c.closed {
		latest, current := c.issued, c.state
		c.mu.Unlock()

		c.metrics.staleCompletion()
		c.logger.Debug("discarding stale refresh completion",
			zap.Uint64("sequence", seq),
			zap.Uint64("latest", latest),
		)
		span.SetAttributes(attribute.Bool("listsync.stale", true))
		return current
	}
	c.transition(next)
	c.mu.Unlock()
	c.flush()

	c.metrics.refreshed(next.Kind())
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.Warn("refresh failed",
			zap.Uint64("sequence", seq),
			zap.String("code", code),
			zap.String("message", message),
			zap.Error(err),
		)
		c.emitter.Notify(ctx, notify.Error(code, message))
		return next
	}

	c.logger.Debug("refresh completed",
		zap.Uint64("sequence", seq),
		zap.String("state", string(next.Kind())),
		zap.Int("records", len(records)),
	)
	return next
}

// RefreshAsync runs Refresh on its own goroutine. The returned channel
// receives the resulting state once and is then closed.
func (c *Controller) RefreshAsync(ctx context.Context) <-chan State {
	out := make(chan State, 1)
	go func() {
		defer close(out)
		out <- c.Refresh(ctx)
	}()
	return out
}

// Create registers a new customer and refetches the list on success
func (c *Controller) Create(ctx context.Context, candidate customer.Candidate) error {
	return c.mutate(ctx, opCreate, candidate.Name, func(ctx context.Context) error {
		return c.store.CreateCustomer(ctx, candidate)
	})
}

// Update changes the non-zero fields of candidate on customer id and refetches the list on success
func (c *Controller) Update(ctx context.Context, id customer.ID, candidate customer.Candidate) error {
	name := candidate.Name
	if name == "" {
		name = "#" + id.String()
	}
	return c.mutate(ctx, opUpdate, name, func(ctx context.Context) error {
		return c.store.UpdateCustomer(ctx, id, candidate)
	})
}

// Remove deletes customer id and refetches the list on success.
// name is only used in the success notification.
func (c *Controller) Remove(ctx context.Context, id customer.ID, name string) error {
	if name == "" {
		name = "#" + id.String()
	}
	return c.mutate(ctx, opDelete, name, func(ctx context.Context) error {
		return c.store.DeleteCustomer(ctx, id)
	})
}

// mutate runs call and reports its outcome. The list state is only changed
// through the refresh that follows a success.
func (c *Controller) mutate(ctx context.Context, op operation, name string, call func(context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, "listsync."+op.name)
	defer span.End()

	err := call(ctx)
	c.metrics.mutated(op.name, err)
	if err != nil {
		code, message := Classify(err)
		telemetry.RecordError(span, err)
		c.logger.Warn("mutation failed",
			zap.String("operation", op.name),
			zap.String("code", code),
			zap.String("message", message),
			zap.Error(err),
		)
		c.emitter.Notify(ctx, notify.Error(code, message))
		return fmt.Errorf("%s customer: %w", op.name, err)
	}

	c.emitter.Notify(ctx, notify.Success(op.title, fmt.Sprintf("Customer %s was successfully %s", name, op.verb)))
	c.Refresh(ctx)
	return nil
}

// transition replaces the state and queues it for subscribers. Callers hold c.mu.
func (c *Controller) transition(next State) {
	prev := c.state
	c.state = next
	c.pending = append(c.pending, next)
	c.logger.Debug("state transition",
		zap.String("from", string(prev.Kind())),
		zap.String("to", string(next.Kind())),
	)
}

// flush delivers queued transitions. Only one goroutine delivers at a time,
// which keeps subscribers seeing transitions in the order they happened.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true

	for len(c.pending) > 0 && !c.closed {
		batch := c.pending
		c.pending = nil
		subs := slices.Clone(c.subscribers)
		c.mu.Unlock()

		for _, s := range batch {
			for _, sub := range subs {
				c.deliver(sub, s)
			}
		}

		c.mu.Lock()
	}

	c.pending = nil
	c.delivering = false
	c.mu.Unlock()
}

func (c *Controller) deliver(sub subscriber, s State) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("subscriber panicked",
				zap.Uint64("subscriber", sub.id),
				zap.String("state", string(s.Kind())),
				zap.Any("panic", r),
			)
		}
	}()
	sub.fn(s)
}
