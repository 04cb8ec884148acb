package customer

import "github.com/erp/customerdir/internal/domain/shared"

// AggregateType is the aggregate type carried by customer events
const AggregateType = "Customer"

// Event types
const (
	EventTypeRegistered = "CustomerRegistered"
	EventTypeUpdated    = "CustomerUpdated"
	EventTypeDeleted    = "CustomerDeleted"
)

// RegisteredEvent is published after a customer is first saved
type RegisteredEvent struct {
	shared.BaseDomainEvent
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewRegisteredEvent creates a RegisteredEvent for c
func NewRegisteredEvent(c *Customer) *RegisteredEvent {
	return &RegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRegistered, AggregateType, int64(c.ID)),
		Name:            c.Name,
		Email:           c.Email,
	}
}

// UpdatedEvent is published after a customer changes
type UpdatedEvent struct {
	shared.BaseDomainEvent
	Fields []string `json:"fields"`
}

// NewUpdatedEvent creates an UpdatedEvent listing the changed fields
func NewUpdatedEvent(c *Customer, fields []string) *UpdatedEvent {
	return &UpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeUpdated, AggregateType, int64(c.ID)),
		Fields:          fields,
	}
}

// DeletedEvent is published after a customer is removed
type DeletedEvent struct {
	shared.BaseDomainEvent
}

// NewDeletedEvent creates a DeletedEvent for id
func NewDeletedEvent(id ID) *DeletedEvent {
	return &DeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeleted, AggregateType, int64(id)),
	}
}
