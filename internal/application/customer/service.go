package customer

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/customerdir/internal/domain/customer"
	"github.com/erp/customerdir/internal/domain/shared"
	"github.com/erp/customerdir/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Service handles customer directory operations
type Service struct {
	repo   customer.Repository
	events shared.EventPublisher
}

// NewService creates a Service. events may be nil.
func NewService(repo customer.Repository, events shared.EventPublisher) *Service {
	return &Service{
		repo:   repo,
		events: events,
	}
}

// List returns all customers ordered by id
func (s *Service) List(ctx context.Context) ([]Response, error) {
	customers, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return ToResponses(customers), nil
}

// Get returns one customer
func (s *Service) Get(ctx context.Context, id customer.ID) (*Response, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToResponse(c)
	return &resp, nil
}

// Register creates a customer. The email must not be taken.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Response, error) {
	candidate, err := req.candidate()
	if err != nil {
		return nil, err
	}
	c, err := customer.NewCustomer(candidate)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByEmail(ctx, c.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "email already taken")
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	s.publish(ctx, customer.NewRegisteredEvent(c))

	resp := ToResponse(c)
	return &resp, nil
}

// Update applies the fields of req that differ from the stored customer.
// A request that changes nothing is rejected.
func (s *Service) Update(ctx context.Context, id customer.ID, req UpdateRequest) (*Response, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	patch, err := req.patch()
	if err != nil {
		return nil, err
	}

	previousEmail := c.Email
	changed, err := c.Apply(patch)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return nil, shared.ErrNoChanges
	}

	if c.Email != previousEmail {
		exists, err := s.repo.ExistsByEmail(ctx, c.Email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, shared.NewDomainError("ALREADY_EXISTS", "email already taken")
		}
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	s.publish(ctx, customer.NewUpdatedEvent(c, changed))

	resp := ToResponse(c)
	return &resp, nil
}

// Delete removes a customer
func (s *Service) Delete(ctx context.Context, id customer.ID) error {
	exists, err := s.repo.ExistsByID(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return notFound(id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, customer.NewDeletedEvent(id))
	return nil
}

func (s *Service) find(ctx context.Context, id customer.ID) (*customer.Customer, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, err
	}
	return c, nil
}

// publish is best effort; a failing subscriber never fails the operation
func (s *Service) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		logger.L(ctx).Warn("failed to publish customer events", zap.Error(err))
	}
}

func notFound(id customer.ID) error {
	return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("customer with id [%d] not found", id))
}
