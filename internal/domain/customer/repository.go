package customer

import "context"

// Repository defines the interface for customer persistence
type Repository interface {
	// FindAll returns every customer ordered by id
	FindAll(ctx context.Context) ([]Customer, error)

	// FindByID returns shared.ErrNotFound when no customer has the id
	FindByID(ctx context.Context, id ID) (*Customer, error)

	ExistsByID(ctx context.Context, id ID) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Save inserts the customer when its ID is zero and updates it otherwise.
	// On insert the assigned ID is written back to the customer.
	Save(ctx context.Context, c *Customer) error

	Delete(ctx context.Context, id ID) error
}
