package persistence

import "github.com/erp/customerdir/internal/infrastructure/persistence/models"

// AllModels returns every persistence model, in migration order
func AllModels() []any {
	return []any{
		&models.CustomerModel{},
	}
}
