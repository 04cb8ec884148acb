package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/customerdir/internal/domain/customer"
	"github.com/erp/customerdir/internal/domain/shared"
	"github.com/erp/customerdir/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockCustomerRepository creates a GormCustomerRepository on a mocked postgres connection
func newMockCustomerRepository(t *testing.T) (*GormCustomerRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormCustomerRepository(gormDB), mock, mockDB
}

// newSQLiteCustomerRepository creates a GormCustomerRepository on a migrated in-memory sqlite database
func newSQLiteCustomerRepository(t *testing.T) *GormCustomerRepository {
	db, err := NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	return NewGormCustomerRepository(db.DB)
}

func newDomainCustomer(t *testing.T, name, email string) *customer.Customer {
	c, err := customer.NewCustomer(customer.Candidate{Name: name, Email: email, Age: 30, Gender: customer.GenderMale})
	require.NoError(t, err)
	return c
}

func TestGormCustomerRepository_FindByID_Postgres(t *testing.T) {
	t.Run("finds existing customer", func(t *testing.T) {
		repo, mock, mockDB := newMockCustomerRepository(t)
		defer mockDB.Close()

		now := time.Now()
		rows := sqlmock.NewRows([]string{"id", "name", "email", "age", "gender", "created_at", "updated_at"}).
			AddRow(int64(7), "Ada", "ada@example.com", 36, "FEMALE", now, now)

		mock.ExpectQuery(`SELECT \* FROM "customer" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(int64(7), 1).
			WillReturnRows(rows)

		c, err := repo.FindByID(context.Background(), 7)

		require.NoError(t, err)
		assert.Equal(t, customer.ID(7), c.ID)
		assert.Equal(t, customer.GenderFemale, c.Gender)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps missing row to ErrNotFound", func(t *testing.T) {
		repo, mock, mockDB := newMockCustomerRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "customer" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(int64(9), 1).
			WillReturnError(gorm.ErrRecordNotFound)

		_, err := repo.FindByID(context.Background(), 9)

		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("passes driver errors through", func(t *testing.T) {
		repo, mock, mockDB := newMockCustomerRepository(t)
		defer mockDB.Close()

		boom := errors.New("connection refused")
		mock.ExpectQuery(`SELECT \* FROM "customer"`).WillReturnError(boom)

		_, err := repo.FindByID(context.Background(), 9)

		assert.ErrorIs(t, err, boom)
	})
}

func TestGormCustomerRepository_FindAll_Postgres(t *testing.T) {
	repo, mock, mockDB := newMockCustomerRepository(t)
	defer mockDB.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "email", "age", "gender"}).
		AddRow(int64(1), "Ada", "ada@example.com", 36, "FEMALE").
		AddRow(int64(2), "Bob", "bob@example.com", 41, "MALE")
	mock.ExpectQuery(`SELECT \* FROM "customer" ORDER BY id ASC`).WillReturnRows(rows)

	customers, err := repo.FindAll(context.Background())

	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "Bob", customers[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCustomerRepository_SQLite(t *testing.T) {
	ctx := context.Background()

	t.Run("save assigns ids in order", func(t *testing.T) {
		repo := newSQLiteCustomerRepository(t)
		first := newDomainCustomer(t, "Ada", "ada@example.com")
		second := newDomainCustomer(t, "Bob", "bob@example.com")

		require.NoError(t, repo.Save(ctx, first))
		require.NoError(t, repo.Save(ctx, second))

		assert.NotZero(t, first.ID)
		assert.Greater(t, second.ID, first.ID)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, first.ID, all[0].ID)
		assert.Equal(t, "bob@example.com", all[1].Email)
	})

	t.Run("update persists changed fields", func(t *testing.T) {
		repo := newSQLiteCustomerRepository(t)
		c := newDomainCustomer(t, "Ada", "ada@example.com")
		require.NoError(t, repo.Save(ctx, c))

		age := 40
		_, err := c.Apply(customer.Patch{Age: &age})
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, c))

		found, err := repo.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 40, found.Age)
	})

	t.Run("exists checks", func(t *testing.T) {
		repo := newSQLiteCustomerRepository(t)
		c := newDomainCustomer(t, "Ada", "ada@example.com")
		require.NoError(t, repo.Save(ctx, c))

		ok, err := repo.ExistsByEmail(ctx, " ADA@example.com ")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.ExistsByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.ExistsByID(ctx, c.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unique email", func(t *testing.T) {
		repo := newSQLiteCustomerRepository(t)
		require.NoError(t, repo.Save(ctx, newDomainCustomer(t, "Ada", "ada@example.com")))

		err := repo.Save(ctx, newDomainCustomer(t, "Other Ada", "ada@example.com"))

		assert.Error(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newSQLiteCustomerRepository(t)
		c := newDomainCustomer(t, "Ada", "ada@example.com")
		require.NoError(t, repo.Save(ctx, c))

		require.NoError(t, repo.Delete(ctx, c.ID))

		_, err := repo.FindByID(ctx, c.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, c.ID), shared.ErrNotFound)
	})
}
