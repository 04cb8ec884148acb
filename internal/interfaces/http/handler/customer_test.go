package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	customerapp "github.com/erp/customerdir/internal/application/customer"
	"github.com/erp/customerdir/internal/domain/customer"
	"github.com/erp/customerdir/internal/domain/shared"
	"github.com/erp/customerdir/internal/interfaces/http/dto"
	"github.com/erp/customerdir/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCustomerRepository implements customer.Repository for testing
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindAll(ctx context.Context) ([]customer.Customer, error) {
	args := m.Called(ctx)
	return args.Get(0).([]customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, id customer.ID) (*customer.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) ExistsByID(ctx context.Context, id customer.ID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCustomerRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockCustomerRepository) Save(ctx context.Context, c *customer.Customer) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCustomerRepository) Delete(ctx context.Context, id customer.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func setupCustomerRouter(repo *MockCustomerRepository) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	NewCustomerHandler(customerapp.NewService(repo, nil)).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func testCustomer(id customer.ID, name, email string) *customer.Customer {
	return &customer.Customer{ID: id, Name: name, Email: email, Age: 30, Gender: customer.GenderFemale}
}

func TestCustomerHandler_List(t *testing.T) {
	repo := new(MockCustomerRepository)
	repo.On("FindAll", mock.Anything).Return([]customer.Customer{
		*testCustomer(1, "Ada", "ada@example.com"),
		*testCustomer(2, "Grace", "grace@example.com"),
	}, nil)

	w := serve(setupCustomerRouter(repo), "GET", "/api/v1/customers", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"success":true`)
	assert.Less(t, strings.Index(body, "Ada"), strings.Index(body, "Grace"))
	repo.AssertExpectations(t)
}

func TestCustomerHandler_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("FindByID", mock.Anything, customer.ID(7)).Return(testCustomer(7, "Ada", "ada@example.com"), nil)

		w := serve(setupCustomerRouter(repo), "GET", "/api/v1/customers/7", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"id":7`)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("FindByID", mock.Anything, customer.ID(9)).Return(nil, shared.ErrNotFound)

		w := serve(setupCustomerRouter(repo), "GET", "/api/v1/customers/9", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "customer with id [9] not found", resp.Error.Message)
	})

	t.Run("invalid id", func(t *testing.T) {
		repo := new(MockCustomerRepository)

		w := serve(setupCustomerRouter(repo), "GET", "/api/v1/customers/abc", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}

func TestCustomerHandler_Create(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("ExistsByEmail", mock.Anything, "ada@example.com").Return(false, nil)
		repo.On("Save", mock.Anything, mock.AnythingOfType("*customer.Customer")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*customer.Customer).ID = 11
			}).
			Return(nil)

		w := serve(setupCustomerRouter(repo), "POST", "/api/v1/customers",
			`{"name":"Ada","email":"Ada@Example.com","age":36,"gender":"female"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"id":11`)
		assert.Contains(t, w.Body.String(), `"gender":"FEMALE"`)
		repo.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("ExistsByEmail", mock.Anything, "ada@example.com").Return(true, nil)

		w := serve(setupCustomerRouter(repo), "POST", "/api/v1/customers",
			`{"name":"Ada","email":"ada@example.com","age":36,"gender":"FEMALE"}`)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "email already taken")
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("validation details use json names", func(t *testing.T) {
		repo := new(MockCustomerRepository)

		w := serve(setupCustomerRouter(repo), "POST", "/api/v1/customers",
			`{"name":"","email":"not-an-email","age":200,"gender":"OTHER"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		fields := make([]string, 0, len(resp.Error.Details))
		for _, d := range resp.Error.Details {
			fields = append(fields, d.Field)
		}
		assert.ElementsMatch(t, []string{"name", "email", "age", "gender"}, fields)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := serve(setupCustomerRouter(new(MockCustomerRepository)), "POST", "/api/v1/customers", `{"name":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeInvalidJSON)
	})
}

func TestCustomerHandler_Update(t *testing.T) {
	t.Run("updated", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("FindByID", mock.Anything, customer.ID(3)).Return(testCustomer(3, "Ada", "ada@example.com"), nil)
		repo.On("Save", mock.Anything, mock.AnythingOfType("*customer.Customer")).Return(nil)

		w := serve(setupCustomerRouter(repo), "PUT", "/api/v1/customers/3", `{"age":37}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"age":37`)
		repo.AssertNotCalled(t, "ExistsByEmail", mock.Anything, mock.Anything)
	})

	t.Run("no changes", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("FindByID", mock.Anything, customer.ID(3)).Return(testCustomer(3, "Ada", "ada@example.com"), nil)

		w := serve(setupCustomerRouter(repo), "PUT", "/api/v1/customers/3", `{"name":"Ada"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "no data changes found")
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("email taken", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("FindByID", mock.Anything, customer.ID(3)).Return(testCustomer(3, "Ada", "ada@example.com"), nil)
		repo.On("ExistsByEmail", mock.Anything, "grace@example.com").Return(true, nil)

		w := serve(setupCustomerRouter(repo), "PUT", "/api/v1/customers/3", `{"email":"grace@example.com"}`)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestCustomerHandler_Delete(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("ExistsByID", mock.Anything, customer.ID(5)).Return(true, nil)
		repo.On("Delete", mock.Anything, customer.ID(5)).Return(nil)

		w := serve(setupCustomerRouter(repo), "DELETE", "/api/v1/customers/5", "")

		assert.Equal(t, http.StatusNoContent, w.Code)
		repo.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("ExistsByID", mock.Anything, customer.ID(5)).Return(false, nil)

		w := serve(setupCustomerRouter(repo), "DELETE", "/api/v1/customers/5", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "customer with id [5] not found")
	})
}
