package handler

import (
	customerapp "github.com/erp/customerdir/internal/application/customer"
	"github.com/erp/customerdir/internal/domain/customer"
	"github.com/gin-gonic/gin"
)

// CustomerHandler handles the customer directory endpoints
type CustomerHandler struct {
	BaseHandler
	customerService *customerapp.Service
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(customerService *customerapp.Service) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
	}
}

// RegisterRoutes mounts the handler under /customers
func (h *CustomerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	customers := rg.Group("/customers")
	customers.GET("", h.List)
	customers.GET("/:id", h.Get)
	customers.POST("", h.Create)
	customers.PUT("/:id", h.Update)
	customers.DELETE("/:id", h.Delete)
}

// List returns every customer ordered by id
func (h *CustomerHandler) List(c *gin.Context) {
	customers, err := h.customerService.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, customers)
}

// Get returns one customer
func (h *CustomerHandler) Get(c *gin.Context) {
	id, err := customer.ParseID(c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp, err := h.customerService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Create registers a new customer
func (h *CustomerHandler) Create(c *gin.Context) {
	var req customerapp.RegisterRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.customerService.Register(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// Update changes the fields present in the request body
func (h *CustomerHandler) Update(c *gin.Context) {
	id, err := customer.ParseID(c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req customerapp.UpdateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.customerService.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Delete removes a customer
func (h *CustomerHandler) Delete(c *gin.Context) {
	id, err := customer.ParseID(c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := h.customerService.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
