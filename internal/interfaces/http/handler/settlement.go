package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/erp/settlement/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// SettlementHandler exposes the treasury records behind the session.
type SettlementHandler struct {
	BaseHandler
	proxy *appsettlement.ProxyService
}

// NewSettlementHandler creates a new settlement handler
func NewSettlementHandler(proxy *appsettlement.ProxyService) *SettlementHandler {
	return &SettlementHandler{proxy: proxy}
}

// list runs fetch with the session credential and renders the records.
func list[T any](h *SettlementHandler, c *gin.Context, fetch func(ctx context.Context, credential string) ([]T, error)) {
	cred, err := credential(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items, err := fetch(c.Request.Context(), cred)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(items))
}

// ListInvoices godoc
// @Summary      List invoices
// @Tags         invoices
// @Produce      json
// @Success      200 {object} APIResponse[[]settlement.Invoice]
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /api/invoices [get]
func (h *SettlementHandler) ListInvoices(c *gin.Context) {
	list(h, c, h.proxy.ListInvoices)
}

// ListOpenInvoices godoc
// @Summary      List open invoices
// @Description  Invoices with a balance above 0.01 in magnitude
// @Tags         invoices
// @Produce      json
// @Success      200 {object} APIResponse[[]settlement.Invoice]
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /api/invoices/open [get]
func (h *SettlementHandler) ListOpenInvoices(c *gin.Context) {
	list(h, c, h.proxy.ListOpenInvoices)
}

// ListUnpaidInvoices godoc
// @Summary      List unpaid invoices
// @Description  Always filters the full invoice list locally
// @Tags         invoices
// @Produce      json
// @Success      200 {object} APIResponse[[]settlement.Invoice]
// @Router       /api/invoices/unpaid [get]
func (h *SettlementHandler) ListUnpaidInvoices(c *gin.Context) {
	list(h, c, h.proxy.ListUnpaidInvoices)
}

// ListPayments godoc
// @Summary      List payments
// @Description  Falls back to payments derived from allocations when the server has no payment listing
// @Tags         payments
// @Produce      json
// @Success      200 {object} APIResponse[[]settlement.Payment]
// @Router       /api/payments [get]
func (h *SettlementHandler) ListPayments(c *gin.Context) {
	list(h, c, h.proxy.ListPayments)
}

// ListOpenPayments godoc
// @Summary      List open payments
// @Tags         payments
// @Produce      json
// @Success      200 {object} APIResponse[[]settlement.Payment]
// @Router       /api/payments/open [get]
func (h *SettlementHandler) ListOpenPayments(c *gin.Context) {
	list(h, c, h.proxy.ListOpenPayments)
}

// ListUnallocatedPayments godoc
// @Summary      List unallocated payments
// @Tags         payments
// @Produce      json
// @Success      200 {object} APIResponse[[]settlement.Payment]
// @Router       /api/payments/unallocated [get]
func (h *SettlementHandler) ListUnallocatedPayments(c *gin.Context) {
	list(h, c, h.proxy.ListUnallocatedPayments)
}

// ListAllocations godoc
// @Summary      List allocations
// @Tags         allocations
// @Produce      json
// @Success      200 {object} APIResponse[[]settlement.Allocation]
// @Router       /api/allocations [get]
func (h *SettlementHandler) ListAllocations(c *gin.Context) {
	list(h, c, h.proxy.ListAllocations)
}

// ListCounterparties godoc
// @Summary      List counterparties
// @Tags         reference
// @Produce      json
// @Success      200 {object} APIResponse[[]object]
// @Router       /api/counterparties [get]
func (h *SettlementHandler) ListCounterparties(c *gin.Context) {
	list(h, c, h.proxy.ListCounterparties)
}

// ListCompanies godoc
// @Summary      List companies
// @Tags         reference
// @Produce      json
// @Success      200 {object} APIResponse[[]object]
// @Router       /api/companies [get]
func (h *SettlementHandler) ListCompanies(c *gin.Context) {
	list(h, c, h.proxy.ListCompanies)
}

// CreateAllocation godoc
// @Summary      Create allocation
// @Description  Allocate an amount of a payment to an invoice
// @Tags         allocations
// @Accept       json
// @Produce      json
// @Param        request body CreateAllocationRequest true "Allocation"
// @Success      201 {object} APIResponse[object]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /api/allocations [post]
func (h *SettlementHandler) CreateAllocation(c *gin.Context) {
	var req CreateAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	cred, err := credential(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.proxy.CreateAllocation(c.Request.Context(), cred, appsettlement.CreateAllocationInput{
		InvoiceID: req.InvoiceID,
		PaymentID: req.PaymentID,
		Amount:    amountText(req.Amount),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// DeleteAllocation godoc
// @Summary      Delete allocation
// @Tags         allocations
// @Produce      json
// @Param        id path string true "Allocation ID"
// @Success      200 {object} APIResponse[object]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /api/allocations/{id} [delete]
func (h *SettlementHandler) DeleteAllocation(c *gin.Context) {
	cred, err := credential(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	result, err := h.proxy.DeleteAllocation(c.Request.Context(), cred, c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// amountText turns a JSON number or string into the text form the proxy
// validates. null and absent amounts become "".
func amountText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
