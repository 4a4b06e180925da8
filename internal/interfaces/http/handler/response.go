package handler

import (
	"encoding/json"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/interfaces/http/dto"
)

// APIResponse represents a generic API response for OpenAPI documentation
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse represents an error API response for OpenAPI documentation
// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// UserResponse is the authenticated user
type UserResponse struct {
	Username string `json:"username" example:"treasury"`
}

// LoginRequest represents the request body for user login
type LoginRequest struct {
	Username string `json:"username" binding:"notblank,max=200"`
	Password string `json:"password" binding:"required,max=512"`
}

// CreateAllocationRequest is the body of POST /api/allocations. amount may
// be a JSON number or a numeric string.
type CreateAllocationRequest struct {
	InvoiceID string          `json:"invoiceId"`
	PaymentID string          `json:"paymentId"`
	Amount    json.RawMessage `json:"amount" swaggertype:"number"`
}

// ViewRequest is the body of POST /api/dashboard/view
type ViewRequest struct {
	State      settlement.ViewState `json:"state"`
	ToggleSort *SortToggleRequest   `json:"toggleSort,omitempty"`
}

// SortToggleRequest is a click on a sortable column header
type SortToggleRequest struct {
	Table  settlement.Table `json:"table" binding:"required,oneof=invoices payments allocations"`
	Column string           `json:"column" binding:"required"`
}

// AllocateRequest is the body of POST /api/dashboard/allocate
type AllocateRequest struct {
	State settlement.ViewState `json:"state"`
}

// AllocateResponse reports one allocation attempt. View is present only when
// the allocation was created and the dashboard reloaded.
type AllocateResponse struct {
	Phase   settlement.Phase   `json:"phase"`
	History []settlement.Phase `json:"history"`
	Amount  string             `json:"amount,omitempty"`
	Error   *dto.ErrorInfo     `json:"error,omitempty"`
	View    *settlement.View   `json:"view,omitempty"`
}
