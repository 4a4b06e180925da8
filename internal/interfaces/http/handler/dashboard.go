package handler

import (
	"errors"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/erp/settlement/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// DashboardHandler renders the settlement dashboard and runs the pairing
// workflow.
type DashboardHandler struct {
	BaseHandler
	dashboard *appsettlement.DashboardService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboard *appsettlement.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// View godoc
// @Summary      Render dashboard
// @Description  Load open invoices, open payments and allocations, then filter, sort and render them for the given view state
// @Tags         dashboard
// @Accept       json
// @Produce      json
// @Param        request body ViewRequest false "View state"
// @Success      200 {object} APIResponse[settlement.View]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /api/dashboard/view [post]
func (h *DashboardHandler) View(c *gin.Context) {
	var req ViewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}
	cred, err := credential(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	input := appsettlement.ViewInput{State: req.State}
	if req.ToggleSort != nil {
		input.ToggleSort = &appsettlement.SortToggle{Table: req.ToggleSort.Table, Column: req.ToggleSort.Column}
	}
	view, err := h.dashboard.LoadView(c.Request.Context(), cred, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Allocate godoc
// @Summary      Allocate selection
// @Description  Pair the selected invoice and payment. Rejected pairings never reach the treasury server.
// @Tags         dashboard
// @Accept       json
// @Produce      json
// @Param        request body AllocateRequest true "View state with selection"
// @Success      200 {object} APIResponse[AllocateResponse]
// @Failure      400 {object} APIResponse[AllocateResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} APIResponse[AllocateResponse]
// @Failure      500 {object} APIResponse[AllocateResponse]
// @Router       /api/dashboard/allocate [post]
func (h *DashboardHandler) Allocate(c *gin.Context) {
	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	cred, err := credential(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.dashboard.Allocate(c.Request.Context(), cred, req.State)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	p := result.Pairing
	resp := AllocateResponse{Phase: p.Phase, History: p.History, View: result.View}
	if !p.Amount.IsZero() {
		resp.Amount = settlement.FormatAmount(p.Amount)
	}
	if p.Phase != settlement.PhaseFailed {
		h.Success(c, resp)
		return
	}

	code, message := dto.ErrCodeOperationFailed, "Allocation failed"
	var domainErr *settlement.DomainError
	if errors.As(p.Err, &domainErr) {
		code, message = dto.NormalizeErrorCode(domainErr.Code), domainErr.Message
	}
	if p.Err != nil {
		_ = c.Error(p.Err)
	}
	resp.Error = &dto.ErrorInfo{Code: code, Message: message, RequestID: getRequestID(c)}
	c.JSON(dto.GetHTTPStatus(code), dto.Response{Success: false, Data: resp, Error: resp.Error})
}
