package settlement

import (
	"github.com/erp/settlement/internal/domain/settlement"
)

// LoginInput contains the input for user login
type LoginInput struct {
	Username string
	Password string
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	Token    string // signed session cookie value
	Username string
}

// CreateAllocationInput contains the input for creating an allocation.
// Amount is kept as the caller's text so that zero, blank and malformed
// amounts are all rejected the same way.
type CreateAllocationInput struct {
	InvoiceID string
	PaymentID string
	Amount    string
}

// SortToggle is a header click on a table column.
type SortToggle struct {
	Table  settlement.Table
	Column string
}

// ViewInput asks for a rendered dashboard.
type ViewInput struct {
	State      settlement.ViewState
	ToggleSort *SortToggle
}

// AllocateResult is the outcome of a dashboard allocation attempt. View is
// set only when the allocation was created and the data reloaded.
type AllocateResult struct {
	Pairing *settlement.Pairing
	View    *settlement.View
}

// ClientConfig is what the browser needs before login.
type ClientConfig struct {
	PortalURL   string `json:"portalUrl"`
	EditEnabled bool   `json:"editEnabled"`
}
