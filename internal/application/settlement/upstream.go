package settlement

import (
	"context"
	"encoding/json"
	"time"
)

// Webservice endpoints.
const (
	EndpointInvoices         = "/getInvoices"
	EndpointOpenInvoices     = "/getOpenInvoices"
	EndpointPayments         = "/getPayments"
	EndpointOpenPayments     = "/getOpenPayments"
	EndpointAllocations      = "/getMoneyAllocation"
	EndpointCreateAllocation = "/createAllocation"
	EndpointDeleteAllocation = "/deleteAllocation"
	EndpointCounterparties   = "/getCounterparties"
	EndpointCompanies        = "/getCompanies"
)

// Upstream is the webservice client used by the services.
// It is satisfied by *upstream.Client.
type Upstream interface {
	GetWithTimeout(ctx context.Context, endpoint, credential string, timeout time.Duration) (json.RawMessage, error)
	GetList(ctx context.Context, endpoint, credential string) ([]json.RawMessage, error)
	Post(ctx context.Context, endpoint, credential string, payload any) (json.RawMessage, error)
}
