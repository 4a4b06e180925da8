package settlement

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/upstream"
)

const allInvoicesJSON = `[
	{"invoiceId":"I1","invoiceBalance":100,"counterpartyName":"Acme","invoiceCurrency":"USD"},
	{"invoiceId":"I2","invoiceBalance":0.005,"counterpartyName":"Acme","invoiceCurrency":"USD"},
	{"invoiceId":"I3","invoiceBalance":-250.5,"counterpartyName":"Globex","invoiceCurrency":"EUR"},
	null,
	{"invoiceId":"I4","invoiceBalance":0,"counterpartyName":"Globex","invoiceCurrency":"EUR"}
]`

func TestProxyService_ListOpenInvoices_UsesOptimizedEndpoint(t *testing.T) {
	ws := newFakeWebservice(t)
	ws.on(EndpointOpenInvoices, http.StatusOK, `[{"invoiceId":"I1","invoiceBalance":100}]`)

	invoices, err := ws.proxy().ListOpenInvoices(context.Background(), testCredential)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, []string{EndpointOpenInvoices}, ws.endpoints())
	assert.Equal(t, testCredential, ws.lastCall().auth)
}

func TestProxyService_ListOpenInvoices_FallsBackOnNotFound(t *testing.T) {
	ws := newFakeWebservice(t)
	ws.on(EndpointInvoices, http.StatusOK, allInvoicesJSON)

	invoices, err := ws.proxy().ListOpenInvoices(context.Background(), testCredential)
	require.NoError(t, err)

	assert.Equal(t, []string{EndpointOpenInvoices, EndpointInvoices}, ws.endpoints())
	require.Len(t, invoices, 2)
	assert.Equal(t, "I1", invoices[0].ID)
	assert.Equal(t, "I3", invoices[1].ID)
}

func TestProxyService_ListOpenInvoices_OtherErrorsPropagate(t *testing.T) {
	ws := newFakeWebservice(t)
	ws.on(EndpointOpenInvoices, http.StatusInternalServerError, `stack trace here`)
	ws.on(EndpointInvoices, http.StatusOK, allInvoicesJSON)

	_, err := ws.proxy().ListOpenInvoices(context.Background(), testCredential)
	require.Error(t, err)

	var de *settlement.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, settlement.CodeOperationFailed, de.Code)
	assert.Equal(t, "Failed to fetch invoices", de.Message)
	assert.Equal(t, []string{EndpointOpenInvoices}, ws.endpoints())
}

func TestProxyService_ListUnpaidInvoices_AlwaysFilters(t *testing.T) {
	ws := newFakeWebservice(t)
	ws.on(EndpointOpenInvoices, http.StatusOK, `[]`)
	ws.on(EndpointInvoices, http.StatusOK, allInvoicesJSON)

	invoices, err := ws.proxy().ListUnpaidInvoices(context.Background(), testCredential)
	require.NoError(t, err)
	assert.Len(t, invoices, 2)
	assert.Equal(t, []string{EndpointInvoices}, ws.endpoints())
}

func TestProxyService_ListOpenPayments_FallsBackAndFilters(t *testing.T) {
	ws := newFakeWebservice(t)
	ws.on(EndpointPayments, http.StatusOK, `[
		{"paymentId":"P1","amount":-50,"unallocatedAmount":-50},
		{"paymentId":"P2","amount":40,"unallocatedAmount":0.01},
		{"paymentId":"P3","amount":40,"unallocatedAmount":0}
	]`)

	payments, err := ws.proxy().ListOpenPayments(context.Background(), testCredential)
	require.NoError(t, err)
	assert.Equal(t, []string{EndpointOpenPayments, EndpointPayments}, ws.endpoints())
	require.Len(t, payments, 1)
	assert.Equal(t, "P1", payments[0].ID)
}

func TestProxyService_ListOpenPayments_DerivesWhenNoPaymentListing(t *testing.T) {
	ws := newFakeWebservice(t)
	ws.on(EndpointAllocations, http.StatusOK, `[
		{"allocationId":"A1","paymentId":"P1","paymentReference":"WIRE-1","paymentAmount":100}
	]`)

	payments, err := ws.proxy().ListOpenPayments(context.Background(), testCredential)
	require.NoError(t, err)
	assert.Equal(t, []string{EndpointOpenPayments, EndpointPayments, EndpointAllocations}, ws.endpoints())
	assert.Empty(t, payments, "derived payments have no known unallocated remainder")
}

func TestProxyService_ListOpenPayments_DerivationFailureIsOperationFailed(t *testing.T) {
	ws := newFakeWebservice(t)
	ws.on(EndpointAllocations, http.StatusInternalServerError, `boom`)

	_, err := ws.proxy().ListOpenPayments(context.Background(), testCredential)
	require.Error(t, err)
	var de *settlement.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, settlement.CodeOperationFailed, de.Code)
	assert.Equal(t, []string{EndpointOpenPayments, EndpointPayments, EndpointAllocations}, ws.endpoints())
}

func TestProxyService_ListPayments_DerivesFromAllocations(t *testing.T) {
	ws := newFakeWebservice(t)
	ws.on(EndpointAllocations, http.StatusOK, `[
		{"allocationId":"A1","paymentId":"P1","paymentReference":"WIRE-1","paymentAmount":100,"paymentCurrency":"USD","paymentIsIncoming":true},
		{"allocationId":"A2","paymentId":"P1","paymentReference":"WIRE-1"},
		{"allocationId":"A3","paymentId":"P2","currency":"EUR"},
		{"allocationId":"A4"}
	]`)

	payments, err := ws.proxy().ListPayments(context.Background(), testCredential)
	require.NoError(t, err)
	assert.Equal(t, []string{EndpointPayments, EndpointAllocations}, ws.endpoints())

	require.Len(t, payments, 2)
	assert.Equal(t, "P1", payments[0].ID)
	assert.Equal(t, "WIRE-1", payments[0].Reference)
	assert.True(t, payments[0].Derived)
	assert.True(t, payments[0].Unallocated.IsZero())
	assert.Equal(t, settlement.DirectionIncoming, payments[0].Direction)
	assert.Equal(t, "EUR", payments[1].Currency)
}

func TestProxyService_ListAllocations_SingleObjectIsWrapped(t *testing.T) {
	ws := newFakeWebservice(t)
	ws.on(EndpointAllocations, http.StatusOK, `{"allocationId":"A1","invoiceId":"I1","paymentId":"P1","amount":10}`)

	allocations, err := ws.proxy().ListAllocations(context.Background(), testCredential)
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	assert.Equal(t, "A1", allocations[0].ID)
}

func TestProxyService_ReferenceLists(t *testing.T) {
	ws := newFakeWebservice(t)
	ws.on(EndpointCounterparties, http.StatusOK, `[{"name":"Acme"},{"name":"Globex"}]`)
	ws.on(EndpointCompanies, http.StatusOK, `[{"name":"Us Ltd"}]`)
	proxy := ws.proxy()

	counterparties, err := proxy.ListCounterparties(context.Background(), testCredential)
	require.NoError(t, err)
	assert.Len(t, counterparties, 2)

	companies, err := proxy.ListCompanies(context.Background(), testCredential)
	require.NoError(t, err)
	assert.Len(t, companies, 1)
}

func TestProxyService_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   *settlement.DomainError
	}{
		{"credential rejected", http.StatusUnauthorized, settlement.ErrAuthenticationRequired},
		{"server error", http.StatusBadGateway, settlement.NewDomainError(settlement.CodeOperationFailed, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newFakeWebservice(t)
			ws.on(EndpointAllocations, tt.status, `oops`)

			_, err := ws.proxy().ListAllocations(context.Background(), testCredential)
			assert.ErrorIs(t, err, tt.want)

			var ue *upstream.Error
			assert.ErrorAs(t, err, &ue, "upstream detail stays attached for logging")
		})
	}
}

func TestProxyService_Unavailable(t *testing.T) {
	up := new(MockUpstream)
	up.On("GetList", mock.Anything, EndpointAllocations, testCredential).
		Return(nil, &upstream.Error{Endpoint: EndpointAllocations, Err: upstream.ErrUnavailable})

	_, err := NewProxyService(up, nil, zap.NewNop()).ListAllocations(context.Background(), testCredential)
	assert.ErrorIs(t, err, settlement.ErrUpstreamUnavailable)
}

func TestProxyService_CreateAllocation(t *testing.T) {
	ws := newFakeWebservice(t)
	ws.on(EndpointCreateAllocation, http.StatusOK, `{"success":true,"allocationId":"A9"}`)

	raw, err := ws.proxy().CreateAllocation(context.Background(), testCredential, CreateAllocationInput{
		InvoiceID: "I1",
		PaymentID: "P1",
		Amount:    "40.50",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"allocationId":"A9"}`, string(raw))

	call := ws.lastCall()
	assert.Equal(t, http.MethodPost, call.method)
	assert.JSONEq(t, `{"invoiceId":"I1","paymentId":"P1","amount":40.5}`, call.body)
}

func TestProxyService_CreateAllocation_ValidatesBeforeUpstream(t *testing.T) {
	tests := []struct {
		name  string
		input CreateAllocationInput
	}{
		{"missing invoice", CreateAllocationInput{PaymentID: "P1", Amount: "10"}},
		{"missing payment", CreateAllocationInput{InvoiceID: "I1", Amount: "10"}},
		{"blank amount", CreateAllocationInput{InvoiceID: "I1", PaymentID: "P1"}},
		{"zero amount", CreateAllocationInput{InvoiceID: "I1", PaymentID: "P1", Amount: "0"}},
		{"malformed amount", CreateAllocationInput{InvoiceID: "I1", PaymentID: "P1", Amount: "ten"}},
		{"whitespace ids", CreateAllocationInput{InvoiceID: "  ", PaymentID: "P1", Amount: "10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := new(MockUpstream)
			_, err := NewProxyService(up, nil, zap.NewNop()).CreateAllocation(context.Background(), testCredential, tt.input)
			assert.ErrorIs(t, err, settlement.ErrMissingAllocationInput)
			up.AssertNotCalled(t, "Post", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestProxyService_DeleteAllocation(t *testing.T) {
	ws := newFakeWebservice(t)
	ws.on(EndpointDeleteAllocation, http.StatusOK, `{"success":true}`)

	_, err := ws.proxy().DeleteAllocation(context.Background(), testCredential, "A1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"allocationId":"A1"}`, ws.lastCall().body)
}

func TestProxyService_DeleteNonexistentAllocation(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"error status", http.StatusInternalServerError, `Allocation not found`},
		{"not found status", http.StatusNotFound, `{}`},
		{"success false", http.StatusOK, `{"success":false,"error":"Allocation not found"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newFakeWebservice(t)
			ws.on(EndpointDeleteAllocation, tt.status, tt.body)
			ws.on(EndpointAllocations, http.StatusOK, `[{"allocationId":"A1"}]`)
			proxy := ws.proxy()

			_, err := proxy.DeleteAllocation(context.Background(), testCredential, "missing")
			require.Error(t, err)

			var de *settlement.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, settlement.CodeOperationFailed, de.Code)
			assert.Equal(t, "Failed to delete allocation", de.Message)

			allocations, err := proxy.ListAllocations(context.Background(), testCredential)
			require.NoError(t, err)
			assert.Len(t, allocations, 1)
		})
	}
}

func TestProxyService_DeleteAllocation_RequiresID(t *testing.T) {
	up := new(MockUpstream)
	_, err := NewProxyService(up, nil, zap.NewNop()).DeleteAllocation(context.Background(), testCredential, " ")
	assert.ErrorIs(t, err, settlement.ErrMissingAllocationID)
	up.AssertNotCalled(t, "Post", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestParseAmount(t *testing.T) {
	assert.False(t, ParseAmount("").Valid)
	assert.False(t, ParseAmount("abc").Valid)
	v := ParseAmount(" 12.5 ")
	require.True(t, v.Valid)
	assert.Equal(t, "12.5", v.Decimal.String())
}

func TestCheckWriteResult(t *testing.T) {
	assert.NoError(t, checkWriteResult("/x", nil))
	assert.NoError(t, checkWriteResult("/x", []byte(`[1]`)))
	assert.NoError(t, checkWriteResult("/x", []byte(`{"id":"A1"}`)))
	assert.NoError(t, checkWriteResult("/x", []byte(`{"success":true}`)))

	err := checkWriteResult("/x", []byte(`{"success":false,"message":"nope"}`))
	require.Error(t, err)
	var ue *upstream.Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "nope", ue.Body)
}
