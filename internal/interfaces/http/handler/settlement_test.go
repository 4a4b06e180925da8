package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/interfaces/http/dto"
)

const (
	invoicesBody = `[{"invoiceId":"I1","invoiceBalance":100,"invoiceCurrency":"USD"},
	                 {"invoiceId":"I2","invoiceBalance":0,"invoiceCurrency":"USD"},
	                 {"invoiceId":"I3","invoiceBalance":-0.005,"invoiceCurrency":"USD"}]`
	paymentsBody = `[{"paymentId":"P1","amount":40,"unallocatedAmount":40},
	                 {"paymentId":"P2","amount":10,"unallocatedAmount":0}]`
)

func TestSettlementHandler_RequiresSession(t *testing.T) {
	app := newTestApp(t, appOptions{})

	for _, path := range []string{"/api/invoices", "/api/payments/open", "/api/allocations", "/api/companies"} {
		w := app.do(http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	assert.Empty(t, app.ws.calls)
}

func TestSettlementHandler_ListInvoices(t *testing.T) {
	app := newTestApp(t, appOptions{})
	app.ws.on("/getInvoices", http.StatusOK, invoicesBody)
	cookie := app.login(t)

	w := app.do(http.MethodGet, "/api/invoices", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var invoices []settlement.Invoice
	resp := decodeData(t, w, &invoices)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 3, resp.Meta.Total)
	assert.Len(t, invoices, 3)
}

func TestSettlementHandler_ListOpenInvoices_Fallback(t *testing.T) {
	app := newTestApp(t, appOptions{})
	app.ws.on("/getInvoices", http.StatusOK, invoicesBody)
	cookie := app.login(t)

	w := app.do(http.MethodGet, "/api/invoices/open", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var invoices []settlement.Invoice
	decodeData(t, w, &invoices)
	require.Len(t, invoices, 1)
	assert.Equal(t, "I1", invoices[0].ID)
	assert.Equal(t, 1, app.ws.called("/getOpenInvoices"))
	assert.Equal(t, 1, app.ws.called("/getInvoices"))
}

func TestSettlementHandler_ListUnpaidInvoices(t *testing.T) {
	app := newTestApp(t, appOptions{})
	app.ws.on("/getOpenInvoices", http.StatusOK, `[]`)
	app.ws.on("/getInvoices", http.StatusOK, invoicesBody)
	cookie := app.login(t)

	w := app.do(http.MethodGet, "/api/invoices/unpaid", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var invoices []settlement.Invoice
	decodeData(t, w, &invoices)
	assert.Len(t, invoices, 1)
	assert.Zero(t, app.ws.called("/getOpenInvoices"))
}

func TestSettlementHandler_ListPayments(t *testing.T) {
	t.Run("open payments from dedicated endpoint", func(t *testing.T) {
		app := newTestApp(t, appOptions{})
		app.ws.on("/getOpenPayments", http.StatusOK, `[{"paymentId":"P9","unallocatedAmount":5}]`)
		cookie := app.login(t)

		w := app.do(http.MethodGet, "/api/payments/open", nil, cookie)
		require.Equal(t, http.StatusOK, w.Code)

		var payments []settlement.Payment
		decodeData(t, w, &payments)
		require.Len(t, payments, 1)
		assert.Equal(t, "P9", payments[0].ID)
	})

	t.Run("unallocated filters full list", func(t *testing.T) {
		app := newTestApp(t, appOptions{})
		app.ws.on("/getPayments", http.StatusOK, paymentsBody)
		cookie := app.login(t)

		w := app.do(http.MethodGet, "/api/payments/unallocated", nil, cookie)
		require.Equal(t, http.StatusOK, w.Code)

		var payments []settlement.Payment
		decodeData(t, w, &payments)
		require.Len(t, payments, 1)
		assert.Equal(t, "P1", payments[0].ID)
	})

	t.Run("derived from allocations without payment listing", func(t *testing.T) {
		app := newTestApp(t, appOptions{})
		app.ws.on("/getMoneyAllocation", http.StatusOK,
			`[{"allocationId":"A1","paymentId":"P1","amount":5},{"allocationId":"A2","paymentId":"P1","amount":7}]`)
		cookie := app.login(t)

		w := app.do(http.MethodGet, "/api/payments", nil, cookie)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var payments []settlement.Payment
		decodeData(t, w, &payments)
		require.Len(t, payments, 1)
		assert.True(t, payments[0].Derived)
	})
}

func TestSettlementHandler_ReferenceLists(t *testing.T) {
	app := newTestApp(t, appOptions{})
	app.ws.on("/getCounterparties", http.StatusOK, `[{"id":1,"name":"Acme"}]`)
	app.ws.on("/getCompanies", http.StatusOK, `{"id":2,"name":"Holding"}`)
	cookie := app.login(t)

	w := app.do(http.MethodGet, "/api/counterparties", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var counterparties []map[string]any
	decodeData(t, w, &counterparties)
	require.Len(t, counterparties, 1)
	assert.Equal(t, "Acme", counterparties[0]["name"])

	w = app.do(http.MethodGet, "/api/companies", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var companies []map[string]any
	decodeData(t, w, &companies)
	assert.Len(t, companies, 1, "single object is wrapped")
}

func TestSettlementHandler_UpstreamFailure(t *testing.T) {
	t.Run("server error hides upstream detail", func(t *testing.T) {
		app := newTestApp(t, appOptions{})
		app.ws.on("/getMoneyAllocation", http.StatusInternalServerError, `stack trace at line 42`)
		cookie := app.login(t)

		w := app.do(http.MethodGet, "/api/allocations", nil, cookie)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decode(t, w)
		assert.Equal(t, dto.ErrCodeOperationFailed, resp.Error.Code)
		assert.Equal(t, "Failed to fetch allocations", resp.Error.Message)
		assert.NotContains(t, w.Body.String(), "stack trace")
	})

	t.Run("revoked credential", func(t *testing.T) {
		app := newTestApp(t, appOptions{})
		app.ws.on("/getInvoices", http.StatusUnauthorized, ``)
		cookie := app.login(t)

		w := app.do(http.MethodGet, "/api/invoices", nil, cookie)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeUnauthorized, decode(t, w).Error.Code)
	})
}

func TestSettlementHandler_CreateAllocation(t *testing.T) {
	t.Run("numeric amount", func(t *testing.T) {
		app := newTestApp(t, appOptions{})
		app.ws.on("/createAllocation", http.StatusOK, `{"success":true,"allocationId":"A9"}`)
		cookie := app.login(t)

		w := app.do(http.MethodPost, "/api/allocations",
			`{"invoiceId":"I1","paymentId":"P1","amount":25.5}`, cookie)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var sent map[string]any
		require.NoError(t, json.Unmarshal([]byte(app.ws.body("/createAllocation")), &sent))
		assert.Equal(t, "I1", sent["invoiceId"])
		assert.Equal(t, "P1", sent["paymentId"])
		assert.Equal(t, 25.5, sent["amount"])

		var result map[string]any
		decodeData(t, w, &result)
		assert.Equal(t, "A9", result["allocationId"])
	})

	t.Run("string amount", func(t *testing.T) {
		app := newTestApp(t, appOptions{})
		app.ws.on("/createAllocation", http.StatusOK, `{"success":true}`)
		cookie := app.login(t)

		w := app.do(http.MethodPost, "/api/allocations",
			`{"invoiceId":"I1","paymentId":"P1","amount":"10"}`, cookie)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("invalid input is rejected locally", func(t *testing.T) {
		app := newTestApp(t, appOptions{})
		cookie := app.login(t)

		for _, body := range []string{
			`{"paymentId":"P1","amount":10}`,
			`{"invoiceId":"I1","amount":10}`,
			`{"invoiceId":"I1","paymentId":"P1"}`,
			`{"invoiceId":"I1","paymentId":"P1","amount":0}`,
			`{"invoiceId":"I1","paymentId":"P1","amount":"abc"}`,
		} {
			w := app.do(http.MethodPost, "/api/allocations", body, cookie)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
			assert.Equal(t, dto.ErrCodeValidation, decode(t, w).Error.Code, body)
		}
		assert.Zero(t, app.ws.called("/createAllocation"))
	})

	t.Run("upstream reports failure", func(t *testing.T) {
		app := newTestApp(t, appOptions{})
		app.ws.on("/createAllocation", http.StatusOK, `{"success":false,"error":"locked"}`)
		cookie := app.login(t)

		w := app.do(http.MethodPost, "/api/allocations",
			`{"invoiceId":"I1","paymentId":"P1","amount":10}`, cookie)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Failed to create allocation", decode(t, w).Error.Message)
	})

	t.Run("editing disabled", func(t *testing.T) {
		app := newTestApp(t, appOptions{editDisabled: true})
		cookie := app.login(t)

		w := app.do(http.MethodPost, "/api/allocations",
			`{"invoiceId":"I1","paymentId":"P1","amount":10}`, cookie)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, dto.ErrCodeForbidden, decode(t, w).Error.Code)
		assert.Zero(t, app.ws.called("/createAllocation"))
	})
}

func TestSettlementHandler_DeleteAllocation(t *testing.T) {
	t.Run("deletes by id", func(t *testing.T) {
		app := newTestApp(t, appOptions{})
		app.ws.on("/deleteAllocation", http.StatusOK, `{"success":true}`)
		cookie := app.login(t)

		w := app.do(http.MethodDelete, "/api/allocations/A7", nil, cookie)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var sent map[string]any
		require.NoError(t, json.Unmarshal([]byte(app.ws.body("/deleteAllocation")), &sent))
		assert.Equal(t, "A7", sent["allocationId"])
	})

	t.Run("blank id", func(t *testing.T) {
		app := newTestApp(t, appOptions{})
		cookie := app.login(t)

		w := app.do(http.MethodDelete, "/api/allocations/%20", nil, cookie)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, app.ws.called("/deleteAllocation"))
	})

	t.Run("editing disabled", func(t *testing.T) {
		app := newTestApp(t, appOptions{editDisabled: true})
		cookie := app.login(t)

		w := app.do(http.MethodDelete, "/api/allocations/A7", nil, cookie)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestAmountText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"null", ""},
		{"12.5", "12.5"},
		{`"12.5"`, "12.5"},
		{` 7 `, "7"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, amountText(json.RawMessage(tt.raw)), tt.raw)
	}
}
