package settlement

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultViewState(t *testing.T) {
	v := DefaultViewState()
	assert.Equal(t, StatusOpen, v.Filter.Status)
	assert.Equal(t, SortState{"dueDate", SortAsc}, v.InvoiceSort)
	assert.Equal(t, SortState{"valueDate", SortAsc}, v.PaymentSort)
	assert.Equal(t, SortState{"date", SortDesc}, v.AllocationSort)
	assert.Equal(t, PhaseNoSelection, v.Selection.Phase())
}

func TestViewStateWithDefaults(t *testing.T) {
	v := ViewState{PaymentSort: SortState{Column: "amount"}}.WithDefaults()
	assert.Equal(t, StatusOpen, v.Filter.Status)
	assert.Equal(t, DefaultInvoiceSort, v.InvoiceSort)
	assert.Equal(t, SortState{"amount", SortAsc}, v.PaymentSort)
	assert.Equal(t, DefaultAllocationSort, v.AllocationSort)
}

func TestViewStateRoundTripsThroughJSON(t *testing.T) {
	v := DefaultViewState()
	v.Filter.Counterparty = "Acme"
	v.Selection = Selection{InvoiceID: "I", PaymentID: "P"}
	v.Amount = "12.50"

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var decoded ViewState
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, v, decoded)
}

func TestViewStateToggleSort(t *testing.T) {
	v := DefaultViewState()

	v, err := v.ToggleSort(TableInvoices, "dueDate")
	require.NoError(t, err)
	assert.Equal(t, SortDesc, v.InvoiceSort.Direction)
	assert.Equal(t, DefaultPaymentSort, v.PaymentSort)

	v, err = v.ToggleSort(TablePayments, "amount")
	require.NoError(t, err)
	assert.Equal(t, SortState{"amount", SortAsc}, v.SortFor(TablePayments))

	_, err = v.ToggleSort(TableAllocations, "dueDate")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestViewStateValidate(t *testing.T) {
	require.NoError(t, DefaultViewState().Validate())
	require.NoError(t, ViewState{}.Validate())

	v := DefaultViewState()
	v.InvoiceSort.Column = "valueDate"
	assert.ErrorIs(t, v.Validate(), ErrValidation)

	v = DefaultViewState()
	v.AllocationSort.Direction = "sideways"
	assert.ErrorIs(t, v.Validate(), ErrValidation)
}

func TestViewStateClearSelection(t *testing.T) {
	v := DefaultViewState()
	v.Selection = Selection{InvoiceID: "I", PaymentID: "P"}
	v.Amount = "5"
	v.Filter.Currency = "USD"

	cleared := v.ClearSelection()
	assert.Equal(t, Selection{}, cleared.Selection)
	assert.Empty(t, cleared.Amount)
	assert.Equal(t, "USD", cleared.Filter.Currency)
}
