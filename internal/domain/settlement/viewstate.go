package settlement

import "fmt"

// Default table sorts.
var (
	DefaultInvoiceSort    = SortState{Column: "dueDate", Direction: SortAsc}
	DefaultPaymentSort    = SortState{Column: "valueDate", Direction: SortAsc}
	DefaultAllocationSort = SortState{Column: "date", Direction: SortDesc}
)

// Selection holds the invoice and payment picked for a pairing.
type Selection struct {
	InvoiceID string `json:"invoiceId"`
	PaymentID string `json:"paymentId"`
}

// ViewState is the complete, serializable state of one dashboard view: the
// filters, the three table sorts, the current selection and the amount the
// user typed. Every view is a pure function of a ViewState and a Dataset.
type ViewState struct {
	Filter         FilterState `json:"filter"`
	InvoiceSort    SortState   `json:"invoiceSort"`
	PaymentSort    SortState   `json:"paymentSort"`
	AllocationSort SortState   `json:"allocationSort"`
	Selection      Selection   `json:"selection"`
	Amount         string      `json:"amount"`
}

// DefaultViewState is the state of a freshly loaded dashboard.
func DefaultViewState() ViewState {
	return ViewState{
		Filter:         FilterState{Status: StatusOpen},
		InvoiceSort:    DefaultInvoiceSort,
		PaymentSort:    DefaultPaymentSort,
		AllocationSort: DefaultAllocationSort,
	}
}

// WithDefaults fills blank fields from DefaultViewState.
func (v ViewState) WithDefaults() ViewState {
	if v.Filter.Status == "" {
		v.Filter.Status = StatusOpen
	}
	v.InvoiceSort = sortOrDefault(v.InvoiceSort, DefaultInvoiceSort)
	v.PaymentSort = sortOrDefault(v.PaymentSort, DefaultPaymentSort)
	v.AllocationSort = sortOrDefault(v.AllocationSort, DefaultAllocationSort)
	return v
}

func sortOrDefault(s, def SortState) SortState {
	if s.Column == "" {
		return def
	}
	if s.Direction == "" {
		s.Direction = SortAsc
	}
	return s
}

// Validate checks filters, sort columns and directions.
func (v ViewState) Validate() error {
	if err := v.Filter.Validate(); err != nil {
		return err
	}
	sorts := []struct {
		table Table
		state SortState
	}{
		{TableInvoices, v.InvoiceSort},
		{TablePayments, v.PaymentSort},
		{TableAllocations, v.AllocationSort},
	}
	for _, s := range sorts {
		if s.state.Column != "" && !IsSortable(s.table, s.state.Column) {
			return ValidationError(fmt.Sprintf("cannot sort %s by %q", s.table, s.state.Column))
		}
		switch s.state.Direction {
		case "", SortAsc, SortDesc:
		default:
			return ValidationError(fmt.Sprintf("invalid sort direction %q", s.state.Direction))
		}
	}
	return nil
}

// SortFor returns the sort state of table.
func (v ViewState) SortFor(table Table) SortState {
	switch table {
	case TablePayments:
		return v.PaymentSort
	case TableAllocations:
		return v.AllocationSort
	default:
		return v.InvoiceSort
	}
}

// ToggleSort applies a header click on column of table.
func (v ViewState) ToggleSort(table Table, column string) (ViewState, error) {
	if !IsSortable(table, column) {
		return v, ValidationError(fmt.Sprintf("cannot sort %s by %q", table, column))
	}
	switch table {
	case TableInvoices:
		v.InvoiceSort = v.InvoiceSort.Toggle(column)
	case TablePayments:
		v.PaymentSort = v.PaymentSort.Toggle(column)
	case TableAllocations:
		v.AllocationSort = v.AllocationSort.Toggle(column)
	}
	return v, nil
}

// ClearSelection drops both selections and the typed amount, as after a
// successful allocation.
func (v ViewState) ClearSelection() ViewState {
	v.Selection = Selection{}
	v.Amount = ""
	return v
}
