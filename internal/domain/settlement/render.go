package settlement

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	placeholder   = "-"
	displayLayout = "02 Jan 2006"

	classPositive = "amount-positive"
	classNegative = "amount-negative"
)

// InvoiceRow is one rendered line of the invoices table.
type InvoiceRow struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Reference      string    `json:"reference"`
	Counterparty   string    `json:"counterparty"`
	Strategy       string    `json:"strategy"`
	Tanker         string    `json:"tanker"`
	ItemType       string    `json:"itemType"`
	Amount         string    `json:"amount"`
	Balance        string    `json:"balance"`
	BalanceClass   string    `json:"balanceClass"`
	Currency       string    `json:"currency"`
	IssueDate      string    `json:"issueDate"`
	DueDate        string    `json:"dueDate"`
	Bank           string    `json:"bank"`
	Direction      Direction `json:"direction"`
	DirectionClass string    `json:"directionClass"`
	Selected       bool      `json:"selected"`
}

// PaymentRow is one rendered line of the payments table.
type PaymentRow struct {
	ID               string    `json:"id"`
	Reference        string    `json:"reference"`
	Counterparty     string    `json:"counterparty"`
	Amount           string    `json:"amount"`
	Unallocated      string    `json:"unallocated"`
	UnallocatedClass string    `json:"unallocatedClass"`
	Currency         string    `json:"currency"`
	ExchangeRate     string    `json:"exchangeRate"`
	ValueDate        string    `json:"valueDate"`
	BankAccount      string    `json:"bankAccount"`
	Strategy         string    `json:"strategy"`
	Direction        Direction `json:"direction"`
	DirectionClass   string    `json:"directionClass"`
	Selected         bool      `json:"selected"`
	Derived          bool      `json:"derived,omitempty"`
}

// AllocationRow is one rendered line of the recent allocations table.
type AllocationRow struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	InvoiceRef   string `json:"invoiceRef"`
	PaymentRef   string `json:"paymentRef"`
	Counterparty string `json:"counterparty"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Date         string `json:"date"`
	State        string `json:"state"`
	Deletable    bool   `json:"deletable"`
}

// Summary describes the current selection.
type Summary struct {
	SelectedInvoices      int    `json:"selectedInvoices"`
	SelectedInvoiceAmount string `json:"selectedInvoiceAmount"`
	SelectedPayments      int    `json:"selectedPayments"`
	SelectedPaymentAmount string `json:"selectedPaymentAmount"`
	Phase                 Phase  `json:"phase"`
	CanCreate             bool   `json:"canCreate"`
}

// Dataset is one load of the three upstream lists.
type Dataset struct {
	Invoices    []Invoice
	Payments    []Payment
	Allocations []Allocation
}

// ViewOptions carries deployment settings that shape a view.
type ViewOptions struct {
	AllocationLimit int
	EditEnabled     bool
}

// View is a rendered dashboard.
type View struct {
	State                  ViewState       `json:"state"`
	Invoices               []InvoiceRow    `json:"invoices"`
	Payments               []PaymentRow    `json:"payments"`
	Allocations            []AllocationRow `json:"allocations"`
	InvoiceCount           int             `json:"invoiceCount"`
	PaymentCount           int             `json:"paymentCount"`
	AllocationCount        int             `json:"allocationCount"`
	Counterparties         []string        `json:"counterparties"`
	Currencies             []string        `json:"currencies"`
	HideCounterpartyColumn bool            `json:"hideCounterpartyColumn"`
	Summary                Summary         `json:"summary"`
}

// formatter renders amounts with thousands separators and two decimals.
type formatter struct {
	printer *message.Printer
}

func newFormatter() formatter {
	return formatter{printer: message.NewPrinter(language.English)}
}

// amount formats the exact decimal text rather than a float64, so amounts
// beyond 2^53 keep every digit.
func (f formatter) amount(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		return sign + f.printer.Sprintf("%d", n) + "." + frac
	}
	return sign + groupDigits(whole) + "." + frac
}

// groupDigits inserts a comma every three digits of an unsigned integer
// too large for int64.
func groupDigits(digits string) string {
	var b strings.Builder
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func (f formatter) nullAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return placeholder
	}
	return f.amount(d.Decimal)
}

// FormatAmount renders d as 1,234.56.
func FormatAmount(d decimal.Decimal) string {
	return newFormatter().amount(d)
}

// FormatDate renders t as 02 Jan 2006, or a dash when missing.
func FormatDate(t *time.Time) string {
	if t == nil {
		return placeholder
	}
	return t.Format(displayLayout)
}

func orDash(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func signClass(d decimal.Decimal) string {
	if d.IsNegative() {
		return classNegative
	}
	return classPositive
}

func directionClass(d Direction) string {
	if d.IsIncoming() {
		return "direction-in"
	}
	return "direction-out"
}

func (f formatter) invoiceRow(inv Invoice, selected string) InvoiceRow {
	return InvoiceRow{
		ID:             inv.ID,
		Name:           orDash(inv.Name),
		Reference:      orDash(inv.Reference),
		Counterparty:   orDash(inv.CounterpartyName),
		Strategy:       orDash(inv.StrategyName),
		Tanker:         orDash(inv.TankerName),
		ItemType:       orDash(inv.ItemType),
		Amount:         f.nullAmount(inv.Amount),
		Balance:        f.amount(inv.Balance),
		BalanceClass:   signClass(inv.Balance),
		Currency:       orDash(inv.Currency),
		IssueDate:      FormatDate(inv.IssueDate),
		DueDate:        FormatDate(inv.DueDate),
		Bank:           orDash(inv.BankName),
		Direction:      directionOf(inv.Direction.IsIncoming()),
		DirectionClass: directionClass(inv.Direction),
		Selected:       inv.ID != "" && inv.ID == selected,
	}
}

func (f formatter) paymentRow(p Payment, selected string) PaymentRow {
	rate := placeholder
	if p.ExchangeRate.Valid && !p.ExchangeRate.Decimal.IsZero() {
		rate = f.amount(p.ExchangeRate.Decimal)
	}
	return PaymentRow{
		ID:               p.ID,
		Reference:        orDash(p.DisplayReference()),
		Counterparty:     orDash(p.CounterpartyName),
		Amount:           f.nullAmount(p.Amount),
		Unallocated:      f.amount(p.Unallocated),
		UnallocatedClass: signClass(p.Unallocated),
		Currency:         orDash(p.Currency),
		ExchangeRate:     rate,
		ValueDate:        FormatDate(p.ValueDate),
		BankAccount:      orDash(p.BankAccount),
		Strategy:         orDash(p.StrategyName),
		Direction:        directionOf(p.Direction.IsIncoming()),
		DirectionClass:   directionClass(p.Direction),
		Selected:         p.ID != "" && p.ID == selected,
		Derived:          p.Derived,
	}
}

func (f formatter) allocationRow(a Allocation, editEnabled bool) AllocationRow {
	return AllocationRow{
		ID:           a.ID,
		Name:         orDash(a.Name),
		InvoiceRef:   orDash(a.InvoiceRef),
		PaymentRef:   orDash(a.PaymentRef),
		Counterparty: orDash(a.Counterparty),
		Amount:       f.nullAmount(a.Amount),
		Currency:     orDash(a.Currency),
		Date:         FormatDate(a.Date),
		State:        orDash(a.State),
		Deletable:    editEnabled && a.ID != "",
	}
}

// summarize looks the selection up in the full dataset, not only the
// visible rows, so a selection survives a filter change.
func (f formatter) summarize(state ViewState, data Dataset, editEnabled bool) Summary {
	s := Summary{
		SelectedInvoiceAmount: f.amount(decimal.Zero),
		SelectedPaymentAmount: f.amount(decimal.Zero),
		Phase:                 state.Selection.Phase(),
	}
	if state.Selection.InvoiceID != "" {
		s.SelectedInvoices = 1
		for _, inv := range data.Invoices {
			if inv.ID == state.Selection.InvoiceID {
				s.SelectedInvoiceAmount = f.amount(inv.Balance.Abs())
				break
			}
		}
	}
	if state.Selection.PaymentID != "" {
		s.SelectedPayments = 1
		for _, p := range data.Payments {
			if p.ID == state.Selection.PaymentID {
				s.SelectedPaymentAmount = f.amount(p.Unallocated.Abs())
				break
			}
		}
	}
	s.CanCreate = editEnabled && s.Phase == PhaseBothSelected
	return s
}

// BuildView filters, sorts and renders data according to state.
func BuildView(state ViewState, data Dataset, opts ViewOptions) View {
	state = state.WithDefaults()
	f := newFormatter()

	invoices := SortInvoices(FilterInvoices(data.Invoices, state.Filter), state.InvoiceSort)
	payments := SortPayments(FilterPayments(data.Payments, state.Filter), state.PaymentSort)
	allocations := SortAllocations(data.Allocations, state.AllocationSort)
	if opts.AllocationLimit > 0 && len(allocations) > opts.AllocationLimit {
		allocations = allocations[:opts.AllocationLimit]
	}

	v := View{
		State:                  state,
		Invoices:               make([]InvoiceRow, 0, len(invoices)),
		Payments:               make([]PaymentRow, 0, len(payments)),
		Allocations:            make([]AllocationRow, 0, len(allocations)),
		InvoiceCount:           len(invoices),
		PaymentCount:           len(payments),
		AllocationCount:        len(data.Allocations),
		HideCounterpartyColumn: state.Filter.Counterparty != "",
		Summary:                f.summarize(state, data, opts.EditEnabled),
	}
	for _, inv := range invoices {
		v.Invoices = append(v.Invoices, f.invoiceRow(inv, state.Selection.InvoiceID))
	}
	for _, p := range payments {
		v.Payments = append(v.Payments, f.paymentRow(p, state.Selection.PaymentID))
	}
	for _, a := range allocations {
		v.Allocations = append(v.Allocations, f.allocationRow(a, opts.EditEnabled))
	}

	options := CollectFilterOptions(data.Invoices, data.Payments)
	v.Counterparties = options.Counterparties
	v.Currencies = options.Currencies
	return v
}
