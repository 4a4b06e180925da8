package settlement

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// SortDirection is the order of the active sort column.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Table names the three independently sorted tables.
type Table string

const (
	TableInvoices    Table = "invoices"
	TablePayments    Table = "payments"
	TableAllocations Table = "allocations"
)

// SortState is the active column and direction of one table.
type SortState struct {
	Column    string        `json:"column"`
	Direction SortDirection `json:"direction"`
}

// Toggle applies a header click: the active column flips direction, any
// other column becomes active in ascending order.
func (s SortState) Toggle(column string) SortState {
	if s.Column == column {
		if s.Direction == SortAsc {
			return SortState{Column: column, Direction: SortDesc}
		}
		return SortState{Column: column, Direction: SortAsc}
	}
	return SortState{Column: column, Direction: SortAsc}
}

type columnKind int

const (
	kindText columnKind = iota
	kindDate
	kindNumeric
	kindBool
)

// sortKey is the comparable value of one cell. Only the field matching the
// column kind is set.
type sortKey struct {
	present bool
	text    string
	at      time.Time
	num     decimal.Decimal
	flag    bool
}

type column[T any] struct {
	kind  columnKind
	value func(T) sortKey
}

func textCol[T any](f func(T) string) column[T] {
	return column[T]{kind: kindText, value: func(r T) sortKey {
		s := f(r)
		return sortKey{present: s != "", text: s}
	}}
}

func dateCol[T any](f func(T) *time.Time) column[T] {
	return column[T]{kind: kindDate, value: func(r T) sortKey {
		t := f(r)
		if t == nil {
			return sortKey{}
		}
		return sortKey{present: true, at: *t}
	}}
}

func numCol[T any](f func(T) decimal.NullDecimal) column[T] {
	return column[T]{kind: kindNumeric, value: func(r T) sortKey {
		d := f(r)
		return sortKey{present: d.Valid, num: d.Decimal}
	}}
}

func boolCol[T any](f func(T) bool) column[T] {
	return column[T]{kind: kindBool, value: func(r T) sortKey {
		return sortKey{present: true, flag: f(r)}
	}}
}

var invoiceColumns = map[string]column[Invoice]{
	"invoiceId":        textCol(func(i Invoice) string { return i.ID }),
	"invoiceName":      textCol(func(i Invoice) string { return i.Name }),
	"reference":        textCol(func(i Invoice) string { return i.Reference }),
	"counterpartyName": textCol(func(i Invoice) string { return i.CounterpartyName }),
	"invoiceCurrency":  textCol(func(i Invoice) string { return i.Currency }),
	"amount":           numCol(func(i Invoice) decimal.NullDecimal { return i.Amount }),
	"invoiceBalance":   numCol(func(i Invoice) decimal.NullDecimal { return nullDecimal(i.Balance) }),
	"issueDate":        dateCol(func(i Invoice) *time.Time { return i.IssueDate }),
	"dueDate":          dateCol(func(i Invoice) *time.Time { return i.DueDate }),
	"isIncoming":       boolCol(func(i Invoice) bool { return i.Direction.IsIncoming() }),
	"bankName":         textCol(func(i Invoice) string { return i.BankName }),
	"strategyName":     textCol(func(i Invoice) string { return i.StrategyName }),
	"tankerName":       textCol(func(i Invoice) string { return i.TankerName }),
	"itemType":         textCol(func(i Invoice) string { return i.ItemType }),
}

var paymentColumns = map[string]column[Payment]{
	"paymentId":         textCol(func(p Payment) string { return p.ID }),
	"paymentName":       textCol(func(p Payment) string { return p.Name }),
	"reference":         textCol(func(p Payment) string { return p.DisplayReference() }),
	"counterpartyName":  textCol(func(p Payment) string { return p.CounterpartyName }),
	"currency":          textCol(func(p Payment) string { return p.Currency }),
	"amount":            numCol(func(p Payment) decimal.NullDecimal { return p.Amount }),
	"unallocatedAmount": numCol(func(p Payment) decimal.NullDecimal { return nullDecimal(p.Unallocated) }),
	"exchangeRate":      numCol(func(p Payment) decimal.NullDecimal { return p.ExchangeRate }),
	"valueDate":         dateCol(func(p Payment) *time.Time { return p.ValueDate }),
	"paymentOrderDate":  dateCol(func(p Payment) *time.Time { return p.OrderDate }),
	"bankAccountName":   textCol(func(p Payment) string { return p.BankAccount }),
	"strategyName":      textCol(func(p Payment) string { return p.StrategyName }),
	"state":             textCol(func(p Payment) string { return p.State }),
	"isIncoming":        boolCol(func(p Payment) bool { return p.Direction.IsIncoming() }),
}

var allocationColumns = map[string]column[Allocation]{
	"allocationId":     textCol(func(a Allocation) string { return a.ID }),
	"allocationName":   textCol(func(a Allocation) string { return a.Name }),
	"invoiceReference": textCol(func(a Allocation) string { return a.InvoiceRef }),
	"paymentReference": textCol(func(a Allocation) string { return a.PaymentRef }),
	"counterpartyName": textCol(func(a Allocation) string { return a.Counterparty }),
	"amount":           numCol(func(a Allocation) decimal.NullDecimal { return a.Amount }),
	"currency":         textCol(func(a Allocation) string { return a.Currency }),
	"date":             dateCol(func(a Allocation) *time.Time { return a.Date }),
	"state":            textCol(func(a Allocation) string { return a.State }),
	"isIncoming":       boolCol(func(a Allocation) bool { return a.Direction.IsIncoming() }),
}

// IsSortable reports whether column can be sorted in table.
func IsSortable(table Table, column string) bool {
	switch table {
	case TableInvoices:
		_, ok := invoiceColumns[column]
		return ok
	case TablePayments:
		_, ok := paymentColumns[column]
		return ok
	case TableAllocations:
		_, ok := allocationColumns[column]
		return ok
	}
	return false
}

// compareKeys orders two cells of the same kind. Missing values compare
// greater than any present value.
func compareKeys(kind columnKind, a, b sortKey) int {
	switch {
	case !a.present && !b.present:
		return 0
	case !a.present:
		return 1
	case !b.present:
		return -1
	}
	switch kind {
	case kindDate:
		return a.at.Compare(b.at)
	case kindNumeric:
		return a.num.Cmp(b.num)
	case kindBool:
		switch {
		case a.flag == b.flag:
			return 0
		case !a.flag:
			return -1
		default:
			return 1
		}
	default:
		switch {
		case a.text < b.text:
			return -1
		case a.text > b.text:
			return 1
		}
		return 0
	}
}

// sortRecords returns a stably sorted copy of records. Descending order
// negates the comparator, so missing values come last ascending and first
// descending. An unknown column leaves the order unchanged.
func sortRecords[T any](records []T, columns map[string]column[T], s SortState) []T {
	out := slices.Clone(records)
	col, ok := columns[s.Column]
	if !ok {
		return out
	}

	type keyed struct {
		key    sortKey
		record T
	}
	folder := cases.Fold()
	items := make([]keyed, len(out))
	for i, r := range out {
		k := col.value(r)
		if col.kind == kindText {
			k.text = folder.String(k.text)
		}
		items[i] = keyed{key: k, record: r}
	}

	sign := 1
	if s.Direction == SortDesc {
		sign = -1
	}
	slices.SortStableFunc(items, func(a, b keyed) int {
		return sign * compareKeys(col.kind, a.key, b.key)
	})
	for i := range items {
		out[i] = items[i].record
	}
	return out
}

// SortInvoices returns invoices ordered by s.
func SortInvoices(invoices []Invoice, s SortState) []Invoice {
	return sortRecords(invoices, invoiceColumns, s)
}

// SortPayments returns payments ordered by s.
func SortPayments(payments []Payment, s SortState) []Payment {
	return sortRecords(payments, paymentColumns, s)
}

// SortAllocations returns allocations ordered by s.
func SortAllocations(allocations []Allocation, s SortState) []Allocation {
	return sortRecords(allocations, allocationColumns, s)
}
