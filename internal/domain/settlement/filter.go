package settlement

import "time"

// Status filter values.
const (
	StatusOpen = "open"
	StatusAll  = "all"
)

// DateLayout is the wire layout of filter date bounds.
const DateLayout = "2006-01-02"

// FilterState holds the global filter values shared by the invoice and
// payment tables. Blank fields impose no constraint.
type FilterState struct {
	Counterparty string `json:"counterparty"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	IssueFrom    string `json:"issueDateFrom"`
	IssueTo      string `json:"issueDateTo"`
	DueFrom      string `json:"dueDateFrom"`
	DueTo        string `json:"dueDateTo"`
}

// civilDate is a calendar date with time-of-day discarded.
type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{year: y, month: m, day: d}
}

func (c civilDate) compare(o civilDate) int {
	switch {
	case c.year != o.year:
		return cmpInt(c.year, o.year)
	case c.month != o.month:
		return cmpInt(int(c.month), int(o.month))
	default:
		return cmpInt(c.day, o.day)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// dateRange is an inclusive calendar range; a nil bound is open.
type dateRange struct {
	from *civilDate
	to   *civilDate
}

func parseBound(s string) *civilDate {
	t, ok := ParseTime(s)
	if !ok {
		return nil
	}
	d := dateOf(t)
	return &d
}

func newDateRange(from, to string) dateRange {
	return dateRange{from: parseBound(from), to: parseBound(to)}
}

func (r dateRange) unbounded() bool {
	return r.from == nil && r.to == nil
}

// contains reports whether t falls within the range. A missing date cannot
// be placed in a bounded range and is excluded.
func (r dateRange) contains(t *time.Time) bool {
	if r.unbounded() {
		return true
	}
	if t == nil {
		return false
	}
	d := dateOf(*t)
	if r.from != nil && d.compare(*r.from) < 0 {
		return false
	}
	if r.to != nil && d.compare(*r.to) > 0 {
		return false
	}
	return true
}

// Validate checks the status value and the date bounds.
func (f FilterState) Validate() error {
	switch f.Status {
	case "", StatusOpen, StatusAll:
	default:
		return ValidationError("status must be open or all")
	}
	bounds := []struct{ field, value string }{
		{"issueDateFrom", f.IssueFrom},
		{"issueDateTo", f.IssueTo},
		{"dueDateFrom", f.DueFrom},
		{"dueDateTo", f.DueTo},
	}
	for _, b := range bounds {
		if b.value == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, b.value); err != nil {
			return ValidationError(b.field + " must be a date in YYYY-MM-DD format")
		}
	}
	return nil
}

func (f FilterState) openOnly() bool {
	return f.Status == StatusOpen
}

// FilterInvoices returns the invoices matching every non-blank filter value,
// preserving input order.
func FilterInvoices(invoices []Invoice, f FilterState) []Invoice {
	issue := newDateRange(f.IssueFrom, f.IssueTo)
	due := newDateRange(f.DueFrom, f.DueTo)

	out := make([]Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if f.Counterparty != "" && inv.CounterpartyName != f.Counterparty {
			continue
		}
		if f.Currency != "" && inv.Currency != f.Currency {
			continue
		}
		if f.openOnly() && !inv.IsOpen() {
			continue
		}
		if !issue.contains(inv.IssueDate) || !due.contains(inv.DueDate) {
			continue
		}
		out = append(out, inv)
	}
	return out
}

// FilterPayments returns the payments matching every non-blank filter value.
// Payments have no issue or due date: the issue-date range applies to the
// value date and the due-date range is ignored.
func FilterPayments(payments []Payment, f FilterState) []Payment {
	value := newDateRange(f.IssueFrom, f.IssueTo)

	out := make([]Payment, 0, len(payments))
	for _, p := range payments {
		if f.Counterparty != "" && p.CounterpartyName != f.Counterparty {
			continue
		}
		if f.Currency != "" && p.Currency != f.Currency {
			continue
		}
		if f.openOnly() && !p.IsOpen() {
			continue
		}
		if !value.contains(p.ValueDate) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// OpenInvoices applies the predicate used when the open listing is derived
// locally from the general invoice endpoint.
func OpenInvoices(invoices []Invoice) []Invoice {
	out := make([]Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if ExceedsEpsilon(inv.Balance) {
			out = append(out, inv)
		}
	}
	return out
}

// OpenPayments is the payment counterpart of OpenInvoices.
func OpenPayments(payments []Payment) []Payment {
	out := make([]Payment, 0, len(payments))
	for _, p := range payments {
		if ExceedsEpsilon(p.Unallocated) {
			out = append(out, p)
		}
	}
	return out
}

// FilterOptions lists the distinct values offered by the filter controls.
type FilterOptions struct {
	Counterparties []string `json:"counterparties"`
	Currencies     []string `json:"currencies"`
}

// CollectFilterOptions gathers the sorted distinct counterparties and
// currencies across invoices and payments.
func CollectFilterOptions(invoices []Invoice, payments []Payment) FilterOptions {
	counterparties := newStringSet()
	currencies := newStringSet()
	for _, inv := range invoices {
		counterparties.add(inv.CounterpartyName)
		currencies.add(inv.Currency)
	}
	for _, p := range payments {
		counterparties.add(p.CounterpartyName)
		currencies.add(p.Currency)
	}
	return FilterOptions{
		Counterparties: counterparties.sorted(),
		Currencies:     currencies.sorted(),
	}
}
