package settlement

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells whether money is owed to (incoming) or by (outgoing) the
// organization using the dashboard.
type Direction string

const (
	DirectionIncoming Direction = "IN"
	DirectionOutgoing Direction = "OUT"
)

func directionOf(incoming bool) Direction {
	if incoming {
		return DirectionIncoming
	}
	return DirectionOutgoing
}

// IsIncoming reports whether the direction is incoming.
func (d Direction) IsIncoming() bool {
	return d == DirectionIncoming
}

// Invoice is an open or settled invoice as held by the upstream system.
type Invoice struct {
	ID               string              `json:"invoiceId"`
	Name             string              `json:"invoiceName"`
	Reference        string              `json:"reference"`
	CounterpartyName string              `json:"counterpartyName"`
	Currency         string              `json:"invoiceCurrency"`
	Amount           decimal.NullDecimal `json:"amount"`
	Balance          decimal.Decimal     `json:"invoiceBalance"`
	IssueDate        *time.Time          `json:"issueDate,omitempty"`
	DueDate          *time.Time          `json:"dueDate,omitempty"`
	Direction        Direction           `json:"direction"`
	BankName         string              `json:"bankName"`
	StrategyName     string              `json:"strategyName"`
	TankerName       string              `json:"tankerName"`
	ItemType         string              `json:"itemType"`
}

// IsOpen reports whether the invoice still has an outstanding balance.
func (i Invoice) IsOpen() bool {
	return IsOpenAmount(i.Balance)
}

// Payment is a cash movement that can be allocated against invoices.
type Payment struct {
	ID               string              `json:"paymentId"`
	Name             string              `json:"paymentName"`
	Reference        string              `json:"reference"`
	CounterpartyName string              `json:"counterpartyName"`
	CompanyName      string              `json:"companyName,omitempty"`
	Currency         string              `json:"currency"`
	Amount           decimal.NullDecimal `json:"amount"`
	Unallocated      decimal.Decimal     `json:"unallocatedAmount"`
	ValueDate        *time.Time          `json:"valueDate,omitempty"`
	OrderDate        *time.Time          `json:"paymentOrderDate,omitempty"`
	ExchangeRate     decimal.NullDecimal `json:"exchangeRate"`
	BankAccount      string              `json:"bankAccountName"`
	StrategyName     string              `json:"strategyName"`
	State            string              `json:"state,omitempty"`
	Direction        Direction           `json:"direction"`
	IsInternal       bool                `json:"isInternal"`
	IsConfirmed      bool                `json:"isConfirmed"`
	AllocationCount  int                 `json:"allocationCount,omitempty"`
	// Derived is set when the record was synthesized from allocation records.
	// Unallocated is unknown (zero) for derived payments.
	Derived bool `json:"derived,omitempty"`
}

// IsOpen reports whether the payment still has an unallocated remainder.
func (p Payment) IsOpen() bool {
	return IsOpenAmount(p.Unallocated)
}

// DisplayReference is the reference shown to users, falling back to the name.
func (p Payment) DisplayReference() string {
	if p.Reference != "" {
		return p.Reference
	}
	return p.Name
}

// Allocation links one invoice and one payment for a settled amount.
type Allocation struct {
	ID           string              `json:"allocationId"`
	Name         string              `json:"allocationName"`
	InvoiceID    string              `json:"invoiceId"`
	PaymentID    string              `json:"paymentId"`
	InvoiceRef   string              `json:"invoiceReference"`
	PaymentRef   string              `json:"paymentReference"`
	Counterparty string              `json:"counterpartyName"`
	Amount       decimal.NullDecimal `json:"amount"`
	Currency     string              `json:"currency"`
	Date         *time.Time          `json:"date,omitempty"`
	State        string              `json:"state"`
	Direction    Direction           `json:"direction"`

	payment allocationPayment
}

// allocationPayment holds the payment-prefixed fields an allocation carries,
// used to synthesize payments when the upstream has no payment listing.
type allocationPayment struct {
	reference   string
	amount      decimal.Decimal
	currency    string
	state       string
	valueDate   *time.Time
	orderDate   *time.Time
	isIncoming  bool
	isInternal  bool
	isConfirmed bool
	company     string
	bankAccount string
}

type rawInvoice struct {
	InvoiceID        flexString  `json:"invoiceId"`
	ID               flexString  `json:"id"`
	InvoiceName      flexString  `json:"invoiceName"`
	InvoiceNumber    flexString  `json:"invoiceNumber"`
	Reference        flexString  `json:"reference"`
	CounterpartyName flexString  `json:"counterpartyName"`
	InvoiceCurrency  flexString  `json:"invoiceCurrency"`
	Currency         flexString  `json:"currency"`
	Amount           flexDecimal `json:"amount"`
	InvoiceBalance   flexDecimal `json:"invoiceBalance"`
	IssueDate        flexTime    `json:"issueDate"`
	DueDate          flexTime    `json:"dueDate"`
	IsIncoming       flexBool    `json:"isIncoming"`
	BankName         flexString  `json:"bankName"`
	StrategyName     flexString  `json:"strategyName"`
	TankerName       flexString  `json:"tankerName"`
	ItemType         flexString  `json:"itemType"`
}

func (r rawInvoice) normalize() Invoice {
	return Invoice{
		ID:               firstNonEmpty(r.InvoiceID, r.ID),
		Name:             firstNonEmpty(r.InvoiceName, r.InvoiceNumber),
		Reference:        string(r.Reference),
		CounterpartyName: string(r.CounterpartyName),
		Currency:         firstNonEmpty(r.InvoiceCurrency, r.Currency),
		Amount:           r.Amount.nullable(),
		Balance:          r.InvoiceBalance.orZero(),
		IssueDate:        r.IssueDate.ptr(),
		DueDate:          r.DueDate.ptr(),
		Direction:        directionOf(bool(r.IsIncoming)),
		BankName:         string(r.BankName),
		StrategyName:     string(r.StrategyName),
		TankerName:       string(r.TankerName),
		ItemType:         string(r.ItemType),
	}
}

type rawPayment struct {
	PaymentID         flexString  `json:"paymentId"`
	ID                flexString  `json:"id"`
	PaymentName       flexString  `json:"paymentName"`
	Reference         flexString  `json:"reference"`
	CounterpartyName  flexString  `json:"counterpartyName"`
	CompanyName       flexString  `json:"companyName"`
	Currency          flexString  `json:"currency"`
	Amount            flexDecimal `json:"amount"`
	UnallocatedAmount flexDecimal `json:"unallocatedAmount"`
	ValueDate         flexTime    `json:"valueDate"`
	PaymentOrderDate  flexTime    `json:"paymentOrderDate"`
	ExchangeRate      flexDecimal `json:"exchangeRate"`
	BankAccountName   flexString  `json:"bankAccountName"`
	BankAccountNumber flexString  `json:"bankAccountNumber"`
	StrategyName      flexString  `json:"strategyName"`
	State             flexString  `json:"state"`
	IsIncoming        flexBool    `json:"isIncoming"`
	IsInternal        flexBool    `json:"isInternal"`
	IsConfirmed       flexBool    `json:"isConfirmed"`
	AllocationCount   int         `json:"allocationCount"`
}

func (r rawPayment) normalize() Payment {
	unallocated := r.UnallocatedAmount
	if !unallocated.Valid {
		unallocated = r.Amount
	}
	return Payment{
		ID:               firstNonEmpty(r.PaymentID, r.ID),
		Name:             string(r.PaymentName),
		Reference:        string(r.Reference),
		CounterpartyName: string(r.CounterpartyName),
		CompanyName:      string(r.CompanyName),
		Currency:         string(r.Currency),
		Amount:           r.Amount.nullable(),
		Unallocated:      unallocated.orZero(),
		ValueDate:        r.ValueDate.ptr(),
		OrderDate:        r.PaymentOrderDate.ptr(),
		ExchangeRate:     r.ExchangeRate.nullable(),
		BankAccount:      firstNonEmpty(r.BankAccountName, r.BankAccountNumber),
		StrategyName:     string(r.StrategyName),
		State:            string(r.State),
		Direction:        directionOf(bool(r.IsIncoming)),
		IsInternal:       bool(r.IsInternal),
		IsConfirmed:      bool(r.IsConfirmed),
		AllocationCount:  r.AllocationCount,
	}
}

// rawAllocation is the union of every field name the upstream has used for
// allocation records over time.
type rawAllocation struct {
	AllocationID     flexString  `json:"allocationId"`
	ID               flexString  `json:"id"`
	AllocationName   flexString  `json:"allocationName"`
	Name             flexString  `json:"name"`
	InvoiceID        flexString  `json:"invoiceId"`
	InvoiceNumber    flexString  `json:"invoiceNumber"`
	InvoiceName      flexString  `json:"invoiceName"`
	InvoiceReference flexString  `json:"invoiceReference"`
	TargetName       flexString  `json:"targetName"`
	SourceName       flexString  `json:"sourceName"`
	PaymentID        flexString  `json:"paymentId"`
	PaymentReference flexString  `json:"paymentReference"`
	PaymentName      flexString  `json:"paymentName"`
	CounterpartyName flexString  `json:"counterpartyName"`
	Counterparty     flexString  `json:"counterparty"`
	CompanyName      flexString  `json:"companyName"`
	Amount           flexDecimal `json:"amount"`
	Currency         flexString  `json:"currency"`
	CreatedDate      flexTime    `json:"createdDate"`
	CreateDate       flexTime    `json:"createDate"`
	EntryDate        flexTime    `json:"entryDate"`
	Date             flexTime    `json:"date"`
	State            flexString  `json:"state"`
	IsIncoming       flexBool    `json:"isIncoming"`

	PaymentAmount      flexDecimal `json:"paymentAmount"`
	PaymentCurrency    flexString  `json:"paymentCurrency"`
	PaymentState       flexString  `json:"paymentState"`
	PaymentValueDate   flexTime    `json:"paymentValueDate"`
	PaymentOrderDate   flexTime    `json:"paymentOrderDate"`
	PaymentIsIncoming  flexBool    `json:"paymentIsIncoming"`
	PaymentIsInternal  flexBool    `json:"paymentIsInternal"`
	PaymentIsConfirmed flexBool    `json:"paymentIsConfirmed"`
	BankAccountName    flexString  `json:"bankAccountName"`
}

func (r rawAllocation) normalize() Allocation {
	id := firstNonEmpty(r.AllocationID, r.ID)
	incoming := bool(r.PaymentIsIncoming) || bool(r.IsIncoming)

	// For incoming money the payment is the source and the invoice the
	// target of the allocation; outgoing allocations are the reverse.
	invoiceSide, paymentSide := r.TargetName, r.SourceName
	if !incoming {
		invoiceSide, paymentSide = r.SourceName, r.TargetName
	}

	invoiceRef := firstNonEmpty(r.InvoiceNumber, r.InvoiceName, r.InvoiceReference, invoiceSide)
	if invoiceRef == "" {
		invoiceRef = truncate(string(r.InvoiceID), 10)
	}
	paymentRef := firstNonEmpty(r.PaymentReference, r.PaymentName, paymentSide)
	if paymentRef == "" {
		paymentRef = truncate(string(r.PaymentID), 10)
	}
	name := firstNonEmpty(r.AllocationName, r.Name)
	if name == "" {
		name = truncate(id, 8)
	}

	return Allocation{
		ID:           id,
		Name:         name,
		InvoiceID:    string(r.InvoiceID),
		PaymentID:    string(r.PaymentID),
		InvoiceRef:   invoiceRef,
		PaymentRef:   paymentRef,
		Counterparty: firstNonEmpty(r.CounterpartyName, r.Counterparty, r.CompanyName),
		Amount:       r.Amount.nullable(),
		Currency:     string(r.Currency),
		Date:         firstTime(r.CreatedDate, r.CreateDate, r.EntryDate, r.PaymentValueDate, r.Date),
		State:        string(r.State),
		Direction:    directionOf(incoming),
		payment: allocationPayment{
			reference:   string(r.PaymentReference),
			amount:      r.PaymentAmount.orZero(),
			currency:    firstNonEmpty(r.PaymentCurrency, r.Currency),
			state:       string(r.PaymentState),
			valueDate:   r.PaymentValueDate.ptr(),
			orderDate:   r.PaymentOrderDate.ptr(),
			isIncoming:  bool(r.PaymentIsIncoming),
			isInternal:  bool(r.PaymentIsInternal),
			isConfirmed: bool(r.PaymentIsConfirmed),
			company:     string(r.CompanyName),
			bankAccount: string(r.BankAccountName),
		},
	}
}

// isObject reports whether a raw element is a JSON object. Nulls, scalars and
// arrays are not valid records and are dropped.
func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// decodeRecords unmarshals every object element of raw through normalize.
// Elements that are not objects or fail to decode are skipped; the count of
// skipped elements is returned.
func decodeRecords[R any, T any](raw []json.RawMessage, normalize func(R) T) ([]T, int) {
	out := make([]T, 0, len(raw))
	dropped := 0
	for _, item := range raw {
		if !isObject(item) {
			dropped++
			continue
		}
		var r R
		if err := json.Unmarshal(item, &r); err != nil {
			dropped++
			continue
		}
		out = append(out, normalize(r))
	}
	return out, dropped
}

// DecodeInvoices normalizes raw upstream invoice records.
func DecodeInvoices(raw []json.RawMessage) ([]Invoice, int) {
	return decodeRecords(raw, rawInvoice.normalize)
}

// DecodePayments normalizes raw upstream payment records.
func DecodePayments(raw []json.RawMessage) ([]Payment, int) {
	return decodeRecords(raw, rawPayment.normalize)
}

// DecodeAllocations normalizes raw upstream allocation records.
func DecodeAllocations(raw []json.RawMessage) ([]Allocation, int) {
	return decodeRecords(raw, rawAllocation.normalize)
}
