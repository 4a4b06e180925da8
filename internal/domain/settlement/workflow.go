package settlement

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Phase is a step of one pairing attempt.
type Phase string

const (
	PhaseNoSelection     Phase = "NoSelection"
	PhaseOneSideSelected Phase = "OneSideSelected"
	PhaseBothSelected    Phase = "BothSelected"
	PhaseSubmitting      Phase = "Submitting"
	PhaseSucceeded       Phase = "Succeeded"
	PhaseFailed          Phase = "Failed"
)

// IsTerminal reports whether no further transition is possible.
func (p Phase) IsTerminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// Phase derives the selection phase from which sides are picked.
func (s Selection) Phase() Phase {
	switch {
	case s.InvoiceID != "" && s.PaymentID != "":
		return PhaseBothSelected
	case s.InvoiceID != "" || s.PaymentID != "":
		return PhaseOneSideSelected
	default:
		return PhaseNoSelection
	}
}

// AllocationPolicy holds the business rules applied before submission.
type AllocationPolicy struct {
	// EnforceSignMatch rejects pairings whose invoice balance and payment
	// amount have different signs.
	EnforceSignMatch bool
}

// DefaultAllocationPolicy enforces every rule.
func DefaultAllocationPolicy() AllocationPolicy {
	return AllocationPolicy{EnforceSignMatch: true}
}

// AllocationRequest is a validated create-allocation command.
type AllocationRequest struct {
	InvoiceID string
	PaymentID string
	Amount    decimal.Decimal
}

// NewAllocationRequest checks that every field is present and the amount is
// not zero.
func NewAllocationRequest(invoiceID, paymentID string, amount decimal.NullDecimal) (AllocationRequest, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	paymentID = strings.TrimSpace(paymentID)
	if invoiceID == "" || paymentID == "" || !amount.Valid || amount.Decimal.IsZero() {
		return AllocationRequest{}, ErrMissingAllocationInput
	}
	return AllocationRequest{InvoiceID: invoiceID, PaymentID: paymentID, Amount: amount.Decimal}, nil
}

// SubmitFunc sends a create-allocation command to the system of record.
type SubmitFunc func(ctx context.Context, req AllocationRequest) error

// Pairing tracks one attempt to allocate a payment to an invoice.
type Pairing struct {
	Phase   Phase           `json:"phase"`
	Invoice *Invoice        `json:"-"`
	Payment *Payment        `json:"-"`
	Amount  decimal.Decimal `json:"amount"`
	Err     error           `json:"-"`
	// History lists every phase the pairing went through, in order.
	History []Phase `json:"history"`
}

func (p *Pairing) enter(phase Phase) {
	p.Phase = phase
	p.History = append(p.History, phase)
}

func (p *Pairing) fail(err error) {
	p.Err = err
	p.enter(PhaseFailed)
}

// NewPairing resolves a selection against the loaded records. A selected id
// that is no longer among the records leaves its side unresolved.
func NewPairing(sel Selection, invoices []Invoice, payments []Payment) *Pairing {
	p := &Pairing{}
	p.enter(PhaseNoSelection)
	if sel.InvoiceID != "" {
		for i := range invoices {
			if invoices[i].ID == sel.InvoiceID {
				p.Invoice = &invoices[i]
				break
			}
		}
	}
	if sel.PaymentID != "" {
		for i := range payments {
			if payments[i].ID == sel.PaymentID {
				p.Payment = &payments[i]
				break
			}
		}
	}
	if sel.Phase() != PhaseNoSelection {
		p.enter(PhaseOneSideSelected)
	}
	if sel.Phase() == PhaseBothSelected {
		p.enter(PhaseBothSelected)
	}
	return p
}

// DefaultAmount is the smaller of the invoice balance and the payment's
// unallocated amount, both taken as magnitudes.
func DefaultAmount(inv Invoice, pay Payment) decimal.Decimal {
	return decimal.Min(inv.Balance.Abs(), pay.Unallocated.Abs())
}

// ResolveAmount uses an explicit positive amount when one is given and falls
// back to DefaultAmount otherwise.
func ResolveAmount(explicit string, inv Invoice, pay Payment) decimal.Decimal {
	if s := strings.TrimSpace(explicit); s != "" {
		if v, err := decimal.NewFromString(s); err == nil && v.IsPositive() {
			return v
		}
	}
	return DefaultAmount(inv, pay)
}

// paymentSign is the amount whose sign is compared with the invoice balance.
func paymentSign(pay Payment) decimal.Decimal {
	if pay.Amount.Valid {
		return pay.Amount.Decimal
	}
	return pay.Unallocated
}

// Prepare resolves the amount and applies policy. A rejected pairing ends in
// PhaseFailed and must not be submitted.
func (p *Pairing) Prepare(explicit string, policy AllocationPolicy) *Pairing {
	if p.Phase != PhaseBothSelected {
		p.fail(ErrIncompletePairing)
		return p
	}
	if p.Invoice == nil || p.Payment == nil {
		p.fail(ErrSelectionNotOpen)
		return p
	}
	p.Amount = ResolveAmount(explicit, *p.Invoice, *p.Payment)
	if !p.Amount.IsPositive() || !IsOpenAmount(p.Amount) {
		p.fail(ErrZeroAmount)
		return p
	}
	if policy.EnforceSignMatch && !sameSign(p.Invoice.Balance, paymentSign(*p.Payment)) {
		p.fail(ErrSignMismatch)
		return p
	}
	return p
}

// Request builds the create command of a prepared pairing.
func (p *Pairing) Request() AllocationRequest {
	req := AllocationRequest{Amount: p.Amount}
	if p.Invoice != nil {
		req.InvoiceID = p.Invoice.ID
	}
	if p.Payment != nil {
		req.PaymentID = p.Payment.ID
	}
	return req
}

// Submit sends a prepared pairing. It is a no-op unless the pairing is in
// PhaseBothSelected with a resolved amount.
func (p *Pairing) Submit(ctx context.Context, submit SubmitFunc) *Pairing {
	if p.Phase != PhaseBothSelected || p.Amount.IsZero() {
		if !p.Phase.IsTerminal() {
			p.fail(ErrIncompletePairing)
		}
		return p
	}
	p.enter(PhaseSubmitting)
	if err := submit(ctx, p.Request()); err != nil {
		p.fail(err)
		return p
	}
	p.enter(PhaseSucceeded)
	return p
}
