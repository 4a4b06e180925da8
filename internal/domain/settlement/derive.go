package settlement

// DerivePaymentsFromAllocations synthesizes one payment per distinct payment
// id found in allocations, for upstream installations that expose no payment
// listing. The unallocated amount of a derived payment is unknown and left at
// zero, so derived payments never count as open.
func DerivePaymentsFromAllocations(allocations []Allocation) []Payment {
	seen := make(map[string]struct{}, len(allocations))
	payments := make([]Payment, 0, len(allocations))
	for _, a := range allocations {
		if a.PaymentID == "" {
			continue
		}
		if _, ok := seen[a.PaymentID]; ok {
			continue
		}
		seen[a.PaymentID] = struct{}{}

		p := a.payment
		payments = append(payments, Payment{
			ID:               a.PaymentID,
			Name:             a.PaymentID,
			Reference:        p.reference,
			CounterpartyName: a.Counterparty,
			CompanyName:      p.company,
			Currency:         p.currency,
			Amount:           nullDecimal(p.amount),
			ValueDate:        p.valueDate,
			OrderDate:        p.orderDate,
			BankAccount:      p.bankAccount,
			State:            p.state,
			Direction:        directionOf(p.isIncoming),
			IsInternal:       p.isInternal,
			IsConfirmed:      p.isConfirmed,
			AllocationCount:  1,
			Derived:          true,
		})
	}
	return payments
}
