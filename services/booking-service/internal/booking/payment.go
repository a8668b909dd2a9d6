package booking

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnpaid:  {PaymentPending},
	PaymentPending: {PaymentPaid, PaymentUnpaid},
	PaymentPaid:    {PaymentRefunded},
}

// PaymentTransition checks a payment status move. unpaid -> pending when an
// intent is created, pending -> paid or back to unpaid when the provider
// reports, paid -> refunded.
func PaymentTransition(from, to PaymentStatus) error {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return nil
		}
	}
	return &TransitionError{Kind: "payment", From: string(from), To: string(to)}
}
