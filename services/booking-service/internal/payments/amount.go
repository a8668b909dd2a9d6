package payments

import (
	"strings"

	"github.com/pointme/pointme/services/booking-service/internal/booking"
	"github.com/shopspring/decimal"
)

// Currencies Stripe charges in whole units.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true, "krw": true,
	"mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true, "vuv": true, "xaf": true,
	"xof": true, "xpf": true,
}

// MinorUnits converts amount to the integer the provider expects, rounding
// half away from zero.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimal[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

// PlatformFee is the commission on an amount in minor units.
func PlatformFee(minor int64, rate float64) int64 {
	if rate <= 0 {
		return 0
	}
	return decimal.NewFromInt(minor).Mul(decimal.NewFromFloat(rate)).Round(0).IntPart()
}

// NeedsRefund reports whether b holds a charge it should not keep: the
// payment settled after the booking was cancelled.
func NeedsRefund(b booking.Booking) bool {
	return b.Status == booking.StatusCancelled && b.PaymentStatus == booking.PaymentPaid && b.PaymentIntentID != ""
}
