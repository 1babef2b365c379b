// Package booking quotes and cancels flight bookings.
//
// Fares are dynamic: the current seat price is scaled by how well the flight
// has sold so far, then adjusted for last-minute bookings, group size and
// redeemed reward points. A cancellation returns a refund instead of a fare.
package booking

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mbd888/verdict/internal/validation"
)

// Pricing constants.
var (
	// DemandWeight scales the sold-seat percentage into a price factor.
	DemandWeight = decimal.RequireFromString("0.8")
	// LastMinuteFee is added when departure is less than LastMinuteWindow away.
	LastMinuteFee = decimal.NewFromInt(100)
	// GroupDiscount multiplies the fare for groups larger than GroupSize.
	GroupDiscount = decimal.RequireFromString("0.95")
	// PointValue is the fare reduction per reward point.
	PointValue = decimal.RequireFromString("0.01")
	// PartialRefund is the share refunded inside FullRefundWindow.
	PartialRefund = decimal.RequireFromString("0.5")
)

const (
	LastMinuteWindow = 24 // hours
	FullRefundWindow = 48 // hours
	GroupSize        = 4
)

var hundred = decimal.NewFromInt(100)

// Request describes a booking or cancellation.
type Request struct {
	Passengers     int             `json:"passengers" validate:"gt=0"`
	BookedAt       time.Time       `json:"bookedAt"`
	DepartureAt    time.Time       `json:"departureAt"`
	AvailableSeats int             `json:"availableSeats" validate:"gte=0"`
	CurrentPrice   decimal.Decimal `json:"currentPrice"`
	PreviousSales  int             `json:"previousSales" validate:"gte=0,lte=100"`
	Cancellation   bool            `json:"cancellation"`
	RewardPoints   int             `json:"rewardPoints" validate:"gte=0"`
}

// Result is the outcome of Book.
type Result struct {
	Confirmed    bool            `json:"confirmed"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
	RefundAmount decimal.Decimal `json:"refundAmount"`
	PointsUsed   bool            `json:"pointsUsed"`
}

// Validate reports malformed requests. Book assumes a valid request.
func Validate(req *Request) error {
	errs := validation.Struct(req)
	errs = append(errs, validation.Validate(
		validation.NonNegative("currentPrice", req.CurrentPrice),
		validation.NonZeroTime("bookedAt", req.BookedAt),
		validation.NonZeroTime("departureAt", req.DepartureAt),
	)...)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// HoursToDeparture is the whole number of hours between booking and departure.
func HoursToDeparture(req Request) int {
	return int(req.DepartureAt.Sub(req.BookedAt) / time.Hour)
}

// Book prices the request. Without enough seats nothing is booked or refunded.
func Book(req Request) Result {
	if req.Passengers > req.AvailableSeats {
		return Result{TotalPrice: decimal.Zero, RefundAmount: decimal.Zero}
	}

	factor := decimal.NewFromInt(int64(req.PreviousSales)).Div(hundred).Mul(DemandWeight)
	price := req.CurrentPrice.Mul(factor).Mul(decimal.NewFromInt(int64(req.Passengers)))

	hours := HoursToDeparture(req)
	if hours < LastMinuteWindow {
		price = price.Add(LastMinuteFee)
	}
	if req.Passengers > GroupSize {
		price = price.Mul(GroupDiscount)
	}

	pointsUsed := false
	if req.RewardPoints > 0 {
		price = price.Sub(decimal.NewFromInt(int64(req.RewardPoints)).Mul(PointValue))
		pointsUsed = true
	}
	if price.IsNegative() {
		price = decimal.Zero
	}

	if req.Cancellation {
		refund := price
		if hours < FullRefundWindow {
			refund = price.Mul(PartialRefund)
		}
		return Result{TotalPrice: decimal.Zero, RefundAmount: refund.Round(2)}
	}

	return Result{
		Confirmed:    true,
		TotalPrice:   price.Round(2),
		RefundAmount: decimal.Zero,
		PointsUsed:   pointsUsed,
	}
}
