package fraud

import (
	"fmt"

	"github.com/mbd888/verdict/internal/validation"
)

// ValidateRequest rejects inputs Evaluate cannot score meaningfully: negative
// amounts, missing timestamps and a missing candidate location. Evaluate
// itself never validates.
func ValidateRequest(req *CheckRequest) error {
	errs := validation.Struct(req)
	errs = append(errs, validation.Validate(
		validation.Required("transaction.location", req.Transaction.Location),
		validation.NonNegative("transaction.amount", req.Transaction.Amount),
		validation.NonZeroTime("transaction.timestamp", req.Transaction.Timestamp),
	)...)

	for i, h := range req.History {
		errs = append(errs, validation.Validate(
			validation.NonNegative(fmt.Sprintf("history[%d].amount", i), h.Amount),
			validation.NonZeroTime(fmt.Sprintf("history[%d].timestamp", i), h.Timestamp),
		)...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
