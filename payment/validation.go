package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

// ValidateAmount accepts claimed when it is within tolerance of expected, in either direction.
func ValidateAmount(expected, claimed, tolerance decimal.Decimal) error {
	if claimed.Sub(expected).Abs().GreaterThan(tolerance) {
		return entity.AmountMismatchError{Expected: expected, Claimed: claimed}
	}

	return nil
}

func NormalizeUTR(utr string) string {
	return strings.ToUpper(strings.Join(strings.Fields(utr), ""))
}

// CheckUTR validates the transaction reference entered by the guest.
func CheckUTR(utr string) error {
	if utr == "" {
		return entity.ErrMissingUTR
	}
	if len(utr) < 6 || len(utr) > 35 {
		return entity.NewValidationError("transaction reference must be between 6 and 35 characters")
	}
	for _, r := range utr {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return entity.NewValidationError("transaction reference may only contain letters and digits")
		}
	}

	return nil
}

func stalenessWarnings(proof entity.PaymentProof, now time.Time, staleAfter time.Duration) []string {
	if staleAfter <= 0 || proof.UploadedAt.IsZero() {
		return nil
	}

	age := now.Sub(proof.UploadedAt)
	if age <= staleAfter {
		return nil
	}

	return []string{fmt.Sprintf("payment proof was uploaded %d days ago", int(age.Hours()/24))}
}
