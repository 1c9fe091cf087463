package rails

import (
	"context"
	"fmt"

	"parceltoken/internal/models"
	"parceltoken/internal/services/router"
)

// LedgerExecutor settles in-house rails (PIX, PARCELTOKEN, BOLETO)
// against the internal ledger. Settlement is synchronous, so an
// attempt either books immediately or fails terminally.
type LedgerExecutor struct{}

func NewLedgerExecutor() *LedgerExecutor {
	return &LedgerExecutor{}
}

// Attempt implements router.RailExecutor.
func (e *LedgerExecutor) Attempt(_ context.Context, rail string, intent models.PaymentIntent) error {
	if intent.Amount <= 0 {
		return router.Terminal(fmt.Errorf("ledger rail %s: non-positive amount %d", rail, intent.Amount))
	}
	return nil
}
