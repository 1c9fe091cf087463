// Package rails provides payment-rail executors behind the router's
// collaborator interface.
package rails

import (
	"context"
	"errors"
	"fmt"

	"parceltoken/internal/models"
	"parceltoken/internal/services/router"

	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/charge"
)

// Dispatcher routes rail attempts to per-rail executors. An attempt on
// a rail with no registered executor is a terminal failure, not a
// retryable one.
type Dispatcher struct {
	executors map[string]router.RailExecutor
}

// NewDispatcher builds an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{executors: make(map[string]router.RailExecutor)}
}

// Register binds an executor to a rail name.
func (d *Dispatcher) Register(rail string, executor router.RailExecutor) {
	d.executors[rail] = executor
}

// Attempt implements router.RailExecutor.
func (d *Dispatcher) Attempt(ctx context.Context, rail string, intent models.PaymentIntent) error {
	executor, ok := d.executors[rail]
	if !ok {
		return router.Terminal(fmt.Errorf("no executor registered for rail %s", rail))
	}
	return executor.Attempt(ctx, rail, intent)
}

// StripeExecutor settles CARD-rail intents through Stripe. The card
// token is expected in the intent metadata under "card_token".
type StripeExecutor struct {
	currency string
}

// NewStripeExecutor configures the Stripe API key and returns a CARD
// executor charging in the given currency.
func NewStripeExecutor(apiKey, currency string) *StripeExecutor {
	stripe.Key = apiKey
	if currency == "" {
		currency = "brl"
	}
	return &StripeExecutor{currency: currency}
}

// Attempt implements router.RailExecutor. Card declines and other
// request-level rejections are terminal; everything else is left
// retryable.
func (e *StripeExecutor) Attempt(ctx context.Context, _ string, intent models.PaymentIntent) error {
	token, _ := intent.Metadata["card_token"].(string)
	if token == "" {
		return router.Terminal(errors.New("missing card_token in intent metadata"))
	}

	params := &stripe.ChargeParams{
		Amount:      stripe.Int64(intent.Amount),
		Currency:    stripe.String(e.currency),
		Description: stripe.String(fmt.Sprintf("parceltoken settlement %s", intent.TransactionID)),
	}
	params.Context = ctx
	if err := params.SetSource(token); err != nil {
		return router.Terminal(err)
	}
	params.AddMetadata("transaction_id", intent.TransactionID)

	if _, err := charge.New(params); err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			switch stripeErr.Type {
			case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
				return router.Terminal(err)
			}
		}
		return err
	}
	return nil
}
