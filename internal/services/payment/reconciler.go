package payment

import (
	"context"
	"sync"

	"parceltoken/internal/models"
)

// Reconciler is the post-settlement hook handed to the router. It is
// idempotent per transaction id: retried or replayed invocations for
// an already-reconciled transaction are no-ops, so firing it more than
// once is always safe.
type Reconciler struct {
	webhook WebhookSink

	mu         sync.Mutex
	reconciled map[string]struct{}
}

// NewReconciler builds a reconciler publishing to the given sink. A
// nil sink is replaced by a no-op.
func NewReconciler(webhook WebhookSink) *Reconciler {
	if webhook == nil {
		webhook = NoopWebhookSink{}
	}
	return &Reconciler{
		webhook:    webhook,
		reconciled: make(map[string]struct{}),
	}
}

// Reconcile marks the settlement reconciled and publishes it once.
func (r *Reconciler) Reconcile(ctx context.Context, outcome models.PaymentOutcome) error {
	r.mu.Lock()
	if _, done := r.reconciled[outcome.TransactionID]; done {
		r.mu.Unlock()
		return nil
	}
	r.reconciled[outcome.TransactionID] = struct{}{}
	r.mu.Unlock()

	outcome.Status = models.PaymentStatusReconciled
	r.webhook.PaymentSettled(ctx, outcome, nil)
	return nil
}

// Reconciled reports whether the transaction was already reconciled.
func (r *Reconciler) Reconciled(transactionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, done := r.reconciled[transactionID]
	return done
}
