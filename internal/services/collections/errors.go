package collections

import "errors"

// Service errors. Insufficient payment is not an error: it is a normal
// outcome reported on the PaymentResult.
var (
	ErrAlreadyPaid  = errors.New("installment already paid")
	ErrNotPayable   = errors.New("installment is not payable")
	ErrPastDueDate  = errors.New("new due date must be in the future")
	ErrInvalidSplit = errors.New("invalid installment split count")
)
