package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/orderbase/checkout/internal/models"
)

var (
	ErrInvalidInput        = errors.New("invalid table input")
	ErrTableNotFound       = errors.New("table not found")
	ErrOrdersFetch         = errors.New("failed to fetch orders")
	ErrNoBillableOrders    = errors.New("no orders to bill")
	ErrCommit              = errors.New("checkout commit failed")
	ErrUpstreamUnavailable = errors.New("orderbase API unavailable")

	ErrCheckoutDeclined  = errors.New("checkout not confirmed")
	ErrNotReady          = errors.New("session is not ready for checkout")
	ErrCommitInProgress  = errors.New("checkout already in progress")
	ErrResolveInProgress = errors.New("table lookup already in progress")
	ErrTableBusy         = errors.New("table is being checked out by another terminal")

	errLockLost = errors.New("table lock expired during checkout")
)

// CommitError reports a saga that did not finish. Result says exactly
// which steps went through, so the caller can resume.
type CommitError struct {
	Result SagaResult
}

func (e *CommitError) Error() string {
	var failed []string
	for _, step := range e.Result.Steps {
		if step.Status == models.StepFailed {
			failed = append(failed, fmt.Sprintf("%s %d", step.Kind, step.TargetID))
		}
	}
	return fmt.Sprintf("%v: %d of %d orders completed, failed: %s",
		ErrCommit, len(e.Result.CompletedOrderIDs()), e.Result.OrderCount(), strings.Join(failed, ", "))
}

func (e *CommitError) Unwrap() error {
	return ErrCommit
}
