package checkout

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orderbase/checkout/internal/models"
)

type StatusUpdater interface {
	UpdateOrderStatus(ctx context.Context, orderID int, status string) error
	UpdateTableStatus(ctx context.Context, tableID int, status string) error
}

// Locker guards a table against commits from two terminals at once.
// Extend pushes the expiry out again and reports false once the token no
// longer owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string) (token string, ok bool, err error)
	Extend(ctx context.Context, key, token string) (bool, error)
	Release(ctx context.Context, key, token string) error
}

// Recorder stores the outcome of every commit attempt.
type Recorder interface {
	Record(ctx context.Context, record models.CheckoutRecord) error
}

// SagaResult is the per-step outcome of a checkout: one step per order,
// then the table step.
type SagaResult struct {
	Steps []models.SagaStep `json:"steps"`
}

// NewSaga lays out the steps for a table and its billable orders, none attempted.
func NewSaga(table models.Table, orders []models.Order) SagaResult {
	steps := make([]models.SagaStep, 0, len(orders)+1)
	for _, o := range orders {
		steps = append(steps, models.SagaStep{Kind: models.StepKindOrder, TargetID: o.ID, Status: models.StepNotAttempted})
	}
	steps = append(steps, models.SagaStep{Kind: models.StepKindTable, TargetID: table.ID, Status: models.StepNotAttempted})
	return SagaResult{Steps: steps}
}

func (r SagaResult) Succeeded() bool {
	for _, step := range r.Steps {
		if step.Status != models.StepSucceeded {
			return false
		}
	}
	return len(r.Steps) > 0
}

func (r SagaResult) OrderCount() int {
	n := 0
	for _, step := range r.Steps {
		if step.Kind == models.StepKindOrder {
			n++
		}
	}
	return n
}

func (r SagaResult) CompletedOrderIDs() []int {
	var ids []int
	for _, step := range r.Steps {
		if step.Kind == models.StepKindOrder && step.Status == models.StepSucceeded {
			ids = append(ids, step.TargetID)
		}
	}
	return ids
}

func (r SagaResult) Outcome() string {
	if r.Succeeded() {
		return models.OutcomeCompleted
	}
	if len(r.CompletedOrderIDs()) > 0 {
		return models.OutcomePartial
	}
	return models.OutcomeFailed
}

func (r SagaResult) clone() SagaResult {
	return SagaResult{Steps: append([]models.SagaStep(nil), r.Steps...)}
}

// merge carries succeeded steps of a previous attempt over, so a retry
// only re-runs what did not go through.
func (r SagaResult) merge(prev *SagaResult) SagaResult {
	if prev == nil {
		return r
	}
	done := make(map[string]bool)
	for _, step := range prev.Steps {
		if step.Status == models.StepSucceeded {
			done[stepKey(step)] = true
		}
	}
	for i := range r.Steps {
		if done[stepKey(r.Steps[i])] {
			r.Steps[i].Status = models.StepSucceeded
		}
	}
	return r
}

func stepKey(step models.SagaStep) string {
	return fmt.Sprintf("%s:%d", step.Kind, step.TargetID)
}

type CommitRequest struct {
	SessionID string
	Confirmed bool
	Table     models.Table
	Orders    []models.Order
	Billing   models.Billing
	// Previous is the result of an earlier failed attempt on the same table.
	// With no billable orders left it allows a table-only retry.
	Previous *SagaResult
}

// Committer completes every billable order and then deactivates the table.
// Order updates are sequential and best-effort; the table is only touched
// once every order update has succeeded.
//
// Sagas that did not finish are remembered per table until a later attempt
// succeeds, so a rescan from any session can pick them up again.
type Committer struct {
	backend  StatusUpdater
	locker   Locker
	recorder Recorder

	mu         sync.Mutex
	unfinished map[int]SagaResult
}

func NewCommitter(backend StatusUpdater, locker Locker, recorder Recorder) *Committer {
	return &Committer{
		backend:    backend,
		locker:     locker,
		recorder:   recorder,
		unfinished: make(map[int]SagaResult),
	}
}

// Unfinished returns the last failed saga of a table, if any.
func (c *Committer) Unfinished(tableID int) (SagaResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.unfinished[tableID]
	if !ok {
		return SagaResult{}, false
	}
	return r.clone(), true
}

// Forget drops a table's unfinished saga.
func (c *Committer) Forget(tableID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.unfinished, tableID)
}

func (c *Committer) remember(tableID int, result SagaResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if result.Succeeded() {
		delete(c.unfinished, tableID)
		return
	}
	c.unfinished[tableID] = result.clone()
}

func tableLockKey(tableID int) string {
	return fmt.Sprintf("checkout:table:%d", tableID)
}

// Commit runs the saga. The returned record is non-nil whenever a step was
// attempted; a *CommitError comes back when any step did not succeed.
func (c *Committer) Commit(ctx context.Context, req CommitRequest) (*models.CheckoutRecord, error) {
	if !req.Confirmed {
		return nil, ErrCheckoutDeclined
	}
	if len(req.Orders) == 0 && req.Previous == nil {
		return nil, ErrNoBillableOrders
	}

	hold := func() error { return nil }
	if c.locker != nil {
		key := tableLockKey(req.Table.ID)
		token, ok, err := c.locker.Acquire(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: lock table %d: %v", ErrUpstreamUnavailable, req.Table.TableNumber, err)
		}
		if !ok {
			return nil, ErrTableBusy
		}
		defer func() {
			if err := c.locker.Release(context.Background(), key, token); err != nil {
				log.Printf("⚠️ Failed to release %s: %v", key, err)
			}
		}()
		hold = func() error {
			ok, err := c.locker.Extend(ctx, key, token)
			if err != nil {
				return fmt.Errorf("extend table lock: %w", err)
			}
			if !ok {
				return errLockLost
			}
			return nil
		}
	}

	result := NewSaga(req.Table, req.Orders).merge(req.Previous)
	c.run(ctx, &result, hold)
	c.remember(req.Table.ID, result)

	record := models.CheckoutRecord{
		ID:          uuid.NewString(),
		SessionID:   req.SessionID,
		TableID:     req.Table.ID,
		TableNumber: req.Table.TableNumber,
		Subtotal:    req.Billing.Subtotal,
		TaxAmount:   req.Billing.TaxAmount,
		Total:       req.Billing.Total,
		Received:    req.Billing.Received,
		Change:      req.Billing.Change,
		Shortfall:   req.Billing.Shortfall,
		Outcome:     result.Outcome(),
		Steps:       result.Steps,
		CreatedAt:   time.Now().UTC(),
	}

	if c.recorder != nil {
		if err := c.recorder.Record(ctx, record); err != nil {
			log.Printf("⚠️ Failed to record checkout %s: %v", record.ID, err)
		}
	}

	if !result.Succeeded() {
		log.Printf("⚠️ Checkout of table %d ended %s", req.Table.TableNumber, record.Outcome)
		return &record, &CommitError{Result: result}
	}

	log.Printf("✅ Table %d checked out, total ¥%d", req.Table.TableNumber, record.Total)
	return &record, nil
}

// run attempts every step that has not succeeded yet. hold is called
// before each remote call; once it fails no further step is attempted.
func (c *Committer) run(ctx context.Context, result *SagaResult, hold func() error) {
	ordersOK := true
	var holdErr error
	for i := range result.Steps {
		step := &result.Steps[i]
		if step.Status == models.StepSucceeded {
			continue
		}

		if step.Kind == models.StepKindTable && !ordersOK {
			step.Status = models.StepNotAttempted
			step.Error = ""
			continue
		}
		if ctx.Err() != nil {
			step.Status = models.StepNotAttempted
			step.Error = ctx.Err().Error()
			ordersOK = false
			continue
		}

		if holdErr == nil {
			if holdErr = hold(); holdErr != nil {
				log.Printf("❌ Stopping checkout: %v", holdErr)
			}
		}
		if holdErr != nil {
			step.Status = models.StepNotAttempted
			step.Error = holdErr.Error()
			ordersOK = false
			continue
		}

		var err error
		switch step.Kind {
		case models.StepKindOrder:
			err = c.backend.UpdateOrderStatus(ctx, step.TargetID, models.OrderStatusCompleted)
		case models.StepKindTable:
			err = c.backend.UpdateTableStatus(ctx, step.TargetID, models.TableStatusInactive)
		}

		if err != nil {
			log.Printf("❌ Failed to update %s %d: %v", step.Kind, step.TargetID, err)
			step.Status = models.StepFailed
			step.Error = err.Error()
			if step.Kind == models.StepKindOrder {
				ordersOK = false
			}
			continue
		}
		step.Status = models.StepSucceeded
		step.Error = ""
	}
}
