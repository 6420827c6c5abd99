package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/orderbase/checkout/internal/models"
)

type State string

const (
	StateAwaitingInput    State = "AWAITING_INPUT"
	StateTableResolved    State = "TABLE_RESOLVED"
	StateBillingReady     State = "BILLING_READY"
	StateCheckoutComplete State = "CHECKOUT_COMPLETE"
)

// DefaultResetDelay is how long a completed checkout stays on screen.
const DefaultResetDelay = 3 * time.Second

const (
	opResolve = "resolve"
	opCommit  = "commit"
)

// Pipeline bundles the collaborators every session shares.
type Pipeline struct {
	Resolver   *Resolver
	Aggregator *Aggregator
	Calculator *Calculator
	Committer  *Committer
	ResetDelay time.Duration
}

// View is a copy of the session state safe to hand to callers.
type View struct {
	ID             string         `json:"id"`
	State          State          `json:"state"`
	Input          string         `json:"input"`
	Table          *models.Table  `json:"table"`
	Orders         []models.Order `json:"orders"`
	Billing        models.Billing `json:"billing"`
	CanCheckout    bool           `json:"can_checkout"`
	Busy           bool           `json:"busy"`
	Error          string         `json:"error,omitempty"`
	Warning        string         `json:"warning,omitempty"`
	Success        string         `json:"success,omitempty"`
	LastSaga       *SagaResult    `json:"last_saga,omitempty"`
	LastCheckoutID string         `json:"last_checkout_id,omitempty"`
}

// Session is one terminal's checkout, from scan to reset. Network calls
// run without holding the lock; a reset while a call is in flight bumps
// the generation and the late result is dropped.
type Session struct {
	id string
	p  Pipeline

	mu         sync.Mutex
	state      State
	input      string
	table      *models.Table
	orders     []models.Order
	received   *int64
	errMsg     string
	successMsg string
	lastSaga   *SagaResult
	lastRecord string
	busy       string
	generation uint64
	resetTimer *time.Timer
}

func NewSession(id string, p Pipeline) *Session {
	if p.ResetDelay <= 0 {
		p.ResetDelay = DefaultResetDelay
	}
	return &Session{id: id, p: p, state: StateAwaitingInput}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		ID:             s.id,
		State:          s.state,
		Input:          s.input,
		Orders:         append([]models.Order(nil), s.orders...),
		Billing:        s.p.Calculator.Calculate(s.orders, s.received),
		CanCheckout:    s.state == StateBillingReady && s.busy == "",
		Busy:           s.busy != "",
		Error:          s.errMsg,
		Success:        s.successMsg,
		LastCheckoutID: s.lastRecord,
	}
	if s.table != nil {
		t := *s.table
		v.Table = &t
	}
	if s.lastSaga != nil {
		saga := SagaResult{Steps: append([]models.SagaStep(nil), s.lastSaga.Steps...)}
		v.LastSaga = &saga
	}
	var warnings []string
	if v.Billing.HasShortfall() {
		warnings = append(warnings, fmt.Sprintf("received amount is ¥%d short", v.Billing.Shortfall))
	}
	if s.state == StateBillingReady && s.lastSaga != nil && len(s.orders) == 0 {
		warnings = append(warnings, fmt.Sprintf("table %d is still active after an unfinished checkout", s.table.TableNumber))
	}
	v.Warning = strings.Join(warnings, "; ")
	return v
}

// Resolve looks up the table behind raw and loads its billable orders.
func (s *Session) Resolve(ctx context.Context, raw string) (View, error) {
	s.mu.Lock()
	if err := s.busyErrLocked(); err != nil {
		s.mu.Unlock()
		return s.View(), err
	}
	if s.state == StateCheckoutComplete {
		s.mu.Unlock()
		return s.View(), ErrNotReady
	}

	s.clearLocked()
	s.input = raw

	number, err := ParseTableInput(raw)
	if err != nil {
		s.errMsg = err.Error()
		view := s.viewLocked()
		s.mu.Unlock()
		return view, err
	}

	s.busy = opResolve
	gen := s.generation
	s.mu.Unlock()

	table, err := s.p.Resolver.ResolveNumber(ctx, number)
	var orders []models.Order
	var ordersErr error
	if err == nil {
		orders, ordersErr = s.p.Aggregator.Billable(ctx, table.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = ""
	if gen != s.generation {
		return s.viewLocked(), context.Canceled
	}

	if err != nil {
		s.errMsg = err.Error()
		return s.viewLocked(), err
	}

	s.table = table
	s.state = StateTableResolved
	if prev, ok := s.p.Committer.Unfinished(table.ID); ok {
		if table.Status == models.TableStatusInactive {
			s.p.Committer.Forget(table.ID)
		} else {
			s.lastSaga = &prev
		}
	}
	if ordersErr != nil {
		if errors.Is(ordersErr, ErrNoBillableOrders) && s.lastSaga != nil {
			// every order went through earlier; only the table is left
			s.state = StateBillingReady
			log.Printf("📋 Session %s: table %d has an unfinished checkout", s.id, table.TableNumber)
			return s.viewLocked(), nil
		}
		s.errMsg = ordersErr.Error()
		if errors.Is(ordersErr, ErrNoBillableOrders) {
			s.orders = orders
		}
		return s.viewLocked(), ordersErr
	}

	s.orders = orders
	s.state = StateBillingReady
	log.Printf("📋 Session %s: table %d has %d pending orders", s.id, table.TableNumber, len(orders))
	return s.viewLocked(), nil
}

// SetReceived records the tendered amount; nil clears it.
func (s *Session) SetReceived(amount *int64) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount != nil && *amount < 0 {
		return s.viewLocked(), fmt.Errorf("%w: received amount must not be negative", ErrInvalidInput)
	}
	if amount == nil {
		s.received = nil
	} else {
		v := *amount
		s.received = &v
	}
	return s.viewLocked(), nil
}

// Commit runs the checkout saga for the resolved table. A shortfall does
// not block it.
func (s *Session) Commit(ctx context.Context, confirmed bool) (View, error) {
	s.mu.Lock()
	if err := s.busyErrLocked(); err != nil {
		s.mu.Unlock()
		return s.View(), err
	}
	if s.state != StateBillingReady || s.table == nil {
		s.mu.Unlock()
		return s.View(), ErrNotReady
	}
	if !confirmed {
		view := s.viewLocked()
		s.mu.Unlock()
		return view, ErrCheckoutDeclined
	}

	s.busy = opCommit
	s.errMsg = ""
	gen := s.generation
	req := CommitRequest{
		SessionID: s.id,
		Confirmed: true,
		Table:     *s.table,
		Orders:    append([]models.Order(nil), s.orders...),
		Billing:   s.p.Calculator.Calculate(s.orders, s.received),
		Previous:  s.lastSaga,
	}
	s.mu.Unlock()

	record, err := s.p.Committer.Commit(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = ""
	if gen != s.generation {
		return s.viewLocked(), context.Canceled
	}

	if record != nil {
		s.lastRecord = record.ID
	}
	if err != nil {
		var commitErr *CommitError
		if errors.As(err, &commitErr) {
			saga := commitErr.Result
			s.lastSaga = &saga
		}
		s.errMsg = err.Error()
		return s.viewLocked(), err
	}

	saga := SagaResult{Steps: record.Steps}
	s.lastSaga = &saga
	s.state = StateCheckoutComplete
	s.successMsg = fmt.Sprintf("checkout complete for table %d: ¥%d", req.Table.TableNumber, req.Billing.Total)
	s.scheduleResetLocked(gen)
	return s.viewLocked(), nil
}

// Reset returns the session to AWAITING_INPUT. Calling it again is a no-op.
func (s *Session) Reset() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return s.viewLocked()
}

func (s *Session) resetLocked() {
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
	s.clearLocked()
	s.input = ""
	s.lastRecord = ""
	s.generation++
}

func (s *Session) clearLocked() {
	s.state = StateAwaitingInput
	s.table = nil
	s.orders = nil
	s.received = nil
	s.errMsg = ""
	s.successMsg = ""
	s.lastSaga = nil
}

func (s *Session) scheduleResetLocked(gen uint64) {
	s.resetTimer = time.AfterFunc(s.p.ResetDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation != gen || s.state != StateCheckoutComplete {
			return
		}
		s.resetLocked()
		log.Printf("🔄 Session %s reset after checkout", s.id)
	})
}

func (s *Session) busyErrLocked() error {
	switch s.busy {
	case opCommit:
		return ErrCommitInProgress
	case opResolve:
		return ErrResolveInProgress
	}
	return nil
}

// Close stops a pending automatic reset.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
}
