package models

import "time"

const (
	StepSucceeded    = "succeeded"
	StepFailed       = "failed"
	StepNotAttempted = "not_attempted"
)

const (
	StepKindOrder = "order"
	StepKindTable = "table"
)

const (
	OutcomeCompleted = "completed"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
)

// SagaStep is one remote mutation of a checkout and what happened to it.
type SagaStep struct {
	Kind     string `json:"kind"`
	TargetID int    `json:"target_id"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// CheckoutRecord is the ledger entry written for every commit attempt.
type CheckoutRecord struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	TableID     int        `json:"table_id"`
	TableNumber int        `json:"table_number"`
	Subtotal    int64      `json:"subtotal"`
	TaxAmount   int64      `json:"tax_amount"`
	Total       int64      `json:"total"`
	Received    *int64     `json:"received_amount"`
	Change      int64      `json:"change"`
	Shortfall   int64      `json:"shortfall"`
	Outcome     string     `json:"outcome"`
	Steps       []SagaStep `json:"steps"`
	CreatedAt   time.Time  `json:"created_at"`
}
