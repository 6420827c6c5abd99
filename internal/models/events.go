package models

// CheckoutRecordedEvent is published after every commit attempt.
type CheckoutRecordedEvent struct {
	Record CheckoutRecord `json:"record"`
}
