package models

import "time"

const (
	TableStatusActive   = "active"
	TableStatusInactive = "inactive"
)

type Table struct {
	ID          int       `json:"id"`
	TableNumber int       `json:"table_number"`
	Capacity    int       `json:"capacity"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TableList struct {
	Tables []Table `json:"tables"`
}
