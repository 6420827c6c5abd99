package checkout

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/orderbase/checkout/internal/models"
)

// TableQueryParam is the query parameter that carries the table number in QR payloads.
const TableQueryParam = "table"

type TableSource interface {
	ListTables(ctx context.Context) ([]models.Table, error)
}

// ParseTableInput turns a scanned QR URL or a typed table number into a
// table number. It never touches the network.
func ParseTableInput(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidInput)
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return 0, fmt.Errorf("%w: malformed URL %q", ErrInvalidInput, raw)
		}
		s = strings.TrimSpace(u.Query().Get(TableQueryParam))
		if s == "" {
			return 0, fmt.Errorf("%w: URL has no %q parameter", ErrInvalidInput, TableQueryParam)
		}
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a table number", ErrInvalidInput, s)
	}
	return n, nil
}

type Resolver struct {
	tables TableSource
}

func NewResolver(tables TableSource) *Resolver {
	return &Resolver{tables: tables}
}

// Resolve parses raw and looks the table up on the backend.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*models.Table, error) {
	number, err := ParseTableInput(raw)
	if err != nil {
		return nil, err
	}
	return r.ResolveNumber(ctx, number)
}

// ResolveNumber fetches the full table list and scans it for number.
func (r *Resolver) ResolveNumber(ctx context.Context, number int) (*models.Table, error) {
	tables, err := r.tables.ListTables(ctx)
	if err != nil {
		log.Printf("❌ Failed to list tables: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	for i := range tables {
		if tables[i].TableNumber == number {
			table := tables[i]
			return &table, nil
		}
	}
	return nil, fmt.Errorf("%w: table %d", ErrTableNotFound, number)
}
