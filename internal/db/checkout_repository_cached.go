package db

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/orderbase/checkout/internal/models"
)

type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

type Ledger interface {
	Create(ctx context.Context, rec models.CheckoutRecord) error
	GetByID(ctx context.Context, id string) (*models.CheckoutRecord, error)
	ListByTable(ctx context.Context, tableNumber, limit int) ([]models.CheckoutRecord, error)
}

type CachedCheckoutRepository struct {
	repo  Ledger
	cache Cache
}

func NewCachedCheckoutRepository(repo Ledger, cache Cache) *CachedCheckoutRepository {
	return &CachedCheckoutRepository{
		repo:  repo,
		cache: cache,
	}
}

// Cache key helpers
func checkoutKey(id string) string {
	return fmt.Sprintf("checkout:%s", id)
}

func tableCheckoutsKey(tableNumber, limit int) string {
	return fmt.Sprintf("checkouts:table:%d:%d", tableNumber, limit)
}

// Record stores a record; it satisfies the committer's Recorder
func (r *CachedCheckoutRepository) Record(ctx context.Context, rec models.CheckoutRecord) error {
	return r.Create(ctx, rec)
}

// Create inserts a record and invalidates the table's listings
func (r *CachedCheckoutRepository) Create(ctx context.Context, rec models.CheckoutRecord) error {
	if err := r.repo.Create(ctx, rec); err != nil {
		return err
	}

	keys := []string{checkoutKey(rec.ID)}
	for _, limit := range listLimits {
		keys = append(keys, tableCheckoutsKey(rec.TableNumber, limit))
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		log.Printf("⚠️ Failed to invalidate cache: %v", err)
	}
	log.Printf("🗑️ Cache invalidated: checkouts of table %d", rec.TableNumber)
	return nil
}

// GetByID returns a single record (with caching)
func (r *CachedCheckoutRepository) GetByID(ctx context.Context, id string) (*models.CheckoutRecord, error) {
	cacheKey := checkoutKey(id)

	var rec models.CheckoutRecord
	err := r.cache.Get(ctx, cacheKey, &rec)
	if err == nil {
		log.Printf("📦 Cache HIT: checkout %s", id)
		return &rec, nil
	}
	if err != redis.Nil {
		log.Printf("⚠️ Cache error: %v", err)
	}

	log.Printf("💾 Cache MISS: checkout %s - fetching from DB", id)
	found, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, nil
	}

	if err := r.cache.Set(ctx, cacheKey, found); err != nil {
		log.Printf("⚠️ Failed to cache checkout: %v", err)
	}
	return found, nil
}

// listLimits are the page sizes the API serves; only these get cached.
var listLimits = []int{20, 50, 100}

// ListByTable returns a table's records (with caching for known page sizes)
func (r *CachedCheckoutRepository) ListByTable(ctx context.Context, tableNumber, limit int) ([]models.CheckoutRecord, error) {
	if !cacheableLimit(limit) {
		return r.repo.ListByTable(ctx, tableNumber, limit)
	}
	cacheKey := tableCheckoutsKey(tableNumber, limit)

	var records []models.CheckoutRecord
	err := r.cache.Get(ctx, cacheKey, &records)
	if err == nil {
		log.Printf("📦 Cache HIT: checkouts of table %d", tableNumber)
		return records, nil
	}

	log.Printf("💾 Cache MISS: checkouts of table %d - fetching from DB", tableNumber)
	records, err = r.repo.ListByTable(ctx, tableNumber, limit)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, cacheKey, records); err != nil {
		log.Printf("⚠️ Failed to cache checkouts: %v", err)
	}
	return records, nil
}

func cacheableLimit(limit int) bool {
	for _, l := range listLimits {
		if l == limit {
			return true
		}
	}
	return false
}
