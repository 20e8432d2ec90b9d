// Package lookup queries the external registries consulted during intake and
// case opening. A miss is reported as found=false, never as an error.
package lookup

import (
	"context"
	"strings"
	"sync"
	"time"

	"protectbox/internal/model"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// RegistryRecord is what the civil registry knows about a document
type RegistryRecord struct {
	model.Identity
	BirthDate  *time.Time `json:"birthDate,omitempty"`
	Department string     `json:"department,omitempty"`
	City       string     `json:"city,omitempty"`
	Deceased   bool       `json:"deceased"`
}

// CriminalCase is a criminal proceeding linked to a document
type CriminalCase struct {
	NUNC       string `json:"nunc"`
	Crime      string `json:"crime"`
	Role       string `json:"role"`
	Prosecutor string `json:"prosecutor"`
	Status     string `json:"status"`
}

// CivilRegistry resolves identity documents
type CivilRegistry interface {
	Lookup(ctx context.Context, documentNumber string) (RegistryRecord, bool, error)
}

// CriminalCases lists the proceedings a document appears in
type CriminalCases interface {
	Lookup(ctx context.Context, documentNumber string) ([]CriminalCase, bool, error)
}

func normalize(doc string) string {
	return strings.TrimSpace(strings.ReplaceAll(doc, ".", ""))
}

// MockRegistry serves registry records from a fixed dictionary
type MockRegistry struct {
	mu      sync.RWMutex
	records map[string]RegistryRecord
	calls   int
}

func NewMockRegistry(records map[string]RegistryRecord) *MockRegistry {
	m := &MockRegistry{records: make(map[string]RegistryRecord, len(records))}
	for k, v := range records {
		m.records[normalize(k)] = v
	}
	return m
}

func (m *MockRegistry) Lookup(ctx context.Context, documentNumber string) (RegistryRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return RegistryRecord{}, false, err
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[normalize(documentNumber)]
	return r, ok, nil
}

// Calls reports how many lookups reached the dictionary
func (m *MockRegistry) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// MockCriminalCases serves proceedings from a fixed dictionary
type MockCriminalCases struct {
	cases map[string][]CriminalCase
}

func NewMockCriminalCases(cases map[string][]CriminalCase) *MockCriminalCases {
	m := &MockCriminalCases{cases: make(map[string][]CriminalCase, len(cases))}
	for k, v := range cases {
		m.cases[normalize(k)] = v
	}
	return m
}

func (m *MockCriminalCases) Lookup(ctx context.Context, documentNumber string) ([]CriminalCase, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	cs, ok := m.cases[normalize(documentNumber)]
	if !ok || len(cs) == 0 {
		return nil, false, nil
	}
	return append([]CriminalCase(nil), cs...), true, nil
}

type cached[T any] struct {
	value T
	found bool
}

// Cache memoizes lookups, including misses, for a bounded time
type Cache[T any] struct {
	cache *expirable.LRU[string, cached[T]]
	fetch func(ctx context.Context, doc string) (T, bool, error)
	log   *zap.Logger
	name  string
}

func newCache[T any](name string, size int, ttl time.Duration, fetch func(context.Context, string) (T, bool, error), log *zap.Logger) *Cache[T] {
	return &Cache[T]{
		cache: expirable.NewLRU[string, cached[T]](size, nil, ttl),
		fetch: fetch,
		log:   log,
		name:  name,
	}
}

// Get returns the cached answer or asks the backend. Errors are not cached.
func (c *Cache[T]) Get(ctx context.Context, documentNumber string) (T, bool, error) {
	key := normalize(documentNumber)
	if hit, ok := c.cache.Get(key); ok {
		return hit.value, hit.found, nil
	}
	v, found, err := c.fetch(ctx, key)
	if err != nil {
		c.log.Warn("Lookup failed", zap.String("source", c.name), zap.Error(err))
		var zero T
		return zero, false, err
	}
	c.cache.Add(key, cached[T]{value: v, found: found})
	return v, found, nil
}

// CachedRegistry wraps a CivilRegistry with an expirable LRU
type CachedRegistry struct {
	*Cache[RegistryRecord]
}

func NewCachedRegistry(inner CivilRegistry, size int, ttl time.Duration, log *zap.Logger) *CachedRegistry {
	return &CachedRegistry{newCache("registry", size, ttl, inner.Lookup, log)}
}

func (c *CachedRegistry) Lookup(ctx context.Context, documentNumber string) (RegistryRecord, bool, error) {
	return c.Get(ctx, documentNumber)
}

// CachedCriminalCases wraps a CriminalCases source with an expirable LRU
type CachedCriminalCases struct {
	*Cache[[]CriminalCase]
}

func NewCachedCriminalCases(inner CriminalCases, size int, ttl time.Duration, log *zap.Logger) *CachedCriminalCases {
	return &CachedCriminalCases{newCache("criminal", size, ttl, inner.Lookup, log)}
}

func (c *CachedCriminalCases) Lookup(ctx context.Context, documentNumber string) ([]CriminalCase, bool, error) {
	return c.Get(ctx, documentNumber)
}
