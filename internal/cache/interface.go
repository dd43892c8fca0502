package cache

import (
	"context"
	"errors"
	"time"

	"github.com/staysearch/unit-index/internal/domain"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// ResultCache caches search results for their short TTL window.
type ResultCache interface {
	GetUnits(ctx context.Context, key string) (*domain.SearchResult, error)
	SetUnits(ctx context.Context, key string, result *domain.SearchResult, ttl time.Duration) error
	GetProperties(ctx context.Context, key string) (*domain.PropertyResult, error)
	SetProperties(ctx context.Context, key string, result *domain.PropertyResult, ttl time.Duration) error
	Close() error
}
