package ratelimit

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks BucketStore

import (
	"context"

	"eventreg/internal/ratelimit/models"
)

// BucketStore counts requests per key over a sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error)
	Reset(ctx context.Context, key string) error
}
