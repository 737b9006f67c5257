package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	operatorsKey      = "gov:operators"
	operatorKeyPrefix = "gov:operator:"
)

// API is the slice of the directory client the cache reads through.
//
//go:generate mockgen -source=cache.go -destination=mocks/api-mocks.go -package=mocks
type API interface {
	GetOperators(ctx context.Context) ([]OperatorRecord, error)
}

// Cache is a read-through cache over the directory's operator list. The
// list changes rarely, so entries live for a configured TTL and are
// invalidated explicitly when an operator registration goes through us.
type Cache struct {
	api    API
	kv     KV
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(api API, kv KV, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		api:    api,
		kv:     kv,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "directory_cache")),
	}
}

// ListOperators returns the operator list, from cache when useCache is set
// and a fresh copy exists. Fresh fetches repopulate both the list key and
// the per-operator keys. A cache read failure falls back to the directory;
// a cache write failure only logs, the caller still gets the list.
func (c *Cache) ListOperators(ctx context.Context, useCache bool) ([]OperatorRecord, error) {
	if useCache {
		cached, err := c.kv.Get(ctx, operatorsKey)
		if err == nil {
			var operators []OperatorRecord
			if err := json.Unmarshal([]byte(cached), &operators); err == nil {
				return operators, nil
			}
			c.logger.WarnContext(ctx, "discarding unreadable cached operator list", slog.Any("error", err))
		} else if !errors.Is(err, ErrCacheMiss) {
			c.logger.WarnContext(ctx, "operator cache read failed", slog.Any("error", err))
		}
	}

	operators, err := c.api.GetOperators(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh operator list: %w", err)
	}
	c.store(ctx, operators)
	return operators, nil
}

// GetOperatorByID resolves one operator, preferring the per-operator cache
// key and falling back to a full list refresh.
func (c *Cache) GetOperatorByID(ctx context.Context, operatorID string) (*OperatorRecord, error) {
	cached, err := c.kv.Get(ctx, operatorKeyPrefix+operatorID)
	if err == nil {
		var operator OperatorRecord
		if err := json.Unmarshal([]byte(cached), &operator); err == nil {
			return &operator, nil
		}
		c.logger.WarnContext(ctx, "discarding unreadable cached operator", slog.String("operator_id", operatorID))
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.WarnContext(ctx, "operator cache read failed", slog.Any("error", err))
	}

	operators, err := c.ListOperators(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range operators {
		if operators[i].ID == operatorID {
			return &operators[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, operatorID)
}

// Invalidate drops the cached operator list so the next read refetches it.
// Per-operator keys are left to expire on their own TTL; the list key is
// what registration flows race against.
func (c *Cache) Invalidate(ctx context.Context) error {
	if err := c.kv.Del(ctx, operatorsKey); err != nil {
		return fmt.Errorf("invalidate operator cache: %w", err)
	}
	return nil
}

func (c *Cache) store(ctx context.Context, operators []OperatorRecord) {
	payload, err := json.Marshal(operators)
	if err != nil {
		c.logger.WarnContext(ctx, "marshal operator list for cache", slog.Any("error", err))
		return
	}
	if err := c.kv.Set(ctx, operatorsKey, string(payload), c.ttl); err != nil {
		c.logger.WarnContext(ctx, "cache operator list", slog.Any("error", err))
	}
	for _, operator := range operators {
		entry, err := json.Marshal(operator)
		if err != nil {
			continue
		}
		if err := c.kv.Set(ctx, operatorKeyPrefix+operator.ID, string(entry), c.ttl); err != nil {
			c.logger.WarnContext(ctx, "cache operator entry",
				slog.String("operator_id", operator.ID), slog.Any("error", err))
		}
	}
}
