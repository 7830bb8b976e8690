package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const snapshotTTL = 24 * time.Hour

// CartItem is what a guest browser needs to rebuild its local cart after a failed payment.
type CartItem struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"imageUrl"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type CartSnapshotStore interface {
	Save(ctx context.Context, orderCode string, items []CartItem) error
	// Load returns nil without error when no snapshot exists.
	Load(ctx context.Context, orderCode string) ([]CartItem, error)
}

type redisSnapshotStore struct {
	rdb *redis.Client
}

func NewRedisSnapshotStore(rdb *redis.Client) CartSnapshotStore {
	return &redisSnapshotStore{rdb: rdb}
}

func snapshotKey(orderCode string) string {
	return "cart:snapshot:" + orderCode
}

func (s *redisSnapshotStore) Save(ctx context.Context, orderCode string, items []CartItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, snapshotKey(orderCode), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	return nil
}

func (s *redisSnapshotStore) Load(ctx context.Context, orderCode string) ([]CartItem, error) {
	b, err := s.rdb.Get(ctx, snapshotKey(orderCode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart snapshot: %w", err)
	}
	var items []CartItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode cart snapshot: %w", err)
	}
	return items, nil
}

type noopSnapshotStore struct{}

func NewNoopSnapshotStore() CartSnapshotStore { return noopSnapshotStore{} }

func (noopSnapshotStore) Save(context.Context, string, []CartItem) error     { return nil }
func (noopSnapshotStore) Load(context.Context, string) ([]CartItem, error) { return nil, nil }
