/*
Package events publishes committed stock events to Redis.

PURPOSE:
  Downstream consumers (a purchasing tool, a dashboard) read what the kitchen
  committed without polling the ledger. Each event type has its own Redis
  list; consumers BRPOP from the tail.

KEYS:
  <prefix>:movements.committed   every committed intent
  <prefix>:stock.low             ingredients that just became LOW or OUT

  Lists are trimmed to MaxLen after each push so an absent consumer cannot
  grow them without bound.

SEE ALSO:
  - stock/events.go: Event and Publisher
*/
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/warp/kitchen-stock/stock"
)

const (
	DefaultPrefix = "kitchen:events"
	DefaultMaxLen = 10000
)

// lister is the subset of *redis.Client the publisher uses.
type lister interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// RedisPublisher implements stock.Publisher on Redis lists.
type RedisPublisher struct {
	rdb    lister
	prefix string
	maxLen int64
}

// Connect parses redisURL, checks connectivity and returns the client.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func NewRedisPublisher(rdb *redis.Client, prefix string) *RedisPublisher {
	return newPublisher(rdb, prefix)
}

func newPublisher(rdb lister, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisPublisher{rdb: rdb, prefix: prefix, maxLen: DefaultMaxLen}
}

// Key returns the list an event type is pushed to.
func (p *RedisPublisher) Key(t stock.EventType) string {
	return p.prefix + ":" + string(t)
}

// Publish pushes e onto its list.
func (p *RedisPublisher) Publish(ctx context.Context, e stock.Event) error {
	data, err := json.Marshal(toPayload(e))
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	key := p.Key(e.Type)
	if err := p.rdb.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	if err := p.rdb.LTrim(ctx, key, 0, p.maxLen-1).Err(); err != nil {
		return fmt.Errorf("trim %s: %w", key, err)
	}
	return nil
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

type Payload struct {
	Type      string           `json:"type"`
	IntentID  string           `json:"intent_id"`
	Intent    string           `json:"intent"`
	At        time.Time        `json:"at"`
	Movements []MovementJSON   `json:"movements,omitempty"`
	Sale      *SaleJSON        `json:"sale,omitempty"`
	Stock     *StockStatusJSON `json:"stock,omitempty"`
}

type MovementJSON struct {
	ID           string          `json:"id"`
	Seq          int64           `json:"seq"`
	IngredientID string          `json:"ingredient_id"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Reference    string          `json:"reference,omitempty"`
	Note         string          `json:"note,omitempty"`
}

type SaleJSON struct {
	ID       string `json:"id"`
	MenuID   string `json:"menu_id"`
	MenuName string `json:"menu_name"`
	Quantity int    `json:"quantity"`
}

type StockStatusJSON struct {
	IngredientID string          `json:"ingredient_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	MinThreshold decimal.Decimal `json:"min_threshold"`
	Status       string          `json:"status"`
}

func toPayload(e stock.Event) Payload {
	p := Payload{
		Type:     string(e.Type),
		IntentID: e.IntentID,
		Intent:   string(e.Intent),
		At:       e.At.UTC(),
	}
	for _, m := range e.Movements {
		p.Movements = append(p.Movements, MovementJSON{
			ID:           string(m.ID),
			Seq:          m.Seq,
			IngredientID: string(m.IngredientID),
			Kind:         string(m.Kind),
			Amount:       m.Amount,
			BalanceAfter: m.BalanceAfter,
			Reference:    m.Reference,
			Note:         m.Note,
		})
	}
	if e.Sale != nil {
		p.Sale = &SaleJSON{
			ID:       string(e.Sale.ID),
			MenuID:   string(e.Sale.MenuID),
			MenuName: e.Sale.MenuName,
			Quantity: e.Sale.Quantity,
		}
	}
	if e.Type == stock.EventStockLow {
		p.Stock = &StockStatusJSON{
			IngredientID: string(e.IngredientID),
			Name:         e.Name,
			Unit:         e.Unit,
			Quantity:     e.Quantity,
			MinThreshold: e.MinThreshold,
			Status:       string(e.Status),
		}
	}
	return p
}
