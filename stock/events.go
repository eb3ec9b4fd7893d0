package stock

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	// EventMovementsCommitted carries every movement of one committed intent.
	EventMovementsCommitted EventType = "movements.committed"

	// EventStockLow fires when a commit moves an ingredient into LOW or OUT.
	EventStockLow EventType = "stock.low"
)

// Event is published after a durable commit. Delivery is best effort.
type Event struct {
	Type     EventType
	IntentID string
	Intent   IntentKind
	At       time.Time

	// movements.committed
	Movements []Movement
	Sale      *SaleEntry

	// stock.low
	IngredientID IngredientID
	Name         string
	Unit         string
	Quantity     decimal.Decimal
	MinThreshold decimal.Decimal
	Status       StockStatus
}

// Publisher receives committed events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
