package app

import (
	"context"
	"log/slog"
	"sync"

	"autoeden/pkg/domain"
)

// Domain events published on state changes. Side effects (notifications,
// cache invalidation, saved-search matching) subscribe to the bus instead
// of being welded into the write paths.

// VehicleSubmitted fires when a listing is created.
type VehicleSubmitted struct {
	Vehicle domain.Vehicle
	Owner   domain.User
}

// VehicleReviewed fires when an admin changes a verification state.
type VehicleReviewed struct {
	Vehicle  domain.Vehicle
	Previous domain.VerificationState
	Owner    domain.User
}

// VehicleChanged fires on any vehicle write, including deletes. Cache
// invalidation keys off this.
type VehicleChanged struct {
	VehicleID string
}

// BidPlaced fires when a buyer places a bid.
type BidPlaced struct {
	Bid     domain.Bid
	Vehicle domain.Vehicle
	Bidder  domain.User
}

// BidDecided fires when an admin accepts or rejects a bid.
type BidDecided struct {
	Bid     domain.Bid
	Vehicle domain.Vehicle
}

// UserRegistered fires when a new account is created.
type UserRegistered struct {
	User domain.User
}

// QuoteCreated fires when a quote request is stored. PDF may be nil when
// rendering failed; the quote itself still exists.
type QuoteCreated struct {
	Quote   domain.QuoteRequest
	Vehicle domain.Vehicle
	PDF     []byte
}

// SearchMatched fires when a new listing satisfies a saved search.
type SearchMatched struct {
	Search  domain.VehicleSearch
	Vehicle domain.Vehicle
}

// Bus is a synchronous in-process event bus. Handlers must not block for
// long; anything slow goes through the task queue.
type Bus struct {
	mu       sync.RWMutex
	handlers []func(context.Context, any)
}

// NewBus builds an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all events.
func (b *Bus) Subscribe(handler func(context.Context, any)) {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
}

// Publish delivers the event to every handler in order. A panicking
// handler is contained so one bad subscriber cannot break a write path.
func (b *Bus) Publish(ctx context.Context, event any) {
	b.mu.RLock()
	handlers := make([]func(context.Context, any), len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("event handler panic", "event", eventName(event), "panic", r)
				}
			}()
			handler(ctx, event)
		}()
	}
}

func eventName(event any) string {
	switch event.(type) {
	case VehicleSubmitted:
		return "vehicle_submitted"
	case VehicleReviewed:
		return "vehicle_reviewed"
	case VehicleChanged:
		return "vehicle_changed"
	case BidPlaced:
		return "bid_placed"
	case BidDecided:
		return "bid_decided"
	case UserRegistered:
		return "user_registered"
	case QuoteCreated:
		return "quote_created"
	case SearchMatched:
		return "search_matched"
	default:
		return "unknown"
	}
}
