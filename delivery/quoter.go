package delivery

import (
	"context"
	"sync"
	"time"

	"go-restaurant-ordering/cartsync"
	"go-restaurant-ordering/models"
)

const DefaultSettle = 600 * time.Millisecond

const quoteKeySlot = "quote"

// Quoter keeps the latest quote for one checkout session. Address edits are
// quoted once the input has settled, and a quote that arrives after a newer
// address was entered is dropped.
type Quoter struct {
	est      *Estimator
	debounce *cartsync.Debouncer
	onQuote  func(models.DeliveryFeeQuote)

	mu     sync.Mutex
	gen    uint64
	latest models.DeliveryFeeQuote
	has    bool
}

func NewQuoter(est *Estimator, settle time.Duration, onQuote func(models.DeliveryFeeQuote)) *Quoter {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Quoter{est: est, debounce: cartsync.NewDebouncer(settle), onQuote: onQuote}
}

// SetAddress records a new address or branch and schedules a quote for it.
func (q *Quoter) SetAddress(address, branchID string) {
	q.mu.Lock()
	q.gen++
	gen := q.gen
	q.mu.Unlock()

	q.debounce.Trigger(quoteKeySlot, func() {
		quote := q.est.Estimate(context.Background(), address, branchID)
		q.apply(gen, quote)
	})
}

// Current returns the latest quote if it was computed for this address and
// branch, otherwise it quotes now.
func (q *Quoter) Current(ctx context.Context, address, branchID string) models.DeliveryFeeQuote {
	q.mu.Lock()
	if q.has && q.latest.ValidFor(address, branchID) {
		latest := q.latest
		q.mu.Unlock()
		return latest
	}
	q.gen++
	gen := q.gen
	q.mu.Unlock()

	q.debounce.Cancel(quoteKeySlot)
	quote := q.est.Estimate(ctx, address, branchID)
	q.apply(gen, quote)
	return quote
}

// Latest returns the most recent applied quote.
func (q *Quoter) Latest() (models.DeliveryFeeQuote, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.latest, q.has
}

func (q *Quoter) Close() {
	q.debounce.Stop()
}

func (q *Quoter) apply(gen uint64, quote models.DeliveryFeeQuote) {
	q.mu.Lock()
	if gen != q.gen {
		q.mu.Unlock()
		return
	}
	q.latest = quote
	q.has = true
	q.mu.Unlock()
	if q.onQuote != nil {
		q.onQuote(quote)
	}
}
