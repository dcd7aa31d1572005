// Package delivery quotes delivery fees from a free-text address and the
// fulfilling branch. Quoting is advisory: every failure degrades to a flat fee.
package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-restaurant-ordering/metrics"
	"go-restaurant-ordering/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultFallbackFee = 500
	DefaultBaseFee     = 300
	DefaultPerKmFee    = 100
	DefaultTimeout     = 3 * time.Second
)

const (
	ReasonNoAddress     = "no address"
	ReasonUnknownBranch = "unknown branch"
	ReasonNoProvider    = "routing unavailable"
	ReasonProviderError = "routing failed"
	ReasonTimeout       = "routing timed out"
)

// Route is the provider's answer for one address and origin.
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
	DistanceText    string
	DurationText    string
}

type RouteProvider interface {
	Route(ctx context.Context, address string, origin models.Branch) (Route, error)
}

// QuoteCache stores computed quotes per normalised address and branch.
type QuoteCache interface {
	Get(ctx context.Context, address, branchID string) (models.DeliveryFeeQuote, bool, error)
	Set(ctx context.Context, quote models.DeliveryFeeQuote) error
}

// Pricing is fee = Base + ceil(km * PerKm), capped at Max when Max > 0.
type Pricing struct {
	Base     int64
	PerKm    int64
	Fallback int64
	Max      int64
}

func DefaultPricing() Pricing {
	return Pricing{Base: DefaultBaseFee, PerKm: DefaultPerKmFee, Fallback: DefaultFallbackFee}
}

type Options struct {
	Provider RouteProvider
	Cache    QuoteCache
	Branches []models.Branch
	Pricing  Pricing
	Timeout  time.Duration
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

type Estimator struct {
	provider RouteProvider
	cache    QuoteCache
	branches map[string]models.Branch
	pricing  Pricing
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewEstimator(opts Options) *Estimator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Pricing == (Pricing{}) {
		opts.Pricing = DefaultPricing()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	branches := make(map[string]models.Branch, len(opts.Branches))
	for _, b := range opts.Branches {
		branches[b.ID] = b
	}
	return &Estimator{
		provider: opts.Provider,
		cache:    opts.Cache,
		branches: branches,
		pricing:  opts.Pricing,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		now:      time.Now,
	}
}

// Estimate never fails. When the address is empty or routing is unavailable,
// slow or broken it returns the fallback quote, which has no distance or duration.
func (e *Estimator) Estimate(ctx context.Context, address, branchID string) models.DeliveryFeeQuote {
	address = strings.TrimSpace(address)
	if address == "" {
		return e.fallback(address, branchID, ReasonNoAddress)
	}
	branch, ok := e.branches[branchID]
	if !ok {
		return e.fallback(address, branchID, ReasonUnknownBranch)
	}
	if e.provider == nil {
		return e.fallback(address, branchID, ReasonNoProvider)
	}

	if e.cache != nil {
		q, hit, err := e.cache.Get(ctx, address, branchID)
		if err != nil {
			e.logger.Warn("quote cache read failed", zap.Error(err))
		} else if hit && q.ValidFor(address, branchID) {
			e.metrics.FeeQuote("cached")
			return q
		}
	}

	rctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	route, err := e.provider.Route(rctx, address, branch)
	if err != nil {
		reason := ReasonProviderError
		if rctx.Err() == context.DeadlineExceeded {
			reason = ReasonTimeout
		}
		e.logger.Warn("delivery route lookup failed",
			zap.String("branch_id", branchID), zap.String("reason", reason), zap.Error(err))
		return e.fallback(address, branchID, reason)
	}

	q := models.DeliveryFeeQuote{
		Fee:        e.Fee(route),
		Distance:   route.DistanceText,
		Duration:   route.DurationText,
		Address:    address,
		BranchID:   branchID,
		ComputedAt: e.now().UTC(),
	}
	if q.Distance == "" {
		q.Distance = fmt.Sprintf("%s km", decimal.NewFromFloat(route.DistanceMeters).Div(decimal.NewFromInt(1000)).StringFixed(1))
	}
	if q.Duration == "" {
		q.Duration = fmt.Sprintf("%d min", int64(route.DurationSeconds/60+0.5))
	}
	e.metrics.FeeQuote("computed")

	if e.cache != nil {
		if err := e.cache.Set(ctx, q); err != nil {
			e.logger.Warn("quote cache write failed", zap.Error(err))
		}
	}
	return q
}

// Fee prices a route. Kilometres are charged per started unit.
func (e *Estimator) Fee(route Route) int64 {
	km := decimal.NewFromFloat(route.DistanceMeters).Div(decimal.NewFromInt(1000))
	variable := km.Mul(decimal.NewFromInt(e.pricing.PerKm)).Ceil()
	fee := decimal.NewFromInt(e.pricing.Base).Add(variable).IntPart()
	if e.pricing.Max > 0 && fee > e.pricing.Max {
		fee = e.pricing.Max
	}
	return fee
}

func (e *Estimator) fallback(address, branchID, reason string) models.DeliveryFeeQuote {
	e.metrics.FeeQuote("fallback")
	return models.DeliveryFeeQuote{
		Fee:        e.pricing.Fallback,
		Address:    address,
		BranchID:   branchID,
		ComputedAt: e.now().UTC(),
		Fallback:   true,
		Reason:     reason,
	}
}
