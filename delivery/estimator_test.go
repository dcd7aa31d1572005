package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go-restaurant-ordering/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var north = models.Branch{ID: "north", Name: "North", Lat: 41.3, Lng: 69.2}

type MockRouteProvider struct {
	mock.Mock
}

func (m *MockRouteProvider) Route(ctx context.Context, address string, origin models.Branch) (Route, error) {
	args := m.Called(ctx, address, origin)
	return args.Get(0).(Route), args.Error(1)
}

type memoryCache struct {
	mu     sync.Mutex
	quotes map[string]models.DeliveryFeeQuote
}

func newMemoryCache() *memoryCache {
	return &memoryCache{quotes: make(map[string]models.DeliveryFeeQuote)}
}

func (c *memoryCache) Get(_ context.Context, address, branchID string) (models.DeliveryFeeQuote, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quotes[quoteKey(address, branchID)]
	return q, ok, nil
}

func (c *memoryCache) Set(_ context.Context, q models.DeliveryFeeQuote) error {
	if q.Fallback {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[quoteKey(q.Address, q.BranchID)] = q
	return nil
}

func newEstimator(p RouteProvider, cache QuoteCache) *Estimator {
	return NewEstimator(Options{
		Provider: p,
		Cache:    cache,
		Branches: []models.Branch{north},
		Timeout:  50 * time.Millisecond,
	})
}

func TestEmptyAddressReturnsFallback(t *testing.T) {
	p := new(MockRouteProvider)
	q := newEstimator(p, nil).Estimate(context.Background(), "   ", "north")

	assert.True(t, q.Fallback)
	assert.Equal(t, int64(DefaultFallbackFee), q.Fee)
	assert.Empty(t, q.Distance)
	assert.Empty(t, q.Duration)
	assert.Equal(t, ReasonNoAddress, q.Reason)
	p.AssertNotCalled(t, "Route", mock.Anything, mock.Anything, mock.Anything)
}

func TestComputedQuote(t *testing.T) {
	p := new(MockRouteProvider)
	p.On("Route", mock.Anything, "12 Main St", north).
		Return(Route{DistanceMeters: 3200, DurationSeconds: 840}, nil).Once()

	q := newEstimator(p, nil).Estimate(context.Background(), " 12 Main St ", "north")
	assert.False(t, q.Fallback)
	assert.Equal(t, int64(300+320), q.Fee)
	assert.Equal(t, "3.2 km", q.Distance)
	assert.Equal(t, "14 min", q.Duration)
	assert.True(t, q.ValidFor("12 main st", "north"))
	p.AssertExpectations(t)
}

func TestFeeRoundsStartedUnitsUpAndCaps(t *testing.T) {
	e := NewEstimator(Options{Pricing: Pricing{Base: 300, PerKm: 100, Fallback: 500, Max: 1000}})
	assert.Equal(t, int64(301), e.Fee(Route{DistanceMeters: 1}))
	assert.Equal(t, int64(300), e.Fee(Route{DistanceMeters: 0}))
	assert.Equal(t, int64(1000), e.Fee(Route{DistanceMeters: 50000}))
}

func TestProviderErrorFallsBack(t *testing.T) {
	p := new(MockRouteProvider)
	p.On("Route", mock.Anything, mock.Anything, mock.Anything).Return(Route{}, errors.New("quota")).Once()

	q := newEstimator(p, nil).Estimate(context.Background(), "12 Main St", "north")
	assert.True(t, q.Fallback)
	assert.Equal(t, ReasonProviderError, q.Reason)
	assert.Empty(t, q.Distance)
}

func TestSlowProviderTimesOut(t *testing.T) {
	p := new(MockRouteProvider)
	p.On("Route", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(Route{}, context.DeadlineExceeded).Once()

	start := time.Now()
	q := newEstimator(p, nil).Estimate(context.Background(), "12 Main St", "north")
	assert.True(t, q.Fallback)
	assert.Equal(t, ReasonTimeout, q.Reason)
	assert.Less(t, time.Since(start), time.Second)
}

func TestUnknownBranchAndMissingProvider(t *testing.T) {
	q := newEstimator(new(MockRouteProvider), nil).Estimate(context.Background(), "12 Main St", "south")
	assert.Equal(t, ReasonUnknownBranch, q.Reason)

	q = newEstimator(nil, nil).Estimate(context.Background(), "12 Main St", "north")
	assert.Equal(t, ReasonNoProvider, q.Reason)
	assert.Equal(t, int64(DefaultFallbackFee), q.Fee)
}

func TestCacheIsKeyedByAddressAndBranch(t *testing.T) {
	p := new(MockRouteProvider)
	p.On("Route", mock.Anything, "12 Main St", north).Return(Route{DistanceMeters: 1000}, nil).Once()
	p.On("Route", mock.Anything, "99 Other Rd", north).Return(Route{DistanceMeters: 5000}, nil).Once()

	e := newEstimator(p, newMemoryCache())
	first := e.Estimate(context.Background(), "12 Main St", "north")
	again := e.Estimate(context.Background(), "12  MAIN st", "north")
	other := e.Estimate(context.Background(), "99 Other Rd", "north")

	assert.Equal(t, first.Fee, again.Fee)
	assert.Equal(t, int64(400), first.Fee)
	assert.Equal(t, int64(800), other.Fee)
	p.AssertExpectations(t)
}

func TestHTTPRouteProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/route", r.URL.Path)
		assert.Equal(t, "12 Main St", r.URL.Query().Get("address"))
		assert.Equal(t, "41.3", r.URL.Query().Get("lat"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","distance_meters":2500,"duration_seconds":600,"distance_text":"2.5 km","duration_text":"10 mins"}`))
	}))
	defer srv.Close()

	route, err := NewHTTPRouteProvider(srv.URL, "k").Route(context.Background(), "12 Main St", north)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, route.DistanceMeters)
	assert.Equal(t, "10 mins", route.DurationText)
}

func TestHTTPRouteProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("address") == "nowhere" {
			_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS"}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewHTTPRouteProvider(srv.URL, "")
	_, err := p.Route(context.Background(), "nowhere", north)
	assert.ErrorContains(t, err, "ZERO_RESULTS")
	_, err = p.Route(context.Background(), "somewhere", north)
	assert.ErrorContains(t, err, "503")
}
