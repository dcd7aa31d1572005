package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-restaurant-ordering/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type quoteLog struct {
	mu     sync.Mutex
	quotes []models.DeliveryFeeQuote
}

func (l *quoteLog) add(q models.DeliveryFeeQuote) {
	l.mu.Lock()
	l.quotes = append(l.quotes, q)
	l.mu.Unlock()
}

func (l *quoteLog) all() []models.DeliveryFeeQuote {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.DeliveryFeeQuote(nil), l.quotes...)
}

func TestQuoterWaitsForAddressToSettle(t *testing.T) {
	p := new(MockRouteProvider)
	p.On("Route", mock.Anything, "12 Main St", north).Return(Route{DistanceMeters: 1000}, nil).Once()

	log := &quoteLog{}
	q := NewQuoter(newEstimator(p, nil), 20*time.Millisecond, log.add)
	defer q.Close()

	for _, partial := range []string{"1", "12", "12 Ma", "12 Main St"} {
		q.SetAddress(partial, "north")
	}
	require.Eventually(t, func() bool { return len(log.all()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	assert.Len(t, log.all(), 1)
	assert.Equal(t, int64(400), log.all()[0].Fee)
	p.AssertExpectations(t)
}

func TestQuoterDiscardsStaleQuote(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	p := new(MockRouteProvider)
	p.On("Route", mock.Anything, "old address", north).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(Route{DistanceMeters: 9000}, nil).Once()
	p.On("Route", mock.Anything, "new address", north).Return(Route{DistanceMeters: 1000}, nil).Once()

	log := &quoteLog{}
	e := NewEstimator(Options{Provider: p, Branches: []models.Branch{north}, Timeout: time.Second})
	q := NewQuoter(e, 10*time.Millisecond, log.add)
	defer q.Close()

	q.SetAddress("old address", "north")
	<-entered
	q.SetAddress("new address", "north")
	close(release)

	require.Eventually(t, func() bool { return len(log.all()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	quotes := log.all()
	require.Len(t, quotes, 1)
	assert.Equal(t, "new address", quotes[0].Address)
	latest, ok := q.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(400), latest.Fee)
}

func TestQuoterCurrentRequotesForDifferentAddress(t *testing.T) {
	p := new(MockRouteProvider)
	p.On("Route", mock.Anything, "12 Main St", north).Return(Route{DistanceMeters: 1000}, nil).Once()
	p.On("Route", mock.Anything, "99 Other Rd", north).Return(Route{DistanceMeters: 2000}, nil).Once()

	q := NewQuoter(newEstimator(p, nil), time.Hour, nil)
	defer q.Close()

	first := q.Current(context.Background(), "12 Main St", "north")
	same := q.Current(context.Background(), "12 main st", "north")
	other := q.Current(context.Background(), "99 Other Rd", "north")

	assert.Equal(t, first, same)
	assert.Equal(t, int64(500), other.Fee)
	assert.Equal(t, "99 Other Rd", other.Address)
	p.AssertExpectations(t)
}

func TestQuoterCurrentWithEmptyAddressUsesFallback(t *testing.T) {
	q := NewQuoter(newEstimator(new(MockRouteProvider), nil), time.Hour, nil)
	defer q.Close()

	quote := q.Current(context.Background(), "", "north")
	assert.True(t, quote.Fallback)
	assert.Equal(t, int64(500), quote.Fee)
	assert.Empty(t, quote.Distance)
	assert.Empty(t, quote.Duration)
}
