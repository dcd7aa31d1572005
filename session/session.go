// Package session holds the live cart state of each signed-in user.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go-restaurant-ordering/cart"
	"go-restaurant-ordering/cartsync"
	"go-restaurant-ordering/delivery"
	"go-restaurant-ordering/gateway"
	"go-restaurant-ordering/metrics"
	"go-restaurant-ordering/models"
	"go-restaurant-ordering/notify"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Session is one user's cart, its sync controller and delivery fee quoter.
type Session struct {
	UserID string
	Sync   *cartsync.Controller
	Quoter *delivery.Quoter

	lastUsed    atomic.Int64
	unsubscribe func()
}

func (s *Session) Cart() *cart.Store { return s.Sync.Store() }

func (s *Session) Flush(ctx context.Context) error { return s.Sync.Flush(ctx) }

func (s *Session) Reconcile(ctx context.Context) (bool, error) { return s.Sync.Reconcile(ctx) }

func (s *Session) Forget(ids []string) { s.Sync.Forget(ids) }

func (s *Session) Quote(ctx context.Context, address, branchID string) models.DeliveryFeeQuote {
	return s.Quoter.Current(ctx, address, branchID)
}

func (s *Session) close() {
	s.unsubscribe()
	s.Sync.Close()
	s.Quoter.Close()
}

const (
	DefaultLoadTimeout = 5 * time.Second
	DefaultIdleTimeout = 30 * time.Minute
)

type Options struct {
	Gateway   gateway.OrderGateway
	Estimator *delivery.Estimator
	Publisher notify.Publisher
	Window    time.Duration
	Settle    time.Duration
	// LoadTimeout bounds the cart hydration of a new session.
	LoadTimeout time.Duration
	// IdleTimeout is how long an unused session with no pending edits lives.
	IdleTimeout time.Duration
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// Manager creates sessions on first use and hydrates them from the gateway.
// Concurrent first requests for one user share a single load; other users are
// never blocked by it.
type Manager struct {
	opts  Options
	group singleflight.Group
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Estimator == nil {
		opts.Estimator = delivery.NewEstimator(delivery.Options{Logger: opts.Logger, Metrics: opts.Metrics})
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &Manager{opts: opts, now: time.Now, sessions: make(map[string]*Session)}
}

// Get returns the user's session, loading the cart from the backend the first
// time.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	if s, ok := m.lookup(userID); ok {
		return s, nil
	}

	ch := m.group.DoChan(userID, func() (interface{}, error) {
		if s, ok := m.lookup(userID); ok {
			return s, nil
		}
		s := m.build(userID)
		// Waiters share this load, so one caller leaving must not cancel it.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.LoadTimeout)
		defer cancel()
		if err := s.Sync.Load(lctx); err != nil {
			s.close()
			return nil, fmt.Errorf("open session for %s: %w", userID, err)
		}
		s.lastUsed.Store(m.now().UnixNano())
		m.mu.Lock()
		m.sessions[userID] = s
		m.mu.Unlock()
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) lookup(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if ok {
		s.lastUsed.Store(m.now().UnixNano())
	}
	return s, ok
}

func (m *Manager) build(userID string) *Session {
	pub := m.opts.Publisher
	store := cart.NewStore(userID)
	ctrl := cartsync.NewController(store, m.opts.Gateway, cartsync.Options{
		Window:  m.opts.Window,
		Logger:  m.opts.Logger,
		Metrics: m.opts.Metrics,
		OnError: func(e cartsync.SyncError) {
			if pub != nil {
				pub.PublishToUser(userID, notify.Event{Event: notify.EventSyncError, Payload: map[string]string{
					"line_id": e.LineID,
					"op":      e.Op,
					"message": "Could not save your cart change. It has been undone.",
				}})
			}
		},
	})
	quoter := delivery.NewQuoter(m.opts.Estimator, m.opts.Settle, func(q models.DeliveryFeeQuote) {
		if pub != nil {
			pub.PublishToUser(userID, notify.Event{Event: notify.EventQuoteUpdated, Payload: q})
		}
	})
	unsubscribe := store.Subscribe(func(lines []models.CartLine) {
		if pub != nil {
			pub.PublishToUser(userID, notify.Event{Event: notify.EventCartUpdated, Payload: lines})
		}
	})
	return &Session{UserID: userID, Sync: ctrl, Quoter: quoter, unsubscribe: unsubscribe}
}

// Close flushes and drops the user's session.
func (m *Manager) Close(ctx context.Context, userID string) error {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	err := s.Flush(ctx)
	s.close()
	return err
}

// EvictIdle closes sessions unused for longer than the idle timeout. Sessions
// with unconfirmed edits are kept.
func (m *Manager) EvictIdle(ctx context.Context) int {
	cutoff := m.now().Add(-m.opts.IdleTimeout).UnixNano()
	m.mu.Lock()
	var idle []string
	for id, s := range m.sessions {
		if s.lastUsed.Load() < cutoff && !s.Sync.Dirty() {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	for _, id := range idle {
		if err := m.Close(ctx, id); err != nil {
			m.opts.Logger.Warn("flush cart on eviction failed", zap.String("user_id", id), zap.Error(err))
		}
	}
	return len(idle)
}

// Run evicts idle sessions periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(ctx); n > 0 {
				m.opts.Logger.Debug("evicted idle cart sessions", zap.Int("count", n))
			}
		}
	}
}

// Shutdown flushes every session so no pending cart edit is lost.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		if err := m.Close(ctx, id); err != nil {
			m.opts.Logger.Warn("flush cart on shutdown failed", zap.String("user_id", id), zap.Error(err))
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
