package cartsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-restaurant-ordering/cart"
	"go-restaurant-ordering/gateway"
	"go-restaurant-ordering/metrics"
	"go-restaurant-ordering/models"

	"go.uber.org/zap"
)

const (
	DefaultWindow       = 300 * time.Millisecond
	DefaultWriteTimeout = 10 * time.Second
)

var ErrClosed = errors.New("cart sync is closed")

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// SyncError reports a cart write that failed and was reverted locally.
type SyncError struct {
	LineID string
	Op     string
	Err    error
}

func (e SyncError) Error() string {
	return fmt.Sprintf("cart %s %s failed: %v", e.Op, e.LineID, e.Err)
}

func (e SyncError) Unwrap() error { return e.Err }

// lineState tracks one line between the backend's last confirmed state and the
// optimistic local state.
type lineState struct {
	baseline cart.Snapshot
	gen      uint64
	dirty    bool
}

type Options struct {
	Window       time.Duration
	WriteTimeout time.Duration
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	// OnError is called for every write failure that caused a rollback.
	OnError func(SyncError)
}

// Controller mediates all cart edits of one user: it applies them to the store,
// debounces them per line and reconciles the outcome of each backend write.
type Controller struct {
	store    *cart.Store
	gw       gateway.OrderGateway
	debounce *Debouncer
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
	onError  func(SyncError)

	mu       sync.Mutex
	lines    map[string]*lineState
	reverted uint64
	closed   bool
}

func NewController(store *cart.Store, gw gateway.OrderGateway, opts Options) *Controller {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		store:    store,
		gw:       gw,
		debounce: NewDebouncer(opts.Window),
		timeout:  opts.WriteTimeout,
		logger:   opts.Logger.With(zap.String("user_id", store.UserID())),
		metrics:  opts.Metrics,
		onError:  opts.OnError,
		lines:    make(map[string]*lineState),
	}
}

func (c *Controller) Store() *cart.Store { return c.store }

// Load replaces the local cart with the user's pending lines from the backend.
func (c *Controller) Load(ctx context.Context) error {
	lines, err := c.gw.ListLines(ctx, c.store.UserID())
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	c.mu.Lock()
	c.lines = make(map[string]*lineState)
	c.store.Replace(lines)
	c.mu.Unlock()
	return nil
}

// AddLine inserts the line speculatively and persists it right away. On failure
// the speculative line is removed and the error returned.
func (c *Controller) AddLine(ctx context.Context, line models.CartLine) (models.CartLine, error) {
	if c.isClosed() {
		return models.CartLine{}, ErrClosed
	}
	local := c.store.AddLine(line)

	// Once the insert is sent it must be reconciled even if the caller leaves.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	toSave := local
	toSave.ID = ""
	id, err := c.gw.CreateLine(ctx, toSave)
	if err != nil {
		c.store.Discard(local.ID)
		c.metrics.SyncWrite(OpCreate, "error")
		c.logger.Warn("cart line create failed", zap.String("item_id", line.ItemID), zap.Error(err))
		return models.CartLine{}, SyncError{LineID: local.ID, Op: OpCreate, Err: err}
	}
	c.metrics.SyncWrite(OpCreate, "ok")

	saved, err := c.store.Promote(local.ID, id)
	if err != nil {
		// The cart was cleared while the create was in flight.
		c.logger.Info("dropping cart line created after clear", zap.String("line_id", id))
		delCtx, delCancel := context.WithTimeout(context.Background(), c.timeout)
		defer delCancel()
		if derr := c.gw.DeleteLine(delCtx, id); derr != nil {
			c.logger.Warn("orphan cart line delete failed", zap.String("line_id", id), zap.Error(derr))
		}
		return models.CartLine{}, err
	}
	return saved, nil
}

// ChangeQuantity applies delta locally at once and schedules one write for the
// line. It returns the new quantity; zero means the line was removed.
func (c *Controller) ChangeQuantity(lineID string, delta int) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	st := c.stateLocked(lineID)
	m, err := c.store.ChangeQuantity(lineID, delta)
	if err != nil {
		c.forgetCleanLocked(lineID, st)
		c.mu.Unlock()
		return 0, err
	}
	st.gen++
	st.dirty = true
	c.mu.Unlock()

	c.debounce.Trigger(lineID, func() { c.persist(lineID) })
	if m.Removed {
		return 0, nil
	}
	return m.After.Quantity, nil
}

// RemoveLine deletes the line locally and replaces any pending update for it with
// a delete.
func (c *Controller) RemoveLine(lineID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	st := c.stateLocked(lineID)
	if _, err := c.store.RemoveLine(lineID); err != nil {
		c.forgetCleanLocked(lineID, st)
		c.mu.Unlock()
		return err
	}
	st.gen++
	st.dirty = true
	c.mu.Unlock()

	c.debounce.Trigger(lineID, func() { c.persist(lineID) })
	return nil
}

// Flush sends every pending write now and waits for all writes to settle.
func (c *Controller) Flush(ctx context.Context) error {
	return c.debounce.Flush(ctx)
}

// Reconcile flushes like Flush and reports whether any write failed and was
// reverted while it ran, i.e. whether the cart now differs from what the user
// last saw.
func (c *Controller) Reconcile(ctx context.Context) (bool, error) {
	c.mu.Lock()
	before := c.reverted
	c.mu.Unlock()
	if err := c.debounce.Flush(ctx); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reverted != before, nil
}

// Dirty reports whether any line has edits the backend has not confirmed.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.lines {
		if st.dirty {
			return true
		}
	}
	return false
}

// Forget cancels pending writes for lines that were removed by checkout.
func (c *Controller) Forget(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.debounce.Cancel(id)
		delete(c.lines, id)
	}
}

// Close drops pending writes. Writes already in flight complete.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.debounce.Stop()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// stateLocked returns the line's state, capturing the current store value as the
// baseline if the line has no unconfirmed edits.
func (c *Controller) stateLocked(lineID string) *lineState {
	st, ok := c.lines[lineID]
	if !ok {
		st = &lineState{}
		c.lines[lineID] = st
	}
	if !st.dirty {
		st.baseline = c.store.Capture(lineID)
	}
	return st
}

func (c *Controller) forgetCleanLocked(lineID string, st *lineState) {
	if !st.dirty {
		delete(c.lines, lineID)
	}
}

// persist writes the latest local state of the line. It runs on the debouncer,
// which never runs two writes for the same line at once.
func (c *Controller) persist(lineID string) {
	c.mu.Lock()
	st, ok := c.lines[lineID]
	if !ok {
		c.mu.Unlock()
		return
	}
	gen := st.gen
	written := c.store.Capture(lineID)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	op := OpUpdate
	var err error
	if written.Exists {
		err = c.gw.UpdateLine(ctx, lineID, written.Line.Quantity, written.Line.Total)
	} else {
		op = OpDelete
		err = c.gw.DeleteLine(ctx, lineID)
		if errors.Is(err, gateway.ErrNotFound) {
			err = nil
		}
	}
	c.settle(lineID, gen, written, op, err)
}

func (c *Controller) settle(lineID string, gen uint64, written cart.Snapshot, op string, err error) {
	c.mu.Lock()
	st, ok := c.lines[lineID]
	if !ok {
		c.mu.Unlock()
		return
	}
	superseded := st.gen != gen
	if err == nil {
		st.baseline = written
		if !superseded {
			st.dirty = false
			if !written.Exists {
				delete(c.lines, lineID)
			}
		}
		c.mu.Unlock()
		c.metrics.SyncWrite(op, "ok")
		return
	}
	if !superseded {
		c.store.Rollback(st.baseline)
		c.reverted++
		st.dirty = false
		if !st.baseline.Exists {
			delete(c.lines, lineID)
		}
	}
	c.mu.Unlock()

	c.metrics.SyncWrite(op, "error")
	if superseded {
		c.logger.Info("discarding rollback for superseded cart write",
			zap.String("line_id", lineID), zap.String("op", op), zap.Error(err))
		return
	}
	c.metrics.Rollback()
	c.logger.Warn("cart write failed, reverted",
		zap.String("line_id", lineID), zap.String("op", op), zap.Error(err))
	if c.onError != nil {
		c.onError(SyncError{LineID: lineID, Op: op, Err: err})
	}
}
