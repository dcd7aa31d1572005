// Package checkout turns a reviewed cart into exactly one order.
package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go-restaurant-ordering/cart"
	"go-restaurant-ordering/gateway"
	"go-restaurant-ordering/metrics"
	"go-restaurant-ordering/models"
	"go-restaurant-ordering/notify"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	StatusPlaced             = "placed"
	StatusPlacedWithWarnings = "placed_with_warnings"
)

var validate = validator.New()

// Session is the per-user cart state a checkout reads and tears down.
type Session interface {
	Cart() *cart.Store
	// Reconcile sends pending cart writes and reports whether a failed write
	// reverted part of the cart.
	Reconcile(ctx context.Context) (bool, error)
	Forget(ids []string)
	Quote(ctx context.Context, address, branchID string) models.DeliveryFeeQuote
}

type Request struct {
	Address        string `json:"address"`
	Phone          string `json:"phone"`
	PaymentMethod  string `json:"payment_method"`
	DeliveryWindow string `json:"delivery_window"`
	BranchID       string `json:"branch_id"`
	// IdempotencyKey is set when retrying a checkout whose outcome is unknown.
	IdempotencyKey string `json:"idempotency_key"`
}

type Result struct {
	Order    models.Order     `json:"order"`
	Outcomes []notify.Outcome `json:"notifications"`
	Status   string           `json:"status"`
}

type Options struct {
	Gateway   gateway.OrderGateway
	Fanout    *notify.Fanout
	Targets   []notify.Target
	Publisher notify.Publisher
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

type Orchestrator struct {
	gw        gateway.OrderGateway
	fanout    *notify.Fanout
	targets   []notify.Target
	publisher notify.Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Fanout == nil {
		opts.Fanout = notify.NewFanout(0, opts.Logger, opts.Metrics)
	}
	return &Orchestrator{
		gw:        opts.Gateway,
		fanout:    opts.Fanout,
		targets:   opts.Targets,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       time.Now,
		inflight:  make(map[string]struct{}),
	}
}

// PlaceOrder checks preconditions, creates the order under its idempotency key,
// notifies every target and clears the ordered lines. Only a failure to create
// the order is fatal; notification failures downgrade the result status.
func (o *Orchestrator) PlaceOrder(ctx context.Context, who models.Identity, sess Session, req Request) (Result, error) {
	if err := o.precheck(who, sess.Cart(), &req); err != nil {
		o.metrics.Checkout("invalid")
		return Result{}, err
	}
	if !o.begin(who.UserID) {
		o.metrics.Checkout("in_progress")
		return Result{}, ErrCheckoutInProgress
	}
	defer o.end(who.UserID)

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	log := o.logger.With(zap.String("user_id", who.UserID), zap.String("order_id", key))

	changed, err := sess.Reconcile(ctx)
	if err != nil {
		o.metrics.Checkout("failed")
		return Result{}, &PlacementError{OrderID: key, Err: err}
	}
	if changed {
		o.metrics.Checkout("cart_changed")
		log.Info("cart reverted during checkout, asking user to review")
		return Result{}, ErrCartChanged
	}
	lines := syncedLines(sess.Cart())
	if len(lines) == 0 {
		o.metrics.Checkout("invalid")
		return Result{}, ErrEmptyCart
	}

	quote := sess.Quote(ctx, req.Address, req.BranchID)
	now := o.now().UTC()
	order := models.Order{
		ID:             key,
		UserID:         who.UserID,
		Email:          who.Email,
		Lines:          models.LinesFromCart(lines),
		Address:        strings.TrimSpace(req.Address),
		Phone:          req.Phone,
		PaymentMethod:  req.PaymentMethod,
		DeliveryWindow: req.DeliveryWindow,
		DeliveryFee:    quote.Fee,
		Status:         models.StatusPending,
		BranchID:       req.BranchID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	order.RecomputeTotal()

	if err := o.gw.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, gateway.ErrDuplicate) {
			return o.recoverDuplicate(ctx, log, who, sess, key)
		}
		o.metrics.Checkout("failed")
		log.Error("order create failed", zap.Error(err))
		return Result{}, &PlacementError{OrderID: key, Err: err}
	}
	log.Info("order placed", zap.Int64("total", order.Total), zap.Bool("fallback_fee", quote.Fallback))

	// The order exists now; the rest must not be cut short by the caller going away.
	bg := context.WithoutCancel(ctx)
	report := o.fanout.Notify(bg, order, o.targets)
	o.teardown(bg, log, sess, lines)

	res := Result{Order: order, Outcomes: report.Outcomes, Status: StatusPlaced}
	if !report.AllDelivered() {
		res.Status = StatusPlacedWithWarnings
	}
	o.metrics.Checkout(res.Status)
	o.announce(who.UserID, res, report)
	return res, nil
}

// recoverDuplicate handles a retry whose first attempt created the order but
// never reached the client. The caller's own order is returned and its lines
// cleared; anyone else's key is rejected.
func (o *Orchestrator) recoverDuplicate(ctx context.Context, log *zap.Logger, who models.Identity, sess Session, key string) (Result, error) {
	existing, err := o.gw.GetOrder(ctx, key)
	if err != nil || existing.UserID != who.UserID {
		o.metrics.Checkout("duplicate")
		log.Info("duplicate checkout rejected")
		return Result{}, ErrDuplicateOrder
	}
	ordered := make([]models.CartLine, 0, len(existing.Lines))
	for _, l := range existing.Lines {
		ordered = append(ordered, models.CartLine{ID: l.LineID})
	}
	o.teardown(context.WithoutCancel(ctx), log, sess, ordered)
	log.Info("retried checkout matched an existing order")
	o.metrics.Checkout("recovered")
	return Result{Order: existing, Status: StatusPlaced}, nil
}

func (o *Orchestrator) precheck(who models.Identity, store *cart.Store, req *Request) error {
	if who.Anonymous() {
		return ErrUnauthenticated
	}
	if store.Len() == 0 {
		return ErrEmptyCart
	}
	if strings.TrimSpace(req.Address) == "" {
		return ErrMissingAddress
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" {
		return ErrMissingPhone
	}
	if err := validate.Var(req.Phone, "e164"); err != nil {
		return ErrInvalidPhone
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentCash
	}
	if err := validate.Var(req.PaymentMethod, "oneof=cash card"); err != nil {
		return ErrInvalidPayment
	}
	return nil
}

func (o *Orchestrator) begin(userID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[userID]; busy {
		return false
	}
	o.inflight[userID] = struct{}{}
	return true
}

func (o *Orchestrator) end(userID string) {
	o.mu.Lock()
	delete(o.inflight, userID)
	o.mu.Unlock()
}

// syncedLines skips lines whose create has not been confirmed yet.
func syncedLines(store *cart.Store) []models.CartLine {
	all := store.Lines()
	lines := make([]models.CartLine, 0, len(all))
	for _, l := range all {
		if !cart.IsLocalID(l.ID) {
			lines = append(lines, l)
		}
	}
	return lines
}

// teardown removes the ordered lines locally and then remotely. Remote deletes
// are best effort.
func (o *Orchestrator) teardown(ctx context.Context, log *zap.Logger, sess Session, lines []models.CartLine) {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ID
	}
	sess.Forget(ids)
	removed := sess.Cart().Clear(ids)
	for _, id := range removed {
		if err := o.gw.DeleteLine(ctx, id); err != nil && !errors.Is(err, gateway.ErrNotFound) {
			log.Warn("cart line cleanup failed", zap.String("line_id", id), zap.Error(err))
		}
	}
}

func (o *Orchestrator) announce(userID string, res Result, report notify.Report) {
	if o.publisher == nil {
		return
	}
	o.publisher.PublishToUser(userID, notify.Event{Event: notify.EventOrderPlaced, Payload: res})
	if failed := report.Failed(); len(failed) > 0 {
		o.publisher.PublishToUser(userID, notify.Event{Event: notify.EventNotificationFailed, Payload: failed})
	}
}
