// Package notify dispatches order notifications to independent targets and
// reports the outcome of each one.
package notify

import (
	"context"
	"fmt"
	"time"

	"go-restaurant-ordering/metrics"
	"go-restaurant-ordering/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultTargetTimeout = 10 * time.Second

// Target is one recipient of an order notification.
type Target interface {
	Name() string
	Send(ctx context.Context, order models.Order) error
}

type Outcome struct {
	Target    string `json:"target"`
	Delivered bool   `json:"delivered"`
	Reason    string `json:"reason,omitempty"`
}

type Report struct {
	Outcomes []Outcome `json:"outcomes"`
}

func (r Report) AllDelivered() bool {
	for _, o := range r.Outcomes {
		if !o.Delivered {
			return false
		}
	}
	return true
}

func (r Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.Delivered {
			failed = append(failed, o)
		}
	}
	return failed
}

type Fanout struct {
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewFanout(timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Fanout {
	if timeout <= 0 {
		timeout = DefaultTargetTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{timeout: timeout, logger: logger, metrics: m}
}

// Notify sends to every target concurrently. A failing or panicking target never
// stops the others; the report has one outcome per target, in target order.
func (f *Fanout) Notify(ctx context.Context, order models.Order, targets []Target) Report {
	outcomes := make([]Outcome, len(targets))
	var g errgroup.Group
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			outcomes[i] = f.send(ctx, order, target)
			return nil
		})
	}
	_ = g.Wait()
	return Report{Outcomes: outcomes}
}

func (f *Fanout) send(ctx context.Context, order models.Order, target Target) (out Outcome) {
	out.Target = target.Name()
	defer func() {
		if r := recover(); r != nil {
			out.Delivered = false
			out.Reason = fmt.Sprintf("panic: %v", r)
		}
		f.metrics.Notification(out.Target, out.Delivered)
		if !out.Delivered {
			f.logger.Warn("order notification failed",
				zap.String("order_id", order.ID), zap.String("target", out.Target), zap.String("reason", out.Reason))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := target.Send(ctx, order); err != nil {
		out.Reason = err.Error()
		return out
	}
	out.Delivered = true
	return out
}
