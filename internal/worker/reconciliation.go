package worker

import (
	"context"
	"time"

	"order-pipeline/internal/domain"
	"order-pipeline/internal/repo"
	"order-pipeline/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const defaultBatchSize = 100

// ReconciliationWorker cancels gateway orders whose payment never came back.
type ReconciliationWorker struct {
	orderRepo repo.OrderRepo
	lifecycle service.LifecycleService
	interval  time.Duration
	ttl       time.Duration
	batchSize int
	expired   prometheus.Counter
	log       *zap.Logger
}

func NewReconciliationWorker(
	orderRepo repo.OrderRepo,
	lifecycle service.LifecycleService,
	interval time.Duration,
	ttl time.Duration,
	expired prometheus.Counter,
	log *zap.Logger,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		orderRepo: orderRepo,
		lifecycle: lifecycle,
		interval:  interval,
		ttl:       ttl,
		batchSize: defaultBatchSize,
		expired:   expired,
		log:       log,
	}
}

// Run sweeps every interval until ctx is done. A zero interval disables the worker.
func (rw *ReconciliationWorker) Run(ctx context.Context) error {
	if rw.interval <= 0 {
		rw.log.Info("reconciliation worker disabled")
		return nil
	}

	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.log.Info("reconciliation worker started",
		zap.Duration("interval", rw.interval),
		zap.Duration("pending_payment_ttl", rw.ttl),
	)

	for {
		select {
		case <-ctx.Done():
			rw.log.Info("reconciliation worker stopped")
			return nil
		case <-ticker.C:
			if _, err := rw.process(ctx); err != nil {
				rw.log.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

// process expires one batch of stale PENDING_PAYMENT orders and returns how many it cancelled.
func (rw *ReconciliationWorker) process(ctx context.Context) (int, error) {
	stuck, err := rw.orderRepo.FindStuckOrders(ctx, domain.OrderPendingPayment, rw.ttl, rw.batchSize)
	if err != nil {
		return 0, err
	}
	if len(stuck) == 0 {
		return 0, nil
	}

	rw.log.Info("found stale pending-payment orders", zap.Int("count", len(stuck)))

	cancelled := 0
	for _, order := range stuck {
		expired, err := rw.lifecycle.ExpirePendingPayment(ctx, order.ID)
		if err != nil {
			// left for the next sweep
			rw.log.Warn("could not expire order", zap.String("order_code", order.Code), zap.Error(err))
			continue
		}
		if !expired {
			// a callback settled it after the query ran
			continue
		}
		cancelled++
		rw.expired.Inc()
		rw.log.Info("expired unpaid order", zap.String("order_code", order.Code))
	}
	return cancelled, nil
}
