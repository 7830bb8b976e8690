package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"order-pipeline/internal/database"
	"order-pipeline/internal/domain"
	"order-pipeline/internal/infrastructure/events"
	"order-pipeline/internal/repo"

	"go.uber.org/zap"
)

// Actor is whoever asks for a status change.
type Actor struct {
	ID    string
	Admin bool
}

func (a Actor) label() string {
	switch {
	case a.ID == "" && a.Admin:
		return "admin"
	case a.ID == "":
		return "system"
	case a.Admin:
		return "admin " + a.ID
	}
	return a.ID
}

var systemActor = Actor{}

type LifecycleService interface {
	// Transition applies a staff action. Cancel is routed through Cancel.
	Transition(ctx context.Context, orderID int64, action domain.Action, actor Actor, note string) (*domain.Order, error)
	// Cancel cancels an order still before fulfillment and gives back any stock it holds.
	Cancel(ctx context.Context, orderID int64, actor Actor, reason string) (*domain.Order, error)
	// ExpirePendingPayment cancels an order whose payment never arrived. It reports false
	// when the order had already moved on.
	ExpirePendingPayment(ctx context.Context, orderID int64) (bool, error)
}

type lifecycleService struct {
	tx          database.TxRunner
	orderRepo   repo.OrderRepo
	productRepo repo.ProductRepo
	publisher   events.Publisher
	log         *zap.Logger
	now         func() time.Time
}

func NewLifecycleService(
	tx database.TxRunner,
	orderRepo repo.OrderRepo,
	productRepo repo.ProductRepo,
	publisher events.Publisher,
	log *zap.Logger,
) LifecycleService {
	return &lifecycleService{
		tx:          tx,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		publisher:   publisher,
		log:         log,
		now:         time.Now,
	}
}

func noteEntry(action domain.Action, actor Actor, note string) string {
	entry := fmt.Sprintf("%s by %s", action, actor.label())
	if note != "" {
		entry += ": " + note
	}
	return entry
}

func (s *lifecycleService) Transition(ctx context.Context, orderID int64, action domain.Action, actor Actor, note string) (*domain.Order, error) {
	if action == domain.ActionCancel {
		return s.Cancel(ctx, orderID, actor, note)
	}
	t, ok := domain.LookupTransition(action)
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidTransition, action)
	}

	now := s.now()
	var (
		order *domain.Order
		prev  domain.OrderStatus
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		order, err = s.orderRepo.FindByIdTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		if !t.Allows(order.Status) {
			return &domain.TransitionError{Action: action, Actual: order.Status, Allowed: t.From}
		}

		prev = order.Status
		return s.moveStatus(ctx, tx, order, action, t, noteEntry(action, actor, note), now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order status changed",
		zap.String("order_code", order.Code),
		zap.String("action", string(action)),
		zap.String("from", string(prev)),
		zap.String("to", string(order.Status)),
	)
	publishOrderEvent(ctx, s.publisher, s.log, events.TopicOrderStatusChanged, order, prev)
	return order, nil
}

// moveStatus applies t only if nobody changed the order since it was read.
func (s *lifecycleService) moveStatus(ctx context.Context, tx *sql.Tx, order *domain.Order, action domain.Action, t domain.Transition, entry string, now time.Time) error {
	moved, err := s.orderRepo.UpdateStatusIfCurrent(ctx, tx, order.ID, []domain.OrderStatus{order.Status}, t.To, entry, now)
	if err != nil {
		return err
	}
	if !moved {
		actual := order.Status
		if fresh, err := s.orderRepo.FindByIdTx(ctx, tx, order.ID); err == nil && fresh != nil {
			actual = fresh.Status
		}
		return &domain.TransitionError{Action: action, Actual: actual, Allowed: t.From}
	}

	order.Status = t.To
	order.Note = domain.AppendNote(order.Note, entry, now)
	order.UpdatedAt = now
	return nil
}

func (s *lifecycleService) Cancel(ctx context.Context, orderID int64, actor Actor, reason string) (*domain.Order, error) {
	t, _ := domain.LookupTransition(domain.ActionCancel)
	now := s.now()

	var (
		order    *domain.Order
		prev     domain.OrderStatus
		restored bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		order, err = s.orderRepo.FindByIdTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		if !actor.Admin && !order.OwnedBy(actor.ID) {
			return domain.ErrForbidden
		}
		if !t.Allows(order.Status) {
			return &domain.TransitionError{Action: domain.ActionCancel, Actual: order.Status, Allowed: t.From}
		}

		prev = order.Status
		if err := s.moveStatus(ctx, tx, order, domain.ActionCancel, t, noteEntry(domain.ActionCancel, actor, reason), now); err != nil {
			return err
		}

		if !prev.StockCommitted() {
			return nil
		}
		restored = true
		return s.restoreStock(ctx, tx, order.Lines)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order cancelled",
		zap.String("order_code", order.Code),
		zap.String("from", string(prev)),
		zap.String("actor", actor.label()),
		zap.Bool("stock_restored", restored),
	)
	publishOrderEvent(ctx, s.publisher, s.log, events.TopicOrderCancelled, order, prev)
	return order, nil
}

// restoreStock is the inverse of the decrement taken at order creation.
func (s *lifecycleService) restoreStock(ctx context.Context, tx *sql.Tx, lines []domain.OrderLine) error {
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	if _, err := s.productRepo.LockForUpdate(ctx, tx, ids); err != nil {
		return err
	}
	for _, l := range lines {
		if err := s.productRepo.Increment(ctx, tx, l.ProductID, l.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *lifecycleService) ExpirePendingPayment(ctx context.Context, orderID int64) (bool, error) {
	now := s.now()
	var order *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		order, err = s.orderRepo.FindByIdTx(ctx, tx, orderID)
		if err != nil || order == nil {
			return err
		}
		expired, err := s.orderRepo.UpdateStatusIfCurrent(ctx, tx, orderID,
			[]domain.OrderStatus{domain.OrderPendingPayment}, domain.OrderCancelled,
			noteEntry(domain.ActionCancel, systemActor, "payment window expired"), now)
		if err != nil {
			return err
		}
		if !expired {
			order = nil
			return nil
		}
		order.Status = domain.OrderCancelled
		return nil
	})
	if err != nil || order == nil {
		return false, err
	}

	publishOrderEvent(ctx, s.publisher, s.log, events.TopicOrderCancelled, order, domain.OrderPendingPayment)
	return true, nil
}
