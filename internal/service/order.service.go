package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"order-pipeline/internal/database"
	"order-pipeline/internal/domain"
	"order-pipeline/internal/infrastructure/cache"
	"order-pipeline/internal/infrastructure/events"
	"order-pipeline/internal/repo"

	"go.uber.org/zap"
)

const cartClearTimeout = 5 * time.Second

// WarningCartNotCleared is reported when the order committed but the cart still holds its lines.
const WarningCartNotCleared = "order placed but the cart could not be cleared"

type CreateOrderInput struct {
	OwnerID       string
	ContactName   string
	Email         string
	Phone         string
	Address       string
	PaymentMethod domain.PaymentMethod
	Note          string
}

func (in *CreateOrderInput) normalize() {
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.ContactName = strings.TrimSpace(in.ContactName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.PaymentMethod = domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(string(in.PaymentMethod))))
	in.Note = strings.TrimSpace(in.Note)
}

func (in CreateOrderInput) validate() error {
	var missing []string
	if in.ContactName == "" {
		missing = append(missing, "name")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	} else if _, err := mail.ParseAddress(in.Email); err != nil {
		missing = append(missing, "email")
	}
	if in.Phone == "" {
		missing = append(missing, "phone")
	}
	if in.Address == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return &domain.ValidationError{Fields: missing}
	}

	if in.PaymentMethod == "" {
		return domain.ErrPaymentMethodRequired
	}
	if !in.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unsupported method %q", domain.ErrPaymentMethodRequired, in.PaymentMethod)
	}
	return nil
}

type CreateOrderResult struct {
	Order    *domain.Order
	Customer *domain.Customer
	// Warnings are non-fatal problems hit after the order was committed.
	Warnings []string
}

type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
}

type orderService struct {
	tx           database.TxRunner
	orderRepo    repo.OrderRepo
	productRepo  repo.ProductRepo
	cartRepo     repo.CartRepo
	customerRepo repo.CustomerRepo
	snapshots    cache.CartSnapshotStore
	publisher    events.Publisher
	log          *zap.Logger
	codes        *codeGenerator
	now          func() time.Time
}

func NewOrderService(
	tx database.TxRunner,
	orderRepo repo.OrderRepo,
	productRepo repo.ProductRepo,
	cartRepo repo.CartRepo,
	customerRepo repo.CustomerRepo,
	snapshots cache.CartSnapshotStore,
	publisher events.Publisher,
	loc *time.Location,
	log *zap.Logger,
) OrderService {
	if loc == nil {
		loc = time.Local
	}
	return &orderService{
		tx:           tx,
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		cartRepo:     cartRepo,
		customerRepo: customerRepo,
		snapshots:    snapshots,
		publisher:    publisher,
		log:          log,
		codes:        &codeGenerator{orderRepo: orderRepo, loc: loc},
		now:          time.Now,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.OwnerID == "" {
		return nil, domain.ErrEmptyCart
	}

	now := s.now()
	var (
		cart     *domain.Cart
		order    *domain.Order
		customer *domain.Customer
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		cart, err = s.cartRepo.LoadForOwner(ctx, tx, in.OwnerID)
		if err != nil {
			return err
		}
		if cart == nil || len(cart.Lines) == 0 {
			return domain.ErrEmptyCart
		}

		ids := make([]int64, len(cart.Lines))
		for i, l := range cart.Lines {
			ids[i] = l.ProductID
		}
		locked, err := s.productRepo.LockForUpdate(ctx, tx, ids)
		if err != nil {
			return err
		}

		lines, err := priceLines(cart.Lines, locked)
		if err != nil {
			return err
		}

		customer = &domain.Customer{Name: in.ContactName, Email: in.Email, Phone: in.Phone, Address: in.Address}
		if err := s.customerRepo.Upsert(ctx, tx, customer); err != nil {
			return err
		}

		code, err := s.codes.Next(ctx, tx, now)
		if err != nil {
			return err
		}

		order = &domain.Order{
			Code:          code,
			CustomerID:    customer.ID,
			OwnerID:       in.OwnerID,
			Total:         domain.SumLines(lines),
			Status:        in.PaymentMethod.InitialStatus(),
			PaymentMethod: in.PaymentMethod,
			ContactName:   in.ContactName,
			Email:         in.Email,
			Phone:         in.Phone,
			Address:       in.Address,
			CreatedAt:     now,
			UpdatedAt:     now,
			Lines:         lines,
		}
		if in.Note != "" {
			order.Note = domain.NoteLine(in.Note, now)
		}
		if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
			return err
		}

		if in.PaymentMethod.DecrementsAtCreation() {
			for _, l := range order.Lines {
				if err := s.productRepo.Decrement(ctx, tx, l.ProductID, l.Quantity); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &CreateOrderResult{Order: order, Customer: customer}
	s.afterCommit(ctx, cart, result)
	return result, nil
}

// priceLines checks every cart line against the locked catalog rows and prices it at the
// current catalog price. All violations are reported together.
func priceLines(cartLines []domain.CartLine, locked map[int64]domain.Product) ([]domain.OrderLine, error) {
	var violations []domain.StockViolation
	lines := make([]domain.OrderLine, 0, len(cartLines))

	for _, cl := range cartLines {
		p, ok := locked[cl.ProductID]
		switch {
		case !ok || !p.Enabled:
			name := cl.Product.Name
			if ok {
				name = p.Name
			}
			violations = append(violations, domain.StockViolation{
				Kind:        domain.ViolationUnavailable,
				ProductID:   cl.ProductID,
				ProductName: name,
				Requested:   cl.Quantity,
			})
		case cl.Quantity > p.Stock:
			violations = append(violations, domain.StockViolation{
				Kind:        domain.ViolationInsufficient,
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   cl.Quantity,
				Available:   p.Stock,
			})
		default:
			lines = append(lines, domain.NewOrderLine(p, cl.Quantity))
		}
	}

	if len(violations) > 0 {
		return nil, &domain.StockError{Violations: violations}
	}
	return lines, nil
}

// afterCommit runs the post-commit steps. None of them can fail the order.
func (s *orderService) afterCommit(ctx context.Context, cart *domain.Cart, result *CreateOrderResult) {
	order := result.Order
	detached := context.WithoutCancel(ctx)

	clearCtx, cancel := context.WithTimeout(detached, cartClearTimeout)
	defer cancel()
	if err := s.cartRepo.ClearLines(clearCtx, cart.ID); err != nil {
		s.log.Warn("cart not cleared after order commit",
			zap.String("order_code", order.Code),
			zap.Int64("cart_id", cart.ID),
			zap.Error(err),
		)
		result.Warnings = append(result.Warnings, WarningCartNotCleared)
	}

	if order.PaymentMethod == domain.PaymentGateway {
		if err := s.snapshots.Save(clearCtx, order.Code, snapshotItems(cart)); err != nil {
			s.log.Warn("cart snapshot not saved", zap.String("order_code", order.Code), zap.Error(err))
		}
	}

	publishOrderEvent(detached, s.publisher, s.log, events.TopicOrderCreated, order, "")
}

func snapshotItems(cart *domain.Cart) []cache.CartItem {
	items := make([]cache.CartItem, len(cart.Lines))
	for i, l := range cart.Lines {
		items[i] = cache.CartItem{
			ProductID: l.ProductID,
			Name:      l.Product.Name,
			ImageURL:  l.Product.ImageURL,
			Quantity:  l.Quantity,
			Price:     l.Product.Price,
		}
	}
	return items
}

func (s *orderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := s.orderRepo.FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}
