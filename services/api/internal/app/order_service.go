package app

import (
	"context"
	"strconv"
	"time"

	"github.com/cimillas/site-market/services/api/internal/clock"
	"github.com/cimillas/site-market/services/api/internal/domain"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUserForUpdate(ctx context.Context, userID string) (domain.User, error)
	ListCartItems(ctx context.Context, userID string) ([]domain.CartItem, error)
	LockSites(ctx context.Context, siteIDs []string) ([]domain.Site, error)
	FindWinningOffer(ctx context.Context, siteID, userID string) (*domain.PriceOffer, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) error
	MarkSiteSold(ctx context.Context, siteID, buyerID string, at time.Time) error
	UpdateOffer(ctx context.Context, offer domain.PriceOffer, from domain.OfferStatus) error
	DeleteCart(ctx context.Context, userID string) (int, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ConfirmOrder(ctx context.Context, orderID string, at time.Time) error
	AppendEvents(ctx context.Context, events ...domain.Event) error
}

type OrderService struct {
	repo      OrderRepository
	clock     clock.Clock
	penalizer Penalizer
}

func NewOrderService(repo OrderRepository, clk clock.Clock, penalizer Penalizer) *OrderService {
	return &OrderService{
		repo:      repo,
		clock:     clk,
		penalizer: penalizer,
	}
}

type CreateOrderInput struct {
	UserID         string
	PaymentMethod  string
	Notes          string
	IdempotencyKey string
}

type CreateOrderResult struct {
	Order   domain.Order
	Created bool
}

// CreateOrder turns the cart into an order, marks every site sold, completes
// winning offers and empties the cart in one transaction. Carts of two or more
// items must be fully reserved. Repeating a request with the same idempotency
// key returns the original order.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	if in.UserID == "" {
		return CreateOrderResult{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var (
		result  CreateOrderResult
		overdue *domain.PriceOffer
	)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetUserForUpdate(txCtx, in.UserID)
		if err != nil {
			return err
		}

		if in.IdempotencyKey != "" {
			existing, err := s.repo.GetOrderByIdempotencyKey(txCtx, in.UserID, in.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				result = CreateOrderResult{Order: *existing, Created: false}
				return nil
			}
		}

		if blocked, _ := user.BlockedAt(now); blocked {
			return domain.ErrUserBlocked
		}

		items, err := s.repo.ListCartItems(txCtx, in.UserID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return domain.ErrCartEmpty
		}
		cart := domain.Cart{UserID: in.UserID, Items: items}
		if len(items) >= domain.MinReservationItems && !cart.FullyReserved(now) {
			return domain.ErrReservationNeeded
		}

		sites, err := s.repo.LockSites(txCtx, cart.SiteIDs())
		if err != nil {
			return err
		}
		if len(sites) != len(items) {
			return domain.ErrSiteUnavailable
		}
		for _, site := range sites {
			if !site.Available() {
				return domain.ErrSiteUnavailable
			}
		}

		var offers []domain.PriceOffer
		for _, item := range items {
			if item.PriceType != domain.PriceTypeOffer {
				continue
			}
			offer, err := s.repo.FindWinningOffer(txCtx, item.SiteID, in.UserID)
			if err != nil {
				return err
			}
			if offer == nil {
				return domain.ErrNoWinningOffer
			}
			if offer.DeadlinePassed(now) {
				overdue = offer
				return nil
			}
			offers = append(offers, *offer)
		}

		order := domain.Order{
			ID:             newUUID(),
			UserID:         in.UserID,
			IdempotencyKey: in.IdempotencyKey,
			Total:          cart.Total(),
			Status:         domain.OrderStatusPending,
			PaymentMethod:  in.PaymentMethod,
			Notes:          in.Notes,
			CreatedAt:      now,
		}
		for _, item := range items {
			order.Items = append(order.Items, domain.OrderItem{
				ID:        newUUID(),
				OrderID:   order.ID,
				SiteID:    item.SiteID,
				Price:     item.Price,
				PriceType: item.PriceType,
			})
		}

		if err := s.repo.CreateOrder(txCtx, order); err != nil {
			return err
		}
		for _, item := range items {
			if err := s.repo.MarkSiteSold(txCtx, item.SiteID, in.UserID, now); err != nil {
				return err
			}
		}
		for _, offer := range offers {
			if err := offer.MarkPurchased(); err != nil {
				return err
			}
			if err := s.repo.UpdateOffer(txCtx, offer, domain.OfferStatusWinning); err != nil {
				return err
			}
		}
		if _, err := s.repo.DeleteCart(txCtx, in.UserID); err != nil {
			return err
		}

		event := newEvent(domain.EventOrderCreated, now, map[string]string{
			"order_id":       order.ID,
			"user_id":        user.ID,
			"username":       user.Username,
			"total":          order.Total.String(),
			"items":          strconv.Itoa(len(order.Items)),
			"payment_method": order.PaymentMethod,
		})
		if err := s.repo.AppendEvents(txCtx, event); err != nil {
			return err
		}

		result = CreateOrderResult{Order: order, Created: true}
		return nil
	})
	if err != nil {
		return CreateOrderResult{}, err
	}
	if overdue != nil {
		if err := s.penalizer.Penalize(ctx, overdue.ID); err != nil {
			return CreateOrderResult{}, err
		}
		return CreateOrderResult{}, domain.ErrPurchaseDeadline
	}
	return result, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListOrders(ctx, userID)
}

// GetOrder returns one of the user's orders. Orders owned by someone else
// read as not found.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (domain.Order, error) {
	if userID == "" || orderID == "" {
		return domain.Order{}, domain.ErrInvalidID
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != userID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// ConfirmOrder records payment for a pending order.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrInvalidID
	}
	now := s.clock.Now()
	var result domain.Order

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.repo.GetOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusPending {
			return domain.ErrIllegalTransition
		}
		if err := s.repo.ConfirmOrder(txCtx, orderID, now); err != nil {
			return err
		}
		order.Status = domain.OrderStatusConfirmed
		order.ConfirmedAt = &now
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return result, nil
}
