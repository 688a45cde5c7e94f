// Package orders wraps the cart and checkout endpoints. Every successful
// cart mutation is followed by a cart refetch that sets the shared counter
// from the server's totals.
package orders

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"storefront-go/internal/api"
	"storefront-go/internal/cart"
)

// Service calls the cart and order endpoints.
type Service struct {
	client  *api.Client
	counter *cart.Counter
	logger  zerolog.Logger
}

// NewService creates an orders service that keeps counter in sync.
func NewService(client *api.Client, counter *cart.Counter, logger zerolog.Logger) *Service {
	return &Service{
		client:  client,
		counter: counter,
		logger:  logger.With().Str("component", "orders").Logger(),
	}
}

// Cart fetches the current cart.
func (s *Service) Cart(ctx context.Context) (*cart.Cart, error) {
	var c cart.Cart
	if err := s.client.Get(ctx, "/api/orders/cart/", nil, &c); err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &c, nil
}

// ReloadCount refetches the cart and sets the counter from it.
func (s *Service) ReloadCount(ctx context.Context) (int, error) {
	c, err := s.Cart(ctx)
	if err != nil {
		return s.counter.Value(), err
	}
	n := cart.Count(*c)
	s.counter.Set(n)
	return n, nil
}

// AddItem adds to the cart. Adding an existing product increases its quantity.
func (s *Service) AddItem(ctx context.Context, req AddItemRequest) (*cart.Item, error) {
	if err := api.ValidateRequest(req); err != nil {
		return nil, err
	}
	var item cart.Item
	if err := s.client.Post(ctx, "/api/orders/cart/items/", req, &item); err != nil {
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}
	s.syncCount(ctx)
	return &item, nil
}

// UpdateItem sets the quantity of a cart line.
func (s *Service) UpdateItem(ctx context.Context, itemID int64, quantity int) (*cart.Item, error) {
	if itemID <= 0 {
		return nil, fmt.Errorf("%w: item id must be positive", api.ErrInvalidInput)
	}
	req := updateItemRequest{Quantity: quantity}
	if err := api.ValidateRequest(req); err != nil {
		return nil, err
	}
	var item cart.Item
	if err := s.client.Patch(ctx, fmt.Sprintf("/api/orders/cart/items/%d/", itemID), req, &item); err != nil {
		return nil, fmt.Errorf("failed to update cart item %d: %w", itemID, err)
	}
	s.syncCount(ctx)
	return &item, nil
}

// RemoveItem deletes a cart line.
func (s *Service) RemoveItem(ctx context.Context, itemID int64) error {
	if itemID <= 0 {
		return fmt.Errorf("%w: item id must be positive", api.ErrInvalidInput)
	}
	if err := s.client.Delete(ctx, fmt.Sprintf("/api/orders/cart/items/%d/", itemID), nil); err != nil {
		return fmt.Errorf("failed to remove cart item %d: %w", itemID, err)
	}
	s.syncCount(ctx)
	return nil
}

// CreateOrder checks out the cart. The server empties the cart, so the
// counter is reset.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if err := api.ValidateRequest(req); err != nil {
		return nil, err
	}
	var order Order
	if err := s.client.Post(ctx, "/api/orders/orders/create/", req, &order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	s.counter.Reset()
	s.logger.Info().Str("order_number", order.OrderNumber).Str("total", order.Total).Msg("Order placed")
	return &order, nil
}

// Orders lists the user's orders.
func (s *Service) Orders(ctx context.Context) ([]Order, error) {
	var page api.Page[Order]
	if err := s.client.Get(ctx, "/api/orders/orders/", nil, &page); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return page.Results, nil
}

// Order fetches one order by its number.
func (s *Service) Order(ctx context.Context, orderNumber string) (*Order, error) {
	if orderNumber == "" {
		return nil, fmt.Errorf("%w: order number is required", api.ErrInvalidInput)
	}
	var order Order
	if err := s.client.Get(ctx, "/api/orders/orders/"+url.PathEscape(orderNumber)+"/", nil, &order); err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderNumber, err)
	}
	return &order, nil
}

// syncCount refreshes the counter after a mutation. Errors are logged, not returned.
func (s *Service) syncCount(ctx context.Context) {
	if _, err := s.ReloadCount(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to refresh cart count")
	}
}
