package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/aipropiq/provisioning-service/internal/domain"
)

// InspectOrder resolves a notification into a qualification verdict.
// Identifier-only notifications are re-fetched from the order backend;
// embedded payloads are inspected at the status they were delivered
// with. A missing order is a normal negative, not a failure.
func (s *Service) InspectOrder(ctx context.Context, n OrderNotification) (Inspection, error) {
	orderID := strings.TrimSpace(n.OrderID)
	if orderID == "" {
		return Inspection{}, fmt.Errorf("%w: order id is required", domain.ErrInvalidInput)
	}

	var order domain.Order
	if n.Payload != nil {
		order = domain.Order{
			ID:        orderID,
			Status:    n.Payload.Status,
			Billing:   n.Payload.Billing,
			LineItems: n.Payload.LineItems,
			CreatedAt: n.Payload.CreatedAt,
		}
	} else {
		fetched, err := s.store.FetchOrder(ctx, orderID)
		if err != nil {
			return Inspection{}, err
		}
		order = fetched
	}

	email, err := normalizeEmail(order.Billing.Email)
	if err != nil {
		return Inspection{}, err
	}
	order.Billing.Email = email

	return Inspection{
		Qualifies: domain.OrderQualifies(order, s.cfg.Policy),
		Email:     email,
		Order:     order,
	}, nil
}

// HasAccess answers whether the email has at least one qualifying
// completed purchase, re-querying the order backend on every call. It
// applies the exact predicate used by order inspection.
func (s *Service) HasAccess(ctx context.Context, email string) (AccessStatus, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return AccessStatus{}, err
	}

	orders, err := s.store.ListOrdersByEmail(ctx, normalized)
	if err != nil {
		return AccessStatus{}, err
	}

	for _, order := range orders {
		if domain.OrderQualifies(order, s.cfg.Policy) {
			return AccessStatus{
				HasAccess:    true,
				OrderID:      order.ID,
				PurchaseDate: order.CreatedAt,
			}, nil
		}
	}
	return AccessStatus{}, nil
}

// qualifyingOrder returns the first qualifying order for email, or
// domain.ErrNotFound when none exists.
func (s *Service) qualifyingOrder(ctx context.Context, email string) (domain.Order, error) {
	orders, err := s.store.ListOrdersByEmail(ctx, email)
	if err != nil {
		return domain.Order{}, err
	}
	for _, order := range orders {
		if domain.OrderQualifies(order, s.cfg.Policy) {
			return order, nil
		}
	}
	return domain.Order{}, domain.ErrNotFound
}
