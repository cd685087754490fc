package application

import (
	"context"
	"errors"

	billing "busway-cloud/internal/billing/domain"
	"busway-cloud/internal/gateway"
)

// CreatedOrder is a gateway order as seen by this engine.
type CreatedOrder struct {
	OrderID  string
	Amount   int64
	Currency string
}

// OrderCreator creates payment orders at the external gateway. Amounts are
// in minor currency units.
type OrderCreator interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (CreatedOrder, error)
}

// OrderDetails is the response of a create-or-reuse order call. Amount is
// in minor currency units, as handed to the gateway checkout.
type OrderDetails struct {
	OrderID  string  `json:"order_id"`
	Amount   int64   `json:"amount"`
	Currency string  `json:"currency"`
	Total    float64 `json:"total"`
}

// PaymentOrderService creates or reuses the single gateway order of a due.
type PaymentOrderService struct {
	dues     billing.DueRepository
	students StudentReader
	orders   OrderCreator
	policy   PolicyConfig
	clock    Clock
}

// NewPaymentOrderService constructs the service.
func NewPaymentOrderService(dues billing.DueRepository, students StudentReader, orders OrderCreator, policy PolicyConfig, clock Clock) (*PaymentOrderService, error) {
	if dues == nil {
		return nil, errors.New("payment order service: nil due repository")
	}
	if students == nil {
		return nil, errors.New("payment order service: nil student reader")
	}
	if orders == nil {
		return nil, errors.New("payment order service: nil order creator")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &PaymentOrderService{dues: dues, students: students, orders: orders, policy: policy, clock: clock}, nil
}

// CreateOrUse returns the gateway order for a due, creating it on first
// call. One order per due: a due that already carries an order id gets the
// same order back, including under concurrent duplicate calls. parentID
// restricts visibility to the requester's own students; empty parentID
// bypasses the ownership check (admin).
func (s *PaymentOrderService) CreateOrUse(ctx context.Context, dueID, parentID string) (OrderDetails, error) {
	due, err := s.dues.GetByID(ctx, dueID)
	if err != nil {
		return OrderDetails{}, err
	}
	if due == nil {
		return OrderDetails{}, billing.ErrDueNotFound
	}
	if parentID != "" {
		student, err := s.students.Get(ctx, due.StudentID)
		if err != nil {
			return OrderDetails{}, err
		}
		if student == nil || student.ParentID != parentID {
			return OrderDetails{}, billing.ErrDueNotFound
		}
	}

	switch due.Status {
	case billing.StatusCaptured:
		return OrderDetails{}, billing.ErrAlreadyCaptured
	case billing.StatusWaived:
		return OrderDetails{}, billing.ErrInvalidState
	}

	if due.GatewayOrderID != "" {
		return s.existingOrder(due), nil
	}

	siblings, err := s.dues.ListByStudent(ctx, due.StudentID)
	if err != nil {
		return OrderDetails{}, err
	}
	if !billing.IsPayable(due, siblings) {
		return OrderDetails{}, billing.ErrLocked
	}

	// The order amount is the total assessed right now, not a stored value.
	assessment := s.policy.LateFee().Assess(due, s.clock.Now())
	order, err := s.orders.CreateOrder(ctx, gateway.MinorUnits(assessment.Total), s.policy.Currency, receiptFor(due))
	if err != nil {
		return OrderDetails{}, err
	}

	attached, err := s.dues.AttachOrder(ctx, due.ID, order.OrderID, assessment.Total, s.clock.Now())
	if err != nil {
		return OrderDetails{}, err
	}
	if !attached {
		// Lost a duplicate-call race; the first writer's order wins.
		due, err = s.dues.GetByID(ctx, due.ID)
		if err != nil {
			return OrderDetails{}, err
		}
		if due == nil || due.GatewayOrderID == "" {
			return OrderDetails{}, billing.ErrInvalidState
		}
		return s.existingOrder(due), nil
	}

	return OrderDetails{
		OrderID:  order.OrderID,
		Amount:   gateway.MinorUnits(assessment.Total),
		Currency: s.policy.Currency,
		Total:    assessment.Total,
	}, nil
}

// existingOrder replays the immutable order created earlier.
func (s *PaymentOrderService) existingOrder(due *billing.DueRecord) OrderDetails {
	return OrderDetails{
		OrderID:  due.GatewayOrderID,
		Amount:   gateway.MinorUnits(due.OrderAmount),
		Currency: s.policy.Currency,
		Total:    due.OrderAmount,
	}
}

func receiptFor(due *billing.DueRecord) string {
	id := due.ID
	if len(id) > 13 {
		id = id[:13]
	}
	return "rcpt_" + id
}
