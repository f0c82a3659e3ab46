package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"giftbox-checkout/internal/cache"
	"giftbox-checkout/internal/model"
	"giftbox-checkout/internal/notification"
	"giftbox-checkout/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EventKind is the closed set of gateway notifications the reconciler
// understands. Adding a kind means adding a case to HandleEvent.
type EventKind string

const (
	EventSessionCompleted      EventKind = "checkout.session.completed"
	EventPaymentSucceeded      EventKind = "payment_intent.succeeded"
	EventPaymentProcessing     EventKind = "payment_intent.processing"
	EventPaymentFailed         EventKind = "payment_intent.payment_failed"
	EventPaymentCanceled       EventKind = "payment_intent.canceled"
	EventPaymentRequiresAction EventKind = "payment_intent.requires_action"
)

// Order statuses written by the reconciler. confirmed, failed and canceled
// are terminal.
const (
	OrderStatusPending        = "pending"
	OrderStatusProcessing     = "processing"
	OrderStatusRequiresAction = "requires_action"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusFailed         = "failed"
	OrderStatusCanceled       = "canceled"
)

type SettlementResult struct {
	Duplicate bool
	Handled   bool
	OrderID   string
	Status    string
}

type SettlementService interface {
	HandleEvent(ctx context.Context, event *model.StripeEvent) (*SettlementResult, error)
}

type settlementServiceImpl struct {
	orderRepo    repository.OrderRepository
	eventRepo    repository.PaymentEventRepository
	cartRepo     repository.CartRepository
	cache        *cache.Service
	pricer       *priceResolver
	publisher    notification.PublisherInterface
	deliveryCost int64
	currency     string
}

func NewSettlementService(
	orderRepo repository.OrderRepository,
	eventRepo repository.PaymentEventRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	cacheSvc *cache.Service,
	publisher notification.PublisherInterface,
	deliveryCost int64,
	currency string,
) SettlementService {
	return &settlementServiceImpl{
		orderRepo:    orderRepo,
		eventRepo:    eventRepo,
		cartRepo:     cartRepo,
		cache:        cacheSvc,
		pricer:       newPriceResolver(productRepo, cacheSvc),
		publisher:    publisher,
		deliveryCost: deliveryCost,
		currency:     currency,
	}
}

// HandleEvent reconciles one gateway notification. Delivery is at-least-once
// and unordered, so everything behind the idempotency gate must tolerate
// re-application and stale arrival.
func (s *settlementServiceImpl) HandleEvent(ctx context.Context, event *model.StripeEvent) (*SettlementResult, error) {
	processed, err := s.eventRepo.Exists(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("check event processed: %w", err)
	}
	if processed {
		return &SettlementResult{Duplicate: true}, nil
	}

	var result *SettlementResult
	switch EventKind(event.Type) {
	case EventSessionCompleted:
		result, err = s.handleSessionCompleted(ctx, event)
	case EventPaymentSucceeded:
		result, err = s.handlePaymentChange(ctx, event, OrderStatusConfirmed)
	case EventPaymentProcessing:
		result, err = s.handlePaymentChange(ctx, event, OrderStatusProcessing)
	case EventPaymentRequiresAction:
		result, err = s.handlePaymentChange(ctx, event, OrderStatusRequiresAction)
	case EventPaymentFailed:
		result, err = s.handlePaymentChange(ctx, event, OrderStatusFailed)
	case EventPaymentCanceled:
		result, err = s.handlePaymentChange(ctx, event, OrderStatusCanceled)
	default:
		log.Printf("settlement: unhandled event type %s (%s)", event.Type, event.ID)
		result = &SettlementResult{}
	}
	if err != nil {
		return nil, err
	}

	// the effect is committed; a failed record-write only means a later
	// duplicate re-applies, which the absolute writes above tolerate
	if err := s.eventRepo.MarkProcessed(ctx, event.ID, event.Type); err != nil {
		log.Printf("settlement: record event %s: %v", event.ID, err)
	}

	return result, nil
}

// handleSessionCompleted is the sole order-creation point.
func (s *settlementServiceImpl) handleSessionCompleted(ctx context.Context, event *model.StripeEvent) (*SettlementResult, error) {
	var session model.StripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}

	// store-level guard: the unique index on session_id makes double
	// creation impossible even if two deliveries race past this check
	exists, err := s.orderRepo.ExistsBySessionID(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("check order for session: %w", err)
	}
	if exists {
		return &SettlementResult{Duplicate: true}, nil
	}

	ownerID := session.Metadata["owner_id"]
	items := s.lineItemsForSession(ctx, &session)

	var subtotal int64
	orderItems := make([]*model.OrderItem, len(items))
	for i, item := range items {
		subtotal += item.TotalPrice
		selections, _ := json.Marshal(item.Selections)
		orderItems[i] = &model.OrderItem{
			ProductID:  item.ProductID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Selections: string(selections),
		}
	}

	deliveryCost := s.deliveryCost
	if session.ShippingCost.AmountTotal > 0 {
		deliveryCost = session.ShippingCost.AmountTotal
	}
	totalAmount := session.AmountTotal
	if totalAmount == 0 {
		totalAmount = subtotal + deliveryCost
	}

	status := OrderStatusPending
	paymentStatus := session.PaymentStatus
	if session.PaymentStatus == "paid" {
		status = OrderStatusConfirmed
	}

	processedAt := time.Unix(event.Created, 0)
	order := &model.Order{
		OrderID:            uuid.NewString(),
		OwnerID:            ownerID,
		SessionID:          session.ID,
		Status:             status,
		Subtotal:           subtotal,
		DeliveryCost:       deliveryCost,
		TotalAmount:        totalAmount,
		Currency:           s.orDefaultCurrency(session.Currency),
		PaymentMethod:      "card",
		PaymentStatus:      paymentStatus,
		TransactionID:      session.PaymentIntent,
		PaymentProcessedAt: &processedAt,
		CustomerEmail:      session.Customer.Email,
	}
	for _, item := range orderItems {
		item.OrderID = order.OrderID
	}

	if err := s.orderRepo.CreateWithItems(ctx, order, orderItems); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.cleanupCart(ctx, ownerID)

	if status == OrderStatusConfirmed {
		s.publishConfirmation(ctx, order)
	}

	return &SettlementResult{Handled: true, OrderID: order.OrderID, Status: status}, nil
}

// lineItemsForSession prefers the cached session's item snapshot, then the
// owner's priced cart snapshot, then reprices the cart rows from the catalog.
// An empty result still settles, since the money side is authoritative.
func (s *settlementServiceImpl) lineItemsForSession(ctx context.Context, session *model.StripeCheckoutSession) []cache.SnapshotItem {
	if cartHash := session.Metadata["cart_hash"]; cartHash != "" {
		if cached, ok := s.cache.GetCheckoutSession(ctx, cartHash); ok {
			return cached.Items
		}
	}

	ownerID := session.Metadata["owner_id"]
	if ownerID == "" {
		return nil
	}
	if snap, ok := s.cache.GetCartSnapshot(ctx, ownerID); ok {
		return snap.Items
	}

	items, err := s.cartRepo.ItemsForOwner(ctx, ownerID)
	if err != nil {
		log.Printf("settlement: fall back to cart rows for %s: %v", ownerID, err)
		return nil
	}

	snapshot, err := s.pricer.snapshotItems(ctx, ownerID, items)
	if err != nil {
		log.Printf("settlement: reprice cart rows for %s: %v", ownerID, err)
		return nil
	}
	return snapshot
}

func (s *settlementServiceImpl) handlePaymentChange(ctx context.Context, event *model.StripeEvent, status string) (*SettlementResult, error) {
	var intent model.StripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, fmt.Errorf("decode payment intent payload: %w", err)
	}

	// the order id must ride in the event's own metadata, never guessed
	orderID := intent.Metadata["order_id"]
	if orderID == "" {
		log.Printf("settlement: event %s carries no order_id, skipping", event.ID)
		return &SettlementResult{}, nil
	}

	failureReason := ""
	if intent.LastPaymentError != nil {
		failureReason = intent.LastPaymentError.Message
	}

	order, err := s.orderRepo.UpdatePayment(ctx, orderID, &repository.PaymentUpdate{
		Status:        status,
		PaymentStatus: intent.Status,
		TransactionID: intent.LatestCharge,
		FailureReason: failureReason,
		ProcessedAt:   time.Unix(event.Created, 0),
	})
	if errors.Is(err, repository.ErrStaleUpdate) {
		log.Printf("settlement: event %s older than applied state of order %s, skipping", event.ID, orderID)
		return &SettlementResult{Handled: true, OrderID: orderID, Status: order.Status}, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// arrived before the order exists; fail so the sender redelivers
		return nil, fmt.Errorf("order %s not found for event %s: %w", orderID, event.ID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("update order payment: %w", err)
	}

	if status == OrderStatusConfirmed {
		s.publishConfirmation(ctx, order)
	}

	return &SettlementResult{Handled: true, OrderID: order.OrderID, Status: status}, nil
}

// cleanupCart drops the settled cart's rows and cache entries. Failures here
// never fail reconciliation.
func (s *settlementServiceImpl) cleanupCart(ctx context.Context, ownerID string) {
	if ownerID == "" {
		return
	}
	if err := s.cartRepo.ClearOwner(ctx, ownerID); err != nil {
		log.Printf("settlement: clear cart rows for %s: %v", ownerID, err)
	}
	s.cache.ForceClearAll(ctx, ownerID)
}

type orderConfirmedEvent struct {
	OrderID     string `json:"orderId"`
	OwnerID     string `json:"ownerId"`
	TotalAmount string `json:"totalAmount"`
	Currency    string `json:"currency"`
}

// publishConfirmation is fire and forget: a lost confirmation is an
// annoyance, a failed settlement is money.
func (s *settlementServiceImpl) publishConfirmation(ctx context.Context, order *model.Order) {
	if s.publisher == nil {
		return
	}

	amount := decimal.NewFromInt(order.TotalAmount).Div(decimal.NewFromInt(100))
	evt := orderConfirmedEvent{
		OrderID:     order.OrderID,
		OwnerID:     order.OwnerID,
		TotalAmount: amount.StringFixed(2),
		Currency:    order.Currency,
	}

	if err := s.publisher.Publish(ctx, "order.confirmed", evt); err != nil {
		log.Printf("settlement: publish confirmation for %s: %v", order.OrderID, err)
	}
}

func (s *settlementServiceImpl) orDefaultCurrency(currency string) string {
	if currency == "" {
		return s.currency
	}
	return currency
}
