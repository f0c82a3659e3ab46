package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"giftbox-checkout/internal/cache"
	"giftbox-checkout/internal/mocks"
	"giftbox-checkout/internal/model"
	"giftbox-checkout/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type settlementFixture struct {
	orderRepo   *mocks.MockOrderRepository
	eventRepo   *mocks.MockPaymentEventRepository
	cartRepo    *mocks.MockCartRepository
	productRepo *mocks.MockProductRepository
	cache       *cache.Service
	publisher   *mocks.MockPublisher
	svc         SettlementService
}

func newSettlementFixture() *settlementFixture {
	f := &settlementFixture{
		orderRepo:   new(mocks.MockOrderRepository),
		eventRepo:   new(mocks.MockPaymentEventRepository),
		cartRepo:    new(mocks.MockCartRepository),
		productRepo: new(mocks.MockProductRepository),
		cache:       newTestCache(),
		publisher:   new(mocks.MockPublisher),
	}
	f.svc = NewSettlementService(f.orderRepo, f.eventRepo, f.cartRepo, f.productRepo, f.cache, f.publisher, 500, "usd")
	return f
}

func sessionCompletedEvent(eventID, sessionID string) *model.StripeEvent {
	session := model.StripeCheckoutSession{
		ID:            sessionID,
		Status:        "complete",
		PaymentStatus: "paid",
		PaymentIntent: "pi_1",
		AmountTotal:   2800,
		Currency:      "usd",
		Customer:      model.CustomerDetails{Email: "buyer@example.com"},
		Metadata: map[string]string{
			"owner_id":  "user:42",
			"cart_hash": "hash123",
		},
	}
	payload, _ := json.Marshal(session)
	return &model.StripeEvent{
		ID:      eventID,
		Type:    "checkout.session.completed",
		Created: time.Now().Unix(),
		Data:    model.StripeEventData{Object: payload},
	}
}

func paymentIntentEvent(eventID, eventType, orderID string, created time.Time) *model.StripeEvent {
	intent := model.StripePaymentIntent{
		ID:           "pi_1",
		Status:       "succeeded",
		LatestCharge: "ch_1",
		Metadata:     map[string]string{"order_id": orderID},
	}
	payload, _ := json.Marshal(intent)
	return &model.StripeEvent{
		ID:      eventID,
		Type:    eventType,
		Created: created.Unix(),
		Data:    model.StripeEventData{Object: payload},
	}
}

func (f *settlementFixture) cacheSessionItems(cartHash string) {
	f.cache.PutCheckoutSession(context.Background(), &cache.CheckoutSession{
		SessionID: "cs_1",
		CartHash:  cartHash,
		Items: []cache.SnapshotItem{
			{ProductID: "giftbox_classic", Name: "Classic Gift Box", Quantity: 2, UnitPrice: 1150, TotalPrice: 2300},
		},
		ExpiresAt: time.Now().Add(time.Hour),
	})
}

func TestHandleEventSessionCompletedCreatesOrderOnce(t *testing.T) {
	f := newSettlementFixture()
	f.cacheSessionItems("hash123")

	f.eventRepo.On("Exists", mock.Anything, "evt_1").Return(false, nil).Once()
	f.orderRepo.On("ExistsBySessionID", mock.Anything, "cs_1").Return(false, nil)

	var createdOrder *model.Order
	f.orderRepo.On("CreateWithItems", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			createdOrder = args.Get(1).(*model.Order)
		}).
		Return(nil)
	f.cartRepo.On("ClearOwner", mock.Anything, "user:42").Return(nil)
	f.publisher.On("Publish", mock.Anything, "order.confirmed", mock.Anything).Return(nil)
	f.eventRepo.On("MarkProcessed", mock.Anything, "evt_1", "checkout.session.completed").Return(nil)

	result, err := f.svc.HandleEvent(context.Background(), sessionCompletedEvent("evt_1", "cs_1"))

	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, OrderStatusConfirmed, result.Status)
	assert.NotEmpty(t, result.OrderID)

	require.NotNil(t, createdOrder)
	assert.Equal(t, "cs_1", createdOrder.SessionID)
	assert.Equal(t, int64(2300), createdOrder.Subtotal)
	assert.Equal(t, int64(2800), createdOrder.TotalAmount)
	assert.Equal(t, "buyer@example.com", createdOrder.CustomerEmail)

	// second delivery of the same event id is a pure no-op
	f.eventRepo.On("Exists", mock.Anything, "evt_1").Return(true, nil).Once()

	result2, err := f.svc.HandleEvent(context.Background(), sessionCompletedEvent("evt_1", "cs_1"))

	require.NoError(t, err)
	assert.True(t, result2.Duplicate)
	f.orderRepo.AssertNumberOfCalls(t, "CreateWithItems", 1)
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestHandleEventSessionCompletedRepricesEvictedSnapshot(t *testing.T) {
	// the cached session can expire before the webhook lands; the fallback
	// must settle with real prices, never zeroed line items
	f := newSettlementFixture()

	f.eventRepo.On("Exists", mock.Anything, "evt_10").Return(false, nil)
	f.orderRepo.On("ExistsBySessionID", mock.Anything, "cs_1").Return(false, nil)
	f.cartRepo.On("ItemsForOwner", mock.Anything, "user:42").Return(classicCartItems(), nil)
	f.productRepo.On("FindMany", mock.Anything, []string{"giftbox_classic"}).Return(classicProduct(), nil)
	f.productRepo.On("OptionsForProduct", mock.Anything, "giftbox_classic").Return(classicOptions(), nil)

	var createdOrder *model.Order
	var createdItems []*model.OrderItem
	f.orderRepo.On("CreateWithItems", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			createdOrder = args.Get(1).(*model.Order)
			createdItems = args.Get(2).([]*model.OrderItem)
		}).
		Return(nil)
	f.cartRepo.On("ClearOwner", mock.Anything, "user:42").Return(nil)
	f.publisher.On("Publish", mock.Anything, "order.confirmed", mock.Anything).Return(nil)
	f.eventRepo.On("MarkProcessed", mock.Anything, "evt_10", "checkout.session.completed").Return(nil)

	_, err := f.svc.HandleEvent(context.Background(), sessionCompletedEvent("evt_10", "cs_1"))

	require.NoError(t, err)
	require.NotNil(t, createdOrder)
	// base 1000 + gold ribbon 150, quantity 2
	assert.Equal(t, int64(2300), createdOrder.Subtotal)
	require.Len(t, createdItems, 1)
	assert.Equal(t, "Classic Gift Box", createdItems[0].Name)
	assert.Equal(t, int64(1150), createdItems[0].UnitPrice)
}

func TestHandleEventSessionCompletedGuardsOnSessionID(t *testing.T) {
	// a different event id for the same session must not create twice
	f := newSettlementFixture()
	f.cacheSessionItems("hash123")

	f.eventRepo.On("Exists", mock.Anything, "evt_2").Return(false, nil)
	f.orderRepo.On("ExistsBySessionID", mock.Anything, "cs_1").Return(true, nil)
	f.eventRepo.On("MarkProcessed", mock.Anything, "evt_2", "checkout.session.completed").Return(nil)

	result, err := f.svc.HandleEvent(context.Background(), sessionCompletedEvent("evt_2", "cs_1"))

	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	f.orderRepo.AssertNotCalled(t, "CreateWithItems", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEventPaymentSucceededUpdatesOrder(t *testing.T) {
	f := newSettlementFixture()

	updated := &model.Order{OrderID: "ord_1", OwnerID: "user:42", Status: OrderStatusConfirmed, TotalAmount: 2800, Currency: "usd"}

	f.eventRepo.On("Exists", mock.Anything, "evt_3").Return(false, nil)
	f.orderRepo.On("UpdatePayment", mock.Anything, "ord_1", mock.Anything).
		Return(updated, nil)
	f.publisher.On("Publish", mock.Anything, "order.confirmed", mock.Anything).Return(nil)
	f.eventRepo.On("MarkProcessed", mock.Anything, "evt_3", "payment_intent.succeeded").Return(nil)

	result, err := f.svc.HandleEvent(context.Background(),
		paymentIntentEvent("evt_3", "payment_intent.succeeded", "ord_1", time.Now()))

	require.NoError(t, err)
	assert.True(t, result.Handled)
	assert.Equal(t, OrderStatusConfirmed, result.Status)

	update := f.orderRepo.Calls[0].Arguments.Get(2).(*repository.PaymentUpdate)
	assert.Equal(t, OrderStatusConfirmed, update.Status)
	assert.Equal(t, "ch_1", update.TransactionID)
}

func TestHandleEventStaleUpdateIsNoOpSuccess(t *testing.T) {
	f := newSettlementFixture()

	current := &model.Order{OrderID: "ord_1", Status: OrderStatusConfirmed}

	f.eventRepo.On("Exists", mock.Anything, "evt_4").Return(false, nil)
	f.orderRepo.On("UpdatePayment", mock.Anything, "ord_1", mock.Anything).
		Return(current, repository.ErrStaleUpdate)
	f.eventRepo.On("MarkProcessed", mock.Anything, "evt_4", "payment_intent.processing").Return(nil)

	// a delayed "processing" arriving after "succeeded" must not regress
	result, err := f.svc.HandleEvent(context.Background(),
		paymentIntentEvent("evt_4", "payment_intent.processing", "ord_1", time.Now().Add(-time.Hour)))

	require.NoError(t, err)
	assert.True(t, result.Handled)
	assert.Equal(t, OrderStatusConfirmed, result.Status)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEventUnknownOrderFailsForRedelivery(t *testing.T) {
	f := newSettlementFixture()

	f.eventRepo.On("Exists", mock.Anything, "evt_5").Return(false, nil)
	f.orderRepo.On("UpdatePayment", mock.Anything, "ord_missing", mock.Anything).
		Return(nil, gorm.ErrRecordNotFound)

	_, err := f.svc.HandleEvent(context.Background(),
		paymentIntentEvent("evt_5", "payment_intent.succeeded", "ord_missing", time.Now()))

	require.Error(t, err)
	// not recorded, so the sender's redelivery gets another chance
	f.eventRepo.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEventMissingOrderIDSkips(t *testing.T) {
	f := newSettlementFixture()

	f.eventRepo.On("Exists", mock.Anything, "evt_6").Return(false, nil)
	f.eventRepo.On("MarkProcessed", mock.Anything, "evt_6", "payment_intent.succeeded").Return(nil)

	result, err := f.svc.HandleEvent(context.Background(),
		paymentIntentEvent("evt_6", "payment_intent.succeeded", "", time.Now()))

	require.NoError(t, err)
	assert.False(t, result.Handled)
	f.orderRepo.AssertNotCalled(t, "UpdatePayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEventUnhandledTypeStillRecorded(t *testing.T) {
	f := newSettlementFixture()

	f.eventRepo.On("Exists", mock.Anything, "evt_7").Return(false, nil)
	f.eventRepo.On("MarkProcessed", mock.Anything, "evt_7", "charge.refunded").Return(nil)

	result, err := f.svc.HandleEvent(context.Background(), &model.StripeEvent{
		ID:   "evt_7",
		Type: "charge.refunded",
	})

	require.NoError(t, err)
	assert.False(t, result.Handled)
	assert.False(t, result.Duplicate)
}

func TestHandleEventConfirmationFailureSwallowed(t *testing.T) {
	f := newSettlementFixture()

	updated := &model.Order{OrderID: "ord_1", Status: OrderStatusConfirmed}

	f.eventRepo.On("Exists", mock.Anything, "evt_8").Return(false, nil)
	f.orderRepo.On("UpdatePayment", mock.Anything, "ord_1", mock.Anything).Return(updated, nil)
	f.publisher.On("Publish", mock.Anything, "order.confirmed", mock.Anything).
		Return(errors.New("broker gone"))
	f.eventRepo.On("MarkProcessed", mock.Anything, "evt_8", "payment_intent.succeeded").Return(nil)

	result, err := f.svc.HandleEvent(context.Background(),
		paymentIntentEvent("evt_8", "payment_intent.succeeded", "ord_1", time.Now()))

	require.NoError(t, err, "a lost confirmation must never fail reconciliation")
	assert.True(t, result.Handled)
}

func TestHandleEventFailedPaymentRecordsReason(t *testing.T) {
	f := newSettlementFixture()

	intent := model.StripePaymentIntent{
		ID:               "pi_1",
		Status:           "requires_payment_method",
		Metadata:         map[string]string{"order_id": "ord_1"},
		LastPaymentError: &model.LastPaymentError{Code: "card_declined", Message: "Your card was declined."},
	}
	payload, _ := json.Marshal(intent)
	event := &model.StripeEvent{
		ID:      "evt_9",
		Type:    "payment_intent.payment_failed",
		Created: time.Now().Unix(),
		Data:    model.StripeEventData{Object: payload},
	}

	updated := &model.Order{OrderID: "ord_1", Status: OrderStatusFailed}

	f.eventRepo.On("Exists", mock.Anything, "evt_9").Return(false, nil)
	f.orderRepo.On("UpdatePayment", mock.Anything, "ord_1", mock.Anything).Return(updated, nil)
	f.eventRepo.On("MarkProcessed", mock.Anything, "evt_9", "payment_intent.payment_failed").Return(nil)

	result, err := f.svc.HandleEvent(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, OrderStatusFailed, result.Status)

	update := f.orderRepo.Calls[0].Arguments.Get(2).(*repository.PaymentUpdate)
	assert.Equal(t, OrderStatusFailed, update.Status)
	assert.Equal(t, "Your card was declined.", update.FailureReason)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}
