package mocks

import (
	"context"

	"giftbox-checkout/internal/client"
	"giftbox-checkout/internal/model"
	"giftbox-checkout/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) ItemsForOwner(ctx context.Context, ownerID string) ([]*model.CartItem, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.CartItem), args.Error(1)
}

func (m *MockCartRepository) AddItem(ctx context.Context, item *model.CartItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockCartRepository) UpdateItem(ctx context.Context, ownerID string, itemID uint, quantity int32, selections string) error {
	args := m.Called(ctx, ownerID, itemID, quantity, selections)
	return args.Error(0)
}

func (m *MockCartRepository) RemoveItem(ctx context.Context, ownerID string, itemID uint) error {
	args := m.Called(ctx, ownerID, itemID)
	return args.Error(0)
}

func (m *MockCartRepository) ClearOwner(ctx context.Context, ownerID string) error {
	args := m.Called(ctx, ownerID)
	return args.Error(0)
}

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Seed(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockProductRepository) FindByID(ctx context.Context, productID string) (*model.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error) {
	args := m.Called(ctx, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Product), args.Error(1)
}

func (m *MockProductRepository) OptionsForProduct(ctx context.Context, productID string) ([]*model.CustomizationOption, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.CustomizationOption), args.Error(1)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateWithItems(ctx context.Context, order *model.Order, items []*model.OrderItem) error {
	args := m.Called(ctx, order, items)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ExistsBySessionID(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) UpdatePayment(ctx context.Context, orderID string, update *repository.PaymentUpdate) (*model.Order, error) {
	args := m.Called(ctx, orderID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

type MockPaymentEventRepository struct {
	mock.Mock
}

func (m *MockPaymentEventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentEventRepository) MarkProcessed(ctx context.Context, eventID, eventType string) error {
	args := m.Called(ctx, eventID, eventType)
	return args.Error(0)
}

type MockStripeClient struct {
	mock.Mock
}

func (m *MockStripeClient) CreateCheckoutSession(ctx context.Context, params *client.CreateSessionParams) (*model.StripeCheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StripeCheckoutSession), args.Error(1)
}

func (m *MockStripeClient) VerifyWebhookSignature(sigHeader string, body []byte) error {
	args := m.Called(sigHeader, body)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, data interface{}) error {
	args := m.Called(ctx, routingKey, data)
	return args.Error(0)
}

func (m *MockPublisher) Close() {
	m.Called()
}
