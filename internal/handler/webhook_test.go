package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"giftbox-checkout/internal/cache"
	"giftbox-checkout/internal/mocks"
	"giftbox-checkout/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type noopKV struct{}

func (noopKV) Get(ctx context.Context, key string) (string, error) { return "", cache.ErrCacheMiss }

func (noopKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return nil
}

func (noopKV) Del(ctx context.Context, key string) error { return nil }

func (noopKV) Exists(ctx context.Context, key string) (bool, error) { return false, nil }

// the handler tests only need a settlement service wired to mocks; the cache
// behind it can stay empty
func newWebhookTestHandler(stripeClient *mocks.MockStripeClient, eventRepo *mocks.MockPaymentEventRepository, orderRepo *mocks.MockOrderRepository) *WebhookHandler {
	cartRepo := new(mocks.MockCartRepository)
	cartRepo.On("ItemsForOwner", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	cacheSvc := cache.NewService(noopKV{}, time.Minute, time.Minute, time.Minute)
	settlement := service.NewSettlementService(orderRepo, eventRepo, cartRepo, new(mocks.MockProductRepository), cacheSvc, nil, 500, "usd")
	return NewWebhookHandler(stripeClient, settlement)
}

func postWebhook(h *WebhookHandler, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/payment", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = h.HandlePaymentWebhook(c)
	return rec
}

func TestHandlePaymentWebhookRejectsBadSignature(t *testing.T) {
	stripeClient := new(mocks.MockStripeClient)
	stripeClient.On("VerifyWebhookSignature", mock.Anything, mock.Anything).
		Return(errors.New("signature mismatch"))

	h := newWebhookTestHandler(stripeClient, new(mocks.MockPaymentEventRepository), new(mocks.MockOrderRepository))

	rec := postWebhook(h, `{"id":"evt_1","type":"checkout.session.completed"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlePaymentWebhookDuplicateStillGets200(t *testing.T) {
	stripeClient := new(mocks.MockStripeClient)
	stripeClient.On("VerifyWebhookSignature", mock.Anything, mock.Anything).Return(nil)

	eventRepo := new(mocks.MockPaymentEventRepository)
	eventRepo.On("Exists", mock.Anything, "evt_1").Return(true, nil)

	h := newWebhookTestHandler(stripeClient, eventRepo, new(mocks.MockOrderRepository))

	rec := postWebhook(h, `{"id":"evt_1","type":"checkout.session.completed"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
	assert.Contains(t, rec.Body.String(), `"eventId":"evt_1"`)
}

func TestHandlePaymentWebhookUnhandledTypeGets200(t *testing.T) {
	stripeClient := new(mocks.MockStripeClient)
	stripeClient.On("VerifyWebhookSignature", mock.Anything, mock.Anything).Return(nil)

	eventRepo := new(mocks.MockPaymentEventRepository)
	eventRepo.On("Exists", mock.Anything, "evt_2").Return(false, nil)
	eventRepo.On("MarkProcessed", mock.Anything, "evt_2", "charge.refunded").Return(nil)

	h := newWebhookTestHandler(stripeClient, eventRepo, new(mocks.MockOrderRepository))

	rec := postWebhook(h, `{"id":"evt_2","type":"charge.refunded"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}
