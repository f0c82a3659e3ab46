package handler

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"giftbox-checkout/internal/client"
	"giftbox-checkout/internal/dto"
	"giftbox-checkout/internal/model"
	"giftbox-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

type WebhookHandler struct {
	stripeClient      client.StripeClient
	settlementService service.SettlementService
}

func NewWebhookHandler(stripeClient client.StripeClient, settlementService service.SettlementService) *WebhookHandler {
	return &WebhookHandler{
		stripeClient:      stripeClient,
		settlementService: settlementService,
	}
}

// HandlePaymentWebhook answers 200 for every verified delivery, duplicates
// and unhandled types included, so the sender never retries on 2xx. Anything
// that must be re-delivered (store trouble) fails with 5xx instead.
func (h *WebhookHandler) HandlePaymentWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	if err := h.stripeClient.VerifyWebhookSignature(c.Request().Header.Get("Stripe-Signature"), body); err != nil {
		log.Printf("webhook: signature rejected: %v", err)
		return c.NoContent(http.StatusUnauthorized)
	}

	var event model.StripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed event payload")
	}

	result, err := h.settlementService.HandleEvent(ctx, &event)
	if err != nil {
		log.Printf("webhook: handle event %s: %v", event.ID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "event not processed")
	}

	return c.JSON(http.StatusOK, &dto.WebhookResponse{
		Received: true,
		EventID:  event.ID,
		OrderID:  result.OrderID,
	})
}
