package handler

import (
	"errors"
	"log"
	"net/http"

	"giftbox-checkout/internal/checkouterr"
	"giftbox-checkout/internal/dto"
	"giftbox-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

func ownerIDFromHeader(c echo.Context) (string, error) {
	ownerID := c.Request().Header.Get("X-Owner-Id")
	if ownerID == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "missing X-Owner-Id header")
	}
	return ownerID, nil
}

func (h *CheckoutHandler) CreateSession(c echo.Context) error {
	ctx := c.Request().Context()

	ownerID, err := ownerIDFromHeader(c)
	if err != nil {
		return err
	}

	var req dto.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.checkoutService.CreateSession(ctx, ownerID, req.Locale, req.Metadata)
	if err != nil {
		return checkoutErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// checkoutErrorResponse maps the error taxonomy onto status codes without
// leaking gateway detail.
func checkoutErrorResponse(c echo.Context, err error) error {
	if errors.Is(err, checkouterr.ErrEmptyCart) {
		return c.JSON(http.StatusBadRequest, &dto.ErrorResponse{
			Error: "cart is empty",
			Kind:  "empty_cart",
		})
	}

	var valErr *checkouterr.ValidationError
	if errors.As(err, &valErr) {
		return c.JSON(http.StatusBadRequest, &dto.ErrorResponse{
			Error: valErr.Reason,
			Kind:  "validation",
		})
	}

	var chkErr *checkouterr.CheckoutError
	if errors.As(err, &chkErr) {
		log.Printf("checkout failed (%s): %v", chkErr.Kind, errors.Unwrap(chkErr))
		status := http.StatusBadGateway
		if chkErr.Kind == checkouterr.KindInternal {
			status = http.StatusInternalServerError
		}
		return c.JSON(status, &dto.ErrorResponse{
			Error: chkErr.Message,
			Kind:  chkErr.Kind,
		})
	}

	log.Printf("checkout failed: %v", err)
	return c.JSON(http.StatusInternalServerError, &dto.ErrorResponse{
		Error: checkouterr.Message(checkouterr.KindInternal, "en"),
		Kind:  checkouterr.KindInternal,
	})
}
