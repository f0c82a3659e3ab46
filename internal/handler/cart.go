package handler

import (
	"errors"
	"net/http"
	"strconv"

	"giftbox-checkout/internal/checkouterr"
	"giftbox-checkout/internal/dto"
	"giftbox-checkout/internal/service"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type CartHandler struct {
	cartService service.CartService
}

func NewCartHandler(cartService service.CartService) *CartHandler {
	return &CartHandler{
		cartService: cartService,
	}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	ctx := c.Request().Context()

	ownerID, err := ownerIDFromHeader(c)
	if err != nil {
		return err
	}

	snap, err := h.cartService.GetCart(ctx, ownerID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, snap)
}

func (h *CartHandler) AddItem(c echo.Context) error {
	ctx := c.Request().Context()

	ownerID, err := ownerIDFromHeader(c)
	if err != nil {
		return err
	}

	var req dto.AddItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	if err := h.cartService.AddItem(ctx, ownerID, &req); err != nil {
		return cartErrorResponse(c, err)
	}

	return c.NoContent(http.StatusCreated)
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()

	ownerID, err := ownerIDFromHeader(c)
	if err != nil {
		return err
	}

	itemID, err := strconv.ParseUint(c.Param("itemID"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}

	var req dto.UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	if err := h.cartService.UpdateItem(ctx, ownerID, uint(itemID), &req); err != nil {
		return cartErrorResponse(c, err)
	}

	return c.NoContent(http.StatusOK)
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()

	ownerID, err := ownerIDFromHeader(c)
	if err != nil {
		return err
	}

	itemID, err := strconv.ParseUint(c.Param("itemID"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}

	if err := h.cartService.RemoveItem(ctx, ownerID, uint(itemID)); err != nil {
		return cartErrorResponse(c, err)
	}

	return c.NoContent(http.StatusOK)
}

func (h *CartHandler) ClearCache(c echo.Context) error {
	ctx := c.Request().Context()

	ownerID, err := ownerIDFromHeader(c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, h.cartService.ClearCache(ctx, ownerID))
}

func cartErrorResponse(c echo.Context, err error) error {
	var valErr *checkouterr.ValidationError
	if errors.As(err, &valErr) {
		return c.JSON(http.StatusBadRequest, &dto.ErrorResponse{
			Error: valErr.Reason,
			Kind:  "validation",
		})
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, &dto.ErrorResponse{
			Error: "cart item not found",
		})
	}
	return err
}
