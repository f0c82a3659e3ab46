package server

import (
	"giftbox-checkout/internal/handler"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo            *echo.Echo
	checkoutHandler *handler.CheckoutHandler
	webhookHandler  *handler.WebhookHandler
	cartHandler     *handler.CartHandler
}

func NewServer(checkoutHandler *handler.CheckoutHandler, webhookHandler *handler.WebhookHandler, cartHandler *handler.CartHandler) *Server {
	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:            e,
		checkoutHandler: checkoutHandler,
		webhookHandler:  webhookHandler,
		cartHandler:     cartHandler,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- checkout --------
	api.POST("/checkout/create-session", s.checkoutHandler.CreateSession)

	// -------- webhooks --------
	webhook := api.Group("/webhook")
	webhook.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	webhook.POST("/payment", s.webhookHandler.HandlePaymentWebhook)

	// -------- cart --------
	cart := api.Group("/cart")
	cart.GET("", s.cartHandler.GetCart)
	cart.POST("/items", s.cartHandler.AddItem)
	cart.PUT("/items/:itemID", s.cartHandler.UpdateItem)
	cart.DELETE("/items/:itemID", s.cartHandler.RemoveItem)
	cart.POST("/clear-cache", s.cartHandler.ClearCache)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
