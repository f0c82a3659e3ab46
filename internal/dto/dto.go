package dto

import "giftbox-checkout/internal/pricing"

type CreateSessionRequest struct {
	Locale   string            `json:"locale"`
	Metadata map[string]string `json:"metadata"`
}

type CreateSessionResponse struct {
	ClientSecret string `json:"clientSecret"`
	SessionID    string `json:"sessionId"`
}

type WebhookResponse struct {
	Received bool   `json:"received"`
	EventID  string `json:"eventId"`
	OrderID  string `json:"orderId,omitempty"`
}

type CacheState struct {
	ConfigExists   bool `json:"configExists"`
	PriceKeysExist bool `json:"priceKeysExist"`
	Verified       bool `json:"verified"`
}

type ClearCacheResponse struct {
	Success    bool       `json:"success"`
	CacheState CacheState `json:"cacheState"`
}

type AddItemRequest struct {
	ProductID  string              `json:"productId"`
	Quantity   int32               `json:"quantity"`
	Selections []pricing.Selection `json:"selections"`
}

type UpdateItemRequest struct {
	Quantity   int32               `json:"quantity"`
	Selections []pricing.Selection `json:"selections"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
