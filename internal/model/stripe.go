package model

import "encoding/json"

type StripeError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type StripeErrorResponse struct {
	Error StripeError `json:"error"`
}

type CustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type ShippingCost struct {
	AmountTotal int64 `json:"amount_total"`
}

type StripeCheckoutSession struct {
	ID            string            `json:"id"`
	ClientSecret  string            `json:"client_secret"`
	Status        string            `json:"status"`         // open, complete, expired
	PaymentStatus string            `json:"payment_status"` // paid, unpaid, no_payment_required
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	ExpiresAt     int64             `json:"expires_at"`
	Created       int64             `json:"created"`
	Customer      CustomerDetails   `json:"customer_details"`
	ShippingCost  ShippingCost      `json:"shipping_cost"`
	Metadata      map[string]string `json:"metadata"`
}

type LastPaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type StripePaymentIntent struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	LatestCharge     string            `json:"latest_charge"`
	LastPaymentError *LastPaymentError `json:"last_payment_error"`
	Metadata         map[string]string `json:"metadata"`
}

type StripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type StripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    StripeEventData `json:"data"`
}
