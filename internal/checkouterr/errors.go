package checkouterr

import (
	"errors"
	"fmt"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to check out")

// ValidationError covers user-fixable request problems (4xx).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// Kinds carried by CheckoutError; machine-readable, locale-independent.
const (
	KindGatewayTimeout  = "gateway_timeout"
	KindRateLimited     = "rate_limited"
	KindGatewayRejected = "gateway_rejected"
	KindCardDeclined    = "card_declined"
	KindInternal        = "internal"
)

// CheckoutError is what the caller sees after a gateway or store failure.
// Message is locale-appropriate; the raw gateway text stays in the wrapped
// cause and never reaches the caller.
type CheckoutError struct {
	Kind      string
	Message   string
	Retryable bool
	cause     error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout failed (%s): %s", e.Kind, e.Message)
}

func (e *CheckoutError) Unwrap() error {
	return e.cause
}

func NewCheckoutError(kind, locale string, retryable bool, cause error) *CheckoutError {
	return &CheckoutError{
		Kind:      kind,
		Message:   Message(kind, locale),
		Retryable: retryable,
		cause:     cause,
	}
}

var messages = map[string]map[string]string{
	"en": {
		KindGatewayTimeout:  "The payment provider did not respond in time. Please try again.",
		KindRateLimited:     "Too many payment attempts right now. Please try again shortly.",
		KindGatewayRejected: "The payment provider rejected the request. Please contact support.",
		KindCardDeclined:    "Your payment method was declined. Please use another one or contact support.",
		KindInternal:        "Something went wrong while preparing your payment. Please try again.",
	},
	"de": {
		KindGatewayTimeout:  "Der Zahlungsanbieter hat nicht rechtzeitig geantwortet. Bitte versuchen Sie es erneut.",
		KindRateLimited:     "Zu viele Zahlungsversuche. Bitte versuchen Sie es in Kürze erneut.",
		KindGatewayRejected: "Der Zahlungsanbieter hat die Anfrage abgelehnt. Bitte kontaktieren Sie den Support.",
		KindCardDeclined:    "Ihre Zahlungsmethode wurde abgelehnt. Bitte verwenden Sie eine andere oder kontaktieren Sie den Support.",
		KindInternal:        "Bei der Vorbereitung Ihrer Zahlung ist ein Fehler aufgetreten. Bitte versuchen Sie es erneut.",
	},
}

// Message returns the user-facing text for a kind in the given locale,
// falling back to English for unknown locales.
func Message(kind, locale string) string {
	byKind, ok := messages[locale]
	if !ok {
		byKind = messages["en"]
	}
	if msg, ok := byKind[kind]; ok {
		return msg
	}
	return messages["en"][KindInternal]
}
