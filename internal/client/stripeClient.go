package client

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"giftbox-checkout/internal/config"
	"giftbox-checkout/internal/model"
)

type SessionLineItem struct {
	ProductName     string
	StripeProductID string
	UnitAmount      int64 // cents, customization already applied
	Currency        string
	Quantity        int64
}

type CreateSessionParams struct {
	LineItems []SessionLineItem
	Locale    string
	ReturnURL string
	Metadata  map[string]string
}

type StripeClient interface {
	CreateCheckoutSession(ctx context.Context, params *CreateSessionParams) (*model.StripeCheckoutSession, error)
	VerifyWebhookSignature(sigHeader string, body []byte) error
}

// GatewayError is a non-2xx answer from the gateway, kept apart from
// transport errors so the retry layer can classify by status.
type GatewayError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %d (%s/%s): %s", e.StatusCode, e.Type, e.Code, e.Message)
}

type stripeClientImpl struct {
	httpClient    *http.Client
	baseApiURL    string
	secretKey     string
	webhookSecret string
}

func NewStripeClient(stripeCfg *config.Stripe) StripeClient {
	return &stripeClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:    stripeCfg.BaseApiURL,
		secretKey:     stripeCfg.SecretKey,
		webhookSecret: stripeCfg.WebhookSecret,
	}
}

func (c *stripeClientImpl) CreateCheckoutSession(ctx context.Context, params *CreateSessionParams) (*model.StripeCheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("ui_mode", "embedded")
	form.Set("return_url", params.ReturnURL)
	if params.Locale != "" {
		form.Set("locale", params.Locale)
	}

	for i, item := range params.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
		form.Set(prefix+"[price_data][currency]", item.Currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.ProductName)
		if item.StripeProductID != "" {
			form.Set(prefix+"[price_data][product_data][metadata][product_id]", item.StripeProductID)
		}
	}

	for k, v := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v1/checkout/sessions",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeGatewayError(resp)
	}

	var session model.StripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}

	return &session, nil
}

func decodeGatewayError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp model.StripeErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return &GatewayError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	return &GatewayError{
		StatusCode: resp.StatusCode,
		Type:       errResp.Error.Type,
		Code:       errResp.Error.Code,
		Message:    errResp.Error.Message,
	}
}

const signatureTolerance = 5 * time.Minute

// VerifyWebhookSignature checks a "t=<unix>,v1=<hex hmac>" header against the
// webhook secret. The signed payload is "<t>.<body>"; timestamps outside the
// tolerance window are rejected to stop replays.
func (c *stripeClientImpl) VerifyWebhookSignature(sigHeader string, body []byte) error {
	var timestamp, signature string
	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signature = kv[1]
		}
	}
	if timestamp == "" || signature == "" {
		return fmt.Errorf("malformed signature header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed signature timestamp: %w", err)
	}
	age := time.Since(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
