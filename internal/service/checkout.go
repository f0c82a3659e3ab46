package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"giftbox-checkout/internal/cache"
	"giftbox-checkout/internal/checkouterr"
	"giftbox-checkout/internal/client"
	"giftbox-checkout/internal/dto"
	"giftbox-checkout/internal/model"
	"giftbox-checkout/internal/pricing"
	"giftbox-checkout/internal/repository"
	"giftbox-checkout/internal/retry"
)

type CheckoutService interface {
	CreateSession(ctx context.Context, ownerID, locale string, metadata map[string]string) (*dto.CreateSessionResponse, error)
}

type checkoutServiceImpl struct {
	cartRepo     repository.CartRepository
	stripeClient client.StripeClient
	cache        *cache.Service
	pricer       *priceResolver
	retryPolicy  retry.Policy
	returnURL    string
	currency     string
}

func NewCheckoutService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	stripeClient client.StripeClient,
	cacheSvc *cache.Service,
	retryPolicy retry.Policy,
	returnURL string,
	currency string,
) CheckoutService {
	return &checkoutServiceImpl{
		cartRepo:     cartRepo,
		stripeClient: stripeClient,
		cache:        cacheSvc,
		pricer:       newPriceResolver(productRepo, cacheSvc),
		retryPolicy:  retryPolicy,
		returnURL:    returnURL,
		currency:     currency,
	}
}

func (s *checkoutServiceImpl) CreateSession(ctx context.Context, ownerID, locale string, metadata map[string]string) (*dto.CreateSessionResponse, error) {
	items, err := s.cartRepo.ItemsForOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	if len(items) == 0 {
		return nil, checkouterr.ErrEmptyCart
	}

	cartHash := CartHash(items)

	// content-identical carts share one session; a changed cart hashes
	// differently and simply orphans the old entry until its TTL
	if cached, ok := s.cache.GetCheckoutSession(ctx, cartHash); ok && cached.ExpiresAt.After(time.Now()) {
		return &dto.CreateSessionResponse{
			ClientSecret: cached.ClientSecret,
			SessionID:    cached.SessionID,
		}, nil
	}

	snapItems, err := s.pricer.snapshotItems(ctx, ownerID, items)
	if err != nil {
		return nil, fmt.Errorf("price cart items: %w", err)
	}

	lineItems := make([]client.SessionLineItem, len(snapItems))
	for i, item := range snapItems {
		lineItems[i] = client.SessionLineItem{
			ProductName:     item.Name,
			StripeProductID: item.ProductID,
			UnitAmount:      item.UnitPrice,
			Currency:        s.currency,
			Quantity:        int64(item.Quantity),
		}
	}

	sessionMetadata := map[string]string{
		"owner_id":  ownerID,
		"cart_hash": cartHash,
	}
	for k, v := range metadata {
		sessionMetadata[k] = v
	}

	var session *model.StripeCheckoutSession
	err = retry.Do(ctx, s.retryPolicy, client.Retryable, func(ctx context.Context) error {
		var opErr error
		session, opErr = s.stripeClient.CreateCheckoutSession(ctx, &client.CreateSessionParams{
			LineItems: lineItems,
			Locale:    locale,
			ReturnURL: s.returnURL,
			Metadata:  sessionMetadata,
		})
		return opErr
	})
	if err != nil {
		return nil, toCheckoutError(err, locale)
	}

	s.cache.PutCheckoutSession(ctx, &cache.CheckoutSession{
		SessionID:    session.ID,
		ClientSecret: session.ClientSecret,
		CartHash:     cartHash,
		Items:        snapItems,
		ExpiresAt:    time.Unix(session.ExpiresAt, 0),
		CreatedAt:    time.Now(),
	})

	return &dto.CreateSessionResponse{
		ClientSecret: session.ClientSecret,
		SessionID:    session.ID,
	}, nil
}

// toCheckoutError sanitizes an exhausted or fatal gateway failure. The raw
// gateway text only survives inside the wrapped cause for logs.
func toCheckoutError(err error, locale string) *checkouterr.CheckoutError {
	var gwErr *client.GatewayError
	if errors.As(err, &gwErr) {
		switch {
		case gwErr.StatusCode == http.StatusTooManyRequests:
			return checkouterr.NewCheckoutError(checkouterr.KindRateLimited, locale, true, err)
		case gwErr.StatusCode == http.StatusPaymentRequired || gwErr.Type == "card_error":
			return checkouterr.NewCheckoutError(checkouterr.KindCardDeclined, locale, false, err)
		case gwErr.StatusCode >= 500 || gwErr.StatusCode == http.StatusRequestTimeout:
			return checkouterr.NewCheckoutError(checkouterr.KindGatewayTimeout, locale, true, err)
		default:
			return checkouterr.NewCheckoutError(checkouterr.KindGatewayRejected, locale, false, err)
		}
	}

	if client.Retryable(err) {
		return checkouterr.NewCheckoutError(checkouterr.KindGatewayTimeout, locale, true, err)
	}
	return checkouterr.NewCheckoutError(checkouterr.KindInternal, locale, false, err)
}

type normalizedItem struct {
	ProductID  string              `json:"productId"`
	Quantity   int32               `json:"quantity"`
	Selections []pricing.Selection `json:"selections"`
}

// CartHash digests the cart's contents, not its construction order: items
// sort by product id, then selection hash, then quantity, and selections by
// option id, so identical carts always collide on one key. The quantity
// tiebreak matters because duplicate lines for one product are reachable.
func CartHash(items []*model.CartItem) string {
	normalized := make([]normalizedItem, len(items))
	for i, item := range items {
		selections := parseSelections(item.Selections)
		sort.Slice(selections, func(a, b int) bool {
			if selections[a].OptionID != selections[b].OptionID {
				return selections[a].OptionID < selections[b].OptionID
			}
			return selections[a].ChoiceID < selections[b].ChoiceID
		})
		normalized[i] = normalizedItem{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			Selections: selections,
		}
	}

	sort.Slice(normalized, func(a, b int) bool {
		if normalized[a].ProductID != normalized[b].ProductID {
			return normalized[a].ProductID < normalized[b].ProductID
		}
		ha, hb := cache.SelectionHash(normalized[a].Selections), cache.SelectionHash(normalized[b].Selections)
		if ha != hb {
			return ha < hb
		}
		return normalized[a].Quantity < normalized[b].Quantity
	})

	data, _ := json.Marshal(normalized)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:32]
}
