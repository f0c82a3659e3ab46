package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"giftbox-checkout/internal/pricing"
)

type SnapshotItem struct {
	ItemID     uint                `json:"itemId"`
	ProductID  string              `json:"productId"`
	Name       string              `json:"name"`
	Quantity   int32               `json:"quantity"`
	UnitPrice  int64               `json:"unitPrice"`
	TotalPrice int64               `json:"totalPrice"`
	Selections []pricing.Selection `json:"selections,omitempty"`
	Breakdown  pricing.Breakdown   `json:"breakdown"`
}

type CartSnapshot struct {
	Items       []SnapshotItem `json:"items"`
	TotalItems  int32          `json:"totalItems"`
	TotalPrice  int64          `json:"totalPrice"`
	LastUpdated time.Time      `json:"lastUpdated"`
	Version     int            `json:"version"`
}

// CachedPriceEntry is owner-independent: carts with identical selections share
// it, and it never depends on the quantity used at write time.
type CachedPriceEntry struct {
	UnitPrice             int64     `json:"unitPrice"`
	BasePrice             int64     `json:"basePrice"`
	CustomizationModifier int64     `json:"customizationModifier"`
	CalculatedAt          time.Time `json:"calculatedAt"`
}

type CheckoutSession struct {
	SessionID    string         `json:"sessionId"`
	ClientSecret string         `json:"clientSecret"`
	CartHash     string         `json:"cartHash"`
	Items        []SnapshotItem `json:"items"`
	ExpiresAt    time.Time      `json:"expiresAt"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type ClearState struct {
	SnapshotExists bool
	PriceKeysExist bool
	Verified       bool
}

type Service struct {
	kv          KV
	snapshotTTL time.Duration
	priceTTL    time.Duration
	sessionTTL  time.Duration
}

func NewService(kv KV, snapshotTTL, priceTTL, sessionTTL time.Duration) *Service {
	return &Service{
		kv:          kv,
		snapshotTTL: snapshotTTL,
		priceTTL:    priceTTL,
		sessionTTL:  sessionTTL,
	}
}

func cartKey(owner string) string { return "cart:" + owner }

func indexKey(owner string) string { return "pricekeys:" + owner }

func sessionKey(cartHash string) string { return "session:" + cartHash }

func priceKey(productID, h string) string {
	return fmt.Sprintf("price:%s:%s", productID, h)
}

// SelectionHash returns a stable digest of a selection set. Selections are
// sorted before encoding so construction order never changes the key.
func SelectionHash(selections []pricing.Selection) string {
	sorted := make([]pricing.Selection, len(selections))
	copy(sorted, selections)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].OptionID != sorted[j].OptionID {
			return sorted[i].OptionID < sorted[j].OptionID
		}
		return sorted[i].ChoiceID < sorted[j].ChoiceID
	})

	data, _ := json.Marshal(sorted)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// --- cart snapshots ---

func (s *Service) GetCartSnapshot(ctx context.Context, owner string) (*CartSnapshot, bool) {
	var snap CartSnapshot
	if !s.getJSON(ctx, cartKey(owner), &snap) {
		return nil, false
	}
	return &snap, true
}

func (s *Service) PutCartSnapshot(ctx context.Context, owner string, snap *CartSnapshot) {
	s.putJSON(ctx, cartKey(owner), snap, s.snapshotTTL)
}

func (s *Service) InvalidateCartSnapshot(ctx context.Context, owner string) {
	if err := s.kv.Del(ctx, cartKey(owner)); err != nil {
		log.Printf("cache: invalidate snapshot for %s: %v", owner, err)
	}
}

// --- price entries ---

func (s *Service) GetPriceEntry(ctx context.Context, productID string, selections []pricing.Selection) (*CachedPriceEntry, bool) {
	var entry CachedPriceEntry
	if !s.getJSON(ctx, priceKey(productID, SelectionHash(selections)), &entry) {
		return nil, false
	}
	return &entry, true
}

// PutPriceEntry writes the entry and appends its key to the owner's key
// index. The index is the only route to deleting an owner's price keys later,
// since the backend cannot enumerate.
func (s *Service) PutPriceEntry(ctx context.Context, owner, productID string, selections []pricing.Selection, entry *CachedPriceEntry) {
	key := priceKey(productID, SelectionHash(selections))
	s.putJSON(ctx, key, entry, s.priceTTL)
	s.appendToIndex(ctx, owner, key)
}

func (s *Service) appendToIndex(ctx context.Context, owner, key string) {
	keys := s.readIndex(ctx, owner)
	for _, k := range keys {
		if k == key {
			return
		}
	}
	keys = append(keys, key)
	s.putJSON(ctx, indexKey(owner), keys, s.priceTTL)
}

func (s *Service) readIndex(ctx context.Context, owner string) []string {
	var keys []string
	if !s.getJSON(ctx, indexKey(owner), &keys) {
		return nil
	}
	return keys
}

// --- checkout sessions ---

func (s *Service) GetCheckoutSession(ctx context.Context, cartHash string) (*CheckoutSession, bool) {
	var sess CheckoutSession
	if !s.getJSON(ctx, sessionKey(cartHash), &sess) {
		return nil, false
	}
	return &sess, true
}

func (s *Service) PutCheckoutSession(ctx context.Context, sess *CheckoutSession) {
	ttl := s.sessionTTL
	if remaining := time.Until(sess.ExpiresAt); remaining > 0 && remaining < ttl {
		ttl = remaining
	}
	s.putJSON(ctx, sessionKey(sess.CartHash), sess, ttl)
}

// --- invalidation ---

// ForceClearAll deletes the owner's snapshot, every price key listed in the
// owner's index, and the index itself, then verifies by re-checking
// existence. A failed verification is retried once and logged; the store
// offers no transactional delete-and-verify, so this stays best effort.
func (s *Service) ForceClearAll(ctx context.Context, owner string) ClearState {
	priceKeys := s.readIndex(ctx, owner)

	s.deleteAll(ctx, owner, priceKeys)
	state := s.verifyCleared(ctx, owner, priceKeys)
	if state.Verified {
		return state
	}

	log.Printf("cache: clear for %s not verified (snapshot=%v priceKeys=%v), retrying once",
		owner, state.SnapshotExists, state.PriceKeysExist)
	s.deleteAll(ctx, owner, priceKeys)
	return s.verifyCleared(ctx, owner, priceKeys)
}

func (s *Service) deleteAll(ctx context.Context, owner string, priceKeys []string) {
	if err := s.kv.Del(ctx, cartKey(owner)); err != nil {
		log.Printf("cache: delete snapshot for %s: %v", owner, err)
	}
	for _, k := range priceKeys {
		if err := s.kv.Del(ctx, k); err != nil {
			log.Printf("cache: delete price key %s: %v", k, err)
		}
	}
	if err := s.kv.Del(ctx, indexKey(owner)); err != nil {
		log.Printf("cache: delete key index for %s: %v", owner, err)
	}
}

// verifyCleared treats a failed existence check as unverified: an unreachable
// backend cannot confirm anything is gone.
func (s *Service) verifyCleared(ctx context.Context, owner string, priceKeys []string) ClearState {
	var state ClearState
	checked := true

	exists, err := s.kv.Exists(ctx, cartKey(owner))
	if err != nil {
		log.Printf("cache: verify snapshot for %s: %v", owner, err)
		checked = false
	}
	state.SnapshotExists = exists

	for _, k := range priceKeys {
		exists, err := s.kv.Exists(ctx, k)
		if err != nil {
			log.Printf("cache: verify price key %s: %v", k, err)
			checked = false
			continue
		}
		if exists {
			state.PriceKeysExist = true
			break
		}
	}

	state.Verified = checked && !state.SnapshotExists && !state.PriceKeysExist
	return state
}

// --- helpers ---

// getJSON degrades every backend or decode failure to a miss. Caching is
// strictly an optimization here: the pricing engine can always recompute.
func (s *Service) getJSON(ctx context.Context, key string, out interface{}) bool {
	val, err := s.kv.Get(ctx, key)
	if err != nil {
		if err != ErrCacheMiss {
			log.Printf("cache: get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		log.Printf("cache: decode %s: %v", key, err)
		return false
	}
	return true
}

func (s *Service) putJSON(ctx context.Context, key string, val interface{}, ttl time.Duration) {
	data, err := json.Marshal(val)
	if err != nil {
		log.Printf("cache: encode %s: %v", key, err)
		return
	}
	if err := s.kv.Set(ctx, key, string(data), ttl); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
}
