package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"giftbox-checkout/internal/cache"
	"giftbox-checkout/internal/checkouterr"
	"giftbox-checkout/internal/dto"
	"giftbox-checkout/internal/model"
	"giftbox-checkout/internal/repository"
)

type CartService interface {
	GetCart(ctx context.Context, ownerID string) (*cache.CartSnapshot, error)
	AddItem(ctx context.Context, ownerID string, req *dto.AddItemRequest) error
	UpdateItem(ctx context.Context, ownerID string, itemID uint, req *dto.UpdateItemRequest) error
	RemoveItem(ctx context.Context, ownerID string, itemID uint) error
	ClearCache(ctx context.Context, ownerID string) *dto.ClearCacheResponse
}

type cartServiceImpl struct {
	cartRepo repository.CartRepository
	cache    *cache.Service
	pricer   *priceResolver
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, cacheSvc *cache.Service) CartService {
	return &cartServiceImpl{
		cartRepo: cartRepo,
		cache:    cacheSvc,
		pricer:   newPriceResolver(productRepo, cacheSvc),
	}
}

// GetCart serves the cached snapshot when present and rebuilds it lazily from
// the store otherwise. The store stays the source of truth; the snapshot is
// only ever a recomputation shortcut.
func (s *cartServiceImpl) GetCart(ctx context.Context, ownerID string) (*cache.CartSnapshot, error) {
	if snap, ok := s.cache.GetCartSnapshot(ctx, ownerID); ok {
		return snap, nil
	}

	items, err := s.cartRepo.ItemsForOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}

	snapItems, err := s.pricer.snapshotItems(ctx, ownerID, items)
	if err != nil {
		return nil, fmt.Errorf("price cart items: %w", err)
	}

	snap := &cache.CartSnapshot{
		Items:       snapItems,
		LastUpdated: time.Now(),
		Version:     1,
	}
	for _, item := range snapItems {
		snap.TotalItems += item.Quantity
		snap.TotalPrice += item.TotalPrice
	}

	s.cache.PutCartSnapshot(ctx, ownerID, snap)
	return snap, nil
}

func (s *cartServiceImpl) AddItem(ctx context.Context, ownerID string, req *dto.AddItemRequest) error {
	if req.ProductID == "" || req.Quantity <= 0 {
		return checkouterr.NewValidationError("productId and a positive quantity are required")
	}

	selections, err := json.Marshal(req.Selections)
	if err != nil {
		return checkouterr.NewValidationError("selections not encodable")
	}

	return s.mutate(ctx, ownerID, func() error {
		return s.cartRepo.AddItem(ctx, &model.CartItem{
			OwnerID:    ownerID,
			ProductID:  req.ProductID,
			Quantity:   req.Quantity,
			Selections: string(selections),
		})
	})
}

func (s *cartServiceImpl) UpdateItem(ctx context.Context, ownerID string, itemID uint, req *dto.UpdateItemRequest) error {
	if req.Quantity <= 0 {
		return checkouterr.NewValidationError("quantity must be positive")
	}

	selections, err := json.Marshal(req.Selections)
	if err != nil {
		return checkouterr.NewValidationError("selections not encodable")
	}

	return s.mutate(ctx, ownerID, func() error {
		return s.cartRepo.UpdateItem(ctx, ownerID, itemID, req.Quantity, string(selections))
	})
}

func (s *cartServiceImpl) RemoveItem(ctx context.Context, ownerID string, itemID uint) error {
	return s.mutate(ctx, ownerID, func() error {
		return s.cartRepo.RemoveItem(ctx, ownerID, itemID)
	})
}

// mutate clears the snapshot on both sides of the store write. A reader
// racing the mutation then sees a miss and recomputes; a stale miss is always
// cheaper than a stale hit.
func (s *cartServiceImpl) mutate(ctx context.Context, ownerID string, write func() error) error {
	s.cache.InvalidateCartSnapshot(ctx, ownerID)
	if err := write(); err != nil {
		return err
	}
	s.cache.InvalidateCartSnapshot(ctx, ownerID)
	return nil
}

func (s *cartServiceImpl) ClearCache(ctx context.Context, ownerID string) *dto.ClearCacheResponse {
	state := s.cache.ForceClearAll(ctx, ownerID)
	return &dto.ClearCacheResponse{
		Success: state.Verified,
		CacheState: dto.CacheState{
			ConfigExists:   state.SnapshotExists,
			PriceKeysExist: state.PriceKeysExist,
			Verified:       state.Verified,
		},
	}
}
