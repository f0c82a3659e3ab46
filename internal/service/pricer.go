package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"giftbox-checkout/internal/cache"
	"giftbox-checkout/internal/model"
	"giftbox-checkout/internal/pricing"
	"giftbox-checkout/internal/repository"
)

// priceResolver answers "what does one unit of this cart line cost" through
// the price cache, falling back to the pricing engine on any miss.
type priceResolver struct {
	productRepo repository.ProductRepository
	cache       *cache.Service
}

func newPriceResolver(productRepo repository.ProductRepository, cacheSvc *cache.Service) *priceResolver {
	return &priceResolver{
		productRepo: productRepo,
		cache:       cacheSvc,
	}
}

func (p *priceResolver) unitPrice(ctx context.Context, owner string, product *model.Product, selections []pricing.Selection) (int64, pricing.Breakdown, error) {
	if entry, ok := p.cache.GetPriceEntry(ctx, product.ID, selections); ok {
		return entry.UnitPrice, pricing.Breakdown{
			BasePrice:     entry.BasePrice,
			TotalModifier: entry.CustomizationModifier,
		}, nil
	}

	options, err := p.productRepo.OptionsForProduct(ctx, product.ID)
	if err != nil {
		return 0, pricing.Breakdown{}, fmt.Errorf("load options for %s: %w", product.ID, err)
	}

	unitPrice, breakdown := pricing.ComputePrice(product.BasePrice, selections, toOptionDefs(options))

	p.cache.PutPriceEntry(ctx, owner, product.ID, selections, &cache.CachedPriceEntry{
		UnitPrice:             unitPrice,
		BasePrice:             breakdown.BasePrice,
		CustomizationModifier: breakdown.TotalModifier,
		CalculatedAt:          time.Now(),
	})

	return unitPrice, breakdown, nil
}

// snapshotItems prices every cart line. Total is recomputed from quantity,
// never read from the cache, so one price entry serves any quantity.
func (p *priceResolver) snapshotItems(ctx context.Context, owner string, items []*model.CartItem) ([]cache.SnapshotItem, error) {
	productIDs := make([]string, len(items))
	for i, item := range items {
		productIDs[i] = item.ProductID
	}
	products, err := p.productRepo.FindMany(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	productsByID := make(map[string]*model.Product, len(products))
	for _, prod := range products {
		productsByID[prod.ID] = prod
	}

	snapshot := make([]cache.SnapshotItem, 0, len(items))
	for _, item := range items {
		product, ok := productsByID[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s not found", item.ProductID)
		}

		selections := parseSelections(item.Selections)
		unit, breakdown, err := p.unitPrice(ctx, owner, product, selections)
		if err != nil {
			return nil, err
		}

		snapshot = append(snapshot, cache.SnapshotItem{
			ItemID:     item.ID,
			ProductID:  product.ID,
			Name:       product.Name,
			Quantity:   item.Quantity,
			UnitPrice:  unit,
			TotalPrice: unit * int64(item.Quantity),
			Selections: selections,
			Breakdown:  breakdown,
		})
	}

	return snapshot, nil
}

func toOptionDefs(options []*model.CustomizationOption) []pricing.OptionDef {
	defs := make([]pricing.OptionDef, len(options))
	for i, opt := range options {
		def := pricing.OptionDef{
			ID:            opt.ID,
			Name:          opt.Name,
			AllowMultiple: opt.AllowMultiple,
			Choices:       make([]pricing.ChoiceDef, len(opt.Choices)),
		}
		for j, c := range opt.Choices {
			def.Choices[j] = pricing.ChoiceDef{
				ID:            c.ID,
				Label:         c.Label,
				PriceModifier: c.PriceModifier,
			}
		}
		defs[i] = def
	}
	return defs
}

// parseSelections tolerates malformed stored selections: a line whose
// customization cannot be decoded prices as the bare product.
func parseSelections(raw string) []pricing.Selection {
	if raw == "" {
		return nil
	}
	var selections []pricing.Selection
	if err := json.Unmarshal([]byte(raw), &selections); err != nil {
		return nil
	}
	return selections
}
