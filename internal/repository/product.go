package repository

import (
	"context"

	"giftbox-checkout/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Seed(ctx context.Context) error
	FindByID(ctx context.Context, productID string) (*model.Product, error)
	FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error)
	OptionsForProduct(ctx context.Context, productID string) ([]*model.CustomizationOption, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) Seed(ctx context.Context) error {
	products := []model.Product{
		{ID: "giftbox_classic", Name: "Classic Gift Box", BasePrice: 1000, Currency: "usd", StripeProductID: "prod_classic"},
		{ID: "giftbox_deluxe", Name: "Deluxe Gift Box", BasePrice: 2500, Currency: "usd", StripeProductID: "prod_deluxe"},
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error; err != nil {
		return err
	}

	options := []model.CustomizationOption{
		{ID: "ribbon", ProductID: "giftbox_classic", Name: "Ribbon", AllowMultiple: false},
		{ID: "extras", ProductID: "giftbox_classic", Name: "Extras", AllowMultiple: true},
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&options).Error; err != nil {
		return err
	}

	choices := []model.CustomizationChoice{
		{ID: "gold", OptionID: "ribbon", Label: "Gold", PriceModifier: 150},
		{ID: "silver", OptionID: "ribbon", Label: "Silver", PriceModifier: 100},
		{ID: "card", OptionID: "extras", Label: "Greeting Card", PriceModifier: 200},
		{ID: "wrap", OptionID: "extras", Label: "Gift Wrap", PriceModifier: 300},
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&choices).Error
}

func (r *productRepoImpl) FindByID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error

	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepoImpl) OptionsForProduct(ctx context.Context, productID string) ([]*model.CustomizationOption, error) {
	var options []*model.CustomizationOption
	err := r.db.WithContext(ctx).
		Preload("Choices").
		Where("product_id = ?", productID).
		Find(&options).
		Error

	if err != nil {
		return nil, err
	}

	return options, nil
}
