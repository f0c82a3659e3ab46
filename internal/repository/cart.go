package repository

import (
	"context"

	"giftbox-checkout/internal/model"

	"gorm.io/gorm"
)

type CartRepository interface {
	ItemsForOwner(ctx context.Context, ownerID string) ([]*model.CartItem, error)
	AddItem(ctx context.Context, item *model.CartItem) error
	UpdateItem(ctx context.Context, ownerID string, itemID uint, quantity int32, selections string) error
	RemoveItem(ctx context.Context, ownerID string, itemID uint) error
	ClearOwner(ctx context.Context, ownerID string) error
}

type cartRepoImpl struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepoImpl{
		db: db,
	}
}

func (r *cartRepoImpl) ItemsForOwner(ctx context.Context, ownerID string) ([]*model.CartItem, error) {
	var items []*model.CartItem
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id").
		Find(&items).
		Error

	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *cartRepoImpl) AddItem(ctx context.Context, item *model.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *cartRepoImpl) UpdateItem(ctx context.Context, ownerID string, itemID uint, quantity int32, selections string) error {
	result := r.db.WithContext(ctx).Model(&model.CartItem{}).
		Where("id = ? AND owner_id = ?", itemID, ownerID).
		Updates(map[string]interface{}{
			"quantity":   quantity,
			"selections": selections,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *cartRepoImpl) RemoveItem(ctx context.Context, ownerID string, itemID uint) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", itemID, ownerID).
		Delete(&model.CartItem{}).
		Error
}

func (r *cartRepoImpl) ClearOwner(ctx context.Context, ownerID string) error {
	return r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Delete(&model.CartItem{}).
		Error
}
