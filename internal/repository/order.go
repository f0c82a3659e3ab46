package repository

import (
	"context"
	"errors"
	"time"

	"giftbox-checkout/internal/model"

	"gorm.io/gorm"
)

// ErrStaleUpdate means a payment update carried an older timestamp than the
// one already applied to the order and was skipped.
var ErrStaleUpdate = errors.New("payment update older than applied state")

type PaymentUpdate struct {
	Status        string
	PaymentStatus string
	TransactionID string
	FailureReason string
	ProcessedAt   time.Time
}

type OrderRepository interface {
	CreateWithItems(ctx context.Context, order *model.Order, items []*model.OrderItem) error
	FindByOrderID(ctx context.Context, orderID string) (*model.Order, error)
	ExistsBySessionID(ctx context.Context, sessionID string) (bool, error)
	UpdatePayment(ctx context.Context, orderID string, update *PaymentUpdate) (*model.Order, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) CreateWithItems(ctx context.Context, order *model.Order, items []*model.OrderItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
}

func (r *orderRepoImpl) FindByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) ExistsBySessionID(ctx context.Context, sessionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error

	return count > 0, err
}

// UpdatePayment writes status and payment info absolutely, never relative to
// the current value, so re-applying the same update is harmless. Updates
// older than the already-applied payment timestamp are skipped with
// ErrStaleUpdate.
func (r *orderRepoImpl) UpdatePayment(ctx context.Context, orderID string, update *PaymentUpdate) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Order{}).
			Where("order_id = ?", orderID).
			Where("payment_processed_at IS NULL OR payment_processed_at <= ?", update.ProcessedAt).
			Updates(map[string]interface{}{
				"status":               update.Status,
				"payment_status":       update.PaymentStatus,
				"transaction_id":       update.TransactionID,
				"failure_reason":       update.FailureReason,
				"payment_processed_at": update.ProcessedAt,
				"updated_at":           time.Now(),
			})

		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// distinguish a missing order from a stale event
			if err := tx.Where("order_id = ?", orderID).First(&order).Error; err != nil {
				return err
			}
			return ErrStaleUpdate
		}

		return tx.Where("order_id = ?", orderID).First(&order).Error
	})

	if err != nil && !errors.Is(err, ErrStaleUpdate) {
		return nil, err
	}

	return &order, err
}
