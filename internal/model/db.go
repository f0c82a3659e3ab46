package model

import "time"

type Product struct {
	ID              string `gorm:"primaryKey;size:64;not null"` // product sku
	Name            string `gorm:"size:128;not null"`
	BasePrice       int64  `gorm:"not null"` // cents
	Currency        string `gorm:"size:8;not null"`
	StripeProductID string `gorm:"size:64"`
	StripePriceID   string `gorm:"size:64"`
}

type CustomizationOption struct {
	ID            string `gorm:"primaryKey;size:64;not null"`
	ProductID     string `gorm:"size:64;index;not null"`
	Name          string `gorm:"size:128;not null"`
	AllowMultiple bool   `gorm:"not null"`

	Choices []CustomizationChoice `gorm:"foreignKey:OptionID"`
}

type CustomizationChoice struct {
	ID            string `gorm:"primaryKey;size:64;not null"`
	OptionID      string `gorm:"size:64;index;not null"`
	Label         string `gorm:"size:128;not null"`
	PriceModifier int64  `gorm:"not null"` // signed, cents
}

type CartItem struct {
	ID        uint   `gorm:"primaryKey"`
	OwnerID   string `gorm:"size:64;index;not null"` // user id or anonymous session id
	ProductID string `gorm:"size:64;not null"`
	Quantity  int32  `gorm:"not null"`
	// JSON array of {optionId, choiceId, customValue}
	Selections string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Order struct {
	OrderID   string `gorm:"primaryKey;size:64;not null"`
	OwnerID   string `gorm:"size:64;index"`
	SessionID string `gorm:"size:128;uniqueIndex;not null"` // gateway checkout session id
	Status    string `gorm:"size:32;index;not null"`        // pending, processing, requires_action, confirmed, failed, canceled

	Subtotal     int64  `gorm:"not null"`
	DeliveryCost int64  `gorm:"not null"`
	TotalAmount  int64  `gorm:"not null"`
	Currency     string `gorm:"size:8;not null"`

	PaymentMethod      string `gorm:"size:32"`
	PaymentStatus      string `gorm:"size:32"`
	TransactionID      string `gorm:"size:128"`
	FailureReason      string `gorm:"size:255"`
	PaymentProcessedAt *time.Time

	CustomerEmail string `gorm:"size:128"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	ID uint `gorm:"primaryKey"`
	// FK → order.order_id
	OrderID string `gorm:"size:64;index;not null"`
	// FK → product.id
	ProductID string `gorm:"size:64;index;not null"`
	Name      string `gorm:"size:128;not null"`
	Quantity  int32  `gorm:"not null"`
	UnitPrice int64  `gorm:"not null"`
	// JSON array of {optionId, choiceId, customValue}
	Selections string `gorm:"type:text"`

	CreatedAt time.Time
}

type PaymentEvent struct {
	EventID     string `gorm:"primaryKey;size:128;uniqueIndex;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
