package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `gorm:"primaryKey;size:64;not null"` // product sku
	Name      string          `gorm:"size:128;not null"`
	Category  string          `gorm:"size:64;index"`
	Packaging string          `gorm:"size:32"` // SACHET, STANDUP_POUCH
	Currency  string          `gorm:"size:8;not null"`
	TaxRate   decimal.Decimal `gorm:"type:decimal(5,4);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Plan is a purchase option on a product: either a one-time buy or a
// subscription commitment tier (30/60/90/180 days), each with its own price
// and duration discount.
type Plan struct {
	ID           uint     `gorm:"primaryKey"`
	ProductID    string   `gorm:"size:64;index;not null"`
	DurationDays int      `gorm:"not null"`
	Type         PlanType `gorm:"size:32;not null"`
	CapsuleCount int32
	SachetCount  int32

	Price decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	// Legacy flat stand-up pouch price, kept for rows written before the
	// nested one-time structure existed. OneTimePrice wins when both are set.
	LegacyPouchPrice *decimal.Decimal `gorm:"type:decimal(10,2)"`
	OneTimePrice     *decimal.Decimal `gorm:"type:decimal(10,2)"`

	MemberPrice       *decimal.Decimal `gorm:"type:decimal(10,2)"`
	MemberDiscountPct *decimal.Decimal `gorm:"type:decimal(5,2)"`
	// Duration-tier discount applied on top of membership/coupon discounts.
	DiscountPct decimal.Decimal `gorm:"type:decimal(5,2);not null"`

	Product Product `gorm:"foreignKey:ProductID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveUnitPrice resolves the legacy/nested price coexistence: the nested
// one-time price wins, then the legacy pouch price, then the plan price.
func (p *Plan) EffectiveUnitPrice() decimal.Decimal {
	if p.Type == PlanOneTime {
		if p.OneTimePrice != nil {
			return *p.OneTimePrice
		}
		if p.LegacyPouchPrice != nil {
			return *p.LegacyPouchPrice
		}
	}
	return p.Price
}

type Coupon struct {
	ID   uint   `gorm:"primaryKey"`
	Code string `gorm:"size:64;uniqueIndex;not null"` // stored uppercase

	Type              CouponType       `gorm:"size:16;not null"`
	Value             decimal.Decimal  `gorm:"type:decimal(10,2);not null"`
	MinOrderAmount    decimal.Decimal  `gorm:"type:decimal(10,2);not null"`
	MaxDiscountAmount *decimal.Decimal `gorm:"type:decimal(10,2)"`

	UsageLimit     int `gorm:"not null"` // 0 = unlimited
	UserUsageLimit int `gorm:"not null"` // 0 = unlimited
	UsedCount      int `gorm:"not null"`

	ValidFrom  *time.Time
	ValidUntil *time.Time
	IsActive   bool `gorm:"not null;index"`

	Products   []CouponProduct  `gorm:"foreignKey:CouponID"`
	Categories []CouponCategory `gorm:"foreignKey:CouponID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type CouponProduct struct {
	ID        uint   `gorm:"primaryKey"`
	CouponID  uint   `gorm:"index;not null"`
	ProductID string `gorm:"size:64;not null"`
	Excluded  bool   `gorm:"not null"`
}

type CouponCategory struct {
	ID       uint   `gorm:"primaryKey"`
	CouponID uint   `gorm:"index;not null"`
	Category string `gorm:"size:64;not null"`
}

// CouponUsage tracks per-user redemptions; rows are written only at order
// confirmation, never during validation.
type CouponUsage struct {
	CouponID  uint   `gorm:"primaryKey"`
	UserID    string `gorm:"primaryKey;size:64"`
	UsedCount int    `gorm:"not null"`
	UpdatedAt time.Time
}

type Payment struct {
	ID           string  `gorm:"primaryKey;size:64"`
	OrderID      *string `gorm:"size:64;index"`
	MembershipID *string `gorm:"size:64;index"`
	UserID       string  `gorm:"size:64;index;not null"`

	Gateway string `gorm:"size:32;not null"`
	// Method key the gateway was looked up by at creation time; never
	// re-inferred later.
	Method string `gorm:"size:32;not null"`

	Amount   decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency string          `gorm:"size:8;not null"`

	Status               PaymentStatus `gorm:"size:16;index;not null"`
	GatewayTransactionID string        `gorm:"size:128;index"`
	GatewaySessionID     string        `gorm:"size:128"`
	FailureReason        string        `gorm:"size:255"`

	RefundAmount *decimal.Decimal `gorm:"type:decimal(10,2)"`
	RefundReason string           `gorm:"size:255"`

	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	ID          string `gorm:"primaryKey;size:64"`
	OrderNumber string `gorm:"size:32;uniqueIndex;not null"`
	UserID      string `gorm:"size:64;index;not null"`

	Status OrderStatus `gorm:"size:16;index;not null"`
	// Derived from the most recent reconciled Payment but stored
	// independently so order reads skip the payments join.
	PaymentStatus PaymentStatus `gorm:"size:16;not null"`

	PlanType     PlanType `gorm:"size:32;not null"`
	DurationDays int

	CouponCode string `gorm:"size:64"`

	// Pricing breakdown snapshot taken at confirmation time.
	Currency           string          `gorm:"size:8;not null"`
	SubtotalAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	MembershipDiscount decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	CouponDiscount     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	PlanDiscount       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TaxAmount          decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	ShippingAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	GrandTotal         decimal.Decimal `gorm:"type:decimal(10,2);not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID        uint    `gorm:"primaryKey"`
	OrderID   string  `gorm:"size:64;index;not null"`
	ProductID string  `gorm:"size:64;not null"`
	VariantID *string `gorm:"size:64"`
	PlanID    uint
	Quantity  int32           `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TaxRate   decimal.Decimal `gorm:"type:decimal(5,4);not null"`
	Currency  string          `gorm:"size:8;not null"`
	CreatedAt time.Time
}

type Subscription struct {
	ID                 string `gorm:"primaryKey;size:64"`
	SubscriptionNumber string `gorm:"size:32;uniqueIndex;not null"`
	UserID             string `gorm:"size:64;index;not null"`
	OrderID            string `gorm:"size:64;uniqueIndex;not null"`

	Status    SubscriptionStatus `gorm:"size:16;index;not null"`
	CycleDays int                `gorm:"not null"`

	StartDate           time.Time
	EndDate             time.Time
	InitialDeliveryDate time.Time
	NextDeliveryDate    *time.Time
	NextBillingDate     *time.Time
	LastBilledDate      *time.Time
	LastDeliveredDate   *time.Time

	PausedAt    *time.Time
	PausedUntil *time.Time

	CancelledAt  *time.Time
	CancelledBy  string `gorm:"size:64"`
	CancelReason string `gorm:"size:255"`

	Items []SubscriptionItem `gorm:"foreignKey:SubscriptionID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type SubscriptionItem struct {
	ID             uint            `gorm:"primaryKey"`
	SubscriptionID string          `gorm:"size:64;index;not null"`
	ProductID      string          `gorm:"size:64;not null"`
	Quantity       int32           `gorm:"not null"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency       string          `gorm:"size:8;not null"`
}

type PostponementRequest struct {
	ID             string `gorm:"primaryKey;size:64"`
	OrderID        string `gorm:"size:64;index;not null"`
	SubscriptionID string `gorm:"size:64;index;not null"`
	UserID         string `gorm:"size:64;index;not null"`

	RequestedDeliveryDate time.Time          `gorm:"not null"`
	Status                PostponementStatus `gorm:"size:16;index;not null"`
	Reason                string             `gorm:"size:255"`

	DecidedAt *time.Time
	DecidedBy string `gorm:"size:64"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Address is a narrow read model; address CRUD lives outside this core and
// the checkout summary only resolves ids it is handed.
type Address struct {
	ID         string `gorm:"primaryKey;size:64"`
	UserID     string `gorm:"size:64;index;not null"`
	Name       string `gorm:"size:128"`
	Street     string `gorm:"size:255"`
	City       string `gorm:"size:128"`
	PostalCode string `gorm:"size:32"`
	Country    string `gorm:"size:64"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Membership is the narrow read model the discount resolver consumes;
// membership purchase and renewal live outside this core.
type Membership struct {
	ID          uint            `gorm:"primaryKey"`
	UserID      string          `gorm:"size:64;index;not null"`
	PlanName    string          `gorm:"size:64"`
	DiscountPct decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	IsActive    bool            `gorm:"not null;index"`
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WebhookEvent records processed gateway event ids so at-least-once
// deliveries are applied exactly once.
type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	Provider    string `gorm:"size:32;index"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
