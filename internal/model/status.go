package model

// PaymentStatus is the uniform lifecycle every gateway's native states map
// onto. Completed, Failed, Cancelled and Refunded are terminal: a failed
// payment is retried with a new Payment record, never a status reset.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentCancelled  PaymentStatus = "CANCELLED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentCompleted, PaymentFailed, PaymentCancelled, PaymentRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether the forward transition s -> next is legal.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentProcessing || next == PaymentCompleted ||
			next == PaymentFailed || next == PaymentCancelled
	case PaymentProcessing:
		return next == PaymentCompleted || next == PaymentFailed || next == PaymentCancelled
	case PaymentCompleted:
		return next == PaymentRefunded
	}
	return false
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionPaused    SubscriptionStatus = "PAUSED"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
	SubscriptionSuspended SubscriptionStatus = "SUSPENDED"
)

// Terminal subscription states never advance billing dates again.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionCancelled || s == SubscriptionExpired
}

type PostponementStatus string

const (
	PostponementPending   PostponementStatus = "PENDING"
	PostponementApproved  PostponementStatus = "APPROVED"
	PostponementRejected  PostponementStatus = "REJECTED"
	PostponementCancelled PostponementStatus = "CANCELLED"
)

type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// PlanType distinguishes a one-time purchase from a recurring subscription.
type PlanType string

const (
	PlanOneTime      PlanType = "ONE_TIME"
	PlanSubscription PlanType = "SUBSCRIPTION"
)
