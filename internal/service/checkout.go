package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"checkout-core/internal/apperr"
	"checkout-core/internal/model"
	"checkout-core/internal/repository"
)

type SummaryInput struct {
	Selections []PlanSelection
	CouponCode string
	// Optional address ids resolved through the narrow read interface;
	// address management is owned by another service.
	ShippingAddressID string
	BillingAddressID  string
}

type SummaryResult struct {
	Breakdown       *model.PricingBreakdown `json:"breakdown"`
	Lines           []model.CartLine        `json:"lines"`
	ShippingAddress *model.Address          `json:"shipping_address,omitempty"`
	BillingAddress  *model.Address          `json:"billing_address,omitempty"`
}

type ApplyCouponResult struct {
	Breakdown *model.PricingBreakdown `json:"breakdown"`
	// Set when the submitted code failed; a previously applied valid code is
	// kept and reported here rather than silently discarded.
	FailedCode    string `json:"failed_code,omitempty"`
	FailedMessage string `json:"failed_message,omitempty"`
	AppliedCode   string `json:"applied_code,omitempty"`
}

type PlaceOrderInput struct {
	Selections []PlanSelection
	CouponCode string
	Method     string
	ReturnURL  string
	Nonce      string
}

type PlaceOrderResult struct {
	OrderID     string               `json:"order_id"`
	OrderNumber string               `json:"order_number"`
	Payment     *CreatePaymentResult `json:"payment"`
}

// OrderSummary is the fetch-and-assemble read model: order, payments and
// subscription are loaded with parallel reads and stitched together, instead
// of a join on every order read.
type OrderSummary struct {
	Order        *model.Order        `json:"order"`
	Items        []*model.OrderItem  `json:"items"`
	Payments     []*model.Payment    `json:"payments"`
	Subscription *model.Subscription `json:"subscription,omitempty"`
}

type CheckoutService interface {
	// Summary is read-only: it never touches coupon usage counters.
	Summary(ctx context.Context, userID string, in *SummaryInput) (*SummaryResult, error)
	ApplyCoupon(ctx context.Context, userID string, selections []PlanSelection, newCode, currentCode string) (*ApplyCouponResult, error)
	PlaceOrder(ctx context.Context, userID string, in *PlaceOrderInput) (*PlaceOrderResult, error)
	OrderSummary(ctx context.Context, userID, orderID string) (*OrderSummary, error)
}

type checkoutServiceImpl struct {
	db       *gorm.DB
	pricing  PricingEngine
	coupons  CouponService
	payments PaymentService
	shipping model.Money

	orderRepo        repository.OrderRepository
	paymentRepo      repository.PaymentRepository
	subscriptionRepo repository.SubscriptionRepository
	addressRepo      repository.AddressRepository
}

func NewCheckoutService(
	db *gorm.DB,
	pricing PricingEngine,
	coupons CouponService,
	payments PaymentService,
	shipping model.Money,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	subscriptionRepo repository.SubscriptionRepository,
	addressRepo repository.AddressRepository,
) CheckoutService {
	return &checkoutServiceImpl{
		db:               db,
		pricing:          pricing,
		coupons:          coupons,
		payments:         payments,
		shipping:         shipping,
		orderRepo:        orderRepo,
		paymentRepo:      paymentRepo,
		subscriptionRepo: subscriptionRepo,
		addressRepo:      addressRepo,
	}
}

func (s *checkoutServiceImpl) Summary(ctx context.Context, userID string, in *SummaryInput) (*SummaryResult, error) {
	lines, _, err := s.pricing.BuildLines(ctx, in.Selections)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.pricing.Quote(ctx, &QuoteRequest{
		UserID:     userID,
		Lines:      lines,
		CouponCode: in.CouponCode,
		Shipping:   s.shipping,
	})
	if err != nil {
		return nil, err
	}

	result := &SummaryResult{Breakdown: breakdown, Lines: lines}
	if result.ShippingAddress, err = s.resolveAddress(ctx, userID, in.ShippingAddressID); err != nil {
		return nil, err
	}
	if result.BillingAddress, err = s.resolveAddress(ctx, userID, in.BillingAddressID); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *checkoutServiceImpl) resolveAddress(ctx context.Context, userID, addressID string) (*model.Address, error) {
	if addressID == "" {
		return nil, nil
	}
	address, err := s.addressRepo.FindByID(ctx, addressID)
	if err != nil {
		return nil, fmt.Errorf("find address: %w", err)
	}
	if address == nil {
		return nil, apperr.NotFound("address_not_found", "unknown address")
	}
	if address.UserID != userID {
		return nil, apperr.Authorization("not_address_owner", "address belongs to another user")
	}
	return address, nil
}

func (s *checkoutServiceImpl) ApplyCoupon(ctx context.Context, userID string, selections []PlanSelection, newCode, currentCode string) (*ApplyCouponResult, error) {
	lines, _, err := s.pricing.BuildLines(ctx, selections)
	if err != nil {
		return nil, err
	}

	quote := func(code string) (*model.PricingBreakdown, error) {
		return s.pricing.Quote(ctx, &QuoteRequest{
			UserID:     userID,
			Lines:      lines,
			CouponCode: code,
			Shipping:   s.shipping,
		})
	}

	// Empty code removes the coupon.
	if newCode == "" {
		breakdown, err := quote("")
		if err != nil {
			return nil, err
		}
		return &ApplyCouponResult{Breakdown: breakdown}, nil
	}

	breakdown, err := quote(newCode)
	if err != nil {
		return nil, err
	}
	if breakdown.CouponApplied {
		return &ApplyCouponResult{Breakdown: breakdown, AppliedCode: breakdown.CouponCode}, nil
	}

	result := &ApplyCouponResult{
		FailedCode:    newCode,
		FailedMessage: breakdown.CouponMessage,
	}
	// The new code failed: fall back to the previously applied code so a
	// valid discount is never dropped silently.
	if currentCode != "" && !strings.EqualFold(currentCode, newCode) {
		fallback, err := quote(currentCode)
		if err != nil {
			return nil, err
		}
		result.Breakdown = fallback
		if fallback.CouponApplied {
			result.AppliedCode = currentCode
		}
	} else {
		result.Breakdown = breakdown
	}
	return result, nil
}

func (s *checkoutServiceImpl) PlaceOrder(ctx context.Context, userID string, in *PlaceOrderInput) (*PlaceOrderResult, error) {
	lines, currency, err := s.pricing.BuildLines(ctx, in.Selections)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.pricing.Quote(ctx, &QuoteRequest{
		UserID:     userID,
		Lines:      lines,
		CouponCode: in.CouponCode,
		Shipping:   s.shipping,
	})
	if err != nil {
		return nil, err
	}

	planType := model.PlanOneTime
	durationDays := 0
	for _, line := range lines {
		if line.PlanType == model.PlanSubscription {
			planType = model.PlanSubscription
			if line.DurationDays > durationDays {
				durationDays = line.DurationDays
			}
		}
	}

	order := &model.Order{
		ID:            uuid.NewString(),
		OrderNumber:   "ORD-" + strings.ToUpper(uuid.NewString()[:8]),
		UserID:        userID,
		Status:        model.OrderConfirmed,
		PaymentStatus: model.PaymentPending,
		PlanType:      planType,
		DurationDays:  durationDays,
		Currency:      currency,

		SubtotalAmount:     breakdown.OriginalSubtotal.Amount,
		MembershipDiscount: breakdown.MembershipDiscount.Amount,
		CouponDiscount:     breakdown.CouponDiscount.Amount,
		PlanDiscount:       breakdown.SubscriptionPlanDiscount.Amount,
		TaxAmount:          breakdown.TaxAmount.Amount,
		ShippingAmount:     breakdown.ShippingAmount.Amount,
		GrandTotal:         breakdown.GrandTotal.Amount,
	}
	if breakdown.CouponApplied {
		order.CouponCode = strings.ToUpper(in.CouponCode)
	}

	items := make([]*model.OrderItem, len(lines))
	for i, line := range lines {
		items[i] = &model.OrderItem{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			PlanID:    line.PlanID,
			Quantity:  int32(line.Quantity),
			UnitPrice: line.UnitPrice.Round().Amount,
			TaxRate:   line.UnitPrice.TaxRate,
			Currency:  currency,
		}
	}

	// Order creation and coupon consumption commit together: usage
	// increments exactly once per confirmed order, and a rejected increment
	// (cap raced away) rolls the whole confirmation back.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order: %w", err)
		}
		if err := s.orderRepo.CreateOrderItems(ctx, tx, items); err != nil {
			return fmt.Errorf("store order items: %w", err)
		}
		if breakdown.CouponApplied {
			if err := s.coupons.Confirm(ctx, tx, in.CouponCode, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.CreatePayment(ctx, userID, &CreatePaymentInput{
		OrderID:   order.ID,
		Method:    in.Method,
		ReturnURL: in.ReturnURL,
		Nonce:     in.Nonce,
	})
	if err != nil {
		return nil, err
	}

	return &PlaceOrderResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Payment:     payment,
	}, nil
}

func (s *checkoutServiceImpl) OrderSummary(ctx context.Context, userID, orderID string) (*OrderSummary, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return nil, apperr.NotFound("order_not_found", "unknown order")
	}
	if order.UserID != userID {
		return nil, apperr.Authorization("not_order_owner", "order belongs to another user")
	}

	summary := &OrderSummary{Order: order}

	var wg sync.WaitGroup
	errs := make([]error, 3)

	wg.Add(3)
	go func() {
		defer wg.Done()
		summary.Items, errs[0] = s.orderRepo.GetOrderItems(ctx, orderID)
	}()
	go func() {
		defer wg.Done()
		summary.Payments, errs[1] = s.paymentRepo.FindByOrderID(ctx, orderID)
	}()
	go func() {
		defer wg.Done()
		summary.Subscription, errs[2] = s.subscriptionRepo.FindByOrderID(ctx, nil, orderID)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("assemble order summary: %w", err)
		}
	}
	return summary, nil
}
