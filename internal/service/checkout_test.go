package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"checkout-core/internal/client"
	"checkout-core/internal/model"
	"checkout-core/internal/repository"
)

type checkoutFixture struct {
	db      *gorm.DB
	gateway *fakeGateway
	service CheckoutService

	couponRepo repository.CouponRepository
	orderRepo  repository.OrderRepository
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	db := newTestDB(t)

	gw := &fakeGateway{
		name: "fakepay",
		intent: &client.PaymentIntent{
			GatewayTransactionID: "txn-1",
			RedirectURL:          "https://fakepay.test/approve/txn-1",
		},
	}
	registry := client.NewRegistry()
	registry.Register("fakepay", gw)

	couponRepo := repository.NewCouponRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)

	coupons := NewCouponService(couponRepo)
	discounts := NewDiscountResolver(repository.NewMembershipRepository(db))
	pricing := NewPricingEngine(discounts, coupons, repository.NewProductRepository(db))
	payments := NewPaymentService(
		db, registry, 5*time.Second,
		paymentRepo, orderRepo, subscriptionRepo,
		repository.NewWebhookEventRepository(db),
	)

	return &checkoutFixture{
		db:         db,
		gateway:    gw,
		couponRepo: couponRepo,
		orderRepo:  orderRepo,
		service: NewCheckoutService(
			db, pricing, coupons, payments, model.ZeroMoney("EUR"),
			orderRepo, paymentRepo, subscriptionRepo,
			repository.NewAddressRepository(db),
		),
	}
}

func (f *checkoutFixture) seedCatalog(t *testing.T) *model.Plan {
	t.Helper()
	return seedPlan(t, f.db, &model.Plan{
		Type:  model.PlanOneTime,
		Price: dec(t, "100"),
	}, &model.Product{
		ID:       "sku-1",
		Name:     "Multivitamin",
		Category: "vitamins",
		Currency: "EUR",
		TaxRate:  dec(t, "0.21"),
	})
}

func TestSummaryResolvesAddressesWithoutTouchingCoupons(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	plan := f.seedCatalog(t)

	require.NoError(t, f.db.Create(activeFixedCoupon("SAVE5", dec(t, "5"))).Error)
	require.NoError(t, f.db.Create(&model.Address{
		ID: "addr-1", UserID: "u1", City: "Amsterdam", Country: "NL",
	}).Error)

	summary, err := f.service.Summary(ctx, "u1", &SummaryInput{
		Selections:        []PlanSelection{{PlanID: plan.ID, Quantity: 1}},
		CouponCode:        "SAVE5",
		ShippingAddressID: "addr-1",
	})
	require.NoError(t, err)
	require.True(t, summary.Breakdown.CouponApplied)
	require.Len(t, summary.Lines, 1)
	require.NotNil(t, summary.ShippingAddress)
	require.Equal(t, "Amsterdam", summary.ShippingAddress.City)
	require.Nil(t, summary.BillingAddress)

	// Read-only: no usage consumed.
	coupon, err := f.couponRepo.FindByCode(ctx, "SAVE5")
	require.NoError(t, err)
	require.Equal(t, 0, coupon.UsedCount)

	// Another user's address id is rejected.
	_, err = f.service.Summary(ctx, "stranger", &SummaryInput{
		Selections:        []PlanSelection{{PlanID: plan.ID, Quantity: 1}},
		ShippingAddressID: "addr-1",
	})
	require.Error(t, err)
}

func TestApplyCouponKeepsPriorValidCode(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	plan := f.seedCatalog(t)

	require.NoError(t, f.db.Create(activeFixedCoupon("SAVE5", dec(t, "5"))).Error)
	selections := []PlanSelection{{PlanID: plan.ID, Quantity: 1}}

	applied, err := f.service.ApplyCoupon(ctx, "u1", selections, "SAVE5", "")
	require.NoError(t, err)
	require.Equal(t, "SAVE5", applied.AppliedCode)
	require.True(t, applied.Breakdown.CouponApplied)

	// A failing new code reports the failure but keeps the old discount.
	result, err := f.service.ApplyCoupon(ctx, "u1", selections, "BOGUS", "SAVE5")
	require.NoError(t, err)
	require.Equal(t, "BOGUS", result.FailedCode)
	require.Equal(t, "coupon_not_found", result.FailedMessage)
	require.Equal(t, "SAVE5", result.AppliedCode)
	require.Equal(t, "5.00", result.Breakdown.CouponDiscount.StringFixed())

	// Null/empty code removes the coupon entirely.
	removed, err := f.service.ApplyCoupon(ctx, "u1", selections, "", "SAVE5")
	require.NoError(t, err)
	require.Empty(t, removed.AppliedCode)
	require.Equal(t, "0.00", removed.Breakdown.CouponDiscount.StringFixed())
}

func TestPlaceOrderSnapshotsBreakdownAndConsumesCoupon(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	plan := f.seedCatalog(t)

	require.NoError(t, f.db.Create(activeFixedCoupon("SAVE5", dec(t, "5"))).Error)

	result, err := f.service.PlaceOrder(ctx, "u1", &PlaceOrderInput{
		Selections: []PlanSelection{{PlanID: plan.ID, Quantity: 1}},
		CouponCode: "SAVE5",
		Method:     "fakepay",
		ReturnURL:  "https://shop.test/return",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.OrderNumber)
	require.Equal(t, "https://fakepay.test/approve/txn-1", result.Payment.RedirectURL)

	order, err := f.orderRepo.FindByID(ctx, result.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.OrderConfirmed, order.Status)
	require.Equal(t, model.PaymentPending, order.PaymentStatus)
	require.Equal(t, "SAVE5", order.CouponCode)
	require.Equal(t, "100.00", order.SubtotalAmount.StringFixed(2))
	require.Equal(t, "5.00", order.CouponDiscount.StringFixed(2))
	require.Equal(t, "19.95", order.TaxAmount.StringFixed(2))
	require.Equal(t, "114.95", order.GrandTotal.StringFixed(2))

	// Usage counted exactly once, at confirmation.
	coupon, err := f.couponRepo.FindByCode(ctx, "SAVE5")
	require.NoError(t, err)
	require.Equal(t, 1, coupon.UsedCount)

	items, err := f.orderRepo.GetOrderItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "sku-1", items[0].ProductID)
	require.Equal(t, "100.00", items[0].UnitPrice.StringFixed(2))
}

func TestPlaceOrderDegradesExhaustedCoupon(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	plan := f.seedCatalog(t)

	coupon := activeFixedCoupon("LAST1", dec(t, "5"))
	coupon.UsageLimit = 1
	coupon.UsedCount = 1
	require.NoError(t, f.db.Create(coupon).Error)

	_, err := f.service.PlaceOrder(ctx, "u1", &PlaceOrderInput{
		Selections: []PlanSelection{{PlanID: plan.ID, Quantity: 1}},
		CouponCode: "LAST1",
		Method:     "fakepay",
	})
	require.NoError(t, err)

	// The order went through without the coupon discount.
	var orders []model.Order
	require.NoError(t, f.db.Find(&orders).Error)
	require.Len(t, orders, 1)
	require.Empty(t, orders[0].CouponCode)
	require.Equal(t, "0.00", orders[0].CouponDiscount.StringFixed(2))
}

func TestOrderSummaryAssemblesRelatedRecords(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	plan := f.seedCatalog(t)

	placed, err := f.service.PlaceOrder(ctx, "u1", &PlaceOrderInput{
		Selections: []PlanSelection{{PlanID: plan.ID, Quantity: 2}},
		Method:     "fakepay",
	})
	require.NoError(t, err)

	summary, err := f.service.OrderSummary(ctx, "u1", placed.OrderID)
	require.NoError(t, err)
	require.Equal(t, placed.OrderID, summary.Order.ID)
	require.Len(t, summary.Items, 1)
	require.Len(t, summary.Payments, 1)
	require.Equal(t, model.PaymentPending, summary.Payments[0].Status)
	require.Nil(t, summary.Subscription)

	// Ownership enforced on the read path too.
	_, err = f.service.OrderSummary(ctx, "stranger", placed.OrderID)
	require.Error(t, err)
}
