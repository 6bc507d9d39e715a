package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"checkout-core/internal/apperr"
	"checkout-core/internal/client"
	"checkout-core/internal/model"
	"checkout-core/internal/repository"
)

// fakeGateway answers with scripted results so tests drive the state machine
// without a provider.
type fakeGateway struct {
	name         string
	intent       *client.PaymentIntent
	verifyStatus model.PaymentStatus
	webhookEvent *client.WebhookEvent

	refundCalls int
	cancelCalls int
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) CreateIntent(ctx context.Context, req *client.IntentRequest) (*client.PaymentIntent, error) {
	return g.intent, nil
}

func (g *fakeGateway) Verify(ctx context.Context, gatewayTransactionID string) (model.PaymentStatus, error) {
	return g.verifyStatus, nil
}

func (g *fakeGateway) Refund(ctx context.Context, gatewayTransactionID string, amount model.Money, reason string) error {
	g.refundCalls++
	return nil
}

func (g *fakeGateway) Cancel(ctx context.Context, gatewayTransactionID string) error {
	g.cancelCalls++
	return nil
}

func (g *fakeGateway) ParseWebhook(ctx context.Context, headers map[string][]string, body []byte) (*client.WebhookEvent, error) {
	return g.webhookEvent, nil
}

type paymentFixture struct {
	db      *gorm.DB
	gateway *fakeGateway
	service PaymentService

	paymentRepo      repository.PaymentRepository
	orderRepo        repository.OrderRepository
	subscriptionRepo repository.SubscriptionRepository
}

func newPaymentFixture(t *testing.T) *paymentFixture {
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

	paymentRepo := repository.NewPaymentRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)

	return &paymentFixture{
		db:      db,
		gateway: gw,
		service: NewPaymentService(
			db, registry, 5*time.Second,
			paymentRepo, orderRepo,
			subscriptionRepo,
			repository.NewWebhookEventRepository(db),
		),
		paymentRepo:      paymentRepo,
		orderRepo:        orderRepo,
		subscriptionRepo: subscriptionRepo,
	}
}

func (f *paymentFixture) seedOrder(t *testing.T, userID string, planType model.PlanType, durationDays int) *model.Order {
	t.Helper()
	order := &model.Order{
		ID:            uuid.NewString(),
		OrderNumber:   "ORD-" + uuid.NewString()[:8],
		UserID:        userID,
		Status:        model.OrderConfirmed,
		PaymentStatus: model.PaymentPending,
		PlanType:      planType,
		DurationDays:  durationDays,
		Currency:      "EUR",
		GrandTotal:    dec(t, "102.85"),
	}
	require.NoError(t, f.db.Create(order).Error)
	require.NoError(t, f.db.Create(&model.OrderItem{
		OrderID:   order.ID,
		ProductID: "sku-1",
		Quantity:  1,
		UnitPrice: dec(t, "100"),
		TaxRate:   dec(t, "0.21"),
		Currency:  "EUR",
	}).Error)
	return order
}

func (f *paymentFixture) createPayment(t *testing.T, userID, orderID string) *model.Payment {
	t.Helper()
	result, err := f.service.CreatePayment(context.Background(), userID, &CreatePaymentInput{
		OrderID:   orderID,
		Method:    "fakepay",
		ReturnURL: "https://shop.test/return",
	})
	require.NoError(t, err)

	payment, err := f.paymentRepo.FindByID(context.Background(), result.PaymentID)
	require.NoError(t, err)
	require.NotNil(t, payment)
	return payment
}

func TestCreatePaymentRecordsIntent(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(t, "u1", model.PlanOneTime, 0)

	payment := f.createPayment(t, "u1", order.ID)

	require.Equal(t, model.PaymentPending, payment.Status)
	require.Equal(t, "fakepay", payment.Gateway)
	require.Equal(t, "fakepay", payment.Method)
	require.Equal(t, "txn-1", payment.GatewayTransactionID)
	require.Equal(t, "102.85", payment.Amount.StringFixed(2))
}

func TestCreatePaymentRejectsForeignOrder(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(t, "owner", model.PlanOneTime, 0)

	_, err := f.service.CreatePayment(context.Background(), "stranger", &CreatePaymentInput{
		OrderID: order.ID,
		Method:  "fakepay",
	})
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindAuthorization))
}

func TestVerifyAppliesGatewayStatus(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(t, "u1", model.PlanOneTime, 0)
	payment := f.createPayment(t, "u1", order.ID)

	f.gateway.verifyStatus = model.PaymentCompleted

	updated, err := f.service.Verify(context.Background(), "u1", payment.ID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentCompleted, updated.Status)
	require.NotNil(t, updated.ProcessedAt)

	refreshedOrder, err := f.orderRepo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentCompleted, refreshedOrder.PaymentStatus)
}

func TestWebhookAfterVerifySameOutcomeIsNoop(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(t, "u1", model.PlanOneTime, 0)
	payment := f.createPayment(t, "u1", order.ID)

	f.gateway.verifyStatus = model.PaymentCompleted
	_, err := f.service.Verify(context.Background(), "u1", payment.ID)
	require.NoError(t, err)

	f.gateway.webhookEvent = &client.WebhookEvent{
		EventID:              "evt-1",
		Provider:             "fakepay",
		EventType:            "payment.completed",
		GatewayTransactionID: "txn-1",
		Status:               model.PaymentCompleted,
	}
	require.NoError(t, f.service.HandleWebhook(context.Background(), "fakepay", nil, []byte("{}")))

	updated, err := f.paymentRepo.FindByID(context.Background(), payment.ID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentCompleted, updated.Status)
}

func TestWebhookContradictingTerminalStatusConflicts(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(t, "u1", model.PlanOneTime, 0)
	payment := f.createPayment(t, "u1", order.ID)

	f.gateway.verifyStatus = model.PaymentCompleted
	_, err := f.service.Verify(context.Background(), "u1", payment.ID)
	require.NoError(t, err)

	f.gateway.webhookEvent = &client.WebhookEvent{
		EventID:              "evt-2",
		Provider:             "fakepay",
		EventType:            "payment.failed",
		GatewayTransactionID: "txn-1",
		Status:               model.PaymentFailed,
		FailureReason:        "card declined",
	}
	err = f.service.HandleWebhook(context.Background(), "fakepay", nil, []byte("{}"))
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))

	// The applied outcome stays.
	updated, findErr := f.paymentRepo.FindByID(context.Background(), payment.ID)
	require.NoError(t, findErr)
	require.Equal(t, model.PaymentCompleted, updated.Status)
}

func TestWebhookReplayCreatesOneSubscription(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(t, "u1", model.PlanSubscription, 90)
	f.createPayment(t, "u1", order.ID)

	f.gateway.webhookEvent = &client.WebhookEvent{
		EventID:              "evt-3",
		Provider:             "fakepay",
		EventType:            "payment.completed",
		GatewayTransactionID: "txn-1",
		Status:               model.PaymentCompleted,
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, f.service.HandleWebhook(context.Background(), "fakepay", nil, []byte("{}")))
	}

	var count int64
	require.NoError(t, f.db.Model(&model.Subscription{}).
		Where("order_id = ?", order.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)

	sub, err := f.subscriptionRepo.FindByOrderID(context.Background(), f.db, order.ID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	require.Equal(t, model.SubscriptionActive, sub.Status)
	require.Equal(t, 90, sub.CycleDays)
	require.NotNil(t, sub.NextBillingDate)
	require.Len(t, sub.Items, 0) // FindByOrderID does not preload items

	full, err := f.subscriptionRepo.FindByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, full.Items, 1)
}

func TestPartialRefundKeepsCompleted(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(t, "u1", model.PlanOneTime, 0)
	payment := f.createPayment(t, "u1", order.ID)

	f.gateway.verifyStatus = model.PaymentCompleted
	_, err := f.service.Verify(context.Background(), "u1", payment.ID)
	require.NoError(t, err)

	partial := dec(t, "20")
	updated, err := f.service.Refund(context.Background(), "u1", payment.ID, &partial, "damaged item")
	require.NoError(t, err)
	require.Equal(t, model.PaymentCompleted, updated.Status)
	require.Equal(t, "20", updated.RefundAmount.String())

	// Refunding the rest flips the payment to REFUNDED.
	updated, err = f.service.Refund(context.Background(), "u1", payment.ID, nil, "order cancelled")
	require.NoError(t, err)
	require.Equal(t, model.PaymentRefunded, updated.Status)
	require.Equal(t, "102.85", updated.RefundAmount.StringFixed(2))
	require.Equal(t, 2, f.gateway.refundCalls)
}

func TestRefundRejectsOverRemaining(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(t, "u1", model.PlanOneTime, 0)
	payment := f.createPayment(t, "u1", order.ID)

	f.gateway.verifyStatus = model.PaymentCompleted
	_, err := f.service.Verify(context.Background(), "u1", payment.ID)
	require.NoError(t, err)

	tooMuch := dec(t, "200")
	_, err = f.service.Refund(context.Background(), "u1", payment.ID, &tooMuch, "")
	require.Error(t, err)
	require.Equal(t, "invalid_refund_amount", appErrCode(t, err))
	require.Equal(t, 0, f.gateway.refundCalls)
}

func TestRefundRequiresCompleted(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(t, "u1", model.PlanOneTime, 0)
	payment := f.createPayment(t, "u1", order.ID)

	_, err := f.service.Refund(context.Background(), "u1", payment.ID, nil, "")
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindState))
}

func TestCancelPendingPayment(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(t, "u1", model.PlanOneTime, 0)
	payment := f.createPayment(t, "u1", order.ID)

	updated, err := f.service.Cancel(context.Background(), "u1", payment.ID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentCancelled, updated.Status)
	require.Equal(t, 1, f.gateway.cancelCalls)

	// Terminal now; a second cancel is a state error.
	_, err = f.service.Cancel(context.Background(), "u1", payment.ID)
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindState))
}

func TestResolveReturn(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	require.Equal(t, "/payment/failed", f.service.ResolveReturn(ctx, "", "", ""))
	require.Equal(t, "/payment/failed", f.service.ResolveReturn(ctx, "txn-unknown", "", ""))

	order := f.seedOrder(t, "u1", model.PlanOneTime, 0)
	f.createPayment(t, "u1", order.ID)

	f.gateway.verifyStatus = model.PaymentProcessing
	require.Equal(t, "/payment/pending", f.service.ResolveReturn(ctx, "txn-1", order.ID, ""))

	f.gateway.verifyStatus = model.PaymentCompleted
	require.Equal(t, "/order/success", f.service.ResolveReturn(ctx, "txn-1", order.ID, ""))

	// Already terminal: resolved without another gateway round trip.
	f.gateway.verifyStatus = model.PaymentFailed
	require.Equal(t, "/order/success", f.service.ResolveReturn(ctx, "txn-1", order.ID, ""))
}
