package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"checkout-core/internal/apperr"
	"checkout-core/internal/client"
	"checkout-core/internal/model"
	"checkout-core/internal/repository"
)

// How far ahead of activation the first delivery is scheduled.
const initialDeliveryLead = 3 * 24 * time.Hour

type CreatePaymentInput struct {
	OrderID      string
	MembershipID string
	Method       string
	ReturnURL    string
	Nonce        string
}

type CreatePaymentResult struct {
	PaymentID            string `json:"payment_id"`
	GatewayTransactionID string `json:"gateway_transaction_id,omitempty"`
	RedirectURL          string `json:"redirect_url,omitempty"`
	ClientSecret         string `json:"client_secret,omitempty"`
}

// PaymentService owns the Payment lifecycle. Every transition is a
// compare-and-set keyed on payment id + expected prior status, so the
// synchronous verification path and webhook delivery can race safely:
// whichever arrives second either no-ops (same outcome) or is rejected with
// a conflict when it contradicts an applied terminal outcome.
type PaymentService interface {
	CreatePayment(ctx context.Context, userID string, in *CreatePaymentInput) (*CreatePaymentResult, error)
	Verify(ctx context.Context, userID, paymentID string) (*model.Payment, error)
	Refund(ctx context.Context, userID, paymentID string, amount *decimal.Decimal, reason string) (*model.Payment, error)
	Cancel(ctx context.Context, userID, paymentID string) (*model.Payment, error)
	HandleWebhook(ctx context.Context, provider string, headers map[string][]string, body []byte) error
	ResolveReturn(ctx context.Context, gatewayTxnID, orderID, membershipID string) string
}

type paymentServiceImpl struct {
	db             *gorm.DB
	registry       *client.Registry
	gatewayTimeout time.Duration

	paymentRepo      repository.PaymentRepository
	orderRepo        repository.OrderRepository
	subscriptionRepo repository.SubscriptionRepository
	webhookEventRepo repository.WebhookEventRepository
}

func NewPaymentService(
	db *gorm.DB,
	registry *client.Registry,
	gatewayTimeout time.Duration,
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
	subscriptionRepo repository.SubscriptionRepository,
	webhookEventRepo repository.WebhookEventRepository,
) PaymentService {
	return &paymentServiceImpl{
		db:               db,
		registry:         registry,
		gatewayTimeout:   gatewayTimeout,
		paymentRepo:      paymentRepo,
		orderRepo:        orderRepo,
		subscriptionRepo: subscriptionRepo,
		webhookEventRepo: webhookEventRepo,
	}
}

func (s *paymentServiceImpl) CreatePayment(ctx context.Context, userID string, in *CreatePaymentInput) (*CreatePaymentResult, error) {
	gw, err := s.registry.ByMethod(in.Method)
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.FindByID(ctx, in.OrderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return nil, apperr.NotFound("order_not_found", "unknown order")
	}
	if order.UserID != userID {
		return nil, apperr.Authorization("not_order_owner", "order belongs to another user")
	}

	payment := &model.Payment{
		ID:       uuid.NewString(),
		OrderID:  &order.ID,
		UserID:   userID,
		Gateway:  gw.Name(),
		Method:   in.Method,
		Amount:   order.GrandTotal,
		Currency: order.Currency,
		Status:   model.PaymentPending,
	}
	if in.MembershipID != "" {
		payment.MembershipID = &in.MembershipID
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	// A timed-out or failed intent creation leaves the payment PENDING;
	// the client retries with a new attempt rather than guessing a status.
	intent, err := gw.CreateIntent(gwCtx, &client.IntentRequest{
		PaymentID:   payment.ID,
		OrderID:     order.ID,
		Amount:      model.NewMoney(order.GrandTotal, order.Currency),
		ReturnURL:   in.ReturnURL,
		Description: "Order " + order.OrderNumber,
		Nonce:       in.Nonce,
	})
	if err != nil {
		return nil, err
	}

	if intent.GatewayTransactionID != "" || intent.GatewaySessionID != "" {
		if err := s.paymentRepo.SetGatewayRefs(ctx, payment.ID, intent.GatewayTransactionID, intent.GatewaySessionID); err != nil {
			return nil, fmt.Errorf("record gateway refs: %w", err)
		}
	}

	return &CreatePaymentResult{
		PaymentID:            payment.ID,
		GatewayTransactionID: intent.GatewayTransactionID,
		RedirectURL:          intent.RedirectURL,
		ClientSecret:         intent.ClientSecret,
	}, nil
}

func (s *paymentServiceImpl) Verify(ctx context.Context, userID, paymentID string) (*model.Payment, error) {
	payment, err := s.ownedPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.GatewayTransactionID == "" {
		return nil, apperr.State("no_gateway_transaction", "payment has no gateway transaction yet")
	}

	gw, err := s.registry.ByMethod(payment.Method)
	if err != nil {
		return nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	status, err := gw.Verify(gwCtx, payment.GatewayTransactionID)
	if err != nil {
		return nil, err
	}

	if err := s.applyGatewayStatus(ctx, payment, status, ""); err != nil {
		return nil, err
	}
	return s.paymentRepo.FindByID(ctx, paymentID)
}

func (s *paymentServiceImpl) Refund(ctx context.Context, userID, paymentID string, amount *decimal.Decimal, reason string) (*model.Payment, error) {
	payment, err := s.ownedPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentCompleted {
		return nil, apperr.State("not_refundable", "only completed payments can be refunded")
	}

	refunded := decimal.Zero
	if payment.RefundAmount != nil {
		refunded = *payment.RefundAmount
	}
	remaining := payment.Amount.Sub(refunded)

	refundAmount := remaining
	if amount != nil {
		refundAmount = *amount
	}
	if refundAmount.LessThanOrEqual(decimal.Zero) || refundAmount.GreaterThan(remaining) {
		return nil, apperr.Validation("invalid_refund_amount", "refund amount exceeds the refundable balance")
	}

	gw, err := s.registry.ByMethod(payment.Method)
	if err != nil {
		return nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	if err := gw.Refund(gwCtx, payment.GatewayTransactionID, model.NewMoney(refundAmount, payment.Currency), reason); err != nil {
		return nil, err
	}

	totalRefunded := refunded.Add(refundAmount)
	full := totalRefunded.GreaterThanOrEqual(payment.Amount)

	// Partial refunds record amount and reason but keep COMPLETED; only a
	// full refund moves the payment to REFUNDED.
	to := model.PaymentCompleted
	if full {
		to = model.PaymentRefunded
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.paymentRepo.Transition(ctx, tx, payment.ID,
			[]model.PaymentStatus{model.PaymentCompleted}, to,
			map[string]interface{}{
				"refund_amount": totalRefunded,
				"refund_reason": reason,
			})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("refund_conflict", "payment changed concurrently")
		}
		if full && payment.OrderID != nil {
			return s.orderRepo.UpdatePaymentStatus(ctx, tx, *payment.OrderID, model.PaymentRefunded)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.paymentRepo.FindByID(ctx, paymentID)
}

func (s *paymentServiceImpl) Cancel(ctx context.Context, userID, paymentID string) (*model.Payment, error) {
	payment, err := s.ownedPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentPending && payment.Status != model.PaymentProcessing {
		return nil, apperr.State("not_cancellable", "only pending or processing payments can be cancelled")
	}

	if payment.GatewayTransactionID != "" {
		gw, err := s.registry.ByMethod(payment.Method)
		if err != nil {
			return nil, err
		}
		gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
		defer cancel()
		if err := gw.Cancel(gwCtx, payment.GatewayTransactionID); err != nil {
			return nil, err
		}
	}

	if err := s.applyGatewayStatus(ctx, payment, model.PaymentCancelled, "cancelled by user"); err != nil {
		return nil, err
	}
	return s.paymentRepo.FindByID(ctx, paymentID)
}

// HandleWebhook ingests an asynchronous provider notification. Idempotent
// under at-least-once delivery: an already-processed event id, or a replay
// reporting the outcome already applied, returns nil without side effects.
func (s *paymentServiceImpl) HandleWebhook(ctx context.Context, provider string, headers map[string][]string, body []byte) error {
	gw, err := s.registry.ByProvider(provider)
	if err != nil {
		return err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	event, err := gw.ParseWebhook(gwCtx, headers, body)
	if err != nil {
		return err
	}
	if event.GatewayTransactionID == "" {
		// Event types we do not track (plan changes etc).
		return nil
	}

	processed, err := s.webhookEventRepo.Exists(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if processed {
		return nil
	}

	payment, err := s.paymentRepo.FindByGatewayTransactionID(ctx, event.GatewayTransactionID)
	if err != nil {
		return fmt.Errorf("find payment by gateway txn: %w", err)
	}
	if payment == nil {
		return apperr.NotFound("payment_not_found",
			"no payment for gateway transaction "+event.GatewayTransactionID)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.applyGatewayStatusTx(ctx, tx, payment, event.Status, event.FailureReason); err != nil {
			return err
		}
		return s.webhookEventRepo.MarkProcessed(ctx, tx, event.EventID, event.Provider, event.EventType)
	})
}

// ResolveReturn maps a browser return redirect onto a result page. Missing
// transaction id means failure without contacting the gateway.
func (s *paymentServiceImpl) ResolveReturn(ctx context.Context, gatewayTxnID, orderID, membershipID string) string {
	if gatewayTxnID == "" {
		return "/payment/failed"
	}

	payment, err := s.paymentRepo.FindByGatewayTransactionID(ctx, gatewayTxnID)
	if err != nil || payment == nil {
		return "/payment/failed"
	}

	// Synchronous verification on return; webhook delivery may already have
	// reconciled, in which case the CAS below no-ops.
	if !payment.Status.Terminal() {
		gw, gwErr := s.registry.ByMethod(payment.Method)
		if gwErr == nil {
			gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
			status, verifyErr := gw.Verify(gwCtx, gatewayTxnID)
			cancel()
			if verifyErr == nil {
				if applyErr := s.applyGatewayStatus(ctx, payment, status, ""); applyErr != nil &&
					!apperr.IsKind(applyErr, apperr.KindConflict) {
					log.Printf("[payment] return reconciliation failed payment=%s: %v", payment.ID, applyErr)
				}
			}
		}
		if refreshed, err := s.paymentRepo.FindByID(ctx, payment.ID); err == nil && refreshed != nil {
			payment = refreshed
		}
	}

	switch payment.Status {
	case model.PaymentCompleted:
		if orderID != "" {
			return "/order/success"
		}
		if membershipID != "" {
			return "/membership/success"
		}
		return "/payment/success"
	case model.PaymentFailed, model.PaymentCancelled:
		return "/payment/failed"
	default:
		return "/payment/pending"
	}
}

func (s *paymentServiceImpl) ownedPayment(ctx context.Context, userID, paymentID string) (*model.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}
	if payment == nil {
		return nil, apperr.NotFound("payment_not_found", "unknown payment")
	}
	if payment.UserID != userID {
		return nil, apperr.Authorization("not_payment_owner", "payment belongs to another user")
	}
	if payment.OrderID != nil {
		order, err := s.orderRepo.FindByID(ctx, *payment.OrderID)
		if err != nil {
			return nil, fmt.Errorf("find order: %w", err)
		}
		if order != nil && order.UserID != userID {
			return nil, apperr.Authorization("not_order_owner", "order belongs to another user")
		}
	}
	return payment, nil
}

func (s *paymentServiceImpl) applyGatewayStatus(ctx context.Context, payment *model.Payment, to model.PaymentStatus, failureReason string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyGatewayStatusTx(ctx, tx, payment, to, failureReason)
	})
}

// applyGatewayStatusTx drives the state machine. The transition and every
// reconciliation side effect (order payment status, subscription creation)
// commit in one transaction, so a replayed delivery can never create a
// second subscription.
func (s *paymentServiceImpl) applyGatewayStatusTx(ctx context.Context, tx *gorm.DB, payment *model.Payment, to model.PaymentStatus, failureReason string) error {
	if payment.Status == to {
		return nil
	}
	if !payment.Status.CanTransitionTo(to) {
		if payment.Status.Terminal() {
			return apperr.Conflict("status_conflict", fmt.Sprintf(
				"payment already %s, cannot apply %s", payment.Status, to))
		}
		// Stale downgrade (e.g. a late PENDING report after PROCESSING);
		// the most recent confirmed status stays.
		return nil
	}

	fields := map[string]interface{}{}
	if failureReason != "" {
		fields["failure_reason"] = failureReason
	}
	if to == model.PaymentCompleted {
		fields["processed_at"] = time.Now()
	}

	ok, err := s.paymentRepo.Transition(ctx, tx, payment.ID,
		[]model.PaymentStatus{payment.Status}, to, fields)
	if err != nil {
		return err
	}
	if !ok {
		// Lost the race; re-read and decide whether the winner applied the
		// same outcome.
		current, err := s.paymentRepo.FindByID(ctx, payment.ID)
		if err != nil {
			return err
		}
		if current != nil && current.Status == to {
			return nil
		}
		return apperr.Conflict("status_conflict", "payment status changed concurrently")
	}

	if payment.OrderID == nil {
		return nil
	}

	switch to {
	case model.PaymentCompleted:
		if err := s.orderRepo.UpdatePaymentStatus(ctx, tx, *payment.OrderID, to); err != nil {
			return fmt.Errorf("update order payment status: %w", err)
		}
		return s.activateSubscription(ctx, tx, payment)
	case model.PaymentFailed, model.PaymentCancelled, model.PaymentRefunded:
		if err := s.orderRepo.UpdatePaymentStatus(ctx, tx, *payment.OrderID, to); err != nil {
			return fmt.Errorf("update order payment status: %w", err)
		}
	}
	return nil
}

// activateSubscription creates the Subscription for a subscription-plan
// order on first completion, seeding delivery and billing dates from the
// order's selected plan duration. Idempotent: an existing record for the
// order is left untouched.
func (s *paymentServiceImpl) activateSubscription(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	order, err := s.orderRepo.FindByID(ctx, *payment.OrderID)
	if err != nil {
		return fmt.Errorf("find order: %w", err)
	}
	if order == nil || order.PlanType != model.PlanSubscription {
		return nil
	}

	existing, err := s.subscriptionRepo.FindByOrderID(ctx, tx, order.ID)
	if err != nil {
		return fmt.Errorf("find subscription by order: %w", err)
	}
	if existing != nil {
		return nil
	}

	items, err := s.orderRepo.GetOrderItems(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}

	now := time.Now()
	cycle := order.DurationDays
	if cycle <= 0 {
		cycle = 30
	}
	initialDelivery := now.Add(initialDeliveryLead)
	nextBilling := now.AddDate(0, 0, cycle)
	end := nextBilling

	sub := &model.Subscription{
		ID:                  uuid.NewString(),
		SubscriptionNumber:  "SUB-" + strings.ToUpper(uuid.NewString()[:8]),
		UserID:              order.UserID,
		OrderID:             order.ID,
		Status:              model.SubscriptionActive,
		CycleDays:           cycle,
		StartDate:           now,
		EndDate:             end,
		InitialDeliveryDate: initialDelivery,
		NextDeliveryDate:    &initialDelivery,
		NextBillingDate:     &nextBilling,
		LastBilledDate:      &now,
	}
	for _, item := range items {
		sub.Items = append(sub.Items, model.SubscriptionItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Currency:  item.Currency,
		})
	}

	if err := s.subscriptionRepo.Create(ctx, tx, sub); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}
