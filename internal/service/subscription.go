package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"checkout-core/internal/apperr"
	"checkout-core/internal/model"
	"checkout-core/internal/repository"
)

type PostponementInput struct {
	OrderID               string
	RequestedDeliveryDate time.Time
	Reason                string
}

type SubscriptionService interface {
	Get(ctx context.Context, userID, subscriptionID string) (*model.Subscription, error)
	Pause(ctx context.Context, userID, subscriptionID string, until *time.Time) error
	Resume(ctx context.Context, userID, subscriptionID string) error
	Cancel(ctx context.Context, userID, subscriptionID, reason string) error

	RequestPostponement(ctx context.Context, userID string, in *PostponementInput) (*model.PostponementRequest, error)
	// DecidePostponement approves or rejects a pending request. Approval
	// shifts nextDeliveryDate and moves nextBillingDate by the same delta;
	// rejection leaves all dates untouched.
	DecidePostponement(ctx context.Context, decidedBy, requestID string, approve bool) error
	CancelPostponement(ctx context.Context, userID, requestID string) error

	// ExpireDue marks active subscriptions whose end date passed without a
	// renewal payment as EXPIRED. Invoked by the cron host.
	ExpireDue(ctx context.Context) (int64, error)
}

type subscriptionServiceImpl struct {
	db               *gorm.DB
	subscriptionRepo repository.SubscriptionRepository
	postponementRepo repository.PostponementRepository
	orderRepo        repository.OrderRepository
}

func NewSubscriptionService(
	db *gorm.DB,
	subscriptionRepo repository.SubscriptionRepository,
	postponementRepo repository.PostponementRepository,
	orderRepo repository.OrderRepository,
) SubscriptionService {
	return &subscriptionServiceImpl{
		db:               db,
		subscriptionRepo: subscriptionRepo,
		postponementRepo: postponementRepo,
		orderRepo:        orderRepo,
	}
}

func (s *subscriptionServiceImpl) Get(ctx context.Context, userID, subscriptionID string) (*model.Subscription, error) {
	return s.owned(ctx, userID, subscriptionID)
}

func (s *subscriptionServiceImpl) Pause(ctx context.Context, userID, subscriptionID string, until *time.Time) error {
	sub, err := s.owned(ctx, userID, subscriptionID)
	if err != nil {
		return err
	}
	if sub.Status != model.SubscriptionActive {
		return apperr.State("not_pausable", "only active subscriptions can be paused")
	}
	if until != nil && !until.After(time.Now()) {
		return apperr.Validation("paused_until_past", "pausedUntil must be in the future")
	}

	now := time.Now()
	ok, err := s.subscriptionRepo.Transition(ctx, nil, sub.ID,
		[]model.SubscriptionStatus{model.SubscriptionActive},
		model.SubscriptionPaused,
		map[string]interface{}{
			"paused_at":    now,
			"paused_until": until,
		})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("status_conflict", "subscription status changed concurrently")
	}
	return nil
}

func (s *subscriptionServiceImpl) Resume(ctx context.Context, userID, subscriptionID string) error {
	sub, err := s.owned(ctx, userID, subscriptionID)
	if err != nil {
		return err
	}
	if sub.Status != model.SubscriptionPaused {
		return apperr.State("not_paused", "subscription is not paused")
	}
	if sub.PausedUntil != nil && time.Now().After(*sub.PausedUntil) {
		return apperr.State("pause_window_elapsed", "pause window elapsed; subscription requires renewal")
	}

	ok, err := s.subscriptionRepo.Transition(ctx, nil, sub.ID,
		[]model.SubscriptionStatus{model.SubscriptionPaused},
		model.SubscriptionActive,
		map[string]interface{}{
			"paused_at":    nil,
			"paused_until": nil,
		})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("status_conflict", "subscription status changed concurrently")
	}
	return nil
}

func (s *subscriptionServiceImpl) Cancel(ctx context.Context, userID, subscriptionID, reason string) error {
	sub, err := s.owned(ctx, userID, subscriptionID)
	if err != nil {
		return err
	}
	if sub.Status.Terminal() {
		return apperr.State("already_terminal", "subscription is already cancelled or expired")
	}

	now := time.Now()
	ok, err := s.subscriptionRepo.Transition(ctx, nil, sub.ID,
		[]model.SubscriptionStatus{model.SubscriptionActive, model.SubscriptionPaused, model.SubscriptionSuspended},
		model.SubscriptionCancelled,
		map[string]interface{}{
			"cancelled_at":  now,
			"cancelled_by":  userID,
			"cancel_reason": reason,
		})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("status_conflict", "subscription status changed concurrently")
	}
	return nil
}

func (s *subscriptionServiceImpl) RequestPostponement(ctx context.Context, userID string, in *PostponementInput) (*model.PostponementRequest, error) {
	// Strictly future: a requested date equal to "now" is rejected.
	if !in.RequestedDeliveryDate.After(time.Now()) {
		return nil, apperr.Validation("delivery_date_not_future", "requested delivery date must be in the future")
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

	sub, err := s.subscriptionRepo.FindByOrderID(ctx, nil, in.OrderID)
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	if sub == nil {
		return nil, apperr.NotFound("subscription_not_found", "order has no subscription")
	}
	if sub.Status.Terminal() {
		return nil, apperr.State("subscription_terminal", "subscription is cancelled or expired")
	}

	req := &model.PostponementRequest{
		ID:                    uuid.NewString(),
		OrderID:               in.OrderID,
		SubscriptionID:        sub.ID,
		UserID:                userID,
		RequestedDeliveryDate: in.RequestedDeliveryDate,
		Status:                model.PostponementPending,
		Reason:                in.Reason,
	}
	if err := s.postponementRepo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create postponement request: %w", err)
	}
	return req, nil
}

func (s *subscriptionServiceImpl) DecidePostponement(ctx context.Context, decidedBy, requestID string, approve bool) error {
	req, err := s.postponementRepo.FindByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("find postponement request: %w", err)
	}
	if req == nil {
		return apperr.NotFound("postponement_not_found", "unknown postponement request")
	}
	if req.Status != model.PostponementPending {
		return apperr.State("already_decided", "postponement request already decided")
	}

	if !approve {
		ok, err := s.postponementRepo.Decide(ctx, nil, requestID, model.PostponementRejected, decidedBy)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("decision_conflict", "postponement request decided concurrently")
		}
		return nil
	}

	sub, err := s.subscriptionRepo.FindByID(ctx, req.SubscriptionID)
	if err != nil {
		return fmt.Errorf("find subscription: %w", err)
	}
	if sub == nil {
		return apperr.NotFound("subscription_not_found", "unknown subscription")
	}
	if sub.Status.Terminal() {
		return apperr.State("subscription_terminal", "subscription is cancelled or expired")
	}
	if sub.NextDeliveryDate == nil || sub.NextBillingDate == nil {
		return apperr.State("no_schedule", "subscription has no delivery schedule")
	}

	// Billing moves by the same delta as delivery.
	delta := req.RequestedDeliveryDate.Sub(*sub.NextDeliveryDate)
	newBilling := sub.NextBillingDate.Add(delta)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.postponementRepo.Decide(ctx, tx, requestID, model.PostponementApproved, decidedBy)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("decision_conflict", "postponement request decided concurrently")
		}
		ok, err = s.subscriptionRepo.ShiftDeliveryDates(ctx, tx, sub.ID, req.RequestedDeliveryDate, newBilling)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("status_conflict", "subscription became terminal concurrently")
		}
		return nil
	})
}

func (s *subscriptionServiceImpl) CancelPostponement(ctx context.Context, userID, requestID string) error {
	req, err := s.postponementRepo.FindByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("find postponement request: %w", err)
	}
	if req == nil {
		return apperr.NotFound("postponement_not_found", "unknown postponement request")
	}
	if req.UserID != userID {
		return apperr.Authorization("not_request_owner", "postponement request belongs to another user")
	}
	if req.Status != model.PostponementPending {
		return apperr.State("already_decided", "postponement request already decided")
	}

	ok, err := s.postponementRepo.Decide(ctx, nil, requestID, model.PostponementCancelled, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("decision_conflict", "postponement request decided concurrently")
	}
	return nil
}

func (s *subscriptionServiceImpl) ExpireDue(ctx context.Context) (int64, error) {
	return s.subscriptionRepo.ExpireDue(ctx, time.Now())
}

func (s *subscriptionServiceImpl) owned(ctx context.Context, userID, subscriptionID string) (*model.Subscription, error) {
	sub, err := s.subscriptionRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	if sub == nil {
		return nil, apperr.NotFound("subscription_not_found", "unknown subscription")
	}
	if sub.UserID != userID {
		return nil, apperr.Authorization("not_subscription_owner", "subscription belongs to another user")
	}
	return sub, nil
}
