// Package scheduler hosts the daily subscription expiry sweep. Billing and
// delivery dates are plain data fields advanced by whichever request reaches
// the subscription; this cron job only closes out subscriptions whose end
// date passed without a renewal payment.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"checkout-core/internal/service"
)

type Scheduler struct {
	cron          *cron.Cron
	subscriptions service.SubscriptionService
}

func New(subscriptions service.SubscriptionService) *Scheduler {
	return &Scheduler{
		cron:          cron.New(),
		subscriptions: subscriptions,
	}
}

func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		expired, err := s.subscriptions.ExpireDue(ctx)
		if err != nil {
			log.Printf("[billing-sweep] expire subscriptions: %v", err)
			return
		}
		if expired > 0 {
			log.Printf("[billing-sweep] expired %d subscriptions", expired)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("[billing-sweep] scheduler started (spec %q)", spec)
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}
