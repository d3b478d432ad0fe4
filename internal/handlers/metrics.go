package handlers

import (
	"context"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pushSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pwa_notify_push_sent_total",
		Help: "Push notifications delivered to the push service.",
	})
	pushFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pwa_notify_push_failed_total",
		Help: "Push notifications the push service rejected.",
	})
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pwa_notify_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})
	activeSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pwa_notify_active_subscriptions",
		Help: "Currently active push subscriptions.",
	})
)

func (h *Handler) updateSubscriptionGauge(ctx context.Context) {
	n, err := h.Subs.CountActive(ctx)
	if err != nil {
		log.Printf("Failed to count subscriptions: %v", err)
		return
	}
	activeSubscriptions.Set(float64(n))
}
