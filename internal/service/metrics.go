package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	schedulerTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beontime_scheduler_ticks_total",
		Help: "Total number of reminder scheduler ticks",
	})
	schedulerTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "beontime_scheduler_tick_duration_seconds",
		Help:    "Duration of reminder scheduler ticks",
		Buckets: prometheus.DefBuckets,
	})
	schedulerErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beontime_scheduler_item_errors_total",
		Help: "Habits that failed during a scheduler tick",
	})
	remindersDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beontime_reminders_dispatched_total",
		Help: "Reminders persisted by the scheduler, by reminder class",
	}, []string{"class"})
	notificationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beontime_notifications_created_total",
		Help: "Notifications persisted, by notification type",
	}, []string{"type"})
	deliveryFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beontime_delivery_failures_total",
		Help: "Message deliveries that failed or timed out",
	})
	completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beontime_habit_completions_total",
		Help: "Habit completion requests, by outcome",
	}, []string{"outcome"})
)
