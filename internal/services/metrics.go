package services

import (
	"context"
	"time"
)

// Metrics receives service-level counters. *observability.Metrics satisfies it.
type Metrics interface {
	CartMutation(operation string)
	StoreError(operation string)
	CheckoutOutcome(outcome string)
	SubscriberDelta(delta int)
}

type noopMetrics struct{}

func (noopMetrics) CartMutation(string)    {}
func (noopMetrics) StoreError(string)      {}
func (noopMetrics) CheckoutOutcome(string) {}
func (noopMetrics) SubscriberDelta(int)    {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

// EventLogger is the structured event hook shared by the services.
type EventLogger func(ctx context.Context, event string, fields map[string]any)

func loggerOrNoop(logger EventLogger) EventLogger {
	if logger == nil {
		return func(context.Context, string, map[string]any) {}
	}
	return logger
}

func clockOrNow(clock func() time.Time) func() time.Time {
	if clock == nil {
		return time.Now
	}
	return clock
}
