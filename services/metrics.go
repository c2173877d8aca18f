package services

import (
	"context"
	"errors"
	"time"

	"medicose-chatbot-backend/models"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink exports chat analytics as Prometheus series. It only sees
// intent, role and outcome flags.
type MetricsSink struct {
	exchanges       *prometheus.CounterVec
	responseLatency *prometheus.HistogramVec
}

func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	s := &MetricsSink{
		exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medicose",
				Subsystem: "chat",
				Name:      "exchanges_total",
				Help:      "Chat exchanges by intent and outcome",
			},
			[]string{"intent", "role", "outcome"}, // outcome: answered, unanswered, error
		),
		responseLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "medicose",
				Subsystem: "chat",
				Name:      "response_seconds",
				Help:      "Time to produce a chat reply",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 12, 20},
			},
			[]string{"intent", "completion"},
		),
	}
	if reg != nil {
		reg.MustRegister(s.exchanges, s.responseLatency)
	}
	return s
}

func (s *MetricsSink) Record(ctx context.Context, rec models.ChatAnalyticsRecord) error {
	outcome := "answered"
	switch {
	case rec.HasError:
		outcome = "error"
	case rec.IsUnknownIntent:
		outcome = "unanswered"
	}
	s.exchanges.WithLabelValues(string(rec.Intent), string(rec.Role), outcome).Inc()

	completion := "canned"
	if rec.UsedExternalCompletion {
		completion = "external"
	}
	s.responseLatency.WithLabelValues(string(rec.Intent), completion).
		Observe(float64(rec.ResponseTimeMs) / 1000)
	return nil
}

// FanoutSink delivers each record to every sink and joins their errors.
type FanoutSink []AnalyticsSink

func (f FanoutSink) Record(ctx context.Context, rec models.ChatAnalyticsRecord) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InstrumentedCompleter records completion latency and availability.
type InstrumentedCompleter struct {
	next     Completer
	provider string
	latency  *prometheus.HistogramVec
}

func NewInstrumentedCompleter(next Completer, provider string, reg prometheus.Registerer) *InstrumentedCompleter {
	latency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medicose",
			Subsystem: "chat",
			Name:      "completion_latency_seconds",
			Help:      "Latency of external completion calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 12, 15},
		},
		[]string{"provider", "status"}, // status: ok, unavailable
	)
	if reg != nil {
		reg.MustRegister(latency)
	}
	return &InstrumentedCompleter{next: next, provider: provider, latency: latency}
}

func (c *InstrumentedCompleter) Complete(ctx context.Context, req CompletionRequest) CompletionResult {
	start := time.Now()
	result := c.next.Complete(ctx, req)

	status := "ok"
	if !result.Available {
		status = "unavailable"
	}
	c.latency.WithLabelValues(c.provider, status).Observe(time.Since(start).Seconds())
	return result
}
