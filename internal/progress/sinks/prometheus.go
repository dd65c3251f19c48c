package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/weather-harvester/internal/progress"
)

// PrometheusSink exports harvest progress metrics via Prometheus.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsRunning   prometheus.Gauge
	daysStarted   prometheus.Counter
	daysCompleted *prometheus.CounterVec
	dayRetries    prometheus.Counter
	recordsTotal  prometheus.Counter
	dayDuration   *prometheus.HistogramVec
	runDuration   prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_runs_started_total",
			Help: "Total harvest runs that have started.",
		}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvester_runs_running",
			Help: "Current number of running harvest runs.",
		}),
		daysStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_days_started_total",
			Help: "Calendar days whose fetch has started.",
		}),
		daysCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_days_completed_total",
			Help: "Calendar days finished partitioned by result.",
		}, []string{"result"}),
		dayRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_day_retries_total",
			Help: "Failed day attempts that were retried.",
		}),
		recordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_records_written_total",
			Help: "Day records written to the cache.",
		}),
		dayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvester_day_duration_seconds",
			Help:    "Wall time per calendar day including retries.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_run_duration_seconds",
			Help:    "Wall time per harvest run.",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsRunning,
		s.daysStarted,
		s.daysCompleted,
		s.dayRetries,
		s.recordsTotal,
		s.dayDuration,
		s.runDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		s.runsRunning.Inc()
	case progress.StageRunDone:
		s.runsRunning.Dec()
		if evt.Dur > 0 {
			s.runDuration.Observe(evt.Dur.Seconds())
		}
	case progress.StageDayStart:
		s.daysStarted.Inc()
	case progress.StageDayRetry:
		s.dayRetries.Inc()
	case progress.StageDayDone:
		s.daysCompleted.WithLabelValues("success").Inc()
		s.recordsTotal.Add(float64(evt.Records))
		s.observeDay(evt, "success")
	case progress.StageDayError:
		s.daysCompleted.WithLabelValues("error").Inc()
		s.observeDay(evt, "error")
	}
}

func (s *PrometheusSink) observeDay(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.dayDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
