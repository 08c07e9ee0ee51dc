package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Booking outcomes recorded by BookingResults.
const (
	ResultBooked            = "booked"
	ResultSlotTaken         = "slot_taken"
	ResultDoctorUnavailable = "doctor_unavailable"
	ResultNotFound          = "not_found"
	ResultInvalid           = "invalid"
	ResultPersistence       = "persistence_failure"
	ResultInconsistent      = "inconsistent_state"
)

// Metrics holds all application metrics
type Metrics struct {
	// Booking and cancellation
	BookingResults      *prometheus.CounterVec
	BookingLatency      prometheus.Histogram
	Cancellations       *prometheus.CounterVec
	BookingRollbacks    *prometheus.CounterVec
	LedgerReleaseMisses prometheus.Counter

	// Reconciler
	LedgerDrift      *prometheus.GaugeVec
	LedgerRepairs    prometheus.Counter
	ReconcileLatency prometheus.Histogram

	// Events and notifications
	EventsPublished     *prometheus.CounterVec
	NotificationsSent   *prometheus.CounterVec
	DoctorCacheRequests *prometheus.CounterVec
}

// New creates the application metrics without registering them.
func New(namespace string) *Metrics {
	return &Metrics{
		BookingResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "results_total",
			Help:      "Booking attempts by outcome",
		}, []string{"result"}),
		BookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "duration_seconds",
			Help:      "Time spent booking an appointment",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		Cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Cancellation requests by outcome",
		}, []string{"result"}),
		BookingRollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "rollbacks_total",
			Help:      "Slot reservations released after a failed save",
		}, []string{"status"}),
		LedgerReleaseMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "release_misses_total",
			Help:      "Releases of slots that were not in the ledger",
		}),
		LedgerDrift: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "drift_entries",
			Help:      "Ledger entries out of step with active appointments at the last scan",
		}, []string{"kind"}),
		LedgerRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "repairs_total",
			Help:      "Missing ledger entries restored by the reconciler",
		}),
		ReconcileLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of a reconcile pass",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events published by type and status",
		}, []string{"event_type", "status"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Notification emails by event type and status",
		}, []string{"event_type", "status"}),
		DoctorCacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "doctors",
			Name:      "cache_requests_total",
			Help:      "Doctor list cache lookups",
		}, []string{"result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.BookingResults, m.BookingLatency, m.Cancellations, m.BookingRollbacks,
		m.LedgerReleaseMisses, m.LedgerDrift, m.LedgerRepairs, m.ReconcileLatency,
		m.EventsPublished, m.NotificationsSent, m.DoctorCacheRequests,
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
