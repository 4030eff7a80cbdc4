package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the deposit ledger.
type Metrics struct {
	PropertiesCreated prometheus.Counter
	PropertiesDeleted prometheus.Counter
	DepositsCreated   prometheus.Counter
	DepositsPaid      prometheus.Counter
	DepositsDisputed  prometheus.Counter
	DepositsSettled   *prometheus.CounterVec
	ReceiptsMinted    prometheus.Counter
	ReceiptsBurned    prometheus.Counter
	FilesAdded        prometheus.Counter
	EventsPublished   *prometheus.CounterVec
	CustodyHeld       prometheus.Gauge
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		PropertiesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garant_properties_created_total",
			Help: "Total number of properties registered",
		}),
		PropertiesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garant_properties_deleted_total",
			Help: "Total number of properties deleted",
		}),
		DepositsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garant_deposits_created_total",
			Help: "Total number of deposits opened",
		}),
		DepositsPaid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garant_deposits_paid_total",
			Help: "Total number of deposits funded by a tenant",
		}),
		DepositsDisputed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garant_deposits_disputed_total",
			Help: "Total number of disputes opened",
		}),
		DepositsSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "garant_deposits_settled_total",
			Help: "Total number of deposits settled, by final status",
		}, []string{"status"}),
		ReceiptsMinted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garant_receipts_minted_total",
			Help: "Total number of receipt tokens minted",
		}),
		ReceiptsBurned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garant_receipts_burned_total",
			Help: "Total number of receipt tokens burned",
		}),
		FilesAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garant_files_added_total",
			Help: "Total number of documents attached to deposits",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "garant_events_published_total",
			Help: "Total number of domain events published, by type",
		}, []string{"type"}),
		CustodyHeld: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "garant_custody_held_units",
			Help: "Funds currently held in escrow custody, in the smallest unit",
		}),
	}
}
