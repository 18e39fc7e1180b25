package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
)

const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

type Metrics struct {
	CartMutations   *prometheus.CounterVec
	OrdersPlaced    *prometheus.CounterVec
	OrderAmount     prometheus.Histogram
	CartsReaped     prometheus.Counter
	OutboxPublished *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "cart_mutations_total",
			Help:      "Cart mutations by operation and result.",
		}, []string{"operation", "result"}),
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "orders_placed_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"}),
		OrderAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shop",
			Name:      "order_amount",
			Help:      "Total amount of placed orders.",
			Buckets:   prometheus.ExponentialBuckets(10, 2.5, 8),
		}),
		CartsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "carts_reaped_total",
			Help:      "Abandoned carts released by the reaper.",
		}),
		OutboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "outbox_events_total",
			Help:      "Outbox events handled by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.CartMutations,
		m.OrdersPlaced,
		m.OrderAmount,
		m.CartsReaped,
		m.OutboxPublished,
	)

	return m
}

// NewRegistry returns a registry with the process and Go runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg
}

// NewNop returns metrics bound to a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Result labels err: business rejections are kept apart from failures.
func Result(err error) string {
	var domainErr *domain.Error

	switch {
	case err == nil:
		return ResultOK
	case errors.As(err, &domainErr):
		return ResultRejected
	default:
		return ResultError
	}
}
