package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "bts_wall_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		return c
	}

	m := &Metrics{
		TicksActive:      promCounter{counter("ticks_active_total", "Total number of active scheduler ticks.")},
		OrdersPlaced:     promCounter{counter("orders_placed_total", "Total number of orders placed.")},
		OrdersFailed:     promCounter{counter("orders_failed_total", "Total number of order placement failures.")},
		OrdersCancelled:  promCounter{counter("orders_cancelled_total", "Total number of orders cancelled.")},
		CancelsFailed:    promCounter{counter("cancels_failed_total", "Total number of order cancellation failures.")},
		WallsReplaced:    promCounter{counter("walls_replaced_total", "Total number of wall replacements.")},
		DebtBorrows:      promCounter{counter("debt_borrows_total", "Total number of borrow commands issued.")},
		DebtAdjustments:  promCounter{counter("debt_adjustments_total", "Total number of debt adjustment commands issued.")},
		DebtInconsistent: promCounter{counter("debt_inconsistent_total", "Total number of inconsistent debt state observations.")},
	}

	return &Prometheus{Metrics: m, registry: registry}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
