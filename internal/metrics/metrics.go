// Package metrics exports tree execution as Prometheus metrics.
package metrics

import (
	"github.com/joeycumines/btcore/internal/bt"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "btrun"

// Collector holds the metric vectors. Instrument attaches it to trees.
type Collector struct {
	ticks        *prometheus.CounterVec
	tickDuration *prometheus.HistogramVec
	episodes     *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	treeStatus   *prometheus.GaugeVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Ticks executed, by tree and resulting status.",
		}, []string{"tree", "status"}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of a single tick.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"tree"}),
		episodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episodes_total",
			Help:      "Completed episodes, by tree and outcome.",
		}, []string{"tree", "status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_transitions_total",
			Help:      "Node status changes, by tree, node kind, and new status.",
		}, []string{"tree", "kind", "status"}),
		treeStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tree_status",
			Help:      "Status of the tree after its last tick: 0 idle, 1 running, 2 success, 3 failure.",
		}, []string{"tree"}),
	}
	for _, m := range []prometheus.Collector{c.ticks, c.tickDuration, c.episodes, c.transitions, c.treeStatus} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Instrument subscribes the collector to tree's ticks and status changes.
func (c *Collector) Instrument(tree *bt.Tree) {
	name := tree.Name()
	tree.SubscribeTicks(c.observeTick)
	tree.Subscribe(func(ev bt.StatusChange) {
		c.transitions.WithLabelValues(name, ev.Node.Kind.String(), ev.Current.String()).Inc()
	})
	c.treeStatus.WithLabelValues(name).Set(float64(tree.Status()))
}

func (c *Collector) observeTick(ev bt.TickEvent) {
	status := ev.Status.String()
	c.ticks.WithLabelValues(ev.Tree, status).Inc()
	c.tickDuration.WithLabelValues(ev.Tree).Observe(ev.Duration.Seconds())
	c.treeStatus.WithLabelValues(ev.Tree).Set(float64(ev.Status))
	if ev.Status.Completed() {
		c.episodes.WithLabelValues(ev.Tree, status).Inc()
	}
}
