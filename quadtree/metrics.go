package quadtree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	treeLabel = "tree"
)

var (
	quadtreeSplits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadtree_splits",
		Help: "The number of leaves subdivided into 4 quadrants.",
	}, []string{treeLabel})

	quadtreeCollapses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadtree_collapses",
		Help: "The number of subtrees collapsed back into a leaf.",
	}, []string{treeLabel})

	quadtreeNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quadtree_nodes",
		Help: "The number of nodes in a tree.",
	}, []string{treeLabel})

	quadtreeRegistrations = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quadtree_registrations",
		Help: "The number of entity registrations in the leaves of a tree.",
	}, []string{treeLabel})
)

func instrumentSplit(tree string) {
	quadtreeSplits.
		With(prometheus.Labels{treeLabel: tree}).
		Inc()
}

func instrumentCollapse(tree string) {
	quadtreeCollapses.
		With(prometheus.Labels{treeLabel: tree}).
		Inc()
}

func instrumentNodes(tree string, n int) {
	quadtreeNodes.
		With(prometheus.Labels{treeLabel: tree}).
		Set(float64(n))
}

func instrumentRegistrations(tree string, n int) {
	quadtreeRegistrations.
		With(prometheus.Labels{treeLabel: tree}).
		Set(float64(n))
}
