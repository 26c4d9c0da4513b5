package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dusa",
		Subsystem: "engine",
		Name:      "steps_total",
		Help:      "Total number of search transitions",
	})

	solutionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dusa",
		Subsystem: "engine",
		Name:      "solutions_total",
		Help:      "Total number of solutions yielded",
	})

	branchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dusa",
		Subsystem: "engine",
		Name:      "branches_total",
		Help:      "Total number of choice points created",
	})

	conflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dusa",
		Subsystem: "engine",
		Name:      "conflicts_total",
		Help:      "Total number of dead ends by kind",
	}, []string{"kind"})
)
