package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Assignment outcomes.
const (
	outcomeResumed   = "resumed"
	outcomeClaimed   = "claimed"
	outcomeExtended  = "extended"
	outcomeStarted   = "started"
	outcomeExhausted = "exhausted"
)

var (
	assignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaytale_assignments_total",
			Help: "Total number of part assignment requests by outcome.",
		},
		[]string{"outcome"},
	)

	assignmentConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaytale_assignment_conflicts_total",
		Help: "Total number of assignment attempts retried after losing a race.",
	})

	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaytale_submissions_total",
			Help: "Total number of part submissions by kind and status.",
		},
		[]string{"kind", "status"},
	)

	storiesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaytale_stories_completed_total",
		Help: "Total number of stories that reached their final part.",
	})
)
