package rules

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	passesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtriage_passes_total",
		Help: "Number of rule-processing passes run.",
	})

	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mailtriage_pass_duration_seconds",
		Help:    "Wall-clock duration of one rule-processing pass.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	rulesEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtriage_rules_evaluated_total",
		Help: "Number of rule evaluations performed.",
	})

	rulesFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtriage_rules_fired_total",
		Help: "Number of rules that matched and executed their actions.",
	})

	actionResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailtriage_action_results_total",
		Help: "Action executions by type and outcome.",
	}, []string{"type", "status"})

	scriptFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtriage_script_failures_total",
		Help: "Sandboxed script executions that ended in an error.",
	})

	scriptTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtriage_script_timeouts_total",
		Help: "Sandboxed script executions interrupted by the time budget.",
	})
)
