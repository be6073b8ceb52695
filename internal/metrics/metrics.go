// Package metrics declares the Prometheus collectors shared by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Resolutions counts per-event config resolutions by source (tenant|default).
	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slackgpt_config_resolutions_total",
		Help: "Per-event configuration resolutions by source.",
	}, []string{"source"})

	// Validations counts credential validation outcomes.
	Validations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slackgpt_credential_validations_total",
		Help: "Credential validation attempts by outcome.",
	}, []string{"outcome"})

	// StoreErrors counts tenant config store failures by operation.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slackgpt_config_store_errors_total",
		Help: "Tenant config store errors by operation.",
	}, []string{"op"})

	// Revocations counts lifecycle signals handled, by kind.
	Revocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slackgpt_revocations_total",
		Help: "Token revocation and uninstall signals handled.",
	}, []string{"kind"})

	// Tasks counts background task completions by result (ok|error).
	Tasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slackgpt_background_tasks_total",
		Help: "Background tasks run after acknowledgement.",
	}, []string{"name", "result"})
)
