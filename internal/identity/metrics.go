// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package identity

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for lifecycle operation metrics.
const (
	StatusSuccess    = "success"
	StatusValidation = "validation"
	StatusNotFound   = "not_found"
	StatusDependency = "dependency"
)

// Registrations is the counter for account creation attempts.
// Use RegisterMetrics to register this with a Prometheus registry.
var Registrations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "identity_registrations_total",
		Help: "Total number of account creation attempts",
	},
	[]string{"status"},
)

// Verifications is the counter for verification code redemptions.
// Use RegisterMetrics to register this with a Prometheus registry.
var Verifications = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "identity_verifications_total",
		Help: "Total number of verification code redemptions",
	},
	[]string{"status"},
)

// PasswordResets is the counter for password reset operations.
// Use RegisterMetrics to register this with a Prometheus registry.
var PasswordResets = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "identity_password_resets_total",
		Help: "Total number of password reset operations",
	},
	[]string{"operation", "status"},
)

// Federations is the counter for third-party federation calls.
// Use RegisterMetrics to register this with a Prometheus registry.
var Federations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "identity_federations_total",
		Help: "Total number of third-party federation calls",
	},
	[]string{"outcome"},
)

// RegisterMetrics registers identity package metrics with the given
// Prometheus registry. This must be called at startup to make metrics
// available on /metrics. Panics if registration fails (following prometheus
// convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Registrations)
	reg.MustRegister(Verifications)
	reg.MustRegister(PasswordResets)
	reg.MustRegister(Federations)
}

// statusOf maps a service error to a metric status label.
func statusOf(err error) string {
	if err == nil {
		return StatusSuccess
	}
	if e, ok := AsError(err); ok {
		switch e.Kind {
		case KindValidation:
			return StatusValidation
		case KindNotFound:
			return StatusNotFound
		case KindDependency:
			return StatusDependency
		}
	}
	return StatusDependency
}
