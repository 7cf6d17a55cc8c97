package auth

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts login outcomes.
type Metrics struct {
	logins      *prometheus.CounterVec
	provisioned *prometheus.CounterVec
}

// NewMetrics registers the auth collectors with reg, reusing collectors that
// are already registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gsr",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by method and outcome",
		}, []string{"method", "outcome"}),
		provisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gsr",
			Subsystem: "auth",
			Name:      "users_provisioned_total",
			Help:      "Users created on first external login, by assigned role",
		}, []string{"role"}),
	}
	if reg == nil {
		return m
	}
	m.logins = register(reg, m.logins)
	m.provisioned = register(reg, m.provisioned)
	return m
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) recordLogin(method, outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) recordProvisioned(role string) {
	if m == nil {
		return
	}
	m.provisioned.WithLabelValues(role).Inc()
}
