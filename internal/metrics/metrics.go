// Package metrics exposes Prometheus counters for the authentication and
// credential recovery flows. A nil *Auth is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ems_auth"

type Auth struct {
	logins        *prometheus.CounterVec
	registrations *prometheus.CounterVec
	resetRequests *prometheus.CounterVec
	resets        *prometheus.CounterVec
	sweptTokens   prometheus.Counter
}

// NewRegistry returns a private registry preloaded with the Go runtime and
// process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func NewAuth(reg prometheus.Registerer) *Auth {
	m := &Auth{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Account registrations by outcome.",
		}, []string{"outcome"}),
		resetRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_reset_requests_total",
			Help:      "Forgot-password requests by outcome.",
		}, []string{"outcome"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_resets_total",
			Help:      "Password reset attempts by outcome.",
		}, []string{"outcome"}),
		sweptTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_reset_tokens_swept_total",
			Help:      "Expired recovery tokens removed by the sweeper.",
		}),
	}
	reg.MustRegister(m.logins, m.registrations, m.resetRequests, m.resets, m.sweptTokens)
	return m
}

func (m *Auth) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Auth) Registration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *Auth) ResetRequest(outcome string) {
	if m == nil {
		return
	}
	m.resetRequests.WithLabelValues(outcome).Inc()
}

func (m *Auth) Reset(outcome string) {
	if m == nil {
		return
	}
	m.resets.WithLabelValues(outcome).Inc()
}

func (m *Auth) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptTokens.Add(float64(n))
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
