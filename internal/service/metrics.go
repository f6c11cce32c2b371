package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	tokensIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_tokens_issued_total",
		Help: "Tokens written to the token store by type.",
	}, []string{"type"})

	tokensConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_tokens_consumed_total",
		Help: "Single-use token transitions by type and outcome.",
	}, []string{"type", "outcome"})

	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_registrations_total",
		Help: "Accounts created.",
	})

	sweptTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_tokens_swept_total",
		Help: "Expired tokens removed by the sweep.",
	})
)
