package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gogotex", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gogotex", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	SessionsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "gogotex", Subsystem: "collab", Name: "sessions_connected", Help: "Number of open real-time sessions."},
	)
	RoomsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "gogotex", Subsystem: "collab", Name: "rooms_active", Help: "Number of documents with at least one joined session."},
	)
	OperationsPropagated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "gogotex", Subsystem: "collab", Name: "operations_propagated_total", Help: "Edit operations accepted and fanned out."},
	)
	DeliveriesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "gogotex", Subsystem: "collab", Name: "deliveries_dropped_total", Help: "Deliveries dropped because a member's send buffer was full."},
	)
	MessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gogotex", Subsystem: "collab", Name: "messages_dropped_total", Help: "Inbound messages dropped, by reason."},
		[]string{"reason"},
	)
	Flushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gogotex", Subsystem: "collab", Name: "flushes_total", Help: "Document store flushes, by result."},
		[]string{"result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(SessionsConnected)
	reg.MustRegister(RoomsActive)
	reg.MustRegister(OperationsPropagated)
	reg.MustRegister(DeliveriesDropped)
	reg.MustRegister(MessagesDropped)
	reg.MustRegister(Flushes)
}
