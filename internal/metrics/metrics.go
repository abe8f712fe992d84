package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/logger"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coordinator_connections_active",
		Help: "The current number of active participant connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coordinator_connections_total",
		Help: "The total number of participant connections accepted.",
	})

	// Command metrics
	CommandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_commands_total",
		Help: "The total number of commands processed, by verb.",
	}, []string{"verb"})
	CommandErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_command_errors_total",
		Help: "The total number of commands rejected, by reason.",
	}, []string{"reason"})

	// Fan-out metrics
	MessagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coordinator_messages_delivered_total",
		Help: "The total number of messages written to online participants.",
	})
	MessagesQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coordinator_messages_queued_total",
		Help: "The total number of messages enqueued for offline participants.",
	})
	MessagesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coordinator_messages_expired_total",
		Help: "The total number of pending messages dropped past the grace window.",
	})
	TransportWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coordinator_transport_write_failures_total",
		Help: "The total number of per-recipient write failures during fan-out.",
	})

	// Presence metrics
	RegisteredParticipants = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coordinator_participants_registered",
		Help: "The current number of registered participants, online or offline.",
	})
)

// StartServer starts the HTTP server exposing the Prometheus metrics.
func StartServer(port int, path string) {
	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.InfoF("Metrics server listening on %s%s", addr, path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.ErrorF("Metrics server error: %v", err)
		}
	}()
}
