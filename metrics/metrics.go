package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// EventsReceived counts gateway dispatches published on the bus
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robyul_gateway_events_total",
			Help: "Total number of gateway events published on the event bus",
		},
		[]string{"type"},
	)

	// EventDecodeErrors counts payloads the bus failed to decode
	EventDecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robyul_gateway_event_decode_errors_total",
			Help: "Total number of gateway events that could not be decoded",
		},
		[]string{"type"},
	)

	// HandlerPanics counts bus handlers that panicked
	HandlerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "robyul_bus_handler_panics_total",
			Help: "Total number of recovered panics in event bus handlers",
		},
	)

	// CommandsExecuted increases after each command execution
	CommandsExecuted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "robyul_commands_executed_total",
			Help: "Total number of executed commands",
		},
	)

	// StarsAdded counts stars that changed a star entry
	StarsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "robyul_starboard_stars_added_total",
			Help: "Total number of stars added to star entries",
		},
	)

	// StarsRemoved counts stars that were taken back
	StarsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "robyul_starboard_stars_removed_total",
			Help: "Total number of stars removed from star entries",
		},
	)

	// StarboardMessages counts posted, edited and deleted starboard messages
	StarboardMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robyul_starboard_messages_total",
			Help: "Total number of starboard message operations",
		},
		[]string{"operation"}, // "post", "edit", "delete"
	)

	// QueueFailures counts failed operations of the per message queue
	QueueFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "robyul_queue_failures_total",
			Help: "Total number of failed serialized operations",
		},
	)

	// ActiveCollectors is the number of running collectors
	ActiveCollectors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "robyul_collectors_active",
			Help: "Current number of active event collectors",
		},
	)
)

// Init starts the metrics http server on address
func Init(address string, log *logrus.Entry) {
	log.Info("Listening on " + address)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		err := http.ListenAndServe(address, mux)
		if err != nil {
			log.Error("metrics server stopped: ", err.Error())
		}
	}()
}
