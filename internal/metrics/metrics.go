package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gameplay counters and gauges exposed on /metrics.
var (
	GamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trivia_games_started_total",
		Help: "Number of games started.",
	})

	AnswersSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trivia_answers_submitted_total",
		Help: "Number of accepted answer submissions.",
	})

	RoundsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trivia_rounds_completed_total",
		Help: "Number of rounds where every registered player answered.",
	})

	BroadcastsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trivia_broadcasts_sent_total",
		Help: "Number of events fanned out through the broadcast fabric.",
	})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trivia_connected_clients",
		Help: "Live WebSocket connections on this process.",
	})

	ActiveInstances = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trivia_active_instances",
		Help: "Instance ids registered in the durable active set.",
	})
)
