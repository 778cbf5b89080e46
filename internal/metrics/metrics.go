package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ForecastEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastcard_forecast_events_total",
			Help: "Forecast push events received, by granularity",
		},
		[]string{"type"},
	)

	ReprocessRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forecastcard_reprocess_runs_total",
			Help: "Reprocessing passes over the latest forecast events",
		},
	)

	AutoSwitches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastcard_auto_switches_total",
			Help: "Automatic active-view switches after an empty reprocess",
		},
		[]string{"from", "to"},
	)

	SubscribeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastcard_subscribe_errors_total",
			Help: "Forecast subscription failures, by granularity",
		},
		[]string{"type"},
	)

	ForecastItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "forecastcard_forecast_items",
			Help: "Items in the processed forecast sequence, by granularity",
		},
		[]string{"type"},
	)

	WSReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forecastcard_ws_reconnects_total",
			Help: "WebSocket reconnect attempts to the host",
		},
	)
)
