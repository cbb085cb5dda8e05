package services

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	botTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "baseflip_bot_ticks_total",
		Help: "Poll ticks run per bot",
	}, []string{"bot"})
	botTickErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "baseflip_bot_tick_errors_total",
		Help: "Poll ticks that ended in an RPC error",
	}, []string{"bot"})
	botSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "baseflip_bot_submissions_total",
		Help: "Resolution transactions by result (confirmed, failed)",
	}, []string{"bot", "action", "result"})
	botLastProcessed = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "baseflip_bot_last_processed_id",
		Help: "Last round or game id the bot resolved",
	}, []string{"bot"})
	leaderboardRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "baseflip_leaderboard_refreshes_total",
		Help: "Leaderboard refresh attempts by result",
	}, []string{"result"})
	leaderboardEvents = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "baseflip_leaderboard_events",
		Help: "Events held in the leaderboard log",
	})
	undecodedLogs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "baseflip_undecoded_logs_total",
		Help: "Contract logs that could not be decoded",
	})
	scanItemFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "baseflip_scan_item_failures_total",
		Help: "Batch items skipped by the claim scanner",
	}, []string{"game_type"})
)

func init() {
	prometheus.MustRegister(
		botTicks,
		botTickErrors,
		botSubmissions,
		botLastProcessed,
		leaderboardRefreshes,
		leaderboardEvents,
		undecodedLogs,
		scanItemFailures,
	)
}

// MetricsHandler exposes the default registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// ServeMetrics runs a standalone metrics listener for the bot binaries.
func ServeMetrics(addr string) {
	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.WithField("addr", addr).Info("Metrics server listening")
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithError(err).Error("Metrics server error")
		}
	}()
}
