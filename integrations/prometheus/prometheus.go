package prometheus

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MagicGrants/donatehub/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled = config.GenFlag[bool]("integrations.prometheus.enabled", false, "Enable Prometheus metrics")
	port    = config.GenFlag[int]("integrations.prometheus.port", 8071, "Prometheus metrics port")
)

var (
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donatehub_webhook_events_total",
		Help: "Webhook deliveries by provider and outcome",
	}, []string{"provider", "outcome"})

	DonationsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donatehub_donations_recorded_total",
		Help: "Donations persisted, by payment method",
	}, []string{"method"})

	FulfillmentJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donatehub_fulfillment_jobs_total",
		Help: "Perk fulfillment jobs by outcome",
	}, []string{"outcome"})
)

func InitMetrics() {
	if !enabled.Value() {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port.Value()), mux); err != nil {
			slog.Error("Error with Prometheus metrics", slog.Any("err", err))
		}
	}()
}
