package slo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets define the service level objectives for the collection worker.
// These targets are used to measure and monitor pipeline reliability.
const (
	// FreshnessSLO defines the maximum acceptable age of the newest stored bar
	// in seconds (three missed one-minute bars)
	FreshnessSLO = 180.0

	// CollectSuccessSLO defines the target ratio of successful collection passes
	CollectSuccessSLO = 0.99

	// RejectionRateSLO defines the maximum acceptable ratio of calls rejected
	// by the admission guard (sustained rejections mean the schedule outruns
	// the provider's weight budget)
	RejectionRateSLO = 0.01

	// DeliverySuccessSLO defines the target ratio of delivered notifications
	DeliverySuccessSLO = 0.999
)

// SLO tracking metrics
// These gauges are updated periodically (e.g., every minute) based on recent measurements
// to track whether the pipeline is meeting its SLO targets.
var (
	// SLOCollectSuccess tracks the current collect success ratio (0-1)
	// calculated as: successful_passes / total_passes
	SLOCollectSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_collect_success_ratio",
			Help: "Current collect success ratio (0-1), target: 0.99",
		},
	)

	// SLOWorstFreshness tracks the staleness of the most lagged market in seconds
	// calculated as: max over markets of collect_lag_seconds
	SLOWorstFreshness = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_worst_freshness_seconds",
			Help: "Age of the newest bar in the most lagged market, target: under 180",
		},
	)

	// SLORejectionRate tracks the ratio of admission-guard rejections (0-1)
	// calculated as: rejected_calls / total_calls
	SLORejectionRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_rejection_rate_ratio",
			Help: "Current admission rejection ratio (0-1), target: 0.01",
		},
	)

	// SLODeliverySuccess tracks the notification delivery ratio (0-1)
	SLODeliverySuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_delivery_success_ratio",
			Help: "Current notification delivery ratio (0-1), target: 0.999",
		},
	)
)

// UpdateCollectSuccess updates the collect success SLO metric.
// Call this periodically (e.g., every minute) with the calculated success ratio.
//
// Example calculation:
//
//	totalPasses := getCollectPassCount()
//	failedPasses := getCollectErrorCount()
//	success := float64(totalPasses-failedPasses) / float64(totalPasses)
//	slo.UpdateCollectSuccess(success)
func UpdateCollectSuccess(ratio float64) {
	SLOCollectSuccess.Set(ratio)
}

// UpdateWorstFreshness updates the worst-market freshness SLO metric.
// Call this periodically with the maximum bar age across all collected markets.
//
// Example using Prometheus query:
//
//	max(collect_lag_seconds)
func UpdateWorstFreshness(seconds float64) {
	SLOWorstFreshness.Set(seconds)
}

// UpdateRejectionRate updates the admission rejection SLO metric.
// Call this periodically with the calculated rejection ratio.
//
// Example using Prometheus query:
//
//	rate(callguard_admissions_total{status="denied"}[5m]) / rate(callguard_admissions_total[5m])
func UpdateRejectionRate(ratio float64) {
	SLORejectionRate.Set(ratio)
}

// UpdateDeliverySuccess updates the notification delivery SLO metric.
// Call this periodically with the calculated delivery ratio.
func UpdateDeliverySuccess(ratio float64) {
	SLODeliverySuccess.Set(ratio)
}
