package callguard

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestNewPrometheusMetrics(t *testing.T) {
	metrics := NewPrometheusMetrics()

	if metrics == nil {
		t.Fatal("NewPrometheusMetrics() returned nil")
	}

	if metrics.registry == nil {
		t.Error("registry should not be nil")
	}

	if metrics.admissionsTotal == nil {
		t.Error("admissionsTotal should not be nil")
	}

	if metrics.settlementsTotal == nil {
		t.Error("settlementsTotal should not be nil")
	}

	if metrics.evictionsTotal == nil {
		t.Error("evictionsTotal should not be nil")
	}

	if metrics.fieldWeight == nil {
		t.Error("fieldWeight should not be nil")
	}

	if metrics.guardDuration == nil {
		t.Error("guardDuration should not be nil")
	}
}

func TestPrometheusMetrics_Registry(t *testing.T) {
	metrics := NewPrometheusMetrics()

	registry := metrics.Registry()
	if registry == nil {
		t.Error("Registry() should not return nil")
	}

	// Record some metrics to ensure they show up in Gather()
	metrics.RecordAdmission("binance", "default", true)
	metrics.RecordSettlement("binance", "default", "committed")
	metrics.RecordEviction("binance", "default", 2)
	metrics.SetFieldWeight("binance", "default", 5, 1)
	metrics.RecordGuardDuration("binance", "default", 10*time.Millisecond)

	// Verify metrics are registered
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	// Should have all 5 metrics registered
	expectedMetrics := []string{
		"callguard_admissions_total",
		"callguard_settlements_total",
		"callguard_evictions_total",
		"callguard_field_weight",
		"callguard_guard_duration_seconds",
	}

	metricNames := make(map[string]bool)
	for _, mf := range metricFamilies {
		metricNames[mf.GetName()] = true
	}

	for _, expected := range expectedMetrics {
		if !metricNames[expected] {
			t.Errorf("Expected metric %q not found in registry", expected)
		}
	}
}

func TestPrometheusMetrics_RecordAdmission(t *testing.T) {
	metrics := NewPrometheusMetrics()

	metrics.RecordAdmission("binance", "default", true)
	metrics.RecordAdmission("binance", "default", true)
	metrics.RecordAdmission("binance", "default", false)
	metrics.RecordAdmission("cryptocompare", "histo", true)

	metricFamilies, err := metrics.registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var family *dto.MetricFamily
	for _, mf := range metricFamilies {
		if mf.GetName() == "callguard_admissions_total" {
			family = mf
			break
		}
	}
	if family == nil {
		t.Fatal("callguard_admissions_total not found")
	}

	counts := make(map[string]float64)
	for _, m := range family.GetMetric() {
		var connection, field, status string
		for _, label := range m.GetLabel() {
			switch label.GetName() {
			case "connection":
				connection = label.GetValue()
			case "field":
				field = label.GetValue()
			case "status":
				status = label.GetValue()
			}
		}
		counts[connection+"/"+field+"/"+status] = m.GetCounter().GetValue()
	}

	if counts["binance/default/allowed"] != 2 {
		t.Errorf("allowed count = %v, want 2", counts["binance/default/allowed"])
	}
	if counts["binance/default/denied"] != 1 {
		t.Errorf("denied count = %v, want 1", counts["binance/default/denied"])
	}
	if counts["cryptocompare/histo/allowed"] != 1 {
		t.Errorf("cryptocompare allowed count = %v, want 1", counts["cryptocompare/histo/allowed"])
	}
}

func TestPrometheusMetrics_SetFieldWeight(t *testing.T) {
	metrics := NewPrometheusMetrics()

	metrics.SetFieldWeight("binance", "default", 7, 3)
	// Updated values overwrite, not accumulate.
	metrics.SetFieldWeight("binance", "default", 4, 0)

	metricFamilies, err := metrics.registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var family *dto.MetricFamily
	for _, mf := range metricFamilies {
		if mf.GetName() == "callguard_field_weight" {
			family = mf
			break
		}
	}
	if family == nil {
		t.Fatal("callguard_field_weight not found")
	}

	gauges := make(map[string]float64)
	for _, m := range family.GetMetric() {
		var kind string
		for _, label := range m.GetLabel() {
			if label.GetName() == "kind" {
				kind = label.GetValue()
			}
		}
		gauges[kind] = m.GetGauge().GetValue()
	}

	if gauges["committed"] != 4 {
		t.Errorf("committed gauge = %v, want 4", gauges["committed"])
	}
	if gauges["reserved"] != 0 {
		t.Errorf("reserved gauge = %v, want 0", gauges["reserved"])
	}
}

func TestNoOpMetrics(t *testing.T) {
	metrics := NewNoOpMetrics()
	if metrics == nil {
		t.Fatal("NewNoOpMetrics() returned nil")
	}

	// All methods should be safe to call without side effects.
	metrics.RecordAdmission("binance", "default", true)
	metrics.RecordAdmission("binance", "default", false)
	metrics.RecordSettlement("binance", "default", "committed")
	metrics.RecordSettlement("binance", "default", "rolled_back")
	metrics.RecordEviction("binance", "default", 3)
	metrics.SetFieldWeight("binance", "default", 5, 2)
	metrics.RecordGuardDuration("binance", "default", time.Millisecond)
}
