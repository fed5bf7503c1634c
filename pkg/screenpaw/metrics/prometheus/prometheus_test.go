package prommetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")
	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func gather(t *testing.T, reg *prometheus.Registry) []*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	return families
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestMetrics_RecordPoll(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordPoll(50*time.Millisecond, nil)
	metrics.RecordPoll(80*time.Millisecond, errors.New("access denied"))

	family := findFamily(gather(t, reg), "test_usage_polls_total")
	if family == nil {
		t.Fatal("Expected test_usage_polls_total to be registered")
	}
	if len(family.GetMetric()) != 2 {
		t.Errorf("Expected success and failure series, got %d", len(family.GetMetric()))
	}
}

func TestMetrics_RecordSnapshotAccepted(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordSnapshotAccepted(screenpaw.SourceExternalReport)
	metrics.RecordSnapshotAccepted(screenpaw.SourceExternalReport)
	metrics.RecordSnapshotAccepted(screenpaw.SourceLocalEstimate)

	family := findFamily(gather(t, reg), "test_usage_snapshots_accepted_total")
	if family == nil {
		t.Fatal("Expected test_usage_snapshots_accepted_total to be registered")
	}
	for _, m := range family.GetMetric() {
		for _, label := range m.GetLabel() {
			if label.GetValue() == string(screenpaw.SourceExternalReport) {
				if got := m.GetCounter().GetValue(); got != 2 {
					t.Errorf("Expected 2 external snapshots, got %v", got)
				}
			}
		}
	}
}

func TestMetrics_RecordPenaltyAndSpend(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordPenalty(1)
	metrics.RecordPenalty(2)
	metrics.RecordCreditSpend(screenpaw.ReasonExtensionFee, 1, false)
	metrics.RecordCreditSpend(screenpaw.ReasonUnblockFee, 0, true)
	metrics.RecordDegraded()

	families := gather(t, reg)
	penalties := findFamily(families, "test_credit_penalties_total")
	if penalties == nil {
		t.Fatal("Expected test_credit_penalties_total to be registered")
	}
	if got := penalties.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("Expected 2 penalties, got %v", got)
	}

	spend := findFamily(families, "test_credit_spend_total")
	if spend == nil || len(spend.GetMetric()) != 2 {
		t.Errorf("Expected two spend series, got %+v", spend)
	}
}

func TestMetrics_RecordStorageOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordStorageOperation("put_plan", 10*time.Millisecond, nil)
	metrics.RecordStorageOperation("put_plan", 5*time.Millisecond, errors.New("boom"))

	families := gather(t, reg)
	if findFamily(families, "test_storage_operation_duration_seconds") == nil {
		t.Error("Expected storage duration histogram")
	}
	errorsFamily := findFamily(families, "test_storage_operation_errors_total")
	if errorsFamily == nil {
		t.Fatal("Expected storage errors counter")
	}
	if got := errorsFamily.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("Expected 1 storage error, got %v", got)
	}
}
