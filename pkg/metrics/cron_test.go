package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "payment_reconcile"
	m.JobFinished(job, 250*time.Millisecond, nil)
	m.JobFinished(job, time.Second, fmt.Errorf("gateway down"))
	m.CycleSkipped()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, outcome := range []string{JobSucceeded, JobFailed} {
		got, err := fetchCounterValue(mfs, "enxoval_cron_job_runs_total", "outcome", outcome)
		if err != nil || got != 1 {
			t.Fatalf("expected one %s run, got %f (%v)", outcome, got, err)
		}
	}
	if got, err := fetchHistogramSum(mfs, "enxoval_cron_job_duration_seconds", "job", job); err != nil || got < 1.25 {
		t.Fatalf("expected duration sum >= 1.25s, got %f (%v)", got, err)
	}
	last := findMetricFamily(mfs, "enxoval_cron_job_last_success_timestamp_seconds")
	if last == nil || last.GetMetric()[0].GetGauge().GetValue() <= 0 {
		t.Fatalf("expected last success timestamp to be set")
	}
	skipped := findMetricFamily(mfs, "enxoval_cron_cycles_skipped_total")
	if skipped == nil || skipped.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one skipped cycle")
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestPaymentMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)
	m.GatewayCall("create_preference", nil)
	m.GatewayCall("create_preference", fmt.Errorf("boom"))
	m.WebhookEvent("processed")
	m.Transition("paid", "webhook")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "enxoval_gateway_calls_total", "outcome", "error"); err != nil || got != 1 {
		t.Fatalf("expected one failed gateway call, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "enxoval_order_transitions_total", "source", "webhook"); err != nil || got != 1 {
		t.Fatalf("expected one webhook transition, got %f (%v)", got, err)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewCronJobMetrics(nil).JobFinished("job", time.Second, nil)
	NewPaymentMetrics(nil).WebhookEvent("ignored")
	NewHTTPMetrics(nil).Observe("GET", "/", 200, time.Millisecond)
	var nilMetrics *PaymentMetrics
	nilMetrics.GatewayCall("x", nil)
}
