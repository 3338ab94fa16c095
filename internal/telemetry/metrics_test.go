// ABOUTME: Tests for instrument creation against both real and noop providers.

package telemetry

import (
	"context"
	"testing"
)

func TestNewMetrics_AllInstrumentsCreated(t *testing.T) {
	p, err := Init(context.Background(), Config{
		Enabled:  true,
		Exporter: "none",
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	if m.JobsSubmitted == nil {
		t.Error("JobsSubmitted is nil")
	}
	if m.JobsCompleted == nil {
		t.Error("JobsCompleted is nil")
	}
	if m.JobsErrored == nil {
		t.Error("JobsErrored is nil")
	}
	if m.JobDuration == nil {
		t.Error("JobDuration is nil")
	}
	if m.ActiveJobs == nil {
		t.Error("ActiveJobs is nil")
	}
	if m.EventsRelayed == nil {
		t.Error("EventsRelayed is nil")
	}
	if m.EventsPersisted == nil {
		t.Error("EventsPersisted is nil")
	}
	if m.RelayDrops == nil {
		t.Error("RelayDrops is nil")
	}
	if m.StreamClients == nil {
		t.Error("StreamClients is nil")
	}
	if m.ThreadsEvicted == nil {
		t.Error("ThreadsEvicted is nil")
	}
	if m.JobsPurged == nil {
		t.Error("JobsPurged is nil")
	}
}

func TestNewMetrics_NoopMeter(t *testing.T) {
	// Disabled telemetry returns a noop meter; instruments still create.
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics with noop: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil Metrics")
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, Exporter: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}
