// ABOUTME: The gateway's metric instrument bundle: job, stream, and persistence counters.
// ABOUTME: Created once from the provider's meter and threaded through the coordinator.

package telemetry

import "go.opentelemetry.io/otel/metric"

// Metrics holds all gateway metric instruments.
type Metrics struct {
	JobsSubmitted   metric.Int64Counter
	JobsCompleted   metric.Int64Counter
	JobsErrored     metric.Int64Counter
	JobDuration     metric.Float64Histogram
	ActiveJobs      metric.Int64UpDownCounter
	EventsRelayed   metric.Int64Counter
	EventsPersisted metric.Int64Counter
	RelayDrops      metric.Int64Counter
	StreamClients   metric.Int64UpDownCounter
	ThreadsEvicted  metric.Int64Counter
	JobsPurged      metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.JobsSubmitted, err = meter.Int64Counter("scry.jobs.submitted",
		metric.WithDescription("Jobs accepted for processing"),
	)
	if err != nil {
		return nil, err
	}

	m.JobsCompleted, err = meter.Int64Counter("scry.jobs.completed",
		metric.WithDescription("Jobs that finished with a completed turn"),
	)
	if err != nil {
		return nil, err
	}

	m.JobsErrored, err = meter.Int64Counter("scry.jobs.errored",
		metric.WithDescription("Jobs that finished in error"),
	)
	if err != nil {
		return nil, err
	}

	m.JobDuration, err = meter.Float64Histogram("scry.job.duration",
		metric.WithDescription("Job duration from submit to terminal state in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveJobs, err = meter.Int64UpDownCounter("scry.jobs.active",
		metric.WithDescription("Jobs currently processing"),
	)
	if err != nil {
		return nil, err
	}

	m.EventsRelayed, err = meter.Int64Counter("scry.events.relayed",
		metric.WithDescription("Runtime events pushed to client streams"),
	)
	if err != nil {
		return nil, err
	}

	m.EventsPersisted, err = meter.Int64Counter("scry.events.persisted",
		metric.WithDescription("Runtime events appended to the durable thread log"),
	)
	if err != nil {
		return nil, err
	}

	m.RelayDrops, err = meter.Int64Counter("scry.relay.drops",
		metric.WithDescription("Push frames dropped for slow or vanished clients"),
	)
	if err != nil {
		return nil, err
	}

	m.StreamClients, err = meter.Int64UpDownCounter("scry.stream.clients",
		metric.WithDescription("Clients with an open push stream"),
	)
	if err != nil {
		return nil, err
	}

	m.ThreadsEvicted, err = meter.Int64Counter("scry.threads.evicted",
		metric.WithDescription("Idle thread handles closed by the sweep"),
	)
	if err != nil {
		return nil, err
	}

	m.JobsPurged, err = meter.Int64Counter("scry.jobs.purged",
		metric.WithDescription("Terminal jobs removed by the retention sweep"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
