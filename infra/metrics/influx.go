package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/gridmill/gridmill/core/metrics"
	"github.com/gridmill/gridmill/infra/logger"
)

// InfluxSink writes build events to an InfluxDB instance using the official
// client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink when the health check fails, so a missing collector never blocks
// a build.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.BuildSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordTaskOutcome writes one settled task as a point.
func (s *InfluxSink) RecordTaskOutcome(res coremetrics.TaskOutcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("build_task").
		AddTag("run_id", res.RunID).
		AddTag("rule", res.Rule).
		AddTag("status", res.Status)
	if res.Day != "" {
		p = p.AddTag("day", res.Day)
	}
	p = p.AddField("cached", res.Cached).
		AddField("duration_s", res.Duration.Seconds()).
		AddField("memory_mb", res.MemoryMB)
	if res.Error != "" {
		p = p.AddField("error", res.Error)
	}
	p.SetTime(res.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRunSummary persists the end-of-run counters.
func (s *InfluxSink) RecordRunSummary(sum coremetrics.RunSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("build_run").
		AddTag("run_id", sum.RunID).
		AddField("targets", len(sum.Targets)).
		AddField("succeeded", sum.Succeeded).
		AddField("failed", sum.Failed).
		AddField("blocked", sum.Blocked).
		AddField("cached", sum.Cached).
		AddField("executed", sum.Executed).
		AddField("duration_s", sum.Duration.Seconds()).
		AddField("mean_task_s", sum.MeanTaskSec).
		AddField("stdev_task_s", sum.StdevTaskSec).
		SetTime(sum.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordLedgerSample writes a snapshot of memory-ledger utilisation.
func (s *InfluxSink) RecordLedgerSample(sample coremetrics.LedgerSample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("build_ledger").
		AddTag("run_id", sample.RunID).
		AddField("reserved_mb", sample.ReservedMB).
		AddField("budget_mb", sample.BudgetMB).
		AddField("running", sample.Running).
		SetTime(sample.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordConstraintFallback writes a vintage substitution for the audit
// trail.
func (s *InfluxSink) RecordConstraintFallback(ev coremetrics.ConstraintFallback) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("constraint_fallback").
		AddTag("run_id", ev.RunID).
		AddTag("rule", ev.Rule).
		AddTag("wildcard", ev.Wildcard).
		AddField("requested", ev.Requested).
		AddField("substituted", ev.Substituted).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}
