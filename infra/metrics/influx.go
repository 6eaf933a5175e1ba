package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/shopflow/core/metrics"
	"github.com/kilianp07/shopflow/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes job and schedule records to an InfluxDB instance using
// the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
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

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordJobCompletion writes one job_completion point.
func (s *InfluxSink) RecordJobCompletion(c coremetrics.JobCompletion) error {
	p := write.NewPointWithMeasurement("job_completion").
		AddTag("job_id", c.JobID).
		AddTag("product", c.Product).
		AddTag("status", c.Status).
		AddTag("policy", c.Policy).
		AddField("completed_at", round3(c.CompletedAt)).
		AddField("due_date", round3(c.DueDate)).
		AddField("tardiness", round3(c.Tardiness)).
		AddField("transport", round3(c.Transport)).
		AddField("working", round3(c.Working)).
		AddField("waiting", round3(c.Waiting)).
		AddField("unaccounted", round3(c.Unaccounted)).
		AddField("total", round3(c.Total)).
		SetTime(c.Time)
	return s.write(p)
}

// RecordInfeasible writes one job_infeasible point.
func (s *InfluxSink) RecordInfeasible(ev coremetrics.InfeasibleEvent) error {
	p := write.NewPointWithMeasurement("job_infeasible").
		AddTag("job_id", ev.JobID).
		AddTag("product", ev.Product)
	if ev.Operation != "" {
		p = p.AddTag("operation", ev.Operation)
	}
	p = p.AddField("sim_time", round3(ev.SimTime)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordSchedule writes one batch_schedule point.
func (s *InfluxSink) RecordSchedule(sum coremetrics.ScheduleSummary) error {
	p := write.NewPointWithMeasurement("batch_schedule").
		AddTag("component", "batch").
		AddField("jobs", sum.Jobs).
		AddField("vehicles", sum.Vehicles).
		AddField("beam_width", sum.BeamWidth).
		AddField("weighted_delay", round3(sum.WeightedDelay)).
		AddField("probable_delay", round3(sum.ProbableDelay)).
		AddField("makespan", round3(sum.Makespan)).
		AddField("elapsed_ms", round3(sum.Elapsed.Seconds()*1000)).
		SetTime(sum.Time)
	return s.write(p)
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
