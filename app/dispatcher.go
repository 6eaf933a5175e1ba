package app

import (
	"context"
	"time"

	"github.com/kilianp07/shopflow/core/eventlog"
	"github.com/kilianp07/shopflow/core/events"
	coremetrics "github.com/kilianp07/shopflow/core/metrics"
	"github.com/kilianp07/shopflow/core/model"
	coremon "github.com/kilianp07/shopflow/core/monitoring"
	coremqtt "github.com/kilianp07/shopflow/core/mqtt"
	"github.com/kilianp07/shopflow/infra/logger"
	"github.com/kilianp07/shopflow/internal/eventbus"
)

// EventDispatcher applies the job events produced by a simulation run:
// it publishes them on the bus, announces material needs over MQTT and
// records infeasible jobs. Events are appended to Store when one is set.
type EventDispatcher struct {
	Bus       *eventbus.TypedBus[events.JobEvent]
	Publisher coremqtt.Publisher
	Sink      coremetrics.MetricsSink
	Log       logger.Logger
	Monitor   coremon.Monitor
	// LogEvents logs every event at debug level.
	LogEvents bool
	// Jobs resolves job ids, for the product name of infeasible jobs.
	Jobs     func(id string) (*model.Job, bool)
	Store    eventlog.Store
	Run      string
	Scenario string

	handled       int
	announced     int
	publishErrors int
}

// Handle applies one event. Failures are logged and counted, never returned,
// so a broker outage does not stop the simulation.
func (d *EventDispatcher) Handle(ev events.JobEvent) {
	d.handled++
	if d.LogEvents && d.Log != nil {
		d.Log.Debugw("job event", map[string]any{
			"type": string(ev.Type), "job": ev.JobID, "operation": ev.Operation,
			"station": ev.Station, "vehicle": ev.Vehicle, "time": ev.Time,
		})
	}
	if d.Bus != nil {
		d.Bus.Publish(ev)
	}
	if d.Store != nil {
		rec := eventlog.Record{Timestamp: time.Now(), Run: d.Run, Scenario: d.Scenario, Event: ev}
		if err := d.Store.Append(context.Background(), rec); err != nil && d.Log != nil {
			d.Log.Errorf("event log append: %v", err)
		}
	}
	switch ev.Type {
	case events.MaterialNeedsCalculated:
		d.announce(ev)
	case events.Infeasible:
		d.recordInfeasible(ev)
	}
}

// Stats returns the number of handled events, MQTT announcements and
// failed announcements.
func (d *EventDispatcher) Stats() (handled, announced, failed int) {
	return d.handled, d.announced, d.publishErrors
}

func (d *EventDispatcher) announce(ev events.JobEvent) {
	if d.Publisher == nil {
		return
	}
	_, err := d.Publisher.PublishNeeds(coremqtt.NeedsAnnouncement{
		JobID:     ev.JobID,
		Operation: ev.Operation,
		Station:   ev.Station,
		SimTime:   ev.Time,
		Needs:     ev.Needs,
	})
	if err != nil {
		d.publishErrors++
		if d.Log != nil {
			d.Log.Errorf("publish needs of %s: %v", ev.JobID, err)
		}
		if d.Monitor != nil {
			d.Monitor.CaptureException(err, map[string]string{"job": ev.JobID, "component": "mqtt"})
		}
		return
	}
	d.announced++
}

func (d *EventDispatcher) recordInfeasible(ev events.JobEvent) {
	rec, ok := d.Sink.(coremetrics.InfeasibleRecorder)
	if !ok {
		return
	}
	ie := coremetrics.InfeasibleEvent{JobID: ev.JobID, Operation: ev.Operation, SimTime: ev.Time, Time: time.Now()}
	if d.Jobs != nil {
		if j, found := d.Jobs(ev.JobID); found {
			ie.Product = j.Product.Name
		}
	}
	if err := rec.RecordInfeasible(ie); err != nil && d.Log != nil {
		d.Log.Errorf("record infeasible %s: %v", ev.JobID, err)
	}
}
