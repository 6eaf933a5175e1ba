package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/shopflow/core/eventlog"
	"github.com/kilianp07/shopflow/core/events"
)

var eventsFlags struct {
	run  string
	job  string
	typ  string
	from float64
	to   float64
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query the job event log as JSON lines",
	RunE:  queryEvents,
}

func init() {
	f := eventsCmd.Flags()
	f.StringVar(&eventsFlags.run, "run", "", "run id")
	f.StringVar(&eventsFlags.job, "job", "", "job id")
	f.StringVar(&eventsFlags.typ, "type", "", "event type, COMPLETED for example")
	f.Float64Var(&eventsFlags.from, "from", 0, "earliest simulated time")
	f.Float64Var(&eventsFlags.to, "to", 0, "latest simulated time (0 is unbounded)")
	rootCmd.AddCommand(eventsCmd)
}

func queryEvents(cmd *cobra.Command, _ []string) error {
	ctx, svc, cleanup, err := newService(cmd, nil)
	if err != nil {
		return err
	}
	defer cleanup()
	store := svc.EventLog()
	if store == nil {
		return fmt.Errorf("no event log configured: set logging.event_log")
	}
	recs, err := store.Query(ctx, eventlog.Query{
		Run:   eventsFlags.run,
		JobID: eventsFlags.job,
		Type:  events.Type(eventsFlags.typ),
		From:  eventsFlags.from,
		To:    eventsFlags.to,
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
