package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/shopflow/config"
	"github.com/kilianp07/shopflow/core/batch"
	"github.com/kilianp07/shopflow/pkg/export"
)

var scheduleFlags struct {
	jobs      string
	format    string
	output    string
	vehicles  int
	blend     float64
	batchSize int
	beamWidth int
	workers   int
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Assign a deadline table to vehicles with the beam-pruned batch scheduler",
	RunE:  schedule,
}

func init() {
	f := scheduleCmd.Flags()
	f.StringVarP(&scheduleFlags.jobs, "jobs", "j", "", "deadline table (defaults to batch.jobs)")
	f.StringVarP(&scheduleFlags.format, "format", "f", "json", "output format: json or csv")
	f.StringVarP(&scheduleFlags.output, "output", "o", "", "write the result to this file")
	f.IntVar(&scheduleFlags.vehicles, "vehicles", 0, "number of vehicles")
	f.Float64Var(&scheduleFlags.blend, "blend", 0, "weight of the latest duration in [0,1]")
	f.IntVar(&scheduleFlags.batchSize, "batch-size", 0, "jobs permuted per batch")
	f.IntVar(&scheduleFlags.beamWidth, "beam-width", 0, "candidates kept between batches")
	f.IntVar(&scheduleFlags.workers, "workers", 0, "parallel workers (0 uses GOMAXPROCS)")
	rootCmd.AddCommand(scheduleCmd)
}

func schedule(cmd *cobra.Command, _ []string) error {
	if scheduleFlags.format != "json" && scheduleFlags.format != "csv" {
		return fmt.Errorf("unsupported format %q", scheduleFlags.format)
	}
	var params batch.Params
	var jobsPath string
	ctx, svc, cleanup, err := newService(cmd, func(cfg *config.Config) {
		flags := cmd.Flags()
		b := &cfg.Batch
		if flags.Changed("vehicles") {
			b.Vehicles = scheduleFlags.vehicles
		}
		if flags.Changed("blend") {
			b.Blend = scheduleFlags.blend
		}
		if flags.Changed("batch-size") {
			b.BatchSize = scheduleFlags.batchSize
		}
		if flags.Changed("beam-width") {
			b.BeamWidth = scheduleFlags.beamWidth
		}
		if flags.Changed("workers") {
			b.Workers = scheduleFlags.workers
		}
		if scheduleFlags.jobs != "" {
			b.Jobs = scheduleFlags.jobs
		}
		params = b.Params()
		jobsPath = b.Jobs
	})
	if err != nil {
		return err
	}
	defer cleanup()
	if jobsPath == "" {
		return fmt.Errorf("no deadline table: set --jobs or batch.jobs")
	}
	jobs, err := batch.LoadJobs(jobsPath)
	if err != nil {
		return err
	}
	res, err := svc.Schedule(ctx, jobs, params)
	if err != nil {
		return err
	}
	w, closeOut, err := output(cmd, scheduleFlags.output)
	if err != nil {
		return err
	}
	if scheduleFlags.format == "csv" {
		err = export.WriteCSV(w, res.Best)
	} else {
		err = export.WriteJSON(w, res)
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	return err
}
