package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/shopflow/config"
	"github.com/kilianp07/shopflow/core/events"
	"github.com/kilianp07/shopflow/infra/stream"
	"github.com/kilianp07/shopflow/internal/eventbus"
	"github.com/kilianp07/shopflow/qa/scenarios"
)

var simulateFlags struct {
	scenario string
	policy   string
	horizon  float64
	trace    bool
	output   string

	stream        string
	streamClients int
	streamWait    time.Duration
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a shop floor scenario and print its report",
	RunE:  simulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVarP(&simulateFlags.scenario, "scenario", "s", "", "scenario file")
	f.StringVar(&simulateFlags.policy, "policy", "", "material policy: none, reactive, controlled or predictive")
	f.Float64Var(&simulateFlags.horizon, "horizon", 0, "stop at this simulated time (0 runs to completion)")
	f.BoolVar(&simulateFlags.trace, "trace", false, "print job events as JSON lines on stderr")
	f.StringVarP(&simulateFlags.output, "output", "o", "", "write the report to this file")
	f.StringVar(&simulateFlags.stream, "stream", "", "serve job events over WebSocket on this address (path /events)")
	f.IntVar(&simulateFlags.streamClients, "stream-clients", 1, "clients to wait for before the run starts")
	f.DurationVar(&simulateFlags.streamWait, "stream-wait", 30*time.Second, "how long to wait for stream clients")
	_ = simulateCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(simulateCmd)
}

func simulate(cmd *cobra.Command, _ []string) error {
	sc, err := scenarios.Load(simulateFlags.scenario)
	if err != nil {
		return err
	}
	if simulateFlags.policy != "" {
		sc.Policy = simulateFlags.policy
	}
	ctx, svc, cleanup, err := newService(cmd, func(cfg *config.Config) {
		if cmd.Flags().Changed("horizon") {
			cfg.Simulation.Horizon = simulateFlags.horizon
		}
	})
	if err != nil {
		return err
	}
	defer cleanup()

	var wg sync.WaitGroup
	if simulateFlags.trace {
		sub := svc.Bus().SubscribeBuffered(1024)
		defer func() {
			svc.Bus().Unsubscribe(sub)
			wg.Wait()
		}()
		enc := json.NewEncoder(cmd.ErrOrStderr())
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range sub {
				_ = enc.Encode(ev)
			}
		}()
	}

	if simulateFlags.stream != "" {
		stop, err := startStream(ctx, svc.Bus(), simulateFlags.stream, simulateFlags.streamClients, simulateFlags.streamWait)
		if err != nil {
			return err
		}
		defer stop()
	}

	report, runErr := svc.Simulate(ctx, sc)
	w, closeOut, err := output(cmd, simulateFlags.output)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	return sc.Check(report)
}

// startStream serves the bus on addr and waits for the requested clients.
// The returned function flushes pending events and shuts the server down.
func startStream(ctx context.Context, bus *eventbus.TypedBus[events.JobEvent], addr string, clients int, wait time.Duration) (func(), error) {
	hub := stream.NewHub()
	mux := http.NewServeMux()
	mux.Handle("/events", hub)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := hub.WaitClients(waitCtx, clients); err != nil {
		_ = srv.Close()
		if serr := <-serveErr; serr != nil {
			return nil, fmt.Errorf("stream server: %w", serr)
		}
		return nil, fmt.Errorf("waiting for %d stream clients: %w", clients, err)
	}

	sub := bus.SubscribeBuffered(4096)
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(context.Background(), sub)
	}()
	return func() {
		bus.Unsubscribe(sub)
		<-done
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}
