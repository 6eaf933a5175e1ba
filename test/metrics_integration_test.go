package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/shopflow/app"
	"github.com/kilianp07/shopflow/config"
	"github.com/kilianp07/shopflow/core/factory"
	"github.com/kilianp07/shopflow/qa/scenarios"
	"github.com/kilianp07/shopflow/test/util"
)

func TestPrometheusEndpointExposesJobMetrics(t *testing.T) {
	addr, err := util.FreeAddr()
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "prometheus"}}
	cfg.Metrics.PrometheusPort = addr
	svc, err := app.New(&cfg, app.Options{})
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	svc.ServeMetrics(ctx)

	sc, err := scenarios.Load("../qa/scenarios/uncapable_product.yaml")
	require.NoError(t, err)
	_, err = svc.Simulate(ctx, sc)
	require.NoError(t, err)

	waitCtx, waitCancel := context.WithTimeout(ctx, util.MetricTimeout)
	defer waitCancel()
	url := "http://" + addr + "/metrics"
	require.NoError(t, util.WaitForMetric(waitCtx, url, `shopflow_jobs_total{policy="none",status="completed"} 1`))
	require.NoError(t, util.WaitForMetric(waitCtx, url, `shopflow_infeasible_jobs_total{product="exotic"} 1`))
}
