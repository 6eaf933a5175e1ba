package scenarios

import (
	"fmt"

	"github.com/antonmedv/expr"

	"github.com/kilianp07/shopflow/core/shop"
)

// reportEnv exposes a report to assertion expressions.
func reportEnv(r shop.Report) map[string]any {
	jobs := make([]map[string]any, len(r.Jobs))
	for i, j := range r.Jobs {
		jobs[i] = map[string]any{
			"id":        j.ID,
			"product":   j.Product,
			"status":    j.Status,
			"due_date":  j.DueDate,
			"tardiness": j.Tardiness,
			"total":     j.Metrics.Total,
			"transport": j.Metrics.Transport,
			"working":   j.Metrics.Working,
			"waiting":   j.Metrics.Waiting,
		}
	}
	return map[string]any{
		"makespan":   r.Makespan,
		"completed":  r.Completed,
		"infeasible": r.Infeasible,
		"events":     r.Events,
		"steps":      r.Steps,
		"pending":    r.Pending,
		"jobs":       jobs,
	}
}

// evaluate evaluates a boolean expression such as "makespan <= 40" or
// `all(jobs, {#.tardiness == 0})` against the report.
func evaluate(rule string, env map[string]any) error {
	program, err := expr.Compile(rule, expr.Env(env), expr.AsBool())
	if err != nil {
		return fmt.Errorf("compile %q: %w", rule, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return fmt.Errorf("run %q: %w", rule, err)
	}
	if ok, _ := out.(bool); !ok {
		return fmt.Errorf("assertion failed: %s", rule)
	}
	return nil
}
