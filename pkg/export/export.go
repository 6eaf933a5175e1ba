// Package export writes batch schedules in machine-readable formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/kilianp07/shopflow/core/batch"
)

// WriteJSON writes the schedule result to w in JSON format.
func WriteJSON(w io.Writer, res batch.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteCSV writes one row per ledger entry of c, in vehicle then service
// order.
func WriteCSV(w io.Writer, c batch.Candidate) error {
	cw := csv.NewWriter(w)
	header := []string{"vehicle", "job_id", "start", "duration", "finish", "deadline", "delay", "weighted_delay", "return_at"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for v, l := range c.Ledgers {
		for _, e := range l {
			rec := []string{
				strconv.Itoa(v + 1),
				e.JobID,
				formatFloat(e.Start),
				formatFloat(e.Duration),
				formatFloat(e.Finish),
				formatFloat(e.Deadline),
				formatFloat(e.Delay),
				formatFloat(e.WeightedDelay),
				formatFloat(e.ReturnAt),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
