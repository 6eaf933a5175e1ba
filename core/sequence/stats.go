package sequence

import "github.com/kilianp07/shopflow/core/model"

// Analyze counts, for every position, how often each operation occurs across
// seqs. Position 0 entries carry finishingTime.
func Analyze(seqs [][]int, ops []*model.Operation, finishingTime float64) model.PositionStats {
	maxLen := 0
	for _, s := range seqs {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	stats := make(model.PositionStats, maxLen)
	for i := range stats {
		stats[i] = make(map[string]model.PositionStat)
	}
	for _, s := range seqs {
		for pos, idx := range s {
			op := ops[idx]
			st := stats[pos][op.Name]
			st.Count++
			st.NeedsMaterial = op.MaterialRequired
			if pos == 0 {
				st.FinishingTime = finishingTime
			}
			stats[pos][op.Name] = st
		}
	}
	total := float64(len(seqs))
	for pos := range stats {
		for name, st := range stats[pos] {
			st.Percentage = float64(st.Count) / total * 100
			stats[pos][name] = st
		}
	}
	return stats
}
