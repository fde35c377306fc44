package renderer

// RenderStats is a snapshot of accumulation progress across the grid
type RenderStats struct {
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Workers        int     `json:"workers"`
	Paused         bool    `json:"paused"`
	Revision       uint32  `json:"revision"`
	MinSamples     uint32  `json:"minSamples"`     // Lowest collected count of any row
	MaxSamples     uint32  `json:"maxSamples"`     // Highest collected count of any row
	AverageSamples float64 `json:"averageSamples"` // Mean collected count over all rows
	TotalSamples   uint64  `json:"totalSamples"`   // Samples per pixel summed over rows, times width
	CurrentRows    int     `json:"currentRows"`    // Rows accumulated at the current revision
	StaleRows      int     `json:"staleRows"`      // Rows still holding an older revision
	Dispatched     uint64  `json:"dispatched"`     // Row jobs started by the current executor
}

// Converged reports whether every row is at the current revision with at
// least target samples
func (s RenderStats) Converged(target uint32) bool {
	return s.StaleRows == 0 && s.MinSamples >= target
}

// Stats collects per-row counters, taking each row's source lock in turn.
// Rows are read one at a time so the snapshot is not atomic across rows.
func (e *Engine) Stats() RenderStats {
	f := e.frame.Load()
	revision := e.Revision()

	stats := RenderStats{
		Width:    f.width,
		Height:   f.height,
		Workers:  e.workers,
		Revision: revision,
	}

	e.mu.Lock()
	stats.Paused = e.paused || e.closed
	if e.executor != nil {
		stats.Dispatched = e.executor.Dispatched()
	}
	e.mu.Unlock()

	var sum uint64
	for i, row := range f.rows {
		count, rowRevision := row.Snapshot()
		if rowRevision == revision {
			stats.CurrentRows++
		} else {
			stats.StaleRows++
		}

		if i == 0 || count < stats.MinSamples {
			stats.MinSamples = count
		}
		stats.MaxSamples = max(stats.MaxSamples, count)
		sum += uint64(count)
	}

	stats.TotalSamples = sum * uint64(f.width)
	if f.height > 0 {
		stats.AverageSamples = float64(sum) / float64(f.height)
	}
	return stats
}
