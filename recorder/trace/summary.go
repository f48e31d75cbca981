package trace

// TraceSummary aggregates statistics from a SweepTrace.
type TraceSummary struct {
	TotalDispatches      int
	PublishedCount       int
	FailedCount          int
	DuplicateCount       int
	MissCount            int
	LoadFailureCount     int
	MeanElapsedMillis    float64
	MaxElapsedMillis     int64
	UniqueInstances      int
	InstanceDistribution map[int]int // instance ID → count of dispatched points
}

// Summarize computes aggregate statistics from a SweepTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SweepTrace) *TraceSummary {
	summary := &TraceSummary{
		InstanceDistribution: make(map[int]int),
	}
	if st == nil {
		return summary
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	summary.TotalDispatches = len(st.Dispatches)
	if len(st.Dispatches) > 0 {
		var total int64
		for _, d := range st.Dispatches {
			summary.InstanceDistribution[d.InstanceID]++
			if d.Published {
				summary.PublishedCount++
			} else if d.Error != "" {
				summary.FailedCount++
			}
			total += d.ElapsedMillis
			if d.ElapsedMillis > summary.MaxElapsedMillis {
				summary.MaxElapsedMillis = d.ElapsedMillis
			}
		}
		summary.MeanElapsedMillis = float64(total) / float64(len(st.Dispatches))
	}

	summary.DuplicateCount = len(st.Duplicates)
	summary.MissCount = len(st.Misses)
	summary.LoadFailureCount = len(st.LoadFailures)
	summary.UniqueInstances = len(summary.InstanceDistribution)

	return summary
}
