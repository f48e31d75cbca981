package trace

import "testing"

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSweepTrace(TraceLevelSamples)

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.TotalDispatches != 0 {
		t.Errorf("expected 0 dispatches, got %d", summary.TotalDispatches)
	}
	if summary.UniqueInstances != 0 {
		t.Errorf("expected 0 unique instances, got %d", summary.UniqueInstances)
	}
	if summary.MeanElapsedMillis != 0 || summary.MaxElapsedMillis != 0 {
		t.Error("expected 0 elapsed values")
	}
	if len(summary.InstanceDistribution) != 0 {
		t.Error("expected empty instance distribution")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary.TotalDispatches != 0 || summary.InstanceDistribution == nil {
		t.Errorf("unexpected summary for nil trace: %+v", summary)
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with dispatches across two instances
	st := NewSweepTrace(TraceLevelSamples)
	st.RecordDispatch(DispatchRecord{InstanceID: 0, RPM: 1000, Throttle: 0, Published: true, ElapsedMillis: 100})
	st.RecordDispatch(DispatchRecord{InstanceID: 1, RPM: 1000, Throttle: 100, Published: true, ElapsedMillis: 300})
	st.RecordDispatch(DispatchRecord{InstanceID: 0, RPM: 1500, Throttle: 0, Error: "sample recording failed", ElapsedMillis: 200})
	st.RecordDuplicate(DuplicateRecord{InstanceID: 1, RPM: 1000, Throttle: 100})
	st.RecordMiss(MissRecord{RPM: 1500, Throttle: 0})
	st.RecordLoadFailure(LoadFailureRecord{InstanceID: 2, Detail: "bad"})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts and distribution match
	if summary.TotalDispatches != 3 {
		t.Errorf("expected 3 dispatches, got %d", summary.TotalDispatches)
	}
	if summary.PublishedCount != 2 || summary.FailedCount != 1 {
		t.Errorf("expected 2 published and 1 failed, got %d and %d", summary.PublishedCount, summary.FailedCount)
	}
	if summary.DuplicateCount != 1 || summary.MissCount != 1 || summary.LoadFailureCount != 1 {
		t.Errorf("unexpected duplicate/miss/load counts: %+v", summary)
	}
	if summary.MeanElapsedMillis != 200 {
		t.Errorf("expected mean 200ms, got %f", summary.MeanElapsedMillis)
	}
	if summary.MaxElapsedMillis != 300 {
		t.Errorf("expected max 300ms, got %d", summary.MaxElapsedMillis)
	}
	if summary.UniqueInstances != 2 {
		t.Errorf("expected 2 unique instances, got %d", summary.UniqueInstances)
	}
	if summary.InstanceDistribution[0] != 2 || summary.InstanceDistribution[1] != 1 {
		t.Errorf("unexpected distribution: %v", summary.InstanceDistribution)
	}
}
