package trace

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidTraceLevel(t *testing.T) {
	assert.True(t, IsValidTraceLevel("none"))
	assert.True(t, IsValidTraceLevel("samples"))
	assert.True(t, IsValidTraceLevel(""))
	assert.False(t, IsValidTraceLevel("decisions"))
}

func TestSweepTrace_NoneLevel_RecordsNothing(t *testing.T) {
	st := NewSweepTrace(TraceLevelNone)
	st.RecordDispatch(DispatchRecord{InstanceID: 1})
	st.RecordMiss(MissRecord{RPM: 1000})
	assert.Empty(t, st.Dispatches)
	assert.Empty(t, st.Misses)

	var nilTrace *SweepTrace
	nilTrace.RecordDuplicate(DuplicateRecord{})
	assert.False(t, nilTrace.Enabled())
}

func TestSweepTrace_ConcurrentDispatches(t *testing.T) {
	st := NewSweepTrace(TraceLevelSamples)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for seq := 0; seq < 25; seq++ {
				st.RecordDispatch(DispatchRecord{InstanceID: id, Sequence: seq, Published: true})
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, st.Dispatches, 200)
}
