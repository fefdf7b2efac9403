package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type call struct {
	name   string
	value  float64
	labels Labels
}

type fakeBackend struct {
	counters  []call
	durations []call
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.counters = append(f.counters, call{name, delta, labels})
}

func (f *fakeBackend) ObserveDuration(name string, seconds float64, labels Labels) {
	f.durations = append(f.durations, call{name, seconds, labels})
}

func (f *fakeBackend) Flush() error { return nil }

func TestRecordStep(t *testing.T) {
	f := &fakeBackend{}
	RecordStep(f, "a.sql", nil, 2*time.Second)
	RecordStep(f, "b.sql", errors.New("boom"), time.Second)

	assert.Equal(t, []call{
		{StepTotal, 1, Labels{"step": "a.sql", "status": "success"}},
		{StepTotal, 1, Labels{"step": "b.sql", "status": "failure"}},
	}, f.counters)
	assert.Equal(t, []call{
		{StepDuration, 2, Labels{"step": "a.sql", "status": "success"}},
		{StepDuration, 1, Labels{"step": "b.sql", "status": "failure"}},
	}, f.durations)
}

func TestRecordCheckAndRows(t *testing.T) {
	f := &fakeBackend{}
	RecordCheck(f, "invariant", "sum", false)
	RecordRows(f, "a.sql", 0)
	RecordRows(f, "a.sql", 10)

	assert.Equal(t, []call{
		{CheckTotal, 1, Labels{"category": "invariant", "kind": "sum", "status": "failure"}},
		{RowsLoadedTotal, 10, Labels{"step": "a.sql"}},
	}, f.counters)
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, Nop{}, OrNop(nil))

	f := &fakeBackend{}
	assert.Same(t, f, OrNop(f))
	assert.NoError(t, OrNop(nil).Flush())
}
