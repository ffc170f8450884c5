package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/Kitsune/app/dto"
	businessflow "github.com/amirphl/Kitsune/business_flow"
	"github.com/stretchr/testify/assert"
)

type fakeRecomputer struct {
	calls atomic.Int32
	err   error
	resp  *dto.RecomputeCountersResponse
}

func (f *fakeRecomputer) RecomputeAll(ctx context.Context) (*dto.RecomputeCountersResponse, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCounterSchedulerRunsOnInterval(t *testing.T) {
	rec := &fakeRecomputer{resp: &dto.RecomputeCountersResponse{
		AffiliatesChecked: 2,
		Repaired:          []dto.CounterRepair{{Target: "affiliate", ID: 7, LeadsBefore: 3, LeadsAfter: 4}},
	}}
	out := &syncBuffer{}
	s := NewCounterScheduler(rec, log.New(out, "", 0), 10*time.Millisecond, time.Second)

	stop := s.Start(context.Background())
	assert.Eventually(t, func() bool { return rec.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	stop()

	calls := rec.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, rec.calls.Load(), "no runs after stop")
	assert.Contains(t, out.String(), "counter drift repaired: affiliate 7 leads 3->4")
}

func TestCounterSchedulerLogsFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "lock held", err: businessflow.ErrRecomputeInProgress, want: "skipped"},
		{name: "database down", err: errors.New("connection refused"), want: "failed: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &syncBuffer{}
			s := NewCounterScheduler(&fakeRecomputer{err: tt.err}, log.New(out, "", 0), time.Hour, time.Second)
			s.runOnce(context.Background())
			assert.Contains(t, out.String(), tt.want)
		})
	}
}
