package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/simforge/simforge/internal/core/observability/log"
)

func TestTickerInvokesCallbacks(t *testing.T) {
	tk := NewTicker(200, log.NewNop())
	var ticks int64
	tk.AddCallback(func(delta float64) {
		if delta <= 0 {
			t.Errorf("non-positive delta %f", delta)
		}
		atomic.AddInt64(&ticks, 1)
	})

	tk.Start()
	time.Sleep(100 * time.Millisecond)
	tk.Stop()

	if atomic.LoadInt64(&ticks) == 0 {
		t.Fatal("no ticks delivered")
	}
	if tk.Total() <= 0 {
		t.Fatal("total time not accumulated")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	tk := NewTicker(100, log.NewNop())
	tk.Start()
	tk.Start() // warns, no second loop
	tk.Stop()
	tk.Stop() // warns, no panic
	if tk.IsRunning() {
		t.Fatal("ticker still running after stop")
	}
}

func TestPanickingCallbackDoesNotStopLoop(t *testing.T) {
	tk := NewTicker(200, log.NewNop())
	var after int64
	tk.AddCallback(func(float64) { panic("bad callback") })
	tk.AddCallback(func(float64) { atomic.AddInt64(&after, 1) })

	tk.Start()
	time.Sleep(100 * time.Millisecond)
	tk.Stop()

	if atomic.LoadInt64(&after) < 2 {
		t.Fatalf("loop did not survive panicking callback, later callback ran %d times", after)
	}
}
