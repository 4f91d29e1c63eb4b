package clock

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/simforge/simforge/internal/core/observability/log"
)

// DefaultRate is the server-side simulation rate in ticks per second.
const DefaultRate = 20

// Callback receives the wall-clock delta of the frame in seconds.
type Callback func(delta float64)

// Ticker drives registered callbacks at a fixed target rate. A panicking
// callback is isolated so one failure cannot stop the loop.
type Ticker struct {
	interval time.Duration
	logger   log.Log

	mu        sync.Mutex
	callbacks []Callback

	running int32
	stopCh  chan struct{}
	wg      sync.WaitGroup

	total  int64  // atomic, nanoseconds of accumulated simulation time
	frames uint64 // atomic, frames since start
	fps    uint64 // atomic, math.Float64bits of the last sampled rate
}

func NewTicker(rate int, logger log.Log) *Ticker {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Ticker{
		interval: time.Second / time.Duration(rate),
		logger:   logger.With(log.String("component", "ticker")),
	}
}

// AddCallback registers a tick callback. Callbacks added while running take
// effect on the next frame.
func (t *Ticker) AddCallback(cb Callback) {
	t.mu.Lock()
	t.callbacks = append(t.callbacks, cb)
	t.mu.Unlock()
}

// Start launches the loop. Calling Start on a running ticker logs a warning
// and returns.
func (t *Ticker) Start() {
	if !atomic.CompareAndSwapInt32(&t.running, 0, 1) {
		t.logger.Warn("Ticker already running")
		return
	}
	t.stopCh = make(chan struct{})
	t.wg.Add(1)
	go t.loop()
	t.logger.Info("Ticker started", log.Duration("interval", t.interval))
}

// Stop cancels the loop and waits for the in-flight frame. Safe to call when
// already stopped.
func (t *Ticker) Stop() {
	if !atomic.CompareAndSwapInt32(&t.running, 1, 0) {
		t.logger.Warn("Ticker already stopped")
		return
	}
	close(t.stopCh)
	t.wg.Wait()
	t.logger.Info("Ticker stopped", log.Duration("total", t.Total()))
}

func (t *Ticker) IsRunning() bool {
	return atomic.LoadInt32(&t.running) == 1
}

// Total returns the accumulated simulation time.
func (t *Ticker) Total() time.Duration {
	return time.Duration(atomic.LoadInt64(&t.total))
}

// FPS returns the actual rate sampled over the last second.
func (t *Ticker) FPS() float64 {
	return math.Float64frombits(atomic.LoadUint64(&t.fps))
}

func (t *Ticker) loop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	last := time.Now()
	window := last
	windowFrames := 0

	for {
		select {
		case <-t.stopCh:
			return
		case now := <-ticker.C:
			delta := now.Sub(last).Seconds()
			last = now
			atomic.AddInt64(&t.total, int64(delta*float64(time.Second)))
			atomic.AddUint64(&t.frames, 1)

			t.mu.Lock()
			cbs := make([]Callback, len(t.callbacks))
			copy(cbs, t.callbacks)
			t.mu.Unlock()

			for _, cb := range cbs {
				t.invoke(cb, delta)
			}

			windowFrames++
			if elapsed := now.Sub(window); elapsed >= time.Second {
				atomic.StoreUint64(&t.fps, math.Float64bits(float64(windowFrames)/elapsed.Seconds()))
				window = now
				windowFrames = 0
			}
		}
	}
}

func (t *Ticker) invoke(cb Callback, delta float64) {
	defer func() {
		if rec := recover(); rec != nil {
			t.logger.Error("Tick callback panicked", log.Any("panic", rec))
		}
	}()
	cb(delta)
}
