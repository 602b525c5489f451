package perf

import (
	"context"
	"sync"
	"time"
)

// FrameLoop — часы кадров хоста. RequestFrame ставит колбэк в очередь,
// Tick выполняет всё накопленное с текущим временем.
type FrameLoop struct {
	mu      sync.Mutex
	pending []func(time.Time)
	now     func() time.Time
	frames  uint64
}

func NewFrameLoop(now func() time.Time) *FrameLoop {
	if now == nil {
		now = time.Now
	}
	return &FrameLoop{now: now}
}

func (l *FrameLoop) RequestFrame(cb func(at time.Time)) {
	l.mu.Lock()
	l.pending = append(l.pending, cb)
	l.mu.Unlock()
}

// Tick — граница кадра. Колбэки, запрошенные во время Tick, ждут следующего кадра.
func (l *FrameLoop) Tick() int {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.frames++
	at := l.now()
	l.mu.Unlock()

	for _, cb := range batch {
		cb(at)
	}
	return len(batch)
}

func (l *FrameLoop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *FrameLoop) Frames() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// Run тикает с заданным интервалом до отмены ctx. tick оборачивает Tick, если
// хосту нужно держать свою блокировку на время кадра.
func (l *FrameLoop) Run(ctx context.Context, interval time.Duration, tick func(func() int)) {
	if tick == nil {
		tick = func(f func() int) { f() }
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tick(l.Tick)
		}
	}
}
