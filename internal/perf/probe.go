// Package perf measures edit-to-frame latency and the one-shot first render time.
//
// Probe pairs a start signal with the next frame boundary of a FrameSource.
// At most one measurement is in flight; a frame that never fires leaves the
// probe busy.
package perf

import (
	"sync"
	"time"
)

// FrameSource — хост, который вызывает колбэк на ближайшей границе кадра
type FrameSource interface {
	RequestFrame(cb func(at time.Time))
}

// Observer получает каждое измерение в секундах (prometheus.Histogram подходит)
type Observer interface {
	Observe(float64)
}

type Probe struct {
	mu       sync.Mutex
	frames   FrameSource
	now      func() time.Time
	observer Observer

	busy  bool
	gen   uint64 // поколение замера: колбэк отменённого замера игнорируется
	start time.Time
	last  time.Duration
	has   bool
	count uint64
}

type ProbeOption func(*Probe)

func WithClock(now func() time.Time) ProbeOption { return func(p *Probe) { p.now = now } }

func WithObserver(o Observer) ProbeOption { return func(p *Probe) { p.observer = o } }

func NewProbe(frames FrameSource, opts ...ProbeOption) *Probe {
	p := &Probe{frames: frames, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// MarkInputStart начинает измерение. Если измерение уже идёт — ничего не делает
// и возвращает false.
func (p *Probe) MarkInputStart() bool {
	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		return false
	}
	p.busy = true
	p.gen++
	gen := p.gen
	p.start = p.now()
	p.mu.Unlock()

	p.frames.RequestFrame(func(at time.Time) { p.finish(gen, at) })
	return true
}

// Abort отменяет текущий замер без записи: ввод был отклонён и кадр ничего не
// перерисует. Запрошенный колбэк кадра сработает вхолостую.
func (p *Probe) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		p.busy = false
		p.gen++
	}
}

func (p *Probe) finish(gen uint64, at time.Time) {
	p.mu.Lock()
	if !p.busy || gen != p.gen {
		p.mu.Unlock()
		return
	}
	d := at.Sub(p.start)
	if d < 0 {
		d = 0
	}
	p.last, p.has = d, true
	p.count++
	p.busy = false
	obs := p.observer
	p.mu.Unlock()

	if obs != nil {
		obs.Observe(d.Seconds())
	}
}

// Last — последнее измерение; false, если измерений ещё не было
func (p *Probe) Last() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.has
}

func (p *Probe) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

func (p *Probe) Count() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}
