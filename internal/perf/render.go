package perf

import (
	"sync"
	"time"
)

// RenderTimer — одноразовый замер «время до первой стабильной отрисовки»
type RenderTimer struct {
	mu      sync.Mutex
	now     func() time.Time
	started time.Time
	value   time.Duration
	done    bool
}

func StartRenderTimer(now func() time.Time) *RenderTimer {
	if now == nil {
		now = time.Now
	}
	return &RenderTimer{now: now, started: now()}
}

// Stop фиксирует длительность; учитывается только первый вызов.
func (t *RenderTimer) Stop() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return t.value, false
	}
	t.value = t.now().Sub(t.started)
	t.done = true
	return t.value, true
}

func (t *RenderTimer) Value() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.done
}
