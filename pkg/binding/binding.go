package binding

import (
	"fmt"
	"sync"
	"time"
)

type binding struct {
	system *System
	id     string
	source string
	opts   BindOptions
	cancel func()

	mu       sync.Mutex
	closed   bool
	held     []Update
	heldIdx  map[string]int
	timer    Timer
	lastCall time.Time
}

// deliver applies debounce or throttle, then calls OnUpdate.
func (b *binding) deliver(u Update) {
	switch {
	case b.opts.Debounce > 0:
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return
		}
		b.holdLocked(u)
		if b.timer != nil {
			b.timer.Stop()
		}
		b.timer = b.system.clock.AfterFunc(b.opts.Debounce, b.release)
		b.mu.Unlock()

	case b.opts.Throttle > 0:
		now := b.system.clock.Now()
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return
		}
		if b.timer == nil && now.Sub(b.lastCall) >= b.opts.Throttle {
			b.lastCall = now
			b.mu.Unlock()
			b.call(u)
			return
		}
		b.holdLocked(u)
		if b.timer == nil {
			wait := b.opts.Throttle - now.Sub(b.lastCall)
			b.timer = b.system.clock.AfterFunc(wait, b.release)
		}
		b.mu.Unlock()

	default:
		b.call(u)
	}
}

// holdLocked keeps the latest update per property. Callers hold mu.
func (b *binding) holdLocked(u Update) {
	if b.heldIdx == nil {
		b.heldIdx = make(map[string]int)
	}
	if i, ok := b.heldIdx[u.Property]; ok {
		u.OldValue = b.held[i].OldValue
		b.held[i] = u
		return
	}
	b.heldIdx[u.Property] = len(b.held)
	b.held = append(b.held, u)
}

// release delivers everything held by a debounce or throttle timer.
func (b *binding) release() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	held := b.held
	b.held = nil
	b.heldIdx = nil
	b.timer = nil
	b.lastCall = b.system.clock.Now()
	b.mu.Unlock()

	for _, u := range held {
		b.call(u)
	}
}

func (b *binding) call(u Update) {
	defer func() {
		if r := recover(); r != nil {
			b.system.logger.Error("binding callback panicked",
				"component_id", b.id,
				"source", b.source,
				"property", u.Property,
				"error", fmt.Errorf("%v", r),
			)
		}
	}()
	if b.opts.Transform != nil && !u.Deleted {
		u.Value = b.opts.Transform(u.Value)
	}
	b.opts.OnUpdate(u)
}

func (b *binding) close() {
	b.mu.Lock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.held = nil
	b.heldIdx = nil
	b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
	}
}
