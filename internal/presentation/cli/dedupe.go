package cli

import (
	"sync"
	"time"
)

// deduper пропускает повтор кода только после окончания окна
type deduper struct {
	window time.Duration
	mutex  sync.Mutex
	seen   map[string]time.Time
}

func newDeduper(window time.Duration) *deduper {
	return &deduper{window: window, seen: make(map[string]time.Time)}
}

// Allow сообщает, нужно ли выдать код, и запоминает время
func (d *deduper) Allow(text string, at time.Time) bool {
	if d.window <= 0 {
		return true
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if last, ok := d.seen[text]; ok && at.Sub(last) < d.window {
		return false
	}
	d.seen[text] = at

	for code, last := range d.seen {
		if at.Sub(last) >= d.window {
			delete(d.seen, code)
		}
	}
	return true
}
