package session

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// DebouncedNotifier coalesces bursts of song changes, such as a pitch
// slider drag, and hands only the latest song to persist once changes stop
// for the wait period.
type DebouncedNotifier struct {
	debounced func(f func())
	persist   func(Song)

	mu      sync.Mutex
	latest  Song
	pending bool
}

// NewDebouncedNotifier creates a notifier calling persist at most once per
// quiet period
func NewDebouncedNotifier(wait time.Duration, persist func(Song)) *DebouncedNotifier {
	return &DebouncedNotifier{
		debounced: debounce.New(wait),
		persist:   persist,
	}
}

// Notify records song as the latest change. It has the shape of
// LinkOptions.Notify.
func (n *DebouncedNotifier) Notify(song Song) {
	n.mu.Lock()
	n.latest = song
	n.pending = true
	n.mu.Unlock()
	n.debounced(n.fire)
}

// Flush persists a pending change now
func (n *DebouncedNotifier) Flush() {
	n.fire()
}

func (n *DebouncedNotifier) fire() {
	n.mu.Lock()
	if !n.pending {
		n.mu.Unlock()
		return
	}
	song := n.latest
	n.pending = false
	n.mu.Unlock()

	n.persist(song)
}
