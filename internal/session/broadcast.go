package session

import (
	"sync"
	"time"
)

// Event is one stage change announcement.
type Event struct {
	RunID string    `json:"run_id"`
	Stage Stage     `json:"stage"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

// subscriberBuffer bounds how far a slow watcher may lag before events are
// dropped for it.
const subscriberBuffer = 16

// Broadcaster fans stage-change events out to per-run subscribers. The
// pipeline publishes; websocket watch handlers subscribe. Safe for concurrent
// use.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers a watcher for runID. The returned cancel function must
// be called when the watcher is done; it closes the channel.
func (b *Broadcaster) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = make(map[chan Event]struct{})
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[runID]; ok {
			if _, subscribed := set[ch]; subscribed {
				delete(set, ch)
				close(ch)
				if len(set) == 0 {
					delete(b.subs, runID)
				}
			}
		}
	}
	return ch, cancel
}

// Publish delivers e to every subscriber of its run. Subscribers whose buffer
// is full miss the event rather than blocking the pipeline.
func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[e.RunID] {
		select {
		case ch <- e:
		default:
		}
	}
}
