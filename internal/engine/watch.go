package engine

import (
	"log"
	"time"
)

// BeatEvent is posted once per observed beat.
type BeatEvent struct {
	Counter uint64 `json:"counter"`
	Index   int    `json:"index"`
}

// Subscription receives beat events. Slow readers miss intermediate beats
// rather than holding up the watcher.
type Subscription struct {
	C    chan BeatEvent
	done chan struct{}
}

// Done is closed when the subscription is cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Subscribe registers a new beat listener.
func (c *Controller) Subscribe() *Subscription {
	s := &Subscription{
		C:    make(chan BeatEvent, 16),
		done: make(chan struct{}),
	}
	c.mu.Lock()
	c.subs[s] = struct{}{}
	c.mu.Unlock()
	return s
}

// Unsubscribe removes s and closes its Done channel.
func (c *Controller) Unsubscribe(s *Subscription) {
	c.mu.Lock()
	_, ok := c.subs[s]
	delete(c.subs, s)
	c.mu.Unlock()
	if ok {
		close(s.done)
	}
}

// SubscriberCount returns the number of beat listeners.
func (c *Controller) SubscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// watch polls the render core's beat mailbox. The render thread only ever
// stores into atomics; this goroutine turns those stores into state updates
// and events, coalescing any beats it did not see in time.
func (c *Controller) watch(every time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.pollBeat()
		}
	}
}

func (c *Controller) pollBeat() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Read under mu so a concurrent restart cannot hand us the previous run's beat.
	counter, index := c.core.Beat()
	skipped := c.core.Stats().SkippedBeats

	if skipped > c.lastSkipped {
		log.Printf("Render fell behind: skipped %d beats", skipped-c.lastSkipped)
		c.lastSkipped = skipped
	}
	if !c.playing || counter == 0 || counter == c.lastCounter {
		return
	}
	c.lastCounter = counter
	c.currentBeat = index

	ev := BeatEvent{Counter: counter, Index: index}
	for s := range c.subs {
		select {
		case s.C <- ev:
		default:
			// listener too slow, drop the beat
		}
	}
}
