package cache

import "sync"

// ResourceTiming is one completed resource load.
type ResourceTiming struct {
	Name         string
	TransferSize int64 // Bytes received over the network
	DecodedSize  int64 // Bytes of the decoded body
}

// FromCache reports whether the resource was served without a transfer.
func (r ResourceTiming) FromCache() bool {
	return r.TransferSize == 0 && r.DecodedSize > 0
}

// TimingSource delivers resource timings to subscribers.
type TimingSource interface {
	// Subscribe registers fn and returns a function that removes it.
	Subscribe(fn func(ResourceTiming)) (unsubscribe func())
}

// TimingFeed fans published timings out to its subscribers.
type TimingFeed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(ResourceTiming)
}

// NewTimingFeed creates an empty feed.
func NewTimingFeed() *TimingFeed {
	return &TimingFeed{subs: make(map[int]func(ResourceTiming))}
}

// Subscribe registers fn.
func (f *TimingFeed) Subscribe(fn func(ResourceTiming)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Publish delivers rt to every subscriber.
func (f *TimingFeed) Publish(rt ResourceTiming) {
	f.mu.RLock()
	subs := make([]func(ResourceTiming), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.RUnlock()

	for _, fn := range subs {
		fn(rt)
	}
}

// Subscribers returns the number of active subscriptions.
func (f *TimingFeed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
