package layoutService

import (
	"LayoutGolang/internal/pipeline"
	"sync"
)

const subscriberBuffer = 32

// progressBroker fans pipeline events out to every connected websocket
// subscriber. Publish never blocks; a subscriber that falls behind loses
// events rather than stalling the run.
type progressBroker struct {
	mu   sync.RWMutex
	subs map[chan pipeline.Event]struct{}
}

func newProgressBroker() *progressBroker {
	return &progressBroker{
		subs: make(map[chan pipeline.Event]struct{}),
	}
}

func (b *progressBroker) Subscribe() (<-chan pipeline.Event, func()) {
	ch := make(chan pipeline.Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}

	return ch, unsubscribe
}

func (b *progressBroker) Publish(ev pipeline.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
