package pubsub

import "sync"

// PubSub delivers messages synchronously to every handler of a topic. Handlers run under the
// topic lock and must not block.
type PubSub[T any] struct {
	topics map[string]*topic[T]

	lock sync.Mutex
}

func New[T any]() *PubSub[T] {
	return &PubSub[T]{
		topics: make(map[string]*topic[T]),
	}
}

func (p *PubSub[T]) Publish(name string, message T) {
	p.lock.Lock()
	t, ok := p.topics[name]
	p.lock.Unlock()

	if !ok {
		return
	}

	t.publish(message)
}

func (p *PubSub[T]) Subscribe(name string, handler func(message T)) (unsub func()) {
	p.lock.Lock()
	defer p.lock.Unlock()

	t, ok := p.topics[name]
	if !ok {
		t = newTopic[T]()
		p.topics[name] = t
	}

	unsubTopic := t.subscribe(handler)

	return func() {
		p.lock.Lock()
		defer p.lock.Unlock()

		if unsubTopic() == 0 && p.topics[name] == t {
			delete(p.topics, name)
		}
	}
}

// Topics is the number of topics with at least one subscriber.
func (p *PubSub[T]) Topics() int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return len(p.topics)
}
