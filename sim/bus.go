package sim

import "fmt"

// Outcome is a handler's verdict on a dispatched event.
type Outcome int

const (
	// Continue lets dispatch proceed to later subscribers.
	Continue Outcome = iota

	// Consume stops dispatch; later subscribers never see the event.
	Consume
)

// Handler receives events published on a subscribed topic.
type Handler func(Event) Outcome

type subscription struct {
	handler Handler
	owner   any
}

// MessageBus is the synchronous pub/sub spine connecting the engine to its
// collaborators. Dispatch runs on the publisher's goroutine in subscription
// order; a handler returning Consume ends the sweep. Publishing from inside
// a handler is allowed, and the nested dispatch completes before the outer
// one resumes. Subscription changes made during a dispatch take effect from
// the next publish.
//
// Not safe for concurrent use. The simulation loop is single-threaded and
// the bus inherits that contract.
type MessageBus struct {
	handlers map[Topic][]subscription
	byOwner  map[any]map[Topic]struct{}
}

// NewMessageBus returns an empty bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		handlers: make(map[Topic][]subscription),
		byOwner:  make(map[any]map[Topic]struct{}),
	}
}

// Subscribe appends h to the topic's dispatch list. owner groups
// subscriptions for UnsubscribeAll and must be comparable; components pass
// themselves.
func (b *MessageBus) Subscribe(topic Topic, h Handler, owner any) {
	b.handlers[topic] = append(b.handlers[topic], subscription{handler: h, owner: owner})
	topics, ok := b.byOwner[owner]
	if !ok {
		topics = make(map[Topic]struct{})
		b.byOwner[owner] = topics
	}
	topics[topic] = struct{}{}
}

// UnsubscribeAll removes every handler the owner has registered, on every
// topic. Unknown owners are a no-op.
func (b *MessageBus) UnsubscribeAll(owner any) {
	topics, ok := b.byOwner[owner]
	if !ok {
		return
	}
	for topic := range topics {
		old := b.handlers[topic]
		kept := make([]subscription, 0, len(old))
		for _, s := range old {
			if s.owner != owner {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(b.handlers, topic)
		} else {
			b.handlers[topic] = kept
		}
	}
	delete(b.byOwner, owner)
}

// Publish dispatches ev to the topic's subscribers in order and reports
// whether a handler consumed it. Topics without subscribers drop events
// silently. A handler returning anything other than Continue or Consume is a
// programming error and panics.
func (b *MessageBus) Publish(topic Topic, ev Event) bool {
	subs := b.handlers[topic]
	for i := range subs {
		switch out := subs[i].handler(ev); out {
		case Continue:
		case Consume:
			return true
		default:
			panic(fmt.Sprintf("message bus: handler on %q returned invalid outcome %d", topic, out))
		}
	}
	return false
}

// Subscribers returns the number of handlers registered on a topic.
func (b *MessageBus) Subscribers(topic Topic) int {
	return len(b.handlers[topic])
}
