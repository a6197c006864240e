package mqttroute

import (
	"context"
	"sync"
)

// Sink receives deliveries for one subscriber. The transport or session layer
// implements it on top of the client connection.
//
// Deliver may block; it should honour ctx. A returned error is recorded in the
// DeliveryReport and does not affect other subscribers.
type Sink interface {
	Deliver(ctx context.Context, d *Delivery) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, d *Delivery) error

// Deliver calls f(ctx, d).
func (f SinkFunc) Deliver(ctx context.Context, d *Delivery) error {
	return f(ctx, d)
}

// SinkResolver maps a subscriber to its sink at delivery time.
type SinkResolver interface {
	ResolveSink(id SubscriberID) (Sink, bool)
}

// SinkResolverFunc adapts a function to SinkResolver.
type SinkResolverFunc func(id SubscriberID) (Sink, bool)

// ResolveSink calls f(id).
func (f SinkResolverFunc) ResolveSink(id SubscriberID) (Sink, bool) {
	return f(id)
}

// SinkRegistry is a concurrency-safe SinkResolver backed by a map.
type SinkRegistry struct {
	mu    sync.RWMutex
	sinks map[SubscriberID]Sink
}

// NewSinkRegistry creates an empty sink registry.
func NewSinkRegistry() *SinkRegistry {
	return &SinkRegistry{
		sinks: make(map[SubscriberID]Sink),
	}
}

// Register sets the sink for id, replacing any previous one.
func (r *SinkRegistry) Register(id SubscriberID, sink Sink) {
	r.mu.Lock()
	r.sinks[id] = sink
	r.mu.Unlock()
}

// Unregister removes the sink for id and returns it.
func (r *SinkRegistry) Unregister(id SubscriberID) (Sink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sink, ok := r.sinks[id]
	delete(r.sinks, id)
	return sink, ok
}

// ResolveSink returns the sink registered for id.
func (r *SinkRegistry) ResolveSink(id SubscriberID) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, ok := r.sinks[id]
	return sink, ok
}

// Len returns the number of registered sinks.
func (r *SinkRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sinks)
}

// ChanSink is a Sink backed by a buffered channel. Deliver blocks while the
// buffer is full until the consumer catches up, ctx is done or the sink is closed.
type ChanSink struct {
	ch        chan *Delivery
	done      chan struct{}
	closeOnce sync.Once
}

// NewChanSink creates a channel sink with the given buffer size.
func NewChanSink(size int) *ChanSink {
	if size < 0 {
		size = 0
	}
	return &ChanSink{
		ch:   make(chan *Delivery, size),
		done: make(chan struct{}),
	}
}

// Deliver enqueues d.
func (s *ChanSink) Deliver(ctx context.Context, d *Delivery) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	select {
	case s.ch <- d:
		return nil
	case <-s.done:
		return ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// C returns the channel deliveries are read from. It is never closed; select
// on Done to observe Close.
func (s *ChanSink) C() <-chan *Delivery {
	return s.ch
}

// Done is closed when the sink is closed.
func (s *ChanSink) Done() <-chan struct{} {
	return s.done
}

// Len returns the number of queued deliveries.
func (s *ChanSink) Len() int {
	return len(s.ch)
}

// Close makes every later Deliver fail with ErrSinkClosed and releases
// blocked ones. Queued deliveries stay readable from C.
func (s *ChanSink) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
