package mqttroute

import (
	"context"

	"github.com/google/uuid"
)

// Broker is the composition root of the routing core. It owns one Registry
// and one Router and is driven by the transport layer: decoded SUBSCRIBE,
// UNSUBSCRIBE and PUBLISH packets and disconnect notifications map onto its
// methods. It starts no goroutines; all work happens in the calling goroutine.
type Broker struct {
	config   *config
	registry *Registry
	router   *Router
}

// New creates a broker delivering through resolver.
func New(resolver SinkResolver, opts ...Option) *Broker {
	cfg := newConfig(opts)
	registry := newRegistry(cfg)

	return &Broker{
		config:   cfg,
		registry: registry,
		router:   newRouter(registry, resolver, cfg),
	}
}

// Subscribe registers id under filter with the requested QoS ceiling.
// Re-subscribing to the same filter replaces the QoS.
func (b *Broker) Subscribe(filter string, id SubscriberID, qos QoS) error {
	sub, _, err := b.registry.Subscribe(filter, id, qos)
	if err != nil {
		b.config.logger.Debug("subscribe rejected", LogFields{
			LogFieldSubscriberID: string(id),
			LogFieldFilter:       filter,
			LogFieldError:        err,
		})
		return err
	}

	if b.config.onSubscribe != nil {
		b.config.onSubscribe(sub)
	}

	return nil
}

// Unsubscribe removes the subscription of id under filter.
// Unknown pairs are ignored.
func (b *Broker) Unsubscribe(filter string, id SubscriberID) {
	sub, ok := b.registry.Unsubscribe(filter, id)
	if ok && b.config.onUnsubscribe != nil {
		b.config.onUnsubscribe(sub)
	}
}

// RemoveSubscriber drops every subscription of id, typically when its
// connection goes away. Later publishes no longer match it; deliveries
// already in flight are not recalled.
func (b *Broker) RemoveSubscriber(id SubscriberID) {
	removed := b.registry.RemoveSubscriber(id)

	if len(removed) > 0 {
		b.config.logger.Info("subscriber disconnected", LogFields{
			LogFieldSubscriberID: string(id),
			LogFieldCount:        len(removed),
		})
	}

	if b.config.onUnsubscribe != nil {
		for _, sub := range removed {
			b.config.onUnsubscribe(sub)
		}
	}
}

// Publish routes payload to every subscription matching topic.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte, qos QoS) (*DeliveryReport, error) {
	return b.PublishMessage(ctx, &Message{
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
	})
}

// PublishMessage routes a copy of msg after running the publish interceptors.
// The caller's message is never modified.
func (b *Broker) PublishMessage(ctx context.Context, msg *Message) (*DeliveryReport, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}

	m := msg.Clone()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	if len(b.config.interceptors) > 0 {
		intercepted := applyPublishInterceptors(b.config.logger, b.config.interceptors, m)
		if intercepted == nil {
			b.config.metrics.Counter(MetricMessagesDropped, nil).Inc()
			b.config.logger.Debug("message dropped by interceptor", LogFields{
				LogFieldMessageID: m.ID,
				LogFieldTopic:     m.Topic,
			})
			return &DeliveryReport{MessageID: m.ID, Topic: m.Topic, Dropped: true}, nil
		}
		m = intercepted
	}

	return b.router.Route(ctx, m)
}

// Subscriptions returns the subscriptions held by id, oldest first.
func (b *Broker) Subscriptions(id SubscriberID) []Subscription {
	return b.registry.Subscriptions(id)
}

// Registry returns the broker's subscription registry.
func (b *Broker) Registry() *Registry {
	return b.registry
}

// Stats is a point-in-time view of the registry size.
type Stats struct {
	Subscriptions int
	Filters       int
	Subscribers   int
}

// Stats returns the current registry size.
func (b *Broker) Stats() Stats {
	return Stats{
		Subscriptions: b.registry.Count(),
		Filters:       b.registry.FilterCount(),
		Subscribers:   b.registry.SubscriberCount(),
	}
}
