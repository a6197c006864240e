// Package router dispatches deliveries to in-process handlers by condition.
//
// A Router is a mqttroute.Sink, so it can be registered for a subscriber that
// is served inside the broker process instead of over a connection:
//
//	r := router.New()
//	r.Handle(storeReading, router.WithTopic("sensors/+/temperature"))
//	r.Handle(alert, router.WithTopic("alerts/#"), router.WithQoS(mqttroute.QoSAtLeastOnce))
//
//	sinks.Register("internal", r)
package router

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/vitalvas/mqttroute"
)

// Handler processes one delivery.
type Handler func(ctx context.Context, d *mqttroute.Delivery) error

// Condition defines filtering criteria for delivery dispatch.
type Condition struct {
	topicFilter      *string
	subscriptionFrom *string
	qos              *mqttroute.QoS
	subscriberRegexp *regexp.Regexp
	publisherRegexp  *regexp.Regexp
	minPayload       int
}

// ConditionOption configures a Condition.
type ConditionOption func(*Condition)

// WithTopic sets the topic filter for message matching.
// Supports MQTT wildcards: + (single level) and # (multi level).
func WithTopic(filter string) ConditionOption {
	return func(c *Condition) {
		c.topicFilter = &filter
	}
}

// WithSubscription matches deliveries caused by the given subscription filter,
// compared literally.
func WithSubscription(filter string) ConditionOption {
	return func(c *Condition) {
		c.subscriptionFrom = &filter
	}
}

// WithQoS filters deliveries by negotiated QoS level.
func WithQoS(qos mqttroute.QoS) ConditionOption {
	return func(c *Condition) {
		c.qos = &qos
	}
}

// WithSubscriber filters deliveries by subscriber ID regexp pattern.
func WithSubscriber(pattern *regexp.Regexp) ConditionOption {
	return func(c *Condition) {
		c.subscriberRegexp = pattern
	}
}

// WithPublisher filters deliveries by publisher ID regexp pattern.
func WithPublisher(pattern *regexp.Regexp) ConditionOption {
	return func(c *Condition) {
		c.publisherRegexp = pattern
	}
}

// WithMinPayload skips messages whose payload is shorter than n bytes.
func WithMinPayload(n int) ConditionOption {
	return func(c *Condition) {
		c.minPayload = n
	}
}

type registration struct {
	handler   Handler
	condition Condition
}

// Router dispatches deliveries to handlers based on conditions.
type Router struct {
	mu       sync.RWMutex
	handlers []registration
	notFound Handler
}

// New creates a new Router.
func New() *Router {
	return &Router{
		handlers: make([]registration, 0),
	}
}

// Handle registers a handler with optional conditions. A handler without
// conditions receives every delivery.
//
// Examples:
//
//	r.Handle(handler, WithTopic("sensors/#"))
//	r.Handle(handler, WithTopic("sensors/#"), WithQoS(mqttroute.QoSAtLeastOnce))
//	r.Handle(handler, WithPublisher(regexp.MustCompile(`^sensor-`)))
func (r *Router) Handle(handler Handler, opts ...ConditionOption) {
	var cond Condition
	for _, opt := range opts {
		opt(&cond)
	}

	r.mu.Lock()
	r.handlers = append(r.handlers, registration{
		handler:   handler,
		condition: cond,
	})
	r.mu.Unlock()
}

// NotFound sets the handler called when no condition matches.
func (r *Router) NotFound(handler Handler) {
	r.mu.Lock()
	r.notFound = handler
	r.mu.Unlock()
}

func (c *Condition) matches(d *mqttroute.Delivery) bool {
	msg := d.Message
	if c.topicFilter != nil && !mqttroute.TopicMatch(*c.topicFilter, msg.Topic) {
		return false
	}
	if c.subscriptionFrom != nil && *c.subscriptionFrom != d.Subscription.Filter.String() {
		return false
	}
	if c.qos != nil && *c.qos != d.QoS() {
		return false
	}
	if c.subscriberRegexp != nil && !c.subscriberRegexp.MatchString(string(d.SubscriberID())) {
		return false
	}
	if c.publisherRegexp != nil && !c.publisherRegexp.MatchString(string(msg.PublisherID)) {
		return false
	}
	if len(msg.Payload) < c.minPayload {
		return false
	}
	return true
}

// Deliver dispatches d to every matching handler in registration order.
// Handler errors are joined; a panicking handler does not stop the others.
func (r *Router) Deliver(ctx context.Context, d *mqttroute.Delivery) error {
	if d == nil || d.Message == nil {
		return nil
	}

	r.mu.RLock()
	var matched []Handler
	for _, reg := range r.handlers {
		if reg.condition.matches(d) {
			matched = append(matched, reg.handler)
		}
	}
	if len(matched) == 0 && r.notFound != nil {
		matched = append(matched, r.notFound)
	}
	r.mu.RUnlock()

	var errs []error
	for _, handler := range matched {
		if err := call(ctx, handler, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func call(ctx context.Context, handler Handler, d *mqttroute.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, d)
}

// Filters returns all unique registered topic filters in lexical order.
func (r *Router) Filters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, reg := range r.handlers {
		if reg.condition.topicFilter != nil {
			seen[*reg.condition.topicFilter] = struct{}{}
		}
	}

	filters := make([]string, 0, len(seen))
	for filter := range seen {
		filters = append(filters, filter)
	}
	slices.Sort(filters)
	return filters
}

// Subscribe registers id with broker for every topic filter the router
// handles, so the router receives exactly what its handlers can use.
func (r *Router) Subscribe(broker *mqttroute.Broker, id mqttroute.SubscriberID, qos mqttroute.QoS) error {
	for _, filter := range r.Filters() {
		if err := broker.Subscribe(filter, id, qos); err != nil {
			return fmt.Errorf("subscribe %q: %w", filter, err)
		}
	}
	return nil
}

// Len returns the number of registered handlers.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Clear removes all handlers.
func (r *Router) Clear() {
	r.mu.Lock()
	r.handlers = r.handlers[:0]
	r.notFound = nil
	r.mu.Unlock()
}
