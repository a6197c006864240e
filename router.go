package mqttroute

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNilMessage is returned when routing a nil message.
var ErrNilMessage = errors.New("message cannot be nil")

// DeliveryReport summarizes the fan-out of one published message.
type DeliveryReport struct {
	MessageID string
	Topic     string

	// Matched is the number of matching subscriptions, one per (filter, subscriber) pair.
	Matched int

	// Delivered is the number of sinks that accepted their copy.
	Delivered int

	// Failures lists the matched subscriptions that did not get their copy,
	// in routing order. The session layer uses it for at-least-once redelivery.
	Failures []DeliveryError

	// Dropped is set when a publish interceptor discarded the message.
	Dropped bool
}

// Failed reports whether any delivery failed.
func (r *DeliveryReport) Failed() bool {
	return len(r.Failures) > 0
}

// Err returns the delivery failures joined into one error, or nil.
func (r *DeliveryReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (r *DeliveryReport) fail(d *Delivery, err error) {
	r.Failures = append(r.Failures, DeliveryError{
		SubscriberID: d.Subscription.SubscriberID,
		Filter:       d.Subscription.Filter.String(),
		QoS:          d.Message.QoS,
		Err:          err,
	})
}

// Router fans published messages out to the sinks of matching subscriptions.
//
// Fan-out runs in the caller's goroutine, one subscription after another, so
// messages from a single publisher reach each sink in publish order.
type Router struct {
	registry *Registry
	resolver SinkResolver
	config   *config
}

// NewRouter creates a router delivering the matches of registry through resolver.
func NewRouter(registry *Registry, resolver SinkResolver, opts ...Option) *Router {
	return newRouter(registry, resolver, newConfig(opts))
}

func newRouter(registry *Registry, resolver SinkResolver, cfg *config) *Router {
	if resolver == nil {
		resolver = SinkResolverFunc(func(SubscriberID) (Sink, bool) { return nil, false })
	}
	return &Router{
		registry: registry,
		resolver: resolver,
		config:   cfg,
	}
}

// Route delivers msg to every matching subscription with QoS capped at the
// subscription's level. A subscriber matching through several filters gets
// one delivery per filter.
//
// Only a malformed message or a corrupted index makes Route return an error.
// Per-subscriber failures, including ctx cancellation part-way through the
// fan-out, are collected in the report.
func (r *Router) Route(ctx context.Context, msg *Message) (*DeliveryReport, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}

	if !msg.QoS.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQoS, msg.QoS)
	}

	start := time.Now()

	subs, err := r.registry.MatchingSubscriptions(msg.Topic)
	if err != nil {
		return nil, err
	}

	report := &DeliveryReport{
		MessageID: msg.ID,
		Topic:     msg.Topic,
		Matched:   len(subs),
	}

	for _, sub := range subs {
		d := msg.forSubscription(sub)

		if err := ctx.Err(); err != nil {
			report.fail(d, err)
			continue
		}

		sink, ok := r.resolver.ResolveSink(sub.SubscriberID)
		if !ok || sink == nil {
			report.fail(d, ErrSinkNotFound)
			continue
		}

		if err := deliver(ctx, sink, d); err != nil {
			report.fail(d, err)
			continue
		}

		report.Delivered++
		r.config.metrics.Counter(MetricDeliveries, MetricLabels{"qos": d.QoS().String()}).Inc()
	}

	r.config.metrics.Counter(MetricMessagesRouted, nil).Inc()
	r.config.metrics.Histogram(MetricRouteDuration, nil).ObserveDuration(time.Since(start))

	if report.Failed() {
		r.config.metrics.Counter(MetricDeliveryFailures, nil).Add(float64(len(report.Failures)))
		for _, f := range report.Failures {
			r.config.logger.Warn("delivery failed", LogFields{
				LogFieldMessageID:    msg.ID,
				LogFieldTopic:        msg.Topic,
				LogFieldSubscriberID: string(f.SubscriberID),
				LogFieldFilter:       f.Filter,
				LogFieldError:        f.Err,
			})
		}
	}

	r.config.logger.Debug("message routed", LogFields{
		LogFieldMessageID: msg.ID,
		LogFieldTopic:     msg.Topic,
		LogFieldMatched:   report.Matched,
		LogFieldDelivered: report.Delivered,
		LogFieldFailed:    len(report.Failures),
		LogFieldDuration:  time.Since(start),
	})

	return report, nil
}

// deliver calls the sink, turning a panic into ErrSinkPanic.
func deliver(ctx context.Context, sink Sink, d *Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSinkPanic, r)
		}
	}()
	return sink.Deliver(ctx, d)
}
