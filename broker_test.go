package mqttroute

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const longTopic = "1/2/3/this_is_a_long_topic_that_needs_to/work/4/5/6/7/8"

func newTestBroker(t *testing.T, opts ...Option) (*Broker, *ChanSink) {
	t.Helper()

	sink := NewChanSink(64)
	t.Cleanup(sink.Close)

	sinks := NewSinkRegistry()
	sinks.Register("client", sink)
	return New(sinks, opts...), sink
}

func drain(sink *ChanSink) []*Delivery {
	var out []*Delivery
	for {
		select {
		case d := <-sink.C():
			out = append(out, d)
		default:
			return out
		}
	}
}

func TestBrokerWildcardScenarios(t *testing.T) {
	t.Run("multi level wildcard", func(t *testing.T) {
		b, sink := newTestBroker(t)

		require.NoError(t, b.Subscribe("#", "client", QoSAtLeastOnce))
		require.NoError(t, b.Subscribe("multi/level/#", "client", QoSAtLeastOnce))

		report, err := b.Publish(context.Background(), "multi/level/wild/card", []byte("x"), QoSAtLeastOnce)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Delivered)
		assert.Len(t, drain(sink), 2)

		report, err = b.Publish(context.Background(), "multi", []byte("x"), QoSAtLeastOnce)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered)

		deliveries := drain(sink)
		require.Len(t, deliveries, 1)
		assert.Equal(t, "#", deliveries[0].Subscription.Filter.String())
	})

	t.Run("single level wildcard", func(t *testing.T) {
		b, sink := newTestBroker(t)

		require.NoError(t, b.Subscribe("single", "client", QoSAtMostOnce))
		require.NoError(t, b.Subscribe("single/+", "client", QoSAtMostOnce))
		require.NoError(t, b.Subscribe("single/level/+", "client", QoSAtMostOnce))

		for _, topic := range []string{"single", "single/level", "single/level/wildcard"} {
			report, err := b.Publish(context.Background(), topic, nil, QoSAtMostOnce)
			require.NoError(t, err)
			assert.Equal(t, 1, report.Delivered, topic)
		}

		assert.Len(t, drain(sink), 3)

		report, err := b.Publish(context.Background(), "single/level/wild/card", nil, QoSAtMostOnce)
		require.NoError(t, err)
		assert.Zero(t, report.Matched)
	})

	t.Run("bare single level wildcard", func(t *testing.T) {
		b, sink := newTestBroker(t)

		require.NoError(t, b.Subscribe("+", "client", QoSAtMostOnce))

		report, err := b.Publish(context.Background(), "single", nil, QoSAtMostOnce)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered)

		report, err = b.Publish(context.Background(), "single/level", nil, QoSAtMostOnce)
		require.NoError(t, err)
		assert.Zero(t, report.Matched)

		assert.Len(t, drain(sink), 1)
	})

	t.Run("combined wildcards", func(t *testing.T) {
		b, sink := newTestBroker(t)

		require.NoError(t, b.Subscribe("+/level/#", "client", QoSAtMostOnce))
		require.NoError(t, b.Subscribe("mixed/+/wild/#", "client", QoSAtMostOnce))

		report, err := b.Publish(context.Background(), "mixed/level/wild/card", nil, QoSAtMostOnce)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Delivered)

		report, err = b.Publish(context.Background(), "mixed/level", nil, QoSAtMostOnce)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered)

		assert.Len(t, drain(sink), 3)
	})

	t.Run("long topic round trip", func(t *testing.T) {
		b, sink := newTestBroker(t)

		require.NoError(t, b.Subscribe(longTopic, "client", QoSAtLeastOnce))

		report, err := b.Publish(context.Background(), longTopic, []byte("payload"), QoSAtLeastOnce)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered)

		deliveries := drain(sink)
		require.Len(t, deliveries, 1)
		assert.Equal(t, longTopic, deliveries[0].Message.Topic)
		assert.Equal(t, []byte("payload"), deliveries[0].Message.Payload)
		assert.Equal(t, QoSAtLeastOnce, deliveries[0].QoS())
	})

	t.Run("malformed filters rejected", func(t *testing.T) {
		b, _ := newTestBroker(t)

		assert.ErrorIs(t, b.Subscribe("a#b", "client", QoSAtMostOnce), ErrInvalidTopicFilter)
		assert.ErrorIs(t, b.Subscribe("#/a", "client", QoSAtMostOnce), ErrInvalidTopicFilter)
		assert.ErrorIs(t, b.Subscribe("mixed/level+/#", "client", QoSAtMostOnce), ErrInvalidTopicFilter)
		assert.Zero(t, b.Stats().Subscriptions)
	})
}

func TestBrokerUnsubscribeAndRemove(t *testing.T) {
	b, sink := newTestBroker(t)

	require.NoError(t, b.Subscribe("a/+", "client", QoSAtMostOnce))
	require.NoError(t, b.Subscribe("b/#", "client", QoSAtMostOnce))

	b.Unsubscribe("a/+", "client")
	b.Unsubscribe("a/+", "client")

	report, err := b.Publish(context.Background(), "a/x", nil, QoSAtMostOnce)
	require.NoError(t, err)
	assert.Zero(t, report.Matched)

	b.RemoveSubscriber("client")
	report, err = b.Publish(context.Background(), "b/x", nil, QoSAtMostOnce)
	require.NoError(t, err)
	assert.Zero(t, report.Matched)

	assert.Empty(t, drain(sink))
	assert.Empty(t, b.Subscriptions("client"))
	assert.Equal(t, Stats{}, b.Stats())
}

func TestBrokerHooks(t *testing.T) {
	var subscribed, unsubscribed []string

	b, _ := newTestBroker(t,
		OnSubscribe(func(s Subscription) { subscribed = append(subscribed, s.Filter.String()) }),
		OnUnsubscribe(func(s Subscription) { unsubscribed = append(unsubscribed, s.Filter.String()) }),
	)

	require.NoError(t, b.Subscribe("a", "client", QoSAtMostOnce))
	require.NoError(t, b.Subscribe("b", "client", QoSAtMostOnce))
	require.NoError(t, b.Subscribe("c", "client", QoSAtMostOnce))
	require.Error(t, b.Subscribe("#/bad", "client", QoSAtMostOnce))

	b.Unsubscribe("a", "client")
	b.Unsubscribe("missing", "client")
	b.RemoveSubscriber("client")

	assert.Equal(t, []string{"a", "b", "c"}, subscribed)
	assert.Equal(t, []string{"a", "b", "c"}, unsubscribed)
}

func TestBrokerPublishMessage(t *testing.T) {
	t.Run("assigns message id", func(t *testing.T) {
		b, sink := newTestBroker(t)
		require.NoError(t, b.Subscribe("t", "client", QoSAtMostOnce))

		msg := &Message{Topic: "t", Payload: []byte("v")}
		report, err := b.PublishMessage(context.Background(), msg)
		require.NoError(t, err)

		_, err = uuid.Parse(report.MessageID)
		assert.NoError(t, err)
		assert.Empty(t, msg.ID, "caller message must not be modified")

		deliveries := drain(sink)
		require.Len(t, deliveries, 1)
		assert.Equal(t, report.MessageID, deliveries[0].Message.ID)
	})

	t.Run("keeps message id", func(t *testing.T) {
		b, _ := newTestBroker(t)

		report, err := b.PublishMessage(context.Background(), &Message{ID: "fixed", Topic: "t"})
		require.NoError(t, err)
		assert.Equal(t, "fixed", report.MessageID)
	})

	t.Run("payload copied", func(t *testing.T) {
		b, sink := newTestBroker(t)
		require.NoError(t, b.Subscribe("t", "client", QoSAtMostOnce))

		payload := []byte("original")
		_, err := b.Publish(context.Background(), "t", payload, QoSAtMostOnce)
		require.NoError(t, err)
		payload[0] = 'X'

		deliveries := drain(sink)
		require.Len(t, deliveries, 1)
		assert.Equal(t, []byte("original"), deliveries[0].Message.Payload)
	})

	t.Run("nil message", func(t *testing.T) {
		b, _ := newTestBroker(t)

		_, err := b.PublishMessage(context.Background(), nil)
		assert.ErrorIs(t, err, ErrNilMessage)
	})

	t.Run("invalid topic", func(t *testing.T) {
		b, _ := newTestBroker(t)

		_, err := b.Publish(context.Background(), "a/#", nil, QoSAtMostOnce)
		assert.ErrorIs(t, err, ErrInvalidTopicName)
	})
}

func TestBrokerInterceptors(t *testing.T) {
	t.Run("modify", func(t *testing.T) {
		rewrite := PublishInterceptorFunc(func(m *Message) *Message {
			m.Topic = "rewritten/" + m.Topic
			return m
		})

		b, sink := newTestBroker(t, WithPublishInterceptors(rewrite))
		require.NoError(t, b.Subscribe("rewritten/#", "client", QoSAtMostOnce))

		msg := &Message{Topic: "t"}
		report, err := b.PublishMessage(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered)
		assert.Equal(t, "t", msg.Topic)

		deliveries := drain(sink)
		require.Len(t, deliveries, 1)
		assert.Equal(t, "rewritten/t", deliveries[0].Message.Topic)
	})

	t.Run("drop", func(t *testing.T) {
		metrics := NewMemoryMetrics()
		drop := PublishInterceptorFunc(func(*Message) *Message { return nil })

		b, sink := newTestBroker(t, WithPublishInterceptors(drop), WithMetrics(metrics))
		require.NoError(t, b.Subscribe("#", "client", QoSAtMostOnce))

		report, err := b.Publish(context.Background(), "t", nil, QoSAtMostOnce)
		require.NoError(t, err)
		assert.True(t, report.Dropped)
		assert.NotEmpty(t, report.MessageID)
		assert.Zero(t, report.Matched)
		assert.Empty(t, drain(sink))
		assert.Equal(t, float64(1), metrics.CounterValue(MetricMessagesDropped, nil))
		assert.Zero(t, metrics.CounterValue(MetricMessagesRouted, nil))
	})

	t.Run("panic does not block publishing", func(t *testing.T) {
		b, sink := newTestBroker(t, WithPublishInterceptors(panicPublishInterceptor{}))
		require.NoError(t, b.Subscribe("t", "client", QoSAtMostOnce))

		report, err := b.Publish(context.Background(), "t", nil, QoSAtMostOnce)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered)
		assert.Len(t, drain(sink), 1)
	})
}

func TestBrokerStats(t *testing.T) {
	b, _ := newTestBroker(t)

	require.NoError(t, b.Subscribe("a", "c1", QoSAtMostOnce))
	require.NoError(t, b.Subscribe("a", "c2", QoSAtMostOnce))
	require.NoError(t, b.Subscribe("b", "c2", QoSAtMostOnce))

	assert.Equal(t, Stats{Subscriptions: 3, Filters: 2, Subscribers: 2}, b.Stats())
	assert.Same(t, b.registry, b.Registry())
	assert.NoError(t, b.Registry().Verify())
}

func TestBrokerSharedConfig(t *testing.T) {
	b, _ := newTestBroker(t, WithMaxTopicLevels(2))

	assert.ErrorIs(t, b.Subscribe("a/b/c", "client", QoSAtMostOnce), ErrTooManyLevels)

	_, err := b.Publish(context.Background(), "a/b/c", nil, QoSAtMostOnce)
	assert.ErrorIs(t, err, ErrTooManyLevels)
}
