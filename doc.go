// Package mqttroute provides the topic matching and subscription routing core
// of an MQTT broker.
//
// It decides, for every published message, which subscribers receive a copy,
// honouring MQTT wildcard filters:
//
//   - '+' matches exactly one topic level, including an empty one
//   - '#' matches any number of remaining levels, including none, and must be last
//
// MQTT v5.0 spec: Section 4.7
//
// The package has no network code. A transport layer decodes packets and calls
// into a Broker; the Broker delivers through Sinks the transport resolves by
// SubscriberID.
//
// # Broker
//
//	sinks := mqttroute.NewSinkRegistry()
//	sinks.Register("client-1", conn) // conn implements mqttroute.Sink
//
//	b := mqttroute.New(sinks,
//	    mqttroute.WithMaxTopicLevels(32),
//	    mqttroute.WithLogger(mqttroute.NewSlogLogger(slog.Default(), mqttroute.LogLevelInfo)),
//	)
//
//	err := b.Subscribe("sensors/+/temperature", "client-1", mqttroute.QoSAtLeastOnce)
//
//	report, err := b.Publish(ctx, "sensors/kitchen/temperature", payload, mqttroute.QoSAtLeastOnce)
//	for _, f := range report.Failures {
//	    // schedule redelivery for f.SubscriberID
//	}
//
//	b.RemoveSubscriber("client-1") // on disconnect
//
// Every matching subscription gets its own delivery: a subscriber holding both
// "#" and "multi/level/#" receives two copies of a message published to
// "multi/level/wild/card". Each copy carries the lesser of the published and
// subscribed QoS.
//
// # Topics and filters
//
// ParseTopic and ParseFilter validate strings into a TopicPath; Match and
// TopicMatch evaluate a single topic against a single filter. Malformed input
// is reported as a *FormatError and never normalized:
//
//	_, err := mqttroute.ParseFilter("a/#/b")
//	errors.Is(err, mqttroute.ErrInvalidTopicFilter) // true
//
// # Concurrency
//
// The registry keeps its trie copy-on-write. Publishing reads an immutable
// snapshot without locking, so publishers never wait for each other;
// subscribe and unsubscribe calls are serialized and become visible to every
// publish that starts after they return.
package mqttroute
