package mqttroute

import "slices"

// Message is a published application message. It lives for a single publish
// call; the router does not retain it.
type Message struct {
	// ID correlates the message with its DeliveryReport. The broker assigns a
	// random UUID when it is empty.
	ID string

	// Topic is the concrete topic name the message is published to.
	Topic string

	// Payload is the application message payload. Sinks must treat it as read-only.
	Payload []byte

	// QoS is the level requested by the publisher.
	QoS QoS

	// PublisherID is the publishing client, if known.
	PublisherID SubscriberID
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Payload = slices.Clone(m.Payload)
	return &c
}

// Delivery is one copy of a message handed to a subscriber's sink.
type Delivery struct {
	// Message is a per-delivery copy whose QoS is already capped at the
	// subscription's level. The payload is shared with the other deliveries
	// of the same publish.
	Message *Message

	// Subscription is the subscription that matched.
	Subscription Subscription
}

// QoS returns the negotiated delivery level.
func (d *Delivery) QoS() QoS {
	return d.Message.QoS
}

// SubscriberID returns the receiving subscriber.
func (d *Delivery) SubscriberID() SubscriberID {
	return d.Subscription.SubscriberID
}

func (m *Message) forSubscription(sub Subscription) *Delivery {
	c := *m
	c.QoS = Ceiling(m.QoS, sub.QoS)
	return &Delivery{Message: &c, Subscription: sub}
}
