package mqttroute

// QoS is the delivery guarantee negotiated for a message or subscription.
// The exactly-once handshake (QoS 2) belongs to the session layer and is not
// accepted by the router.
type QoS byte

const (
	// QoSAtMostOnce is fire-and-forget delivery (QoS 0).
	QoSAtMostOnce QoS = 0
	// QoSAtLeastOnce is acknowledged delivery (QoS 1).
	QoSAtLeastOnce QoS = 1
)

// String returns the string representation of the QoS level.
func (q QoS) String() string {
	switch q {
	case QoSAtMostOnce:
		return "at_most_once"
	case QoSAtLeastOnce:
		return "at_least_once"
	default:
		return "unknown"
	}
}

// Valid reports whether q is a level the router can honour.
func (q QoS) Valid() bool {
	return q == QoSAtMostOnce || q == QoSAtLeastOnce
}

// Ceiling returns the lesser of the published and subscribed levels.
func Ceiling(published, subscribed QoS) QoS {
	if subscribed < published {
		return subscribed
	}
	return published
}
