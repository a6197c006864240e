package mqttroute

import "fmt"

// PublishInterceptor allows inspection and modification of messages before
// they are routed. Interceptors are called in the order they are configured,
// and each one receives the message returned by the previous one.
//
// Returning nil drops the message: nothing is routed and the report is marked
// Dropped. The message passed in is already a copy owned by the broker.
type PublishInterceptor interface {
	OnPublish(msg *Message) *Message
}

// PublishInterceptorFunc adapts a function to PublishInterceptor.
type PublishInterceptorFunc func(msg *Message) *Message

// OnPublish calls f(msg).
func (f PublishInterceptorFunc) OnPublish(msg *Message) *Message {
	return f(msg)
}

// safelyApplyPublishInterceptor applies an interceptor with panic recovery.
// If the interceptor panics, the message it received continues unchanged.
func safelyApplyPublishInterceptor(logger Logger, interceptor PublishInterceptor, msg *Message) (result *Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("publish interceptor panic", LogFields{
				LogFieldTopic:     msg.Topic,
				LogFieldMessageID: msg.ID,
				LogFieldError:     fmt.Sprint(r),
			})
			result = msg
		}
	}()
	return interceptor.OnPublish(msg)
}

// applyPublishInterceptors runs the chain and stops at the first nil result.
func applyPublishInterceptors(logger Logger, interceptors []PublishInterceptor, msg *Message) *Message {
	current := msg
	for _, interceptor := range interceptors {
		if current == nil {
			return nil
		}
		current = safelyApplyPublishInterceptor(logger, interceptor, current)
	}
	return current
}
