package mqttroute

// Option configures a Broker, Registry or Router.
type Option func(*config)

type config struct {
	maxLevels     int
	maxFilters    int
	isolateDollar bool
	logger        Logger
	metrics       Metrics
	interceptors  []PublishInterceptor
	onSubscribe   func(Subscription)
	onUnsubscribe func(Subscription)
}

func defaultConfig() *config {
	return &config{
		maxLevels:  DefaultMaxLevels,
		maxFilters: 0, // unlimited
		logger:     NewNoOpLogger(),
		metrics:    &NoOpMetrics{},
	}
}

func newConfig(opts []Option) *config {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithMaxTopicLevels sets the maximum number of levels in a topic or filter.
// 0 means unlimited.
func WithMaxTopicLevels(n int) Option {
	return func(c *config) {
		if n < 0 {
			n = 0
		}
		c.maxLevels = n
	}
}

// WithMaxFilters sets a soft limit on the number of distinct filters held by
// the registry. Re-subscribing to an existing filter is always allowed.
// 0 means unlimited.
func WithMaxFilters(n int) Option {
	return func(c *config) {
		if n < 0 {
			n = 0
		}
		c.maxFilters = n
	}
}

// WithDollarTopicIsolation stops root-level '+' and '#' from matching topics
// whose first level starts with '$'.
// MQTT v5.0 spec: Section 4.7.2
func WithDollarTopicIsolation(enabled bool) Option {
	return func(c *config) {
		c.isolateDollar = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *config) {
		if logger == nil {
			logger = NewNoOpLogger()
		}
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics Metrics) Option {
	return func(c *config) {
		if metrics == nil {
			metrics = &NoOpMetrics{}
		}
		c.metrics = metrics
	}
}

// WithPublishInterceptors sets the interceptors applied to every published
// message before routing, in the given order.
func WithPublishInterceptors(interceptors ...PublishInterceptor) Option {
	return func(c *config) {
		c.interceptors = interceptors
	}
}

// OnSubscribe sets the callback invoked after a subscription is stored.
func OnSubscribe(fn func(Subscription)) Option {
	return func(c *config) {
		c.onSubscribe = fn
	}
}

// OnUnsubscribe sets the callback invoked after a subscription is removed,
// including removals caused by RemoveSubscriber.
func OnUnsubscribe(fn func(Subscription)) Option {
	return func(c *config) {
		c.onUnsubscribe = fn
	}
}
