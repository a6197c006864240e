package mqttroute

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrEmptySubscriberID is returned when subscribing without a subscriber identity.
var ErrEmptySubscriberID = errors.New("subscriber ID cannot be empty")

// SubscriberID identifies a subscriber. The registry treats it as opaque; the
// transport layer maps it to a Sink.
type SubscriberID string

// Subscription is a filter registered by one subscriber.
// Identity is the pair (Filter, SubscriberID).
type Subscription struct {
	Filter       TopicPath
	SubscriberID SubscriberID
	QoS          QoS

	// CreatedAt is the registry sequence number assigned when the pair was
	// first subscribed. Re-subscribing keeps it.
	CreatedAt uint64
}

// Registry indexes subscriptions by filter and answers "which subscriptions
// match this topic" queries.
//
// Matching reads an immutable trie snapshot and never takes a lock, so
// concurrent publishers do not block each other or wait for writers. Writers
// are serialized; each one builds a new trie sharing untouched nodes with the
// previous one and publishes it atomically, so a reader sees a subscription
// either completely or not at all.
type Registry struct {
	mu          sync.RWMutex
	root        atomic.Pointer[trieNode]
	filters     map[string]map[SubscriberID]Subscription // filter -> subscribers
	subscribers map[SubscriberID]map[string]struct{}     // subscriber -> filters
	seq         uint64
	count       int
	config      *config
}

// NewRegistry creates an empty subscription registry.
func NewRegistry(opts ...Option) *Registry {
	return newRegistry(newConfig(opts))
}

func newRegistry(cfg *config) *Registry {
	return &Registry{
		filters:     make(map[string]map[SubscriberID]Subscription),
		subscribers: make(map[SubscriberID]map[string]struct{}),
		config:      cfg,
	}
}

// Subscribe registers id under filter with the given QoS and returns the
// stored subscription. If the pair already exists only its QoS is replaced
// and created is false.
func (r *Registry) Subscribe(filter string, id SubscriberID, qos QoS) (sub Subscription, created bool, err error) {
	path, err := ParseFilter(filter, WithMaxLevels(r.config.maxLevels))
	if err != nil {
		r.config.metrics.Counter(MetricFormatErrors, nil).Inc()
		return Subscription{}, false, err
	}

	if id == "" {
		return Subscription{}, false, ErrEmptySubscriberID
	}

	if !qos.Valid() {
		return Subscription{}, false, fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	subs, known := r.filters[filter]
	if !known && r.config.maxFilters > 0 && len(r.filters) >= r.config.maxFilters {
		return Subscription{}, false, ErrFilterLimit
	}

	sub = Subscription{
		Filter:       path,
		SubscriberID: id,
		QoS:          qos,
	}

	existing, resubscribe := subs[id]
	if resubscribe {
		sub.CreatedAt = existing.CreatedAt
	} else {
		r.seq++
		sub.CreatedAt = r.seq
	}

	r.root.Store(r.root.Load().update(path.levels, func(current []Subscription) []Subscription {
		return upsertSubscription(current, sub)
	}))

	if !known {
		subs = make(map[SubscriberID]Subscription)
		r.filters[filter] = subs
	}
	subs[id] = sub

	if r.subscribers[id] == nil {
		r.subscribers[id] = make(map[string]struct{})
	}
	r.subscribers[id][filter] = struct{}{}

	if !resubscribe {
		r.count++
	}
	r.updateGaugesLocked()

	r.config.logger.Debug("subscription stored", LogFields{
		LogFieldSubscriberID: string(id),
		LogFieldFilter:       filter,
		LogFieldQoS:          qos.String(),
	})

	return sub, !resubscribe, nil
}

// Unsubscribe removes the subscription of id under filter and returns it.
// It is a no-op, returning false, when the pair is not registered.
func (r *Registry) Unsubscribe(filter string, id SubscriberID) (Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.filters[filter][id]
	if !ok {
		return Subscription{}, false
	}

	r.root.Store(r.removeLocked(r.root.Load(), sub))
	r.updateGaugesLocked()

	r.config.logger.Debug("subscription removed", LogFields{
		LogFieldSubscriberID: string(id),
		LogFieldFilter:       filter,
	})

	return sub, true
}

// RemoveSubscriber removes every subscription held by id, typically on
// disconnect, and returns them. All removals become visible to matching at
// once. Deliveries already in flight are not affected.
func (r *Registry) RemoveSubscriber(id SubscriberID) []Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	filters, ok := r.subscribers[id]
	if !ok {
		return nil
	}

	removed := make([]Subscription, 0, len(filters))
	root := r.root.Load()
	for filter := range filters {
		sub := r.filters[filter][id]
		root = r.removeLocked(root, sub)
		removed = append(removed, sub)
	}
	r.root.Store(root)
	r.updateGaugesLocked()

	sortByCreation(removed)

	r.config.logger.Debug("subscriber removed", LogFields{
		LogFieldSubscriberID: string(id),
		LogFieldCount:        len(removed),
	})

	return removed
}

// removeLocked drops sub from both indexes and returns the new trie root.
func (r *Registry) removeLocked(root *trieNode, sub Subscription) *trieNode {
	filter := sub.Filter.String()
	id := sub.SubscriberID

	root = root.update(sub.Filter.levels, func(current []Subscription) []Subscription {
		return removeSubscription(current, id)
	})

	delete(r.filters[filter], id)
	if len(r.filters[filter]) == 0 {
		delete(r.filters, filter)
	}

	delete(r.subscribers[id], filter)
	if len(r.subscribers[id]) == 0 {
		delete(r.subscribers, id)
	}

	r.count--
	return root
}

// MatchingSubscriptions returns every subscription whose filter matches topic.
// A subscriber registered under several matching filters appears once per filter.
func (r *Registry) MatchingSubscriptions(topic string) ([]Subscription, error) {
	path, err := ParseTopic(topic, WithMaxLevels(r.config.maxLevels))
	if err != nil {
		r.config.metrics.Counter(MetricFormatErrors, nil).Inc()
		return nil, err
	}

	return r.match(path)
}

func (r *Registry) match(topic TopicPath) ([]Subscription, error) {
	wildcards := !(r.config.isolateDollar && topic.IsSystemTopic())

	subs := r.root.Load().collect(topic.levels, wildcards, nil)

	for _, sub := range subs {
		if !Match(topic, sub.Filter) {
			r.config.logger.Error("subscription index returned non-matching filter", LogFields{
				LogFieldTopic:        topic.String(),
				LogFieldFilter:       sub.Filter.String(),
				LogFieldSubscriberID: string(sub.SubscriberID),
			})
			return nil, fmt.Errorf("%w: filter %q does not match topic %q",
				ErrIndexCorrupted, sub.Filter.String(), topic.String())
		}
	}

	return subs, nil
}

// Subscriptions returns the subscriptions held by id, oldest first.
func (r *Registry) Subscriptions(id SubscriberID) []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filters := r.subscribers[id]
	subs := make([]Subscription, 0, len(filters))
	for filter := range filters {
		subs = append(subs, r.filters[filter][id])
	}
	sortByCreation(subs)
	return subs
}

// Lookup returns the subscription of id under filter.
func (r *Registry) Lookup(filter string, id SubscriberID) (Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.filters[filter][id]
	return sub, ok
}

// Filters returns the distinct registered filters in lexical order.
func (r *Registry) Filters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filters := make([]string, 0, len(r.filters))
	for filter := range r.filters {
		filters = append(filters, filter)
	}
	slices.Sort(filters)
	return filters
}

// Count returns the total number of subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.count
}

// FilterCount returns the number of distinct filters.
func (r *Registry) FilterCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.filters)
}

// SubscriberCount returns the number of subscribers holding at least one subscription.
func (r *Registry) SubscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subscribers)
}

// Verify walks the current trie and checks it against the filter index.
func (r *Registry) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := 0
	var errs []error
	r.root.Load().walk(nil, func(levels []string, subs []Subscription) {
		filter := strings.Join(levels, string(topicSeparator))
		for _, sub := range subs {
			seen++
			indexed, ok := r.filters[filter][sub.SubscriberID]
			if !ok || indexed.QoS != sub.QoS || indexed.CreatedAt != sub.CreatedAt {
				errs = append(errs, fmt.Errorf("%w: %s under %q not indexed",
					ErrIndexCorrupted, sub.SubscriberID, filter))
			}
		}
	})

	if seen != r.count {
		errs = append(errs, fmt.Errorf("%w: trie holds %d subscriptions, index %d",
			ErrIndexCorrupted, seen, r.count))
	}

	return errors.Join(errs...)
}

func (r *Registry) updateGaugesLocked() {
	r.config.metrics.Gauge(MetricSubscriptions, nil).Set(float64(r.count))
	r.config.metrics.Gauge(MetricFilters, nil).Set(float64(len(r.filters)))
	r.config.metrics.Gauge(MetricSubscribers, nil).Set(float64(len(r.subscribers)))
}

func sortByCreation(subs []Subscription) {
	slices.SortFunc(subs, func(a, b Subscription) int {
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	})
}
