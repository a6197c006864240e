package mqttroute

import "maps"

// trieNode is an immutable node of the subscription trie. Writers never
// modify a node reachable from a published root: they clone the path from
// the root to the affected node and publish the new root.
type trieNode struct {
	children map[string]*trieNode // literal levels
	matchAny *trieNode            // + wildcard
	matchAll *trieNode            // # wildcard, always a leaf
	subs     []Subscription
}

func (n *trieNode) clone() *trieNode {
	if n == nil {
		return &trieNode{}
	}

	c := &trieNode{
		matchAny: n.matchAny,
		matchAll: n.matchAll,
		subs:     n.subs,
	}
	if len(n.children) > 0 {
		c.children = make(map[string]*trieNode, len(n.children)+1)
		maps.Copy(c.children, n.children)
	}
	return c
}

func (n *trieNode) empty() bool {
	return len(n.subs) == 0 && len(n.children) == 0 && n.matchAny == nil && n.matchAll == nil
}

func (n *trieNode) child(level string) *trieNode {
	if n == nil {
		return nil
	}
	switch level {
	case string(singleLevelWildcard):
		return n.matchAny
	case string(multiLevelWildcard):
		return n.matchAll
	default:
		return n.children[level]
	}
}

// setChild must only be called on a freshly cloned node.
func (n *trieNode) setChild(level string, c *trieNode) {
	switch level {
	case string(singleLevelWildcard):
		n.matchAny = c
	case string(multiLevelWildcard):
		n.matchAll = c
	default:
		if c == nil {
			delete(n.children, level)
			if len(n.children) == 0 {
				n.children = nil
			}
			return
		}
		if n.children == nil {
			n.children = make(map[string]*trieNode)
		}
		n.children[level] = c
	}
}

// update returns a copy of the trie rooted at n where the subscriptions stored
// under levels are replaced by fn(current). fn must return a new slice.
// Nodes left without subscriptions or children are pruned, so the result is
// nil when the whole trie becomes empty.
func (n *trieNode) update(levels []string, fn func([]Subscription) []Subscription) *trieNode {
	c := n.clone()

	if len(levels) == 0 {
		var current []Subscription
		if n != nil {
			current = n.subs
		}
		c.subs = fn(current)
	} else {
		c.setChild(levels[0], n.child(levels[0]).update(levels[1:], fn))
	}

	if c.empty() {
		return nil
	}
	return c
}

// collect appends the subscriptions of every filter matching the topic levels.
// A '#' child is collected without descending, since it matches everything
// below this node, including zero further levels.
func (n *trieNode) collect(levels []string, wildcards bool, out []Subscription) []Subscription {
	if n == nil {
		return out
	}

	if wildcards && n.matchAll != nil {
		out = append(out, n.matchAll.subs...)
	}

	if len(levels) == 0 {
		return append(out, n.subs...)
	}

	if c, ok := n.children[levels[0]]; ok {
		out = c.collect(levels[1:], true, out)
	}

	if wildcards && n.matchAny != nil {
		out = n.matchAny.collect(levels[1:], true, out)
	}

	return out
}

// walk visits every node holding subscriptions, with the filter levels leading to it.
func (n *trieNode) walk(path []string, fn func(levels []string, subs []Subscription)) {
	if n == nil {
		return
	}
	if len(n.subs) > 0 {
		fn(path, n.subs)
	}
	for level, c := range n.children {
		c.walk(append(path, level), fn)
	}
	n.matchAny.walk(append(path, string(singleLevelWildcard)), fn)
	n.matchAll.walk(append(path, string(multiLevelWildcard)), fn)
}

func upsertSubscription(subs []Subscription, sub Subscription) []Subscription {
	out := make([]Subscription, 0, len(subs)+1)
	replaced := false
	for _, s := range subs {
		if s.SubscriberID == sub.SubscriberID {
			out = append(out, sub)
			replaced = true
			continue
		}
		out = append(out, s)
	}
	if !replaced {
		out = append(out, sub)
	}
	return out
}

func removeSubscription(subs []Subscription, id SubscriberID) []Subscription {
	out := make([]Subscription, 0, len(subs))
	for _, s := range subs {
		if s.SubscriberID != id {
			out = append(out, s)
		}
	}
	return out
}
