package mqttroute

import (
	"strings"
	"unicode/utf8"
)

const (
	topicSeparator      = '/'
	singleLevelWildcard = '+'
	multiLevelWildcard  = '#'
)

// DefaultMaxLevels bounds the depth of topics and filters accepted by a Broker.
const DefaultMaxLevels = 128

// TopicPath is a parsed topic name or topic filter.
// The zero value is an empty path and never matches anything.
type TopicPath struct {
	raw    string
	levels []string
	filter bool
}

// ParseOption configures topic and filter parsing.
type ParseOption func(*parseConfig)

type parseConfig struct {
	maxLevels int
}

// WithMaxLevels rejects topics and filters with more than n levels.
// 0 means unlimited.
func WithMaxLevels(n int) ParseOption {
	return func(c *parseConfig) {
		if n < 0 {
			n = 0
		}
		c.maxLevels = n
	}
}

// ParseTopic parses a concrete topic name a message is published to.
// Topic names cannot contain wildcards and must be valid UTF-8.
// MQTT v5.0 spec: Section 4.7.1
func ParseTopic(raw string, opts ...ParseOption) (TopicPath, error) {
	return parse(raw, false, opts)
}

// ParseFilter parses a subscription filter. A filter may use '+' as a whole
// level anywhere and '#' as a whole level in the last position only.
// MQTT v5.0 spec: Section 4.7.1
func ParseFilter(raw string, opts ...ParseOption) (TopicPath, error) {
	return parse(raw, true, opts)
}

// MustParseFilter is like ParseFilter but panics on error.
// Intended for package-level variables and tests.
func MustParseFilter(raw string) TopicPath {
	p, err := ParseFilter(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// MustParseTopic is like ParseTopic but panics on error.
func MustParseTopic(raw string) TopicPath {
	p, err := ParseTopic(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func parse(raw string, filter bool, opts []ParseOption) (TopicPath, error) {
	var cfg parseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	invalid := ErrInvalidTopicName
	if filter {
		invalid = ErrInvalidTopicFilter
	}

	if raw == "" {
		return TopicPath{}, formatError(raw, -1, ErrEmptyTopic)
	}

	if !utf8.ValidString(raw) {
		return TopicPath{}, formatError(raw, -1, invalid)
	}

	if strings.IndexByte(raw, 0) >= 0 {
		return TopicPath{}, formatError(raw, -1, invalid)
	}

	count := strings.Count(raw, string(topicSeparator)) + 1
	if cfg.maxLevels > 0 && count > cfg.maxLevels {
		return TopicPath{}, formatError(raw, cfg.maxLevels, ErrTooManyLevels)
	}

	levels := strings.Split(raw, string(topicSeparator))

	for i, level := range levels {
		if !strings.ContainsAny(level, "+#") {
			continue
		}

		if !filter {
			return TopicPath{}, formatError(raw, i, invalid)
		}

		switch level {
		case string(singleLevelWildcard):
		case string(multiLevelWildcard):
			if i != len(levels)-1 {
				return TopicPath{}, formatError(raw, i, invalid)
			}
		default:
			// wildcard mixed with literal characters, e.g. "a#" or "level+"
			return TopicPath{}, formatError(raw, i, invalid)
		}
	}

	return TopicPath{raw: raw, levels: levels, filter: filter}, nil
}

// String returns the raw topic or filter.
func (p TopicPath) String() string {
	return p.raw
}

// Len returns the number of levels.
func (p TopicPath) Len() int {
	return len(p.levels)
}

// Level returns the level at index i.
func (p TopicPath) Level(i int) string {
	return p.levels[i]
}

// Levels returns a copy of the levels.
func (p TopicPath) Levels() []string {
	out := make([]string, len(p.levels))
	copy(out, p.levels)
	return out
}

// IsFilter reports whether the path was parsed as a subscription filter.
func (p TopicPath) IsFilter() bool {
	return p.filter
}

// IsZero reports whether p is the zero TopicPath.
func (p TopicPath) IsZero() bool {
	return len(p.levels) == 0
}

// HasWildcard reports whether the filter contains '+' or '#'.
func (p TopicPath) HasWildcard() bool {
	return p.filter && strings.ContainsAny(p.raw, "+#")
}

// IsMultiLevel reports whether the filter ends with '#'.
func (p TopicPath) IsMultiLevel() bool {
	return p.filter && p.levels[len(p.levels)-1] == string(multiLevelWildcard)
}

// IsSystemTopic returns true if the first level starts with '$', such as $SYS.
func (p TopicPath) IsSystemTopic() bool {
	return len(p.levels) > 0 && strings.HasPrefix(p.levels[0], "$")
}
