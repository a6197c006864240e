package mqttroute

// Match reports whether a parsed topic matches a parsed filter.
// '#' matches zero or more remaining levels, '+' exactly one level, which may
// be empty. MQTT v5.0 spec: Section 4.7
func Match(topic, filter TopicPath) bool {
	if topic.IsZero() || filter.IsZero() {
		return false
	}
	return matchLevels(topic.levels, filter.levels)
}

func matchLevels(topic, filter []string) bool {
	if len(filter) == 0 {
		return len(topic) == 0
	}

	switch filter[0] {
	case string(multiLevelWildcard):
		return true
	case string(singleLevelWildcard):
		if len(topic) == 0 {
			return false
		}
	default:
		if len(topic) == 0 || topic[0] != filter[0] {
			return false
		}
	}

	return matchLevels(topic[1:], filter[1:])
}

// TopicMatch checks if a topic name matches a topic filter without parsing
// either string. Inputs are assumed valid; empty strings never match.
func TopicMatch(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}

	fi, ti := 0, 0
	flen, tlen := len(filter), len(topic)
	// topicDone is set once the separator after the last topic level is consumed,
	// so a trailing empty level ("a/") is still visited.
	topicDone := false

	for fi <= flen {
		fstart := fi
		for fi < flen && filter[fi] != topicSeparator {
			fi++
		}
		flevel := filter[fstart:fi]

		if flevel == string(multiLevelWildcard) {
			return true
		}

		if topicDone {
			return false
		}

		tstart := ti
		for ti < tlen && topic[ti] != topicSeparator {
			ti++
		}
		tlevel := topic[tstart:ti]

		if flevel != string(singleLevelWildcard) && flevel != tlevel {
			return false
		}

		if ti < tlen {
			ti++ // skip '/'
		} else {
			topicDone = true
		}

		if fi == flen {
			break
		}
		fi++ // skip '/'
	}

	return topicDone
}
