package article

import "strings"

// HostMatcher decides whether a link host is an affiliate host. Patterns are
// bare hosts ("amzn.to") or a label followed by ".*" ("amazon.*") to accept
// any suffix. A leading "www." on the link host is ignored.
type HostMatcher struct {
	exact    map[string]struct{}
	prefixes []string
}

// NewHostMatcher compiles host patterns.
func NewHostMatcher(patterns []string) HostMatcher {
	m := HostMatcher{exact: make(map[string]struct{}, len(patterns))}
	for _, p := range patterns {
		p = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(p)), "www.")
		switch {
		case p == "":
		case strings.HasSuffix(p, ".*"):
			m.prefixes = append(m.prefixes, strings.TrimSuffix(p, "*"))
		default:
			m.exact[p] = struct{}{}
		}
	}
	return m
}

// Match reports whether host is an affiliate host.
func (m HostMatcher) Match(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(strings.TrimSuffix(host, ".")), "www.")
	if host == "" {
		return false
	}
	if _, ok := m.exact[host]; ok {
		return true
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(host, prefix) && len(host) > len(prefix) {
			return true
		}
	}
	return false
}
