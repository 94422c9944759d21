package assistant

import (
	"net/url"
	"sort"
	"strings"
)

// ValidBackendURL reports whether raw is a syntactically valid absolute
// http or https URL.
func ValidBackendURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// HostAllowlist restricts which hosts the server sends agent turns and
// suggested actions to. An entry is a host, a host:port or an absolute URL
// whose host is taken. A bare host matches any port and "*" matches every
// host. A nil allowlist permits every host.
type HostAllowlist struct {
	any   bool
	hosts map[string]struct{}
}

// NewHostAllowlist builds an allowlist from entries, skipping blanks.
func NewHostAllowlist(entries ...string) *HostAllowlist {
	l := &HostAllowlist{hosts: make(map[string]struct{})}
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if e == "*" {
			l.any = true
			continue
		}
		if strings.Contains(e, "://") {
			u, err := url.Parse(e)
			if err != nil || u.Host == "" {
				continue
			}
			e = u.Host
		}
		l.hosts[e] = struct{}{}
	}
	return l
}

// Allows reports whether u targets a permitted host.
func (l *HostAllowlist) Allows(u *url.URL) bool {
	if l == nil || l.any {
		return true
	}
	if u == nil || u.Host == "" {
		return false
	}
	if _, ok := l.hosts[strings.ToLower(u.Host)]; ok {
		return true
	}
	_, ok := l.hosts[strings.ToLower(u.Hostname())]
	return ok
}

// AllowsURL parses raw and reports whether its host is permitted.
func (l *HostAllowlist) AllowsURL(raw string) bool {
	if l == nil {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return l.Allows(u)
}

// Hosts returns the configured entries in sorted order, for logging.
func (l *HostAllowlist) Hosts() []string {
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l.hosts)+1)
	if l.any {
		out = append(out, "*")
	}
	for h := range l.hosts {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
