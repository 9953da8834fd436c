package resource

import (
	"fmt"
	"strings"
	"sync"
)

// MaxRewriteDepth bounds URI rewrite chaining. A mapping table that cycles
// (a -> b, b -> a) would otherwise rewrite forever; past the cap the
// conversion surfaces an error instead.
const MaxRewriteDepth = 32

// URIMap records URI rewrite rules applied before normalisation. Rules are
// prefix rules; an exact mapping is a prefix rule that happens to match
// the whole string. The longest matching prefix wins, and rewriting chains
// until no rule applies. Safe for concurrent use.
type URIMap struct {
	mu    sync.RWMutex
	rules []uriRule
}

type uriRule struct {
	from, to string
}

// NewURIMap creates an empty mapping table.
func NewURIMap() *URIMap {
	return &URIMap{}
}

// Map records the rewrite rule from -> to. A later rule for the same
// prefix replaces the earlier one.
func (m *URIMap) Map(from, to string) {
	if from == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.from == from {
			m.rules[i].to = to
			return
		}
	}
	m.rules = append(m.rules, uriRule{from: from, to: to})
}

// Rules returns the current (from, to) pairs in registration order.
func (m *URIMap) Rules() [][2]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][2]string, len(m.rules))
	for i, r := range m.rules {
		out[i] = [2]string{r.from, r.to}
	}
	return out
}

// Convert applies the mapping table to uri: longest matching prefix first,
// chained until no rule applies. Unmapped URIs pass through unchanged.
// Returns an error only when the chain exceeds MaxRewriteDepth.
func (m *URIMap) Convert(uri string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cur := uri
	for depth := 0; depth < MaxRewriteDepth; depth++ {
		rule, ok := m.longestMatchLocked(cur)
		if !ok {
			return cur, nil
		}
		next := rule.to + cur[len(rule.from):]
		if next == cur {
			return cur, nil
		}
		cur = next
	}
	return "", fmt.Errorf("uri mapping for %q did not terminate within %d rewrites", uri, MaxRewriteDepth)
}

func (m *URIMap) longestMatchLocked(uri string) (uriRule, bool) {
	var best uriRule
	found := false
	for _, r := range m.rules {
		if !strings.HasPrefix(uri, r.from) {
			continue
		}
		if !found || len(r.from) > len(best.from) {
			best = r
			found = true
		}
	}
	return best, found
}

// NormalizeURI resolves "." and ".." segments and collapses repeated
// slashes in the path component only; scheme, authority, query and
// fragment pass through untouched. Idempotent:
// NormalizeURI(NormalizeURI(x)) == NormalizeURI(x).
func NormalizeURI(uri string) string {
	rest, frag, hasFrag := strings.Cut(uri, "#")
	rest, query, hasQuery := strings.Cut(rest, "?")

	prefix, path := splitURIPath(rest)
	normal := prefix + normalizePath(path)
	if hasQuery {
		normal += "?" + query
	}
	if hasFrag {
		normal += "#" + frag
	}
	return normal
}

// splitURIPath separates "scheme://authority" from the path. A URI with no
// "://" is treated as all path.
func splitURIPath(uri string) (prefix, path string) {
	i := strings.Index(uri, "://")
	if i < 0 {
		return "", uri
	}
	rest := uri[i+3:]
	j := strings.Index(rest, "/")
	if j < 0 {
		return uri, ""
	}
	return uri[:i+3+j], rest[j:]
}

func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	absolute := strings.HasPrefix(p, "/")

	var out []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			// collapse repeated slashes, drop no-op segments
		case "..":
			if n := len(out); n > 0 && out[n-1] != ".." {
				out = out[:n-1]
			} else if !absolute {
				out = append(out, "..")
			}
			// ".." above an absolute root is dropped
		default:
			out = append(out, seg)
		}
	}

	joined := strings.Join(out, "/")
	if absolute {
		return "/" + joined
	}
	return joined
}
