// Package route implements the ordered Route Table & Filters component
// (spec §4.4): given an MT event, select the connector it should be
// submitted through, or none.
package route

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/relaysms/smppgw/internal/gwmodel"
)

// Filter is one polymorphic predicate attached to a Route. New kinds map
// cleanly to additional implementations of this interface (spec §4.4
// "Filter kinds").
type Filter interface {
	// Match reports whether event passes this filter. A filter that would
	// raise an exception in the reference implementation instead returns
	// false here (spec §4.4 "A filter raising an exception is treated as
	// false").
	Match(event *gwmodel.MTEvent) bool
}

// TransparentFilter always matches.
type TransparentFilter struct{}

// Match implements Filter.
func (TransparentFilter) Match(*gwmodel.MTEvent) bool { return true }

// ConnectorFilter matches when the event's origin connector equals the
// configured name.
type ConnectorFilter struct {
	Name string
}

// Match implements Filter.
func (f ConnectorFilter) Match(event *gwmodel.MTEvent) bool {
	return event.OriginConnector == f.Name
}

// RegexFilter matches a compiled pattern against one of an event's
// string fields (spec's source_addr/dest_addr/short_message filters all
// share this shape; they differ only in which field they read).
type RegexFilter struct {
	re    *regexp.Regexp
	field func(*gwmodel.MTEvent) string
}

// Match implements Filter. A nil compiled pattern (construction failure)
// is treated as no-match, matching spec §4.4's "raising an exception is
// treated as false".
func (f RegexFilter) Match(event *gwmodel.MTEvent) bool {
	if f.re == nil {
		return false
	}
	return f.re.MatchString(f.field(event))
}

// NewSourceAddrFilter builds the source_addr(regex) filter, which spec
// §4.4 defines against event.to.
func NewSourceAddrFilter(pattern string) RegexFilter {
	re, _ := regexp.Compile(pattern)
	return RegexFilter{re: re, field: func(e *gwmodel.MTEvent) string { return e.To }}
}

// NewDestAddrFilter builds the dest_addr(regex) filter, which spec §4.4
// defines against event.from.
func NewDestAddrFilter(pattern string) RegexFilter {
	re, _ := regexp.Compile(pattern)
	return RegexFilter{re: re, field: func(e *gwmodel.MTEvent) string { return e.From }}
}

// NewShortMessageFilter builds the short_message(regex) filter against
// event.msg.
func NewShortMessageFilter(pattern string) RegexFilter {
	re, _ := regexp.Compile(pattern)
	return RegexFilter{re: re, field: func(e *gwmodel.MTEvent) string { return e.Msg }}
}

// TagFilter matches when Value is present in the event's tag set.
type TagFilter struct {
	Value int
}

// Match implements Filter.
func (f TagFilter) Match(event *gwmodel.MTEvent) bool {
	for _, t := range event.Tags {
		if t == f.Value {
			return true
		}
	}
	return false
}

// Type enumerates the three route kinds spec §4.4 defines.
type Type string

const (
	TypeStatic  Type = "static"
	TypeDefault Type = "default"
	TypeSmartRR Type = "smartrr"
)

// Route is one entry in the ordered route table.
type Route struct {
	Priority int
	Type     Type
	Filters  []Filter
	// Targets holds one connector name for static/default, an ordered
	// candidate list for smartrr.
	Targets []string

	mu     sync.Mutex
	cursor int
}

func (r *Route) matchesFilters(event *gwmodel.MTEvent) bool {
	for _, f := range r.Filters {
		if !f.Match(event) {
			return false
		}
	}
	return true
}

// StatusSource reports whether a connector is currently routable. It is
// the consumer-side view of spec §4.4's "connector-status feed".
type StatusSource interface {
	// IsBound reports whether name's last known status begins with
	// "BOUND".
	IsBound(name string) bool
	// Known reports whether name is a configured connector at all.
	Known(name string) bool
}

// select resolves this route's target connector for event, or returns
// ("", false) if it doesn't apply.
func (r *Route) selectTarget(event *gwmodel.MTEvent, status StatusSource) (string, bool) {
	if !r.matchesFilters(event) {
		return "", false
	}
	switch r.Type {
	case TypeStatic, TypeDefault:
		if len(r.Targets) == 0 {
			return "", false
		}
		target := r.Targets[0]
		if !status.IsBound(target) {
			return "", false
		}
		return target, true
	case TypeSmartRR:
		return r.selectSmartRR(status)
	default:
		return "", false
	}
}

// selectSmartRR advances the route's cursor on every evaluation (spec
// §4.4 "Cursor advances on every evaluation to spread load") and returns
// the first candidate, starting from the cursor, that is both known to
// the configuration and currently BOUND; the next evaluation starts just
// past that candidate. If none qualifies within one full cycle of the
// candidate list, it returns ("", false).
func (r *Route) selectSmartRR(status StatusSource) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.Targets)
	if n == 0 {
		return "", false
	}
	start := r.cursor
	r.cursor = (r.cursor + 1) % n
	for i := 0; i < n; i++ {
		candidate := r.Targets[(start+i)%n]
		if status.Known(candidate) && status.IsBound(candidate) {
			r.cursor = (start + i + 1) % n
			return candidate, true
		}
	}
	return "", false
}

// Table is the ordered route table, evaluated highest-priority-first
// (spec §4.4).
type Table struct {
	mu     sync.RWMutex
	routes []*Route
}

// NewTable builds a Table from routes, sorting them by descending
// priority once up front.
func NewTable(routes []*Route) *Table {
	sorted := make([]*Route, len(routes))
	copy(sorted, routes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })
	return &Table{routes: sorted}
}

// Select walks the table in priority order and returns the first
// connector a matching route resolves to. It returns ("", false) if no
// route matches (spec §4.4, §4.5 "no candidate connector ... reject with
// 'no route'").
func (t *Table) Select(event *gwmodel.MTEvent, status StatusSource) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.routes {
		if name, ok := r.selectTarget(event, status); ok {
			return name, true
		}
	}
	return "", false
}

// ConnectorStatus is a thread-safe StatusSource fed by the external
// connector-status feed (spec §4.4 "update_connector_status") and by
// internal/connector's own lifecycle transitions.
type ConnectorStatus struct {
	mu     sync.RWMutex
	status map[string]string
	known  map[string]bool
}

// NewConnectorStatus builds a ConnectorStatus pre-seeded with the set of
// configured connector names, all initially unbound.
func NewConnectorStatus(configuredNames []string) *ConnectorStatus {
	known := make(map[string]bool, len(configuredNames))
	for _, n := range configuredNames {
		known[n] = true
	}
	return &ConnectorStatus{status: make(map[string]string), known: known}
}

// Update implements the connector-status feed: sets name's status
// string.
func (c *ConnectorStatus) Update(name, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[name] = status
}

// IsBound implements StatusSource.
func (c *ConnectorStatus) IsBound(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return strings.HasPrefix(c.status[name], "BOUND")
}

// Known implements StatusSource.
func (c *ConnectorStatus) Known(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.known[name]
}

// Snapshot returns the current status string of every configured
// connector, defaulting to "UNKNOWN" for a configured name that has never
// reported in (spec §6 "GET /api/v1/smpp/connectors").
func (c *ConnectorStatus) Snapshot() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.known))
	for name := range c.known {
		if s, ok := c.status[name]; ok {
			out[name] = s
		} else {
			out[name] = "UNKNOWN"
		}
	}
	return out
}
