package route

import (
	"testing"

	"github.com/relaysms/smppgw/internal/gwmodel"
)

func TestTableStaticRoute(t *testing.T) {
	table := NewTable([]*Route{
		{Priority: 10, Type: TypeStatic, Targets: []string{"op-a"}, Filters: []Filter{
			NewDestAddrFilter(`^\+256`),
		}},
		{Priority: 0, Type: TypeDefault, Targets: []string{"op-fallback"}},
	})
	status := NewConnectorStatus([]string{"op-a", "op-fallback"})
	status.Update("op-a", "BOUND_TRX")
	status.Update("op-fallback", "BOUND_TRX")

	name, ok := table.Select(&gwmodel.MTEvent{From: "+256700000000"}, status)
	if !ok || name != "op-a" {
		t.Fatalf("want op-a, got %q ok=%v", name, ok)
	}

	name, ok = table.Select(&gwmodel.MTEvent{From: "+1202555"}, status)
	if !ok || name != "op-fallback" {
		t.Fatalf("want op-fallback, got %q ok=%v", name, ok)
	}
}

func TestTableStaticRouteRejectsUnboundTarget(t *testing.T) {
	table := NewTable([]*Route{
		{Priority: 10, Type: TypeStatic, Targets: []string{"op-a"}},
	})
	status := NewConnectorStatus([]string{"op-a"})

	if _, ok := table.Select(&gwmodel.MTEvent{}, status); ok {
		t.Fatal("expected no match when the static target isn't bound")
	}
}

func TestTableNoRouteMatches(t *testing.T) {
	table := NewTable([]*Route{
		{Priority: 10, Type: TypeStatic, Targets: []string{"op-a"}, Filters: []Filter{
			NewDestAddrFilter(`^\+256`),
		}},
	})
	status := NewConnectorStatus([]string{"op-a"})

	_, ok := table.Select(&gwmodel.MTEvent{From: "+1202555"}, status)
	if ok {
		t.Fatal("expected no route to match")
	}
}

func TestSmartRRSkipsUnboundAndAdvancesCursor(t *testing.T) {
	r := &Route{Priority: 5, Type: TypeSmartRR, Targets: []string{"a", "b", "c"}}
	table := NewTable([]*Route{r})
	status := NewConnectorStatus([]string{"a", "b", "c"})
	status.Update("b", "BOUND_TRX")
	status.Update("c", "BOUND_TRX")

	event := &gwmodel.MTEvent{}
	first, ok := table.Select(event, status)
	if !ok {
		t.Fatal("expected a bound candidate")
	}
	second, ok := table.Select(event, status)
	if !ok {
		t.Fatal("expected a bound candidate on second evaluation")
	}
	if first == second {
		t.Fatalf("expected cursor to rotate between evaluations, got %q twice", first)
	}
	if first != "b" && first != "c" {
		t.Fatalf("unexpected first pick %q", first)
	}
}

func TestSmartRRReturnsNoneWhenAllUnbound(t *testing.T) {
	r := &Route{Priority: 5, Type: TypeSmartRR, Targets: []string{"a", "b"}}
	table := NewTable([]*Route{r})
	status := NewConnectorStatus([]string{"a", "b"})

	if _, ok := table.Select(&gwmodel.MTEvent{}, status); ok {
		t.Fatal("expected no candidate to be selected when none are bound")
	}
}

func TestConnectorFilterMatchesOrigin(t *testing.T) {
	f := ConnectorFilter{Name: "op-a"}
	if !f.Match(&gwmodel.MTEvent{OriginConnector: "op-a"}) {
		t.Fatal("expected match on equal origin connector")
	}
	if f.Match(&gwmodel.MTEvent{OriginConnector: "op-b"}) {
		t.Fatal("expected no match on differing origin connector")
	}
}

func TestTagFilter(t *testing.T) {
	f := TagFilter{Value: 7}
	if !f.Match(&gwmodel.MTEvent{Tags: []int{3, 7}}) {
		t.Fatal("expected tag 7 to match")
	}
	if f.Match(&gwmodel.MTEvent{Tags: []int{3}}) {
		t.Fatal("expected no match without tag 7")
	}
}

func TestRegexFilterTreatsBadPatternAsNoMatch(t *testing.T) {
	f := NewShortMessageFilter(`(unterminated`)
	if f.Match(&gwmodel.MTEvent{Msg: "anything"}) {
		t.Fatal("a filter that failed to compile must never match")
	}
}
