package dag

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"checkrun/internal/check"
)

func chk(name string, needs ...string) check.Check {
	return check.Check{Name: name, Tool: "tool-" + name, Targets: []string{"*"}, Needs: needs}
}

func TestNewCheckGraph_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		checks []check.Check
		edges  []Edge
		want   string
	}{
		{"no checks", nil, nil, "no checks"},
		{"empty name", []check.Check{{Tool: "t", Targets: []string{"*"}}}, nil, "name is required"},
		{"duplicate name", []check.Check{chk("a"), chk("a")}, nil, "duplicate check name"},
		{"unknown from", []check.Check{chk("a")}, []Edge{{From: "ghost", To: "a"}}, "unknown check (from)"},
		{"unknown to", []check.Check{chk("a")}, []Edge{{From: "a", To: "ghost"}}, "unknown check (to)"},
		{"self loop", []check.Check{chk("a")}, []Edge{{From: "a", To: "a"}}, "self-loop"},
		{"duplicate edge", []check.Check{chk("a"), chk("b")}, []Edge{{From: "a", To: "b"}, {From: "a", To: "b"}}, "duplicate edge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCheckGraph(tt.checks, tt.edges)
			if err == nil {
				t.Fatal("expected error")
			}
			var gerr *GraphError
			if !errors.As(err, &gerr) {
				t.Fatalf("expected GraphError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestNewCheckGraph_CycleDetected(t *testing.T) {
	_, err := FromChecks([]check.Check{chk("a", "c"), chk("b", "a"), chk("c", "b")})
	if !errors.Is(err, ErrCycleFound) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestFromChecks_EdgesFromNeeds(t *testing.T) {
	g, err := FromChecks([]check.Check{chk("types"), chk("lint", "types")})
	if err != nil {
		t.Fatalf("FromChecks failed: %v", err)
	}

	want := []Edge{{From: "types", To: "lint"}}
	if got := g.Edges(); !reflect.DeepEqual(got, want) {
		t.Errorf("edges = %v, want %v", got, want)
	}

	if d, _ := g.Depth("types"); d != 0 {
		t.Errorf("depth(types) = %d", d)
	}
	if d, _ := g.Depth("lint"); d != 1 {
		t.Errorf("depth(lint) = %d", d)
	}
}

func TestGraphHash_InsertionOrderInvariant(t *testing.T) {
	a, err := FromChecks([]check.Check{chk("x"), chk("y", "x"), chk("z", "y")})
	if err != nil {
		t.Fatalf("FromChecks failed: %v", err)
	}
	b, err := FromChecks([]check.Check{chk("z", "y"), chk("x"), chk("y", "x")})
	if err != nil {
		t.Fatalf("FromChecks failed: %v", err)
	}
	if a.Hash() != b.Hash() {
		t.Error("graph hash depends on insertion order")
	}
}

func TestGraphHash_DefinitionSensitive(t *testing.T) {
	a, _ := FromChecks([]check.Check{chk("x")})
	changed := chk("x")
	changed.Args = []string{"--strict"}
	b, _ := FromChecks([]check.Check{changed})
	if a.Hash() == b.Hash() {
		t.Error("changed definition kept the same graph hash")
	}
}

func TestTopologicalOrder_RespectsEdges(t *testing.T) {
	g, err := FromChecks([]check.Check{chk("a"), chk("b", "a"), chk("c", "b")})
	if err != nil {
		t.Fatalf("FromChecks failed: %v", err)
	}

	order := g.TopologicalOrder()
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	for _, e := range g.Edges() {
		if pos[e.From] >= pos[e.To] {
			t.Errorf("edge %s -> %s violated by order %v", e.From, e.To, order)
		}
	}
}
