package report

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"checkrun/internal/dag"
)

func sampleResult() *dag.GraphResult {
	return &dag.GraphResult{
		GraphHash: "graph-hash",
		FinalState: dag.ExecutionState{
			"types":  dag.CheckFailed,
			"lint":   dag.CheckSkipped,
			"fmt":    dag.CheckPassed,
			"docs":   dag.CheckCached,
			"extras": dag.CheckPassed,
		},
		ExecutionOrder: []string{"fmt", "types"},
		Results: map[string]*dag.NodeResult{
			"types":  {ExitCode: 1, Targets: []string{"a.py"}, Stderr: []byte("a.py:1: error\n")},
			"fmt":    {ExitCode: 0, Targets: []string{"a.py", "b.py"}},
			"docs":   {ExitCode: 0, FromCache: true, Targets: []string{"README"}},
			"extras": {Empty: true},
		},
	}
}

func TestFromGraphResult_OneEventPerCheck(t *testing.T) {
	rep, err := FromGraphResult(sampleResult())
	if err != nil {
		t.Fatalf("FromGraphResult failed: %v", err)
	}

	if rep.GraphHash != "graph-hash" {
		t.Errorf("graphHash = %q", rep.GraphHash)
	}
	if len(rep.Events) != 5 {
		t.Fatalf("got %d events, want 5", len(rep.Events))
	}

	kinds := make(map[string]EventKind)
	for _, e := range rep.Events {
		kinds[e.Check] = e.Kind
	}
	want := map[string]EventKind{
		"types":  EventCheckFailed,
		"lint":   EventCheckSkipped,
		"fmt":    EventCheckPassed,
		"docs":   EventCheckCached,
		"extras": EventCheckEmpty,
	}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}

	for _, e := range rep.Events {
		switch e.Check {
		case "types":
			if e.ExitCode != 1 {
				t.Errorf("failed event exit code = %d", e.ExitCode)
			}
		case "lint":
			if e.Reason != "UpstreamFailed" {
				t.Errorf("skip reason = %q", e.Reason)
			}
		case "extras":
			if e.Reason != "NoTargets" {
				t.Errorf("empty reason = %q", e.Reason)
			}
		}
	}
}

func TestFromGraphResult_ByteStable(t *testing.T) {
	first, err := FromGraphResult(sampleResult())
	if err != nil {
		t.Fatalf("FromGraphResult failed: %v", err)
	}
	second, err := FromGraphResult(sampleResult())
	if err != nil {
		t.Fatalf("FromGraphResult failed: %v", err)
	}

	a, err := first.MarshalCanonical()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	b, err := second.MarshalCanonical()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("identical runs serialized differently")
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name string
		rep  RunReport
	}{
		{"missing graph hash", RunReport{}},
		{"missing kind", RunReport{GraphHash: "h", Events: []Event{{Check: "a"}}}},
		{"unknown kind", RunReport{GraphHash: "h", Events: []Event{{Kind: "Exploded", Check: "a"}}}},
		{"missing check", RunReport{GraphHash: "h", Events: []Event{{Kind: EventCheckPassed}}}},
		{"failed with zero exit", RunReport{GraphHash: "h", Events: []Event{{Kind: EventCheckFailed, Check: "a"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.rep.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestWriteFile_CreatesParentDirs(t *testing.T) {
	rep, err := FromGraphResult(sampleResult())
	if err != nil {
		t.Fatalf("FromGraphResult failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "nested", "report.json")
	if err := rep.WriteFile(path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("report not written: %v", err)
	}
}

func TestWriteSummary_RendersEveryCheck(t *testing.T) {
	var buf bytes.Buffer
	order := []string{"fmt", "types", "lint", "docs", "extras"}
	if err := WriteSummary(&buf, order, sampleResult()); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	out := buf.String()
	for _, name := range order {
		if !bytes.Contains(buf.Bytes(), []byte(name)) {
			t.Errorf("summary missing check %q:\n%s", name, out)
		}
	}
}

func TestReplayOutput_CanonicalOrderNoInterleaving(t *testing.T) {
	res := &dag.GraphResult{
		FinalState: dag.ExecutionState{"a": dag.CheckFailed, "b": dag.CheckFailed},
		Results: map[string]*dag.NodeResult{
			"a": {Stdout: []byte("first\n"), ExitCode: 1},
			"b": {Stdout: []byte("second\n"), ExitCode: 1},
		},
	}

	var stdout, stderr bytes.Buffer
	if err := ReplayOutput(&stdout, &stderr, []string{"a", "b"}, res); err != nil {
		t.Fatalf("ReplayOutput failed: %v", err)
	}
	if stdout.String() != "first\nsecond\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}
