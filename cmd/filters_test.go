package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/loupelabs/loupe/pkg/filter"
)

// newFilterCommand builds a throwaway command with filter flags parsed from
// args, mirroring how the real subcommands wire them up.
func newFilterCommand(t *testing.T, args ...string) (*cobra.Command, *filterFlags) {
	t.Helper()
	var f filterFlags
	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	registerFilterFlags(cmd, &f)
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cmd, &f
}

func TestBuildFilterNoFlags(t *testing.T) {
	cmd, f := newFilterCommand(t)
	node, err := f.buildFilter(cmd)
	if err != nil {
		t.Fatalf("buildFilter() error: %v", err)
	}
	if !filter.IsEmpty(node) {
		t.Errorf("expected empty filter, got %#v", node)
	}
}

func TestBuildFilterSingleCondition(t *testing.T) {
	cmd, f := newFilterCommand(t, "--model", "gpt-4o")
	node, err := f.buildFilter(cmd)
	if err != nil {
		t.Fatalf("buildFilter() error: %v", err)
	}

	leaf, ok := node.(*filter.Leaf)
	if !ok {
		t.Fatalf("expected single leaf, got %#v", node)
	}
	if leaf.Field != "model" || leaf.Op != filter.OpEquals || leaf.Value != "gpt-4o" {
		t.Errorf("unexpected leaf: %#v", leaf)
	}
}

func TestBuildFilterZeroValuedFlagCounts(t *testing.T) {
	// --min-cost 0 is a real condition; only an untouched flag is skipped.
	cmd, f := newFilterCommand(t, "--min-cost", "0")
	node, err := f.buildFilter(cmd)
	if err != nil {
		t.Fatalf("buildFilter() error: %v", err)
	}
	if filter.IsEmpty(node) {
		t.Fatal("explicit zero flag produced an empty filter")
	}
}

func TestBuildFilterBadProperty(t *testing.T) {
	cmd, f := newFilterCommand(t, "--property", "no-equals-sign")
	if _, err := f.buildFilter(cmd); err == nil {
		t.Fatal("expected error for malformed property")
	}
}

func TestBuildFilterBadTimeRange(t *testing.T) {
	cmd, f := newFilterCommand(t, "--start", "yesterday-ish")
	if _, err := f.buildFilter(cmd); err == nil {
		t.Fatal("expected error for unparseable time range")
	}
}

func TestBuildFilterCombinesRawAndDerived(t *testing.T) {
	cmd, f := newFilterCommand(t,
		"--model", "claude-sonnet-4",
		"--filter", `{"request_response_log":{"status":{"gte":500}}}`,
	)
	node, err := f.buildFilter(cmd)
	if err != nil {
		t.Fatalf("buildFilter() error: %v", err)
	}

	branch, ok := node.(*filter.Branch)
	if !ok {
		t.Fatalf("expected AND branch combining raw and derived trees, got %#v", node)
	}
	if branch.Op != "and" {
		t.Errorf("combining operator = %q, want and", branch.Op)
	}
}

func TestBuildFilterFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.json")
	if err := os.WriteFile(path, []byte(`{"request_response_log":{"model":{"contains":"haiku"}}}`), 0644); err != nil {
		t.Fatal(err)
	}

	cmd, f := newFilterCommand(t, "--filter-file", path)
	node, err := f.buildFilter(cmd)
	if err != nil {
		t.Fatalf("buildFilter() error: %v", err)
	}

	leaf, ok := node.(*filter.Leaf)
	if !ok {
		t.Fatalf("expected leaf from file, got %#v", node)
	}
	if leaf.Op != filter.OpContains || leaf.Value != "haiku" {
		t.Errorf("unexpected leaf: %#v", leaf)
	}
}

func TestBuildFilterRejectsMalformedRawFilter(t *testing.T) {
	cmd, f := newFilterCommand(t, "--filter", `{"not valid`)
	if _, err := f.buildFilter(cmd); err == nil {
		t.Fatal("expected error for malformed raw filter")
	}
}
