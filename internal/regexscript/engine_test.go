package regexscript

import (
	"testing"

	"github.com/kayz/promptgate/internal/macro"
)

func intPtr(v int) *int { return &v }

func beforeSend(find, replace string) Script {
	return Script{
		Name:       "test",
		Find:       ParsePattern(find),
		Replace:    replace,
		Placements: []Placement{PlacementBeforeSend},
	}
}

func TestApplyOrderDeterminism(t *testing.T) {
	a := beforeSend("/x/", "y")
	a.Name, a.Order = "A", 1
	b := beforeSend("/x/", "z")
	b.Name, b.Order = "B", 0

	e := NewEngine(0)
	// B (order 0) must run before A regardless of slice order, so B wins
	// the rewrite and A finds nothing.
	for _, scripts := range [][]Script{{a, b}, {b, a}} {
		out := e.Apply("x", scripts, nil, PlacementBeforeSend, "user", 0)
		if out != "z" {
			t.Fatalf("expected order-0 script applied first, got %q", out)
		}
	}
}

func TestApplyIsAFoldOverEarlierRewrites(t *testing.T) {
	first := beforeSend("/cat/", "dog")
	first.Order = 0
	second := beforeSend("/dog/", "wolf")
	second.Order = 1

	e := NewEngine(0)
	out := e.Apply("cat", []Script{first, second}, nil, PlacementBeforeSend, "user", 0)
	if out != "wolf" {
		t.Fatalf("expected later script to see earlier rewrite, got %q", out)
	}
}

func TestApplyDepthFiltering(t *testing.T) {
	s := beforeSend("/secret/", "redacted")
	s.MinDepth = intPtr(1)
	s.MaxDepth = intPtr(3)

	e := NewEngine(0)
	tests := []struct {
		depth int
		want  string
	}{
		{0, "secret"},
		{1, "redacted"},
		{2, "redacted"},
		{3, "redacted"},
		{4, "secret"},
	}
	for _, tc := range tests {
		out := e.Apply("secret", []Script{s}, nil, PlacementBeforeSend, "user", tc.depth)
		if out != tc.want {
			t.Fatalf("depth %d: expected %q, got %q", tc.depth, tc.want, out)
		}
	}
}

func TestApplyNilDepthBoundsAreUnbounded(t *testing.T) {
	s := beforeSend("/a/", "b")
	e := NewEngine(0)
	if out := e.Apply("a", []Script{s}, nil, PlacementBeforeSend, "user", 9999); out != "b" {
		t.Fatalf("expected unbounded depth to match, got %q", out)
	}
}

func TestApplyRoleFiltering(t *testing.T) {
	s := beforeSend("/x/", "y")
	s.Roles = []string{"assistant"}

	e := NewEngine(0)
	if out := e.Apply("x", []Script{s}, nil, PlacementBeforeSend, "user", 0); out != "x" {
		t.Fatalf("assistant-only script modified a user message: %q", out)
	}
	if out := e.Apply("x", []Script{s}, nil, PlacementBeforeSend, "assistant", 0); out != "y" {
		t.Fatalf("assistant-only script skipped an assistant message: %q", out)
	}
}

func TestApplyDefaultRolesExcludeSystem(t *testing.T) {
	s := beforeSend("/x/", "y")
	e := NewEngine(0)
	if out := e.Apply("x", []Script{s}, nil, PlacementBeforeSend, "system", 0); out != "x" {
		t.Fatalf("default roles should not cover system, got %q", out)
	}
	if out := e.Apply("x", []Script{s}, nil, PlacementBeforeSend, "assistant", 0); out != "y" {
		t.Fatalf("default roles should cover assistant, got %q", out)
	}
}

func TestApplyPlacementFiltering(t *testing.T) {
	s := beforeSend("/x/", "y")
	e := NewEngine(0)
	if out := e.Apply("x", []Script{s}, nil, PlacementAfterReceive, "user", 0); out != "x" {
		t.Fatalf("before-send script ran after receive: %q", out)
	}
}

func TestApplyDisabledScriptSkipped(t *testing.T) {
	s := beforeSend("/x/", "y")
	s.Disabled = true
	e := NewEngine(0)
	if out := e.Apply("x", []Script{s}, nil, PlacementBeforeSend, "user", 0); out != "x" {
		t.Fatalf("disabled script still ran: %q", out)
	}
}

func TestApplyTrimStrings(t *testing.T) {
	s := beforeSend("/hello world/", "{{match}}!")
	s.TrimStrings = []string{"hello "}
	e := NewEngine(0)
	out := e.Apply("hello world", []Script{s}, nil, PlacementBeforeSend, "user", 0)
	if out != "world!" {
		t.Fatalf("expected trimmed match substitution, got %q", out)
	}
}

func TestApplyBackReferences(t *testing.T) {
	s := beforeSend(`/(\w+)@(\w+)/`, "$2-$1")
	e := NewEngine(0)
	out := e.Apply("alice@wonder", []Script{s}, nil, PlacementBeforeSend, "user", 0)
	if out != "wonder-alice" {
		t.Fatalf("expected back-reference swap, got %q", out)
	}
}

func TestApplyMatchTokenKeepsDollarDigits(t *testing.T) {
	s := beforeSend(`/price: \$\d+/`, "cost is {{match}}")
	e := NewEngine(0)
	out := e.Apply("price: $5 total", []Script{s}, nil, PlacementBeforeSend, "user", 0)
	if out != "cost is price: $5 total" {
		t.Fatalf("matched text was re-interpreted as a back-reference: %q", out)
	}
}

func TestApplyGroupTextKeepsDollarDigits(t *testing.T) {
	s := beforeSend(`/cost=(\S+)/`, "paid $1")
	e := NewEngine(0)
	out := e.Apply("cost=$2off", []Script{s}, nil, PlacementBeforeSend, "user", 0)
	if out != "paid $2off" {
		t.Fatalf("group text was re-interpreted as a back-reference: %q", out)
	}
}

func TestApplyNonParticipatingGroupSubstitutesEmpty(t *testing.T) {
	s := beforeSend(`/a(b)?c/`, "[$1]")
	e := NewEngine(0)
	out := e.Apply("ac", []Script{s}, nil, PlacementBeforeSend, "user", 0)
	if out != "[]" {
		t.Fatalf("expected empty substitution for missing group, got %q", out)
	}
}

func TestApplyEmptyReplaceDeletesMatches(t *testing.T) {
	s := beforeSend("/bad/", "")
	e := NewEngine(0)
	out := e.Apply("a bad bad day", []Script{s}, nil, PlacementBeforeSend, "user", 0)
	if out != "a   day" {
		t.Fatalf("expected global deletion, got %q", out)
	}
}

func TestApplyEmptyFindIsNoOp(t *testing.T) {
	s := beforeSend("", "replacement")
	e := NewEngine(0)
	out := e.Apply("untouched", []Script{s}, nil, PlacementBeforeSend, "user", 0)
	if out != "untouched" {
		t.Fatalf("empty pattern must never match, got %q", out)
	}
}

func TestApplySurvivesCompileFailure(t *testing.T) {
	bad := beforeSend("/([unclosed/", "x")
	bad.Order = 0
	good := beforeSend("/keep/", "kept")
	good.Order = 1

	e := NewEngine(0)
	out := e.Apply("keep going", []Script{bad, good}, nil, PlacementBeforeSend, "user", 0)
	if out != "kept going" {
		t.Fatalf("expected valid script applied despite bad sibling, got %q", out)
	}
}

func TestApplyLiteralPatternWithoutWrapper(t *testing.T) {
	s := beforeSend("plain text", "replaced")
	e := NewEngine(0)
	out := e.Apply("some plain text here", []Script{s}, nil, PlacementBeforeSend, "user", 0)
	if out != "some replaced here" {
		t.Fatalf("expected unwrapped pattern applied as-is, got %q", out)
	}
}

func TestApplyCaseInsensitiveFlag(t *testing.T) {
	s := beforeSend("/HELLO/i", "hi")
	e := NewEngine(0)
	out := e.Apply("hello there", []Script{s}, nil, PlacementBeforeSend, "user", 0)
	if out != "hi there" {
		t.Fatalf("expected i flag honored, got %q", out)
	}
}

func TestApplyMarkdownOnlyGating(t *testing.T) {
	s := beforeSend("/word/", "term")
	s.MarkdownOnly = true
	e := NewEngine(0)

	if out := e.Apply("plain word", []Script{s}, nil, PlacementBeforeSend, "user", 0); out != "plain word" {
		t.Fatalf("markdownOnly script ran on plain text: %q", out)
	}
	if out := e.Apply("*styled* word", []Script{s}, nil, PlacementBeforeSend, "user", 0); out != "*styled* term" {
		t.Fatalf("markdownOnly script skipped markdown text: %q", out)
	}
	if out := e.Apply("# heading\nword", []Script{s}, nil, PlacementBeforeSend, "user", 0); out != "# heading\nterm" {
		t.Fatalf("markdownOnly script skipped heading text: %q", out)
	}
}

func TestApplySubstituteRaw(t *testing.T) {
	s := beforeSend("/{{char}} said/", "she said")
	s.Substitute = SubstituteRaw
	ctx := macro.Context{"char": macro.String("Mira")}
	e := NewEngine(0)
	out := e.Apply("Mira said hi", []Script{s}, ctx, PlacementBeforeSend, "user", 0)
	if out != "she said hi" {
		t.Fatalf("expected raw macro substitution in pattern, got %q", out)
	}
}

func TestApplySubstituteEscaped(t *testing.T) {
	// The macro value contains metacharacters; escaped mode must match it
	// literally instead of treating "." and "(" as syntax.
	s := beforeSend("/{{name}}/", "X")
	s.Substitute = SubstituteEscaped
	ctx := macro.Context{"name": macro.String("a.b(c)")}
	e := NewEngine(0)

	out := e.Apply("a.b(c) and aXbXcX", []Script{s}, ctx, PlacementBeforeSend, "user", 0)
	if out != "X and aXbXcX" {
		t.Fatalf("expected literal match of expanded value, got %q", out)
	}
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		raw    string
		source string
		flags  string
	}{
		{"/abc/", "abc", ""},
		{"/abc/gi", "abc", "gi"},
		{"abc", "abc", ""},
		{"/a/b/c/", "a/b/c", ""},
		{"/abc/notflags", "/abc/notflags", ""},
		{"", "", ""},
		{"/", "/", ""},
	}
	for _, tc := range tests {
		p := ParsePattern(tc.raw)
		if p.Source != tc.source || p.Flags != tc.flags {
			t.Fatalf("ParsePattern(%q) = {%q %q}, want {%q %q}", tc.raw, p.Source, p.Flags, tc.source, tc.flags)
		}
		if p.Raw != tc.raw {
			t.Fatalf("ParsePattern(%q) lost the raw form: %q", tc.raw, p.Raw)
		}
	}
}
