package janitor

import (
	"strconv"
	"testing"

	"github.com/kayz/promptgate/internal/macro"
	"github.com/kayz/promptgate/internal/prompt"
)

func TestParseNormalizesRolesAndDefaults(t *testing.T) {
	req := ChatRequest{
		Messages: []RequestMessage{
			{Role: "System", Content: "sys"},
			{Role: "USER", Content: "hi"},
			{Role: "Assistant", Content: "hello"},
			{Role: "tool", Content: "odd"},
		},
	}

	p := Parse(req)
	if len(p.History) != 4 {
		t.Fatalf("expected 4 history messages, got %d", len(p.History))
	}
	wantRoles := []string{prompt.RoleSystem, prompt.RoleUser, prompt.RoleAssistant, prompt.RoleUser}
	for i, want := range wantRoles {
		if p.History[i].Role != want {
			t.Fatalf("message %d role = %q, want %q", i, p.History[i].Role, want)
		}
	}
	if p.Kind != prompt.GenerationNormal {
		t.Fatalf("expected default generation kind, got %q", p.Kind)
	}
	if p.CharacterName != "" || p.Persona != "" || p.WorldInfo != "" {
		t.Fatalf("missing metadata must default to empty strings")
	}
}

func TestParseGenerationKinds(t *testing.T) {
	tests := []struct {
		raw  string
		want prompt.GenerationKind
	}{
		{"", prompt.GenerationNormal},
		{"normal", prompt.GenerationNormal},
		{"Continue", prompt.GenerationContinue},
		{"IMPERSONATE", prompt.GenerationImpersonate},
		{"swipe", prompt.GenerationSwipe},
		{"regenerate", prompt.GenerationRegenerate},
		{"quiet", prompt.GenerationQuiet},
		{"something-else", prompt.GenerationNormal},
	}
	for _, tc := range tests {
		p := Parse(ChatRequest{GenerationType: tc.raw})
		if p.Kind != tc.want {
			t.Fatalf("generation_type %q parsed to %q, want %q", tc.raw, p.Kind, tc.want)
		}
	}
}

func TestContextExposesRequestMetadata(t *testing.T) {
	p := Parse(ChatRequest{
		CharName: "  Mira ",
		UserName: "Alex",
		Persona:  "a traveler",
		Scenario: "a storm",
	})

	ctx := p.Context()
	out := macro.Expand("{{char}}/{{user}}/{{persona}}/{{scenario}}", ctx)
	if out != "Mira/Alex/a traveler/a storm" {
		t.Fatalf("unexpected context expansion: %q", out)
	}
}

func TestContextRollMacroStaysInRange(t *testing.T) {
	ctx := Parse(ChatRequest{}).Context()
	for i := 0; i < 50; i++ {
		out := macro.Expand("{{roll}}", ctx)
		n, err := strconv.Atoi(out)
		if err != nil {
			t.Fatalf("roll produced non-numeric %q", out)
		}
		if n < 1 || n > 20 {
			t.Fatalf("roll out of range: %d", n)
		}
	}
}

func TestMarkerFieldsMapping(t *testing.T) {
	p := Parse(ChatRequest{
		Persona:         "p",
		Scenario:        "s",
		WorldInfo:       "w",
		ExampleDialogue: "e",
	})
	fields := p.MarkerFields()
	if fields.Persona != "p" || fields.Scenario != "s" || fields.WorldInfo != "w" || fields.Examples != "e" {
		t.Fatalf("marker fields mismapped: %+v", fields)
	}
}
