package preset

import (
	"testing"

	"github.com/kayz/promptgate/internal/prompt"
	"github.com/kayz/promptgate/internal/regexscript"
)

const samplePreset = `{
  "name": "roleplay",
  "promptBlocks": [
    {"identifier": "main", "role": "system", "content": "You are {{char}}."},
    {"identifier": "chatHistory", "marker": true},
    {"identifier": "worldInfo", "marker": true},
    {"identifier": "note", "role": "system", "content": "stay terse",
     "injection_position": "in-chat", "injection_depth": 1, "injection_order": 5},
    {"identifier": "quietHelper", "role": "system", "content": "quiet only", "triggers": ["QUIET"]}
  ],
  "promptOrder": [
    {"character_id": 100001, "order": [
      {"identifier": "main", "enabled": true},
      {"identifier": "worldInfo", "enabled": true},
      {"identifier": "chatHistory", "enabled": true},
      {"identifier": "note", "enabled": true},
      {"identifier": "quietHelper", "enabled": false}
    ]}
  ],
  "regexScripts": [
    {"scriptName": "swap", "findRegex": "/a/g", "replaceString": "b",
     "trimStrings": [], "placement": [1], "minDepth": null, "maxDepth": null}
  ],
  "sampler": {"temperature": 0.7, "max_tokens": 400}
}`

func TestLoadParsesDocument(t *testing.T) {
	p, err := Load([]byte(samplePreset))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if p.Name != "roleplay" {
		t.Fatalf("unexpected name %q", p.Name)
	}
	if p.ID == "" {
		t.Fatalf("expected generated ID for document without one")
	}
	if len(p.Blocks) != 5 {
		t.Fatalf("expected 5 blocks, got %d", len(p.Blocks))
	}

	byID := make(map[string]prompt.Block)
	for _, b := range p.Blocks {
		byID[b.Identifier] = b
	}
	if byID["chatHistory"].Marker != prompt.MarkerHistory {
		t.Fatalf("chatHistory marker kind = %v", byID["chatHistory"].Marker)
	}
	if byID["worldInfo"].Marker != prompt.MarkerWorldInfo {
		t.Fatalf("worldInfo marker kind = %v", byID["worldInfo"].Marker)
	}
	if byID["note"].Position != prompt.PositionInChat || byID["note"].Depth != 1 || byID["note"].InjectionOrder != 5 {
		t.Fatalf("note block injection fields wrong: %+v", byID["note"])
	}
	if len(byID["quietHelper"].Triggers) != 1 || byID["quietHelper"].Triggers[0] != prompt.GenerationQuiet {
		t.Fatalf("triggers not normalized: %+v", byID["quietHelper"].Triggers)
	}

	order := p.Order(DefaultCharacterID)
	if len(order) != 5 || order[0].Identifier != "main" || order[4].Enabled {
		t.Fatalf("unexpected order: %+v", order)
	}

	if len(p.Scripts) != 1 || p.Scripts[0].Name != "swap" {
		t.Fatalf("regex scripts not parsed: %+v", p.Scripts)
	}
	if p.Scripts[0].Find.Flags != "g" {
		t.Fatalf("script pattern not parsed at load: %+v", p.Scripts[0].Find)
	}

	if p.Sampler.Temperature == nil || *p.Sampler.Temperature != 0.7 || p.Sampler.MaxTokens != 400 {
		t.Fatalf("sampler not carried: %+v", p.Sampler)
	}
}

func TestLoadRejectsDuplicateIdentifiers(t *testing.T) {
	doc := `{"promptBlocks":[{"identifier":"x","content":"a"},{"identifier":"x","content":"b"}],"promptOrder":[],"sampler":{}}`
	if _, err := Load([]byte(doc)); err == nil {
		t.Fatalf("expected duplicate identifier error")
	}
}

func TestLoadRejectsUnknownRoleAndPosition(t *testing.T) {
	tests := []string{
		`{"promptBlocks":[{"identifier":"x","role":"wizard"}],"promptOrder":[],"sampler":{}}`,
		`{"promptBlocks":[{"identifier":"x","injection_position":"sideways"}],"promptOrder":[],"sampler":{}}`,
	}
	for _, doc := range tests {
		if _, err := Load([]byte(doc)); err == nil {
			t.Fatalf("expected validation error for %s", doc)
		}
	}
}

func TestLoadUnknownMarkerBecomesPlaceholder(t *testing.T) {
	doc := `{"promptBlocks":[{"identifier":"futureThing","marker":true}],"promptOrder":[],"sampler":{}}`
	p, err := Load([]byte(doc))
	if err != nil {
		t.Fatalf("unknown marker must not fail load: %v", err)
	}
	if p.Blocks[0].Marker != prompt.MarkerNone {
		t.Fatalf("unknown marker should degrade to placeholder, got %v", p.Blocks[0].Marker)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	p, err := Load([]byte(samplePreset))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	data, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	again, err := Load(data)
	if err != nil {
		t.Fatalf("re-Load failed: %v", err)
	}
	if len(again.Blocks) != len(p.Blocks) || len(again.Scripts) != len(p.Scripts) {
		t.Fatalf("round trip lost blocks or scripts")
	}
	if again.Order(DefaultCharacterID) == nil {
		t.Fatalf("round trip lost the prompt order")
	}
	if again.Scripts[0].Find.Raw != "/a/g" {
		t.Fatalf("round trip lost the raw pattern form: %q", again.Scripts[0].Find.Raw)
	}
}

func TestOrderFallsBackToSentinel(t *testing.T) {
	p, err := Load([]byte(samplePreset))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := p.Order(42); len(got) != 5 {
		t.Fatalf("expected sentinel fallback, got %+v", got)
	}
}

func TestScriptsCompatibleWithEngine(t *testing.T) {
	p, err := Load([]byte(samplePreset))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	e := regexscript.NewEngine(0)
	out := e.Apply("banana", p.Scripts, nil, regexscript.PlacementBeforeSend, "user", 0)
	if out != "bbnbnb" {
		t.Fatalf("preset scripts not usable by engine, got %q", out)
	}
}
