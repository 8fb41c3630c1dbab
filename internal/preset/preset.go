// Package preset holds the user-authored preset document: prompt blocks,
// the prompt order, regex scripts, and sampler parameters.
package preset

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kayz/promptgate/internal/logger"
	"github.com/kayz/promptgate/internal/prompt"
	"github.com/kayz/promptgate/internal/regexscript"
)

// DefaultCharacterID is the sentinel scope every prompt order uses. The
// third-party format reserves this value for "applies to all characters".
const DefaultCharacterID = 100001

// Sampler carries generation parameters passed through to the backend.
type Sampler struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

// blockJSON is the on-disk prompt block shape.
type blockJSON struct {
	Identifier        string   `json:"identifier"`
	Name              string   `json:"name,omitempty"`
	Role              string   `json:"role,omitempty"`
	Content           string   `json:"content,omitempty"`
	Marker            bool     `json:"marker,omitempty"`
	InjectionPosition string   `json:"injection_position,omitempty"`
	InjectionDepth    int      `json:"injection_depth,omitempty"`
	InjectionOrder    int      `json:"injection_order,omitempty"`
	Triggers          []string `json:"triggers,omitempty"`
}

type orderEntryJSON struct {
	Identifier string `json:"identifier"`
	Enabled    bool   `json:"enabled"`
}

type orderJSON struct {
	CharacterID int              `json:"character_id"`
	Order       []orderEntryJSON `json:"order"`
}

// Preset is a parsed preset document.
type Preset struct {
	ID      string
	Name    string
	Blocks  []prompt.Block
	orders  map[int][]prompt.OrderEntry
	Scripts []regexscript.Script
	Sampler Sampler
}

type presetJSON struct {
	ID           string            `json:"id,omitempty"`
	Name         string            `json:"name,omitempty"`
	PromptBlocks []blockJSON       `json:"promptBlocks"`
	PromptOrder  []orderJSON       `json:"promptOrder"`
	RegexScripts []json.RawMessage `json:"regexScripts,omitempty"`
	Sampler      Sampler           `json:"sampler"`
}

// markerKinds maps the well-known marker identifiers to their kinds. An
// identifier outside this set loads as a plain no-content placeholder with
// a warning, tolerating documents from newer ecosystem versions.
var markerKinds = map[string]prompt.MarkerKind{
	"chatHistory":        prompt.MarkerHistory,
	"worldInfo":          prompt.MarkerWorldInfo,
	"personaDescription": prompt.MarkerPersona,
	"scenario":           prompt.MarkerScenario,
	"dialogueExamples":   prompt.MarkerExamples,
}

// Load parses and validates a preset document. Validation rejects
// structural problems (duplicate identifiers, unknown roles or positions)
// at load time so the request path never sees them.
func Load(data []byte) (*Preset, error) {
	var raw presetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse preset: %w", err)
	}

	p := &Preset{
		ID:      raw.ID,
		Name:    raw.Name,
		orders:  make(map[int][]prompt.OrderEntry, len(raw.PromptOrder)),
		Sampler: raw.Sampler,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	seen := make(map[string]struct{}, len(raw.PromptBlocks))
	for _, rb := range raw.PromptBlocks {
		block, err := parseBlock(rb)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[block.Identifier]; dup {
			return nil, fmt.Errorf("duplicate block identifier %q", block.Identifier)
		}
		seen[block.Identifier] = struct{}{}
		p.Blocks = append(p.Blocks, block)
	}

	for _, ro := range raw.PromptOrder {
		entries := make([]prompt.OrderEntry, 0, len(ro.Order))
		for _, e := range ro.Order {
			entries = append(entries, prompt.OrderEntry{Identifier: e.Identifier, Enabled: e.Enabled})
		}
		p.orders[ro.CharacterID] = entries
	}

	if len(raw.RegexScripts) > 0 {
		payload, err := json.Marshal(map[string][]json.RawMessage{"scripts": raw.RegexScripts})
		if err != nil {
			return nil, fmt.Errorf("re-encode regex scripts: %w", err)
		}
		scripts, err := regexscript.Import(payload)
		if err != nil {
			return nil, fmt.Errorf("parse regex scripts: %w", err)
		}
		p.Scripts = scripts
	}

	return p, nil
}

func parseBlock(rb blockJSON) (prompt.Block, error) {
	id := strings.TrimSpace(rb.Identifier)
	if id == "" {
		return prompt.Block{}, fmt.Errorf("block identifier is required")
	}

	role := rb.Role
	if role == "" {
		role = prompt.RoleSystem
	}
	switch role {
	case prompt.RoleSystem, prompt.RoleUser, prompt.RoleAssistant:
	default:
		return prompt.Block{}, fmt.Errorf("block %s has unknown role %q", id, rb.Role)
	}

	position := prompt.Position(rb.InjectionPosition)
	if position == "" {
		position = prompt.PositionRelative
	}
	switch position {
	case prompt.PositionRelative, prompt.PositionInChat:
	default:
		return prompt.Block{}, fmt.Errorf("block %s has unknown injection_position %q", id, rb.InjectionPosition)
	}

	kind := prompt.MarkerNone
	if rb.Marker {
		known, ok := markerKinds[id]
		if !ok {
			logger.Warn("preset block %q is an unknown marker, treating as no-content placeholder", id)
		}
		kind = known
	}

	triggers := make([]prompt.GenerationKind, 0, len(rb.Triggers))
	for _, t := range rb.Triggers {
		triggers = append(triggers, prompt.GenerationKind(strings.ToLower(strings.TrimSpace(t))))
	}

	return prompt.Block{
		Identifier:     id,
		Role:           role,
		Content:        rb.Content,
		Marker:         kind,
		Position:       position,
		Depth:          rb.InjectionDepth,
		InjectionOrder: rb.InjectionOrder,
		Triggers:       triggers,
	}, nil
}

// Order returns the prompt order scoped to the character-id sentinel,
// falling back to the default scope when the specific one is absent.
func (p *Preset) Order(characterID int) []prompt.OrderEntry {
	if entries, ok := p.orders[characterID]; ok {
		return entries
	}
	return p.orders[DefaultCharacterID]
}

// Encode renders the preset back to its document form.
func (p *Preset) Encode() ([]byte, error) {
	raw := presetJSON{
		ID:      p.ID,
		Name:    p.Name,
		Sampler: p.Sampler,
	}

	for _, block := range p.Blocks {
		raw.PromptBlocks = append(raw.PromptBlocks, encodeBlock(block))
	}
	for characterID, entries := range p.orders {
		ro := orderJSON{CharacterID: characterID}
		for _, e := range entries {
			ro.Order = append(ro.Order, orderEntryJSON{Identifier: e.Identifier, Enabled: e.Enabled})
		}
		raw.PromptOrder = append(raw.PromptOrder, ro)
	}

	if len(p.Scripts) > 0 {
		doc, err := json.Marshal(regexscript.Document{Scripts: p.Scripts})
		if err != nil {
			return nil, fmt.Errorf("encode regex scripts: %w", err)
		}
		var envelope struct {
			Scripts []json.RawMessage `json:"scripts"`
		}
		if err := json.Unmarshal(doc, &envelope); err != nil {
			return nil, fmt.Errorf("re-split regex scripts: %w", err)
		}
		raw.RegexScripts = envelope.Scripts
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal preset: %w", err)
	}
	return data, nil
}

func encodeBlock(block prompt.Block) blockJSON {
	triggers := make([]string, 0, len(block.Triggers))
	for _, t := range block.Triggers {
		triggers = append(triggers, string(t))
	}
	return blockJSON{
		Identifier:        block.Identifier,
		Role:              block.Role,
		Content:           block.Content,
		Marker:            block.Marker != prompt.MarkerNone || isMarkerIdentifier(block.Identifier),
		InjectionPosition: string(block.Position),
		InjectionDepth:    block.Depth,
		InjectionOrder:    block.InjectionOrder,
		Triggers:          triggers,
	}
}

func isMarkerIdentifier(id string) bool {
	_, ok := markerKinds[id]
	return ok
}
