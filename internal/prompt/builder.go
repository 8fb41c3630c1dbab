package prompt

import (
	"sort"
	"strings"

	"github.com/kayz/promptgate/internal/logger"
	"github.com/kayz/promptgate/internal/macro"
	"github.com/kayz/promptgate/internal/regexscript"
)

// BuildInput is everything one build needs. All fields are read-only
// during the build; the builder never mutates them.
type BuildInput struct {
	Blocks  []Block
	Order   []OrderEntry
	History []Message // chronological, oldest first
	Kind    GenerationKind
	Fields  MarkerFields
	Context macro.Context
	Scripts []regexscript.Script
}

// Builder assembles the final ordered message list. It holds only the
// regex engine and is safe for concurrent use.
type Builder struct {
	engine *regexscript.Engine
}

// NewBuilder creates a Builder over the given script engine.
func NewBuilder(engine *regexscript.Engine) *Builder {
	return &Builder{engine: engine}
}

// Build resolves the enabled, ordered block list and emits the final
// message sequence: relative blocks in list order, with the history marker
// expanding to the conversation after in-chat injection and before-send
// script rewriting.
func (b *Builder) Build(in BuildInput) []Message {
	if in.Kind == "" {
		in.Kind = GenerationNormal
	}

	blocks := resolveOrder(in.Blocks, in.Order)

	var relative, inChat []Block
	for _, block := range blocks {
		if !block.appliesTo(in.Kind) {
			continue
		}
		if block.Position == PositionInChat {
			// Markers carry no literal content, so an in-chat marker has
			// nothing to splice.
			if block.Marker == MarkerNone {
				inChat = append(inChat, block)
			}
			continue
		}
		relative = append(relative, block)
	}

	history := b.positionHistory(in, inChat)

	out := make([]Message, 0, len(relative)+len(history))
	for _, block := range relative {
		if block.Marker == MarkerHistory {
			out = append(out, history...)
			continue
		}
		msg := resolveRelative(block, in)
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// resolveOrder maps the prompt order onto the block set. A block absent
// from or disabled in the order is excluded even if defined; an enabled
// identifier with no matching block is skipped, tolerating stale presets
// after block deletion.
func resolveOrder(blocks []Block, order []OrderEntry) []Block {
	byID := make(map[string]Block, len(blocks))
	for _, block := range blocks {
		byID[block.Identifier] = block
	}

	resolved := make([]Block, 0, len(order))
	for _, entry := range order {
		if !entry.Enabled {
			continue
		}
		block, ok := byID[entry.Identifier]
		if !ok {
			logger.Debug("prompt order references unknown block %q, skipping", entry.Identifier)
			continue
		}
		resolved = append(resolved, block)
	}
	return resolved
}

// resolveRelative turns one relative block into a message. Literal blocks
// expand their content; marker blocks resolve through the closed marker
// set. A marker with no data resolves to empty and is dropped by the
// caller rather than erroring.
func resolveRelative(block Block, in BuildInput) Message {
	content := block.Content
	if block.Marker != MarkerNone {
		content = resolveMarker(block.Marker, in.Fields)
	}
	return Message{Role: block.Role, Content: macro.Expand(content, in.Context)}
}

func resolveMarker(kind MarkerKind, fields MarkerFields) string {
	switch kind {
	case MarkerWorldInfo:
		return fields.WorldInfo
	case MarkerPersona:
		return fields.Persona
	case MarkerScenario:
		return fields.Scenario
	case MarkerExamples:
		return fields.Examples
	default:
		// MarkerHistory is handled by the build loop; MarkerNone never
		// reaches here.
		return ""
	}
}

// positionHistory splices in-chat blocks into the conversation and runs
// every positioned message through the before-send scripts with its final
// role and depth.
func (b *Builder) positionHistory(in BuildInput, inChat []Block) []Message {
	merged := injectInChat(in.History, inChat, in.Context)

	out := make([]Message, 0, len(merged))
	for i, msg := range merged {
		depth := len(merged) - 1 - i
		msg.Content = b.engine.Apply(msg.Content, in.Scripts, in.Context,
			regexscript.PlacementBeforeSend, msg.Role, depth)
		out = append(out, msg)
	}
	return out
}

// injectInChat inserts in-chat blocks at their depth offsets. Depth 0 sits
// immediately before the most recent message; a depth beyond the history
// length is clamped to before the oldest message. Blocks sharing a depth
// keep injection_order ascending, then original list order.
func injectInChat(history []Message, blocks []Block, ctx macro.Context) []Message {
	if len(blocks) == 0 {
		return history
	}

	type slot struct {
		block Block
		index int // insertion index into history
		seq   int // original list position
	}
	slots := make([]slot, 0, len(blocks))
	for i, block := range blocks {
		index := len(history) - 1 - block.Depth
		if index < 0 {
			index = 0
		}
		slots = append(slots, slot{block: block, index: index, seq: i})
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].index != slots[j].index {
			return slots[i].index < slots[j].index
		}
		if slots[i].block.InjectionOrder != slots[j].block.InjectionOrder {
			return slots[i].block.InjectionOrder < slots[j].block.InjectionOrder
		}
		return slots[i].seq < slots[j].seq
	})

	merged := make([]Message, 0, len(history)+len(blocks))
	next := 0
	for i := 0; i <= len(history); i++ {
		for next < len(slots) && slots[next].index == i {
			block := slots[next].block
			next++
			content := macro.Expand(block.Content, ctx)
			if strings.TrimSpace(content) == "" {
				continue
			}
			merged = append(merged, Message{Role: block.Role, Content: content})
		}
		if i < len(history) {
			merged = append(merged, history[i])
		}
	}
	return merged
}
