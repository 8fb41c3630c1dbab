// Package hub wires the transformation pipeline end to end and exposes it
// over HTTP: parse the incoming request, rebuild the message list from the
// active preset, forward to the backend, and rewrite the response.
package hub

import (
	"errors"
	"fmt"

	"github.com/kayz/promptgate/internal/janitor"
	"github.com/kayz/promptgate/internal/logger"
	"github.com/kayz/promptgate/internal/macro"
	"github.com/kayz/promptgate/internal/persist"
	"github.com/kayz/promptgate/internal/preset"
	"github.com/kayz/promptgate/internal/prompt"
	"github.com/kayz/promptgate/internal/regexscript"
)

// Storage is the key-value collaborator holding preset and script
// documents.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// ErrPresetNotFound reports a missing preset document. This is the one
// user-visible fatal condition; everything inside the transform degrades
// instead of failing.
var ErrPresetNotFound = errors.New("preset not found")

// Pipeline runs the pure transformation for one request. The preset cache
// is explicit and caller-owned; the transform itself keeps no state.
type Pipeline struct {
	builder *prompt.Builder
	engine  *regexscript.Engine
	cache   *preset.Cache
	storage Storage
}

// NewPipeline assembles a pipeline over the given engine, cache and
// storage.
func NewPipeline(engine *regexscript.Engine, cache *preset.Cache, storage Storage) *Pipeline {
	return &Pipeline{
		builder: prompt.NewBuilder(engine),
		engine:  engine,
		cache:   cache,
		storage: storage,
	}
}

// LoadPreset fetches a preset by name, consulting the cache first.
func (p *Pipeline) LoadPreset(name string) (*preset.Preset, error) {
	if ps, ok := p.cache.Get(name); ok {
		return ps, nil
	}

	raw, ok, err := p.storage.Get(persist.PresetKey(name))
	if err != nil {
		return nil, fmt.Errorf("load preset %q: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
	}

	ps, err := preset.Load([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("parse preset %q: %w", name, err)
	}
	if ps.Name == "" {
		ps.Name = name
	}

	p.cache.Put(name, ps)
	return ps, nil
}

// GlobalScripts loads the shared script collection. A missing or
// unreadable collection degrades to none; script trouble never blocks
// message delivery.
func (p *Pipeline) GlobalScripts() []regexscript.Script {
	raw, ok, err := p.storage.Get(persist.ScriptsKey)
	if err != nil || !ok {
		if err != nil {
			logger.Warn("global scripts unavailable: %v", err)
		}
		return nil
	}
	scripts, err := regexscript.Import([]byte(raw))
	if err != nil {
		logger.Warn("global scripts unparsable, ignoring: %v", err)
		return nil
	}
	return scripts
}

func (p *Pipeline) scriptsFor(ps *preset.Preset) []regexscript.Script {
	global := p.GlobalScripts()
	if len(global) == 0 {
		return ps.Scripts
	}
	merged := make([]regexscript.Script, 0, len(ps.Scripts)+len(global))
	merged = append(merged, ps.Scripts...)
	merged = append(merged, global...)
	return merged
}

// TransformResult carries the built message list plus the per-request
// context needed to rewrite the eventual response.
type TransformResult struct {
	Messages []prompt.Message
	Context  macro.Context
	Parsed   janitor.ParsedRequest
	Sampler  preset.Sampler
}

// Transform runs the outbound half of the pipeline: parse, build macro
// context, assemble the message list, and squash consecutive system
// messages. It performs no I/O beyond reading stored script documents.
func (p *Pipeline) Transform(req janitor.ChatRequest, ps *preset.Preset) TransformResult {
	parsed := janitor.Parse(req)
	ctx := parsed.Context()

	messages := p.builder.Build(prompt.BuildInput{
		Blocks:  ps.Blocks,
		Order:   ps.Order(preset.DefaultCharacterID),
		History: parsed.History,
		Kind:    parsed.Kind,
		Fields:  parsed.MarkerFields(),
		Context: ctx,
		Scripts: p.scriptsFor(ps),
	})
	messages = prompt.SquashSystemMessages(messages)

	return TransformResult{
		Messages: messages,
		Context:  ctx,
		Parsed:   parsed,
		Sampler:  effectiveSampler(ps.Sampler, parsed),
	}
}

// ApplyResponse runs the inbound half: after-receive scripts over the
// assistant text, at depth 0.
func (p *Pipeline) ApplyResponse(text string, ps *preset.Preset, ctx macro.Context) string {
	return p.engine.Apply(text, p.scriptsFor(ps), ctx,
		regexscript.PlacementAfterReceive, prompt.RoleAssistant, 0)
}

// effectiveSampler starts from the preset and fills gaps from the
// request; the preset is the hub's authority when both specify a value.
func effectiveSampler(s preset.Sampler, parsed janitor.ParsedRequest) preset.Sampler {
	if s.Temperature == nil && parsed.Temperature != nil {
		s.Temperature = parsed.Temperature
	}
	if s.MaxTokens == 0 && parsed.MaxTokens > 0 {
		s.MaxTokens = parsed.MaxTokens
	}
	return s
}
