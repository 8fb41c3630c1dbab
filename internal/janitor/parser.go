// Package janitor normalizes the third-party chat request shape into the
// fields the macro processor and prompt builder consume. Parsing is pure:
// no I/O, and unknown or missing fields default to empty values instead of
// erroring.
package janitor

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/kayz/promptgate/internal/macro"
	"github.com/kayz/promptgate/internal/prompt"
)

// RequestMessage is one incoming conversation message.
type RequestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// ChatRequest is the incoming third-party request. Sampler fields ride
// along untouched; the character metadata feeds the macro context and the
// marker fields.
type ChatRequest struct {
	Messages    []RequestMessage `json:"messages"`
	Model       string           `json:"model,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Stream      bool             `json:"stream,omitempty"`

	CharName        string `json:"char_name,omitempty"`
	UserName        string `json:"user_name,omitempty"`
	Persona         string `json:"persona,omitempty"`
	Scenario        string `json:"scenario,omitempty"`
	WorldInfo       string `json:"world_info,omitempty"`
	ExampleDialogue string `json:"example_dialogue,omitempty"`
	GenerationType  string `json:"generation_type,omitempty"`
}

// ParsedRequest is the normalized form the pipeline consumes.
type ParsedRequest struct {
	CharacterName   string
	UserName        string
	Persona         string
	Scenario        string
	WorldInfo       string
	ExampleDialogue string
	History         []prompt.Message
	Kind            prompt.GenerationKind
	Model           string
	Temperature     *float64
	MaxTokens       int
}

// Parse normalizes a request. Message roles are lowercased and anything
// unrecognized falls back to user; the generation kind defaults to normal.
func Parse(req ChatRequest) ParsedRequest {
	history := make([]prompt.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		history = append(history, prompt.Message{
			Role:    normalizeRole(msg.Role),
			Content: msg.Content,
		})
	}

	return ParsedRequest{
		CharacterName:   strings.TrimSpace(req.CharName),
		UserName:        strings.TrimSpace(req.UserName),
		Persona:         req.Persona,
		Scenario:        req.Scenario,
		WorldInfo:       req.WorldInfo,
		ExampleDialogue: req.ExampleDialogue,
		History:         history,
		Kind:            normalizeKind(req.GenerationType),
		Model:           req.Model,
		Temperature:     req.Temperature,
		MaxTokens:       req.MaxTokens,
	}
}

func normalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case prompt.RoleSystem:
		return prompt.RoleSystem
	case prompt.RoleAssistant:
		return prompt.RoleAssistant
	default:
		return prompt.RoleUser
	}
}

func normalizeKind(kind string) prompt.GenerationKind {
	switch prompt.GenerationKind(strings.ToLower(strings.TrimSpace(kind))) {
	case prompt.GenerationContinue:
		return prompt.GenerationContinue
	case prompt.GenerationImpersonate:
		return prompt.GenerationImpersonate
	case prompt.GenerationSwipe:
		return prompt.GenerationSwipe
	case prompt.GenerationRegenerate:
		return prompt.GenerationRegenerate
	case prompt.GenerationQuiet:
		return prompt.GenerationQuiet
	default:
		return prompt.GenerationNormal
	}
}

// MarkerFields extracts the marker-resolvable fields.
func (p ParsedRequest) MarkerFields() prompt.MarkerFields {
	return prompt.MarkerFields{
		WorldInfo: p.WorldInfo,
		Persona:   p.Persona,
		Scenario:  p.Scenario,
		Examples:  p.ExampleDialogue,
	}
}

// Context builds the per-request macro context. Time and dice macros are
// function values so every expansion re-evaluates them.
func (p ParsedRequest) Context() macro.Context {
	return macro.Context{
		"char":        macro.String(p.CharacterName),
		"user":        macro.String(p.UserName),
		"persona":     macro.String(p.Persona),
		"scenario":    macro.String(p.Scenario),
		"mesExamples": macro.String(p.ExampleDialogue),
		"newline":     macro.String("\n"),
		"time": macro.Func(func() string {
			return time.Now().Format("15:04")
		}),
		"date": macro.Func(func() string {
			return time.Now().Format("January 2, 2006")
		}),
		"weekday": macro.Func(func() string {
			return time.Now().Weekday().String()
		}),
		"isodate": macro.Func(func() string {
			return time.Now().Format("2006-01-02")
		}),
		"roll": macro.Func(func() string {
			return strconv.Itoa(rand.Intn(20) + 1)
		}),
	}
}
