// Package prompt assembles the ordered message list sent to the model
// from a preset's prompt blocks, the incoming conversation, and marker
// blocks resolved to dynamic content.
package prompt

// Message roles. Plain strings to match the wire shape end to end.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is the unit produced by the builder and consumed by the backend
// transport.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Position says where a block lands: appended in main-prompt order, or
// spliced into the conversation history at a depth offset.
type Position string

const (
	PositionRelative Position = "relative"
	PositionInChat   Position = "in-chat"
)

// MarkerKind is the closed set of dynamic placeholders. Keeping this an
// enum makes an unhandled kind a visible gap in resolveMarker instead of a
// silent empty-string fallback.
type MarkerKind int

const (
	MarkerNone MarkerKind = iota
	MarkerHistory
	MarkerWorldInfo
	MarkerPersona
	MarkerScenario
	MarkerExamples
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerNone:
		return "none"
	case MarkerHistory:
		return "history"
	case MarkerWorldInfo:
		return "world-info"
	case MarkerPersona:
		return "persona"
	case MarkerScenario:
		return "scenario"
	case MarkerExamples:
		return "examples"
	default:
		return "unknown"
	}
}

// GenerationKind is the request's generation trigger.
type GenerationKind string

const (
	GenerationNormal      GenerationKind = "normal"
	GenerationContinue    GenerationKind = "continue"
	GenerationImpersonate GenerationKind = "impersonate"
	GenerationSwipe       GenerationKind = "swipe"
	GenerationRegenerate  GenerationKind = "regenerate"
	GenerationQuiet       GenerationKind = "quiet"
)

// Block is a named, role-tagged unit of prompt content, defined at
// preset-authoring time and read-only at request time.
type Block struct {
	Identifier     string
	Role           string
	Content        string
	Marker         MarkerKind // MarkerNone for literal content blocks
	Position       Position
	Depth          int // in-chat only: 0 = immediately before the last message
	InjectionOrder int // tie-break among in-chat blocks sharing a depth
	Triggers       []GenerationKind
}

// appliesTo reports whether the block is included for the given generation
// kind. An empty trigger set means always included.
func (b Block) appliesTo(kind GenerationKind) bool {
	if len(b.Triggers) == 0 {
		return true
	}
	for _, trigger := range b.Triggers {
		if trigger == kind {
			return true
		}
	}
	return false
}

// OrderEntry is one row of a preset's prompt order: inclusion plus
// sequence for a block identifier.
type OrderEntry struct {
	Identifier string
	Enabled    bool
}

// MarkerFields carries the parsed-request data that non-history markers
// resolve to. Absent fields are empty strings, never errors.
type MarkerFields struct {
	WorldInfo string
	Persona   string
	Scenario  string
	Examples  string
}
