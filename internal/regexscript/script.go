// Package regexscript applies user-authored find/replace rules to message
// text, with filtering by placement, role and conversation depth. Scripts
// follow the third-party on-disk convention so imported rule sets behave
// the way their authors expect.
package regexscript

import (
	"strings"
)

// Placement selects which direction a script runs on. The integer values
// match the third-party on-disk convention.
type Placement int

const (
	PlacementBeforeSend   Placement = 1
	PlacementAfterReceive Placement = 2
)

// SubstituteMode controls macro expansion inside the find pattern.
type SubstituteMode int

const (
	// SubstituteNone leaves the pattern untouched.
	SubstituteNone SubstituteMode = 0
	// SubstituteRaw expands macros textually before compiling.
	SubstituteRaw SubstituteMode = 1
	// SubstituteEscaped expands macros and escapes every regex
	// metacharacter in each expanded value, so a macro value containing
	// "." or "(" matches literally.
	SubstituteEscaped SubstituteMode = 2
)

// Pattern is a find pattern parsed once at script-load time. Input wrapped
// as /source/flags keeps its flags; any other input is taken whole as the
// pattern source with no flags. Raw preserves the original string so
// export round-trips losslessly.
type Pattern struct {
	Raw    string
	Source string
	Flags  string
}

// ParsePattern splits the wrapped /pattern/flags form. The wrapper is only
// honored when the trailing flags are valid; otherwise the entire input is
// the pattern source.
func ParsePattern(raw string) Pattern {
	if len(raw) >= 2 && strings.HasPrefix(raw, "/") {
		if idx := strings.LastIndex(raw, "/"); idx > 0 {
			flags := raw[idx+1:]
			if validFlags(flags) {
				return Pattern{Raw: raw, Source: raw[1:idx], Flags: flags}
			}
		}
	}
	return Pattern{Raw: raw, Source: raw}
}

func validFlags(flags string) bool {
	seen := make(map[rune]struct{}, len(flags))
	for _, r := range flags {
		if !strings.ContainsRune("gimsuxy", r) {
			return false
		}
		if _, dup := seen[r]; dup {
			return false
		}
		seen[r] = struct{}{}
	}
	return true
}

// Script is a single rewrite rule. User-authored, persisted, read-only
// during transformation.
type Script struct {
	ID           string
	Name         string
	Find         Pattern
	Replace      string
	TrimStrings  []string
	Placements   []Placement
	Roles        []string // empty means the user+assistant default
	Disabled     bool
	MarkdownOnly bool
	Substitute   SubstituteMode
	MinDepth     *int // nil = unbounded
	MaxDepth     *int // nil = unbounded
	Order        int
}

// defaultRoles applies when a script declares no role filter.
var defaultRoles = []string{"user", "assistant"}

func (s Script) appliesToRole(role string) bool {
	roles := s.Roles
	if len(roles) == 0 {
		roles = defaultRoles
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func (s Script) appliesToPlacement(p Placement) bool {
	for _, candidate := range s.Placements {
		if candidate == p {
			return true
		}
	}
	return false
}

// appliesToDepth checks the inclusive min/max bounds; a nil bound is
// unbounded on that side.
func (s Script) appliesToDepth(depth int) bool {
	if s.MinDepth != nil && depth < *s.MinDepth {
		return false
	}
	if s.MaxDepth != nil && depth > *s.MaxDepth {
		return false
	}
	return true
}
