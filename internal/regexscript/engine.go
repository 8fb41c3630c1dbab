package regexscript

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/kayz/promptgate/internal/logger"
	"github.com/kayz/promptgate/internal/macro"
)

// DefaultMatchTimeout bounds a single script's matching time. Patterns are
// user-authored, so the engine must survive catastrophic backtracking.
const DefaultMatchTimeout = 500 * time.Millisecond

// Engine applies ordered script lists to text. It is stateless apart from
// the configured match timeout and safe for concurrent use.
type Engine struct {
	timeout time.Duration
}

// NewEngine creates an engine with the given match timeout; zero or
// negative uses DefaultMatchTimeout.
func NewEngine(timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultMatchTimeout
	}
	return &Engine{timeout: timeout}
}

// Apply runs every matching script over text in order. Scripts are
// filtered by placement, role, depth, disabled state and — when
// markdownOnly is set — whether the input text looks like markdown, then
// sorted by order (stable for ties) and folded: each script consumes the
// previous script's output. A script that fails to compile or times out is
// skipped; one bad rule never breaks message delivery.
func (e *Engine) Apply(text string, scripts []Script, ctx macro.Context, placement Placement, role string, depth int) string {
	if len(scripts) == 0 || text == "" {
		return text
	}

	markdown := looksLikeMarkdown(text)

	selected := make([]Script, 0, len(scripts))
	for _, s := range scripts {
		if s.Disabled {
			continue
		}
		if !s.appliesToPlacement(placement) {
			continue
		}
		if !s.appliesToRole(role) {
			continue
		}
		if !s.appliesToDepth(depth) {
			continue
		}
		if s.MarkdownOnly && !markdown {
			continue
		}
		selected = append(selected, s)
	}
	if len(selected) == 0 {
		return text
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Order < selected[j].Order
	})

	out := text
	for _, s := range selected {
		next, err := e.applyOne(out, s, ctx)
		if err != nil {
			logger.Warn("regex script %q skipped: %v", s.Name, err)
			continue
		}
		out = next
	}
	return out
}

func (e *Engine) applyOne(text string, s Script, ctx macro.Context) (string, error) {
	// An empty pattern is a deliberate no-op, never match-all. Checked on
	// the raw source so a macro expanding to empty also no-ops.
	if s.Find.Source == "" {
		return text, nil
	}

	source := s.Find.Source
	switch s.Substitute {
	case SubstituteRaw:
		source = macro.Expand(source, ctx)
	case SubstituteEscaped:
		source = macro.ExpandTransform(source, ctx, regexp.QuoteMeta)
	}

	re, err := regexp2.Compile(source, optionsFromFlags(s.Find.Flags))
	if err != nil {
		return "", fmt.Errorf("compile %q: %w", source, err)
	}
	re.MatchTimeout = e.timeout

	out, err := re.ReplaceFunc(text, func(m regexp2.Match) string {
		return expandReplacement(s, m)
	}, -1, -1)
	if err != nil {
		return "", fmt.Errorf("replace: %w", err)
	}
	return out, nil
}

var replacementToken = regexp.MustCompile(`\{\{match\}\}|\$[1-9]`)

// expandReplacement renders a script's replacement template for one match:
// {{match}} binds to the trimmed matched text, $1..$9 to the trimmed
// capture groups. A group that did not participate substitutes empty. All
// tokens expand in a single pass over the template, so substituted text
// containing "$" plus a digit is carried verbatim, never re-interpreted as
// a back-reference.
func expandReplacement(s Script, m regexp2.Match) string {
	return replacementToken.ReplaceAllStringFunc(s.Replace, func(token string) string {
		if token == "{{match}}" {
			return applyTrims(m.String(), s.TrimStrings)
		}
		n := int(token[1] - '0')
		group := m.GroupByNumber(n)
		if group == nil || len(group.Captures) == 0 {
			return ""
		}
		return applyTrims(group.String(), s.TrimStrings)
	})
}

// applyTrims strips every trim string from the captured text, in list
// order. List order is the documented tie-break when trim strings overlap.
func applyTrims(text string, trims []string) string {
	for _, trim := range trims {
		if trim == "" {
			continue
		}
		text = strings.ReplaceAll(text, trim, "")
	}
	return text
}

func optionsFromFlags(flags string) regexp2.RegexOptions {
	opts := regexp2.None
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		case 'u':
			opts |= regexp2.Unicode
		case 'x':
			opts |= regexp2.IgnorePatternWhitespace
		}
		// "g" and "y" carry no compile-time meaning here: replacement is
		// always global across the text, and sticky matching does not
		// apply to whole-text rewrites.
	}
	return opts
}

var markdownHeading = regexp.MustCompile(`(?m)^\s*#`)

// looksLikeMarkdown reports whether text contains markdown-looking syntax:
// emphasis or code markers anywhere, or a heading at line start.
func looksLikeMarkdown(text string) bool {
	return strings.ContainsAny(text, "*_`") || markdownHeading.MatchString(text)
}
