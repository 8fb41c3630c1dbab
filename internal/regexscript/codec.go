package regexscript

import (
	"encoding/json"
	"fmt"
)

// scriptJSON is the third-party on-disk shape. Placement integers are
// 1=before-send, 2=after-receive; unknown integers survive a round-trip
// but never match a placement filter.
type scriptJSON struct {
	ID              string   `json:"id,omitempty"`
	ScriptName      string   `json:"scriptName"`
	FindRegex       string   `json:"findRegex"`
	ReplaceString   string   `json:"replaceString"`
	TrimStrings     []string `json:"trimStrings"`
	Placement       []int    `json:"placement"`
	Roles           []string `json:"roles,omitempty"`
	Disabled        bool     `json:"disabled"`
	MarkdownOnly    bool     `json:"markdownOnly"`
	SubstituteRegex int      `json:"substituteRegex"`
	MinDepth        *int     `json:"minDepth"`
	MaxDepth        *int     `json:"maxDepth"`
	Order           int      `json:"order,omitempty"`
}

// Document is the import/export envelope for a script collection.
type Document struct {
	Scripts []Script
}

// UnmarshalJSON decodes the third-party document shape, parsing each
// findRegex once at load time.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw struct {
		Scripts []scriptJSON `json:"scripts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse script document: %w", err)
	}
	d.Scripts = make([]Script, 0, len(raw.Scripts))
	for _, rs := range raw.Scripts {
		d.Scripts = append(d.Scripts, fromJSON(rs))
	}
	return nil
}

// MarshalJSON encodes back to the third-party shape. Every field listed in
// the data model round-trips losslessly, including the original findRegex
// wrapper form and null depth bounds.
func (d Document) MarshalJSON() ([]byte, error) {
	raw := struct {
		Scripts []scriptJSON `json:"scripts"`
	}{Scripts: make([]scriptJSON, 0, len(d.Scripts))}
	for _, s := range d.Scripts {
		raw.Scripts = append(raw.Scripts, toJSON(s))
	}
	return json.Marshal(raw)
}

func fromJSON(rs scriptJSON) Script {
	placements := make([]Placement, 0, len(rs.Placement))
	for _, p := range rs.Placement {
		placements = append(placements, Placement(p))
	}
	return Script{
		ID:           rs.ID,
		Name:         rs.ScriptName,
		Find:         ParsePattern(rs.FindRegex),
		Replace:      rs.ReplaceString,
		TrimStrings:  rs.TrimStrings,
		Placements:   placements,
		Roles:        rs.Roles,
		Disabled:     rs.Disabled,
		MarkdownOnly: rs.MarkdownOnly,
		Substitute:   SubstituteMode(rs.SubstituteRegex),
		MinDepth:     rs.MinDepth,
		MaxDepth:     rs.MaxDepth,
		Order:        rs.Order,
	}
}

func toJSON(s Script) scriptJSON {
	placement := make([]int, 0, len(s.Placements))
	for _, p := range s.Placements {
		placement = append(placement, int(p))
	}
	return scriptJSON{
		ID:              s.ID,
		ScriptName:      s.Name,
		FindRegex:       s.Find.Raw,
		ReplaceString:   s.Replace,
		TrimStrings:     s.TrimStrings,
		Placement:       placement,
		Roles:           s.Roles,
		Disabled:        s.Disabled,
		MarkdownOnly:    s.MarkdownOnly,
		SubstituteRegex: int(s.Substitute),
		MinDepth:        s.MinDepth,
		MaxDepth:        s.MaxDepth,
		Order:           s.Order,
	}
}

// Import parses a third-party script document.
func Import(data []byte) ([]Script, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Scripts, nil
}

// Export renders scripts back to the third-party document shape.
func Export(scripts []Script) ([]byte, error) {
	data, err := json.MarshalIndent(Document{Scripts: scripts}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal script document: %w", err)
	}
	return data, nil
}
