package querylang

import (
	"fmt"
	"strings"
)

// Selection is a parsed select list. Embeds name related resources to load with
// their own column selection.
type Selection struct {
	All     bool
	Columns []string
	Embeds  []Embed
}

type Embed struct {
	Name      string
	Selection Selection
}

func ParseSelect(s string) (Selection, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return Selection{All: true}, nil
	}

	parts, err := splitTop(s)
	if err != nil {
		return Selection{}, err
	}

	var sel Selection
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "*" {
			sel.All = true
			continue
		}

		open := strings.IndexByte(p, '(')
		if open < 0 {
			if strings.ContainsAny(p, ")\" ") {
				return Selection{}, fmt.Errorf("%w: bad column %q", ErrSyntax, p)
			}
			sel.Columns = append(sel.Columns, p)
			continue
		}

		if !strings.HasSuffix(p, ")") || open == 0 {
			return Selection{}, fmt.Errorf("%w: bad embed %q", ErrSyntax, p)
		}
		inner, err := ParseSelect(p[open+1 : len(p)-1])
		if err != nil {
			return Selection{}, err
		}
		sel.Embeds = append(sel.Embeds, Embed{Name: strings.TrimSpace(p[:open]), Selection: inner})
	}
	return sel, nil
}

// Project keeps only the selected keys of row, recursing into embedded rows.
func (s Selection) Project(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	if s.All {
		for k, v := range row {
			out[k] = v
		}
	} else {
		for _, c := range s.Columns {
			if v, ok := row[c]; ok {
				out[c] = v
			}
		}
	}

	for _, e := range s.Embeds {
		v, ok := row[e.Name]
		if !ok {
			continue
		}
		out[e.Name] = e.Selection.projectValue(v)
	}
	return out
}

func (s Selection) projectValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return s.Project(val)
	case []any:
		res := make([]any, len(val))
		for i, item := range val {
			res[i] = s.projectValue(item)
		}
		return res
	default:
		return v
	}
}
