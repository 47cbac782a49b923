// Package querylang parses the filter and select expressions accepted by the table
// endpoints, e.g. `name.ilike.%brake%,OEM_number.ilike.%brake%` and
// `id,name,supplier(name,email)`.
package querylang

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

var ErrSyntax = errors.New("query syntax")

type Op string

const (
	OpEq    Op = "eq"
	OpNeq   Op = "neq"
	OpGt    Op = "gt"
	OpGte   Op = "gte"
	OpLt    Op = "lt"
	OpLte   Op = "lte"
	OpLike  Op = "like"
	OpILike Op = "ilike"
)

var comparisons = map[Op]string{
	OpEq:  "=",
	OpNeq: "<>",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

func (o Op) valid() bool {
	_, ok := comparisons[o]
	return ok || o == OpLike || o == OpILike
}

func (o Op) pattern() bool {
	return o == OpLike || o == OpILike
}

type Term struct {
	Column string
	Op     Op
	Value  string
}

func Eq(column string, value any) Term {
	return Term{Column: column, Op: OpEq, Value: fmt.Sprint(value)}
}

// ILike matches text anywhere in column, ignoring case.
func ILike(column, text string) Term {
	return Term{Column: column, Op: OpILike, Value: "%" + text + "%"}
}

func (t Term) String() string {
	return t.Column + "." + string(t.Op) + "." + quoteValue(t.Value)
}

// Or renders terms as one OR-combined filter expression.
func Or(terms ...Term) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

// SearchAny builds an OR of case-insensitive substring matches of text over columns.
func SearchAny(text string, columns ...string) string {
	terms := make([]Term, len(columns))
	for i, c := range columns {
		terms[i] = ILike(c, text)
	}
	return Or(terms...)
}

func quoteValue(v string) string {
	if v == "" || !strings.ContainsAny(v, ",\"()\\") && strings.TrimSpace(v) == v {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

func ParseFilter(expr string) ([]Term, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	raw, err := splitTop(expr)
	if err != nil {
		return nil, err
	}

	terms := make([]Term, 0, len(raw))
	for _, r := range raw {
		t, err := parseTerm(r)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, nil
}

func parseTerm(s string) (Term, error) {
	s = strings.TrimSpace(s)
	col, rest, ok := strings.Cut(s, ".")
	if !ok || col == "" {
		return Term{}, fmt.Errorf("%w: term %q needs column.operator.value", ErrSyntax, s)
	}
	op, value, ok := strings.Cut(rest, ".")
	if !ok {
		return Term{}, fmt.Errorf("%w: term %q needs column.operator.value", ErrSyntax, s)
	}
	if !Op(op).valid() {
		return Term{}, fmt.Errorf("%w: unknown operator %q", ErrSyntax, op)
	}

	v, err := unquote(value)
	if err != nil {
		return Term{}, err
	}
	return Term{Column: col, Op: Op(op), Value: v}, nil
}

func unquote(v string) (string, error) {
	if !strings.HasPrefix(v, `"`) {
		return v, nil
	}
	if len(v) < 2 || !strings.HasSuffix(v, `"`) {
		return "", fmt.Errorf("%w: unterminated quoted value %s", ErrSyntax, v)
	}

	var b strings.Builder
	body := v[1 : len(v)-1]
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			i++
			c = body[i]
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

// splitTop splits on commas that are outside quotes and parentheses.
func splitTop(s string) ([]string, error) {
	var (
		parts   []string
		depth   int
		quoted  bool
		escaped bool
		start   int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && quoted:
			escaped = true
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced parentheses", ErrSyntax)
			}
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if quoted {
		return nil, fmt.Errorf("%w: unterminated quote", ErrSyntax)
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced parentheses", ErrSyntax)
	}
	parts = append(parts, s[start:])

	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("%w: empty term", ErrSyntax)
		}
	}
	return parts, nil
}

// Column is a resolved, filterable database column.
type Column struct {
	Name string
	Text bool
}

type Resolver func(name string) (Column, error)

// SQL renders terms as a parenthesised OR clause with positional arguments.
func SQL(terms []Term, resolve Resolver) (string, []any, error) {
	if len(terms) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms))
	for _, t := range terms {
		col, err := resolve(t.Column)
		if err != nil {
			return "", nil, err
		}
		ident := pq.QuoteIdentifier(col.Name)

		if t.Op.pattern() {
			if !col.Text {
				return "", nil, fmt.Errorf("%w: %s needs a text column, %q is not", ErrSyntax, t.Op, t.Column)
			}
			pattern := strings.ReplaceAll(t.Value, "*", "%")
			if t.Op == OpILike {
				clauses = append(clauses, "LOWER("+ident+") LIKE ?")
				args = append(args, strings.ToLower(pattern))
			} else {
				clauses = append(clauses, ident+" LIKE ?")
				args = append(args, pattern)
			}
			continue
		}

		clauses = append(clauses, ident+" "+comparisons[t.Op]+" ?")
		if col.Text {
			args = append(args, t.Value)
		} else {
			args = append(args, typedValue(t.Value))
		}
	}
	return "(" + strings.Join(clauses, " OR ") + ")", args, nil
}

func typedValue(v string) any {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}
