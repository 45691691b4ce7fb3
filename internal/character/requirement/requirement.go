// Package requirement parses the requirement texts attached to diagnostic
// notes into a small typed AST.
//
// Grammar (informal):
//
//	requirement  = term { "/" term }
//	term         = clause { "||" clause }
//	clause       = [ "Requires" ] [ "Max" | "Sum" ] attribute [ op value ]
//	op           = ">=" | "<=" | "==" | "!=" | "~" | "!~"
//
// A requirement holds when every term holds; a term holds when any of its
// clauses holds. A clause without an operator means "attribute >= 1".
package requirement

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrEmpty indicates requirement text with no clauses.
	ErrEmpty = errors.New("requirement is empty")
	// ErrMalformedClause indicates a clause that does not fit the grammar.
	ErrMalformedClause = errors.New("malformed requirement clause")
)

// Combinator selects how an attribute is aggregated before comparison.
type Combinator int

const (
	// CombineNone compares the attribute itself.
	CombineNone Combinator = iota
	// CombineMax compares the largest entry of a category.
	CombineMax
	// CombineSum compares the total of a category.
	CombineSum
)

func (c Combinator) String() string {
	switch c {
	case CombineMax:
		return "Max"
	case CombineSum:
		return "Sum"
	default:
		return ""
	}
}

// Operator is a comparison operator.
type Operator string

const (
	OpGE       Operator = ">="
	OpLE       Operator = "<="
	OpEQ       Operator = "=="
	OpNE       Operator = "!="
	OpMatch    Operator = "~"
	OpNotMatch Operator = "!~"
)

// operatorTokens maps the accepted spellings to operators. "=~" is a
// synonym of "~".
var operatorTokens = []struct {
	text string
	op   Operator
}{
	{">=", OpGE}, {"<=", OpLE}, {"==", OpEQ}, {"!=", OpNE},
	{"!~", OpNotMatch}, {"=~", OpMatch}, {"~", OpMatch},
}

// Negative reports whether the operator excludes its value.
func (op Operator) Negative() bool {
	return op == OpNE || op == OpNotMatch
}

// Value is a clause operand.
type Value struct {
	Text     string
	Number   float64
	IsNumber bool
}

func (v Value) String() string {
	if v.IsNumber {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}

// Clause is one atomic condition.
type Clause struct {
	Attribute  string
	Combinator Combinator
	Op         Operator
	Value      Value
	// Defaulted marks a clause written without an operator.
	Defaulted  bool

	pattern *regexp.Regexp
}

// Term is an OR of alternative clauses.
type Term struct {
	Alternatives []Clause
}

// Requirement is an AND of terms.
type Requirement struct {
	Terms []Term
}

// Parse parses requirement text. Malformed alternatives are dropped and
// reported through the returned error while the well-formed remainder is
// still returned; a term left without alternatives is dropped.
func Parse(text string) (Requirement, error) {
	var (
		req  Requirement
		errs []error
	)
	for _, rawTerm := range strings.Split(text, "/") {
		if strings.TrimSpace(rawTerm) == "" {
			continue
		}
		var term Term
		for _, rawAlt := range strings.Split(rawTerm, "||") {
			clause, err := ParseClause(rawAlt)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			term.Alternatives = append(term.Alternatives, clause)
		}
		if len(term.Alternatives) > 0 {
			req.Terms = append(req.Terms, term)
		}
	}
	if len(req.Terms) == 0 && len(errs) == 0 {
		errs = append(errs, ErrEmpty)
	}
	return req, errors.Join(errs...)
}

// ParseClause parses a single alternative.
func ParseClause(text string) (Clause, error) {
	s := strings.TrimSpace(text)
	s = trimWord(s, "Requires")

	var c Clause
	switch {
	case hasWord(s, "Max"):
		c.Combinator = CombineMax
		s = trimWord(s, "Max")
	case hasWord(s, "Sum"):
		c.Combinator = CombineSum
		s = trimWord(s, "Sum")
	}

	op, at, width := findOperator(s)
	if at < 0 {
		c.Attribute = strings.TrimSpace(s)
		c.Op = OpGE
		c.Value = Value{Text: "1", Number: 1, IsNumber: true}
		c.Defaulted = true
	} else {
		c.Attribute = strings.TrimSpace(s[:at])
		c.Op = op
		raw := strings.TrimSpace(s[at+width:])
		if raw == "" {
			return Clause{}, fmt.Errorf("%w: %q has no value after %s", ErrMalformedClause, strings.TrimSpace(text), op)
		}
		c.Value = parseValue(raw)
	}
	if c.Attribute == "" {
		return Clause{}, fmt.Errorf("%w: %q names no attribute", ErrMalformedClause, strings.TrimSpace(text))
	}
	if c.Op == OpMatch || c.Op == OpNotMatch {
		re, err := regexp.Compile("(?i)" + c.Value.Text)
		if err != nil {
			return Clause{}, fmt.Errorf("%w: %q: %v", ErrMalformedClause, strings.TrimSpace(text), err)
		}
		c.pattern = re
	}
	return c, nil
}

// Compare checks a numeric attribute value against the clause.
func (c Clause) Compare(current float64) bool {
	want := c.Value.Number
	if !c.Value.IsNumber {
		// A present textual value counts as the marker.
		want = 1
	}
	switch c.Op {
	case OpGE:
		return current >= want
	case OpLE:
		return current <= want
	case OpEQ:
		return current == want
	case OpNE:
		return current != want
	}
	return false
}

// Match checks an option name against a textual clause.
func (c Clause) Match(name string) bool {
	switch c.Op {
	case OpEQ:
		return strings.EqualFold(strings.TrimSpace(name), c.Value.Text)
	case OpNE:
		return !strings.EqualFold(strings.TrimSpace(name), c.Value.Text)
	case OpMatch:
		return c.pattern != nil && c.pattern.MatchString(name)
	case OpNotMatch:
		return c.pattern == nil || !c.pattern.MatchString(name)
	}
	return false
}

// Textual reports whether the clause compares names rather than numbers.
func (c Clause) Textual() bool {
	return c.Op == OpMatch || c.Op == OpNotMatch || !c.Value.IsNumber
}

// Eval checks a clause against an attribute's numeric value and, for
// textual clauses, the selected option name.
func (c Clause) Eval(current float64, name string) bool {
	if c.Textual() {
		return c.Match(name)
	}
	return c.Compare(current)
}

func (c Clause) String() string {
	var b strings.Builder
	if c.Combinator != CombineNone {
		b.WriteString(c.Combinator.String())
		b.WriteByte(' ')
	}
	b.WriteString(c.Attribute)
	b.WriteByte(' ')
	b.WriteString(string(c.Op))
	b.WriteByte(' ')
	b.WriteString(c.Value.String())
	return b.String()
}

func (t Term) String() string {
	parts := make([]string, len(t.Alternatives))
	for i, c := range t.Alternatives {
		parts[i] = c.String()
	}
	return strings.Join(parts, " || ")
}

func (r Requirement) String() string {
	parts := make([]string, len(r.Terms))
	for i, t := range r.Terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " / ")
}

// findOperator returns the leftmost operator in s, preferring the longer
// token at the same offset, with its position and spelled width.
func findOperator(s string) (Operator, int, int) {
	best, at, width := Operator(""), -1, 0
	for _, tok := range operatorTokens {
		i := strings.Index(s, tok.text)
		if i < 0 {
			continue
		}
		if at < 0 || i < at || (i == at && len(tok.text) > width) {
			best, at, width = tok.op, i, len(tok.text)
		}
	}
	return best, at, width
}

func parseValue(raw string) Value {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return Value{Text: raw, Number: n, IsNumber: true}
	}
	return Value{Text: raw}
}

func hasWord(s, word string) bool {
	if len(s) <= len(word) || !strings.EqualFold(s[:len(word)], word) {
		return false
	}
	return s[len(word)] == ' ' || s[len(word)] == '\t'
}

func trimWord(s, word string) string {
	if !hasWord(s, word) {
		return s
	}
	return strings.TrimSpace(s[len(word):])
}
