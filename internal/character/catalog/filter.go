package catalog

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/charforge/internal/platform/errors"
	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Predicate reports whether an entry matches a filter.
type Predicate func(Entry) bool

// MatchAll accepts every entry.
func MatchAll(Entry) bool { return true }

// FilterDeclarations returns the identifiers usable in catalog filters.
func FilterDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("name", filtering.TypeString),
		filtering.DeclareIdent("type", filtering.TypeString),
		filtering.DeclareIdent("alignment", filtering.TypeString),
		filtering.DeclareIdent("school", filtering.TypeString),
		filtering.DeclareIdent("hit_die", filtering.TypeString),
		filtering.DeclareIdent("class", filtering.TypeString),
		filtering.DeclareIdent("domain", filtering.TypeString),
		filtering.DeclareIdent("level", filtering.TypeInt),
	)
}

// ParseFilter compiles an AIP-160 filter into a Predicate. An empty filter
// matches everything.
//
// "type" matches any value of the entry's types list; "class" and "domain"
// match keys of the classes and domains level maps. "level" compares the
// entry's own level field, falling back to any class or domain level.
func ParseFilter(filterStr string) (Predicate, error) {
	if strings.TrimSpace(filterStr) == "" {
		return MatchAll, nil
	}
	decls, err := FilterDeclarations()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFilterInvalid, "create declarations", err)
	}
	filter, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFilterInvalid, "parse filter", err)
	}
	pred, err := translateExpr(filter.CheckedExpr.Expr)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFilterInvalid, "translate filter", err)
	}
	return pred, nil
}

// Find returns the entries of category matching pred, in order.
func (c *Catalog) Find(category string, pred Predicate) []Entry {
	if pred == nil {
		pred = MatchAll
	}
	var out []Entry
	for _, e := range c.Entries(category) {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

func translateExpr(e *expr.Expr) (Predicate, error) {
	if e == nil {
		return MatchAll, nil
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return translateCall(kind.CallExpr)
	default:
		return nil, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func translateCall(call *expr.Expr_Call) (Predicate, error) {
	switch call.Function {
	case "_&&_", "AND":
		left, right, err := translatePair(call.Args)
		if err != nil {
			return nil, err
		}
		return func(e Entry) bool { return left(e) && right(e) }, nil
	case "_||_", "OR":
		left, right, err := translatePair(call.Args)
		if err != nil {
			return nil, err
		}
		return func(e Entry) bool { return left(e) || right(e) }, nil
	case "NOT", "-":
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := translateExpr(call.Args[0])
		if err != nil {
			return nil, err
		}
		return func(e Entry) bool { return !inner(e) }, nil
	case "_==_", "=":
		return translateComparison(call.Args, "=")
	case "_!=_", "!=":
		return translateComparison(call.Args, "!=")
	case "_<_", "<":
		return translateComparison(call.Args, "<")
	case "_<=_", "<=":
		return translateComparison(call.Args, "<=")
	case "_>_", ">":
		return translateComparison(call.Args, ">")
	case "_>=_", ">=":
		return translateComparison(call.Args, ">=")
	default:
		return nil, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func translatePair(args []*expr.Expr) (Predicate, Predicate, error) {
	if len(args) != 2 {
		return nil, nil, fmt.Errorf("logical operator requires 2 arguments")
	}
	left, err := translateExpr(args[0])
	if err != nil {
		return nil, nil, err
	}
	right, err := translateExpr(args[1])
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func translateComparison(args []*expr.Expr, op string) (Predicate, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("comparison requires 2 arguments")
	}
	field, err := extractFieldName(args[0])
	if err != nil {
		return nil, err
	}
	value, err := extractValue(args[1])
	if err != nil {
		return nil, err
	}

	switch field {
	case "level":
		want, ok := value.(int64)
		if !ok {
			return nil, fmt.Errorf("level expects an integer, got %T", value)
		}
		return func(e Entry) bool {
			for _, got := range entryLevels(e) {
				if compareInt(int64(got), want, op) {
					return true
				}
			}
			return false
		}, nil
	case "name", "type", "alignment", "school", "hit_die", "class", "domain":
		want, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%s expects a string, got %T", field, value)
		}
		if op != "=" && op != "!=" {
			return nil, fmt.Errorf("%s supports only = and !=", field)
		}
		return func(e Entry) bool {
			matched := matchString(fieldValues(e, field), want)
			if op == "!=" {
				return !matched
			}
			return matched
		}, nil
	default:
		return nil, fmt.Errorf("unknown field: %s", field)
	}
}

// entryLevels returns the entry's own level, or every level of its classes
// and domains maps.
func entryLevels(e Entry) []int {
	if n, ok := e.Int("level"); ok {
		return []int{n}
	}
	var out []int
	for _, field := range []string{"classes", "domains"} {
		for _, n := range e.IntMap(field) {
			out = append(out, n)
		}
	}
	return out
}

func fieldValues(e Entry, field string) []string {
	switch field {
	case "name":
		return []string{e.Name}
	case "type":
		return e.Strings("types")
	case "class":
		return mapKeys(e.IntMap("classes"))
	case "domain":
		return mapKeys(e.IntMap("domains"))
	case "hit_die":
		return e.Strings("hitDie")
	default:
		return e.Strings(field)
	}
}

// matchString compares case-insensitively; a trailing "*" matches a prefix.
func matchString(values []string, want string) bool {
	prefix, wildcard := strings.CutSuffix(want, "*")
	for _, v := range values {
		if wildcard {
			if len(v) >= len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
				return true
			}
			continue
		}
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func compareInt(got, want int64, op string) bool {
	switch op {
	case "=":
		return got == want
	case "!=":
		return got != want
	case "<":
		return got < want
	case "<=":
		return got <= want
	case ">":
		return got > want
	case ">=":
		return got >= want
	}
	return false
}

func mapKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	default:
		return nil, fmt.Errorf("expected constant, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}
	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return int64(kind.Uint64Value), nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}
