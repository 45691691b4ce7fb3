// Package luarules implements rules.Evaluator on top of a Lua rule script.
//
// The script must define a global function evaluate(raw) that returns a
// table of derived key -> number. raw is structured by namespace:
// raw.level and raw.hitPoints are numbers, every other raw namespace is a
// table of name -> value (empty when nothing is chosen). A global
// requirements table maps diagnostic keys to requirement text. The script
// may read the catalog through the catalog global:
//
//	catalog.names(category)             -- array of entry names
//	catalog.has(category, name)         -- boolean
//	catalog.meta(category, name, field) -- metadata value or nil
//	catalog.normalize(name)             -- "Power Attack" -> "powerAttack"
//	catalog.hitdie(spec)                -- "2d6" -> 2, 6; nil when malformed
//	catalog.splitkey(key)               -- "feats.Dodge" -> "feats", "Dodge"
//
// The Lua string library of the runtime has no pattern matching (match,
// gsub, gmatch), so scripts use these helpers instead.
package luarules

import (
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/catalog"
	"github.com/louisbranch/charforge/internal/character/rules"
	"github.com/louisbranch/charforge/internal/dice"
	apperrors "github.com/louisbranch/charforge/internal/platform/errors"
)

// RulesetFailure is the sanity note raised when the script fails at runtime.
var RulesetFailure = attr.NewKey(attr.SanityNotes, "ruleset")

// Evaluator runs a loaded rule script. It is not safe for concurrent use.
type Evaluator struct {
	state        *lua.State
	catalog      *catalog.Catalog
	requirements map[attr.Key]string
	logf         func(format string, args ...any)
}

var _ rules.Evaluator = (*Evaluator)(nil)

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogf replaces the logger used for runtime script failures.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(e *Evaluator) {
		if logf != nil {
			e.logf = logf
		}
	}
}

// Load compiles and runs script, registering the catalog helpers first.
func Load(name, script string, cat *catalog.Catalog, opts ...Option) (*Evaluator, error) {
	e := &Evaluator{
		state:        lua.NewState(),
		catalog:      cat,
		requirements: map[attr.Key]string{},
		logf:         log.Printf,
	}
	for _, opt := range opts {
		opt(e)
	}
	lua.OpenLibraries(e.state)
	e.registerCatalog()

	if err := lua.LoadBuffer(e.state, script, name, ""); err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeRulesetLoad,
			"compile rule script", map[string]string{"Script": name}, err)
	}
	if err := e.state.ProtectedCall(0, 0, 0); err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeRulesetLoad,
			"run rule script", map[string]string{"Script": name}, err)
	}

	e.state.Global("evaluate")
	ok := e.state.TypeOf(-1) == lua.TypeFunction
	e.state.Pop(1)
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeRulesetLoad,
			"rule script does not define evaluate(raw)", map[string]string{"Script": name})
	}
	if err := e.loadRequirements(); err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeRulesetLoad,
			"read requirements", map[string]string{"Script": name}, err)
	}
	return e, nil
}

// LoadFS reads the script at path from fsys and loads it.
func LoadFS(fsys fs.FS, path string, cat *catalog.Catalog, opts ...Option) (*Evaluator, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeRulesetLoad,
			"read rule script", map[string]string{"Script": path}, err)
	}
	return Load(path, string(data), cat, opts...)
}

// Evaluate returns raw plus the derived values produced by the script. A
// runtime failure yields raw values plus sanityNotes.ruleset = 1.
func (e *Evaluator) Evaluate(raw attr.State) attr.Derived {
	out := make(attr.Derived, len(raw)+16)
	for k, v := range raw {
		out[k] = v
	}

	l := e.state
	top := l.Top()
	defer l.SetTop(top)

	l.Global("evaluate")
	pushRaw(l, raw)
	if err := l.ProtectedCall(1, 1, 0); err != nil {
		e.logf("rule script evaluate failed: %v", err)
		out[RulesetFailure] = 1
		return out
	}
	if l.TypeOf(-1) != lua.TypeTable {
		e.logf("rule script evaluate returned %s, want table", lua.TypeNameOf(l, -1))
		out[RulesetFailure] = 1
		return out
	}

	index := l.AbsIndex(-1)
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString && l.TypeOf(-1) == lua.TypeNumber {
			name, _ := l.ToString(-2)
			value, _ := l.ToNumber(-1)
			if k, err := attr.ParseKey(name); err != nil {
				e.logf("rule script produced invalid key %q: %v", name, err)
			} else if !k.Raw() {
				out[k] = value
			}
		}
		l.Pop(1)
	}
	return out
}

// Choices returns the catalog entries of category.
func (e *Evaluator) Choices(category string) []catalog.Entry {
	return e.catalog.Entries(category)
}

// Requirement returns the requirement text registered for diagnostic.
func (e *Evaluator) Requirement(diagnostic attr.Key) (string, bool) {
	text, ok := e.requirements[diagnostic]
	return text, ok
}

// Requirements returns a copy of every registered requirement.
func (e *Evaluator) Requirements() map[attr.Key]string {
	out := make(map[attr.Key]string, len(e.requirements))
	for k, v := range e.requirements {
		out[k] = v
	}
	return out
}

func (e *Evaluator) loadRequirements() error {
	l := e.state
	l.Global("requirements")
	defer l.Pop(1)
	switch l.TypeOf(-1) {
	case lua.TypeNil:
		return nil
	case lua.TypeTable:
	default:
		return fmt.Errorf("requirements is %s, want table", lua.TypeNameOf(l, -1))
	}
	index := l.AbsIndex(-1)
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) != lua.TypeString || l.TypeOf(-1) != lua.TypeString {
			l.Pop(1)
			continue
		}
		name, _ := l.ToString(-2)
		text, _ := l.ToString(-1)
		l.Pop(1)
		k, err := attr.ParseKey(name)
		if err != nil {
			return err
		}
		if !k.Namespace.Diagnostic() {
			return fmt.Errorf("requirement key %q is not a diagnostic note", name)
		}
		e.requirements[k] = strings.TrimSpace(text)
	}
	return nil
}

func (e *Evaluator) registerCatalog() {
	l := e.state
	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "names", Function: func(state *lua.State) int {
			category := lua.CheckString(state, 1)
			names := e.catalog.Names(category)
			state.CreateTable(len(names), 0)
			for i, name := range names {
				state.PushString(name)
				state.RawSetInt(-2, i+1)
			}
			return 1
		}},
		{Name: "has", Function: func(state *lua.State) int {
			category := lua.CheckString(state, 1)
			name := lua.CheckString(state, 2)
			state.PushBoolean(e.catalog.Has(category, name))
			return 1
		}},
		{Name: "meta", Function: func(state *lua.State) int {
			category := lua.CheckString(state, 1)
			name := lua.CheckString(state, 2)
			field := lua.CheckString(state, 3)
			entry, ok := e.catalog.Lookup(category, name)
			if !ok {
				state.PushNil()
				return 1
			}
			pushValue(state, entry.Meta[field])
			return 1
		}},
		{Name: "normalize", Function: func(state *lua.State) int {
			state.PushString(rules.NormalizeName(lua.CheckString(state, 1)))
			return 1
		}},
		{Name: "hitdie", Function: func(state *lua.State) int {
			text, _ := state.ToString(1)
			spec, err := dice.ParseSpec(text)
			if err != nil {
				state.PushNil()
				return 1
			}
			state.PushInteger(spec.Count)
			state.PushInteger(spec.Sides)
			return 2
		}},
		{Name: "splitkey", Function: func(state *lua.State) int {
			ns, name, ok := strings.Cut(lua.CheckString(state, 1), ".")
			if !ok || ns == "" || name == "" {
				state.PushNil()
				return 1
			}
			state.PushString(ns)
			state.PushString(name)
			return 2
		}},
	}, 0)
	l.SetGlobal("catalog")
}

// pushRaw pushes raw as a table keyed by namespace.
func pushRaw(l *lua.State, raw attr.State) {
	grouped := map[attr.Namespace]map[string]float64{}
	for k, v := range raw {
		if k.Namespace.Nameless() {
			continue
		}
		if grouped[k.Namespace] == nil {
			grouped[k.Namespace] = map[string]float64{}
		}
		grouped[k.Namespace][k.Name] = v
	}

	l.NewTable()
	for _, ns := range attr.RawNamespaces() {
		if ns.Nameless() {
			if v, ok := raw[attr.Scalar(ns)]; ok {
				l.PushNumber(v)
				l.SetField(-2, ns.String())
			}
			continue
		}
		values := grouped[ns]
		names := make([]string, 0, len(values))
		for name := range values {
			names = append(names, name)
		}
		sort.Strings(names)
		l.CreateTable(0, len(names))
		for _, name := range names {
			l.PushNumber(values[name])
			l.SetField(-2, name)
		}
		l.SetField(-2, ns.String())
	}
}

// pushValue pushes a JSON-shaped catalog metadata value.
func pushValue(l *lua.State, value any) {
	switch v := value.(type) {
	case nil:
		l.PushNil()
	case string:
		l.PushString(v)
	case bool:
		l.PushBoolean(v)
	case float64:
		l.PushNumber(v)
	case int:
		l.PushInteger(v)
	case []any:
		l.CreateTable(len(v), 0)
		for i, item := range v {
			pushValue(l, item)
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		l.CreateTable(0, len(v))
		for _, k := range keys {
			pushValue(l, v[k])
			l.SetField(-2, k)
		}
	default:
		l.PushString(fmt.Sprint(v))
	}
}
