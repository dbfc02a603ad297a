// Package attribute implements the attribute value model for driver
// bindings and the ${VAR} / $fn(args) expansion described in spec §4.5.
package attribute

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Kind identifies the dynamic type carried by a Value.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindNumber
	KindList
)

// Value is a (name, typed value) pair, mirroring bake's attribute model
// (src/project.c's member dispatch onto string/bool/array fields).
type Value struct {
	Name string
	Kind Kind

	Str  string
	Bool bool
	Num  float64
	List []Value
}

func String(name, s string) Value  { return Value{Name: name, Kind: KindString, Str: s} }
func Bool(name string, b bool) Value { return Value{Name: name, Kind: KindBool, Bool: b} }
func Number(name string, n float64) Value { return Value{Name: name, Kind: KindNumber, Num: n} }
func List(name string, vs []Value) Value  { return Value{Name: name, Kind: KindList, List: vs} }

// Scope resolves ${VAR} references and $fn(args) calls during expansion.
type Scope struct {
	// Vars resolves ${VAR}. The source is configuration, falling back to the
	// process environment, per spec §4.5.
	Vars map[string]string
	// Funcs resolves $fn(args). Spec names os(), language(), artefact(),
	// cfg() as the built-in registered functions; callers may register
	// additional ones.
	Funcs map[string]func(args []string) (string, error)
}

// UnknownVariableError is fatal per spec §7 (Attribute error).
type UnknownVariableError struct{ Name string }

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("unknown variable %q in attribute expansion", e.Name)
}

// UnknownFunctionError is fatal per spec §7.
type UnknownFunctionError struct{ Name string }

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q in attribute expansion", e.Name)
}

// UnterminatedExpansionError is fatal per spec §7.
type UnterminatedExpansionError struct{ Input string }

func (e *UnterminatedExpansionError) Error() string {
	return fmt.Sprintf("unterminated expansion in %q", e.Input)
}

// memoKey identifies an expansion by the triple spec §4.5 says to memoise on.
type memoKey struct {
	project   string
	packageID string
	input     string
}

// Expander expands attribute strings, memoising per (project, package_id,
// input) as required by spec §4.5.
type Expander struct {
	scope Scope
	memo  map[memoKey]string
}

// NewExpander returns an Expander bound to scope.
func NewExpander(scope Scope) *Expander {
	return &Expander{scope: scope, memo: make(map[memoKey]string)}
}

// Expand resolves every ${VAR} and $fn(args) occurrence in input, in the
// context of project and packageID (used only as memoisation keys).
func (e *Expander) Expand(project, packageID, input string) (string, error) {
	key := memoKey{project: project, packageID: packageID, input: input}
	if v, ok := e.memo[key]; ok {
		return v, nil
	}
	out, err := e.expand(input)
	if err != nil {
		return "", err
	}
	e.memo[key] = out
	return out, nil
}

func (e *Expander) expand(input string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(input) {
		c := input[i]
		if c != '$' || i+1 >= len(input) {
			out.WriteByte(c)
			i++
			continue
		}
		switch input[i+1] {
		case '{':
			end := strings.IndexByte(input[i+2:], '}')
			if end < 0 {
				return "", &UnterminatedExpansionError{Input: input}
			}
			name := input[i+2 : i+2+end]
			val, err := e.resolveVar(name)
			if err != nil {
				return "", err
			}
			out.WriteString(val)
			i += 2 + end + 1
		default:
			// Try $fn(args).
			j := i + 1
			for j < len(input) && isIdentByte(input[j]) {
				j++
			}
			if j == i+1 || j >= len(input) || input[j] != '(' {
				out.WriteByte(c)
				i++
				continue
			}
			name := input[i+1 : j]
			closeIdx := strings.IndexByte(input[j+1:], ')')
			if closeIdx < 0 {
				return "", &UnterminatedExpansionError{Input: input}
			}
			argStr := input[j+1 : j+1+closeIdx]
			args := splitArgs(argStr)
			val, err := e.resolveFunc(name, args)
			if err != nil {
				return "", err
			}
			out.WriteString(val)
			i = j + 1 + closeIdx + 1
		}
	}
	return out.String(), nil
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func splitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (e *Expander) resolveVar(name string) (string, error) {
	if e.scope.Vars != nil {
		if v, ok := e.scope.Vars[name]; ok {
			return v, nil
		}
	}
	if v, ok := lookupEnv(name); ok {
		return v, nil
	}
	return "", &UnknownVariableError{Name: name}
}

func (e *Expander) resolveFunc(name string, args []string) (string, error) {
	if e.scope.Funcs != nil {
		if fn, ok := e.scope.Funcs[name]; ok {
			return fn(args)
		}
	}
	return "", &UnknownFunctionError{Name: name}
}

// AsBool type-checks a Value as boolean expansion input, per spec §7 (Attribute
// error: type mismatch).
func (v Value) AsBool() (bool, error) {
	if v.Kind != KindBool {
		return false, xerrors.Errorf("attribute %q is not a boolean", v.Name)
	}
	return v.Bool, nil
}

// AsNumber parses a numeric attribute, used by $fn(args) implementations
// that need arguments as numbers rather than strings.
func AsNumber(s string) (float64, error) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, xerrors.Errorf("not a number: %q: %w", s, err)
	}
	return n, nil
}
