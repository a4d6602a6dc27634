package harness

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	appErr "ojcore/pkg/errors"
)

var (
	identifier   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	invalidIdent = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// ParamSpec is a declared solution parameter as stored with the test data.
type ParamSpec struct {
	Name       string
	TypeTag    string
	OrderIndex int
}

// Param is a resolved solution parameter.
type Param struct {
	Name string
	Type *Type
}

// Signature describes the solution function a harness calls.
type Signature struct {
	FunctionName string
	Return       *Type
	Params       []Param
}

// NewSignature resolves type tags, orders parameters by OrderIndex and
// sanitizes their names.
func NewSignature(functionName, returnTag string, params []ParamSpec) (Signature, error) {
	name := strings.TrimSpace(functionName)
	if !identifier.MatchString(name) {
		return Signature{}, appErr.New(appErr.InvalidSignature).
			WithMessagef("solution function name %q is not an identifier", functionName)
	}
	ret, err := ParseType(returnTag)
	if err != nil {
		return Signature{}, err
	}

	ordered := append([]ParamSpec(nil), params...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].OrderIndex < ordered[j].OrderIndex })

	sig := Signature{FunctionName: name, Return: ret, Params: make([]Param, 0, len(ordered))}
	seen := make(map[string]bool, len(ordered))
	for i, p := range ordered {
		t, err := ParseType(p.TypeTag)
		if err != nil {
			return Signature{}, err
		}
		pname := SanitizeName(p.Name, i)
		for seen[pname] {
			pname = fmt.Sprintf("%s_%d", pname, i)
		}
		seen[pname] = true
		sig.Params = append(sig.Params, Param{Name: pname, Type: t})
	}
	return sig, nil
}

// SanitizeName turns a declared parameter name into an identifier.
func SanitizeName(raw string, index int) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return fmt.Sprintf("arg%d", index)
	}
	base = invalidIdent.ReplaceAllString(base, "_")
	if base[0] >= '0' && base[0] <= '9' {
		base = "arg_" + base
	}
	return base
}

// Stdin renders one test's inputs as the harness reads them: one canonical
// JSON value per line, in parameter order.
func (s Signature) Stdin(values []string) (string, error) {
	if len(values) != len(s.Params) {
		return "", appErr.New(appErr.TestCaseInvalid).
			WithMessagef("expected %d inputs, got %d", len(s.Params), len(values))
	}
	var b strings.Builder
	for i, p := range s.Params {
		canon, err := Canonicalize(p.Type, values[i])
		if err != nil {
			return "", appErr.Wrapf(err, appErr.GetCode(err), "input %q: %v", p.Name, err)
		}
		b.WriteString(canon)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Expected canonicalizes an expected output against the return type.
func (s Signature) Expected(text string) (string, error) {
	return Canonicalize(s.Return, text)
}

// withKeywords suffixes parameter names that collide with reserved words.
func (s Signature) withKeywords(keywords map[string]bool) Signature {
	out := s
	out.Params = make([]Param, len(s.Params))
	for i, p := range s.Params {
		if keywords[p.Name] {
			p.Name += "_"
		}
		out.Params[i] = p
	}
	return out
}

// types returns every distinct type node used by the signature, children
// before parents.
func (s Signature) types() []*Type {
	seen := make(map[string]bool)
	var out []*Type
	add := func(t *Type) {
		t.Walk(func(n *Type) {
			if !seen[n.ID()] {
				seen[n.ID()] = true
				out = append(out, n)
			}
		})
	}
	for _, p := range s.Params {
		add(p.Type)
	}
	add(s.Return)
	return out
}

// nodeElem returns the element type of list or tree nodes in the signature.
// All nodes of one kind must share an element type.
func (s Signature) nodeElem(kind Kind) (*Type, error) {
	var elem *Type
	for _, t := range s.types() {
		if t.Kind != kind {
			continue
		}
		if elem != nil && elem.ID() != t.Elem.ID() {
			return nil, appErr.New(appErr.InvalidSignature).
				WithMessagef("mixed %s element types in one signature", kind)
		}
		elem = t.Elem
	}
	return elem, nil
}
