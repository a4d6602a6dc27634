// Package harness generates per-language programs that wrap a user solution,
// and owns the canonical JSON encoding shared by test data and program output.
package harness

import (
	"strings"

	appErr "ojcore/pkg/errors"
)

// Kind is the shape of a value in the type catalog.
type Kind int

const (
	KindString Kind = iota + 1
	KindChar
	KindBool
	KindByte
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindBigInteger
	KindBigDecimal
	KindArray
	KindList
	KindSet
	KindMap
	KindListNode
	KindTreeNode
	KindCustom
)

var kindNames = map[Kind]string{
	KindString:     "string",
	KindChar:       "char",
	KindBool:       "bool",
	KindByte:       "byte",
	KindShort:      "short",
	KindInt:        "int",
	KindLong:       "long",
	KindFloat:      "float",
	KindDouble:     "double",
	KindBigInteger: "bigint",
	KindBigDecimal: "bigdec",
	KindArray:      "arr",
	KindList:       "list",
	KindSet:        "set",
	KindMap:        "map",
	KindListNode:   "lnode",
	KindTreeNode:   "tnode",
	KindCustom:     "custom",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Scalar reports whether values of the kind have no children.
func (k Kind) Scalar() bool {
	return k >= KindString && k <= KindBigDecimal
}

// Integral reports whether the kind is a fixed-width integer.
func (k Kind) Integral() bool {
	return k == KindByte || k == KindShort || k == KindInt || k == KindLong
}

// Shape constrains arrays whose rows have a fixed length.
type Shape int

const (
	ShapeNone Shape = iota
	// ShapePoint is exactly two integers.
	ShapePoint
	// ShapeIntervals is a list of two-integer rows.
	ShapeIntervals
)

// Type is a node of a composable type tree.
type Type struct {
	Kind Kind
	// Elem is the element type of arrays, lists, sets and nodes, and the value type of maps.
	Elem *Type
	// Key is the key type of maps.
	Key   *Type
	Shape Shape
	// Tag is the catalog tag the type was parsed from, if any.
	Tag string
}

// ID is a stable identifier usable inside generated function names.
func (t *Type) ID() string {
	switch t.Kind {
	case KindMap:
		return t.Kind.String() + "_" + t.Key.ID() + "_" + t.Elem.ID()
	case KindArray, KindList, KindSet, KindListNode, KindTreeNode:
		return t.Kind.String() + "_" + t.Elem.ID()
	default:
		return t.Kind.String()
	}
}

func (t *Type) String() string {
	if t.Tag != "" {
		return t.Tag
	}
	return t.ID()
}

// Walk visits t and every type below it, children first.
func (t *Type) Walk(fn func(*Type)) {
	if t.Key != nil {
		t.Key.Walk(fn)
	}
	if t.Elem != nil {
		t.Elem.Walk(fn)
	}
	fn(t)
}

func scalar(k Kind) *Type      { return &Type{Kind: k} }
func arrayOf(e *Type) *Type    { return &Type{Kind: KindArray, Elem: e} }
func listOf(e *Type) *Type     { return &Type{Kind: KindList, Elem: e} }
func setOf(e *Type) *Type      { return &Type{Kind: KindSet, Elem: e} }
func mapOf(k, v *Type) *Type   { return &Type{Kind: KindMap, Key: k, Elem: v} }
func listNodeOf(e *Type) *Type { return &Type{Kind: KindListNode, Elem: e} }
func treeNodeOf(e *Type) *Type { return &Type{Kind: KindTreeNode, Elem: e} }

func withShape(t *Type, s Shape) *Type {
	t.Shape = s
	return t
}

var scalarTags = map[string]Kind{
	"STRING":      KindString,
	"CHAR":        KindChar,
	"BOOLEAN":     KindBool,
	"BYTE":        KindByte,
	"SHORT":       KindShort,
	"INT":         KindInt,
	"LONG":        KindLong,
	"FLOAT":       KindFloat,
	"DOUBLE":      KindDouble,
	"BIG_INTEGER": KindBigInteger,
	"BIG_DECIMAL": KindBigDecimal,
}

// catalog builds a fresh type for each supported tag.
var catalog = map[string]func() *Type{}

func init() {
	for tag, k := range scalarTags {
		k := k
		catalog[tag] = func() *Type { return scalar(k) }
	}
	for _, tag := range []string{"STRING", "CHAR", "BOOLEAN", "INT", "LONG", "FLOAT", "DOUBLE"} {
		k := scalarTags[tag]
		catalog[tag+"_ARRAY"] = func() *Type { return arrayOf(scalar(k)) }
		catalog[tag+"_2D_ARRAY"] = func() *Type { return arrayOf(arrayOf(scalar(k))) }
		catalog["LIST_"+tag] = func() *Type { return listOf(scalar(k)) }
	}
	catalog["LIST_LIST_INT"] = func() *Type { return listOf(listOf(scalar(KindInt))) }
	catalog["LIST_LIST_STRING"] = func() *Type { return listOf(listOf(scalar(KindString))) }
	catalog["SET_INT"] = func() *Type { return setOf(scalar(KindInt)) }
	catalog["SET_LONG"] = func() *Type { return setOf(scalar(KindLong)) }
	catalog["SET_STRING"] = func() *Type { return setOf(scalar(KindString)) }
	catalog["MAP_STRING_STRING"] = func() *Type { return mapOf(scalar(KindString), scalar(KindString)) }
	catalog["MAP_STRING_INT"] = func() *Type { return mapOf(scalar(KindString), scalar(KindInt)) }
	catalog["MAP_INT_INT"] = func() *Type { return mapOf(scalar(KindInt), scalar(KindInt)) }
	catalog["MAP_INT_STRING"] = func() *Type { return mapOf(scalar(KindInt), scalar(KindString)) }
	catalog["LIST_NODE_INT"] = func() *Type { return listNodeOf(scalar(KindInt)) }
	catalog["LIST_NODE_STRING"] = func() *Type { return listNodeOf(scalar(KindString)) }
	catalog["TREE_NODE_INT"] = func() *Type { return treeNodeOf(scalar(KindInt)) }
	catalog["TREE_NODE_STRING"] = func() *Type { return treeNodeOf(scalar(KindString)) }
	catalog["GRAPH_ADJ_LIST"] = func() *Type { return listOf(listOf(scalar(KindInt))) }
	catalog["GRAPH_ADJ_MATRIX"] = func() *Type { return arrayOf(arrayOf(scalar(KindInt))) }
	catalog["INTERVAL_INT_ARRAY"] = func() *Type { return withShape(arrayOf(arrayOf(scalar(KindInt))), ShapeIntervals) }
	catalog["POINT_INT"] = func() *Type { return withShape(arrayOf(scalar(KindInt)), ShapePoint) }
	catalog["CUSTOM"] = func() *Type { return &Type{Kind: KindCustom} }
}

// aliases maps source-language spellings onto catalog tags.
var aliases = map[string]string{
	"string":               "STRING",
	"char":                 "CHAR",
	"character":            "CHAR",
	"boolean":              "BOOLEAN",
	"bool":                 "BOOLEAN",
	"byte":                 "BYTE",
	"short":                "SHORT",
	"int":                  "INT",
	"integer":              "INT",
	"long":                 "LONG",
	"float":                "FLOAT",
	"double":               "DOUBLE",
	"biginteger":           "BIG_INTEGER",
	"bigdecimal":           "BIG_DECIMAL",
	"string[]":             "STRING_ARRAY",
	"char[]":               "CHAR_ARRAY",
	"boolean[]":            "BOOLEAN_ARRAY",
	"int[]":                "INT_ARRAY",
	"integer[]":            "INT_ARRAY",
	"long[]":               "LONG_ARRAY",
	"float[]":              "FLOAT_ARRAY",
	"double[]":             "DOUBLE_ARRAY",
	"string[][]":           "STRING_2D_ARRAY",
	"char[][]":             "CHAR_2D_ARRAY",
	"boolean[][]":          "BOOLEAN_2D_ARRAY",
	"int[][]":              "INT_2D_ARRAY",
	"integer[][]":          "INT_2D_ARRAY",
	"long[][]":             "LONG_2D_ARRAY",
	"float[][]":            "FLOAT_2D_ARRAY",
	"double[][]":           "DOUBLE_2D_ARRAY",
	"list<string>":         "LIST_STRING",
	"list<character>":      "LIST_CHAR",
	"list<boolean>":        "LIST_BOOLEAN",
	"list<integer>":        "LIST_INT",
	"list<int>":            "LIST_INT",
	"list<long>":           "LIST_LONG",
	"list<float>":          "LIST_FLOAT",
	"list<double>":         "LIST_DOUBLE",
	"list<list<integer>>":  "LIST_LIST_INT",
	"list<list<int>>":      "LIST_LIST_INT",
	"list<list<string>>":   "LIST_LIST_STRING",
	"set<integer>":         "SET_INT",
	"set<int>":             "SET_INT",
	"set<long>":            "SET_LONG",
	"set<string>":          "SET_STRING",
	"map<string,string>":   "MAP_STRING_STRING",
	"map<string,integer>":  "MAP_STRING_INT",
	"map<integer,integer>": "MAP_INT_INT",
	"map<integer,string>":  "MAP_INT_STRING",
	"listnode":             "LIST_NODE_INT",
	"treenode":             "TREE_NODE_INT",
}

// ParseType resolves a catalog tag or alias. Matching ignores case and spaces.
func ParseType(tag string) (*Type, error) {
	raw := strings.Join(strings.Fields(tag), "")
	if raw == "" {
		return nil, appErr.New(appErr.UnsupportedTypeTag).WithMessage("type tag is empty")
	}
	name := strings.ToUpper(raw)
	if alias, ok := aliases[strings.ToLower(raw)]; ok {
		name = alias
	}
	build, ok := catalog[name]
	if !ok {
		return nil, appErr.New(appErr.UnsupportedTypeTag).
			WithMessagef("type tag %q is not supported", tag).
			WithDetail("tag", tag)
	}
	t := build()
	t.Tag = name
	return t, nil
}

// MustParseType is ParseType for tags known at compile time.
func MustParseType(tag string) *Type {
	t, err := ParseType(tag)
	if err != nil {
		panic(err)
	}
	return t
}

// Tags lists every catalog tag.
func Tags() []string {
	out := make([]string, 0, len(catalog))
	for tag := range catalog {
		out = append(out, tag)
	}
	return out
}
