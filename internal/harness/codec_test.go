package harness

import (
	"math"
	"math/big"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "ojcore/pkg/errors"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		tag  string
		in   string
		want string
	}{
		{"INT", " 42 ", "42"},
		{"LONG", "-9223372036854775808", "-9223372036854775808"},
		{"DOUBLE", "1.0", "1"},
		{"DOUBLE", "0.1", "0.1"},
		{"DOUBLE", "-0.0", "0"},
		{"DOUBLE", "1e20", "1e+20"},
		{"FLOAT", "0.1", "0.1"},
		{"BOOLEAN", "true", "true"},
		{"STRING", `"a<b"`, `"a<b"`},
		{"CHAR", `"é"`, `"é"`},
		{"BIG_INTEGER", "123456789012345678901234567890", "123456789012345678901234567890"},
		{"BIG_DECIMAL", "2.50", "2.5"},
		{"BIG_DECIMAL", "1.2345678901234567890123", "1.2345678901234567890123"},
		{"STRING_ARRAY", `[ "a" , "b" ]`, `["a","b"]`},
		{"INT_2D_ARRAY", "[[1, 2], [3]]", "[[1,2],[3]]"},
		{"SET_INT", "[3,1,3,2]", "[1,2,3]"},
		{"SET_STRING", `["b","a","b"]`, `["a","b"]`},
		{"MAP_STRING_INT", `{"b":2,"a":1}`, `{"a":1,"b":2}`},
		{"MAP_INT_INT", `{"9":2,"10":1}`, `{"10":1,"9":2}`},
		{"LIST_NODE_INT", "[1, 2, 3]", "[1,2,3]"},
		{"LIST_NODE_INT", "[]", "[]"},
		{"TREE_NODE_INT", "[1,null,2,3]", "[1,null,2,3]"},
		{"TREE_NODE_INT", "[1,2,3,null,null]", "[1,2,3]"},
		{"TREE_NODE_INT", "[]", "[]"},
		{"POINT_INT", "[1, 2]", "[1,2]"},
		{"INTERVAL_INT_ARRAY", "[[1,3],[2,6]]", "[[1,3],[2,6]]"},
		{"CUSTOM", `{"b": [1, 2.0], "a": null}`, `{"a":null,"b":[1,2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.tag+"/"+tt.in, func(t *testing.T) {
			got, err := Canonicalize(MustParseType(tt.tag), tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalizeRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		tag string
		in  string
	}{
		{"INT", "2147483648"},
		{"INT", "1.5"},
		{"BYTE", "128"},
		{"CHAR", `"ab"`},
		{"STRING", "12"},
		{"INT_ARRAY", "[1, 2"},
		{"INT_ARRAY", "[1] [2]"},
		{"POINT_INT", "[1,2,3]"},
		{"INTERVAL_INT_ARRAY", "[[1,2],[3]]"},
		{"MAP_INT_INT", `{"x":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.tag+"/"+tt.in, func(t *testing.T) {
			_, err := Canonicalize(MustParseType(tt.tag), tt.in)
			require.Error(t, err)
			assert.Equal(t, appErr.CanonicalDecodeError, appErr.GetCode(err))
		})
	}
}

func TestDecodeNativeValues(t *testing.T) {
	v, err := Decode(MustParseType("INT"), "5")
	require.NoError(t, err)
	assert.Equal(t, int32(5), v)

	v, err = Decode(MustParseType("CHAR"), `"x"`)
	require.NoError(t, err)
	assert.Equal(t, 'x', v)

	v, err = Decode(MustParseType("BIG_INTEGER"), `"99999999999999999999"`)
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("99999999999999999999", 10)
	assert.Equal(t, 0, want.Cmp(v.(*big.Int)))

	v, err = Decode(MustParseType("LIST_NODE_INT"), "[4,5]")
	require.NoError(t, err)
	head := v.(*ListNode)
	require.NotNil(t, head.Next)
	assert.Equal(t, int32(4), head.Val)
	assert.Equal(t, int32(5), head.Next.Val)
	assert.Nil(t, head.Next.Next)

	v, err = Decode(MustParseType("TREE_NODE_INT"), "[1,null,2]")
	require.NoError(t, err)
	root := v.(*TreeNode)
	assert.Nil(t, root.Left)
	require.NotNil(t, root.Right)
	assert.Equal(t, int32(2), root.Right.Val)
}

func TestEncodeRejectsNonFinite(t *testing.T) {
	_, err := Encode(MustParseType("DOUBLE"), math.NaN())
	require.Error(t, err)
	assert.Equal(t, appErr.CanonicalEncodeError, appErr.GetCode(err))

	_, err = Encode(MustParseType("INT"), int64(1))
	assert.Equal(t, appErr.CanonicalEncodeError, appErr.GetCode(err))
}

// sampleFor builds a valid JSON value for any type tree.
func sampleFor(t *Type) string {
	switch t.Kind {
	case KindString:
		return `"xy"`
	case KindChar:
		return `"c"`
	case KindBool:
		return "false"
	case KindByte, KindShort, KindInt, KindLong:
		return "7"
	case KindFloat, KindDouble:
		return "1.5"
	case KindBigInteger:
		return "12345678901234567890"
	case KindBigDecimal:
		return "3.25"
	case KindCustom:
		return `{"k":[1,"v"]}`
	case KindMap:
		key := `"k"`
		if t.Key.Kind != KindString {
			key = `"1"`
		}
		return "{" + key + ":" + sampleFor(t.Elem) + "}"
	}
	switch t.Shape {
	case ShapePoint:
		e := sampleFor(t.Elem)
		return "[" + e + "," + e + "]"
	case ShapeIntervals:
		e := sampleFor(t.Elem.Elem)
		return "[[" + e + "," + e + "]]"
	}
	return "[" + sampleFor(t.Elem) + "]"
}

func TestEveryTagRoundTrips(t *testing.T) {
	tags := Tags()
	sort.Strings(tags)
	for _, tag := range tags {
		t.Run(tag, func(t *testing.T) {
			typ := MustParseType(tag)
			sample := sampleFor(typ)

			canon, err := Canonicalize(typ, sample)
			require.NoError(t, err)

			native, err := Decode(typ, canon)
			require.NoError(t, err)
			again, err := Encode(typ, native)
			require.NoError(t, err)
			assert.Equal(t, canon, again)
			assert.False(t, strings.ContainsAny(canon, " \n"), "canonical form has no insignificant whitespace")
		})
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"INT_ARRAY", "INT_ARRAY"},
		{"int[]", "INT_ARRAY"},
		{" List < Integer > ", "LIST_INT"},
		{"Map<String, Integer>", "MAP_STRING_INT"},
		{"set_int", "SET_INT"},
		{"TreeNode", "TREE_NODE_INT"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, err := ParseType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, typ.Tag)
		})
	}

	for _, bad := range []string{"", "FOO", "vector<int>"} {
		_, err := ParseType(bad)
		require.Error(t, err)
		assert.Equal(t, appErr.UnsupportedTypeTag, appErr.GetCode(err))
	}
}
