package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	appErr "ojcore/pkg/errors"
)

// Native values produced by Decode and accepted by Encode:
//
//	STRING string, CHAR rune, BOOLEAN bool, BYTE int8, SHORT int16, INT int32,
//	LONG int64, FLOAT float32, DOUBLE float64, BIG_INTEGER *big.Int,
//	BIG_DECIMAL Decimal, arrays and lists []any, sets []any (sorted, unique),
//	maps map[any]any, LIST_NODE_* *ListNode, TREE_NODE_* *TreeNode, CUSTOM RawJSON.

// Decimal is an arbitrary-precision decimal held in canonical number form.
type Decimal string

// RawJSON is canonical JSON text carried without interpretation.
type RawJSON string

// ListNode is a singly linked list node.
type ListNode struct {
	Val  any
	Next *ListNode
}

// TreeNode is a binary tree node.
type TreeNode struct {
	Val   any
	Left  *TreeNode
	Right *TreeNode
}

// Integers up to this magnitude print without an exponent when they come
// from a floating-point literal.
const plainFloatLimit = 1e15

// maxFloatDigits is the precision of a float64; longer literals are
// normalized as exact decimals instead.
const maxFloatDigits = 17

// Decode parses canonical or loosely formatted JSON text into the native value of t.
func Decode(t *Type, text string) (any, error) {
	v, err := parseJSON(text)
	if err != nil {
		return nil, decodeErr(t, err.Error())
	}
	return fromJSON(t, v)
}

// Encode writes the canonical encoding of a native value of t.
func Encode(t *Type, v any) (string, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, t, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Canonicalize rewrites text into the canonical encoding of t.
func Canonicalize(t *Type, text string) (string, error) {
	v, err := Decode(t, text)
	if err != nil {
		return "", err
	}
	return Encode(t, v)
}

// CanonicalJSON rewrites any JSON document into canonical form without a type.
func CanonicalJSON(text string) (string, error) {
	v, err := parseJSON(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := writeGeneric(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func parseJSON(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

func decodeErr(t *Type, reason string) error {
	return appErr.New(appErr.CanonicalDecodeError).
		WithMessagef("decode %s: %s", t, reason).
		WithDetail("type", t.String())
}

func encodeErr(t *Type, reason string) error {
	return appErr.New(appErr.CanonicalEncodeError).
		WithMessagef("encode %s: %s", t, reason).
		WithDetail("type", t.String())
}

func fromJSON(t *Type, v any) (any, error) {
	switch t.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, decodeErr(t, "expected string")
		}
		return s, nil
	case KindChar:
		s, ok := v.(string)
		if !ok || utf8.RuneCountInString(s) != 1 {
			return nil, decodeErr(t, "expected single character string")
		}
		r, _ := utf8.DecodeRuneInString(s)
		return r, nil
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, decodeErr(t, "expected boolean")
		}
		return b, nil
	case KindByte, KindShort, KindInt, KindLong:
		return decodeIntegral(t, v)
	case KindFloat, KindDouble:
		n, ok := v.(json.Number)
		if !ok {
			return nil, decodeErr(t, "expected number")
		}
		bits := 64
		if t.Kind == KindFloat {
			bits = 32
		}
		f, err := strconv.ParseFloat(n.String(), bits)
		if err != nil {
			return nil, decodeErr(t, err.Error())
		}
		if t.Kind == KindFloat {
			return float32(f), nil
		}
		return f, nil
	case KindBigInteger:
		lit, ok := numericLiteral(v)
		if !ok {
			return nil, decodeErr(t, "expected integer")
		}
		i, ok := new(big.Int).SetString(lit, 10)
		if !ok {
			return nil, decodeErr(t, "expected integer")
		}
		return i, nil
	case KindBigDecimal:
		lit, ok := numericLiteral(v)
		if !ok {
			return nil, decodeErr(t, "expected decimal")
		}
		canon, err := canonicalNumber(lit)
		if err != nil {
			return nil, decodeErr(t, err.Error())
		}
		return Decimal(canon), nil
	case KindArray, KindList:
		return decodeSlice(t, v)
	case KindSet:
		items, err := decodeSlice(t, v)
		if err != nil {
			return nil, err
		}
		return sortUnique(items), nil
	case KindMap:
		return decodeMap(t, v)
	case KindListNode:
		items, err := decodeSlice(t, v)
		if err != nil {
			return nil, err
		}
		var head *ListNode
		for i := len(items) - 1; i >= 0; i-- {
			head = &ListNode{Val: items[i], Next: head}
		}
		return head, nil
	case KindTreeNode:
		return decodeTree(t, v)
	case KindCustom:
		var buf bytes.Buffer
		if err := writeGeneric(&buf, v); err != nil {
			return nil, decodeErr(t, err.Error())
		}
		return RawJSON(buf.String()), nil
	}
	return nil, decodeErr(t, "unknown kind")
}

func decodeIntegral(t *Type, v any) (any, error) {
	n, ok := v.(json.Number)
	if !ok {
		return nil, decodeErr(t, "expected integer")
	}
	bits := map[Kind]int{KindByte: 8, KindShort: 16, KindInt: 32, KindLong: 64}[t.Kind]
	i, err := strconv.ParseInt(n.String(), 10, bits)
	if err != nil {
		return nil, decodeErr(t, fmt.Sprintf("%s is not a %d-bit integer", n, bits))
	}
	switch t.Kind {
	case KindByte:
		return int8(i), nil
	case KindShort:
		return int16(i), nil
	case KindInt:
		return int32(i), nil
	default:
		return i, nil
	}
}

// numericLiteral accepts a JSON number or a numeric string.
func numericLiteral(v any) (string, bool) {
	switch n := v.(type) {
	case json.Number:
		return n.String(), true
	case string:
		s := strings.TrimSpace(n)
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			if _, ok := new(big.Float).SetString(s); !ok {
				return "", false
			}
		}
		return s, true
	}
	return "", false
}

func decodeSlice(t *Type, v any) ([]any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, decodeErr(t, "expected array")
	}
	if t.Shape == ShapePoint && len(arr) != 2 {
		return nil, decodeErr(t, "point must have two coordinates")
	}
	out := make([]any, 0, len(arr))
	for i, item := range arr {
		if t.Shape == ShapeIntervals {
			if row, ok := item.([]any); !ok || len(row) != 2 {
				return nil, decodeErr(t, fmt.Sprintf("interval %d must have two bounds", i))
			}
		}
		e, err := fromJSON(t.Elem, item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeMap(t *Type, v any) (map[any]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, decodeErr(t, "expected object")
	}
	out := make(map[any]any, len(obj))
	for k, raw := range obj {
		key, err := decodeKey(t.Key, k)
		if err != nil {
			return nil, err
		}
		val, err := fromJSON(t.Elem, raw)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}

func decodeKey(t *Type, k string) (any, error) {
	if t.Kind == KindString {
		return k, nil
	}
	return decodeIntegral(t, json.Number(strings.TrimSpace(k)))
}

// decodeTree reads a level-order array where null marks a missing child.
func decodeTree(t *Type, v any) (*TreeNode, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, decodeErr(t, "expected array")
	}
	if len(arr) == 0 || arr[0] == nil {
		return nil, nil
	}
	val, err := fromJSON(t.Elem, arr[0])
	if err != nil {
		return nil, err
	}
	root := &TreeNode{Val: val}
	queue := []*TreeNode{root}
	i := 1
	for len(queue) > 0 && i < len(arr) {
		node := queue[0]
		queue = queue[1:]
		for _, child := range []**TreeNode{&node.Left, &node.Right} {
			if i >= len(arr) {
				break
			}
			if arr[i] != nil {
				cv, err := fromJSON(t.Elem, arr[i])
				if err != nil {
					return nil, err
				}
				*child = &TreeNode{Val: cv}
				queue = append(queue, *child)
			}
			i++
		}
	}
	return root, nil
}

func encodeValue(buf *bytes.Buffer, t *Type, v any) error {
	switch t.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return encodeErr(t, fmt.Sprintf("unexpected %T", v))
		}
		return writeString(buf, s)
	case KindChar:
		r, ok := v.(rune)
		if !ok {
			return encodeErr(t, fmt.Sprintf("unexpected %T", v))
		}
		return writeString(buf, string(r))
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return encodeErr(t, fmt.Sprintf("unexpected %T", v))
		}
		buf.WriteString(strconv.FormatBool(b))
	case KindByte, KindShort, KindInt, KindLong:
		i, ok := integralValue(t.Kind, v)
		if !ok {
			return encodeErr(t, fmt.Sprintf("unexpected %T", v))
		}
		buf.WriteString(strconv.FormatInt(i, 10))
	case KindFloat:
		f, ok := v.(float32)
		if !ok {
			return encodeErr(t, fmt.Sprintf("unexpected %T", v))
		}
		s, err := formatFloat(float64(f), 32)
		if err != nil {
			return encodeErr(t, err.Error())
		}
		buf.WriteString(s)
	case KindDouble:
		f, ok := v.(float64)
		if !ok {
			return encodeErr(t, fmt.Sprintf("unexpected %T", v))
		}
		s, err := formatFloat(f, 64)
		if err != nil {
			return encodeErr(t, err.Error())
		}
		buf.WriteString(s)
	case KindBigInteger:
		i, ok := v.(*big.Int)
		if !ok || i == nil {
			return encodeErr(t, fmt.Sprintf("unexpected %T", v))
		}
		buf.WriteString(i.String())
	case KindBigDecimal:
		d, ok := v.(Decimal)
		if !ok {
			return encodeErr(t, fmt.Sprintf("unexpected %T", v))
		}
		canon, err := canonicalNumber(string(d))
		if err != nil {
			return encodeErr(t, err.Error())
		}
		buf.WriteString(canon)
	case KindArray, KindList:
		items, ok := v.([]any)
		if !ok {
			return encodeErr(t, fmt.Sprintf("unexpected %T", v))
		}
		return encodeSlice(buf, t.Elem, items)
	case KindSet:
		items, ok := v.([]any)
		if !ok {
			return encodeErr(t, fmt.Sprintf("unexpected %T", v))
		}
		return encodeSlice(buf, t.Elem, sortUnique(items))
	case KindMap:
		m, ok := v.(map[any]any)
		if !ok {
			return encodeErr(t, fmt.Sprintf("unexpected %T", v))
		}
		return encodeMap(buf, t, m)
	case KindListNode:
		head, ok := v.(*ListNode)
		if !ok {
			return encodeErr(t, fmt.Sprintf("unexpected %T", v))
		}
		var items []any
		for n := head; n != nil; n = n.Next {
			items = append(items, n.Val)
		}
		return encodeSlice(buf, t.Elem, items)
	case KindTreeNode:
		root, ok := v.(*TreeNode)
		if !ok {
			return encodeErr(t, fmt.Sprintf("unexpected %T", v))
		}
		return encodeTree(buf, t.Elem, root)
	case KindCustom:
		raw, ok := v.(RawJSON)
		if !ok {
			return encodeErr(t, fmt.Sprintf("unexpected %T", v))
		}
		canon, err := CanonicalJSON(string(raw))
		if err != nil {
			return encodeErr(t, err.Error())
		}
		buf.WriteString(canon)
	default:
		return encodeErr(t, "unknown kind")
	}
	return nil
}

func integralValue(k Kind, v any) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), k == KindByte
	case int16:
		return int64(n), k == KindShort
	case int32:
		return int64(n), k == KindInt
	case int64:
		return n, k == KindLong
	}
	return 0, false
}

func encodeSlice(buf *bytes.Buffer, elem *Type, items []any) error {
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, elem, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeMap(buf *bytes.Buffer, t *Type, m map[any]any) error {
	keys := make([]string, 0, len(m))
	vals := make(map[string]any, len(m))
	for k, v := range m {
		var ks string
		if t.Key.Kind == KindString {
			s, ok := k.(string)
			if !ok {
				return encodeErr(t, fmt.Sprintf("unexpected key %T", k))
			}
			ks = s
		} else {
			i, ok := integralValue(t.Key.Kind, k)
			if !ok {
				return encodeErr(t, fmt.Sprintf("unexpected key %T", k))
			}
			ks = strconv.FormatInt(i, 10)
		}
		keys = append(keys, ks)
		vals[ks] = v
	}
	sort.Strings(keys)
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encodeValue(buf, t.Elem, vals[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// encodeTree writes level order with null holes and no trailing nulls.
func encodeTree(buf *bytes.Buffer, elem *Type, root *TreeNode) error {
	var order []*TreeNode
	if root != nil {
		queue := []*TreeNode{root}
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			order = append(order, n)
			if n != nil {
				queue = append(queue, n.Left, n.Right)
			}
		}
	}
	for len(order) > 0 && order[len(order)-1] == nil {
		order = order[:len(order)-1]
	}
	buf.WriteByte('[')
	for i, n := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		if n == nil {
			buf.WriteString("null")
			continue
		}
		if err := encodeValue(buf, elem, n.Val); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// sortUnique orders set members and drops duplicates.
func sortUnique(items []any) []any {
	out := append([]any(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return lessNative(out[i], out[j]) })
	uniq := out[:0]
	for i, item := range out {
		if i > 0 && !lessNative(out[i-1], item) && !lessNative(item, out[i-1]) {
			continue
		}
		uniq = append(uniq, item)
	}
	return uniq
}

func lessNative(a, b any) bool {
	switch x := a.(type) {
	case string:
		y, _ := b.(string)
		return x < y
	case int32:
		y, _ := b.(int32)
		return x < y
	case int64:
		y, _ := b.(int64)
		return x < y
	case int16:
		y, _ := b.(int16)
		return x < y
	case int8:
		y, _ := b.(int8)
		return x < y
	}
	return false
}

// formatFloat prints the shortest representation that round-trips at the
// given precision, using plain digits for whole values below plainFloatLimit.
func formatFloat(f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%v has no JSON representation", f)
	}
	if f == 0 {
		return "0", nil
	}
	if f == math.Trunc(f) && math.Abs(f) < plainFloatLimit {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}

// canonicalNumber normalizes a JSON number literal. Integer literals keep
// every digit; short fractional literals go through float64; long ones are
// normalized as exact decimals.
func canonicalNumber(lit string) (string, error) {
	lit = strings.TrimPrefix(strings.TrimSpace(lit), "+")
	if lit == "" {
		return "", fmt.Errorf("empty number")
	}
	if !strings.ContainsAny(lit, ".eE") {
		i, ok := new(big.Int).SetString(lit, 10)
		if !ok {
			return "", fmt.Errorf("invalid integer %q", lit)
		}
		return i.String(), nil
	}
	if significantDigits(lit) > maxFloatDigits {
		return exactDecimal(lit)
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return "", fmt.Errorf("invalid number %q", lit)
	}
	return formatFloat(f, 64)
}

func significantDigits(lit string) int {
	mant := lit
	if i := strings.IndexAny(mant, "eE"); i >= 0 {
		mant = mant[:i]
	}
	mant = strings.TrimLeft(strings.ReplaceAll(strings.TrimLeft(mant, "-"), ".", ""), "0")
	return len(mant)
}

// exactDecimal renders lit in plain notation without trailing zeros.
func exactDecimal(lit string) (string, error) {
	r, ok := new(big.Rat).SetString(lit)
	if !ok {
		return "", fmt.Errorf("invalid decimal %q", lit)
	}
	if r.IsInt() {
		return r.Num().String(), nil
	}
	// A terminating decimal has a denominator of the form 2^a*5^b; the
	// larger exponent is the number of fractional digits needed.
	scale := 0
	den := new(big.Int).Set(r.Denom())
	ten := big.NewInt(10)
	for den.Cmp(big.NewInt(1)) != 0 {
		if scale > 4096 {
			return "", fmt.Errorf("decimal %q does not terminate", lit)
		}
		switch {
		case new(big.Int).Mod(den, big.NewInt(2)).Sign() == 0 && new(big.Int).Mod(den, big.NewInt(5)).Sign() == 0:
			den.Div(den, ten)
		case new(big.Int).Mod(den, big.NewInt(2)).Sign() == 0:
			den.Div(den, big.NewInt(2))
		default:
			den.Div(den, big.NewInt(5))
		}
		scale++
	}
	s := r.FloatString(scale)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, "."), nil
}

// writeGeneric writes an untyped JSON value canonically.
func writeGeneric(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(x))
	case json.Number:
		s, err := canonicalNumber(x.String())
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case string:
		return writeString(buf, x)
	case []any:
		buf.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeGeneric(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeGeneric(buf, x[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unexpected JSON value %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encoder appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
