package harness

import (
	"regexp"
	"sort"
	"strings"
)

var (
	goImportBlock   = regexp.MustCompile(`(?s)\bimport\s*\((.*?)\)`)
	goImportLine    = regexp.MustCompile(`(?m)^\s*import\s+((?:[A-Za-z_.]\w*\s+)?"[^"]+")\s*$`)
	goImportSpec    = regexp.MustCompile(`(?:[A-Za-z_.]\w*\s+)?"[^"]+"`)
	goPackageClause = regexp.MustCompile(`(?m)^\s*package\s+\w+\s*$`)
	goDeclaresList  = regexp.MustCompile(`\btype\s+ListNode\s+struct\b`)
	goDeclaresTree  = regexp.MustCompile(`\btype\s+TreeNode\s+struct\b`)
)

// goRuntimeImports are the packages the generated runtime uses, each with a
// reference that keeps the import alive when the solution does not need it.
var goRuntimeImports = map[string]string{
	`"bufio"`:         "bufio.NewReader",
	`"encoding/json"`: "json.NewDecoder",
	`"math/big"`:      "big.NewInt",
	`"os"`:            "os.Exit",
	`"sort"`:          "sort.Strings",
	`"strconv"`:       "strconv.Itoa",
	`"strings"`:       "strings.NewReader",
}

type goGenerator struct{}

func (goGenerator) generate(sig Signature, solution string) (string, error) {
	listElem, err := sig.nodeElem(KindListNode)
	if err != nil {
		return "", err
	}
	treeElem, err := sig.nodeElem(KindTreeNode)
	if err != nil {
		return "", err
	}

	body := goPackageClause.ReplaceAllString(solution, "")
	imports := make(map[string]bool)
	for spec := range goRuntimeImports {
		imports[spec] = true
	}
	for _, m := range goImportBlock.FindAllStringSubmatch(body, -1) {
		for _, spec := range goImportSpec.FindAllString(m[1], -1) {
			imports[strings.Join(strings.Fields(spec), " ")] = true
		}
	}
	for _, m := range goImportLine.FindAllStringSubmatch(body, -1) {
		imports[strings.Join(strings.Fields(m[1]), " ")] = true
	}
	body = goImportBlock.ReplaceAllString(body, "")
	body = goImportLine.ReplaceAllString(body, "")

	specs := make([]string, 0, len(imports))
	for spec := range imports {
		specs = append(specs, spec)
	}
	sort.Strings(specs)

	w := newCodeWriter("\t")
	w.p(0, "package main")
	w.p(0, "")
	w.p(0, "import (")
	for _, spec := range specs {
		w.p(1, "%s", spec)
	}
	w.p(0, ")")
	w.p(0, "")
	refs := make([]string, 0, len(goRuntimeImports))
	for _, ref := range goRuntimeImports {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	w.p(0, "var (")
	for _, ref := range refs {
		w.p(1, "_ = %s", ref)
	}
	w.p(0, ")")
	w.p(0, "")
	if listElem != nil && !goDeclaresList.MatchString(body) {
		w.p(0, "type ListNode struct {")
		w.p(1, "Val  %s", goType(listElem))
		w.p(1, "Next *ListNode")
		w.p(0, "}")
		w.p(0, "")
	}
	if treeElem != nil && !goDeclaresTree.MatchString(body) {
		w.p(0, "type TreeNode struct {")
		w.p(1, "Val   %s", goType(treeElem))
		w.p(1, "Left  *TreeNode")
		w.p(1, "Right *TreeNode")
		w.p(0, "}")
		w.p(0, "")
	}
	w.raw(strings.TrimSpace(body))
	w.p(0, "")
	w.raw(goRuntime)
	for _, t := range sig.types() {
		goDecoder(w, t)
		goEncoder(w, t)
	}

	w.p(0, "func main() {")
	w.p(1, "in := bufio.NewReaderSize(os.Stdin, 1<<20)")
	for _, p := range sig.Params {
		w.p(1, "%s := ojDec_%s(ojLoad(in))", p.Name, p.Type.ID())
	}
	w.p(1, "result := %s(%s)", sig.FunctionName, paramNames(sig))
	w.p(1, "var out strings.Builder")
	w.p(1, "ojEnc_%s(&out, result)", sig.Return.ID())
	w.p(1, "out.WriteByte('\\n')")
	w.p(1, "os.Stdout.WriteString(out.String())")
	w.p(0, "}")
	return w.String(), nil
}

func goType(t *Type) string {
	switch t.Kind {
	case KindString, KindBigDecimal:
		return "string"
	case KindChar:
		return "byte"
	case KindBool:
		return "bool"
	case KindByte:
		return "int8"
	case KindShort:
		return "int16"
	case KindInt:
		return "int"
	case KindLong:
		return "int64"
	case KindFloat:
		return "float32"
	case KindDouble:
		return "float64"
	case KindBigInteger:
		return "*big.Int"
	case KindCustom:
		return "json.RawMessage"
	case KindArray, KindList:
		return "[]" + goType(t.Elem)
	case KindSet:
		return "map[" + goType(t.Elem) + "]bool"
	case KindMap:
		return "map[" + goType(t.Key) + "]" + goType(t.Elem)
	case KindListNode:
		return "*ListNode"
	case KindTreeNode:
		return "*TreeNode"
	}
	return "any"
}

func goDecoder(w *codeWriter, t *Type) {
	gt := goType(t)
	id := t.ID()
	w.p(0, "func ojDec_%s(o any) %s {", id, gt)
	switch t.Kind {
	case KindString:
		w.p(1, "s, _ := o.(string)")
		w.p(1, "return s")
	case KindChar:
		w.p(1, "s, _ := o.(string)")
		w.p(1, "if s == \"\" {")
		w.p(2, "panic(\"empty char\")")
		w.p(1, "}")
		w.p(1, "return s[0]")
	case KindBool:
		w.p(1, "b, _ := o.(bool)")
		w.p(1, "return b")
	case KindByte, KindShort, KindInt, KindLong:
		w.p(1, "return %s(ojInt(o))", gt)
	case KindFloat, KindDouble:
		w.p(1, "return %s(ojFloat(o))", gt)
	case KindBigInteger:
		w.p(1, "n, ok := new(big.Int).SetString(ojNumber(o), 10)")
		w.p(1, "if !ok {")
		w.p(2, "panic(\"invalid integer\")")
		w.p(1, "}")
		w.p(1, "return n")
	case KindBigDecimal:
		w.p(1, "return ojNumber(o)")
	case KindCustom:
		w.p(1, "raw, err := json.Marshal(o)")
		w.p(1, "if err != nil {")
		w.p(2, "panic(err)")
		w.p(1, "}")
		w.p(1, "return raw")
	case KindArray, KindList:
		w.p(1, "l, _ := o.([]any)")
		w.p(1, "if l == nil {")
		w.p(2, "return nil")
		w.p(1, "}")
		w.p(1, "r := make(%s, len(l))", gt)
		w.p(1, "for i, x := range l {")
		w.p(2, "r[i] = ojDec_%s(x)", t.Elem.ID())
		w.p(1, "}")
		w.p(1, "return r")
	case KindSet:
		w.p(1, "l, _ := o.([]any)")
		w.p(1, "r := make(%s, len(l))", gt)
		w.p(1, "for _, x := range l {")
		w.p(2, "r[ojDec_%s(x)] = true", t.Elem.ID())
		w.p(1, "}")
		w.p(1, "return r")
	case KindMap:
		w.p(1, "m, _ := o.(map[string]any)")
		w.p(1, "r := make(%s, len(m))", gt)
		w.p(1, "for k, x := range m {")
		if t.Key.Kind == KindString {
			w.p(2, "r[k] = ojDec_%s(x)", t.Elem.ID())
		} else {
			w.p(2, "r[%s(ojInt(json.Number(strings.TrimSpace(k))))] = ojDec_%s(x)", goType(t.Key), t.Elem.ID())
		}
		w.p(1, "}")
		w.p(1, "return r")
	case KindListNode:
		w.p(1, "l, _ := o.([]any)")
		w.p(1, "var head *ListNode")
		w.p(1, "for i := len(l) - 1; i >= 0; i-- {")
		w.p(2, "head = &ListNode{Val: ojDec_%s(l[i]), Next: head}", t.Elem.ID())
		w.p(1, "}")
		w.p(1, "return head")
	case KindTreeNode:
		w.p(1, "l, _ := o.([]any)")
		w.p(1, "if len(l) == 0 || l[0] == nil {")
		w.p(2, "return nil")
		w.p(1, "}")
		w.p(1, "root := &TreeNode{Val: ojDec_%s(l[0])}", t.Elem.ID())
		w.p(1, "queue := []*TreeNode{root}")
		w.p(1, "i := 1")
		w.p(1, "for len(queue) > 0 && i < len(l) {")
		w.p(2, "n := queue[0]")
		w.p(2, "queue = queue[1:]")
		w.p(2, "if i < len(l) && l[i] != nil {")
		w.p(3, "n.Left = &TreeNode{Val: ojDec_%s(l[i])}", t.Elem.ID())
		w.p(3, "queue = append(queue, n.Left)")
		w.p(2, "}")
		w.p(2, "i++")
		w.p(2, "if i < len(l) && l[i] != nil {")
		w.p(3, "n.Right = &TreeNode{Val: ojDec_%s(l[i])}", t.Elem.ID())
		w.p(3, "queue = append(queue, n.Right)")
		w.p(2, "}")
		w.p(2, "i++")
		w.p(1, "}")
		w.p(1, "return root")
	}
	w.p(0, "}")
	w.p(0, "")
}

func goEncoder(w *codeWriter, t *Type) {
	id := t.ID()
	w.p(0, "func ojEnc_%s(b *strings.Builder, v %s) {", id, goType(t))
	switch t.Kind {
	case KindString:
		w.p(1, "ojQuote(b, v)")
	case KindChar:
		w.p(1, "ojQuote(b, string([]byte{v}))")
	case KindBool:
		w.p(1, "b.WriteString(strconv.FormatBool(v))")
	case KindByte, KindShort, KindInt, KindLong:
		w.p(1, "b.WriteString(strconv.FormatInt(int64(v), 10))")
	case KindFloat:
		w.p(1, "b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))")
	case KindDouble:
		w.p(1, "b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))")
	case KindBigInteger:
		w.p(1, "if v == nil {")
		w.p(2, "b.WriteString(\"null\")")
		w.p(2, "return")
		w.p(1, "}")
		w.p(1, "b.WriteString(v.String())")
	case KindBigDecimal:
		w.p(1, "b.WriteString(v)")
	case KindCustom:
		w.p(1, "if len(v) == 0 {")
		w.p(2, "b.WriteString(\"null\")")
		w.p(2, "return")
		w.p(1, "}")
		w.p(1, "b.Write(v)")
	case KindArray, KindList:
		w.p(1, "if v == nil {")
		w.p(2, "b.WriteString(\"null\")")
		w.p(2, "return")
		w.p(1, "}")
		w.p(1, "b.WriteByte('[')")
		w.p(1, "for i, x := range v {")
		w.p(2, "if i > 0 {")
		w.p(3, "b.WriteByte(',')")
		w.p(2, "}")
		w.p(2, "ojEnc_%s(b, x)", t.Elem.ID())
		w.p(1, "}")
		w.p(1, "b.WriteByte(']')")
	case KindSet:
		et := goType(t.Elem)
		w.p(1, "keys := make([]%s, 0, len(v))", et)
		w.p(1, "for k, ok := range v {")
		w.p(2, "if ok {")
		w.p(3, "keys = append(keys, k)")
		w.p(2, "}")
		w.p(1, "}")
		w.p(1, "sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })")
		w.p(1, "b.WriteByte('[')")
		w.p(1, "for i, x := range keys {")
		w.p(2, "if i > 0 {")
		w.p(3, "b.WriteByte(',')")
		w.p(2, "}")
		w.p(2, "ojEnc_%s(b, x)", t.Elem.ID())
		w.p(1, "}")
		w.p(1, "b.WriteByte(']')")
	case KindMap:
		w.p(1, "if v == nil {")
		w.p(2, "b.WriteString(\"null\")")
		w.p(2, "return")
		w.p(1, "}")
		w.p(1, "b.WriteByte('{')")
		w.p(1, "first := true")
		w.p(1, "for k, x := range v {")
		w.p(2, "if !first {")
		w.p(3, "b.WriteByte(',')")
		w.p(2, "}")
		w.p(2, "first = false")
		if t.Key.Kind == KindString {
			w.p(2, "ojQuote(b, k)")
		} else {
			w.p(2, "ojQuote(b, strconv.FormatInt(int64(k), 10))")
		}
		w.p(2, "b.WriteByte(':')")
		w.p(2, "ojEnc_%s(b, x)", t.Elem.ID())
		w.p(1, "}")
		w.p(1, "b.WriteByte('}')")
	case KindListNode:
		w.p(1, "b.WriteByte('[')")
		w.p(1, "for n := v; n != nil; n = n.Next {")
		w.p(2, "if n != v {")
		w.p(3, "b.WriteByte(',')")
		w.p(2, "}")
		w.p(2, "ojEnc_%s(b, n.Val)", t.Elem.ID())
		w.p(1, "}")
		w.p(1, "b.WriteByte(']')")
	case KindTreeNode:
		w.p(1, "var order []*TreeNode")
		w.p(1, "if v != nil {")
		w.p(2, "order = append(order, v)")
		w.p(1, "}")
		w.p(1, "for i := 0; i < len(order); i++ {")
		w.p(2, "if order[i] != nil {")
		w.p(3, "order = append(order, order[i].Left, order[i].Right)")
		w.p(2, "}")
		w.p(1, "}")
		w.p(1, "for len(order) > 0 && order[len(order)-1] == nil {")
		w.p(2, "order = order[:len(order)-1]")
		w.p(1, "}")
		w.p(1, "b.WriteByte('[')")
		w.p(1, "for i, n := range order {")
		w.p(2, "if i > 0 {")
		w.p(3, "b.WriteByte(',')")
		w.p(2, "}")
		w.p(2, "if n == nil {")
		w.p(3, "b.WriteString(\"null\")")
		w.p(3, "continue")
		w.p(2, "}")
		w.p(2, "ojEnc_%s(b, n.Val)", t.Elem.ID())
		w.p(1, "}")
		w.p(1, "b.WriteByte(']')")
	}
	w.p(0, "}")
	w.p(0, "")
}

const goRuntime = `
func ojLoad(in *bufio.Reader) any {
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		panic("missing input line")
	}
	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		panic(err)
	}
	return v
}

func ojNumber(o any) string {
	switch n := o.(type) {
	case json.Number:
		return n.String()
	case string:
		return strings.TrimSpace(n)
	}
	panic("expected number")
}

func ojInt(o any) int64 {
	i, err := strconv.ParseInt(ojNumber(o), 10, 64)
	if err != nil {
		panic(err)
	}
	return i
}

func ojFloat(o any) float64 {
	f, err := strconv.ParseFloat(ojNumber(o), 64)
	if err != nil {
		panic(err)
	}
	return f
}

func ojQuote(b *strings.Builder, s string) {
	raw, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	b.Write(raw)
}

`
