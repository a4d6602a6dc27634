package harness

import (
	"regexp"
	"strings"
)

var (
	javaPublicSolution = regexp.MustCompile(`\bpublic\s+(final\s+)?class\s+Solution\b`)
	javaDeclaresList   = regexp.MustCompile(`\bclass\s+ListNode\b`)
	javaDeclaresTree   = regexp.MustCompile(`\bclass\s+TreeNode\b`)
)

type javaGenerator struct{}

func (javaGenerator) generate(sig Signature, solution string) (string, error) {
	imports, body := splitLines(solution, func(l string) bool {
		return strings.HasPrefix(l, "import ") || strings.HasPrefix(l, "package ")
	})
	body = javaPublicSolution.ReplaceAllString(body, "class Solution")

	w := newCodeWriter("    ")
	w.p(0, "import java.io.*;")
	w.p(0, "import java.math.*;")
	w.p(0, "import java.nio.charset.StandardCharsets;")
	w.p(0, "import java.util.*;")
	w.p(0, "import java.util.function.*;")
	w.p(0, "import java.util.stream.*;")
	for _, imp := range imports {
		if strings.HasPrefix(imp, "import ") {
			w.p(0, "%s", imp)
		}
	}
	w.p(0, "")

	if err := javaNodeClasses(w, sig, body); err != nil {
		return "", err
	}
	w.raw(strings.TrimSpace(body))
	w.p(0, "")

	w.p(0, "@SuppressWarnings({\"unchecked\", \"rawtypes\"})")
	w.p(0, "public class Main {")
	w.raw(javaJSONRuntime)
	for _, t := range sig.types() {
		javaDecoder(w, t)
		javaEncoder(w, t)
	}

	w.p(1, "public static void main(String[] args) throws Exception {")
	w.p(2, "BufferedReader in = new BufferedReader(new InputStreamReader(System.in, StandardCharsets.UTF_8));")
	for _, p := range sig.Params {
		w.p(2, "%s %s = dec_%s(Json.parse(in.readLine()));", javaType(p.Type, false), p.Name, p.Type.ID())
	}
	w.p(2, "%s result = new Solution().%s(%s);", javaType(sig.Return, false), sig.FunctionName, paramNames(sig))
	w.p(2, "StringBuilder out = new StringBuilder();")
	w.p(2, "enc_%s(out, result);", sig.Return.ID())
	w.p(2, "PrintStream ps = new PrintStream(new FileOutputStream(FileDescriptor.out), false, \"UTF-8\");")
	w.p(2, "ps.println(out);")
	w.p(2, "ps.flush();")
	w.p(1, "}")
	w.p(0, "}")
	return w.String(), nil
}

func javaNodeClasses(w *codeWriter, sig Signature, body string) error {
	listElem, err := sig.nodeElem(KindListNode)
	if err != nil {
		return err
	}
	treeElem, err := sig.nodeElem(KindTreeNode)
	if err != nil {
		return err
	}
	if listElem != nil && !javaDeclaresList.MatchString(body) {
		vt := javaType(listElem, false)
		w.p(0, "class ListNode {")
		w.p(1, "%s val;", vt)
		w.p(1, "ListNode next;")
		w.p(1, "ListNode() {}")
		w.p(1, "ListNode(%s val) { this.val = val; }", vt)
		w.p(1, "ListNode(%s val, ListNode next) { this.val = val; this.next = next; }", vt)
		w.p(0, "}")
		w.p(0, "")
	}
	if treeElem != nil && !javaDeclaresTree.MatchString(body) {
		vt := javaType(treeElem, false)
		w.p(0, "class TreeNode {")
		w.p(1, "%s val;", vt)
		w.p(1, "TreeNode left;")
		w.p(1, "TreeNode right;")
		w.p(1, "TreeNode() {}")
		w.p(1, "TreeNode(%s val) { this.val = val; }", vt)
		w.p(1, "TreeNode(%s val, TreeNode left, TreeNode right) { this.val = val; this.left = left; this.right = right; }", vt)
		w.p(0, "}")
		w.p(0, "")
	}
	return nil
}

func javaType(t *Type, boxed bool) string {
	switch t.Kind {
	case KindString, KindCustom:
		return "String"
	case KindChar:
		return pick(boxed, "Character", "char")
	case KindBool:
		return pick(boxed, "Boolean", "boolean")
	case KindByte:
		return pick(boxed, "Byte", "byte")
	case KindShort:
		return pick(boxed, "Short", "short")
	case KindInt:
		return pick(boxed, "Integer", "int")
	case KindLong:
		return pick(boxed, "Long", "long")
	case KindFloat:
		return pick(boxed, "Float", "float")
	case KindDouble:
		return pick(boxed, "Double", "double")
	case KindBigInteger:
		return "BigInteger"
	case KindBigDecimal:
		return "BigDecimal"
	case KindArray:
		return javaType(t.Elem, false) + "[]"
	case KindList:
		return "List<" + javaType(t.Elem, true) + ">"
	case KindSet:
		return "Set<" + javaType(t.Elem, true) + ">"
	case KindMap:
		return "Map<" + javaType(t.Key, true) + ", " + javaType(t.Elem, true) + ">"
	case KindListNode:
		return "ListNode"
	case KindTreeNode:
		return "TreeNode"
	}
	return "Object"
}

// javaNewArray returns an allocation expression for n elements of an array type.
func javaNewArray(t *Type, n string) string {
	base := javaType(t.Elem, false)
	if i := strings.Index(base, "["); i >= 0 {
		return "new " + base[:i] + "[" + n + "]" + base[i:]
	}
	return "new " + base + "[" + n + "]"
}

func javaDecoder(w *codeWriter, t *Type) {
	jt := javaType(t, false)
	id := t.ID()
	w.p(1, "static %s dec_%s(Object o) {", jt, id)
	switch t.Kind {
	case KindString:
		w.p(2, "return (String) o;")
	case KindChar:
		w.p(2, "return ((String) o).charAt(0);")
	case KindBool:
		w.p(2, "return (Boolean) o;")
	case KindByte:
		w.p(2, "return Json.num(o).byteValueExact();")
	case KindShort:
		w.p(2, "return Json.num(o).shortValueExact();")
	case KindInt:
		w.p(2, "return Json.num(o).intValueExact();")
	case KindLong:
		w.p(2, "return Json.num(o).longValueExact();")
	case KindFloat:
		w.p(2, "return Json.num(o).floatValue();")
	case KindDouble:
		w.p(2, "return Json.num(o).doubleValue();")
	case KindBigInteger:
		w.p(2, "return Json.num(o).toBigIntegerExact();")
	case KindBigDecimal:
		w.p(2, "return Json.num(o);")
	case KindCustom:
		w.p(2, "StringBuilder sb = new StringBuilder();")
		w.p(2, "Json.write(sb, o);")
		w.p(2, "return sb.toString();")
	case KindArray:
		w.p(2, "if (o == null) return null;")
		w.p(2, "List<Object> l = (List<Object>) o;")
		w.p(2, "%s r = %s;", jt, javaNewArray(t, "l.size()"))
		w.p(2, "for (int i = 0; i < r.length; i++) r[i] = dec_%s(l.get(i));", t.Elem.ID())
		w.p(2, "return r;")
	case KindList, KindSet:
		impl := pick(t.Kind == KindSet, "LinkedHashSet", "ArrayList")
		w.p(2, "if (o == null) return null;")
		w.p(2, "%s r = new %s<>();", jt, impl)
		w.p(2, "for (Object x : (List<Object>) o) r.add(dec_%s(x));", t.Elem.ID())
		w.p(2, "return r;")
	case KindMap:
		w.p(2, "if (o == null) return null;")
		w.p(2, "%s r = new LinkedHashMap<>();", jt)
		w.p(2, "for (Map.Entry<String, Object> e : ((Map<String, Object>) o).entrySet()) {")
		w.p(3, "r.put(%s, dec_%s(e.getValue()));", javaKey(t.Key, "e.getKey()"), t.Elem.ID())
		w.p(2, "}")
		w.p(2, "return r;")
	case KindListNode:
		w.p(2, "List<Object> l = (List<Object>) o;")
		w.p(2, "ListNode head = null;")
		w.p(2, "for (int i = l.size() - 1; i >= 0; i--) head = new ListNode(dec_%s(l.get(i)), head);", t.Elem.ID())
		w.p(2, "return head;")
	case KindTreeNode:
		w.p(2, "List<Object> l = (List<Object>) o;")
		w.p(2, "if (l.isEmpty() || l.get(0) == null) return null;")
		w.p(2, "TreeNode root = new TreeNode(dec_%s(l.get(0)));", t.Elem.ID())
		w.p(2, "ArrayDeque<TreeNode> q = new ArrayDeque<>();")
		w.p(2, "q.add(root);")
		w.p(2, "int i = 1;")
		w.p(2, "while (!q.isEmpty() && i < l.size()) {")
		w.p(3, "TreeNode n = q.poll();")
		w.p(3, "if (i < l.size() && l.get(i) != null) { n.left = new TreeNode(dec_%s(l.get(i))); q.add(n.left); }", t.Elem.ID())
		w.p(3, "i++;")
		w.p(3, "if (i < l.size() && l.get(i) != null) { n.right = new TreeNode(dec_%s(l.get(i))); q.add(n.right); }", t.Elem.ID())
		w.p(3, "i++;")
		w.p(2, "}")
		w.p(2, "return root;")
	}
	w.p(1, "}")
	w.p(0, "")
}

func javaKey(t *Type, expr string) string {
	switch t.Kind {
	case KindInt:
		return "Integer.valueOf(" + expr + ".trim())"
	case KindLong:
		return "Long.valueOf(" + expr + ".trim())"
	default:
		return expr
	}
}

func javaEncoder(w *codeWriter, t *Type) {
	jt := javaType(t, false)
	id := t.ID()
	w.p(1, "static void enc_%s(StringBuilder sb, %s v) {", id, jt)
	switch t.Kind {
	case KindString:
		w.p(2, "Json.quote(sb, v);")
	case KindChar:
		w.p(2, "Json.quote(sb, String.valueOf(v));")
	case KindBool, KindByte, KindShort, KindInt, KindLong:
		w.p(2, "sb.append(v);")
	case KindFloat:
		w.p(2, "sb.append(Float.toString(v));")
	case KindDouble:
		w.p(2, "sb.append(Double.toString(v));")
	case KindBigInteger:
		w.p(2, "sb.append(v == null ? \"null\" : v.toString());")
	case KindBigDecimal:
		w.p(2, "sb.append(v == null ? \"null\" : v.stripTrailingZeros().toPlainString());")
	case KindCustom:
		w.p(2, "sb.append(v == null ? \"null\" : v);")
	case KindArray:
		w.p(2, "if (v == null) { sb.append(\"null\"); return; }")
		w.p(2, "sb.append('[');")
		w.p(2, "for (int i = 0; i < v.length; i++) {")
		w.p(3, "if (i > 0) sb.append(',');")
		w.p(3, "enc_%s(sb, v[i]);", t.Elem.ID())
		w.p(2, "}")
		w.p(2, "sb.append(']');")
	case KindList, KindSet:
		et := javaType(t.Elem, true)
		w.p(2, "if (v == null) { sb.append(\"null\"); return; }")
		w.p(2, "List<%s> items = new ArrayList<>(v);", et)
		if t.Kind == KindSet {
			w.p(2, "Collections.sort(items);")
		}
		w.p(2, "sb.append('[');")
		w.p(2, "for (int i = 0; i < items.size(); i++) {")
		w.p(3, "if (i > 0) sb.append(',');")
		w.p(3, "enc_%s(sb, items.get(i));", t.Elem.ID())
		w.p(2, "}")
		w.p(2, "sb.append(']');")
	case KindMap:
		w.p(2, "if (v == null) { sb.append(\"null\"); return; }")
		w.p(2, "sb.append('{');")
		w.p(2, "boolean first = true;")
		w.p(2, "for (Map.Entry<%s, %s> e : v.entrySet()) {", javaType(t.Key, true), javaType(t.Elem, true))
		w.p(3, "if (!first) sb.append(',');")
		w.p(3, "first = false;")
		w.p(3, "Json.quote(sb, String.valueOf(e.getKey()));")
		w.p(3, "sb.append(':');")
		w.p(3, "enc_%s(sb, e.getValue());", t.Elem.ID())
		w.p(2, "}")
		w.p(2, "sb.append('}');")
	case KindListNode:
		w.p(2, "sb.append('[');")
		w.p(2, "for (ListNode n = v; n != null; n = n.next) {")
		w.p(3, "if (n != v) sb.append(',');")
		w.p(3, "enc_%s(sb, n.val);", t.Elem.ID())
		w.p(2, "}")
		w.p(2, "sb.append(']');")
	case KindTreeNode:
		w.p(2, "List<TreeNode> order = new ArrayList<>();")
		w.p(2, "if (v != null) order.add(v);")
		w.p(2, "for (int i = 0; i < order.size(); i++) {")
		w.p(3, "TreeNode n = order.get(i);")
		w.p(3, "if (n != null) { order.add(n.left); order.add(n.right); }")
		w.p(2, "}")
		w.p(2, "while (!order.isEmpty() && order.get(order.size() - 1) == null) order.remove(order.size() - 1);")
		w.p(2, "sb.append('[');")
		w.p(2, "for (int i = 0; i < order.size(); i++) {")
		w.p(3, "if (i > 0) sb.append(',');")
		w.p(3, "if (order.get(i) == null) sb.append(\"null\"); else enc_%s(sb, order.get(i).val);", t.Elem.ID())
		w.p(2, "}")
		w.p(2, "sb.append(']');")
	}
	w.p(1, "}")
	w.p(0, "")
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

const javaJSONRuntime = `    static final class Json {
        private final String s;
        private int i;

        private Json(String s) { this.s = s; }

        static Object parse(String text) {
            if (text == null) throw new IllegalArgumentException("missing input line");
            Json p = new Json(text);
            p.ws();
            Object v = p.value();
            p.ws();
            if (p.i != p.s.length()) throw new IllegalArgumentException("trailing data at " + p.i);
            return v;
        }

        static BigDecimal num(Object o) {
            if (o instanceof BigDecimal) return (BigDecimal) o;
            if (o instanceof String) return new BigDecimal(((String) o).trim());
            throw new IllegalArgumentException("expected number");
        }

        private void ws() {
            while (i < s.length() && Character.isWhitespace(s.charAt(i))) i++;
        }

        private Object value() {
            if (i >= s.length()) throw new IllegalArgumentException("unexpected end of input");
            char c = s.charAt(i);
            if (c == '{') return object();
            if (c == '[') return array();
            if (c == '"') return string();
            if (s.startsWith("true", i)) { i += 4; return Boolean.TRUE; }
            if (s.startsWith("false", i)) { i += 5; return Boolean.FALSE; }
            if (s.startsWith("null", i)) { i += 4; return null; }
            int start = i;
            while (i < s.length() && "+-0123456789.eE".indexOf(s.charAt(i)) >= 0) i++;
            if (start == i) throw new IllegalArgumentException("unexpected character at " + i);
            return new BigDecimal(s.substring(start, i));
        }

        private List<Object> array() {
            List<Object> out = new ArrayList<>();
            i++;
            ws();
            if (s.charAt(i) == ']') { i++; return out; }
            while (true) {
                ws();
                out.add(value());
                ws();
                char c = s.charAt(i++);
                if (c == ']') return out;
                if (c != ',') throw new IllegalArgumentException("expected , or ] at " + i);
            }
        }

        private Map<String, Object> object() {
            Map<String, Object> out = new LinkedHashMap<>();
            i++;
            ws();
            if (s.charAt(i) == '}') { i++; return out; }
            while (true) {
                ws();
                String k = string();
                ws();
                if (s.charAt(i++) != ':') throw new IllegalArgumentException("expected : at " + i);
                ws();
                out.put(k, value());
                ws();
                char c = s.charAt(i++);
                if (c == '}') return out;
                if (c != ',') throw new IllegalArgumentException("expected , or } at " + i);
            }
        }

        private String string() {
            StringBuilder sb = new StringBuilder();
            i++;
            while (true) {
                char c = s.charAt(i++);
                if (c == '"') return sb.toString();
                if (c != '\\') { sb.append(c); continue; }
                char e = s.charAt(i++);
                switch (e) {
                    case 'n': sb.append('\n'); break;
                    case 't': sb.append('\t'); break;
                    case 'r': sb.append('\r'); break;
                    case 'b': sb.append('\b'); break;
                    case 'f': sb.append('\f'); break;
                    case 'u': sb.append((char) Integer.parseInt(s.substring(i, i + 4), 16)); i += 4; break;
                    default: sb.append(e);
                }
            }
        }

        static void quote(StringBuilder sb, String v) {
            if (v == null) { sb.append("null"); return; }
            sb.append('"');
            for (int k = 0; k < v.length(); k++) {
                char c = v.charAt(k);
                switch (c) {
                    case '"': sb.append("\\\""); break;
                    case '\\': sb.append("\\\\"); break;
                    case '\n': sb.append("\\n"); break;
                    case '\r': sb.append("\\r"); break;
                    case '\t': sb.append("\\t"); break;
                    default:
                        if (c < 0x20) sb.append(String.format("\\u%04x", (int) c));
                        else sb.append(c);
                }
            }
            sb.append('"');
        }

        static void write(StringBuilder sb, Object v) {
            if (v == null) { sb.append("null"); return; }
            if (v instanceof String) { quote(sb, (String) v); return; }
            if (v instanceof BigDecimal) { sb.append(((BigDecimal) v).toString()); return; }
            if (v instanceof Boolean) { sb.append(v); return; }
            if (v instanceof List) {
                sb.append('[');
                boolean first = true;
                for (Object x : (List<Object>) v) {
                    if (!first) sb.append(',');
                    first = false;
                    write(sb, x);
                }
                sb.append(']');
                return;
            }
            sb.append('{');
            boolean first = true;
            for (Map.Entry<String, Object> e : ((Map<String, Object>) v).entrySet()) {
                if (!first) sb.append(',');
                first = false;
                quote(sb, e.getKey());
                sb.append(':');
                write(sb, e.getValue());
            }
            sb.append('}');
        }
    }

`
