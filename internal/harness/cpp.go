package harness

import (
	"regexp"
	"strings"
)

var (
	cppDeclaresList = regexp.MustCompile(`\bstruct\s+ListNode\s*\{|\bclass\s+ListNode\s*\{`)
	cppDeclaresTree = regexp.MustCompile(`\bstruct\s+TreeNode\s*\{|\bclass\s+TreeNode\s*\{`)
)

type cppGenerator struct{}

func (cppGenerator) generate(sig Signature, solution string) (string, error) {
	listElem, err := sig.nodeElem(KindListNode)
	if err != nil {
		return "", err
	}
	treeElem, err := sig.nodeElem(KindTreeNode)
	if err != nil {
		return "", err
	}
	includes, body := splitLines(solution, func(l string) bool {
		return strings.HasPrefix(l, "#include")
	})

	w := newCodeWriter("    ")
	w.p(0, "#include <bits/stdc++.h>")
	w.p(0, "#include <charconv>")
	for _, inc := range includes {
		w.p(0, "%s", inc)
	}
	w.p(0, "using namespace std;")
	w.p(0, "")
	if listElem != nil && !cppDeclaresList.MatchString(body) {
		vt := cppType(listElem)
		w.p(0, "struct ListNode {")
		w.p(1, "%s val;", vt)
		w.p(1, "ListNode *next;")
		w.p(1, "ListNode() : val(), next(nullptr) {}")
		w.p(1, "ListNode(%s x) : val(x), next(nullptr) {}", vt)
		w.p(1, "ListNode(%s x, ListNode *next) : val(x), next(next) {}", vt)
		w.p(0, "};")
		w.p(0, "")
	}
	if treeElem != nil && !cppDeclaresTree.MatchString(body) {
		vt := cppType(treeElem)
		w.p(0, "struct TreeNode {")
		w.p(1, "%s val;", vt)
		w.p(1, "TreeNode *left;")
		w.p(1, "TreeNode *right;")
		w.p(1, "TreeNode() : val(), left(nullptr), right(nullptr) {}")
		w.p(1, "TreeNode(%s x) : val(x), left(nullptr), right(nullptr) {}", vt)
		w.p(1, "TreeNode(%s x, TreeNode *left, TreeNode *right) : val(x), left(left), right(right) {}", vt)
		w.p(0, "};")
		w.p(0, "")
	}
	w.raw(strings.TrimSpace(body))
	w.p(0, "")
	w.raw(cppJSONRuntime)
	for _, t := range sig.types() {
		cppDecoder(w, t)
		cppEncoder(w, t)
	}
	w.p(0, "}  // namespace ojh")
	w.p(0, "")

	w.p(0, "int main() {")
	w.p(1, "ios::sync_with_stdio(false);")
	w.p(1, "string line;")
	for _, p := range sig.Params {
		w.p(1, "if (!getline(cin, line)) throw runtime_error(\"missing input for %s\");", p.Name)
		w.p(1, "%s %s = ojh::dec_%s(ojh::parse(line));", cppType(p.Type), p.Name, p.Type.ID())
	}
	w.p(1, "Solution solution;")
	w.p(1, "%s result = solution.%s(%s);", cppType(sig.Return), sig.FunctionName, paramNames(sig))
	w.p(1, "string out;")
	w.p(1, "ojh::enc_%s(out, result);", sig.Return.ID())
	w.p(1, "out.push_back('\\n');")
	w.p(1, "fwrite(out.data(), 1, out.size(), stdout);")
	w.p(1, "return 0;")
	w.p(0, "}")
	return w.String(), nil
}

func cppType(t *Type) string {
	switch t.Kind {
	case KindString, KindBigInteger, KindBigDecimal, KindCustom:
		return "string"
	case KindChar:
		return "char"
	case KindBool:
		return "bool"
	case KindByte:
		return "signed char"
	case KindShort:
		return "short"
	case KindInt:
		return "int"
	case KindLong:
		return "long long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindArray, KindList:
		return "vector<" + cppType(t.Elem) + ">"
	case KindSet:
		return "set<" + cppType(t.Elem) + ">"
	case KindMap:
		return "map<" + cppType(t.Key) + ", " + cppType(t.Elem) + ">"
	case KindListNode:
		return "ListNode*"
	case KindTreeNode:
		return "TreeNode*"
	}
	return "string"
}

func cppDecoder(w *codeWriter, t *Type) {
	ct := cppType(t)
	id := t.ID()
	w.p(0, "%s dec_%s(const J &v) {", ct, id)
	switch t.Kind {
	case KindString:
		w.p(1, "return v.s;")
	case KindChar:
		w.p(1, "if (v.s.empty()) throw runtime_error(\"empty char\");")
		w.p(1, "return v.s[0];")
	case KindBool:
		w.p(1, "return v.b;")
	case KindByte:
		w.p(1, "return static_cast<signed char>(stoi(v.s));")
	case KindShort:
		w.p(1, "return static_cast<short>(stoi(v.s));")
	case KindInt:
		w.p(1, "return stoi(v.s);")
	case KindLong:
		w.p(1, "return stoll(v.s);")
	case KindFloat:
		w.p(1, "return strtof(v.s.c_str(), nullptr);")
	case KindDouble:
		w.p(1, "return strtod(v.s.c_str(), nullptr);")
	case KindBigInteger, KindBigDecimal:
		w.p(1, "return v.s;")
	case KindCustom:
		w.p(1, "string out;")
		w.p(1, "dump(out, v);")
		w.p(1, "return out;")
	case KindArray, KindList:
		w.p(1, "%s r;", ct)
		w.p(1, "r.reserve(v.a.size());")
		w.p(1, "for (const J &x : v.a) r.push_back(dec_%s(x));", t.Elem.ID())
		w.p(1, "return r;")
	case KindSet:
		w.p(1, "%s r;", ct)
		w.p(1, "for (const J &x : v.a) r.insert(dec_%s(x));", t.Elem.ID())
		w.p(1, "return r;")
	case KindMap:
		w.p(1, "%s r;", ct)
		w.p(1, "for (const auto &e : v.o) r[%s] = dec_%s(e.second);", cppKey(t.Key, "e.first"), t.Elem.ID())
		w.p(1, "return r;")
	case KindListNode:
		w.p(1, "ListNode *head = nullptr;")
		w.p(1, "for (size_t i = v.a.size(); i > 0; i--) head = new ListNode(dec_%s(v.a[i - 1]), head);", t.Elem.ID())
		w.p(1, "return head;")
	case KindTreeNode:
		w.p(1, "if (v.a.empty() || v.a[0].t == J::Null) return nullptr;")
		w.p(1, "TreeNode *root = new TreeNode(dec_%s(v.a[0]));", t.Elem.ID())
		w.p(1, "deque<TreeNode*> q{root};")
		w.p(1, "size_t i = 1;")
		w.p(1, "while (!q.empty() && i < v.a.size()) {")
		w.p(2, "TreeNode *n = q.front();")
		w.p(2, "q.pop_front();")
		w.p(2, "if (i < v.a.size() && v.a[i].t != J::Null) { n->left = new TreeNode(dec_%s(v.a[i])); q.push_back(n->left); }", t.Elem.ID())
		w.p(2, "i++;")
		w.p(2, "if (i < v.a.size() && v.a[i].t != J::Null) { n->right = new TreeNode(dec_%s(v.a[i])); q.push_back(n->right); }", t.Elem.ID())
		w.p(2, "i++;")
		w.p(1, "}")
		w.p(1, "return root;")
	}
	w.p(0, "}")
	w.p(0, "")
}

func cppKey(t *Type, expr string) string {
	switch t.Kind {
	case KindInt:
		return "stoi(" + expr + ")"
	case KindLong:
		return "stoll(" + expr + ")"
	default:
		return expr
	}
}

func cppEncoder(w *codeWriter, t *Type) {
	ct := cppType(t)
	id := t.ID()
	param := "const " + ct + " &v"
	if t.Kind == KindListNode || t.Kind == KindTreeNode {
		param = ct + " v"
	}
	w.p(0, "void enc_%s(string &out, %s) {", id, param)
	switch t.Kind {
	case KindString:
		w.p(1, "quote(out, v);")
	case KindChar:
		w.p(1, "quote(out, string(1, v));")
	case KindBool:
		w.p(1, "out += v ? \"true\" : \"false\";")
	case KindByte, KindShort, KindInt, KindLong:
		w.p(1, "out += to_string(static_cast<long long>(v));")
	case KindFloat, KindDouble:
		w.p(1, "char buf[64];")
		w.p(1, "auto res = to_chars(buf, buf + sizeof(buf), v);")
		w.p(1, "out.append(buf, res.ptr);")
	case KindBigInteger, KindBigDecimal, KindCustom:
		w.p(1, "out += v.empty() ? \"null\" : v;")
	case KindArray, KindList, KindSet:
		w.p(1, "out.push_back('[');")
		w.p(1, "bool first = true;")
		w.p(1, "for (const auto &x : v) {")
		w.p(2, "if (!first) out.push_back(',');")
		w.p(2, "first = false;")
		if t.Elem.Kind == KindBool {
			w.p(2, "enc_%s(out, static_cast<bool>(x));", t.Elem.ID())
		} else {
			w.p(2, "enc_%s(out, x);", t.Elem.ID())
		}
		w.p(1, "}")
		w.p(1, "out.push_back(']');")
	case KindMap:
		w.p(1, "out.push_back('{');")
		w.p(1, "bool first = true;")
		w.p(1, "for (const auto &e : v) {")
		w.p(2, "if (!first) out.push_back(',');")
		w.p(2, "first = false;")
		if t.Key.Kind == KindString {
			w.p(2, "quote(out, e.first);")
		} else {
			w.p(2, "quote(out, to_string(e.first));")
		}
		w.p(2, "out.push_back(':');")
		w.p(2, "enc_%s(out, e.second);", t.Elem.ID())
		w.p(1, "}")
		w.p(1, "out.push_back('}');")
	case KindListNode:
		w.p(1, "out.push_back('[');")
		w.p(1, "for (ListNode *n = v; n != nullptr; n = n->next) {")
		w.p(2, "if (n != v) out.push_back(',');")
		w.p(2, "enc_%s(out, n->val);", t.Elem.ID())
		w.p(1, "}")
		w.p(1, "out.push_back(']');")
	case KindTreeNode:
		w.p(1, "vector<TreeNode*> order;")
		w.p(1, "if (v != nullptr) order.push_back(v);")
		w.p(1, "for (size_t i = 0; i < order.size(); i++) {")
		w.p(2, "if (order[i] != nullptr) { order.push_back(order[i]->left); order.push_back(order[i]->right); }")
		w.p(1, "}")
		w.p(1, "while (!order.empty() && order.back() == nullptr) order.pop_back();")
		w.p(1, "out.push_back('[');")
		w.p(1, "for (size_t i = 0; i < order.size(); i++) {")
		w.p(2, "if (i > 0) out.push_back(',');")
		w.p(2, "if (order[i] == nullptr) out += \"null\"; else enc_%s(out, order[i]->val);", t.Elem.ID())
		w.p(1, "}")
		w.p(1, "out.push_back(']');")
	}
	w.p(0, "}")
	w.p(0, "")
}

const cppJSONRuntime = `namespace ojh {

struct J {
    enum Kind { Null, Bool, Num, Str, Arr, Obj } t = Null;
    bool b = false;
    string s;
    vector<J> a;
    vector<pair<string, J>> o;
};

struct Parser {
    const string &s;
    size_t i = 0;

    explicit Parser(const string &text) : s(text) {}

    void ws() {
        while (i < s.size() && isspace(static_cast<unsigned char>(s[i]))) i++;
    }

    char next() {
        if (i >= s.size()) throw runtime_error("unexpected end of input");
        return s[i++];
    }

    static void utf8(string &out, unsigned cp) {
        if (cp < 0x80) {
            out.push_back(static_cast<char>(cp));
        } else if (cp < 0x800) {
            out.push_back(static_cast<char>(0xC0 | (cp >> 6)));
            out.push_back(static_cast<char>(0x80 | (cp & 0x3F)));
        } else if (cp < 0x10000) {
            out.push_back(static_cast<char>(0xE0 | (cp >> 12)));
            out.push_back(static_cast<char>(0x80 | ((cp >> 6) & 0x3F)));
            out.push_back(static_cast<char>(0x80 | (cp & 0x3F)));
        } else {
            out.push_back(static_cast<char>(0xF0 | (cp >> 18)));
            out.push_back(static_cast<char>(0x80 | ((cp >> 12) & 0x3F)));
            out.push_back(static_cast<char>(0x80 | ((cp >> 6) & 0x3F)));
            out.push_back(static_cast<char>(0x80 | (cp & 0x3F)));
        }
    }

    string str() {
        string out;
        next();
        while (true) {
            char c = next();
            if (c == '"') return out;
            if (c != '\\') { out.push_back(c); continue; }
            char e = next();
            switch (e) {
                case 'n': out.push_back('\n'); break;
                case 't': out.push_back('\t'); break;
                case 'r': out.push_back('\r'); break;
                case 'b': out.push_back('\b'); break;
                case 'f': out.push_back('\f'); break;
                case 'u': {
                    unsigned cp = stoul(s.substr(i, 4), nullptr, 16);
                    i += 4;
                    if (cp >= 0xD800 && cp < 0xDC00 && i + 6 <= s.size() && s[i] == '\\' && s[i + 1] == 'u') {
                        unsigned lo = stoul(s.substr(i + 2, 4), nullptr, 16);
                        i += 6;
                        cp = 0x10000 + ((cp - 0xD800) << 10) + (lo - 0xDC00);
                    }
                    utf8(out, cp);
                    break;
                }
                default: out.push_back(e);
            }
        }
    }

    J value() {
        ws();
        J v;
        if (i >= s.size()) throw runtime_error("unexpected end of input");
        char c = s[i];
        if (c == '{') {
            v.t = J::Obj;
            i++;
            ws();
            if (s[i] == '}') { i++; return v; }
            while (true) {
                ws();
                string k = str();
                ws();
                if (next() != ':') throw runtime_error("expected :");
                v.o.emplace_back(k, value());
                ws();
                char d = next();
                if (d == '}') return v;
                if (d != ',') throw runtime_error("expected , or }");
            }
        }
        if (c == '[') {
            v.t = J::Arr;
            i++;
            ws();
            if (s[i] == ']') { i++; return v; }
            while (true) {
                v.a.push_back(value());
                ws();
                char d = next();
                if (d == ']') return v;
                if (d != ',') throw runtime_error("expected , or ]");
            }
        }
        if (c == '"') {
            v.t = J::Str;
            v.s = str();
            return v;
        }
        if (s.compare(i, 4, "true") == 0) { i += 4; v.t = J::Bool; v.b = true; return v; }
        if (s.compare(i, 5, "false") == 0) { i += 5; v.t = J::Bool; return v; }
        if (s.compare(i, 4, "null") == 0) { i += 4; return v; }
        size_t start = i;
        while (i < s.size() && strchr("+-0123456789.eE", s[i]) != nullptr) i++;
        if (start == i) throw runtime_error("unexpected character");
        v.t = J::Num;
        v.s = s.substr(start, i - start);
        return v;
    }
};

J parse(const string &line) {
    Parser p(line);
    J v = p.value();
    p.ws();
    if (p.i != line.size()) throw runtime_error("trailing data");
    return v;
}

void quote(string &out, const string &v) {
    out.push_back('"');
    for (unsigned char c : v) {
        switch (c) {
            case '"': out += "\\\""; break;
            case '\\': out += "\\\\"; break;
            case '\n': out += "\\n"; break;
            case '\r': out += "\\r"; break;
            case '\t': out += "\\t"; break;
            default:
                if (c < 0x20) {
                    char buf[8];
                    snprintf(buf, sizeof(buf), "\\u%04x", c);
                    out += buf;
                } else {
                    out.push_back(static_cast<char>(c));
                }
        }
    }
    out.push_back('"');
}

void dump(string &out, const J &v) {
    switch (v.t) {
        case J::Null: out += "null"; break;
        case J::Bool: out += v.b ? "true" : "false"; break;
        case J::Num: out += v.s; break;
        case J::Str: quote(out, v.s); break;
        case J::Arr:
            out.push_back('[');
            for (size_t k = 0; k < v.a.size(); k++) {
                if (k > 0) out.push_back(',');
                dump(out, v.a[k]);
            }
            out.push_back(']');
            break;
        case J::Obj:
            out.push_back('{');
            for (size_t k = 0; k < v.o.size(); k++) {
                if (k > 0) out.push_back(',');
                quote(out, v.o[k].first);
                out.push_back(':');
                dump(out, v.o[k].second);
            }
            out.push_back('}');
            break;
    }
}

`
