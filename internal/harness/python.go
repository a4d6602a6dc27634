package harness

import (
	"regexp"
	"strings"
)

var (
	pyDeclaresList = regexp.MustCompile(`(?m)^class\s+ListNode\b`)
	pyDeclaresTree = regexp.MustCompile(`(?m)^class\s+TreeNode\b`)
)

type pythonGenerator struct{}

func (pythonGenerator) generate(sig Signature, solution string) (string, error) {
	listElem, err := sig.nodeElem(KindListNode)
	if err != nil {
		return "", err
	}
	treeElem, err := sig.nodeElem(KindTreeNode)
	if err != nil {
		return "", err
	}

	w := newCodeWriter("    ")
	w.p(0, "import sys")
	w.p(0, "import json")
	w.p(0, "import math")
	w.p(0, "import struct")
	w.p(0, "import heapq")
	w.p(0, "import bisect")
	w.p(0, "import itertools")
	w.p(0, "import functools")
	w.p(0, "import collections")
	w.p(0, "from decimal import Decimal")
	w.p(0, "from typing import *")
	w.p(0, "from collections import *")
	w.p(0, "")
	w.p(0, "sys.setrecursionlimit(1 << 20)")
	w.p(0, "")
	if listElem != nil && !pyDeclaresList.MatchString(solution) {
		w.p(0, "class ListNode:")
		w.p(1, "def __init__(self, val=None, next=None):")
		w.p(2, "self.val = val")
		w.p(2, "self.next = next")
		w.p(0, "")
	}
	if treeElem != nil && !pyDeclaresTree.MatchString(solution) {
		w.p(0, "class TreeNode:")
		w.p(1, "def __init__(self, val=None, left=None, right=None):")
		w.p(2, "self.val = val")
		w.p(2, "self.left = left")
		w.p(2, "self.right = right")
		w.p(0, "")
	}
	w.p(0, "")
	w.raw(strings.TrimSpace(strings.ReplaceAll(solution, "\r\n", "\n")))
	w.p(0, "")
	w.p(0, "")
	w.raw(pythonRuntime)
	for _, t := range sig.types() {
		pythonDecoder(w, t)
		pythonEncoder(w, t)
	}

	w.p(0, "def _oj_main():")
	w.p(1, "lines = sys.stdin.read().split(\"\\n\")")
	for i, p := range sig.Params {
		w.p(1, "%s = _oj_dec_%s(_oj_load(lines, %d))", p.Name, p.Type.ID(), i)
	}
	w.p(1, "if \"Solution\" in globals():")
	w.p(2, "target = getattr(Solution(), %q)", sig.FunctionName)
	w.p(1, "else:")
	w.p(2, "target = globals()[%q]", sig.FunctionName)
	w.p(1, "result = target(%s)", paramNames(sig))
	w.p(1, "sys.stdout.write(_oj_enc_%s(result) + \"\\n\")", sig.Return.ID())
	w.p(1, "sys.stdout.flush()")
	w.p(0, "")
	w.p(0, "")
	w.p(0, "if __name__ == \"__main__\":")
	w.p(1, "_oj_main()")
	return w.String(), nil
}

func pythonDecoder(w *codeWriter, t *Type) {
	id := t.ID()
	w.p(0, "def _oj_dec_%s(o):", id)
	switch t.Kind {
	case KindString, KindChar, KindBool:
		w.p(1, "return o")
	case KindByte, KindShort, KindInt, KindLong, KindBigInteger:
		w.p(1, "return None if o is None else int(Decimal(str(o)))")
	case KindFloat:
		w.p(1, "return None if o is None else _oj_f32(o)")
	case KindDouble:
		w.p(1, "return None if o is None else float(o)")
	case KindBigDecimal:
		w.p(1, "return None if o is None else Decimal(str(o))")
	case KindCustom:
		w.p(1, "return o")
	case KindArray, KindList:
		w.p(1, "return None if o is None else [_oj_dec_%s(x) for x in o]", t.Elem.ID())
	case KindSet:
		w.p(1, "return None if o is None else set(_oj_dec_%s(x) for x in o)", t.Elem.ID())
	case KindMap:
		key := "k"
		if t.Key.Kind != KindString {
			key = "int(k)"
		}
		w.p(1, "return None if o is None else {%s: _oj_dec_%s(v) for k, v in o.items()}", key, t.Elem.ID())
	case KindListNode:
		w.p(1, "head = None")
		w.p(1, "for x in reversed(o or []):")
		w.p(2, "head = ListNode(_oj_dec_%s(x), head)", t.Elem.ID())
		w.p(1, "return head")
	case KindTreeNode:
		w.p(1, "if not o or o[0] is None:")
		w.p(2, "return None")
		w.p(1, "root = TreeNode(_oj_dec_%s(o[0]))", t.Elem.ID())
		w.p(1, "queue = collections.deque([root])")
		w.p(1, "i = 1")
		w.p(1, "while queue and i < len(o):")
		w.p(2, "node = queue.popleft()")
		w.p(2, "if i < len(o) and o[i] is not None:")
		w.p(3, "node.left = TreeNode(_oj_dec_%s(o[i]))", t.Elem.ID())
		w.p(3, "queue.append(node.left)")
		w.p(2, "i += 1")
		w.p(2, "if i < len(o) and o[i] is not None:")
		w.p(3, "node.right = TreeNode(_oj_dec_%s(o[i]))", t.Elem.ID())
		w.p(3, "queue.append(node.right)")
		w.p(2, "i += 1")
		w.p(1, "return root")
	}
	w.p(0, "")
	w.p(0, "")
}

func pythonEncoder(w *codeWriter, t *Type) {
	id := t.ID()
	w.p(0, "def _oj_enc_%s(v):", id)
	w.p(1, "if v is None:")
	w.p(2, "return \"null\"")
	switch t.Kind {
	case KindString, KindChar:
		w.p(1, "return json.dumps(str(v), ensure_ascii=False)")
	case KindBool:
		w.p(1, "return \"true\" if v else \"false\"")
	case KindByte, KindShort, KindInt, KindLong, KindBigInteger:
		w.p(1, "return str(int(v))")
	case KindFloat:
		w.p(1, "return _oj_float32(v)")
	case KindDouble:
		w.p(1, "return repr(float(v))")
	case KindBigDecimal:
		w.p(1, "return _oj_decimal(v)")
	case KindCustom:
		w.p(1, "return _oj_dump(v)")
	case KindArray, KindList:
		w.p(1, "return \"[\" + \",\".join(_oj_enc_%s(x) for x in v) + \"]\"", t.Elem.ID())
	case KindSet:
		w.p(1, "return \"[\" + \",\".join(_oj_enc_%s(x) for x in sorted(v)) + \"]\"", t.Elem.ID())
	case KindMap:
		w.p(1, "parts = [json.dumps(str(k), ensure_ascii=False) + \":\" + _oj_enc_%s(x) for k, x in v.items()]", t.Elem.ID())
		w.p(1, "return \"{\" + \",\".join(parts) + \"}\"")
	case KindListNode:
		w.p(1, "items = []")
		w.p(1, "while v is not None:")
		w.p(2, "items.append(_oj_enc_%s(v.val))", t.Elem.ID())
		w.p(2, "v = v.next")
		w.p(1, "return \"[\" + \",\".join(items) + \"]\"")
	case KindTreeNode:
		w.p(1, "order = [v]")
		w.p(1, "i = 0")
		w.p(1, "while i < len(order):")
		w.p(2, "node = order[i]")
		w.p(2, "if node is not None:")
		w.p(3, "order.append(node.left)")
		w.p(3, "order.append(node.right)")
		w.p(2, "i += 1")
		w.p(1, "while order and order[-1] is None:")
		w.p(2, "order.pop()")
		w.p(1, "return \"[\" + \",\".join(\"null\" if n is None else _oj_enc_%s(n.val) for n in order) + \"]\"", t.Elem.ID())
	}
	w.p(0, "")
	w.p(0, "")
}

const pythonRuntime = `def _oj_load(lines, index):
    if index >= len(lines):
        raise ValueError("missing input line %d" % index)
    return json.loads(lines[index], parse_float=Decimal)


def _oj_f32(v):
    return struct.unpack("f", struct.pack("f", float(v)))[0]


def _oj_float32(v):
    f = _oj_f32(v)
    if not math.isfinite(f):
        raise ValueError("%r has no JSON representation" % f)
    if f == 0:
        return "0"
    if f == math.trunc(f) and abs(f) < 1e15:
        return str(int(f))
    for p in range(1, 10):
        text = "%.*e" % (p - 1, f)
        if _oj_f32(float(text)) == f:
            break
    exp = int(text[text.index("e") + 1:])
    if exp < -4 or exp >= 6:
        return text
    return "%.*f" % (max(p - 1 - exp, 0), f)


def _oj_decimal(v):
    d = Decimal(str(v)).normalize()
    text = format(d, "f")
    if "." in text:
        text = text.rstrip("0").rstrip(".")
    return text or "0"


def _oj_dump(v):
    if v is None:
        return "null"
    if isinstance(v, bool):
        return "true" if v else "false"
    if isinstance(v, (int, Decimal)):
        return _oj_decimal(v)
    if isinstance(v, float):
        return repr(v)
    if isinstance(v, str):
        return json.dumps(v, ensure_ascii=False)
    if isinstance(v, dict):
        return "{" + ",".join(json.dumps(str(k), ensure_ascii=False) + ":" + _oj_dump(x) for k, x in v.items()) + "}"
    return "[" + ",".join(_oj_dump(x) for x in v) + "]"


`
