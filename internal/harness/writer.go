package harness

import (
	"fmt"
	"strings"
)

// codeWriter accumulates generated source with a fixed indent unit.
type codeWriter struct {
	b    strings.Builder
	unit string
}

func newCodeWriter(unit string) *codeWriter {
	return &codeWriter{unit: unit}
}

// p writes one line at the given depth.
func (w *codeWriter) p(depth int, format string, args ...any) {
	if format == "" {
		w.b.WriteByte('\n')
		return
	}
	w.b.WriteString(strings.Repeat(w.unit, depth))
	if len(args) == 0 {
		w.b.WriteString(format)
	} else {
		fmt.Fprintf(&w.b, format, args...)
	}
	w.b.WriteByte('\n')
}

// raw writes text as is, ensuring it ends with a newline.
func (w *codeWriter) raw(text string) {
	w.b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		w.b.WriteByte('\n')
	}
}

func (w *codeWriter) String() string {
	return w.b.String()
}

// splitLines separates lines accepted by keep from the rest of src.
func splitLines(src string, keep func(trimmed string) bool) (kept []string, rest string) {
	var body []string
	for _, line := range strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n") {
		if keep(strings.TrimSpace(line)) {
			kept = append(kept, strings.TrimSpace(line))
			continue
		}
		body = append(body, line)
	}
	return kept, strings.Join(body, "\n")
}

// paramNames joins parameter names for a call expression.
func paramNames(sig Signature) string {
	names := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}
