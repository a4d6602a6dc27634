package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name     string
		actual   string
		expected string
		want     bool
	}{
		{"json spacing", "[1, 2, 3]\n", "[1,2,3]", true},
		{"object key order", `{"b":1,"a":2}`, `{"a":2,"b":1}`, true},
		{"sequence order matters", "[1,2,3]", "[3,2,1]", false},
		{"byte order mark", "\ufeff42\n", "42", true},
		{"zero width space", "4\u200b2", "42", true},
		{"float zeros", "1.0", "1", true},
		{"boolean case", "True", "true", true},
		{"json per line", "1\n2\n", "1\n2", true},
		{"brackets in text", "[1, 2 ,3] extra", "[1,2,3] extra", true},
		{"trailing zeros in text", "answer: 1.50", "answer: 1.5", true},
		{"number glued to identifier", "x1.0", "x1", false},
		{"crlf", "a b\r\nc\r\n", "a b\nc", true},
		{"trailing whitespace per line", "a  \nb\t", "a\nb", true},
		{"empty vs newline", "", "\n", true},
		{"different values", "41", "42", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.actual, tt.expected))
		})
	}
}

func TestNormalizeKeepsQuotedText(t *testing.T) {
	assert.Equal(t, `say "a ,  b" now`, Normalize(`say "a ,  b" now`))
}

func TestNormalizeCanonicalJSON(t *testing.T) {
	assert.Equal(t, `{"a":[1,2.5],"b":"x"}`, Normalize(" {\"b\": \"x\", \"a\": [1.0, 2.50]} \n"))
}
