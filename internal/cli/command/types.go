package command

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type FieldType int

const (
	FieldString FieldType = iota
	FieldInt64
	// FieldFile values are paths whose contents stand in for another field.
	FieldFile
)

type Field struct {
	Name     string
	Aliases  []string
	Prompt   string
	Type     FieldType
	Required bool
}

// Command binds "<service> <action>" to one HTTP endpoint.
type Command struct {
	Service      string
	Action       string
	Method       string
	PathTemplate string
	Fields       []Field
	// Watch repeats the request until the returned verdict is terminal.
	Watch bool
}

func (c Command) Key() string {
	return c.Service + " " + c.Action
}

type RequestSpec struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
}

// Params holds key=value arguments; keys are case-insensitive.
type Params map[string]string

// ParseParams reads "key=value" tokens.
func ParseParams(tokens []string) (Params, error) {
	p := make(Params, len(tokens))
	for _, token := range tokens {
		key, value, ok := strings.Cut(token, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param: %s", token)
		}
		p.Set(key, value)
	}
	return p, nil
}

func (p Params) Get(key string) string {
	return p[strings.ToLower(key)]
}

func (p Params) Set(key, value string) {
	p[strings.ToLower(key)] = value
}

func (p Params) Has(key string) bool {
	_, ok := p[strings.ToLower(key)]
	return ok
}

// Canonicalize renames alias keys to their field names.
func (p Params) Canonicalize(fields []Field) {
	for _, field := range fields {
		name := strings.ToLower(field.Name)
		for _, alias := range field.Aliases {
			alias = strings.ToLower(alias)
			if value, ok := p[alias]; ok {
				p[name] = value
				delete(p, alias)
			}
		}
	}
}

func (p Params) Int64(key string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(p.Get(key)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// FileContents reads the file named by key.
func (p Params) FileContents(key string) (string, error) {
	data, err := os.ReadFile(p.Get(key))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), nil
}
