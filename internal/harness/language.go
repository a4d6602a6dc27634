package harness

import (
	"strings"

	"ojcore/internal/judge/sandbox/profile"
	appErr "ojcore/pkg/errors"
)

// Language identifies a harness target.
type Language string

const (
	Java   Language = "java"
	Python Language = "python"
	Cpp    Language = "cpp"
	Go     Language = "go"
)

// Program is a generated harness ready to be written into a sandbox work dir.
type Program struct {
	Language Language
	FileName string
	Source   string
}

// generator renders a full program around a user solution.
type generator interface {
	generate(sig Signature, solution string) (string, error)
}

// LanguageEntry is one row of the per-language table: how to build the
// harness and how the sandbox compiles and runs it.
type LanguageEntry struct {
	Language Language
	Runtime  profile.LanguageSpec

	gen      generator
	keywords map[string]bool
}

// Languages is the table of supported harness targets. Adding a language
// means adding one entry.
var Languages = map[Language]LanguageEntry{
	Java: {
		Language: Java,
		Runtime: profile.LanguageSpec{
			ID:               string(Java),
			Name:             "Java",
			Version:          "17",
			SourceFile:       "Main.java",
			BinaryFile:       "Main.class",
			CompileEnabled:   true,
			CompileCmdTpl:    "javac -encoding UTF-8 -d {workdir} {src}",
			RunCmdTpl:        "java -Xss64m -XX:+UseSerialGC -XX:TieredStopAtLevel=1 -cp {workdir} Main",
			Env:              []string{"PATH=/usr/lib/jvm/default/bin:/usr/bin:/bin"},
			TimeMultiplier:   2,
			MemoryMultiplier: 2,
		},
		gen:      javaGenerator{},
		keywords: words("abstract assert boolean break byte case catch char class const continue default do double else enum extends final finally float for goto if implements import instanceof int interface long native new package private protected public return short static strictfp super switch synchronized this throw throws transient try void volatile while true false null var record yield"),
	},
	Python: {
		Language: Python,
		Runtime: profile.LanguageSpec{
			ID:               string(Python),
			Name:             "Python",
			Version:          "3",
			SourceFile:       "main.py",
			BinaryFile:       "main.py",
			CompileEnabled:   true,
			CompileCmdTpl:    "python3 -m py_compile {src}",
			RunCmdTpl:        "python3 -S {src}",
			Env:              []string{"PATH=/usr/bin:/bin", "PYTHONIOENCODING=utf-8", "PYTHONDONTWRITEBYTECODE=1"},
			TimeMultiplier:   3,
			MemoryMultiplier: 1.5,
		},
		gen:      pythonGenerator{},
		keywords: words("False None True and as assert async await break class continue def del elif else except finally for from global if import in is lambda nonlocal not or pass raise return try while with yield self"),
	},
	Cpp: {
		Language: Cpp,
		Runtime: profile.LanguageSpec{
			ID:               string(Cpp),
			Name:             "C++",
			Version:          "17",
			SourceFile:       "main.cpp",
			BinaryFile:       "main",
			CompileEnabled:   true,
			CompileCmdTpl:    "g++ -std=c++17 -O2 -pipe -o {bin} {src}",
			RunCmdTpl:        "{bin}",
			Env:              []string{"PATH=/usr/bin:/bin"},
			TimeMultiplier:   1,
			MemoryMultiplier: 1,
		},
		gen:      cppGenerator{},
		keywords: words("alignas alignof and and_eq asm auto bitand bitor bool break case catch char char16_t char32_t class compl const constexpr const_cast continue decltype default delete do double dynamic_cast else enum explicit export extern false float for friend goto if inline int long mutable namespace new noexcept not not_eq nullptr operator or or_eq private protected public register reinterpret_cast return short signed sizeof static static_assert static_cast struct switch template this thread_local throw true try typedef typeid typename union unsigned using virtual void volatile wchar_t while xor xor_eq main std"),
	},
	Go: {
		Language: Go,
		Runtime: profile.LanguageSpec{
			ID:               string(Go),
			Name:             "Go",
			Version:          "1",
			SourceFile:       "main.go",
			BinaryFile:       "main",
			CompileEnabled:   true,
			CompileCmdTpl:    "go build -trimpath -o {bin} {src}",
			RunCmdTpl:        "{bin}",
			Env:              []string{"PATH=/usr/local/go/bin:/usr/bin:/bin", "GOCACHE=/tmp/gocache", "GOPATH=/tmp/gopath", "CGO_ENABLED=0", "GO111MODULE=off"},
			TimeMultiplier:   1,
			MemoryMultiplier: 1,
		},
		gen:      goGenerator{},
		keywords: words("break case chan const continue default defer else fallthrough for func go goto if import interface map package range return select struct switch type var main"),
	},
}

var languageAliases = map[string]Language{
	"java":    Java,
	"java17":  Java,
	"python":  Python,
	"python3": Python,
	"py":      Python,
	"cpp":     Cpp,
	"c++":     Cpp,
	"cpp17":   Cpp,
	"go":      Go,
	"golang":  Go,
}

// LookupLanguage resolves a language id or alias to its table entry.
func LookupLanguage(id string) (LanguageEntry, error) {
	lang, ok := languageAliases[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return LanguageEntry{}, appErr.New(appErr.UnsupportedLanguage).
			WithMessagef("language %q is not supported", id).
			WithDetail("language", id)
	}
	return Languages[lang], nil
}

// Generate builds the harness program for lang around solution.
func Generate(lang Language, sig Signature, solution string) (Program, error) {
	entry, ok := Languages[lang]
	if !ok {
		return Program{}, appErr.New(appErr.UnsupportedLanguage).
			WithMessagef("language %q is not supported", lang).
			WithDetail("language", string(lang))
	}
	if sig.Return == nil {
		return Program{}, appErr.New(appErr.InvalidSignature).WithMessage("return type is required")
	}
	src, err := entry.gen.generate(sig.withKeywords(entry.keywords), solution)
	if err != nil {
		return Program{}, err
	}
	return Program{Language: lang, FileName: entry.Runtime.SourceFile, Source: src}, nil
}

func words(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		out[w] = true
	}
	return out
}
