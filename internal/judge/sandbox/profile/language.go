// Package profile defines language and task profiles used by the sandbox.
package profile

// LanguageSpec defines how to compile and run a language.
// Command templates expand {src}, {bin} and {workdir} before shlex splitting.
type LanguageSpec struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	Version          string   `yaml:"version"`
	SourceFile       string   `yaml:"sourceFile"`
	BinaryFile       string   `yaml:"binaryFile"`
	CompileEnabled   bool     `yaml:"compileEnabled"`
	CompileCmdTpl    string   `yaml:"compileCmd"`
	RunCmdTpl        string   `yaml:"runCmd"`
	Env              []string `yaml:"env"`
	TimeMultiplier   float64  `yaml:"timeMultiplier"`
	MemoryMultiplier float64  `yaml:"memoryMultiplier"`
}

// Merge returns s with every non-zero field of override applied.
func (s LanguageSpec) Merge(override LanguageSpec) LanguageSpec {
	if override.Name != "" {
		s.Name = override.Name
	}
	if override.Version != "" {
		s.Version = override.Version
	}
	if override.SourceFile != "" {
		s.SourceFile = override.SourceFile
	}
	if override.BinaryFile != "" {
		s.BinaryFile = override.BinaryFile
	}
	if override.CompileCmdTpl != "" {
		s.CompileEnabled = true
		s.CompileCmdTpl = override.CompileCmdTpl
	}
	if override.RunCmdTpl != "" {
		s.RunCmdTpl = override.RunCmdTpl
	}
	if len(override.Env) > 0 {
		s.Env = override.Env
	}
	if override.TimeMultiplier > 0 {
		s.TimeMultiplier = override.TimeMultiplier
	}
	if override.MemoryMultiplier > 0 {
		s.MemoryMultiplier = override.MemoryMultiplier
	}
	return s
}
