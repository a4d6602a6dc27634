// Command configgen renders per-service config files from a profile that
// names each service's base yaml, the infrastructure blocks every service
// shares, and per-service overrides.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

type tree = map[string]any

type Profile struct {
	OutputDir string                    `yaml:"outputDir"`
	Shared    tree                      `yaml:"shared"`
	Services  map[string]ServiceProfile `yaml:"services"`
}

type ServiceProfile struct {
	Base      string `yaml:"base"`
	Output    string `yaml:"output"`
	Overrides tree   `yaml:"overrides"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "configgen:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("configgen", flag.ContinueOnError)
	profilePath := fs.String("profile", "configs/dev-profile.yaml", "Path to config profile")
	outputDir := fs.String("output-dir", "", "Override output directory")
	dryRun := fs.Bool("dry-run", false, "Print rendered configs instead of writing them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	absProfile, err := filepath.Abs(*profilePath)
	if err != nil {
		return fmt.Errorf("resolve profile path: %w", err)
	}
	profile, err := loadProfile(absProfile)
	if err != nil {
		return err
	}
	if *outputDir != "" {
		profile.OutputDir = *outputDir
	}
	if profile.OutputDir == "" {
		return errors.New("output directory is required")
	}
	root := filepath.Dir(absProfile)
	profile.OutputDir = relativeTo(root, profile.OutputDir)

	names := make([]string, 0, len(profile.Services))
	for name := range profile.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		svc := profile.Services[name]
		rendered, err := render(profile, root, svc)
		if err != nil {
			return fmt.Errorf("service %q: %w", name, err)
		}
		out := svc.Output
		if out == "" {
			out = filepath.Base(svc.Base)
		}
		out = relativeTo(profile.OutputDir, out)

		data, err := yaml.Marshal(rendered)
		if err != nil {
			return fmt.Errorf("service %q: marshal: %w", name, err)
		}
		if *dryRun {
			fmt.Fprintf(stdout, "# %s -> %s\n%s---\n", name, out, data)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("service %q: %w", name, err)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("service %q: %w", name, err)
		}
	}
	return nil
}

// render layers base <- shared <- overrides for one service.
func render(profile *Profile, root string, svc ServiceProfile) (tree, error) {
	if svc.Base == "" {
		return nil, errors.New("missing base config")
	}
	data, err := os.ReadFile(relativeTo(root, svc.Base))
	if err != nil {
		return nil, fmt.Errorf("read base: %w", err)
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse base: %w", err)
	}
	base, ok := normalize(raw).(tree)
	if !ok {
		return nil, errors.New("base config is not a mapping")
	}
	out := applyShared(base, profile.Shared)
	if len(svc.Overrides) > 0 {
		out = merge(out, normalize(svc.Overrides).(tree))
	}
	return out, nil
}

func loadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if len(profile.Services) == 0 {
		return nil, errors.New("profile has no services")
	}
	return &profile, nil
}

func relativeTo(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// applyShared merges a shared block only into services that already declare
// it, so the judge never picks up the submit side's database block.
func applyShared(cfg tree, shared tree) tree {
	out := cfg
	if len(shared) == 0 {
		return out
	}
	for key, block := range normalize(shared).(tree) {
		if _, declared := cfg[key]; !declared {
			continue
		}
		out = merge(out, tree{key: block})
	}
	return out
}

// merge returns a copy of base with override applied; nested mappings merge
// key by key and everything else is replaced.
func merge(base, override tree) tree {
	out := make(tree, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if dst, ok := out[k].(tree); ok {
			if src, ok := v.(tree); ok {
				out[k] = merge(dst, src)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// normalize turns yaml's generic decode output into string-keyed trees.
func normalize(v any) any {
	switch t := v.(type) {
	case tree:
		out := make(tree, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(tree, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
