//go:build linux

package engine

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ojcore/internal/judge/sandbox/spec"
)

func durationFromMs(ms int64) time.Duration {
	return time.Duration(max(ms, 0)) * time.Millisecond
}

// cpuTimeMs is the rusage fallback used when no cgroup accounting exists.
func cpuTimeMs(state *os.ProcessState) int64 {
	if state == nil {
		return 0
	}
	usage, ok := state.SysUsage().(*syscall.Rusage)
	if !ok {
		return 0
	}
	return time.Duration(usage.Utime.Nano() + usage.Stime.Nano()).Milliseconds()
}

// capturedFile is a stream the sandboxed program wrote to a host file.
type capturedFile struct {
	Text   string
	SizeKB int64
}

// captureFile reads at most maxBytes of path. A missing file captures as
// empty; the program may never have opened it.
func captureFile(path string, maxBytes int64) capturedFile {
	if path == "" {
		return capturedFile{}
	}
	f, err := os.Open(path)
	if err != nil {
		return capturedFile{}
	}
	defer f.Close()

	var out capturedFile
	if info, err := f.Stat(); err == nil {
		out.SizeKB = (info.Size() + 1023) / 1024
	}
	if maxBytes > 0 {
		data, _ := io.ReadAll(io.LimitReader(f, maxBytes))
		out.Text = string(data)
	}
	return out
}

// resolveHostPath maps a sandbox path to the host through the most specific
// bind mount covering it.
func resolveHostPath(path string, runSpec spec.RunSpec) string {
	if path == "" {
		return ""
	}
	best := -1
	var hostPath string
	for _, mount := range runSpec.BindMounts {
		if mount.Target == "" || mount.Source == "" {
			continue
		}
		target := filepath.Clean(mount.Target)
		rel, err := filepath.Rel(target, filepath.Clean(path))
		if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
			continue
		}
		if len(target) > best {
			best = len(target)
			hostPath = filepath.Join(mount.Source, rel)
		}
	}
	if best < 0 {
		return path
	}
	return hostPath
}
