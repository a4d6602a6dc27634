package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"ojcore/internal/judge/sandbox/spec"
)

func applyBindMounts(rootfs string, mounts []spec.MountSpec) error {
	for _, m := range mounts {
		if m.Source == "" || m.Target == "" {
			return fmt.Errorf("invalid mount spec")
		}
		target := m.Target
		if rootfs != "" {
			target = filepath.Join(rootfs, m.Target)
		}
		if err := ensureMountTarget(m.Source, target); err != nil {
			return err
		}
		if err := unix.Mount(m.Source, target, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
			return fmt.Errorf("bind mount %s: %w", m.Target, err)
		}
		if m.ReadOnly {
			flags := uintptr(unix.MS_BIND | unix.MS_REMOUNT | unix.MS_RDONLY | unix.MS_NOSUID | unix.MS_NODEV)
			if err := unix.Mount("", target, "", flags, ""); err != nil {
				return fmt.Errorf("remount readonly %s: %w", m.Target, err)
			}
		}
	}
	if rootfs != "" {
		procPath := filepath.Join(rootfs, "proc")
		if err := os.MkdirAll(procPath, 0755); err != nil {
			return fmt.Errorf("mkdir proc: %w", err)
		}
		if err := unix.Mount("proc", procPath, "proc", unix.MS_NOSUID|unix.MS_NODEV|unix.MS_NOEXEC, ""); err != nil && !errors.Is(err, unix.EBUSY) {
			return fmt.Errorf("mount proc: %w", err)
		}
		tmpPath := filepath.Join(rootfs, "tmp")
		if err := os.MkdirAll(tmpPath, 01777); err != nil {
			return fmt.Errorf("mkdir tmp: %w", err)
		}
		if err := unix.Mount("tmpfs", tmpPath, "tmpfs", unix.MS_NOSUID|unix.MS_NODEV, "size=64m,mode=1777"); err != nil {
			return fmt.Errorf("mount tmp: %w", err)
		}
	}
	return nil
}

func ensureMountTarget(source, target string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("stat mount source: %w", err)
	}
	if info.IsDir() {
		if err := os.MkdirAll(target, 0755); err != nil {
			return fmt.Errorf("mkdir mount target: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("mkdir mount target dir: %w", err)
	}
	file, err := os.OpenFile(target, os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("create mount target file: %w", err)
	}
	return file.Close()
}

func applyRlimits(limits spec.ResourceLimit) error {
	for _, rl := range rlimitsFor(limits) {
		if err := unix.Setrlimit(rl.resource, &unix.Rlimit{Cur: rl.value, Max: rl.value}); err != nil {
			return fmt.Errorf("set rlimit %s: %w", rl.name, err)
		}
	}
	return nil
}

type rlimit struct {
	name     string
	resource int
	value    uint64
}

// rlimitsFor translates limits into setrlimit calls. CPU time is rounded up
// to whole seconds plus one so the wall timer and cgroup usage decide TLE.
func rlimitsFor(limits spec.ResourceLimit) []rlimit {
	var out []rlimit
	if limits.CPUTimeMs > 0 {
		seconds := uint64((limits.CPUTimeMs+999)/1000) + 1
		out = append(out, rlimit{"cpu", unix.RLIMIT_CPU, seconds})
	}
	if limits.OutputMB > 0 {
		out = append(out, rlimit{"fsize", unix.RLIMIT_FSIZE, uint64(limits.OutputMB) << 20})
	}
	if limits.StackMB > 0 {
		out = append(out, rlimit{"stack", unix.RLIMIT_STACK, uint64(limits.StackMB) << 20})
	}
	if limits.PIDs > 0 {
		out = append(out, rlimit{"nproc", unix.RLIMIT_NPROC, uint64(limits.PIDs)})
	}
	return out
}

func redirectIO(runSpec spec.RunSpec) error {
	stdinFile, err := os.Open(orDevNull(runSpec.StdinPath))
	if err != nil {
		return fmt.Errorf("open stdin: %w", err)
	}
	stdoutFile, err := os.OpenFile(orDevNull(runSpec.StdoutPath), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open stdout: %w", err)
	}
	stderrFile, err := os.OpenFile(orDevNull(runSpec.StderrPath), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open stderr: %w", err)
	}
	for _, pair := range [][2]*os.File{{stdinFile, os.Stdin}, {stdoutFile, os.Stdout}, {stderrFile, os.Stderr}} {
		if err := unix.Dup2(int(pair[0].Fd()), int(pair[1].Fd())); err != nil {
			return fmt.Errorf("dup %s: %w", pair[1].Name(), err)
		}
		_ = pair[0].Close()
	}
	return nil
}

func orDevNull(path string) string {
	if path == "" {
		return "/dev/null"
	}
	return path
}
