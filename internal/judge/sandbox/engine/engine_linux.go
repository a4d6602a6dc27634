//go:build linux

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"ojcore/internal/judge/sandbox/result"
	"ojcore/internal/judge/sandbox/security"
	"ojcore/internal/judge/sandbox/spec"
	appErr "ojcore/pkg/errors"
	"ojcore/pkg/utils/logger"

	"go.uber.org/zap"
)

type linuxEngine struct {
	cfg       Config
	resolver  ProfileResolver
	registry  map[string][]string
	registryM sync.Mutex
}

// NewEngine creates a Linux sandbox engine.
func NewEngine(cfg Config, resolver ProfileResolver) (Engine, error) {
	if resolver == nil {
		return nil, errRequired("profile resolver")
	}
	return &linuxEngine{
		cfg:      cfg.withDefaults(),
		resolver: resolver,
		registry: make(map[string][]string),
	}, nil
}

func (e *linuxEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RunResult{}, err
	}

	isoProfile, err := e.resolver.Resolve(runSpec.Profile)
	if err != nil {
		return result.RunResult{}, errSandbox(err, "resolve profile %s failed", runSpec.Profile)
	}

	cgroupPath := ""
	cgroupCleanup := func() {}
	if e.cfg.EnableCgroup {
		cgroupPath, cgroupCleanup, err = createRunCgroup(e.cfg.CgroupRoot, runSpec.SubmissionID, runSpec.TestID)
		if err != nil {
			return result.RunResult{}, errSandbox(err, "create cgroup failed")
		}
		if err := applyCgroupLimits(cgroupPath, runSpec.Limits, e.cfg.CPUCores); err != nil {
			cgroupCleanup()
			return result.RunResult{}, errSandbox(err, "apply cgroup limits failed")
		}
		e.registerCgroup(runSpec.SubmissionID, cgroupPath)
	}
	defer func() {
		if e.cfg.EnableCgroup {
			e.unregisterCgroup(runSpec.SubmissionID, cgroupPath)
			cgroupCleanup()
		}
	}()

	stdinPipe := jsonToPipe(buildInitRequest(e.cfg, runSpec, isoProfile))
	defer stdinPipe.Close()

	cmd := exec.Command(e.cfg.HelperPath)
	cmd.SysProcAttr = buildSysProcAttr(isoProfile, e.cfg.EnableNamespaces)
	cmd.Stdin = stdinPipe

	var helperStdout bytes.Buffer
	var helperStderr bytes.Buffer
	cmd.Stdout = &helperStdout
	cmd.Stderr = &helperStderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return result.RunResult{}, errSandbox(err, "start sandbox helper failed")
	}

	if e.cfg.EnableCgroup {
		if err := addProcessToCgroup(cgroupPath, cmd.Process.Pid); err != nil {
			e.killProcessGroup(cmd.Process.Pid)
			_ = cmd.Wait()
			return result.RunResult{}, errSandbox(err, "add process to cgroup failed")
		}
	}

	var timedOut, cancelled atomic.Bool
	done := make(chan struct{})
	go func() {
		var wallTimer <-chan time.Time
		if wallLimit := durationFromMs(runSpec.Limits.WallTimeMs); wallLimit > 0 {
			timer := time.NewTimer(wallLimit)
			defer timer.Stop()
			wallTimer = timer.C
		}
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			e.killProcessGroup(cmd.Process.Pid)
		case <-wallTimer:
			timedOut.Store(true)
			e.killProcessGroup(cmd.Process.Pid)
			if cgroupPath != "" {
				_ = killCgroup(cgroupPath)
			}
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	wallTimeMs := time.Since(start).Milliseconds()

	if cancelled.Load() && !timedOut.Load() {
		return result.RunResult{}, errSandbox(ctx.Err(), "sandbox run cancelled")
	}
	if helperFailed(waitErr, helperStderr.String()) {
		logger.Warn(ctx, "sandbox helper failed",
			zap.String("test_id", runSpec.TestID),
			zap.String("stderr", helperStderr.String()),
		)
		return result.RunResult{}, appErr.New(appErr.SandboxError).
			WithMessagef("sandbox helper failed: %s", strings.TrimSpace(helperStderr.String()))
	}

	cpuMs, ok := cgroupCPUTimeMs(cgroupPath)
	if !ok {
		cpuMs = cpuTimeMs(cmd.ProcessState)
	}
	stdout := captureFile(resolveHostPath(runSpec.StdoutPath, runSpec), e.cfg.StdoutStderrMaxBytes)
	stderr := captureFile(resolveHostPath(runSpec.StderrPath, runSpec), e.cfg.StdoutStderrMaxBytes)
	runResult := result.RunResult{
		ExitCode:   exitCodeFromErr(waitErr, cmd.ProcessState),
		TimeMs:     cpuMs,
		WallTimeMs: wallTimeMs,
		MemoryKB:   memoryPeakKB(cgroupPath, cmd.ProcessState),
		OutputKB:   stdout.SizeKB,
		Stdout:     stdout.Text,
		Stderr:     stderr.Text,
		OomKilled:  wasOomKilled(cgroupPath),
		TimedOut:   timedOut.Load(),
	}
	if runResult.TimedOut && runResult.ExitCode == 0 {
		runResult.ExitCode = -1
	}
	// RLIMIT_CPU delivers SIGXCPU before the wall timer fires.
	if signaled(cmd.ProcessState, syscall.SIGXCPU) {
		runResult.TimedOut = true
	}
	return runResult, nil
}

// helperFailed reports whether sandbox-init itself failed before exec.
// After exec the helper's stderr is redirected into the run's stderr file,
// so anything left in the pipe came from the helper.
func helperFailed(waitErr error, helperStderr string) bool {
	return waitErr != nil && strings.TrimSpace(helperStderr) != ""
}

func signaled(state *os.ProcessState, sig syscall.Signal) bool {
	if state == nil {
		return false
	}
	status, ok := state.Sys().(syscall.WaitStatus)
	return ok && status.Signaled() && status.Signal() == sig
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func (e *linuxEngine) KillSubmission(ctx context.Context, submissionID string) error {
	if submissionID == "" {
		return errRequired("submission id")
	}
	for _, cgroupPath := range e.snapshotCgroups(submissionID) {
		if err := killCgroup(cgroupPath); err != nil {
			logger.Warn(ctx, "kill cgroup failed", zap.String("cgroup", cgroupPath), zap.Error(err))
		}
	}
	return nil
}

func (e *linuxEngine) registerCgroup(submissionID, cgroupPath string) {
	e.registryM.Lock()
	defer e.registryM.Unlock()
	e.registry[submissionID] = append(e.registry[submissionID], cgroupPath)
}

func (e *linuxEngine) unregisterCgroup(submissionID, cgroupPath string) {
	e.registryM.Lock()
	defer e.registryM.Unlock()
	paths := e.registry[submissionID]
	updated := paths[:0]
	for _, p := range paths {
		if p != cgroupPath {
			updated = append(updated, p)
		}
	}
	if len(updated) == 0 {
		delete(e.registry, submissionID)
		return
	}
	e.registry[submissionID] = updated
}

func (e *linuxEngine) snapshotCgroups(submissionID string) []string {
	e.registryM.Lock()
	defer e.registryM.Unlock()
	return append([]string(nil), e.registry[submissionID]...)
}

func (e *linuxEngine) killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

func jsonToPipe(req spec.InitRequest) io.ReadCloser {
	reader, writer := io.Pipe()
	go func() {
		err := json.NewEncoder(writer).Encode(req)
		_ = writer.CloseWithError(err)
	}()
	return reader
}

func buildSysProcAttr(profile security.IsolationProfile, enableNamespaces bool) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if !enableNamespaces {
		return attr
	}

	cloneFlags := uintptr(syscall.CLONE_NEWNS | syscall.CLONE_NEWPID | syscall.CLONE_NEWUTS | syscall.CLONE_NEWIPC | syscall.CLONE_NEWUSER)
	if profile.DisableNetwork {
		cloneFlags |= syscall.CLONE_NEWNET
	}
	attr.Cloneflags = cloneFlags
	attr.GidMappingsEnableSetgroups = false
	attr.UidMappings = []syscall.SysProcIDMap{{ContainerID: 0, HostID: os.Getuid(), Size: 1}}
	attr.GidMappings = []syscall.SysProcIDMap{{ContainerID: 0, HostID: os.Getgid(), Size: 1}}
	return attr
}
