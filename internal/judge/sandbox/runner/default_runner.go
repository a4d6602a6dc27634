package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	"ojcore/internal/judge/sandbox/engine"
	"ojcore/internal/judge/sandbox/observer"
	"ojcore/internal/judge/sandbox/profile"
	"ojcore/internal/judge/sandbox/result"
	"ojcore/internal/judge/sandbox/spec"
	appErr "ojcore/pkg/errors"
)

const (
	containerWorkDir = "/work"
	containerIODir   = "/io"
	inputName        = "input.txt"
	outputName       = "output.txt"
	errorName        = "error.txt"
	compileOutName   = "compile.out"
	compileLogName   = "compile.log"
)

// Config controls how the runner lays out sandbox paths.
type Config struct {
	// HostPaths passes host directories to the engine unchanged instead of
	// bind mounting them at /work and /io. Used when namespaces are off.
	HostPaths bool `yaml:"hostPaths"`
}

// DefaultRunner implements compile/run workflows for supported languages.
type DefaultRunner struct {
	eng     engine.Engine
	cfg     Config
	metrics observer.MetricsRecorder
}

// NewRunner creates a new runner backed by the sandbox engine.
func NewRunner(eng engine.Engine, cfg Config) *DefaultRunner {
	return NewRunnerWithObserver(eng, cfg, observer.NoopMetricsRecorder{})
}

// NewRunnerWithObserver creates a new runner with metrics hooks.
func NewRunnerWithObserver(eng engine.Engine, cfg Config, metrics observer.MetricsRecorder) *DefaultRunner {
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	return &DefaultRunner{eng: eng, cfg: cfg, metrics: metrics}
}

func (r *DefaultRunner) Abort(ctx context.Context, submissionID string) error {
	return r.eng.KillSubmission(ctx, submissionID)
}

func (r *DefaultRunner) Compile(ctx context.Context, req CompileRequest) (result.CompileResult, error) {
	if err := validateCompileRequest(req); err != nil {
		return result.CompileResult{}, err
	}
	if err := prepareWorkDir(req.WorkDir); err != nil {
		return result.CompileResult{}, err
	}
	if err := writeFile(req.WorkDir, req.Language.SourceFile, req.Source); err != nil {
		return result.CompileResult{}, err
	}
	if !req.Language.CompileEnabled {
		return result.CompileResult{OK: true}, nil
	}

	workDir := r.containerDir(req.WorkDir, containerWorkDir)
	cmd, err := buildCommand(req.Language.CompileCmdTpl, req.Language, workDir)
	if err != nil {
		return result.CompileResult{}, err
	}
	runSpec := spec.RunSpec{
		SubmissionID: req.SubmissionID,
		TestID:       "compile",
		WorkDir:      workDir,
		Cmd:          cmd,
		Env:          req.Language.Env,
		StdoutPath:   filepath.Join(workDir, compileOutName),
		StderrPath:   filepath.Join(workDir, compileLogName),
		Profile:      profile.Name(req.Language.ID, req.Profile.TaskType),
		Limits:       req.Profile.DefaultLimits.Merge(req.Limits),
		BindMounts:   r.mounts(spec.MountSpec{Source: req.WorkDir, Target: containerWorkDir}),
	}

	runRes, err := r.eng.Run(ctx, runSpec)
	if err != nil {
		return result.CompileResult{}, err
	}
	compileRes := result.CompileResult{
		OK:       runRes.ExitCode == 0 && !runRes.TimedOut && !runRes.OomKilled,
		ExitCode: runRes.ExitCode,
		TimeMs:   runRes.TimeMs,
		MemoryKB: runRes.MemoryKB,
	}
	if !compileRes.OK {
		compileRes.Log = compileLog(runRes)
	}
	r.metrics.ObserveCompile(ctx, req.Language.ID, compileRes.OK, compileRes.TimeMs, compileRes.MemoryKB)
	return compileRes, nil
}

func (r *DefaultRunner) Run(ctx context.Context, req RunRequest) (result.RunResult, error) {
	if err := validateRunRequest(req); err != nil {
		return result.RunResult{}, err
	}
	if err := prepareWorkDir(req.IODir); err != nil {
		return result.RunResult{}, err
	}
	if err := writeFile(req.IODir, inputName, req.Stdin); err != nil {
		return result.RunResult{}, err
	}

	workDir := r.containerDir(req.WorkDir, containerWorkDir)
	ioDir := r.containerDir(req.IODir, containerIODir)
	cmd, err := buildCommand(req.Language.RunCmdTpl, req.Language, workDir)
	if err != nil {
		return result.RunResult{}, err
	}
	runSpec := spec.RunSpec{
		SubmissionID: req.SubmissionID,
		TestID:       req.TestID,
		WorkDir:      workDir,
		Cmd:          cmd,
		Env:          req.Language.Env,
		StdinPath:    filepath.Join(ioDir, inputName),
		StdoutPath:   filepath.Join(ioDir, outputName),
		StderrPath:   filepath.Join(ioDir, errorName),
		Profile:      profile.Name(req.Language.ID, req.Profile.TaskType),
		Limits:       req.Limits,
		BindMounts: r.mounts(
			spec.MountSpec{Source: req.WorkDir, Target: containerWorkDir, ReadOnly: true},
			spec.MountSpec{Source: req.IODir, Target: containerIODir},
		),
	}
	return r.eng.Run(ctx, runSpec)
}

func (r *DefaultRunner) containerDir(hostDir, target string) string {
	if r.cfg.HostPaths {
		return hostDir
	}
	return target
}

func (r *DefaultRunner) mounts(mounts ...spec.MountSpec) []spec.MountSpec {
	if r.cfg.HostPaths {
		return nil
	}
	return mounts
}

// compileLog merges compiler diagnostics; some toolchains print to stdout.
func compileLog(res result.RunResult) string {
	switch {
	case res.TimedOut:
		return "compilation timed out"
	case res.OomKilled:
		return "compilation exceeded the memory limit"
	}
	log := strings.TrimSpace(res.Stderr)
	if out := strings.TrimSpace(res.Stdout); out != "" {
		if log != "" {
			log += "\n"
		}
		log += out
	}
	return log
}

func validateCompileRequest(req CompileRequest) error {
	switch {
	case req.SubmissionID == "":
		return appErr.ValidationError("submission_id", "required")
	case req.WorkDir == "":
		return appErr.ValidationError("work_dir", "required")
	case req.Language.ID == "":
		return appErr.ValidationError("language_id", "required")
	case req.Language.SourceFile == "":
		return appErr.ValidationError("source_file_name", "required")
	case req.Profile.TaskType == "":
		return appErr.ValidationError("task_profile", "required")
	}
	return nil
}

func validateRunRequest(req RunRequest) error {
	switch {
	case req.SubmissionID == "":
		return appErr.ValidationError("submission_id", "required")
	case req.TestID == "":
		return appErr.ValidationError("test_id", "required")
	case req.WorkDir == "":
		return appErr.ValidationError("work_dir", "required")
	case req.IODir == "":
		return appErr.ValidationError("io_dir", "required")
	case req.Language.ID == "":
		return appErr.ValidationError("language_id", "required")
	case req.Profile.TaskType == "":
		return appErr.ValidationError("task_profile", "required")
	}
	return nil
}

// buildCommand expands {src}, {bin} and {workdir} and splits the result
// with shell quoting rules.
func buildCommand(tpl string, lang profile.LanguageSpec, workDir string) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command template is required")
	}
	expanded := strings.NewReplacer(
		"{src}", filepath.Join(workDir, lang.SourceFile),
		"{bin}", filepath.Join(workDir, lang.BinaryFile),
		"{workdir}", workDir,
	).Replace(tpl)
	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	return fields, nil
}

func prepareWorkDir(workDir string) error {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "create work dir failed")
	}
	return nil
}

func writeFile(dir, name, content string) error {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "write %s failed", name)
	}
	return nil
}
