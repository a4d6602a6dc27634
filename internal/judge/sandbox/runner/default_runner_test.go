package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ojcore/internal/harness"
	"ojcore/internal/judge/sandbox/profile"
	"ojcore/internal/judge/sandbox/result"
	"ojcore/internal/judge/sandbox/spec"
)

type fakeEngine struct {
	specs  []spec.RunSpec
	res    result.RunResult
	err    error
	killed []string
}

func (f *fakeEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	f.specs = append(f.specs, runSpec)
	return f.res, f.err
}

func (f *fakeEngine) KillSubmission(ctx context.Context, submissionID string) error {
	f.killed = append(f.killed, submissionID)
	return nil
}

func javaSpec() profile.LanguageSpec {
	return harness.Languages[harness.Java].Runtime
}

func TestCompileWritesSourceAndExpandsTemplate(t *testing.T) {
	eng := &fakeEngine{}
	r := NewRunner(eng, Config{})
	dir := t.TempDir()

	res, err := r.Compile(context.Background(), CompileRequest{
		SubmissionID: "sub-1",
		Language:     javaSpec(),
		Profile:      profile.TaskProfile{TaskType: profile.TaskTypeCompile, DefaultLimits: spec.ResourceLimit{CPUTimeMs: 10000, PIDs: 128}},
		WorkDir:      dir,
		Source:       "public class Main {}",
	})
	require.NoError(t, err)
	assert.True(t, res.OK)

	data, err := os.ReadFile(filepath.Join(dir, "Main.java"))
	require.NoError(t, err)
	assert.Equal(t, "public class Main {}", string(data))

	require.Len(t, eng.specs, 1)
	got := eng.specs[0]
	assert.Equal(t, []string{"javac", "-encoding", "UTF-8", "-d", "/work", "/work/Main.java"}, got.Cmd)
	assert.Equal(t, "java-compile", got.Profile)
	assert.Equal(t, "compile", got.TestID)
	assert.Equal(t, int64(128), got.Limits.PIDs)
	require.Len(t, got.BindMounts, 1)
	assert.Equal(t, dir, got.BindMounts[0].Source)
	assert.False(t, got.BindMounts[0].ReadOnly)
}

func TestCompileFailureCarriesDiagnostics(t *testing.T) {
	eng := &fakeEngine{res: result.RunResult{ExitCode: 1, Stderr: "Main.java:3: error: ';' expected\n"}}
	r := NewRunner(eng, Config{})

	res, err := r.Compile(context.Background(), CompileRequest{
		SubmissionID: "sub-1",
		Language:     javaSpec(),
		Profile:      profile.TaskProfile{TaskType: profile.TaskTypeCompile},
		WorkDir:      t.TempDir(),
		Source:       "class Main {",
	})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "Main.java:3: error: ';' expected", res.Log)
}

func TestCompileTimeoutIsNotOK(t *testing.T) {
	eng := &fakeEngine{res: result.RunResult{ExitCode: -1, TimedOut: true}}
	r := NewRunner(eng, Config{})

	res, err := r.Compile(context.Background(), CompileRequest{
		SubmissionID: "sub-1",
		Language:     harness.Languages[harness.Cpp].Runtime,
		Profile:      profile.TaskProfile{TaskType: profile.TaskTypeCompile},
		WorkDir:      t.TempDir(),
	})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "compilation timed out", res.Log)
}

func TestCompileEngineErrorIsReturned(t *testing.T) {
	eng := &fakeEngine{err: errors.New("cgroup unavailable")}
	r := NewRunner(eng, Config{})

	_, err := r.Compile(context.Background(), CompileRequest{
		SubmissionID: "sub-1",
		Language:     javaSpec(),
		Profile:      profile.TaskProfile{TaskType: profile.TaskTypeCompile},
		WorkDir:      t.TempDir(),
	})
	assert.Error(t, err)
}

func TestCompileSkippedWhenDisabled(t *testing.T) {
	eng := &fakeEngine{}
	r := NewRunner(eng, Config{})
	lang := harness.Languages[harness.Python].Runtime
	lang.CompileEnabled = false

	res, err := r.Compile(context.Background(), CompileRequest{
		SubmissionID: "sub-1",
		Language:     lang,
		Profile:      profile.TaskProfile{TaskType: profile.TaskTypeCompile},
		WorkDir:      t.TempDir(),
		Source:       "print(1)",
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Empty(t, eng.specs)
}

func TestRunWritesStdinAndMountsReadOnlyWorkDir(t *testing.T) {
	eng := &fakeEngine{res: result.RunResult{Stdout: "[0,1]\n"}}
	r := NewRunner(eng, Config{})
	workDir := t.TempDir()
	ioDir := filepath.Join(t.TempDir(), "tests", "7")
	limits := spec.ResourceLimit{CPUTimeMs: 2000, WallTimeMs: 5000, MemoryMB: 512}

	res, err := r.Run(context.Background(), RunRequest{
		SubmissionID: "sub-1",
		TestID:       "7",
		Language:     harness.Languages[harness.Cpp].Runtime,
		Profile:      profile.TaskProfile{TaskType: profile.TaskTypeRun},
		WorkDir:      workDir,
		IODir:        ioDir,
		Stdin:        "[2,7,11,15]\n9\n",
		Limits:       limits,
	})
	require.NoError(t, err)
	assert.Equal(t, "[0,1]\n", res.Stdout)

	data, err := os.ReadFile(filepath.Join(ioDir, "input.txt"))
	require.NoError(t, err)
	assert.Equal(t, "[2,7,11,15]\n9\n", string(data))

	got := eng.specs[0]
	assert.Equal(t, []string{"/work/main"}, got.Cmd)
	assert.Equal(t, "/io/input.txt", got.StdinPath)
	assert.Equal(t, "/io/output.txt", got.StdoutPath)
	assert.Equal(t, "cpp-run", got.Profile)
	assert.Equal(t, limits, got.Limits)
	require.Len(t, got.BindMounts, 2)
	assert.True(t, got.BindMounts[0].ReadOnly)
	assert.Equal(t, ioDir, got.BindMounts[1].Source)
}

func TestRunHostPaths(t *testing.T) {
	eng := &fakeEngine{}
	r := NewRunner(eng, Config{HostPaths: true})
	workDir := t.TempDir()
	ioDir := t.TempDir()

	_, err := r.Run(context.Background(), RunRequest{
		SubmissionID: "sub-1",
		TestID:       "1",
		Language:     harness.Languages[harness.Python].Runtime,
		Profile:      profile.TaskProfile{TaskType: profile.TaskTypeRun},
		WorkDir:      workDir,
		IODir:        ioDir,
	})
	require.NoError(t, err)

	got := eng.specs[0]
	assert.Equal(t, []string{"python3", "-S", filepath.Join(workDir, "main.py")}, got.Cmd)
	assert.Equal(t, filepath.Join(ioDir, "output.txt"), got.StdoutPath)
	assert.Empty(t, got.BindMounts)
}

func TestRunValidation(t *testing.T) {
	r := NewRunner(&fakeEngine{}, Config{})
	_, err := r.Run(context.Background(), RunRequest{SubmissionID: "s"})
	assert.Error(t, err)
}

func TestBuildCommandQuoting(t *testing.T) {
	lang := profile.LanguageSpec{SourceFile: "main.cpp", BinaryFile: "main"}
	cmd, err := buildCommand(`g++ -DNAME="a b" -o {bin} {src}`, lang, "/work")
	require.NoError(t, err)
	assert.Equal(t, []string{"g++", "-DNAME=a b", "-o", "/work/main", "/work/main.cpp"}, cmd)

	_, err = buildCommand("   ", lang, "/work")
	assert.Error(t, err)
}

func TestResolveLimits(t *testing.T) {
	defaults := spec.ResourceLimit{CPUTimeMs: 1000, MemoryMB: 128, PIDs: 64, StackMB: 64}
	lang := profile.LanguageSpec{TimeMultiplier: 2, MemoryMultiplier: 1.5}

	got := ResolveLimits(spec.ResourceLimit{CPUTimeMs: 3000, MemoryMB: 256}, defaults, lang, DefaultWallPolicy)
	assert.Equal(t, int64(6000), got.CPUTimeMs)
	assert.Equal(t, int64(13000), got.WallTimeMs)
	assert.Equal(t, int64(384), got.MemoryMB)
	assert.Equal(t, int64(64), got.PIDs)

	got = ResolveLimits(spec.ResourceLimit{}, defaults, profile.LanguageSpec{}, WallPolicy{})
	assert.Equal(t, int64(1000), got.CPUTimeMs)
	assert.Equal(t, int64(2000), got.WallTimeMs)
	assert.Equal(t, int64(128), got.MemoryMB)
}

func TestAbortKillsSubmissionSandboxes(t *testing.T) {
	eng := &fakeEngine{}
	r := NewRunner(eng, Config{})

	require.NoError(t, r.Abort(context.Background(), "sub-1"))
	assert.Equal(t, []string{"sub-1"}, eng.killed)
}
