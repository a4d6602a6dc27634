package service

import (
	"context"
	"time"

	"ojcore/internal/harness"
	"ojcore/internal/judge/model"
	problemRepo "ojcore/internal/problem/repository"
	"ojcore/internal/submit/repository"
	appErr "ojcore/pkg/errors"
)

// prepared is everything a job needs that does not depend on the attempt.
type prepared struct {
	problem problemRepo.Problem
	program harness.Program
	tests   []model.TestSpec
}

func (p prepared) job(submission *repository.Submission, attempt int64, now time.Time) model.JudgeJob {
	return model.JudgeJob{
		SubmissionID:    submission.SubmissionID,
		Attempt:         attempt,
		ProblemID:       submission.ProblemID,
		UserID:          submission.UserID,
		Language:        string(p.program.Language),
		TimeLimitMs:     p.problem.TimeLimitSec * 1000,
		MemoryLimitMB:   p.problem.MemoryLimitMB,
		AggregationMode: p.problem.AggregationMode,
		Tests:           p.tests,
		CreatedAt:       now.Unix(),
	}
}

// prepare loads the problem, generates the harness and canonicalizes every
// test's inputs and expected output.
func (s *SubmitService) prepare(ctx context.Context, problemID int64, lang harness.LanguageEntry, source string) (prepared, error) {
	problem, err := s.problems.GetProblem(ctx, problemID)
	if err != nil {
		return prepared{}, err
	}
	tests, err := s.problems.ListTestCases(ctx, problemID)
	if err != nil {
		return prepared{}, err
	}
	sig, err := buildSignature(problem, tests)
	if err != nil {
		return prepared{}, err
	}
	program, err := harness.Generate(lang.Language, sig, source)
	if err != nil {
		return prepared{}, err
	}
	specs, err := buildTestSpecs(sig, tests)
	if err != nil {
		return prepared{}, err
	}
	return prepared{problem: problem, program: program, tests: specs}, nil
}

// buildSignature takes the parameter list from the first test; every other
// test must declare the same parameter types.
func buildSignature(problem problemRepo.Problem, tests []problemRepo.TestCase) (harness.Signature, error) {
	if len(tests) == 0 {
		return harness.Signature{}, appErr.Newf(appErr.TestCaseNotFound, "problem %d has no test cases", problem.ID)
	}
	params := make([]harness.ParamSpec, 0, len(tests[0].Inputs))
	for _, in := range tests[0].Inputs {
		params = append(params, harness.ParamSpec{Name: in.Name, TypeTag: in.TypeTag, OrderIndex: in.OrderIndex})
	}
	sig, err := harness.NewSignature(problem.FunctionName, problem.ReturnType, params)
	if err != nil {
		return harness.Signature{}, err
	}
	for _, tc := range tests[1:] {
		if len(tc.Inputs) != len(params) {
			return harness.Signature{}, appErr.Newf(appErr.TestCaseInvalid, "test %d declares %d inputs, want %d", tc.ID, len(tc.Inputs), len(params))
		}
		for i, in := range tc.Inputs {
			t, err := harness.ParseType(in.TypeTag)
			if err != nil {
				return harness.Signature{}, err
			}
			if t.ID() != sig.Params[i].Type.ID() {
				return harness.Signature{}, appErr.Newf(appErr.TestCaseInvalid, "test %d input %q has type %s, want %s", tc.ID, in.Name, t, sig.Params[i].Type)
			}
		}
	}
	return sig, nil
}

func buildTestSpecs(sig harness.Signature, tests []problemRepo.TestCase) ([]model.TestSpec, error) {
	specs := make([]model.TestSpec, 0, len(tests))
	for _, tc := range tests {
		values := make([]string, len(tc.Inputs))
		for i, in := range tc.Inputs {
			values[i] = in.Content
		}
		stdin, err := sig.Stdin(values)
		if err != nil {
			return nil, err
		}
		expected, err := sig.Expected(tc.Expected)
		if err != nil {
			return nil, err
		}
		specs = append(specs, model.TestSpec{
			TestID:   tc.ID,
			Stdin:    stdin,
			Expected: expected,
			Weight:   tc.Weight,
			Sample:   tc.Sample,
		})
	}
	return specs, nil
}
