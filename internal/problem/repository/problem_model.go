package repository

import (
	"strings"

	"ojcore/internal/judge/verdict"
)

// Difficulty levels stored on problems.
const (
	DifficultyEasy   = "EASY"
	DifficultyMedium = "MEDIUM"
	DifficultyHard   = "HARD"
)

// DefaultTestWeight applies to test cases stored without a weight.
const DefaultTestWeight = 10

const defaultMemoryLimitMB = 256

// Problem is the judging view of a problem row.
type Problem struct {
	ID              int64                   `json:"id"`
	Title           string                  `json:"title"`
	FunctionName    string                  `json:"function_name"`
	ReturnType      string                  `json:"return_type"`
	TimeLimitSec    int64                   `json:"time_limit_sec"`
	MemoryLimitMB   int64                   `json:"memory_limit_mb"`
	Difficulty      string                  `json:"difficulty"`
	AggregationMode verdict.AggregationMode `json:"aggregation_mode"`
}

// ApplyDefaults fills missing limits from the difficulty.
func (p *Problem) ApplyDefaults() {
	p.Difficulty = strings.ToUpper(strings.TrimSpace(p.Difficulty))
	if p.TimeLimitSec <= 0 {
		switch p.Difficulty {
		case DifficultyHard:
			p.TimeLimitSec = 3
		case DifficultyMedium:
			p.TimeLimitSec = 2
		default:
			p.TimeLimitSec = 1
		}
	}
	if p.MemoryLimitMB <= 0 {
		p.MemoryLimitMB = defaultMemoryLimitMB
	}
	p.AggregationMode = verdict.ParseAggregationMode(string(p.AggregationMode))
}

// TestInput is one typed argument of a test case.
type TestInput struct {
	Name       string `json:"name"`
	TypeTag    string `json:"type_tag"`
	Content    string `json:"content"`
	OrderIndex int    `json:"order_index"`
}

// TestCase holds the typed inputs and expected output of one test.
type TestCase struct {
	ID           int64       `json:"id"`
	ProblemID    int64       `json:"problem_id"`
	OrderIndex   int         `json:"order_index"`
	Sample       bool        `json:"sample"`
	Weight       int         `json:"weight"`
	Expected     string      `json:"expected"`
	ExpectedType string      `json:"expected_type"`
	Inputs       []TestInput `json:"inputs"`
}
